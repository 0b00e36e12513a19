package chat

import (
	"testing"
	"time"

	"courier-dispatch/internal/domain/user"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func supportThread(t *testing.T) *Thread {
	t.Helper()
	th, err := NewThread(KindSupport, "client-1")
	require.NoError(t, err)
	return th
}

func mustAppend(t *testing.T, th *Thread, id string, role user.Role, content string) Message {
	t.Helper()
	m, err := th.Append(id, "sender-"+id, role, content, time.Now())
	require.NoError(t, err)
	return m
}

func TestNewThreadValidation(t *testing.T) {
	_, err := NewThread(Kind("weird"), "k")
	assert.ErrorIs(t, err, ErrInvalidKind)

	_, err = NewThread(KindOrder, "  ")
	assert.ErrorIs(t, err, ErrKeyRequired)
}

func TestAppendAssignsSequentialSeq(t *testing.T) {
	th := supportThread(t)

	m1 := mustAppend(t, th, "a", user.RoleClient, "hello")
	m2 := mustAppend(t, th, "b", user.RoleAdmin, "hi, how can we help?")
	m3 := mustAppend(t, th, "c", user.RoleClient, "where is my order")

	assert.Equal(t, int64(1), m1.Seq)
	assert.Equal(t, int64(2), m2.Seq)
	assert.Equal(t, int64(3), m3.Seq)
	assert.Equal(t, int64(4), th.NextSeq())
}

func TestAppendValidation(t *testing.T) {
	th := supportThread(t)

	_, err := th.Append("id", "", user.RoleClient, "hi", time.Now())
	assert.ErrorIs(t, err, ErrSenderRequired)

	_, err = th.Append("id", "sender", user.RoleClient, "   ", time.Now())
	assert.ErrorIs(t, err, ErrContentRequired)
}

func TestMarkSeenIdempotent(t *testing.T) {
	th := supportThread(t)
	mustAppend(t, th, "a", user.RoleAdmin, "one")
	mustAppend(t, th, "b", user.RoleAdmin, "two")
	mustAppend(t, th, "c", user.RoleClient, "mine")

	// the client marks the admin messages seen; its own are untouched
	assert.Equal(t, 2, th.MarkSeen(user.RoleClient))
	assert.Equal(t, 0, th.MarkSeen(user.RoleClient))
}

func TestUnseenSuffix(t *testing.T) {
	th := supportThread(t)
	mustAppend(t, th, "a", user.RoleAdmin, "old")
	th.MarkSeen(user.RoleClient)
	mustAppend(t, th, "b", user.RoleClient, "question")
	mustAppend(t, th, "c", user.RoleAdmin, "answer 1")
	mustAppend(t, th, "d", user.RoleAdmin, "answer 2")

	suffix := th.UnseenSuffix(user.RoleClient)
	require.Len(t, suffix, 2)
	assert.Equal(t, "answer 1", suffix[0].Content)
	assert.Equal(t, "answer 2", suffix[1].Content)
}

func TestUnseenSuffixEmptyWhenCaughtUp(t *testing.T) {
	th := supportThread(t)
	mustAppend(t, th, "a", user.RoleAdmin, "hello")
	th.MarkSeen(user.RoleClient)

	assert.Empty(t, th.UnseenSuffix(user.RoleClient))
}

func TestLastMessage(t *testing.T) {
	th := supportThread(t)
	assert.Nil(t, th.LastMessage())

	mustAppend(t, th, "a", user.RoleClient, "only one")
	require.NotNil(t, th.LastMessage())
	assert.Equal(t, "only one", th.LastMessage().Content)
}
