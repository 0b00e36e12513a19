package service

import (
	"context"
	"testing"
	"time"

	"courier-dispatch/internal/domain/chat"
	"courier-dispatch/internal/domain/order"
	"courier-dispatch/internal/domain/protocol"
	"courier-dispatch/internal/domain/user"
	"courier-dispatch/internal/general/logger"
	"courier-dispatch/internal/ports"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ----- fakes -----

type fakeUOW struct{}

func (fakeUOW) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type threadKey struct {
	kind chat.Kind
	key  string
}

type fakeChatRepo struct {
	byID  map[string]*chat.Thread
	byKey map[threadKey]string
}

func newFakeChatRepo() *fakeChatRepo {
	return &fakeChatRepo{
		byID:  make(map[string]*chat.Thread),
		byKey: make(map[threadKey]string),
	}
}

func (r *fakeChatRepo) CreateThread(ctx context.Context, t *chat.Thread) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	r.byID[t.ID] = t
	r.byKey[threadKey{t.Kind, t.Key}] = t.ID
	return nil
}

func (r *fakeChatRepo) GetThreadByID(ctx context.Context, id string) (*chat.Thread, error) {
	t, ok := r.byID[id]
	if !ok {
		return nil, protocol.NotFoundf("chat thread %s not found", id)
	}
	return t, nil
}

func (r *fakeChatRepo) GetThreadByKey(ctx context.Context, kind chat.Kind, key string) (*chat.Thread, error) {
	id, ok := r.byKey[threadKey{kind, key}]
	if !ok {
		return nil, protocol.NotFoundf("chat thread for %s/%s not found", kind, key)
	}
	return r.byID[id], nil
}

func (r *fakeChatRepo) LockThread(ctx context.Context, id string) error {
	if _, ok := r.byID[id]; !ok {
		return protocol.NotFoundf("chat thread %s not found", id)
	}
	return nil
}

func (r *fakeChatRepo) AppendMessage(ctx context.Context, threadID string, m chat.Message) error {
	return nil // Append already placed it on the in-memory thread
}

func (r *fakeChatRepo) MarkSeen(ctx context.Context, threadID string, readerRole user.Role) (int, error) {
	t, ok := r.byID[threadID]
	if !ok {
		return 0, protocol.NotFoundf("chat thread %s not found", threadID)
	}
	return t.MarkSeen(readerRole), nil
}

type fakeOrderLookup struct {
	known map[string]bool
}

func (r *fakeOrderLookup) GetByID(ctx context.Context, id string) (*order.Order, error) {
	if !r.known[id] {
		return nil, protocol.NotFoundf("order %s not found", id)
	}
	return &order.Order{ID: id, Status: order.StatusInProgress}, nil
}

func (r *fakeOrderLookup) Create(ctx context.Context, o *order.Order) error { return nil }
func (r *fakeOrderLookup) GetForUpdate(ctx context.Context, id string) (*order.Order, error) {
	return r.GetByID(ctx, id)
}
func (r *fakeOrderLookup) Save(ctx context.Context, o *order.Order) error { return nil }
func (r *fakeOrderLookup) ListByStatus(ctx context.Context, status order.Status, limit int) ([]*order.Order, error) {
	return nil, nil
}
func (r *fakeOrderLookup) CountUnseen(ctx context.Context, status order.Status) (int, error) {
	return 0, nil
}
func (r *fakeOrderLookup) MarkBucketSeen(ctx context.Context, status order.Status) (int, error) {
	return 0, nil
}
func (r *fakeOrderLookup) CountByStatusBetween(ctx context.Context, status order.Status, start, end time.Time) (int, error) {
	return 0, nil
}
func (r *fakeOrderLookup) SumDeliveredTotalBetween(ctx context.Context, start, end time.Time) (float64, error) {
	return 0, nil
}

// ----- fixtures -----

func newChatFixture(t *testing.T) (ports.ChatService, *fakeChatRepo, *fakeOrderLookup) {
	t.Helper()
	repo := newFakeChatRepo()
	orders := &fakeOrderLookup{known: make(map[string]bool)}
	svc := NewChatService(logger.New("chat-test"), fakeUOW{}, repo, orders)
	return svc, repo, orders
}

// ----- tests -----

func TestInitSupportCreatesThreadOnFirstContact(t *testing.T) {
	svc, repo, _ := newChatFixture(t)

	hist, err := svc.InitSupport(context.Background(), "client-1", user.RoleClient)
	require.NoError(t, err)
	assert.NotEmpty(t, hist.ThreadID)
	assert.Equal(t, chat.KindSupport, hist.Kind)
	assert.Empty(t, hist.Messages)

	// a second init resolves to the same thread
	again, err := svc.InitSupport(context.Background(), "client-1", user.RoleClient)
	require.NoError(t, err)
	assert.Equal(t, hist.ThreadID, again.ThreadID)
	assert.Len(t, repo.byID, 1)
}

func TestInitSupportReturnsUnseenTail(t *testing.T) {
	svc, _, _ := newChatFixture(t)

	hist, err := svc.InitSupport(context.Background(), "client-1", user.RoleClient)
	require.NoError(t, err)

	_, err = svc.Send(context.Background(), hist.ThreadID, "client-1", user.RoleClient, "help")
	require.NoError(t, err)
	_, err = svc.Send(context.Background(), hist.ThreadID, "admin-1", user.RoleAdmin, "on it")
	require.NoError(t, err)

	resumed, err := svc.InitSupport(context.Background(), "client-1", user.RoleClient)
	require.NoError(t, err)
	require.Len(t, resumed.Messages, 1)
	assert.Equal(t, "on it", resumed.Messages[0].Content)
	assert.False(t, resumed.Full)
}

func TestSendAssignsSequentialSeq(t *testing.T) {
	svc, _, _ := newChatFixture(t)
	hist, err := svc.InitSupport(context.Background(), "client-1", user.RoleClient)
	require.NoError(t, err)

	first, err := svc.Send(context.Background(), hist.ThreadID, "client-1", user.RoleClient, "one")
	require.NoError(t, err)
	second, err := svc.Send(context.Background(), hist.ThreadID, "client-1", user.RoleClient, "two")
	require.NoError(t, err)

	assert.Equal(t, int64(1), first.Message.Seq)
	assert.Equal(t, int64(2), second.Message.Seq)
}

func TestSendUnknownThread(t *testing.T) {
	svc, _, _ := newChatFixture(t)

	_, err := svc.Send(context.Background(), "missing", "client-1", user.RoleClient, "hi")
	assert.Equal(t, protocol.KindNotFound, protocol.KindOf(err))
}

func TestSendEmptyContent(t *testing.T) {
	svc, _, _ := newChatFixture(t)
	hist, err := svc.InitSupport(context.Background(), "client-1", user.RoleClient)
	require.NoError(t, err)

	_, err = svc.Send(context.Background(), hist.ThreadID, "client-1", user.RoleClient, "  ")
	assert.Equal(t, protocol.KindValidation, protocol.KindOf(err))
}

func TestJoinOrderThreadLazilyCreated(t *testing.T) {
	svc, _, orders := newChatFixture(t)
	orders.known["order-1"] = true

	hist, err := svc.Join(context.Background(), chat.KindOrder, "order-1")
	require.NoError(t, err)
	assert.Equal(t, chat.KindOrder, hist.Kind)
	assert.True(t, hist.Full)
}

func TestJoinOrderThreadRequiresExistingOrder(t *testing.T) {
	svc, _, _ := newChatFixture(t)

	_, err := svc.Join(context.Background(), chat.KindOrder, "ghost-order")
	assert.Equal(t, protocol.KindNotFound, protocol.KindOf(err))
}

func TestJoinSupportThreadMustExist(t *testing.T) {
	svc, _, _ := newChatFixture(t)

	_, err := svc.Join(context.Background(), chat.KindSupport, "client-1")
	assert.Equal(t, protocol.KindNotFound, protocol.KindOf(err))
}

func TestMarkSeenIdempotent(t *testing.T) {
	svc, _, _ := newChatFixture(t)
	hist, err := svc.InitSupport(context.Background(), "client-1", user.RoleClient)
	require.NoError(t, err)

	_, err = svc.Send(context.Background(), hist.ThreadID, "admin-1", user.RoleAdmin, "hello")
	require.NoError(t, err)

	n, err := svc.MarkSeen(context.Background(), hist.ThreadID, user.RoleClient)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = svc.MarkSeen(context.Background(), hist.ThreadID, user.RoleClient)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
