package service

import (
	"context"
	"testing"
	"time"

	"courier-dispatch/internal/domain/notify"
	"courier-dispatch/internal/domain/protocol"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNotificationRepo struct {
	byUser map[string][]notify.Notification
}

func newFakeNotificationRepo() *fakeNotificationRepo {
	return &fakeNotificationRepo{byUser: make(map[string][]notify.Notification)}
}

func (r *fakeNotificationRepo) CreateWithDeliveries(ctx context.Context, n *notify.Notification, deliveries []notify.Delivery) error {
	for _, d := range deliveries {
		r.byUser[d.UserID] = append(r.byUser[d.UserID], *n)
	}
	return nil
}

func (r *fakeNotificationRepo) ListForUser(ctx context.Context, userID string, limit int) ([]notify.Notification, error) {
	items := r.byUser[userID]
	if len(items) > limit {
		items = items[:limit]
	}
	out := make([]notify.Notification, len(items))
	copy(out, items)
	return out, nil
}

func (r *fakeNotificationRepo) MarkRead(ctx context.Context, notificationID, userID string) error {
	for i, n := range r.byUser[userID] {
		if n.ID == notificationID {
			r.byUser[userID][i].Read = true
		}
	}
	return nil
}

func (r *fakeNotificationRepo) PruneOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	return 0, nil
}

func seedNotification(repo *fakeNotificationRepo, id, userID string) {
	n := &notify.Notification{ID: id, Title: "t", Message: "m", CreatedBy: "admin-1", CreatedAt: time.Now().UTC()}
	_ = repo.CreateWithDeliveries(context.Background(), n, []notify.Delivery{{NotificationID: id, UserID: userID}})
}

func TestFeedMarkReadFlipsOwnDelivery(t *testing.T) {
	repo := newFakeNotificationRepo()
	feed := NewNotificationFeed(fakeUOW{}, repo)
	seedNotification(repo, "note-1", "user-1")
	seedNotification(repo, "note-1", "user-2")

	require.NoError(t, feed.MarkRead(context.Background(), "note-1", "user-1"))

	mine, err := feed.NotificationsFor(context.Background(), "user-1", 50)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.True(t, mine[0].Read)

	theirs, err := feed.NotificationsFor(context.Background(), "user-2", 50)
	require.NoError(t, err)
	require.Len(t, theirs, 1)
	assert.False(t, theirs[0].Read)
}

func TestFeedMarkReadIdempotent(t *testing.T) {
	repo := newFakeNotificationRepo()
	feed := NewNotificationFeed(fakeUOW{}, repo)
	seedNotification(repo, "note-1", "user-1")

	require.NoError(t, feed.MarkRead(context.Background(), "note-1", "user-1"))
	require.NoError(t, feed.MarkRead(context.Background(), "note-1", "user-1"))
	require.NoError(t, feed.MarkRead(context.Background(), "never-delivered", "user-1"))
}

func TestFeedMarkReadRequiresID(t *testing.T) {
	feed := NewNotificationFeed(fakeUOW{}, newFakeNotificationRepo())

	err := feed.MarkRead(context.Background(), "  ", "user-1")
	assert.Equal(t, protocol.KindValidation, protocol.KindOf(err))
}
