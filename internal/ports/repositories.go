package ports

import (
	"context"
	"time"

	"courier-dispatch/internal/domain/chat"
	"courier-dispatch/internal/domain/notify"
	"courier-dispatch/internal/domain/order"
	"courier-dispatch/internal/domain/presence"
	"courier-dispatch/internal/domain/user"
)

// UnitOfWork manages transactions across multiple repository operations.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// OrderRepository defines the methods for managing order data.
type OrderRepository interface {
	Create(ctx context.Context, o *order.Order) error
	GetByID(ctx context.Context, id string) (*order.Order, error)
	// GetForUpdate locks the order row, serializing transitions per order id.
	GetForUpdate(ctx context.Context, id string) (*order.Order, error)
	Save(ctx context.Context, o *order.Order) error
	ListByStatus(ctx context.Context, status order.Status, limit int) ([]*order.Order, error)
	CountUnseen(ctx context.Context, status order.Status) (int, error)
	MarkBucketSeen(ctx context.Context, status order.Status) (int, error)
	CountByStatusBetween(ctx context.Context, status order.Status, start, end time.Time) (int, error)
	SumDeliveredTotalBetween(ctx context.Context, start, end time.Time) (float64, error)
}

// PresenceRepository persists the per-driver availability record.
type PresenceRepository interface {
	// GetForUpdate locks the presence row, serializing mutations per driver.
	GetForUpdate(ctx context.Context, driverID string) (*presence.DriverPresence, error)
	Upsert(ctx context.Context, p *presence.DriverPresence) error
}

// ChatRepository persists chat threads and their append-only message logs.
type ChatRepository interface {
	CreateThread(ctx context.Context, t *chat.Thread) error
	GetThreadByID(ctx context.Context, id string) (*chat.Thread, error)
	GetThreadByKey(ctx context.Context, kind chat.Kind, key string) (*chat.Thread, error)
	// LockThread locks the thread row so racing appends persist in the order
	// the server processed them.
	LockThread(ctx context.Context, id string) error
	AppendMessage(ctx context.Context, threadID string, m chat.Message) error
	MarkSeen(ctx context.Context, threadID string, readerRole user.Role) (int, error)
}

// NotificationRepository persists broadcasts and per-recipient deliveries.
type NotificationRepository interface {
	CreateWithDeliveries(ctx context.Context, n *notify.Notification, deliveries []notify.Delivery) error
	ListForUser(ctx context.Context, userID string, limit int) ([]notify.Notification, error)
	MarkRead(ctx context.Context, notificationID, userID string) error
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// UserRepository persists account rows used for login and role checks.
type UserRepository interface {
	Create(ctx context.Context, u *user.User) error
	GetByUsername(ctx context.Context, username string) (*user.User, error)
}

// PushTokenRepository manages device push registrations.
type PushTokenRepository interface {
	Upsert(ctx context.Context, t *notify.PushToken) error
	GetActiveForUser(ctx context.Context, userID string) (*notify.PushToken, error)
	DeactivateStaleBefore(ctx context.Context, cutoff time.Time) (int, error)
}
