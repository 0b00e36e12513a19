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

// PresenceService owns driver availability transitions on the gateway side.
type PresenceService interface {
	Connect(ctx context.Context, driverID, deviceID string) (*presence.DriverPresence, error)
	Disconnect(ctx context.Context, driverID string) (*presence.DriverPresence, error)
	// Toggle flips availability. A locked toggle returns the unchanged record
	// alongside the error so the caller can push a reconciling frame.
	Toggle(ctx context.Context, driverID string, available bool) (*presence.DriverPresence, error)
	UpdateLocation(ctx context.Context, driverID string, lat, lng float64) (*presence.DriverPresence, error)
	// BeginOrder and EndOrder bracket an active assignment: the toggle locks
	// for its duration and reverts to the stored preference afterwards.
	BeginOrder(ctx context.Context, driverID string) (*presence.DriverPresence, error)
	EndOrder(ctx context.Context, driverID string) (*presence.DriverPresence, error)
	Snapshot(ctx context.Context) ([]*presence.DriverPresence, error)
}

// ChatSendResult is returned once a message has been durably appended.
type ChatSendResult struct {
	ThreadID string
	Message  chat.Message
}

// ChatHistory is a thread replay for a joining or resuming participant.
type ChatHistory struct {
	ThreadID string
	Kind     chat.Kind
	Key      string
	Messages []chat.Message
	Full     bool
}

// ChatService relays messages through durable per-thread logs.
type ChatService interface {
	// InitSupport opens the support thread for the given user, creating it on
	// first contact, and returns the unseen tail so the client can resume.
	InitSupport(ctx context.Context, userID string, readerRole user.Role) (*ChatHistory, error)
	// Join returns the full log of an existing thread, for observers.
	Join(ctx context.Context, kind chat.Kind, key string) (*ChatHistory, error)
	Send(ctx context.Context, threadID, senderID string, senderRole user.Role, content string) (*ChatSendResult, error)
	MarkSeen(ctx context.Context, threadID string, readerRole user.Role) (int, error)
}

// AssignOrderInput carries an admin assignment request.
type AssignOrderInput struct {
	OrderID  string
	DriverID string
	AdminID  string
}

// OrderIntentInput carries a driver-originated order action.
type OrderIntentInput struct {
	Action   string
	OrderID  string
	DriverID string
	DeviceID string
	Comment  string
	Reason   string
}

// BucketView is an order listing plus its unseen count.
type BucketView struct {
	Status order.Status
	Orders []*order.Order
	Unseen int
}

// DispatchService is the sole writer of order state.
type DispatchService interface {
	CreateOrder(ctx context.Context, o *order.Order) (*order.Order, error)
	AssignOrder(ctx context.Context, in AssignOrderInput) (*order.Order, error)
	Classify(ctx context.Context, orderID string, target order.Status, adminID string) (*order.Order, error)
	ApplyIntent(ctx context.Context, in OrderIntentInput) (*order.Order, error)
	GetOrder(ctx context.Context, id string) (*order.Order, error)
	ListBucket(ctx context.Context, status order.Status, limit int) (*BucketView, error)
	MarkBucketSeen(ctx context.Context, status order.Status) (int, error)
}

// SendNotificationInput is an admin broadcast request.
type SendNotificationInput struct {
	Title      string
	Message    string
	CreatedBy  string
	Recipients []string
}

// SendNotificationResult reports per-recipient push outcomes.
type SendNotificationResult struct {
	Notification *notify.Notification
	Deliveries   []notify.Delivery
}

// OverviewMetrics is the admin dashboard summary.
type OverviewMetrics struct {
	PendingCount    int
	InProgressCount int
	DeliveredToday  int
	CancelledToday  int
	RevenueToday    float64
	DriversOnline   int
	DriversReady    int
}

// AdminService backs the back-office HTTP surface.
type AdminService interface {
	Login(ctx context.Context, username, password, deviceID string) (token string, err error)
	RegisterPushToken(ctx context.Context, t *notify.PushToken) error
	SendNotification(ctx context.Context, in SendNotificationInput) (*SendNotificationResult, error)
	ListNotifications(ctx context.Context, userID string, limit int) ([]notify.Notification, error)
	Overview(ctx context.Context, now time.Time) (*OverviewMetrics, error)
	SetSystemFlag(ctx context.Context, name string, enabled bool, adminID string) error
	SystemFlags(ctx context.Context) (map[string]bool, error)
}

// NotificationFeed is the read side of the notification store, used by the
// gateway to answer in-socket fetches.
type NotificationFeed interface {
	NotificationsFor(ctx context.Context, userID string, limit int) ([]notify.Notification, error)
	// MarkRead flips the caller's delivery row; repeats are harmless.
	MarkRead(ctx context.Context, notificationID, userID string) error
}

// PushProvider delivers a push payload to a single device token.
type PushProvider interface {
	Push(ctx context.Context, token, title, body string) error
}

// MessagePublisher publishes broker messages with confirm semantics.
type MessagePublisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body any) error
}
