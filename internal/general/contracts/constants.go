package contracts

// Exchanges
const (
	ExchangeOrderTopic    = "order_topic"
	ExchangePresenceTopic = "presence_topic"
	ExchangeNotifyFanout  = "notify_fanout"
)

// Queues
const (
	QueueOrderIntents       = "order_intents"
	QueueOrderStatusUpdates = "order_status_updates"
	QueuePresenceUpdates    = "presence_updates"
	QueueNotificationEvents = "notification_events"
)

// Routing patterns. The fanout exchange ignores keys for routing, but
// consumers still use them to tell notification and system events apart.
const (
	RouteOrderIntentPrefix   = "order.intent." // {action}
	RouteOrderStatusPrefix   = "order.status." // {status}
	RoutePresencePrefix      = "presence."     // {driver_id}
	RouteNotificationCreated = "notification.created"
	RouteSystemStatus        = "system.status"
)

// Intent actions carried in order.intent.{action} routing keys.
const (
	IntentDeliver      = "deliver"
	IntentCancel       = "cancel"
	IntentRedistribute = "redistribute"
)
