package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"courier-dispatch/internal/domain/user"
	"courier-dispatch/internal/general/jwt"
	"courier-dispatch/internal/general/logger"
	"courier-dispatch/internal/ports"

	"github.com/gorilla/websocket"
)

const (
	wsWriteTimeout   = 5 * time.Second
	wsCloseAckWindow = 2 * time.Second
	ctrlTimeout      = 5 * time.Second
	readDeadline     = 60 * time.Second
	pingInterval     = 30 * time.Second
)

// Watch topics an admin session can subscribe to.
const (
	TopicOrders  = "orders"
	TopicDrivers = "drivers"
	TopicClients = "clients"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Session is one authenticated socket. The registry holds at most one per
// (role, user); a newer connection for the same pair supersedes the old one.
type Session struct {
	UserID   string
	DeviceID string
	Role     user.Role
	conn     *websocket.Conn
}

type sessionKey struct {
	role   user.Role
	userID string
}

// Hub owns the session registry, watch topics, and chat subscriptions, and
// routes every inbound intent frame. Fan-out to a target that has no live
// session is silently skipped.
type Hub struct {
	logger      *logger.Logger
	jwtMgr      *jwt.Manager
	pub         ports.MessagePublisher
	presenceSvc ports.PresenceService
	chatSvc     ports.ChatService
	feed        ports.NotificationFeed

	mu       sync.RWMutex
	sessions map[sessionKey]*Session

	writeLocks sync.Map // *websocket.Conn -> *sync.Mutex

	topicMu  sync.RWMutex
	watchers map[string]map[*Session]struct{} // topic -> sessions
	chatSubs map[string]map[*Session]struct{} // thread id -> sessions
}

// NewHub creates the gateway socket hub.
func NewHub(
	log *logger.Logger,
	jwtMgr *jwt.Manager,
	pub ports.MessagePublisher,
	presenceSvc ports.PresenceService,
	chatSvc ports.ChatService,
	feed ports.NotificationFeed,
) *Hub {
	return &Hub{
		logger:      log,
		jwtMgr:      jwtMgr,
		pub:         pub,
		presenceSvc: presenceSvc,
		chatSvc:     chatSvc,
		feed:        feed,
		sessions:    make(map[sessionKey]*Session),
		watchers:    make(map[string]map[*Session]struct{}),
		chatSubs:    make(map[string]map[*Session]struct{}),
	}
}

// register installs a session, force-closing any older one for the same
// (role, user) pair.
func (h *Hub) register(s *Session) {
	key := sessionKey{role: s.Role, userID: s.UserID}

	h.mu.Lock()
	old := h.sessions[key]
	h.sessions[key] = s
	h.mu.Unlock()

	if old != nil && old.conn != s.conn {
		h.wsWriteClose(old.conn, websocket.ClosePolicyViolation, "superseded by a newer session")
		_ = old.conn.Close()
		h.dropSubscriptions(old)
	}
}

// remove deregisters a session if it is still the current one for its key.
// Returns false when a newer session already replaced it, in which case the
// caller must not run disconnect side effects.
func (h *Hub) remove(s *Session) bool {
	key := sessionKey{role: s.Role, userID: s.UserID}

	h.mu.Lock()
	current := h.sessions[key] == s
	if current {
		delete(h.sessions, key)
	}
	h.mu.Unlock()

	h.dropSubscriptions(s)
	return current
}

func (h *Hub) dropSubscriptions(s *Session) {
	h.topicMu.Lock()
	for _, set := range h.watchers {
		delete(set, s)
	}
	for _, set := range h.chatSubs {
		delete(set, s)
	}
	h.topicMu.Unlock()
}

func (h *Hub) session(role user.Role, userID string) (*Session, bool) {
	h.mu.RLock()
	s, ok := h.sessions[sessionKey{role: role, userID: userID}]
	h.mu.RUnlock()
	return s, ok
}

// IsOnline reports whether a user currently has a live session in a role.
func (h *Hub) IsOnline(role user.Role, userID string) bool {
	_, ok := h.session(role, userID)
	return ok
}

// subscribe adds a session to a watch topic.
func (h *Hub) subscribe(s *Session, topic string) {
	h.topicMu.Lock()
	set := h.watchers[topic]
	if set == nil {
		set = make(map[*Session]struct{})
		h.watchers[topic] = set
	}
	set[s] = struct{}{}
	h.topicMu.Unlock()
}

// subscribeChat adds a session to a thread's delivery set.
func (h *Hub) subscribeChat(s *Session, threadID string) {
	h.topicMu.Lock()
	set := h.chatSubs[threadID]
	if set == nil {
		set = make(map[*Session]struct{})
		h.chatSubs[threadID] = set
	}
	set[s] = struct{}{}
	h.topicMu.Unlock()
}

// SendToUser pushes a frame to one user's session in the given role. Offline
// targets are skipped; the return value says whether a write was attempted.
func (h *Hub) SendToUser(role user.Role, userID, frameType string, data any) bool {
	s, ok := h.session(role, userID)
	if !ok {
		return false
	}
	if err := h.writeFrame(s.conn, frameType, "", data); err != nil {
		h.logger.Error(h.logCtx(), "ws_send_failed", "Failed to push frame to session", err,
			map[string]any{"role": role.String(), "user_id": userID, "frame": frameType})
		return false
	}
	return true
}

// BroadcastTopic pushes a frame to every session watching a topic.
func (h *Hub) BroadcastTopic(topic, frameType string, data any) {
	for _, s := range h.topicSessions(topic) {
		if err := h.writeFrame(s.conn, frameType, "", data); err != nil {
			h.logger.Error(h.logCtx(), "ws_broadcast_failed", "Failed to push frame to watcher", err,
				map[string]any{"topic": topic, "user_id": s.UserID, "frame": frameType})
		}
	}
}

// BroadcastChat pushes a frame to every subscriber of a thread.
func (h *Hub) BroadcastChat(threadID, frameType string, data any) {
	h.topicMu.RLock()
	set := h.chatSubs[threadID]
	sessions := make([]*Session, 0, len(set))
	for s := range set {
		sessions = append(sessions, s)
	}
	h.topicMu.RUnlock()

	for _, s := range sessions {
		if err := h.writeFrame(s.conn, frameType, "", data); err != nil {
			h.logger.Error(h.logCtx(), "ws_chat_broadcast_failed", "Failed to push chat frame", err,
				map[string]any{"thread_id": threadID, "user_id": s.UserID, "frame": frameType})
		}
	}
}

// BroadcastAll pushes a frame to every connected session.
func (h *Hub) BroadcastAll(frameType string, data any) {
	h.mu.RLock()
	sessions := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.RUnlock()

	for _, s := range sessions {
		if err := h.writeFrame(s.conn, frameType, "", data); err != nil {
			h.logger.Error(h.logCtx(), "ws_broadcast_failed", "Failed to push frame to session", err,
				map[string]any{"user_id": s.UserID, "frame": frameType})
		}
	}
}

func (h *Hub) topicSessions(topic string) []*Session {
	h.topicMu.RLock()
	set := h.watchers[topic]
	sessions := make([]*Session, 0, len(set))
	for s := range set {
		sessions = append(sessions, s)
	}
	h.topicMu.RUnlock()
	return sessions
}

// frame is the parsed inbound envelope shared by all read loops.
type frame struct {
	Type          string          `json:"type"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}
