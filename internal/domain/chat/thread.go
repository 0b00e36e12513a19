package chat

import (
	"errors"
	"strings"
	"time"

	"courier-dispatch/internal/domain/user"
)

// Message is one entry in a thread's append-only log. Seq is assigned by the
// server in receipt order; client-side timestamps never reorder the log.
type Message struct {
	ID         string    `json:"id"`
	Seq        int64     `json:"seq"`
	SenderID   string    `json:"sender_id"`
	SenderRole user.Role `json:"sender_role"`
	Content    string    `json:"content"`
	SentAt     time.Time `json:"sent_at"`
	Seen       bool      `json:"seen"`
}

// Thread is the domain entity corresponding to the `chat_threads` table plus
// its message log. Threads are created lazily and never destroyed.
type Thread struct {
	ID   string
	Kind Kind
	// Key is the conversation identifier: the client/driver user id for
	// support threads, the order id for order threads.
	Key       string
	CreatedAt time.Time
	Messages  []Message
}

var (
	ErrKeyRequired     = errors.New("thread key is required")
	ErrContentRequired = errors.New("message content is required")
	ErrSenderRequired  = errors.New("sender id is required")
)

// NewThread creates an empty thread for the given kind and key.
func NewThread(kind Kind, key string) (*Thread, error) {
	if !kind.Valid() {
		return nil, ErrInvalidKind
	}
	if key = strings.TrimSpace(key); key == "" {
		return nil, ErrKeyRequired
	}
	return &Thread{
		Kind:      kind,
		Key:       key,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Append adds a message at the tail with the next sequence number. The caller
// holds whatever lock serializes appends for this thread, so two racing sends
// land in the order the server processed them.
func (t *Thread) Append(id, senderID string, senderRole user.Role, content string, at time.Time) (Message, error) {
	if strings.TrimSpace(senderID) == "" {
		return Message{}, ErrSenderRequired
	}
	if strings.TrimSpace(content) == "" {
		return Message{}, ErrContentRequired
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}

	msg := Message{
		ID:         id,
		Seq:        t.NextSeq(),
		SenderID:   senderID,
		SenderRole: senderRole,
		Content:    content,
		SentAt:     at,
	}
	t.Messages = append(t.Messages, msg)
	return msg, nil
}

// NextSeq returns the sequence number the next appended message will get.
func (t *Thread) NextSeq() int64 {
	if len(t.Messages) == 0 {
		return 1
	}
	return t.Messages[len(t.Messages)-1].Seq + 1
}

// MarkSeen flips seen=true on every message not sent by the reader's role.
// Already-seen messages are untouched, so a replay is a no-op. Returns how
// many messages actually flipped.
func (t *Thread) MarkSeen(readerRole user.Role) int {
	flipped := 0
	for i := range t.Messages {
		m := &t.Messages[i]
		if m.SenderRole == readerRole || m.Seen {
			continue
		}
		m.Seen = true
		flipped++
	}
	return flipped
}

// UnseenSuffix returns the trailing run of unseen messages sent by roles
// other than reader. Support-chat resume sends only this suffix when the
// last message is an unseen admin message.
func (t *Thread) UnseenSuffix(readerRole user.Role) []Message {
	start := len(t.Messages)
	for i := len(t.Messages) - 1; i >= 0; i-- {
		m := t.Messages[i]
		if m.SenderRole == readerRole || m.Seen {
			break
		}
		start = i
	}
	return append([]Message(nil), t.Messages[start:]...)
}

// LastMessage returns the most recent message, or nil for an empty thread.
func (t *Thread) LastMessage() *Message {
	if len(t.Messages) == 0 {
		return nil
	}
	return &t.Messages[len(t.Messages)-1]
}
