package postgres

import (
	"context"
	"errors"
	"fmt"

	"courier-dispatch/internal/domain/chat"
	"courier-dispatch/internal/domain/protocol"
	"courier-dispatch/internal/domain/user"
	"courier-dispatch/internal/ports"

	"github.com/jackc/pgx/v5"
)

// ChatRepo persists chat threads and their append-only message logs.
type ChatRepo struct{}

// NewChatRepo constructs a new ChatRepo.
func NewChatRepo() ports.ChatRepository {
	return &ChatRepo{}
}

// CreateThread inserts an empty thread. The (kind, key) pair is unique, so a
// racing create surfaces as a constraint error the caller retries as a read.
func (r *ChatRepo) CreateThread(ctx context.Context, t *chat.Thread) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO chat_threads (kind, thread_key)
		VALUES ($1, $2)
		RETURNING id, created_at
	`, t.Kind.String(), t.Key).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert chat thread: %w", err)
	}
	return nil
}

// GetThreadByID fetches a thread with its full message log.
func (r *ChatRepo) GetThreadByID(ctx context.Context, id string) (*chat.Thread, error) {
	return r.getThread(ctx, `SELECT id, kind, thread_key, created_at FROM chat_threads WHERE id = $1`, id)
}

// GetThreadByKey fetches a thread by its conversation key.
func (r *ChatRepo) GetThreadByKey(ctx context.Context, kind chat.Kind, key string) (*chat.Thread, error) {
	return r.getThread(ctx,
		`SELECT id, kind, thread_key, created_at FROM chat_threads WHERE kind = $1 AND thread_key = $2`,
		kind.String(), key)
}

func (r *ChatRepo) getThread(ctx context.Context, query string, args ...any) (*chat.Thread, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var t chat.Thread
	var kind string
	err = tx.QueryRow(ctx, query, args...).Scan(&t.ID, &kind, &t.Key, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, protocol.NotFoundf("chat thread not found")
		}
		return nil, fmt.Errorf("query chat thread: %w", err)
	}
	t.Kind = chat.Kind(kind)

	if t.Messages, err = r.loadMessages(ctx, tx, t.ID); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *ChatRepo) loadMessages(ctx context.Context, tx pgx.Tx, threadID string) ([]chat.Message, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, seq, sender_id, sender_role, content, sent_at, seen
		FROM chat_messages
		WHERE thread_id = $1
		ORDER BY seq ASC
	`, threadID)
	if err != nil {
		return nil, fmt.Errorf("query chat messages: %w", err)
	}
	defer rows.Close()

	var out []chat.Message
	for rows.Next() {
		var m chat.Message
		var role string
		if err := rows.Scan(&m.ID, &m.Seq, &m.SenderID, &role, &m.Content, &m.SentAt, &m.Seen); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		m.SenderRole = user.Role(role)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}

// LockThread takes the thread row lock. Every append runs under it, so the
// assigned seq values reflect the order the server committed the messages.
func (r *ChatRepo) LockThread(ctx context.Context, id string) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	var got string
	err = tx.QueryRow(ctx, `SELECT id FROM chat_threads WHERE id = $1 FOR UPDATE`, id).Scan(&got)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return protocol.NotFoundf("chat thread not found")
		}
		return fmt.Errorf("lock chat thread: %w", err)
	}
	return nil
}

// AppendMessage inserts one message at an already-computed seq.
func (r *ChatRepo) AppendMessage(ctx context.Context, threadID string, m chat.Message) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO chat_messages (id, thread_id, seq, sender_id, sender_role, content, sent_at, seen)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, m.ID, threadID, m.Seq, m.SenderID, m.SenderRole.String(), m.Content, m.SentAt, m.Seen)
	if err != nil {
		return fmt.Errorf("insert chat message: %w", err)
	}
	return nil
}

// MarkSeen flips the seen flag on every message the reader had not yet seen
// from the other side of the conversation. Returns the number of rows flipped;
// zero on a repeat call, which is fine.
func (r *ChatRepo) MarkSeen(ctx context.Context, threadID string, readerRole user.Role) (int, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return 0, err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE chat_messages
		SET seen = true
		WHERE thread_id = $1 AND seen = false AND sender_role <> $2
	`, threadID, readerRole.String())
	if err != nil {
		return 0, fmt.Errorf("mark messages seen: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
