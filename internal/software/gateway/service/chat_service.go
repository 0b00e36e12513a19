package service

import (
	"context"
	"time"

	"courier-dispatch/internal/domain/chat"
	"courier-dispatch/internal/domain/protocol"
	"courier-dispatch/internal/domain/user"
	"courier-dispatch/internal/general/logger"
	"courier-dispatch/internal/ports"

	"github.com/google/uuid"
)

// chatService relays messages through durable per-thread logs. All appends
// run under the thread row lock, so sequence numbers reflect the order the
// server committed the messages, not client-side clocks.
type chatService struct {
	logger *logger.Logger
	uow    ports.UnitOfWork
	repo   ports.ChatRepository
	orders ports.OrderRepository
}

// NewChatService constructs the chat relay service.
func NewChatService(
	log *logger.Logger,
	uow ports.UnitOfWork,
	repo ports.ChatRepository,
	orders ports.OrderRepository,
) ports.ChatService {
	return &chatService{logger: log, uow: uow, repo: repo, orders: orders}
}

// InitSupport opens the support thread for a user, creating it on first
// contact, and returns the trailing unseen messages so the client resumes
// where it left off.
func (service *chatService) InitSupport(ctx context.Context, userID string, readerRole user.Role) (*ports.ChatHistory, error) {
	var hist *ports.ChatHistory
	err := service.uow.WithinTx(ctx, func(ctx context.Context) error {
		t, err := service.repo.GetThreadByKey(ctx, chat.KindSupport, userID)
		if err != nil {
			if protocol.KindOf(err) != protocol.KindNotFound {
				return err
			}
			if t, err = chat.NewThread(chat.KindSupport, userID); err != nil {
				return err
			}
			if err = service.repo.CreateThread(ctx, t); err != nil {
				return err
			}
		}

		hist = &ports.ChatHistory{
			ThreadID: t.ID,
			Kind:     t.Kind,
			Key:      t.Key,
			Messages: t.UnseenSuffix(readerRole),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return hist, nil
}

// Join returns the full log of a thread. Order threads are created lazily on
// first join, once the order itself checks out; support threads must already
// exist.
func (service *chatService) Join(ctx context.Context, kind chat.Kind, key string) (*ports.ChatHistory, error) {
	var hist *ports.ChatHistory
	err := service.uow.WithinTx(ctx, func(ctx context.Context) error {
		t, err := service.repo.GetThreadByKey(ctx, kind, key)
		if err != nil {
			if protocol.KindOf(err) != protocol.KindNotFound || kind != chat.KindOrder {
				return err
			}
			if _, err = service.orders.GetByID(ctx, key); err != nil {
				return err
			}
			if t, err = chat.NewThread(chat.KindOrder, key); err != nil {
				return err
			}
			if err = service.repo.CreateThread(ctx, t); err != nil {
				return err
			}
		}

		hist = &ports.ChatHistory{
			ThreadID: t.ID,
			Kind:     t.Kind,
			Key:      t.Key,
			Messages: t.Messages,
			Full:     true,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return hist, nil
}

// Send appends one message at the tail of a thread.
func (service *chatService) Send(ctx context.Context, threadID, senderID string, senderRole user.Role, content string) (*ports.ChatSendResult, error) {
	var out *ports.ChatSendResult
	err := service.uow.WithinTx(ctx, func(ctx context.Context) error {
		// the row lock is what makes seq assignment race-free
		if err := service.repo.LockThread(ctx, threadID); err != nil {
			return err
		}
		t, err := service.repo.GetThreadByID(ctx, threadID)
		if err != nil {
			return err
		}

		m, err := t.Append(uuid.NewString(), senderID, senderRole, content, time.Now().UTC())
		if err != nil {
			return protocol.Validationf("message rejected").Wrap(err)
		}
		if err := service.repo.AppendMessage(ctx, t.ID, m); err != nil {
			return err
		}

		out = &ports.ChatSendResult{ThreadID: t.ID, Message: m}
		return nil
	})
	if err != nil {
		service.logger.Error(ctx, "chat_send_failed", "Failed to append chat message", err, map[string]any{
			"thread_id": threadID, "sender_id": senderID,
		})
		return nil, err
	}

	service.logger.Info(ctx, "chat_message_appended", "Chat message stored", map[string]any{
		"thread_id": out.ThreadID, "seq": out.Message.Seq, "sender_role": senderRole.String(),
	})
	return out, nil
}

// MarkSeen flips the unseen messages from the other side of a thread. Calling
// it twice is harmless; the second call reports zero flips.
func (service *chatService) MarkSeen(ctx context.Context, threadID string, readerRole user.Role) (int, error) {
	var n int
	err := service.uow.WithinTx(ctx, func(ctx context.Context) error {
		if err := service.repo.LockThread(ctx, threadID); err != nil {
			return err
		}
		var err error
		n, err = service.repo.MarkSeen(ctx, threadID, readerRole)
		return err
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}
