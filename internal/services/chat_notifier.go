package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/veilmatch/veilmatch-backend/internal/sse"
	"github.com/veilmatch/veilmatch-backend/internal/types"
)

// ChatNotifier is the best-effort real-time fan-out: events go to the
// per-chat topic and to each participant's per-user topic. Delivery
// failures are logged upstream and swallowed, never surfaced to a sender.
type ChatNotifier interface {
	ChatCreated(chat *types.Chat)
	MessageCreated(chat *types.Chat, msg *types.Message, flags []types.ContentFlag)
	ChatUpdated(chat *types.Chat)
	QuizReady(chat *types.Chat, level int)
	RevealConfirmed(chat *types.Chat, userID uuid.UUID)
	AvatarChanged(userID uuid.UUID)
}

type chatNotifier struct {
	emit SSEEmitter
}

func NewChatNotifier(emit SSEEmitter) ChatNotifier {
	return &chatNotifier{emit: emit}
}

func (n *chatNotifier) emitToAll(chat *types.Chat, event sse.SSEEvent, data map[string]any) {
	if n == nil || n.emit == nil || chat == nil {
		return
	}
	ctx := context.Background()
	n.emit.Emit(ctx, sse.SSEMessage{
		Channel: sse.ChatChannel(chat.ID),
		Event:   event,
		Data:    data,
	})
	for _, userID := range []uuid.UUID{chat.UserAID, chat.UserBID} {
		n.emit.Emit(ctx, sse.SSEMessage{
			Channel: sse.UserChannel(userID),
			Event:   event,
			Data:    data,
		})
	}
}

func (n *chatNotifier) ChatCreated(chat *types.Chat) {
	n.emitToAll(chat, sse.SSEEventChatCreated, map[string]any{"chat": chat})
}

func (n *chatNotifier) MessageCreated(chat *types.Chat, msg *types.Message, flags []types.ContentFlag) {
	data := map[string]any{
		"chat_id": chat.ID,
		"message": msg,
	}
	if len(flags) > 0 {
		data["flags"] = flags
	}
	n.emitToAll(chat, sse.SSEEventNewMessage, data)
}

func (n *chatNotifier) ChatUpdated(chat *types.Chat) {
	n.emitToAll(chat, sse.SSEEventChatUpdated, map[string]any{"chat": chat})
}

func (n *chatNotifier) QuizReady(chat *types.Chat, level int) {
	n.emitToAll(chat, sse.SSEEventQuizReady, map[string]any{
		"chat_id": chat.ID,
		"level":   level,
	})
}

func (n *chatNotifier) RevealConfirmed(chat *types.Chat, userID uuid.UUID) {
	n.emitToAll(chat, sse.SSEEventRevealConfirmed, map[string]any{
		"chat_id": chat.ID,
		"user_id": userID,
	})
}

func (n *chatNotifier) AvatarChanged(userID uuid.UUID) {
	if n == nil || n.emit == nil {
		return
	}
	n.emit.Emit(context.Background(), sse.SSEMessage{
		Channel: sse.UserChannel(userID),
		Event:   sse.SSEEventAvatarChanged,
		Data:    map[string]any{"user_id": userID},
	})
}
