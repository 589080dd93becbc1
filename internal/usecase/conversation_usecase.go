package usecase

import (
	"context"
	"time"

	"kirim/internal/domain/entity"
	"kirim/internal/domain/repository"
	"kirim/pkg/errors"
)

// ConversationUseCase streams the message history between exactly two users
// and appends new messages to the global collection.
type ConversationUseCase struct {
	store repository.RealtimeStore
}

func NewConversationUseCase(store repository.RealtimeStore) *ConversationUseCase {
	return &ConversationUseCase{store: store}
}

// Open subscribes to the global message collection ordered by timestamp and
// emits, on every snapshot, the subset exchanged between currentUID and
// peerUID, ascending. There is no per-conversation collection in the store;
// the pair predicate is applied client-side.
func (uc *ConversationUseCase) Open(currentUID, peerUID string, emit func([]*entity.Message), onError func(error)) repository.Disposer {
	return uc.store.SubscribeCollection("messages", repository.Query{OrderBy: "timestamp"}, func(snap repository.Snapshot) {
		messages := make([]*entity.Message, 0, len(snap.Children))
		for _, child := range snap.Children {
			var m entity.Message
			if err := child.Decode(&m); err != nil {
				continue
			}
			if !m.Between(currentUID, peerUID) {
				continue
			}
			m.ID = child.Key
			messages = append(messages, &m)
		}
		emit(messages)
	}, onError)
}

// Send appends one message in a single atomic create and returns it with the
// store-assigned key. It does not wait for the conversation stream to echo
// the message back; a nil error is the only delivery confirmation. On failure
// the caller keeps the input so the user can retry.
func (uc *ConversationUseCase) Send(ctx context.Context, senderID, receiverID, content, msgType string) (*entity.Message, error) {
	if content == "" {
		return nil, errors.BadRequest("Message content is empty", nil)
	}
	if msgType != entity.MessageTypeText && msgType != entity.MessageTypeImage {
		return nil, errors.BadRequest("Unknown message type: "+msgType, nil)
	}

	message := &entity.Message{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		Timestamp:  time.Now().UnixMilli(),
		Type:       msgType,
	}

	key, err := uc.store.Append(ctx, "messages", message)
	if err != nil {
		return nil, err
	}
	message.ID = key
	return message, nil
}
