package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	storerepo "kirim/internal/adapter/repository"
	"kirim/internal/domain/entity"
	"kirim/internal/domain/repository"
)

func seedMessage(t *testing.T, store repository.RealtimeStore, key string, m *entity.Message) {
	t.Helper()
	assert.NoError(t, store.Write(context.Background(), "messages/"+key, m))
}

func messageContents(messages []*entity.Message) []string {
	out := make([]string, 0, len(messages))
	for _, m := range messages {
		out = append(out, m.Content)
	}
	return out
}

func TestOpenFiltersByPairAndOrdersByTimestamp(t *testing.T) {
	store := storerepo.NewMemoryStore()
	conv := NewConversationUseCase(store)

	// Insertion order deliberately disagrees with timestamp order, and a
	// third party's messages are interleaved.
	seedMessage(t, store, "m2", &entity.Message{SenderID: "b", ReceiverID: "a", Content: "second", Timestamp: 200, Type: "text"})
	seedMessage(t, store, "mx", &entity.Message{SenderID: "c", ReceiverID: "a", Content: "other", Timestamp: 150, Type: "text"})
	seedMessage(t, store, "m1", &entity.Message{SenderID: "a", ReceiverID: "b", Content: "first", Timestamp: 100, Type: "text"})
	seedMessage(t, store, "m3", &entity.Message{SenderID: "a", ReceiverID: "b", Content: "third", Timestamp: 300, Type: "text"})

	var emitted [][]*entity.Message
	dispose := conv.Open("a", "b", func(messages []*entity.Message) {
		emitted = append(emitted, messages)
	}, nil)
	defer dispose()

	assert.Len(t, emitted, 1)
	assert.Equal(t, []string{"first", "second", "third"}, messageContents(emitted[0]))
	assert.Equal(t, "m1", emitted[0][0].ID)
}

func TestOpenEmitsOnNewMessages(t *testing.T) {
	ctx := context.Background()
	store := storerepo.NewMemoryStore()
	conv := NewConversationUseCase(store)

	var last []*entity.Message
	dispose := conv.Open("a", "b", func(messages []*entity.Message) {
		last = messages
	}, nil)
	defer dispose()

	assert.Empty(t, last)

	_, err := conv.Send(ctx, "a", "b", "hello", entity.MessageTypeText)
	assert.NoError(t, err)
	assert.Equal(t, []string{"hello"}, messageContents(last))
}

func TestPeerSwitchDoesNotLeakMessages(t *testing.T) {
	store := storerepo.NewMemoryStore()
	conv := NewConversationUseCase(store)

	seedMessage(t, store, "ab", &entity.Message{SenderID: "a", ReceiverID: "b", Content: "for b", Timestamp: 100, Type: "text"})
	seedMessage(t, store, "ac", &entity.Message{SenderID: "a", ReceiverID: "c", Content: "for c", Timestamp: 200, Type: "text"})

	var last []*entity.Message
	dispose := conv.Open("a", "b", func(messages []*entity.Message) {
		last = messages
	}, nil)
	assert.Equal(t, []string{"for b"}, messageContents(last))

	// Full unsubscribe before re-attach, like the session layer does.
	dispose()
	dispose = conv.Open("a", "c", func(messages []*entity.Message) {
		last = messages
	}, nil)
	defer dispose()

	assert.Equal(t, []string{"for c"}, messageContents(last))
}

func TestSendAssignsKeyAndTimestamp(t *testing.T) {
	ctx := context.Background()
	store := storerepo.NewMemoryStore()
	conv := NewConversationUseCase(store)

	msg, err := conv.Send(ctx, "a", "b", "hello", entity.MessageTypeText)
	assert.NoError(t, err)
	assert.NotEmpty(t, msg.ID)
	assert.NotZero(t, msg.Timestamp)
	assert.Equal(t, "a", msg.SenderID)
	assert.Equal(t, "b", msg.ReceiverID)
}

func TestSendRejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	store := storerepo.NewMemoryStore()
	conv := NewConversationUseCase(store)

	_, err := conv.Send(ctx, "a", "b", "", entity.MessageTypeText)
	assert.Error(t, err)

	_, err = conv.Send(ctx, "a", "b", "hello", "video")
	assert.Error(t, err)
}
