package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	storerepo "kirim/internal/adapter/repository"
	"kirim/internal/domain/entity"
	apperrors "kirim/pkg/errors"
)

func fixedPeer(peer string) func() string {
	return func() string { return peer }
}

func TestInitialMessagesNeverAlert(t *testing.T) {
	store := storerepo.NewMemoryStore()
	notifier := NewNotifierUseCase(store)

	seedMessage(t, store, "m1", &entity.Message{SenderID: "b", ReceiverID: "a", Content: "old", Timestamp: 100, Type: "text"})

	var alerts int
	dispose := notifier.WatchInbound("a", fixedPeer(""), func() { alerts++ }, nil)
	defer dispose()

	assert.Zero(t, alerts)
	assert.False(t, notifier.Alert("a"))
}

func TestInboundMessageRaisesStickyFlag(t *testing.T) {
	ctx := context.Background()
	store := storerepo.NewMemoryStore()
	notifier := NewNotifierUseCase(store)
	conv := NewConversationUseCase(store)

	var alerts int
	dispose := notifier.WatchInbound("a", fixedPeer(""), func() { alerts++ }, nil)
	defer dispose()

	_, err := conv.Send(ctx, "b", "a", "hello", entity.MessageTypeText)
	assert.NoError(t, err)
	assert.Equal(t, 1, alerts)
	assert.True(t, notifier.Alert("a"))

	// A flag, not a counter: further inbound messages are no-ops.
	_, err = conv.Send(ctx, "b", "a", "again", entity.MessageTypeText)
	assert.NoError(t, err)
	_, err = conv.Send(ctx, "c", "a", "me too", entity.MessageTypeText)
	assert.NoError(t, err)
	assert.Equal(t, 1, alerts)
	assert.True(t, notifier.Alert("a"))
}

func TestOpenConversationSuppressesAlert(t *testing.T) {
	ctx := context.Background()
	store := storerepo.NewMemoryStore()
	notifier := NewNotifierUseCase(store)
	conv := NewConversationUseCase(store)

	dispose := notifier.WatchInbound("a", fixedPeer("b"), nil, nil)
	defer dispose()

	_, err := conv.Send(ctx, "b", "a", "hello", entity.MessageTypeText)
	assert.NoError(t, err)
	assert.False(t, notifier.Alert("a"))

	// Messages from anyone else still raise it.
	_, err = conv.Send(ctx, "c", "a", "psst", entity.MessageTypeText)
	assert.NoError(t, err)
	assert.True(t, notifier.Alert("a"))
}

func TestOutboundMessagesNeverAlert(t *testing.T) {
	ctx := context.Background()
	store := storerepo.NewMemoryStore()
	notifier := NewNotifierUseCase(store)
	conv := NewConversationUseCase(store)

	dispose := notifier.WatchInbound("a", fixedPeer(""), nil, nil)
	defer dispose()

	_, err := conv.Send(ctx, "a", "b", "hi", entity.MessageTypeText)
	assert.NoError(t, err)
	assert.False(t, notifier.Alert("a"))
}

func TestDismissClearsFlag(t *testing.T) {
	ctx := context.Background()
	store := storerepo.NewMemoryStore()
	notifier := NewNotifierUseCase(store)
	conv := NewConversationUseCase(store)

	dispose := notifier.WatchInbound("a", fixedPeer(""), nil, nil)
	defer dispose()

	_, err := conv.Send(ctx, "b", "a", "hello", entity.MessageTypeText)
	assert.NoError(t, err)
	assert.True(t, notifier.Alert("a"))

	notifier.Dismiss("a")
	assert.False(t, notifier.Alert("a"))

	// Cleared flag can be raised again.
	_, err = conv.Send(ctx, "b", "a", "more", entity.MessageTypeText)
	assert.NoError(t, err)
	assert.True(t, notifier.Alert("a"))
}

func TestWatchInboundSurfacesTerminalErrors(t *testing.T) {
	store := storerepo.NewMemoryStore()
	notifier := NewNotifierUseCase(store)

	var gotErr error
	dispose := notifier.WatchInbound("a", fixedPeer(""), nil, func(err error) {
		gotErr = err
	})
	defer dispose()

	store.FailCollection("messages", apperrors.Permission("denied", nil))

	assert.True(t, apperrors.Is(gotErr, "PERMISSION_ERROR"))
}

func TestClearForPeerMatchesRaisingSenderOnly(t *testing.T) {
	ctx := context.Background()
	store := storerepo.NewMemoryStore()
	notifier := NewNotifierUseCase(store)
	conv := NewConversationUseCase(store)

	dispose := notifier.WatchInbound("a", fixedPeer(""), nil, nil)
	defer dispose()

	_, err := conv.Send(ctx, "b", "a", "hello", entity.MessageTypeText)
	assert.NoError(t, err)

	// Opening someone else's conversation leaves the flag set.
	assert.False(t, notifier.ClearForPeer("a", "c"))
	assert.True(t, notifier.Alert("a"))

	// Opening the raising sender's conversation clears it.
	assert.True(t, notifier.ClearForPeer("a", "b"))
	assert.False(t, notifier.Alert("a"))
}
