package usecase

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	storerepo "kirim/internal/adapter/repository"
	"kirim/internal/domain/entity"
)

func TestWatchLatestEmitsNewestPairMessage(t *testing.T) {
	store := storerepo.NewMemoryStore()
	preview := NewPreviewUseCase(store)

	seedMessage(t, store, "m1", &entity.Message{SenderID: "a", ReceiverID: "b", Content: "old", Timestamp: 100, Type: "text"})
	seedMessage(t, store, "m2", &entity.Message{SenderID: "b", ReceiverID: "a", Content: "new", Timestamp: 200, Type: "text"})

	var last *entity.Message
	dispose := preview.WatchLatest("a", "b", func(m *entity.Message) {
		last = m
	}, nil)
	defer dispose()

	if assert.NotNil(t, last) {
		assert.Equal(t, "new", last.Content)
	}
}

func TestWatchLatestYieldsNilWhenTailBelongsToAnotherPair(t *testing.T) {
	store := storerepo.NewMemoryStore()
	preview := NewPreviewUseCase(store)

	// An older matching message exists, but the single-message window at the
	// tail belongs to another conversation.
	seedMessage(t, store, "m1", &entity.Message{SenderID: "a", ReceiverID: "b", Content: "old", Timestamp: 100, Type: "text"})
	seedMessage(t, store, "m2", &entity.Message{SenderID: "c", ReceiverID: "d", Content: "noise", Timestamp: 200, Type: "text"})

	var calls int
	var last *entity.Message
	dispose := preview.WatchLatest("a", "b", func(m *entity.Message) {
		calls++
		last = m
	}, nil)
	defer dispose()

	assert.Equal(t, 1, calls)
	assert.Nil(t, last)
}

func TestFormatPreviewTruncatesLongText(t *testing.T) {
	content := strings.Repeat("x", 35)
	got := FormatPreview(&entity.Message{Type: entity.MessageTypeText, Content: content})

	assert.Equal(t, strings.Repeat("x", 30)+"...", got)
}

func TestFormatPreviewKeepsShortText(t *testing.T) {
	got := FormatPreview(&entity.Message{Type: entity.MessageTypeText, Content: "hi there"})
	assert.Equal(t, "hi there", got)

	// Exactly at the limit: no marker.
	content := strings.Repeat("x", 30)
	assert.Equal(t, content, FormatPreview(&entity.Message{Type: entity.MessageTypeText, Content: content}))
}

func TestFormatPreviewCountsRunesNotBytes(t *testing.T) {
	content := strings.Repeat("ä", 30)
	assert.Equal(t, content, FormatPreview(&entity.Message{Type: entity.MessageTypeText, Content: content}))
}

func TestFormatPreviewImagePlaceholder(t *testing.T) {
	got := FormatPreview(&entity.Message{Type: entity.MessageTypeImage, Content: "base64payload"})
	assert.Equal(t, "[Image]", got)
}

func TestFormatPreviewNilMessage(t *testing.T) {
	assert.Equal(t, "", FormatPreview(nil))
}
