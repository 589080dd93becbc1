package entity

const (
	MessageTypeText  = "text"
	MessageTypeImage = "image"
)

// Message is a single entry in the global messages collection. Created once,
// immutable afterwards. The store assigns ID on append; it is not part of the
// stored value.
type Message struct {
	ID         string `json:"id,omitempty"`
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId"`
	Content    string `json:"content"`
	Timestamp  int64  `json:"timestamp"`
	Type       string `json:"type"` // "text" or "image"
}

// Between reports whether the message belongs to the conversation between a
// and b, regardless of direction. A conversation is an unordered pair; there
// is no persisted conversation entity.
func (m *Message) Between(a, b string) bool {
	return (m.SenderID == a && m.ReceiverID == b) ||
		(m.SenderID == b && m.ReceiverID == a)
}
