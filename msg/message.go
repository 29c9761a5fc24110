package msg

import "fmt"

// Message is the unit of pub/sub and sync-reply delivery: a topic, a
// metadata record, and an opaque payload. Meta is a pointer so that
// absent metadata is representable; NewMessage rejects it with
// InvalidArgument.
type Message struct {
	Topic Topic
	Meta  *Metadata
	Data  []byte
}

// NewMessage constructs a Message, rejecting nil metadata.
func NewMessage(topic Topic, meta *Metadata, data []byte) (*Message, error) {
	if meta == nil {
		return nil, fmt.Errorf("msg: message metadata must not be nil: %w", ErrInvalidArgument)
	}
	return &Message{Topic: topic, Meta: meta, Data: data}, nil
}

// Clone returns a deep copy: a copied Metadata value and a copied data
// slice, so mutating the clone never affects the original.
func (m *Message) Clone() *Message {
	metaCopy := *m.Meta
	dataCopy := make([]byte, len(m.Data))
	copy(dataCopy, m.Data)
	return &Message{Topic: m.Topic, Meta: &metaCopy, Data: dataCopy}
}

// Frames returns the three wire frames in order: topic bytes, metadata
// bytes, payload bytes.
func (m *Message) Frames() [][]byte {
	return [][]byte{
		[]byte(m.Topic.String()),
		m.Meta.Marshal(),
		m.Data,
	}
}

// ParseMessage reconstructs a Message from exactly three wire frames, the
// inverse of Frames. Any other frame count is rejected with
// ErrProtocolViolation.
func ParseMessage(frames [][]byte) (*Message, error) {
	if len(frames) != 3 {
		return nil, fmt.Errorf("msg: expected 3 frames, got %d: %w", len(frames), ErrProtocolViolation)
	}
	meta, err := UnmarshalMetadata(frames[1])
	if err != nil {
		return nil, err
	}
	data := make([]byte, len(frames[2]))
	copy(data, frames[2])
	return &Message{
		Topic: Raw(string(frames[0])),
		Meta:  &meta,
		Data:  data,
	}, nil
}
