package msg

import (
	"bytes"
	"errors"
	"testing"
)

func TestNewMessageRejectsNilMeta(t *testing.T) {
	topic, _ := Build("metallica")
	if _, err := NewMessage(topic, nil, []byte("x")); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("error = %v, want ErrInvalidArgument", err)
	}
}

func TestMessageFramesRoundTrip(t *testing.T) {
	topic, _ := Build("metallica", "lars", "drums")
	meta := NewMetadata("binary/sint32")
	meta.Author = "asimov"
	m, err := NewMessage(topic, &meta, []byte{1, 2, 3, 4})
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}

	frames := m.Frames()
	if len(frames) != 3 {
		t.Fatalf("Frames() returned %d frames, want 3", len(frames))
	}

	parsed, err := ParseMessage(frames)
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	if !parsed.Topic.Equal(m.Topic) {
		t.Errorf("Topic = %q, want %q", parsed.Topic, m.Topic)
	}
	if parsed.Meta.Author != meta.Author {
		t.Errorf("Meta.Author = %q, want %q", parsed.Meta.Author, meta.Author)
	}
	if !bytes.Equal(parsed.Data, m.Data) {
		t.Errorf("Data = %v, want %v", parsed.Data, m.Data)
	}
}

func TestParseMessageRejectsWrongFrameCount(t *testing.T) {
	if _, err := ParseMessage([][]byte{{1}, {2}}); !errors.Is(err, ErrProtocolViolation) {
		t.Errorf("error = %v, want ErrProtocolViolation", err)
	}
}

func TestMessageCloneIsDeepCopy(t *testing.T) {
	topic, _ := Build("metallica")
	meta := NewMetadata("binary/bytes")
	m, err := NewMessage(topic, &meta, []byte{1, 2, 3})
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}

	clone := m.Clone()
	clone.Data[0] = 0xff
	clone.Meta.Author = "mutated"

	if m.Data[0] == 0xff {
		t.Errorf("mutating clone.Data affected original")
	}
	if m.Meta.Author == "mutated" {
		t.Errorf("mutating clone.Meta affected original")
	}
}
