package msg

import (
	"testing"

	"google.golang.org/protobuf/encoding/protowire"
)

func TestNewMetadataDefaults(t *testing.T) {
	m := NewMetadata("binary/sint32")
	if m.ByteOrder != BigEndian {
		t.Errorf("ByteOrder = %v, want BigEndian", m.ByteOrder)
	}
	if m.Status != StatusInfo {
		t.Errorf("Status = %v, want StatusInfo", m.Status)
	}
	if m.SeverityID != 1 {
		t.Errorf("SeverityID = %d, want 1", m.SeverityID)
	}
	if m.Action != ActionNone {
		t.Errorf("Action = %v, want ActionNone", m.Action)
	}
}

func TestMetadataRoundTrip(t *testing.T) {
	m := NewMetadata("binary/sint32")
	m.Description = "a reading"
	m.Author = "asimov"
	m.CommunicationID = 42
	m.ReplyTo = "ret:cafebabe:2000001"
	m.Action = ActionExecute
	m.Status = StatusWarning

	data := m.Marshal()
	got, err := UnmarshalMetadata(data)
	if err != nil {
		t.Fatalf("UnmarshalMetadata: %v", err)
	}
	if got != m {
		t.Errorf("round trip mismatch:\n got  %+v\n want %+v", got, m)
	}
}

func TestMetadataRoundTripZeroValue(t *testing.T) {
	m := NewMetadata("text/string")
	data := m.Marshal()
	got, err := UnmarshalMetadata(data)
	if err != nil {
		t.Fatalf("UnmarshalMetadata: %v", err)
	}
	if got != m {
		t.Errorf("round trip mismatch:\n got  %+v\n want %+v", got, m)
	}
}

func TestUnmarshalMetadataSkipsUnknownFields(t *testing.T) {
	m := NewMetadata("text/string")
	data := m.Marshal()

	// Append an unknown varint field (field number 99) to confirm it is
	// skipped rather than rejected.
	data = protowire.AppendTag(data, 99, protowire.VarintType)
	data = protowire.AppendVarint(data, 1)

	got, err := UnmarshalMetadata(data)
	if err != nil {
		t.Fatalf("UnmarshalMetadata with unknown field: %v", err)
	}
	if got.DataType != m.DataType {
		t.Errorf("DataType = %q, want %q", got.DataType, m.DataType)
	}
}
