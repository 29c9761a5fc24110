package msg

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// ByteOrder mirrors the wire enum for Metadata.byteorder.
type ByteOrder int32

const (
	BigEndian    ByteOrder = 0
	LittleEndian ByteOrder = 1
)

// Status mirrors the wire enum for Metadata.status.
type Status int32

const (
	StatusInfo    Status = 0
	StatusWarning Status = 1
	StatusError   Status = 2
)

// Action mirrors the wire enum for Metadata.action. ActionNone means the
// field was absent on the wire.
type Action int32

const (
	ActionNone       Action = -1
	ActionCheckpoint Action = 0
	ActionExecute    Action = 1
	ActionConfigure  Action = 2
)

// Metadata is the structured record attached to every Message. The wire
// form is a length-delimited binary encoding with stable field numbers;
// the constants below define them and must never be renumbered.
type Metadata struct {
	DataType        string
	ByteOrder       ByteOrder
	Description     string
	Composition     string
	Action          Action // ActionNone if absent
	Control         string
	Status          Status
	SeverityID      int32
	CommunicationID int64
	Author          string
	Version         string
	SenderState     string
	ExecutionTime   int64
	ReplyTo         string
}

// NewMetadata returns a Metadata with the required defaults: severity 1,
// status INFO, byteorder BigEndian, no action set.
func NewMetadata(dataType string) Metadata {
	return Metadata{
		DataType:   dataType,
		ByteOrder:  BigEndian,
		Status:     StatusInfo,
		SeverityID: 1,
		Action:     ActionNone,
	}
}

// Metadata wire field numbers.
const (
	fieldDataType        = 1
	fieldByteOrder       = 2
	fieldDescription     = 3
	fieldComposition     = 4
	fieldAction          = 5
	fieldControl         = 6
	fieldStatus          = 7
	fieldSeverityID      = 8
	fieldCommunicationID = 9
	fieldAuthor          = 10
	fieldVersion         = 11
	fieldSenderState     = 12
	fieldExecutionTime   = 13
	fieldReplyTo         = 20
)

// Marshal encodes Metadata to its wire form: a sequence of
// (field-number, wire-type) tags and values, little different from raw
// Protocol Buffers wire format, built directly on protowire's tag/varint/
// length-delimited primitives.
func (m Metadata) Marshal() []byte {
	var b []byte
	if m.DataType != "" {
		b = protowire.AppendTag(b, fieldDataType, protowire.BytesType)
		b = protowire.AppendString(b, m.DataType)
	}
	if m.ByteOrder != BigEndian {
		b = protowire.AppendTag(b, fieldByteOrder, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.ByteOrder))
	}
	if m.Description != "" {
		b = protowire.AppendTag(b, fieldDescription, protowire.BytesType)
		b = protowire.AppendString(b, m.Description)
	}
	if m.Composition != "" {
		b = protowire.AppendTag(b, fieldComposition, protowire.BytesType)
		b = protowire.AppendString(b, m.Composition)
	}
	if m.Action != ActionNone {
		b = protowire.AppendTag(b, fieldAction, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.Action))
	}
	if m.Control != "" {
		b = protowire.AppendTag(b, fieldControl, protowire.BytesType)
		b = protowire.AppendString(b, m.Control)
	}
	if m.Status != StatusInfo {
		b = protowire.AppendTag(b, fieldStatus, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.Status))
	}
	if m.SeverityID != 0 {
		b = protowire.AppendTag(b, fieldSeverityID, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(uint32(m.SeverityID)))
	}
	if m.CommunicationID != 0 {
		b = protowire.AppendTag(b, fieldCommunicationID, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.CommunicationID))
	}
	if m.Author != "" {
		b = protowire.AppendTag(b, fieldAuthor, protowire.BytesType)
		b = protowire.AppendString(b, m.Author)
	}
	if m.Version != "" {
		b = protowire.AppendTag(b, fieldVersion, protowire.BytesType)
		b = protowire.AppendString(b, m.Version)
	}
	if m.SenderState != "" {
		b = protowire.AppendTag(b, fieldSenderState, protowire.BytesType)
		b = protowire.AppendString(b, m.SenderState)
	}
	if m.ExecutionTime != 0 {
		b = protowire.AppendTag(b, fieldExecutionTime, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.ExecutionTime))
	}
	if m.ReplyTo != "" {
		b = protowire.AppendTag(b, fieldReplyTo, protowire.BytesType)
		b = protowire.AppendString(b, m.ReplyTo)
	}
	return b
}

// UnmarshalMetadata decodes Metadata from its wire form. Unknown field
// numbers are skipped, matching protobuf's forward-compatibility rule.
func UnmarshalMetadata(data []byte) (Metadata, error) {
	m := Metadata{ByteOrder: BigEndian, Status: StatusInfo, Action: ActionNone}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return Metadata{}, fmt.Errorf("msg: metadata tag: %w", ErrSerializationError)
		}
		data = data[n:]

		switch num {
		case fieldDataType:
			s, n, err := consumeString(data, typ)
			if err != nil {
				return Metadata{}, err
			}
			m.DataType, data = s, data[n:]
		case fieldByteOrder:
			v, n, err := consumeVarint(data, typ)
			if err != nil {
				return Metadata{}, err
			}
			m.ByteOrder, data = ByteOrder(v), data[n:]
		case fieldDescription:
			s, n, err := consumeString(data, typ)
			if err != nil {
				return Metadata{}, err
			}
			m.Description, data = s, data[n:]
		case fieldComposition:
			s, n, err := consumeString(data, typ)
			if err != nil {
				return Metadata{}, err
			}
			m.Composition, data = s, data[n:]
		case fieldAction:
			v, n, err := consumeVarint(data, typ)
			if err != nil {
				return Metadata{}, err
			}
			m.Action, data = Action(v), data[n:]
		case fieldControl:
			s, n, err := consumeString(data, typ)
			if err != nil {
				return Metadata{}, err
			}
			m.Control, data = s, data[n:]
		case fieldStatus:
			v, n, err := consumeVarint(data, typ)
			if err != nil {
				return Metadata{}, err
			}
			m.Status, data = Status(v), data[n:]
		case fieldSeverityID:
			v, n, err := consumeVarint(data, typ)
			if err != nil {
				return Metadata{}, err
			}
			m.SeverityID, data = int32(v), data[n:]
		case fieldCommunicationID:
			v, n, err := consumeVarint(data, typ)
			if err != nil {
				return Metadata{}, err
			}
			m.CommunicationID, data = int64(v), data[n:]
		case fieldAuthor:
			s, n, err := consumeString(data, typ)
			if err != nil {
				return Metadata{}, err
			}
			m.Author, data = s, data[n:]
		case fieldVersion:
			s, n, err := consumeString(data, typ)
			if err != nil {
				return Metadata{}, err
			}
			m.Version, data = s, data[n:]
		case fieldSenderState:
			s, n, err := consumeString(data, typ)
			if err != nil {
				return Metadata{}, err
			}
			m.SenderState, data = s, data[n:]
		case fieldExecutionTime:
			v, n, err := consumeVarint(data, typ)
			if err != nil {
				return Metadata{}, err
			}
			m.ExecutionTime, data = int64(v), data[n:]
		case fieldReplyTo:
			s, n, err := consumeString(data, typ)
			if err != nil {
				return Metadata{}, err
			}
			m.ReplyTo, data = s, data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return Metadata{}, fmt.Errorf("msg: skipping unknown metadata field %d: %w", num, ErrSerializationError)
			}
			data = data[n:]
		}
	}
	return m, nil
}

func consumeString(data []byte, typ protowire.Type) (string, int, error) {
	if typ != protowire.BytesType {
		return "", 0, fmt.Errorf("msg: expected bytes wire type: %w", ErrSerializationError)
	}
	v, n := protowire.ConsumeString(data)
	if n < 0 {
		return "", 0, fmt.Errorf("msg: malformed string field: %w", ErrSerializationError)
	}
	return v, n, nil
}

func consumeVarint(data []byte, typ protowire.Type) (uint64, int, error) {
	if typ != protowire.VarintType {
		return 0, 0, fmt.Errorf("msg: expected varint wire type: %w", ErrSerializationError)
	}
	v, n := protowire.ConsumeVarint(data)
	if n < 0 {
		return 0, 0, fmt.Errorf("msg: malformed varint field: %w", ErrSerializationError)
	}
	return v, n, nil
}
