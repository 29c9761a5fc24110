package msg

import (
	"encoding/json"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Predefined mime-types for the collaborator-facing data envelope
// codecs: one scalar wrapper per primitive type, their repeated array
// variants, raw bytes, JSON, and a native catch-all.
const (
	MimeSInt32   = "binary/sint32"
	MimeSInt64   = "binary/sint64"
	MimeSFixed32 = "binary/sfixed32"
	MimeSFixed64 = "binary/sfixed64"
	MimeFloat    = "binary/float"
	MimeDouble   = "binary/double"
	MimeString   = "text/string"
	MimeBytes    = "binary/bytes"
	MimeJSON     = "application/json"
	MimeNative   = "native"

	MimeSInt32Array   = "binary/sint32array"
	MimeSInt64Array   = "binary/sint64array"
	MimeSFixed32Array = "binary/sfixed32array"
	MimeSFixed64Array = "binary/sfixed64array"
	MimeFloatArray    = "binary/floatarray"
	MimeDoubleArray   = "binary/doublearray"
	MimeStringArray   = "binary/stringarray"
)

// PredefinedMimeTypes lists every mime-type this module ships a codec for.
var PredefinedMimeTypes = []string{
	MimeSInt32, MimeSInt64, MimeSFixed32, MimeSFixed64, MimeFloat, MimeDouble,
	MimeString, MimeBytes, MimeJSON, MimeNative,
	MimeSInt32Array, MimeSInt64Array, MimeSFixed32Array, MimeSFixed64Array,
	MimeFloatArray, MimeDoubleArray, MimeStringArray,
}

// Serializer turns a typed collaborator-side value into message payload
// bytes and back. The core never requires a dynamic "any" type; Serializer
// is the one seam where typed values cross into opaque bytes.
type Serializer interface {
	Write(v any) ([]byte, error)
	Read(data []byte) (any, error)
}

// EngineDataType pairs a mime-type tag with the Serializer that knows how
// to encode/decode values of that type.
type EngineDataType struct {
	MimeType   string
	Serializer Serializer
}

const wrapperField = 1 // the one field of every scalar wrapper message

type sint32Serializer struct{}

func (sint32Serializer) Write(v any) ([]byte, error) {
	i, ok := v.(int32)
	if !ok {
		return nil, fmt.Errorf("msg: sint32 serializer wants int32, got %T: %w", v, ErrSerializationError)
	}
	var b []byte
	b = protowire.AppendTag(b, wrapperField, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeZigZag(int64(i)))
	return b, nil
}

func (sint32Serializer) Read(data []byte) (any, error) {
	v, err := readSingleVarint(data)
	if err != nil {
		return nil, err
	}
	return int32(protowire.DecodeZigZag(v)), nil
}

type sint64Serializer struct{}

func (sint64Serializer) Write(v any) ([]byte, error) {
	i, ok := v.(int64)
	if !ok {
		return nil, fmt.Errorf("msg: sint64 serializer wants int64, got %T: %w", v, ErrSerializationError)
	}
	var b []byte
	b = protowire.AppendTag(b, wrapperField, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeZigZag(i))
	return b, nil
}

func (sint64Serializer) Read(data []byte) (any, error) {
	v, err := readSingleVarint(data)
	if err != nil {
		return nil, err
	}
	return protowire.DecodeZigZag(v), nil
}

func readSingleVarint(data []byte) (uint64, error) {
	num, typ, n := protowire.ConsumeTag(data)
	if n < 0 || num != wrapperField || typ != protowire.VarintType {
		return 0, fmt.Errorf("msg: malformed scalar wrapper: %w", ErrSerializationError)
	}
	data = data[n:]
	v, n := protowire.ConsumeVarint(data)
	if n < 0 {
		return 0, fmt.Errorf("msg: malformed varint wrapper payload: %w", ErrSerializationError)
	}
	return v, nil
}

type sfixed32Serializer struct{}

func (sfixed32Serializer) Write(v any) ([]byte, error) {
	i, ok := v.(int32)
	if !ok {
		return nil, fmt.Errorf("msg: sfixed32 serializer wants int32, got %T: %w", v, ErrSerializationError)
	}
	var b []byte
	b = protowire.AppendTag(b, wrapperField, protowire.Fixed32Type)
	b = protowire.AppendFixed32(b, uint32(i))
	return b, nil
}

func (sfixed32Serializer) Read(data []byte) (any, error) {
	num, typ, n := protowire.ConsumeTag(data)
	if n < 0 || num != wrapperField || typ != protowire.Fixed32Type {
		return nil, fmt.Errorf("msg: malformed sfixed32 wrapper: %w", ErrSerializationError)
	}
	data = data[n:]
	v, n := protowire.ConsumeFixed32(data)
	if n < 0 {
		return nil, fmt.Errorf("msg: malformed sfixed32 payload: %w", ErrSerializationError)
	}
	return int32(v), nil
}

type sfixed64Serializer struct{}

func (sfixed64Serializer) Write(v any) ([]byte, error) {
	i, ok := v.(int64)
	if !ok {
		return nil, fmt.Errorf("msg: sfixed64 serializer wants int64, got %T: %w", v, ErrSerializationError)
	}
	var b []byte
	b = protowire.AppendTag(b, wrapperField, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, uint64(i))
	return b, nil
}

func (sfixed64Serializer) Read(data []byte) (any, error) {
	num, typ, n := protowire.ConsumeTag(data)
	if n < 0 || num != wrapperField || typ != protowire.Fixed64Type {
		return nil, fmt.Errorf("msg: malformed sfixed64 wrapper: %w", ErrSerializationError)
	}
	data = data[n:]
	v, n := protowire.ConsumeFixed64(data)
	if n < 0 {
		return nil, fmt.Errorf("msg: malformed sfixed64 payload: %w", ErrSerializationError)
	}
	return int64(v), nil
}

type floatSerializer struct{}

func (floatSerializer) Write(v any) ([]byte, error) {
	f, ok := v.(float32)
	if !ok {
		return nil, fmt.Errorf("msg: float serializer wants float32, got %T: %w", v, ErrSerializationError)
	}
	var b []byte
	b = protowire.AppendTag(b, wrapperField, protowire.Fixed32Type)
	b = protowire.AppendFixed32(b, math.Float32bits(f))
	return b, nil
}

func (floatSerializer) Read(data []byte) (any, error) {
	num, typ, n := protowire.ConsumeTag(data)
	if n < 0 || num != wrapperField || typ != protowire.Fixed32Type {
		return nil, fmt.Errorf("msg: malformed float wrapper: %w", ErrSerializationError)
	}
	data = data[n:]
	v, n := protowire.ConsumeFixed32(data)
	if n < 0 {
		return nil, fmt.Errorf("msg: malformed float payload: %w", ErrSerializationError)
	}
	return math.Float32frombits(v), nil
}

type doubleSerializer struct{}

func (doubleSerializer) Write(v any) ([]byte, error) {
	f, ok := v.(float64)
	if !ok {
		return nil, fmt.Errorf("msg: double serializer wants float64, got %T: %w", v, ErrSerializationError)
	}
	var b []byte
	b = protowire.AppendTag(b, wrapperField, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, math.Float64bits(f))
	return b, nil
}

func (doubleSerializer) Read(data []byte) (any, error) {
	num, typ, n := protowire.ConsumeTag(data)
	if n < 0 || num != wrapperField || typ != protowire.Fixed64Type {
		return nil, fmt.Errorf("msg: malformed double wrapper: %w", ErrSerializationError)
	}
	data = data[n:]
	v, n := protowire.ConsumeFixed64(data)
	if n < 0 {
		return nil, fmt.Errorf("msg: malformed double payload: %w", ErrSerializationError)
	}
	return math.Float64frombits(v), nil
}

// stringSerializer transmits the raw UTF-8 bytes with no envelope; a
// text/string payload is the string's bytes themselves.
type stringSerializer struct{}

func (stringSerializer) Write(v any) ([]byte, error) {
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("msg: string serializer wants string, got %T: %w", v, ErrSerializationError)
	}
	return []byte(s), nil
}

func (stringSerializer) Read(data []byte) (any, error) {
	return string(data), nil
}

// bytesSerializer passes raw bytes through unchanged.
type bytesSerializer struct{}

func (bytesSerializer) Write(v any) ([]byte, error) {
	b, ok := v.([]byte)
	if !ok {
		return nil, fmt.Errorf("msg: bytes serializer wants []byte, got %T: %w", v, ErrSerializationError)
	}
	return b, nil
}

func (bytesSerializer) Read(data []byte) (any, error) {
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// jsonSerializer marshals/unmarshals arbitrary Go values as JSON, for the
// application/json mime-type.
type jsonSerializer struct{}

func (jsonSerializer) Write(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("msg: json serializer: %w: %w", err, ErrSerializationError)
	}
	return b, nil
}

func (jsonSerializer) Read(data []byte) (any, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("msg: json deserializer: %w: %w", err, ErrSerializationError)
	}
	return v, nil
}

// nativeSerializer is the catch-all: it passes the byte slice straight
// through, leaving interpretation entirely to the collaborator.
type nativeSerializer struct{}

func (nativeSerializer) Write(v any) ([]byte, error) {
	if b, ok := v.([]byte); ok {
		return b, nil
	}
	return nil, fmt.Errorf("msg: native serializer wants []byte, got %T: %w", v, ErrSerializationError)
}

func (nativeSerializer) Read(data []byte) (any, error) {
	return data, nil
}

// int32ArraySerializer encodes a repeated sint32 as back-to-back zigzag
// varints, one wrapper-field tag each (protobuf "unpacked" layout).
type int32ArraySerializer struct{}

func (int32ArraySerializer) Write(v any) ([]byte, error) {
	vals, ok := v.([]int32)
	if !ok {
		return nil, fmt.Errorf("msg: sint32 array serializer wants []int32, got %T: %w", v, ErrSerializationError)
	}
	var b []byte
	for _, i := range vals {
		b = protowire.AppendTag(b, wrapperField, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeZigZag(int64(i)))
	}
	return b, nil
}

func (int32ArraySerializer) Read(data []byte) (any, error) {
	var out []int32
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 || num != wrapperField || typ != protowire.VarintType {
			return nil, fmt.Errorf("msg: malformed sint32 array element: %w", ErrSerializationError)
		}
		data = data[n:]
		v, n := protowire.ConsumeVarint(data)
		if n < 0 {
			return nil, fmt.Errorf("msg: malformed sint32 array element payload: %w", ErrSerializationError)
		}
		out = append(out, int32(protowire.DecodeZigZag(v)))
		data = data[n:]
	}
	return out, nil
}

// int64ArraySerializer encodes a repeated sint64 as back-to-back zigzag
// varints, one wrapper-field tag each.
type int64ArraySerializer struct{}

func (int64ArraySerializer) Write(v any) ([]byte, error) {
	vals, ok := v.([]int64)
	if !ok {
		return nil, fmt.Errorf("msg: sint64 array serializer wants []int64, got %T: %w", v, ErrSerializationError)
	}
	var b []byte
	for _, i := range vals {
		b = protowire.AppendTag(b, wrapperField, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeZigZag(i))
	}
	return b, nil
}

func (int64ArraySerializer) Read(data []byte) (any, error) {
	var out []int64
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 || num != wrapperField || typ != protowire.VarintType {
			return nil, fmt.Errorf("msg: malformed sint64 array element: %w", ErrSerializationError)
		}
		data = data[n:]
		v, n := protowire.ConsumeVarint(data)
		if n < 0 {
			return nil, fmt.Errorf("msg: malformed sint64 array element payload: %w", ErrSerializationError)
		}
		out = append(out, protowire.DecodeZigZag(v))
		data = data[n:]
	}
	return out, nil
}

// sfixed32ArraySerializer encodes a repeated sfixed32 as back-to-back
// fixed32 wrapper fields.
type sfixed32ArraySerializer struct{}

func (sfixed32ArraySerializer) Write(v any) ([]byte, error) {
	vals, ok := v.([]int32)
	if !ok {
		return nil, fmt.Errorf("msg: sfixed32 array serializer wants []int32, got %T: %w", v, ErrSerializationError)
	}
	var b []byte
	for _, i := range vals {
		b = protowire.AppendTag(b, wrapperField, protowire.Fixed32Type)
		b = protowire.AppendFixed32(b, uint32(i))
	}
	return b, nil
}

func (sfixed32ArraySerializer) Read(data []byte) (any, error) {
	var out []int32
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 || num != wrapperField || typ != protowire.Fixed32Type {
			return nil, fmt.Errorf("msg: malformed sfixed32 array element: %w", ErrSerializationError)
		}
		data = data[n:]
		v, n := protowire.ConsumeFixed32(data)
		if n < 0 {
			return nil, fmt.Errorf("msg: malformed sfixed32 array element payload: %w", ErrSerializationError)
		}
		out = append(out, int32(v))
		data = data[n:]
	}
	return out, nil
}

// sfixed64ArraySerializer encodes a repeated sfixed64 as back-to-back
// fixed64 wrapper fields.
type sfixed64ArraySerializer struct{}

func (sfixed64ArraySerializer) Write(v any) ([]byte, error) {
	vals, ok := v.([]int64)
	if !ok {
		return nil, fmt.Errorf("msg: sfixed64 array serializer wants []int64, got %T: %w", v, ErrSerializationError)
	}
	var b []byte
	for _, i := range vals {
		b = protowire.AppendTag(b, wrapperField, protowire.Fixed64Type)
		b = protowire.AppendFixed64(b, uint64(i))
	}
	return b, nil
}

func (sfixed64ArraySerializer) Read(data []byte) (any, error) {
	var out []int64
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 || num != wrapperField || typ != protowire.Fixed64Type {
			return nil, fmt.Errorf("msg: malformed sfixed64 array element: %w", ErrSerializationError)
		}
		data = data[n:]
		v, n := protowire.ConsumeFixed64(data)
		if n < 0 {
			return nil, fmt.Errorf("msg: malformed sfixed64 array element payload: %w", ErrSerializationError)
		}
		out = append(out, int64(v))
		data = data[n:]
	}
	return out, nil
}

// floatArraySerializer encodes a repeated float as back-to-back fixed32
// wrapper fields.
type floatArraySerializer struct{}

func (floatArraySerializer) Write(v any) ([]byte, error) {
	vals, ok := v.([]float32)
	if !ok {
		return nil, fmt.Errorf("msg: float array serializer wants []float32, got %T: %w", v, ErrSerializationError)
	}
	var b []byte
	for _, f := range vals {
		b = protowire.AppendTag(b, wrapperField, protowire.Fixed32Type)
		b = protowire.AppendFixed32(b, math.Float32bits(f))
	}
	return b, nil
}

func (floatArraySerializer) Read(data []byte) (any, error) {
	var out []float32
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 || num != wrapperField || typ != protowire.Fixed32Type {
			return nil, fmt.Errorf("msg: malformed float array element: %w", ErrSerializationError)
		}
		data = data[n:]
		v, n := protowire.ConsumeFixed32(data)
		if n < 0 {
			return nil, fmt.Errorf("msg: malformed float array element payload: %w", ErrSerializationError)
		}
		out = append(out, math.Float32frombits(v))
		data = data[n:]
	}
	return out, nil
}

// doubleArraySerializer encodes a repeated double as back-to-back fixed64
// wrapper fields.
type doubleArraySerializer struct{}

func (doubleArraySerializer) Write(v any) ([]byte, error) {
	vals, ok := v.([]float64)
	if !ok {
		return nil, fmt.Errorf("msg: double array serializer wants []float64, got %T: %w", v, ErrSerializationError)
	}
	var b []byte
	for _, f := range vals {
		b = protowire.AppendTag(b, wrapperField, protowire.Fixed64Type)
		b = protowire.AppendFixed64(b, math.Float64bits(f))
	}
	return b, nil
}

func (doubleArraySerializer) Read(data []byte) (any, error) {
	var out []float64
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 || num != wrapperField || typ != protowire.Fixed64Type {
			return nil, fmt.Errorf("msg: malformed double array element: %w", ErrSerializationError)
		}
		data = data[n:]
		v, n := protowire.ConsumeFixed64(data)
		if n < 0 {
			return nil, fmt.Errorf("msg: malformed double array element payload: %w", ErrSerializationError)
		}
		out = append(out, math.Float64frombits(v))
		data = data[n:]
	}
	return out, nil
}

// stringArraySerializer encodes a repeated string as back-to-back
// length-delimited wrapper fields.
type stringArraySerializer struct{}

func (stringArraySerializer) Write(v any) ([]byte, error) {
	vals, ok := v.([]string)
	if !ok {
		return nil, fmt.Errorf("msg: string array serializer wants []string, got %T: %w", v, ErrSerializationError)
	}
	var b []byte
	for _, s := range vals {
		b = protowire.AppendTag(b, wrapperField, protowire.BytesType)
		b = protowire.AppendString(b, s)
	}
	return b, nil
}

func (stringArraySerializer) Read(data []byte) (any, error) {
	var out []string
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 || num != wrapperField || typ != protowire.BytesType {
			return nil, fmt.Errorf("msg: malformed string array element: %w", ErrSerializationError)
		}
		data = data[n:]
		s, n := protowire.ConsumeString(data)
		if n < 0 {
			return nil, fmt.Errorf("msg: malformed string array element payload: %w", ErrSerializationError)
		}
		out = append(out, s)
		data = data[n:]
	}
	return out, nil
}

// StandardDataTypes returns the EngineDataType bridge for every
// predefined mime-type this module ships a codec for.
func StandardDataTypes() map[string]EngineDataType {
	reg := func(mime string, s Serializer) EngineDataType {
		return EngineDataType{MimeType: mime, Serializer: s}
	}
	types := map[string]EngineDataType{
		MimeSInt32:        reg(MimeSInt32, sint32Serializer{}),
		MimeSInt64:        reg(MimeSInt64, sint64Serializer{}),
		MimeSFixed32:      reg(MimeSFixed32, sfixed32Serializer{}),
		MimeSFixed64:      reg(MimeSFixed64, sfixed64Serializer{}),
		MimeFloat:         reg(MimeFloat, floatSerializer{}),
		MimeDouble:        reg(MimeDouble, doubleSerializer{}),
		MimeString:        reg(MimeString, stringSerializer{}),
		MimeBytes:         reg(MimeBytes, bytesSerializer{}),
		MimeJSON:          reg(MimeJSON, jsonSerializer{}),
		MimeNative:        reg(MimeNative, nativeSerializer{}),
		MimeSInt32Array:   reg(MimeSInt32Array, int32ArraySerializer{}),
		MimeSInt64Array:   reg(MimeSInt64Array, int64ArraySerializer{}),
		MimeSFixed32Array: reg(MimeSFixed32Array, sfixed32ArraySerializer{}),
		MimeSFixed64Array: reg(MimeSFixed64Array, sfixed64ArraySerializer{}),
		MimeFloatArray:    reg(MimeFloatArray, floatArraySerializer{}),
		MimeDoubleArray:   reg(MimeDoubleArray, doubleArraySerializer{}),
		MimeStringArray:   reg(MimeStringArray, stringArraySerializer{}),
	}
	return types
}
