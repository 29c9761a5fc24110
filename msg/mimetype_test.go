package msg

import (
	"reflect"
	"testing"
)

func TestSInt32RoundTrip(t *testing.T) {
	dt := StandardDataTypes()[MimeSInt32]
	data, err := dt.Serializer.Write(int32(-42))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := dt.Serializer.Read(data)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got != int32(-42) {
		t.Errorf("round trip = %v, want -42", got)
	}
}

func TestDoubleRoundTrip(t *testing.T) {
	dt := StandardDataTypes()[MimeDouble]
	data, err := dt.Serializer.Write(float64(3.14159))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := dt.Serializer.Read(data)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got != float64(3.14159) {
		t.Errorf("round trip = %v, want 3.14159", got)
	}
}

func TestStringHasNoEnvelope(t *testing.T) {
	dt := StandardDataTypes()[MimeString]
	data, err := dt.Serializer.Write("hello")
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("raw bytes = %q, want %q (no envelope)", data, "hello")
	}
}

func TestJSONRoundTrip(t *testing.T) {
	dt := StandardDataTypes()[MimeJSON]
	in := map[string]any{"name": "asimov", "count": float64(3)}
	data, err := dt.Serializer.Write(in)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := dt.Serializer.Read(data)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !reflect.DeepEqual(got, in) {
		t.Errorf("round trip = %v, want %v", got, in)
	}
}

func TestSInt32ArrayRoundTrip(t *testing.T) {
	dt := StandardDataTypes()[MimeSInt32Array]
	in := []int32{1, -2, 3, -4}
	data, err := dt.Serializer.Write(in)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := dt.Serializer.Read(data)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !reflect.DeepEqual(got, in) {
		t.Errorf("round trip = %v, want %v", got, in)
	}
}

func TestNativeSerializerPassesBytesThrough(t *testing.T) {
	dt := StandardDataTypes()[MimeNative]
	in := []byte{0xde, 0xad, 0xbe, 0xef}
	data, err := dt.Serializer.Write(in)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := dt.Serializer.Read(data)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !reflect.DeepEqual(got, in) {
		t.Errorf("round trip = %v, want %v", got, in)
	}
}

func TestWriteRejectsWrongType(t *testing.T) {
	dt := StandardDataTypes()[MimeSInt32]
	if _, err := dt.Serializer.Write("not an int32"); err == nil {
		t.Errorf("expected error for wrong type")
	}
}
