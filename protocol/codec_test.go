package protocol

import (
	"testing"
	"time"
)

func TestReaderIntegers(t *testing.T) {
	buf := []byte{0x01, 0x02, 0x00, 0x03, 0x00, 0x00, 0x04, 0x00, 0x00, 0x00}
	r := NewReader(buf)
	if got := r.Byte(); got != 0x01 {
		t.Fatalf("Byte() = %#x, want 0x01", got)
	}
	if got := r.Uint16(); got != 0x0002 {
		t.Fatalf("Uint16() = %#x, want 0x0002", got)
	}
	if got := r.Uint24(); got != 0x000003 {
		t.Fatalf("Uint24() = %#x, want 0x000003", got)
	}
	if got := r.Uint32(); got != 0x00000004 {
		t.Fatalf("Uint32() = %#x, want 0x00000004", got)
	}
	if r.Err() != nil {
		t.Fatalf("unexpected error: %v", r.Err())
	}
}

func TestReaderShortBufferSetsError(t *testing.T) {
	r := NewReader([]byte{0x01})
	r.Uint32()
	if r.Err() == nil {
		t.Fatal("expected short-buffer error")
	}
	// Once in an error state, subsequent reads stay in the error state
	// instead of panicking or reading past the end.
	if got := r.Byte(); got != 0 {
		t.Errorf("expected zero value after error, got %v", got)
	}
}

func TestNullTerminatedStringRoundTrip(t *testing.T) {
	w := NewWriter(0)
	w.NullTerminatedString("root")
	w.Byte(0xff) // trailing marker to prove the cursor stopped at the terminator

	r := NewReader(w.Bytes())
	if got := r.NullTerminatedString(); got != "root" {
		t.Fatalf("NullTerminatedString() = %q, want %q", got, "root")
	}
	if got := r.Byte(); got != 0xff {
		t.Fatalf("expected trailing marker 0xff, got %#x", got)
	}
}

func TestNullTerminatedStringMissingTerminator(t *testing.T) {
	r := NewReader([]byte("no-terminator"))
	r.NullTerminatedString()
	if r.Err() == nil {
		t.Fatal("expected error for missing terminator")
	}
}

func TestLengthEncodedIntRoundTrip(t *testing.T) {
	cases := []uint64{0, 250, 251, 65535, 65536, 16777215, 16777216, 1 << 40}
	for _, v := range cases {
		w := NewWriter(0)
		w.LengthEncodedInt(v)
		r := NewReader(w.Bytes())
		got, ok := r.LengthEncodedInt()
		if !ok {
			t.Fatalf("LengthEncodedInt(%d): unexpected NULL", v)
		}
		if got != v {
			t.Errorf("LengthEncodedInt round trip: got %d, want %d", got, v)
		}
	}
}

func TestLengthEncodedIntNull(t *testing.T) {
	r := NewReader([]byte{0xfb})
	_, ok := r.LengthEncodedInt()
	if ok {
		t.Fatal("expected NULL length-encoded integer to report ok=false")
	}
	if r.Err() != nil {
		t.Fatalf("NULL tag should not itself be an error, got %v", r.Err())
	}
}

func TestLengthEncodedStringRoundTrip(t *testing.T) {
	w := NewWriter(0)
	w.LengthEncodedString([]byte("hello world"))
	r := NewReader(w.Bytes())
	got, ok := r.LengthEncodedString()
	if !ok {
		t.Fatal("expected ok=true")
	}
	if string(got) != "hello world" {
		t.Errorf("LengthEncodedString() = %q, want %q", got, "hello world")
	}
}

func TestNullBitmapRoundTrip(t *testing.T) {
	nulls := []bool{false, true, false, true, true, false, false, true, true}
	raw := NullBitmap(nulls, 2)

	r := NewReader(raw)
	got := r.NullBitmap(len(nulls), 2)
	if len(got) != len(nulls) {
		t.Fatalf("got %d entries, want %d", len(got), len(nulls))
	}
	for i := range nulls {
		if got[i] != nulls[i] {
			t.Errorf("index %d: got %v, want %v", i, got[i], nulls[i])
		}
	}
}

func TestEncodeDecodeBinaryDateTime(t *testing.T) {
	cases := []time.Time{
		{},
		time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC),
		time.Date(2024, time.March, 5, 13, 45, 9, 0, time.UTC),
		time.Date(2024, time.March, 5, 13, 45, 9, 123000, time.UTC),
	}
	for _, want := range cases {
		enc := EncodeBinaryDateTime(want)
		if want.IsZero() {
			if enc != nil {
				t.Errorf("zero time should encode to nil, got %v", enc)
			}
			continue
		}
		length := enc[0]
		r := NewReader(enc[1:])
		got := DecodeBinaryDateTime(r, length)
		if !got.Equal(want) {
			t.Errorf("round trip mismatch: got %v, want %v", got, want)
		}
	}
}

func TestEncodeDecodeBinaryDuration(t *testing.T) {
	cases := []time.Duration{
		0,
		5 * time.Hour,
		-(26 * time.Hour + 3*time.Minute + 2*time.Second),
		3*time.Hour + 250*time.Microsecond,
	}
	for _, want := range cases {
		enc := EncodeBinaryDuration(want)
		if want == 0 {
			if enc != nil {
				t.Errorf("zero duration should encode to nil, got %v", enc)
			}
			continue
		}
		length := enc[0]
		r := NewReader(enc[1:])
		got := DecodeBinaryDuration(r, length)
		if got != want {
			t.Errorf("round trip mismatch: got %v, want %v", got, want)
		}
	}
}
