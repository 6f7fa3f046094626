package kad

import (
	"bytes"
	"errors"
	"testing"
)

func TestNewID(t *testing.T) {
	tests := []struct {
		name    string
		input   []byte
		want    string
		wantErr bool
	}{
		{name: "exact width", input: bytes.Repeat([]byte{0xab}, IDBytes), want: "0xabababababababababababababababababababab"},
		{name: "short input left padded", input: []byte{0x01, 0x02}, want: "0x0000000000000000000000000000000000000102"},
		{name: "empty input", input: nil, want: "0x0000000000000000000000000000000000000000"},
		{name: "too long", input: bytes.Repeat([]byte{0x01}, IDBytes+1), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := NewID(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedID) {
					t.Fatalf("NewID() error = %v, want ErrMalformedID", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewID() error = %v", err)
			}
			if id.String() != tt.want {
				t.Errorf("NewID() = %s, want %s", id, tt.want)
			}
		})
	}
}

func TestNewIDFromHex(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int64
		wantErr bool
	}{
		{name: "with prefix", input: "0x2a", want: 42},
		{name: "without prefix", input: "2a", want: 42},
		{name: "odd length", input: "f", want: 15},
		{name: "invalid hex", input: "0xzz", wantErr: true},
		{name: "too long", input: "01" + string(bytes.Repeat([]byte("00"), IDBytes)), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := NewIDFromHex(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedID) {
					t.Fatalf("NewIDFromHex() error = %v, want ErrMalformedID", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewIDFromHex() error = %v", err)
			}
			if want := NewIDFromInt(tt.want); !id.Equals(want) {
				t.Errorf("NewIDFromHex(%q) = %s, want %s", tt.input, id, want)
			}
		})
	}
}

func TestIDCompare(t *testing.T) {
	a := NewIDFromInt(1)
	b := NewIDFromInt(2)
	if a.Compare(b) >= 0 {
		t.Error("1 should sort before 2")
	}
	if !a.Less(b) || b.Less(a) {
		t.Error("Less disagrees with Compare")
	}
	if a.Compare(a) != 0 {
		t.Error("an ID should compare equal to itself")
	}
}

func TestIDXor(t *testing.T) {
	a := NewIDFromInt(0b1100)
	b := NewIDFromInt(0b1010)
	want := NewIDFromInt(0b0110)
	if got := a.Xor(b); !got.Equals(want) {
		t.Errorf("Xor() = %s, want %s", got, want)
	}
	if !a.Xor(a).IsZero() {
		t.Error("x XOR x should be zero")
	}
	if d := a.Distance(b); d.Int64() != 0b0110 {
		t.Errorf("Distance() = %d, want 6", d.Int64())
	}
}

func TestDecodeID(t *testing.T) {
	raw := bytes.Repeat([]byte{0x5c}, IDBytes+3)
	id, err := DecodeID(raw)
	if err != nil {
		t.Fatalf("DecodeID() error = %v", err)
	}
	if !bytes.Equal(id.Bytes(), raw[:IDBytes]) {
		t.Error("DecodeID should take exactly the first 20 bytes")
	}
	if _, err := DecodeID(raw[:IDBytes-1]); !errors.Is(err, ErrMalformedID) {
		t.Errorf("short buffer error = %v, want ErrMalformedID", err)
	}
}

func TestHashID(t *testing.T) {
	a := HashID([]byte("payload"))
	b := HashID([]byte("payload"))
	c := HashID([]byte("other"))
	if !a.Equals(b) {
		t.Error("hashing the same content twice should agree")
	}
	if a.Equals(c) {
		t.Error("different content should not collide")
	}
	if a.IsZero() {
		t.Error("digest should not be zero")
	}
}

func TestRandomID(t *testing.T) {
	if RandomID().Equals(RandomID()) {
		t.Error("two random IDs collided")
	}
}
