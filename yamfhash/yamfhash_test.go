package yamfhash

import "testing"

func TestCreateVerify(t *testing.T) {
	msg := []byte("hello, bamboo")
	h := Create(msg)
	if len(h.Bytes()) != Size {
		t.Fatalf("got %d bytes, want %d", len(h.Bytes()), Size)
	}
	if err := Verify(h, msg); err != nil {
		t.Errorf("Verify failed on matching message: %s", err)
	}
	if err := Verify(h, []byte("different message")); err == nil {
		t.Error("Verify succeeded on non-matching message")
	}
}

func TestFromBytesRoundTrip(t *testing.T) {
	h := Create([]byte("round trip"))
	got, err := FromBytes(h.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if got != h {
		t.Errorf("got %x, want %x", got, h)
	}
}

func TestFromBytesRejectsWrongLength(t *testing.T) {
	if _, err := FromBytes([]byte{0x00, 0x40}); err == nil {
		t.Error("expected error for truncated input")
	}
}

func TestFromBytesRejectsUnsupportedType(t *testing.T) {
	b := Create([]byte("x")).Bytes()
	bad := make([]byte, len(b))
	copy(bad, b)
	bad[0] = 0x01
	if _, err := FromBytes(bad); err == nil {
		t.Error("expected error for unsupported hash type")
	}
}

func TestZero(t *testing.T) {
	if !Zero.IsZero() {
		t.Error("Zero.IsZero() = false")
	}
	h := Create([]byte("x"))
	if h.IsZero() {
		t.Error("computed hash reported as zero")
	}
}
