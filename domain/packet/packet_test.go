package packet

import (
	"bytes"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	f := &Frame{
		Chksum:  0xdeadbeef,
		Ack:     0x1,
		Flag:    FlagPiggybackAck,
		Len:     5,
		Payload: []byte("HELLOpadpadpad"),
	}
	copy(f.Nonce[:], []byte{1, 2, 3, 4, 5, 6, 7, 8})

	wire := Encode(nil, f, 4)
	if len(wire) != PayloadOffset+5+4 {
		t.Fatalf("unexpected wire length: %d", len(wire))
	}

	var got Frame
	if !Decode(wire, len(wire), &got) {
		t.Fatalf("decode failed")
	}
	if got.Chksum != f.Chksum || got.Ack != f.Ack || got.Flag != f.Flag || got.Len != f.Len {
		t.Fatalf("decoded header mismatch: %+v", got)
	}
	if !bytes.Equal(got.Payload, []byte("HELLO")) {
		t.Fatalf("decoded payload mismatch: %q", got.Payload)
	}
	if got.Nonce != f.Nonce {
		t.Fatalf("decoded nonce mismatch")
	}
}

func TestDecodeRejectsShortWire(t *testing.T) {
	var f Frame
	if Decode(make([]byte, PayloadOffset-1), PayloadOffset-1, &f) {
		t.Fatalf("expected decode to fail on truncated header")
	}
}

func TestDecodeRejectsOverflowingLen(t *testing.T) {
	f := &Frame{Len: 10, Payload: make([]byte, 10)}
	wire := Encode(nil, f, 0)
	// Truncate so the declared len no longer fits.
	truncated := wire[:PayloadOffset+5]
	var got Frame
	if Decode(truncated, len(truncated), &got) {
		t.Fatalf("expected decode to fail when declared len overflows received bytes")
	}
}

func TestAuthenticatedRegionExcludesNonceAckAndPadding(t *testing.T) {
	f1 := &Frame{Flag: 0, Len: 3, Payload: []byte("abc")}
	copy(f1.Nonce[:], []byte{1, 1, 1, 1, 1, 1, 1, 1})
	f1.Ack = 0xAAAA

	f2 := &Frame{Flag: 0, Len: 3, Payload: []byte("abc")}
	copy(f2.Nonce[:], []byte{2, 2, 2, 2, 2, 2, 2, 2})
	f2.Ack = 0xBBBB

	r1 := f1.AuthenticatedRegion(nil)
	r2 := f2.AuthenticatedRegion(nil)
	if !bytes.Equal(r1, r2) {
		t.Fatalf("authenticated region should be independent of nonce/ack: %x vs %x", r1, r2)
	}
}

func TestIsHeartbeatAndBundle(t *testing.T) {
	hb := &Frame{Len: 0}
	if !hb.IsHeartbeat() {
		t.Fatalf("expected heartbeat")
	}
	bundle := &Frame{Flag: FlagAckBundle}
	if !bundle.IsAckBundle() {
		t.Fatalf("expected ack bundle flag set")
	}
	pb := &Frame{Flag: FlagPiggybackAck}
	if !pb.HasPiggybackAck() {
		t.Fatalf("expected piggyback ack flag set")
	}
}
