package network

import (
	"bytes"
	"testing"
)

func TestFrame_EncodeDecodeRoundTrip(t *testing.T) {
	f := &Frame{Version: protocolVersion, Type: MessageResponse, Flags: 0x1, Payload: []byte("hello")}
	copy(f.CorrelationID[:], []byte("0123456789abcdef"))

	buf := bytes.NewBuffer(f.Encode())
	got, err := ReadFrame(buf)
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if got.Version != f.Version || got.Type != f.Type || got.Flags != f.Flags {
		t.Fatalf("header mismatch: %+v vs %+v", got, f)
	}
	if got.CorrelationID != f.CorrelationID {
		t.Fatalf("correlation id mismatch")
	}
	if !bytes.Equal(got.Payload, f.Payload) {
		t.Fatalf("payload mismatch: %q vs %q", got.Payload, f.Payload)
	}
}

func TestFrame_EmptyPayloadRoundTrips(t *testing.T) {
	f := &Frame{Version: protocolVersion, Type: MessageHeartbeat}
	buf := bytes.NewBuffer(f.Encode())
	got, err := ReadFrame(buf)
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if len(got.Payload) != 0 {
		t.Fatalf("expected empty payload, got %d bytes", len(got.Payload))
	}
}

func TestReadFrame_RejectsOversizedLength(t *testing.T) {
	f := &Frame{Version: protocolVersion, Type: MessageRequest}
	buf := f.Encode()
	buf[0] = 0xFF // corrupt the length field to something absurd
	_, err := ReadFrame(bytes.NewReader(buf))
	if err == nil {
		t.Fatal("expected an error for an oversized length field")
	}
}

func TestReadFrame_TruncatedHeaderErrors(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader([]byte{1, 2, 3}))
	if err == nil {
		t.Fatal("expected an error for a truncated header")
	}
}

func TestFrame_ReleaseIsSafeForLocalAndPooledFrames(t *testing.T) {
	local := &Frame{Version: protocolVersion, Type: MessageRequest, Payload: []byte("x")}
	local.Release() // no-op, payload was not obtained from the pool

	f := &Frame{Version: protocolVersion, Type: MessageResponse, Payload: []byte("hello")}
	buf := bytes.NewBuffer(f.Encode())
	got, err := ReadFrame(buf)
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	got.Release()
	got.Release() // double release must not panic
}
