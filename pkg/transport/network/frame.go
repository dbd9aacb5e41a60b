// Package network is C8: a pool of authenticated TLS connections keyed by
// peer identity, a fixed binary frame format, retrying requests with
// full-jitter backoff, and a per-peer circuit breaker.
package network

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/commy-mesh/commy/pkg/bufpool"
)

// MessageType classifies a frame's payload.
type MessageType uint8

const (
	MessageRequest MessageType = iota
	MessageResponse
	MessageHeartbeat
	MessageError
)

func (t MessageType) String() string {
	switch t {
	case MessageRequest:
		return "request"
	case MessageResponse:
		return "response"
	case MessageHeartbeat:
		return "heartbeat"
	case MessageError:
		return "error"
	default:
		return "unknown"
	}
}

// headerLen is 4 (length) + 1 (version) + 1 (type) + 2 (flags) + 16
// (correlation id) bytes, ahead of the payload.
const headerLen = 24

const protocolVersion = 1

const maxFrameLength = 64 << 20 // 64MiB, guards against a corrupt length field

// Frame is one message on the wire.
type Frame struct {
	Version       byte
	Type          MessageType
	Flags         uint16
	CorrelationID [16]byte
	Payload       []byte

	pooled bool // true if Payload came from bufpool and Release should return it
}

// Encode serializes f to its wire form.
func (f *Frame) Encode() []byte {
	buf := make([]byte, headerLen+len(f.Payload))
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(f.Payload)))
	buf[4] = f.Version
	buf[5] = byte(f.Type)
	binary.BigEndian.PutUint16(buf[6:8], f.Flags)
	copy(buf[8:24], f.CorrelationID[:])
	copy(buf[24:], f.Payload)
	return buf
}

// WriteFrame encodes and writes f to w.
func WriteFrame(w io.Writer, f *Frame) error {
	_, err := w.Write(f.Encode())
	return err
}

// ReadFrame reads one frame from r.
func ReadFrame(r io.Reader) (*Frame, error) {
	header := make([]byte, headerLen)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}

	length := binary.BigEndian.Uint32(header[0:4])
	if length > maxFrameLength {
		return nil, fmt.Errorf("network: frame length %d exceeds max %d", length, maxFrameLength)
	}

	f := &Frame{
		Version: header[4],
		Type:    MessageType(header[5]),
		Flags:   binary.BigEndian.Uint16(header[6:8]),
	}
	copy(f.CorrelationID[:], header[8:24])

	if length > 0 {
		f.Payload = bufpool.Get(int(length))
		f.pooled = true
		if _, err := io.ReadFull(r, f.Payload); err != nil {
			bufpool.Put(f.Payload)
			f.pooled = false
			return nil, err
		}
	}
	return f, nil
}

// Release returns f's payload buffer to the shared pool. Callers that read
// a frame with ReadFrame should call Release once they are done with its
// payload; frames built locally with Encode do not own a pooled buffer and
// Release is a no-op for them.
func (f *Frame) Release() {
	if f.pooled {
		bufpool.Put(f.Payload)
		f.Payload = nil
		f.pooled = false
	}
}
