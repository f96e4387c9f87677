package core

import (
	"encoding/json"
	"errors"

	"github.com/dkeye/Prompter/internal/domain"
)

// Frame is an encoded outbound message.
type Frame []byte

var (
	ErrBackpressure     = errors.New("backpressure")
	ErrConnectionClosed = errors.New("connection closed")
)

// SignalConnection abstracts the messaging transport.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	// TrySend must never block.
	TrySend(Frame) error
	Close()
}

// Encode wraps payload into the {"type", "payload"} envelope.
func Encode(typ string, payload any) (Frame, error) {
	return json.Marshal(domain.Message{Type: typ, Payload: payload})
}
