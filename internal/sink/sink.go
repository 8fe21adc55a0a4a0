// Package sink delivers prepared RS41 bursts to a transmitter: an RF
// module on a serial port, an audio output or any io.Writer.
package sink

import (
	"context"
	"errors"

	"rs41sim/internal/rs41"
)

// ErrClosed is returned by writes after Close.
var ErrClosed = errors.New("sink: closed")

// Wire format
const (
	PreambleLength = 40
	PreambleByte   = 0x55
	WireLength     = PreambleLength + rs41.FrameLength
)

// Sink transmits one burst per Write. Writes are serialized by the caller.
type Sink interface {
	Write(ctx context.Context, burst []byte) error
	Close() error
}

// Burst prepends the preamble to a whitened frame.
func Burst(whitened []byte) []byte {
	out := make([]byte, PreambleLength, WireLength)
	for i := range out {
		out[i] = PreambleByte
	}
	n := min(len(whitened), rs41.FrameLength)
	out = append(out, whitened[:n]...)
	return out[:PreambleLength+n]
}
