package sink

import (
	"context"
	"io"
	"sync"
)

// Writer copies raw bursts to an io.Writer. It is used for dry runs and
// recordings.
type Writer struct {
	mu     sync.Mutex
	w      io.Writer
	closed bool
}

// NewWriter creates a Writer around w. Close closes w when it is an
// io.Closer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write copies burst to the underlying writer.
func (w *Writer) Write(ctx context.Context, burst []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	_, err := w.w.Write(burst)
	return err
}

// Close marks the sink closed.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if c, ok := w.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
