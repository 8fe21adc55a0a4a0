package sink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.bug.st/serial"
)

// DefaultSerialTimeout bounds a single burst write.
const DefaultSerialTimeout = 700 * time.Millisecond

// ErrWriteTimeout is returned when the port does not accept a burst in time.
var ErrWriteTimeout = errors.New("sink: serial write timed out")

// SerialConfig describes a transmitter attached to a serial port.
type SerialConfig struct {
	Port    string
	Baud    int
	Timeout time.Duration
	Header  RFHeader
}

// Serial sends each burst, prefixed with an RF header, to a serial
// transmitter.
type Serial struct {
	mu      sync.Mutex
	port    io.WriteCloser
	name    string
	header  RFHeader
	timeout time.Duration
	logger  *logrus.Logger
	closed  bool
}

// OpenSerial opens the configured port at 8N1.
func OpenSerial(cfg SerialConfig, logger *logrus.Logger) (*Serial, error) {
	if cfg.Baud == 0 {
		cfg.Baud = DefaultSerialBaud
	}
	mode := &serial.Mode{
		BaudRate: cfg.Baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(cfg.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", cfg.Port, err)
	}
	if err := port.SetReadTimeout(cfg.Timeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set timeout on %s: %w", cfg.Port, err)
	}

	logger.WithFields(logrus.Fields{
		"port":      cfg.Port,
		"baud":      cfg.Baud,
		"frequency": cfg.Header.Frequency,
		"power":     cfg.Header.Power,
	}).Info("Serial transmitter opened")

	return NewSerial(port, cfg.Port, cfg.Header, cfg.Timeout, logger), nil
}

// NewSerial wraps an already open port.
func NewSerial(port io.WriteCloser, name string, header RFHeader, timeout time.Duration, logger *logrus.Logger) *Serial {
	if timeout <= 0 {
		timeout = DefaultSerialTimeout
	}
	return &Serial{
		port:    port,
		name:    name,
		header:  header,
		timeout: timeout,
		logger:  logger,
	}
}

// Write sends the header and burst in one write.
func (s *Serial) Write(ctx context.Context, burst []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	msg := s.header.Encode(burst)
	done := make(chan error, 1)
	go func() {
		_, err := s.port.Write(msg)
		done <- err
	}()

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("serial write to %s: %w", s.name, err)
		}
	case <-timer.C:
		return fmt.Errorf("%w: %s after %v", ErrWriteTimeout, s.name, s.timeout)
	case <-ctx.Done():
		return ctx.Err()
	}

	s.logger.WithFields(logrus.Fields{
		"port":  s.name,
		"bytes": len(msg),
	}).Debug("Burst written to serial transmitter")
	return nil
}

// Close closes the port.
func (s *Serial) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.port.Close()
}
