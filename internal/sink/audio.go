package sink

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"
)

// DefaultAmplitude is the audio level used when none is configured.
const DefaultAmplitude = 0.5

// AudioConfig describes an audio transmitter.
type AudioConfig struct {
	SampleRate int
	Baud       int
	Amplitude  float64 // 0..1
}

func (c AudioConfig) withDefaults() AudioConfig {
	if c.SampleRate == 0 {
		c.SampleRate = DefaultSampleRate
	}
	if c.Baud == 0 {
		c.Baud = DefaultBaud
	}
	if c.Amplitude == 0 {
		c.Amplitude = DefaultAmplitude
	}
	return c
}

// Audio plays each burst as a shaped baseband waveform.
type Audio struct {
	mu     sync.Mutex
	player io.WriteCloser
	cfg    AudioConfig
	logger *logrus.Logger
	closed bool
}

// NewAudio renders bursts into player, which receives mono 16-bit PCM.
func NewAudio(player io.WriteCloser, cfg AudioConfig, logger *logrus.Logger) *Audio {
	return &Audio{
		player: player,
		cfg:    cfg.withDefaults(),
		logger: logger,
	}
}

// Render returns the PCM bytes Write would play for burst.
func (a *Audio) Render(burst []byte) []byte {
	return PCM16(Waveform(burst, a.cfg.SampleRate, a.cfg.Baud), a.cfg.Amplitude)
}

// Write renders and plays burst.
func (a *Audio) Write(ctx context.Context, burst []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	pcm := a.Render(burst)

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrClosed
	}
	if _, err := a.player.Write(pcm); err != nil {
		return fmt.Errorf("audio write: %w", err)
	}

	a.logger.WithFields(logrus.Fields{
		"samples":   len(pcm) / 2,
		"amplitude": a.cfg.Amplitude,
	}).Debug("Burst played")
	return nil
}

// Close stops the player.
func (a *Audio) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	return a.player.Close()
}
