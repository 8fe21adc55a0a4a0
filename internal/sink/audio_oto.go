//go:build cgo

package sink

import (
	"fmt"
	"sync"

	"github.com/hajimehoshi/oto"
	"github.com/sirupsen/logrus"
)

// oto allows a single context per process; every audio sink shares it and
// gets its own player.
var (
	otoMu   sync.Mutex
	otoCtx  *oto.Context
	otoRate int
)

const otoBufferBytes = 8192

func sharedContext(sampleRate int) (*oto.Context, error) {
	otoMu.Lock()
	defer otoMu.Unlock()
	if otoCtx != nil {
		if otoRate != sampleRate {
			return nil, fmt.Errorf("audio output already running at %d Hz", otoRate)
		}
		return otoCtx, nil
	}
	c, err := oto.NewContext(sampleRate, 1, 2, otoBufferBytes)
	if err != nil {
		return nil, err
	}
	otoCtx, otoRate = c, sampleRate
	return c, nil
}

// OpenAudio opens a player on the default audio output.
func OpenAudio(cfg AudioConfig, logger *logrus.Logger) (*Audio, error) {
	cfg = cfg.withDefaults()
	c, err := sharedContext(cfg.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio output: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"sample_rate": cfg.SampleRate,
		"amplitude":   cfg.Amplitude,
	}).Info("Audio transmitter opened")

	return NewAudio(c.NewPlayer(), cfg, logger), nil
}
