// Package rtlsdr listens on the sonde channel with an RTL-SDR dongle and
// reports the bursts it hears.
package rtlsdr

import (
	"context"
	"math"
	"time"

	"github.com/sirupsen/logrus"
)

// Monitor defaults
const (
	DefaultFrequency   = 401400000
	DefaultSampleRate  = 1024000
	DefaultBlockLength = 1024 // IQ pairs per power estimate
	DefaultThresholdDB = 10
)

// Config tunes the dongle and the burst detector.
type Config struct {
	DeviceIndex int     `mapstructure:"device_index"`
	Frequency   uint32  `mapstructure:"frequency"`
	SampleRate  uint32  `mapstructure:"sample_rate"`
	Gain        int     `mapstructure:"gain"` // dB, 0 for automatic
	ThresholdDB float64 `mapstructure:"threshold_db"`
}

func (c Config) withDefaults() Config {
	if c.Frequency == 0 {
		c.Frequency = DefaultFrequency
	}
	if c.SampleRate == 0 {
		c.SampleRate = DefaultSampleRate
	}
	if c.ThresholdDB <= 0 {
		c.ThresholdDB = DefaultThresholdDB
	}
	return c
}

// Burst is one detected transmission.
type Burst struct {
	Start    time.Time
	Duration time.Duration
	PeakDB   float64 // dBFS
	FloorDB  float64 // noise floor when the burst started
}

// Detector finds bursts in a stream of 8-bit IQ samples by comparing block
// power against a running noise floor.
type Detector struct {
	sampleRate  float64
	thresholdDB float64
	blockLength int

	floor   float64
	primed  bool
	active  bool
	current Burst
}

// NewDetector creates a detector for cfg.
func NewDetector(cfg Config) *Detector {
	cfg = cfg.withDefaults()
	return &Detector{
		sampleRate:  float64(cfg.SampleRate),
		thresholdDB: cfg.ThresholdDB,
		blockLength: DefaultBlockLength,
	}
}

// BlockPower returns the mean power of interleaved unsigned 8-bit IQ
// samples in dBFS.
func BlockPower(iq []byte) float64 {
	pairs := len(iq) / 2
	if pairs == 0 {
		return math.Inf(-1)
	}
	var sum float64
	for i := 0; i < pairs; i++ {
		re := (float64(iq[2*i]) - 127.5) / 127.5
		im := (float64(iq[2*i+1]) - 127.5) / 127.5
		sum += re*re + im*im
	}
	return 10 * math.Log10(sum/float64(pairs))
}

// Process consumes samples received at at and returns the bursts that ended
// within them.
func (d *Detector) Process(iq []byte, at time.Time) []Burst {
	var done []Burst
	step := 2 * d.blockLength
	for off := 0; off+step <= len(iq); off += step {
		t := at.Add(time.Duration(float64(off/2) / d.sampleRate * float64(time.Second)))
		p := BlockPower(iq[off : off+step])

		if !d.primed {
			d.floor = p
			d.primed = true
			continue
		}

		above := p > d.floor+d.thresholdDB
		switch {
		case above && !d.active:
			d.active = true
			d.current = Burst{Start: t, PeakDB: p, FloorDB: d.floor}
		case above:
			d.current.PeakDB = max(d.current.PeakDB, p)
		case d.active:
			d.active = false
			d.current.Duration = t.Sub(d.current.Start)
			done = append(done, d.current)
		default:
			d.floor = 0.95*d.floor + 0.05*p
		}
	}
	return done
}

// Monitor reads IQ blocks from in and logs every burst until ctx is done or
// in is closed. onBurst, when set, is called for each burst.
func Monitor(ctx context.Context, in <-chan []byte, det *Detector, logger *logrus.Logger, onBurst func(Burst)) {
	for {
		select {
		case <-ctx.Done():
			return
		case block, ok := <-in:
			if !ok {
				return
			}
			for _, b := range det.Process(block, time.Now().UTC()) {
				logger.WithFields(logrus.Fields{
					"start":       b.Start.Format("15:04:05.000"),
					"offset_ms":   b.Start.Nanosecond() / int(time.Millisecond),
					"duration_ms": b.Duration.Milliseconds(),
					"peak_dbfs":   math.Round(b.PeakDB*10) / 10,
					"snr_db":      math.Round((b.PeakDB-b.FloorDB)*10) / 10,
				}).Info("Burst detected")
				if onBurst != nil {
					onBurst(b)
				}
			}
		}
	}
}
