// Copyright (c) 2012-2017 Joseph D Poirier
// Distributable under the terms of The New BSD License
// that can be found in the LICENSE file.

//go:build cgo

package rtlsdr

import (
	"context"
	"errors"
	"fmt"

	rtlsdr "github.com/jpoirier/gortlsdr"
	"github.com/sirupsen/logrus"
)

// BufferChunkSize is the librtlsdr transfer unit.
const BufferChunkSize = 16384

// Device is an RTL-SDR dongle tuned to the sonde channel.
type Device struct {
	device *rtlsdr.Context
	logger *logrus.Logger
	cfg    Config
	isOpen bool
}

// Open opens and configures the dongle at cfg.DeviceIndex.
func Open(cfg Config, logger *logrus.Logger) (*Device, error) {
	cfg = cfg.withDefaults()

	count := rtlsdr.GetDeviceCount()
	if count == 0 {
		return nil, errors.New("no RTL-SDR devices found")
	}
	if cfg.DeviceIndex >= count {
		return nil, fmt.Errorf("device index %d out of range (0-%d)", cfg.DeviceIndex, count-1)
	}

	dev, err := rtlsdr.Open(cfg.DeviceIndex)
	if err != nil {
		return nil, fmt.Errorf("failed to open device: %w", err)
	}
	d := &Device{device: dev, logger: logger, cfg: cfg, isOpen: true}
	if err := d.configure(); err != nil {
		d.Close()
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"device_index": cfg.DeviceIndex,
		"frequency":    cfg.Frequency,
		"sample_rate":  cfg.SampleRate,
		"gain":         cfg.Gain,
	}).Info("RTL-SDR device configured")
	return d, nil
}

func (d *Device) configure() error {
	if err := d.device.SetCenterFreq(int(d.cfg.Frequency)); err != nil {
		return fmt.Errorf("failed to set frequency: %w", err)
	}
	if err := d.device.SetSampleRate(int(d.cfg.SampleRate)); err != nil {
		return fmt.Errorf("failed to set sample rate: %w", err)
	}
	if d.cfg.Gain == 0 {
		if err := d.device.SetTunerGainMode(false); err != nil {
			return fmt.Errorf("failed to set auto gain: %w", err)
		}
	} else {
		if err := d.device.SetTunerGainMode(true); err != nil {
			return fmt.Errorf("failed to set manual gain mode: %w", err)
		}
		// tenths of dB
		if err := d.device.SetTunerGain(d.cfg.Gain * 10); err != nil {
			return fmt.Errorf("failed to set gain: %w", err)
		}
	}
	if err := d.device.ResetBuffer(); err != nil {
		return fmt.Errorf("failed to reset buffer: %w", err)
	}
	return nil
}

// Capture streams raw IQ blocks to out until ctx is done. Blocks are
// dropped when out is full.
func (d *Device) Capture(ctx context.Context, out chan<- []byte) error {
	if !d.isOpen {
		return errors.New("device not open")
	}

	callback := func(data []byte) {
		buf := append([]byte(nil), data...)
		select {
		case out <- buf:
		case <-ctx.Done():
		default:
			d.logger.Debug("Dropping IQ block, channel full")
		}
	}

	d.logger.Info("Starting RTL-SDR capture")
	go func() {
		defer func() {
			if p := recover(); p != nil {
				d.logger.WithField("panic", p).Error("RTL-SDR capture panic")
			}
		}()
		if err := d.device.ReadAsync(callback, nil, 0, 16*BufferChunkSize); err != nil {
			d.logger.WithError(err).Error("RTL-SDR read async failed")
		}
	}()

	<-ctx.Done()
	if err := d.device.CancelAsync(); err != nil {
		d.logger.WithError(err).Error("Failed to cancel async reading")
	}
	return nil
}

// Close releases the dongle.
func (d *Device) Close() error {
	if d.device == nil || !d.isOpen {
		return nil
	}
	d.isOpen = false
	if err := d.device.Close(); err != nil {
		return fmt.Errorf("failed to close device: %w", err)
	}
	d.logger.Info("RTL-SDR device closed")
	return nil
}
