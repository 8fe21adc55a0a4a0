package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/sirupsen/logrus"

	"rs41sim/internal/rtlsdr"
)

// Monitor listens on the sonde channel and logs every burst until
// SIGINT/SIGTERM. It is used to check transmit timing over the air.
func Monitor(cfg rtlsdr.Config, logger *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dev, err := rtlsdr.Open(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize RTL-SDR: %w", err)
	}
	defer dev.Close()

	data := make(chan []byte, 100)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := dev.Capture(ctx, data); err != nil {
			logger.WithError(err).Error("RTL-SDR capture failed")
			stop()
		}
	}()

	count := 0
	rtlsdr.Monitor(ctx, data, rtlsdr.NewDetector(cfg), logger, func(rtlsdr.Burst) {
		count++
	})
	wg.Wait()

	logger.WithField("bursts", count).Info("Monitor stopped")
	return nil
}
