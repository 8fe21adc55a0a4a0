// Package scheduler replays recorded RS41 flights in real time, one frame
// per second, and optionally takes over a live sonde with a second,
// synthesized stream.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"rs41sim/internal/metrics"
	"rs41sim/internal/rs41"
)

// Scheduler defaults
const (
	DefaultTick       = 20 * time.Millisecond
	DefaultStartDelay = 10 * time.Second
)

// Config configures a Scheduler. Secondary enables the spoofing stream.
type Config struct {
	Tick       time.Duration
	StartDelay time.Duration
	Primary    StreamConfig
	Secondary  *StreamConfig
	Spoof      SpoofConfig
	Clock      Clock
	Metrics    *metrics.Scheduler
	Recorder   Recorder
}

// Scheduler prepares one frame per stream and second and releases it to the
// stream's sink inside the transmit window.
type Scheduler struct {
	cfg     Config
	clock   Clock
	metrics *metrics.Scheduler
	logger  *logrus.Logger

	primary   *stream
	secondary *stream
	spoof     *spoofer
	emitters  []*emitter
}

// New validates cfg and builds a scheduler.
func New(cfg Config, logger *logrus.Logger) (*Scheduler, error) {
	if err := cfg.Primary.validate("primary"); err != nil {
		return nil, err
	}
	if cfg.Secondary != nil {
		if err := cfg.Secondary.validate("secondary"); err != nil {
			return nil, err
		}
	}
	if cfg.Tick <= 0 {
		cfg.Tick = DefaultTick
	}
	if cfg.StartDelay <= 0 {
		cfg.StartDelay = DefaultStartDelay
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	m := cfg.Metrics
	if m == nil {
		m = metrics.NewScheduler(prometheus.NewRegistry())
	}

	s := &Scheduler{
		cfg:     cfg,
		clock:   cfg.Clock,
		metrics: m,
		logger:  logger,
		primary: newStream(1, cfg.Primary),
	}
	s.primary.emitter = newEmitter(1, cfg.Primary.Sink, cfg.Recorder, m, logger)
	s.emitters = append(s.emitters, s.primary.emitter)

	if cfg.Secondary != nil {
		s.secondary = newStream(2, *cfg.Secondary)
		s.secondary.emitter = newEmitter(2, cfg.Secondary.Sink, cfg.Recorder, m, logger)
		s.emitters = append(s.emitters, s.secondary.emitter)
		s.spoof = newSpoofer(cfg.Spoof, s.primary, s.secondary, m, logger)
	}
	return s, nil
}

// State returns the spoofing stream state.
func (s *Scheduler) State() State {
	if s.spoof == nil {
		return Idle
	}
	return s.spoof.state
}

// Run plays the primary log to its end or until ctx is cancelled. The last
// staged burst is sent before Run returns.
func (s *Scheduler) Run(ctx context.Context) error {
	emitCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for _, e := range s.emitters {
		wg.Add(1)
		go func(e *emitter) {
			defer wg.Done()
			e.run(emitCtx)
		}(e)
	}

	now := s.clock.Now()
	s.start(now)
	s.logger.WithFields(logrus.Fields{
		"primary_log":   s.primary.log.Name,
		"primary_index": s.primary.index,
		"spoofing":      s.spoof != nil,
		"first_tx":      s.primary.txAt.Format(time.RFC3339),
	}).Info("Scheduler started")

	ticker := time.NewTicker(s.cfg.Tick)
	defer ticker.Stop()

	var err error
loop:
	for !s.done() {
		select {
		case <-ctx.Done():
			err = ctx.Err()
			break loop
		case <-ticker.C:
			s.step(s.clock.Now())
		}
	}

	if err == nil {
		for _, e := range s.emitters {
			e.close()
		}
	} else {
		cancel()
	}
	wg.Wait()

	s.logger.WithFields(logrus.Fields{
		"primary_index": s.primary.index,
		"state":         s.State().String(),
	}).Info("Scheduler stopped")

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *Scheduler) start(now time.Time) {
	s.primary.start(now, s.cfg.StartDelay)
	if s.secondary != nil {
		s.secondary.start(now, s.cfg.StartDelay)
	}
}

// done reports whether the primary log is played out and nothing is left
// to hand to a sink.
func (s *Scheduler) done() bool {
	if !s.primary.exhausted() || s.primary.pending != nil {
		return false
	}
	return s.secondary == nil || s.secondary.pending == nil
}

// step runs one poll of the scheduling loop at now.
func (s *Scheduler) step(now time.Time) {
	if s.primary.canPrepare(now) {
		s.preparePrimary(now)
	}
	if s.spoof != nil && s.spoof.state != Idle && s.secondary.canPrepare(now) {
		s.spoof.prepare(now)
	}

	s.primary.trigger(now)
	if s.secondary != nil {
		s.secondary.trigger(now)
	}
}

func (s *Scheduler) preparePrimary(now time.Time) {
	st := s.primary
	logIndex := st.index
	res := st.load()
	s.metrics.FramesPrepared.WithLabelValues(st.label).Inc()
	if !res.Recovered() {
		s.metrics.RSFailures.WithLabelValues(st.label).Inc()
	}

	p := Prepared{
		Stream:    1,
		At:        now,
		LogIndex:  logIndex,
		Recovered: res.Recovered(),
	}

	skip := 0
	if st.frame.CheckCRC(rs41.BlockStatus) {
		p.StatusOK = true
		fn := st.frame.FrameNumber()
		if st.prev > -1 {
			skip = fn - st.prev - 1
		}
		st.prev = fn

		if res.Recovered() && s.State() == Idle {
			if err := st.table.Load(st.frame); err != nil {
				s.logger.WithError(err).Debug("Subframe not stored")
			}
		}
	} else {
		s.metrics.CRCFailures.WithLabelValues(st.label).Inc()
	}

	if skip < 0 {
		s.logger.WithFields(logrus.Fields{
			"frame_number": st.prev,
			"skip":         skip,
		}).Warn("Frame number went backwards")
		skip = 0
	}
	if skip > 0 {
		s.metrics.SkippedSeconds.WithLabelValues(st.label).Add(float64(skip))
	}

	if s.spoof != nil {
		s.spoof.observe(st.frame, res)
	}

	st.schedule(now, skip)
	p.TxTime = st.txAt
	p.Skip = skip
	p.State = s.State()
	p.FrameNumber = st.frame.FrameNumber()
	p.Subframe = st.frame.Subframe()
	p.Burst = whitenedBurst(st.frame)
	st.stage(p)

	s.logger.WithFields(logrus.Fields{
		"stream":       1,
		"log_index":    logIndex,
		"frame_number": p.FrameNumber,
		"recovered":    p.Recovered,
		"skip":         skip,
		"tx_time":      p.TxTime.Format("15:04:05"),
		"next_prepare": st.prepareAt.Format("15:04:05"),
	}).Debug("Frame prepared")
}
