package scheduler

import (
	"context"
	"strconv"

	"github.com/sirupsen/logrus"

	"rs41sim/internal/metrics"
	"rs41sim/internal/sink"
)

// emitter owns one sink. The scheduler hands it bursts through a single
// slot; a newer burst replaces one the sink has not picked up yet.
type emitter struct {
	stream   int
	sink     sink.Sink
	slot     chan Prepared
	recorder Recorder
	metrics  *metrics.Scheduler
	logger   *logrus.Logger
}

func newEmitter(stream int, s sink.Sink, recorder Recorder, m *metrics.Scheduler, logger *logrus.Logger) *emitter {
	return &emitter{
		stream:   stream,
		sink:     s,
		slot:     make(chan Prepared, 1),
		recorder: recorder,
		metrics:  m,
		logger:   logger,
	}
}

// offer places p in the slot and reports whether an unsent burst was
// dropped to make room.
func (e *emitter) offer(p Prepared) bool {
	select {
	case e.slot <- p:
		return false
	default:
	}

	dropped := false
	select {
	case <-e.slot:
		dropped = true
	default:
	}
	select {
	case e.slot <- p:
	default:
	}
	if dropped {
		e.logger.WithField("stream", e.stream).Warn("Sink busy, unsent burst replaced")
	}
	return dropped
}

// close ends run once the slot is drained. Only the producer may call it.
func (e *emitter) close() {
	close(e.slot)
}

func (e *emitter) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case p, ok := <-e.slot:
			if !ok {
				return
			}
			e.emit(ctx, p)
		}
	}
}

func (e *emitter) emit(ctx context.Context, p Prepared) {
	label := strconv.Itoa(e.stream)
	if err := e.sink.Write(ctx, p.Burst); err != nil {
		e.metrics.EmitErrors.WithLabelValues(label).Inc()
		e.logger.WithFields(logrus.Fields{
			"stream":       e.stream,
			"frame_number": p.FrameNumber,
		}).WithError(err).Warn("Failed to transmit burst")
		return
	}
	e.metrics.BurstsEmitted.WithLabelValues(label).Inc()

	e.logger.WithFields(logrus.Fields{
		"stream":       e.stream,
		"frame_number": p.FrameNumber,
		"subframe":     p.Subframe,
		"jam":          p.Jam,
	}).Debug("Burst transmitted")

	if e.recorder == nil {
		return
	}
	if err := e.recorder.Record(ctx, p); err != nil {
		e.logger.WithError(err).Warn("Failed to record burst")
	}
}
