package scheduler

import (
	"fmt"
	"strconv"
	"time"

	"rs41sim/internal/logfile"
	"rs41sim/internal/rs41"
	"rs41sim/internal/sink"
)

// StreamConfig describes one replayed flight.
type StreamConfig struct {
	Log   *logfile.Log
	Table *rs41.SubframeTable // preloaded from the log
	Start int                 // first record to play
	Sink  sink.Sink
}

func (c StreamConfig) validate(name string) error {
	if c.Log == nil {
		return fmt.Errorf("%s stream: no log", name)
	}
	if c.Table == nil {
		return fmt.Errorf("%s stream: no subframe table", name)
	}
	if c.Sink == nil {
		return fmt.Errorf("%s stream: no sink", name)
	}
	if c.Start < 0 || c.Start >= c.Log.Len() {
		return fmt.Errorf("%s stream: start %d outside log of %d records", name, c.Start, c.Log.Len())
	}
	return nil
}

// stream is the per-stream session: source position, timing and the staged
// burst.
type stream struct {
	id    int
	label string
	log   *logfile.Log
	table *rs41.SubframeTable
	index int
	frame *rs41.Frame

	prev      int
	prepareAt time.Time
	txAt      time.Time
	triggered bool
	pending   *Prepared
	last      Prepared

	emitter *emitter
}

func newStream(id int, cfg StreamConfig) *stream {
	return &stream{
		id:    id,
		label: strconv.Itoa(id),
		log:   cfg.Log,
		table: cfg.Table,
		index: cfg.Start,
		frame: new(rs41.Frame),
		prev:  -1,
	}
}

func (s *stream) start(now time.Time, delay time.Duration) {
	s.prepareAt = now
	s.txAt = now.Add(delay)
}

func (s *stream) exhausted() bool {
	return s.index >= s.log.Len()
}

func (s *stream) canPrepare(now time.Time) bool {
	return subsecond(now) < prepareWindowEnd && !now.Before(s.prepareAt) && !s.exhausted()
}

// load reads the next record and error corrects it.
func (s *stream) load() rs41.RSResult {
	if err := s.log.Load(s.index, s.frame); err != nil {
		s.frame.Load(nil)
	}
	s.index++
	return rs41.DecodeReedSolomon(s.frame)
}

// schedule sets the transmit time skip seconds after the current second and
// the next preparation one second after that.
func (s *stream) schedule(now time.Time, skip int) {
	s.txAt = now.Truncate(time.Second).Add(time.Duration(skip) * time.Second)
	s.prepareAt = s.txAt.Add(time.Second)
}

func (s *stream) stage(p Prepared) {
	s.last = p
	s.pending = &p
}

// trigger hands the staged burst to the emitter once per transmit second.
func (s *stream) trigger(now time.Time) {
	sub := subsecond(now)
	switch {
	case sub > triggerStart && sub < triggerEnd && !s.triggered && !now.Before(s.txAt) && s.pending != nil:
		s.triggered = true
		s.emitter.offer(*s.pending)
		s.pending = nil
	case sub > triggerClear && s.triggered:
		s.triggered = false
	}
}

// whitenedBurst returns the on-air burst for f.
func whitenedBurst(f *rs41.Frame) []byte {
	buf := make([]byte, rs41.FrameLength)
	rs41.Whiten(buf, f.Bytes())
	return sink.Burst(buf)
}
