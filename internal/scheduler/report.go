package scheduler

import (
	"context"
	"errors"
	"time"
)

// State is the spoofing stream state.
type State int

// Spoofing states
const (
	Idle State = iota
	Jamming
	Transmitting
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Jamming:
		return "jamming"
	case Transmitting:
		return "transmitting"
	}
	return "unknown"
}

// Prepared describes one staged burst.
type Prepared struct {
	Stream      int
	At          time.Time // preparation time
	TxTime      time.Time
	LogIndex    int
	FrameNumber int
	Subframe    int
	Recovered   bool
	StatusOK    bool
	Skip        int
	State       State
	Jam         bool
	Burst       []byte
}

// Recorder is told about every burst the sink accepted.
type Recorder interface {
	Record(ctx context.Context, p Prepared) error
}

// Recorders fans a burst out to several recorders.
type Recorders []Recorder

// Record calls every recorder and joins their errors.
func (rs Recorders) Record(ctx context.Context, p Prepared) error {
	var errs []error
	for _, r := range rs {
		if err := r.Record(ctx, p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
