package logging

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"rs41sim/internal/scheduler"
)

// Journal writes one line per transmitted burst.
type Journal struct {
	w     io.Writer
	runID string
}

// NewJournal creates a journal writing to w. Lines carry runID so that
// several runs on one day can be told apart.
func NewJournal(w io.Writer, runID string) *Journal {
	return &Journal{w: w, runID: runID}
}

// Record appends p to the journal.
func (j *Journal) Record(_ context.Context, p scheduler.Prepared) error {
	rs := "ok"
	if !p.Recovered {
		rs = "fail"
	}
	line := fmt.Sprintf("%s run=%s stream=%d state=%s log_index=%d fn=%d sf=%d rs=%s skip=%d jam=%t %s\n",
		p.TxTime.UTC().Format(time.RFC3339), j.runID, p.Stream, p.State, p.LogIndex,
		p.FrameNumber, p.Subframe, rs, p.Skip, p.Jam, hex.EncodeToString(p.Burst))
	if _, err := io.WriteString(j.w, line); err != nil {
		return fmt.Errorf("journal: %w", err)
	}
	return nil
}
