package archive

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rs41sim/internal/scheduler"
)

func openTest(t *testing.T) *Archive {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	a, err := Open(filepath.Join(t.TempDir(), "archive.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

// TestArchiveRecord tests storing and reading back bursts of a run
func TestArchiveRecord(t *testing.T) {
	a := openTest(t)
	runID := uuid.NewString()
	require.NoError(t, a.StartRun(&Run{ID: runID, Mode: "spoof", PrimaryLog: "a.txt", SecondaryLog: "b.txt", Criteria: "UponDescent"}))

	t0 := time.Date(2021, 1, 11, 12, 0, 4, 0, time.UTC)
	ctx := context.Background()
	require.NoError(t, a.Record(ctx, scheduler.Prepared{Stream: 2, TxTime: t0.Add(time.Second), FrameNumber: 1004, State: scheduler.Jamming, Jam: true, Burst: []byte{1}}))
	require.NoError(t, a.Record(ctx, scheduler.Prepared{Stream: 1, TxTime: t0, FrameNumber: 1003, Subframe: 3, Recovered: true, Burst: []byte{0x55, 0x86}}))
	require.NoError(t, a.FinishRun())

	bursts, err := a.Bursts(runID)
	require.NoError(t, err)
	require.Len(t, bursts, 2)
	assert.Equal(t, 1003, bursts[0].FrameNumber)
	assert.Equal(t, "idle", bursts[0].State)
	assert.True(t, bursts[0].Recovered)
	assert.Equal(t, []byte{0x55, 0x86}, bursts[0].Wire)
	assert.Equal(t, "jamming", bursts[1].State)
	assert.True(t, bursts[1].Jam)

	runs, err := a.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "spoof", runs[0].Mode)
	assert.NotNil(t, runs[0].FinishedAt)
	assert.False(t, runs[0].StartedAt.IsZero())
}

// TestArchiveSeparateRuns tests that bursts are kept per run
func TestArchiveSeparateRuns(t *testing.T) {
	a := openTest(t)
	first, second := uuid.NewString(), uuid.NewString()

	require.NoError(t, a.StartRun(&Run{ID: first, Mode: "transmit"}))
	require.NoError(t, a.Record(context.Background(), scheduler.Prepared{Stream: 1, FrameNumber: 1}))
	require.NoError(t, a.StartRun(&Run{ID: second, Mode: "transmit"}))
	require.NoError(t, a.Record(context.Background(), scheduler.Prepared{Stream: 1, FrameNumber: 2}))
	require.NoError(t, a.Record(context.Background(), scheduler.Prepared{Stream: 1, FrameNumber: 3}))

	b1, err := a.Bursts(first)
	require.NoError(t, err)
	assert.Len(t, b1, 1)
	b2, err := a.Bursts(second)
	require.NoError(t, err)
	assert.Len(t, b2, 2)

	runs, err := a.Runs()
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	// the same run cannot start twice
	assert.Error(t, a.StartRun(&Run{ID: first}))
}

// TestArchiveRecorder tests use as a scheduler recorder
func TestArchiveRecorder(t *testing.T) {
	a := openTest(t)
	var rec scheduler.Recorder = a
	require.NoError(t, a.StartRun(&Run{ID: "run"}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, rec.Record(ctx, scheduler.Prepared{Stream: 1}))
}
