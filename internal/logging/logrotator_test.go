package logging

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rs41sim/internal/scheduler"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// TestLogRotator_NewLogRotator tests the creation of new log rotator
func TestLogRotator_NewLogRotator(t *testing.T) {
	tests := []struct {
		name   string
		dir    string
		prefix string
		want   string
	}{
		{name: "default prefix", dir: "journal", want: "rs41_"},
		{name: "custom prefix", dir: "journal", prefix: "spoof", want: "spoof_"},
		{name: "nested directory", dir: "nested/test/journal", want: "rs41_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), tt.dir)
			rotator, err := NewLogRotator(dir, tt.prefix, true, quietLogger())
			require.NoError(t, err)
			defer rotator.Close()

			assert.DirExists(t, dir)
			current := rotator.CurrentFile()
			assert.FileExists(t, current)
			assert.True(t, strings.HasPrefix(filepath.Base(current), tt.want))
			assert.Contains(t, current, time.Now().UTC().Format(dateLayout))
		})
	}
}

// TestLogRotator_Write tests appending to the current file
func TestLogRotator_Write(t *testing.T) {
	rotator, err := NewLogRotator(t.TempDir(), "", false, quietLogger())
	require.NoError(t, err)
	defer rotator.Close()

	n, err := rotator.Write([]byte("line 1\n"))
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	_, err = rotator.Write([]byte("line 2\n"))
	require.NoError(t, err)

	content, err := os.ReadFile(rotator.CurrentFile())
	require.NoError(t, err)
	assert.Equal(t, "line 1\nline 2\n", string(content))
}

// TestLogRotator_DateRotation tests rotation and compression on a date change
func TestLogRotator_DateRotation(t *testing.T) {
	dir := t.TempDir()
	rotator, err := NewLogRotator(dir, "", true, quietLogger())
	require.NoError(t, err)

	day := time.Date(2021, 1, 11, 23, 59, 0, 0, time.UTC)
	rotator.now = func() time.Time { return day }
	rotator.mu.Lock()
	rotator.checkRotation()
	rotator.mu.Unlock()
	first := rotator.CurrentFile()
	assert.Equal(t, filepath.Join(dir, "rs41_2021-01-11.log"), first)

	_, err = rotator.Write([]byte("before midnight\n"))
	require.NoError(t, err)

	day = day.Add(2 * time.Minute)
	_, err = rotator.Write([]byte("after midnight\n"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "rs41_2021-01-12.log"), rotator.CurrentFile())

	require.NoError(t, rotator.Close())

	assert.NoFileExists(t, first)
	gzFile, err := os.Open(first + ".gz")
	require.NoError(t, err)
	defer gzFile.Close()
	gz, err := gzip.NewReader(gzFile)
	require.NoError(t, err)
	defer gz.Close()
	data, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.Equal(t, "before midnight\n", string(data))

	today, err := os.ReadFile(filepath.Join(dir, "rs41_2021-01-12.log"))
	require.NoError(t, err)
	assert.Equal(t, "after midnight\n", string(today))
}

// TestLogRotator_Files tests listing of plain and compressed files
func TestLogRotator_Files(t *testing.T) {
	dir := t.TempDir()
	rotator, err := NewLogRotator(dir, "", false, quietLogger())
	require.NoError(t, err)
	defer rotator.Close()

	extra := []string{"rs41_2023-01-01.log", "rs41_2023-01-02.log.gz", "other_2023-01-03.log"}
	for _, name := range extra {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}

	files, err := rotator.Files()
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, f := range files {
		names[filepath.Base(f)] = true
	}
	assert.True(t, names["rs41_2023-01-01.log"])
	assert.True(t, names["rs41_2023-01-02.log.gz"])
	assert.False(t, names["other_2023-01-03.log"])
	assert.True(t, names[filepath.Base(rotator.CurrentFile())])
}

// TestLogRotator_CleanupOldLogs tests removal of old files
func TestLogRotator_CleanupOldLogs(t *testing.T) {
	dir := t.TempDir()
	rotator, err := NewLogRotator(dir, "", false, quietLogger())
	require.NoError(t, err)
	defer rotator.Close()

	old := filepath.Join(dir, "rs41_2023-01-01.log.gz")
	require.NoError(t, os.WriteFile(old, []byte("old"), 0644))
	past := time.Now().AddDate(0, 0, -10)
	require.NoError(t, os.Chtimes(old, past, past))

	recent := filepath.Join(dir, "rs41_2023-12-31.log")
	require.NoError(t, os.WriteFile(recent, []byte("recent"), 0644))

	require.NoError(t, rotator.CleanupOldLogs(5))
	assert.NoFileExists(t, old)
	assert.FileExists(t, recent)
	assert.FileExists(t, rotator.CurrentFile())

	for _, days := range []int{0, -1} {
		err := rotator.CleanupOldLogs(days)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "maxDays must be positive")
	}
}

// TestLogRotator_Close tests writes after close
func TestLogRotator_Close(t *testing.T) {
	rotator, err := NewLogRotator(t.TempDir(), "", false, quietLogger())
	require.NoError(t, err)
	require.NoError(t, rotator.Close())

	_, err = rotator.Write([]byte("late"))
	assert.ErrorIs(t, err, os.ErrClosed)
	assert.NoError(t, rotator.Close())
}

// TestLogRotator_Start tests that the rotation loop stops with its context
func TestLogRotator_Start(t *testing.T) {
	rotator, err := NewLogRotator(t.TempDir(), "", false, quietLogger())
	require.NoError(t, err)
	defer rotator.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		rotator.Start(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not return")
	}
}

// TestLogRotator_ConcurrentAccess tests concurrent writers
func TestLogRotator_ConcurrentAccess(t *testing.T) {
	rotator, err := NewLogRotator(t.TempDir(), "", false, quietLogger())
	require.NoError(t, err)
	defer rotator.Close()

	const writers, lines = 10, 100
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < lines; j++ {
				if _, err := fmt.Fprintf(rotator, "writer-%d-line-%d\n", id, j); err != nil {
					t.Errorf("write failed: %v", err)
					return
				}
			}
		}(i)
	}
	wg.Wait()

	content, err := os.ReadFile(rotator.CurrentFile())
	require.NoError(t, err)
	assert.Equal(t, writers*lines, bytes.Count(content, []byte("\n")))
	assert.Contains(t, string(content), "writer-0-line-0\n")
	assert.Contains(t, string(content), fmt.Sprintf("writer-%d-line-%d\n", writers-1, lines-1))
}

// TestJournal tests the journal line format
func TestJournal(t *testing.T) {
	var buf bytes.Buffer
	j := NewJournal(&buf, "run-1")

	err := j.Record(context.Background(), scheduler.Prepared{
		Stream:      2,
		TxTime:      time.Date(2021, 1, 11, 12, 0, 4, 0, time.UTC),
		LogIndex:    7,
		FrameNumber: 1008,
		Subframe:    8,
		Recovered:   true,
		State:       scheduler.Transmitting,
		Burst:       []byte{0x55, 0xAB},
	})
	require.NoError(t, err)
	assert.Equal(t, "2021-01-11T12:00:04Z run=run-1 stream=2 state=transmitting log_index=7 fn=1008 sf=8 rs=ok skip=0 jam=false 55ab\n", buf.String())

	buf.Reset()
	require.NoError(t, j.Record(context.Background(), scheduler.Prepared{Stream: 1, Jam: true, Skip: 1}))
	assert.Contains(t, buf.String(), "rs=fail skip=1 jam=true")
}

// TestJournal_WriteError tests that write failures are reported
func TestJournal_WriteError(t *testing.T) {
	rotator, err := NewLogRotator(t.TempDir(), "", false, quietLogger())
	require.NoError(t, err)
	require.NoError(t, rotator.Close())

	err = NewJournal(rotator, "run").Record(context.Background(), scheduler.Prepared{})
	assert.ErrorIs(t, err, os.ErrClosed)
}

// TestNewLogger tests level, format and file output selection
func TestNewLogger(t *testing.T) {
	logger, closer, err := NewLogger(Config{Level: "debug", Format: "json"})
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)
	assert.NoError(t, closer.Close())

	_, _, err = NewLogger(Config{Level: "loud"})
	assert.Error(t, err)
	_, _, err = NewLogger(Config{Format: "xml"})
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "rs41sim.log")
	logger, closer, err = NewLogger(Config{File: FileConfig{Filename: path, MaxSizeMB: 1}})
	require.NoError(t, err)
	logger.Info("hello file")
	require.NoError(t, closer.Close())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "hello file")
}

// BenchmarkLogRotator_Write benchmarks writing performance
func BenchmarkLogRotator_Write(b *testing.B) {
	rotator, err := NewLogRotator(b.TempDir(), "", false, quietLogger())
	require.NoError(b, err)
	defer rotator.Close()

	data := []byte("benchmark test data\n")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := rotator.Write(data); err != nil {
			b.Fatal(err)
		}
	}
}
