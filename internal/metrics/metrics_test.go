package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestHandler tests exposition of the scheduler metrics
func TestHandler(t *testing.T) {
	reg := NewRegistry()
	m := NewScheduler(reg)
	m.BurstsEmitted.WithLabelValues("1").Add(3)
	m.SkippedSeconds.WithLabelValues("2").Inc()
	m.SpoofState.Set(2)

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	text := string(body)
	assert.Contains(t, text, `rs41sim_bursts_emitted_total{stream="1"} 3`)
	assert.Contains(t, text, `rs41sim_skipped_seconds_total{stream="2"} 1`)
	assert.Contains(t, text, "rs41sim_spoof_state 2")
	assert.Contains(t, text, "go_goroutines")
}

// TestNewSchedulerTwice tests that one registry rejects a second set
func TestNewSchedulerTwice(t *testing.T) {
	reg := NewRegistry()
	NewScheduler(reg)
	assert.Panics(t, func() { NewScheduler(reg) })
}
