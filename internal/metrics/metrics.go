// Package metrics exposes scheduler counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRegistry creates a registry with the Go and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves reg in the Prometheus text format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// Scheduler holds the per-stream scheduling counters. All vectors are
// labelled by stream ("1" or "2").
type Scheduler struct {
	FramesPrepared *prometheus.CounterVec
	BurstsEmitted  *prometheus.CounterVec
	EmitErrors     *prometheus.CounterVec
	RSFailures     *prometheus.CounterVec
	CRCFailures    *prometheus.CounterVec
	SkippedSeconds *prometheus.CounterVec
	JamBursts      prometheus.Counter
	SpoofState     prometheus.Gauge // 0 idle, 1 jamming, 2 transmitting
}

// NewScheduler registers and returns the scheduler metrics.
func NewScheduler(reg prometheus.Registerer) *Scheduler {
	m := &Scheduler{
		FramesPrepared: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rs41sim_frames_prepared_total",
			Help: "Frames prepared for transmission.",
		}, []string{"stream"}),
		BurstsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rs41sim_bursts_emitted_total",
			Help: "Bursts handed to the radio sink.",
		}, []string{"stream"}),
		EmitErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rs41sim_emit_errors_total",
			Help: "Bursts the radio sink failed to send.",
		}, []string{"stream"}),
		RSFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rs41sim_rs_failures_total",
			Help: "Source frames Reed-Solomon could not recover.",
		}, []string{"stream"}),
		CRCFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rs41sim_status_crc_failures_total",
			Help: "Source frames with an invalid STATUS block.",
		}, []string{"stream"}),
		SkippedSeconds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rs41sim_skipped_seconds_total",
			Help: "Seconds left silent for frame number gaps.",
		}, []string{"stream"}),
		JamBursts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rs41sim_jam_bursts_total",
			Help: "Jamming bursts prepared on the spoofing stream.",
		}),
		SpoofState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rs41sim_spoof_state",
			Help: "Spoofing stream state: 0 idle, 1 jamming, 2 transmitting.",
		}),
	}
	reg.MustRegister(m.FramesPrepared, m.BurstsEmitted, m.EmitErrors, m.RSFailures,
		m.CRCFailures, m.SkippedSeconds, m.JamBursts, m.SpoofState)
	return m
}
