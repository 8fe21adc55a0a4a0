package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"rs41sim/internal/archive"
	"rs41sim/internal/logfile"
	"rs41sim/internal/logging"
	"rs41sim/internal/metrics"
	"rs41sim/internal/rs41"
	"rs41sim/internal/scheduler"
	"rs41sim/internal/sink"
)

// shutdownTimeout bounds the wait for background goroutines on exit.
const shutdownTimeout = 5 * time.Second

// Application represents the main application
type Application struct {
	config    *Config
	logger    *logrus.Logger
	logCloser io.Closer
	runID     string

	registry   *prometheus.Registry
	metrics    *metrics.Scheduler
	server     *http.Server
	logRotator *logging.LogRotator
	archive    *archive.Archive
	sinks      []sink.Sink
	wg         sync.WaitGroup

	// clock overrides the scheduler clock when set
	clock scheduler.Clock
}

// NewApplication creates a new application instance
func NewApplication(config *Config) (*Application, error) {
	logger, closer, err := logging.NewLogger(config.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	if config.Verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	registry := metrics.NewRegistry()
	return &Application{
		config:    config,
		logger:    logger,
		logCloser: closer,
		runID:     uuid.NewString(),
		registry:  registry,
		metrics:   metrics.NewScheduler(registry),
	}, nil
}

// Logger returns the application logger.
func (app *Application) Logger() *logrus.Logger {
	return app.logger
}

// Start runs the configured mode until it completes or SIGINT/SIGTERM.
func (app *Application) Start() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return app.Run(ctx)
}

// Run replays the configured log(s) until the primary log is played out or
// ctx is cancelled.
func (app *Application) Run(ctx context.Context) error {
	defer app.logCloser.Close()

	if err := app.config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	app.logger.WithFields(logrus.Fields{
		"version":    Version,
		"build_time": BuildTime,
		"git_commit": GitCommit,
		"mode":       app.config.Mode,
		"run_id":     app.runID,
	}).Info("Starting RS41 simulator")

	schedCfg, err := app.schedulerConfig()
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := app.initializeComponents(runCtx, schedCfg); err != nil {
		app.shutdown(cancel)
		return fmt.Errorf("failed to initialize components: %w", err)
	}

	sched, err := scheduler.New(*schedCfg, app.logger)
	if err != nil {
		app.shutdown(cancel)
		return err
	}

	err = sched.Run(runCtx)
	app.shutdown(cancel)
	if err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	return nil
}

// schedulerConfig opens the logs, preloads their subframe tables and picks
// the first record of each stream.
func (app *Application) schedulerConfig() (*scheduler.Config, error) {
	cfg := app.config
	primary, err := app.openStream(cfg.Primary.Log)
	if err != nil {
		return nil, err
	}

	sc := &scheduler.Config{
		Tick:       cfg.Scheduler.Tick,
		StartDelay: cfg.Scheduler.StartDelay,
		Primary:    *primary,
		Clock:      app.clock,
		Metrics:    app.metrics,
	}
	if cfg.Mode != ModeSpoof {
		return sc, nil
	}

	secondary, err := app.openStream(cfg.Secondary.Log)
	if err != nil {
		return nil, err
	}
	criteria, err := cfg.Criteria()
	if err != nil {
		return nil, err
	}

	found1, idx1 := primary.Log.FindCriteria(criteria)
	found2, idx2 := secondary.Log.FindCriteria(criteria)
	if !found1 {
		return nil, fmt.Errorf("criteria %s not met in %s", criteria, primary.Log.Name)
	}
	if !found2 {
		return nil, fmt.Errorf("criteria %s not met in %s", criteria, secondary.Log.Name)
	}
	sc.Primary.Start = max(0, idx1-cfg.Spoof.Lead)
	secondary.Start = idx2
	sc.Secondary = secondary

	sc.Spoof = scheduler.SpoofConfig{
		Criteria:         criteria,
		JammingMessages:  cfg.Spoof.JammingMessages,
		FramesToTransmit: cfg.Spoof.FramesToTransmit,
		LeapSeconds:      cfg.Spoof.LeapSeconds,
	}

	app.logger.WithFields(logrus.Fields{
		"criteria":        criteria.String(),
		"primary_match":   idx1,
		"primary_start":   sc.Primary.Start,
		"secondary_match": idx2,
	}).Info("Spoofing criteria located")
	return sc, nil
}

func (app *Application) openStream(path string) (*scheduler.StreamConfig, error) {
	l, err := logfile.Open(path, app.logger)
	if err != nil {
		return nil, err
	}
	table := rs41.NewSubframeTable()
	complete, read := l.LoadSubframeData(table, DefaultSubframeEntries)
	fields := logrus.Fields{
		"log":     l.Name,
		"records": l.Len(),
		"read":    read,
		"model":   table.Model(),
	}
	if !complete {
		fields["missing"] = table.Missing(DefaultSubframeEntries - 1)
		app.logger.WithFields(fields).Warn("Subframe data incomplete")
	} else {
		app.logger.WithFields(fields).Info("Subframe data loaded")
	}
	return &scheduler.StreamConfig{Log: l, Table: table}, nil
}

// initializeComponents opens the sinks and the optional journal, archive
// and metrics endpoint, then attaches them to sc.
func (app *Application) initializeComponents(ctx context.Context, sc *scheduler.Config) error {
	streams := app.config.Streams()

	s, err := app.openSink(streams[0])
	if err != nil {
		return err
	}
	sc.Primary.Sink = s
	if sc.Secondary != nil {
		s, err := app.openSink(streams[1])
		if err != nil {
			return err
		}
		sc.Secondary.Sink = s
	}

	var recorders scheduler.Recorders

	if dir := app.config.Journal.Dir; dir != "" {
		app.logRotator, err = logging.NewLogRotator(dir, logging.DefaultPrefix, app.config.Journal.UTC, app.logger)
		if err != nil {
			return fmt.Errorf("failed to initialize journal: %w", err)
		}
		if days := app.config.Journal.MaxDays; days > 0 {
			if err := app.logRotator.CleanupOldLogs(days); err != nil {
				app.logger.WithError(err).Warn("Failed to clean up old journals")
			}
		}
		app.wg.Add(1)
		go func() {
			defer app.wg.Done()
			app.logRotator.Start(ctx)
		}()
		recorders = append(recorders, logging.NewJournal(app.logRotator, app.runID))
	}

	if path := app.config.Archive.Path; path != "" {
		app.archive, err = archive.Open(path, app.logger)
		if err != nil {
			return err
		}
		run := &archive.Run{
			ID:         app.runID,
			Mode:       app.config.Mode,
			PrimaryLog: app.config.Primary.Log,
			StartedAt:  time.Now().UTC(),
		}
		if sc.Secondary != nil {
			run.SecondaryLog = app.config.Secondary.Log
			run.Criteria = sc.Spoof.Criteria.String()
		}
		if err := app.archive.StartRun(run); err != nil {
			return err
		}
		recorders = append(recorders, app.archive)
	}

	if len(recorders) > 0 {
		sc.Recorder = recorders
	}

	if addr := app.config.Metrics.Addr; addr != "" {
		app.startMetricsServer(addr)
	}
	return nil
}

func (app *Application) openSink(s StreamConfig) (sink.Sink, error) {
	var (
		out sink.Sink
		err error
	)
	switch app.config.Sink {
	case SinkSerial:
		out, err = sink.OpenSerial(sink.SerialConfig{
			Port:    s.Port,
			Baud:    s.SerialBaud,
			Timeout: sink.DefaultSerialTimeout,
			Header:  s.RFHeader(),
		}, app.logger)
	case SinkAudio:
		out, err = sink.OpenAudio(sink.AudioConfig{
			SampleRate: app.config.Audio.SampleRate,
			Baud:       int(s.Baud),
			Amplitude:  s.Amplitude,
		}, app.logger)
	case SinkFile:
		var f *os.File
		f, err = os.Create(s.Output)
		if err == nil {
			out = sink.NewWriter(f)
		}
	default:
		err = fmt.Errorf("unknown sink %q", app.config.Sink)
	}
	if err != nil {
		return nil, err
	}
	app.sinks = append(app.sinks, out)
	return out, nil
}

func (app *Application) startMetricsServer(addr string) {
	path := app.config.Metrics.Path
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, metrics.Handler(app.registry))
	app.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		app.logger.WithField("addr", addr).Info("Metrics endpoint listening")
		if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.WithError(err).Error("Metrics server failed")
		}
	}()
}

// shutdown gracefully shuts down the application
func (app *Application) shutdown(cancel context.CancelFunc) {
	app.logger.Info("Shutting down application")
	cancel()

	if app.server != nil {
		ctx, done := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := app.server.Shutdown(ctx); err != nil {
			app.logger.WithError(err).Warn("Metrics server shutdown failed")
		}
		done()
	}

	finished := make(chan struct{})
	go func() {
		app.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		app.logger.Debug("All goroutines finished")
	case <-time.After(shutdownTimeout):
		app.logger.Warn("Shutdown timeout, forcing exit")
	}

	for _, s := range app.sinks {
		if err := s.Close(); err != nil {
			app.logger.WithError(err).Debug("Sink close failed")
		}
	}
	if app.archive != nil {
		if err := app.archive.FinishRun(); err != nil {
			app.logger.WithError(err).Warn("Failed to finish archive run")
		}
		app.archive.Close()
	}
	if app.logRotator != nil {
		app.logRotator.Close()
	}

	app.logger.Info("Shutdown completed")
}
