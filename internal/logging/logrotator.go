package logging

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultPrefix names the daily transmit journal files.
const DefaultPrefix = "rs41"

const dateLayout = "2006-01-02"

// LogRotator appends to one file per day and gzips the previous day's file
// once the date changes.
type LogRotator struct {
	dir    string
	prefix string
	useUTC bool
	now    func() time.Time
	logger *logrus.Logger

	mu          sync.Mutex
	file        *os.File
	currentDate string
	compressing sync.WaitGroup
}

// NewLogRotator creates dir if needed and opens today's file.
func NewLogRotator(dir, prefix string, useUTC bool, logger *logrus.Logger) (*LogRotator, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}
	r := &LogRotator{
		dir:    dir,
		prefix: prefix,
		useUTC: useUTC,
		now:    time.Now,
		logger: logger,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.rotate(r.date()); err != nil {
		return nil, fmt.Errorf("failed to open journal file: %w", err)
	}
	return r, nil
}

func (r *LogRotator) date() string {
	now := r.now()
	if r.useUTC {
		now = now.UTC()
	}
	return now.Format(dateLayout)
}

func (r *LogRotator) path(date string) string {
	return filepath.Join(r.dir, fmt.Sprintf("%s_%s.log", r.prefix, date))
}

// Start checks for a date change every minute until ctx is done.
func (r *LogRotator) Start(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.mu.Lock()
			r.checkRotation()
			r.mu.Unlock()
		}
	}
}

// checkRotation must be called with mu held.
func (r *LogRotator) checkRotation() {
	date := r.date()
	if date == r.currentDate {
		return
	}
	r.logger.WithFields(logrus.Fields{
		"old_date": r.currentDate,
		"new_date": date,
	}).Info("Rotating journal file")
	if err := r.rotate(date); err != nil {
		r.logger.WithError(err).Error("Failed to rotate journal file")
	}
}

// rotate must be called with mu held.
func (r *LogRotator) rotate(date string) error {
	if r.file != nil {
		old := r.currentDate
		if err := r.file.Close(); err != nil {
			r.logger.WithError(err).Error("Failed to close journal file")
		}
		r.file = nil
		r.compressing.Add(1)
		go func() {
			defer r.compressing.Done()
			r.compress(old)
		}()
	}

	name := r.path(date)
	file, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}
	r.file = file
	r.currentDate = date
	r.logger.WithField("file", name).Debug("Opened journal file")
	return nil
}

// compress gzips the file of date and removes the original.
func (r *LogRotator) compress(date string) {
	src := r.path(date)
	dst := src + ".gz"
	log := r.logger.WithFields(logrus.Fields{"source": src, "target": dst})

	in, err := os.Open(src)
	if err != nil {
		log.WithError(err).Debug("Nothing to compress")
		return
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		log.WithError(err).Error("Failed to create compressed journal")
		return
	}
	gz := gzip.NewWriter(out)
	gz.Name = filepath.Base(src)
	gz.ModTime = time.Now()

	if _, err := io.Copy(gz, in); err != nil {
		gz.Close()
		out.Close()
		log.WithError(err).Error("Failed to compress journal")
		return
	}
	if err := gz.Close(); err != nil {
		out.Close()
		log.WithError(err).Error("Failed to flush compressed journal")
		return
	}
	if err := out.Close(); err != nil {
		log.WithError(err).Error("Failed to close compressed journal")
		return
	}
	if err := os.Remove(src); err != nil {
		log.WithError(err).Error("Failed to remove compressed journal source")
		return
	}
	log.Info("Journal file compressed")
}

// Write appends p to the current file, rotating first when the date has
// changed.
func (r *LogRotator) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return 0, os.ErrClosed
	}
	r.checkRotation()
	if r.file == nil {
		return 0, os.ErrClosed
	}
	return r.file.Write(p)
}

// CurrentFile returns the path of the file being written.
func (r *LogRotator) CurrentFile() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.currentDate == "" {
		return ""
	}
	return r.path(r.currentDate)
}

// Files lists all journal files, compressed ones included.
func (r *LogRotator) Files() ([]string, error) {
	files, err := filepath.Glob(filepath.Join(r.dir, r.prefix+"_*.log*"))
	if err != nil {
		return nil, fmt.Errorf("failed to list journal files: %w", err)
	}
	return files, nil
}

// CleanupOldLogs removes journal files not modified in the last maxDays
// days. The current file is kept.
func (r *LogRotator) CleanupOldLogs(maxDays int) error {
	if maxDays <= 0 {
		return fmt.Errorf("maxDays must be positive")
	}
	files, err := r.Files()
	if err != nil {
		return err
	}

	cutoff := r.now().AddDate(0, 0, -maxDays)
	current := r.CurrentFile()
	removed := 0
	for _, file := range files {
		if file == current {
			continue
		}
		info, err := os.Stat(file)
		if err != nil {
			r.logger.WithError(err).WithField("file", file).Warn("Failed to stat journal file")
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(file); err != nil {
			r.logger.WithError(err).WithField("file", file).Error("Failed to remove old journal file")
			continue
		}
		removed++
	}

	r.logger.WithField("count", removed).Info("Cleaned up old journal files")
	return nil
}

// Close closes the current file and waits for pending compression.
func (r *LogRotator) Close() error {
	r.mu.Lock()
	var err error
	if r.file != nil {
		err = r.file.Close()
		r.file = nil
	}
	r.mu.Unlock()

	r.compressing.Wait()
	return err
}
