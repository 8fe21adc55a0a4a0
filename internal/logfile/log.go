// Package logfile reads recorded RS41 flights: one frame per line as
// whitespace separated hex bytes.
package logfile

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"rs41sim/internal/rs41"
)

// ErrEmptyLog is returned when a log holds no frame records.
var ErrEmptyLog = errors.New("logfile: no records")

// maxLineBytes bounds a single log line; a full buffer is 1024 tokens of
// up to three characters.
const maxLineBytes = 16 * 1024

// Log is a recorded flight held in memory.
type Log struct {
	Name    string
	records [][]byte
	logger  *logrus.Logger
	limiter *rate.Limiter
}

// Open reads the log at path.
func Open(path string, logger *logrus.Logger) (*Log, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer file.Close()

	l, err := Parse(file, filepath.Base(path), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return l, nil
}

// Parse reads log records from r. Blank lines are skipped. A line with a
// token that is not a hex byte is kept as an empty record so that indexes
// follow the file.
func Parse(r io.Reader, name string, logger *logrus.Logger) (*Log, error) {
	l := &Log{
		Name:    name,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Every(time.Second), 5),
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxLineBytes)
	line := 0
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		record, err := parseRecord(fields)
		if err != nil {
			l.warn(line, err)
			record = nil
		}
		l.records = append(l.records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(l.records) == 0 {
		return nil, ErrEmptyLog
	}

	logger.WithFields(logrus.Fields{
		"log":     name,
		"records": len(l.records),
	}).Debug("Log loaded")
	return l, nil
}

func parseRecord(fields []string) ([]byte, error) {
	if len(fields) > rs41.BufferSize {
		fields = fields[:rs41.BufferSize]
	}
	record := make([]byte, len(fields))
	for i, tok := range fields {
		v, err := strconv.ParseUint(tok, 16, 8)
		if err != nil {
			return nil, fmt.Errorf("token %d %q: %w", i, tok, err)
		}
		record[i] = byte(v)
	}
	return record, nil
}

// warn logs a malformed line, rate limited so that a damaged file does not
// flood the output.
func (l *Log) warn(line int, err error) {
	if !l.limiter.Allow() {
		return
	}
	l.logger.WithFields(logrus.Fields{
		"log":  l.Name,
		"line": line,
	}).WithError(err).Warn("Malformed log record")
}

// Len returns the number of records.
func (l *Log) Len() int {
	return len(l.records)
}

// Record returns the raw bytes of record i.
func (l *Log) Record(i int) []byte {
	return l.records[i]
}

// Load copies record i into f, zeroing the rest of the buffer.
func (l *Log) Load(i int, f *rs41.Frame) error {
	if i < 0 || i >= len(l.records) {
		return fmt.Errorf("logfile: record %d out of range [0, %d)", i, len(l.records))
	}
	f.Load(l.records[i])
	return nil
}

// Frame returns record i as a new frame.
func (l *Log) Frame(i int) (*rs41.Frame, error) {
	f := new(rs41.Frame)
	if err := l.Load(i, f); err != nil {
		return nil, err
	}
	return f, nil
}

// LoadSubframeData walks the log from the start, error correcting each
// record and storing the subframe slice of every frame with a valid STATUS
// block, until slots 0..total-1 are all seen. It returns whether the table
// was completed and the index one past the last record read.
func (l *Log) LoadSubframeData(table *rs41.SubframeTable, total int) (bool, int) {
	f := new(rs41.Frame)
	i := 0
	for i < len(l.records) && !table.Complete(total-1) {
		f.Load(l.records[i])
		rs41.DecodeReedSolomon(f)
		if f.CheckCRC(rs41.BlockStatus) {
			if err := table.Load(f); err != nil {
				l.warn(i+1, err)
			}
		}
		i++
	}
	complete := table.Complete(total - 1)

	l.logger.WithFields(logrus.Fields{
		"log":      l.Name,
		"complete": complete,
		"seen":     table.SeenCount(),
		"records":  i,
	}).Debug("Subframe data loaded")
	return complete, i
}

// FindCriteria returns whether any record meets c and the index of the first
// one. When none does the index is the last record's.
func (l *Log) FindCriteria(c Criteria) (bool, int) {
	f := new(rs41.Frame)
	for i, record := range l.records {
		f.Load(record)
		if c.Match(f) {
			return true, i
		}
	}
	return false, len(l.records) - 1
}
