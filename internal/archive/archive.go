// Package archive stores every transmitted burst of a run in SQLite.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"

	"rs41sim/internal/scheduler"
)

// Run is one scheduler session.
type Run struct {
	ID           string `gorm:"primaryKey;size:36"`
	Mode         string `gorm:"size:16"`
	PrimaryLog   string
	SecondaryLog string
	Criteria     string
	StartedAt    time.Time
	FinishedAt   *time.Time
}

// Burst is one burst accepted by a sink.
type Burst struct {
	ID          uint      `gorm:"primaryKey"`
	RunID       string    `gorm:"index;size:36"`
	Stream      int       `gorm:"index"`
	TxTime      time.Time `gorm:"index"`
	LogIndex    int
	FrameNumber int
	Subframe    int
	State       string `gorm:"size:16"`
	Recovered   bool
	Jam         bool
	Skip        int
	Wire        []byte
	CreatedAt   time.Time
}

// Archive wraps the GORM database.
type Archive struct {
	db     *gorm.DB
	runID  string
	logger *logrus.Logger
}

// Open opens or creates the database at path and migrates the schema.
func Open(path string, log *logrus.Logger) (*Archive, error) {
	gormLog := logger.New(log, logger.Config{
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})

	db, err := gorm.Open(sqlite.Dialector{DriverName: "sqlite", DSN: path}, &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("failed to open archive %s: %w", path, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err := configureSQLite(sqlDB); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to configure archive: %w", err)
	}
	if err := db.AutoMigrate(&Run{}, &Burst{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate archive: %w", err)
	}

	log.WithField("path", path).Debug("Archive opened")
	return &Archive{db: db, logger: log}, nil
}

func configureSQLite(sqlDB *sql.DB) error {
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := sqlDB.Exec(pragma); err != nil {
			return err
		}
	}
	return nil
}

// StartRun inserts run and tags subsequent bursts with its ID.
func (a *Archive) StartRun(run *Run) error {
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	if err := a.db.Create(run).Error; err != nil {
		return fmt.Errorf("failed to store run: %w", err)
	}
	a.runID = run.ID
	return nil
}

// FinishRun stamps the end time of the current run.
func (a *Archive) FinishRun() error {
	if a.runID == "" {
		return nil
	}
	return a.db.Model(&Run{ID: a.runID}).Update("finished_at", time.Now().UTC()).Error
}

// Record stores p under the current run.
func (a *Archive) Record(ctx context.Context, p scheduler.Prepared) error {
	b := Burst{
		RunID:       a.runID,
		Stream:      p.Stream,
		TxTime:      p.TxTime,
		LogIndex:    p.LogIndex,
		FrameNumber: p.FrameNumber,
		Subframe:    p.Subframe,
		State:       p.State.String(),
		Recovered:   p.Recovered,
		Jam:         p.Jam,
		Skip:        p.Skip,
		Wire:        p.Burst,
	}
	if err := a.db.WithContext(ctx).Create(&b).Error; err != nil {
		return fmt.Errorf("archive: %w", err)
	}
	return nil
}

// Bursts returns the bursts of run in transmit order.
func (a *Archive) Bursts(runID string) ([]Burst, error) {
	var out []Burst
	err := a.db.Where("run_id = ?", runID).Order("tx_time, stream, id").Find(&out).Error
	return out, err
}

// Runs returns all runs, newest first.
func (a *Archive) Runs() ([]Run, error) {
	var out []Run
	err := a.db.Order("started_at desc").Find(&out).Error
	return out, err
}

// Close closes the database.
func (a *Archive) Close() error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
