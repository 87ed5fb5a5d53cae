package splitter

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type RunnerConfig struct {
	// Ledger database path. Empty disables the ledger.
	DBPath string
	// Log and skip events with dangling references instead of aborting the run.
	SkipDangling bool
	Duplicates   DuplicatePolicy `validate:"omitempty,oneof=error last-write-wins"`
	// gzip level for output files; 0 selects gzip.DefaultCompression.
	GzipLevel int `validate:"min=-2,max=9"`
	// Coinc definition to split out. Zero value selects InspiralCoincDef.
	Target CoincDef
	Logger *zap.Logger `validate:"-"`
}

type Runner struct {
	cfg    RunnerConfig
	db     *gorm.DB
	logger *zap.Logger
}

type RunStats struct {
	RunID          string
	EventsSeen     int
	EventsWritten  int
	EventsSkipped  int
	EventsDangling int
	SeriesWritten  int
	BytesWritten   int64
}

func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if err := validator.New().Struct(cfg); err != nil {
		return nil, errors.Wrap(err, "invalid runner config")
	}
	if cfg.Duplicates == "" {
		cfg.Duplicates = DuplicatesError
	}
	if cfg.GzipLevel == 0 {
		cfg.GzipLevel = gzip.DefaultCompression
	}
	if cfg.Target.Search == "" {
		cfg.Target = InspiralCoincDef
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	r := &Runner{cfg: cfg, logger: cfg.Logger}
	if strings.TrimSpace(cfg.DBPath) != "" {
		db, err := OpenDB(cfg.DBPath)
		if err != nil {
			return nil, errors.Wrapf(err, "open ledger %s", cfg.DBPath)
		}
		r.db = db
	}
	return r, nil
}

func (r *Runner) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	err = sqlDB.Close()
	r.db = nil
	return err
}

// Run splits inputPath into one file per qualifying coinc event under outDir.
//
// A dangling reference aborts the run unless SkipDangling is set; files written for
// earlier events stay on disk.
func (r *Runner) Run(ctx context.Context, inputPath string, outDir string) (RunStats, error) {
	start := time.Now()
	stats := RunStats{}

	r.logger.Info("reading", zap.String("input", inputPath))
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return stats, errors.Wrap(err, "read input")
	}
	sum := sha256.Sum256(data)

	run, err := r.beginRun(inputPath, hex.EncodeToString(sum[:]), outDir, start)
	if err != nil {
		return stats, err
	}
	if run != nil {
		stats.RunID = run.RunID
	}

	runErr := r.split(ctx, data, outDir, run, &stats)
	if err := r.finishRun(run, &stats, runErr); err != nil {
		if runErr == nil {
			runErr = err
		} else {
			r.logger.Warn("ledger update failed", zap.Error(err))
		}
	}
	if runErr != nil {
		return stats, runErr
	}

	r.logger.Info("done",
		zap.Int("events", stats.EventsSeen),
		zap.Int("written", stats.EventsWritten),
		zap.Int("skipped", stats.EventsSkipped),
		zap.Int("dangling", stats.EventsDangling),
		zap.String("bytes", humanize.Bytes(uint64(stats.BytesWritten))),
		zap.Duration("elapsed", time.Since(start)),
	)
	return stats, nil
}

func (r *Runner) split(ctx context.Context, data []byte, outDir string, run *SplitRun, stats *RunStats) error {
	doc, err := ParseDocument(data)
	if err != nil {
		return err
	}

	r.logger.Info("indexing")
	idx, err := BuildIndex(doc, IndexOptions{
		Target:     r.cfg.Target,
		Duplicates: r.cfg.Duplicates,
		Logger:     r.logger,
	})
	if err != nil {
		return err
	}

	r.logger.Info("writing new files", zap.String("outdir", outDir))
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return errors.Wrap(err, "create output directory")
	}

	for _, coinc := range idx.CoincEvents() {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.EventsSeen++
		if !idx.Qualifies(coinc) {
			stats.EventsSkipped++
			continue
		}

		a, err := idx.Assemble(coinc)
		if err != nil {
			var dangling *DanglingReferenceError
			if r.cfg.SkipDangling && errors.As(err, &dangling) {
				r.logger.Warn("skipping event", zap.String("coinc_event_id", dangling.CoincEventID), zap.Error(err))
				stats.EventsDangling++
				continue
			}
			return err
		}
		if err := r.writeEvent(outDir, a, run, stats); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) writeEvent(outDir string, a *Assembled, run *SplitRun, stats *RunStats) error {
	data, err := a.Doc.Encode(r.cfg.GzipLevel)
	if err != nil {
		return errors.Wrapf(err, "encode coinc event %s", a.CoincEventID)
	}
	path, err := WriteFileAtomic(outDir, a.FileName, data)
	if err != nil {
		return errors.Wrapf(err, "write coinc event %s", a.CoincEventID)
	}

	stats.EventsWritten++
	stats.SeriesWritten += a.Series
	stats.BytesWritten += int64(len(data))
	r.logger.Debug("wrote event",
		zap.String("coinc_event_id", a.CoincEventID),
		zap.String("path", path),
		zap.Int("sngl_inspirals", a.SingleEvents),
		zap.Int("series", a.Series),
		zap.String("size", humanize.Bytes(uint64(len(data)))),
	)

	if r.db == nil || run == nil {
		return nil
	}
	sum := sha256.Sum256(data)
	out := SplitOutput{
		RunID:        run.RunID,
		CoincEventID: a.CoincEventID,
		Path:         path,
		SHA256:       hex.EncodeToString(sum[:]),
		SizeBytes:    int64(len(data)),
		SingleEvents: a.SingleEvents,
		Series:       a.Series,
		WrittenAt:    time.Now().UTC(),
	}
	if err := r.db.Create(&out).Error; err != nil {
		return errors.Wrap(err, "record output in ledger")
	}
	return nil
}

func (r *Runner) beginRun(inputPath string, inputSHA string, outDir string, start time.Time) (*SplitRun, error) {
	if r.db == nil {
		return nil, nil
	}
	run := &SplitRun{
		RunID:       uuid.NewString(),
		InputPath:   inputPath,
		InputSHA256: inputSHA,
		OutDir:      outDir,
		StartedAt:   start.UTC(),
	}
	if err := r.db.Create(run).Error; err != nil {
		return nil, errors.Wrap(err, "record run in ledger")
	}
	return run, nil
}

func (r *Runner) finishRun(run *SplitRun, stats *RunStats, runErr error) error {
	if r.db == nil || run == nil {
		return nil
	}
	now := time.Now().UTC()
	lastError := ""
	if runErr != nil {
		lastError = runErr.Error()
	}
	return r.db.Model(run).Updates(map[string]any{
		"finished_at":    &now,
		"events_written": stats.EventsWritten,
		"last_error":     lastError,
	}).Error
}
