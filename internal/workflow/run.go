package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/MRC-CBU/BIDS-conversion/internal/config"
	"github.com/MRC-CBU/BIDS-conversion/internal/deps"
	"github.com/MRC-CBU/BIDS-conversion/internal/fileutil"
	"github.com/MRC-CBU/BIDS-conversion/internal/ledger"
	"github.com/MRC-CBU/BIDS-conversion/internal/logging"
	"github.com/MRC-CBU/BIDS-conversion/internal/meta"
	"github.com/MRC-CBU/BIDS-conversion/internal/preflight"
	"github.com/MRC-CBU/BIDS-conversion/internal/services"
)

const lockFileName = "convert.lock"

// Runner executes the batch conversion loop around a Driver.
type Runner struct {
	cfg    *config.Config
	store  *ledger.Store
	driver *Driver
	logger *slog.Logger
	runLog *RunLogger
}

// RunOptions carries per-invocation settings for a batch run.
type RunOptions struct {
	// ConfigPath is recorded in the ledger so reports can name the
	// configuration a run was produced with.
	ConfigPath string
	// Subject restricts the run to a single label from the subject
	// dictionary. Empty converts every listed subject.
	Subject string
}

// RunReport summarizes a finished batch run.
type RunReport struct {
	RunID    string
	LogPath  string
	Summary  ledger.Summary
	Subjects []*ledger.Subject
}

// Failed reports whether any subject ended in a failure status.
func (r *RunReport) Failed() bool {
	return r.Summary.Failed > 0 || r.Summary.Review > 0
}

// NewRunner constructs a batch runner.
func NewRunner(cfg *config.Config, store *ledger.Store, driver *Driver, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Runner{
		cfg:    cfg,
		store:  store,
		driver: driver,
		logger: logger,
		runLog: NewRunLogger(cfg),
	}
}

// Run converts every selected subject. Subject failures are recorded in the
// ledger and do not interrupt the loop; the returned error is reserved for
// run-level problems that abort before or during the whole batch.
func (r *Runner) Run(ctx context.Context, opts RunOptions) (*RunReport, error) {
	lock := flock.New(filepath.Join(r.cfg.Paths.StateDir, lockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !locked {
		return nil, services.Wrap(services.ErrConfiguration, "run", "lock", "another conversion run is already active", nil)
	}
	defer lock.Unlock()

	if err := r.checkReadiness(); err != nil {
		return nil, err
	}

	dict, roster, err := r.loadMetadata()
	if err != nil {
		return nil, err
	}

	labels := roster.Labels()
	if opts.Subject != "" {
		if _, ok := roster.Subjects[opts.Subject]; !ok {
			return nil, services.Wrap(services.ErrConfiguration, "run", opts.Subject, "subject not in subject dictionary", nil)
		}
		labels = []string{opts.Subject}
	}

	runID := uuid.NewString()
	logger, logPath, err := r.runLog.Attach(r.logger, runID)
	if err != nil {
		r.logger.Warn("run log unavailable, logging to main output only", logging.Error(err))
		logger = r.logger
	}
	r.driver.SetLogger(logger)

	logging.CleanupOldLogs(logger, r.cfg.Logging.RetentionDays,
		logging.RetentionTarget{
			Dir:     r.cfg.Paths.LogDir,
			Pattern: "*.log",
			Exclude: []string{filepath.Join(r.cfg.Paths.LogDir, "megbids.log")},
		},
		logging.RetentionTarget{
			Dir:     filepath.Join(r.cfg.Paths.LogDir, "runs"),
			Pattern: "*.log",
			Exclude: []string{logPath},
		},
	)

	if _, err := r.store.BeginRun(ctx, runID, opts.ConfigPath, len(labels)); err != nil {
		return nil, fmt.Errorf("record run start: %w", err)
	}
	if err := r.driver.writer.EnsureDataset(); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "run", "dataset", "write dataset metadata", err)
	}

	runCtx := services.WithRunID(ctx, runID)
	logging.WithContext(runCtx, logger).Info("conversion run started",
		logging.Int("subjects", len(labels)),
		logging.String("log_file", logPath),
		logging.String(logging.FieldEventType, "run_start"))

	start := time.Now()
	var loopErr error
	for _, label := range labels {
		if err := runCtx.Err(); err != nil {
			loopErr = err
			break
		}
		if err := r.convertOne(runCtx, logger, runID, label, roster.Subjects[label], dict); err != nil {
			loopErr = err
			break
		}
	}

	// Teardown still runs when the loop was interrupted, so the ledger never
	// records a run without a finish time.
	finishCtx := context.WithoutCancel(runCtx)
	if err := r.store.FinishRun(finishCtx, runID); err != nil {
		logger.Error("failed to record run finish", logging.Error(err))
	}
	r.purgeSourcedata(logger)

	report, err := r.buildReport(finishCtx, runID, logPath)
	if err != nil {
		return nil, err
	}
	logging.WithContext(runCtx, logger).Info("conversion run finished",
		logging.Int("completed", report.Summary.Completed),
		logging.Int("failed", report.Summary.Failed),
		logging.Int("review", report.Summary.Review),
		logging.Int("skipped", report.Summary.Skipped),
		logging.Duration("run_duration", time.Since(start)),
		logging.String(logging.FieldEventType, "run_complete"))
	return report, loopErr
}

// convertOne processes a single subject and persists its ledger outcome. The
// returned error is non-nil only when the whole run must stop.
func (r *Runner) convertOne(ctx context.Context, logger *slog.Logger, runID, label string, sub meta.Subject, dict *meta.Dictionary) error {
	record, err := r.store.AddSubject(ctx, runID, label, sub.BIDSID)
	if err != nil {
		return fmt.Errorf("record subject %s: %w", label, err)
	}

	subjectCtx := services.WithSubject(ctx, label)
	subjectLogger := logging.WithContext(subjectCtx, logger)

	if !sub.Convertible() {
		record.Skip(time.Now(), "no bids identifier")
		if err := r.store.Update(ctx, record); err != nil {
			return fmt.Errorf("persist skip for %s: %w", label, err)
		}
		subjectLogger.Info("subject has no bids identifier, skipping",
			logging.String(logging.FieldEventType, "subject_skipped"))
		return nil
	}

	record.Start(time.Now())
	if err := r.store.Update(ctx, record); err != nil {
		return fmt.Errorf("persist start for %s: %w", label, err)
	}
	subjectLogger.Info("subject conversion started",
		logging.String("bids_id", sub.BIDSID),
		logging.Int("raw_files", len(sub.RawFiles)),
		logging.String(logging.FieldEventType, "subject_start"))

	subjectStart := time.Now()
	outcome, convErr := r.driver.ConvertSubject(subjectCtx, label, sub, dict)
	if convErr != nil {
		interrupted := errors.Is(convErr, context.Canceled)
		message := strings.TrimSpace(convErr.Error())
		if interrupted {
			message = "run interrupted"
		}
		record.Fail(time.Now(), services.FailureStatus(convErr), message)
		if err := r.store.Update(context.WithoutCancel(ctx), record); err != nil {
			subjectLogger.Error("failed to persist subject failure", logging.Error(err))
		}
		logging.ErrorWithContext(subjectLogger, "subject conversion failed", "subject_failed",
			logging.Error(convErr),
			logging.String("resolved_status", string(record.Status)),
			logging.Int("recordings_written", outcome.Recordings))
		if interrupted {
			return convErr
		}
		return nil
	}

	record.Complete(time.Now(), outcome.Recordings, outcome.Events)
	if err := r.store.Update(ctx, record); err != nil {
		return fmt.Errorf("persist completion for %s: %w", label, err)
	}
	subjectLogger.Info("subject conversion completed",
		logging.Int("recordings", outcome.Recordings),
		logging.Int("events", outcome.Events),
		logging.Bool("structural", outcome.Structural),
		logging.Duration("subject_duration", time.Since(subjectStart)),
		logging.String(logging.FieldEventType, "subject_complete"))
	return nil
}

// checkReadiness runs the filesystem preflight checks and verifies the
// mandatory external tools, aborting with every failure listed.
func (r *Runner) checkReadiness() error {
	var failures []string
	for _, result := range preflight.RunAll(r.cfg) {
		if result.Passed {
			r.logger.Debug("preflight check passed",
				logging.String("check", result.Name),
				logging.String("detail", result.Detail))
			continue
		}
		r.logger.Error("preflight check failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldEventType, "preflight_failed"))
		failures = append(failures, fmt.Sprintf("%s: %s", result.Name, result.Detail))
	}
	if len(failures) > 0 {
		return services.Wrap(services.ErrConfiguration, "run", "preflight",
			fmt.Sprintf("preflight checks failed: %s", strings.Join(failures, "; ")), nil)
	}

	for _, status := range deps.Missing(preflight.CheckTools(r.cfg)) {
		failures = append(failures, fmt.Sprintf("%s (%s)", status.Name, status.Detail))
	}
	if len(failures) > 0 {
		return services.Wrap(services.ErrConfiguration, "run", "tools",
			fmt.Sprintf("required tools missing: %s", strings.Join(failures, "; ")), nil)
	}
	return nil
}

func (r *Runner) loadMetadata() (*meta.Dictionary, *meta.Roster, error) {
	dict, err := meta.LoadDictionary(r.cfg.Metadata.EventsFile)
	if err != nil {
		return nil, nil, services.Wrap(services.ErrConfiguration, "run", "events", "load event dictionary", err)
	}
	roster, err := meta.LoadSubjects(r.cfg.Metadata.SubjectsFile)
	if err != nil {
		return nil, nil, services.Wrap(services.ErrConfiguration, "run", "subjects", "load subject dictionary", err)
	}
	if err := roster.Validate(); err != nil {
		return nil, nil, services.Wrap(services.ErrSubjectData, "run", "subjects", "validate subject dictionary", err)
	}
	return dict, roster, nil
}

func (r *Runner) purgeSourcedata(logger *slog.Logger) {
	if r.cfg.Workflow.KeepSourcedata {
		logger.Debug("keeping staged copies", logging.String("dir", r.cfg.Paths.SourcedataDir))
		return
	}
	if err := fileutil.ClearDirectory(r.cfg.Paths.SourcedataDir); err != nil {
		logger.Warn("failed to purge staged copies",
			logging.String("dir", r.cfg.Paths.SourcedataDir),
			logging.Error(err))
		return
	}
	logger.Debug("purged staged copies", logging.String("dir", r.cfg.Paths.SourcedataDir))
}

func (r *Runner) buildReport(ctx context.Context, runID, logPath string) (*RunReport, error) {
	summary, err := r.store.Summarize(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("summarize run: %w", err)
	}
	subjects, err := r.store.ListSubjects(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("list run subjects: %w", err)
	}
	return &RunReport{RunID: runID, LogPath: logPath, Summary: summary, Subjects: subjects}, nil
}
