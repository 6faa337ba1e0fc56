package runlog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"lazyweave/internal/logging"
)

// DefaultKeep is the number of runs kept on disk.
const DefaultKeep = 20

// Recorder writes run.json and failure.json for each run and prunes old runs.
type Recorder struct {
	Store  *Store
	Keep   int
	Now    func() time.Time
	Logger *slog.Logger
}

func NewRecorder(store *Store, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Recorder{Store: store, Keep: DefaultKeep, Now: time.Now, Logger: logger}
}

func NewRunID() string {
	return uuid.NewString()
}

// Start persists a RUNNING record for task, linked to the newest earlier run.
func (r *Recorder) Start(task string) (*Run, error) {
	if r == nil || r.Store == nil {
		return nil, errors.New("Store is required")
	}
	run := &Run{
		RunID:     NewRunID(),
		Task:      task,
		StartTime: r.now(),
		Status:    StatusRunning,
	}
	if prev, err := r.Store.ListRuns(); err == nil && len(prev) > 0 {
		id := prev[len(prev)-1].RunID
		run.PreviousRunID = &id
	}
	if err := r.Store.SaveRun(*run); err != nil {
		return nil, err
	}
	return run, nil
}

// Finish completes run. A nil runErr marks it succeeded; otherwise the
// classified failure is written alongside. Old runs are pruned afterwards.
func (r *Recorder) Finish(run *Run, runErr error) error {
	if r == nil || r.Store == nil {
		return errors.New("Store is required")
	}
	if run == nil {
		return errors.New("nil run")
	}
	end := r.now()
	if end.Before(run.StartTime) {
		end = run.StartTime
	}
	run.EndTime = &end
	switch {
	case runErr == nil:
		run.Status = StatusSucceeded
	case errors.Is(runErr, context.Canceled):
		run.Status = StatusCancelled
	default:
		run.Status = StatusFailed
	}

	if err := r.Store.SaveRun(*run); err != nil {
		return err
	}
	if runErr != nil {
		if err := r.Store.SaveFailure(run.RunID, Classify(runErr)); err != nil {
			return fmt.Errorf("record failure: %w", err)
		}
	}

	keep := r.Keep
	if keep <= 0 {
		keep = DefaultKeep
	}
	removed, err := r.Store.Prune(keep)
	if err != nil {
		return fmt.Errorf("prune runs: %w", err)
	}
	if len(removed) > 0 {
		r.Logger.Debug("pruned run records", "count", len(removed))
	}
	return nil
}

func (r *Recorder) now() time.Time {
	if r.Now == nil {
		return time.Now().UTC()
	}
	return r.Now().UTC()
}
