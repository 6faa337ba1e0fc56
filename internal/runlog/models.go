package runlog

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type RunStatus string

const (
	StatusRunning   RunStatus = "running"
	StatusSucceeded RunStatus = "succeeded"
	StatusFailed    RunStatus = "failed"
	StatusCancelled RunStatus = "cancelled"
)

// Run is the persistent record of one `lazy run` invocation.
//
// end_time and previous_run_id are always present and null until known.
type Run struct {
	RunID         string         `json:"run_id"`
	Task          string         `json:"task"`
	GraphHash     string         `json:"graph_hash,omitempty"`
	StartTime     time.Time      `json:"start_time"`
	EndTime       *time.Time     `json:"end_time"`
	Status        RunStatus      `json:"status"`
	Counts        map[string]int `json:"counts,omitempty"`
	PreviousRunID *string        `json:"previous_run_id"`
}

func (r Run) Validate() error {
	var errs []error
	if strings.TrimSpace(r.RunID) == "" {
		errs = append(errs, errors.New("run_id is required"))
	}
	if strings.TrimSpace(r.Task) == "" {
		errs = append(errs, errors.New("task is required"))
	}
	if r.StartTime.IsZero() {
		errs = append(errs, errors.New("start_time is required"))
	}
	switch r.Status {
	case StatusRunning, StatusSucceeded, StatusFailed, StatusCancelled:
	default:
		errs = append(errs, fmt.Errorf("invalid status %q", r.Status))
	}
	if r.EndTime != nil && r.EndTime.Before(r.StartTime) {
		errs = append(errs, errors.New("end_time precedes start_time"))
	}
	if r.PreviousRunID != nil && strings.TrimSpace(*r.PreviousRunID) == "" {
		errs = append(errs, errors.New("previous_run_id must not be empty when provided"))
	}
	for state, n := range r.Counts {
		if n < 0 {
			errs = append(errs, fmt.Errorf("counts[%s] must be >= 0", state))
		}
	}
	return errors.Join(errs...)
}

type FailureClass string

const (
	FailureClassConfig    FailureClass = "config"
	FailureClassGraph     FailureClass = "graph"
	FailureClassExecution FailureClass = "execution"
	FailureClassIO        FailureClass = "io"
)

// Failure is the recorded reason a run did not succeed.
type Failure struct {
	FailureClass FailureClass `json:"failure_class"`
	TaskKey      *string      `json:"task_key,omitempty"`
	ErrorCode    string       `json:"error_code"`
	ErrorMessage string       `json:"error_message"`
}

func (f Failure) Validate() error {
	var errs []error
	switch f.FailureClass {
	case FailureClassConfig, FailureClassGraph, FailureClassExecution, FailureClassIO:
	default:
		errs = append(errs, fmt.Errorf("invalid failure_class %q", f.FailureClass))
	}
	if f.TaskKey != nil && strings.TrimSpace(*f.TaskKey) == "" {
		errs = append(errs, errors.New("task_key must not be empty when provided"))
	}
	if strings.TrimSpace(f.ErrorCode) == "" {
		errs = append(errs, errors.New("error_code is required"))
	}
	if strings.TrimSpace(f.ErrorMessage) == "" {
		errs = append(errs, errors.New("error_message is required"))
	}
	return errors.Join(errs...)
}
