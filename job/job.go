package job

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Job is a single demo execution request and its outcome.
type Job struct {
	ID          string          `json:"job_id"`
	DemoID      string          `json:"demo_id"`
	Parameters  json.RawMessage `json:"parameters"`
	Status      Status          `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	Result      *Result         `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// Snapshot is the caller-facing view of a Job. Parameters are not echoed.
type Snapshot struct {
	JobID       string     `json:"job_id"`
	DemoID      string     `json:"demo_id"`
	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Result      *Result    `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// NewID returns a fresh opaque job identifier.
func NewID() string {
	return uuid.NewString()
}

// New creates a pending job with a fresh id.
func New(demoID string, params json.RawMessage, now time.Time) *Job {
	if len(params) == 0 {
		params = json.RawMessage("{}")
	}
	return &Job{
		ID:         NewID(),
		DemoID:     demoID,
		Parameters: append(json.RawMessage(nil), params...),
		Status:     StatusPending,
		CreatedAt:  now.UTC(),
	}
}

// Clone returns a deep copy safe to hand to another goroutine.
func (j *Job) Clone() *Job {
	out := *j
	out.Parameters = append(json.RawMessage(nil), j.Parameters...)
	if j.StartedAt != nil {
		t := *j.StartedAt
		out.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		out.CompletedAt = &t
	}
	out.Result = j.Result.Clone()
	return &out
}

// Snapshot returns the caller-facing view.
func (j *Job) Snapshot() Snapshot {
	c := j.Clone()
	return Snapshot{
		JobID:       c.ID,
		DemoID:      c.DemoID,
		Status:      c.Status,
		CreatedAt:   c.CreatedAt,
		StartedAt:   c.StartedAt,
		CompletedAt: c.CompletedAt,
		Result:      c.Result,
		Error:       c.Error,
	}
}

// MarkRunning moves a pending job to running.
func (j *Job) MarkRunning(now time.Time) error {
	if err := CheckTransition(j.Status, StatusRunning); err != nil {
		return err
	}
	t := now.UTC()
	j.Status = StatusRunning
	j.StartedAt = &t
	return nil
}

// Finish moves the job to a terminal status and records its outcome.
func (j *Job) Finish(status Status, result *Result, errMsg string, now time.Time) error {
	if !status.IsTerminal() {
		return fmt.Errorf("%w: %s is not terminal", ErrInvalidTransition, status)
	}
	if err := CheckTransition(j.Status, status); err != nil {
		return err
	}
	t := now.UTC()
	j.Status = status
	j.CompletedAt = &t
	j.Result = result.Clone()
	j.Error = errMsg
	return nil
}
