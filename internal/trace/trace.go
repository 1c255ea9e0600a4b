// Package trace implements the observability layer's step/job trace model
// (spec.md §4.13): per-step records accumulating into a job trace, a
// bounded in-memory store, and export paths to JSON and to the
// trace.zip artifact layout described in spec.md §6.
package trace

import (
	"time"

	"github.com/dev-console/browserctl/internal/reason"
)

// StepTrace is one recorded step: start/end, duration, outcome, and the
// input/output maps a caller chose to attach.
type StepTrace struct {
	Name       string                 `json:"name"`
	Start      time.Time              `json:"start"`
	End        time.Time              `json:"end"`
	DurationMS int64                  `json:"duration_ms"`
	Success    bool                   `json:"success"`
	Reason     reason.Reason          `json:"reason"`
	Input      map[string]interface{} `json:"input,omitempty"`
	Output     map[string]interface{} `json:"output,omitempty"`
	RetryCount int                    `json:"retry_count"`
}

// StateTransition records one lifecycle or job-state change observed
// during a job.
type StateTransition struct {
	At   time.Time `json:"at"`
	From string    `json:"from"`
	To   string    `json:"to"`
}

// RecoveryAttempt records one action the recovery manager took.
type RecoveryAttempt struct {
	At      time.Time   `json:"at"`
	Level   string      `json:"level"`
	Success bool        `json:"success"`
	Reason  reason.Code `json:"reason"`
}

// JobTrace accumulates everything observed over one job's lifetime.
type JobTrace struct {
	JobID       string            `json:"job_id"`
	TargetID    string            `json:"target_id,omitempty"`
	Start       time.Time         `json:"start"`
	End         time.Time         `json:"end"`
	Success     bool              `json:"success"`
	Terminal    reason.Reason     `json:"terminal_reason"`
	Steps       []StepTrace       `json:"steps"`
	Transitions []StateTransition `json:"state_transitions"`
	Recoveries  []RecoveryAttempt `json:"recovery_attempts"`
}

// NewJob starts a JobTrace for jobID.
func NewJob(jobID, targetID string) *JobTrace {
	return &JobTrace{JobID: jobID, TargetID: targetID, Start: time.Now().UTC()}
}

// AddStep appends a completed step trace.
func (j *JobTrace) AddStep(s StepTrace) {
	if s.End.IsZero() {
		s.End = time.Now().UTC()
	}
	if s.DurationMS == 0 && !s.Start.IsZero() {
		s.DurationMS = s.End.Sub(s.Start).Milliseconds()
	}
	j.Steps = append(j.Steps, s)
}

// AddTransition records a state change.
func (j *JobTrace) AddTransition(from, to string) {
	j.Transitions = append(j.Transitions, StateTransition{At: time.Now().UTC(), From: from, To: to})
}

// AddRecovery records one recovery attempt.
func (j *JobTrace) AddRecovery(level string, success bool, code reason.Code) {
	j.Recoveries = append(j.Recoveries, RecoveryAttempt{At: time.Now().UTC(), Level: level, Success: success, Reason: code})
}

// Finish closes out the job trace with its terminal reason.
func (j *JobTrace) Finish(terminal reason.Reason) {
	j.End = time.Now().UTC()
	j.Terminal = terminal
	j.Success = terminal.IsSuccess()
}
