package app

import "time"

// Operation is one CLI invocation. Its ID tags every log line written while
// it runs.
type Operation struct {
	ID      string
	Command string
	Started time.Time
	Status  string // "success" or "error"
}

// NewOperation starts an operation for command at now.
func NewOperation(command string, now time.Time) *Operation {
	now = now.UTC()
	return &Operation{
		ID:      now.Format("20060102T150405.000Z"),
		Command: command,
		Started: now,
		Status:  "success",
	}
}

// Fail marks the operation as failed.
func (op *Operation) Fail() {
	op.Status = "error"
}

// Elapsed is the time since the operation started.
func (op *Operation) Elapsed(now time.Time) time.Duration {
	return now.Sub(op.Started)
}
