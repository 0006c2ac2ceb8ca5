package dojo

import (
	"errors"
	"fmt"
)

// StepStatus is the outcome of one step of an operation.
type StepStatus int

const (
	StepDone StepStatus = iota
	StepFailed
	StepSkipped
)

func (s StepStatus) String() string {
	switch s {
	case StepDone:
		return "Done"
	case StepFailed:
		return "Error"
	case StepSkipped:
		return "Skipped"
	default:
		return "Unknown"
	}
}

// Step records a single side effect attempted by an operation.
type Step struct {
	Name   string
	Status StepStatus
	Err    error
	Note   string
}

// Line renders the step the way it is shown to the operator.
func (s Step) Line() string {
	switch {
	case s.Err != nil:
		return fmt.Sprintf("%s... %s: %v", s.Name, s.Status, s.Err)
	case s.Note != "":
		return fmt.Sprintf("%s... %s: %s", s.Name, s.Status, s.Note)
	default:
		return fmt.Sprintf("%s... %s", s.Name, s.Status)
	}
}

// Report lists every step of one operation in the order attempted.
// Operations are best-effort: a failed step does not roll back earlier
// ones, and later independent steps still run.
type Report struct {
	Operation string
	Steps     []Step
}

func newReport(operation string) *Report {
	return &Report{Operation: operation}
}

// run executes fn as a named step and records its outcome.
func (r *Report) run(name string, fn func() error) error {
	err := fn()
	if err != nil {
		r.Steps = append(r.Steps, Step{Name: name, Status: StepFailed, Err: err})
		return err
	}
	r.Steps = append(r.Steps, Step{Name: name, Status: StepDone})
	return nil
}

func (r *Report) fail(name string, err error) {
	r.Steps = append(r.Steps, Step{Name: name, Status: StepFailed, Err: err})
}

func (r *Report) skip(name, note string) {
	r.Steps = append(r.Steps, Step{Name: name, Status: StepSkipped, Note: note})
}

// Failed reports whether any step failed.
func (r Report) Failed() bool {
	for _, step := range r.Steps {
		if step.Status == StepFailed {
			return true
		}
	}
	return false
}

// Err joins the errors of every failed step, or returns nil.
func (r Report) Err() error {
	var errs []error
	for _, step := range r.Steps {
		if step.Status == StepFailed && step.Err != nil {
			errs = append(errs, step.Err)
		}
	}
	return errors.Join(errs...)
}

// Lines renders every step, one per line.
func (r Report) Lines() []string {
	lines := make([]string, 0, len(r.Steps))
	for _, step := range r.Steps {
		lines = append(lines, step.Line())
	}
	return lines
}
