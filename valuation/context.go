// Package valuation carries the evaluation settings threaded through every
// calculation.
package valuation

import (
	"time"

	"github.com/meenmo/quantcore/qerr"
)

// Context holds the evaluation date. Calculations take it explicitly.
type Context struct {
	EvaluationDate time.Time
	// IncludeReferenceDateEvents treats cash flows on the evaluation date as
	// not yet occurred.
	IncludeReferenceDateEvents bool
}

// NewContext truncates d to a UTC date.
func NewContext(d time.Time) Context {
	return Context{EvaluationDate: time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)}
}

// Validate rejects a zero evaluation date.
func (c Context) Validate() error {
	if c.EvaluationDate.IsZero() {
		return qerr.Invalid("evaluation date not set")
	}
	return nil
}

// HasOccurred reports whether an event on d is in the past.
func (c Context) HasOccurred(d time.Time) bool {
	if c.IncludeReferenceDateEvents {
		return d.Before(c.EvaluationDate)
	}
	return !d.After(c.EvaluationDate)
}
