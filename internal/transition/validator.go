// Package transition decides whether a dialog may move from one context to another.
package transition

import (
	"fmt"

	"toneroute/internal/logging"
	"toneroute/internal/rules"
	"toneroute/internal/textutil"
)

// Reasons returned by Validate.
const (
	ReasonSame      = "same context"
	ReasonSmooth    = "smooth transition based on dialog history"
	ReasonPermitted = "transition permitted"
)

// Validator is safe for concurrent use.
type Validator struct {
	table *rules.Table
}

// NewValidator binds a validator to table.
func NewValidator(table *rules.Table) (*Validator, error) {
	if table == nil {
		return nil, fmt.Errorf("transition: %w", rules.ErrNilTable)
	}
	return &Validator{table: table}, nil
}

// Validate reports whether the switch current -> proposed is allowed by the
// directed compatibility graph, and why.
func (v *Validator) Validate(current, proposed rules.ContextID, history []string) (bool, string) {
	ok, reason := v.validate(current, proposed, history)
	logging.TransitionDebug("%s -> %s: allowed=%t (%s)", current, proposed, ok, reason)
	logging.Audit(logging.AuditEvent{
		Type: logging.AuditTransitionCheck,
		Fields: map[string]interface{}{
			"from":    string(current),
			"to":      string(proposed),
			"allowed": ok,
		},
	})
	return ok, reason
}

func (v *Validator) validate(current, proposed rules.ContextID, history []string) (bool, string) {
	if current == proposed {
		return true, ReasonSame
	}
	if !v.table.Compatible(current, proposed) {
		return false, AbruptReason(current, proposed)
	}

	window := v.table.Scoring().TransitionWindow
	if len(history) > window {
		history = history[len(history)-window:]
	}
	def, _ := v.table.Definition(proposed)
	folder := v.table.Folder()
	for _, entry := range history {
		if textutil.ContainsAny(folder.Fold(entry), def.Keywords) {
			return true, ReasonSmooth
		}
	}
	return true, ReasonPermitted
}

// AbruptReason formats the rejection reason for a disallowed switch.
func AbruptReason(from, to rules.ContextID) string {
	return fmt.Sprintf("abrupt transition from %s to %s", from, to)
}
