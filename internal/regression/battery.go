// Package regression provides a lightweight regression battery harness.
// Batteries are YAML-defined classification cases run against an engine to
// catch behavior drift when a rule table is edited.
package regression

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"toneroute/internal/engine"
	"toneroute/internal/logging"
	"toneroute/internal/router"
	"toneroute/internal/rules"
	"toneroute/internal/signals"
)

//go:embed defaults/battery.yaml
var defaultBattery []byte

// Case types.
const (
	TypeRoute      = "route"
	TypeAnalyze    = "analyze"
	TypeTransition = "transition"
)

// Battery is a collection of regression cases.
type Battery struct {
	Version int    `yaml:"version"`
	Cases   []Case `yaml:"cases"`
}

// Case is a single regression case.
type Case struct {
	ID   string `yaml:"id"`
	Type string `yaml:"type"` // route (default), analyze, transition

	Message     string               `yaml:"message,omitempty"`
	History     []string             `yaml:"history,omitempty"`
	Time        *signals.TimeInfo    `yaml:"time,omitempty"`
	Preferences *signals.Preferences `yaml:"preferences,omitempty"`
	Known       rules.ContextID      `yaml:"known,omitempty"`
	From        rules.ContextID      `yaml:"from,omitempty"`
	To          rules.ContextID      `yaml:"to,omitempty"`

	Expect Expect `yaml:"expect"`
}

// Expect lists the assertions of a case. Zero fields are not checked.
type Expect struct {
	Context       rules.ContextID `yaml:"context,omitempty"`
	Allowed       *bool           `yaml:"allowed,omitempty"`
	Reason        string          `yaml:"reason,omitempty"`
	MinConfidence float64         `yaml:"min_confidence,omitempty"`
	MaxConfidence float64         `yaml:"max_confidence,omitempty"`
	Tone          string          `yaml:"tone,omitempty"`
}

// Result captures the outcome of one case.
type Result struct {
	CaseID     string `json:"case_id"`
	Success    bool   `json:"success"`
	Output     string `json:"output"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// Parse decodes a battery document.
func Parse(data []byte) (*Battery, error) {
	var b Battery
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to parse battery YAML: %w", err)
	}
	return &b, nil
}

// LoadBattery reads a YAML battery file from disk.
func LoadBattery(path string) (*Battery, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// DefaultBattery returns the embedded battery covering the stock rule table.
func DefaultBattery() *Battery {
	b, err := Parse(defaultBattery)
	if err != nil {
		panic(fmt.Sprintf("embedded battery is invalid: %v", err))
	}
	return b
}

// RunBattery executes every case in order. With failFast it stops at the first failure.
func RunBattery(ctx context.Context, e *engine.Engine, b *Battery, failFast bool) ([]Result, error) {
	if b == nil || len(b.Cases) == 0 {
		return nil, nil
	}
	if e == nil {
		return nil, fmt.Errorf("regression: engine is nil")
	}

	results := make([]Result, 0, len(b.Cases))
	for _, c := range b.Cases {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		start := time.Now()
		res := Result{CaseID: c.ID}

		out, err := runCase(e, c)
		res.Output = out
		if err != nil {
			res.Error = err.Error()
		} else {
			res.Success = true
		}
		res.DurationMs = time.Since(start).Milliseconds()
		results = append(results, res)

		if !res.Success {
			logging.Get(logging.CategoryRules).Warn("battery case %s failed: %s", c.ID, res.Error)
			if failFast {
				break
			}
		}
	}
	return results, nil
}

// Failed counts unsuccessful results.
func Failed(results []Result) int {
	n := 0
	for _, r := range results {
		if !r.Success {
			n++
		}
	}
	return n
}

func runCase(e *engine.Engine, c Case) (string, error) {
	t := strings.ToLower(strings.TrimSpace(c.Type))
	if t == "" {
		t = TypeRoute
	}

	switch t {
	case TypeRoute:
		route, err := e.Route(router.Request{
			Message:     c.Message,
			History:     c.History,
			Preferences: c.Preferences,
			Time:        c.Time,
		})
		if err != nil {
			return "", err
		}
		out := fmt.Sprintf("%s (%.2f) tone=%s", route.PrimaryContext, route.Confidence, route.Suggestions.Tone)
		return out, checkRoute(c.Expect, route)

	case TypeAnalyze:
		res := e.Analyze(c.Message, c.Known)
		out := string(res.DetectedContext)
		if c.Expect.Context != "" && res.DetectedContext != c.Expect.Context {
			return out, fmt.Errorf("context = %s, want %s", res.DetectedContext, c.Expect.Context)
		}
		if c.Expect.Tone != "" && (res.Suggested == nil || res.Suggested.Tone != c.Expect.Tone) {
			return out, fmt.Errorf("suggested tone mismatch, want %s", c.Expect.Tone)
		}
		return out, nil

	case TypeTransition:
		ok, reason := e.Validate(c.From, c.To, c.History)
		out := fmt.Sprintf("allowed=%t reason=%q", ok, reason)
		if c.Expect.Allowed != nil && ok != *c.Expect.Allowed {
			return out, fmt.Errorf("allowed = %t, want %t", ok, *c.Expect.Allowed)
		}
		if c.Expect.Reason != "" && reason != c.Expect.Reason {
			return out, fmt.Errorf("reason = %q, want %q", reason, c.Expect.Reason)
		}
		return out, nil

	default:
		return "", fmt.Errorf("unsupported case type: %s", c.Type)
	}
}

func checkRoute(exp Expect, route router.Route) error {
	if exp.Context != "" && route.PrimaryContext != exp.Context {
		return fmt.Errorf("primary = %s, want %s", route.PrimaryContext, exp.Context)
	}
	if exp.MinConfidence > 0 && route.Confidence < exp.MinConfidence {
		return fmt.Errorf("confidence %.3f below %.3f", route.Confidence, exp.MinConfidence)
	}
	if exp.MaxConfidence > 0 && route.Confidence > exp.MaxConfidence {
		return fmt.Errorf("confidence %.3f above %.3f", route.Confidence, exp.MaxConfidence)
	}
	if exp.Tone != "" && route.Suggestions.Tone != exp.Tone {
		return fmt.Errorf("tone = %s, want %s", route.Suggestions.Tone, exp.Tone)
	}
	return nil
}
