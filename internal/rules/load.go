package rules

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"toneroute/internal/logging"
)

//go:embed defaults/rules.yaml
var defaultRules []byte

// DefaultYAML returns a copy of the embedded default rule document.
func DefaultYAML() []byte {
	return append([]byte(nil), defaultRules...)
}

// Parse decodes a rule document without validating it. Absent scoring keys keep
// their DefaultScoring values. Unknown keys are rejected.
func Parse(data []byte) (Document, error) {
	doc := Document{
		Version:  1,
		Language: "ru",
		Scoring:  DefaultScoring(),
		Style:    Lexicon{Confidence: 0.8},
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return Document{}, fmt.Errorf("failed to parse rule table: %w", err)
	}
	return doc, nil
}

// Load parses and validates a rule document.
func Load(data []byte) (*Table, error) {
	doc, err := Parse(data)
	if err != nil {
		logging.Audit(logging.AuditEvent{
			Type:   logging.AuditRuleTableRejects,
			Fields: map[string]interface{}{"reason": err.Error()},
		})
		return nil, err
	}

	t, err := New(doc)
	if err != nil {
		fields := map[string]interface{}{"reason": err.Error()}
		var verr *ValidationError
		if errors.As(err, &verr) {
			fields["issues"] = len(verr.Issues)
		}
		logging.Audit(logging.AuditEvent{Type: logging.AuditRuleTableRejects, Fields: fields})
		return nil, err
	}

	for _, w := range t.Warnings() {
		logging.RulesWarn("%s", w.String())
	}
	logging.Rules("rule table loaded: %d contexts, language=%s", t.Len(), t.Language())
	logging.Audit(logging.AuditEvent{
		Type: logging.AuditRuleTableLoaded,
		Fields: map[string]interface{}{
			"contexts": t.Len(),
			"warnings": len(t.warnings),
			"language": t.Language(),
		},
	})
	return t, nil
}

// LoadFile reads and validates a rule document from path.
func LoadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule table %s: %w", path, err)
	}
	t, err := Load(data)
	if err != nil {
		return nil, fmt.Errorf("rule table %s: %w", path, err)
	}
	return t, nil
}

// Default builds a fresh Table from the embedded rule document.
func Default() (*Table, error) {
	return Load(defaultRules)
}

// MustDefault is Default for tests and static initialization; it panics on error.
func MustDefault() *Table {
	t, err := Default()
	if err != nil {
		panic(fmt.Sprintf("embedded rule table is invalid: %v", err))
	}
	return t
}
