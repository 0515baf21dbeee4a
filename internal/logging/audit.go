package logging

import "time"

// =============================================================================
// AUDIT EVENT TYPES
// =============================================================================

// AuditEventType names a classification decision worth keeping a record of.
type AuditEventType string

const (
	AuditRouteDecided     AuditEventType = "route_decided"
	AuditStyleAnalyzed    AuditEventType = "style_analyzed"
	AuditSignatureBuilt   AuditEventType = "signature_built"
	AuditTransitionCheck  AuditEventType = "transition_checked"
	AuditRuleTableLoaded  AuditEventType = "rule_table_loaded"
	AuditRuleTableRejects AuditEventType = "rule_table_rejected"
)

// AuditEvent is one structured decision record.
type AuditEvent struct {
	Type      AuditEventType
	Timestamp time.Time
	Fields    map[string]interface{}
}

// Audit writes event to the audit category. No-op when the category is disabled.
func Audit(event AuditEvent) {
	if !IsCategoryEnabled(CategoryAudit) {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	fields := make(map[string]interface{}, len(event.Fields)+1)
	for k, v := range event.Fields {
		fields[k] = v
	}
	fields["ts"] = event.Timestamp.UnixMilli()
	Get(CategoryAudit).StructuredLog("info", string(event.Type), fields)
}
