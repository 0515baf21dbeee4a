package logging

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zapcore"
)

// initBuffered points logging at an in-memory buffer and restores the silent default afterwards.
func initBuffered(t *testing.T, opts Options) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	opts.Output = zapcore.AddSync(&buf)
	if err := Initialize(opts); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	t.Cleanup(func() {
		CloseAll()
		_ = Initialize(Options{})
	})
	return &buf
}

// TestAllCategoriesLog tests that every category writes when debug_mode is true
func TestAllCategoriesLog(t *testing.T) {
	buf := initBuffered(t, Options{DebugMode: true, Level: "debug"})

	if !IsDebugMode() {
		t.Error("Expected debug mode to be enabled")
	}

	categories := []Category{
		CategoryBoot,
		CategoryRules,
		CategoryRouting,
		CategoryStyle,
		CategorySignature,
		CategoryTransition,
		CategoryCLI,
	}

	for _, cat := range categories {
		if !IsCategoryEnabled(cat) {
			t.Errorf("Category %s should be enabled", cat)
		}
		logger := Get(cat)
		logger.Info("info message for %s", cat)
		logger.Debug("debug message for %s", cat)
		logger.Warn("warn message for %s", cat)
		logger.Error("error message for %s", cat)
	}

	Rules("convenience rules log")
	RoutingDebug("convenience routing log")
	CloseAll()

	out := buf.String()
	for _, cat := range categories {
		if !strings.Contains(out, "info message for "+string(cat)) {
			t.Errorf("missing info entry for category %s", cat)
		}
	}
	if !strings.Contains(out, "convenience rules log") {
		t.Error("convenience function did not log")
	}
}

// TestDebugModeDisabled tests that nothing is written when debug_mode is false
func TestDebugModeDisabled(t *testing.T) {
	buf := initBuffered(t, Options{DebugMode: false, Level: "debug"})

	if IsDebugMode() {
		t.Error("Expected debug mode to be disabled")
	}
	Get(CategoryRouting).Error("should not appear")
	Boot("should not appear either")
	CloseAll()

	if buf.Len() != 0 {
		t.Errorf("expected no output in production mode, got: %s", buf.String())
	}
}

func TestCategoryToggle(t *testing.T) {
	buf := initBuffered(t, Options{
		DebugMode:  true,
		Level:      "info",
		Categories: map[string]bool{"style": false},
	})

	if IsCategoryEnabled(CategoryStyle) {
		t.Error("style category should be disabled")
	}
	if !IsCategoryEnabled(CategoryRouting) {
		t.Error("unlisted categories should default to enabled")
	}

	Get(CategoryStyle).Info("hidden style entry")
	Get(CategoryRouting).Info("visible routing entry")
	CloseAll()

	out := buf.String()
	if strings.Contains(out, "hidden style entry") {
		t.Error("disabled category wrote output")
	}
	if !strings.Contains(out, "visible routing entry") {
		t.Error("enabled category did not write output")
	}
}

func TestLevelFiltering(t *testing.T) {
	buf := initBuffered(t, Options{DebugMode: true, Level: "warn"})

	Get(CategoryRules).Info("below threshold")
	Get(CategoryRules).Warn("at threshold")
	CloseAll()

	out := buf.String()
	if strings.Contains(out, "below threshold") {
		t.Error("info entry should be filtered at warn level")
	}
	if !strings.Contains(out, "at threshold") {
		t.Error("warn entry should be written at warn level")
	}
}

func TestInvalidLevel(t *testing.T) {
	if err := Initialize(Options{DebugMode: true, Level: "loud"}); err == nil {
		t.Fatal("expected error for unknown level")
	}
	_ = Initialize(Options{})
}

func TestStructuredLogJSON(t *testing.T) {
	buf := initBuffered(t, Options{DebugMode: true, Level: "debug", JSONFormat: true})

	Get(CategoryRouting).StructuredLog("info", "routed", map[string]interface{}{
		"primary":    "romantic",
		"confidence": 0.12,
	})
	Get(CategoryRouting).WithContext(map[string]interface{}{"request_id": "abc"}).Info("with context")
	CloseAll()

	out := buf.String()
	if !strings.Contains(out, `"primary":"romantic"`) {
		t.Errorf("expected JSON field in output, got: %s", out)
	}
	if !strings.Contains(out, `"request_id":"abc"`) {
		t.Errorf("expected context field in output, got: %s", out)
	}
	if !strings.Contains(out, `"logger":"routing"`) {
		t.Errorf("expected category as logger name, got: %s", out)
	}
}

func TestAuditEvent(t *testing.T) {
	buf := initBuffered(t, Options{DebugMode: true, JSONFormat: true})

	Audit(AuditEvent{
		Type:   AuditRouteDecided,
		Fields: map[string]interface{}{"primary": "family"},
	})
	CloseAll()

	out := buf.String()
	if !strings.Contains(out, string(AuditRouteDecided)) {
		t.Errorf("audit event type missing: %s", out)
	}
	if !strings.Contains(out, `"ts":`) {
		t.Errorf("audit timestamp missing: %s", out)
	}
}

func TestTimer(t *testing.T) {
	initBuffered(t, Options{DebugMode: true, Level: "debug"})

	timer := StartTimer(CategorySignature, "TestOperation")
	time.Sleep(time.Millisecond)
	elapsed := timer.Stop()

	if elapsed <= 0 {
		t.Error("Timer should have recorded non-zero duration")
	}
}

func TestTimerStopWithThreshold(t *testing.T) {
	buf := initBuffered(t, Options{DebugMode: true, Level: "debug"})

	slow := StartTimer(CategorySignature, "SlowOperation")
	time.Sleep(2 * time.Millisecond)
	slow.StopWithThreshold(time.Nanosecond)

	fast := StartTimer(CategorySignature, "FastOperation")
	fast.StopWithThreshold(time.Hour)
	CloseAll()

	out := buf.String()
	if !strings.Contains(out, "SlowOperation took") {
		t.Errorf("expected slow warning, got: %s", out)
	}
	if !strings.Contains(out, "FastOperation completed in") {
		t.Errorf("expected fast debug entry, got: %s", out)
	}
	if strings.Contains(out, "FastOperation took") {
		t.Errorf("fast operation must not warn: %s", out)
	}
}
