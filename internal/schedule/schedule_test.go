package schedule

import (
	"fmt"
	"testing"
	"time"
)

func TestParseCron(t *testing.T) {
	s, err := Parse(`{"kind":"cron","cron_expr":"0 9 * * *"}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if s.Kind != "cron" || s.CronExpr != "0 9 * * *" {
		t.Errorf("unexpected schedule: %+v", s)
	}
}

func TestNextRunCron(t *testing.T) {
	next := NextRun(`{"kind":"cron","cron_expr":"* * * * *"}`)
	if next == nil {
		t.Fatal("expected next run")
	}
	if !next.After(time.Now().Add(-time.Second)) {
		t.Errorf("next run in the past: %v", next)
	}
}

func TestNextRunInterval(t *testing.T) {
	next := NextRun(`{"kind":"interval","interval_ms":60000}`)
	if next == nil {
		t.Fatal("expected next run")
	}
	d := time.Until(*next)
	if d < 55*time.Second || d > 65*time.Second {
		t.Errorf("next run %v away, want ~1m", d)
	}
}

func TestNextRunOnce(t *testing.T) {
	future := time.Now().Add(time.Hour).UnixMilli()
	next := NextRun(fmt.Sprintf(`{"kind":"once","at_ms":%d}`, future))
	if next == nil {
		t.Fatal("expected next run for future one-shot")
	}

	past := time.Now().Add(-time.Hour).UnixMilli()
	if next := NextRun(fmt.Sprintf(`{"kind":"once","at_ms":%d}`, past)); next != nil {
		t.Errorf("expected nil for past one-shot, got %v", next)
	}
}

func TestNextRunMalformed(t *testing.T) {
	for _, raw := range []string{"not json", `{"kind":"weird"}`, `{"kind":"cron","cron_expr":"garbage"}`} {
		if next := NextRun(raw); next != nil {
			t.Errorf("expected nil for %q, got %v", raw, next)
		}
	}
}

func TestNormalizePlainCron(t *testing.T) {
	got, err := Normalize("0 9 * * *")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	s, err := Parse(got)
	if err != nil {
		t.Fatalf("parse normalized: %v", err)
	}
	if s.Kind != "cron" || s.CronExpr != "0 9 * * *" {
		t.Errorf("unexpected normalized schedule: %+v", s)
	}
}

func TestNormalizeValidatesJSON(t *testing.T) {
	if _, err := Normalize(`{"kind":"cron","cron_expr":"not a cron"}`); err == nil {
		t.Error("expected error for invalid cron")
	}
	if _, err := Normalize(`{"kind":"interval","interval_ms":-5}`); err == nil {
		t.Error("expected error for negative interval")
	}
	if _, err := Normalize(`{"kind":"mystery"}`); err == nil {
		t.Error("expected error for unknown kind")
	}
	if _, err := Normalize("complete garbage"); err == nil {
		t.Error("expected error for garbage input")
	}

	valid := `{"kind":"interval","interval_ms":60000}`
	got, err := Normalize(valid)
	if err != nil {
		t.Fatalf("normalize valid JSON: %v", err)
	}
	if got != valid {
		t.Errorf("valid JSON rewritten: %q", got)
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{`{"kind":"cron","cron_expr":"0 9 * * *"}`, "0 9 * * *"},
		{`{"kind":"interval","interval_ms":3600000}`, "Every hour"},
		{`{"kind":"interval","interval_ms":7200000}`, "Every 2 hours"},
		{`{"kind":"interval","interval_ms":60000}`, "Every minute"},
		{`{"kind":"interval","interval_ms":90000}`, "Every 90 seconds"},
		{"not json", "not json"},
	}
	for _, tt := range tests {
		if got := Describe(tt.raw); got != tt.want {
			t.Errorf("Describe(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}
