package schedule

import (
	"testing"
	"time"
)

func TestParseCronExpression(t *testing.T) {
	spec, err := Parse("0 7 * * *")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if spec.OneShot() {
		t.Fatal("cron expression must not be one-shot")
	}
	from := time.Date(2026, 3, 10, 6, 0, 0, 0, time.UTC)
	next := spec.Next(from)
	want := time.Date(2026, 3, 10, 7, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("next = %v, want %v", next, want)
	}
}

func TestParseEveryDescriptor(t *testing.T) {
	spec, err := Parse("@every 30m")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	from := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	next := spec.Next(from)
	if got := next.Sub(from); got != 30*time.Minute {
		t.Errorf("interval = %v, want 30m", got)
	}
}

func TestParseOneShotTimestamp(t *testing.T) {
	at := time.Date(2026, 6, 1, 9, 30, 0, 0, time.UTC)
	spec, err := Parse(at.Format(time.RFC3339))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !spec.OneShot() {
		t.Fatal("timestamp must parse as one-shot")
	}
	if next := spec.Next(at.Add(-time.Hour)); !next.Equal(at) {
		t.Errorf("next before moment = %v, want %v", next, at)
	}
	if next := spec.Next(at); !next.IsZero() {
		t.Errorf("next at/after moment = %v, want zero", next)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, expr := range []string{"", "not a schedule", "99 99 * * *"} {
		if _, err := Parse(expr); err == nil {
			t.Errorf("Parse(%q) accepted invalid expression", expr)
		}
	}
}
