// Package schedule parses schedule expressions and computes firing
// times for scheduled tasks.
package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Spec is a parsed schedule expression: either a recurring cron
// expression (including @every descriptors) or a one-shot absolute
// timestamp.
type Spec struct {
	expr    string
	cron    cron.Schedule
	at      time.Time
	oneShot bool
}

// Parse accepts a cron expression ("0 7 * * *", "@every 1h",
// "@daily") or an RFC3339 timestamp for a one-shot firing.
func Parse(expr string) (*Spec, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("empty schedule expression")
	}
	if at, err := time.Parse(time.RFC3339, expr); err == nil {
		return &Spec{expr: expr, at: at, oneShot: true}, nil
	}
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", expr, err)
	}
	return &Spec{expr: expr, cron: sched}, nil
}

// OneShot reports whether the spec fires exactly once.
func (s *Spec) OneShot() bool { return s.oneShot }

// String returns the original expression.
func (s *Spec) String() string { return s.expr }

// Next returns the first firing time strictly after t. The zero time
// means the spec will never fire again (a one-shot whose moment has
// passed).
func (s *Spec) Next(t time.Time) time.Time {
	if s.oneShot {
		if s.at.After(t) {
			return s.at
		}
		return time.Time{}
	}
	return s.cron.Next(t)
}
