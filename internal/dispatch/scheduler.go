package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/majordomo-ai/majordomo/internal/events"
	"github.com/majordomo-ai/majordomo/internal/schedule"
	"github.com/majordomo-ai/majordomo/internal/store"
	"github.com/majordomo-ai/majordomo/internal/tools"
)

// Run drives the recurring scan: due schedules fire, and failed tasks
// whose backoff elapsed are retried. Blocks until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	slog.Info("dispatcher started", "tick", d.tick, "max_attempts", d.maxAttempts)
	ticker := time.NewTicker(d.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("dispatcher stopped")
			return ctx.Err()
		case <-ticker.C:
			d.ScanSchedules(ctx, time.Now().UTC())
			d.retryEligible(time.Now().UTC())
		}
	}
}

// ScanSchedules fires every active schedule whose next-run time has
// passed. The schedule row is advanced before the execution starts, so
// a crash mid-firing loses at most one run instead of duplicating it;
// the spawned task id is derived from the firing slot, making the
// firing itself idempotent.
func (d *Dispatcher) ScanSchedules(ctx context.Context, now time.Time) {
	due, err := d.store.DueScheduledTasks(now, 20)
	if err != nil {
		slog.Error("due schedule scan failed", "error", err)
		return
	}

	for _, st := range due {
		slot := now
		if st.NextRunAt != nil {
			slot = *st.NextRunAt
		}

		spec, err := schedule.Parse(st.Schedule)
		if err != nil {
			// A schedule that no longer parses would fire on every scan;
			// pause it and surface the problem.
			slog.Error("unparseable schedule, pausing", "schedule", st.ID, "expr", st.Schedule, "error", err)
			if serr := d.store.SetScheduledStatus(st.ID, store.ScheduleStatusPaused); serr != nil {
				slog.Error("schedule pause failed", "schedule", st.ID, "error", serr)
			}
			continue
		}

		if st.Kind == store.ScheduleKindOneShot || spec.OneShot() {
			if err := d.store.MarkScheduledRun(st.ID, now, nil, store.ScheduleStatusCompleted); err != nil {
				slog.Error("one-shot completion failed", "schedule", st.ID, "error", err)
				continue
			}
		} else {
			next := spec.Next(now)
			if err := d.store.MarkScheduledRun(st.ID, now, &next, store.ScheduleStatusActive); err != nil {
				slog.Error("schedule advance failed", "schedule", st.ID, "error", err)
				continue
			}
		}

		d.bus.Publish(events.Event{
			Type: events.TypeCronTriggered, Source: "scheduler",
			AgentID: st.AgentID,
			Payload: map[string]any{"schedule": st.ID, "name": st.Name, "slot": slot.Format(time.RFC3339)},
		})

		taskID := fmt.Sprintf("sched-%s-%d", st.ID, slot.Unix())
		task := &store.Task{
			ID:      taskID,
			Type:    store.TaskTypeScheduled,
			AgentID: st.AgentID,
			Input:   st.Input,
		}
		created, err := d.store.CreateTask(task)
		if err != nil {
			slog.Error("scheduled task create failed", "schedule", st.ID, "error", err)
			continue
		}
		if !created {
			continue
		}
		d.bus.Publish(events.Event{
			Type: events.TypeTaskSpawned, Source: "scheduler",
			AgentID: st.AgentID,
			Payload: map[string]any{"task": taskID, "schedule": st.ID},
		})
		d.runAsync(taskID, 0, nil)
	}
}

// retryEligible re-runs pending tasks whose retry backoff has elapsed.
// Freshly spawned tasks are claimed by their own goroutine; anything
// still pending here was dropped (crash, restart) or failed retryably.
func (d *Dispatcher) retryEligible(now time.Time) {
	pending, err := d.store.ListTasks(store.TaskStatusPending, 50, 0)
	if err != nil {
		slog.Error("pending task scan failed", "error", err)
		return
	}
	for _, task := range pending {
		anchor := task.CreatedAt
		delay := d.tick
		if task.LastAttemptAt != nil {
			anchor = *task.LastAttemptAt
			delay = RetryBackoff(task.Attempts)
		}
		if now.Before(anchor.Add(delay)) {
			continue
		}
		slog.Info("retrying task", "task", task.ID, "attempt", task.Attempts+1)
		d.runAsync(task.ID, 0, nil)
	}
}

// CreateSchedule validates and stores a new scheduled task, computing
// its first firing time.
func (d *Dispatcher) CreateSchedule(name, expr, agentID, input string) (*store.ScheduledTask, error) {
	spec, err := schedule.Parse(expr)
	if err != nil {
		return nil, err
	}
	kind := store.ScheduleKindRecurring
	if spec.OneShot() {
		kind = store.ScheduleKindOneShot
	}
	next := spec.Next(time.Now().UTC())
	if next.IsZero() {
		return nil, fmt.Errorf("schedule %q would never fire", expr)
	}
	st := &store.ScheduledTask{
		Name:      name,
		Schedule:  expr,
		Kind:      kind,
		AgentID:   agentID,
		Input:     input,
		NextRunAt: &next,
	}
	if err := d.store.CreateScheduledTask(st); err != nil {
		return nil, err
	}
	return st, nil
}

var _ tools.Spawner = (*Dispatcher)(nil)
