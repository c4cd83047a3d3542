// Package dispatch turns stored schedules and explicit spawn requests
// into retried, idempotent background agent executions, and delivers
// results back into the originating conversation or via the
// notification side channel.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/majordomo-ai/majordomo/internal/agent"
	"github.com/majordomo-ai/majordomo/internal/events"
	"github.com/majordomo-ai/majordomo/internal/notify"
	"github.com/majordomo-ai/majordomo/internal/store"
	"github.com/majordomo-ai/majordomo/internal/tools"
)

// defaultSystemPrompt serves spawns and schedules that name no agent.
const defaultSystemPrompt = "You are a capable background assistant. Complete the given task thoroughly and report the outcome concisely."

// Options configures a Dispatcher.
type Options struct {
	Store    *store.Store
	Runner   *agent.Runner
	Bus      *events.Bus
	Notifier notify.Notifier

	TickInterval  time.Duration
	MaxAttempts   int
	MaxConcurrent int
	SpawnMaxDepth int
	// SpawnMaxConcurrent additionally bounds explicitly spawned tasks,
	// so a burst of spawn_agent calls cannot occupy the whole pool that
	// schedules and retries also run on.
	SpawnMaxConcurrent int
	DefaultAgent       string
}

// Dispatcher is the background execution engine. It implements
// tools.Spawner so models can delegate work to it.
type Dispatcher struct {
	store    *store.Store
	runner   *agent.Runner
	bus      *events.Bus
	notifier notify.Notifier

	tick          time.Duration
	maxAttempts   int
	spawnMaxDepth int
	defaultAgent  string

	sem      chan struct{}
	spawnSem chan struct{}
	wg       sync.WaitGroup
}

// New creates a Dispatcher.
func New(opts Options) *Dispatcher {
	if opts.TickInterval <= 0 {
		opts.TickInterval = 30 * time.Second
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.MaxConcurrent < 1 {
		opts.MaxConcurrent = 8
	}
	if opts.SpawnMaxConcurrent < 1 {
		opts.SpawnMaxConcurrent = 8
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.LogNotifier{}
	}
	return &Dispatcher{
		store:         opts.Store,
		runner:        opts.Runner,
		bus:           opts.Bus,
		notifier:      notifier,
		tick:          opts.TickInterval,
		maxAttempts:   opts.MaxAttempts,
		spawnMaxDepth: opts.SpawnMaxDepth,
		defaultAgent:  opts.DefaultAgent,
		sem:           make(chan struct{}, opts.MaxConcurrent),
		spawnSem:      make(chan struct{}, opts.SpawnMaxConcurrent),
	}
}

// Spawn records a new background task and starts executing it. The
// returned task id doubles as the idempotency key: spawning again with
// the same id (via SpawnTask) is a no-op once the row exists.
func (d *Dispatcher) Spawn(ctx context.Context, agentID, input string, origin tools.Origin) (string, error) {
	return d.SpawnTask(ctx, uuid.NewString(), agentID, input, origin)
}

// SpawnTask is Spawn with an explicit task id for idempotent
// redelivery. A duplicate id does not create a second task, a second
// conversation, or a second result notification.
func (d *Dispatcher) SpawnTask(ctx context.Context, taskID, agentID, input string, origin tools.Origin) (string, error) {
	if d.spawnMaxDepth > 0 && origin.Depth >= d.spawnMaxDepth {
		return "", fmt.Errorf("spawn depth limit (%d) reached", d.spawnMaxDepth)
	}

	task := &store.Task{
		ID:                   taskID,
		Type:                 store.TaskTypeAgent,
		AgentID:              agentID,
		Input:                input,
		OriginConversationID: origin.ConversationID,
		OriginMessageID:      origin.MessageID,
	}
	created, err := d.store.CreateTask(task)
	if err != nil {
		return "", err
	}
	if !created {
		slog.Info("spawn redelivered, task exists", "task", taskID)
		return taskID, nil
	}

	d.bus.Publish(events.Event{
		Type: events.TypeTaskSpawned, Source: "dispatch",
		AgentID: agentID, ConversationID: origin.ConversationID,
		Payload: map[string]any{"task": taskID, "input_len": len(input), "depth": origin.Depth},
	})

	d.runAsync(taskID, origin.Depth, d.spawnSem)
	return taskID, nil
}

// runAsync executes a task on the worker pool, detached from the
// spawning request's lifetime. A non-nil gate is an extra admission
// semaphore held for the duration of the run.
func (d *Dispatcher) runAsync(taskID string, depth int, gate chan struct{}) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if gate != nil {
			gate <- struct{}{}
			defer func() { <-gate }()
		}
		d.sem <- struct{}{}
		defer func() { <-d.sem }()
		d.runTask(context.Background(), taskID, depth)
	}()
}

// runTask claims and executes one task attempt end to end.
func (d *Dispatcher) runTask(ctx context.Context, taskID string, depth int) {
	task, err := d.store.GetTask(taskID)
	if err != nil || task == nil {
		slog.Error("task lookup failed", "task", taskID, "error", err)
		return
	}

	claimed, err := d.store.ClaimTask(taskID)
	if err != nil {
		slog.Error("task claim failed", "task", taskID, "error", err)
		return
	}
	if !claimed {
		// Already running or terminal: a duplicate delivery stops here.
		return
	}
	task, err = d.store.GetTask(taskID)
	if err != nil || task == nil {
		return
	}

	d.bus.Publish(events.Event{
		Type: events.TypeTaskStarted, Source: "dispatch",
		AgentID: task.AgentID, ConversationID: task.OriginConversationID,
		Payload: map[string]any{"task": taskID, "attempt": task.Attempts},
	})

	outcome, runErr := d.execute(ctx, task, depth)
	if runErr != nil {
		d.handleFailure(ctx, task, runErr)
		return
	}

	if err := d.store.CompleteTask(taskID, outcome.FinalText); err != nil {
		slog.Error("task completion write failed", "task", taskID, "error", err)
	}
	d.bus.Publish(events.Event{
		Type: events.TypeTaskCompleted, Source: "dispatch",
		AgentID: task.AgentID, ConversationID: task.OriginConversationID,
		Payload: map[string]any{"task": taskID, "rounds": outcome.Rounds, "total_tokens": outcome.Usage.TotalTokens},
	})

	d.deliver(ctx, task, outcome.FinalText)
}

// execute resolves the agent definition and runs the loop inside a
// conversation scoped to this task. The conversation is created once
// per task id, surviving redelivery.
func (d *Dispatcher) execute(ctx context.Context, task *store.Task, depth int) (*agent.Outcome, error) {
	def, err := d.resolveAgent(task.AgentID)
	if err != nil {
		return nil, err
	}

	convID := task.RunConversationID
	if convID == "" {
		conv := &store.Conversation{
			Title:   taskTitle(def.Name, task.Input),
			AgentID: def.ID,
		}
		if err := d.store.CreateConversation(conv); err != nil {
			return nil, err
		}
		if err := d.store.SetTaskRunConversation(task.ID, conv.ID); err != nil {
			return nil, err
		}
		seed := &store.Message{ConversationID: conv.ID, Role: store.RoleUser, Content: task.Input}
		if err := d.store.AddMessage(seed); err != nil {
			return nil, err
		}
		convID = conv.ID
	}

	msgs, err := d.store.ListMessages(convID)
	if err != nil {
		return nil, err
	}

	runCtx := tools.WithOrigin(ctx, tools.Origin{
		ConversationID: task.OriginConversationID,
		MessageID:      task.OriginMessageID,
		Depth:          depth + 1,
	})
	return d.runner.RunSync(runCtx, agent.Request{
		ConversationID: convID,
		AgentID:        def.ID,
		SystemPrompt:   def.SystemPrompt,
		History:        agent.HistoryFromMessages(msgs),
		AllowedTools:   def.Tools,
		ModelID:        def.Model,
		Tier:           def.Tier,
	})
}

// resolveAgent finds the agent definition by id, then by name, then
// falls back to the default system agent.
func (d *Dispatcher) resolveAgent(agentID string) (*store.Agent, error) {
	if agentID != "" {
		if def, err := d.store.GetAgent(agentID); err == nil {
			return def, nil
		}
		all, err := d.store.ListAgents()
		if err != nil {
			return nil, err
		}
		for i := range all {
			if strings.EqualFold(all[i].Name, agentID) {
				return &all[i], nil
			}
		}
		if agentID != d.defaultAgent {
			return nil, fmt.Errorf("agent %q not found", agentID)
		}
	}
	return &store.Agent{
		Name:         d.defaultAgent,
		SystemPrompt: defaultSystemPrompt,
		Tools:        nil,
	}, nil
}

// handleFailure records the failure and either re-queues the task for
// the retry worker or finalizes it with a best-effort notification.
func (d *Dispatcher) handleFailure(ctx context.Context, task *store.Task, runErr error) {
	final := task.Attempts >= d.maxAttempts
	if err := d.store.FailTask(task.ID, runErr.Error(), final); err != nil {
		slog.Error("task failure write failed", "task", task.ID, "error", err)
	}

	level := "warn"
	if final {
		level = "error"
	}
	d.bus.Publish(events.Event{
		Type: events.TypeTaskFailed, Source: "dispatch", Level: level,
		AgentID: task.AgentID, ConversationID: task.OriginConversationID,
		Payload: map[string]any{"task": task.ID, "attempt": task.Attempts, "final": final, "error": runErr.Error()},
	})

	if final {
		// The user must not be left waiting indefinitely without feedback.
		if err := d.notifier.Notify(ctx, "Background task failed",
			fmt.Sprintf("Task %s failed after %d attempts: %v", task.ID, task.Attempts, runErr)); err != nil {
			slog.Warn("failure notification failed", "task", task.ID, "error", err)
		}
	}
}

// deliver reconciles the result with the originating conversation: if
// the user has not moved on, the result lands there as a normal
// assistant turn; otherwise it goes out of band. The moved-on check and
// the synthesis write share one transaction, closing the race between
// "is the user still waiting" and the write.
func (d *Dispatcher) deliver(ctx context.Context, task *store.Task, result string) {
	if task.OriginConversationID == "" {
		d.notifyResult(ctx, task, result)
		return
	}

	// Fast path: skip synthesis work entirely when the user has
	// already moved on.
	moved, err := d.store.HasNewerUserMessage(task.OriginConversationID, task.CreatedAt, task.OriginMessageID)
	if err != nil {
		slog.Error("delivery reconciliation check failed", "task", task.ID, "error", err)
		moved = true
	}

	if !moved {
		written, err := d.store.AddMessageIfIdle(&store.Message{
			ConversationID: task.OriginConversationID,
			Role:           store.RoleAssistant,
			Content:        result,
		}, task.CreatedAt, task.OriginMessageID)
		if err != nil {
			slog.Error("delivery synthesis failed", "task", task.ID, "error", err)
		}
		if written {
			d.bus.Publish(events.Event{
				Type: events.TypeTaskDelivered, Source: "dispatch",
				AgentID: task.AgentID, ConversationID: task.OriginConversationID,
				Payload: map[string]any{"task": task.ID, "mode": "conversation"},
			})
			return
		}
	}

	// Moved on (or moved on during synthesis): leave a side-channel
	// marker in the conversation and alert out of band.
	marker := &store.Message{
		ConversationID: task.OriginConversationID,
		Role:           store.RoleSystem,
		Content:        fmt.Sprintf("Background task %s finished: %s", task.ID, truncateResult(result)),
	}
	if err := d.store.AddMessage(marker); err != nil {
		slog.Error("side-channel marker write failed", "task", task.ID, "error", err)
	}
	d.notifyResult(ctx, task, result)
}

func (d *Dispatcher) notifyResult(ctx context.Context, task *store.Task, result string) {
	if err := d.notifier.Notify(ctx, "Background task finished", truncateResult(result)); err != nil {
		slog.Warn("result notification failed", "task", task.ID, "error", err)
	}
	d.bus.Publish(events.Event{
		Type: events.TypeTaskDelivered, Source: "dispatch",
		AgentID: task.AgentID, ConversationID: task.OriginConversationID,
		Payload: map[string]any{"task": task.ID, "mode": "notification"},
	})
}

func taskTitle(agentName, input string) string {
	title := strings.TrimSpace(input)
	if len(title) > 60 {
		title = title[:60] + "..."
	}
	if agentName != "" {
		return agentName + ": " + title
	}
	return title
}

func truncateResult(s string) string {
	if len(s) <= 400 {
		return s
	}
	return s[:400] + "..."
}

// RetryBackoff computes the delay before a failed task's next attempt:
// min(30s * 2^attempts, 5min).
func RetryBackoff(attempts int) time.Duration {
	delay := time.Duration(30*math.Pow(2, float64(attempts))) * time.Second
	if max := 5 * time.Minute; delay > max {
		delay = max
	}
	return delay
}

// Wait blocks until all in-flight executions finish. For shutdown and
// tests.
func (d *Dispatcher) Wait() { d.wg.Wait() }
