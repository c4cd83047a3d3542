// Package events provides the orchestration event bus. Components
// publish typed events; subscribers observe them without coupling the
// emitter to any consumer.
package events

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Well-known event types.
const (
	TypeLLMRequest  = "llm.request"
	TypeLLMResponse = "llm.response"
	TypeLLMError    = "llm.error"

	TypeToolCalled = "tool.called"
	TypeToolResult = "tool.result"
	TypeToolError  = "tool.error"

	TypeTaskSpawned   = "task.spawned"
	TypeTaskStarted   = "task.started"
	TypeTaskCompleted = "task.completed"
	TypeTaskFailed    = "task.failed"
	TypeTaskDelivered = "task.delivered"

	TypeCronTriggered = "cron.triggered"

	TypeAgentCreated   = "agent.created"
	TypeAgentCompleted = "agent.completed"

	TypeStreamStarted  = "stream.started"
	TypeStreamFinished = "stream.finished"
)

// Event is one bus notification. Payload holds type-specific fields;
// events are immutable after publish.
type Event struct {
	ID             string         `json:"id"`
	Type           string         `json:"type"`
	Source         string         `json:"source"`
	AgentID        string         `json:"agent_id,omitempty"`
	ConversationID string         `json:"conversation_id,omitempty"`
	Payload        map[string]any `json:"payload,omitempty"`
	Level          string         `json:"level"`
	Timestamp      time.Time      `json:"timestamp"`
}

// Handler receives published events. Handlers run synchronously on the
// publisher's goroutine and must not block.
type Handler func(Event)

// Bus fans events out to per-type and wildcard subscribers.
type Bus struct {
	mu   sync.RWMutex
	subs map[string][]Handler
	all  []Handler
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string][]Handler)}
}

// Subscribe registers a handler for one event type.
func (b *Bus) Subscribe(eventType string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[eventType] = append(b.subs[eventType], h)
}

// SubscribeAll registers a handler for every event type.
func (b *Bus) SubscribeAll(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.all = append(b.all, h)
}

// Publish delivers the event to all matching subscribers. Missing id,
// level, and timestamp are filled in. A panicking handler is logged and
// skipped; it never takes down the publisher.
func (b *Bus) Publish(e Event) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Level == "" {
		e.Level = "info"
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[e.Type])+len(b.all))
	handlers = append(handlers, b.subs[e.Type]...)
	handlers = append(handlers, b.all...)
	b.mu.RUnlock()

	for _, h := range handlers {
		safeCall(h, e)
	}
}

func safeCall(h Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("event handler panicked", "type", e.Type, "panic", r)
		}
	}()
	h(e)
}
