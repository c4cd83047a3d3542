// Package stream wraps detached agent executions as named, buffered
// broadcasts so they outlive any single observer and can be
// re-attached after a disconnect.
package stream

import (
	"log/slog"
	"sync"
	"time"

	"github.com/majordomo-ai/majordomo/internal/agent"
)

// Subscriber receives chunks in order. Callbacks run on the stream's
// consumption goroutine and must not block.
type Subscriber func(agent.Chunk)

type streamState struct {
	mu       sync.Mutex
	buffer   []agent.Chunk
	subs     map[int]Subscriber
	nextSub  int
	finished bool
}

// Manager tracks active and recently finished streams keyed by id
// (usually the conversation id).
type Manager struct {
	mu        sync.Mutex
	streams   map[string]*streamState
	retainFor time.Duration
}

// NewManager creates a manager. retainFor bounds how long a finished
// stream's buffer stays attachable before teardown.
func NewManager(retainFor time.Duration) *Manager {
	if retainFor <= 0 {
		retainFor = 5 * time.Minute
	}
	return &Manager{
		streams:   make(map[string]*streamState),
		retainFor: retainFor,
	}
}

// Start begins consuming src immediately, independent of subscribers.
// Consumption is never paused by the absence of observers and never
// cancelled by their departure; the buffer is retained for the
// configured TTL after src closes, then discarded.
func (m *Manager) Start(id string, src <-chan agent.Chunk) {
	st := &streamState{subs: make(map[int]Subscriber)}

	m.mu.Lock()
	if old, exists := m.streams[id]; exists {
		old.mu.Lock()
		finished := old.finished
		old.mu.Unlock()
		if !finished {
			m.mu.Unlock()
			slog.Warn("stream already running, ignoring duplicate start", "stream", id)
			// The rejected source still has a producer behind it; drain
			// it so that execution can run to completion.
			go func() {
				for range src {
				}
			}()
			return
		}
	}
	m.streams[id] = st
	m.mu.Unlock()

	go func() {
		for chunk := range src {
			st.mu.Lock()
			st.buffer = append(st.buffer, chunk)
			for _, sub := range st.subs {
				sub(chunk)
			}
			st.mu.Unlock()
		}
		st.mu.Lock()
		st.finished = true
		st.subs = make(map[int]Subscriber)
		st.mu.Unlock()

		time.AfterFunc(m.retainFor, func() { m.remove(id, st) })
	}()
}

func (m *Manager) remove(id string, st *streamState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	// Only remove if this exact stream still owns the id; a newer
	// execution may have reused it.
	if m.streams[id] == st {
		delete(m.streams, id)
	}
}

// Active reports whether a stream exists and has not finished.
func (m *Manager) Active(id string) bool {
	m.mu.Lock()
	st, ok := m.streams[id]
	m.mu.Unlock()
	if !ok {
		return false
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return !st.finished
}

// Subscribe replays the full buffer synchronously, then joins the live
// fan-out. If the stream already finished, the replay happens and no
// registration occurs (there is nothing more to deliver). Returns an
// unsubscribe function and whether the stream id was known.
func (m *Manager) Subscribe(id string, sub Subscriber) (func(), bool) {
	return m.subscribe(id, sub, func(buffer []agent.Chunk, finished bool) int {
		return 0
	})
}

// SubscribeFromCurrentTurn replays only the current turn — everything
// from the turn boundary on — then joins live. A finished stream
// returns immediately with no replay: completed turns are already
// durable in storage and must not be redelivered.
func (m *Manager) SubscribeFromCurrentTurn(id string, sub Subscriber) (func(), bool) {
	return m.subscribe(id, sub, func(buffer []agent.Chunk, finished bool) int {
		if finished {
			return len(buffer)
		}
		return TurnBoundary(buffer)
	})
}

func (m *Manager) subscribe(id string, sub Subscriber, from func([]agent.Chunk, bool) int) (func(), bool) {
	m.mu.Lock()
	st, ok := m.streams[id]
	m.mu.Unlock()
	if !ok {
		return func() {}, false
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	start := from(st.buffer, st.finished)
	for _, chunk := range st.buffer[start:] {
		sub(chunk)
	}
	if st.finished {
		return func() {}, true
	}

	key := st.nextSub
	st.nextSub++
	st.subs[key] = sub
	return func() {
		st.mu.Lock()
		delete(st.subs, key)
		st.mu.Unlock()
	}, true
}

// TurnBoundary returns the index of the first text or tool_call_start
// chunk after the most recent tool_result — the start of the turn an
// observer is currently missing. With no tool_result in the buffer the
// whole buffer is one turn. The heuristic is load-bearing for correct
// reconnection; keep it in sync with the chunk grammar.
func TurnBoundary(buffer []agent.Chunk) int {
	lastResult := -1
	for i, c := range buffer {
		if c.Kind == agent.ChunkToolResult {
			lastResult = i
		}
	}
	if lastResult == -1 {
		return 0
	}
	for i := lastResult + 1; i < len(buffer); i++ {
		switch buffer[i].Kind {
		case agent.ChunkText, agent.ChunkToolCallStart:
			return i
		}
	}
	// Nothing after the last result yet; the next turn has not started.
	return len(buffer)
}
