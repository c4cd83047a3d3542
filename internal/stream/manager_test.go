package stream

import (
	"testing"
	"time"

	"github.com/majordomo-ai/majordomo/internal/agent"
)

func text(s string) agent.Chunk {
	return agent.Chunk{Kind: agent.ChunkText, Text: s}
}

func chunkOf(kind agent.ChunkKind) agent.Chunk {
	return agent.Chunk{Kind: kind}
}

// feed starts a stream from a slice, leaving the source open if hold
// is true.
func feed(m *Manager, id string, chunks []agent.Chunk, hold bool) chan agent.Chunk {
	src := make(chan agent.Chunk, len(chunks)+1)
	for _, c := range chunks {
		src <- c
	}
	if !hold {
		close(src)
	}
	m.Start(id, src)
	return src
}

func waitFinished(t *testing.T, m *Manager, id string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for m.Active(id) {
		select {
		case <-deadline:
			t.Fatal("stream did not finish")
		case <-time.After(time.Millisecond):
		}
	}
}

func drainBuffered(t *testing.T, m *Manager, id string, n int) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		var count int
		unsub, ok := m.Subscribe(id, func(agent.Chunk) { count++ })
		if !ok {
			t.Fatal("stream unknown")
		}
		unsub()
		if count >= n {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("buffer has %d chunks, want %d", count, n)
		case <-time.After(time.Millisecond):
		}
	}
}

func TestSubscribeReplaysBufferThenLive(t *testing.T) {
	m := NewManager(time.Minute)
	src := feed(m, "c1", []agent.Chunk{text("a"), text("b")}, true)
	drainBuffered(t, m, "c1", 2)

	var got []string
	unsub, ok := m.Subscribe("c1", func(c agent.Chunk) { got = append(got, c.Text) })
	if !ok {
		t.Fatal("stream unknown")
	}
	defer unsub()

	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("replay = %v", got)
	}

	src <- text("c")
	close(src)
	waitFinished(t, m, "c1")
	if len(got) != 3 || got[2] != "c" {
		t.Fatalf("live delivery = %v", got)
	}
}

func TestConsumptionContinuesWithoutSubscribers(t *testing.T) {
	m := NewManager(time.Minute)
	feed(m, "c1", []agent.Chunk{text("a"), text("b"), text("c")}, false)
	waitFinished(t, m, "c1")

	// Late subscriber still gets the whole buffer.
	var got int
	if _, ok := m.Subscribe("c1", func(agent.Chunk) { got++ }); !ok {
		t.Fatal("finished stream should remain attachable within TTL")
	}
	if got != 3 {
		t.Fatalf("replayed %d chunks, want 3", got)
	}
}

func TestSubscribeUnknownStream(t *testing.T) {
	m := NewManager(time.Minute)
	if _, ok := m.Subscribe("ghost", func(agent.Chunk) {}); ok {
		t.Fatal("unknown stream must report not found")
	}
}

func TestBufferDiscardedAfterTTL(t *testing.T) {
	m := NewManager(10 * time.Millisecond)
	feed(m, "c1", []agent.Chunk{text("a")}, false)
	waitFinished(t, m, "c1")

	deadline := time.After(2 * time.Second)
	for {
		if _, ok := m.Subscribe("c1", func(agent.Chunk) {}); !ok {
			return
		}
		select {
		case <-deadline:
			t.Fatal("buffer not discarded after TTL")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestTurnBoundary(t *testing.T) {
	buf := []agent.Chunk{
		text("thinking"),                      // 0
		chunkOf(agent.ChunkToolCallStart),     // 1
		chunkOf(agent.ChunkToolCallEnd),       // 2
		chunkOf(agent.ChunkToolCallsPending),  // 3
		chunkOf(agent.ChunkToolExecuting),     // 4
		chunkOf(agent.ChunkToolResult),        // 5
		text("here is"),                       // 6 <- current turn starts
		text(" the answer"),                   // 7
	}
	if got := TurnBoundary(buf); got != 6 {
		t.Errorf("boundary = %d, want 6", got)
	}
}

func TestTurnBoundaryNoToolResults(t *testing.T) {
	buf := []agent.Chunk{text("a"), text("b")}
	if got := TurnBoundary(buf); got != 0 {
		t.Errorf("boundary = %d, want 0 (whole buffer is one turn)", got)
	}
}

func TestTurnBoundaryNothingAfterResult(t *testing.T) {
	buf := []agent.Chunk{
		chunkOf(agent.ChunkToolCallStart),
		chunkOf(agent.ChunkToolResult),
	}
	if got := TurnBoundary(buf); got != 2 {
		t.Errorf("boundary = %d, want len(buffer) when next turn has not started", got)
	}
}

func TestSubscribeFromCurrentTurnMidExecution(t *testing.T) {
	m := NewManager(time.Minute)
	src := feed(m, "c1", []agent.Chunk{
		text("round one"),
		chunkOf(agent.ChunkToolCallStart),
		chunkOf(agent.ChunkToolResult),
		text("round two"),
	}, true)
	drainBuffered(t, m, "c1", 4)

	var got []string
	unsub, ok := m.SubscribeFromCurrentTurn("c1", func(c agent.Chunk) { got = append(got, string(c.Kind)+":"+c.Text) })
	if !ok {
		t.Fatal("stream unknown")
	}
	defer unsub()

	if len(got) != 1 || got[0] != "text:round two" {
		t.Fatalf("replay = %v, want only the current turn", got)
	}
	close(src)
}

func TestSubscribeFromCurrentTurnAfterCompletion(t *testing.T) {
	m := NewManager(time.Minute)
	feed(m, "c1", []agent.Chunk{
		text("a"), chunkOf(agent.ChunkToolResult), text("b"), chunkOf(agent.ChunkDone),
	}, false)
	waitFinished(t, m, "c1")

	var got int
	_, ok := m.SubscribeFromCurrentTurn("c1", func(agent.Chunk) { got++ })
	if !ok {
		t.Fatal("stream should still be known within TTL")
	}
	if got != 0 {
		t.Fatalf("replayed %d chunks after completion, want 0 (already durable)", got)
	}
}

func TestDuplicateStartDrainsRejectedSource(t *testing.T) {
	m := NewManager(time.Minute)
	src1 := feed(m, "c1", []agent.Chunk{text("a")}, true)

	// A second Start for the same id is ignored, but its producer keeps
	// writing; the rejected source must be consumed or the producer
	// wedges once its buffer fills.
	src2 := make(chan agent.Chunk)
	m.Start("c1", src2)

	fed := make(chan struct{})
	go func() {
		for i := 0; i < 600; i++ {
			src2 <- text("x")
		}
		close(src2)
		close(fed)
	}()
	select {
	case <-fed:
	case <-time.After(2 * time.Second):
		t.Fatal("rejected source not drained; producer blocked")
	}

	// The original stream is untouched by the duplicate.
	drainBuffered(t, m, "c1", 1)
	var got int
	unsub, ok := m.Subscribe("c1", func(agent.Chunk) { got++ })
	if !ok {
		t.Fatal("stream unknown")
	}
	unsub()
	if got != 1 {
		t.Fatalf("buffer has %d chunks, want 1", got)
	}
	close(src1)
	waitFinished(t, m, "c1")
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	m := NewManager(time.Minute)
	src := feed(m, "c1", nil, true)

	var got int
	unsub, ok := m.Subscribe("c1", func(agent.Chunk) { got++ })
	if !ok {
		t.Fatal("stream unknown")
	}
	unsub()

	src <- text("after unsubscribe")
	close(src)
	waitFinished(t, m, "c1")
	if got != 0 {
		t.Fatalf("received %d chunks after unsubscribe", got)
	}
}
