package cli

import (
	"strings"
	"testing"
	"time"

	"github.com/majordomo-ai/majordomo/internal/agent"
	"github.com/majordomo-ai/majordomo/internal/stream"
)

// drainResult runs drainChunks with a deadline so a wedged drain fails
// the test instead of hanging it.
func drainResult(t *testing.T, attach func(stream.Subscriber) (func(), bool), active func() bool) error {
	t.Helper()
	errc := make(chan error, 1)
	go func() { errc <- drainChunks(attach, active, "conv-1") }()
	select {
	case err := <-errc:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("drain did not complete")
		return nil
	}
}

func TestDrainChunksLargeReplay(t *testing.T) {
	// The replay runs synchronously inside attach, far past any internal
	// buffering; the consumer must already be draining or the subscriber
	// callback blocks the stream for good.
	attach := func(fn stream.Subscriber) (func(), bool) {
		for i := 0; i < 2000; i++ {
			fn(agent.Chunk{Kind: agent.ChunkText})
		}
		fn(agent.Chunk{Kind: agent.ChunkDone})
		return func() {}, true
	}
	if err := drainResult(t, attach, func() bool { return false }); err != nil {
		t.Fatal(err)
	}
}

func TestDrainChunksFinishedStreamWithoutReplay(t *testing.T) {
	// Re-attaching to a finished turn can replay nothing at all; with no
	// terminal chunk coming the drain must still return.
	attach := func(fn stream.Subscriber) (func(), bool) {
		return func() {}, true
	}
	if err := drainResult(t, attach, func() bool { return false }); err != nil {
		t.Fatal(err)
	}
}

func TestDrainChunksErrorChunk(t *testing.T) {
	attach := func(fn stream.Subscriber) (func(), bool) {
		fn(agent.Chunk{Kind: agent.ChunkError, Error: "model unreachable"})
		return func() {}, true
	}
	err := drainResult(t, attach, func() bool { return false })
	if err == nil || !strings.Contains(err.Error(), "model unreachable") {
		t.Fatalf("err = %v", err)
	}
}

func TestDrainChunksUnknownStream(t *testing.T) {
	attach := func(fn stream.Subscriber) (func(), bool) {
		return func() {}, false
	}
	err := drainResult(t, attach, func() bool { return false })
	if err == nil || !strings.Contains(err.Error(), "conv-1") {
		t.Fatalf("err = %v", err)
	}
}
