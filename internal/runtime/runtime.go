// Package runtime is the composition root: it wires the store, bus,
// providers, tools, runner, stream manager, and dispatcher into one
// explicitly constructed object. Nothing in here is a global; every
// component receives its dependencies from New.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/majordomo-ai/majordomo/internal/agent"
	"github.com/majordomo-ai/majordomo/internal/config"
	"github.com/majordomo-ai/majordomo/internal/dispatch"
	"github.com/majordomo-ai/majordomo/internal/events"
	"github.com/majordomo-ai/majordomo/internal/notify"
	"github.com/majordomo-ai/majordomo/internal/provider"
	"github.com/majordomo-ai/majordomo/internal/router"
	"github.com/majordomo-ai/majordomo/internal/store"
	"github.com/majordomo-ai/majordomo/internal/stream"
	"github.com/majordomo-ai/majordomo/internal/tools"
)

// Runtime owns every long-lived component of a majordomo instance.
type Runtime struct {
	cfg        *config.Config
	store      *store.Store
	bus        *events.Bus
	registry   *tools.Registry
	router     *router.Router
	runner     *agent.Runner
	streams    *stream.Manager
	dispatcher *dispatch.Dispatcher
	notifier   notify.Notifier
	kafka      *events.KafkaMirror
}

// New builds a fully wired runtime from configuration.
func New(cfg *config.Config) (*Runtime, error) {
	if err := os.MkdirAll(cfg.Paths.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	if cfg.Paths.Workspace != "" {
		if err := os.MkdirAll(cfg.Paths.Workspace, 0o700); err != nil {
			return nil, fmt.Errorf("create workspace: %w", err)
		}
	}

	st, err := store.Open(filepath.Join(cfg.Paths.DataDir, "majordomo.db"))
	if err != nil {
		return nil, err
	}

	bus := events.NewBus()
	events.AttachStoreSink(bus, st)

	var kafka *events.KafkaMirror
	if len(cfg.Events.KafkaBrokers) > 0 {
		kafka = events.NewKafkaMirror(cfg.Events.KafkaBrokers, cfg.Events.KafkaTopic)
		kafka.Attach(bus)
		slog.Info("event mirror enabled", "brokers", cfg.Events.KafkaBrokers, "topic", cfg.Events.KafkaTopic)
	}

	providers := provider.FromConfig(cfg)
	if len(providers) == 0 {
		slog.Warn("no providers configured; model requests will fail")
	}
	rt := &Runtime{
		cfg:      cfg,
		store:    st,
		bus:      bus,
		registry: tools.NewRegistry(),
		router:   router.New(providers...),
		streams:  stream.NewManager(cfg.Stream.RetainFor),
		notifier: notify.FromConfig(cfg.Notify.SlackWebhookURL, cfg.Notify.SlackChannel),
		kafka:    kafka,
	}

	rt.runner = agent.NewRunner(agent.Options{
		Router:    rt.router,
		Registry:  rt.registry,
		Bus:       bus,
		Store:     st,
		MaxRounds: cfg.Model.MaxRounds,
	})

	// The dispatcher is the Spawner behind the spawn_agent tool, so it
	// exists even when the background loop is not started.
	rt.dispatcher = dispatch.New(dispatch.Options{
		Store:         st,
		Runner:        rt.runner,
		Bus:           bus,
		Notifier:      rt.notifier,
		TickInterval:       cfg.Dispatch.TickInterval,
		MaxAttempts:        cfg.Dispatch.MaxAttempts,
		MaxConcurrent:      cfg.Dispatch.MaxConcurrent,
		SpawnMaxDepth:      cfg.Tools.SpawnMaxDepth,
		SpawnMaxConcurrent: cfg.Tools.SpawnMaxConcurrent,
		DefaultAgent:       cfg.Dispatch.DefaultAgent,
	})

	if err := tools.RegisterBuiltins(rt.registry, tools.BuiltinOptions{
		Workspace:    cfg.Paths.Workspace,
		ExecTimeout:  cfg.Tools.ExecTimeout,
		FetchTimeout: cfg.Tools.FetchTimeout,
		Spawner:      rt.dispatcher,
	}); err != nil {
		st.Close()
		return nil, err
	}
	return rt, nil
}

// StartDispatcher runs the background scan loop until ctx is cancelled.
func (rt *Runtime) StartDispatcher(ctx context.Context) {
	if !rt.cfg.Dispatch.Enabled {
		slog.Info("dispatcher disabled by config")
		return
	}
	go func() {
		if err := rt.dispatcher.Run(ctx); err != nil && ctx.Err() == nil {
			slog.Error("dispatcher exited", "error", err)
		}
	}()
}

// Handle processes one user turn. An empty conversationID creates a new
// conversation. The execution is detached: it runs to completion even
// if the caller never attaches or disconnects midway. The returned
// stream id (the conversation id) keys Attach.
func (rt *Runtime) Handle(ctx context.Context, conversationID, message, modelID, tier string) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", fmt.Errorf("empty message")
	}

	if conversationID == "" {
		conv := &store.Conversation{Title: titleFrom(message)}
		if err := rt.store.CreateConversation(conv); err != nil {
			return "", err
		}
		conversationID = conv.ID
	} else if _, err := rt.store.GetConversation(conversationID); err != nil {
		return "", err
	}

	if rt.streams.Active(conversationID) {
		return "", fmt.Errorf("conversation %s already has a running turn", conversationID)
	}

	userMsg := &store.Message{
		ConversationID: conversationID,
		Role:           store.RoleUser,
		Content:        message,
	}
	if err := rt.store.AddMessage(userMsg); err != nil {
		return "", err
	}

	msgs, err := rt.store.ListMessages(conversationID)
	if err != nil {
		return "", err
	}
	if modelID == "" {
		modelID = rt.cfg.Model.Name
	}
	if tier == "" {
		tier = rt.cfg.Model.Tier
	}

	rt.bus.Publish(events.Event{
		Type: events.TypeStreamStarted, Source: "runtime",
		ConversationID: conversationID,
		Payload:        map[string]any{"message_id": userMsg.ID},
	})

	// Detached from the request context: a client disconnect must not
	// cancel the turn. The origin rides the context so spawn_agent can
	// deliver its result back here.
	runCtx := tools.WithOrigin(context.WithoutCancel(ctx), tools.Origin{
		ConversationID: conversationID,
		MessageID:      userMsg.ID,
	})
	src := rt.runner.Run(runCtx, agent.Request{
		ConversationID: conversationID,
		History:        agent.HistoryFromMessages(msgs),
		ModelID:        modelID,
		Tier:           tier,
		MaxTokens:      rt.cfg.Model.MaxTokens,
		Temperature:    rt.cfg.Model.Temperature,
	})
	rt.streams.Start(conversationID, rt.withFinishEvent(conversationID, src))
	return conversationID, nil
}

// withFinishEvent republishes the chunk sequence, emitting the
// stream.finished event when the source closes.
func (rt *Runtime) withFinishEvent(conversationID string, src <-chan agent.Chunk) <-chan agent.Chunk {
	out := make(chan agent.Chunk, 16)
	go func() {
		defer close(out)
		for c := range src {
			out <- c
		}
		rt.bus.Publish(events.Event{
			Type: events.TypeStreamFinished, Source: "runtime",
			ConversationID: conversationID,
		})
	}()
	return out
}

// Attach joins a conversation's live stream, replaying the whole buffer
// first. Returns false when no stream (active or retained) exists.
func (rt *Runtime) Attach(conversationID string, fn stream.Subscriber) (func(), bool) {
	return rt.streams.Subscribe(conversationID, fn)
}

// AttachFromCurrentTurn joins a conversation's live stream, replaying
// only the in-progress turn. A finished stream replays nothing.
func (rt *Runtime) AttachFromCurrentTurn(conversationID string, fn stream.Subscriber) (func(), bool) {
	return rt.streams.SubscribeFromCurrentTurn(conversationID, fn)
}

// StreamActive reports whether the conversation has a running turn.
func (rt *Runtime) StreamActive(conversationID string) bool {
	return rt.streams.Active(conversationID)
}

// SpawnAgent starts a background task and returns its id.
func (rt *Runtime) SpawnAgent(ctx context.Context, agentID, input string, origin tools.Origin) (string, error) {
	return rt.dispatcher.Spawn(ctx, agentID, input, origin)
}

// Events exposes the live bus for subscription.
func (rt *Runtime) Events() *events.Bus { return rt.bus }

// EventLog queries the persisted event history.
func (rt *Runtime) EventLog(f store.EventFilter) ([]store.EventRecord, error) {
	return rt.store.ListEvents(f)
}

// Store exposes persistence for the CLI inspection commands.
func (rt *Runtime) Store() *store.Store { return rt.store }

// Dispatcher exposes the background engine for the CLI task and
// schedule commands.
func (rt *Runtime) Dispatcher() *dispatch.Dispatcher { return rt.dispatcher }

// Config returns the active configuration.
func (rt *Runtime) Config() *config.Config { return rt.cfg }

// Close drains in-flight background work and releases resources.
func (rt *Runtime) Close() error {
	rt.dispatcher.Wait()
	if rt.kafka != nil {
		if err := rt.kafka.Close(); err != nil {
			slog.Warn("kafka mirror close failed", "error", err)
		}
	}
	return rt.store.Close()
}

func titleFrom(message string) string {
	title := strings.TrimSpace(message)
	if i := strings.IndexByte(title, '\n'); i >= 0 {
		title = title[:i]
	}
	if len(title) > 60 {
		title = title[:60] + "..."
	}
	return title
}
