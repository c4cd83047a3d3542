// Package router selects a model provider for each request.
package router

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/majordomo-ai/majordomo/internal/provider"
)

// ErrNoProviders is returned when routing has nothing to route to.
var ErrNoProviders = errors.New("no model providers registered")

// DefaultTier applies when neither a model id nor a tier is requested.
const DefaultTier = "standard"

// Selection is a resolved (provider, model) pair.
type Selection struct {
	Provider provider.Provider
	Model    string
}

// Router picks a provider and model for a request. Selection is a pure
// lookup over registered state; it never blocks and never retries.
type Router struct {
	mu        sync.RWMutex
	providers []provider.Provider
}

// New creates a router over the given providers, preserving their
// registration order.
func New(providers ...provider.Provider) *Router {
	return &Router{providers: providers}
}

// Register appends a provider. Registration order is the final routing
// tiebreak, so register the preferred default first.
func (r *Router) Register(p provider.Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers = append(r.providers, p)
}

// Providers returns a snapshot of the registered providers.
func (r *Router) Providers() []provider.Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]provider.Provider, len(r.providers))
	copy(out, r.providers)
	return out
}

// Route resolves the criteria with strict precedence:
//
//  1. A non-empty modelID ("provider:model" or a bare model id) must
//     match exactly; no match is an error, never a silent fallback.
//  2. Otherwise the first provider listing a model tagged with the
//     requested tier (default "standard") wins, with that model.
//  3. Otherwise the first registered provider and its default model.
func (r *Router) Route(modelID, tier string) (Selection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.providers) == 0 {
		return Selection{}, ErrNoProviders
	}

	if modelID != "" {
		if sel, ok := r.matchModel(modelID); ok {
			return sel, nil
		}
		return Selection{}, fmt.Errorf("model %q not found in any registered provider", modelID)
	}

	if tier == "" {
		tier = DefaultTier
	}
	for _, p := range r.providers {
		for _, m := range p.Models() {
			if m.Tier == tier {
				return Selection{Provider: p, Model: m.ID}, nil
			}
		}
	}

	first := r.providers[0]
	return Selection{Provider: first, Model: defaultModelOf(first)}, nil
}

func (r *Router) matchModel(modelID string) (Selection, bool) {
	providerName := ""
	model := modelID
	if idx := strings.Index(modelID, ":"); idx > 0 {
		providerName = modelID[:idx]
		model = modelID[idx+1:]
	}
	for _, p := range r.providers {
		if providerName != "" && p.Name() != providerName {
			continue
		}
		for _, m := range p.Models() {
			if m.ID == model {
				return Selection{Provider: p, Model: m.ID}, true
			}
		}
	}
	return Selection{}, false
}

func defaultModelOf(p provider.Provider) string {
	if m := p.DefaultModel(); m != "" {
		return m
	}
	if models := p.Models(); len(models) > 0 {
		return models[0].ID
	}
	return ""
}
