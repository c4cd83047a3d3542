package events

import (
	"encoding/json"
	"log/slog"

	"github.com/majordomo-ai/majordomo/internal/store"
)

// AttachStoreSink persists every published event into the append-only
// event log. Persistence failures are logged, never propagated to the
// publisher.
func AttachStoreSink(b *Bus, s *store.Store) {
	b.SubscribeAll(func(e Event) {
		payload := ""
		if len(e.Payload) > 0 {
			data, err := json.Marshal(e.Payload)
			if err != nil {
				slog.Warn("event payload not serializable", "type", e.Type, "error", err)
			} else {
				payload = string(data)
			}
		}
		rec := &store.EventRecord{
			ID:             e.ID,
			Type:           e.Type,
			Source:         e.Source,
			AgentID:        e.AgentID,
			ConversationID: e.ConversationID,
			Payload:        payload,
			Level:          e.Level,
			CreatedAt:      e.Timestamp,
		}
		if err := s.AddEvent(rec); err != nil {
			slog.Error("persist event", "type", e.Type, "error", err)
		}
	})
}
