package events

import (
	"testing"
)

func TestPublishReachesTypedSubscriber(t *testing.T) {
	b := NewBus()
	var got []Event
	b.Subscribe(TypeTaskSpawned, func(e Event) { got = append(got, e) })

	b.Publish(Event{Type: TypeTaskSpawned, AgentID: "a1"})
	b.Publish(Event{Type: TypeTaskCompleted, AgentID: "a1"})

	if len(got) != 1 {
		t.Fatalf("typed subscriber saw %d events, want 1", len(got))
	}
	if got[0].AgentID != "a1" {
		t.Errorf("agent id = %q", got[0].AgentID)
	}
	if got[0].ID == "" || got[0].Timestamp.IsZero() {
		t.Error("id and timestamp should be filled on publish")
	}
	if got[0].Level != "info" {
		t.Errorf("default level = %q, want info", got[0].Level)
	}
}

func TestWildcardSubscriberSeesEverything(t *testing.T) {
	b := NewBus()
	var n int
	b.SubscribeAll(func(Event) { n++ })

	b.Publish(Event{Type: TypeTaskSpawned})
	b.Publish(Event{Type: TypeCronTriggered})
	b.Publish(Event{Type: TypeToolCalled})

	if n != 3 {
		t.Fatalf("wildcard saw %d events, want 3", n)
	}
}

func TestPanickingHandlerDoesNotStopDelivery(t *testing.T) {
	b := NewBus()
	b.Subscribe(TypeTaskFailed, func(Event) { panic("broken handler") })
	delivered := false
	b.SubscribeAll(func(Event) { delivered = true })

	b.Publish(Event{Type: TypeTaskFailed})

	if !delivered {
		t.Fatal("panic in one handler blocked later handlers")
	}
}

func TestMultipleSubscribersSameType(t *testing.T) {
	b := NewBus()
	var first, second bool
	b.Subscribe(TypeAgentCreated, func(Event) { first = true })
	b.Subscribe(TypeAgentCreated, func(Event) { second = true })

	b.Publish(Event{Type: TypeAgentCreated})

	if !first || !second {
		t.Fatalf("first=%v second=%v, want both", first, second)
	}
}
