package events

import (
	"testing"
)

func TestPublishDeliversToSubscriber(t *testing.T) {
	bus := NewBus()

	var got []Event
	bus.Subscribe(func(e Event) { got = append(got, e) })

	bus.Publish(EventSyncStarted, SyncStarted{Total: 5})

	if len(got) != 1 {
		t.Fatalf("expected 1 event, got %d", len(got))
	}
	if got[0].Type != EventSyncStarted {
		t.Errorf("expected %s, got %s", EventSyncStarted, got[0].Type)
	}
	if got[0].Timestamp == 0 {
		t.Error("expected timestamp set")
	}
	payload, ok := got[0].Payload.(SyncStarted)
	if !ok || payload.Total != 5 {
		t.Errorf("unexpected payload %+v", got[0].Payload)
	}
}

func TestSubscribeFiltersTypes(t *testing.T) {
	bus := NewBus()

	var got []Event
	bus.Subscribe(func(e Event) { got = append(got, e) }, EventSyncCompleted)

	bus.Publish(EventSyncStarted, SyncStarted{})
	bus.Publish(EventSyncCompleted, SyncCompleted{Status: "completed"})
	bus.Publish(EventConnectivityChanged, ConnectivityChanged{Online: true})

	if len(got) != 1 {
		t.Fatalf("expected 1 filtered event, got %d", len(got))
	}
	if got[0].Type != EventSyncCompleted {
		t.Errorf("expected completion event, got %s", got[0].Type)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus()

	count := 0
	unsubscribe := bus.Subscribe(func(e Event) { count++ })

	bus.Publish(EventSyncStarted, SyncStarted{})
	unsubscribe()
	bus.Publish(EventSyncStarted, SyncStarted{})

	if count != 1 {
		t.Errorf("expected 1 delivery, got %d", count)
	}
}

func TestMultipleSubscribers(t *testing.T) {
	bus := NewBus()

	a, b := 0, 0
	bus.Subscribe(func(e Event) { a++ })
	bus.Subscribe(func(e Event) { b++ })

	bus.Publish(EventRequestCaptured, RequestCaptured{Method: "POST", URL: "/api/campaigns"})

	if a != 1 || b != 1 {
		t.Errorf("expected both subscribers notified, got %d and %d", a, b)
	}
}
