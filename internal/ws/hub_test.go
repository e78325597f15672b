package ws

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestClient(hub *Hub, tenantID uuid.UUID) *Client {
	return &Client{
		hub:      hub,
		tenantID: tenantID,
		send:     make(chan []byte, 8),
	}
}

func TestHubRegisterUnregister(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	tenantID := uuid.New()
	client := newTestClient(hub, tenantID)

	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	if !hub.rooms[tenantID][client] {
		hub.mu.RUnlock()
		t.Fatal("client not registered in tenant room")
	}
	hub.mu.RUnlock()

	hub.unregister <- client
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	if _, ok := hub.rooms[tenantID]; ok {
		hub.mu.RUnlock()
		t.Fatal("empty room should be removed")
	}
	hub.mu.RUnlock()

	// Unregister closes the send channel.
	select {
	case _, open := <-client.send:
		if open {
			t.Fatal("expected send channel to be closed")
		}
	default:
		t.Fatal("send channel not closed")
	}
}

func TestHubBroadcastToTenant(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	tenantA := uuid.New()
	tenantB := uuid.New()
	clientA := newTestClient(hub, tenantA)
	clientB := newTestClient(hub, tenantB)

	hub.register <- clientA
	hub.register <- clientB
	time.Sleep(10 * time.Millisecond)

	hub.BroadcastToTenant(tenantA, Event{Type: "order.created", Payload: json.RawMessage(`{"id":"1"}`)})

	select {
	case msg := <-clientA.send:
		var event Event
		if err := json.Unmarshal(msg, &event); err != nil {
			t.Fatalf("invalid event payload: %v", err)
		}
		if event.Type != "order.created" {
			t.Fatalf("expected order.created, got %s", event.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("tenant A client did not receive the event")
	}

	select {
	case msg := <-clientB.send:
		t.Fatalf("tenant B must not receive tenant A's events, got %s", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubBroadcastFanOut(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	tenantID := uuid.New()
	first := newTestClient(hub, tenantID)
	second := newTestClient(hub, tenantID)

	hub.register <- first
	hub.register <- second
	time.Sleep(10 * time.Millisecond)

	hub.BroadcastToTenant(tenantID, Event{Type: "order.updated", Payload: json.RawMessage(`{}`)})

	for _, c := range []*Client{first, second} {
		select {
		case <-c.send:
		case <-time.After(time.Second):
			t.Fatal("client did not receive broadcast")
		}
	}
}

func TestHubDropsSlowClient(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	tenantID := uuid.New()
	slow := &Client{hub: hub, tenantID: tenantID, send: make(chan []byte)}

	hub.register <- slow
	time.Sleep(10 * time.Millisecond)

	// Nothing drains slow.send, so the non-blocking send evicts the client.
	hub.BroadcastToTenant(tenantID, Event{Type: "order.updated", Payload: json.RawMessage(`{}`)})
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	defer hub.mu.RUnlock()
	if _, ok := hub.rooms[tenantID]; ok {
		t.Fatal("slow client should be evicted and its room cleaned up")
	}
}
