package core

import (
	"context"
	"testing"
	"time"
)

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

func startHub(t *testing.T) (*Hub, context.Context) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	t.Cleanup(cancel)

	hub := NewHub(nil)
	go hub.Run(ctx)
	return hub, ctx
}

func mustRegister(t *testing.T, ctx context.Context, hub *Hub, id string) *Client {
	t.Helper()

	c := NewClient(id, 0)
	if err := hub.RegisterClient(ctx, c); err != nil {
		t.Fatalf("register %s: %v", id, err)
	}
	return c
}
