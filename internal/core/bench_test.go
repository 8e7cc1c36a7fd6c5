package core

import (
	"context"
	"strconv"
	"testing"
)

func benchmarkBroadcast(b *testing.B, recipients int) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(nil)
	go hub.Run(ctx)

	clients := make([]*Client, 0, recipients)
	for i := range recipients {
		c := NewClient("c"+strconv.Itoa(i), 0)
		if err := hub.RegisterClient(ctx, c); err != nil {
			b.Fatalf("register: %v", err)
		}
		clients = append(clients, c)
	}

	// Drain events for all but the first recipient to avoid channel backpressure.
	target := clients[0]
	for _, c := range clients[1:] {
		go func(cl *Client) {
			for range cl.Events {
			}
		}(c)
	}

	ev := AttendanceUpdate("bench", 1)

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, err := hub.Broadcast(ctx, ev); err != nil {
			b.Fatalf("broadcast: %v", err)
		}
		<-target.Events
	}
}

func BenchmarkBroadcast_10(b *testing.B)  { benchmarkBroadcast(b, 10) }
func BenchmarkBroadcast_100(b *testing.B) { benchmarkBroadcast(b, 100) }
func BenchmarkBroadcast_500(b *testing.B) { benchmarkBroadcast(b, 500) }
