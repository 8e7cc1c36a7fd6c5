package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/vovakirdan/eventlify-server/internal/liveview"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	eventID := flag.String("event", "", "event id to watch")
	hold := flag.Duration("hold", 2*time.Second, "how long to stay in the live room")
	timeout := flag.Duration("timeout", 10*time.Second, "total timeout for the run")
	flag.Parse()

	if *eventID == "" {
		return fmt.Errorf("-event is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	conn, err := liveview.Dial(ctx, *addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	go func() {
		for e := range conn.Errors() {
			log.Printf("server error: %v", e)
		}
	}()

	view := liveview.NewView(conn, *eventID, func(n int64) {
		log.Printf("attendance %s: %d", *eventID, n)
	})
	if err := view.Mount(ctx); err != nil {
		return fmt.Errorf("mount: %w", err)
	}
	if err := view.Enter(ctx); err != nil {
		return fmt.Errorf("join: %w", err)
	}

	select {
	case <-time.After(*hold):
	case <-conn.Done():
		return fmt.Errorf("connection closed: %w", conn.Err())
	case <-ctx.Done():
		return ctx.Err()
	}

	log.Printf("leaving %s at attendance %d", *eventID, view.Count())
	if err := view.Unmount(ctx); err != nil {
		return fmt.Errorf("leave: %w", err)
	}
	return nil
}
