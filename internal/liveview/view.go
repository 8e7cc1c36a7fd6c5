package liveview

import (
	"context"
	"sync"
)

// View is the live panel of one event page: it shows the count, and lets
// the viewer enter and exit the live room.
type View struct {
	conn    *Conn
	eventID string
	render  func(int64)

	mu       sync.Mutex
	count    int64
	updates  int
	joined   bool
	listener int
	mounted  bool
}

// NewView creates a view for eventID. render, if set, is called with every new count.
func NewView(conn *Conn, eventID string, render func(int64)) *View {
	return &View{conn: conn, eventID: eventID, render: render}
}

// Mount starts listening for updates and fetches the initial count.
func (v *View) Mount(ctx context.Context) error {
	v.mu.Lock()
	if v.mounted {
		v.mu.Unlock()
		return nil
	}
	v.mounted = true
	v.listener = v.conn.On(v.onUpdate)
	seen := v.updates
	v.mu.Unlock()

	count, err := v.conn.Subscribe(ctx, v.eventID)
	if err != nil {
		return err
	}

	v.mu.Lock()
	// A broadcast that arrived while the ack was in flight is newer.
	if v.updates == seen {
		v.set(count)
	}
	v.mu.Unlock()
	return nil
}

// Enter joins the live room.
func (v *View) Enter(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.joined {
		return nil
	}
	if err := v.conn.Join(ctx, v.eventID); err != nil {
		return err
	}
	v.joined = true
	return nil
}

// Exit leaves the live room if the view joined it.
func (v *View) Exit(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.exitLocked(ctx)
}

// Unmount leaves the room if joined and stops listening.
func (v *View) Unmount(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.mounted {
		return nil
	}
	err := v.exitLocked(ctx)
	v.conn.Off(v.listener)
	v.mounted = false
	return err
}

// Count returns the displayed attendance.
func (v *View) Count() int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.count
}

// Joined reports whether the view is in the live room.
func (v *View) Joined() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.joined
}

func (v *View) exitLocked(ctx context.Context) error {
	if !v.joined {
		return nil
	}
	if err := v.conn.Leave(ctx, v.eventID); err != nil {
		return err
	}
	v.joined = false
	return nil
}

func (v *View) onUpdate(u Update) {
	if u.EventID != v.eventID {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.mounted {
		return
	}
	v.updates++
	v.set(u.Attendance)
}

func (v *View) set(count int64) {
	v.count = count
	if v.render != nil {
		v.render(count)
	}
}
