package core

import (
	"context"
	"sort"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/eventlify-server/internal/metrics"
)

// Hub is the room registry. A single goroutine (Run) owns every map;
// other goroutines talk to it only through commands.
type Hub struct {
	commands chan *Command
	done     chan struct{}

	clients     map[*Client]struct{}
	rooms       map[string]*Room
	memberships int

	log *zerolog.Logger
}

// NewHub creates a new hub instance.
func NewHub(logger *zerolog.Logger) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Hub{
		commands: make(chan *Command),
		done:     make(chan struct{}),
		clients:  make(map[*Client]struct{}),
		rooms:    make(map[string]*Room),
		log:      logger,
	}
}

// Run processes commands until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case cmd := <-h.commands:
			cmd.reply <- h.handle(cmd)
		}
	}
}

// Done is closed once the hub has stopped.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// RegisterClient adds a connection to the registry.
func (h *Hub) RegisterClient(ctx context.Context, c *Client) error {
	_, err := h.do(ctx, &Command{Kind: CommandRegister, Client: c})
	return err
}

// UnregisterClient removes a connection, releases every room it held and
// closes its Events channel. It returns the released event ids, sorted.
func (h *Hub) UnregisterClient(ctx context.Context, c *Client) ([]string, error) {
	res, err := h.do(ctx, &Command{Kind: CommandUnregister, Client: c})
	return res.Released, err
}

// Join makes c a member of the event room. It reports whether this was a
// NotMember to Member transition; joining twice is a no-op.
func (h *Hub) Join(ctx context.Context, c *Client, eventID string) (bool, error) {
	res, err := h.do(ctx, &Command{Kind: CommandJoinRoom, Client: c, EventID: eventID})
	return res.Changed, err
}

// Leave removes c from the event room and reports whether it was a member.
func (h *Hub) Leave(ctx context.Context, c *Client, eventID string) (bool, error) {
	res, err := h.do(ctx, &Command{Kind: CommandLeaveRoom, Client: c, EventID: eventID})
	return res.Changed, err
}

// Broadcast queues ev for every registered client and returns how many
// clients accepted it. Clients with a full queue miss the event.
func (h *Hub) Broadcast(ctx context.Context, ev *Event) (int, error) {
	res, err := h.do(ctx, &Command{Kind: CommandBroadcast, Event: ev})
	return res.Delivered, err
}

// Stats reports registry sizes; RoomSize refers to eventID when non-empty.
func (h *Hub) Stats(ctx context.Context, eventID string) (Stats, error) {
	res, err := h.do(ctx, &Command{Kind: CommandStats, EventID: eventID})
	return res.Stats, err
}

func (h *Hub) do(ctx context.Context, cmd *Command) (Result, error) {
	cmd.reply = make(chan Result, 1)

	select {
	case h.commands <- cmd:
	case <-h.done:
		return Result{}, ErrHubStopped
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}

	// Once accepted the command is applied, so wait for its outcome even if
	// ctx is cancelled meanwhile: the caller must learn about transitions.
	select {
	case res := <-cmd.reply:
		return res, res.Err
	case <-h.done:
		select {
		case res := <-cmd.reply:
			return res, res.Err
		default:
			return Result{}, ErrHubStopped
		}
	}
}

func (h *Hub) handle(cmd *Command) Result {
	switch cmd.Kind {
	case CommandRegister:
		return h.handleRegister(cmd.Client)
	case CommandUnregister:
		return h.handleUnregister(cmd.Client)
	case CommandJoinRoom:
		return h.handleJoin(cmd.Client, cmd.EventID)
	case CommandLeaveRoom:
		return h.handleLeave(cmd.Client, cmd.EventID)
	case CommandBroadcast:
		return h.handleBroadcast(cmd.Event)
	case CommandStats:
		return h.handleStats(cmd.EventID)
	default:
		h.log.Warn().Int("kind", int(cmd.Kind)).Msg("unknown hub command")
		return Result{}
	}
}

func (h *Hub) handleRegister(c *Client) Result {
	if _, ok := h.clients[c]; ok {
		return Result{}
	}
	h.clients[c] = struct{}{}
	metrics.LiveConnections.Inc()
	h.log.Debug().Str("client_id", c.ID).Int("clients", len(h.clients)).Msg("client registered")
	return Result{Changed: true}
}

func (h *Hub) handleUnregister(c *Client) Result {
	if _, ok := h.clients[c]; !ok {
		return Result{}
	}

	released := make([]string, 0, len(c.rooms))
	for eventID := range c.rooms {
		if room, ok := h.rooms[eventID]; ok {
			room.RemoveClient(c)
			if room.Empty() {
				delete(h.rooms, eventID)
			}
		}
		released = append(released, eventID)
	}
	sort.Strings(released)

	h.memberships -= len(released)
	clear(c.rooms)
	delete(h.clients, c)
	close(c.Events)

	metrics.LiveConnections.Dec()
	metrics.LiveMemberships.Set(float64(h.memberships))
	metrics.LiveRooms.Set(float64(len(h.rooms)))

	h.log.Debug().Str("client_id", c.ID).Strs("released", released).Msg("client unregistered")
	return Result{Changed: true, Released: released}
}

func (h *Hub) handleJoin(c *Client, eventID string) Result {
	if _, ok := h.clients[c]; !ok {
		h.log.Warn().Str("client_id", c.ID).Str("event_id", eventID).Msg("join from unknown client")
		return Result{Err: ErrUnknownClient}
	}

	room, ok := h.rooms[eventID]
	if !ok {
		room = NewRoom(eventID)
		h.rooms[eventID] = room
	}
	if !room.AddClient(c) {
		return Result{}
	}
	c.rooms[eventID] = struct{}{}
	h.memberships++

	metrics.LiveMemberships.Set(float64(h.memberships))
	metrics.LiveRooms.Set(float64(len(h.rooms)))
	return Result{Changed: true}
}

func (h *Hub) handleLeave(c *Client, eventID string) Result {
	if _, ok := h.clients[c]; !ok {
		return Result{Err: ErrUnknownClient}
	}
	room, ok := h.rooms[eventID]
	if !ok || !room.RemoveClient(c) {
		return Result{}
	}
	if room.Empty() {
		delete(h.rooms, eventID)
	}
	delete(c.rooms, eventID)
	h.memberships--

	metrics.LiveMemberships.Set(float64(h.memberships))
	metrics.LiveRooms.Set(float64(len(h.rooms)))
	return Result{Changed: true}
}

func (h *Hub) handleBroadcast(ev *Event) Result {
	delivered := 0
	for c := range h.clients {
		select {
		case c.Events <- ev:
			delivered++
		default:
			// Drop if slow consumer.
			metrics.DroppedEvents.Inc()
			h.log.Warn().Str("client_id", c.ID).Msg("client queue full, event dropped")
		}
	}
	return Result{Delivered: delivered}
}

func (h *Hub) handleStats(eventID string) Result {
	stats := Stats{
		Clients:     len(h.clients),
		Rooms:       len(h.rooms),
		Memberships: h.memberships,
	}
	if room, ok := h.rooms[eventID]; ok {
		stats.RoomSize = room.Len()
	}
	return Result{Stats: stats}
}

func (h *Hub) shutdown() {
	for c := range h.clients {
		clear(c.rooms)
		close(c.Events)
	}
	clear(h.clients)
	clear(h.rooms)
	h.memberships = 0

	metrics.LiveConnections.Set(0)
	metrics.LiveMemberships.Set(0)
	metrics.LiveRooms.Set(0)
}
