package live

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/eventlify-server/internal/core"
	"github.com/vovakirdan/eventlify-server/internal/metrics"
	"github.com/vovakirdan/eventlify-server/internal/store"
)

// DefaultOpTimeout bounds a single live count store call.
const DefaultOpTimeout = 5 * time.Second

// Attendance is the live count of one event.
type Attendance struct {
	EventID    string
	Attendance int64
}

// Service implements the live attendance protocol on top of the hub
// registry and the durable live count.
//
// Membership transitions are decided by the hub; store calls run in the
// caller's goroutine so a slow store only delays that connection.
type Service struct {
	hub       *core.Hub
	counts    store.LiveCountStore
	opTimeout time.Duration
	log       *zerolog.Logger
}

// NewService creates a live attendance service.
func NewService(hub *core.Hub, counts store.LiveCountStore, opTimeout time.Duration, logger *zerolog.Logger) *Service {
	if opTimeout <= 0 {
		opTimeout = DefaultOpTimeout
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Service{
		hub:       hub,
		counts:    counts,
		opTimeout: opTimeout,
		log:       logger,
	}
}

// Connect registers a new connection with the registry.
func (s *Service) Connect(ctx context.Context, c *core.Client) error {
	return s.hub.RegisterClient(ctx, c)
}

// Subscribe returns the current durable count. Missing events and store
// failures read as zero; the registry is never touched.
func (s *Service) Subscribe(ctx context.Context, eventID string) Attendance {
	result := Attendance{EventID: eventID}
	if eventID == "" {
		return result
	}

	opCtx, cancel := s.storeContext(ctx)
	defer cancel()

	timer := metrics.NewTimer()
	count, err := s.counts.GetLiveCount(opCtx, eventID)
	timer.ObserveDurationVec(metrics.StoreLatency, "get")

	switch {
	case errors.Is(err, store.ErrNotFound):
		s.log.Debug().Str("event_id", eventID).Msg("subscribe to unknown event")
		metrics.LiveOpsTotal.WithLabelValues("subscribe", "not_found").Inc()
	case err != nil:
		s.log.Error().Err(err).Str("event_id", eventID).Msg("failed to read live count")
		metrics.LiveOpsTotal.WithLabelValues("subscribe", "store_error").Inc()
	default:
		result.Attendance = count
		metrics.LiveOpsTotal.WithLabelValues("subscribe", "ok").Inc()
	}
	return result
}

// Join adds c to the event room. Only a NotMember to Member transition
// increments the count and broadcasts; if the increment fails the
// membership is rolled back and nothing is broadcast.
func (s *Service) Join(ctx context.Context, c *core.Client, eventID string) {
	if eventID == "" {
		return
	}

	changed, err := s.hub.Join(ctx, c, eventID)
	if err != nil {
		s.log.Warn().Err(err).Str("client_id", c.ID).Str("event_id", eventID).Msg("join rejected by hub")
		metrics.LiveOpsTotal.WithLabelValues("join", "hub_error").Inc()
		return
	}
	if !changed {
		s.log.Debug().Str("client_id", c.ID).Str("event_id", eventID).Msg("already joined")
		metrics.LiveOpsTotal.WithLabelValues("join", "duplicate").Inc()
		return
	}

	count, err := s.increment(ctx, eventID, 1)
	if err != nil {
		s.rollbackJoin(ctx, c, eventID)
		s.logStoreError("join", c, eventID, err)
		return
	}

	metrics.LiveOpsTotal.WithLabelValues("join", "ok").Inc()
	s.log.Debug().Str("client_id", c.ID).Str("event_id", eventID).Int64("attendance", count).Msg("joined event room")
	s.broadcast(ctx, eventID, count)
}

// Leave removes c from the event room. Leaving a room the client is not in
// changes nothing and broadcasts nothing. If the decrement fails the
// membership is restored, so the count still matches the room and a later
// leave or disconnect retries the decrement.
func (s *Service) Leave(ctx context.Context, c *core.Client, eventID string) {
	if eventID == "" {
		return
	}

	changed, err := s.hub.Leave(ctx, c, eventID)
	if err != nil {
		s.log.Warn().Err(err).Str("client_id", c.ID).Str("event_id", eventID).Msg("leave rejected by hub")
		metrics.LiveOpsTotal.WithLabelValues("leave", "hub_error").Inc()
		return
	}
	if !changed {
		s.log.Debug().Str("client_id", c.ID).Str("event_id", eventID).Msg("leave without membership")
		metrics.LiveOpsTotal.WithLabelValues("leave", "not_member").Inc()
		return
	}

	if err := s.release(ctx, "leave", c, eventID); err != nil && !errors.Is(err, store.ErrNotFound) {
		s.restoreMembership(ctx, c, eventID)
	}
}

// Disconnect unregisters c and treats every room it still held as a
// leave, one event at a time. A failed decrement here cannot be retried
// and leaves the count high until the next reset.
func (s *Service) Disconnect(ctx context.Context, c *core.Client) {
	ctx = context.WithoutCancel(ctx)

	released, err := s.hub.UnregisterClient(ctx, c)
	if err != nil {
		s.log.Warn().Err(err).Str("client_id", c.ID).Msg("unregister rejected by hub")
		return
	}

	for _, eventID := range released {
		_ = s.release(ctx, "disconnect", c, eventID)
	}
	if len(released) > 0 {
		s.log.Info().Str("client_id", c.ID).Strs("events", released).Msg("released rooms on disconnect")
	}
}

// ResetCounts zeroes every durable live count. Memberships do not survive a
// restart, so counts left over from a previous process are stale.
func (s *Service) ResetCounts(ctx context.Context) (int64, error) {
	return s.counts.ResetLiveCounts(ctx)
}

func (s *Service) release(ctx context.Context, op string, c *core.Client, eventID string) error {
	count, err := s.increment(ctx, eventID, -1)
	if err != nil {
		s.logStoreError(op, c, eventID, err)
		return err
	}

	metrics.LiveOpsTotal.WithLabelValues(op, "ok").Inc()
	s.log.Debug().Str("client_id", c.ID).Str("event_id", eventID).Int64("attendance", count).Msg("left event room")
	s.broadcast(ctx, eventID, count)
	return nil
}

func (s *Service) rollbackJoin(ctx context.Context, c *core.Client, eventID string) {
	if _, err := s.hub.Leave(context.WithoutCancel(ctx), c, eventID); err != nil {
		s.log.Warn().Err(err).Str("client_id", c.ID).Str("event_id", eventID).Msg("failed to roll back join")
	}
}

func (s *Service) restoreMembership(ctx context.Context, c *core.Client, eventID string) {
	if _, err := s.hub.Join(context.WithoutCancel(ctx), c, eventID); err != nil {
		s.log.Warn().Err(err).Str("client_id", c.ID).Str("event_id", eventID).Msg("failed to restore membership after leave")
	}
}

func (s *Service) increment(ctx context.Context, eventID string, delta int64) (int64, error) {
	opCtx, cancel := s.storeContext(ctx)
	defer cancel()

	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.StoreLatency, "increment")

	return s.counts.IncrementLiveCount(opCtx, eventID, delta)
}

// storeContext detaches store calls from connection cancellation so a
// transition already applied to the registry is also applied to the count.
func (s *Service) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.opTimeout)
}

// broadcast sends the value returned by the store. Concurrent transitions
// on one event may reach clients out of order; the next update carries the
// current count.
func (s *Service) broadcast(ctx context.Context, eventID string, count int64) {
	if _, err := s.hub.Broadcast(context.WithoutCancel(ctx), core.AttendanceUpdate(eventID, count)); err != nil {
		s.log.Warn().Err(err).Str("event_id", eventID).Msg("failed to broadcast attendance")
		return
	}
	metrics.AttendanceUpdates.Inc()
}

func (s *Service) logStoreError(op string, c *core.Client, eventID string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		s.log.Debug().Str("op", op).Str("client_id", c.ID).Str("event_id", eventID).Msg("live op on unknown event")
		metrics.LiveOpsTotal.WithLabelValues(op, "not_found").Inc()
		return
	}
	s.log.Error().Err(err).Str("op", op).Str("client_id", c.ID).Str("event_id", eventID).Msg("failed to update live count")
	metrics.LiveOpsTotal.WithLabelValues(op, "store_error").Inc()
}
