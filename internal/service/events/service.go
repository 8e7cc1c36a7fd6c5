package events

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/vovakirdan/eventlify-server/internal/cache"
	"github.com/vovakirdan/eventlify-server/internal/store"
)

// loadTimeout bounds a store read shared by concurrent cache misses.
const loadTimeout = 5 * time.Second

// Common errors for event operations.
var (
	ErrEventNotFound       = errors.New("event not found")
	ErrQuestionNotFound    = errors.New("question not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrForbidden           = errors.New("only the creator can modify this event")
	ErrInvalidEvent        = errors.New("invalid event")
	ErrAlreadyRegistered   = errors.New("user already registered for this event")
	ErrCreatorRegistration = errors.New("creator cannot register for own event")
	ErrNotRegistered       = errors.New("user is not registered for this event")
	ErrEmptyText           = errors.New("text is required")
)

// Covers stores cover images. Implemented by media.Uploader.
type Covers interface {
	SaveCover(ctx context.Context, r io.Reader) (string, error)
	RemoveCover(ctx context.Context, url string)
}

// Input carries the fields of a new event.
type Input struct {
	Title       string
	Description string
	Date        time.Time
	Time        string
	Location    string
	Category    store.Category
}

// Service provides event management business logic.
type Service struct {
	store  store.Store
	cache  cache.EventCache
	covers Covers
	log    *zerolog.Logger
	sf     singleflight.Group
}

// New creates an event service. cache and covers may be nil.
func New(st store.Store, eventCache cache.EventCache, covers Covers, logger *zerolog.Logger) *Service {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Service{
		store:  st,
		cache:  eventCache,
		covers: covers,
		log:    logger,
	}
}

// List returns all events, newest date first.
func (s *Service) List(ctx context.Context) ([]*store.Event, error) {
	return s.store.ListEvents(ctx)
}

// Get returns one event. Cached copies get their live count refreshed from the store.
func (s *Service) Get(ctx context.Context, id string) (*store.Event, error) {
	if s.cache != nil {
		ev, err := s.cache.Get(ctx, id)
		if err == nil {
			count, countErr := s.store.GetLiveCount(ctx, id)
			if countErr == nil {
				ev.LiveCount = count
				return ev, nil
			}
			if errors.Is(countErr, store.ErrNotFound) {
				s.invalidate(ctx, id)
				return nil, ErrEventNotFound
			}
			s.log.Warn().Err(countErr).Str("event_id", id).Msg("failed to refresh live count, reading store")
		} else if !errors.Is(err, cache.ErrCacheMiss) {
			s.log.Warn().Err(err).Str("event_id", id).Msg("event cache read failed")
		}
	}

	// Concurrent misses for the same event share one store read, detached
	// from the first caller so its cancellation does not fail the others.
	result, err, _ := s.sf.Do(id, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()

		ev, err := s.load(loadCtx, id)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			if err := s.cache.Set(loadCtx, ev); err != nil {
				s.log.Warn().Err(err).Str("event_id", id).Msg("event cache write failed")
			}
		}
		return ev, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*store.Event), nil
}

// Create stores a new event owned by creatorID. cover is optional.
func (s *Service) Create(ctx context.Context, creatorID string, in Input, cover io.Reader) (*store.Event, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Category == "" {
		in.Category = store.CategoryOther
	}
	if in.Title == "" || in.Date.IsZero() {
		return nil, fmt.Errorf("%w: title and date are required", ErrInvalidEvent)
	}
	if !in.Category.Valid() {
		return nil, fmt.Errorf("%w: unknown category %q", ErrInvalidEvent, in.Category)
	}

	ev := &store.Event{
		Title:       in.Title,
		Description: in.Description,
		Date:        in.Date,
		Time:        in.Time,
		Location:    in.Location,
		Category:    in.Category,
		CreatorID:   creatorID,
	}

	if cover != nil && s.covers != nil {
		url, err := s.covers.SaveCover(ctx, cover)
		if err != nil {
			return nil, fmt.Errorf("save cover: %w", err)
		}
		ev.CoverImage = url
	}

	created, err := s.store.CreateEvent(ctx, ev)
	if err != nil {
		if ev.CoverImage != "" {
			s.covers.RemoveCover(ctx, ev.CoverImage)
		}
		return nil, fmt.Errorf("create event: %w", err)
	}
	s.log.Info().Str("event_id", created.ID).Str("creator_id", creatorID).Msg("event created")
	return created, nil
}

// Update applies upd on behalf of userID, who must be the creator.
// A new cover replaces and deletes the previous one.
func (s *Service) Update(ctx context.Context, userID, id string, upd store.EventUpdate, cover io.Reader) (*store.Event, error) {
	existing, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if upd.Title != nil {
		title := strings.TrimSpace(*upd.Title)
		if title == "" {
			return nil, fmt.Errorf("%w: title cannot be empty", ErrInvalidEvent)
		}
		upd.Title = &title
	}
	if upd.Category != nil && !upd.Category.Valid() {
		return nil, fmt.Errorf("%w: unknown category %q", ErrInvalidEvent, *upd.Category)
	}

	var newCover string
	if cover != nil && s.covers != nil {
		newCover, err = s.covers.SaveCover(ctx, cover)
		if err != nil {
			return nil, fmt.Errorf("save cover: %w", err)
		}
		upd.CoverImage = &newCover
	}

	updated, err := s.store.UpdateEvent(ctx, id, upd)
	if err != nil {
		if newCover != "" {
			s.covers.RemoveCover(ctx, newCover)
		}
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("update event: %w", err)
	}
	if newCover != "" && existing.CoverImage != "" {
		s.covers.RemoveCover(ctx, existing.CoverImage)
	}

	s.invalidate(ctx, id)
	return updated, nil
}

// Delete removes the event on behalf of its creator.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	existing, err := s.owned(ctx, userID, id)
	if err != nil {
		return err
	}

	if err := s.store.DeleteEvent(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrEventNotFound
		}
		return fmt.Errorf("delete event: %w", err)
	}
	if existing.CoverImage != "" && s.covers != nil {
		s.covers.RemoveCover(ctx, existing.CoverImage)
	}

	s.invalidate(ctx, id)
	s.log.Info().Str("event_id", id).Str("user_id", userID).Msg("event deleted")
	return nil
}

// Register signs userID up for the event.
func (s *Service) Register(ctx context.Context, userID, id string) error {
	ev, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if ev.CreatorID == userID {
		return ErrCreatorRegistration
	}

	if err := s.store.AddRegistration(ctx, id, userID); err != nil {
		switch {
		case errors.Is(err, store.ErrConflict):
			return ErrAlreadyRegistered
		case errors.Is(err, store.ErrNotFound):
			return ErrEventNotFound
		}
		return fmt.Errorf("register: %w", err)
	}

	s.invalidate(ctx, id)
	return nil
}

// Unregister removes userID from the event's attendees.
func (s *Service) Unregister(ctx context.Context, userID, id string) error {
	if _, err := s.load(ctx, id); err != nil {
		return err
	}

	if err := s.store.RemoveRegistration(ctx, id, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotRegistered
		}
		return fmt.Errorf("unregister: %w", err)
	}

	s.invalidate(ctx, id)
	return nil
}

// Registered lists the events userID registered for.
func (s *Service) Registered(ctx context.Context, userID string) ([]*store.Event, error) {
	return s.store.ListEventsRegistered(ctx, userID)
}

// Created lists the events userID created.
func (s *Service) Created(ctx context.Context, userID string) ([]*store.Event, error) {
	return s.store.ListEventsCreated(ctx, userID)
}

// AskQuestion posts a question by userID on the event's board.
func (s *Service) AskQuestion(ctx context.Context, userID, eventID, text string) (*store.Question, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}
	author, err := s.author(ctx, userID)
	if err != nil {
		return nil, err
	}

	q, err := s.store.AddQuestion(ctx, eventID, &store.Question{
		Text:       text,
		AuthorID:   author.ID,
		AuthorName: author.Name,
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("add question: %w", err)
	}

	s.invalidate(ctx, eventID)
	return q, nil
}

// Answer replies to a question and returns the updated question.
func (s *Service) Answer(ctx context.Context, userID, eventID, questionID, text string) (*store.Question, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}
	author, err := s.author(ctx, userID)
	if err != nil {
		return nil, err
	}
	if _, err := s.load(ctx, eventID); err != nil {
		return nil, err
	}

	q, err := s.store.AddAnswer(ctx, eventID, questionID, &store.Answer{
		Text:       text,
		AuthorID:   author.ID,
		AuthorName: author.Name,
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrQuestionNotFound
		}
		return nil, fmt.Errorf("add answer: %w", err)
	}

	s.invalidate(ctx, eventID)
	return q, nil
}

func (s *Service) load(ctx context.Context, id string) (*store.Event, error) {
	ev, err := s.store.GetEvent(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return ev, nil
}

func (s *Service) owned(ctx context.Context, userID, id string) (*store.Event, error) {
	ev, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if ev.CreatorID != userID {
		return nil, ErrForbidden
	}
	return ev, nil
}

func (s *Service) author(ctx context.Context, userID string) (*store.User, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

func (s *Service) invalidate(ctx context.Context, ids ...string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, ids...); err != nil {
		s.log.Warn().Err(err).Strs("event_ids", ids).Msg("event cache invalidation failed")
	}
}
