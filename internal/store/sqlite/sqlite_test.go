package sqlite

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/eventlify-server/internal/store"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.Migrate(context.Background(), nil))
	return s
}

func seedUser(t *testing.T, s *SQLiteStore, email string) *store.User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), "user "+email, email, "hash")
	require.NoError(t, err)
	return u
}

func seedEvent(t *testing.T, s *SQLiteStore, creatorID, title string, date time.Time) *store.Event {
	t.Helper()
	ev, err := s.CreateEvent(context.Background(), &store.Event{
		Title:       title,
		Description: "desc",
		Date:        date,
		Time:        "18:00",
		Location:    "Hall A",
		Category:    store.CategoryMusic,
		CreatorID:   creatorID,
	})
	require.NoError(t, err)
	return ev
}

func TestCreateUserRejectsDuplicateEmail(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedUser(t, s, "alice@example.com")
	_, err := s.CreateUser(ctx, "Alice again", "alice@example.com", "hash")
	require.ErrorIs(t, err, store.ErrConflict)

	got, err := s.GetUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "user alice@example.com", got.Name)

	_, err = s.GetUserByID(ctx, "missing")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestPendingUserUpsertReplacesOTP(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	expires := time.Now().Add(10 * time.Minute)

	require.NoError(t, s.UpsertPendingUser(ctx, &store.PendingUser{
		Name: "Bob", Email: "bob@example.com", PasswordHash: "h1", OTP: "111111", ExpiresAt: expires,
	}))
	require.NoError(t, s.UpsertPendingUser(ctx, &store.PendingUser{
		Name: "Bob", Email: "bob@example.com", PasswordHash: "h2", OTP: "222222", ExpiresAt: expires,
	}))

	p, err := s.GetPendingUser(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.Equal(t, "222222", p.OTP)
	assert.Equal(t, "h2", p.PasswordHash)

	require.NoError(t, s.DeletePendingUser(ctx, "bob@example.com"))
	_, err = s.GetPendingUser(ctx, "bob@example.com")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestIncrementLiveCountFloorsAtZero(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	creator := seedUser(t, s, "c@example.com")
	ev := seedEvent(t, s, creator.ID, "Concert", time.Now())

	n, err := s.IncrementLiveCount(ctx, ev.ID, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = s.IncrementLiveCount(ctx, ev.ID, -1)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	n, err = s.IncrementLiveCount(ctx, ev.ID, -1)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	got, err := s.GetLiveCount(ctx, ev.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, got)
}

func TestLiveCountUnknownEvent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.GetLiveCount(ctx, "nope")
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.IncrementLiveCount(ctx, "nope", 1)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestIncrementLiveCountConcurrent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	creator := seedUser(t, s, "c@example.com")
	ev := seedEvent(t, s, creator.ID, "Concert", time.Now())

	const workers = 50
	var wg sync.WaitGroup
	wg.Add(workers)
	for range workers {
		go func() {
			defer wg.Done()
			_, err := s.IncrementLiveCount(ctx, ev.ID, 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := s.GetLiveCount(ctx, ev.ID)
	require.NoError(t, err)
	assert.EqualValues(t, workers, got)
}

func TestResetLiveCounts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	creator := seedUser(t, s, "c@example.com")
	a := seedEvent(t, s, creator.ID, "A", time.Now())
	b := seedEvent(t, s, creator.ID, "B", time.Now())
	seedEvent(t, s, creator.ID, "C", time.Now())

	_, err := s.IncrementLiveCount(ctx, a.ID, 3)
	require.NoError(t, err)
	_, err = s.IncrementLiveCount(ctx, b.ID, 1)
	require.NoError(t, err)

	n, err := s.ResetLiveCounts(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	got, err := s.GetLiveCount(ctx, a.ID)
	require.NoError(t, err)
	assert.Zero(t, got)
}

func TestEventCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	creator := seedUser(t, s, "c@example.com")
	day := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	ev := seedEvent(t, s, creator.ID, "Jazz night", day)
	assert.NotEmpty(t, ev.ID)
	assert.Zero(t, ev.LiveCount)

	title := "Jazz & blues night"
	category := store.CategoryArt
	updated, err := s.UpdateEvent(ctx, ev.ID, store.EventUpdate{Title: &title, Category: &category})
	require.NoError(t, err)
	assert.Equal(t, title, updated.Title)
	assert.Equal(t, store.CategoryArt, updated.Category)
	assert.Equal(t, "Hall A", updated.Location)
	assert.True(t, updated.Date.Equal(day))

	_, err = s.UpdateEvent(ctx, "missing", store.EventUpdate{Title: &title})
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.DeleteEvent(ctx, ev.ID))
	_, err = s.GetEvent(ctx, ev.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
	require.ErrorIs(t, s.DeleteEvent(ctx, ev.ID), store.ErrNotFound)
}

func TestListEventsOrderedByDateDesc(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	creator := seedUser(t, s, "c@example.com")
	other := seedUser(t, s, "o@example.com")

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	seedEvent(t, s, creator.ID, "first", base)
	seedEvent(t, s, creator.ID, "third", base.AddDate(0, 2, 0))
	seedEvent(t, s, other.ID, "second", base.AddDate(0, 1, 0))

	all, err := s.ListEvents(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"third", "second", "first"}, titles(all))

	created, err := s.ListEventsCreated(ctx, creator.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"third", "first"}, titles(created))
}

func TestRegistrations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	creator := seedUser(t, s, "c@example.com")
	attendee := seedUser(t, s, "a@example.com")
	ev := seedEvent(t, s, creator.ID, "Meetup", time.Now())

	require.NoError(t, s.AddRegistration(ctx, ev.ID, attendee.ID))
	require.ErrorIs(t, s.AddRegistration(ctx, ev.ID, attendee.ID), store.ErrConflict)
	require.ErrorIs(t, s.AddRegistration(ctx, "missing", attendee.ID), store.ErrNotFound)

	got, err := s.GetEvent(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{attendee.ID}, got.RegisteredUsers)
	assert.True(t, got.IsRegistered(attendee.ID))

	registered, err := s.ListEventsRegistered(ctx, attendee.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Meetup"}, titles(registered))

	require.NoError(t, s.RemoveRegistration(ctx, ev.ID, attendee.ID))
	require.ErrorIs(t, s.RemoveRegistration(ctx, ev.ID, attendee.ID), store.ErrNotFound)
}

func TestQuestionsAndAnswers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	creator := seedUser(t, s, "c@example.com")
	ev := seedEvent(t, s, creator.ID, "AMA", time.Now())

	q, err := s.AddQuestion(ctx, ev.ID, &store.Question{Text: "Parking?", AuthorID: "u1", AuthorName: "Ann"})
	require.NoError(t, err)
	assert.Empty(t, q.Answers)

	updated, err := s.AddAnswer(ctx, ev.ID, q.ID, &store.Answer{Text: "Yes", AuthorID: creator.ID, AuthorName: "Host"})
	require.NoError(t, err)
	require.Len(t, updated.Answers, 1)
	assert.Equal(t, "Yes", updated.Answers[0].Text)

	_, err = s.AddAnswer(ctx, ev.ID, "missing", &store.Answer{Text: "x"})
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.AddQuestion(ctx, "missing", &store.Question{Text: "x"})
	require.ErrorIs(t, err, store.ErrNotFound)

	got, err := s.GetEvent(ctx, ev.ID)
	require.NoError(t, err)
	require.Len(t, got.QnA, 1)
	assert.Equal(t, "Ann", got.QnA[0].AuthorName)
	require.Len(t, got.QnA[0].Answers, 1)
}

func titles(events []*store.Event) []string {
	out := make([]string, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Title)
	}
	return out
}
