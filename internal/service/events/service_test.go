package events

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/eventlify-server/internal/cache"
	"github.com/vovakirdan/eventlify-server/internal/media"
	"github.com/vovakirdan/eventlify-server/internal/store"
	"github.com/vovakirdan/eventlify-server/internal/store/sqlite"
)

type fixture struct {
	svc   *Service
	st    *sqlite.SQLiteStore
	mr    *miniredis.Miniredis
	media *media.LocalStorage
	host  *store.User
	guest *store.User
	ctx   context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	st, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(ctx, nil))

	mr := miniredis.RunT(t)
	client, err := cache.Connect(ctx, mr.Addr(), "", 0)
	require.NoError(t, err)
	eventCache := cache.NewRedisEventCache(client, time.Minute)
	t.Cleanup(func() { _ = eventCache.Close() })

	local, err := media.NewLocalStorage(t.TempDir(), "/uploads")
	require.NoError(t, err)

	host, err := st.CreateUser(ctx, "Host", "host@example.com", "hash")
	require.NoError(t, err)
	guest, err := st.CreateUser(ctx, "Guest", "guest@example.com", "hash")
	require.NoError(t, err)

	return &fixture{
		svc:   New(st, eventCache, media.NewUploader(local, 200, 0, nil), nil),
		st:    st,
		mr:    mr,
		media: local,
		host:  host,
		guest: guest,
		ctx:   ctx,
	}
}

func (f *fixture) create(t *testing.T, title string) *store.Event {
	t.Helper()
	ev, err := f.svc.Create(f.ctx, f.host.ID, Input{
		Title:    title,
		Date:     time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		Category: store.CategoryMusic,
	}, nil)
	require.NoError(t, err)
	return ev
}

func coverPNG(t *testing.T) *bytes.Reader {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 20, 10))))
	return bytes.NewReader(buf.Bytes())
}

func TestCreateValidates(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(f.ctx, f.host.ID, Input{Date: time.Now()}, nil)
	assert.ErrorIs(t, err, ErrInvalidEvent)

	_, err = f.svc.Create(f.ctx, f.host.ID, Input{Title: "x", Date: time.Now(), Category: "Nope"}, nil)
	assert.ErrorIs(t, err, ErrInvalidEvent)

	ev, err := f.svc.Create(f.ctx, f.host.ID, Input{Title: " Show ", Date: time.Now()}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Show", ev.Title)
	assert.Equal(t, store.CategoryOther, ev.Category)
}

func TestGetReadsThroughCacheWithFreshLiveCount(t *testing.T) {
	f := newFixture(t)
	ev := f.create(t, "Gig")

	got, err := f.svc.Get(f.ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, "Gig", got.Title)
	assert.True(t, f.mr.Exists("event:"+ev.ID))

	_, err = f.st.IncrementLiveCount(f.ctx, ev.ID, 4)
	require.NoError(t, err)

	got, err = f.svc.Get(f.ctx, ev.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 4, got.LiveCount)

	_, err = f.svc.Get(f.ctx, "missing")
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestConcurrentGetsOnColdCache(t *testing.T) {
	f := newFixture(t)
	ev := f.create(t, "Rush")

	var wg sync.WaitGroup
	titles := make([]string, 8)
	errs := make([]error, 8)
	for i := range titles {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, err := f.svc.Get(f.ctx, ev.ID)
			errs[i] = err
			if err == nil {
				titles[i] = got.Title
			}
		}(i)
	}
	wg.Wait()

	for i := range titles {
		require.NoError(t, errs[i])
		assert.Equal(t, "Rush", titles[i])
	}
	assert.True(t, f.mr.Exists("event:"+ev.ID))
}

func TestGetSharedLoadIgnoresCallerCancellation(t *testing.T) {
	f := newFixture(t)
	ev := f.create(t, "Detached")

	ctx, cancel := context.WithCancel(f.ctx)
	cancel()

	got, err := f.svc.Get(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, "Detached", got.Title)
	assert.True(t, f.mr.Exists("event:"+ev.ID))
}

func TestUpdateAndDeleteRequireCreator(t *testing.T) {
	f := newFixture(t)
	ev := f.create(t, "Gig")

	title := "Renamed"
	_, err := f.svc.Update(f.ctx, f.guest.ID, ev.ID, store.EventUpdate{Title: &title}, nil)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.ErrorIs(t, f.svc.Delete(f.ctx, f.guest.ID, ev.ID), ErrForbidden)

	_, err = f.svc.Get(f.ctx, ev.ID)
	require.NoError(t, err)

	updated, err := f.svc.Update(f.ctx, f.host.ID, ev.ID, store.EventUpdate{Title: &title}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Title)
	assert.False(t, f.mr.Exists("event:"+ev.ID), "update must invalidate the cache")

	require.NoError(t, f.svc.Delete(f.ctx, f.host.ID, ev.ID))
	_, err = f.svc.Get(f.ctx, ev.ID)
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestUpdateReplacesCover(t *testing.T) {
	f := newFixture(t)
	ev, err := f.svc.Create(f.ctx, f.host.ID, Input{Title: "Art", Date: time.Now()}, coverPNG(t))
	require.NoError(t, err)
	require.NotEmpty(t, ev.CoverImage)

	oldKey, ok := f.media.Key(ev.CoverImage)
	require.True(t, ok)

	updated, err := f.svc.Update(f.ctx, f.host.ID, ev.ID, store.EventUpdate{}, coverPNG(t))
	require.NoError(t, err)
	assert.NotEqual(t, ev.CoverImage, updated.CoverImage)

	_, err = os.Stat(filepath.Join(f.media.Dir(), oldKey))
	assert.True(t, os.IsNotExist(err), "old cover should be deleted")
}

func TestRegisterRules(t *testing.T) {
	f := newFixture(t)
	ev := f.create(t, "Gig")

	assert.ErrorIs(t, f.svc.Register(f.ctx, f.host.ID, ev.ID), ErrCreatorRegistration)
	require.NoError(t, f.svc.Register(f.ctx, f.guest.ID, ev.ID))
	assert.ErrorIs(t, f.svc.Register(f.ctx, f.guest.ID, ev.ID), ErrAlreadyRegistered)
	assert.ErrorIs(t, f.svc.Register(f.ctx, f.guest.ID, "missing"), ErrEventNotFound)

	registered, err := f.svc.Registered(f.ctx, f.guest.ID)
	require.NoError(t, err)
	require.Len(t, registered, 1)
	assert.Equal(t, ev.ID, registered[0].ID)

	created, err := f.svc.Created(f.ctx, f.host.ID)
	require.NoError(t, err)
	assert.Len(t, created, 1)

	require.NoError(t, f.svc.Unregister(f.ctx, f.guest.ID, ev.ID))
	assert.ErrorIs(t, f.svc.Unregister(f.ctx, f.guest.ID, ev.ID), ErrNotRegistered)
}

func TestQuestionsAndAnswers(t *testing.T) {
	f := newFixture(t)
	ev := f.create(t, "Talk")

	_, err := f.svc.AskQuestion(f.ctx, f.guest.ID, ev.ID, "  ")
	assert.ErrorIs(t, err, ErrEmptyText)

	q, err := f.svc.AskQuestion(f.ctx, f.guest.ID, ev.ID, "When does it start?")
	require.NoError(t, err)
	assert.Equal(t, "Guest", q.AuthorName)

	answered, err := f.svc.Answer(f.ctx, f.host.ID, ev.ID, q.ID, "At six.")
	require.NoError(t, err)
	require.Len(t, answered.Answers, 1)
	assert.Equal(t, "Host", answered.Answers[0].AuthorName)

	_, err = f.svc.Answer(f.ctx, f.host.ID, ev.ID, "missing", "x")
	assert.ErrorIs(t, err, ErrQuestionNotFound)

	_, err = f.svc.AskQuestion(f.ctx, f.guest.ID, "missing", "x")
	assert.ErrorIs(t, err, ErrEventNotFound)

	got, err := f.svc.Get(f.ctx, ev.ID)
	require.NoError(t, err)
	require.Len(t, got.QnA, 1)
	assert.Len(t, got.QnA[0].Answers, 1)
}

func TestServiceWorksWithoutCacheOrCovers(t *testing.T) {
	f := newFixture(t)
	svc := New(f.st, nil, nil, nil)

	ev, err := svc.Create(f.ctx, f.host.ID, Input{Title: "Plain", Date: time.Now()}, coverPNG(t))
	require.NoError(t, err)
	assert.Empty(t, ev.CoverImage)

	got, err := svc.Get(f.ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, "Plain", got.Title)
}
