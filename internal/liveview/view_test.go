package liveview

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/eventlify-server/internal/config"
	"github.com/vovakirdan/eventlify-server/internal/core"
	"github.com/vovakirdan/eventlify-server/internal/live"
	"github.com/vovakirdan/eventlify-server/internal/store"
	"github.com/vovakirdan/eventlify-server/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/eventlify-server/internal/transport/http"
)

type liveServer struct {
	url   string
	store *sqlite.SQLiteStore
}

func startLiveServer(t *testing.T) *liveServer {
	t.Helper()

	st, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background(), nil))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := core.NewHub(nil)
	go hub.Run(ctx)

	cfg := config.Default()
	server := transporthttp.NewServer(transporthttp.Services{
		Live: live.NewService(hub, st, time.Second, nil),
	}, &cfg, nil)

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &liveServer{url: strings.Replace(ts.URL, "http", "ws", 1) + "/ws", store: st}
}

func (s *liveServer) event(t *testing.T, title string) string {
	t.Helper()
	ctx := context.Background()
	user, err := s.store.GetUserByEmail(ctx, "host@example.com")
	if err != nil {
		user, err = s.store.CreateUser(ctx, "Host", "host@example.com", "hash")
		require.NoError(t, err)
	}
	ev, err := s.store.CreateEvent(ctx, &store.Event{Title: title, Date: time.Now(), CreatorID: user.ID})
	require.NoError(t, err)
	return ev.ID
}

func dialT(t *testing.T, s *liveServer) *Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := Dial(ctx, s.url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func eventually(t *testing.T, want int64, got func() int64) {
	t.Helper()
	require.Eventually(t, func() bool { return got() == want }, 3*time.Second, 10*time.Millisecond,
		"count never reached %d", want)
}

func TestViewScenario(t *testing.T) {
	s := startLiveServer(t)
	eventID := s.event(t, "Gig")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	x := NewView(dialT(t, s), eventID, nil)
	y := NewView(dialT(t, s), eventID, nil)
	require.NoError(t, x.Mount(ctx))
	require.NoError(t, y.Mount(ctx))
	assert.Zero(t, x.Count())

	require.NoError(t, x.Enter(ctx))
	eventually(t, 1, y.Count)

	require.NoError(t, y.Enter(ctx))
	eventually(t, 2, x.Count)

	require.NoError(t, x.Exit(ctx))
	assert.False(t, x.Joined())
	eventually(t, 1, y.Count)

	require.NoError(t, y.Unmount(ctx))
	eventually(t, 0, x.Count)
	assert.False(t, y.Joined())
}

func TestViewIgnoresOtherEvents(t *testing.T) {
	s := startLiveServer(t)
	a := s.event(t, "A")
	b := s.event(t, "B")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dialT(t, s)
	var mu sync.Mutex
	var rendered []int64
	viewA := NewView(conn, a, func(n int64) {
		mu.Lock()
		rendered = append(rendered, n)
		mu.Unlock()
	})
	viewB := NewView(conn, b, nil)
	require.NoError(t, viewA.Mount(ctx))
	require.NoError(t, viewB.Mount(ctx))

	require.NoError(t, viewB.Enter(ctx))
	eventually(t, 1, viewB.Count)
	assert.Zero(t, viewA.Count())

	mu.Lock()
	assert.Equal(t, []int64{0}, rendered)
	mu.Unlock()
}

func TestUnmountedViewStopsListening(t *testing.T) {
	s := startLiveServer(t)
	eventID := s.event(t, "Gig")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	watcher := NewView(dialT(t, s), eventID, nil)
	require.NoError(t, watcher.Mount(ctx))
	require.NoError(t, watcher.Unmount(ctx))

	other := NewView(dialT(t, s), eventID, nil)
	require.NoError(t, other.Mount(ctx))
	require.NoError(t, other.Enter(ctx))
	eventually(t, 1, other.Count)

	assert.Zero(t, watcher.Count())
}

func TestCloseReleasesRooms(t *testing.T) {
	s := startLiveServer(t)
	eventID := s.event(t, "Gig")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	observer := NewView(dialT(t, s), eventID, nil)
	require.NoError(t, observer.Mount(ctx))

	conn, err := Dial(ctx, s.url)
	require.NoError(t, err)
	leaver := NewView(conn, eventID, nil)
	require.NoError(t, leaver.Mount(ctx))
	require.NoError(t, leaver.Enter(ctx))
	eventually(t, 1, observer.Count)

	_ = conn.Close()
	eventually(t, 0, observer.Count)

	_, err = conn.Subscribe(ctx, eventID)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSubscribeUnknownEventReadsZero(t *testing.T) {
	s := startLiveServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	n, err := dialT(t, s).Subscribe(ctx, "missing")
	require.NoError(t, err)
	assert.Zero(t, n)
}
