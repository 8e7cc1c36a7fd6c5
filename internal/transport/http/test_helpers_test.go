package http

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/eventlify-server/internal/auth"
	"github.com/vovakirdan/eventlify-server/internal/config"
	"github.com/vovakirdan/eventlify-server/internal/core"
	"github.com/vovakirdan/eventlify-server/internal/live"
	"github.com/vovakirdan/eventlify-server/internal/service/events"
	"github.com/vovakirdan/eventlify-server/internal/store"
	"github.com/vovakirdan/eventlify-server/internal/store/sqlite"
)

type capturedOTPs struct {
	mu   sync.Mutex
	otps map[string]string
}

func (m *capturedOTPs) SendOTP(_ context.Context, email, _, otp string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.otps[email] = otp
	return nil
}

func (m *capturedOTPs) get(email string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.otps[email]
}

type testEnv struct {
	ts     *httptest.Server
	store  *sqlite.SQLiteStore
	hub    *core.Hub
	mailer *capturedOTPs
	cfg    config.Config
}

// startTestServer wires the full HTTP stack over an in-memory SQLite store.
func startTestServer(t *testing.T, mutate ...func(*config.Config)) *testEnv {
	t.Helper()

	cfg := config.Default()
	cfg.Server.AuthRatePerSec = 0
	for _, m := range mutate {
		m(&cfg)
	}

	st, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background(), nil))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := core.NewHub(nil)
	go hub.Run(ctx)

	mailer := &capturedOTPs{otps: make(map[string]string)}
	jwtConfig := &auth.JWTConfig{
		Secret:   []byte("test-secret"),
		Issuer:   cfg.Auth.JWTIssuer,
		Audience: cfg.Auth.JWTAudience,
		TTL:      time.Hour,
	}

	server := NewServer(Services{
		Live:   live.NewService(hub, st, time.Second, nil),
		Auth:   auth.NewService(st, st, mailer, jwtConfig, time.Minute),
		Events: events.New(st, nil, nil, nil),
	}, &cfg, nil)

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{ts: ts, store: st, hub: hub, mailer: mailer, cfg: cfg}
}

func (e *testEnv) wsURL() string {
	return strings.Replace(e.ts.URL, "http", "ws", 1) + "/ws"
}

func (e *testEnv) seedEvent(t *testing.T, title string) *store.Event {
	t.Helper()
	ctx := context.Background()
	user, err := e.store.GetUserByEmail(ctx, "seed@example.com")
	if err != nil {
		user, err = e.store.CreateUser(ctx, "Seed", "seed@example.com", "hash")
		require.NoError(t, err)
	}
	ev, err := e.store.CreateEvent(ctx, &store.Event{
		Title:     title,
		Date:      time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
		Category:  store.CategoryMusic,
		CreatorID: user.ID,
	})
	require.NoError(t, err)
	return ev
}
