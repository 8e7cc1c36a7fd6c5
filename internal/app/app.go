package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/eventlify-server/internal/auth"
	"github.com/vovakirdan/eventlify-server/internal/cache"
	"github.com/vovakirdan/eventlify-server/internal/config"
	"github.com/vovakirdan/eventlify-server/internal/core"
	"github.com/vovakirdan/eventlify-server/internal/live"
	applog "github.com/vovakirdan/eventlify-server/internal/log"
	"github.com/vovakirdan/eventlify-server/internal/mail"
	"github.com/vovakirdan/eventlify-server/internal/media"
	"github.com/vovakirdan/eventlify-server/internal/service/events"
	"github.com/vovakirdan/eventlify-server/internal/store"
	"github.com/vovakirdan/eventlify-server/internal/store/mongodb"
	"github.com/vovakirdan/eventlify-server/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/eventlify-server/internal/transport/http"
)

// mailer is an OTP mailer that holds resources.
type mailer interface {
	auth.OTPMailer
	io.Closer
}

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	resetOnStart    bool
	hub             *core.Hub
	live            *live.Service
	store           store.Store
	closers         []io.Closer
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	a := &App{
		shutdownTimeout: cfg.Server.ShutdownTimeout,
		resetOnStart:    cfg.Live.ResetOnStart,
		store:           st,
		log:             logger,
	}

	var eventCache cache.EventCache
	if cfg.Redis.Addr != "" {
		client, err := cache.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			a.cleanup()
			return nil, err
		}
		redisCache := cache.NewRedisEventCache(client, cfg.Redis.TTL)
		a.closers = append(a.closers, redisCache)
		eventCache = redisCache
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("event cache enabled")
	}

	otpMailer := newMailer(cfg, logger)
	a.closers = append(a.closers, otpMailer)

	storage, uploadsDir, err := newStorage(ctx, cfg)
	if err != nil {
		a.cleanup()
		return nil, err
	}
	uploader := media.NewUploader(storage, cfg.Media.MaxWidth, cfg.Media.MaxBytes, applog.Component(logger, "media"))

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(cfg.Auth.JWTSecret),
		Issuer:   cfg.Auth.JWTIssuer,
		Audience: cfg.Auth.JWTAudience,
		TTL:      cfg.Auth.TokenTTL,
	}
	authService := auth.NewService(st, st, otpMailer, jwtConfig, cfg.Auth.OTPTTL)
	eventService := events.New(st, eventCache, uploader, applog.Component(logger, "events"))

	a.hub = core.NewHub(applog.Component(logger, "hub"))
	a.live = live.NewService(a.hub, st, cfg.Live.OpTimeout, applog.Component(logger, "live"))

	a.server = transporthttp.NewServer(transporthttp.Services{
		Live:       a.live,
		Auth:       authService,
		Events:     eventService,
		UploadsDir: uploadsDir,
	}, cfg, logger)

	return a, nil
}

// OpenStore opens the configured store and applies migrations where the driver has them.
func OpenStore(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (store.Store, error) {
	switch cfg.Store.Driver {
	case "", "sqlite":
		st, err := sqlite.New(cfg.Store.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("init store: %w", err)
		}
		if err := st.Migrate(ctx, logger); err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("migrate store: %w", err)
		}
		logger.Info().Str("db_path", cfg.Store.SQLitePath).Msg("database initialized")
		return st, nil
	case "mongo", "mongodb":
		st, err := mongodb.New(ctx, cfg.Store.MongoURI, cfg.Store.MongoDatabase)
		if err != nil {
			return nil, fmt.Errorf("init store: %w", err)
		}
		logger.Info().Str("database", cfg.Store.MongoDatabase).Msg("mongodb connected")
		return st, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func newMailer(cfg *config.Config, logger *zerolog.Logger) mailer {
	l := applog.Component(logger, "mail")
	if len(cfg.Kafka.Brokers) == 0 {
		l.Warn().Msg("no kafka brokers configured, otp mails are only logged")
		return mail.NewLogMailer(l)
	}
	return mail.NewKafkaMailer(cfg.Kafka.Brokers, cfg.Kafka.OTPTopic, l)
}

// newStorage returns the cover storage and, for the local driver, the directory to serve.
func newStorage(ctx context.Context, cfg *config.Config) (media.Storage, string, error) {
	switch cfg.Media.Driver {
	case "", "local":
		local, err := media.NewLocalStorage(cfg.Media.LocalDir, cfg.Media.PublicURL)
		if err != nil {
			return nil, "", err
		}
		return local, local.Dir(), nil
	case "s3":
		s3cfg := cfg.Media.S3
		st, err := media.NewS3Storage(ctx, media.S3Config{
			Endpoint:        s3cfg.Endpoint,
			Region:          s3cfg.Region,
			Bucket:          s3cfg.Bucket,
			AccessKeyID:     s3cfg.AccessKeyID,
			SecretAccessKey: s3cfg.SecretAccessKey,
			UsePathStyle:    s3cfg.UsePathStyle,
			PublicURL:       s3cfg.PublicURL,
		})
		if err != nil {
			return nil, "", err
		}
		return st, "", nil
	default:
		return nil, "", fmt.Errorf("unknown media driver %q", cfg.Media.Driver)
	}
}

// Handler exposes the HTTP handler, mainly for tests.
func (a *App) Handler() stdhttp.Handler {
	return a.server.Handler
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	if a.resetOnStart {
		n, err := a.live.ResetCounts(ctx)
		if err != nil {
			a.cleanup()
			return fmt.Errorf("reset live counts: %w", err)
		}
		a.log.Info().Int64("events", n).Msg("reset stale live counts")
	}

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go a.hub.Run(hubCtx)

	serverErr := make(chan error, 1)
	go func() {
		a.log.Info().Str("addr", a.server.Addr).Msg("http server listening")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		stopHub()
		<-a.hub.Done()
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		// Stopping the hub closes every client queue so open sockets are closed.
		// Their memberships are not persisted; the next startup reset clears the counts.
		stopHub()
		err := a.server.Shutdown(shutdownCtx)
		<-a.hub.Done()
		a.cleanup()
		if err != nil {
			return err
		}
		return <-serverErr
	}
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close resource")
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
