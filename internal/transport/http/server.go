package http

import (
	stdhttp "net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/eventlify-server/internal/auth"
	"github.com/vovakirdan/eventlify-server/internal/config"
	"github.com/vovakirdan/eventlify-server/internal/live"
	"github.com/vovakirdan/eventlify-server/internal/metrics"
	"github.com/vovakirdan/eventlify-server/internal/service/events"
)

// Services are the application services the HTTP layer routes to.
type Services struct {
	Live   *live.Service
	Auth   *auth.Service
	Events *events.Service
	// UploadsDir is served under the media public URL when set.
	UploadsDir string
}

// NewServer builds the HTTP server with REST, websocket and operational routes.
func NewServer(svc Services, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))
	router.Use(MetricsMiddleware())

	router.GET("/health", healthHandler)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	router.GET("/ws", gin.WrapH(NewWSHandler(svc.Live, cfg.Live, originPatterns(cfg.Server.AllowedOrigins), logger)))
	if svc.UploadsDir != "" && cfg.Media.PublicURL != "" {
		router.Static(cfg.Media.PublicURL, svc.UploadsDir)
	}

	if svc.Auth != nil && svc.Events != nil {
		registerAPIRoutes(router, svc, cfg, logger)
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{stdhttp.MethodGet, stdhttp.MethodPost, stdhttp.MethodPut, stdhttp.MethodDelete, stdhttp.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	return &stdhttp.Server{
		Addr:              cfg.Server.Addr,
		Handler:           c.Handler(router),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}
}

func registerAPIRoutes(router *gin.Engine, svc Services, cfg *config.Config, logger *zerolog.Logger) {
	apiHandlers := NewAPIHandlers(svc.Auth, cfg.Auth, logger)
	userHandlers := NewUserHandlers(svc.Events, logger)
	eventHandlers := NewEventHandlers(svc.Events, logger)
	requireAuth := AuthMiddleware(svc.Auth, cfg.Auth.CookieName, logger)

	users := router.Group("/api/users")
	{
		limited := users.Group("", RateLimitMiddleware(cfg.Server.AuthRatePerSec, cfg.Server.AuthBurst))
		limited.POST("/signup", apiHandlers.Signup)
		limited.POST("/verify-otp", apiHandlers.VerifyOTP)
		limited.POST("/login", apiHandlers.Login)

		authed := users.Group("", requireAuth)
		authed.GET("/auth-status", apiHandlers.AuthStatus)
		authed.POST("/logout", apiHandlers.Logout)
		authed.GET("/events-registered", userHandlers.EventsRegistered)
		authed.GET("/events-created", userHandlers.EventsCreated)
	}

	eventsGroup := router.Group("/api/events")
	{
		eventsGroup.GET("", eventHandlers.ListEvents)
		eventsGroup.GET("/:id", eventHandlers.GetEvent)

		authed := eventsGroup.Group("", requireAuth)
		authed.POST("", eventHandlers.CreateEvent)
		authed.PUT("/:id", eventHandlers.UpdateEvent)
		authed.DELETE("/:id", eventHandlers.DeleteEvent)
		authed.POST("/:id/register", eventHandlers.Register)
		authed.POST("/:id/unregister", eventHandlers.Unregister)
		authed.POST("/:id/questions", eventHandlers.AddQuestion)
		authed.POST("/:id/questions/:questionId/answers", eventHandlers.AddAnswer)
	}
}

// originPatterns turns CORS origins into websocket origin host patterns.
func originPatterns(origins []string) []string {
	patterns := make([]string, 0, len(origins))
	for _, o := range origins {
		if o == "*" {
			return []string{"*"}
		}
		u, err := url.Parse(o)
		if err != nil || u.Host == "" {
			continue
		}
		patterns = append(patterns, u.Host)
	}
	return patterns
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
