package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/voicelink/internal/auth"
	"github.com/vovakirdan/voicelink/internal/config"
	"github.com/vovakirdan/voicelink/internal/core"
	"github.com/vovakirdan/voicelink/internal/metrics"
	"github.com/vovakirdan/voicelink/internal/store"
)

// Provider translates text and transcribes audio.
type Provider interface {
	Translate(ctx context.Context, text, sourceLanguage, targetLanguage string) (string, error)
	Transcribe(ctx context.Context, audio []byte, filename, language string) (string, error)
}

// Deps are the collaborators the HTTP layer serves. Metrics and Provider may be nil.
type Deps struct {
	Rooms    *core.Store
	Auth     *auth.Service
	Store    store.Store
	Provider Provider
	Metrics  *metrics.Metrics
}

// NewServer builds the HTTP server.
func NewServer(deps Deps, cfg *config.Config, logger *zerolog.Logger) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           NewRouter(deps, cfg, logger),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

// NewRouter registers all routes on a new gin engine.
func NewRouter(deps Deps, cfg *config.Config, logger *zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(logger))
	if deps.Metrics != nil {
		r.Use(deps.Metrics.GinMiddleware())
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	r.GET("/health", healthHandler(deps.Rooms))

	roomHandlers := NewRoomHandlers(deps.Rooms, deps.Auth, cfg.RateLimit, logger)
	accountHandlers := NewAccountHandlers(deps.Auth, logger)
	userHandlers := NewUserHandlers(deps.Auth, logger)
	adHandlers := NewAdHandlers(deps.Store, logger)
	providerHandlers := NewProviderHandlers(deps.Provider, deps.Metrics, logger)

	api := r.Group("/api")
	api.POST("/rooms", OptionalAuthMiddleware(deps.Auth, logger), roomHandlers.Handle)

	limited := api.Group("", RateLimitMiddleware(cfg.RateLimit))
	{
		limited.POST("/register", accountHandlers.Register)
		limited.POST("/login", accountHandlers.Login)
		limited.POST("/guest", accountHandlers.GuestLogin)
		limited.GET("/identity", OptionalAuthMiddleware(deps.Auth, logger), userHandlers.Identity)

		limited.GET("/ads", adHandlers.ListActive)
		limited.POST("/translate", providerHandlers.Translate)
		limited.POST("/transcribe", providerHandlers.Transcribe)

		authed := limited.Group("", AuthMiddleware(deps.Auth, logger))
		authed.GET("/profile", userHandlers.GetProfile)
		authed.PATCH("/profile", userHandlers.UpdateProfile)

		admin := limited.Group("/admin", AuthMiddleware(deps.Auth, logger), AdminOnlyMiddleware(deps.Auth, logger))
		admin.POST("/ads", adHandlers.Create)
		admin.PUT("/ads/:id", adHandlers.Update)
		admin.PATCH("/ads/:id/active", adHandlers.SetActive)
		admin.DELETE("/ads/:id", adHandlers.Delete)
	}

	return r
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status       string `json:"status"`
	Rooms        int    `json:"rooms"`
	Participants int    `json:"participants"`
}

func healthHandler(rooms *core.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		st := rooms.Stats()
		c.JSON(http.StatusOK, HealthResponse{Status: "ok", Rooms: st.Rooms, Participants: st.Participants})
	}
}
