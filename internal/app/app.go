package app

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vovakirdan/voicelink/internal/auth"
	"github.com/vovakirdan/voicelink/internal/config"
	"github.com/vovakirdan/voicelink/internal/core"
	"github.com/vovakirdan/voicelink/internal/metrics"
	"github.com/vovakirdan/voicelink/internal/provider"
	"github.com/vovakirdan/voicelink/internal/store"
	"github.com/vovakirdan/voicelink/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/voicelink/internal/transport/http"
)

// App wires together storage, the room registry and the HTTP transport.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	rooms           *core.Store
	sweeper         *core.Sweeper
	store           store.Store
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	authService := auth.NewService(st, &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.JWTTTL,
	})

	m := metrics.New()
	rooms, err := core.NewStore(core.Options{
		MaxMessages:     cfg.Rooms.MaxMessages,
		MaxMessageChars: cfg.Rooms.MaxMessageChars,
		IdleTTL:         cfg.Rooms.IdleTTL,
		Shards:          cfg.Rooms.Shards,
		Hasher:          auth.NewBcryptHasher(0),
		Observer:        m,
		Logger:          logger,
	})
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("init rooms: %w", err)
	}

	deps := transporthttp.Deps{
		Rooms:   rooms,
		Auth:    authService,
		Store:   st,
		Metrics: m,
	}
	client := provider.New(provider.Options{
		BaseURL:         cfg.Provider.BaseURL,
		APIKey:          cfg.Provider.APIKey,
		TranslateModel:  cfg.Provider.TranslateModel,
		TranscribeModel: cfg.Provider.TranscribeModel,
		Timeout:         cfg.Provider.Timeout,
		MaxAttempts:     cfg.Provider.MaxAttempts,
		Logger:          logger,
	})
	if client.Configured() {
		deps.Provider = client
	} else {
		logger.Warn().Msg("provider api key not set; translate and transcribe are disabled")
	}

	return &App{
		server:          transporthttp.NewServer(deps, cfg, logger),
		shutdownTimeout: cfg.ShutdownTimeout,
		rooms:           rooms,
		sweeper:         core.NewSweeper(rooms, cfg.Rooms.SweepInterval, logger),
		store:           st,
		log:             logger,
	}, nil
}

// Run starts the HTTP server and the room sweeper and blocks until ctx is
// cancelled or either of them fails.
func (a *App) Run(ctx context.Context) error {
	defer a.cleanup()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.sweeper.Run(gctx)
	})

	g.Go(func() error {
		a.log.Info().Str("addr", a.server.Addr).Msg("http server listening")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		return a.server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	a.log.Info().Int("rooms", a.rooms.Len()).Msg("dropping in-memory rooms")
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
