// Package app wires all Verbascape subsystems into a running server.
//
// The App struct owns the full lifecycle: New connects configuration,
// providers, and the session manager; Run serves the HTTP API until the
// context is cancelled and then tears everything down in order.
//
// For testing, inject fake audio adapters via functional options
// (WithDevice, WithOutput, WithClock). When an option is not provided, New
// falls back to the nullio adapters so the server runs headless.
package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/verbascape/verbascape/internal/config"
	"github.com/verbascape/verbascape/internal/health"
	"github.com/verbascape/verbascape/internal/observe"
	"github.com/verbascape/verbascape/pkg/audio/capture"
	"github.com/verbascape/verbascape/pkg/audio/nullio"
	"github.com/verbascape/verbascape/pkg/audio/playback"
	"github.com/verbascape/verbascape/pkg/provider/image"
	"github.com/verbascape/verbascape/pkg/provider/live"
)

// shutdownTimeout bounds the HTTP server drain during shutdown.
const shutdownTimeout = 10 * time.Second

// Tutor persona used when the config leaves tutor.instructions or tutor.voice
// empty.
const (
	defaultInstructions = "You are a friendly and helpful English tutor. " +
		"You help the student describe the scene they are looking at in VR. " +
		"Correct their pronunciation and grammar gently. " +
		"Focus on immersive practice."
	defaultVoice = "Zephyr"
)

// Providers holds one interface value per provider slot. Nil means the
// provider is not configured. Populated by main.go via the config registry.
type Providers struct {
	Live  live.Provider
	Image image.Provider
}

// App owns all subsystem lifetimes and serves the Verbascape HTTP API.
type App struct {
	cfg       *config.Config
	providers *Providers

	sessions *SessionManager
	scenes   *sceneStore
	metrics  *observe.Metrics
	health   *health.Handler
	srv      *http.Server

	imageProvName string

	device capture.Device
	output playback.Output
	clock  playback.Clock
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithDevice injects a capture device instead of the null adapter.
func WithDevice(d capture.Device) Option {
	return func(a *App) { a.device = d }
}

// WithOutput injects a playback output instead of the null adapter.
func WithOutput(o playback.Output) Option {
	return func(a *App) { a.output = o }
}

// WithClock injects a playback clock instead of the null adapter's.
func WithClock(c playback.Clock) Option {
	return func(a *App) { a.clock = c }
}

// WithMetrics injects a metrics instance instead of the process default.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry).
func New(cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	a := &App{
		cfg:           cfg,
		providers:     providers,
		scenes:        &sceneStore{},
		imageProvName: cfg.Providers.Image.Name,
	}
	for _, o := range opts {
		o(a)
	}

	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if a.clock == nil {
		a.clock = nullio.NewClock()
	}
	if a.device == nil {
		a.device = &nullio.Device{}
	}
	if a.output == nil {
		a.output = nullio.NewOutput(a.clock)
	}

	instructions := cfg.Tutor.Instructions
	if instructions == "" {
		instructions = defaultInstructions
	}
	voice := cfg.Tutor.Voice
	if voice == "" {
		voice = defaultVoice
	}

	a.sessions = NewSessionManager(SessionManagerConfig{
		Provider:     providers.Live,
		ProviderName: cfg.Providers.Live.Name,
		Live: live.SessionConfig{
			Voice:        voice,
			Instructions: instructions,
		},
		Device:    a.device,
		Output:    a.output,
		Clock:     a.clock,
		BlockSize: cfg.Audio.BlockSize,
		Metrics:   a.metrics,
	})

	a.health = health.New(health.Checker{
		Name: "live_provider",
		Check: func(context.Context) error {
			if providers.Live == nil {
				return errors.New("not configured")
			}
			return nil
		},
	})

	addr := cfg.Server.ListenAddr
	if addr == "" {
		addr = ":8080"
	}
	a.srv = &http.Server{
		Addr:              addr,
		Handler:           a.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	return a, nil
}

// Run serves the HTTP API and blocks until ctx is cancelled or the server
// fails. On cancellation it drains in-flight requests and closes any live
// session before returning.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("http server listening", "addr", a.srv.Addr, "tls", a.cfg.Server.TLS != nil)
		var err error
		if tls := a.cfg.Server.TLS; tls != nil {
			err = a.srv.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = a.srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("http shutdown error", "err", err)
		}

		a.sessions.Close()
		return nil
	})

	// Generate the configured default backdrop in the background so the
	// first GET /v1/scene has something to return.
	if a.cfg.Tutor.Scene != "" && a.providers.Image != nil {
		go a.generateInitialScene(gctx)
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Sessions exposes the session manager, mainly for tests.
func (a *App) Sessions() *SessionManager { return a.sessions }

// generateInitialScene renders the config-declared default scene. Failures
// are logged, not fatal: the learner can still request a scene explicitly.
func (a *App) generateInitialScene(ctx context.Context) {
	start := time.Now()
	pano, err := a.providers.Image.GeneratePanorama(ctx, a.cfg.Tutor.Scene)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		a.metrics.RecordSceneGeneration(ctx, elapsed, a.imageProvName, "error")
		slog.Warn("initial scene generation failed", "scene", a.cfg.Tutor.Scene, "err", err)
		return
	}
	a.metrics.RecordSceneGeneration(ctx, elapsed, a.imageProvName, "ok")

	// Do not clobber a scene the learner generated while we were working.
	if _, ok := a.scenes.Get(); ok {
		return
	}
	a.scenes.Set(Scene{
		Description: a.cfg.Tutor.Scene,
		Panorama:    pano,
		GeneratedAt: time.Now().UTC(),
	})
	slog.Info("initial scene ready", "scene", a.cfg.Tutor.Scene)
}
