// Package app wires all Hearth subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run executes the voice loop and the timer announcer, and
// Shutdown tears everything down in order.
//
// For testing, inject mock implementations via functional options
// (WithHistoryStore, WithTimerStore, etc.). When an option is not provided,
// New creates real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/oakmund/hearth/internal/announce"
	"github.com/oakmund/hearth/internal/capability"
	"github.com/oakmund/hearth/internal/capability/builtin"
	"github.com/oakmund/hearth/internal/config"
	"github.com/oakmund/hearth/internal/health"
	"github.com/oakmund/hearth/internal/observe"
	"github.com/oakmund/hearth/internal/orchestrator"
	"github.com/oakmund/hearth/internal/turn"
	"github.com/oakmund/hearth/pkg/audio"
	"github.com/oakmund/hearth/pkg/endpoint"
	"github.com/oakmund/hearth/pkg/provider/chat"
	"github.com/oakmund/hearth/pkg/provider/stt"
	"github.com/oakmund/hearth/pkg/provider/tts"
	"github.com/oakmund/hearth/pkg/store/history"
	historymem "github.com/oakmund/hearth/pkg/store/history/memstore"
	historypg "github.com/oakmund/hearth/pkg/store/history/postgres"
	"github.com/oakmund/hearth/pkg/store/timers"
	timersmem "github.com/oakmund/hearth/pkg/store/timers/memstore"
	timerspg "github.com/oakmund/hearth/pkg/store/timers/postgres"
	"github.com/oakmund/hearth/pkg/vad"
	"github.com/oakmund/hearth/pkg/wake"
)

// Providers holds one interface value per provider slot. Populated by
// main.go via the config registry. Device is the hardware boundary; nil is
// only acceptable for text-only runs.
type Providers struct {
	Chat   chat.Provider
	STT    stt.Provider
	TTS    tts.Provider
	Wake   wake.Scorer
	VAD    vad.Classifier
	Device audio.Device
}

// App owns all subsystem lifetimes and orchestrates the Hearth pipeline.
type App struct {
	cfg       *config.Config
	providers *Providers

	logger  *slog.Logger
	metrics *observe.Metrics

	// Subsystems — initialised in New, torn down in Shutdown.
	history     history.Store
	timers      timers.Store
	catalog     *capability.Catalog
	importer    *capability.MCPImporter
	channel     *audio.Channel
	output      *audio.Output
	orch        *orchestrator.Orchestrator
	coordinator *turn.Coordinator
	announcer   *announce.Announcer
	metricsSrv  *http.Server

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithHistoryStore injects a history store instead of creating one from config.
func WithHistoryStore(s history.Store) Option {
	return func(a *App) { a.history = s }
}

// WithTimerStore injects a timer store instead of creating one from config.
func WithTimerStore(s timers.Store) Option {
	return func(a *App) { a.timers = s }
}

// WithLogger attaches a logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(a *App) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithMetrics attaches the metrics instance. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) {
		if m != nil {
			a.metrics = m
		}
	}
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry). Use Option
// functions to inject test doubles for any subsystem.
//
// New performs all initialisation synchronously: store connection,
// capability registration, MCP server import, and pipeline assembly. The
// capture device is not opened until Run.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	a := &App{
		cfg:       cfg,
		providers: providers,
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── 1. Stores ────────────────────────────────────────────────────────
	if err := a.initStores(ctx); err != nil {
		return nil, fmt.Errorf("app: init stores: %w", err)
	}

	// ── 2. Capability catalog + MCP ──────────────────────────────────────
	if err := a.initCatalog(ctx); err != nil {
		return nil, fmt.Errorf("app: init capabilities: %w", err)
	}

	// ── 3. Orchestrator ──────────────────────────────────────────────────
	a.orch = orchestrator.New(providers.Chat, a.catalog,
		orchestrator.WithLogger(a.logger))

	// ── 4. Audio + turn pipeline ─────────────────────────────────────────
	if providers.Device != nil {
		a.initPipeline()
	}

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initStores connects the history and timer stores, preferring injected
// doubles, then PostgreSQL, then memory.
func (a *App) initStores(ctx context.Context) error {
	dsn := a.cfg.Stores.PostgresDSN
	keep := a.cfg.Stores.HistoryKeep

	if a.history == nil {
		if dsn != "" {
			var hOpts []historypg.Option
			if keep > 0 {
				hOpts = append(hOpts, historypg.WithKeep(keep))
			}
			store, err := historypg.NewStore(ctx, dsn, hOpts...)
			if err != nil {
				return fmt.Errorf("history store: %w", err)
			}
			a.history = store
			a.closers = append(a.closers, func() error {
				store.Close()
				return nil
			})
		} else {
			var hOpts []historymem.Option
			if keep > 0 {
				hOpts = append(hOpts, historymem.WithKeep(keep))
			}
			a.history = historymem.New(hOpts...)
		}
	}

	if a.timers == nil {
		if dsn != "" {
			store, err := timerspg.NewStore(ctx, dsn)
			if err != nil {
				return fmt.Errorf("timer store: %w", err)
			}
			a.timers = store
			a.closers = append(a.closers, func() error {
				store.Close()
				return nil
			})
		} else {
			a.timers = timersmem.New()
		}
	}

	return nil
}

// initCatalog registers the built-in capabilities and imports MCP tools.
func (a *App) initCatalog(ctx context.Context) error {
	a.catalog = capability.NewCatalog(capability.WithLogger(a.logger))

	a.catalog.MustRegister(builtin.Clock(time.Now))
	a.catalog.MustRegister(builtin.Weather(nil))
	a.catalog.MustRegister(builtin.News(nil))
	a.catalog.MustRegister(builtin.Search(a.cfg.Capabilities.PerplexityAPIKey, nil))
	a.catalog.MustRegister(builtin.History(a.history))
	for _, c := range builtin.Timers(a.timers, time.Now) {
		a.catalog.MustRegister(c)
	}
	if a.cfg.Capabilities.Volume {
		for _, c := range builtin.Volume(nil) {
			a.catalog.MustRegister(c)
		}
	}
	music := builtin.Music(nil)
	if sp := a.cfg.Capabilities.Spotify; sp.Enabled() {
		music = builtin.Music(builtin.NewSpotifyPlayer(sp.ClientID, sp.ClientSecret, sp.RefreshToken, nil))
	}
	for _, c := range music {
		a.catalog.MustRegister(c)
	}

	if len(a.cfg.MCP.Servers) == 0 {
		return nil
	}

	a.importer = capability.NewMCPImporter()
	a.closers = append(a.closers, a.importer.Close)

	for _, srv := range a.cfg.MCP.Servers {
		err := a.importer.Import(ctx, a.catalog, capability.MCPServer{
			Name:    srv.Name,
			Command: srv.Command,
			URL:     srv.URL,
			Env:     srv.Env,
		})
		if err != nil {
			return fmt.Errorf("import mcp server %q: %w", srv.Name, err)
		}
		a.logger.Info("imported MCP server", "name", srv.Name)
	}

	return nil
}

// initPipeline assembles the voice pipeline: frame channel, speaker gate,
// wake gate, endpointer, coordinator, and announcer.
func (a *App) initPipeline() {
	listening := a.cfg.Listening

	var chOpts []audio.ChannelOption
	if listening.QueueDepth > 0 {
		chOpts = append(chOpts, audio.WithQueueDepth(listening.QueueDepth))
	}
	chOpts = append(chOpts, audio.WithDropHook(func() {
		a.metrics.FramesDropped.Add(context.Background(), 1)
	}))
	a.channel = audio.NewChannel(a.providers.Device, chOpts...)

	a.output = audio.NewOutput(a.providers.Device)
	a.output.OnWait(func(d time.Duration) {
		a.metrics.GateWait.Record(context.Background(), d.Seconds())
	})

	var gateOpts []wake.GateOption
	if listening.WakeThreshold > 0 {
		gateOpts = append(gateOpts, wake.WithThreshold(listening.WakeThreshold))
	}
	if listening.WakeWord != "" {
		gateOpts = append(gateOpts, wake.WithKeyword(listening.WakeWord))
	}

	var epOpts []endpoint.Option
	if d := listening.Silence(); d > 0 {
		epOpts = append(epOpts, endpoint.WithSilence(d))
	}
	if d := listening.MaxDuration(); d > 0 {
		epOpts = append(epOpts, endpoint.WithMaxDuration(d))
	}

	var coordOpts []turn.Option
	coordOpts = append(coordOpts, turn.WithLogger(a.logger), turn.WithMetrics(a.metrics))
	if listening.MinUtteranceBytes > 0 {
		coordOpts = append(coordOpts, turn.WithMinUtteranceBytes(listening.MinUtteranceBytes))
	}

	a.coordinator = turn.New(turn.Deps{
		Channel:    a.channel,
		Gate:       wake.NewGate(a.providers.Wake, gateOpts...),
		Classifier: a.providers.VAD,
		Endpointer: endpoint.New(epOpts...),
		STT:        a.providers.STT,
		Responder:  a.orch,
		History:    a.history,
		TTS:        a.providers.TTS,
		Output:     a.output,
	}, coordOpts...)

	a.announcer = announce.New(a.timers, a.providers.TTS, a.output,
		announce.WithLogger(a.logger),
		announce.WithMetrics(a.metrics))
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run opens the capture device and blocks running the turn loop, the timer
// announcer, and the optional metrics listener until ctx is cancelled or a
// subsystem fails.
func (a *App) Run(ctx context.Context) error {
	if a.coordinator == nil {
		return errors.New("app: voice pipeline not configured (no audio device)")
	}

	if err := a.channel.Start(); err != nil {
		return fmt.Errorf("app: start capture: %w", err)
	}
	a.closers = append(a.closers, a.channel.Stop)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := a.coordinator.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		err := a.announcer.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if addr := a.cfg.Server.MetricsAddr; addr != "" {
		probes := health.New(
			health.StoreChecker("history", func(ctx context.Context) error {
				_, err := a.history.Recent(ctx, 1)
				return err
			}),
			health.StoreChecker("timers", func(ctx context.Context) error {
				_, err := a.timers.List(ctx)
				return err
			}),
		)
		a.metricsSrv = observe.MetricsServer(addr, a.metrics, probes.Register)
		g.Go(func() error {
			a.logger.Info("metrics listener started", "addr", addr)
			if err := a.metricsSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return a.metricsSrv.Shutdown(shutCtx)
		})
	}

	a.logger.Info("hearth running",
		"wake_word", a.cfg.Listening.WakeWord,
		"capabilities", len(a.catalog.Definitions()))

	return g.Wait()
}

// RunText processes one text utterance through the orchestrator and persists
// the turn, bypassing the audio pipeline. Used by the REPL and one-shot
// modes.
func (a *App) RunText(ctx context.Context, input string) (*orchestrator.Result, error) {
	result, err := a.orch.Run(ctx, input)
	if err != nil {
		return nil, err
	}
	if err := a.history.Save(ctx, history.Turn{
		Timestamp:   time.Now(),
		UserInput:   result.UserInput,
		Response:    result.Response,
		Invocations: result.Invocations,
	}); err != nil {
		a.logger.Warn("history save failed", "error", err)
	}
	return result, nil
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems in reverse-init order. It respects the
// context deadline: if ctx expires before all closers finish, remaining
// closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		a.logger.Info("shutting down", "closers", len(a.closers))

		for i := len(a.closers) - 1; i >= 0; i-- {
			select {
			case <-ctx.Done():
				a.logger.Warn("shutdown deadline exceeded", "remaining", i+1)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := a.closers[i](); err != nil {
				a.logger.Warn("closer error", "index", i, "error", err)
			}
		}

		a.logger.Info("shutdown complete")
	})
	return shutdownErr
}
