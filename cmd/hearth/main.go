// Command hearth is the main entry point for the Hearth voice assistant.
//
// Without arguments it runs the full voice pipeline against the local
// microphone and speaker. With -repl it runs an interactive text loop, and
// with positional arguments it answers one question and exits — both text
// modes exercise the same orchestrator and persistence path without audio.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/oakmund/hearth/internal/app"
	"github.com/oakmund/hearth/internal/config"
	"github.com/oakmund/hearth/internal/observe"
	"github.com/oakmund/hearth/internal/resilience"
	"github.com/oakmund/hearth/pkg/audio/malgodevice"
	"github.com/oakmund/hearth/pkg/provider/chat"
	"github.com/oakmund/hearth/pkg/provider/chat/anyllm"
	oachat "github.com/oakmund/hearth/pkg/provider/chat/openai"
	"github.com/oakmund/hearth/pkg/provider/stt"
	oastt "github.com/oakmund/hearth/pkg/provider/stt/openai"
	"github.com/oakmund/hearth/pkg/provider/stt/whispercpp"
	"github.com/oakmund/hearth/pkg/provider/tts"
	"github.com/oakmund/hearth/pkg/provider/tts/elevenlabs"
	oatts "github.com/oakmund/hearth/pkg/provider/tts/openai"
	"github.com/oakmund/hearth/pkg/vad"
	"github.com/oakmund/hearth/pkg/vad/energy"
	"github.com/oakmund/hearth/pkg/wake"
	"github.com/oakmund/hearth/pkg/wake/openwake"
)

// logLevel backs the default logger so a config reload can adjust verbosity
// without restarting.
var logLevel slog.LevelVar

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	repl := flag.Bool("repl", false, "run an interactive text loop instead of the voice pipeline")
	flag.Parse()
	oneShot := strings.TrimSpace(strings.Join(flag.Args(), " "))

	// A .env file is a convenience for development; absence is not an error.
	_ = godotenv.Load()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "hearth: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "hearth: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logLevel.Set(slogLevel(cfg.Server.LogLevel))
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: &logLevel}))
	slog.SetDefault(logger)

	slog.Info("hearth starting",
		"config", *configPath,
		"wake_word", cfg.Listening.WakeWord,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: "hearth",
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(flushCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	voiceMode := !*repl && oneShot == ""

	providers, err := buildProviders(cfg, reg, voiceMode)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Microphone and speaker ────────────────────────────────────────────────
	if voiceMode {
		device, err := malgodevice.New()
		if err != nil {
			slog.Error("failed to open audio device", "err", err)
			return 1
		}
		providers.Device = device
	}

	printStartupSummary(cfg, voiceMode)

	application, err := app.New(ctx, cfg, providers)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	// ── Run ───────────────────────────────────────────────────────────────────
	var runErr error
	switch {
	case oneShot != "":
		runErr = runOnce(ctx, application, oneShot)
	case *repl:
		runErr = runREPL(ctx, application)
	default:
		// Config changes are picked up while the voice loop runs; only the
		// log level applies live, everything else needs a restart.
		watcher, err := config.NewWatcher(*configPath, onConfigChange)
		if err != nil {
			slog.Warn("config watcher unavailable", "err", err)
		} else {
			defer watcher.Stop()
		}

		slog.Info("listening — press Ctrl+C to shut down")
		runErr = application.Run(ctx)
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		slog.Error("run error", "err", runErr)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// runOnce answers a single question and prints the response.
func runOnce(ctx context.Context, application *app.App, input string) error {
	result, err := application.RunText(ctx, input)
	if err != nil {
		return err
	}
	fmt.Println(result.Response)
	return nil
}

// runREPL reads questions from stdin until EOF or a quit command.
func runREPL(ctx context.Context, application *app.App) error {
	fmt.Println("Hearth (text mode). Type 'quit' to exit.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("You: ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "quit" || input == "exit" {
			return nil
		}

		result, err := application.RunText(ctx, input)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			fmt.Printf("Error: %v\n", err)
			continue
		}
		fmt.Printf("Hearth: %s\n", result.Response)
	}
}

// onConfigChange applies the safe subset of a reloaded configuration.
func onConfigChange(old, new *config.Config) {
	diff := config.Diff(old, new)
	if diff.Empty() {
		return
	}
	if diff.LogLevelChanged {
		logLevel.Set(slogLevel(diff.NewLogLevel))
		slog.Info("log level changed", "level", diff.NewLogLevel)
	}
	if diff.ListeningChanged {
		slog.Info("listening settings changed — restart to apply",
			"wake_word", diff.NewListening.WakeWord)
	}
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// anyllmBackends are the chat backends served through any-llm-go. They share
// the same pattern: optional APIKey + optional BaseURL.
var anyllmBackends = []string{"anthropic", "gemini", "deepseek", "mistral", "groq"}

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the appropriate
// provider from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	// ── Chat ──────────────────────────────────────────────────────────────────
	reg.RegisterChat("openai", func(entry config.ProviderEntry) (chat.Provider, error) {
		var opts []oachat.Option
		if entry.BaseURL != "" {
			opts = append(opts, oachat.WithBaseURL(entry.BaseURL))
		}
		return oachat.New(entry.APIKey, entry.Model, opts...)
	})

	for _, backend := range anyllmBackends {
		reg.RegisterChat(backend, func(entry config.ProviderEntry) (chat.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(backend, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterChat("ollama", func(entry config.ProviderEntry) (chat.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New("ollama", entry.Model, opts...)
	})

	// ── STT ───────────────────────────────────────────────────────────────────
	reg.RegisterSTT("openai", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []oastt.Option
		if entry.Model != "" {
			opts = append(opts, oastt.WithModel(entry.Model))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, oastt.WithLanguage(lang))
		}
		if entry.BaseURL != "" {
			opts = append(opts, oastt.WithBaseURL(entry.BaseURL))
		}
		return oastt.New(entry.APIKey, opts...)
	})

	reg.RegisterSTT("whispercpp", func(entry config.ProviderEntry) (stt.Provider, error) {
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = optString(entry.Options, "model_path")
		}
		var opts []whispercpp.Option
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whispercpp.WithLanguage(lang))
		}
		return whispercpp.New(modelPath, opts...)
	})

	// ── TTS ───────────────────────────────────────────────────────────────────
	reg.RegisterTTS("openai", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []oatts.Option
		if entry.Model != "" {
			opts = append(opts, oatts.WithModel(entry.Model))
		}
		if entry.Voice != "" {
			opts = append(opts, oatts.WithVoice(entry.Voice))
		}
		if entry.BaseURL != "" {
			opts = append(opts, oatts.WithBaseURL(entry.BaseURL))
		}
		return oatts.New(entry.APIKey, opts...)
	})

	reg.RegisterTTS("elevenlabs", func(entry config.ProviderEntry) (tts.Provider, error) {
		voiceID := entry.Voice
		if voiceID == "" {
			voiceID = optString(entry.Options, "voice_id")
		}
		var opts []elevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		if format := optString(entry.Options, "output_format"); format != "" {
			opts = append(opts, elevenlabs.WithOutputFormat(format))
		}
		return elevenlabs.New(entry.APIKey, voiceID, opts...)
	})

	// ── Wake ──────────────────────────────────────────────────────────────────
	reg.RegisterWake("openwake", func(entry config.ProviderEntry) (wake.Scorer, error) {
		var opts []openwake.Option
		if n := optInt(entry.Options, "window_samples"); n > 0 {
			opts = append(opts, openwake.WithWindowSamples(n))
		}
		return openwake.New(entry.BaseURL, opts...)
	})

	// ── VAD ───────────────────────────────────────────────────────────────────
	reg.RegisterVAD("energy", func(entry config.ProviderEntry) (vad.Classifier, error) {
		var opts []energy.Option
		enter := optFloat(entry.Options, "speech_threshold")
		exit := optFloat(entry.Options, "silence_threshold")
		if enter > 0 || exit > 0 {
			opts = append(opts, energy.WithThresholds(enter, exit))
		}
		return energy.New(opts...), nil
	})
}

// buildProviders instantiates the providers named in cfg using the registry
// and returns them in an [app.Providers] struct. The chat provider is always
// required; the audio-facing providers only matter in voice mode.
func buildProviders(cfg *config.Config, reg *config.Registry, voiceMode bool) (*app.Providers, error) {
	ps := &app.Providers{}

	if cfg.Providers.Chat.Name == "" {
		return nil, errors.New("providers.chat is required")
	}
	p, err := reg.CreateChat(cfg.Providers.Chat)
	if err != nil {
		return nil, fmt.Errorf("create chat provider %q: %w", cfg.Providers.Chat.Name, err)
	}
	ps.Chat = p
	if fb := cfg.Providers.Chat.Fallback; fb != nil {
		secondary, err := reg.CreateChat(*fb)
		if err != nil {
			return nil, fmt.Errorf("create chat fallback %q: %w", fb.Name, err)
		}
		group := resilience.NewChatFallback(p, cfg.Providers.Chat.Name, resilience.GroupConfig{})
		group.AddFallback(fb.Name, secondary)
		ps.Chat = group
	}
	slog.Info("provider created", "kind", "chat", "name", cfg.Providers.Chat.Name)

	if !voiceMode {
		return ps, nil
	}

	// The voice pipeline needs the whole chain; a missing entry would only
	// surface as a nil provider mid-turn, so fail now.
	if name := cfg.Providers.STT.Name; name != "" {
		p, err := reg.CreateSTT(cfg.Providers.STT)
		if err != nil {
			return nil, fmt.Errorf("create stt provider %q: %w", name, err)
		}
		ps.STT = p
		if fb := cfg.Providers.STT.Fallback; fb != nil {
			secondary, err := reg.CreateSTT(*fb)
			if err != nil {
				return nil, fmt.Errorf("create stt fallback %q: %w", fb.Name, err)
			}
			group := resilience.NewSTTFallback(p, name, resilience.GroupConfig{})
			group.AddFallback(fb.Name, secondary)
			ps.STT = group
		}
		slog.Info("provider created", "kind", "stt", "name", name)
	} else {
		return nil, errors.New("providers.stt is required in voice mode")
	}

	if name := cfg.Providers.TTS.Name; name != "" {
		p, err := reg.CreateTTS(cfg.Providers.TTS)
		if err != nil {
			return nil, fmt.Errorf("create tts provider %q: %w", name, err)
		}
		ps.TTS = p
		if fb := cfg.Providers.TTS.Fallback; fb != nil {
			secondary, err := reg.CreateTTS(*fb)
			if err != nil {
				return nil, fmt.Errorf("create tts fallback %q: %w", fb.Name, err)
			}
			group := resilience.NewTTSFallback(p, name, resilience.GroupConfig{})
			group.AddFallback(fb.Name, secondary)
			ps.TTS = group
		}
		slog.Info("provider created", "kind", "tts", "name", name)
	} else {
		return nil, errors.New("providers.tts is required in voice mode")
	}

	if name := cfg.Providers.Wake.Name; name != "" {
		p, err := reg.CreateWake(cfg.Providers.Wake)
		if err != nil {
			return nil, fmt.Errorf("create wake scorer %q: %w", name, err)
		}
		ps.Wake = p
		slog.Info("provider created", "kind", "wake", "name", name)
	} else {
		return nil, errors.New("providers.wake is required in voice mode")
	}

	if name := cfg.Providers.VAD.Name; name != "" {
		p, err := reg.CreateVAD(cfg.Providers.VAD)
		if err != nil {
			return nil, fmt.Errorf("create vad classifier %q: %w", name, err)
		}
		ps.VAD = p
		slog.Info("provider created", "kind", "vad", "name", name)
	} else {
		return nil, errors.New("providers.vad is required in voice mode")
	}

	return ps, nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config, voiceMode bool) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║          Hearth — startup summary     ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("Chat", cfg.Providers.Chat.Name, cfg.Providers.Chat.Model)
	printProvider("STT", cfg.Providers.STT.Name, cfg.Providers.STT.Model)
	printProvider("TTS", cfg.Providers.TTS.Name, cfg.Providers.TTS.Model)
	printProvider("Wake", cfg.Providers.Wake.Name, "")
	printProvider("VAD", cfg.Providers.VAD.Name, "")
	if voiceMode {
		fmt.Printf("║  Wake word       : %-19s ║\n", cfg.Listening.WakeWord)
	} else {
		fmt.Printf("║  Mode            : %-19s ║\n", "text")
	}
	if cfg.Stores.PostgresDSN != "" {
		fmt.Printf("║  Storage         : %-19s ║\n", "postgres")
	} else {
		fmt.Printf("║  Storage         : %-19s ║\n", "in-memory")
	}
	fmt.Printf("║  MCP servers     : %-19d ║\n", len(cfg.MCP.Servers))
	if cfg.Server.MetricsAddr != "" {
		fmt.Printf("║  Metrics addr    : %-19s ║\n", cfg.Server.MetricsAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, value)
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	s, _ := opts[key].(string)
	return s
}

// optInt extracts an integer option; YAML decodes whole numbers as int.
func optInt(opts map[string]any, key string) int {
	if opts == nil {
		return 0
	}
	n, _ := opts[key].(int)
	return n
}

// optFloat extracts a float option, tolerating YAML's int decoding of
// values like "0" written without a decimal point.
func optFloat(opts map[string]any, key string) float64 {
	if opts == nil {
		return 0
	}
	switch v := opts[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}
