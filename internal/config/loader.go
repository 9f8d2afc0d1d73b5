package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"chat": {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq"},
	"stt":  {"openai", "whispercpp"},
	"tts":  {"openai", "elevenlabs"},
	"wake": {"openwake"},
	"vad":  {"energy"},
}

// Load reads the YAML configuration file at path, applies environment
// overrides, and returns a validated [Config].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies environment
// overrides, and validates the result. Useful in tests where configs are
// constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envOverrides collects the environment variables recognised on top of the
// YAML file. Provider API keys follow the vendors' conventional names;
// everything else is HEARTH_-prefixed.
type envOverrides struct {
	OpenAIAPIKey     string `envconfig:"OPENAI_API_KEY"`
	AnthropicAPIKey  string `envconfig:"ANTHROPIC_API_KEY"`
	ElevenLabsAPIKey string `envconfig:"ELEVENLABS_API_KEY"`
	PerplexityAPIKey string `envconfig:"PERPLEXITY_API_KEY"`

	SpotifyClientID     string `envconfig:"SPOTIFY_CLIENT_ID"`
	SpotifyClientSecret string `envconfig:"SPOTIFY_CLIENT_SECRET"`
	SpotifyRefreshToken string `envconfig:"SPOTIFY_REFRESH_TOKEN"`

	WakeWord    string `envconfig:"HEARTH_WAKE_WORD"`
	TTSVoice    string `envconfig:"HEARTH_TTS_VOICE"`
	PostgresDSN string `envconfig:"HEARTH_POSTGRES_DSN"`
	MetricsAddr string `envconfig:"HEARTH_METRICS_ADDR"`
	LogLevel    string `envconfig:"HEARTH_LOG_LEVEL"`
}

// ApplyEnv fills empty config fields from the environment. Values already
// set in the YAML file win.
func ApplyEnv(cfg *Config) error {
	var env envOverrides
	if err := envconfig.Process("", &env); err != nil {
		return fmt.Errorf("config: read environment: %w", err)
	}

	setIfEmpty := func(dst *string, v string) {
		if *dst == "" && v != "" {
			*dst = v
		}
	}

	switch cfg.Providers.Chat.Name {
	case "anthropic":
		setIfEmpty(&cfg.Providers.Chat.APIKey, env.AnthropicAPIKey)
	default:
		setIfEmpty(&cfg.Providers.Chat.APIKey, env.OpenAIAPIKey)
	}
	setIfEmpty(&cfg.Providers.STT.APIKey, env.OpenAIAPIKey)
	if cfg.Providers.TTS.Name == "elevenlabs" {
		setIfEmpty(&cfg.Providers.TTS.APIKey, env.ElevenLabsAPIKey)
	} else {
		setIfEmpty(&cfg.Providers.TTS.APIKey, env.OpenAIAPIKey)
	}
	setIfEmpty(&cfg.Providers.TTS.Voice, env.TTSVoice)

	setIfEmpty(&cfg.Capabilities.PerplexityAPIKey, env.PerplexityAPIKey)
	setIfEmpty(&cfg.Capabilities.Spotify.ClientID, env.SpotifyClientID)
	setIfEmpty(&cfg.Capabilities.Spotify.ClientSecret, env.SpotifyClientSecret)
	setIfEmpty(&cfg.Capabilities.Spotify.RefreshToken, env.SpotifyRefreshToken)
	setIfEmpty(&cfg.Listening.WakeWord, env.WakeWord)
	setIfEmpty(&cfg.Stores.PostgresDSN, env.PostgresDSN)
	setIfEmpty(&cfg.Server.MetricsAddr, env.MetricsAddr)
	if cfg.Server.LogLevel == "" && env.LogLevel != "" {
		cfg.Server.LogLevel = LogLevel(env.LogLevel)
	}
	return nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Listening
	l := cfg.Listening
	if l.WakeThreshold < 0 || l.WakeThreshold > 1 {
		errs = append(errs, fmt.Errorf("listening.wake_threshold %.2f is out of range (0, 1]", l.WakeThreshold))
	}
	if l.SilenceMs < 0 {
		errs = append(errs, fmt.Errorf("listening.silence_ms must not be negative"))
	}
	if l.MaxDurationMs < 0 {
		errs = append(errs, fmt.Errorf("listening.max_duration_ms must not be negative"))
	}
	if l.SilenceMs > 0 && l.MaxDurationMs > 0 && l.MaxDurationMs <= l.SilenceMs {
		errs = append(errs, fmt.Errorf("listening.max_duration_ms %d must exceed silence_ms %d", l.MaxDurationMs, l.SilenceMs))
	}
	if l.QueueDepth < 0 {
		errs = append(errs, fmt.Errorf("listening.queue_depth must not be negative"))
	}
	if l.MinUtteranceBytes < 0 {
		errs = append(errs, fmt.Errorf("listening.min_utterance_bytes must not be negative"))
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("chat", cfg.Providers.Chat.Name)
	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)
	validateProviderName("wake", cfg.Providers.Wake.Name)
	validateProviderName("vad", cfg.Providers.VAD.Name)
	if fb := cfg.Providers.Chat.Fallback; fb != nil {
		validateProviderName("chat", fb.Name)
	}
	if fb := cfg.Providers.STT.Fallback; fb != nil {
		validateProviderName("stt", fb.Name)
	}
	if fb := cfg.Providers.TTS.Fallback; fb != nil {
		validateProviderName("tts", fb.Name)
	}

	// Store availability
	if cfg.Stores.PostgresDSN == "" {
		slog.Warn("stores.postgres_dsn is empty; history and timers will not survive a restart")
	}
	if cfg.Stores.HistoryKeep < 0 {
		errs = append(errs, fmt.Errorf("stores.history_keep must not be negative"))
	}

	// MCP servers
	namesSeen := make(map[string]int, len(cfg.MCP.Servers))
	for i, srv := range cfg.MCP.Servers {
		prefix := fmt.Sprintf("mcp.servers[%d]", i)
		if srv.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		} else {
			if prev, ok := namesSeen[srv.Name]; ok {
				errs = append(errs, fmt.Errorf("%s.name %q is a duplicate of mcp.servers[%d]", prefix, srv.Name, prev))
			}
			namesSeen[srv.Name] = i
		}
		if srv.Transport != "" && !srv.Transport.IsValid() {
			errs = append(errs, fmt.Errorf("%s.transport %q is invalid; valid values: stdio, streamable-http", prefix, srv.Transport))
		}
		if srv.Transport == TransportStdio && srv.Command == "" {
			errs = append(errs, fmt.Errorf("%s.command is required when transport is stdio", prefix))
		}
		if srv.Transport == TransportStreamableHTTP && srv.URL == "" {
			errs = append(errs, fmt.Errorf("%s.url is required when transport is streamable-http", prefix))
		}
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
