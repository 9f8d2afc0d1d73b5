package builtin

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/oakmund/hearth/internal/capability"
)

// Sentinel errors a music player reports so handlers can answer with
// speech-friendly text instead of failing the tool call.
var (
	// ErrPremiumRequired means the account cannot control playback.
	ErrPremiumRequired = errors.New("premium account required")
	// ErrNoActiveDevice means no player device is available to command.
	ErrNoActiveDevice = errors.New("no active playback device")
	// ErrNoResults means the search matched nothing.
	ErrNoResults = errors.New("no results")
)

// PlaybackState describes what the player is currently doing. Track is empty
// when nothing is playing.
type PlaybackState struct {
	Playing    bool
	Track      string
	Artist     string
	Album      string
	Device     string
	Volume     int // -1 when the device reports none
	ProgressMS int
	DurationMS int
}

// musicPlayer abstracts the streaming service so handlers are testable.
type musicPlayer interface {
	Play(ctx context.Context, query, kind string) (name, artist string, err error)
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	Skip(ctx context.Context) error
	SetVolume(ctx context.Context, level int) error
	Status(ctx context.Context) (PlaybackState, error)
}

const musicUnconfigured = "Spotify not configured. Set SPOTIFY_CLIENT_ID, SPOTIFY_CLIENT_SECRET and SPOTIFY_REFRESH_TOKEN."

// Music returns the music playback capabilities. player may be nil, in which
// case the capabilities stay registered but answer that music is not
// configured, so the rest of the catalog still works.
func Music(player musicPlayer) []capability.Capability {
	play := capability.Capability{
		Definition: definition(
			"play_music",
			"Play music on Spotify by searching for a track, artist, album, or playlist.",
			objectSchema(map[string]any{
				"query": stringProp("Search query (e.g., 'chill jazz', 'Beatles')"),
				"type": map[string]any{
					"type":        "string",
					"description": "Type to search: 'track', 'artist', 'album', or 'playlist'",
					"enum":        []string{"track", "artist", "album", "playlist"},
				},
			}, "query"),
		),
		Handler: func(ctx context.Context, args string) (string, error) {
			if player == nil {
				return musicUnconfigured, nil
			}
			var in struct {
				Query string `json:"query"`
				Type  string `json:"type"`
			}
			if err := decodeArgs(args, &in); err != nil {
				return "", err
			}
			if in.Query == "" {
				return "", fmt.Errorf("query is required")
			}
			kind := in.Type
			if kind == "" {
				kind = "track"
			}
			switch kind {
			case "track", "artist", "album", "playlist":
			default:
				return "", fmt.Errorf("unknown type %q", kind)
			}

			name, artist, err := player.Play(ctx, in.Query, kind)
			if errors.Is(err, ErrNoResults) {
				return fmt.Sprintf("No %ss found for '%s'", kind, in.Query), nil
			}
			if errors.Is(err, ErrPremiumRequired) {
				return "Spotify Premium is required to control playback. I can still tell you what's playing.", nil
			}
			if text, ok := musicErrText(err); ok {
				return text, nil
			}
			if err != nil {
				return "", fmt.Errorf("play music: %w", err)
			}
			if artist != "" {
				return fmt.Sprintf("Playing '%s' by %s", name, artist), nil
			}
			return fmt.Sprintf("Playing '%s'", name), nil
		},
	}

	pause := capability.Capability{
		Definition: definition(
			"pause_music",
			"Pause Spotify playback.",
			objectSchema(map[string]any{}),
		),
		Handler: musicAction(player, "pause music", "Playback paused", func(ctx context.Context) error {
			return player.Pause(ctx)
		}),
	}

	resume := capability.Capability{
		Definition: definition(
			"resume_music",
			"Resume Spotify playback.",
			objectSchema(map[string]any{}),
		),
		Handler: musicAction(player, "resume music", "Playback resumed", func(ctx context.Context) error {
			return player.Resume(ctx)
		}),
	}

	skip := capability.Capability{
		Definition: definition(
			"skip_track",
			"Skip to the next track on Spotify.",
			objectSchema(map[string]any{}),
		),
		Handler: musicAction(player, "skip track", "Skipped to next track", func(ctx context.Context) error {
			return player.Skip(ctx)
		}),
	}

	volume := capability.Capability{
		Definition: definition(
			"set_music_volume",
			"Set Spotify playback volume. Use this for music/media volume, not device volume.",
			objectSchema(map[string]any{
				"volume": map[string]any{
					"type":        "integer",
					"description": "Volume level from 0 to 100",
					"minimum":     0,
					"maximum":     100,
				},
			}, "volume"),
		),
		Handler: func(ctx context.Context, args string) (string, error) {
			if player == nil {
				return musicUnconfigured, nil
			}
			var in struct {
				Volume int `json:"volume"`
			}
			if err := decodeArgs(args, &in); err != nil {
				return "", err
			}
			if in.Volume < 0 || in.Volume > 100 {
				return "", fmt.Errorf("volume %d out of range 0-100", in.Volume)
			}
			err := player.SetVolume(ctx, in.Volume)
			if text, ok := musicErrText(err); ok {
				return text, nil
			}
			if err != nil {
				return "", fmt.Errorf("set music volume: %w", err)
			}
			return fmt.Sprintf("Music volume set to %d%%", in.Volume), nil
		},
	}

	status := capability.Capability{
		Definition: definition(
			"get_playback_status",
			"Get current Spotify playback status including track, artist, and volume.",
			objectSchema(map[string]any{}),
		),
		Handler: func(ctx context.Context, args string) (string, error) {
			if player == nil {
				return musicUnconfigured, nil
			}
			state, err := player.Status(ctx)
			if text, ok := musicErrText(err); ok {
				return text, nil
			}
			if err != nil {
				return "", fmt.Errorf("playback status: %w", err)
			}
			if state.Track == "" {
				return "Nothing is currently playing on Spotify.", nil
			}

			verb := "Paused"
			if state.Playing {
				verb = "Playing"
			}
			parts := []string{fmt.Sprintf("%s: '%s'", verb, state.Track)}
			if state.Artist != "" {
				parts = append(parts, "by "+state.Artist)
			}
			if state.Album != "" {
				parts = append(parts, fmt.Sprintf("from '%s'", state.Album))
			}
			parts = append(parts, fmt.Sprintf("[%s/%s]", trackTime(state.ProgressMS), trackTime(state.DurationMS)))
			if state.Volume >= 0 {
				parts = append(parts, fmt.Sprintf("at %d%% volume", state.Volume))
			}
			return strings.Join(parts, " "), nil
		},
	}

	return []capability.Capability{play, pause, resume, skip, volume, status}
}

// musicAction builds a no-argument handler around a player call, mapping the
// player's sentinel errors to speech-friendly text.
func musicAction(player musicPlayer, op, done string, fn func(context.Context) error) func(context.Context, string) (string, error) {
	return func(ctx context.Context, _ string) (string, error) {
		if player == nil {
			return musicUnconfigured, nil
		}
		err := fn(ctx)
		if text, ok := musicErrText(err); ok {
			return text, nil
		}
		if err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		return done, nil
	}
}

// musicErrText converts the player's sentinel errors into the answer spoken
// to the user. Other errors (including nil) report false.
func musicErrText(err error) (string, bool) {
	switch {
	case errors.Is(err, ErrPremiumRequired):
		return "Spotify Premium is required to control playback.", true
	case errors.Is(err, ErrNoActiveDevice):
		return "No Spotify device available. Open Spotify on a device and try again.", true
	}
	return "", false
}

// trackTime formats milliseconds as m:ss for spoken playback positions.
func trackTime(ms int) string {
	if ms < 0 {
		ms = 0
	}
	s := ms / 1000
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}
