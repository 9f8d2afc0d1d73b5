package builtin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

// newTestSpotify wires a SpotifyPlayer to local token and API servers.
func newTestSpotify(t *testing.T, api http.HandlerFunc) (*SpotifyPlayer, *int) {
	t.Helper()
	refreshes := 0
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refreshes++
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse token form: %v", err)
		}
		if got := r.PostForm.Get("grant_type"); got != "refresh_token" {
			t.Errorf("grant_type = %q, want refresh_token", got)
		}
		if got := r.PostForm.Get("refresh_token"); got != "refresh-1" {
			t.Errorf("refresh_token = %q, want refresh-1", got)
		}
		if user, pass, ok := r.BasicAuth(); !ok || user != "id-1" || pass != "secret-1" {
			t.Errorf("basic auth = (%q, %q, %v)", user, pass, ok)
		}
		json.NewEncoder(w).Encode(map[string]any{"access_token": "tok-1", "expires_in": 3600})
	}))
	t.Cleanup(tokenSrv.Close)

	apiSrv := httptest.NewServer(api)
	t.Cleanup(apiSrv.Close)

	p := NewSpotifyPlayer("id-1", "secret-1", "refresh-1", nil)
	p.tokenURL = tokenSrv.URL
	p.apiBase = apiSrv.URL
	return p, &refreshes
}

func TestSpotifyPlaySearchesThenStartsTrack(t *testing.T) {
	t.Parallel()
	var playBody map[string]any
	p, refreshes := newTestSpotify(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
			t.Errorf("Authorization = %q", got)
		}
		switch r.URL.Path {
		case "/search":
			if got := r.URL.Query().Get("type"); got != "track" {
				t.Errorf("search type = %q, want track", got)
			}
			json.NewEncoder(w).Encode(map[string]any{
				"tracks": map[string]any{"items": []map[string]any{{
					"uri":     "spotify:track:abc",
					"name":    "So What",
					"artists": []map[string]any{{"name": "Miles Davis"}},
				}}},
			})
		case "/me/player/play":
			if r.Method != http.MethodPut {
				t.Errorf("play method = %s, want PUT", r.Method)
			}
			if err := json.NewDecoder(r.Body).Decode(&playBody); err != nil {
				t.Errorf("decode play body: %v", err)
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	name, artist, err := p.Play(context.Background(), "so what", "track")
	if err != nil {
		t.Fatalf("Play: %v", err)
	}
	if name != "So What" || artist != "Miles Davis" {
		t.Errorf("Play = (%q, %q)", name, artist)
	}
	uris, ok := playBody["uris"].([]any)
	if !ok || len(uris) != 1 || uris[0] != "spotify:track:abc" {
		t.Errorf("play body = %v, want uris [spotify:track:abc]", playBody)
	}
	if *refreshes != 1 {
		t.Errorf("token refreshes = %d, want 1 (cached across calls)", *refreshes)
	}
}

func TestSpotifyPlayPlaylistUsesContextURI(t *testing.T) {
	t.Parallel()
	var playBody map[string]any
	p, _ := newTestSpotify(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/search":
			json.NewEncoder(w).Encode(map[string]any{
				"playlists": map[string]any{"items": []map[string]any{{
					"uri":  "spotify:playlist:xyz",
					"name": "Deep Focus",
				}}},
			})
		case "/me/player/play":
			json.NewDecoder(r.Body).Decode(&playBody)
			w.WriteHeader(http.StatusNoContent)
		}
	})

	name, artist, err := p.Play(context.Background(), "focus", "playlist")
	if err != nil {
		t.Fatalf("Play: %v", err)
	}
	if name != "Deep Focus" || artist != "" {
		t.Errorf("Play = (%q, %q)", name, artist)
	}
	if got := playBody["context_uri"]; got != "spotify:playlist:xyz" {
		t.Errorf("context_uri = %v", got)
	}
}

func TestSpotifyPlayNoMatches(t *testing.T) {
	t.Parallel()
	p, _ := newTestSpotify(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"tracks": map[string]any{"items": []map[string]any{}},
		})
	})
	_, _, err := p.Play(context.Background(), "xyzzy", "track")
	if !errors.Is(err, ErrNoResults) {
		t.Fatalf("err = %v, want ErrNoResults", err)
	}
}

func TestSpotifyErrorMapping(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		status int
		body   map[string]any
		want   error
	}{
		{
			name:   "premium required",
			status: http.StatusForbidden,
			body:   map[string]any{"error": map[string]any{"reason": "PREMIUM_REQUIRED", "message": "Player command failed"}},
			want:   ErrPremiumRequired,
		},
		{
			name:   "no active device",
			status: http.StatusNotFound,
			body:   map[string]any{"error": map[string]any{"message": "No active device found"}},
			want:   ErrNoActiveDevice,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p, _ := newTestSpotify(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				json.NewEncoder(w).Encode(tt.body)
			})
			if err := p.Pause(context.Background()); !errors.Is(err, tt.want) {
				t.Errorf("Pause err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSpotifyStatusDecodesPlayback(t *testing.T) {
	t.Parallel()
	p, _ := newTestSpotify(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/me/player" {
			t.Errorf("path = %s, want /me/player", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"is_playing":  true,
			"progress_ms": 83000,
			"item": map[string]any{
				"name":        "So What",
				"duration_ms": 545000,
				"artists":     []map[string]any{{"name": "Miles Davis"}},
				"album":       map[string]any{"name": "Kind of Blue"},
			},
			"device": map[string]any{"name": "Kitchen", "volume_percent": 65},
		})
	})

	state, err := p.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	want := PlaybackState{
		Playing:    true,
		Track:      "So What",
		Artist:     "Miles Davis",
		Album:      "Kind of Blue",
		Device:     "Kitchen",
		Volume:     65,
		ProgressMS: 83000,
		DurationMS: 545000,
	}
	if state != want {
		t.Errorf("state = %+v, want %+v", state, want)
	}
}

func TestSpotifyStatusIdleSession(t *testing.T) {
	t.Parallel()
	p, _ := newTestSpotify(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	state, err := p.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if state.Track != "" {
		t.Errorf("track = %q, want empty for idle session", state.Track)
	}
	if state.Volume != -1 {
		t.Errorf("volume = %d, want -1 for idle session", state.Volume)
	}
}
