package builtin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	spotifyAPIBase  = "https://api.spotify.com/v1"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
)

// SpotifyPlayer drives playback through the Spotify Web API. Access tokens
// are minted from a long-lived refresh token and renewed one minute before
// expiry. Safe for concurrent use.
type SpotifyPlayer struct {
	clientID     string
	clientSecret string
	refreshToken string
	client       *http.Client

	apiBase  string
	tokenURL string

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
}

var _ musicPlayer = (*SpotifyPlayer)(nil)

// NewSpotifyPlayer creates a player for the account behind refreshToken.
// client may be nil, in which case a 10-second-timeout client is used.
func NewSpotifyPlayer(clientID, clientSecret, refreshToken string, client *http.Client) *SpotifyPlayer {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &SpotifyPlayer{
		clientID:     clientID,
		clientSecret: clientSecret,
		refreshToken: refreshToken,
		client:       client,
		apiBase:      spotifyAPIBase,
		tokenURL:     spotifyTokenURL,
	}
}

// Play searches for kind matching query and starts the first result.
// Albums, playlists and artists play as a context; tracks play directly.
func (p *SpotifyPlayer) Play(ctx context.Context, query, kind string) (string, string, error) {
	var res map[string]struct {
		Items []struct {
			URI     string `json:"uri"`
			Name    string `json:"name"`
			Artists []struct {
				Name string `json:"name"`
			} `json:"artists"`
		} `json:"items"`
	}
	q := url.Values{"q": {query}, "type": {kind}, "limit": {"5"}}
	if err := p.do(ctx, http.MethodGet, "/search", q, nil, &res); err != nil {
		return "", "", err
	}
	items := res[kind+"s"].Items
	if len(items) == 0 {
		return "", "", ErrNoResults
	}

	item := items[0]
	artist := ""
	if kind == "track" && len(item.Artists) > 0 {
		artist = item.Artists[0].Name
	}

	body := map[string]any{"uris": []string{item.URI}}
	if kind != "track" {
		body = map[string]any{"context_uri": item.URI}
	}
	if err := p.do(ctx, http.MethodPut, "/me/player/play", nil, body, nil); err != nil {
		return "", "", err
	}
	return item.Name, artist, nil
}

func (p *SpotifyPlayer) Pause(ctx context.Context) error {
	return p.do(ctx, http.MethodPut, "/me/player/pause", nil, nil, nil)
}

func (p *SpotifyPlayer) Resume(ctx context.Context) error {
	return p.do(ctx, http.MethodPut, "/me/player/play", nil, nil, nil)
}

func (p *SpotifyPlayer) Skip(ctx context.Context) error {
	return p.do(ctx, http.MethodPost, "/me/player/next", nil, nil, nil)
}

func (p *SpotifyPlayer) SetVolume(ctx context.Context, level int) error {
	if level < 0 {
		level = 0
	}
	if level > 100 {
		level = 100
	}
	q := url.Values{"volume_percent": {strconv.Itoa(level)}}
	return p.do(ctx, http.MethodPut, "/me/player/volume", q, nil, nil)
}

// Status reports the current playback state. A 204 from the API means no
// active session; that comes back as an empty state, not an error.
func (p *SpotifyPlayer) Status(ctx context.Context) (PlaybackState, error) {
	var res struct {
		IsPlaying  bool `json:"is_playing"`
		ProgressMS int  `json:"progress_ms"`
		Item       struct {
			Name       string `json:"name"`
			DurationMS int    `json:"duration_ms"`
			Artists    []struct {
				Name string `json:"name"`
			} `json:"artists"`
			Album struct {
				Name string `json:"name"`
			} `json:"album"`
		} `json:"item"`
		Device struct {
			Name          string `json:"name"`
			VolumePercent *int   `json:"volume_percent"`
		} `json:"device"`
	}
	if err := p.do(ctx, http.MethodGet, "/me/player", nil, nil, &res); err != nil {
		return PlaybackState{}, err
	}

	state := PlaybackState{
		Playing:    res.IsPlaying,
		Track:      res.Item.Name,
		Album:      res.Item.Album.Name,
		Device:     res.Device.Name,
		Volume:     -1,
		ProgressMS: res.ProgressMS,
		DurationMS: res.Item.DurationMS,
	}
	if len(res.Item.Artists) > 0 {
		state.Artist = res.Item.Artists[0].Name
	}
	if res.Device.VolumePercent != nil {
		state.Volume = *res.Device.VolumePercent
	}
	return state, nil
}

// do issues one authenticated API request and decodes the response into out
// when out is non-nil and the API returned content.
func (p *SpotifyPlayer) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	token, err := p.token(ctx)
	if err != nil {
		return err
	}

	u := p.apiBase + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	var payload io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("spotify: encode body: %w", err)
		}
		payload = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, payload)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("spotify: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return p.apiError(resp, method, path)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("spotify: read response: %w", err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("spotify: decode response: %w", err)
	}
	return nil
}

// apiError maps the API's error envelope onto the player sentinels.
func (p *SpotifyPlayer) apiError(resp *http.Response, method, path string) error {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
			Reason  string `json:"reason"`
		} `json:"error"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&envelope)

	switch resp.StatusCode {
	case http.StatusForbidden:
		if envelope.Error.Reason == "PREMIUM_REQUIRED" {
			return ErrPremiumRequired
		}
	case http.StatusNotFound:
		if strings.Contains(envelope.Error.Message, "No active device") {
			return ErrNoActiveDevice
		}
	}
	if envelope.Error.Message != "" {
		return fmt.Errorf("spotify: %s %s: %s", method, path, envelope.Error.Message)
	}
	return fmt.Errorf("spotify: %s %s: status %d", method, path, resp.StatusCode)
}

// token returns a valid access token, refreshing when the cached one is
// within a minute of expiry.
func (p *SpotifyPlayer) token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.accessToken != "" && time.Until(p.expiresAt) > time.Minute {
		return p.accessToken, nil
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {p.refreshToken},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(p.clientID, p.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("spotify: refresh token: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("spotify: refresh token: status %d", resp.StatusCode)
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("spotify: decode token: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("spotify: refresh token: empty access token")
	}

	p.accessToken = tok.AccessToken
	p.expiresAt = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	return p.accessToken, nil
}
