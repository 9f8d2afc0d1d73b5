package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/oakmund/hearth/internal/capability"
)

const (
	geocodingURL = "https://geocoding-api.open-meteo.com/v1/search"
	forecastURL  = "https://api.open-meteo.com/v1/forecast"
)

// weatherCodes maps WMO weather interpretation codes to spoken descriptions.
var weatherCodes = map[int]string{
	0:  "clear skies",
	1:  "mainly clear",
	2:  "partly cloudy",
	3:  "overcast",
	45: "foggy",
	48: "freezing fog",
	51: "light drizzle",
	53: "drizzle",
	55: "heavy drizzle",
	61: "light rain",
	63: "rain",
	65: "heavy rain",
	71: "light snow",
	73: "snow",
	75: "heavy snow",
	80: "rain showers",
	81: "rain showers",
	82: "violent rain showers",
	95: "a thunderstorm",
	96: "a thunderstorm with hail",
	99: "a thunderstorm with heavy hail",
}

// Weather returns the current-conditions capability backed by the Open-Meteo
// API, which needs no API key.
func Weather(client *http.Client) capability.Capability {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return capability.Capability{
		Definition: definition(
			"get_weather",
			"Get the current weather for a location",
			objectSchema(map[string]any{
				"location": stringProp("City name or location"),
			}, "location"),
		),
		Handler: func(ctx context.Context, args string) (string, error) {
			var in struct {
				Location string `json:"location"`
			}
			if err := decodeArgs(args, &in); err != nil {
				return "", err
			}
			if in.Location == "" {
				return "", fmt.Errorf("location is required")
			}

			lat, lon, name, err := geocode(ctx, client, in.Location)
			if err != nil {
				return "", err
			}
			return currentConditions(ctx, client, lat, lon, name)
		},
	}
}

func geocode(ctx context.Context, client *http.Client, location string) (lat, lon float64, name string, err error) {
	q := url.Values{"name": {location}, "count": {"1"}}
	var resp struct {
		Results []struct {
			Name      string  `json:"name"`
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
		} `json:"results"`
	}
	if err := getJSON(ctx, client, geocodingURL+"?"+q.Encode(), &resp); err != nil {
		return 0, 0, "", fmt.Errorf("geocode %q: %w", location, err)
	}
	if len(resp.Results) == 0 {
		return 0, 0, "", fmt.Errorf("no location found for %q", location)
	}
	r := resp.Results[0]
	return r.Latitude, r.Longitude, r.Name, nil
}

func currentConditions(ctx context.Context, client *http.Client, lat, lon float64, name string) (string, error) {
	q := url.Values{
		"latitude":         {fmt.Sprintf("%.4f", lat)},
		"longitude":        {fmt.Sprintf("%.4f", lon)},
		"current":          {"temperature_2m,weather_code,wind_speed_10m"},
		"temperature_unit": {"fahrenheit"},
		"wind_speed_unit":  {"mph"},
	}
	var resp struct {
		Current struct {
			Temperature float64 `json:"temperature_2m"`
			WeatherCode int     `json:"weather_code"`
			WindSpeed   float64 `json:"wind_speed_10m"`
		} `json:"current"`
	}
	if err := getJSON(ctx, client, forecastURL+"?"+q.Encode(), &resp); err != nil {
		return "", fmt.Errorf("fetch forecast: %w", err)
	}

	desc, ok := weatherCodes[resp.Current.WeatherCode]
	if !ok {
		desc = "mixed conditions"
	}
	return fmt.Sprintf("The weather in %s is currently %s and %.0f degrees Fahrenheit, with wind at %.0f miles per hour.",
		name, desc, resp.Current.Temperature, resp.Current.WindSpeed), nil
}

func getJSON(ctx context.Context, client *http.Client, rawURL string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
