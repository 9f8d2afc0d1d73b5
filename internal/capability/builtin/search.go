package builtin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/oakmund/hearth/internal/capability"
)

const perplexityURL = "https://api.perplexity.ai/chat/completions"

var (
	citationRe   = regexp.MustCompile(`\[\d+\]`)
	emphasisRe   = regexp.MustCompile(`\*+`)
	linkRe       = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	whitespaceRe = regexp.MustCompile(`  +`)
)

// Search returns the internet-search capability backed by the Perplexity
// API. apiKey may be empty; the capability then reports itself unavailable
// rather than failing registration, so the rest of the catalog still works.
func Search(apiKey string, client *http.Client) capability.Capability {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return capability.Capability{
		Definition: definition(
			"search_internet",
			"Search the internet for current information, news, or to answer questions that require up-to-date knowledge.",
			objectSchema(map[string]any{
				"query": stringProp("The search query"),
			}, "query"),
		),
		Handler: func(ctx context.Context, args string) (string, error) {
			if apiKey == "" {
				return "Search unavailable: no API key configured.", nil
			}
			var in struct {
				Query string `json:"query"`
			}
			if err := decodeArgs(args, &in); err != nil {
				return "", err
			}
			if in.Query == "" {
				return "", fmt.Errorf("query is required")
			}

			content, err := perplexitySearch(ctx, client, apiKey, in.Query)
			if err != nil {
				return "", err
			}
			if content == "" {
				return "No results found for your search.", nil
			}
			return cleanForSpeech(content), nil
		},
	}
}

func perplexitySearch(ctx context.Context, client *http.Client, apiKey, query string) (string, error) {
	body, err := json.Marshal(map[string]any{
		"model": "sonar",
		"messages": []map[string]string{
			{"role": "user", "content": query},
		},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, perplexityURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("search: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("search: API returned status %d", resp.StatusCode)
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("search: decode: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", nil
	}
	return out.Choices[0].Message.Content, nil
}

// cleanForSpeech strips markdown artifacts that read badly when spoken:
// citation markers, emphasis asterisks, and link syntax.
func cleanForSpeech(text string) string {
	text = citationRe.ReplaceAllString(text, "")
	text = emphasisRe.ReplaceAllString(text, "")
	text = linkRe.ReplaceAllString(text, "$1")
	text = whitespaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
