package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/oakmund/hearth/internal/capability"
)

const bbcNewsURL = "https://bbc-news-api.vercel.app/news?lang=english"

// interestGuidance steers the model's story selection when reporting news.
const interestGuidance = `
Select the top 5 most interesting articles based on this profile:

HIGH PRIORITY (report these first):
- AI, agentic engineering, big tech (OpenAI, Anthropic, Meta, Google AI, agents, models, chips, regulation)
- Major world events, breaking news, significant geopolitical developments
- US politics and policy with real impact
- NYC/NJ local: transit (MTA, PATH, NJ Transit), housing, zoning, mayor
- Finance, markets, business regulation, crypto, layoffs

MEDIUM PRIORITY:
- Gaming industry, live-service games, creator economy
- Science and technology breakthroughs
- Business operations, startups, acquisitions

LOW PRIORITY (skip unless exceptional):
- Celebrity news, entertainment gossip
- Sports (unless historic/major upset)
- Generic travel, food, lifestyle listicles
- Repeated coverage of same story (pick best one)

When reporting, be concise: give headline + 1 sentence on why it matters.
`

type article struct {
	Title   string
	Summary string
	Section string
	URL     string
}

// News returns the headlines capability backed by the BBC News API. The raw
// article list is returned together with the selection guidance; the model
// does the picking.
func News(client *http.Client) capability.Capability {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return capability.Capability{
		Definition: definition(
			"get_news",
			"Get the latest news headlines. Returns top stories for you to select the most interesting.",
			objectSchema(map[string]any{}),
		),
		Handler: func(ctx context.Context, args string) (string, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, bbcNewsURL, nil)
			if err != nil {
				return "", err
			}
			resp, err := client.Do(req)
			if err != nil {
				return "", fmt.Errorf("news service: %w", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return "", fmt.Errorf("news service: status %d", resp.StatusCode)
			}

			var data map[string]json.RawMessage
			if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
				return "", fmt.Errorf("news service: decode: %w", err)
			}

			articles := extractArticles(data)
			if len(articles) == 0 {
				return "No news articles found.", nil
			}
			return renderArticles(articles), nil
		},
	}
}

// extractArticles flattens the per-section response and dedupes by
// normalized URL.
func extractArticles(data map[string]json.RawMessage) []article {
	seen := make(map[string]bool)
	var out []article

	// Sections arrive as top-level keys ("Latest", "World", ...).
	for section, raw := range data {
		if section == "status" {
			continue
		}
		var items []struct {
			Title    string `json:"title"`
			Summary  string `json:"summary"`
			NewsLink string `json:"news_link"`
		}
		if err := json.Unmarshal(raw, &items); err != nil {
			continue
		}
		for _, item := range items {
			u := normalizeURL(item.NewsLink)
			title := strings.TrimSpace(item.Title)
			if u == "" || seen[u] || title == "" {
				continue
			}
			seen[u] = true
			out = append(out, article{
				Title:   title,
				Summary: strings.TrimSpace(item.Summary),
				Section: section,
				URL:     u,
			})
		}
	}
	return out
}

// normalizeURL strips tracking parameters and fixes a recurring malformed
// prefix in the feed before deduplication.
func normalizeURL(u string) string {
	if u == "" {
		return ""
	}
	u = strings.ReplaceAll(u, "bbc.comhttps://", "https://")
	if i := strings.Index(u, "?"); i >= 0 {
		u = u[:i]
	}
	return strings.TrimSpace(u)
}

func renderArticles(articles []article) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d articles.\n", len(articles))
	sb.WriteString(interestGuidance)
	sb.WriteString("\n--- ARTICLES ---\n\n")
	for i, a := range articles {
		fmt.Fprintf(&sb, "%d. [%s] %s\n", i+1, a.Section, a.Title)
		if a.Summary != "" {
			fmt.Fprintf(&sb, "   %s\n", a.Summary)
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}
