// Package websearch fetches short web snippets from DuckDuckGo's HTML endpoint.
package websearch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// NoResults is returned by Search when nothing usable was found.
const NoResults = "No relevant web results found from DuckDuckGo."

// DefaultBaseURL is DuckDuckGo's script-free results page.
const DefaultBaseURL = "https://html.duckduckgo.com/html/"

// Result is one search hit.
type Result struct {
	Title   string
	Snippet string
	Link    string
}

// Client queries DuckDuckGo.
type Client struct {
	baseURL string
	region  string
	http    *http.Client
	logger  *zap.Logger
}

// New creates a client. An empty baseURL selects DefaultBaseURL.
func New(baseURL, region string, timeout time.Duration, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: baseURL,
		region:  region,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Search returns up to maxResults hits formatted one per line as
// "- **title** — snippet (Source: link)", or NoResults.
func (c *Client) Search(ctx context.Context, query string, maxResults int) (string, error) {
	results, err := c.Results(ctx, query, maxResults)
	if err != nil {
		return "", err
	}
	return Format(results), nil
}

// Results returns up to maxResults hits that carry a snippet.
func (c *Client) Results(ctx context.Context, query string, maxResults int) ([]Result, error) {
	form := url.Values{}
	form.Set("q", query)
	form.Set("kp", "-1")
	if c.region != "" {
		form.Set("kl", c.region)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("duckduckgo search failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; medrag)")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("duckduckgo search failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("duckduckgo search failed: status %d", resp.StatusCode)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("duckduckgo search failed: %w", err)
	}
	results := Parse(doc, maxResults)
	c.logger.Debug("web search", zap.String("query", query), zap.Int("results", len(results)))
	return results, nil
}

// Format renders results the way they are injected into the system prompt.
func Format(results []Result) string {
	if len(results) == 0 {
		return NoResults
	}
	lines := make([]string, len(results))
	for i, r := range results {
		lines[i] = fmt.Sprintf("- **%s** — %s (Source: %s)", r.Title, r.Snippet, r.Link)
	}
	return strings.Join(lines, "\n")
}

// Parse walks a DuckDuckGo results page. Hits without a snippet are skipped.
func Parse(doc *html.Node, maxResults int) []Result {
	var out []Result
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if maxResults > 0 && len(out) >= maxResults {
			return
		}
		if n.Type == html.ElementNode && hasClass(n, "result") && !hasClass(n, "result--ad") {
			if r, ok := parseResult(n); ok {
				out = append(out, r)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return out
}

func parseResult(n *html.Node) (Result, bool) {
	var r Result
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch {
			case n.DataAtom == atom.A && hasClass(n, "result__a"):
				r.Title = text(n)
				r.Link = resolveLink(attr(n, "href"))
			case hasClass(n, "result__snippet"):
				r.Snippet = text(n)
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return r, r.Snippet != ""
}

// resolveLink unwraps DuckDuckGo's redirect links.
func resolveLink(href string) string {
	if href == "" {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	if u.Scheme == "" && strings.HasPrefix(href, "//") {
		u.Scheme = "https"
		return u.String()
	}
	return href
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func text(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}
