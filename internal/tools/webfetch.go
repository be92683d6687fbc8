package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"
)

const (
	maxFetchURLs      = 20
	maxFetchBodyBytes = 2 << 20
	maxFetchChars     = 20000
	fetchTimeout      = 10 * time.Second
	fetchUserAgent    = "Berkelium-WebFetch/1.0 (Web Content Analysis Tool)"
)

var (
	urlPattern          = regexp.MustCompile(`https?://[^\s<>"{}|\\^` + "`" + `\[\]]+`)
	multiNewlinePattern = regexp.MustCompile(`\n{3,}`)
	multiSpacePattern   = regexp.MustCompile(`[ \t]{2,}`)
)

// WebFetchTool fetches the URLs embedded in a prompt and returns their text
type WebFetchTool struct {
	httpClient *http.Client
}

// NewWebFetchTool creates a WebFetchTool with a bounded HTTP client.
func NewWebFetchTool() *WebFetchTool {
	return NewWebFetchToolWithClient(&http.Client{Timeout: 2 * fetchTimeout})
}

// NewWebFetchToolWithClient creates a WebFetchTool using client.
func NewWebFetchToolWithClient(client *http.Client) *WebFetchTool {
	return &WebFetchTool{httpClient: client}
}

func (t *WebFetchTool) Name() string {
	return "web_fetch"
}

func (t *WebFetchTool) Description() string {
	return "Fetch and read content from up to 20 http(s) URLs contained in the prompt. HTML is reduced to readable text. " +
		"Include the URLs and what to extract from them in the prompt."
}

func (t *WebFetchTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"prompt": map[string]any{
				"type":        "string",
				"description": "A request containing one or more URLs (starting with http:// or https://) and instructions for their content.",
			},
		},
		"required": []string{"prompt"},
	}
}

func (t *WebFetchTool) Permission() PermissionLevel {
	return PermissionNetwork
}

type fetchResult struct {
	url         string
	ok          bool
	content     string
	contentType string
}

func (t *WebFetchTool) Execute(ctx context.Context, input map[string]any) (string, error) {
	prompt, err := requireString(input, "prompt")
	if err != nil {
		return "", err
	}

	urls := uniqueURLs(urlPattern.FindAllString(prompt, -1))
	if len(urls) == 0 {
		return "", fmt.Errorf("no URLs found in the prompt. Please include at least one URL starting with http:// or https://")
	}
	if len(urls) > maxFetchURLs {
		return "", fmt.Errorf("too many URLs detected. Maximum of %d URLs is allowed", maxFetchURLs)
	}

	results := make([]fetchResult, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, u := range urls {
		g.Go(func() error {
			results[i] = t.fetch(gctx, u)
			return nil
		})
	}
	_ = g.Wait()

	var ok, failed []fetchResult
	for _, r := range results {
		if r.ok {
			ok = append(ok, r)
		} else {
			failed = append(failed, r)
		}
	}

	if len(ok) == 0 {
		var sb strings.Builder
		fmt.Fprintf(&sb, "failed to fetch content from any of the %d URL(s). Errors:", len(urls))
		for _, f := range failed {
			fmt.Fprintf(&sb, "\n- %s: %s", f.url, f.content)
		}
		return "", fmt.Errorf("%s", sb.String())
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Successfully fetched content from %d of %d URL(s):\n\n", len(ok), len(urls))
	fmt.Fprintf(&sb, "Original Request: %s\n\n", prompt)
	for _, r := range ok {
		fmt.Fprintf(&sb, "--- Content from %s ---\n", r.url)
		if r.contentType != "" {
			fmt.Fprintf(&sb, "Content-Type: %s\n", r.contentType)
		}
		sb.WriteString(r.content)
		sb.WriteString("\n\n")
	}
	if len(failed) > 0 {
		sb.WriteString("--- Fetch Warnings ---\n")
		for _, f := range failed {
			fmt.Fprintf(&sb, "Could not fetch %s: %s\n", f.url, f.content)
		}
	}
	sb.WriteString("--- End of fetched content ---")
	return sb.String(), nil
}

func uniqueURLs(urls []string) []string {
	seen := make(map[string]bool, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		u = strings.TrimRight(u, ".,;:!?)'")
		if !seen[u] {
			seen[u] = true
			out = append(out, u)
		}
	}
	return out
}

func (t *WebFetchTool) fetch(ctx context.Context, url string) fetchResult {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fetchResult{url: url, content: fmt.Sprintf("Failed to fetch: %v", err)}
	}
	req.Header.Set("User-Agent", fetchUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,text/plain;q=0.8,*/*;q=0.1")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fetchResult{url: url, content: fmt.Sprintf("Failed to fetch: %v", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fetchResult{url: url, content: fmt.Sprintf("Failed to fetch: HTTP %s", resp.Status)}
	}

	contentType := resp.Header.Get("Content-Type")
	if !isTextContent(contentType) {
		return fetchResult{url: url, content: fmt.Sprintf("Unsupported content type: %s. Only text-based content is supported.", contentType)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBodyBytes))
	if err != nil {
		return fetchResult{url: url, content: fmt.Sprintf("Failed to read response: %v", err)}
	}

	content := string(body)
	if strings.Contains(contentType, "html") {
		if text, err := htmlToText(content); err == nil {
			content = text
		}
	}
	if len(content) > maxFetchChars {
		content = content[:maxFetchChars] + "\n\n[...truncated...]"
	}
	return fetchResult{url: url, ok: true, content: strings.TrimSpace(content), contentType: contentType}
}

func isTextContent(contentType string) bool {
	if contentType == "" {
		return true
	}
	for _, prefix := range []string{"text/", "application/json", "application/xml", "application/xhtml"} {
		if strings.Contains(contentType, prefix) {
			return true
		}
	}
	return false
}

// htmlToText reduces an HTML document to readable text with light markdown structure.
func htmlToText(doc string) (string, error) {
	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	extractText(root, &sb, 0)

	text := multiSpacePattern.ReplaceAllString(sb.String(), " ")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text = multiNewlinePattern.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.TrimSpace(text), nil
}

func extractText(n *html.Node, sb *strings.Builder, depth int) {
	if depth > 100 {
		return
	}

	switch n.Type {
	case html.TextNode:
		if text := strings.TrimSpace(n.Data); text != "" {
			sb.WriteString(text)
			sb.WriteString(" ")
		}
	case html.CommentNode:
		return
	case html.ElementNode:
		switch n.Data {
		case "script", "style", "noscript", "iframe", "svg", "template":
			return
		case "h1", "h2", "h3", "h4", "h5", "h6":
			sb.WriteString("\n\n")
			sb.WriteString(strings.Repeat("#", int(n.Data[1]-'0')))
			sb.WriteString(" ")
		case "p", "div", "section", "article", "table", "tr":
			sb.WriteString("\n\n")
		case "br":
			sb.WriteString("\n")
		case "li":
			sb.WriteString("\n- ")
		case "pre":
			sb.WriteString("\n\n```\n")
		case "img":
			for _, a := range n.Attr {
				if a.Key == "alt" && a.Val != "" {
					fmt.Fprintf(sb, "[Image: %s] ", a.Val)
				}
			}
			return
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		extractText(c, sb, depth+1)
	}

	if n.Type == html.ElementNode {
		switch n.Data {
		case "h1", "h2", "h3", "h4", "h5", "h6", "p", "li":
			sb.WriteString("\n")
		case "pre":
			sb.WriteString("\n```\n\n")
		}
	}
}
