// Package builtin provides in-process tool servers that appear alongside
// remote MCP servers but execute without a network session.
package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/swaggest/jsonschema-go"

	"github.com/luohy15/y-gui-sub000/src/chattype"
)

const (
	// ServerName is how the fetch server appears in tool prompts and calls.
	ServerName = "fetch"

	fetchToolName = "fetch"
	maxBodySize   = 5 * 1024 * 1024
	fetchTimeout  = 10 * time.Second
)

// fetchInput is the fetch tool's argument shape; its JSON schema is
// reflected from the struct tags.
type fetchInput struct {
	URL string `json:"url" jsonschema:"required,description=The http(s) URL to fetch"`
}

// FetchServer fetches a web page and returns its readable content as
// markdown.
type FetchServer struct {
	client *http.Client
	tools  []chattype.McpTool
	logger *slog.Logger
}

// NewFetchServer builds the fetch server, reflecting the tool schema once.
func NewFetchServer(logger *slog.Logger) (*FetchServer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	reflector := jsonschema.Reflector{}
	schema, err := reflector.Reflect(fetchInput{})
	if err != nil {
		return nil, fmt.Errorf("failed to reflect fetch schema: %w", err)
	}
	rawSchema, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal fetch schema: %w", err)
	}

	return &FetchServer{
		client: &http.Client{
			Timeout: fetchTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
		tools: []chattype.McpTool{{
			Name:        fetchToolName,
			Description: "Fetch a web page and return its readable content as markdown.",
			InputSchema: rawSchema,
		}},
		logger: logger.With("component", "builtin_fetch"),
	}, nil
}

// Name implements mcp.BuiltinServer.
func (s *FetchServer) Name() string { return ServerName }

// Tools implements mcp.BuiltinServer.
func (s *FetchServer) Tools() []chattype.McpTool { return s.tools }

// CallTool implements mcp.BuiltinServer.
func (s *FetchServer) CallTool(ctx context.Context, tool string, args map[string]any) (string, error) {
	if tool != fetchToolName {
		return "", fmt.Errorf("unknown tool '%s'", tool)
	}
	url, _ := args["url"].(string)
	if url == "" {
		return "", fmt.Errorf("url argument is required")
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return "", fmt.Errorf("url must start with http:// or https://")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("User-Agent", "y-gui/1.0")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch URL: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("request failed with status code %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %v", err)
	}

	contentType := resp.Header.Get("Content-Type")
	content := string(body)

	switch {
	case strings.Contains(contentType, "text/html"):
		markdown, err := htmlToMarkdown(content)
		if err != nil {
			s.logger.Warn("html conversion failed, returning extracted text", "url", url, "error", err)
			return extractText(content)
		}
		return markdown, nil
	case strings.Contains(contentType, "application/json"):
		return "```json\n" + content + "\n```", nil
	default:
		return content, nil
	}
}

func htmlToMarkdown(html string) (string, error) {
	converter := md.NewConverter("", true, nil)
	return converter.ConvertString(html)
}

var collapseBlank = regexp.MustCompile(`\n{3,}`)

// extractText pulls visible text out of HTML, dropping scripts and styles.
func extractText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}
	doc.Find("script, style").Each(func(i int, sel *goquery.Selection) {
		sel.Remove()
	})
	text := strings.TrimSpace(doc.Text())
	return collapseBlank.ReplaceAllString(text, "\n\n"), nil
}
