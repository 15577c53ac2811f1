// Package webfetch retrieves remote page text for the web_search event.
package webfetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/kairon-labs/kairon-backend/internal/pkg/apperr"
	"github.com/kairon-labs/kairon-backend/internal/platform/logger"
)

const maxBodyBytes = 4 << 20

var (
	scriptRe = regexp.MustCompile(`(?is)<(script|style)[^>]*>.*?</(script|style)>`)
	tagRe    = regexp.MustCompile(`(?s)<[^>]+>`)
	spaceRe  = regexp.MustCompile(`\s+`)
)

type Client struct {
	http *http.Client
	log  *logger.Logger
}

func New(baseLog *logger.Logger) *Client {
	return &Client{
		http: &http.Client{Timeout: 30 * time.Second},
		log:  baseLog.With("client", "WebFetch"),
	}
}

// Fetch downloads the page and strips markup down to plain text. The caller
// chunks the text into responses; no parsing beyond tag removal happens here.
func (c *Client) Fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", apperr.Validation("URL is malformed")
	}
	req.Header.Set("User-Agent", "kairon-content-fetcher/1.0")
	resp, err := c.http.Do(req)
	if err != nil {
		return "", apperr.Provider(err.Error())
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", apperr.Provider(fmt.Sprintf("fetch returned %d for %s", resp.StatusCode, url))
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", apperr.Provider(err.Error())
	}
	text := scriptRe.ReplaceAllString(string(raw), " ")
	text = tagRe.ReplaceAllString(text, " ")
	text = spaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text), nil
}
