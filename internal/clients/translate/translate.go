// Package translate is the text-translation provider client backing the
// multilingual event. It speaks the LibreTranslate JSON API, which a
// self-hosted instance or any compatible gateway exposes.
package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kairon-labs/kairon-backend/internal/pkg/apperr"
	"github.com/kairon-labs/kairon-backend/internal/platform/logger"
)

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     *logger.Logger
}

// New returns nil when no endpoint is configured, which keeps the
// multilingual event disabled instead of failing at startup.
func New(baseURL, apiKey string, baseLog *logger.Logger) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 30 * time.Second},
		log:     baseLog.With("client", "Translate"),
	}
}

func (c *Client) Translate(ctx context.Context, text, destLanguage string) (string, error) {
	payload := map[string]interface{}{
		"q":      text,
		"source": "auto",
		"target": destLanguage,
		"format": "text",
	}
	if c.apiKey != "" {
		payload["api_key"] = c.apiKey
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", apperr.Internal("encode translate payload", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/translate", bytes.NewReader(body))
	if err != nil {
		return "", apperr.Internal("build translate request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return "", apperr.Provider(err.Error())
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode >= 300 {
		return "", apperr.Provider(fmt.Sprintf("translator returned %d: %s", resp.StatusCode, raw))
	}
	var out struct {
		TranslatedText string `json:"translatedText"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", apperr.Internal("decode translate response", err)
	}
	return out.TranslatedText, nil
}
