// Package chatwoot is the live-agent provider client. Handoff creates a
// conversation on the agent desk and replays the bot transcript into it.
package chatwoot

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

const defaultBaseURL = "https://app.chatwoot.com"

// Config is the per-bot connection read from LiveAgentConfig.Config.
type Config struct {
	BaseURL         string
	AccountID       string
	InboxIdentifier string
	APIAccessToken  string
}

// ConfigFrom extracts the provider settings from the stored config map.
func ConfigFrom(m map[string]interface{}) Config {
	str := func(key string) string {
		if v, ok := m[key].(string); ok {
			return strings.TrimSpace(v)
		}
		return ""
	}
	cfg := Config{
		BaseURL:         str("base_url"),
		AccountID:       str("account_id"),
		InboxIdentifier: str("inbox_identifier"),
		APIAccessToken:  str("api_access_token"),
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	return cfg
}

type Client struct {
	http *http.Client
	log  *logger.Logger
}

func New(baseLog *logger.Logger) *Client {
	return &Client{
		http: &http.Client{Timeout: 15 * time.Second},
		log:  baseLog.With("client", "Chatwoot"),
	}
}

// CreateConversation registers the sender as an inbox contact and opens a
// conversation, returning its numeric id for the handoff destination.
func (c *Client) CreateConversation(ctx context.Context, config map[string]interface{}, senderID string) (int, error) {
	cfg := ConfigFrom(config)
	if cfg.InboxIdentifier == "" {
		return 0, apperr.Validation("Live agent inbox is not configured")
	}

	var contact struct {
		SourceID string `json:"source_id"`
	}
	contactURL := fmt.Sprintf("%s/public/api/v1/inboxes/%s/contacts", cfg.BaseURL, cfg.InboxIdentifier)
	if err := c.post(ctx, cfg, contactURL, map[string]interface{}{"identifier": senderID, "name": senderID}, &contact); err != nil {
		return 0, err
	}

	var conversation struct {
		ID int `json:"id"`
	}
	conversationURL := fmt.Sprintf("%s/public/api/v1/inboxes/%s/contacts/%s/conversations", cfg.BaseURL, cfg.InboxIdentifier, contact.SourceID)
	if err := c.post(ctx, cfg, conversationURL, map[string]interface{}{}, &conversation); err != nil {
		return 0, err
	}
	c.log.Info("Handoff conversation created", "sender_id", senderID, "conversation_id", conversation.ID)
	return conversation.ID, nil
}

// SendMessage appends one message to an open conversation. messageType is
// "incoming" for user turns and "outgoing" for bot turns.
func (c *Client) SendMessage(ctx context.Context, config map[string]interface{}, conversationID int, content, messageType string) error {
	cfg := ConfigFrom(config)
	if cfg.AccountID == "" {
		return apperr.Validation("Live agent account is not configured")
	}
	url := fmt.Sprintf("%s/api/v1/accounts/%s/conversations/%d/messages", cfg.BaseURL, cfg.AccountID, conversationID)
	return c.post(ctx, cfg, url, map[string]interface{}{
		"content":      content,
		"message_type": messageType,
		"private":      false,
	}, nil)
}

func (c *Client) post(ctx context.Context, cfg Config, url string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return apperr.Internal("encode live agent payload", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return apperr.Internal("build live agent request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if cfg.APIAccessToken != "" {
		req.Header.Set("api_access_token", cfg.APIAccessToken)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return apperr.Provider(err.Error())
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode >= 300 {
		return apperr.Provider(fmt.Sprintf("live agent returned %d: %s", resp.StatusCode, raw))
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return apperr.Internal("decode live agent response", err)
		}
	}
	return nil
}
