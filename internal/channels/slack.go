package channels

import (
	"encoding/json"

	"github.com/kairon-labs/kairon-backend/internal/domain"
	"github.com/kairon-labs/kairon-backend/internal/pkg/apperr"
	"github.com/kairon-labs/kairon-backend/internal/platform/logger"
)

func init() {
	register(domain.ChannelSlack, func(log *logger.Logger) Channel {
		return &slackChannel{log: log.With("channel", "slack")}
	})
}

type slackChannel struct {
	log *logger.Logger
}

func (c *slackChannel) Type() domain.ChannelType { return domain.ChannelSlack }

type slackEnvelope struct {
	Type      string `json:"type"`
	Challenge string `json:"challenge"`
	Event     struct {
		Type    string `json:"type"`
		SubType string `json:"subtype"`
		Text    string `json:"text"`
		User    string `json:"user"`
		BotID   string `json:"bot_id"`
		TS      string `json:"ts"`
	} `json:"event"`
}

// Validate answers Slack's url_verification handshake and otherwise checks
// the v0 request signature.
func (c *slackChannel) Validate(req *InboundRequest) (*ValidationResult, error) {
	var envelope slackEnvelope
	if err := json.Unmarshal(req.Body, &envelope); err == nil && envelope.Type == "url_verification" {
		return &ValidationResult{Challenge: envelope.Challenge}, nil
	}

	secret := req.ConfigString("slack_signing_secret")
	ts := req.Headers.Get("X-Slack-Request-Timestamp")
	sig := req.Headers.Get("X-Slack-Signature")
	if secret == "" || !VerifySlackSignature(secret, ts, req.Body, sig) {
		return nil, apperr.Unauthorized("Could not verify slack request signature")
	}
	return &ValidationResult{}, nil
}

func (c *slackChannel) HandleMessage(req *InboundRequest) ([]UserMessage, error) {
	var envelope slackEnvelope
	if err := json.Unmarshal(req.Body, &envelope); err != nil {
		return nil, apperr.Validation("Malformed slack payload")
	}
	// drop our own bot echoes and non-message events
	if envelope.Event.Type != "message" || envelope.Event.BotID != "" || envelope.Event.Text == "" {
		return nil, nil
	}
	msg := NewUserMessage(envelope.Event.Text, envelope.Event.User, domain.ChannelSlack, req.Bot, req.Account)
	msg.MessageID = envelope.Event.TS
	msg.WithMeta("out_channel", envelope.Event.User)
	return []UserMessage{msg}, nil
}
