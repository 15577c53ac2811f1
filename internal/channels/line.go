package channels

import (
	"encoding/json"

	"github.com/kairon-labs/kairon-backend/internal/domain"
	"github.com/kairon-labs/kairon-backend/internal/pkg/apperr"
	"github.com/kairon-labs/kairon-backend/internal/platform/logger"
)

func init() {
	register(domain.ChannelLine, func(log *logger.Logger) Channel {
		return &lineChannel{log: log.With("channel", "line")}
	})
}

type lineChannel struct {
	log *logger.Logger
}

func (c *lineChannel) Type() domain.ChannelType { return domain.ChannelLine }

type lineEnvelope struct {
	Events []struct {
		Type       string `json:"type"`
		ReplyToken string `json:"replyToken"`
		Source     struct {
			UserID string `json:"userId"`
		} `json:"source"`
		Message struct {
			ID   string `json:"id"`
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"message"`
	} `json:"events"`
}

func (c *lineChannel) Validate(req *InboundRequest) (*ValidationResult, error) {
	secret := req.ConfigString("channel_secret")
	sig := req.Headers.Get("X-Line-Signature")
	if secret == "" || !VerifyLineSignature(secret, req.Body, sig) {
		return nil, apperr.Unauthorized("Could not verify line signature")
	}
	return &ValidationResult{}, nil
}

func (c *lineChannel) HandleMessage(req *InboundRequest) ([]UserMessage, error) {
	var envelope lineEnvelope
	if err := json.Unmarshal(req.Body, &envelope); err != nil {
		return nil, apperr.Validation("Malformed line payload")
	}
	var out []UserMessage
	for _, event := range envelope.Events {
		if event.Type != "message" || event.Message.Type != "text" || event.Message.Text == "" {
			continue
		}
		msg := NewUserMessage(event.Message.Text, event.Source.UserID, domain.ChannelLine, req.Bot, req.Account)
		msg.MessageID = event.Message.ID
		msg.WithMeta("reply_token", event.ReplyToken)
		out = append(out, msg)
	}
	return out, nil
}
