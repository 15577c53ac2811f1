package channels

import (
	"encoding/json"
	"time"

	"github.com/kairon-labs/kairon-backend/internal/domain"
	"github.com/kairon-labs/kairon-backend/internal/pkg/apperr"
	"github.com/kairon-labs/kairon-backend/internal/platform/logger"
)

func init() {
	register(domain.ChannelBusinessMessages, func(log *logger.Logger) Channel {
		return &businessMessagesChannel{log: log.With("channel", "business_messages"), maxAge: 5 * time.Minute}
	})
}

type businessMessagesChannel struct {
	log    *logger.Logger
	maxAge time.Duration
}

func (c *businessMessagesChannel) Type() domain.ChannelType { return domain.ChannelBusinessMessages }

type businessMessagesPayload struct {
	Secret  string `json:"secret"`
	Message struct {
		MessageID  string `json:"messageId"`
		Text       string `json:"text"`
		CreateTime string `json:"createTime"`
	} `json:"message"`
	Context struct {
		UserInfo struct {
			DisplayName string `json:"displayName"`
		} `json:"userInfo"`
	} `json:"context"`
	ConversationID string `json:"conversationId"`
}

func (c *businessMessagesChannel) Validate(req *InboundRequest) (*ValidationResult, error) {
	var payload businessMessagesPayload
	if err := json.Unmarshal(req.Body, &payload); err != nil {
		return nil, apperr.Validation("Malformed business messages payload")
	}
	// webhook registration handshake echoes the shared secret
	if payload.Secret != "" {
		if payload.Secret != req.ConfigString("verification_token") {
			return nil, apperr.Unauthorized("Could not verify business messages secret")
		}
		return &ValidationResult{Challenge: payload.Secret}, nil
	}
	sig := req.Headers.Get("X-Goog-Signature")
	secret := req.ConfigString("partner_key")
	if secret == "" || !VerifyLineSignature(secret, req.Body, sig) {
		return nil, apperr.Unauthorized("Could not verify business messages signature")
	}
	return &ValidationResult{}, nil
}

func (c *businessMessagesChannel) HandleMessage(req *InboundRequest) ([]UserMessage, error) {
	var payload businessMessagesPayload
	if err := json.Unmarshal(req.Body, &payload); err != nil {
		return nil, apperr.Validation("Malformed business messages payload")
	}
	if payload.Message.Text == "" || payload.ConversationID == "" {
		return nil, nil
	}
	// stale retries are dropped rather than replayed into the conversation
	if created, err := time.Parse(time.RFC3339Nano, payload.Message.CreateTime); err == nil {
		if time.Since(created) > c.maxAge {
			c.log.Warn("Dropping stale business message", "message_id", payload.Message.MessageID)
			return nil, nil
		}
	}
	msg := NewUserMessage(payload.Message.Text, payload.ConversationID, domain.ChannelBusinessMessages, req.Bot, req.Account)
	msg.MessageID = payload.Message.MessageID
	msg.WithMeta("display_name", payload.Context.UserInfo.DisplayName)
	return []UserMessage{msg}, nil
}
