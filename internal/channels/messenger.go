package channels

import (
	"encoding/json"
	"fmt"

	"github.com/kairon-labs/kairon-backend/internal/domain"
	"github.com/kairon-labs/kairon-backend/internal/pkg/apperr"
	"github.com/kairon-labs/kairon-backend/internal/platform/logger"
)

func init() {
	register(domain.ChannelMessenger, func(log *logger.Logger) Channel {
		return &messengerChannel{log: log.With("channel", "messenger"), channelType: domain.ChannelMessenger}
	})
	register(domain.ChannelInstagram, func(log *logger.Logger) Channel {
		return &messengerChannel{log: log.With("channel", "instagram"), channelType: domain.ChannelInstagram}
	})
}

// messengerChannel covers Facebook Messenger and Instagram; both ride Meta's
// graph webhook envelope and HMAC scheme. Instagram additionally surfaces
// comment webhooks and a dev-gate allow list.
type messengerChannel struct {
	log         *logger.Logger
	channelType domain.ChannelType
}

func (c *messengerChannel) Type() domain.ChannelType { return c.channelType }

type metaEnvelope struct {
	Object string `json:"object"`
	Entry  []struct {
		Messaging []metaMessaging `json:"messaging"`
		Changes   []struct {
			Field string `json:"field"`
			Value struct {
				ID       string `json:"id"`
				ParentID string `json:"parent_id"`
				Text     string `json:"text"`
				From     struct {
					ID       string `json:"id"`
					Username string `json:"username"`
				} `json:"from"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type metaMessaging struct {
	Sender struct {
		ID string `json:"id"`
	} `json:"sender"`
	Message struct {
		MID        string `json:"mid"`
		Text       string `json:"text"`
		QuickReply *struct {
			Payload string `json:"payload"`
		} `json:"quick_reply"`
		Attachments []struct {
			Type    string `json:"type"`
			Payload struct {
				URL string `json:"url"`
			} `json:"payload"`
		} `json:"attachments"`
	} `json:"message"`
	Postback struct {
		Payload string `json:"payload"`
	} `json:"postback"`
}

// Validate answers the hub.challenge GET handshake and checks
// X-Hub-Signature on POSTs.
func (c *messengerChannel) Validate(req *InboundRequest) (*ValidationResult, error) {
	if mode := req.Query.Get("hub.mode"); mode != "" {
		if req.Query.Get("hub.verify_token") != req.ConfigString("verify_token") {
			return nil, apperr.Unauthorized("Webhook verify token does not match")
		}
		return &ValidationResult{Challenge: req.Query.Get("hub.challenge")}, nil
	}

	secret := req.ConfigString("app_secret")
	sig := req.Headers.Get("X-Hub-Signature")
	if sig256 := req.Headers.Get("X-Hub-Signature-256"); sig256 != "" {
		if !VerifyHubSignatureSHA256(secret, req.Body, sig256) {
			return nil, apperr.Unauthorized("Could not verify webhook signature")
		}
		return &ValidationResult{}, nil
	}
	if secret == "" || !VerifyHubSignatureSHA1(secret, req.Body, sig) {
		return nil, apperr.Unauthorized("Could not verify webhook signature")
	}
	return &ValidationResult{}, nil
}

func (c *messengerChannel) HandleMessage(req *InboundRequest) ([]UserMessage, error) {
	var envelope metaEnvelope
	if err := json.Unmarshal(req.Body, &envelope); err != nil {
		return nil, apperr.Validation("Malformed messenger payload")
	}

	var out []UserMessage
	for _, entry := range envelope.Entry {
		for _, m := range entry.Messaging {
			text := normalizeMessengerText(m)
			if text == "" || m.Sender.ID == "" {
				continue
			}
			if !c.senderAllowed(req, m.Sender.ID) {
				continue
			}
			msg := NewUserMessage(text, m.Sender.ID, c.channelType, req.Bot, req.Account)
			msg.MessageID = m.Message.MID
			msg.WithMeta("out_channel", m.Sender.ID)
			out = append(out, msg)
		}
		if c.channelType != domain.ChannelInstagram {
			continue
		}
		// top-level comments become canonical messages; replies to replies
		// are the bot's own output coming back
		for _, change := range entry.Changes {
			if change.Field != "comments" || change.Value.ParentID != "" || change.Value.Text == "" {
				continue
			}
			if !c.senderAllowed(req, change.Value.From.ID) {
				continue
			}
			msg := NewUserMessage(change.Value.Text, change.Value.From.ID, c.channelType, req.Bot, req.Account)
			msg.WithMeta("comment_id", change.Value.ID)
			msg.WithMeta("static_comment_reply", "@"+change.Value.From.Username+" "+req.ConfigString("static_comment_reply"))
			out = append(out, msg)
		}
	}
	return out, nil
}

func normalizeMessengerText(m metaMessaging) string {
	if m.Message.QuickReply != nil && m.Message.QuickReply.Payload != "" {
		return fmt.Sprintf(`%s{"quick_reply":%q}`, PrefixQuickReply, m.Message.QuickReply.Payload)
	}
	if m.Message.Text != "" {
		return m.Message.Text
	}
	if m.Postback.Payload != "" {
		return m.Postback.Payload
	}
	if len(m.Message.Attachments) > 0 && m.Message.Attachments[0].Payload.URL != "" {
		return m.Message.Attachments[0].Payload.URL
	}
	return ""
}

// senderAllowed enforces Instagram's allowed_users dev gate; an empty list
// admits everyone.
func (c *messengerChannel) senderAllowed(req *InboundRequest, sender string) bool {
	if c.channelType != domain.ChannelInstagram {
		return true
	}
	raw, ok := req.Config["allowed_users"]
	if !ok {
		return true
	}
	list, ok := raw.([]interface{})
	if !ok || len(list) == 0 {
		return true
	}
	for _, u := range list {
		if s, ok := u.(string); ok && s == sender {
			return true
		}
	}
	return false
}
