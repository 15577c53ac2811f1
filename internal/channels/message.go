package channels

import (
	"github.com/google/uuid"

	"github.com/kairon-labs/kairon-backend/internal/domain"
)

// Structured-message prefixes. Providers collapse non-text payloads into a
// prefixed JSON body the dialogue engine can parse back out.
const (
	PrefixQuickReply    = "/k_quick_reply"
	PrefixQuickReplyMsg = "/k_quick_reply_msg"
	PrefixInteractive   = "/k_interactive_msg"
	PrefixMultimedia    = "/k_multimedia_msg"
	PrefixOrder         = "/k_order_msg"
)

// UserMessage is the canonical inbound message every provider normalizes to.
type UserMessage struct {
	Text      string                 `json:"text"`
	SenderID  string                 `json:"sender_id"`
	Channel   domain.ChannelType     `json:"channel"`
	Metadata  map[string]interface{} `json:"metadata"`
	MessageID string                 `json:"message_id,omitempty"`
}

// NewUserMessage builds a canonical message with the base metadata every
// channel carries; provider adapters add their own fields on top.
func NewUserMessage(text, senderID string, channel domain.ChannelType, bot, account uuid.UUID) UserMessage {
	return UserMessage{
		Text:     text,
		SenderID: senderID,
		Channel:  channel,
		Metadata: map[string]interface{}{
			"is_integration_user": true,
			"bot":                 bot.String(),
			"account":             account.String(),
			"channel_type":        string(channel),
			"tabname":             "default",
		},
	}
}

func (m *UserMessage) WithMeta(key string, value interface{}) *UserMessage {
	if m.Metadata == nil {
		m.Metadata = map[string]interface{}{}
	}
	m.Metadata[key] = value
	return m
}
