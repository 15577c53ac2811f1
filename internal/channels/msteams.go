package channels

import (
	"encoding/json"

	"github.com/kairon-labs/kairon-backend/internal/domain"
	"github.com/kairon-labs/kairon-backend/internal/pkg/apperr"
	"github.com/kairon-labs/kairon-backend/internal/platform/logger"
)

func init() {
	register(domain.ChannelMSTeams, func(log *logger.Logger) Channel {
		return &msteamsChannel{log: log.With("channel", "msteams")}
	})
}

type msteamsChannel struct {
	log *logger.Logger
}

func (c *msteamsChannel) Type() domain.ChannelType { return domain.ChannelMSTeams }

type msteamsActivity struct {
	Type         string `json:"type"`
	ID           string `json:"id"`
	Text         string `json:"text"`
	ServiceURL   string `json:"serviceUrl"`
	Conversation struct {
		ID string `json:"id"`
	} `json:"conversation"`
	From struct {
		ID string `json:"id"`
	} `json:"from"`
}

// Teams authenticity rides on the integration token embedded in the webhook
// URL; the handler resolves the token hash to this config before dispatch.
func (c *msteamsChannel) Validate(req *InboundRequest) (*ValidationResult, error) {
	if req.ConfigString("app_id") == "" {
		return nil, apperr.Validation("Missing msteams app_id")
	}
	return &ValidationResult{}, nil
}

func (c *msteamsChannel) HandleMessage(req *InboundRequest) ([]UserMessage, error) {
	var activity msteamsActivity
	if err := json.Unmarshal(req.Body, &activity); err != nil {
		return nil, apperr.Validation("Malformed msteams payload")
	}
	if activity.Type != "message" || activity.Text == "" {
		return nil, nil
	}
	msg := NewUserMessage(activity.Text, activity.From.ID, domain.ChannelMSTeams, req.Bot, req.Account)
	msg.MessageID = activity.ID
	msg.WithMeta("out_channel", activity.Conversation.ID)
	msg.WithMeta("service_url", activity.ServiceURL)
	return []UserMessage{msg}, nil
}
