package channels

import (
	"encoding/json"
	"strconv"

	"github.com/kairon-labs/kairon-backend/internal/domain"
	"github.com/kairon-labs/kairon-backend/internal/pkg/apperr"
	"github.com/kairon-labs/kairon-backend/internal/platform/logger"
)

func init() {
	register(domain.ChannelTelegram, func(log *logger.Logger) Channel {
		return &telegramChannel{log: log.With("channel", "telegram")}
	})
}

type telegramChannel struct {
	log *logger.Logger
}

func (c *telegramChannel) Type() domain.ChannelType { return domain.ChannelTelegram }

type telegramUpdate struct {
	UpdateID int64 `json:"update_id"`
	Message  struct {
		MessageID int64  `json:"message_id"`
		Text      string `json:"text"`
		From      struct {
			ID int64 `json:"id"`
		} `json:"from"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
	} `json:"message"`
	CallbackQuery struct {
		Data string `json:"data"`
		From struct {
			ID int64 `json:"id"`
		} `json:"from"`
	} `json:"callback_query"`
}

// Telegram sends no inbound signature; authenticity comes from the opaque
// token hash embedded in the webhook path, which the handler resolves before
// this adapter runs.
func (c *telegramChannel) Validate(req *InboundRequest) (*ValidationResult, error) {
	if req.ConfigString("access_token") == "" {
		return nil, apperr.Validation("Missing telegram access_token")
	}
	return &ValidationResult{}, nil
}

func (c *telegramChannel) HandleMessage(req *InboundRequest) ([]UserMessage, error) {
	var update telegramUpdate
	if err := json.Unmarshal(req.Body, &update); err != nil {
		return nil, apperr.Validation("Malformed telegram payload")
	}

	text := update.Message.Text
	sender := strconv.FormatInt(update.Message.From.ID, 10)
	chat := strconv.FormatInt(update.Message.Chat.ID, 10)
	if text == "" && update.CallbackQuery.Data != "" {
		text = update.CallbackQuery.Data
		sender = strconv.FormatInt(update.CallbackQuery.From.ID, 10)
		chat = sender
	}
	if text == "" || sender == "0" {
		return nil, nil
	}

	msg := NewUserMessage(text, sender, domain.ChannelTelegram, req.Bot, req.Account)
	msg.MessageID = strconv.FormatInt(update.Message.MessageID, 10)
	msg.WithMeta("out_channel", chat)
	return []UserMessage{msg}, nil
}
