package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/kairon-labs/kairon-backend/internal/channels"
	accountrepo "github.com/kairon-labs/kairon-backend/internal/data/repos/account"
	channelsrepo "github.com/kairon-labs/kairon-backend/internal/data/repos/channels"
	"github.com/kairon-labs/kairon-backend/internal/domain"
	"github.com/kairon-labs/kairon-backend/internal/http/response"
	"github.com/kairon-labs/kairon-backend/internal/pkg/apperr"
	"github.com/kairon-labs/kairon-backend/internal/pkg/dbctx"
	"github.com/kairon-labs/kairon-backend/internal/platform/logger"
	"github.com/kairon-labs/kairon-backend/internal/services"
)

// WebhookHandler is the provider-facing ingress: one tokenized endpoint per
// channel config, fanning into the adapter registry and the conversation
// pipeline.
type WebhookHandler struct {
	channels     *services.ChannelService
	conversation *services.ConversationService
	bots         accountrepo.BotRepo
	channelLogs  channelsrepo.ChannelLogRepo
	log          *logger.Logger
}

func NewWebhookHandler(
	channelSvc *services.ChannelService,
	conversation *services.ConversationService,
	bots accountrepo.BotRepo,
	channelLogs channelsrepo.ChannelLogRepo,
	baseLog *logger.Logger,
) *WebhookHandler {
	return &WebhookHandler{
		channels:     channelSvc,
		conversation: conversation,
		bots:         bots,
		channelLogs:  channelLogs,
		log:          baseLog.With("handler", "WebhookHandler"),
	}
}

// Verify handles provider GET handshakes (Meta hub challenge, Slack OAuth
// redirect, Telegram probe).
// GET /api/webhook/:channel/:bot/:token
func (h *WebhookHandler) Verify(c *gin.Context) {
	req, adapter, _, err := h.resolve(c, nil)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := adapter.Validate(req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if result != nil && result.Challenge != "" {
		c.String(http.StatusOK, result.Challenge)
		return
	}
	c.String(http.StatusOK, "ok")
}

// Receive handles provider POST deliveries.
// POST /api/webhook/:channel/:bot/:token
func (h *WebhookHandler) Receive(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 4<<20))
	if err != nil {
		response.Error(c, apperr.Validation("Unreadable request body"))
		return
	}
	req, adapter, config, err := h.resolve(c, body)
	if err != nil {
		response.Error(c, err)
		return
	}
	if _, err := adapter.Validate(req); err != nil {
		response.Error(c, err)
		return
	}

	// Past this point the call is authentic. Failures are absorbed so the
	// provider gets its ack and does not retry-flood the endpoint.
	messages, err := adapter.HandleMessage(req)
	if err != nil {
		h.log.Warn("Webhook payload rejected", "bot", config.Bot.String(), "channel", string(config.ConnectorType), "error", err)
		c.String(http.StatusOK, "ok")
		return
	}
	for _, msg := range messages {
		h.process(c, config, msg)
	}
	c.String(http.StatusOK, "ok")
}

// resolve authenticates the path token and binds the adapter for the
// connector named in the path.
func (h *WebhookHandler) resolve(c *gin.Context, body []byte) (*channels.InboundRequest, channels.Channel, *domain.ChannelConfig, error) {
	connector := domain.ChannelType(c.Param("channel"))
	botID, err := uuid.Parse(c.Param("bot"))
	if err != nil {
		return nil, nil, nil, apperr.Validation("Invalid bot id")
	}
	config, err := h.channels.ResolveByToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		return nil, nil, nil, err
	}
	if config.Bot != botID || config.ConnectorType != connector {
		return nil, nil, nil, apperr.Forbidden(apperr.MsgBotAccessDenied)
	}
	adapter, err := channels.ForType(connector, h.log)
	if err != nil {
		return nil, nil, nil, err
	}
	bot, err := h.bots.GetByID(dbctx.New(c.Request.Context()), botID)
	if err != nil {
		return nil, nil, nil, apperr.FromDB(err, "Bot does not exist")
	}
	return &channels.InboundRequest{
		Ctx:     c.Request.Context(),
		Body:    body,
		Headers: c.Request.Header,
		Query:   c.Request.URL.Query(),
		Bot:     bot.ID,
		Account: bot.Account,
		Config:  map[string]interface{}(config.Config),
	}, adapter, config, nil
}

// process runs one normalized message through the conversation pipeline and
// ships the replies back out through the provider responder.
func (h *WebhookHandler) process(c *gin.Context, config *domain.ChannelConfig, msg channels.UserMessage) {
	ctx := c.Request.Context()
	resp, err := h.conversation.HandleMessage(ctx, config.Bot, msg)
	if err != nil {
		h.log.Warn("Conversation failed", "bot", config.Bot.String(), "sender_id", msg.SenderID, "error", err)
		h.appendLog(c, config, msg, "", domain.ChannelLogFailed, err.Error(), nil)
		return
	}
	responder, err := channels.NewResponder(config, h.log)
	if err != nil {
		h.log.Warn("No responder for channel", "bot", config.Bot.String(), "channel", string(config.ConnectorType), "error", err)
		return
	}
	for _, reply := range resp.Response {
		messageID, err := h.send(ctx, responder, msg.SenderID, reply)
		if err != nil {
			h.appendLog(c, config, msg, messageID, domain.ChannelLogFailed, err.Error(), reply)
			continue
		}
		h.appendLog(c, config, msg, messageID, domain.ChannelLogSuccess, "", reply)
	}
}

func (h *WebhookHandler) send(ctx context.Context, responder channels.Responder, recipient string, reply map[string]interface{}) (string, error) {
	if custom, ok := reply["custom"].(map[string]interface{}); ok && len(custom) > 0 {
		return responder.SendCustomJSON(ctx, recipient, custom)
	}
	if image, ok := reply["image"].(string); ok && image != "" {
		return responder.SendImageURL(ctx, recipient, image)
	}
	text, _ := reply["text"].(string)
	if buttons := decodeButtons(reply["buttons"]); len(buttons) > 0 {
		return responder.SendTextWithButtons(ctx, recipient, text, buttons)
	}
	if text == "" {
		return "", nil
	}
	return responder.SendTextMessage(ctx, recipient, text)
}

func decodeButtons(v interface{}) []domain.ResponseButton {
	raw, err := json.Marshal(v)
	if err != nil || string(raw) == "null" {
		return nil
	}
	var buttons []domain.ResponseButton
	if err := json.Unmarshal(raw, &buttons); err != nil {
		return nil
	}
	return buttons
}

func (h *WebhookHandler) appendLog(c *gin.Context, config *domain.ChannelConfig, msg channels.UserMessage, messageID, status, reason string, reply map[string]interface{}) {
	var payload datatypes.JSON
	if reply != nil {
		if raw, err := json.Marshal(reply); err == nil {
			payload = raw
		}
	}
	entry := &domain.ChannelLog{
		ID:            uuid.New(),
		Bot:           config.Bot,
		ChannelType:   config.ConnectorType,
		Status:        status,
		FailureReason: reason,
		MessageID:     messageID,
		JSONMessage:   payload,
		Metadata:      datatypes.JSONMap{"sender_id": msg.SenderID},
		User:          msg.SenderID,
		Timestamp:     time.Now().UTC(),
	}
	if err := h.channelLogs.Append(dbctx.New(c.Request.Context()), entry); err != nil {
		h.log.Warn("Channel log append failed", "bot", config.Bot.String(), "error", err)
	}
}
