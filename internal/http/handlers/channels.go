package handlers

import (
	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"

	"github.com/kairon-labs/kairon-backend/internal/domain"
	"github.com/kairon-labs/kairon-backend/internal/http/middleware"
	"github.com/kairon-labs/kairon-backend/internal/http/response"
	"github.com/kairon-labs/kairon-backend/internal/pkg/apperr"
	"github.com/kairon-labs/kairon-backend/internal/services"
)

// ChannelHandler manages messaging-connector configs and the live agent
// handoff config for a bot.
type ChannelHandler struct {
	channels *services.ChannelService
}

func NewChannelHandler(channels *services.ChannelService) *ChannelHandler {
	return &ChannelHandler{channels: channels}
}

type saveChannelReq struct {
	ConnectorType string                 `json:"connector_type"`
	Config        map[string]interface{} `json:"config"`
}

// POST /api/bot/:bot/channels — saves credentials for one connector and
// returns the tokenized webhook URL to register with the provider.
func (h *ChannelHandler) Save(c *gin.Context) {
	var req saveChannelReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperr.Validation("Invalid request body"))
		return
	}
	claims := middleware.GetClaims(c)
	webhookURL, err := h.channels.Save(c.Request.Context(), middleware.BotID(c), domain.ChannelType(req.ConnectorType), req.Config, claims.Subject)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Channel saved!", gin.H{"webhook_url": webhookURL})
}

// GET /api/bot/:bot/channels
func (h *ChannelHandler) List(c *gin.Context) {
	configs, err := h.channels.List(c.Request.Context(), middleware.BotID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "", gin.H{"channels": configs})
}

// GET /api/bot/:bot/channels/:connector
func (h *ChannelHandler) Get(c *gin.Context) {
	config, err := h.channels.Get(c.Request.Context(), middleware.BotID(c), domain.ChannelType(c.Param("connector")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "", gin.H{"channel": config})
}

// DELETE /api/bot/:bot/channels/:connector
func (h *ChannelHandler) Delete(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if err := h.channels.Delete(c.Request.Context(), middleware.BotID(c), domain.ChannelType(c.Param("connector")), claims.Subject); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Channel deleted!", nil)
}

type liveAgentReq struct {
	AgentType        string                 `json:"agent_type"`
	Config           map[string]interface{} `json:"config"`
	OverrideBot      bool                   `json:"override_bot"`
	TriggerOnIntents []string               `json:"trigger_on_intents"`
	TriggerOnActions []string               `json:"trigger_on_actions"`
}

// PUT /api/bot/:bot/live_agent
func (h *ChannelHandler) SaveLiveAgentConfig(c *gin.Context) {
	var req liveAgentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperr.Validation("Invalid request body"))
		return
	}
	claims := middleware.GetClaims(c)
	cfg := &domain.LiveAgentConfig{
		AgentType:        req.AgentType,
		Config:           datatypes.JSONMap(req.Config),
		OverrideBot:      req.OverrideBot,
		TriggerOnIntents: domain.StringList(req.TriggerOnIntents),
		TriggerOnActions: domain.StringList(req.TriggerOnActions),
	}
	saved, err := h.channels.SaveLiveAgentConfig(c.Request.Context(), middleware.BotID(c), cfg, claims.Subject)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Live agent config saved!", gin.H{"config": saved})
}

// GET /api/bot/:bot/live_agent
func (h *ChannelHandler) GetLiveAgentConfig(c *gin.Context) {
	cfg, err := h.channels.GetLiveAgentConfig(c.Request.Context(), middleware.BotID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "", gin.H{"config": cfg})
}

// DELETE /api/bot/:bot/live_agent
func (h *ChannelHandler) DeleteLiveAgentConfig(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if err := h.channels.DeleteLiveAgentConfig(c.Request.Context(), middleware.BotID(c), claims.Subject); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Live agent config deleted!", nil)
}
