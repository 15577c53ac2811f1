package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/kairon-labs/kairon-backend/internal/channels"
	"github.com/kairon-labs/kairon-backend/internal/http/middleware"
	"github.com/kairon-labs/kairon-backend/internal/http/response"
	"github.com/kairon-labs/kairon-backend/internal/pkg/apperr"
	"github.com/kairon-labs/kairon-backend/internal/services"
)

type ChatHandler struct {
	conversation *services.ConversationService
}

func NewChatHandler(conversation *services.ConversationService) *ChatHandler {
	return &ChatHandler{conversation: conversation}
}

type chatReq struct {
	Data     string                 `json:"data"`
	Metadata map[string]interface{} `json:"metadata"`
}

// POST /api/bot/:bot/chat — the canonical chat API. The sender is the
// authenticated user; webhook traffic goes through the channel gateway
// instead.
func (h *ChatHandler) Chat(c *gin.Context) {
	var req chatReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperr.Validation("Invalid request body"))
		return
	}
	claims := middleware.GetClaims(c)
	msg := channels.UserMessage{
		Text:     req.Data,
		SenderID: claims.Subject,
		Metadata: req.Metadata,
	}
	resp, err := h.conversation.HandleMessage(c.Request.Context(), middleware.BotID(c), msg)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "", resp)
}
