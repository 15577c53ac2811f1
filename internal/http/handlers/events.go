package handlers

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kairon-labs/kairon-backend/internal/domain"
	"github.com/kairon-labs/kairon-backend/internal/events"
	"github.com/kairon-labs/kairon-backend/internal/http/middleware"
	"github.com/kairon-labs/kairon-backend/internal/http/response"
	"github.com/kairon-labs/kairon-backend/internal/pkg/apperr"
	"github.com/kairon-labs/kairon-backend/internal/services"
)

type EventHandler struct {
	manager *events.Manager
	auth    *services.AuthService
}

func NewEventHandler(manager *events.Manager, auth *services.AuthService) *EventHandler {
	return &EventHandler{manager: manager, auth: auth}
}

type queueEventReq struct {
	Bot     uuid.UUID      `json:"bot"`
	Payload events.Payload `json:"payload"`
}

// POST /api/events/queue/:event_class — the bot is named in the body, so
// the access check happens here rather than in the bot-scoped middleware.
func (h *EventHandler) Queue(c *gin.Context) {
	class := domain.EventClass(c.Param("event_class"))
	var req queueEventReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperr.Validation("Invalid request body"))
		return
	}
	if req.Bot == uuid.Nil {
		response.Error(c, apperr.Validation("Bot id cannot be empty"))
		return
	}
	claims := middleware.GetClaims(c)
	if err := h.auth.Authorize(c.Request.Context(), claims, req.Bot); err != nil {
		response.Error(c, err)
		return
	}
	executorLogID, err := h.manager.Queue(c.Request.Context(), class, req.Bot, claims.Subject, req.Payload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Event queued", gin.H{"executor_log_id": executorLogID})
}

// POST /api/events/abort/:executor_log_id
func (h *EventHandler) Abort(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if err := h.manager.Abort(c.Request.Context(), c.Param("executor_log_id"), claims.Subject); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Event aborted", nil)
}

// GET /api/events/:executor_log_id
func (h *EventHandler) History(c *gin.Context) {
	logs, err := h.manager.History(c.Request.Context(), c.Param("executor_log_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "", gin.H{"logs": logs})
}

// GET /api/bot/:bot/events?limit=50
func (h *EventHandler) ListForBot(c *gin.Context) {
	limit := 50
	if v := strings.TrimSpace(c.Query("limit")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	logs, err := h.manager.ListForBot(c.Request.Context(), middleware.BotID(c), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "", gin.H{"logs": logs})
}
