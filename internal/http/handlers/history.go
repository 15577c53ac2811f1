package handlers

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kairon-labs/kairon-backend/internal/http/middleware"
	"github.com/kairon-labs/kairon-backend/internal/http/response"
	"github.com/kairon-labs/kairon-backend/internal/tracker"
)

// HistoryHandler exposes the conversation-analytics queries. Each one
// absorbs storage failures: the envelope stays success=true with an empty
// result and the error message, so dashboards render instead of breaking.
type HistoryHandler struct {
	tracker *tracker.Service
}

func NewHistoryHandler(trackerSvc *tracker.Service) *HistoryHandler {
	return &HistoryHandler{tracker: trackerSvc}
}

func month(c *gin.Context) int {
	if v := strings.TrimSpace(c.Query("month")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return 1
}

// GET /api/history/:bot/users/:sender
func (h *HistoryHandler) ChatHistory(c *gin.Context) {
	turns, msg := h.tracker.FetchChatHistory(c.Request.Context(), middleware.BotID(c), c.Param("sender"), month(c))
	response.OK(c, msg, gin.H{"history": turns})
}

// GET /api/history/:bot/users
func (h *HistoryHandler) ChatUsers(c *gin.Context) {
	users, msg := h.tracker.FetchChatUsers(c.Request.Context(), middleware.BotID(c), month(c))
	response.OK(c, msg, gin.H{"users": users})
}

// GET /api/history/:bot/metrics/fallback
func (h *HistoryHandler) VisitorHitFallback(c *gin.Context) {
	metrics, msg := h.tracker.VisitorHitFallback(c.Request.Context(), middleware.BotID(c), month(c))
	response.OK(c, msg, metrics)
}

// GET /api/history/:bot/metrics/conversation/steps
func (h *HistoryHandler) ConversationSteps(c *gin.Context) {
	steps, msg := h.tracker.ConversationSteps(c.Request.Context(), middleware.BotID(c), month(c))
	response.OK(c, msg, gin.H{"conversation_steps": steps})
}

// GET /api/history/:bot/metrics/conversation/time
func (h *HistoryHandler) ConversationTime(c *gin.Context) {
	times, msg := h.tracker.ConversationTime(c.Request.Context(), middleware.BotID(c), month(c))
	response.OK(c, msg, gin.H{"conversation_time": times})
}

// GET /api/history/:bot/metrics/users/engaged?min_steps=2
func (h *HistoryHandler) EngagedUsers(c *gin.Context) {
	minSteps := 2
	if v := strings.TrimSpace(c.Query("min_steps")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			minSteps = n
		}
	}
	count, msg := h.tracker.EngagedUsers(c.Request.Context(), middleware.BotID(c), month(c), minSteps)
	response.OK(c, msg, gin.H{"engaged_users": count})
}

// GET /api/history/:bot/metrics/users/new
func (h *HistoryHandler) NewUsers(c *gin.Context) {
	count, msg := h.tracker.NewUsers(c.Request.Context(), middleware.BotID(c), month(c))
	response.OK(c, msg, gin.H{"new_users": count})
}

// GET /api/history/:bot/metrics/conversation/success
func (h *HistoryHandler) SuccessfulConversations(c *gin.Context) {
	count, msg := h.tracker.SuccessfulConversations(c.Request.Context(), middleware.BotID(c), month(c))
	response.OK(c, msg, gin.H{"successful_conversations": count})
}

// GET /api/history/:bot/metrics/users/retention
func (h *HistoryHandler) UserRetention(c *gin.Context) {
	retention, msg := h.tracker.UserRetention(c.Request.Context(), middleware.BotID(c), month(c))
	response.OK(c, msg, gin.H{"user_retention": retention})
}

// GET /api/history/:bot/metrics/users
func (h *HistoryHandler) UserWithMetrics(c *gin.Context) {
	users, msg := h.tracker.UserWithMetrics(c.Request.Context(), middleware.BotID(c), month(c))
	response.OK(c, msg, gin.H{"users": users})
}

// DELETE /api/history/:bot?till=<epoch> queues nothing; immediate deletes go
// through the delete_history event instead. This endpoint serves the direct
// cleanup used by data-retention tooling.
func (h *HistoryHandler) DeleteHistory(c *gin.Context) {
	var till float64
	if v := strings.TrimSpace(c.Query("till")); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			till = f
		}
	}
	deleted, err := h.tracker.DeleteForBot(c.Request.Context(), middleware.BotID(c), till)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "History deleted", gin.H{"deleted": deleted})
}
