package handlers

import (
	"github.com/gin-gonic/gin"

	accountrepo "github.com/kairon-labs/kairon-backend/internal/data/repos/account"
	"github.com/kairon-labs/kairon-backend/internal/http/middleware"
	"github.com/kairon-labs/kairon-backend/internal/http/response"
	"github.com/kairon-labs/kairon-backend/internal/pkg/apperr"
	"github.com/kairon-labs/kairon-backend/internal/pkg/dbctx"
	"github.com/kairon-labs/kairon-backend/internal/services"
)

type AccountHandler struct {
	accounts *services.AccountService
	bots     accountrepo.BotRepo
}

func NewAccountHandler(accounts *services.AccountService, bots accountrepo.BotRepo) *AccountHandler {
	return &AccountHandler{accounts: accounts, bots: bots}
}

type addBotReq struct {
	Name string `json:"name"`
}

// POST /api/account/bot
func (h *AccountHandler) AddBot(c *gin.Context) {
	var req addBotReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperr.Validation("Invalid request body"))
		return
	}
	claims := middleware.GetClaims(c)
	bot, err := h.accounts.AddBot(c.Request.Context(), req.Name, claims.Account, claims.Subject)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Bot created", gin.H{"bot": bot})
}

// GET /api/account/bot
func (h *AccountHandler) ListBots(c *gin.Context) {
	claims := middleware.GetClaims(c)
	bots, err := h.bots.ListForAccount(dbctx.New(c.Request.Context()), claims.Account)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "", gin.H{"bots": bots})
}

// DELETE /api/bot/:bot
func (h *AccountHandler) DeleteBot(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if err := h.accounts.DeleteBot(c.Request.Context(), middleware.BotID(c), claims.Subject); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Bot deleted", nil)
}

type resetPasswordReq struct {
	Password string `json:"password"`
}

// POST /api/account/password/reset
func (h *AccountHandler) ResetPassword(c *gin.Context) {
	var req resetPasswordReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperr.Validation("Invalid request body"))
		return
	}
	claims := middleware.GetClaims(c)
	if err := h.accounts.ResetPassword(c.Request.Context(), claims.Subject, req.Password); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Password reset", nil)
}

type transferOwnershipReq struct {
	NewOwner string `json:"new_owner"`
}

// POST /api/bot/:bot/owner
func (h *AccountHandler) TransferOwnership(c *gin.Context) {
	var req transferOwnershipReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperr.Validation("Invalid request body"))
		return
	}
	claims := middleware.GetClaims(c)
	if err := h.accounts.TransferOwnership(c.Request.Context(), middleware.BotID(c), claims.Subject, req.NewOwner); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Ownership transferred", nil)
}
