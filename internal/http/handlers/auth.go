package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/kairon-labs/kairon-backend/internal/http/middleware"
	"github.com/kairon-labs/kairon-backend/internal/http/response"
	"github.com/kairon-labs/kairon-backend/internal/pkg/apperr"
	"github.com/kairon-labs/kairon-backend/internal/services"
)

type AuthHandler struct {
	auth     *services.AuthService
	accounts *services.AccountService
}

func NewAuthHandler(auth *services.AuthService, accounts *services.AccountService) *AuthHandler {
	return &AuthHandler{auth: auth, accounts: accounts}
}

type registerReq struct {
	AccountName string `json:"account"`
	Email       string `json:"email"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Password    string `json:"password"`
}

// POST /api/account/registration
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperr.Validation("Invalid request body"))
		return
	}
	account, user, err := h.accounts.RegisterAccount(c.Request.Context(), req.AccountName, req.Email, req.FirstName, req.LastName, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Account registered!", gin.H{"account": account, "user": user})
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperr.Validation("Invalid request body"))
		return
	}
	token, user, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Login successful", gin.H{
		"access_token": token,
		"token_type":   "bearer",
		"user":         user,
	})
}

// GET /api/auth/:bot/integration/token issues a bot-scoped token for
// channel webhooks and API integrations. It never expires; rotating the
// channel config invalidates the previous one.
func (h *AuthHandler) IntegrationToken(c *gin.Context) {
	claims := middleware.GetClaims(c)
	bot := middleware.BotID(c)
	token, err := h.auth.IssueToken(claims.Subject, claims.Account, bot.String(), true, 0)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Integration token generated", gin.H{
		"access_token": token,
		"token_type":   "bearer",
	})
}
