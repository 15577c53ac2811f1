package http

import (
	"github.com/gin-gonic/gin"

	httpH "github.com/kairon-labs/kairon-backend/internal/http/handlers"
	httpMW "github.com/kairon-labs/kairon-backend/internal/http/middleware"
	"github.com/kairon-labs/kairon-backend/internal/platform/logger"
)

type RouterConfig struct {
	AuthHandler    *httpH.AuthHandler
	AuthMiddleware *httpMW.AuthMiddleware

	AccountHandler *httpH.AccountHandler
	CorpusHandler  *httpH.CorpusHandler
	ChatHandler    *httpH.ChatHandler
	ChannelHandler *httpH.ChannelHandler
	WebhookHandler *httpH.WebhookHandler
	EventHandler   *httpH.EventHandler
	HistoryHandler *httpH.HistoryHandler

	HealthHandler *httpH.HealthHandler

	CORSOrigins []string
	Logger      *logger.Logger
}

// NewRouter wires the full route tree. Webhooks live under /api/webhook so
// the provider-facing paths never collide with the :bot wildcard the
// authenticated bot-scoped routes use.
func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpMW.AttachTraceContext())
	if cfg.Logger != nil {
		r.Use(httpMW.RequestLogger(cfg.Logger))
	}
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")

	// Public: registration, login, provider webhooks.
	if cfg.AuthHandler != nil {
		api.POST("/account/registration", cfg.AuthHandler.Register)
		api.POST("/auth/login", cfg.AuthHandler.Login)
	}
	if cfg.WebhookHandler != nil {
		api.GET("/webhook/:channel/:bot/:token", cfg.WebhookHandler.Verify)
		api.POST("/webhook/:channel/:bot/:token", cfg.WebhookHandler.Receive)
	}

	protected := api.Group("/")
	if cfg.AuthMiddleware != nil {
		protected.Use(cfg.AuthMiddleware.RequireAuth())
	}

	// Account
	if cfg.AccountHandler != nil {
		protected.GET("/account/bot", cfg.AccountHandler.ListBots)
		protected.POST("/account/bot", cfg.AccountHandler.AddBot)
		protected.POST("/account/password/reset", cfg.AccountHandler.ResetPassword)
	}

	// Events are queued by bot id in the body, so they sit outside the
	// bot-scoped group.
	if cfg.EventHandler != nil {
		protected.POST("/events/queue/:event_class", cfg.EventHandler.Queue)
		protected.POST("/events/abort/:executor_log_id", cfg.EventHandler.Abort)
		protected.GET("/events/:executor_log_id", cfg.EventHandler.History)
	}

	// Everything below carries a :bot path param and goes through the
	// access-grant check.
	bot := protected.Group("/bot/:bot")
	if cfg.AuthMiddleware != nil {
		bot.Use(cfg.AuthMiddleware.BotScoped())
	}

	if cfg.AccountHandler != nil {
		bot.DELETE("", cfg.AccountHandler.DeleteBot)
		bot.POST("/owner", cfg.AccountHandler.TransferOwnership)
	}
	if cfg.AuthHandler != nil {
		bot.GET("/integration/token", cfg.AuthHandler.IntegrationToken)
	}
	if cfg.ChatHandler != nil {
		bot.POST("/chat", cfg.ChatHandler.Chat)
	}
	if cfg.EventHandler != nil {
		bot.GET("/events", cfg.EventHandler.ListForBot)
	}

	if cfg.CorpusHandler != nil {
		h := cfg.CorpusHandler

		bot.POST("/intents", h.AddIntent)
		bot.GET("/intents", h.ListIntents)
		bot.DELETE("/intents/:intent", h.DeleteIntent)
		bot.POST("/intents/:intent/examples", h.AddTrainingExamples)
		bot.GET("/intents/:intent/examples", h.ListTrainingExamples)
		bot.GET("/intents/:intent/utterance", h.UtteranceFromIntent)
		bot.PUT("/examples/:id", h.EditTrainingExample)
		bot.DELETE("/examples/:id", h.DeleteTrainingExample)
		bot.GET("/entities", h.ListEntities)

		bot.POST("/responses", h.AddResponse)
		bot.GET("/responses/:name", h.ListResponses)
		bot.DELETE("/responses/:id", h.DeleteResponse)
		bot.GET("/utterances", h.ListUtterances)
		bot.DELETE("/utterances/:name", h.DeleteUtterance)

		bot.POST("/stories", h.AddStory)
		bot.PUT("/stories", h.UpdateStory)
		bot.GET("/stories", h.ListStories)
		bot.DELETE("/stories/:name", h.DeleteStory)

		bot.POST("/slots", h.AddSlot)
		bot.GET("/slots", h.ListSlots)
		bot.DELETE("/slots/:name", h.DeleteSlot)
		bot.POST("/forms", h.AddForm)
		bot.GET("/forms", h.ListForms)
		bot.DELETE("/forms/:name", h.DeleteForm)

		bot.POST("/synonyms", h.AddSynonym)
		bot.GET("/synonyms", h.ListSynonyms)
		bot.DELETE("/synonyms/:id", h.DeleteSynonymValue)
		bot.POST("/lookups", h.AddLookupValues)
		bot.GET("/lookups", h.ListLookupTables)
		bot.DELETE("/lookups/:id", h.DeleteLookupValue)
		bot.POST("/regex", h.AddRegexFeature)
		bot.PUT("/regex", h.EditRegexFeature)
		bot.GET("/regex", h.ListRegexFeatures)
		bot.DELETE("/regex/:name", h.DeleteRegexFeature)

		bot.POST("/httpactions", h.AddHTTPAction)
		bot.PUT("/httpactions", h.UpdateHTTPAction)
		bot.GET("/httpactions", h.ListHTTPActions)
		bot.GET("/httpactions/:name", h.GetHTTPAction)
		bot.DELETE("/httpactions/:name", h.DeleteHTTPAction)
		bot.GET("/actions", h.ListActions)

		bot.PUT("/config", h.SaveConfig)
		bot.GET("/config", h.GetConfig)
		bot.PUT("/config/properties", h.SaveComponentProperties)
		bot.PUT("/endpoints", h.AddEndpoints)
		bot.GET("/endpoints", h.GetEndpoints)
		bot.PUT("/session_config", h.AddSessionConfig)
		bot.GET("/session_config", h.GetSessionConfig)
		bot.GET("/settings", h.GetBotSettings)
		bot.PUT("/settings", h.UpdateBotSettings)
		bot.GET("/audit", h.ListAuditLog)
	}

	if cfg.ChannelHandler != nil {
		bot.POST("/channels", cfg.ChannelHandler.Save)
		bot.GET("/channels", cfg.ChannelHandler.List)
		bot.GET("/channels/:connector", cfg.ChannelHandler.Get)
		bot.DELETE("/channels/:connector", cfg.ChannelHandler.Delete)
		bot.PUT("/live_agent", cfg.ChannelHandler.SaveLiveAgentConfig)
		bot.GET("/live_agent", cfg.ChannelHandler.GetLiveAgentConfig)
		bot.DELETE("/live_agent", cfg.ChannelHandler.DeleteLiveAgentConfig)
	}

	if cfg.HistoryHandler != nil {
		history := protected.Group("/history/:bot")
		if cfg.AuthMiddleware != nil {
			history.Use(cfg.AuthMiddleware.BotScoped())
		}
		h := cfg.HistoryHandler
		history.GET("/users", h.ChatUsers)
		history.GET("/users/:sender", h.ChatHistory)
		history.GET("/metrics/fallback", h.VisitorHitFallback)
		history.GET("/metrics/conversation/steps", h.ConversationSteps)
		history.GET("/metrics/conversation/time", h.ConversationTime)
		history.GET("/metrics/conversation/success", h.SuccessfulConversations)
		history.GET("/metrics/users", h.UserWithMetrics)
		history.GET("/metrics/users/engaged", h.EngagedUsers)
		history.GET("/metrics/users/new", h.NewUsers)
		history.GET("/metrics/users/retention", h.UserRetention)
		history.DELETE("", h.DeleteHistory)
	}

	return r
}
