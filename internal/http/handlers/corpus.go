package handlers

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kairon-labs/kairon-backend/internal/domain"
	"github.com/kairon-labs/kairon-backend/internal/http/middleware"
	"github.com/kairon-labs/kairon-backend/internal/http/response"
	"github.com/kairon-labs/kairon-backend/internal/pkg/apperr"
	corpussvc "github.com/kairon-labs/kairon-backend/internal/services/corpus"
)

// CorpusHandler exposes the training-corpus CRUD surface. Every route is
// bot-scoped; the bot id and caller identity come from the middleware chain.
type CorpusHandler struct {
	corpus *corpussvc.Service
}

func NewCorpusHandler(corpus *corpussvc.Service) *CorpusHandler {
	return &CorpusHandler{corpus: corpus}
}

func caller(c *gin.Context) (string, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		return "", false
	}
	return claims.Subject, claims.Integration
}

// ---- intents ----

type nameReq struct {
	Name string `json:"name"`
}

// POST /api/bot/:bot/intents
func (h *CorpusHandler) AddIntent(c *gin.Context) {
	var req nameReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperr.Validation("Invalid request body"))
		return
	}
	user, integration := caller(c)
	id, err := h.corpus.AddIntent(c.Request.Context(), req.Name, middleware.BotID(c), user, integration)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Intent added successfully!", gin.H{"_id": id})
}

// GET /api/bot/:bot/intents
func (h *CorpusHandler) ListIntents(c *gin.Context) {
	intents, err := h.corpus.ListIntents(c.Request.Context(), middleware.BotID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "", gin.H{"intents": intents})
}

// DELETE /api/bot/:bot/intents/:intent?delete_dependencies=true
func (h *CorpusHandler) DeleteIntent(c *gin.Context) {
	deleteDeps := true
	if v := strings.TrimSpace(c.Query("delete_dependencies")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			deleteDeps = b
		}
	}
	user, integration := caller(c)
	if err := h.corpus.DeleteIntent(c.Request.Context(), c.Param("intent"), middleware.BotID(c), user, integration, deleteDeps); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Intent deleted!", nil)
}

// ---- training examples ----

type addExamplesReq struct {
	Examples []string `json:"examples"`
}

// POST /api/bot/:bot/intents/:intent/examples
func (h *CorpusHandler) AddTrainingExamples(c *gin.Context) {
	var req addExamplesReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperr.Validation("Invalid request body"))
		return
	}
	user, integration := caller(c)
	results, err := h.corpus.AddTrainingExamples(c.Request.Context(), req.Examples, c.Param("intent"), middleware.BotID(c), user, integration)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "", gin.H{"results": results})
}

// GET /api/bot/:bot/intents/:intent/examples
func (h *CorpusHandler) ListTrainingExamples(c *gin.Context) {
	examples, err := h.corpus.ListTrainingExamples(c.Request.Context(), middleware.BotID(c), c.Param("intent"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "", gin.H{"examples": examples})
}

type editExampleReq struct {
	Text   string `json:"text"`
	Intent string `json:"intent"`
}

// PUT /api/bot/:bot/examples/:id
func (h *CorpusHandler) EditTrainingExample(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperr.Validation("Invalid example id"))
		return
	}
	var req editExampleReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperr.Validation("Invalid request body"))
		return
	}
	user, _ := caller(c)
	if err := h.corpus.EditTrainingExample(c.Request.Context(), id, req.Text, req.Intent, middleware.BotID(c), user); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Training example updated!", nil)
}

// DELETE /api/bot/:bot/examples/:id
func (h *CorpusHandler) DeleteTrainingExample(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperr.Validation("Invalid example id"))
		return
	}
	user, _ := caller(c)
	if err := h.corpus.DeleteTrainingExample(c.Request.Context(), id, middleware.BotID(c), user); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Training example deleted!", nil)
}

// GET /api/bot/:bot/entities
func (h *CorpusHandler) ListEntities(c *gin.Context) {
	entities, err := h.corpus.ListEntities(c.Request.Context(), middleware.BotID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "", gin.H{"entities": entities})
}

// ---- responses ----

type addResponseReq struct {
	Name   string                 `json:"name"`
	Text   *domain.ResponseText   `json:"text,omitempty"`
	Custom map[string]interface{} `json:"custom,omitempty"`
}

// POST /api/bot/:bot/responses
func (h *CorpusHandler) AddResponse(c *gin.Context) {
	var req addResponseReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperr.Validation("Invalid request body"))
		return
	}
	user, _ := caller(c)
	id, err := h.corpus.AddResponse(c.Request.Context(), req.Name, req.Text, req.Custom, middleware.BotID(c), user)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Response added!", gin.H{"_id": id})
}

// GET /api/bot/:bot/responses/:name
func (h *CorpusHandler) ListResponses(c *gin.Context) {
	responses, err := h.corpus.ListResponses(c.Request.Context(), middleware.BotID(c), c.Param("name"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "", gin.H{"responses": responses})
}

// GET /api/bot/:bot/utterances
func (h *CorpusHandler) ListUtterances(c *gin.Context) {
	utterances, err := h.corpus.ListUtterances(c.Request.Context(), middleware.BotID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "", gin.H{"utterances": utterances})
}

// DELETE /api/bot/:bot/responses/:id
func (h *CorpusHandler) DeleteResponse(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperr.Validation("Invalid response id"))
		return
	}
	user, _ := caller(c)
	if err := h.corpus.DeleteResponse(c.Request.Context(), id, middleware.BotID(c), user); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Response deleted!", nil)
}

// DELETE /api/bot/:bot/utterances/:name
func (h *CorpusHandler) DeleteUtterance(c *gin.Context) {
	user, _ := caller(c)
	if err := h.corpus.DeleteUtterance(c.Request.Context(), c.Param("name"), middleware.BotID(c), user); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Utterance deleted!", nil)
}

// ---- stories and rules ----

// POST /api/bot/:bot/stories
func (h *CorpusHandler) AddStory(c *gin.Context) {
	var req corpussvc.ComplexStoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperr.Validation("Invalid request body"))
		return
	}
	user, _ := caller(c)
	id, err := h.corpus.AddComplexStory(c.Request.Context(), &req, middleware.BotID(c), user)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Flow added successfully", gin.H{"_id": id})
}

// PUT /api/bot/:bot/stories
func (h *CorpusHandler) UpdateStory(c *gin.Context) {
	var req corpussvc.ComplexStoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperr.Validation("Invalid request body"))
		return
	}
	user, _ := caller(c)
	if err := h.corpus.UpdateComplexStory(c.Request.Context(), &req, middleware.BotID(c), user); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Flow updated successfully", nil)
}

// DELETE /api/bot/:bot/stories/:name?type=STORY
func (h *CorpusHandler) DeleteStory(c *gin.Context) {
	user, _ := caller(c)
	flowType := c.DefaultQuery("type", "STORY")
	if err := h.corpus.DeleteComplexStory(c.Request.Context(), c.Param("name"), flowType, middleware.BotID(c), user); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Flow deleted successfully", nil)
}

// GET /api/bot/:bot/stories
func (h *CorpusHandler) ListStories(c *gin.Context) {
	stories, err := h.corpus.ListStories(c.Request.Context(), middleware.BotID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	rules, err := h.corpus.ListRules(c.Request.Context(), middleware.BotID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "", gin.H{"stories": stories, "rules": rules})
}

// GET /api/bot/:bot/intents/:intent/utterance
func (h *CorpusHandler) UtteranceFromIntent(c *gin.Context) {
	name, kind, err := h.corpus.GetUtteranceFromIntent(c.Request.Context(), c.Param("intent"), middleware.BotID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "", gin.H{"name": name, "type": kind})
}

// ---- slots and forms ----

// POST /api/bot/:bot/slots
func (h *CorpusHandler) AddSlot(c *gin.Context) {
	var slot domain.Slot
	if err := c.ShouldBindJSON(&slot); err != nil {
		response.Error(c, apperr.Validation("Invalid request body"))
		return
	}
	user, _ := caller(c)
	id, err := h.corpus.AddOrUpdateSlot(c.Request.Context(), &slot, middleware.BotID(c), user)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Slot saved!", gin.H{"_id": id})
}

// GET /api/bot/:bot/slots
func (h *CorpusHandler) ListSlots(c *gin.Context) {
	slots, err := h.corpus.ListSlots(c.Request.Context(), middleware.BotID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "", gin.H{"slots": slots})
}

// DELETE /api/bot/:bot/slots/:name
func (h *CorpusHandler) DeleteSlot(c *gin.Context) {
	user, _ := caller(c)
	if err := h.corpus.DeleteSlot(c.Request.Context(), c.Param("name"), middleware.BotID(c), user); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Slot deleted!", nil)
}

type addFormReq struct {
	Name    string                 `json:"name"`
	Mapping map[string]interface{} `json:"mapping"`
}

// POST /api/bot/:bot/forms
func (h *CorpusHandler) AddForm(c *gin.Context) {
	var req addFormReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperr.Validation("Invalid request body"))
		return
	}
	user, _ := caller(c)
	id, err := h.corpus.AddForm(c.Request.Context(), req.Name, req.Mapping, middleware.BotID(c), user)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Form saved!", gin.H{"_id": id})
}

// GET /api/bot/:bot/forms
func (h *CorpusHandler) ListForms(c *gin.Context) {
	forms, err := h.corpus.ListForms(c.Request.Context(), middleware.BotID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "", gin.H{"forms": forms})
}

// DELETE /api/bot/:bot/forms/:name
func (h *CorpusHandler) DeleteForm(c *gin.Context) {
	user, _ := caller(c)
	if err := h.corpus.DeleteForm(c.Request.Context(), c.Param("name"), middleware.BotID(c), user); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Form deleted!", nil)
}

// ---- synonyms, lookups, regexes ----

type valuesReq struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// POST /api/bot/:bot/synonyms
func (h *CorpusHandler) AddSynonym(c *gin.Context) {
	var req valuesReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperr.Validation("Invalid request body"))
		return
	}
	user, _ := caller(c)
	if err := h.corpus.AddSynonym(c.Request.Context(), req.Name, req.Values, middleware.BotID(c), user); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Synonym values added!", nil)
}

// GET /api/bot/:bot/synonyms
func (h *CorpusHandler) ListSynonyms(c *gin.Context) {
	synonyms, err := h.corpus.ListSynonyms(c.Request.Context(), middleware.BotID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "", gin.H{"synonyms": synonyms})
}

// DELETE /api/bot/:bot/synonyms/:id
func (h *CorpusHandler) DeleteSynonymValue(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperr.Validation("Invalid synonym id"))
		return
	}
	user, _ := caller(c)
	if err := h.corpus.DeleteSynonymValue(c.Request.Context(), id, middleware.BotID(c), user); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Synonym value deleted!", nil)
}

// POST /api/bot/:bot/lookups
func (h *CorpusHandler) AddLookupValues(c *gin.Context) {
	var req valuesReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperr.Validation("Invalid request body"))
		return
	}
	user, _ := caller(c)
	if err := h.corpus.AddLookupValues(c.Request.Context(), req.Name, req.Values, middleware.BotID(c), user); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Lookup values added!", nil)
}

// GET /api/bot/:bot/lookups
func (h *CorpusHandler) ListLookupTables(c *gin.Context) {
	lookups, err := h.corpus.ListLookupTables(c.Request.Context(), middleware.BotID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "", gin.H{"lookup_tables": lookups})
}

// DELETE /api/bot/:bot/lookups/:id
func (h *CorpusHandler) DeleteLookupValue(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperr.Validation("Invalid lookup id"))
		return
	}
	user, _ := caller(c)
	if err := h.corpus.DeleteLookupValue(c.Request.Context(), id, middleware.BotID(c), user); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Lookup value deleted!", nil)
}

type regexReq struct {
	Name    string `json:"name"`
	Pattern string `json:"pattern"`
}

// POST /api/bot/:bot/regex
func (h *CorpusHandler) AddRegexFeature(c *gin.Context) {
	var req regexReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperr.Validation("Invalid request body"))
		return
	}
	user, _ := caller(c)
	if err := h.corpus.AddRegexFeature(c.Request.Context(), req.Name, req.Pattern, middleware.BotID(c), user); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Regex added!", nil)
}

// PUT /api/bot/:bot/regex
func (h *CorpusHandler) EditRegexFeature(c *gin.Context) {
	var req regexReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperr.Validation("Invalid request body"))
		return
	}
	user, _ := caller(c)
	if err := h.corpus.EditRegexFeature(c.Request.Context(), req.Name, req.Pattern, middleware.BotID(c), user); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Regex updated!", nil)
}

// DELETE /api/bot/:bot/regex/:name
func (h *CorpusHandler) DeleteRegexFeature(c *gin.Context) {
	user, _ := caller(c)
	if err := h.corpus.DeleteRegexFeature(c.Request.Context(), c.Param("name"), middleware.BotID(c), user); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Regex deleted!", nil)
}

// GET /api/bot/:bot/regex
func (h *CorpusHandler) ListRegexFeatures(c *gin.Context) {
	regexes, err := h.corpus.ListRegexFeatures(c.Request.Context(), middleware.BotID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "", gin.H{"regex_features": regexes})
}

// ---- http actions ----

// POST /api/bot/:bot/httpactions
func (h *CorpusHandler) AddHTTPAction(c *gin.Context) {
	var req corpussvc.HTTPActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperr.Validation("Invalid request body"))
		return
	}
	user, _ := caller(c)
	id, err := h.corpus.AddHTTPAction(c.Request.Context(), &req, middleware.BotID(c), user)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Http action added!", gin.H{"_id": id})
}

// PUT /api/bot/:bot/httpactions
func (h *CorpusHandler) UpdateHTTPAction(c *gin.Context) {
	var req corpussvc.HTTPActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperr.Validation("Invalid request body"))
		return
	}
	user, _ := caller(c)
	if err := h.corpus.UpdateHTTPAction(c.Request.Context(), &req, middleware.BotID(c), user); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Http action updated!", nil)
}

// GET /api/bot/:bot/httpactions/:name
func (h *CorpusHandler) GetHTTPAction(c *gin.Context) {
	action, err := h.corpus.GetHTTPAction(c.Request.Context(), c.Param("name"), middleware.BotID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "", gin.H{"http_action": action})
}

// GET /api/bot/:bot/httpactions
func (h *CorpusHandler) ListHTTPActions(c *gin.Context) {
	actions, err := h.corpus.ListHTTPActions(c.Request.Context(), middleware.BotID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "", gin.H{"http_actions": actions})
}

// DELETE /api/bot/:bot/httpactions/:name
func (h *CorpusHandler) DeleteHTTPAction(c *gin.Context) {
	user, _ := caller(c)
	if err := h.corpus.DeleteHTTPAction(c.Request.Context(), c.Param("name"), middleware.BotID(c), user); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Http action deleted!", nil)
}

// GET /api/bot/:bot/actions
func (h *CorpusHandler) ListActions(c *gin.Context) {
	actions, err := h.corpus.ListActions(c.Request.Context(), middleware.BotID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "", gin.H{"actions": actions})
}

// ---- config, endpoints, session config, settings ----

type saveConfigReq struct {
	Language string             `json:"language"`
	Pipeline []domain.Component `json:"pipeline"`
	Policies []domain.Component `json:"policies"`
}

// PUT /api/bot/:bot/config
func (h *CorpusHandler) SaveConfig(c *gin.Context) {
	var req saveConfigReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperr.Validation("Invalid request body"))
		return
	}
	user, _ := caller(c)
	if err := h.corpus.SaveConfig(c.Request.Context(), req.Language, req.Pipeline, req.Policies, middleware.BotID(c), user); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Config saved!", nil)
}

// GET /api/bot/:bot/config
func (h *CorpusHandler) GetConfig(c *gin.Context) {
	config, err := h.corpus.GetConfig(c.Request.Context(), middleware.BotID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "", gin.H{"config": config})
}

// PUT /api/bot/:bot/config/properties
func (h *CorpusHandler) SaveComponentProperties(c *gin.Context) {
	var props corpussvc.ComponentProperties
	if err := c.ShouldBindJSON(&props); err != nil {
		response.Error(c, apperr.Validation("Invalid request body"))
		return
	}
	user, _ := caller(c)
	if err := h.corpus.SaveComponentProperties(c.Request.Context(), &props, middleware.BotID(c), user); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Config saved!", nil)
}

type endpointsReq struct {
	BotEndpoint     *domain.EndpointConfig `json:"bot_endpoint,omitempty"`
	ActionEndpoint  *domain.EndpointConfig `json:"action_endpoint,omitempty"`
	TrackerEndpoint *domain.EndpointConfig `json:"history_endpoint,omitempty"`
}

// PUT /api/bot/:bot/endpoints
func (h *CorpusHandler) AddEndpoints(c *gin.Context) {
	var req endpointsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperr.Validation("Invalid request body"))
		return
	}
	user, _ := caller(c)
	if err := h.corpus.AddEndpoints(c.Request.Context(), req.BotEndpoint, req.ActionEndpoint, req.TrackerEndpoint, middleware.BotID(c), user); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Endpoints saved!", nil)
}

// GET /api/bot/:bot/endpoints
func (h *CorpusHandler) GetEndpoints(c *gin.Context) {
	endpoints, err := h.corpus.GetEndpoints(c.Request.Context(), middleware.BotID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "", gin.H{"endpoints": endpoints})
}

type sessionConfigReq struct {
	SessionExpirationTime int  `json:"session_expiration_time"`
	CarryOverSlots        bool `json:"carry_over_slots"`
}

// PUT /api/bot/:bot/session_config
func (h *CorpusHandler) AddSessionConfig(c *gin.Context) {
	var req sessionConfigReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperr.Validation("Invalid request body"))
		return
	}
	user, _ := caller(c)
	if err := h.corpus.AddSessionConfig(c.Request.Context(), req.SessionExpirationTime, req.CarryOverSlots, middleware.BotID(c), user); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Session config saved!", nil)
}

// GET /api/bot/:bot/session_config
func (h *CorpusHandler) GetSessionConfig(c *gin.Context) {
	config, err := h.corpus.GetSessionConfig(c.Request.Context(), middleware.BotID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "", gin.H{"session_config": config})
}

// GET /api/bot/:bot/settings
func (h *CorpusHandler) GetBotSettings(c *gin.Context) {
	settings, err := h.corpus.GetBotSettings(c.Request.Context(), middleware.BotID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "", gin.H{"settings": settings})
}

// PUT /api/bot/:bot/settings
func (h *CorpusHandler) UpdateBotSettings(c *gin.Context) {
	var settings domain.BotSettings
	if err := c.ShouldBindJSON(&settings); err != nil {
		response.Error(c, apperr.Validation("Invalid request body"))
		return
	}
	settings.Bot = middleware.BotID(c)
	user, _ := caller(c)
	if err := h.corpus.UpdateBotSettings(c.Request.Context(), &settings, user); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Settings updated!", nil)
}

// GET /api/bot/:bot/audit?limit=100
func (h *CorpusHandler) ListAuditLog(c *gin.Context) {
	limit := 100
	if v := strings.TrimSpace(c.Query("limit")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	entries, err := h.corpus.ListAuditLog(c.Request.Context(), middleware.BotID(c), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "", gin.H{"audit_log": entries})
}
