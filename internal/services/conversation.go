package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kairon-labs/kairon-backend/internal/agent"
	"github.com/kairon-labs/kairon-backend/internal/channels"
	accountrepo "github.com/kairon-labs/kairon-backend/internal/data/repos/account"
	channelsrepo "github.com/kairon-labs/kairon-backend/internal/data/repos/channels"
	"github.com/kairon-labs/kairon-backend/internal/domain"
	"github.com/kairon-labs/kairon-backend/internal/pkg/apperr"
	"github.com/kairon-labs/kairon-backend/internal/pkg/dbctx"
	"github.com/kairon-labs/kairon-backend/internal/platform/logger"
	"github.com/kairon-labs/kairon-backend/internal/tracker"
)

// LiveAgent is the external agent-desk contract the orchestrator hands
// conversations to.
type LiveAgent interface {
	CreateConversation(ctx context.Context, config map[string]interface{}, senderID string) (int, error)
	SendMessage(ctx context.Context, config map[string]interface{}, conversationID int, content, messageType string) error
}

// AgentHandoff reports whether this turn escalated to a human agent.
type AgentHandoff struct {
	Initiate             bool                   `json:"initiate"`
	Type                 string                 `json:"type,omitempty"`
	AdditionalProperties map[string]interface{} `json:"additional_properties,omitempty"`
}

// ChatResponse is the canonical chat answer: the prediction plus the handoff
// verdict.
type ChatResponse struct {
	NLU          map[string]interface{}   `json:"nlu"`
	Action       []string                 `json:"action"`
	Response     []map[string]interface{} `json:"response"`
	Slots        map[string]interface{}   `json:"slots"`
	Events       []domain.EventEntry      `json:"events"`
	AgentHandoff *AgentHandoff            `json:"agent_handoff"`
}

// ConversationService runs the per-message pipeline: resolve the bot, check
// the live-agent override, predict, persist the tracker delta, evaluate the
// handoff policy, and meter the turn.
type ConversationService struct {
	bots      accountrepo.BotRepo
	liveAgent channelsrepo.LiveAgentConfigRepo
	metering  channelsrepo.MeteringRepo
	cache     agent.Cache
	tracker   *tracker.Service
	desk      LiveAgent
	log       *logger.Logger
}

func NewConversationService(
	bots accountrepo.BotRepo,
	liveAgent channelsrepo.LiveAgentConfigRepo,
	metering channelsrepo.MeteringRepo,
	cache agent.Cache,
	trackerSvc *tracker.Service,
	desk LiveAgent,
	baseLog *logger.Logger,
) *ConversationService {
	return &ConversationService{
		bots:      bots,
		liveAgent: liveAgent,
		metering:  metering,
		cache:     cache,
		tracker:   trackerSvc,
		desk:      desk,
		log:       baseLog.With("service", "ConversationService"),
	}
}

func (s *ConversationService) HandleMessage(ctx context.Context, botID uuid.UUID, msg channels.UserMessage) (*ChatResponse, error) {
	if strings.TrimSpace(msg.Text) == "" {
		return nil, apperr.Validation("Message text cannot be empty")
	}
	if strings.TrimSpace(msg.SenderID) == "" {
		return nil, apperr.Validation("Sender id cannot be empty")
	}
	dbc := dbctx.New(ctx)
	bot, err := s.bots.GetByID(dbc, botID)
	if err != nil {
		return nil, apperr.FromDB(err, "Bot does not exist")
	}

	handoffCfg, err := s.liveAgent.Get(dbc, bot.ID)
	if err != nil && err != gorm.ErrRecordNotFound {
		return nil, err
	}
	if handoffCfg != nil && handoffCfg.OverrideBot {
		return s.escalate(ctx, bot, msg, handoffCfg, nil)
	}

	loaded, err := s.cache.Get(ctx, bot.ID)
	if err != nil {
		return nil, err
	}
	prediction, err := loaded.HandleMessage(ctx, msg)
	if err != nil {
		return nil, err
	}

	// Prediction succeeded; persistence failures must not lose the reply.
	if err := s.tracker.Save(ctx, bot.ID, &tracker.Snapshot{
		SenderID: msg.SenderID,
		Events:   prediction.Events,
	}); err != nil {
		s.log.Warn("Tracker save failed", "bot", bot.ID.String(), "sender_id", msg.SenderID, "error", err)
	}

	resp := &ChatResponse{
		NLU:          prediction.NLU,
		Action:       prediction.Actions,
		Response:     prediction.Responses,
		Slots:        prediction.Slots,
		Events:       prediction.Events,
		AgentHandoff: &AgentHandoff{Initiate: false},
	}
	if handoffCfg != nil && s.shouldHandoff(handoffCfg, prediction) {
		escalated, err := s.escalate(ctx, bot, msg, handoffCfg, prediction)
		if err == nil {
			resp.AgentHandoff = escalated.AgentHandoff
		} else {
			s.log.Warn("Handoff failed, answering with the bot reply", "bot", bot.ID.String(), "error", err)
		}
	}
	s.meter(ctx, bot, chatMetric(msg), msg)
	return resp, nil
}

// shouldHandoff applies the trigger policy: intent match or any predicted
// action match. The override flag is handled before prediction.
func (s *ConversationService) shouldHandoff(cfg *domain.LiveAgentConfig, prediction *agent.Prediction) bool {
	intent := prediction.Intent()
	for _, trigger := range cfg.TriggerOnIntents {
		if strings.EqualFold(trigger, intent) {
			return true
		}
	}
	for _, action := range prediction.Actions {
		for _, trigger := range cfg.TriggerOnActions {
			if strings.EqualFold(trigger, action) {
				return true
			}
		}
	}
	return false
}

// escalate opens (or reuses within this turn) a desk conversation, replays
// the trail, and answers with the handoff verdict.
func (s *ConversationService) escalate(ctx context.Context, bot *domain.Bot, msg channels.UserMessage, cfg *domain.LiveAgentConfig, prediction *agent.Prediction) (*ChatResponse, error) {
	if s.desk == nil {
		return nil, apperr.Validation("Live agent provider is not configured")
	}
	config := map[string]interface{}(cfg.Config)
	conversationID, err := s.desk.CreateConversation(ctx, config, msg.SenderID)
	if err != nil {
		return nil, err
	}
	if err := s.desk.SendMessage(ctx, config, conversationID, msg.Text, "incoming"); err != nil {
		s.log.Warn("Trail append failed", "bot", bot.ID.String(), "conversation_id", conversationID, "error", err)
	}
	if prediction != nil {
		for _, reply := range prediction.Responses {
			if text, ok := reply["text"].(string); ok && text != "" {
				if err := s.desk.SendMessage(ctx, config, conversationID, text, "outgoing"); err != nil {
					s.log.Warn("Trail append failed", "bot", bot.ID.String(), "conversation_id", conversationID, "error", err)
					break
				}
			}
		}
	}

	resp := &ChatResponse{
		AgentHandoff: &AgentHandoff{
			Initiate: true,
			Type:     cfg.AgentType,
			AdditionalProperties: map[string]interface{}{
				"destination": conversationID,
			},
		},
	}
	if prediction != nil {
		resp.NLU = prediction.NLU
		resp.Action = prediction.Actions
		resp.Response = prediction.Responses
		resp.Slots = prediction.Slots
		resp.Events = prediction.Events
	}
	s.meter(ctx, bot, domain.MetricAgentHandoff, msg)
	return resp, nil
}

// chatMetric separates webhook traffic from direct chat-API probes.
func chatMetric(msg channels.UserMessage) domain.MetricType {
	if msg.Channel != "" {
		return domain.MetricProdChat
	}
	return domain.MetricTestChat
}

func (s *ConversationService) meter(ctx context.Context, bot *domain.Bot, metric domain.MetricType, msg channels.UserMessage) {
	record := &domain.MeteringRecord{
		ID:      uuid.New(),
		Account: bot.Account,
		Bot:     bot.ID,
		Metric:  metric,
		Data: map[string]interface{}{
			"channel_type": string(msg.Channel),
			"sender_id":    msg.SenderID,
		},
		Timestamp: time.Now().UTC(),
	}
	if err := s.metering.Record(dbctx.New(ctx), record); err != nil {
		s.log.Warn("Metering record failed", "bot", bot.ID.String(), "metric", string(metric), "error", err)
	}
}
