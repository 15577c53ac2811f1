package corpus

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kairon-labs/kairon-backend/internal/domain"
	"github.com/kairon-labs/kairon-backend/internal/pkg/apperr"
	"github.com/kairon-labs/kairon-backend/internal/pkg/dbctx"
)

// knownComponents is the set of pipeline and policy names a config may
// reference.
var knownComponents = map[string]struct{}{
	"WhitespaceTokenizer":        {},
	"RegexFeaturizer":            {},
	"LexicalSyntacticFeaturizer": {},
	"CountVectorsFeaturizer":     {},
	"DIETClassifier":             {},
	"EntitySynonymMapper":        {},
	"ResponseSelector":           {},
	"FallbackClassifier":         {},
	"KeywordIntentClassifier":    {},
	"MemoizationPolicy":          {},
	"AugmentedMemoizationPolicy": {},
	"TEDPolicy":                  {},
	"RulePolicy":                 {},
	"UnexpecTEDIntentPolicy":     {},
}

const (
	defaultFallbackThreshold = 0.7
	defaultFallbackAction    = "action_default_fallback"
	fallbackUtteranceName    = "utter_please_rephrase"
	fallbackUtteranceText    = "Sorry I didn't get that. Can you rephrase?"
	fallbackRuleName         = "ask the user to rephrase whenever they send a message with low nlu confidence"
)

// DefaultPipeline is the NLU pipeline seeded into new bots.
func DefaultPipeline() []domain.Component {
	return []domain.Component{
		{"name": "WhitespaceTokenizer"},
		{"name": "RegexFeaturizer"},
		{"name": "LexicalSyntacticFeaturizer"},
		{"name": "CountVectorsFeaturizer"},
		{"name": "CountVectorsFeaturizer", "analyzer": "char_wb", "min_ngram": 1, "max_ngram": 4},
		{"name": "DIETClassifier", "epochs": 100},
		{"name": "FallbackClassifier", "threshold": defaultFallbackThreshold},
		{"name": "EntitySynonymMapper"},
		{"name": "ResponseSelector", "epochs": 100},
	}
}

// DefaultPolicies is the dialogue policy set seeded into new bots.
func DefaultPolicies() []domain.Component {
	return []domain.Component{
		{"name": "MemoizationPolicy"},
		{"name": "TEDPolicy", "epochs": 100, "max_history": 5},
		{"name": "RulePolicy", "core_fallback_threshold": 0.3, "core_fallback_action_name": defaultFallbackAction},
	}
}

// ComponentProperties is the simplified tuning surface exposed to clients;
// SaveComponentProperties translates it into pipeline and policy edits.
type ComponentProperties struct {
	NLUConfidenceThreshold float64 `json:"nlu_confidence_threshold"`
	ActionFallback         string  `json:"action_fallback"`
	NLUEpochs              int     `json:"nlu_epochs"`
	ResponseEpochs         int     `json:"response_epochs"`
	TEDEpochs              int     `json:"ted_epochs"`
}

// SaveConfig validates and stores the bot's pipeline and policies, then
// injects the fallback components and a default fallback rule so the bot
// always has a low-confidence path.
func (s *Service) SaveConfig(ctx context.Context, language string, pipeline, policies []domain.Component, bot uuid.UUID, user string) error {
	for _, c := range append(append([]domain.Component{}, pipeline...), policies...) {
		if c.Name() == "" {
			return apperr.Validation("Component name cannot be empty")
		}
		if _, ok := knownComponents[c.Name()]; !ok {
			return apperr.Newf(apperr.KindValidation, "Invalid component %s", c.Name())
		}
	}
	if language == "" {
		language = "en"
	}
	pipeline = injectFallbackClassifier(pipeline)
	policies = injectRulePolicy(policies)
	return s.inTx(ctx, func(dbc dbctx.Context) error {
		cfg := &domain.BotConfig{
			ID:        uuid.New(),
			Language:  language,
			Pipeline:  pipeline,
			Policies:  policies,
			Bot:       bot,
			User:      user,
			Status:    true,
			Timestamp: time.Now().UTC(),
		}
		if _, err := s.configs.Save(dbc, cfg); err != nil {
			return err
		}
		if err := s.ensureFallbackFlow(dbc, bot, user); err != nil {
			return err
		}
		s.recordAudit(dbc, bot, user, "config", domain.AuditSave, map[string]interface{}{"language": language})
		return nil
	})
}

// GetConfig returns the active config, falling back to the defaults when
// none has been saved yet.
func (s *Service) GetConfig(ctx context.Context, bot uuid.UUID) (*domain.BotConfig, error) {
	cfg, err := s.configs.Get(dbctx.New(ctx), bot)
	if err == gorm.ErrRecordNotFound {
		return &domain.BotConfig{
			Language: "en",
			Pipeline: DefaultPipeline(),
			Policies: DefaultPolicies(),
			Bot:      bot,
		}, nil
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveComponentProperties rewrites the tunable knobs inside the stored
// config: the fallback threshold arrives as a percentage and lands on the
// FallbackClassifier divided by 100, and the fallback action must already
// exist as a response or registered action.
func (s *Service) SaveComponentProperties(ctx context.Context, props *ComponentProperties, bot uuid.UUID, user string) error {
	if props == nil {
		return apperr.Validation("At least one component property is required")
	}
	if props.NLUConfidenceThreshold != 0 && (props.NLUConfidenceThreshold < 30 || props.NLUConfidenceThreshold > 90) {
		return apperr.Validation("nlu_confidence_threshold should be between 30 and 90")
	}
	return s.inTx(ctx, func(dbc dbctx.Context) error {
		cfg, err := s.configs.Get(dbc, bot)
		if err == gorm.ErrRecordNotFound {
			cfg = &domain.BotConfig{
				ID:        uuid.New(),
				Language:  "en",
				Pipeline:  DefaultPipeline(),
				Policies:  DefaultPolicies(),
				Bot:       bot,
				User:      user,
				Status:    true,
				Timestamp: time.Now().UTC(),
			}
		} else if err != nil {
			return err
		}
		if props.ActionFallback != "" {
			known, err := s.fallbackActionKnown(dbc, bot, props.ActionFallback)
			if err != nil {
				return err
			}
			if !known {
				return apperr.Newf(apperr.KindValidation, "Action fallback %s does not exist", props.ActionFallback)
			}
		}
		cfg.Pipeline = injectFallbackClassifier(cfg.Pipeline)
		cfg.Policies = injectRulePolicy(cfg.Policies)
		for i, c := range cfg.Pipeline {
			switch c.Name() {
			case "FallbackClassifier":
				if props.NLUConfidenceThreshold != 0 {
					cfg.Pipeline[i]["threshold"] = props.NLUConfidenceThreshold / 100
				}
			case "DIETClassifier":
				if props.NLUEpochs > 0 {
					cfg.Pipeline[i]["epochs"] = props.NLUEpochs
				}
			case "ResponseSelector":
				if props.ResponseEpochs > 0 {
					cfg.Pipeline[i]["epochs"] = props.ResponseEpochs
				}
			}
		}
		for i, c := range cfg.Policies {
			switch c.Name() {
			case "RulePolicy":
				if props.ActionFallback != "" {
					cfg.Policies[i]["core_fallback_action_name"] = props.ActionFallback
				}
			case "TEDPolicy":
				if props.TEDEpochs > 0 {
					cfg.Policies[i]["epochs"] = props.TEDEpochs
				}
			}
		}
		cfg.User = user
		if _, err := s.configs.Save(dbc, cfg); err != nil {
			return err
		}
		s.recordAudit(dbc, bot, user, "config", domain.AuditUpdate, map[string]interface{}{"properties": props.ActionFallback})
		return nil
	})
}

// AddSessionConfig upserts the per-bot conversation session settings.
func (s *Service) AddSessionConfig(ctx context.Context, expirationMinutes int, carryOverSlots bool, bot uuid.UUID, user string) error {
	if expirationMinutes <= 0 {
		return apperr.Validation("Session expiration time must be greater than zero")
	}
	return s.inTx(ctx, func(dbc dbctx.Context) error {
		cfg := &domain.SessionConfig{
			ID:                    uuid.New(),
			SessionExpirationTime: expirationMinutes,
			CarryOverSlots:        carryOverSlots,
			Bot:                   bot,
			User:                  user,
			Status:                true,
			Timestamp:             time.Now().UTC(),
		}
		if _, err := s.sessions.Save(dbc, cfg); err != nil {
			return err
		}
		s.recordAudit(dbc, bot, user, "session_config", domain.AuditSave, map[string]interface{}{"session_expiration_time": expirationMinutes})
		return nil
	})
}

// GetSessionConfig returns the stored session settings or the defaults of
// 60 minutes with slot carry-over.
func (s *Service) GetSessionConfig(ctx context.Context, bot uuid.UUID) (*domain.SessionConfig, error) {
	cfg, err := s.sessions.Get(dbctx.New(ctx), bot)
	if err == gorm.ErrRecordNotFound {
		return &domain.SessionConfig{SessionExpirationTime: 60, CarryOverSlots: true, Bot: bot}, nil
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// AddEndpoints upserts the per-bot external endpoints. Bot and action
// endpoints must be HTTP URLs; the tracker endpoint must be a MongoDB
// connection URI.
func (s *Service) AddEndpoints(ctx context.Context, botEndpoint, actionEndpoint, trackerEndpoint *domain.EndpointConfig, bot uuid.UUID, user string) error {
	if botEndpoint != nil {
		if err := validateHTTPURL(botEndpoint.URL); err != nil {
			return err
		}
	}
	if actionEndpoint != nil {
		if err := validateHTTPURL(actionEndpoint.URL); err != nil {
			return err
		}
	}
	if trackerEndpoint != nil {
		if !strings.HasPrefix(trackerEndpoint.URL, "mongodb://") && !strings.HasPrefix(trackerEndpoint.URL, "mongodb+srv://") {
			return apperr.Validation("Invalid tracker url!")
		}
	}
	return s.inTx(ctx, func(dbc dbctx.Context) error {
		ep := &domain.Endpoints{
			ID:        uuid.New(),
			Bot:       bot,
			User:      user,
			Status:    true,
			Timestamp: time.Now().UTC(),
		}
		var err error
		if ep.BotEndpoint, err = marshalEndpoint(botEndpoint); err != nil {
			return err
		}
		if ep.ActionEndpoint, err = marshalEndpoint(actionEndpoint); err != nil {
			return err
		}
		if ep.TrackerEndpoint, err = marshalEndpoint(trackerEndpoint); err != nil {
			return err
		}
		if _, err := s.endpoints.Save(dbc, ep); err != nil {
			return err
		}
		s.recordAudit(dbc, bot, user, "endpoints", domain.AuditSave, nil)
		return nil
	})
}

func (s *Service) GetEndpoints(ctx context.Context, bot uuid.UUID) (*domain.Endpoints, error) {
	ep, err := s.endpoints.Get(dbctx.New(ctx), bot)
	return ep, apperr.FromDB(err, "Endpoint configuration not found")
}

// GetBotSettings returns the stored settings or the defaults for a bot that
// never had them tuned.
func (s *Service) GetBotSettings(ctx context.Context, bot uuid.UUID) (*domain.BotSettings, error) {
	settings, err := s.settings.Get(dbctx.New(ctx), bot)
	if err == gorm.ErrRecordNotFound {
		return &domain.BotSettings{
			Bot:                 bot,
			WhatsappBSPType:     domain.BSPMeta,
			TrainingLimitPerDay: 5,
			TestLimitPerDay:     5,
			ImportLimitPerDay:   5,
			EventLimitPerDay:    10,
			RefreshTokenExpiry:  60,
		}, nil
	}
	if err != nil {
		return nil, err
	}
	return settings, nil
}

func (s *Service) UpdateBotSettings(ctx context.Context, settings *domain.BotSettings, user string) error {
	return s.inTx(ctx, func(dbc dbctx.Context) error {
		settings.User = user
		if _, err := s.settings.Save(dbc, settings); err != nil {
			return err
		}
		s.recordAudit(dbc, settings.Bot, user, "bot_settings", domain.AuditUpdate, nil)
		return nil
	})
}

func (s *Service) ListAuditLog(ctx context.Context, bot uuid.UUID, limit int) ([]*domain.AuditLogEntry, error) {
	return s.audit.List(dbctx.New(ctx), bot, limit)
}

// injectFallbackClassifier guarantees a FallbackClassifier in the pipeline,
// placed right after the DIETClassifier.
func injectFallbackClassifier(pipeline []domain.Component) []domain.Component {
	for _, c := range pipeline {
		if c.Name() == "FallbackClassifier" {
			return pipeline
		}
	}
	fallback := domain.Component{"name": "FallbackClassifier", "threshold": defaultFallbackThreshold}
	for i, c := range pipeline {
		if c.Name() == "DIETClassifier" {
			out := make([]domain.Component, 0, len(pipeline)+1)
			out = append(out, pipeline[:i+1]...)
			out = append(out, fallback)
			out = append(out, pipeline[i+1:]...)
			return out
		}
	}
	return append(pipeline, fallback)
}

// injectRulePolicy guarantees a RulePolicy so fallback rules can fire.
func injectRulePolicy(policies []domain.Component) []domain.Component {
	for _, c := range policies {
		if c.Name() == "RulePolicy" {
			return policies
		}
	}
	return append(policies, domain.Component{
		"name":                      "RulePolicy",
		"core_fallback_threshold":   0.3,
		"core_fallback_action_name": defaultFallbackAction,
	})
}

// ensureFallbackFlow seeds the default rephrase utterance and the
// low-confidence rule when the bot does not have them yet.
func (s *Service) ensureFallbackFlow(dbc dbctx.Context, bot uuid.UUID, user string) error {
	count, err := s.responses.CountByName(dbc, bot, fallbackUtteranceName)
	if err != nil {
		return err
	}
	if count == 0 {
		resp := &domain.Response{
			ID:        uuid.New(),
			Name:      fallbackUtteranceName,
			Bot:       bot,
			User:      user,
			Status:    true,
			Timestamp: time.Now().UTC(),
		}
		if err := resp.SetTextValue(&domain.ResponseText{Text: fallbackUtteranceText}); err != nil {
			return err
		}
		if _, err := s.responses.Create(dbc, []*domain.Response{resp}); err != nil {
			return err
		}
		if err := s.ensureUtterance(dbc, bot, user, fallbackUtteranceName); err != nil {
			return err
		}
	}
	_, err = s.stories.GetRuleByName(dbc, bot, fallbackRuleName)
	if err == nil {
		return nil
	}
	if err != gorm.ErrRecordNotFound {
		return err
	}
	rule := &domain.Rule{
		ID:        uuid.New(),
		BlockName: fallbackRuleName,
		Events: []domain.StoryEvent{
			{Name: "...", Type: domain.StoryEventAction},
			{Name: "nlu_fallback", Type: domain.StoryEventUser},
			{Name: fallbackUtteranceName, Type: domain.StoryEventAction},
		},
		TemplateType: domain.TemplateTypeFallback,
		Bot:          bot,
		User:         user,
		Status:       true,
		Timestamp:    time.Now().UTC(),
	}
	_, err = s.stories.CreateRule(dbc, rule)
	return err
}

// fallbackActionKnown reports whether the name resolves to an existing
// response or registered action.
func (s *Service) fallbackActionKnown(dbc dbctx.Context, bot uuid.UUID, name string) (bool, error) {
	if name == defaultFallbackAction {
		return true, nil
	}
	count, err := s.responses.CountByName(dbc, bot, name)
	if err != nil {
		return false, err
	}
	if count > 0 {
		return true, nil
	}
	return s.actions.ExistsByName(dbc, bot, name)
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return apperr.Validation("Invalid endpoint url!")
	}
	return nil
}

func marshalEndpoint(ep *domain.EndpointConfig) ([]byte, error) {
	if ep == nil {
		return nil, nil
	}
	return json.Marshal(ep)
}
