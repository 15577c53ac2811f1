package corpus

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/kairon-labs/kairon-backend/internal/domain"
	"github.com/kairon-labs/kairon-backend/internal/pkg/apperr"
	"github.com/kairon-labs/kairon-backend/internal/pkg/dbctx"
)

// Training-data categories accepted by SaveTrainingData's selector set.
const (
	CategoryNLU         = "nlu"
	CategoryDomain      = "domain"
	CategoryStories     = "stories"
	CategoryRules       = "rules"
	CategoryConfig      = "config"
	CategoryHTTPActions = "http_actions"
)

// NLUExample is one intent example with its annotated entities.
type NLUExample struct {
	Intent   string          `json:"intent"`
	Text     string          `json:"text"`
	Entities []domain.Entity `json:"entities,omitempty"`
}

// NLUData is the in-memory form of a bot's NLU corpus.
type NLUData struct {
	Examples []NLUExample        `json:"examples"`
	Synonyms map[string][]string `json:"synonyms,omitempty"`
	Lookups  map[string][]string `json:"lookups,omitempty"`
	Regexes  []RegexPattern      `json:"regexes,omitempty"`
}

type RegexPattern struct {
	Name    string `json:"name"`
	Pattern string `json:"pattern"`
}

// ResponseVariant is one rendering of a response name: text or custom.
type ResponseVariant struct {
	Text   *domain.ResponseText   `json:"text,omitempty"`
	Custom map[string]interface{} `json:"custom,omitempty"`
}

// DomainData is the in-memory form of domain.yml.
type DomainData struct {
	Intents       []string                          `json:"intents"`
	Entities      []string                          `json:"entities,omitempty"`
	Slots         []*domain.Slot                    `json:"slots,omitempty"`
	Responses     map[string][]ResponseVariant      `json:"responses,omitempty"`
	Actions       []string                          `json:"actions,omitempty"`
	Forms         map[string]map[string]interface{} `json:"forms,omitempty"`
	SessionConfig *domain.SessionConfig             `json:"session_config,omitempty"`
}

// TrainingData bundles every loadable section of a bot's corpus; nil
// sections are skipped by SaveTrainingData.
type TrainingData struct {
	Config      *domain.BotConfig
	Domain      *DomainData
	Stories     []*domain.Story
	Rules       []*domain.Rule
	NLU         *NLUData
	HTTPActions []*HTTPActionRequest
}

// SaveTrainingData is the gated writer behind imports: when overwrite is
// set, each selected category is hard-deleted before its replacement is
// materialized. Categories outside the selector set are never touched.
func (s *Service) SaveTrainingData(ctx context.Context, bot uuid.UUID, user string, data *TrainingData, overwrite bool, what map[string]bool) error {
	if data == nil {
		return apperr.Validation("Training data cannot be empty")
	}
	for category := range what {
		switch category {
		case CategoryNLU, CategoryDomain, CategoryStories, CategoryRules, CategoryConfig, CategoryHTTPActions:
		default:
			return apperr.Newf(apperr.KindValidation, "Invalid training data category %s", category)
		}
	}
	return s.inTx(ctx, func(dbc dbctx.Context) error {
		if overwrite {
			if err := s.deleteBotData(dbc, bot, what); err != nil {
				return err
			}
		}
		if what[CategoryDomain] && data.Domain != nil {
			if err := s.saveDomain(dbc, bot, user, data.Domain); err != nil {
				return err
			}
		}
		if what[CategoryNLU] && data.NLU != nil {
			if err := s.saveNLU(dbc, bot, user, data.NLU); err != nil {
				return err
			}
		}
		if what[CategoryStories] {
			for _, story := range data.Stories {
				story.ID = uuid.New()
				story.Bot = bot
				story.User = user
				story.Status = true
				story.Timestamp = time.Now().UTC()
				if _, err := s.stories.CreateStory(dbc, story); err != nil {
					return err
				}
			}
		}
		if what[CategoryRules] {
			for _, rule := range data.Rules {
				rule.ID = uuid.New()
				rule.Bot = bot
				rule.User = user
				rule.Status = true
				rule.Timestamp = time.Now().UTC()
				if _, err := s.stories.CreateRule(dbc, rule); err != nil {
					return err
				}
			}
		}
		if what[CategoryConfig] && data.Config != nil {
			cfg := &domain.BotConfig{
				ID:        uuid.New(),
				Language:  data.Config.Language,
				Pipeline:  data.Config.Pipeline,
				Policies:  data.Config.Policies,
				Bot:       bot,
				User:      user,
				Status:    true,
				Timestamp: time.Now().UTC(),
			}
			if _, err := s.configs.Save(dbc, cfg); err != nil {
				return err
			}
		}
		if what[CategoryHTTPActions] {
			for _, req := range data.HTTPActions {
				if err := req.validate(); err != nil {
					return err
				}
				action := &domain.HTTPAction{
					ID:               uuid.New(),
					ActionName:       req.ActionName,
					HTTPURL:          req.HTTPURL,
					RequestMethod:    domain.HTTPRequestMethod(req.RequestMethod),
					AuthToken:        req.AuthToken,
					ResponseTemplate: req.ResponseTemplate,
					ParamsList:       req.ParamsList,
					Bot:              bot,
					User:             user,
					Status:           true,
					Timestamp:        time.Now().UTC(),
				}
				if _, err := s.httpacts.Create(dbc, action); err != nil {
					return err
				}
			}
		}
		s.recordAudit(dbc, bot, user, "training_data", domain.AuditSave, map[string]interface{}{"overwrite": overwrite})
		return nil
	})
}

// deleteBotData hard-deletes the tables behind each selected category.
func (s *Service) deleteBotData(dbc dbctx.Context, bot uuid.UUID, what map[string]bool) error {
	if what[CategoryNLU] {
		for _, del := range []func(dbctx.Context, uuid.UUID) error{
			s.examples.HardDeleteForBot,
			s.synonyms.HardDeleteForBot,
			s.lookups.HardDeleteForBot,
			s.regexes.HardDeleteForBot,
		} {
			if err := del(dbc, bot); err != nil {
				return err
			}
		}
	}
	if what[CategoryDomain] {
		for _, del := range []func(dbctx.Context, uuid.UUID) error{
			s.intents.HardDeleteForBot,
			s.slots.HardDeleteForBot,
			s.forms.HardDeleteForBot,
			s.responses.HardDeleteForBot,
			s.utters.HardDeleteForBot,
			s.actions.HardDeleteForBot,
		} {
			if err := del(dbc, bot); err != nil {
				return err
			}
		}
	}
	if what[CategoryStories] || what[CategoryRules] {
		if err := s.stories.HardDeleteForBot(dbc, bot); err != nil {
			return err
		}
	}
	if what[CategoryConfig] {
		if err := s.configs.HardDeleteForBot(dbc, bot); err != nil {
			return err
		}
	}
	if what[CategoryHTTPActions] {
		if err := s.httpacts.HardDeleteForBot(dbc, bot); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) saveNLU(dbc dbctx.Context, bot uuid.UUID, user string, nlu *NLUData) error {
	now := time.Now().UTC()
	for _, ex := range nlu.Examples {
		if err := ValidateEntities(ex.Text, ex.Entities); err != nil {
			return err
		}
		exists, err := s.intents.ExistsByName(dbc, bot, ex.Intent)
		if err != nil {
			return err
		}
		if !exists {
			intent := &domain.Intent{ID: uuid.New(), Name: ex.Intent, Bot: bot, User: user, Status: true, Timestamp: now}
			if _, err := s.intents.Create(dbc, []*domain.Intent{intent}); err != nil {
				return err
			}
		}
		dup, err := s.examples.ExistsByText(dbc, bot, ex.Text)
		if err != nil {
			return err
		}
		if dup {
			continue
		}
		row := &domain.TrainingExample{
			ID:        uuid.New(),
			Intent:    ex.Intent,
			Text:      ex.Text,
			Entities:  ex.Entities,
			Bot:       bot,
			User:      user,
			Status:    true,
			Timestamp: now,
		}
		if _, err := s.examples.Create(dbc, []*domain.TrainingExample{row}); err != nil {
			return err
		}
		if err := s.registerEntities(dbc, bot, user, ex.Entities); err != nil {
			return err
		}
	}
	for name, values := range nlu.Synonyms {
		for _, value := range values {
			exists, err := s.synonyms.ExistsByValue(dbc, bot, name, value)
			if err != nil {
				return err
			}
			if exists {
				continue
			}
			row := &domain.EntitySynonym{ID: uuid.New(), Synonym: name, Value: value, Bot: bot, User: user, Status: true, Timestamp: now}
			if _, err := s.synonyms.Create(dbc, []*domain.EntitySynonym{row}); err != nil {
				return err
			}
		}
	}
	for name, values := range nlu.Lookups {
		for _, value := range values {
			exists, err := s.lookups.ExistsByValue(dbc, bot, name, value)
			if err != nil {
				return err
			}
			if exists {
				continue
			}
			row := &domain.LookupTable{ID: uuid.New(), Name: name, Value: value, Bot: bot, User: user, Status: true, Timestamp: now}
			if _, err := s.lookups.Create(dbc, []*domain.LookupTable{row}); err != nil {
				return err
			}
		}
	}
	for _, re := range nlu.Regexes {
		feature := &domain.RegexFeature{ID: uuid.New(), Name: re.Name, Pattern: re.Pattern, Bot: bot, User: user, Status: true, Timestamp: now}
		if _, err := s.regexes.Upsert(dbc, feature); err != nil {
			return err
		}
	}
	return nil
}

// saveDomain materializes the domain section. Responses already present by
// serialized value are not duplicated.
func (s *Service) saveDomain(dbc dbctx.Context, bot uuid.UUID, user string, dom *DomainData) error {
	now := time.Now().UTC()
	for _, name := range dom.Intents {
		exists, err := s.intents.ExistsByName(dbc, bot, name)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		intent := &domain.Intent{ID: uuid.New(), Name: name, Bot: bot, User: user, Status: true, Timestamp: now}
		if _, err := s.intents.Create(dbc, []*domain.Intent{intent}); err != nil {
			return err
		}
	}
	for _, entity := range dom.Entities {
		if err := s.registerEntities(dbc, bot, user, []domain.Entity{{Entity: entity}}); err != nil {
			return err
		}
	}
	for _, slot := range dom.Slots {
		exists, err := s.slots.ExistsByName(dbc, bot, slot.Name)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		slot.ID = uuid.New()
		slot.Bot = bot
		slot.User = user
		slot.Status = true
		slot.Timestamp = now
		if _, err := s.slots.Create(dbc, slot); err != nil {
			return err
		}
	}
	existing, err := s.responses.List(dbc, bot)
	if err != nil {
		return err
	}
	registered := make(map[string]struct{}, len(existing))
	for _, r := range existing {
		registered[r.SerializedValue()] = struct{}{}
	}
	for name, variants := range dom.Responses {
		name = strings.ToLower(name)
		for _, variant := range variants {
			resp := &domain.Response{ID: uuid.New(), Name: name, Bot: bot, User: user, Status: true, Timestamp: now}
			if variant.Text != nil {
				if err := resp.SetTextValue(variant.Text); err != nil {
					return err
				}
			} else if variant.Custom != nil {
				b, err := json.Marshal(variant.Custom)
				if err != nil {
					return err
				}
				resp.Custom = datatypes.JSON(b)
			}
			if _, dup := registered[resp.SerializedValue()]; dup {
				continue
			}
			registered[resp.SerializedValue()] = struct{}{}
			if _, err := s.responses.Create(dbc, []*domain.Response{resp}); err != nil {
				return err
			}
			if err := s.ensureUtterance(dbc, bot, user, name); err != nil {
				return err
			}
		}
	}
	for _, name := range dom.Actions {
		exists, err := s.actions.ExistsByName(dbc, bot, name)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		action := &domain.Action{ID: uuid.New(), Name: name, Bot: bot, User: user, Status: true, Timestamp: now}
		if _, err := s.actions.Create(dbc, []*domain.Action{action}); err != nil {
			return err
		}
	}
	for name, mapping := range dom.Forms {
		if _, err := s.forms.GetByName(dbc, bot, name); err == nil {
			continue
		}
		form := &domain.Form{ID: uuid.New(), Name: name, Mapping: mapping, Bot: bot, User: user, Status: true, Timestamp: now}
		if _, err := s.forms.Create(dbc, form); err != nil {
			return err
		}
	}
	if dom.SessionConfig != nil {
		cfg := &domain.SessionConfig{
			ID:                    uuid.New(),
			SessionExpirationTime: dom.SessionConfig.SessionExpirationTime,
			CarryOverSlots:        dom.SessionConfig.CarryOverSlots,
			Bot:                   bot,
			User:                  user,
			Status:                true,
			Timestamp:             now,
		}
		if _, err := s.sessions.Save(dbc, cfg); err != nil {
			return err
		}
	}
	return nil
}

// LoadNLU reconstructs the NLU corpus from active rows.
func (s *Service) LoadNLU(ctx context.Context, bot uuid.UUID) (*NLUData, error) {
	dbc := dbctx.New(ctx)
	examples, err := s.examples.List(dbc, bot)
	if err != nil {
		return nil, err
	}
	synonyms, err := s.synonyms.List(dbc, bot)
	if err != nil {
		return nil, err
	}
	lookups, err := s.lookups.List(dbc, bot)
	if err != nil {
		return nil, err
	}
	regexes, err := s.regexes.List(dbc, bot)
	if err != nil {
		return nil, err
	}
	out := &NLUData{
		Examples: make([]NLUExample, 0, len(examples)),
		Synonyms: make(map[string][]string),
		Lookups:  make(map[string][]string),
	}
	for _, ex := range examples {
		out.Examples = append(out.Examples, NLUExample{Intent: ex.Intent, Text: ex.Text, Entities: ex.Entities})
	}
	for _, syn := range synonyms {
		out.Synonyms[syn.Synonym] = append(out.Synonyms[syn.Synonym], syn.Value)
	}
	for _, lookup := range lookups {
		out.Lookups[lookup.Name] = append(out.Lookups[lookup.Name], lookup.Value)
	}
	for _, re := range regexes {
		out.Regexes = append(out.Regexes, RegexPattern{Name: re.Name, Pattern: re.Pattern})
	}
	return out, nil
}

// LoadDomain reconstructs domain.yml content from active rows.
func (s *Service) LoadDomain(ctx context.Context, bot uuid.UUID) (*DomainData, error) {
	dbc := dbctx.New(ctx)
	intents, err := s.intents.List(dbc, bot)
	if err != nil {
		return nil, err
	}
	slots, err := s.slots.List(dbc, bot)
	if err != nil {
		return nil, err
	}
	responses, err := s.responses.List(dbc, bot)
	if err != nil {
		return nil, err
	}
	actions, err := s.actions.List(dbc, bot)
	if err != nil {
		return nil, err
	}
	forms, err := s.forms.List(dbc, bot)
	if err != nil {
		return nil, err
	}
	entities, err := s.ListEntities(ctx, bot)
	if err != nil {
		return nil, err
	}
	sessionCfg, err := s.GetSessionConfig(ctx, bot)
	if err != nil {
		return nil, err
	}
	out := &DomainData{
		Entities:      entities,
		Slots:         slots,
		Responses:     make(map[string][]ResponseVariant),
		Forms:         make(map[string]map[string]interface{}),
		SessionConfig: sessionCfg,
	}
	for _, intent := range intents {
		out.Intents = append(out.Intents, intent.Name)
	}
	for _, resp := range responses {
		variant := ResponseVariant{}
		if text, err := resp.TextValue(); err == nil && text != nil {
			variant.Text = text
		} else if len(resp.Custom) > 0 {
			var custom map[string]interface{}
			if err := json.Unmarshal(resp.Custom, &custom); err == nil {
				variant.Custom = custom
			}
		}
		out.Responses[resp.Name] = append(out.Responses[resp.Name], variant)
	}
	for _, action := range actions {
		out.Actions = append(out.Actions, action.Name)
	}
	for _, form := range forms {
		out.Forms[form.Name] = form.Mapping
	}
	sort.Strings(out.Intents)
	sort.Strings(out.Actions)
	return out, nil
}

// LoadStories returns the active flows of both kinds.
func (s *Service) LoadStories(ctx context.Context, bot uuid.UUID) ([]*domain.Story, []*domain.Rule, error) {
	dbc := dbctx.New(ctx)
	stories, err := s.stories.ListStories(dbc, bot)
	if err != nil {
		return nil, nil, err
	}
	rules, err := s.stories.ListRules(dbc, bot)
	if err != nil {
		return nil, nil, err
	}
	return stories, rules, nil
}

// LoadConfig is the codec-facing alias of GetConfig.
func (s *Service) LoadConfig(ctx context.Context, bot uuid.UUID) (*domain.BotConfig, error) {
	return s.GetConfig(ctx, bot)
}

// HardDeleteAllBotData removes every corpus row of a bot. Used by the bot
// deletion cascade; the audit trail goes last so earlier deletions are
// recorded before the log itself is dropped.
func (s *Service) HardDeleteAllBotData(ctx context.Context, bot uuid.UUID) error {
	return s.inTx(ctx, func(dbc dbctx.Context) error {
		for _, del := range []func(dbctx.Context, uuid.UUID) error{
			s.examples.HardDeleteForBot,
			s.synonyms.HardDeleteForBot,
			s.lookups.HardDeleteForBot,
			s.regexes.HardDeleteForBot,
			s.intents.HardDeleteForBot,
			s.slots.HardDeleteForBot,
			s.forms.HardDeleteForBot,
			s.responses.HardDeleteForBot,
			s.utters.HardDeleteForBot,
			s.actions.HardDeleteForBot,
			s.stories.HardDeleteForBot,
			s.configs.HardDeleteForBot,
			s.httpacts.HardDeleteForBot,
			s.endpoints.HardDeleteForBot,
			s.sessions.HardDeleteForBot,
			s.settings.HardDeleteForBot,
			s.audit.HardDeleteForBot,
		} {
			if err := del(dbc, bot); err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadHTTPActions reconstructs the http_action.yml content.
func (s *Service) LoadHTTPActions(ctx context.Context, bot uuid.UUID) ([]*HTTPActionRequest, error) {
	actions, err := s.httpacts.List(dbctx.New(ctx), bot)
	if err != nil {
		return nil, err
	}
	out := make([]*HTTPActionRequest, 0, len(actions))
	for _, a := range actions {
		out = append(out, &HTTPActionRequest{
			ActionName:       a.ActionName,
			HTTPURL:          a.HTTPURL,
			RequestMethod:    string(a.RequestMethod),
			AuthToken:        a.AuthToken,
			ResponseTemplate: a.ResponseTemplate,
			ParamsList:       a.ParamsList,
		})
	}
	return out, nil
}
