package corpus

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	accountrepo "github.com/kairon-labs/kairon-backend/internal/data/repos/account"
	corpusrepo "github.com/kairon-labs/kairon-backend/internal/data/repos/corpus"
	"github.com/kairon-labs/kairon-backend/internal/data/repos/testutil"
	"github.com/kairon-labs/kairon-backend/internal/domain"
	"github.com/kairon-labs/kairon-backend/internal/pkg/apperr"
)

const testUser = "tester@kairon.ai"

func newTestService(t *testing.T) (*Service, *gorm.DB, uuid.UUID) {
	t.Helper()
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	bot := testutil.SeedBot(t, tx)
	log := testutil.Logger(t)
	svc := NewService(tx, Repos{
		Intents:   corpusrepo.NewIntentRepo(tx, log),
		Examples:  corpusrepo.NewTrainingExampleRepo(tx, log),
		Synonyms:  corpusrepo.NewEntitySynonymRepo(tx, log),
		Lookups:   corpusrepo.NewLookupTableRepo(tx, log),
		Regexes:   corpusrepo.NewRegexFeatureRepo(tx, log),
		Responses: corpusrepo.NewResponseRepo(tx, log),
		Utters:    corpusrepo.NewUtteranceRepo(tx, log),
		Slots:     corpusrepo.NewSlotRepo(tx, log),
		Forms:     corpusrepo.NewFormRepo(tx, log),
		Actions:   corpusrepo.NewActionRepo(tx, log),
		HTTPActs:  corpusrepo.NewHTTPActionRepo(tx, log),
		Stories:   corpusrepo.NewStoryRepo(tx, log),
		Configs:   corpusrepo.NewBotConfigRepo(tx, log),
		Endpoints: corpusrepo.NewEndpointsRepo(tx, log),
		Sessions:  corpusrepo.NewSessionConfigRepo(tx, log),
		Settings:  corpusrepo.NewBotSettingsRepo(tx, log),
		Audit:     corpusrepo.NewAuditRepo(tx, log),
		Bots:      accountrepo.NewBotRepo(tx, log),
	}, log)
	return svc, tx, bot
}

func TestAddIntentDuplicate(t *testing.T) {
	svc, _, bot := newTestService(t)
	ctx := context.Background()

	id, err := svc.AddIntent(ctx, "greet", bot, testUser, false)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)

	_, err = svc.AddIntent(ctx, "GREET", bot, testUser, false)
	require.Error(t, err)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	_, err = svc.AddIntent(ctx, "  ", bot, testUser, false)
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestAddTrainingExamples(t *testing.T) {
	svc, _, bot := newTestService(t)
	ctx := context.Background()

	results, err := svc.AddTrainingExamples(ctx, []string{
		"book a flight to [paris](city)",
		"book a flight to [paris](city)",
		"",
	}, "book_flight", bot, testUser, false)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.NotNil(t, results[0].ID)
	assert.Equal(t, "Training Example added", results[0].Message)
	assert.Equal(t, "book a flight to paris", results[0].Text)

	assert.Nil(t, results[1].ID)
	assert.Equal(t, "Training Example already exists!", results[1].Message)

	assert.Nil(t, results[2].ID)

	// the intent was auto-created
	intents, err := svc.ListIntents(ctx, bot)
	require.NoError(t, err)
	require.Len(t, intents, 1)
	assert.Equal(t, "book_flight", intents[0].Name)

	// the annotated entity got a text slot of the same name
	slots, err := svc.ListSlots(ctx, bot)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, "city", slots[0].Name)
	assert.Equal(t, domain.SlotText, slots[0].Type)
}

func TestAddTrainingExampleRegistersSynonym(t *testing.T) {
	svc, _, bot := newTestService(t)
	ctx := context.Background()

	_, err := svc.AddTrainingExamples(ctx, []string{`fly to [NYC]{"entity":"city","value":"new york"}`}, "book_flight", bot, testUser, false)
	require.NoError(t, err)

	synonyms, err := svc.ListSynonyms(ctx, bot)
	require.NoError(t, err)
	require.Len(t, synonyms, 1)
	assert.Equal(t, "new york", synonyms[0].Synonym)
	assert.Equal(t, "NYC", synonyms[0].Value)
}

func TestDeleteIntent(t *testing.T) {
	svc, _, bot := newTestService(t)
	ctx := context.Background()

	_, err := svc.AddTrainingExamples(ctx, []string{"hi", "hello"}, "greet", bot, testUser, false)
	require.NoError(t, err)

	// integration user cannot delete a regular intent
	err = svc.DeleteIntent(ctx, "greet", bot, testUser, true, false)
	require.Error(t, err)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	require.NoError(t, svc.DeleteIntent(ctx, "greet", bot, testUser, false, true))

	intents, err := svc.ListIntents(ctx, bot)
	require.NoError(t, err)
	assert.Empty(t, intents)

	examples, err := svc.ListTrainingExamples(ctx, bot, "greet")
	require.NoError(t, err)
	assert.Empty(t, examples)

	err = svc.DeleteIntent(ctx, "greet", bot, testUser, false, false)
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestAddResponseSerializedUniqueness(t *testing.T) {
	svc, _, bot := newTestService(t)
	ctx := context.Background()

	_, err := svc.AddTextResponse(ctx, "Hello there!", "Utter_Greet", bot, testUser)
	require.NoError(t, err)

	// name is normalized to lowercase
	responses, err := svc.ListResponses(ctx, bot, "utter_greet")
	require.NoError(t, err)
	require.Len(t, responses, 1)

	// same serialized value under a different name still collides
	_, err = svc.AddTextResponse(ctx, "Hello there!", "utter_welcome", bot, testUser)
	require.Error(t, err)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	_, err = svc.AddTextResponse(ctx, "Welcome back!", "utter_greet", bot, testUser)
	require.NoError(t, err)
}

func TestDeleteUtteranceStoryGuard(t *testing.T) {
	svc, _, bot := newTestService(t)
	ctx := context.Background()

	_, err := svc.AddIntent(ctx, "greet", bot, testUser, false)
	require.NoError(t, err)
	_, err = svc.AddTextResponse(ctx, "Hello!", "utter_greet", bot, testUser)
	require.NoError(t, err)

	_, err = svc.AddComplexStory(ctx, &ComplexStoryRequest{
		Name: "greeting flow",
		Steps: []StoryStep{
			{Name: "greet", Type: StepIntent},
			{Name: "utter_greet", Type: StepBot},
		},
		Type: FlowStory,
	}, bot, testUser)
	require.NoError(t, err)

	err = svc.DeleteUtterance(ctx, "utter_greet", bot, testUser)
	require.Error(t, err)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	require.NoError(t, svc.DeleteComplexStory(ctx, "greeting flow", FlowStory, bot, testUser))
	require.NoError(t, svc.DeleteUtterance(ctx, "utter_greet", bot, testUser))

	responses, err := svc.ListResponses(ctx, bot, "utter_greet")
	require.NoError(t, err)
	assert.Empty(t, responses)
}

func TestDeleteResponseLastVariantGuard(t *testing.T) {
	svc, _, bot := newTestService(t)
	ctx := context.Background()

	_, err := svc.AddIntent(ctx, "greet", bot, testUser, false)
	require.NoError(t, err)
	id, err := svc.AddTextResponse(ctx, "Hello!", "utter_greet", bot, testUser)
	require.NoError(t, err)

	_, err = svc.AddComplexStory(ctx, &ComplexStoryRequest{
		Name:  "greeting flow",
		Steps: []StoryStep{{Name: "greet", Type: StepIntent}, {Name: "utter_greet", Type: StepBot}},
		Type:  FlowStory,
	}, bot, testUser)
	require.NoError(t, err)

	err = svc.DeleteResponse(ctx, id, bot, testUser)
	require.Error(t, err)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	// a second variant makes the first deletable
	_, err = svc.AddTextResponse(ctx, "Hi!", "utter_greet", bot, testUser)
	require.NoError(t, err)
	require.NoError(t, svc.DeleteResponse(ctx, id, bot, testUser))
}

func TestAddComplexStoryCollisions(t *testing.T) {
	svc, _, bot := newTestService(t)
	ctx := context.Background()

	_, err := svc.AddIntent(ctx, "order", bot, testUser, false)
	require.NoError(t, err)

	req := &ComplexStoryRequest{
		Name: "order pizza",
		Steps: []StoryStep{
			{Name: "order", Type: StepIntent},
			{Name: "action_confirm_order", Type: StepAction},
		},
		Type: FlowStory,
	}
	_, err = svc.AddComplexStory(ctx, req, bot, testUser)
	require.NoError(t, err)

	// ACTION steps land in the registry
	actions, err := svc.ListActions(ctx, bot)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, "action_confirm_order", actions[0].Name)

	// same block name
	_, err = svc.AddComplexStory(ctx, req, bot, testUser)
	require.Error(t, err)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	// different name, identical event sequence
	dup := *req
	dup.Name = "order pizza again"
	_, err = svc.AddComplexStory(ctx, &dup, bot, testUser)
	require.Error(t, err)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	// same name as a story is also taken for rules
	asRule := *req
	asRule.Type = FlowRule
	_, err = svc.AddComplexStory(ctx, &asRule, bot, testUser)
	require.Error(t, err)
}

func TestAddComplexStoryStepResolution(t *testing.T) {
	svc, _, bot := newTestService(t)
	ctx := context.Background()

	// intent missing
	_, err := svc.AddComplexStory(ctx, &ComplexStoryRequest{
		Name:  "broken flow",
		Steps: []StoryStep{{Name: "no_such_intent", Type: StepIntent}, {Name: "utter_greet", Type: StepBot}},
		Type:  FlowStory,
	}, bot, testUser)
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	stories, err := svc.ListStories(ctx, bot)
	require.NoError(t, err)
	assert.Empty(t, stories)

	// utterance missing
	_, err = svc.AddIntent(ctx, "greet", bot, testUser, false)
	require.NoError(t, err)
	_, err = svc.AddComplexStory(ctx, &ComplexStoryRequest{
		Name:  "broken flow",
		Steps: []StoryStep{{Name: "greet", Type: StepIntent}, {Name: "utter_greet", Type: StepBot}},
		Type:  FlowStory,
	}, bot, testUser)
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestGetUtteranceFromIntent(t *testing.T) {
	svc, _, bot := newTestService(t)
	ctx := context.Background()

	_, err := svc.AddIntent(ctx, "order_status", bot, testUser, false)
	require.NoError(t, err)
	_, err = svc.AddIntent(ctx, "check_stock", bot, testUser, false)
	require.NoError(t, err)
	_, err = svc.AddTextResponse(ctx, "Here is your order status.", "utter_order_status", bot, testUser)
	require.NoError(t, err)

	_, err = svc.AddHTTPAction(ctx, &HTTPActionRequest{
		ActionName:       "http_check_stock",
		HTTPURL:          "https://inventory.example.com/stock",
		RequestMethod:    "GET",
		ResponseTemplate: "${data}",
	}, bot, testUser)
	require.NoError(t, err)

	_, err = svc.AddComplexStory(ctx, &ComplexStoryRequest{
		Name:  "order status",
		Steps: []StoryStep{{Name: "order_status", Type: StepIntent}, {Name: "utter_order_status", Type: StepBot}},
		Type:  FlowStory,
	}, bot, testUser)
	require.NoError(t, err)

	_, err = svc.AddComplexStory(ctx, &ComplexStoryRequest{
		Name:  "stock check",
		Steps: []StoryStep{{Name: "check_stock", Type: StepIntent}, {Name: "http_check_stock", Type: StepHTTPAction}},
		Type:  FlowStory,
	}, bot, testUser)
	require.NoError(t, err)

	name, kind, err := svc.GetUtteranceFromIntent(ctx, "order_status", bot)
	require.NoError(t, err)
	assert.Equal(t, "utter_order_status", name)
	assert.Equal(t, UtteranceKindBot, kind)

	name, kind, err = svc.GetUtteranceFromIntent(ctx, "check_stock", bot)
	require.NoError(t, err)
	assert.Equal(t, "http_check_stock", name)
	assert.Equal(t, UtteranceKindHTTP, kind)

	name, kind, err = svc.GetUtteranceFromIntent(ctx, "unknown_intent", bot)
	require.NoError(t, err)
	assert.Empty(t, name)
	assert.Empty(t, kind)
}

func TestSaveConfigInjectsFallbacks(t *testing.T) {
	svc, _, bot := newTestService(t)
	ctx := context.Background()

	err := svc.SaveConfig(ctx, "en", []domain.Component{
		{"name": "WhitespaceTokenizer"},
		{"name": "DIETClassifier", "epochs": 50},
	}, []domain.Component{
		{"name": "MemoizationPolicy"},
	}, bot, testUser)
	require.NoError(t, err)

	cfg, err := svc.GetConfig(ctx, bot)
	require.NoError(t, err)

	// FallbackClassifier lands right after the DIETClassifier
	names := make([]string, 0, len(cfg.Pipeline))
	for _, c := range cfg.Pipeline {
		names = append(names, c.Name())
	}
	assert.Equal(t, []string{"WhitespaceTokenizer", "DIETClassifier", "FallbackClassifier"}, names)

	var hasRulePolicy bool
	for _, p := range cfg.Policies {
		if p.Name() == "RulePolicy" {
			hasRulePolicy = true
		}
	}
	assert.True(t, hasRulePolicy)

	// default fallback flow was seeded
	responses, err := svc.ListResponses(ctx, bot, "utter_please_rephrase")
	require.NoError(t, err)
	assert.Len(t, responses, 1)
	rules, err := svc.ListRules(ctx, bot)
	require.NoError(t, err)
	assert.Len(t, rules, 1)

	err = svc.SaveConfig(ctx, "en", []domain.Component{{"name": "NoSuchComponent"}}, nil, bot, testUser)
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestSaveComponentProperties(t *testing.T) {
	svc, _, bot := newTestService(t)
	ctx := context.Background()

	err := svc.SaveComponentProperties(ctx, &ComponentProperties{NLUConfidenceThreshold: 70}, bot, testUser)
	require.NoError(t, err)

	cfg, err := svc.GetConfig(ctx, bot)
	require.NoError(t, err)
	var threshold float64
	for _, c := range cfg.Pipeline {
		if c.Name() == "FallbackClassifier" {
			threshold, _ = c["threshold"].(float64)
		}
	}
	assert.InDelta(t, 0.7, threshold, 1e-9)

	// out-of-range threshold
	err = svc.SaveComponentProperties(ctx, &ComponentProperties{NLUConfidenceThreshold: 20}, bot, testUser)
	require.Error(t, err)

	// unknown fallback action
	err = svc.SaveComponentProperties(ctx, &ComponentProperties{ActionFallback: "action_missing"}, bot, testUser)
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	// a registered response makes it valid
	_, err = svc.AddTextResponse(ctx, "Let me transfer you.", "utter_handoff", bot, testUser)
	require.NoError(t, err)
	require.NoError(t, svc.SaveComponentProperties(ctx, &ComponentProperties{ActionFallback: "utter_handoff"}, bot, testUser))
}

func TestAddHTTPActionRegistersSlotAndAction(t *testing.T) {
	svc, _, bot := newTestService(t)
	ctx := context.Background()

	req := &HTTPActionRequest{
		ActionName:       "http_fetch_balance",
		HTTPURL:          "https://bank.example.com/balance",
		RequestMethod:    "POST",
		ResponseTemplate: "Your balance is ${data.balance}",
		ParamsList: []domain.HTTPParam{
			{Key: "account", Value: "account_slot", ParameterType: domain.ParamSlot},
			{Key: "sender", ParameterType: domain.ParamSenderID},
		},
	}
	_, err := svc.AddHTTPAction(ctx, req, bot, testUser)
	require.NoError(t, err)

	_, err = svc.AddHTTPAction(ctx, req, bot, testUser)
	require.Error(t, err)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	actions, err := svc.ListActions(ctx, bot)
	require.NoError(t, err)
	require.Len(t, actions, 1)

	slots, err := svc.ListSlots(ctx, bot)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, domain.KaironActionResponseSlot, slots[0].Name)

	require.NoError(t, svc.DeleteHTTPAction(ctx, "http_fetch_balance", bot, testUser))
	_, err = svc.GetHTTPAction(ctx, "http_fetch_balance", bot)
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestAddOrUpdateSlot(t *testing.T) {
	svc, _, bot := newTestService(t)
	ctx := context.Background()

	_, err := svc.AddOrUpdateSlot(ctx, &domain.Slot{Name: "priority", Type: "bogus"}, bot, testUser)
	require.Error(t, err)

	_, err = svc.AddOrUpdateSlot(ctx, &domain.Slot{Name: "priority", Type: domain.SlotCategorical}, bot, testUser)
	require.Error(t, err)

	id, err := svc.AddOrUpdateSlot(ctx, &domain.Slot{
		Name:   "priority",
		Type:   domain.SlotCategorical,
		Values: []string{"low", "high"},
	}, bot, testUser)
	require.NoError(t, err)

	// same name updates in place
	again, err := svc.AddOrUpdateSlot(ctx, &domain.Slot{
		Name:   "priority",
		Type:   domain.SlotCategorical,
		Values: []string{"low", "medium", "high"},
	}, bot, testUser)
	require.NoError(t, err)
	assert.Equal(t, id, again)

	slots, err := svc.ListSlots(ctx, bot)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Len(t, slots[0].Values, 3)
}

func TestSaveTrainingDataOverwrite(t *testing.T) {
	svc, _, bot := newTestService(t)
	ctx := context.Background()

	_, err := svc.AddTrainingExamples(ctx, []string{"old example"}, "old_intent", bot, testUser, false)
	require.NoError(t, err)

	data := &TrainingData{
		NLU: &NLUData{
			Examples: []NLUExample{{Intent: "greet", Text: "hello there"}},
			Synonyms: map[string][]string{"new york": {"NYC"}},
		},
		Domain: &DomainData{
			Intents:   []string{"greet"},
			Responses: map[string][]ResponseVariant{"utter_greet": {{Text: &domain.ResponseText{Text: "Hi!"}}}},
		},
	}
	// overwrite of nlu only: examples are replaced, old intent row survives
	err = svc.SaveTrainingData(ctx, bot, testUser, data, true, map[string]bool{CategoryNLU: true, CategoryDomain: false})
	require.NoError(t, err)

	nlu, err := svc.LoadNLU(ctx, bot)
	require.NoError(t, err)
	require.Len(t, nlu.Examples, 1)
	assert.Equal(t, "hello there", nlu.Examples[0].Text)
	assert.Equal(t, []string{"NYC"}, nlu.Synonyms["new york"])

	intents, err := svc.ListIntents(ctx, bot)
	require.NoError(t, err)
	assert.Len(t, intents, 2)

	err = svc.SaveTrainingData(ctx, bot, testUser, data, false, map[string]bool{"bogus": true})
	require.Error(t, err)
}

func TestLoadDomainRoundTrip(t *testing.T) {
	svc, _, bot := newTestService(t)
	ctx := context.Background()

	_, err := svc.AddTrainingExamples(ctx, []string{"fly to [paris](city)"}, "book_flight", bot, testUser, false)
	require.NoError(t, err)
	_, err = svc.AddTextResponse(ctx, "Booked!", "utter_booked", bot, testUser)
	require.NoError(t, err)

	dom, err := svc.LoadDomain(ctx, bot)
	require.NoError(t, err)
	assert.Equal(t, []string{"book_flight"}, dom.Intents)
	assert.Equal(t, []string{"city"}, dom.Entities)
	require.Len(t, dom.Responses["utter_booked"], 1)
	assert.Equal(t, "Booked!", dom.Responses["utter_booked"][0].Text.Text)
	assert.Equal(t, 60, dom.SessionConfig.SessionExpirationTime)
}

func TestSessionConfigAndEndpoints(t *testing.T) {
	svc, _, bot := newTestService(t)
	ctx := context.Background()

	cfg, err := svc.GetSessionConfig(ctx, bot)
	require.NoError(t, err)
	assert.Equal(t, 60, cfg.SessionExpirationTime)
	assert.True(t, cfg.CarryOverSlots)

	require.NoError(t, svc.AddSessionConfig(ctx, 30, false, bot, testUser))
	cfg, err = svc.GetSessionConfig(ctx, bot)
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.SessionExpirationTime)
	assert.False(t, cfg.CarryOverSlots)

	err = svc.AddEndpoints(ctx, &domain.EndpointConfig{URL: "not a url"}, nil, nil, bot, testUser)
	require.Error(t, err)

	err = svc.AddEndpoints(ctx, nil, nil, &domain.EndpointConfig{URL: "http://not-mongo"}, bot, testUser)
	require.Error(t, err)

	err = svc.AddEndpoints(ctx,
		&domain.EndpointConfig{URL: "http://bot.example.com"},
		&domain.EndpointConfig{URL: "https://actions.example.com"},
		&domain.EndpointConfig{URL: "mongodb://localhost:27017/tracker"},
		bot, testUser)
	require.NoError(t, err)

	ep, err := svc.GetEndpoints(ctx, bot)
	require.NoError(t, err)
	assert.NotEmpty(t, ep.TrackerEndpoint)
}

func TestAuditTrail(t *testing.T) {
	svc, _, bot := newTestService(t)
	ctx := context.Background()

	_, err := svc.AddIntent(ctx, "greet", bot, testUser, false)
	require.NoError(t, err)
	require.NoError(t, svc.AddRegexFeature(ctx, "zipcode", `\d{5}`, bot, testUser))

	entries, err := svc.ListAuditLog(ctx, bot, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	// newest first
	assert.Equal(t, "regex_feature", entries[0].EntityType)
	assert.Equal(t, domain.AuditSave, entries[0].Action)
	assert.Equal(t, "intent", entries[1].EntityType)
}
