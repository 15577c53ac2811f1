package codec

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
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
	corpussvc "github.com/kairon-labs/kairon-backend/internal/services/corpus"
)

const testUser = "tester@kairon.ai"

func newTestCodec(t *testing.T) (*Codec, *corpussvc.Service, *gorm.DB, uuid.UUID) {
	t.Helper()
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	bot := testutil.SeedBot(t, tx)
	log := testutil.Logger(t)
	svc := corpussvc.NewService(tx, corpussvc.Repos{
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
	return New(svc, log), svc, tx, bot
}

func seedCorpus(t *testing.T, svc *corpussvc.Service, bot uuid.UUID) {
	t.Helper()
	ctx := context.Background()

	_, err := svc.AddTrainingExamples(ctx, []string{
		"book a flight to [paris](city)",
		"get me a ticket to [london](city)",
	}, "book_flight", bot, testUser, false)
	require.NoError(t, err)

	require.NoError(t, svc.AddSynonym(ctx, "ny", []string{"new york", "big apple"}, bot, testUser))
	require.NoError(t, svc.AddLookupValues(ctx, "city", []string{"paris", "london"}, bot, testUser))
	require.NoError(t, svc.AddRegexFeature(ctx, "pnr", `[A-Z]{6}`, bot, testUser))

	_, err = svc.AddTextResponse(ctx, "Hello, traveller!", "utter_greet", bot, testUser)
	require.NoError(t, err)

	_, err = svc.AddIntent(ctx, "greet", bot, testUser, false)
	require.NoError(t, err)
	_, err = svc.AddComplexStory(ctx, &corpussvc.ComplexStoryRequest{
		Name: "greet user",
		Type: corpussvc.FlowStory,
		Steps: []corpussvc.StoryStep{
			{Name: "greet", Type: corpussvc.StepIntent},
			{Name: "utter_greet", Type: corpussvc.StepBot},
		},
	}, bot, testUser)
	require.NoError(t, err)

	_, err = svc.AddHTTPAction(ctx, &corpussvc.HTTPActionRequest{
		ActionName:       "action_fetch_fare",
		HTTPURL:          "http://fares.local/api",
		RequestMethod:    "GET",
		ResponseTemplate: "The fare is ${data.fare}",
	}, bot, testUser)
	require.NoError(t, err)

	require.NoError(t, svc.SaveConfig(ctx, "en",
		[]domain.Component{{"name": "WhitespaceTokenizer"}, {"name": "DIETClassifier"}},
		[]domain.Component{{"name": "MemoizationPolicy"}},
		bot, testUser))
}

func TestPrepareTrainingDataLayout(t *testing.T) {
	c, svc, _, bot := newTestCodec(t)
	seedCorpus(t, svc, bot)
	dir := t.TempDir()

	require.NoError(t, c.PrepareTrainingData(context.Background(), bot, dir, nil))

	for _, rel := range []string{
		filepath.Join("data", FileNLU),
		filepath.Join("data", FileStories),
		filepath.Join("data", FileRules),
		FileDomain,
		FileConfig,
		FileHTTPAction,
	} {
		_, err := os.Stat(filepath.Join(dir, rel))
		require.NoError(t, err, rel)
	}

	nlu, err := os.ReadFile(filepath.Join(dir, "data", FileNLU))
	require.NoError(t, err)
	assert.Contains(t, string(nlu), "intent: book_flight")
	assert.Contains(t, string(nlu), "[paris](city)")
	assert.Contains(t, string(nlu), "synonym: ny")

	dom, err := os.ReadFile(filepath.Join(dir, FileDomain))
	require.NoError(t, err)
	assert.Contains(t, string(dom), "utter_greet")
	assert.Contains(t, string(dom), "Hello, traveller!")
}

func TestSaveFromPathRoundTrip(t *testing.T) {
	c, svc, tx, bot := newTestCodec(t)
	seedCorpus(t, svc, bot)
	dir := t.TempDir()
	ctx := context.Background()

	require.NoError(t, c.PrepareTrainingData(ctx, bot, dir, nil))

	target := testutil.SeedBot(t, tx)
	require.NoError(t, c.SaveFromPath(ctx, dir, target, false, testUser))

	nlu, err := svc.LoadNLU(ctx, target)
	require.NoError(t, err)
	require.Len(t, nlu.Examples, 2)
	assert.ElementsMatch(t, []string{"new york", "big apple"}, nlu.Synonyms["ny"])
	require.Len(t, nlu.Regexes, 1)
	assert.Equal(t, `[A-Z]{6}`, nlu.Regexes[0].Pattern)

	var annotated bool
	for _, ex := range nlu.Examples {
		for _, e := range ex.Entities {
			assert.Equal(t, e.Value, ex.Text[e.Start:e.End])
			annotated = true
		}
	}
	assert.True(t, annotated, "entity annotations survive the round trip")

	dom, err := svc.LoadDomain(ctx, target)
	require.NoError(t, err)
	assert.Contains(t, dom.Intents, "greet")
	assert.Contains(t, dom.Intents, "book_flight")
	require.Len(t, dom.Responses["utter_greet"], 1)
	require.NotNil(t, dom.Responses["utter_greet"][0].Text)
	assert.Equal(t, "Hello, traveller!", dom.Responses["utter_greet"][0].Text.Text)

	stories, _, err := svc.LoadStories(ctx, target)
	require.NoError(t, err)
	require.Len(t, stories, 1)
	assert.Equal(t, "greet user", stories[0].BlockName)
	require.Len(t, stories[0].Events, 2)
	assert.Equal(t, domain.StoryEventUser, stories[0].Events[0].Type)
	assert.Equal(t, domain.StoryEventAction, stories[0].Events[1].Type)

	actions, err := svc.LoadHTTPActions(ctx, target)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, "action_fetch_fare", actions[0].ActionName)
}

func TestSaveFromPathEmptyDir(t *testing.T) {
	c, _, tx, _ := newTestCodec(t)
	target := testutil.SeedBot(t, tx)

	err := c.SaveFromPath(context.Background(), t.TempDir(), target, false, testUser)
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

const (
	fixtureNLU = `version: "3.1"
nlu:
- intent: greet
  examples: |
    - hi
    - hello there
`
	fixtureStories = `version: "3.1"
stories:
- story: greet user
  steps:
  - intent: greet
  - action: utter_greet
`
	fixtureRules = `version: "3.1"
rules:
- rule: always greet back
  steps:
  - intent: greet
  - action: utter_greet
`
	fixtureDomain = `version: "3.1"
intents:
- greet
responses:
  utter_greet:
  - text: "Hello!"
`
)

func TestValidateAndPrepareDataComplete(t *testing.T) {
	c, _, _, _ := newTestCodec(t)

	result, err := c.ValidateAndPrepareData(map[string][]byte{
		"nlu.yml":     []byte(fixtureNLU),
		"stories.yml": []byte(fixtureStories),
		"rules.yml":   []byte(fixtureRules),
		"domain.yml":  []byte(fixtureDomain),
	})
	require.NoError(t, err)
	assert.False(t, result.NeedsEvent)
	assert.Equal(t, []string{"config", "http_actions"}, result.Missing)

	_, err = os.Stat(filepath.Join(result.Dir, "data", FileNLU))
	require.NoError(t, err)
}

func TestValidateAndPrepareDataMissingCore(t *testing.T) {
	c, _, _, _ := newTestCodec(t)

	result, err := c.ValidateAndPrepareData(map[string][]byte{
		"nlu.yml": []byte(fixtureNLU),
	})
	require.NoError(t, err)
	assert.True(t, result.NeedsEvent)
	assert.Contains(t, result.Missing, "stories")
	assert.Contains(t, result.Missing, "domain")
	assert.Contains(t, result.Missing, "rules")
}

func TestValidateAndPrepareDataBadAnnotation(t *testing.T) {
	c, _, _, _ := newTestCodec(t)

	badNLU := `version: "3.1"
nlu:
- intent: greet
  examples: |
    - fly to [paris](city
`
	_, err := c.ValidateAndPrepareData(map[string][]byte{
		"nlu.yml":     []byte(badNLU),
		"stories.yml": []byte(fixtureStories),
		"rules.yml":   []byte(fixtureRules),
		"domain.yml":  []byte(fixtureDomain),
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestValidateAndPrepareDataZip(t *testing.T) {
	c, _, _, _ := newTestCodec(t)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range map[string]string{
		"nlu.yml":     fixtureNLU,
		"stories.yml": fixtureStories,
		"rules.yml":   fixtureRules,
		"domain.yml":  fixtureDomain,
	} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	result, err := c.ValidateAndPrepareData(map[string][]byte{"training.zip": buf.Bytes()})
	require.NoError(t, err)
	assert.False(t, result.NeedsEvent)
}

func TestDecodeHTTPActionsSchema(t *testing.T) {
	good := `http_actions:
- action_name: action_fetch_fare
  http_url: http://fares.local/api
  request_method: GET
  response: The fare is ${data.fare}
  params_list:
  - key: origin
    value: city
    parameter_type: slot
`
	actions, err := decodeHTTPActions([]byte(good))
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, "action_fetch_fare", actions[0].ActionName)
	require.Len(t, actions[0].ParamsList, 1)
	assert.Equal(t, domain.ParamSlot, actions[0].ParamsList[0].ParameterType)

	bad := `http_actions:
- action_name: action_fetch_fare
  endpoint: http://fares.local/api
`
	_, err = decodeHTTPActions([]byte(bad))
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestAnnotateExample(t *testing.T) {
	text := "book a flight to paris on friday"
	entities := []domain.Entity{
		{Start: 17, End: 22, Value: "paris", Entity: "city"},
		{Start: 26, End: 32, Value: "friday", Entity: "day"},
	}
	assert.Equal(t, "book a flight to [paris](city) on [friday](day)", annotateExample(text, entities))
	assert.Equal(t, text, annotateExample(text, nil))
}
