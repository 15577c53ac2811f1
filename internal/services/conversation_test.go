package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/kairon-labs/kairon-backend/internal/agent"
	"github.com/kairon-labs/kairon-backend/internal/channels"
	accountrepo "github.com/kairon-labs/kairon-backend/internal/data/repos/account"
	channelsrepo "github.com/kairon-labs/kairon-backend/internal/data/repos/channels"
	corpusrepo "github.com/kairon-labs/kairon-backend/internal/data/repos/corpus"
	"github.com/kairon-labs/kairon-backend/internal/data/repos/testutil"
	trackerrepo "github.com/kairon-labs/kairon-backend/internal/data/repos/tracker"
	"github.com/kairon-labs/kairon-backend/internal/domain"
	"github.com/kairon-labs/kairon-backend/internal/pkg/apperr"
	"github.com/kairon-labs/kairon-backend/internal/pkg/dbctx"
	"github.com/kairon-labs/kairon-backend/internal/tracker"
)

const svcTestUser = "tester@kairon.ai"

type stubAgent struct {
	prediction *agent.Prediction
}

func (a *stubAgent) HandleMessage(context.Context, channels.UserMessage) (*agent.Prediction, error) {
	return a.prediction, nil
}

func (a *stubAgent) ModelPath() string { return "/models/stub.tar.gz" }

type stubCache struct {
	agent   agent.Agent
	err     error
	gets    int
	evicted []uuid.UUID
}

func (c *stubCache) Get(context.Context, uuid.UUID) (agent.Agent, error) {
	c.gets++
	if c.err != nil {
		return nil, c.err
	}
	return c.agent, nil
}

func (c *stubCache) Reload(ctx context.Context, bot uuid.UUID) (agent.Agent, error) {
	return c.Get(ctx, bot)
}

func (c *stubCache) IsExists(uuid.UUID) bool { return c.agent != nil }

func (c *stubCache) Evict(bot uuid.UUID) { c.evicted = append(c.evicted, bot) }

type deskMessage struct {
	content     string
	messageType string
}

type recordingDesk struct {
	failCreate bool
	created    int
	messages   []deskMessage
}

func (d *recordingDesk) CreateConversation(context.Context, map[string]interface{}, string) (int, error) {
	if d.failCreate {
		return 0, apperr.Provider("agent desk unreachable")
	}
	d.created++
	return 42, nil
}

func (d *recordingDesk) SendMessage(_ context.Context, _ map[string]interface{}, _ int, content, messageType string) error {
	d.messages = append(d.messages, deskMessage{content: content, messageType: messageType})
	return nil
}

func greetPrediction() *agent.Prediction {
	return &agent.Prediction{
		NLU: map[string]interface{}{
			"intent": map[string]interface{}{"name": "greet", "confidence": 0.97},
		},
		Actions:   []string{"utter_greet"},
		Responses: []map[string]interface{}{{"text": "Hello!"}},
		Slots:     map[string]interface{}{},
		Events: []domain.EventEntry{
			{Event: domain.EventUser, Text: "hi", Timestamp: float64(time.Now().Unix())},
			{Event: domain.EventBot, Text: "Hello!", Timestamp: float64(time.Now().Unix())},
		},
	}
}

type convFixture struct {
	svc       *ConversationService
	liveAgent channelsrepo.LiveAgentConfigRepo
	metering  channelsrepo.MeteringRepo
	cache     *stubCache
	desk      *recordingDesk
	tx        *gorm.DB
	bot       uuid.UUID
	account   uuid.UUID
}

func newConvFixture(t *testing.T, prediction *agent.Prediction) *convFixture {
	t.Helper()
	tx := testutil.Tx(t, testutil.DB(t))
	botID := testutil.SeedBot(t, tx)
	log := testutil.Logger(t)

	bots := accountrepo.NewBotRepo(tx, log)
	bot, err := bots.GetByID(dbctx.Context{Ctx: context.Background(), Tx: tx}, botID)
	require.NoError(t, err)

	cache := &stubCache{}
	if prediction != nil {
		cache.agent = &stubAgent{prediction: prediction}
	} else {
		cache.err = apperr.New(apperr.KindValidation, apperr.MsgBotNotTrained)
	}
	desk := &recordingDesk{}
	liveAgent := channelsrepo.NewLiveAgentConfigRepo(tx, log)
	metering := channelsrepo.NewMeteringRepo(tx, log)
	trackerSvc := tracker.NewService(
		trackerrepo.NewTrackerRepo(tx, log),
		corpusrepo.NewTrainingExampleRepo(tx, log),
		nil,
		log,
	)
	svc := NewConversationService(bots, liveAgent, metering, cache, trackerSvc, desk, log)
	return &convFixture{
		svc:       svc,
		liveAgent: liveAgent,
		metering:  metering,
		cache:     cache,
		desk:      desk,
		tx:        tx,
		bot:       botID,
		account:   bot.Account,
	}
}

func (f *convFixture) saveHandoffConfig(t *testing.T, cfg *domain.LiveAgentConfig) {
	t.Helper()
	cfg.ID = uuid.New()
	cfg.Bot = f.bot
	cfg.AgentType = "chatwoot"
	cfg.User = svcTestUser
	cfg.Status = true
	cfg.Timestamp = time.Now().UTC()
	_, err := f.liveAgent.Save(dbctx.Context{Ctx: context.Background(), Tx: f.tx}, cfg)
	require.NoError(t, err)
}

func (f *convFixture) meteringCount(t *testing.T, metric domain.MetricType) int64 {
	t.Helper()
	count, err := f.metering.CountSince(
		dbctx.Context{Ctx: context.Background(), Tx: f.tx},
		f.account, metric, time.Now().Add(-time.Hour),
	)
	require.NoError(t, err)
	return count
}

func TestHandleMessageEmptyText(t *testing.T) {
	f := newConvFixture(t, greetPrediction())
	_, err := f.svc.HandleMessage(context.Background(), f.bot, channels.UserMessage{Text: "  ", SenderID: "alice"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestHandleMessageBotReply(t *testing.T) {
	f := newConvFixture(t, greetPrediction())

	resp, err := f.svc.HandleMessage(context.Background(), f.bot, channels.UserMessage{Text: "hi", SenderID: "alice"})
	require.NoError(t, err)
	require.NotNil(t, resp.AgentHandoff)
	assert.False(t, resp.AgentHandoff.Initiate)
	assert.Equal(t, []string{"utter_greet"}, resp.Action)
	require.Len(t, resp.Response, 1)
	assert.Equal(t, "Hello!", resp.Response[0]["text"])

	assert.EqualValues(t, 1, f.meteringCount(t, domain.MetricTestChat))
	assert.EqualValues(t, 0, f.meteringCount(t, domain.MetricProdChat))
}

func TestHandleMessageChannelTrafficMetersProdChat(t *testing.T) {
	f := newConvFixture(t, greetPrediction())

	msg := channels.NewUserMessage("hi", "alice", domain.ChannelTelegram, f.bot, f.account)
	_, err := f.svc.HandleMessage(context.Background(), f.bot, msg)
	require.NoError(t, err)
	assert.EqualValues(t, 1, f.meteringCount(t, domain.MetricProdChat))
}

func TestHandleMessageUntrainedBot(t *testing.T) {
	f := newConvFixture(t, nil)
	_, err := f.svc.HandleMessage(context.Background(), f.bot, channels.UserMessage{Text: "hi", SenderID: "alice"})
	require.Error(t, err)
	assert.Equal(t, apperr.MsgBotNotTrained, err.Error())
}

func TestHandoffOnIntentTrigger(t *testing.T) {
	f := newConvFixture(t, greetPrediction())
	f.saveHandoffConfig(t, &domain.LiveAgentConfig{
		TriggerOnIntents: domain.StringList{"GREET"},
	})

	resp, err := f.svc.HandleMessage(context.Background(), f.bot, channels.UserMessage{Text: "hi", SenderID: "alice"})
	require.NoError(t, err)
	require.NotNil(t, resp.AgentHandoff)
	assert.True(t, resp.AgentHandoff.Initiate)
	assert.Equal(t, "chatwoot", resp.AgentHandoff.Type)
	assert.Equal(t, 42, resp.AgentHandoff.AdditionalProperties["destination"])

	// The user turn and the bot reply both land on the desk transcript.
	require.Len(t, f.desk.messages, 2)
	assert.Equal(t, deskMessage{content: "hi", messageType: "incoming"}, f.desk.messages[0])
	assert.Equal(t, deskMessage{content: "Hello!", messageType: "outgoing"}, f.desk.messages[1])

	assert.EqualValues(t, 1, f.meteringCount(t, domain.MetricAgentHandoff))
}

func TestHandoffOnActionTrigger(t *testing.T) {
	f := newConvFixture(t, greetPrediction())
	f.saveHandoffConfig(t, &domain.LiveAgentConfig{
		TriggerOnActions: domain.StringList{"utter_greet"},
	})

	resp, err := f.svc.HandleMessage(context.Background(), f.bot, channels.UserMessage{Text: "hi", SenderID: "alice"})
	require.NoError(t, err)
	assert.True(t, resp.AgentHandoff.Initiate)
}

func TestOverrideBotSkipsModel(t *testing.T) {
	f := newConvFixture(t, greetPrediction())
	f.saveHandoffConfig(t, &domain.LiveAgentConfig{OverrideBot: true})

	resp, err := f.svc.HandleMessage(context.Background(), f.bot, channels.UserMessage{Text: "hi", SenderID: "alice"})
	require.NoError(t, err)
	assert.True(t, resp.AgentHandoff.Initiate)
	assert.Empty(t, resp.Action)
	assert.Zero(t, f.cache.gets)
}

func TestHandoffFailureFallsBackToBotReply(t *testing.T) {
	f := newConvFixture(t, greetPrediction())
	f.desk.failCreate = true
	f.saveHandoffConfig(t, &domain.LiveAgentConfig{
		TriggerOnIntents: domain.StringList{"greet"},
	})

	resp, err := f.svc.HandleMessage(context.Background(), f.bot, channels.UserMessage{Text: "hi", SenderID: "alice"})
	require.NoError(t, err)
	assert.False(t, resp.AgentHandoff.Initiate)
	require.Len(t, resp.Response, 1)
	assert.Equal(t, "Hello!", resp.Response[0]["text"])
}
