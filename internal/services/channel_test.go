package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	accountrepo "github.com/kairon-labs/kairon-backend/internal/data/repos/account"
	channelsrepo "github.com/kairon-labs/kairon-backend/internal/data/repos/channels"
	"github.com/kairon-labs/kairon-backend/internal/data/repos/testutil"
	"github.com/kairon-labs/kairon-backend/internal/domain"
	"github.com/kairon-labs/kairon-backend/internal/pkg/apperr"
)

type channelFixture struct {
	svc *ChannelService
	tx  *gorm.DB
	bot uuid.UUID
}

func newChannelFixture(t *testing.T) *channelFixture {
	t.Helper()
	tx := testutil.Tx(t, testutil.DB(t))
	bot := testutil.SeedBot(t, tx)
	log := testutil.Logger(t)

	users := accountrepo.NewUserRepo(tx, log)
	access := accountrepo.NewBotAccessRepo(tx, log)
	auth := NewAuthService(users, access, "test-signing-secret", time.Hour, log)
	svc := NewChannelService(
		channelsrepo.NewChannelConfigRepo(tx, log),
		channelsrepo.NewLiveAgentConfigRepo(tx, log),
		accountrepo.NewBotRepo(tx, log),
		auth,
		"https://bot.kairon.ai/",
		log,
	)
	return &channelFixture{svc: svc, tx: tx, bot: bot}
}

func TestSaveChannelMissingCredential(t *testing.T) {
	f := newChannelFixture(t)
	_, err := f.svc.Save(context.Background(), f.bot, domain.ChannelSlack, map[string]interface{}{
		"bot_user_oauth_token": "xoxb-1",
	}, svcTestUser)
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "slack_signing_secret")
}

func TestSaveChannelUnknownType(t *testing.T) {
	f := newChannelFixture(t)
	_, err := f.svc.Save(context.Background(), f.bot, domain.ChannelType("carrier_pigeon"), map[string]interface{}{}, svcTestUser)
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestSaveAndResolveByToken(t *testing.T) {
	f := newChannelFixture(t)
	ctx := context.Background()

	webhookURL, err := f.svc.Save(ctx, f.bot, domain.ChannelSlack, map[string]interface{}{
		"bot_user_oauth_token": "xoxb-1",
		"slack_signing_secret": "sig-1",
	}, svcTestUser)
	require.NoError(t, err)
	prefix := "https://bot.kairon.ai/api/webhook/slack/" + f.bot.String() + "/"
	require.True(t, strings.HasPrefix(webhookURL, prefix), webhookURL)

	token := strings.TrimPrefix(webhookURL, prefix)
	config, err := f.svc.ResolveByToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, f.bot, config.Bot)
	assert.Equal(t, domain.ChannelSlack, config.ConnectorType)

	_, err = f.svc.ResolveByToken(ctx, token+"x")
	require.Error(t, err)
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
}

func TestSaveTelegramRegistersWebhook(t *testing.T) {
	f := newChannelFixture(t)
	var registered string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		registered = r.URL.Path
		w.Write([]byte(`{"ok": true}`))
	}))
	defer server.Close()
	f.svc.telegramBase = server.URL

	_, err := f.svc.Save(context.Background(), f.bot, domain.ChannelTelegram, map[string]interface{}{
		"access_token": "12345:token",
	}, svcTestUser)
	require.NoError(t, err)
	assert.Equal(t, "/bot12345:token/setWebhook", registered)

	config, err := f.svc.Get(context.Background(), f.bot, domain.ChannelTelegram)
	require.NoError(t, err)
	assert.Equal(t, "12345:token", config.Config["access_token"])
}

func TestSaveTelegramProviderRejectionAbortsSave(t *testing.T) {
	f := newChannelFixture(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok": false, "description": "bot token invalid"}`))
	}))
	defer server.Close()
	f.svc.telegramBase = server.URL

	_, err := f.svc.Save(context.Background(), f.bot, domain.ChannelTelegram, map[string]interface{}{
		"access_token": "12345:bad",
	}, svcTestUser)
	require.Error(t, err)
	assert.Equal(t, apperr.KindProvider, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "bot token invalid")

	_, err = f.svc.Get(context.Background(), f.bot, domain.ChannelTelegram)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestSaveReplacesExistingConnector(t *testing.T) {
	f := newChannelFixture(t)
	ctx := context.Background()
	cfg := map[string]interface{}{
		"bot_user_oauth_token": "xoxb-1",
		"slack_signing_secret": "sig-1",
	}
	firstURL, err := f.svc.Save(ctx, f.bot, domain.ChannelSlack, cfg, svcTestUser)
	require.NoError(t, err)

	cfg["slack_signing_secret"] = "sig-2"
	secondURL, err := f.svc.Save(ctx, f.bot, domain.ChannelSlack, cfg, svcTestUser)
	require.NoError(t, err)

	configs, err := f.svc.List(ctx, f.bot)
	require.NoError(t, err)
	require.Len(t, configs, 1)
	assert.Equal(t, "sig-2", configs[0].Config["slack_signing_secret"])

	// Reconfiguring rotates the endpoint token; the old URL goes dead.
	prefix := "https://bot.kairon.ai/api/webhook/slack/" + f.bot.String() + "/"
	_, err = f.svc.ResolveByToken(ctx, strings.TrimPrefix(secondURL, prefix))
	require.NoError(t, err)
	_, err = f.svc.ResolveByToken(ctx, strings.TrimPrefix(firstURL, prefix))
	require.Error(t, err)
}

func TestDeleteChannel(t *testing.T) {
	f := newChannelFixture(t)
	ctx := context.Background()
	_, err := f.svc.Save(ctx, f.bot, domain.ChannelSlack, map[string]interface{}{
		"bot_user_oauth_token": "xoxb-1",
		"slack_signing_secret": "sig-1",
	}, svcTestUser)
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, f.bot, domain.ChannelSlack, svcTestUser))
	_, err = f.svc.Get(ctx, f.bot, domain.ChannelSlack)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	err = f.svc.Delete(ctx, f.bot, domain.ChannelSlack, svcTestUser)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestLiveAgentConfigValidation(t *testing.T) {
	f := newChannelFixture(t)
	ctx := context.Background()

	_, err := f.svc.SaveLiveAgentConfig(ctx, f.bot, &domain.LiveAgentConfig{
		AgentType: "zendesk",
		Config:    map[string]interface{}{},
	}, svcTestUser)
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = f.svc.SaveLiveAgentConfig(ctx, f.bot, &domain.LiveAgentConfig{
		Config: map[string]interface{}{"account_id": "12", "inbox_identifier": "inbox-1"},
	}, svcTestUser)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api_access_token")

	saved, err := f.svc.SaveLiveAgentConfig(ctx, f.bot, &domain.LiveAgentConfig{
		Config: map[string]interface{}{
			"account_id":       "12",
			"inbox_identifier": "inbox-1",
			"api_access_token": "cw-token",
		},
		TriggerOnIntents: domain.StringList{"help"},
	}, svcTestUser)
	require.NoError(t, err)
	assert.Equal(t, "chatwoot", saved.AgentType)

	got, err := f.svc.GetLiveAgentConfig(ctx, f.bot)
	require.NoError(t, err)
	assert.Equal(t, domain.StringList{"help"}, got.TriggerOnIntents)

	require.NoError(t, f.svc.DeleteLiveAgentConfig(ctx, f.bot, svcTestUser))
	_, err = f.svc.GetLiveAgentConfig(ctx, f.bot)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}
