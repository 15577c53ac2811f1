package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	accountrepo "github.com/kairon-labs/kairon-backend/internal/data/repos/account"
	channelsrepo "github.com/kairon-labs/kairon-backend/internal/data/repos/channels"
	corpusrepo "github.com/kairon-labs/kairon-backend/internal/data/repos/corpus"
	eventsrepo "github.com/kairon-labs/kairon-backend/internal/data/repos/events"
	"github.com/kairon-labs/kairon-backend/internal/data/repos/testutil"
	trackerrepo "github.com/kairon-labs/kairon-backend/internal/data/repos/tracker"
	"github.com/kairon-labs/kairon-backend/internal/domain"
	"github.com/kairon-labs/kairon-backend/internal/pkg/apperr"
	"github.com/kairon-labs/kairon-backend/internal/pkg/dbctx"
	corpussvc "github.com/kairon-labs/kairon-backend/internal/services/corpus"
	"github.com/kairon-labs/kairon-backend/internal/tracker"
)

type accountFixture struct {
	svc    *AccountService
	corpus *corpussvc.Service
	access accountrepo.BotAccessRepo
	bots   accountrepo.BotRepo
	cache  *stubCache
	tx     *gorm.DB
}

func newAccountFixture(t *testing.T) *accountFixture {
	t.Helper()
	tx := testutil.Tx(t, testutil.DB(t))
	log := testutil.Logger(t)

	corpus := corpussvc.NewService(tx, corpussvc.Repos{
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

	trackerSvc := tracker.NewService(
		trackerrepo.NewTrackerRepo(tx, log),
		corpusrepo.NewTrainingExampleRepo(tx, log),
		nil,
		log,
	)
	access := accountrepo.NewBotAccessRepo(tx, log)
	bots := accountrepo.NewBotRepo(tx, log)
	cache := &stubCache{}
	svc := NewAccountService(AccountDeps{
		Accounts:    accountrepo.NewAccountRepo(tx, log),
		Users:       accountrepo.NewUserRepo(tx, log),
		Bots:        bots,
		Access:      access,
		Corpus:      corpus,
		Tracker:     trackerSvc,
		Logs:        eventsrepo.NewExecutorLogRepo(tx, log),
		ChannelCfgs: channelsrepo.NewChannelConfigRepo(tx, log),
		ChannelLogs: channelsrepo.NewChannelLogRepo(tx, log),
		Metering:    channelsrepo.NewMeteringRepo(tx, log),
		LiveAgent:   channelsrepo.NewLiveAgentConfigRepo(tx, log),
		Cache:       cache,
	}, log)
	return &accountFixture{svc: svc, corpus: corpus, access: access, bots: bots, cache: cache, tx: tx}
}

func TestRegisterAccount(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()

	account, user, err := f.svc.RegisterAccount(ctx, "acme-"+uuid.NewString()[:8], "Alice@Kairon.AI", "Alice", "Smith", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, "alice@kairon.ai", user.Email)
	assert.Equal(t, account.ID, user.Account)
	assert.NotEqual(t, "s3cret-pass", user.Password)

	_, _, err = f.svc.RegisterAccount(ctx, "other-"+uuid.NewString()[:8], "alice@kairon.ai", "Alice", "Smith", "s3cret-pass")
	require.Error(t, err)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestRegisterAccountDuplicateName(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()
	name := "acme-" + uuid.NewString()[:8]

	_, _, err := f.svc.RegisterAccount(ctx, name, "one@kairon.ai", "", "", "s3cret-pass")
	require.NoError(t, err)

	_, _, err = f.svc.RegisterAccount(ctx, name, "two@kairon.ai", "", "", "s3cret-pass")
	require.Error(t, err)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestRegisterAccountShortPassword(t *testing.T) {
	f := newAccountFixture(t)
	_, _, err := f.svc.RegisterAccount(context.Background(), "acme", "alice@kairon.ai", "", "", "short")
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestAddBotSeedsDefaults(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()
	account, _, err := f.svc.RegisterAccount(ctx, "acme-"+uuid.NewString()[:8], "owner@kairon.ai", "", "", "s3cret-pass")
	require.NoError(t, err)

	bot, err := f.svc.AddBot(ctx, "support-bot", account.ID, "owner@kairon.ai")
	require.NoError(t, err)

	config, err := f.corpus.GetConfig(ctx, bot.ID)
	require.NoError(t, err)
	names := make([]string, 0, len(config.Pipeline))
	for _, c := range config.Pipeline {
		names = append(names, c.Name())
	}
	assert.Contains(t, names, "FallbackClassifier")

	session, err := f.corpus.GetSessionConfig(ctx, bot.ID)
	require.NoError(t, err)
	assert.Equal(t, 60, session.SessionExpirationTime)
	assert.True(t, session.CarryOverSlots)

	grant, err := f.access.Get(dbctx.Context{Ctx: ctx, Tx: f.tx}, bot.ID, "owner@kairon.ai")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleOwner, grant.Role)

	_, err = f.svc.AddBot(ctx, "Support-Bot", account.ID, "owner@kairon.ai")
	require.Error(t, err)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestDeleteBotCascade(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()
	account, _, err := f.svc.RegisterAccount(ctx, "acme-"+uuid.NewString()[:8], "owner@kairon.ai", "", "", "s3cret-pass")
	require.NoError(t, err)
	bot, err := f.svc.AddBot(ctx, "support-bot", account.ID, "owner@kairon.ai")
	require.NoError(t, err)

	_, err = f.corpus.AddIntent(ctx, "greet", bot.ID, "owner@kairon.ai", false)
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteBot(ctx, bot.ID, "owner@kairon.ai"))

	_, err = f.bots.GetByID(dbctx.Context{Ctx: ctx, Tx: f.tx}, bot.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	intents, err := f.corpus.ListIntents(ctx, bot.ID)
	require.NoError(t, err)
	assert.Empty(t, intents)

	_, err = f.access.Get(dbctx.Context{Ctx: ctx, Tx: f.tx}, bot.ID, "owner@kairon.ai")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	assert.Contains(t, f.cache.evicted, bot.ID)
}

func TestResetPasswordEvictsOwnedBots(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()
	account, _, err := f.svc.RegisterAccount(ctx, "acme-"+uuid.NewString()[:8], "owner@kairon.ai", "", "", "s3cret-pass")
	require.NoError(t, err)
	bot, err := f.svc.AddBot(ctx, "support-bot", account.ID, "owner@kairon.ai")
	require.NoError(t, err)

	require.NoError(t, f.svc.ResetPassword(ctx, "owner@kairon.ai", "n3w-s3cret-pass"))
	assert.Contains(t, f.cache.evicted, bot.ID)

	err = f.svc.ResetPassword(ctx, "nobody@kairon.ai", "n3w-s3cret-pass")
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestTransferOwnership(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: f.tx}
	account, _, err := f.svc.RegisterAccount(ctx, "acme-"+uuid.NewString()[:8], "owner@kairon.ai", "", "", "s3cret-pass")
	require.NoError(t, err)
	bot, err := f.svc.AddBot(ctx, "support-bot", account.ID, "owner@kairon.ai")
	require.NoError(t, err)

	require.NoError(t, f.svc.TransferOwnership(ctx, bot.ID, "owner@kairon.ai", "heir@kairon.ai"))

	oldGrant, err := f.access.Get(dbc, bot.ID, "owner@kairon.ai")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, oldGrant.Role)

	newGrant, err := f.access.Get(dbc, bot.ID, "heir@kairon.ai")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleOwner, newGrant.Role)

	assert.Contains(t, f.cache.evicted, bot.ID)

	// The demoted admin can no longer hand the bot away.
	err = f.svc.TransferOwnership(ctx, bot.ID, "owner@kairon.ai", "mallory@kairon.ai")
	require.Error(t, err)
	assert.Equal(t, apperr.MsgBotAccessDenied, err.Error())

	_, err = f.access.Get(dbc, bot.ID, "mallory@kairon.ai")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
