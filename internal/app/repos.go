package app

import (
	"gorm.io/gorm"

	accountrepo "github.com/kairon-labs/kairon-backend/internal/data/repos/account"
	channelsrepo "github.com/kairon-labs/kairon-backend/internal/data/repos/channels"
	corpusrepo "github.com/kairon-labs/kairon-backend/internal/data/repos/corpus"
	eventsrepo "github.com/kairon-labs/kairon-backend/internal/data/repos/events"
	trackerrepo "github.com/kairon-labs/kairon-backend/internal/data/repos/tracker"
	"github.com/kairon-labs/kairon-backend/internal/platform/logger"
)

type Repos struct {
	Accounts accountrepo.AccountRepo
	Users    accountrepo.UserRepo
	Bots     accountrepo.BotRepo
	Access   accountrepo.BotAccessRepo

	Intents   corpusrepo.IntentRepo
	Examples  corpusrepo.TrainingExampleRepo
	Synonyms  corpusrepo.EntitySynonymRepo
	Lookups   corpusrepo.LookupTableRepo
	Regexes   corpusrepo.RegexFeatureRepo
	Responses corpusrepo.ResponseRepo
	Utters    corpusrepo.UtteranceRepo
	Slots     corpusrepo.SlotRepo
	Forms     corpusrepo.FormRepo
	Actions   corpusrepo.ActionRepo
	HTTPActs  corpusrepo.HTTPActionRepo
	Stories   corpusrepo.StoryRepo
	Configs   corpusrepo.BotConfigRepo
	Endpoints corpusrepo.EndpointsRepo
	Sessions  corpusrepo.SessionConfigRepo
	Settings  corpusrepo.BotSettingsRepo
	Audit     corpusrepo.AuditRepo

	Tracker      trackerrepo.TrackerRepo
	ExecutorLogs eventsrepo.ExecutorLogRepo

	ChannelConfigs   channelsrepo.ChannelConfigRepo
	ChannelLogs      channelsrepo.ChannelLogRepo
	Metering         channelsrepo.MeteringRepo
	LiveAgentConfigs channelsrepo.LiveAgentConfigRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	return Repos{
		Accounts: accountrepo.NewAccountRepo(db, log),
		Users:    accountrepo.NewUserRepo(db, log),
		Bots:     accountrepo.NewBotRepo(db, log),
		Access:   accountrepo.NewBotAccessRepo(db, log),

		Intents:   corpusrepo.NewIntentRepo(db, log),
		Examples:  corpusrepo.NewTrainingExampleRepo(db, log),
		Synonyms:  corpusrepo.NewEntitySynonymRepo(db, log),
		Lookups:   corpusrepo.NewLookupTableRepo(db, log),
		Regexes:   corpusrepo.NewRegexFeatureRepo(db, log),
		Responses: corpusrepo.NewResponseRepo(db, log),
		Utters:    corpusrepo.NewUtteranceRepo(db, log),
		Slots:     corpusrepo.NewSlotRepo(db, log),
		Forms:     corpusrepo.NewFormRepo(db, log),
		Actions:   corpusrepo.NewActionRepo(db, log),
		HTTPActs:  corpusrepo.NewHTTPActionRepo(db, log),
		Stories:   corpusrepo.NewStoryRepo(db, log),
		Configs:   corpusrepo.NewBotConfigRepo(db, log),
		Endpoints: corpusrepo.NewEndpointsRepo(db, log),
		Sessions:  corpusrepo.NewSessionConfigRepo(db, log),
		Settings:  corpusrepo.NewBotSettingsRepo(db, log),
		Audit:     corpusrepo.NewAuditRepo(db, log),

		Tracker:      trackerrepo.NewTrackerRepo(db, log),
		ExecutorLogs: eventsrepo.NewExecutorLogRepo(db, log),

		ChannelConfigs:   channelsrepo.NewChannelConfigRepo(db, log),
		ChannelLogs:      channelsrepo.NewChannelLogRepo(db, log),
		Metering:         channelsrepo.NewMeteringRepo(db, log),
		LiveAgentConfigs: channelsrepo.NewLiveAgentConfigRepo(db, log),
	}
}
