package app

import (
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	temporalsdkclient "go.temporal.io/sdk/client"
	"gorm.io/gorm"

	"github.com/kairon-labs/kairon-backend/internal/agent"
	"github.com/kairon-labs/kairon-backend/internal/broker"
	"github.com/kairon-labs/kairon-backend/internal/clients/chatwoot"
	"github.com/kairon-labs/kairon-backend/internal/clients/translate"
	"github.com/kairon-labs/kairon-backend/internal/clients/webfetch"
	"github.com/kairon-labs/kairon-backend/internal/events"
	"github.com/kairon-labs/kairon-backend/internal/platform/logger"
	"github.com/kairon-labs/kairon-backend/internal/services"
	"github.com/kairon-labs/kairon-backend/internal/services/codec"
	corpussvc "github.com/kairon-labs/kairon-backend/internal/services/corpus"
	"github.com/kairon-labs/kairon-backend/internal/tracker"
)

type Services struct {
	Corpus       *corpussvc.Service
	Codec        *codec.Codec
	Tracker      *tracker.Service
	Engine       agent.TrainingEngine
	Cache        agent.Cache
	Auth         *services.AuthService
	Account      *services.AccountService
	Channel      *services.ChannelService
	Conversation *services.ConversationService
	Events       *events.Manager

	Broker   *broker.Broker
	Temporal temporalsdkclient.Client
}

func wireServices(db *gorm.DB, cfg Config, r Repos, log *logger.Logger) (Services, error) {
	var s Services

	s.Corpus = corpussvc.NewService(db, corpussvc.Repos{
		Intents:   r.Intents,
		Examples:  r.Examples,
		Synonyms:  r.Synonyms,
		Lookups:   r.Lookups,
		Regexes:   r.Regexes,
		Responses: r.Responses,
		Utters:    r.Utters,
		Slots:     r.Slots,
		Forms:     r.Forms,
		Actions:   r.Actions,
		HTTPActs:  r.HTTPActs,
		Stories:   r.Stories,
		Configs:   r.Configs,
		Endpoints: r.Endpoints,
		Sessions:  r.Sessions,
		Settings:  r.Settings,
		Audit:     r.Audit,
		Bots:      r.Bots,
	}, log)
	s.Codec = codec.New(s.Corpus, log)

	// The broker doubles as the conversation-event stream when configured.
	var stream tracker.Stream
	if cfg.EventExecutor == "broker" {
		b, err := broker.Connect(cfg.NATSURL, log)
		if err != nil {
			return Services{}, fmt.Errorf("connect broker: %w", err)
		}
		s.Broker = b
		stream = b
	}
	s.Tracker = tracker.NewService(r.Tracker, r.Examples, stream, log)

	s.Engine = agent.NewLocalEngine(cfg.ModelDir, log)
	var err error
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		s.Cache, err = agent.NewRedisCache(s.Engine, cfg.AgentCacheSize, rdb, log)
	} else {
		s.Cache, err = agent.NewLRUCache(s.Engine, cfg.AgentCacheSize, log)
	}
	if err != nil {
		return Services{}, fmt.Errorf("init agent cache: %w", err)
	}

	s.Auth = services.NewAuthService(r.Users, r.Access, cfg.JWTSecretKey, cfg.TokenTTL, log)
	s.Account = services.NewAccountService(services.AccountDeps{
		Accounts:    r.Accounts,
		Users:       r.Users,
		Bots:        r.Bots,
		Access:      r.Access,
		Corpus:      s.Corpus,
		Tracker:     s.Tracker,
		Logs:        r.ExecutorLogs,
		ChannelCfgs: r.ChannelConfigs,
		ChannelLogs: r.ChannelLogs,
		Metering:    r.Metering,
		LiveAgent:   r.LiveAgentConfigs,
		Cache:       s.Cache,
	}, log)
	s.Channel = services.NewChannelService(r.ChannelConfigs, r.LiveAgentConfigs, r.Bots, s.Auth, cfg.PublicURL, log)
	s.Conversation = services.NewConversationService(r.Bots, r.LiveAgentConfigs, r.Metering, s.Cache, s.Tracker, chatwoot.New(log), log)

	if err := os.MkdirAll(cfg.WorkDir, 0o755); err != nil {
		return Services{}, fmt.Errorf("create work dir: %w", err)
	}
	deps := &events.Deps{
		Corpus:  s.Corpus,
		Codec:   s.Codec,
		Tracker: s.Tracker,
		Engine:  s.Engine,
		Cache:   s.Cache,
		Fetcher: webfetch.New(log),
		WorkDir: cfg.WorkDir,
		Log:     log,
	}
	if t := translate.New(cfg.TranslatorURL, cfg.TranslatorAPIKey, log); t != nil {
		deps.Translator = t
	}

	executor, standalone, err := wireExecutor(cfg, s.Broker, &s, log)
	if err != nil {
		return Services{}, err
	}
	s.Events = events.NewManager(r.ExecutorLogs, r.Settings, deps, executor, log)
	if standalone != nil {
		standalone.Bind(s.Events)
	}
	return s, nil
}
