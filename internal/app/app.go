package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/kairon-labs/kairon-backend/internal/db"
	kaironhttp "github.com/kairon-labs/kairon-backend/internal/http"
	httpH "github.com/kairon-labs/kairon-backend/internal/http/handlers"
	httpMW "github.com/kairon-labs/kairon-backend/internal/http/middleware"
	"github.com/kairon-labs/kairon-backend/internal/platform/logger"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Cfg      Config
	Repos    Repos
	Services Services
	Server   *kaironhttp.Server
}

func New() (*App, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Sync()
		return nil, err
	}
	if err := pg.AutoMigrateAll(); err != nil {
		log.Sync()
		return nil, fmt.Errorf("automigrate: %w", err)
	}
	gdb := pg.DB()

	repos := wireRepos(gdb, log)
	svcs, err := wireServices(gdb, cfg, repos, log)
	if err != nil {
		log.Sync()
		return nil, err
	}

	authMW := httpMW.NewAuthMiddleware(svcs.Auth, log)
	server := kaironhttp.NewServer(kaironhttp.RouterConfig{
		AuthHandler:    httpH.NewAuthHandler(svcs.Auth, svcs.Account),
		AuthMiddleware: authMW,
		AccountHandler: httpH.NewAccountHandler(svcs.Account, repos.Bots),
		CorpusHandler:  httpH.NewCorpusHandler(svcs.Corpus),
		ChatHandler:    httpH.NewChatHandler(svcs.Conversation),
		ChannelHandler: httpH.NewChannelHandler(svcs.Channel),
		WebhookHandler: httpH.NewWebhookHandler(svcs.Channel, svcs.Conversation, repos.Bots, repos.ChannelLogs, log),
		EventHandler:   httpH.NewEventHandler(svcs.Events, svcs.Auth),
		HistoryHandler: httpH.NewHistoryHandler(svcs.Tracker),
		HealthHandler:  httpH.NewHealthHandler(),
		CORSOrigins:    cfg.CORSOrigins,
		Logger:         log,
	})

	return &App{
		Log:      log,
		DB:       gdb,
		Cfg:      cfg,
		Repos:    repos,
		Services: svcs,
		Server:   server,
	}, nil
}

func (a *App) Run() error {
	a.Log.Info("HTTP server starting", "addr", a.Cfg.HTTPAddr)
	return a.Server.Run(a.Cfg.HTTPAddr)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.Services.Broker != nil {
		a.Services.Broker.Close()
	}
	if a.Services.Temporal != nil {
		a.Services.Temporal.Close()
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
