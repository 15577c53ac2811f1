package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kairon-labs/kairon-backend/internal/agent"
	accountrepo "github.com/kairon-labs/kairon-backend/internal/data/repos/account"
	channelsrepo "github.com/kairon-labs/kairon-backend/internal/data/repos/channels"
	eventsrepo "github.com/kairon-labs/kairon-backend/internal/data/repos/events"
	"github.com/kairon-labs/kairon-backend/internal/domain"
	"github.com/kairon-labs/kairon-backend/internal/pkg/apperr"
	"github.com/kairon-labs/kairon-backend/internal/pkg/dbctx"
	"github.com/kairon-labs/kairon-backend/internal/platform/logger"
	corpussvc "github.com/kairon-labs/kairon-backend/internal/services/corpus"
	"github.com/kairon-labs/kairon-backend/internal/tracker"
)

const defaultResponseName = "utter_default"
const defaultResponseText = "Sorry, I'm not able to help with that. Please contact support."

// AccountService owns account and bot lifecycle: registration, bot creation
// with its default corpus, and the hard-delete cascade.
type AccountService struct {
	accounts    accountrepo.AccountRepo
	users       accountrepo.UserRepo
	bots        accountrepo.BotRepo
	access      accountrepo.BotAccessRepo
	corpus      *corpussvc.Service
	tracker     *tracker.Service
	logs        eventsrepo.ExecutorLogRepo
	channelCfgs channelsrepo.ChannelConfigRepo
	channelLogs channelsrepo.ChannelLogRepo
	metering    channelsrepo.MeteringRepo
	liveAgent   channelsrepo.LiveAgentConfigRepo
	cache       agent.Cache
	log         *logger.Logger
}

type AccountDeps struct {
	Accounts    accountrepo.AccountRepo
	Users       accountrepo.UserRepo
	Bots        accountrepo.BotRepo
	Access      accountrepo.BotAccessRepo
	Corpus      *corpussvc.Service
	Tracker     *tracker.Service
	Logs        eventsrepo.ExecutorLogRepo
	ChannelCfgs channelsrepo.ChannelConfigRepo
	ChannelLogs channelsrepo.ChannelLogRepo
	Metering    channelsrepo.MeteringRepo
	LiveAgent   channelsrepo.LiveAgentConfigRepo
	Cache       agent.Cache
}

func NewAccountService(d AccountDeps, baseLog *logger.Logger) *AccountService {
	return &AccountService{
		accounts:    d.Accounts,
		users:       d.Users,
		bots:        d.Bots,
		access:      d.Access,
		corpus:      d.Corpus,
		tracker:     d.Tracker,
		logs:        d.Logs,
		channelCfgs: d.ChannelCfgs,
		channelLogs: d.ChannelLogs,
		metering:    d.Metering,
		liveAgent:   d.LiveAgent,
		cache:       d.Cache,
		log:         baseLog.With("service", "AccountService"),
	}
}

// RegisterAccount creates the account and its first user.
func (s *AccountService) RegisterAccount(ctx context.Context, name, email, firstName, lastName, password string) (*domain.Account, *domain.User, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" {
		return nil, nil, apperr.Validation("Account name cannot be empty")
	}
	if email == "" {
		return nil, nil, apperr.Validation("Email cannot be empty")
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, nil, err
	}
	dbc := dbctx.New(ctx)
	exists, err := s.accounts.ExistsByName(dbc, name)
	if err != nil {
		return nil, nil, err
	}
	if exists {
		return nil, nil, apperr.Conflict("Account name already exists!")
	}
	taken, err := s.users.ExistsByEmail(dbc, email)
	if err != nil {
		return nil, nil, err
	}
	if taken {
		return nil, nil, apperr.Conflict("User already exists! Try with a different email.")
	}

	account := &domain.Account{
		ID:        uuid.New(),
		Name:      name,
		User:      email,
		Status:    true,
		Timestamp: time.Now().UTC(),
	}
	if _, err := s.accounts.Create(dbc, account); err != nil {
		return nil, nil, err
	}
	user := &domain.User{
		ID:        uuid.New(),
		Email:     email,
		Password:  hash,
		FirstName: firstName,
		LastName:  lastName,
		Account:   account.ID,
		Status:    true,
		Timestamp: time.Now().UTC(),
	}
	if _, err := s.users.Create(dbc, user); err != nil {
		return nil, nil, err
	}
	s.log.Info("Account registered", "account", account.ID.String(), "email", email)
	return account, user, nil
}

// AddBot creates a bot and seeds the defaults every new bot starts with:
// config with fallback components, session config, settings, and the default
// utterance.
func (s *AccountService) AddBot(ctx context.Context, name string, account uuid.UUID, owner string) (*domain.Bot, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validation("Bot name cannot be empty")
	}
	dbc := dbctx.New(ctx)
	exists, err := s.bots.ExistsByName(dbc, account, name)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperr.Conflict("Bot already exists!")
	}

	bot := &domain.Bot{
		ID:        uuid.New(),
		Name:      name,
		Account:   account,
		User:      owner,
		Status:    true,
		Timestamp: time.Now().UTC(),
	}
	if _, err := s.bots.Create(dbc, bot); err != nil {
		return nil, err
	}
	if _, err := s.access.Grant(dbc, &domain.BotAccess{
		ID:        uuid.New(),
		Bot:       bot.ID,
		Username:  strings.ToLower(owner),
		Role:      domain.RoleOwner,
		User:      owner,
		Status:    true,
		Timestamp: time.Now().UTC(),
	}); err != nil {
		return nil, err
	}

	if err := s.corpus.SaveConfig(ctx, "en", corpussvc.DefaultPipeline(), corpussvc.DefaultPolicies(), bot.ID, owner); err != nil {
		return nil, err
	}
	if err := s.corpus.AddSessionConfig(ctx, 60, true, bot.ID, owner); err != nil {
		return nil, err
	}
	settings, err := s.corpus.GetBotSettings(ctx, bot.ID)
	if err != nil {
		return nil, err
	}
	settings.ID = uuid.New()
	settings.Status = true
	settings.Timestamp = time.Now().UTC()
	if err := s.corpus.UpdateBotSettings(ctx, settings, owner); err != nil {
		return nil, err
	}
	if _, err := s.corpus.AddTextResponse(ctx, defaultResponseText, defaultResponseName, bot.ID, owner); err != nil && apperr.KindOf(err) != apperr.KindConflict {
		return nil, err
	}
	s.log.Info("Bot created", "bot", bot.ID.String(), "account", account.String())
	return bot, nil
}

// DeleteBot hard-deletes every per-bot table, revokes access grants, retires
// the bot row, and evicts the cached agent.
func (s *AccountService) DeleteBot(ctx context.Context, botID uuid.UUID, user string) error {
	dbc := dbctx.New(ctx)
	bot, err := s.bots.GetByID(dbc, botID)
	if err != nil {
		return apperr.FromDB(err, "Bot does not exist")
	}
	if err := s.corpus.HardDeleteAllBotData(ctx, bot.ID); err != nil {
		return err
	}
	if _, err := s.tracker.DeleteForBot(ctx, bot.ID, 0); err != nil {
		return err
	}
	for _, del := range []func(dbctx.Context, uuid.UUID) error{
		s.logs.HardDeleteForBot,
		s.channelCfgs.HardDeleteForBot,
		s.channelLogs.HardDeleteForBot,
		s.metering.HardDeleteForBot,
		s.liveAgent.HardDeleteForBot,
	} {
		if err := del(dbc, bot.ID); err != nil {
			return err
		}
	}
	if err := s.access.RevokeAllForBot(dbc, bot.ID, user); err != nil {
		return err
	}
	if err := s.bots.SoftDelete(dbc, bot.ID, user); err != nil {
		return err
	}
	s.cache.Evict(bot.ID)
	s.log.Info("Bot deleted", "bot", bot.ID.String(), "user", user)
	return nil
}

// ResetPassword rehashes the credential and evicts the cached agents of every
// bot the user owns, forcing the serving path through re-authentication.
func (s *AccountService) ResetPassword(ctx context.Context, email, newPassword string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	dbc := dbctx.New(ctx)
	if _, err := s.users.GetByEmail(dbc, email); err != nil {
		return apperr.FromDB(err, "User does not exist!")
	}
	if err := s.users.UpdatePassword(dbc, email, hash); err != nil {
		return err
	}
	grants, err := s.access.ListForUser(dbc, email)
	if err != nil {
		return err
	}
	for _, grant := range grants {
		if grant.Role == domain.RoleOwner {
			s.cache.Evict(grant.Bot)
		}
	}
	s.log.Info("Password reset", "email", email)
	return nil
}

// TransferOwnership moves the owner role to another user and demotes the
// current owner to admin. The cached agent is evicted so the next request
// reloads under the new owner.
func (s *AccountService) TransferOwnership(ctx context.Context, botID uuid.UUID, currentOwner, newOwner string) error {
	currentOwner = strings.ToLower(strings.TrimSpace(currentOwner))
	newOwner = strings.ToLower(strings.TrimSpace(newOwner))
	if currentOwner == newOwner {
		return apperr.Validation("Ownership transfer requires a different user")
	}
	dbc := dbctx.New(ctx)
	grant, err := s.access.Get(dbc, botID, currentOwner)
	if err != nil {
		return apperr.Forbidden(apperr.MsgBotAccessDenied)
	}
	if grant.Role != domain.RoleOwner {
		return apperr.Forbidden(apperr.MsgBotAccessDenied)
	}

	if _, err := s.access.Get(dbc, botID, newOwner); err == nil {
		if err := s.access.UpdateRole(dbc, botID, newOwner, domain.RoleOwner, currentOwner); err != nil {
			return err
		}
	} else if err == gorm.ErrRecordNotFound {
		if _, err := s.access.Grant(dbc, &domain.BotAccess{
			ID:        uuid.New(),
			Bot:       botID,
			Username:  newOwner,
			Role:      domain.RoleOwner,
			User:      currentOwner,
			Status:    true,
			Timestamp: time.Now().UTC(),
		}); err != nil {
			return err
		}
	} else {
		return err
	}
	if err := s.access.UpdateRole(dbc, botID, currentOwner, domain.RoleAdmin, currentOwner); err != nil {
		return err
	}
	s.cache.Evict(botID)
	s.log.Info("Ownership transferred", "bot", botID.String(), "to", newOwner)
	return nil
}
