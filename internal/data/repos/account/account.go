package account

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kairon-labs/kairon-backend/internal/domain"
	"github.com/kairon-labs/kairon-backend/internal/pkg/dbctx"
	"github.com/kairon-labs/kairon-backend/internal/platform/logger"
)

type AccountRepo interface {
	Create(dbc dbctx.Context, account *domain.Account) (*domain.Account, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.Account, error)
	ExistsByName(dbc dbctx.Context, name string) (bool, error)
	SoftDelete(dbc dbctx.Context, id uuid.UUID, user string) error
}

type accountRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAccountRepo(db *gorm.DB, baseLog *logger.Logger) AccountRepo {
	return &accountRepo{db: db, log: baseLog.With("repo", "AccountRepo")}
}

func (r *accountRepo) handle(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *accountRepo) Create(dbc dbctx.Context, account *domain.Account) (*domain.Account, error) {
	if err := r.handle(dbc).WithContext(dbc.Ctx).Create(account).Error; err != nil {
		return nil, err
	}
	return account, nil
}

func (r *accountRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.Account, error) {
	var account domain.Account
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("id = ? AND status = ?", id, true).
		First(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *accountRepo) ExistsByName(dbc dbctx.Context, name string) (bool, error) {
	var count int64
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Model(&domain.Account{}).
		Where("status = ? AND lower(name) = lower(?)", true, name).
		Count(&count).Error
	return count > 0, err
}

func (r *accountRepo) SoftDelete(dbc dbctx.Context, id uuid.UUID, user string) error {
	return r.handle(dbc).WithContext(dbc.Ctx).
		Model(&domain.Account{}).
		Where("id = ? AND status = ?", id, true).
		Updates(map[string]interface{}{"status": false, "user": user, "timestamp": time.Now().UTC()}).Error
}

type BotRepo interface {
	Create(dbc dbctx.Context, bot *domain.Bot) (*domain.Bot, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.Bot, error)
	ExistsByName(dbc dbctx.Context, account uuid.UUID, name string) (bool, error)
	ListForAccount(dbc dbctx.Context, account uuid.UUID) ([]*domain.Bot, error)
	SoftDelete(dbc dbctx.Context, id uuid.UUID, user string) error
}

type botRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewBotRepo(db *gorm.DB, baseLog *logger.Logger) BotRepo {
	return &botRepo{db: db, log: baseLog.With("repo", "BotRepo")}
}

func (r *botRepo) handle(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *botRepo) Create(dbc dbctx.Context, bot *domain.Bot) (*domain.Bot, error) {
	if err := r.handle(dbc).WithContext(dbc.Ctx).Create(bot).Error; err != nil {
		return nil, err
	}
	return bot, nil
}

func (r *botRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.Bot, error) {
	var bot domain.Bot
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("id = ? AND status = ?", id, true).
		First(&bot).Error
	if err != nil {
		return nil, err
	}
	return &bot, nil
}

func (r *botRepo) ExistsByName(dbc dbctx.Context, account uuid.UUID, name string) (bool, error) {
	var count int64
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Model(&domain.Bot{}).
		Where("account = ? AND status = ? AND lower(name) = lower(?)", account, true, name).
		Count(&count).Error
	return count > 0, err
}

func (r *botRepo) ListForAccount(dbc dbctx.Context, account uuid.UUID) ([]*domain.Bot, error) {
	var out []*domain.Bot
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("account = ? AND status = ?", account, true).
		Order("timestamp ASC").
		Find(&out).Error
	return out, err
}

func (r *botRepo) SoftDelete(dbc dbctx.Context, id uuid.UUID, user string) error {
	return r.handle(dbc).WithContext(dbc.Ctx).
		Model(&domain.Bot{}).
		Where("id = ? AND status = ?", id, true).
		Updates(map[string]interface{}{"status": false, "user": user, "timestamp": time.Now().UTC()}).Error
}

type BotAccessRepo interface {
	Grant(dbc dbctx.Context, access *domain.BotAccess) (*domain.BotAccess, error)
	Get(dbc dbctx.Context, bot uuid.UUID, username string) (*domain.BotAccess, error)
	ListForBot(dbc dbctx.Context, bot uuid.UUID) ([]*domain.BotAccess, error)
	ListForUser(dbc dbctx.Context, username string) ([]*domain.BotAccess, error)
	UpdateRole(dbc dbctx.Context, bot uuid.UUID, username string, role string, user string) error
	Revoke(dbc dbctx.Context, bot uuid.UUID, username string, user string) error
	RevokeAllForBot(dbc dbctx.Context, bot uuid.UUID, user string) error
}

type botAccessRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewBotAccessRepo(db *gorm.DB, baseLog *logger.Logger) BotAccessRepo {
	return &botAccessRepo{db: db, log: baseLog.With("repo", "BotAccessRepo")}
}

func (r *botAccessRepo) handle(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *botAccessRepo) Grant(dbc dbctx.Context, access *domain.BotAccess) (*domain.BotAccess, error) {
	if err := r.handle(dbc).WithContext(dbc.Ctx).Create(access).Error; err != nil {
		return nil, err
	}
	return access, nil
}

func (r *botAccessRepo) Get(dbc dbctx.Context, bot uuid.UUID, username string) (*domain.BotAccess, error) {
	var access domain.BotAccess
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("bot = ? AND status = ? AND lower(username) = lower(?)", bot, true, username).
		First(&access).Error
	if err != nil {
		return nil, err
	}
	return &access, nil
}

func (r *botAccessRepo) ListForBot(dbc dbctx.Context, bot uuid.UUID) ([]*domain.BotAccess, error) {
	var out []*domain.BotAccess
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("bot = ? AND status = ?", bot, true).
		Order("timestamp ASC").
		Find(&out).Error
	return out, err
}

func (r *botAccessRepo) ListForUser(dbc dbctx.Context, username string) ([]*domain.BotAccess, error) {
	var out []*domain.BotAccess
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("status = ? AND lower(username) = lower(?)", true, username).
		Order("timestamp ASC").
		Find(&out).Error
	return out, err
}

func (r *botAccessRepo) UpdateRole(dbc dbctx.Context, bot uuid.UUID, username string, role string, user string) error {
	return r.handle(dbc).WithContext(dbc.Ctx).
		Model(&domain.BotAccess{}).
		Where("bot = ? AND status = ? AND lower(username) = lower(?)", bot, true, username).
		Updates(map[string]interface{}{"role": role, "user": user, "timestamp": time.Now().UTC()}).Error
}

func (r *botAccessRepo) Revoke(dbc dbctx.Context, bot uuid.UUID, username string, user string) error {
	return r.handle(dbc).WithContext(dbc.Ctx).
		Model(&domain.BotAccess{}).
		Where("bot = ? AND status = ? AND lower(username) = lower(?)", bot, true, username).
		Updates(map[string]interface{}{"status": false, "user": user, "timestamp": time.Now().UTC()}).Error
}

func (r *botAccessRepo) RevokeAllForBot(dbc dbctx.Context, bot uuid.UUID, user string) error {
	return r.handle(dbc).WithContext(dbc.Ctx).
		Model(&domain.BotAccess{}).
		Where("bot = ? AND status = ?", bot, true).
		Updates(map[string]interface{}{"status": false, "user": user, "timestamp": time.Now().UTC()}).Error
}
