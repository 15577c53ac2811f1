package corpus

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kairon-labs/kairon-backend/internal/domain"
	"github.com/kairon-labs/kairon-backend/internal/pkg/dbctx"
	"github.com/kairon-labs/kairon-backend/internal/platform/logger"
)

type IntentRepo interface {
	Create(dbc dbctx.Context, intents []*domain.Intent) ([]*domain.Intent, error)
	GetByName(dbc dbctx.Context, bot uuid.UUID, name string) (*domain.Intent, error)
	ExistsByName(dbc dbctx.Context, bot uuid.UUID, name string) (bool, error)
	List(dbc dbctx.Context, bot uuid.UUID) ([]*domain.Intent, error)
	SoftDelete(dbc dbctx.Context, bot uuid.UUID, name string, user string) error
	HardDeleteForBot(dbc dbctx.Context, bot uuid.UUID) error
}

type intentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewIntentRepo(db *gorm.DB, baseLog *logger.Logger) IntentRepo {
	return &intentRepo{db: db, log: baseLog.With("repo", "IntentRepo")}
}

func (r *intentRepo) handle(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *intentRepo) Create(dbc dbctx.Context, intents []*domain.Intent) ([]*domain.Intent, error) {
	if len(intents) == 0 {
		return []*domain.Intent{}, nil
	}
	if err := r.handle(dbc).WithContext(dbc.Ctx).Create(&intents).Error; err != nil {
		return nil, err
	}
	return intents, nil
}

func (r *intentRepo) GetByName(dbc dbctx.Context, bot uuid.UUID, name string) (*domain.Intent, error) {
	var intent domain.Intent
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("bot = ? AND status = ? AND lower(name) = lower(?)", bot, true, name).
		First(&intent).Error
	if err != nil {
		return nil, err
	}
	return &intent, nil
}

func (r *intentRepo) ExistsByName(dbc dbctx.Context, bot uuid.UUID, name string) (bool, error) {
	var count int64
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Model(&domain.Intent{}).
		Where("bot = ? AND status = ? AND lower(name) = lower(?)", bot, true, name).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *intentRepo) List(dbc dbctx.Context, bot uuid.UUID) ([]*domain.Intent, error) {
	var out []*domain.Intent
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("bot = ? AND status = ?", bot, true).
		Order("timestamp ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *intentRepo) SoftDelete(dbc dbctx.Context, bot uuid.UUID, name string, user string) error {
	return r.handle(dbc).WithContext(dbc.Ctx).
		Model(&domain.Intent{}).
		Where("bot = ? AND status = ? AND lower(name) = lower(?)", bot, true, name).
		Updates(map[string]interface{}{"status": false, "user": user, "timestamp": time.Now().UTC()}).Error
}

func (r *intentRepo) HardDeleteForBot(dbc dbctx.Context, bot uuid.UUID) error {
	return r.handle(dbc).WithContext(dbc.Ctx).
		Where("bot = ?", bot).
		Delete(&domain.Intent{}).Error
}
