package corpus

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kairon-labs/kairon-backend/internal/domain"
	"github.com/kairon-labs/kairon-backend/internal/pkg/dbctx"
	"github.com/kairon-labs/kairon-backend/internal/platform/logger"
)

type ResponseRepo interface {
	Create(dbc dbctx.Context, responses []*domain.Response) ([]*domain.Response, error)
	GetByID(dbc dbctx.Context, bot uuid.UUID, id uuid.UUID) (*domain.Response, error)
	ListByName(dbc dbctx.Context, bot uuid.UUID, name string) ([]*domain.Response, error)
	List(dbc dbctx.Context, bot uuid.UUID) ([]*domain.Response, error)
	CountByName(dbc dbctx.Context, bot uuid.UUID, name string) (int64, error)
	SoftDeleteByID(dbc dbctx.Context, bot uuid.UUID, id uuid.UUID, user string) error
	SoftDeleteByName(dbc dbctx.Context, bot uuid.UUID, name string, user string) error
	HardDeleteForBot(dbc dbctx.Context, bot uuid.UUID) error
}

type responseRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewResponseRepo(db *gorm.DB, baseLog *logger.Logger) ResponseRepo {
	return &responseRepo{db: db, log: baseLog.With("repo", "ResponseRepo")}
}

func (r *responseRepo) handle(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *responseRepo) Create(dbc dbctx.Context, responses []*domain.Response) ([]*domain.Response, error) {
	if len(responses) == 0 {
		return []*domain.Response{}, nil
	}
	if err := r.handle(dbc).WithContext(dbc.Ctx).Create(&responses).Error; err != nil {
		return nil, err
	}
	return responses, nil
}

func (r *responseRepo) GetByID(dbc dbctx.Context, bot uuid.UUID, id uuid.UUID) (*domain.Response, error) {
	var resp domain.Response
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("bot = ? AND status = ? AND id = ?", bot, true, id).
		First(&resp).Error
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (r *responseRepo) ListByName(dbc dbctx.Context, bot uuid.UUID, name string) ([]*domain.Response, error) {
	var out []*domain.Response
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("bot = ? AND status = ? AND lower(name) = lower(?)", bot, true, name).
		Order("timestamp ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *responseRepo) List(dbc dbctx.Context, bot uuid.UUID) ([]*domain.Response, error) {
	var out []*domain.Response
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("bot = ? AND status = ?", bot, true).
		Order("name ASC, timestamp ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *responseRepo) CountByName(dbc dbctx.Context, bot uuid.UUID, name string) (int64, error) {
	var count int64
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Model(&domain.Response{}).
		Where("bot = ? AND status = ? AND lower(name) = lower(?)", bot, true, name).
		Count(&count).Error
	return count, err
}

func (r *responseRepo) SoftDeleteByID(dbc dbctx.Context, bot uuid.UUID, id uuid.UUID, user string) error {
	return r.handle(dbc).WithContext(dbc.Ctx).
		Model(&domain.Response{}).
		Where("bot = ? AND status = ? AND id = ?", bot, true, id).
		Updates(map[string]interface{}{"status": false, "user": user, "timestamp": time.Now().UTC()}).Error
}

func (r *responseRepo) SoftDeleteByName(dbc dbctx.Context, bot uuid.UUID, name string, user string) error {
	return r.handle(dbc).WithContext(dbc.Ctx).
		Model(&domain.Response{}).
		Where("bot = ? AND status = ? AND lower(name) = lower(?)", bot, true, name).
		Updates(map[string]interface{}{"status": false, "user": user, "timestamp": time.Now().UTC()}).Error
}

func (r *responseRepo) HardDeleteForBot(dbc dbctx.Context, bot uuid.UUID) error {
	return r.handle(dbc).WithContext(dbc.Ctx).
		Where("bot = ?", bot).
		Delete(&domain.Response{}).Error
}
