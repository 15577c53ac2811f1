package corpus

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kairon-labs/kairon-backend/internal/domain"
	"github.com/kairon-labs/kairon-backend/internal/pkg/dbctx"
	"github.com/kairon-labs/kairon-backend/internal/platform/logger"
)

type ActionRepo interface {
	Create(dbc dbctx.Context, actions []*domain.Action) ([]*domain.Action, error)
	ExistsByName(dbc dbctx.Context, bot uuid.UUID, name string) (bool, error)
	List(dbc dbctx.Context, bot uuid.UUID) ([]*domain.Action, error)
	SoftDelete(dbc dbctx.Context, bot uuid.UUID, name string, user string) error
	HardDeleteForBot(dbc dbctx.Context, bot uuid.UUID) error
}

type actionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewActionRepo(db *gorm.DB, baseLog *logger.Logger) ActionRepo {
	return &actionRepo{db: db, log: baseLog.With("repo", "ActionRepo")}
}

func (r *actionRepo) handle(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *actionRepo) Create(dbc dbctx.Context, actions []*domain.Action) ([]*domain.Action, error) {
	if len(actions) == 0 {
		return []*domain.Action{}, nil
	}
	if err := r.handle(dbc).WithContext(dbc.Ctx).Create(&actions).Error; err != nil {
		return nil, err
	}
	return actions, nil
}

func (r *actionRepo) ExistsByName(dbc dbctx.Context, bot uuid.UUID, name string) (bool, error) {
	var count int64
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Model(&domain.Action{}).
		Where("bot = ? AND status = ? AND lower(name) = lower(?)", bot, true, name).
		Count(&count).Error
	return count > 0, err
}

func (r *actionRepo) List(dbc dbctx.Context, bot uuid.UUID) ([]*domain.Action, error) {
	var out []*domain.Action
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("bot = ? AND status = ?", bot, true).
		Order("timestamp ASC").
		Find(&out).Error
	return out, err
}

func (r *actionRepo) SoftDelete(dbc dbctx.Context, bot uuid.UUID, name string, user string) error {
	return r.handle(dbc).WithContext(dbc.Ctx).
		Model(&domain.Action{}).
		Where("bot = ? AND status = ? AND lower(name) = lower(?)", bot, true, name).
		Updates(map[string]interface{}{"status": false, "user": user, "timestamp": time.Now().UTC()}).Error
}

func (r *actionRepo) HardDeleteForBot(dbc dbctx.Context, bot uuid.UUID) error {
	return r.handle(dbc).WithContext(dbc.Ctx).Where("bot = ?", bot).Delete(&domain.Action{}).Error
}

type HTTPActionRepo interface {
	Create(dbc dbctx.Context, action *domain.HTTPAction) (*domain.HTTPAction, error)
	GetByName(dbc dbctx.Context, bot uuid.UUID, actionName string) (*domain.HTTPAction, error)
	ExistsByName(dbc dbctx.Context, bot uuid.UUID, actionName string) (bool, error)
	List(dbc dbctx.Context, bot uuid.UUID) ([]*domain.HTTPAction, error)
	Update(dbc dbctx.Context, action *domain.HTTPAction) error
	SoftDelete(dbc dbctx.Context, bot uuid.UUID, actionName string, user string) error
	HardDeleteForBot(dbc dbctx.Context, bot uuid.UUID) error
}

type httpActionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewHTTPActionRepo(db *gorm.DB, baseLog *logger.Logger) HTTPActionRepo {
	return &httpActionRepo{db: db, log: baseLog.With("repo", "HTTPActionRepo")}
}

func (r *httpActionRepo) handle(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *httpActionRepo) Create(dbc dbctx.Context, action *domain.HTTPAction) (*domain.HTTPAction, error) {
	if err := r.handle(dbc).WithContext(dbc.Ctx).Create(action).Error; err != nil {
		return nil, err
	}
	return action, nil
}

func (r *httpActionRepo) GetByName(dbc dbctx.Context, bot uuid.UUID, actionName string) (*domain.HTTPAction, error) {
	var action domain.HTTPAction
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("bot = ? AND status = ? AND lower(action_name) = lower(?)", bot, true, actionName).
		First(&action).Error
	if err != nil {
		return nil, err
	}
	return &action, nil
}

func (r *httpActionRepo) ExistsByName(dbc dbctx.Context, bot uuid.UUID, actionName string) (bool, error) {
	var count int64
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Model(&domain.HTTPAction{}).
		Where("bot = ? AND status = ? AND lower(action_name) = lower(?)", bot, true, actionName).
		Count(&count).Error
	return count > 0, err
}

func (r *httpActionRepo) List(dbc dbctx.Context, bot uuid.UUID) ([]*domain.HTTPAction, error) {
	var out []*domain.HTTPAction
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("bot = ? AND status = ?", bot, true).
		Order("timestamp ASC").
		Find(&out).Error
	return out, err
}

func (r *httpActionRepo) Update(dbc dbctx.Context, action *domain.HTTPAction) error {
	action.Timestamp = time.Now().UTC()
	return r.handle(dbc).WithContext(dbc.Ctx).Save(action).Error
}

func (r *httpActionRepo) SoftDelete(dbc dbctx.Context, bot uuid.UUID, actionName string, user string) error {
	return r.handle(dbc).WithContext(dbc.Ctx).
		Model(&domain.HTTPAction{}).
		Where("bot = ? AND status = ? AND lower(action_name) = lower(?)", bot, true, actionName).
		Updates(map[string]interface{}{"status": false, "user": user, "timestamp": time.Now().UTC()}).Error
}

func (r *httpActionRepo) HardDeleteForBot(dbc dbctx.Context, bot uuid.UUID) error {
	return r.handle(dbc).WithContext(dbc.Ctx).Where("bot = ?", bot).Delete(&domain.HTTPAction{}).Error
}

type UtteranceRepo interface {
	Create(dbc dbctx.Context, utterance *domain.Utterance) (*domain.Utterance, error)
	ExistsByName(dbc dbctx.Context, bot uuid.UUID, name string) (bool, error)
	List(dbc dbctx.Context, bot uuid.UUID) ([]*domain.Utterance, error)
	SoftDelete(dbc dbctx.Context, bot uuid.UUID, name string, user string) error
	HardDeleteForBot(dbc dbctx.Context, bot uuid.UUID) error
}

type utteranceRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUtteranceRepo(db *gorm.DB, baseLog *logger.Logger) UtteranceRepo {
	return &utteranceRepo{db: db, log: baseLog.With("repo", "UtteranceRepo")}
}

func (r *utteranceRepo) handle(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *utteranceRepo) Create(dbc dbctx.Context, utterance *domain.Utterance) (*domain.Utterance, error) {
	if err := r.handle(dbc).WithContext(dbc.Ctx).Create(utterance).Error; err != nil {
		return nil, err
	}
	return utterance, nil
}

func (r *utteranceRepo) ExistsByName(dbc dbctx.Context, bot uuid.UUID, name string) (bool, error) {
	var count int64
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Model(&domain.Utterance{}).
		Where("bot = ? AND status = ? AND lower(name) = lower(?)", bot, true, name).
		Count(&count).Error
	return count > 0, err
}

func (r *utteranceRepo) List(dbc dbctx.Context, bot uuid.UUID) ([]*domain.Utterance, error) {
	var out []*domain.Utterance
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("bot = ? AND status = ?", bot, true).
		Order("timestamp ASC").
		Find(&out).Error
	return out, err
}

func (r *utteranceRepo) SoftDelete(dbc dbctx.Context, bot uuid.UUID, name string, user string) error {
	return r.handle(dbc).WithContext(dbc.Ctx).
		Model(&domain.Utterance{}).
		Where("bot = ? AND status = ? AND lower(name) = lower(?)", bot, true, name).
		Updates(map[string]interface{}{"status": false, "user": user, "timestamp": time.Now().UTC()}).Error
}

func (r *utteranceRepo) HardDeleteForBot(dbc dbctx.Context, bot uuid.UUID) error {
	return r.handle(dbc).WithContext(dbc.Ctx).Where("bot = ?", bot).Delete(&domain.Utterance{}).Error
}
