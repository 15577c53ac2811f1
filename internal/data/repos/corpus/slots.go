package corpus

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kairon-labs/kairon-backend/internal/domain"
	"github.com/kairon-labs/kairon-backend/internal/pkg/dbctx"
	"github.com/kairon-labs/kairon-backend/internal/platform/logger"
)

type SlotRepo interface {
	Create(dbc dbctx.Context, slot *domain.Slot) (*domain.Slot, error)
	GetByName(dbc dbctx.Context, bot uuid.UUID, name string) (*domain.Slot, error)
	ExistsByName(dbc dbctx.Context, bot uuid.UUID, name string) (bool, error)
	List(dbc dbctx.Context, bot uuid.UUID) ([]*domain.Slot, error)
	Update(dbc dbctx.Context, slot *domain.Slot) error
	SoftDelete(dbc dbctx.Context, bot uuid.UUID, name string, user string) error
	HardDeleteForBot(dbc dbctx.Context, bot uuid.UUID) error
}

type slotRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSlotRepo(db *gorm.DB, baseLog *logger.Logger) SlotRepo {
	return &slotRepo{db: db, log: baseLog.With("repo", "SlotRepo")}
}

func (r *slotRepo) handle(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *slotRepo) Create(dbc dbctx.Context, slot *domain.Slot) (*domain.Slot, error) {
	if err := r.handle(dbc).WithContext(dbc.Ctx).Create(slot).Error; err != nil {
		return nil, err
	}
	return slot, nil
}

func (r *slotRepo) GetByName(dbc dbctx.Context, bot uuid.UUID, name string) (*domain.Slot, error) {
	var slot domain.Slot
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("bot = ? AND status = ? AND lower(name) = lower(?)", bot, true, name).
		First(&slot).Error
	if err != nil {
		return nil, err
	}
	return &slot, nil
}

func (r *slotRepo) ExistsByName(dbc dbctx.Context, bot uuid.UUID, name string) (bool, error) {
	var count int64
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Model(&domain.Slot{}).
		Where("bot = ? AND status = ? AND lower(name) = lower(?)", bot, true, name).
		Count(&count).Error
	return count > 0, err
}

func (r *slotRepo) List(dbc dbctx.Context, bot uuid.UUID) ([]*domain.Slot, error) {
	var out []*domain.Slot
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("bot = ? AND status = ?", bot, true).
		Order("timestamp ASC").
		Find(&out).Error
	return out, err
}

func (r *slotRepo) Update(dbc dbctx.Context, slot *domain.Slot) error {
	slot.Timestamp = time.Now().UTC()
	return r.handle(dbc).WithContext(dbc.Ctx).Save(slot).Error
}

func (r *slotRepo) SoftDelete(dbc dbctx.Context, bot uuid.UUID, name string, user string) error {
	return r.handle(dbc).WithContext(dbc.Ctx).
		Model(&domain.Slot{}).
		Where("bot = ? AND status = ? AND lower(name) = lower(?)", bot, true, name).
		Updates(map[string]interface{}{"status": false, "user": user, "timestamp": time.Now().UTC()}).Error
}

func (r *slotRepo) HardDeleteForBot(dbc dbctx.Context, bot uuid.UUID) error {
	return r.handle(dbc).WithContext(dbc.Ctx).Where("bot = ?", bot).Delete(&domain.Slot{}).Error
}

type FormRepo interface {
	Create(dbc dbctx.Context, form *domain.Form) (*domain.Form, error)
	GetByName(dbc dbctx.Context, bot uuid.UUID, name string) (*domain.Form, error)
	List(dbc dbctx.Context, bot uuid.UUID) ([]*domain.Form, error)
	Update(dbc dbctx.Context, form *domain.Form) error
	SoftDelete(dbc dbctx.Context, bot uuid.UUID, name string, user string) error
	HardDeleteForBot(dbc dbctx.Context, bot uuid.UUID) error
}

type formRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFormRepo(db *gorm.DB, baseLog *logger.Logger) FormRepo {
	return &formRepo{db: db, log: baseLog.With("repo", "FormRepo")}
}

func (r *formRepo) handle(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *formRepo) Create(dbc dbctx.Context, form *domain.Form) (*domain.Form, error) {
	if err := r.handle(dbc).WithContext(dbc.Ctx).Create(form).Error; err != nil {
		return nil, err
	}
	return form, nil
}

func (r *formRepo) GetByName(dbc dbctx.Context, bot uuid.UUID, name string) (*domain.Form, error) {
	var form domain.Form
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("bot = ? AND status = ? AND lower(name) = lower(?)", bot, true, name).
		First(&form).Error
	if err != nil {
		return nil, err
	}
	return &form, nil
}

func (r *formRepo) List(dbc dbctx.Context, bot uuid.UUID) ([]*domain.Form, error) {
	var out []*domain.Form
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("bot = ? AND status = ?", bot, true).
		Order("timestamp ASC").
		Find(&out).Error
	return out, err
}

func (r *formRepo) Update(dbc dbctx.Context, form *domain.Form) error {
	form.Timestamp = time.Now().UTC()
	return r.handle(dbc).WithContext(dbc.Ctx).Save(form).Error
}

func (r *formRepo) SoftDelete(dbc dbctx.Context, bot uuid.UUID, name string, user string) error {
	return r.handle(dbc).WithContext(dbc.Ctx).
		Model(&domain.Form{}).
		Where("bot = ? AND status = ? AND lower(name) = lower(?)", bot, true, name).
		Updates(map[string]interface{}{"status": false, "user": user, "timestamp": time.Now().UTC()}).Error
}

func (r *formRepo) HardDeleteForBot(dbc dbctx.Context, bot uuid.UUID) error {
	return r.handle(dbc).WithContext(dbc.Ctx).Where("bot = ?", bot).Delete(&domain.Form{}).Error
}
