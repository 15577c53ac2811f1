package account

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kairon-labs/kairon-backend/internal/domain"
	"github.com/kairon-labs/kairon-backend/internal/pkg/dbctx"
	"github.com/kairon-labs/kairon-backend/internal/platform/logger"
)

type UserRepo interface {
	Create(dbc dbctx.Context, user *domain.User) (*domain.User, error)
	GetByEmail(dbc dbctx.Context, email string) (*domain.User, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.User, error)
	ExistsByEmail(dbc dbctx.Context, email string) (bool, error)
	UpdatePassword(dbc dbctx.Context, email string, passwordHash string) error
	SoftDelete(dbc dbctx.Context, id uuid.UUID) error
}

type userRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserRepo(db *gorm.DB, baseLog *logger.Logger) UserRepo {
	return &userRepo{db: db, log: baseLog.With("repo", "UserRepo")}
}

func (r *userRepo) handle(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *userRepo) Create(dbc dbctx.Context, user *domain.User) (*domain.User, error) {
	if err := r.handle(dbc).WithContext(dbc.Ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

func (r *userRepo) GetByEmail(dbc dbctx.Context, email string) (*domain.User, error) {
	var user domain.User
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("status = ? AND lower(email) = lower(?)", true, email).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.User, error) {
	var user domain.User
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("id = ? AND status = ?", id, true).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) ExistsByEmail(dbc dbctx.Context, email string) (bool, error) {
	var count int64
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Model(&domain.User{}).
		Where("status = ? AND lower(email) = lower(?)", true, email).
		Count(&count).Error
	return count > 0, err
}

func (r *userRepo) UpdatePassword(dbc dbctx.Context, email string, passwordHash string) error {
	return r.handle(dbc).WithContext(dbc.Ctx).
		Model(&domain.User{}).
		Where("status = ? AND lower(email) = lower(?)", true, email).
		Updates(map[string]interface{}{"password": passwordHash, "timestamp": time.Now().UTC()}).Error
}

func (r *userRepo) SoftDelete(dbc dbctx.Context, id uuid.UUID) error {
	return r.handle(dbc).WithContext(dbc.Ctx).
		Model(&domain.User{}).
		Where("id = ? AND status = ?", id, true).
		Updates(map[string]interface{}{"status": false, "timestamp": time.Now().UTC()}).Error
}
