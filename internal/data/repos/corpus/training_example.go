package corpus

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kairon-labs/kairon-backend/internal/domain"
	"github.com/kairon-labs/kairon-backend/internal/pkg/dbctx"
	"github.com/kairon-labs/kairon-backend/internal/platform/logger"
)

type TrainingExampleRepo interface {
	Create(dbc dbctx.Context, examples []*domain.TrainingExample) ([]*domain.TrainingExample, error)
	GetByID(dbc dbctx.Context, bot uuid.UUID, id uuid.UUID) (*domain.TrainingExample, error)
	ExistsByText(dbc dbctx.Context, bot uuid.UUID, text string) (bool, error)
	ListByIntent(dbc dbctx.Context, bot uuid.UUID, intent string) ([]*domain.TrainingExample, error)
	List(dbc dbctx.Context, bot uuid.UUID) ([]*domain.TrainingExample, error)
	Update(dbc dbctx.Context, example *domain.TrainingExample) error
	SoftDeleteByID(dbc dbctx.Context, bot uuid.UUID, id uuid.UUID, user string) error
	SoftDeleteByIntent(dbc dbctx.Context, bot uuid.UUID, intent string, user string) error
	SearchText(dbc dbctx.Context, bot uuid.UUID, text string) ([]*domain.TrainingExample, error)
	HardDeleteForBot(dbc dbctx.Context, bot uuid.UUID) error
}

type trainingExampleRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTrainingExampleRepo(db *gorm.DB, baseLog *logger.Logger) TrainingExampleRepo {
	return &trainingExampleRepo{db: db, log: baseLog.With("repo", "TrainingExampleRepo")}
}

func (r *trainingExampleRepo) handle(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *trainingExampleRepo) Create(dbc dbctx.Context, examples []*domain.TrainingExample) ([]*domain.TrainingExample, error) {
	if len(examples) == 0 {
		return []*domain.TrainingExample{}, nil
	}
	if err := r.handle(dbc).WithContext(dbc.Ctx).Create(&examples).Error; err != nil {
		return nil, err
	}
	return examples, nil
}

func (r *trainingExampleRepo) GetByID(dbc dbctx.Context, bot uuid.UUID, id uuid.UUID) (*domain.TrainingExample, error) {
	var ex domain.TrainingExample
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("bot = ? AND status = ? AND id = ?", bot, true, id).
		First(&ex).Error
	if err != nil {
		return nil, err
	}
	return &ex, nil
}

func (r *trainingExampleRepo) ExistsByText(dbc dbctx.Context, bot uuid.UUID, text string) (bool, error) {
	var count int64
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Model(&domain.TrainingExample{}).
		Where("bot = ? AND status = ? AND lower(text) = lower(?)", bot, true, text).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *trainingExampleRepo) ListByIntent(dbc dbctx.Context, bot uuid.UUID, intent string) ([]*domain.TrainingExample, error) {
	var out []*domain.TrainingExample
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("bot = ? AND status = ? AND lower(intent) = lower(?)", bot, true, intent).
		Order("timestamp ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *trainingExampleRepo) List(dbc dbctx.Context, bot uuid.UUID) ([]*domain.TrainingExample, error) {
	var out []*domain.TrainingExample
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("bot = ? AND status = ?", bot, true).
		Order("intent ASC, timestamp ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *trainingExampleRepo) Update(dbc dbctx.Context, example *domain.TrainingExample) error {
	example.Timestamp = time.Now().UTC()
	return r.handle(dbc).WithContext(dbc.Ctx).Save(example).Error
}

func (r *trainingExampleRepo) SoftDeleteByID(dbc dbctx.Context, bot uuid.UUID, id uuid.UUID, user string) error {
	return r.handle(dbc).WithContext(dbc.Ctx).
		Model(&domain.TrainingExample{}).
		Where("bot = ? AND status = ? AND id = ?", bot, true, id).
		Updates(map[string]interface{}{"status": false, "user": user, "timestamp": time.Now().UTC()}).Error
}

func (r *trainingExampleRepo) SoftDeleteByIntent(dbc dbctx.Context, bot uuid.UUID, intent string, user string) error {
	return r.handle(dbc).WithContext(dbc.Ctx).
		Model(&domain.TrainingExample{}).
		Where("bot = ? AND status = ? AND lower(intent) = lower(?)", bot, true, intent).
		Updates(map[string]interface{}{"status": false, "user": user, "timestamp": time.Now().UTC()}).Error
}

// SearchText matches stored examples against free text. Postgres uses the
// full-text index; elsewhere it degrades to a case-insensitive equality.
func (r *trainingExampleRepo) SearchText(dbc dbctx.Context, bot uuid.UUID, text string) ([]*domain.TrainingExample, error) {
	h := r.handle(dbc)
	var out []*domain.TrainingExample
	q := h.WithContext(dbc.Ctx).Where("bot = ? AND status = ?", bot, true)
	if h.Dialector.Name() == "postgres" {
		q = q.Where("to_tsvector('simple', text) @@ plainto_tsquery('simple', ?)", text)
	} else {
		q = q.Where("lower(text) = lower(?)", text)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *trainingExampleRepo) HardDeleteForBot(dbc dbctx.Context, bot uuid.UUID) error {
	return r.handle(dbc).WithContext(dbc.Ctx).
		Where("bot = ?", bot).
		Delete(&domain.TrainingExample{}).Error
}
