package corpus

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kairon-labs/kairon-backend/internal/domain"
	"github.com/kairon-labs/kairon-backend/internal/pkg/dbctx"
	"github.com/kairon-labs/kairon-backend/internal/platform/logger"
)

type EntitySynonymRepo interface {
	Create(dbc dbctx.Context, synonyms []*domain.EntitySynonym) ([]*domain.EntitySynonym, error)
	ExistsByValue(dbc dbctx.Context, bot uuid.UUID, synonym string, value string) (bool, error)
	ListBySynonym(dbc dbctx.Context, bot uuid.UUID, synonym string) ([]*domain.EntitySynonym, error)
	List(dbc dbctx.Context, bot uuid.UUID) ([]*domain.EntitySynonym, error)
	SoftDeleteByID(dbc dbctx.Context, bot uuid.UUID, id uuid.UUID, user string) error
	HardDeleteForBot(dbc dbctx.Context, bot uuid.UUID) error
}

type entitySynonymRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEntitySynonymRepo(db *gorm.DB, baseLog *logger.Logger) EntitySynonymRepo {
	return &entitySynonymRepo{db: db, log: baseLog.With("repo", "EntitySynonymRepo")}
}

func (r *entitySynonymRepo) handle(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *entitySynonymRepo) Create(dbc dbctx.Context, synonyms []*domain.EntitySynonym) ([]*domain.EntitySynonym, error) {
	if len(synonyms) == 0 {
		return []*domain.EntitySynonym{}, nil
	}
	if err := r.handle(dbc).WithContext(dbc.Ctx).Create(&synonyms).Error; err != nil {
		return nil, err
	}
	return synonyms, nil
}

func (r *entitySynonymRepo) ExistsByValue(dbc dbctx.Context, bot uuid.UUID, synonym string, value string) (bool, error) {
	var count int64
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Model(&domain.EntitySynonym{}).
		Where("bot = ? AND status = ? AND lower(synonym) = lower(?) AND lower(value) = lower(?)", bot, true, synonym, value).
		Count(&count).Error
	return count > 0, err
}

func (r *entitySynonymRepo) ListBySynonym(dbc dbctx.Context, bot uuid.UUID, synonym string) ([]*domain.EntitySynonym, error) {
	var out []*domain.EntitySynonym
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("bot = ? AND status = ? AND lower(synonym) = lower(?)", bot, true, synonym).
		Order("timestamp ASC").
		Find(&out).Error
	return out, err
}

func (r *entitySynonymRepo) List(dbc dbctx.Context, bot uuid.UUID) ([]*domain.EntitySynonym, error) {
	var out []*domain.EntitySynonym
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("bot = ? AND status = ?", bot, true).
		Order("synonym ASC, timestamp ASC").
		Find(&out).Error
	return out, err
}

func (r *entitySynonymRepo) SoftDeleteByID(dbc dbctx.Context, bot uuid.UUID, id uuid.UUID, user string) error {
	return r.handle(dbc).WithContext(dbc.Ctx).
		Model(&domain.EntitySynonym{}).
		Where("bot = ? AND status = ? AND id = ?", bot, true, id).
		Updates(map[string]interface{}{"status": false, "user": user, "timestamp": time.Now().UTC()}).Error
}

func (r *entitySynonymRepo) HardDeleteForBot(dbc dbctx.Context, bot uuid.UUID) error {
	return r.handle(dbc).WithContext(dbc.Ctx).Where("bot = ?", bot).Delete(&domain.EntitySynonym{}).Error
}

type LookupTableRepo interface {
	Create(dbc dbctx.Context, entries []*domain.LookupTable) ([]*domain.LookupTable, error)
	ExistsByValue(dbc dbctx.Context, bot uuid.UUID, name string, value string) (bool, error)
	ListByName(dbc dbctx.Context, bot uuid.UUID, name string) ([]*domain.LookupTable, error)
	List(dbc dbctx.Context, bot uuid.UUID) ([]*domain.LookupTable, error)
	SoftDeleteByID(dbc dbctx.Context, bot uuid.UUID, id uuid.UUID, user string) error
	HardDeleteForBot(dbc dbctx.Context, bot uuid.UUID) error
}

type lookupTableRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLookupTableRepo(db *gorm.DB, baseLog *logger.Logger) LookupTableRepo {
	return &lookupTableRepo{db: db, log: baseLog.With("repo", "LookupTableRepo")}
}

func (r *lookupTableRepo) handle(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *lookupTableRepo) Create(dbc dbctx.Context, entries []*domain.LookupTable) ([]*domain.LookupTable, error) {
	if len(entries) == 0 {
		return []*domain.LookupTable{}, nil
	}
	if err := r.handle(dbc).WithContext(dbc.Ctx).Create(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *lookupTableRepo) ExistsByValue(dbc dbctx.Context, bot uuid.UUID, name string, value string) (bool, error) {
	var count int64
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Model(&domain.LookupTable{}).
		Where("bot = ? AND status = ? AND lower(name) = lower(?) AND lower(value) = lower(?)", bot, true, name, value).
		Count(&count).Error
	return count > 0, err
}

func (r *lookupTableRepo) ListByName(dbc dbctx.Context, bot uuid.UUID, name string) ([]*domain.LookupTable, error) {
	var out []*domain.LookupTable
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("bot = ? AND status = ? AND lower(name) = lower(?)", bot, true, name).
		Order("timestamp ASC").
		Find(&out).Error
	return out, err
}

func (r *lookupTableRepo) List(dbc dbctx.Context, bot uuid.UUID) ([]*domain.LookupTable, error) {
	var out []*domain.LookupTable
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("bot = ? AND status = ?", bot, true).
		Order("name ASC, timestamp ASC").
		Find(&out).Error
	return out, err
}

func (r *lookupTableRepo) SoftDeleteByID(dbc dbctx.Context, bot uuid.UUID, id uuid.UUID, user string) error {
	return r.handle(dbc).WithContext(dbc.Ctx).
		Model(&domain.LookupTable{}).
		Where("bot = ? AND status = ? AND id = ?", bot, true, id).
		Updates(map[string]interface{}{"status": false, "user": user, "timestamp": time.Now().UTC()}).Error
}

func (r *lookupTableRepo) HardDeleteForBot(dbc dbctx.Context, bot uuid.UUID) error {
	return r.handle(dbc).WithContext(dbc.Ctx).Where("bot = ?", bot).Delete(&domain.LookupTable{}).Error
}

type RegexFeatureRepo interface {
	Upsert(dbc dbctx.Context, feature *domain.RegexFeature) (*domain.RegexFeature, error)
	GetByName(dbc dbctx.Context, bot uuid.UUID, name string) (*domain.RegexFeature, error)
	List(dbc dbctx.Context, bot uuid.UUID) ([]*domain.RegexFeature, error)
	SoftDelete(dbc dbctx.Context, bot uuid.UUID, name string, user string) error
	HardDeleteForBot(dbc dbctx.Context, bot uuid.UUID) error
}

type regexFeatureRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRegexFeatureRepo(db *gorm.DB, baseLog *logger.Logger) RegexFeatureRepo {
	return &regexFeatureRepo{db: db, log: baseLog.With("repo", "RegexFeatureRepo")}
}

func (r *regexFeatureRepo) handle(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

// Upsert replaces the pattern in place when the name already exists; a regex
// feature name maps to exactly one live pattern.
func (r *regexFeatureRepo) Upsert(dbc dbctx.Context, feature *domain.RegexFeature) (*domain.RegexFeature, error) {
	h := r.handle(dbc).WithContext(dbc.Ctx)
	var existing domain.RegexFeature
	err := h.Where("bot = ? AND status = ? AND lower(name) = lower(?)", feature.Bot, true, feature.Name).
		First(&existing).Error
	if err == nil {
		existing.Pattern = feature.Pattern
		existing.User = feature.User
		existing.Timestamp = time.Now().UTC()
		if err := h.Save(&existing).Error; err != nil {
			return nil, err
		}
		return &existing, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}
	if err := h.Create(feature).Error; err != nil {
		return nil, err
	}
	return feature, nil
}

func (r *regexFeatureRepo) GetByName(dbc dbctx.Context, bot uuid.UUID, name string) (*domain.RegexFeature, error) {
	var feature domain.RegexFeature
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("bot = ? AND status = ? AND lower(name) = lower(?)", bot, true, name).
		First(&feature).Error
	if err != nil {
		return nil, err
	}
	return &feature, nil
}

func (r *regexFeatureRepo) List(dbc dbctx.Context, bot uuid.UUID) ([]*domain.RegexFeature, error) {
	var out []*domain.RegexFeature
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("bot = ? AND status = ?", bot, true).
		Order("timestamp ASC").
		Find(&out).Error
	return out, err
}

func (r *regexFeatureRepo) SoftDelete(dbc dbctx.Context, bot uuid.UUID, name string, user string) error {
	return r.handle(dbc).WithContext(dbc.Ctx).
		Model(&domain.RegexFeature{}).
		Where("bot = ? AND status = ? AND lower(name) = lower(?)", bot, true, name).
		Updates(map[string]interface{}{"status": false, "user": user, "timestamp": time.Now().UTC()}).Error
}

func (r *regexFeatureRepo) HardDeleteForBot(dbc dbctx.Context, bot uuid.UUID) error {
	return r.handle(dbc).WithContext(dbc.Ctx).Where("bot = ?", bot).Delete(&domain.RegexFeature{}).Error
}
