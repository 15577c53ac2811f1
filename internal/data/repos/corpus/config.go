package corpus

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kairon-labs/kairon-backend/internal/domain"
	"github.com/kairon-labs/kairon-backend/internal/pkg/dbctx"
	"github.com/kairon-labs/kairon-backend/internal/platform/logger"
)

// The config repos all manage one live row per bot. Save replaces the live
// row in place when one exists instead of stacking versions.

type BotConfigRepo interface {
	Get(dbc dbctx.Context, bot uuid.UUID) (*domain.BotConfig, error)
	Save(dbc dbctx.Context, cfg *domain.BotConfig) (*domain.BotConfig, error)
	HardDeleteForBot(dbc dbctx.Context, bot uuid.UUID) error
}

type botConfigRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewBotConfigRepo(db *gorm.DB, baseLog *logger.Logger) BotConfigRepo {
	return &botConfigRepo{db: db, log: baseLog.With("repo", "BotConfigRepo")}
}

func (r *botConfigRepo) handle(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *botConfigRepo) Get(dbc dbctx.Context, bot uuid.UUID) (*domain.BotConfig, error) {
	var cfg domain.BotConfig
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("bot = ? AND status = ?", bot, true).
		First(&cfg).Error
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (r *botConfigRepo) Save(dbc dbctx.Context, cfg *domain.BotConfig) (*domain.BotConfig, error) {
	h := r.handle(dbc).WithContext(dbc.Ctx)
	var existing domain.BotConfig
	err := h.Where("bot = ? AND status = ?", cfg.Bot, true).First(&existing).Error
	if err == nil {
		existing.Language = cfg.Language
		existing.Pipeline = cfg.Pipeline
		existing.Policies = cfg.Policies
		existing.User = cfg.User
		existing.Timestamp = time.Now().UTC()
		if err := h.Save(&existing).Error; err != nil {
			return nil, err
		}
		return &existing, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}
	if err := h.Create(cfg).Error; err != nil {
		return nil, err
	}
	return cfg, nil
}

func (r *botConfigRepo) HardDeleteForBot(dbc dbctx.Context, bot uuid.UUID) error {
	return r.handle(dbc).WithContext(dbc.Ctx).Where("bot = ?", bot).Delete(&domain.BotConfig{}).Error
}

type EndpointsRepo interface {
	Get(dbc dbctx.Context, bot uuid.UUID) (*domain.Endpoints, error)
	Save(dbc dbctx.Context, endpoints *domain.Endpoints) (*domain.Endpoints, error)
	HardDeleteForBot(dbc dbctx.Context, bot uuid.UUID) error
}

type endpointsRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEndpointsRepo(db *gorm.DB, baseLog *logger.Logger) EndpointsRepo {
	return &endpointsRepo{db: db, log: baseLog.With("repo", "EndpointsRepo")}
}

func (r *endpointsRepo) handle(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *endpointsRepo) Get(dbc dbctx.Context, bot uuid.UUID) (*domain.Endpoints, error) {
	var ep domain.Endpoints
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("bot = ? AND status = ?", bot, true).
		First(&ep).Error
	if err != nil {
		return nil, err
	}
	return &ep, nil
}

func (r *endpointsRepo) Save(dbc dbctx.Context, endpoints *domain.Endpoints) (*domain.Endpoints, error) {
	h := r.handle(dbc).WithContext(dbc.Ctx)
	var existing domain.Endpoints
	err := h.Where("bot = ? AND status = ?", endpoints.Bot, true).First(&existing).Error
	if err == nil {
		existing.BotEndpoint = endpoints.BotEndpoint
		existing.ActionEndpoint = endpoints.ActionEndpoint
		existing.TrackerEndpoint = endpoints.TrackerEndpoint
		existing.User = endpoints.User
		existing.Timestamp = time.Now().UTC()
		if err := h.Save(&existing).Error; err != nil {
			return nil, err
		}
		return &existing, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}
	if err := h.Create(endpoints).Error; err != nil {
		return nil, err
	}
	return endpoints, nil
}

func (r *endpointsRepo) HardDeleteForBot(dbc dbctx.Context, bot uuid.UUID) error {
	return r.handle(dbc).WithContext(dbc.Ctx).Where("bot = ?", bot).Delete(&domain.Endpoints{}).Error
}

type SessionConfigRepo interface {
	Get(dbc dbctx.Context, bot uuid.UUID) (*domain.SessionConfig, error)
	Save(dbc dbctx.Context, cfg *domain.SessionConfig) (*domain.SessionConfig, error)
	HardDeleteForBot(dbc dbctx.Context, bot uuid.UUID) error
}

type sessionConfigRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSessionConfigRepo(db *gorm.DB, baseLog *logger.Logger) SessionConfigRepo {
	return &sessionConfigRepo{db: db, log: baseLog.With("repo", "SessionConfigRepo")}
}

func (r *sessionConfigRepo) handle(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *sessionConfigRepo) Get(dbc dbctx.Context, bot uuid.UUID) (*domain.SessionConfig, error) {
	var cfg domain.SessionConfig
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("bot = ? AND status = ?", bot, true).
		First(&cfg).Error
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (r *sessionConfigRepo) Save(dbc dbctx.Context, cfg *domain.SessionConfig) (*domain.SessionConfig, error) {
	h := r.handle(dbc).WithContext(dbc.Ctx)
	var existing domain.SessionConfig
	err := h.Where("bot = ? AND status = ?", cfg.Bot, true).First(&existing).Error
	if err == nil {
		existing.SessionExpirationTime = cfg.SessionExpirationTime
		existing.CarryOverSlots = cfg.CarryOverSlots
		existing.User = cfg.User
		existing.Timestamp = time.Now().UTC()
		if err := h.Save(&existing).Error; err != nil {
			return nil, err
		}
		return &existing, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}
	if err := h.Create(cfg).Error; err != nil {
		return nil, err
	}
	return cfg, nil
}

func (r *sessionConfigRepo) HardDeleteForBot(dbc dbctx.Context, bot uuid.UUID) error {
	return r.handle(dbc).WithContext(dbc.Ctx).Where("bot = ?", bot).Delete(&domain.SessionConfig{}).Error
}

type BotSettingsRepo interface {
	Get(dbc dbctx.Context, bot uuid.UUID) (*domain.BotSettings, error)
	Save(dbc dbctx.Context, settings *domain.BotSettings) (*domain.BotSettings, error)
	HardDeleteForBot(dbc dbctx.Context, bot uuid.UUID) error
}

type botSettingsRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewBotSettingsRepo(db *gorm.DB, baseLog *logger.Logger) BotSettingsRepo {
	return &botSettingsRepo{db: db, log: baseLog.With("repo", "BotSettingsRepo")}
}

func (r *botSettingsRepo) handle(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *botSettingsRepo) Get(dbc dbctx.Context, bot uuid.UUID) (*domain.BotSettings, error) {
	var settings domain.BotSettings
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("bot = ? AND status = ?", bot, true).
		First(&settings).Error
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

func (r *botSettingsRepo) Save(dbc dbctx.Context, settings *domain.BotSettings) (*domain.BotSettings, error) {
	h := r.handle(dbc).WithContext(dbc.Ctx)
	var existing domain.BotSettings
	err := h.Where("bot = ? AND status = ?", settings.Bot, true).First(&existing).Error
	if err == nil {
		existing.WhatsappBSPType = settings.WhatsappBSPType
		existing.LLMSettings = settings.LLMSettings
		existing.TrainingLimitPerDay = settings.TrainingLimitPerDay
		existing.TestLimitPerDay = settings.TestLimitPerDay
		existing.ImportLimitPerDay = settings.ImportLimitPerDay
		existing.EventLimitPerDay = settings.EventLimitPerDay
		existing.RefreshTokenExpiry = settings.RefreshTokenExpiry
		existing.User = settings.User
		existing.Timestamp = time.Now().UTC()
		if err := h.Save(&existing).Error; err != nil {
			return nil, err
		}
		return &existing, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}
	if err := h.Create(settings).Error; err != nil {
		return nil, err
	}
	return settings, nil
}

func (r *botSettingsRepo) HardDeleteForBot(dbc dbctx.Context, bot uuid.UUID) error {
	return r.handle(dbc).WithContext(dbc.Ctx).Where("bot = ?", bot).Delete(&domain.BotSettings{}).Error
}

type AuditRepo interface {
	Append(dbc dbctx.Context, entry *domain.AuditLogEntry) error
	List(dbc dbctx.Context, bot uuid.UUID, limit int) ([]*domain.AuditLogEntry, error)
	HardDeleteForBot(dbc dbctx.Context, bot uuid.UUID) error
}

type auditRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAuditRepo(db *gorm.DB, baseLog *logger.Logger) AuditRepo {
	return &auditRepo{db: db, log: baseLog.With("repo", "AuditRepo")}
}

func (r *auditRepo) handle(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *auditRepo) Append(dbc dbctx.Context, entry *domain.AuditLogEntry) error {
	return r.handle(dbc).WithContext(dbc.Ctx).Create(entry).Error
}

func (r *auditRepo) List(dbc dbctx.Context, bot uuid.UUID, limit int) ([]*domain.AuditLogEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []*domain.AuditLogEntry
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("bot = ?", bot).
		Order("timestamp DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

func (r *auditRepo) HardDeleteForBot(dbc dbctx.Context, bot uuid.UUID) error {
	return r.handle(dbc).WithContext(dbc.Ctx).Where("bot = ?", bot).Delete(&domain.AuditLogEntry{}).Error
}
