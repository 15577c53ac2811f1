package channels

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kairon-labs/kairon-backend/internal/domain"
	"github.com/kairon-labs/kairon-backend/internal/pkg/dbctx"
	"github.com/kairon-labs/kairon-backend/internal/platform/logger"
)

type ChannelConfigRepo interface {
	Save(dbc dbctx.Context, config *domain.ChannelConfig) (*domain.ChannelConfig, error)
	Get(dbc dbctx.Context, bot uuid.UUID, connector domain.ChannelType) (*domain.ChannelConfig, error)
	GetByTokenHash(dbc dbctx.Context, tokenHash string) (*domain.ChannelConfig, error)
	List(dbc dbctx.Context, bot uuid.UUID) ([]*domain.ChannelConfig, error)
	SoftDelete(dbc dbctx.Context, bot uuid.UUID, connector domain.ChannelType, user string) error
	HardDeleteForBot(dbc dbctx.Context, bot uuid.UUID) error
}

type channelConfigRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewChannelConfigRepo(db *gorm.DB, baseLog *logger.Logger) ChannelConfigRepo {
	return &channelConfigRepo{db: db, log: baseLog.With("repo", "ChannelConfigRepo")}
}

func (r *channelConfigRepo) handle(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

// Save keeps one live config per (bot, connector); reconfiguring a channel
// replaces credentials and token hash in place.
func (r *channelConfigRepo) Save(dbc dbctx.Context, config *domain.ChannelConfig) (*domain.ChannelConfig, error) {
	h := r.handle(dbc).WithContext(dbc.Ctx)
	var existing domain.ChannelConfig
	err := h.Where("bot = ? AND status = ? AND connector_type = ?", config.Bot, true, config.ConnectorType).
		First(&existing).Error
	if err == nil {
		existing.Config = config.Config
		existing.TokenHash = config.TokenHash
		existing.User = config.User
		existing.Timestamp = time.Now().UTC()
		if err := h.Save(&existing).Error; err != nil {
			return nil, err
		}
		return &existing, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}
	if err := h.Create(config).Error; err != nil {
		return nil, err
	}
	return config, nil
}

func (r *channelConfigRepo) Get(dbc dbctx.Context, bot uuid.UUID, connector domain.ChannelType) (*domain.ChannelConfig, error) {
	var config domain.ChannelConfig
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("bot = ? AND status = ? AND connector_type = ?", bot, true, connector).
		First(&config).Error
	if err != nil {
		return nil, err
	}
	return &config, nil
}

func (r *channelConfigRepo) GetByTokenHash(dbc dbctx.Context, tokenHash string) (*domain.ChannelConfig, error) {
	var config domain.ChannelConfig
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("status = ? AND token_hash = ?", true, tokenHash).
		First(&config).Error
	if err != nil {
		return nil, err
	}
	return &config, nil
}

func (r *channelConfigRepo) List(dbc dbctx.Context, bot uuid.UUID) ([]*domain.ChannelConfig, error) {
	var out []*domain.ChannelConfig
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("bot = ? AND status = ?", bot, true).
		Order("timestamp ASC").
		Find(&out).Error
	return out, err
}

func (r *channelConfigRepo) SoftDelete(dbc dbctx.Context, bot uuid.UUID, connector domain.ChannelType, user string) error {
	return r.handle(dbc).WithContext(dbc.Ctx).
		Model(&domain.ChannelConfig{}).
		Where("bot = ? AND status = ? AND connector_type = ?", bot, true, connector).
		Updates(map[string]interface{}{"status": false, "user": user, "timestamp": time.Now().UTC()}).Error
}

func (r *channelConfigRepo) HardDeleteForBot(dbc dbctx.Context, bot uuid.UUID) error {
	return r.handle(dbc).WithContext(dbc.Ctx).Where("bot = ?", bot).Delete(&domain.ChannelConfig{}).Error
}

type ChannelLogRepo interface {
	Append(dbc dbctx.Context, entry *domain.ChannelLog) error
	GetByMessageID(dbc dbctx.Context, bot uuid.UUID, messageID string) (*domain.ChannelLog, error)
	List(dbc dbctx.Context, bot uuid.UUID, limit int) ([]*domain.ChannelLog, error)
	HardDeleteForBot(dbc dbctx.Context, bot uuid.UUID) error
}

type channelLogRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewChannelLogRepo(db *gorm.DB, baseLog *logger.Logger) ChannelLogRepo {
	return &channelLogRepo{db: db, log: baseLog.With("repo", "ChannelLogRepo")}
}

func (r *channelLogRepo) handle(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *channelLogRepo) Append(dbc dbctx.Context, entry *domain.ChannelLog) error {
	return r.handle(dbc).WithContext(dbc.Ctx).Create(entry).Error
}

func (r *channelLogRepo) GetByMessageID(dbc dbctx.Context, bot uuid.UUID, messageID string) (*domain.ChannelLog, error) {
	var entry domain.ChannelLog
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("bot = ? AND message_id = ?", bot, messageID).
		Order("timestamp DESC").
		First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *channelLogRepo) List(dbc dbctx.Context, bot uuid.UUID, limit int) ([]*domain.ChannelLog, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []*domain.ChannelLog
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("bot = ?", bot).
		Order("timestamp DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

func (r *channelLogRepo) HardDeleteForBot(dbc dbctx.Context, bot uuid.UUID) error {
	return r.handle(dbc).WithContext(dbc.Ctx).Where("bot = ?", bot).Delete(&domain.ChannelLog{}).Error
}

type MeteringRepo interface {
	Record(dbc dbctx.Context, record *domain.MeteringRecord) error
	CountSince(dbc dbctx.Context, account uuid.UUID, metric domain.MetricType, since time.Time) (int64, error)
	HardDeleteForBot(dbc dbctx.Context, bot uuid.UUID) error
}

type meteringRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMeteringRepo(db *gorm.DB, baseLog *logger.Logger) MeteringRepo {
	return &meteringRepo{db: db, log: baseLog.With("repo", "MeteringRepo")}
}

func (r *meteringRepo) handle(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *meteringRepo) Record(dbc dbctx.Context, record *domain.MeteringRecord) error {
	return r.handle(dbc).WithContext(dbc.Ctx).Create(record).Error
}

func (r *meteringRepo) CountSince(dbc dbctx.Context, account uuid.UUID, metric domain.MetricType, since time.Time) (int64, error) {
	var count int64
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Model(&domain.MeteringRecord{}).
		Where("account = ? AND metric = ? AND timestamp >= ?", account, metric, since).
		Count(&count).Error
	return count, err
}

func (r *meteringRepo) HardDeleteForBot(dbc dbctx.Context, bot uuid.UUID) error {
	return r.handle(dbc).WithContext(dbc.Ctx).Where("bot = ?", bot).Delete(&domain.MeteringRecord{}).Error
}

type LiveAgentConfigRepo interface {
	Save(dbc dbctx.Context, config *domain.LiveAgentConfig) (*domain.LiveAgentConfig, error)
	Get(dbc dbctx.Context, bot uuid.UUID) (*domain.LiveAgentConfig, error)
	SoftDelete(dbc dbctx.Context, bot uuid.UUID, user string) error
	HardDeleteForBot(dbc dbctx.Context, bot uuid.UUID) error
}

type liveAgentConfigRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLiveAgentConfigRepo(db *gorm.DB, baseLog *logger.Logger) LiveAgentConfigRepo {
	return &liveAgentConfigRepo{db: db, log: baseLog.With("repo", "LiveAgentConfigRepo")}
}

func (r *liveAgentConfigRepo) handle(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *liveAgentConfigRepo) Save(dbc dbctx.Context, config *domain.LiveAgentConfig) (*domain.LiveAgentConfig, error) {
	h := r.handle(dbc).WithContext(dbc.Ctx)
	var existing domain.LiveAgentConfig
	err := h.Where("bot = ? AND status = ?", config.Bot, true).First(&existing).Error
	if err == nil {
		existing.AgentType = config.AgentType
		existing.Config = config.Config
		existing.OverrideBot = config.OverrideBot
		existing.TriggerOnIntents = config.TriggerOnIntents
		existing.TriggerOnActions = config.TriggerOnActions
		existing.User = config.User
		existing.Timestamp = time.Now().UTC()
		if err := h.Save(&existing).Error; err != nil {
			return nil, err
		}
		return &existing, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}
	if err := h.Create(config).Error; err != nil {
		return nil, err
	}
	return config, nil
}

func (r *liveAgentConfigRepo) Get(dbc dbctx.Context, bot uuid.UUID) (*domain.LiveAgentConfig, error) {
	var config domain.LiveAgentConfig
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("bot = ? AND status = ?", bot, true).
		First(&config).Error
	if err != nil {
		return nil, err
	}
	return &config, nil
}

func (r *liveAgentConfigRepo) SoftDelete(dbc dbctx.Context, bot uuid.UUID, user string) error {
	return r.handle(dbc).WithContext(dbc.Ctx).
		Model(&domain.LiveAgentConfig{}).
		Where("bot = ? AND status = ?", bot, true).
		Updates(map[string]interface{}{"status": false, "user": user, "timestamp": time.Now().UTC()}).Error
}

func (r *liveAgentConfigRepo) HardDeleteForBot(dbc dbctx.Context, bot uuid.UUID) error {
	return r.handle(dbc).WithContext(dbc.Ctx).Where("bot = ?", bot).Delete(&domain.LiveAgentConfig{}).Error
}
