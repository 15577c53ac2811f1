package events

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kairon-labs/kairon-backend/internal/domain"
	"github.com/kairon-labs/kairon-backend/internal/pkg/dbctx"
	"github.com/kairon-labs/kairon-backend/internal/platform/logger"
)

type ExecutorLogRepo interface {
	Append(dbc dbctx.Context, entry *domain.ExecutorLog) error
	LatestByExecutorLogID(dbc dbctx.Context, executorLogID string) (*domain.ExecutorLog, error)
	ListByExecutorLogID(dbc dbctx.Context, executorLogID string) ([]*domain.ExecutorLog, error)
	InProgress(dbc dbctx.Context, bot uuid.UUID) (bool, error)
	CountSinceMidnight(dbc dbctx.Context, bot uuid.UUID, class domain.EventClass) (int64, error)
	ListForBot(dbc dbctx.Context, bot uuid.UUID, limit int) ([]*domain.ExecutorLog, error)
	HardDeleteForBot(dbc dbctx.Context, bot uuid.UUID) error
}

type executorLogRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewExecutorLogRepo(db *gorm.DB, baseLog *logger.Logger) ExecutorLogRepo {
	return &executorLogRepo{db: db, log: baseLog.With("repo", "ExecutorLogRepo")}
}

func (r *executorLogRepo) handle(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *executorLogRepo) Append(dbc dbctx.Context, entry *domain.ExecutorLog) error {
	return r.handle(dbc).WithContext(dbc.Ctx).Create(entry).Error
}

func (r *executorLogRepo) LatestByExecutorLogID(dbc dbctx.Context, executorLogID string) (*domain.ExecutorLog, error) {
	var entry domain.ExecutorLog
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("executor_log_id = ?", executorLogID).
		Order("timestamp DESC").
		First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *executorLogRepo) ListByExecutorLogID(dbc dbctx.Context, executorLogID string) ([]*domain.ExecutorLog, error) {
	var out []*domain.ExecutorLog
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("executor_log_id = ?", executorLogID).
		Order("timestamp ASC").
		Find(&out).Error
	return out, err
}

// InProgress reports whether any execution for the bot has a latest row in a
// non-terminal state. Rows are append-only, so the check groups by
// executor_log_id and inspects each group's newest status.
func (r *executorLogRepo) InProgress(dbc dbctx.Context, bot uuid.UUID) (bool, error) {
	var count int64
	sub := r.handle(dbc).WithContext(dbc.Ctx).
		Model(&domain.ExecutorLog{}).
		Select("executor_log_id, max(timestamp) AS latest").
		Where("bot = ?", bot).
		Group("executor_log_id")
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Model(&domain.ExecutorLog{}).
		Joins("JOIN (?) AS latest_rows ON executor_log.executor_log_id = latest_rows.executor_log_id AND executor_log.timestamp = latest_rows.latest", sub).
		Where("executor_log.bot = ? AND executor_log.status NOT IN ?", bot, domain.TerminalStatuses()).
		Count(&count).Error
	return count > 0, err
}

// CountSinceMidnight counts distinct executions of the class started since
// 00:00 UTC today.
func (r *executorLogRepo) CountSinceMidnight(dbc dbctx.Context, bot uuid.UUID, class domain.EventClass) (int64, error) {
	now := time.Now().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	var count int64
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Model(&domain.ExecutorLog{}).
		Where("bot = ? AND event_class = ? AND status = ? AND from_executor = ? AND timestamp >= ?", bot, class, domain.StatusEnqueued, false, midnight).
		Count(&count).Error
	return count, err
}

func (r *executorLogRepo) ListForBot(dbc dbctx.Context, bot uuid.UUID, limit int) ([]*domain.ExecutorLog, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []*domain.ExecutorLog
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("bot = ?", bot).
		Order("timestamp DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

func (r *executorLogRepo) HardDeleteForBot(dbc dbctx.Context, bot uuid.UUID) error {
	return r.handle(dbc).WithContext(dbc.Ctx).Where("bot = ?", bot).Delete(&domain.ExecutorLog{}).Error
}
