package tracker

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kairon-labs/kairon-backend/internal/domain"
	"github.com/kairon-labs/kairon-backend/internal/pkg/dbctx"
	"github.com/kairon-labs/kairon-backend/internal/platform/logger"
)

// TrackerRepo is the row-level interface over conversation_event. The save
// and history protocols live in the tracker service; this layer only knows
// batches, windows and the session_started boundary.
type TrackerRepo interface {
	AppendBatch(dbc dbctx.Context, events []*domain.ConversationEvent) error
	LatestSessionStart(dbc dbctx.Context, bot uuid.UUID, senderID string) (float64, error)
	CountBotEventsSince(dbc dbctx.Context, bot uuid.UUID, senderID string, since float64) (int64, error)
	ListBotEvents(dbc dbctx.Context, bot uuid.UUID, senderID string, since float64) ([]*domain.ConversationEvent, error)
	ListBotEventsInWindow(dbc dbctx.Context, bot uuid.UUID, since float64) ([]*domain.ConversationEvent, error)
	ListFlattenedInWindow(dbc dbctx.Context, bot uuid.UUID, since float64) ([]*domain.ConversationEvent, error)
	NormalizeSenderID(dbc dbctx.Context, bot uuid.UUID, from string, to string) error
	DeleteForSender(dbc dbctx.Context, bot uuid.UUID, senderID string, until float64) (int64, error)
	DeleteForBot(dbc dbctx.Context, bot uuid.UUID, until float64) (int64, error)
}

type trackerRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTrackerRepo(db *gorm.DB, baseLog *logger.Logger) TrackerRepo {
	return &trackerRepo{db: db, log: baseLog.With("repo", "TrackerRepo")}
}

func (r *trackerRepo) handle(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *trackerRepo) AppendBatch(dbc dbctx.Context, events []*domain.ConversationEvent) error {
	if len(events) == 0 {
		return nil
	}
	return r.handle(dbc).WithContext(dbc.Ctx).Create(&events).Error
}

// LatestSessionStart returns the timestamp of the most recent session_started
// event for the sender, or 0 when the sender has no session boundary yet.
func (r *trackerRepo) LatestSessionStart(dbc dbctx.Context, bot uuid.UUID, senderID string) (float64, error) {
	h := r.handle(dbc)
	var ev domain.ConversationEvent
	q := h.WithContext(dbc.Ctx).
		Where("bot = ? AND sender_id = ? AND type = ?", bot, senderID, domain.ConversationTypeBot)
	if h.Dialector.Name() == "postgres" {
		q = q.Where("event->>'event' = ?", domain.EventSessionStarted)
	} else {
		q = q.Where("json_extract(event, '$.event') = ?", domain.EventSessionStarted)
	}
	err := q.Order("timestamp DESC").First(&ev).Error
	if err == gorm.ErrRecordNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return ev.Timestamp, nil
}

func (r *trackerRepo) CountBotEventsSince(dbc dbctx.Context, bot uuid.UUID, senderID string, since float64) (int64, error) {
	var count int64
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Model(&domain.ConversationEvent{}).
		Where("bot = ? AND sender_id = ? AND type = ? AND timestamp >= ?", bot, senderID, domain.ConversationTypeBot, since).
		Count(&count).Error
	return count, err
}

func (r *trackerRepo) ListBotEvents(dbc dbctx.Context, bot uuid.UUID, senderID string, since float64) ([]*domain.ConversationEvent, error) {
	var out []*domain.ConversationEvent
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("bot = ? AND sender_id = ? AND type = ? AND timestamp >= ?", bot, senderID, domain.ConversationTypeBot, since).
		Order("timestamp ASC").
		Find(&out).Error
	return out, err
}

func (r *trackerRepo) ListBotEventsInWindow(dbc dbctx.Context, bot uuid.UUID, since float64) ([]*domain.ConversationEvent, error) {
	var out []*domain.ConversationEvent
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("bot = ? AND type = ? AND timestamp >= ?", bot, domain.ConversationTypeBot, since).
		Order("sender_id ASC, timestamp ASC").
		Find(&out).Error
	return out, err
}

func (r *trackerRepo) ListFlattenedInWindow(dbc dbctx.Context, bot uuid.UUID, since float64) ([]*domain.ConversationEvent, error) {
	var out []*domain.ConversationEvent
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("bot = ? AND type = ? AND timestamp >= ?", bot, domain.ConversationTypeFlattened, since).
		Order("sender_id ASC, timestamp ASC").
		Find(&out).Error
	return out, err
}

// NormalizeSenderID rewrites rows stored under a legacy sender key to the
// canonical string form.
func (r *trackerRepo) NormalizeSenderID(dbc dbctx.Context, bot uuid.UUID, from string, to string) error {
	if from == to {
		return nil
	}
	return r.handle(dbc).WithContext(dbc.Ctx).
		Model(&domain.ConversationEvent{}).
		Where("bot = ? AND sender_id = ?", bot, from).
		Update("sender_id", to).Error
}

func (r *trackerRepo) DeleteForSender(dbc dbctx.Context, bot uuid.UUID, senderID string, until float64) (int64, error) {
	q := r.handle(dbc).WithContext(dbc.Ctx).Where("bot = ? AND sender_id = ?", bot, senderID)
	if until > 0 {
		q = q.Where("timestamp < ?", until)
	}
	res := q.Delete(&domain.ConversationEvent{})
	return res.RowsAffected, res.Error
}

func (r *trackerRepo) DeleteForBot(dbc dbctx.Context, bot uuid.UUID, until float64) (int64, error) {
	q := r.handle(dbc).WithContext(dbc.Ctx).Where("bot = ?", bot)
	if until > 0 {
		q = q.Where("timestamp < ?", until)
	}
	res := q.Delete(&domain.ConversationEvent{})
	return res.RowsAffected, res.Error
}
