package corpus

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kairon-labs/kairon-backend/internal/domain"
	"github.com/kairon-labs/kairon-backend/internal/pkg/dbctx"
	"github.com/kairon-labs/kairon-backend/internal/platform/logger"
)

// StoryRepo covers both stories and rules; the two tables share a shape and
// the flow-collision checks must look at each the same way.
type StoryRepo interface {
	CreateStory(dbc dbctx.Context, story *domain.Story) (*domain.Story, error)
	CreateRule(dbc dbctx.Context, rule *domain.Rule) (*domain.Rule, error)
	GetStoryByName(dbc dbctx.Context, bot uuid.UUID, blockName string) (*domain.Story, error)
	GetRuleByName(dbc dbctx.Context, bot uuid.UUID, blockName string) (*domain.Rule, error)
	ListStories(dbc dbctx.Context, bot uuid.UUID) ([]*domain.Story, error)
	ListRules(dbc dbctx.Context, bot uuid.UUID) ([]*domain.Rule, error)
	UpdateStory(dbc dbctx.Context, story *domain.Story) error
	UpdateRule(dbc dbctx.Context, rule *domain.Rule) error
	SoftDeleteStory(dbc dbctx.Context, bot uuid.UUID, blockName string, user string) error
	SoftDeleteRule(dbc dbctx.Context, bot uuid.UUID, blockName string, user string) error
	HardDeleteForBot(dbc dbctx.Context, bot uuid.UUID) error
}

type storyRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewStoryRepo(db *gorm.DB, baseLog *logger.Logger) StoryRepo {
	return &storyRepo{db: db, log: baseLog.With("repo", "StoryRepo")}
}

func (r *storyRepo) handle(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *storyRepo) CreateStory(dbc dbctx.Context, story *domain.Story) (*domain.Story, error) {
	if err := r.handle(dbc).WithContext(dbc.Ctx).Create(story).Error; err != nil {
		return nil, err
	}
	return story, nil
}

func (r *storyRepo) CreateRule(dbc dbctx.Context, rule *domain.Rule) (*domain.Rule, error) {
	if err := r.handle(dbc).WithContext(dbc.Ctx).Create(rule).Error; err != nil {
		return nil, err
	}
	return rule, nil
}

func (r *storyRepo) GetStoryByName(dbc dbctx.Context, bot uuid.UUID, blockName string) (*domain.Story, error) {
	var story domain.Story
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("bot = ? AND status = ? AND lower(block_name) = lower(?)", bot, true, blockName).
		First(&story).Error
	if err != nil {
		return nil, err
	}
	return &story, nil
}

func (r *storyRepo) GetRuleByName(dbc dbctx.Context, bot uuid.UUID, blockName string) (*domain.Rule, error) {
	var rule domain.Rule
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("bot = ? AND status = ? AND lower(block_name) = lower(?)", bot, true, blockName).
		First(&rule).Error
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *storyRepo) ListStories(dbc dbctx.Context, bot uuid.UUID) ([]*domain.Story, error) {
	var out []*domain.Story
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("bot = ? AND status = ?", bot, true).
		Order("timestamp ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *storyRepo) ListRules(dbc dbctx.Context, bot uuid.UUID) ([]*domain.Rule, error) {
	var out []*domain.Rule
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("bot = ? AND status = ?", bot, true).
		Order("timestamp ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *storyRepo) UpdateStory(dbc dbctx.Context, story *domain.Story) error {
	story.Timestamp = time.Now().UTC()
	return r.handle(dbc).WithContext(dbc.Ctx).Save(story).Error
}

func (r *storyRepo) UpdateRule(dbc dbctx.Context, rule *domain.Rule) error {
	rule.Timestamp = time.Now().UTC()
	return r.handle(dbc).WithContext(dbc.Ctx).Save(rule).Error
}

func (r *storyRepo) SoftDeleteStory(dbc dbctx.Context, bot uuid.UUID, blockName string, user string) error {
	return r.handle(dbc).WithContext(dbc.Ctx).
		Model(&domain.Story{}).
		Where("bot = ? AND status = ? AND lower(block_name) = lower(?)", bot, true, blockName).
		Updates(map[string]interface{}{"status": false, "user": user, "timestamp": time.Now().UTC()}).Error
}

func (r *storyRepo) SoftDeleteRule(dbc dbctx.Context, bot uuid.UUID, blockName string, user string) error {
	return r.handle(dbc).WithContext(dbc.Ctx).
		Model(&domain.Rule{}).
		Where("bot = ? AND status = ? AND lower(block_name) = lower(?)", bot, true, blockName).
		Updates(map[string]interface{}{"status": false, "user": user, "timestamp": time.Now().UTC()}).Error
}

func (r *storyRepo) HardDeleteForBot(dbc dbctx.Context, bot uuid.UUID) error {
	h := r.handle(dbc).WithContext(dbc.Ctx)
	if err := h.Where("bot = ?", bot).Delete(&domain.Story{}).Error; err != nil {
		return err
	}
	return h.Where("bot = ?", bot).Delete(&domain.Rule{}).Error
}
