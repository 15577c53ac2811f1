package corpus

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kairon-labs/kairon-backend/internal/domain"
	"github.com/kairon-labs/kairon-backend/internal/pkg/apperr"
	"github.com/kairon-labs/kairon-backend/internal/pkg/dbctx"
)

// Step types accepted in a complex story request.
const (
	StepIntent     = "INTENT"
	StepBot        = "BOT"
	StepHTTPAction = "HTTP_ACTION"
	StepAction     = "ACTION"
)

// Flow types.
const (
	FlowStory = "STORY"
	FlowRule  = "RULE"
)

type StoryStep struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// ComplexStoryRequest is the client-facing shape of one flow: a named
// sequence of intent and action steps, materialized as a Story or a Rule.
type ComplexStoryRequest struct {
	Name  string      `json:"name"`
	Steps []StoryStep `json:"steps"`
	Type  string      `json:"type"`
}

// AddComplexStory converts the step list into story events and writes a
// Story or Rule. It fails when the block name is taken or when another
// active flow already carries the exact same event sequence. ACTION steps
// auto-register in the action registry.
func (s *Service) AddComplexStory(ctx context.Context, req *ComplexStoryRequest, bot uuid.UUID, user string) (uuid.UUID, error) {
	events, err := s.validateStoryRequest(req)
	if err != nil {
		return uuid.Nil, err
	}
	var id uuid.UUID
	err = s.inTx(ctx, func(dbc dbctx.Context) error {
		exists, err := s.flowExists(dbc, bot, req.Name, events, uuid.Nil)
		if err != nil {
			return err
		}
		if exists {
			return apperr.Conflict("Flow already exists!")
		}
		if err := s.resolveSteps(dbc, bot, req.Steps); err != nil {
			return err
		}
		if err := s.registerActionSteps(dbc, bot, user, req.Steps); err != nil {
			return err
		}
		now := time.Now().UTC()
		if req.Type == FlowRule {
			rule := &domain.Rule{
				ID:        uuid.New(),
				BlockName: req.Name,
				Events:    events,
				Bot:       bot,
				User:      user,
				Status:    true,
				Timestamp: now,
			}
			if _, err := s.stories.CreateRule(dbc, rule); err != nil {
				return err
			}
			id = rule.ID
		} else {
			story := &domain.Story{
				ID:           uuid.New(),
				BlockName:    req.Name,
				Events:       events,
				TemplateType: domain.TemplateTypeCustom,
				Bot:          bot,
				User:         user,
				Status:       true,
				Timestamp:    now,
			}
			if _, err := s.stories.CreateStory(dbc, story); err != nil {
				return err
			}
			id = story.ID
		}
		s.recordAudit(dbc, bot, user, strings.ToLower(req.Type), domain.AuditSave, map[string]interface{}{"name": req.Name})
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// UpdateComplexStory replaces the event sequence of an existing flow. The
// new sequence must not collide with any other active flow.
func (s *Service) UpdateComplexStory(ctx context.Context, req *ComplexStoryRequest, bot uuid.UUID, user string) error {
	events, err := s.validateStoryRequest(req)
	if err != nil {
		return err
	}
	return s.inTx(ctx, func(dbc dbctx.Context) error {
		if err := s.resolveSteps(dbc, bot, req.Steps); err != nil {
			return err
		}
		if err := s.registerActionSteps(dbc, bot, user, req.Steps); err != nil {
			return err
		}
		if req.Type == FlowRule {
			rule, err := s.stories.GetRuleByName(dbc, bot, req.Name)
			if err != nil {
				return apperr.FromDB(err, "Flow does not exist")
			}
			collides, err := s.flowExists(dbc, bot, "", events, rule.ID)
			if err != nil {
				return err
			}
			if collides {
				return apperr.Conflict("Flow already exists!")
			}
			rule.Events = events
			rule.User = user
			if err := s.stories.UpdateRule(dbc, rule); err != nil {
				return err
			}
		} else {
			story, err := s.stories.GetStoryByName(dbc, bot, req.Name)
			if err != nil {
				return apperr.FromDB(err, "Flow does not exist")
			}
			collides, err := s.flowExists(dbc, bot, "", events, story.ID)
			if err != nil {
				return err
			}
			if collides {
				return apperr.Conflict("Flow already exists!")
			}
			story.Events = events
			story.User = user
			if err := s.stories.UpdateStory(dbc, story); err != nil {
				return err
			}
		}
		s.recordAudit(dbc, bot, user, strings.ToLower(req.Type), domain.AuditUpdate, map[string]interface{}{"name": req.Name})
		return nil
	})
}

// DeleteComplexStory soft-deletes a flow by block name.
func (s *Service) DeleteComplexStory(ctx context.Context, name, flowType string, bot uuid.UUID, user string) error {
	return s.inTx(ctx, func(dbc dbctx.Context) error {
		if flowType == FlowRule {
			if _, err := s.stories.GetRuleByName(dbc, bot, name); err != nil {
				return apperr.FromDB(err, "Flow does not exist")
			}
			if err := s.stories.SoftDeleteRule(dbc, bot, name, user); err != nil {
				return err
			}
		} else {
			if _, err := s.stories.GetStoryByName(dbc, bot, name); err != nil {
				return apperr.FromDB(err, "Flow does not exist")
			}
			if err := s.stories.SoftDeleteStory(dbc, bot, name, user); err != nil {
				return err
			}
		}
		s.recordAudit(dbc, bot, user, strings.ToLower(flowType), domain.AuditSoftDelete, map[string]interface{}{"name": name})
		return nil
	})
}

func (s *Service) ListStories(ctx context.Context, bot uuid.UUID) ([]*domain.Story, error) {
	return s.stories.ListStories(dbctx.New(ctx), bot)
}

func (s *Service) ListRules(ctx context.Context, bot uuid.UUID) ([]*domain.Rule, error) {
	return s.stories.ListRules(dbctx.New(ctx), bot)
}

// validateStoryRequest checks the request shape and converts steps into
// story events: INTENT becomes a user event, everything else an action.
func (s *Service) validateStoryRequest(req *ComplexStoryRequest) ([]domain.StoryEvent, error) {
	if req == nil || strings.TrimSpace(req.Name) == "" {
		return nil, apperr.Validation("Story name cannot be empty or blank spaces")
	}
	if len(req.Steps) == 0 {
		return nil, apperr.Validation("Steps are required to form a flow")
	}
	if req.Type != FlowStory && req.Type != FlowRule {
		return nil, apperr.Validation("Invalid flow type")
	}
	events := make([]domain.StoryEvent, 0, len(req.Steps))
	for _, step := range req.Steps {
		if strings.TrimSpace(step.Name) == "" {
			return nil, apperr.Validation("Step name cannot be empty or blank spaces")
		}
		switch step.Type {
		case StepIntent:
			events = append(events, domain.StoryEvent{Name: step.Name, Type: domain.StoryEventUser})
		case StepBot, StepHTTPAction, StepAction:
			events = append(events, domain.StoryEvent{Name: step.Name, Type: domain.StoryEventAction})
		default:
			return nil, apperr.Newf(apperr.KindValidation, "Invalid step type %s", step.Type)
		}
	}
	return events, nil
}

// resolveSteps checks every step against active rows: intents must exist,
// BOT steps must name a registered utterance, HTTP_ACTION steps a stored
// HTTP action config. Plain ACTION steps are exempt; they auto-register.
func (s *Service) resolveSteps(dbc dbctx.Context, bot uuid.UUID, steps []StoryStep) error {
	for _, step := range steps {
		switch step.Type {
		case StepIntent:
			exists, err := s.intents.ExistsByName(dbc, bot, step.Name)
			if err != nil {
				return err
			}
			if !exists {
				return apperr.Newf(apperr.KindValidation, "Intent %s does not exist", step.Name)
			}
		case StepBot:
			exists, err := s.utters.ExistsByName(dbc, bot, step.Name)
			if err != nil {
				return err
			}
			if !exists {
				return apperr.Newf(apperr.KindValidation, "Utterance %s does not exist", step.Name)
			}
		case StepHTTPAction:
			exists, err := s.httpacts.ExistsByName(dbc, bot, step.Name)
			if err != nil {
				return err
			}
			if !exists {
				return apperr.Newf(apperr.KindValidation, "HTTP action %s does not exist", step.Name)
			}
		}
	}
	return nil
}

// registerActionSteps adds plain ACTION steps to the action registry so the
// flow never references an unknown action.
func (s *Service) registerActionSteps(dbc dbctx.Context, bot uuid.UUID, user string, steps []StoryStep) error {
	for _, step := range steps {
		if step.Type != StepAction {
			continue
		}
		exists, err := s.actions.ExistsByName(dbc, bot, step.Name)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		action := &domain.Action{
			ID:        uuid.New(),
			Name:      step.Name,
			Bot:       bot,
			User:      user,
			Status:    true,
			Timestamp: time.Now().UTC(),
		}
		if _, err := s.actions.Create(dbc, []*domain.Action{action}); err != nil {
			return err
		}
	}
	return nil
}

// flowExists reports a collision by block name (when name is set) or by
// exact event sequence against every other active story and rule. exclude
// skips the flow being updated.
func (s *Service) flowExists(dbc dbctx.Context, bot uuid.UUID, name string, events []domain.StoryEvent, exclude uuid.UUID) (bool, error) {
	if name != "" {
		if _, err := s.stories.GetStoryByName(dbc, bot, name); err == nil {
			return true, nil
		} else if err != gorm.ErrRecordNotFound {
			return false, err
		}
		if _, err := s.stories.GetRuleByName(dbc, bot, name); err == nil {
			return true, nil
		} else if err != gorm.ErrRecordNotFound {
			return false, err
		}
	}
	serialized := domain.SerializeEvents(events)
	stories, err := s.stories.ListStories(dbc, bot)
	if err != nil {
		return false, err
	}
	for _, story := range stories {
		if story.ID != exclude && domain.SerializeEvents(story.Events) == serialized {
			return true, nil
		}
	}
	rules, err := s.stories.ListRules(dbc, bot)
	if err != nil {
		return false, err
	}
	for _, rule := range rules {
		if rule.ID != exclude && domain.SerializeEvents(rule.Events) == serialized {
			return true, nil
		}
	}
	return false, nil
}
