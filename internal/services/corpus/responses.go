package corpus

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/kairon-labs/kairon-backend/internal/domain"
	"github.com/kairon-labs/kairon-backend/internal/pkg/apperr"
	"github.com/kairon-labs/kairon-backend/internal/pkg/dbctx"
)

// Utterance kinds reported by GetUtteranceFromIntent.
const (
	UtteranceKindBot  = "bot"
	UtteranceKindHTTP = "http"
)

// AddTextResponse registers a plain text variant under the given response
// name.
func (s *Service) AddTextResponse(ctx context.Context, text, name string, bot uuid.UUID, user string) (uuid.UUID, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return uuid.Nil, apperr.Validation("Response text cannot be empty or blank spaces")
	}
	return s.AddResponse(ctx, name, &domain.ResponseText{Text: text}, nil, bot, user)
}

// AddResponse registers a response variant, either a text payload or a raw
// custom payload. Names are normalized to lowercase and the serialized value
// must be unique across every response the bot already has, regardless of
// name.
func (s *Service) AddResponse(ctx context.Context, name string, text *domain.ResponseText, custom map[string]interface{}, bot uuid.UUID, user string) (uuid.UUID, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return uuid.Nil, apperr.Validation("Response name cannot be empty or blank spaces")
	}
	if text == nil && custom == nil {
		return uuid.Nil, apperr.Validation("Response must have either text or a custom payload")
	}
	resp := &domain.Response{
		ID:        uuid.New(),
		Name:      name,
		Bot:       bot,
		User:      user,
		Status:    true,
		Timestamp: time.Now().UTC(),
	}
	if text != nil {
		if err := resp.SetTextValue(text); err != nil {
			return uuid.Nil, err
		}
	} else {
		b, err := json.Marshal(custom)
		if err != nil {
			return uuid.Nil, err
		}
		resp.Custom = datatypes.JSON(b)
	}
	err := s.inTx(ctx, func(dbc dbctx.Context) error {
		existing, err := s.responses.List(dbc, bot)
		if err != nil {
			return err
		}
		serialized := resp.SerializedValue()
		for _, other := range existing {
			if other.SerializedValue() == serialized {
				return apperr.Conflict("Response already exists!")
			}
		}
		if _, err := s.responses.Create(dbc, []*domain.Response{resp}); err != nil {
			return err
		}
		if err := s.ensureUtterance(dbc, bot, user, name); err != nil {
			return err
		}
		s.recordAudit(dbc, bot, user, "response", domain.AuditSave, map[string]interface{}{"name": name})
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	return resp.ID, nil
}

// DeleteResponse removes one response variant. The last variant of a name
// that stories still reference cannot be removed; the story would dead-end.
func (s *Service) DeleteResponse(ctx context.Context, id uuid.UUID, bot uuid.UUID, user string) error {
	return s.inTx(ctx, func(dbc dbctx.Context) error {
		resp, err := s.responses.GetByID(dbc, bot, id)
		if err != nil {
			return apperr.FromDB(err, "Unable to find response")
		}
		count, err := s.responses.CountByName(dbc, bot, resp.Name)
		if err != nil {
			return err
		}
		if count <= 1 {
			referenced, err := s.utteranceReferencedByStory(dbc, bot, resp.Name)
			if err != nil {
				return err
			}
			if referenced {
				return apperr.Conflict("Cannot remove utterance linked to story")
			}
			if err := s.utters.SoftDelete(dbc, bot, resp.Name, user); err != nil {
				return err
			}
		}
		if err := s.responses.SoftDeleteByID(dbc, bot, id, user); err != nil {
			return err
		}
		s.recordAudit(dbc, bot, user, "response", domain.AuditSoftDelete, map[string]interface{}{"name": resp.Name, "id": id.String()})
		return nil
	})
}

// DeleteUtterance removes an utterance name and all of its response
// variants, provided no active story still references it.
func (s *Service) DeleteUtterance(ctx context.Context, name string, bot uuid.UUID, user string) error {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return apperr.Validation("Utterance name cannot be empty or blank spaces")
	}
	return s.inTx(ctx, func(dbc dbctx.Context) error {
		exists, err := s.utters.ExistsByName(dbc, bot, name)
		if err != nil {
			return err
		}
		if !exists {
			return apperr.NotFound("Utterance does not exist")
		}
		referenced, err := s.utteranceReferencedByStory(dbc, bot, name)
		if err != nil {
			return err
		}
		if referenced {
			return apperr.Conflict("Cannot remove utterance linked to story")
		}
		if err := s.responses.SoftDeleteByName(dbc, bot, name, user); err != nil {
			return err
		}
		if err := s.utters.SoftDelete(dbc, bot, name, user); err != nil {
			return err
		}
		s.recordAudit(dbc, bot, user, "utterance", domain.AuditSoftDelete, map[string]interface{}{"name": name})
		return nil
	})
}

func (s *Service) ListResponses(ctx context.Context, bot uuid.UUID, name string) ([]*domain.Response, error) {
	dbc := dbctx.New(ctx)
	if name == "" {
		return s.responses.List(dbc, bot)
	}
	return s.responses.ListByName(dbc, bot, name)
}

func (s *Service) ListUtterances(ctx context.Context, bot uuid.UUID) ([]*domain.Utterance, error) {
	return s.utters.List(dbctx.New(ctx), bot)
}

// GetUtteranceFromIntent finds the first story containing the intent and
// walks forward to the next action step. The action is classified as a bot
// response when a response with that name exists, otherwise as an HTTP
// action when one is registered under the name. Empty results mean no story
// leads from the intent to a known action.
func (s *Service) GetUtteranceFromIntent(ctx context.Context, intent string, bot uuid.UUID) (string, string, error) {
	dbc := dbctx.New(ctx)
	stories, err := s.stories.ListStories(dbc, bot)
	if err != nil {
		return "", "", err
	}
	for _, story := range stories {
		at := -1
		for i, ev := range story.Events {
			if ev.Type == domain.StoryEventUser && strings.EqualFold(ev.Name, intent) {
				at = i
				break
			}
		}
		if at < 0 {
			continue
		}
		for _, ev := range story.Events[at+1:] {
			if ev.Type != domain.StoryEventAction {
				continue
			}
			count, err := s.responses.CountByName(dbc, bot, ev.Name)
			if err != nil {
				return "", "", err
			}
			if count > 0 {
				return ev.Name, UtteranceKindBot, nil
			}
			isHTTP, err := s.httpacts.ExistsByName(dbc, bot, ev.Name)
			if err != nil {
				return "", "", err
			}
			if isHTTP {
				return ev.Name, UtteranceKindHTTP, nil
			}
		}
	}
	return "", "", nil
}

// ensureUtterance registers the response name in the utterance registry.
func (s *Service) ensureUtterance(dbc dbctx.Context, bot uuid.UUID, user, name string) error {
	exists, err := s.utters.ExistsByName(dbc, bot, name)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	_, err = s.utters.Create(dbc, &domain.Utterance{
		ID:        uuid.New(),
		Name:      name,
		Bot:       bot,
		User:      user,
		Status:    true,
		Timestamp: time.Now().UTC(),
	})
	return err
}

// utteranceReferencedByStory reports whether any active story or rule has an
// action step with the given name.
func (s *Service) utteranceReferencedByStory(dbc dbctx.Context, bot uuid.UUID, name string) (bool, error) {
	stories, err := s.stories.ListStories(dbc, bot)
	if err != nil {
		return false, err
	}
	for _, story := range stories {
		for _, ev := range story.Events {
			if ev.Type == domain.StoryEventAction && strings.EqualFold(ev.Name, name) {
				return true, nil
			}
		}
	}
	rules, err := s.stories.ListRules(dbc, bot)
	if err != nil {
		return false, err
	}
	for _, rule := range rules {
		for _, ev := range rule.Events {
			if ev.Type == domain.StoryEventAction && strings.EqualFold(ev.Name, name) {
				return true, nil
			}
		}
	}
	return false, nil
}
