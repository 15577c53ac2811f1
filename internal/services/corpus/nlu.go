package corpus

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kairon-labs/kairon-backend/internal/domain"
	"github.com/kairon-labs/kairon-backend/internal/pkg/apperr"
	"github.com/kairon-labs/kairon-backend/internal/pkg/dbctx"
)

// ExampleResult reports the outcome of one submitted training example.
// ID is nil when the example was skipped.
type ExampleResult struct {
	Text    string     `json:"text"`
	ID      *uuid.UUID `json:"_id,omitempty"`
	Message string     `json:"message"`
}

// AddIntent registers a new intent name for the bot. Integration-created
// intents carry the is_integration flag and can only be removed by
// integration users.
func (s *Service) AddIntent(ctx context.Context, name string, bot uuid.UUID, user string, isIntegration bool) (uuid.UUID, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return uuid.Nil, apperr.Validation("Intent Name cannot be empty or blank spaces")
	}
	var id uuid.UUID
	err := s.inTx(ctx, func(dbc dbctx.Context) error {
		exists, err := s.intents.ExistsByName(dbc, bot, name)
		if err != nil {
			return err
		}
		if exists {
			return apperr.Conflict("Intent already exists!")
		}
		intent := &domain.Intent{
			ID:            uuid.New(),
			Name:          name,
			Bot:           bot,
			User:          user,
			IsIntegration: isIntegration,
			Status:        true,
			Timestamp:     time.Now().UTC(),
		}
		if _, err := s.intents.Create(dbc, []*domain.Intent{intent}); err != nil {
			return err
		}
		id = intent.ID
		s.recordAudit(dbc, bot, user, "intent", domain.AuditSave, map[string]interface{}{"name": name})
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// AddTrainingExamples attaches examples to an intent, creating the intent
// when it does not exist yet. Each example is parsed for entity annotations;
// duplicates are skipped with a message rather than failing the batch. Every
// extracted entity gets a text slot of the same name registered, and inline
// canonical-value annotations land in the synonym table.
func (s *Service) AddTrainingExamples(ctx context.Context, examples []string, intent string, bot uuid.UUID, user string, isIntegration bool) ([]ExampleResult, error) {
	intent = strings.TrimSpace(intent)
	if intent == "" {
		return nil, apperr.Validation("Intent Name cannot be empty or blank spaces")
	}
	results := make([]ExampleResult, 0, len(examples))
	err := s.inTx(ctx, func(dbc dbctx.Context) error {
		exists, err := s.intents.ExistsByName(dbc, bot, intent)
		if err != nil {
			return err
		}
		if !exists {
			newIntent := &domain.Intent{
				ID:            uuid.New(),
				Name:          intent,
				Bot:           bot,
				User:          user,
				IsIntegration: isIntegration,
				Status:        true,
				Timestamp:     time.Now().UTC(),
			}
			if _, err := s.intents.Create(dbc, []*domain.Intent{newIntent}); err != nil {
				return err
			}
			s.recordAudit(dbc, bot, user, "intent", domain.AuditSave, map[string]interface{}{"name": intent})
		}
		for _, raw := range examples {
			raw = strings.TrimSpace(raw)
			if raw == "" {
				results = append(results, ExampleResult{Text: raw, Message: "Training Example cannot be empty or blank spaces"})
				continue
			}
			text, entities, pairs, err := ParseTrainingExample(raw)
			if err != nil {
				return err
			}
			dup, err := s.examples.ExistsByText(dbc, bot, text)
			if err != nil {
				return err
			}
			if dup {
				results = append(results, ExampleResult{Text: text, Message: "Training Example already exists!"})
				continue
			}
			ex := &domain.TrainingExample{
				ID:        uuid.New(),
				Intent:    intent,
				Text:      text,
				Entities:  entities,
				Bot:       bot,
				User:      user,
				Status:    true,
				Timestamp: time.Now().UTC(),
			}
			if _, err := s.examples.Create(dbc, []*domain.TrainingExample{ex}); err != nil {
				return err
			}
			if err := s.registerEntities(dbc, bot, user, entities); err != nil {
				return err
			}
			if err := s.registerSynonymPairs(dbc, bot, user, pairs); err != nil {
				return err
			}
			results = append(results, ExampleResult{Text: text, ID: &ex.ID, Message: "Training Example added"})
			s.recordAudit(dbc, bot, user, "training_example", domain.AuditSave, map[string]interface{}{"intent": intent, "text": text})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// EditTrainingExample replaces the text (and re-parsed entities) of an
// existing example and moves it to the given intent.
func (s *Service) EditTrainingExample(ctx context.Context, id uuid.UUID, newText, intent string, bot uuid.UUID, user string) error {
	newText = strings.TrimSpace(newText)
	if newText == "" {
		return apperr.Validation("Training Example cannot be empty or blank spaces")
	}
	return s.inTx(ctx, func(dbc dbctx.Context) error {
		ex, err := s.examples.GetByID(dbc, bot, id)
		if err != nil {
			return apperr.FromDB(err, "Unable to find training example")
		}
		text, entities, pairs, err := ParseTrainingExample(newText)
		if err != nil {
			return err
		}
		ex.Text = text
		ex.Entities = entities
		ex.Intent = intent
		ex.User = user
		if err := s.examples.Update(dbc, ex); err != nil {
			return err
		}
		if err := s.registerEntities(dbc, bot, user, entities); err != nil {
			return err
		}
		if err := s.registerSynonymPairs(dbc, bot, user, pairs); err != nil {
			return err
		}
		s.recordAudit(dbc, bot, user, "training_example", domain.AuditUpdate, map[string]interface{}{"intent": intent, "text": text})
		return nil
	})
}

// DeleteTrainingExample soft-deletes a single example by id.
func (s *Service) DeleteTrainingExample(ctx context.Context, id uuid.UUID, bot uuid.UUID, user string) error {
	return s.inTx(ctx, func(dbc dbctx.Context) error {
		if _, err := s.examples.GetByID(dbc, bot, id); err != nil {
			return apperr.FromDB(err, "Unable to find training example")
		}
		if err := s.examples.SoftDeleteByID(dbc, bot, id, user); err != nil {
			return err
		}
		s.recordAudit(dbc, bot, user, "training_example", domain.AuditSoftDelete, map[string]interface{}{"id": id.String()})
		return nil
	})
}

// DeleteIntent soft-deletes an intent. Dependent training examples go with
// it when deleteDependencies is set. Integration users may only remove
// intents that were created through the integration surface.
func (s *Service) DeleteIntent(ctx context.Context, intent string, bot uuid.UUID, user string, isIntegration, deleteDependencies bool) error {
	return s.inTx(ctx, func(dbc dbctx.Context) error {
		existing, err := s.intents.GetByName(dbc, bot, intent)
		if err != nil {
			return apperr.FromDB(err, "Intent does not exist")
		}
		if isIntegration && !existing.IsIntegration {
			return apperr.Forbidden("This intent cannot be deleted by an integration user")
		}
		if err := s.intents.SoftDelete(dbc, bot, intent, user); err != nil {
			return err
		}
		if deleteDependencies {
			if err := s.examples.SoftDeleteByIntent(dbc, bot, intent, user); err != nil {
				return err
			}
		}
		s.recordAudit(dbc, bot, user, "intent", domain.AuditSoftDelete, map[string]interface{}{"name": intent, "delete_dependencies": deleteDependencies})
		return nil
	})
}

func (s *Service) ListIntents(ctx context.Context, bot uuid.UUID) ([]*domain.Intent, error) {
	return s.intents.List(dbctx.New(ctx), bot)
}

func (s *Service) ListTrainingExamples(ctx context.Context, bot uuid.UUID, intent string) ([]*domain.TrainingExample, error) {
	return s.examples.ListByIntent(dbctx.New(ctx), bot, intent)
}

// ListEntities returns the distinct entity names annotated across the bot's
// active training examples.
func (s *Service) ListEntities(ctx context.Context, bot uuid.UUID) ([]string, error) {
	examples, err := s.examples.List(dbctx.New(ctx), bot)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	for _, ex := range examples {
		for _, e := range ex.Entities {
			seen[e.Entity] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// AddSynonym maps one or more surface values onto a canonical synonym name.
// Existing mappings are skipped, not duplicated.
func (s *Service) AddSynonym(ctx context.Context, name string, values []string, bot uuid.UUID, user string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return apperr.Validation("Synonym name cannot be empty or blank spaces")
	}
	if len(values) == 0 {
		return apperr.Validation("Synonym value cannot be an empty list")
	}
	return s.inTx(ctx, func(dbc dbctx.Context) error {
		for _, value := range values {
			value = strings.TrimSpace(value)
			if value == "" {
				return apperr.Validation("Synonym value cannot be empty or blank spaces")
			}
			if strings.EqualFold(value, name) {
				return apperr.Validation("Synonym name and value cannot be the same")
			}
			exists, err := s.synonyms.ExistsByValue(dbc, bot, name, value)
			if err != nil {
				return err
			}
			if exists {
				continue
			}
			row := &domain.EntitySynonym{
				ID:        uuid.New(),
				Synonym:   name,
				Value:     value,
				Bot:       bot,
				User:      user,
				Status:    true,
				Timestamp: time.Now().UTC(),
			}
			if _, err := s.synonyms.Create(dbc, []*domain.EntitySynonym{row}); err != nil {
				return err
			}
			s.recordAudit(dbc, bot, user, "synonym", domain.AuditSave, map[string]interface{}{"synonym": name, "value": value})
		}
		return nil
	})
}

func (s *Service) DeleteSynonymValue(ctx context.Context, id uuid.UUID, bot uuid.UUID, user string) error {
	return s.inTx(ctx, func(dbc dbctx.Context) error {
		if err := s.synonyms.SoftDeleteByID(dbc, bot, id, user); err != nil {
			return err
		}
		s.recordAudit(dbc, bot, user, "synonym", domain.AuditSoftDelete, map[string]interface{}{"id": id.String()})
		return nil
	})
}

func (s *Service) ListSynonyms(ctx context.Context, bot uuid.UUID) ([]*domain.EntitySynonym, error) {
	return s.synonyms.List(dbctx.New(ctx), bot)
}

// AddLookupValues appends values to a named lookup table, skipping any that
// are already present.
func (s *Service) AddLookupValues(ctx context.Context, name string, values []string, bot uuid.UUID, user string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return apperr.Validation("Lookup table name cannot be empty or blank spaces")
	}
	if len(values) == 0 {
		return apperr.Validation("Lookup value cannot be an empty list")
	}
	return s.inTx(ctx, func(dbc dbctx.Context) error {
		for _, value := range values {
			value = strings.TrimSpace(value)
			if value == "" {
				return apperr.Validation("Lookup value cannot be empty or blank spaces")
			}
			exists, err := s.lookups.ExistsByValue(dbc, bot, name, value)
			if err != nil {
				return err
			}
			if exists {
				continue
			}
			row := &domain.LookupTable{
				ID:        uuid.New(),
				Name:      name,
				Value:     value,
				Bot:       bot,
				User:      user,
				Status:    true,
				Timestamp: time.Now().UTC(),
			}
			if _, err := s.lookups.Create(dbc, []*domain.LookupTable{row}); err != nil {
				return err
			}
			s.recordAudit(dbc, bot, user, "lookup_table", domain.AuditSave, map[string]interface{}{"name": name, "value": value})
		}
		return nil
	})
}

func (s *Service) DeleteLookupValue(ctx context.Context, id uuid.UUID, bot uuid.UUID, user string) error {
	return s.inTx(ctx, func(dbc dbctx.Context) error {
		if err := s.lookups.SoftDeleteByID(dbc, bot, id, user); err != nil {
			return err
		}
		s.recordAudit(dbc, bot, user, "lookup_table", domain.AuditSoftDelete, map[string]interface{}{"id": id.String()})
		return nil
	})
}

func (s *Service) ListLookupTables(ctx context.Context, bot uuid.UUID) ([]*domain.LookupTable, error) {
	return s.lookups.List(dbctx.New(ctx), bot)
}

// AddRegexFeature registers a named extraction pattern; the pattern must be
// a valid regular expression. Saving an existing name replaces its pattern.
func (s *Service) AddRegexFeature(ctx context.Context, name, pattern string, bot uuid.UUID, user string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return apperr.Validation("Regex name cannot be empty or blank spaces")
	}
	if strings.TrimSpace(pattern) == "" {
		return apperr.Validation("Regex pattern cannot be empty or blank spaces")
	}
	if _, err := regexp.Compile(pattern); err != nil {
		return apperr.Validation("Invalid regex pattern")
	}
	return s.inTx(ctx, func(dbc dbctx.Context) error {
		feature := &domain.RegexFeature{
			ID:        uuid.New(),
			Name:      name,
			Pattern:   pattern,
			Bot:       bot,
			User:      user,
			Status:    true,
			Timestamp: time.Now().UTC(),
		}
		if _, err := s.regexes.Upsert(dbc, feature); err != nil {
			return err
		}
		s.recordAudit(dbc, bot, user, "regex_feature", domain.AuditSave, map[string]interface{}{"name": name, "pattern": pattern})
		return nil
	})
}

// EditRegexFeature rewrites the pattern of an existing regex feature.
func (s *Service) EditRegexFeature(ctx context.Context, name, pattern string, bot uuid.UUID, user string) error {
	if _, err := regexp.Compile(pattern); err != nil {
		return apperr.Validation("Invalid regex pattern")
	}
	return s.inTx(ctx, func(dbc dbctx.Context) error {
		existing, err := s.regexes.GetByName(dbc, bot, name)
		if err != nil {
			return apperr.FromDB(err, "Regex feature does not exist")
		}
		existing.Pattern = pattern
		existing.User = user
		if _, err := s.regexes.Upsert(dbc, existing); err != nil {
			return err
		}
		s.recordAudit(dbc, bot, user, "regex_feature", domain.AuditUpdate, map[string]interface{}{"name": name, "pattern": pattern})
		return nil
	})
}

func (s *Service) DeleteRegexFeature(ctx context.Context, name string, bot uuid.UUID, user string) error {
	return s.inTx(ctx, func(dbc dbctx.Context) error {
		if _, err := s.regexes.GetByName(dbc, bot, name); err != nil {
			return apperr.FromDB(err, "Regex feature does not exist")
		}
		if err := s.regexes.SoftDelete(dbc, bot, name, user); err != nil {
			return err
		}
		s.recordAudit(dbc, bot, user, "regex_feature", domain.AuditSoftDelete, map[string]interface{}{"name": name})
		return nil
	})
}

func (s *Service) ListRegexFeatures(ctx context.Context, bot uuid.UUID) ([]*domain.RegexFeature, error) {
	return s.regexes.List(dbctx.New(ctx), bot)
}

// registerEntities ensures a text slot exists for every annotated entity so
// the extracted value has somewhere to land during a conversation.
func (s *Service) registerEntities(dbc dbctx.Context, bot uuid.UUID, user string, entities []domain.Entity) error {
	for _, e := range entities {
		exists, err := s.slots.ExistsByName(dbc, bot, e.Entity)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		slot := &domain.Slot{
			ID:                    uuid.New(),
			Name:                  e.Entity,
			Type:                  domain.SlotText,
			AutoFill:              true,
			InfluenceConversation: true,
			Bot:                   bot,
			User:                  user,
			Status:                true,
			Timestamp:             time.Now().UTC(),
		}
		if _, err := s.slots.Create(dbc, slot); err != nil {
			return err
		}
		s.recordAudit(dbc, bot, user, "slot", domain.AuditSave, map[string]interface{}{"name": e.Entity, "type": string(domain.SlotText)})
	}
	return nil
}

func (s *Service) registerSynonymPairs(dbc dbctx.Context, bot uuid.UUID, user string, pairs []SynonymPair) error {
	for _, p := range pairs {
		exists, err := s.synonyms.ExistsByValue(dbc, bot, p.Value, p.Synonym)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		// the table inverts the pair's naming: column "synonym" holds the
		// canonical name rows group under, "value" one surface variant
		row := &domain.EntitySynonym{
			ID:        uuid.New(),
			Synonym:   p.Value,
			Value:     p.Synonym,
			Bot:       bot,
			User:      user,
			Status:    true,
			Timestamp: time.Now().UTC(),
		}
		if _, err := s.synonyms.Create(dbc, []*domain.EntitySynonym{row}); err != nil {
			return err
		}
	}
	return nil
}
