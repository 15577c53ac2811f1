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

// AddOrUpdateSlot upserts a slot definition by name. Categorical slots must
// enumerate their values; numeric bounds only make sense on float slots.
func (s *Service) AddOrUpdateSlot(ctx context.Context, slot *domain.Slot, bot uuid.UUID, user string) (uuid.UUID, error) {
	if slot == nil || strings.TrimSpace(slot.Name) == "" {
		return uuid.Nil, apperr.Validation("Slot name cannot be empty or blank spaces")
	}
	if !slot.Type.Valid() {
		return uuid.Nil, apperr.Newf(apperr.KindValidation, "Invalid slot type %s", slot.Type)
	}
	if slot.Type == domain.SlotCategorical && len(slot.Values) == 0 {
		return uuid.Nil, apperr.Validation("Categorical slot must have a list of values")
	}
	if slot.Type != domain.SlotFloat && (slot.MinValue != nil || slot.MaxValue != nil) {
		return uuid.Nil, apperr.Validation("Only float slots can have min and max values")
	}
	var id uuid.UUID
	err := s.inTx(ctx, func(dbc dbctx.Context) error {
		existing, err := s.slots.GetByName(dbc, bot, slot.Name)
		if err == nil {
			existing.Type = slot.Type
			existing.InitialValue = slot.InitialValue
			existing.ValueResetDelay = slot.ValueResetDelay
			existing.AutoFill = slot.AutoFill
			existing.MinValue = slot.MinValue
			existing.MaxValue = slot.MaxValue
			existing.Values = slot.Values
			existing.InfluenceConversation = slot.InfluenceConversation
			existing.User = user
			if err := s.slots.Update(dbc, existing); err != nil {
				return err
			}
			id = existing.ID
			s.recordAudit(dbc, bot, user, "slot", domain.AuditUpdate, map[string]interface{}{"name": slot.Name})
			return nil
		}
		if err != gorm.ErrRecordNotFound {
			return err
		}
		slot.ID = uuid.New()
		slot.Bot = bot
		slot.User = user
		slot.Status = true
		slot.Timestamp = time.Now().UTC()
		if _, err := s.slots.Create(dbc, slot); err != nil {
			return err
		}
		id = slot.ID
		s.recordAudit(dbc, bot, user, "slot", domain.AuditSave, map[string]interface{}{"name": slot.Name})
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// DeleteSlot soft-deletes a slot unless a form still fills it.
func (s *Service) DeleteSlot(ctx context.Context, name string, bot uuid.UUID, user string) error {
	return s.inTx(ctx, func(dbc dbctx.Context) error {
		if _, err := s.slots.GetByName(dbc, bot, name); err != nil {
			return apperr.FromDB(err, "Slot does not exist")
		}
		forms, err := s.forms.List(dbc, bot)
		if err != nil {
			return err
		}
		for _, form := range forms {
			for slotName := range form.Mapping {
				if strings.EqualFold(slotName, name) {
					return apperr.Conflict("Cannot delete slot mapped to a form")
				}
			}
		}
		if err := s.slots.SoftDelete(dbc, bot, name, user); err != nil {
			return err
		}
		s.recordAudit(dbc, bot, user, "slot", domain.AuditSoftDelete, map[string]interface{}{"name": name})
		return nil
	})
}

func (s *Service) ListSlots(ctx context.Context, bot uuid.UUID) ([]*domain.Slot, error) {
	return s.slots.List(dbctx.New(ctx), bot)
}

// AddForm registers a form with its slot mapping. Every mapped slot must
// already exist.
func (s *Service) AddForm(ctx context.Context, name string, mapping map[string]interface{}, bot uuid.UUID, user string) (uuid.UUID, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return uuid.Nil, apperr.Validation("Form name cannot be empty or blank spaces")
	}
	if len(mapping) == 0 {
		return uuid.Nil, apperr.Validation("Form must map at least one slot")
	}
	var id uuid.UUID
	err := s.inTx(ctx, func(dbc dbctx.Context) error {
		if _, err := s.forms.GetByName(dbc, bot, name); err == nil {
			return apperr.Conflict("Form already exists!")
		} else if err != gorm.ErrRecordNotFound {
			return err
		}
		for slotName := range mapping {
			exists, err := s.slots.ExistsByName(dbc, bot, slotName)
			if err != nil {
				return err
			}
			if !exists {
				return apperr.Newf(apperr.KindValidation, "Slot %s does not exist", slotName)
			}
		}
		form := &domain.Form{
			ID:        uuid.New(),
			Name:      name,
			Mapping:   mapping,
			Bot:       bot,
			User:      user,
			Status:    true,
			Timestamp: time.Now().UTC(),
		}
		if _, err := s.forms.Create(dbc, form); err != nil {
			return err
		}
		id = form.ID
		s.recordAudit(dbc, bot, user, "form", domain.AuditSave, map[string]interface{}{"name": name})
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

func (s *Service) DeleteForm(ctx context.Context, name string, bot uuid.UUID, user string) error {
	return s.inTx(ctx, func(dbc dbctx.Context) error {
		if _, err := s.forms.GetByName(dbc, bot, name); err != nil {
			return apperr.FromDB(err, "Form does not exist")
		}
		if err := s.forms.SoftDelete(dbc, bot, name, user); err != nil {
			return err
		}
		s.recordAudit(dbc, bot, user, "form", domain.AuditSoftDelete, map[string]interface{}{"name": name})
		return nil
	})
}

func (s *Service) ListForms(ctx context.Context, bot uuid.UUID) ([]*domain.Form, error) {
	return s.forms.List(dbctx.New(ctx), bot)
}
