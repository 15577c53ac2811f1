package corpus

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kairon-labs/kairon-backend/internal/domain"
	"github.com/kairon-labs/kairon-backend/internal/pkg/apperr"
	"github.com/kairon-labs/kairon-backend/internal/pkg/dbctx"
)

// HTTPActionRequest is the client-facing shape of one HTTP action config.
type HTTPActionRequest struct {
	ActionName       string             `json:"action_name" yaml:"action_name"`
	HTTPURL          string             `json:"http_url" yaml:"http_url"`
	RequestMethod    string             `json:"request_method" yaml:"request_method"`
	AuthToken        string             `json:"auth_token,omitempty" yaml:"auth_token,omitempty"`
	ResponseTemplate string             `json:"response" yaml:"response"`
	ParamsList       []domain.HTTPParam `json:"params_list,omitempty" yaml:"params_list,omitempty"`
}

func (r *HTTPActionRequest) validate() error {
	if r == nil || strings.TrimSpace(r.ActionName) == "" {
		return apperr.Validation("Action name cannot be empty")
	}
	if err := validateHTTPURL(r.HTTPURL); err != nil {
		return apperr.Validation("URL is malformed")
	}
	if !domain.HTTPRequestMethod(r.RequestMethod).Valid() {
		return apperr.Validation("Invalid HTTP method")
	}
	if strings.TrimSpace(r.ResponseTemplate) == "" {
		return apperr.Validation("Response cannot be empty")
	}
	for _, p := range r.ParamsList {
		if strings.TrimSpace(p.Key) == "" {
			return apperr.Validation("Parameter key cannot be empty")
		}
		if !p.ParameterType.Valid() {
			return apperr.Newf(apperr.KindValidation, "Invalid parameter type %s", p.ParameterType)
		}
		if p.ParameterType == domain.ParamValue && strings.TrimSpace(p.Value) == "" {
			return apperr.Validation("Parameter value cannot be empty for type value")
		}
		if p.ParameterType == domain.ParamSlot && strings.TrimSpace(p.Value) == "" {
			return apperr.Validation("Parameter value cannot be empty for type slot")
		}
	}
	return nil
}

// AddHTTPAction stores a new HTTP action config, registers its name in the
// action registry and guarantees the kairon_action_response slot exists to
// receive the rendered response.
func (s *Service) AddHTTPAction(ctx context.Context, req *HTTPActionRequest, bot uuid.UUID, user string) (uuid.UUID, error) {
	if err := req.validate(); err != nil {
		return uuid.Nil, err
	}
	var id uuid.UUID
	err := s.inTx(ctx, func(dbc dbctx.Context) error {
		exists, err := s.httpacts.ExistsByName(dbc, bot, req.ActionName)
		if err != nil {
			return err
		}
		if !exists {
			exists, err = s.actions.ExistsByName(dbc, bot, req.ActionName)
			if err != nil {
				return err
			}
		}
		if exists {
			return apperr.Conflict("Action exists!")
		}
		action := &domain.HTTPAction{
			ID:               uuid.New(),
			ActionName:       req.ActionName,
			HTTPURL:          req.HTTPURL,
			RequestMethod:    domain.HTTPRequestMethod(req.RequestMethod),
			AuthToken:        req.AuthToken,
			ResponseTemplate: req.ResponseTemplate,
			ParamsList:       req.ParamsList,
			Bot:              bot,
			User:             user,
			Status:           true,
			Timestamp:        time.Now().UTC(),
		}
		if _, err := s.httpacts.Create(dbc, action); err != nil {
			return err
		}
		registry := &domain.Action{
			ID:        uuid.New(),
			Name:      req.ActionName,
			Bot:       bot,
			User:      user,
			Status:    true,
			Timestamp: time.Now().UTC(),
		}
		if _, err := s.actions.Create(dbc, []*domain.Action{registry}); err != nil {
			return err
		}
		if err := s.ensureActionResponseSlot(dbc, bot, user); err != nil {
			return err
		}
		id = action.ID
		s.recordAudit(dbc, bot, user, "http_action", domain.AuditSave, map[string]interface{}{"action_name": req.ActionName})
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// UpdateHTTPAction rewrites an existing HTTP action config in place.
func (s *Service) UpdateHTTPAction(ctx context.Context, req *HTTPActionRequest, bot uuid.UUID, user string) error {
	if err := req.validate(); err != nil {
		return err
	}
	return s.inTx(ctx, func(dbc dbctx.Context) error {
		existing, err := s.httpacts.GetByName(dbc, bot, req.ActionName)
		if err != nil {
			return apperr.FromDB(err, "No HTTP action found for bot and action")
		}
		existing.HTTPURL = req.HTTPURL
		existing.RequestMethod = domain.HTTPRequestMethod(req.RequestMethod)
		existing.AuthToken = req.AuthToken
		existing.ResponseTemplate = req.ResponseTemplate
		existing.ParamsList = req.ParamsList
		existing.User = user
		if err := s.httpacts.Update(dbc, existing); err != nil {
			return err
		}
		s.recordAudit(dbc, bot, user, "http_action", domain.AuditUpdate, map[string]interface{}{"action_name": req.ActionName})
		return nil
	})
}

// DeleteHTTPAction soft-deletes the config and its registry entry.
func (s *Service) DeleteHTTPAction(ctx context.Context, actionName string, bot uuid.UUID, user string) error {
	return s.inTx(ctx, func(dbc dbctx.Context) error {
		if _, err := s.httpacts.GetByName(dbc, bot, actionName); err != nil {
			return apperr.FromDB(err, "No HTTP action found for bot and action")
		}
		if err := s.httpacts.SoftDelete(dbc, bot, actionName, user); err != nil {
			return err
		}
		if err := s.actions.SoftDelete(dbc, bot, actionName, user); err != nil {
			return err
		}
		s.recordAudit(dbc, bot, user, "http_action", domain.AuditSoftDelete, map[string]interface{}{"action_name": actionName})
		return nil
	})
}

func (s *Service) GetHTTPAction(ctx context.Context, actionName string, bot uuid.UUID) (*domain.HTTPAction, error) {
	action, err := s.httpacts.GetByName(dbctx.New(ctx), bot, actionName)
	return action, apperr.FromDB(err, "No HTTP action found for bot and action")
}

func (s *Service) ListHTTPActions(ctx context.Context, bot uuid.UUID) ([]*domain.HTTPAction, error) {
	return s.httpacts.List(dbctx.New(ctx), bot)
}

func (s *Service) ListActions(ctx context.Context, bot uuid.UUID) ([]*domain.Action, error) {
	return s.actions.List(dbctx.New(ctx), bot)
}

// ensureActionResponseSlot creates the shared slot every HTTP action writes
// its rendered response into.
func (s *Service) ensureActionResponseSlot(dbc dbctx.Context, bot uuid.UUID, user string) error {
	exists, err := s.slots.ExistsByName(dbc, bot, domain.KaironActionResponseSlot)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	slot := &domain.Slot{
		ID:                    uuid.New(),
		Name:                  domain.KaironActionResponseSlot,
		Type:                  domain.SlotAny,
		AutoFill:              false,
		InfluenceConversation: false,
		Bot:                   bot,
		User:                  user,
		Status:                true,
		Timestamp:             time.Now().UTC(),
	}
	_, err = s.slots.Create(dbc, slot)
	return err
}
