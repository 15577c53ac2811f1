package corpus

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	accountrepo "github.com/kairon-labs/kairon-backend/internal/data/repos/account"
	corpusrepo "github.com/kairon-labs/kairon-backend/internal/data/repos/corpus"
	"github.com/kairon-labs/kairon-backend/internal/domain"
	"github.com/kairon-labs/kairon-backend/internal/pkg/dbctx"
	"github.com/kairon-labs/kairon-backend/internal/platform/logger"
)

// Service is the corpus store: the source of truth for one bot's trainable
// data. Every mutation probes for active duplicates first, soft-deletes on
// removal, and appends an audit record.
type Service struct {
	db *gorm.DB

	intents   corpusrepo.IntentRepo
	examples  corpusrepo.TrainingExampleRepo
	synonyms  corpusrepo.EntitySynonymRepo
	lookups   corpusrepo.LookupTableRepo
	regexes   corpusrepo.RegexFeatureRepo
	responses corpusrepo.ResponseRepo
	utters    corpusrepo.UtteranceRepo
	slots     corpusrepo.SlotRepo
	forms     corpusrepo.FormRepo
	actions   corpusrepo.ActionRepo
	httpacts  corpusrepo.HTTPActionRepo
	stories   corpusrepo.StoryRepo
	configs   corpusrepo.BotConfigRepo
	endpoints corpusrepo.EndpointsRepo
	sessions  corpusrepo.SessionConfigRepo
	settings  corpusrepo.BotSettingsRepo
	audit     corpusrepo.AuditRepo
	bots      accountrepo.BotRepo

	log *logger.Logger
}

type Repos struct {
	Intents   corpusrepo.IntentRepo
	Examples  corpusrepo.TrainingExampleRepo
	Synonyms  corpusrepo.EntitySynonymRepo
	Lookups   corpusrepo.LookupTableRepo
	Regexes   corpusrepo.RegexFeatureRepo
	Responses corpusrepo.ResponseRepo
	Utters    corpusrepo.UtteranceRepo
	Slots     corpusrepo.SlotRepo
	Forms     corpusrepo.FormRepo
	Actions   corpusrepo.ActionRepo
	HTTPActs  corpusrepo.HTTPActionRepo
	Stories   corpusrepo.StoryRepo
	Configs   corpusrepo.BotConfigRepo
	Endpoints corpusrepo.EndpointsRepo
	Sessions  corpusrepo.SessionConfigRepo
	Settings  corpusrepo.BotSettingsRepo
	Audit     corpusrepo.AuditRepo
	Bots      accountrepo.BotRepo
}

func NewService(db *gorm.DB, r Repos, baseLog *logger.Logger) *Service {
	return &Service{
		db:        db,
		intents:   r.Intents,
		examples:  r.Examples,
		synonyms:  r.Synonyms,
		lookups:   r.Lookups,
		regexes:   r.Regexes,
		responses: r.Responses,
		utters:    r.Utters,
		slots:     r.Slots,
		forms:     r.Forms,
		actions:   r.Actions,
		httpacts:  r.HTTPActs,
		stories:   r.Stories,
		configs:   r.Configs,
		endpoints: r.Endpoints,
		sessions:  r.Sessions,
		settings:  r.Settings,
		audit:     r.Audit,
		bots:      r.Bots,
		log:       baseLog.With("service", "CorpusService"),
	}
}

// inTx runs fn inside one transaction; repos see the Tx through dbctx. A
// validation failure inside fn rolls back everything, so an operation never
// leaves partial writes behind.
func (s *Service) inTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(dbctx.WithTx(ctx, tx))
	})
}

// recordAudit appends a mutation record; audit failures are logged, never
// surfaced, so they cannot abort the mutation they describe.
func (s *Service) recordAudit(dbc dbctx.Context, bot uuid.UUID, user, entityType, action string, data map[string]interface{}) {
	entry := &domain.AuditLogEntry{
		ID:         uuid.New(),
		Bot:        bot,
		User:       user,
		EntityType: entityType,
		Action:     action,
		Data:       datatypes.JSONMap(data),
		Timestamp:  time.Now().UTC(),
	}
	if err := s.audit.Append(dbc, entry); err != nil {
		s.log.Warn("Failed to append audit record", "bot", bot.String(), "entity", entityType, "error", err)
	}
}
