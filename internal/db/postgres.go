package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/kairon-labs/kairon-backend/internal/domain"
	"github.com/kairon-labs/kairon-backend/internal/platform/envutil"
	"github.com/kairon-labs/kairon-backend/internal/platform/logger"
)

type PostgresService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPostgresService(log *logger.Logger) (*PostgresService, error) {
	serviceLog := log.With("service", "PostgresService")

	host := envutil.String("POSTGRES_HOST", "localhost")
	port := envutil.String("POSTGRES_PORT", "5432")
	user := envutil.String("POSTGRES_USER", "postgres")
	password := envutil.String("POSTGRES_PASSWORD", "")
	name := envutil.String("POSTGRES_NAME", "kairon")

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, password, host, port, name)

	log.Info("Connecting to Postgres...")
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		serviceLog.Error("Failed to connect to Postgres", "error", err)
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	return &PostgresService{db: gdb, log: serviceLog}, nil
}

func (s *PostgresService) DB() *gorm.DB { return s.db }

func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Auto migrating tables...")
	if err := AutoMigrate(s.db); err != nil {
		s.log.Error("Auto migration failed", "error", err)
		return err
	}
	return EnsureIndexes(s.db)
}

func AutoMigrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&domain.Account{},
		&domain.User{},
		&domain.Bot{},
		&domain.BotAccess{},

		&domain.Intent{},
		&domain.TrainingExample{},
		&domain.EntitySynonym{},
		&domain.LookupTable{},
		&domain.RegexFeature{},
		&domain.Response{},
		&domain.Utterance{},
		&domain.Slot{},
		&domain.Form{},
		&domain.Action{},
		&domain.HTTPAction{},
		&domain.Story{},
		&domain.Rule{},
		&domain.BotConfig{},
		&domain.Endpoints{},
		&domain.SessionConfig{},
		&domain.BotSettings{},
		&domain.AuditLogEntry{},

		&domain.ConversationEvent{},
		&domain.ExecutorLog{},

		&domain.ChannelConfig{},
		&domain.ChannelLog{},
		&domain.MeteringRecord{},
		&domain.LiveAgentConfig{},
	)
}

// EnsureIndexes creates the indexes AutoMigrate cannot express: the tracker
// store's compound lookups and the full-text index over training example
// text. Postgres only; the SQLite test database skips them.
func EnsureIndexes(gdb *gorm.DB) error {
	if gdb.Dialector.Name() != "postgres" {
		return nil
	}
	statements := []string{
		`CREATE INDEX IF NOT EXISTS idx_conv_sender_event ON conversation_event (sender_id, (event->>'event'))`,
		`CREATE INDEX IF NOT EXISTS idx_conv_type_ts ON conversation_event (type, timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_conv_sender_conversation ON conversation_event (sender_id, conversation_id)`,
		`CREATE INDEX IF NOT EXISTS idx_conv_event_ts ON conversation_event ((event->>'event'), ((event->>'timestamp')::float8) DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_conv_name_ts ON conversation_event ((event->>'name'), ((event->>'timestamp')::float8) DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_conv_sender_type_event ON conversation_event (sender_id, type, (event->>'event'))`,
		`CREATE INDEX IF NOT EXISTS idx_conv_sender_type_event_ts ON conversation_event (sender_id, type, (event->>'event'), ((event->>'timestamp')::float8))`,

		`CREATE INDEX IF NOT EXISTS idx_training_example_text_fts ON training_example USING gin (to_tsvector('simple', text))`,

		`CREATE UNIQUE INDEX IF NOT EXISTS uq_intent_active ON intent (bot, lower(name)) WHERE status`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_synonym_value_active ON entity_synonym (bot, value) WHERE status`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_action_active ON action (bot, lower(name)) WHERE status`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_slot_active ON slot (bot, name) WHERE status`,
	}
	for _, stmt := range statements {
		if err := gdb.Exec(stmt).Error; err != nil {
			return fmt.Errorf("ensure index: %w", err)
		}
	}
	return nil
}
