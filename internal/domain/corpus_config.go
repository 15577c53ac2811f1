package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Component is one pipeline component or policy entry from config.yml.
// Only Name is fixed; everything else is component-specific.
type Component map[string]interface{}

func (c Component) Name() string {
	if c == nil {
		return ""
	}
	if n, ok := c["name"].(string); ok {
		return n
	}
	return ""
}

// BotConfig is the per-bot singleton holding language, NLU pipeline and
// dialogue policies. Saving always re-injects the fallback components.
type BotConfig struct {
	ID        uuid.UUID           `gorm:"type:uuid;primaryKey" json:"id"`
	Language  string              `gorm:"not null;default:en;column:language" json:"language"`
	Pipeline  JSONList[Component] `gorm:"column:pipeline" json:"pipeline"`
	Policies  JSONList[Component] `gorm:"column:policies" json:"policies"`
	Bot       uuid.UUID           `gorm:"type:uuid;not null;index;column:bot" json:"bot"`
	User      string              `gorm:"column:user" json:"user"`
	Status    bool                `gorm:"not null;default:true;index" json:"status"`
	Timestamp time.Time           `gorm:"not null;default:CURRENT_TIMESTAMP" json:"timestamp"`
}

func (BotConfig) TableName() string { return "bot_config" }

type EndpointConfig struct {
	URL   string `json:"url"`
	Token string `json:"token,omitempty"`
}

// Endpoints is the per-bot singleton of external service endpoints. Tracker
// endpoint URLs must be valid MongoDB connection URIs.
type Endpoints struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	BotEndpoint     datatypes.JSON `gorm:"column:bot_endpoint" json:"bot_endpoint,omitempty"`
	ActionEndpoint  datatypes.JSON `gorm:"column:action_endpoint" json:"action_endpoint,omitempty"`
	TrackerEndpoint datatypes.JSON `gorm:"column:tracker_endpoint" json:"tracker_endpoint,omitempty"`
	Bot             uuid.UUID      `gorm:"type:uuid;not null;index;column:bot" json:"bot"`
	User            string         `gorm:"column:user" json:"user"`
	Status          bool           `gorm:"not null;default:true;index" json:"status"`
	Timestamp       time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"timestamp"`
}

func (Endpoints) TableName() string { return "endpoints" }

type SessionConfig struct {
	ID                    uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	SessionExpirationTime int       `gorm:"not null;default:60;column:session_expiration_time" json:"session_expiration_time"`
	CarryOverSlots        bool      `gorm:"not null;default:true;column:carry_over_slots" json:"carry_over_slots"`
	Bot                   uuid.UUID `gorm:"type:uuid;not null;index;column:bot" json:"bot"`
	User                  string    `gorm:"column:user" json:"user"`
	Status                bool      `gorm:"not null;default:true;index" json:"status"`
	Timestamp             time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"timestamp"`
}

func (SessionConfig) TableName() string { return "session_config" }

type WhatsappBSPType string

const (
	BSPMeta      WhatsappBSPType = "meta"
	BSP360Dialog WhatsappBSPType = "360dialog"
)

// BotSettings carries per-bot operational limits and provider selection.
type BotSettings struct {
	ID                  uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	Bot                 uuid.UUID         `gorm:"type:uuid;not null;index;column:bot" json:"bot"`
	WhatsappBSPType     WhatsappBSPType   `gorm:"not null;default:meta;column:whatsapp_bsp_type" json:"whatsapp_bsp_type"`
	LLMSettings         datatypes.JSONMap `gorm:"column:llm_settings" json:"llm_settings,omitempty"`
	TrainingLimitPerDay int               `gorm:"not null;default:5;column:training_limit_per_day" json:"training_limit_per_day"`
	TestLimitPerDay     int               `gorm:"not null;default:5;column:test_limit_per_day" json:"test_limit_per_day"`
	ImportLimitPerDay   int               `gorm:"not null;default:5;column:import_limit_per_day" json:"import_limit_per_day"`
	EventLimitPerDay    int               `gorm:"not null;default:10;column:event_limit_per_day" json:"event_limit_per_day"`
	RefreshTokenExpiry  int               `gorm:"not null;default:60;column:refresh_token_expiry" json:"refresh_token_expiry"`
	User                string            `gorm:"column:user" json:"user"`
	Status              bool              `gorm:"not null;default:true;index" json:"status"`
	Timestamp           time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"timestamp"`
}

func (BotSettings) TableName() string { return "bot_settings" }

// AuditLogEntry records one mutation of a per-bot entity.
type AuditLogEntry struct {
	ID         uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	Bot        uuid.UUID         `gorm:"type:uuid;not null;index;column:bot" json:"bot"`
	User       string            `gorm:"not null;column:user" json:"user"`
	EntityType string            `gorm:"not null;index;column:entity_type" json:"entity_type"`
	Action     string            `gorm:"not null;column:action" json:"action"`
	Data       datatypes.JSONMap `gorm:"column:data" json:"data,omitempty"`
	Timestamp  time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP;index" json:"timestamp"`
}

func (AuditLogEntry) TableName() string { return "audit_log" }

const (
	AuditSave       = "save"
	AuditUpdate     = "update"
	AuditSoftDelete = "soft_delete"
	AuditHardDelete = "hard_delete"
)
