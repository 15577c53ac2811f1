package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type ChannelType string

const (
	ChannelSlack            ChannelType = "slack"
	ChannelTelegram         ChannelType = "telegram"
	ChannelMessenger        ChannelType = "messenger"
	ChannelInstagram        ChannelType = "instagram"
	ChannelWhatsapp         ChannelType = "whatsapp"
	ChannelBusinessMessages ChannelType = "business_messages"
	ChannelHangouts         ChannelType = "hangouts"
	ChannelLine             ChannelType = "line"
	ChannelMSTeams          ChannelType = "msteams"
)

func (c ChannelType) Valid() bool {
	switch c {
	case ChannelSlack, ChannelTelegram, ChannelMessenger, ChannelInstagram, ChannelWhatsapp,
		ChannelBusinessMessages, ChannelHangouts, ChannelLine, ChannelMSTeams:
		return true
	default:
		return false
	}
}

func AllChannelTypes() []ChannelType {
	return []ChannelType{
		ChannelSlack, ChannelTelegram, ChannelMessenger, ChannelInstagram, ChannelWhatsapp,
		ChannelBusinessMessages, ChannelHangouts, ChannelLine, ChannelMSTeams,
	}
}

// ChannelConfig is one provider connection for a bot. Config holds the
// provider credentials (signing secret, access token, phone number id, ...);
// TokenHash is the SHA-256 of the integration token embedded in the webhook
// URL path.
type ChannelConfig struct {
	ID            uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	Bot           uuid.UUID         `gorm:"type:uuid;not null;index;column:bot" json:"bot"`
	ConnectorType ChannelType       `gorm:"not null;index;column:connector_type" json:"connector_type"`
	Config        datatypes.JSONMap `gorm:"column:config" json:"config"`
	TokenHash     string            `gorm:"index;column:token_hash" json:"-"`
	User          string            `gorm:"column:user" json:"user"`
	Status        bool              `gorm:"not null;default:true;index" json:"status"`
	Timestamp     time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"timestamp"`
}

func (ChannelConfig) TableName() string { return "channel_config" }

const (
	ChannelLogSuccess = "success"
	ChannelLogFailed  = "failed"
)

// ChannelLog records per-message delivery outcomes and provider status
// callbacks so senders can audit what actually went out.
type ChannelLog struct {
	ID            uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	Bot           uuid.UUID         `gorm:"type:uuid;not null;index;column:bot" json:"bot"`
	ChannelType   ChannelType       `gorm:"not null;column:channel_type" json:"channel_type"`
	Status        string            `gorm:"not null;column:status" json:"status"`
	FailureReason string            `gorm:"column:failure_reason" json:"failure_reason,omitempty"`
	MessageID     string            `gorm:"index;column:message_id" json:"message_id,omitempty"`
	JSONMessage   datatypes.JSON    `gorm:"column:json_message" json:"json_message,omitempty"`
	Metadata      datatypes.JSONMap `gorm:"column:metadata" json:"metadata,omitempty"`
	User          string            `gorm:"column:user" json:"user"`
	Timestamp     time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP;index" json:"timestamp"`
}

func (ChannelLog) TableName() string { return "channel_log" }

type MetricType string

const (
	MetricProdChat     MetricType = "prod_chat"
	MetricTestChat     MetricType = "test_chat"
	MetricAgentHandoff MetricType = "agent_handoff"
)

// MeteringRecord is one countable usage event tagged with account and bot.
type MeteringRecord struct {
	ID        uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	Account   uuid.UUID         `gorm:"type:uuid;not null;index;column:account" json:"account"`
	Bot       uuid.UUID         `gorm:"type:uuid;not null;index;column:bot" json:"bot"`
	Metric    MetricType        `gorm:"not null;index;column:metric" json:"metric"`
	Data      datatypes.JSONMap `gorm:"column:data" json:"data,omitempty"`
	Timestamp time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP;index" json:"timestamp"`
}

func (MeteringRecord) TableName() string { return "metering_record" }

// LiveAgentConfig enables human handoff for a bot via an external provider
// (ChatWoot). OverrideBot routes every message to the agent desk.
type LiveAgentConfig struct {
	ID               uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	Bot              uuid.UUID         `gorm:"type:uuid;not null;index;column:bot" json:"bot"`
	AgentType        string            `gorm:"not null;default:chatwoot;column:agent_type" json:"agent_type"`
	Config           datatypes.JSONMap `gorm:"column:config" json:"config"`
	OverrideBot      bool              `gorm:"not null;default:false;column:override_bot" json:"override_bot"`
	TriggerOnIntents StringList        `gorm:"column:trigger_on_intents" json:"trigger_on_intents,omitempty"`
	TriggerOnActions StringList        `gorm:"column:trigger_on_actions" json:"trigger_on_actions,omitempty"`
	User             string            `gorm:"column:user" json:"user"`
	Status           bool              `gorm:"not null;default:true;index" json:"status"`
	Timestamp        time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"timestamp"`
}

func (LiveAgentConfig) TableName() string { return "live_agent_config" }
