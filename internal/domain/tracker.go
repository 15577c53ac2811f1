package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	ConversationTypeBot       = "bot"
	ConversationTypeFlattened = "flattened"

	TrackerStoreTag = "tracker_store"

	EventSessionStarted = "session_started"
	EventUser           = "user"
	EventBot            = "bot"
	EventAction         = "action"
)

// EventEntry is one dialogue-engine event. Fields beyond the common set ride
// in Metadata/ParseData untouched.
type EventEntry struct {
	Event      string                 `json:"event"`
	Name       string                 `json:"name,omitempty"`
	Text       string                 `json:"text,omitempty"`
	Timestamp  float64                `json:"timestamp"`
	Intent     map[string]interface{} `json:"intent,omitempty"`
	ParseData  map[string]interface{} `json:"parse_data,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	Data       map[string]interface{} `json:"data,omitempty"`
	Policy     string                 `json:"policy,omitempty"`
	Confidence *float64               `json:"confidence,omitempty"`
}

type BotReply struct {
	Text        interface{} `json:"text,omitempty"`
	Data        interface{} `json:"data,omitempty"`
	UtterAction string      `json:"utter_action,omitempty"`
}

// FlattenedTurn collapses one user turn for analytics.
type FlattenedTurn struct {
	UserInput   string                 `json:"user_input"`
	Intent      string                 `json:"intent,omitempty"`
	Confidence  *float64               `json:"confidence,omitempty"`
	Action      []string               `json:"action,omitempty"`
	BotResponse []BotReply             `json:"bot_response,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// ConversationEvent is one row of the per-bot conversation log. Bot rows hold
// a single engine event; flattened rows hold one per-turn projection.
type ConversationEvent struct {
	ID             uuid.UUID                 `gorm:"type:uuid;primaryKey" json:"id"`
	Bot            uuid.UUID                 `gorm:"type:uuid;not null;index;column:bot" json:"bot"`
	SenderID       string                    `gorm:"not null;column:sender_id" json:"sender_id"`
	ConversationID string                    `gorm:"column:conversation_id" json:"conversation_id"`
	Type           string                    `gorm:"not null;column:type" json:"type"`
	Tag            string                    `gorm:"column:tag" json:"tag"`
	Event          JSONObject[EventEntry]    `gorm:"column:event" json:"event,omitempty"`
	Data           JSONObject[FlattenedTurn] `gorm:"column:data" json:"data,omitempty"`
	Timestamp      float64                   `gorm:"not null;column:timestamp" json:"timestamp"`
	CreatedAt      time.Time                 `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (ConversationEvent) TableName() string { return "conversation_event" }
