package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type StoryEventType string

const (
	StoryEventUser   StoryEventType = "user"
	StoryEventAction StoryEventType = "action"
	StoryEventForm   StoryEventType = "form"
	StoryEventSlot   StoryEventType = "slot"
)

type StoryEvent struct {
	Name     string           `json:"name"`
	Type     StoryEventType   `json:"type"`
	Value    interface{}      `json:"value,omitempty"`
	Entities JSONList[Entity] `json:"entities,omitempty"`
}

const (
	TemplateTypeCustom   = "CUSTOM"
	TemplateTypeQNA      = "Q&A"
	TemplateTypeFallback = "FALLBACK"
)

type Story struct {
	ID               uuid.UUID            `gorm:"type:uuid;primaryKey" json:"id"`
	BlockName        string               `gorm:"not null;index;column:block_name" json:"block_name"`
	Events           JSONList[StoryEvent] `gorm:"column:events" json:"events"`
	StartCheckpoints StringList           `gorm:"column:start_checkpoints" json:"start_checkpoints,omitempty"`
	EndCheckpoints   StringList           `gorm:"column:end_checkpoints" json:"end_checkpoints,omitempty"`
	TemplateType     string               `gorm:"column:template_type;default:CUSTOM" json:"template_type"`
	Bot              uuid.UUID            `gorm:"type:uuid;not null;index;column:bot" json:"bot"`
	User             string               `gorm:"column:user" json:"user"`
	Status           bool                 `gorm:"not null;default:true;index" json:"status"`
	Timestamp        time.Time            `gorm:"not null;default:CURRENT_TIMESTAMP" json:"timestamp"`
}

func (Story) TableName() string { return "story" }

type Rule struct {
	ID               uuid.UUID            `gorm:"type:uuid;primaryKey" json:"id"`
	BlockName        string               `gorm:"not null;index;column:block_name" json:"block_name"`
	Events           JSONList[StoryEvent] `gorm:"column:events" json:"events"`
	StartCheckpoints StringList           `gorm:"column:start_checkpoints" json:"start_checkpoints,omitempty"`
	EndCheckpoints   StringList           `gorm:"column:end_checkpoints" json:"end_checkpoints,omitempty"`
	TemplateType     string               `gorm:"column:template_type;default:CUSTOM" json:"template_type"`
	Bot              uuid.UUID            `gorm:"type:uuid;not null;index;column:bot" json:"bot"`
	User             string               `gorm:"column:user" json:"user"`
	Status           bool                 `gorm:"not null;default:true;index" json:"status"`
	Timestamp        time.Time            `gorm:"not null;default:CURRENT_TIMESTAMP" json:"timestamp"`
}

func (Rule) TableName() string { return "rule" }

// SerializeEvents produces the canonical form used to detect duplicate flows:
// two blocks collide when their event sequences marshal identically.
func SerializeEvents(events []StoryEvent) string {
	b, err := json.Marshal(events)
	if err != nil {
		return ""
	}
	return string(b)
}
