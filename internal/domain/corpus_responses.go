package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type ResponseButton struct {
	Title   string `json:"title"`
	Payload string `json:"payload"`
}

type ResponseText struct {
	Text    string                   `json:"text"`
	Image   string                   `json:"image,omitempty"`
	Channel string                   `json:"channel,omitempty"`
	Buttons JSONList[ResponseButton] `json:"buttons,omitempty"`
}

// Response holds exactly one of Text or Custom. Uniqueness for a bot is
// checked against the fully serialized value, not just the name.
type Response struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string         `gorm:"not null;index;column:name" json:"name"`
	Text      datatypes.JSON `gorm:"column:text" json:"text,omitempty"`
	Custom    datatypes.JSON `gorm:"column:custom" json:"custom,omitempty"`
	Bot       uuid.UUID      `gorm:"type:uuid;not null;index;column:bot" json:"bot"`
	User      string         `gorm:"column:user" json:"user"`
	Status    bool           `gorm:"not null;default:true;index" json:"status"`
	Timestamp time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"timestamp"`
}

func (Response) TableName() string { return "response" }

func (r *Response) TextValue() (*ResponseText, error) {
	if len(r.Text) == 0 || string(r.Text) == "null" {
		return nil, nil
	}
	var t ResponseText
	if err := json.Unmarshal(r.Text, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *Response) SetTextValue(t *ResponseText) error {
	if t == nil {
		r.Text = nil
		return nil
	}
	b, err := json.Marshal(t)
	if err != nil {
		return err
	}
	r.Text = datatypes.JSON(b)
	return nil
}

// SerializedValue is the comparison key for duplicate detection: the JSON
// form of whichever variant is populated.
func (r *Response) SerializedValue() string {
	if len(r.Text) > 0 && string(r.Text) != "null" {
		return string(r.Text)
	}
	return string(r.Custom)
}

// Utterance is the registry of response names referenced by stories.
type Utterance struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"not null;index;column:name" json:"name"`
	Bot       uuid.UUID `gorm:"type:uuid;not null;index;column:bot" json:"bot"`
	User      string    `gorm:"column:user" json:"user"`
	Status    bool      `gorm:"not null;default:true;index" json:"status"`
	Timestamp time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"timestamp"`
}

func (Utterance) TableName() string { return "utterance" }
