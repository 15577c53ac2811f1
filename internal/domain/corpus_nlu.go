package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Intent struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name          string    `gorm:"not null;index;column:name" json:"name"`
	Bot           uuid.UUID `gorm:"type:uuid;not null;index;column:bot" json:"bot"`
	User          string    `gorm:"column:user" json:"user"`
	UseEntities   bool      `gorm:"not null;default:false;column:use_entities" json:"use_entities"`
	IsIntegration bool      `gorm:"not null;default:false;column:is_integration" json:"is_integration"`
	Status        bool      `gorm:"not null;default:true;index" json:"status"`
	Timestamp     time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"timestamp"`
}

func (Intent) TableName() string { return "intent" }

// Entity is an annotated span inside a training example. Invariant:
// text[start:end] == value.
type Entity struct {
	Start  int    `json:"start"`
	End    int    `json:"end"`
	Value  string `json:"value"`
	Entity string `json:"entity"`
}

type TrainingExample struct {
	ID        uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	Intent    string           `gorm:"not null;index;column:intent" json:"intent"`
	Text      string           `gorm:"not null;column:text" json:"text"`
	Entities  JSONList[Entity] `gorm:"column:entities" json:"entities,omitempty"`
	Bot       uuid.UUID        `gorm:"type:uuid;not null;index;column:bot" json:"bot"`
	User      string           `gorm:"column:user" json:"user"`
	Status    bool             `gorm:"not null;default:true;index" json:"status"`
	Timestamp time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP" json:"timestamp"`
}

func (TrainingExample) TableName() string { return "training_example" }

type EntitySynonym struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Synonym   string    `gorm:"not null;index;column:synonym" json:"synonym"`
	Value     string    `gorm:"not null;column:value" json:"value"`
	Bot       uuid.UUID `gorm:"type:uuid;not null;index;column:bot" json:"bot"`
	User      string    `gorm:"column:user" json:"user"`
	Status    bool      `gorm:"not null;default:true;index" json:"status"`
	Timestamp time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"timestamp"`
}

func (EntitySynonym) TableName() string { return "entity_synonym" }

// LookupTable rows are one value each; readers group by name.
type LookupTable struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"not null;index;column:name" json:"name"`
	Value     string    `gorm:"not null;column:value" json:"value"`
	Bot       uuid.UUID `gorm:"type:uuid;not null;index;column:bot" json:"bot"`
	User      string    `gorm:"column:user" json:"user"`
	Status    bool      `gorm:"not null;default:true;index" json:"status"`
	Timestamp time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"timestamp"`
}

func (LookupTable) TableName() string { return "lookup_table" }

type RegexFeature struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"not null;index;column:name" json:"name"`
	Pattern   string    `gorm:"not null;column:pattern" json:"pattern"`
	Bot       uuid.UUID `gorm:"type:uuid;not null;index;column:bot" json:"bot"`
	User      string    `gorm:"column:user" json:"user"`
	Status    bool      `gorm:"not null;default:true;index" json:"status"`
	Timestamp time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"timestamp"`
}

func (RegexFeature) TableName() string { return "regex_feature" }

type SlotType string

const (
	SlotFloat        SlotType = "float"
	SlotCategorical  SlotType = "categorical"
	SlotList         SlotType = "list"
	SlotText         SlotType = "text"
	SlotBool         SlotType = "bool"
	SlotUnfeaturized SlotType = "unfeaturized"
	SlotAny          SlotType = "any"
)

func (t SlotType) Valid() bool {
	switch t {
	case SlotFloat, SlotCategorical, SlotList, SlotText, SlotBool, SlotUnfeaturized, SlotAny:
		return true
	default:
		return false
	}
}

type Slot struct {
	ID                    uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Name                  string         `gorm:"not null;index;column:name" json:"name"`
	Type                  SlotType       `gorm:"not null;column:type" json:"type"`
	InitialValue          datatypes.JSON `gorm:"column:initial_value" json:"initial_value,omitempty"`
	ValueResetDelay       *int           `gorm:"column:value_reset_delay" json:"value_reset_delay,omitempty"`
	AutoFill              bool           `gorm:"not null;default:true;column:auto_fill" json:"auto_fill"`
	MinValue              *float64       `gorm:"column:min_value" json:"min_value,omitempty"`
	MaxValue              *float64       `gorm:"column:max_value" json:"max_value,omitempty"`
	Values                StringList     `gorm:"column:values" json:"values,omitempty"`
	InfluenceConversation bool           `gorm:"not null;default:true;column:influence_conversation" json:"influence_conversation"`
	Bot                   uuid.UUID      `gorm:"type:uuid;not null;index;column:bot" json:"bot"`
	User                  string         `gorm:"column:user" json:"user"`
	Status                bool           `gorm:"not null;default:true;index" json:"status"`
	Timestamp             time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"timestamp"`
}

func (Slot) TableName() string { return "slot" }

// Form maps each slot it fills to the list of mapping rules that can fill it.
type Form struct {
	ID        uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string            `gorm:"not null;index;column:name" json:"name"`
	Mapping   datatypes.JSONMap `gorm:"column:mapping" json:"mapping"`
	Bot       uuid.UUID         `gorm:"type:uuid;not null;index;column:bot" json:"bot"`
	User      string            `gorm:"column:user" json:"user"`
	Status    bool              `gorm:"not null;default:true;index" json:"status"`
	Timestamp time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"timestamp"`
}

func (Form) TableName() string { return "form" }
