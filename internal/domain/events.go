package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// EventClass names a long-running job kind. Dispatch is through a typed
// registry; unknown values are rejected at validation.
type EventClass string

const (
	EventModelTraining   EventClass = "model_training"
	EventModelTesting    EventClass = "model_testing"
	EventDataImporter    EventClass = "data_importer"
	EventDeleteHistory   EventClass = "delete_history"
	EventMultilingual    EventClass = "multilingual"
	EventContentImporter EventClass = "content_importer"
	EventWebSearch       EventClass = "web_search"
	EventFaqImporter     EventClass = "faq_importer"
)

func (e EventClass) Valid() bool {
	switch e {
	case EventModelTraining, EventModelTesting, EventDataImporter, EventDeleteHistory,
		EventMultilingual, EventContentImporter, EventWebSearch, EventFaqImporter:
		return true
	default:
		return false
	}
}

func AllEventClasses() []EventClass {
	return []EventClass{
		EventModelTraining, EventModelTesting, EventDataImporter, EventDeleteHistory,
		EventMultilingual, EventContentImporter, EventWebSearch, EventFaqImporter,
	}
}

type EventStatus string

const (
	StatusInitiated EventStatus = "Initiated"
	StatusEnqueued  EventStatus = "Enqueued"
	StatusCompleted EventStatus = "Completed"
	StatusFail      EventStatus = "Fail"
	StatusAborted   EventStatus = "Aborted"
)

// TerminalStatuses are the states that release the per-bot gate.
func TerminalStatuses() []EventStatus {
	return []EventStatus{StatusCompleted, StatusFail, StatusAborted}
}

type TaskType string

const (
	TaskEvent    TaskType = "Event"
	TaskCallback TaskType = "Callback"
	TaskAction   TaskType = "Action"
)

// ExecutorLog rows are append-only: each state transition is a new row
// sharing executor_log_id, so execution history is preserved.
type ExecutorLog struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ExecutorLogID string         `gorm:"not null;index;column:executor_log_id" json:"executor_log_id"`
	EventClass    EventClass     `gorm:"not null;index;column:event_class" json:"event_class"`
	TaskType      TaskType       `gorm:"not null;default:Event;column:task_type" json:"task_type"`
	Data          datatypes.JSON `gorm:"column:data" json:"data,omitempty"`
	Status        EventStatus    `gorm:"not null;index;column:status" json:"status"`
	Response      datatypes.JSON `gorm:"column:response" json:"response,omitempty"`
	Exception     string         `gorm:"column:exception" json:"exception,omitempty"`
	ElapsedTime   float64        `gorm:"column:elapsed_time" json:"elapsed_time"`
	FromExecutor  bool           `gorm:"not null;default:false;column:from_executor" json:"from_executor"`
	Bot           uuid.UUID      `gorm:"type:uuid;not null;index;column:bot" json:"bot"`
	User          string         `gorm:"column:user" json:"user"`
	Timestamp     time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP;index" json:"timestamp"`
}

func (ExecutorLog) TableName() string { return "executor_log" }
