package domain

import (
	"time"

	"github.com/google/uuid"
)

// Action registry row. Names starting with utter_ are reserved for responses.
type Action struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"not null;index;column:name" json:"name"`
	Bot       uuid.UUID `gorm:"type:uuid;not null;index;column:bot" json:"bot"`
	User      string    `gorm:"column:user" json:"user"`
	Status    bool      `gorm:"not null;default:true;index" json:"status"`
	Timestamp time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"timestamp"`
}

func (Action) TableName() string { return "action" }

type HTTPRequestMethod string

const (
	MethodGET    HTTPRequestMethod = "GET"
	MethodPOST   HTTPRequestMethod = "POST"
	MethodPUT    HTTPRequestMethod = "PUT"
	MethodDELETE HTTPRequestMethod = "DELETE"
)

func (m HTTPRequestMethod) Valid() bool {
	switch m {
	case MethodGET, MethodPOST, MethodPUT, MethodDELETE:
		return true
	default:
		return false
	}
}

type HTTPParamType string

const (
	ParamValue       HTTPParamType = "value"
	ParamSlot        HTTPParamType = "slot"
	ParamSenderID    HTTPParamType = "sender_id"
	ParamUserMessage HTTPParamType = "user_message"
)

func (p HTTPParamType) Valid() bool {
	switch p {
	case ParamValue, ParamSlot, ParamSenderID, ParamUserMessage:
		return true
	default:
		return false
	}
}

type HTTPParam struct {
	Key           string        `json:"key" yaml:"key"`
	Value         string        `json:"value" yaml:"value"`
	ParameterType HTTPParamType `json:"parameter_type" yaml:"parameter_type"`
}

// HTTPAction calls an external URL during a conversation and stores the
// templated response in the kairon_action_response slot.
type HTTPAction struct {
	ID               uuid.UUID           `gorm:"type:uuid;primaryKey" json:"id"`
	ActionName       string              `gorm:"not null;index;column:action_name" json:"action_name"`
	HTTPURL          string              `gorm:"not null;column:http_url" json:"http_url"`
	RequestMethod    HTTPRequestMethod   `gorm:"not null;column:request_method" json:"request_method"`
	AuthToken        string              `gorm:"column:auth_token" json:"auth_token,omitempty"`
	ResponseTemplate string              `gorm:"not null;column:response" json:"response"`
	ParamsList       JSONList[HTTPParam] `gorm:"column:params_list" json:"params_list,omitempty"`
	Bot              uuid.UUID           `gorm:"type:uuid;not null;index;column:bot" json:"bot"`
	User             string              `gorm:"column:user" json:"user"`
	Status           bool                `gorm:"not null;default:true;index" json:"status"`
	Timestamp        time.Time           `gorm:"not null;default:CURRENT_TIMESTAMP" json:"timestamp"`
}

func (HTTPAction) TableName() string { return "http_action" }

// KaironActionResponseSlot receives the rendered output of HTTP actions.
const KaironActionResponseSlot = "kairon_action_response"
