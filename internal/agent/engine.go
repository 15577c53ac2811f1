package agent

import (
	"context"

	"github.com/google/uuid"

	"github.com/kairon-labs/kairon-backend/internal/channels"
	"github.com/kairon-labs/kairon-backend/internal/domain"
)

// Prediction is the engine's answer for one inbound message.
type Prediction struct {
	NLU       map[string]interface{}   `json:"nlu"`
	Actions   []string                 `json:"action"`
	Responses []map[string]interface{} `json:"response"`
	Slots     map[string]interface{}   `json:"slots"`
	Events    []domain.EventEntry      `json:"events"`
}

// Intent returns the top predicted intent name, empty when nothing matched.
func (p *Prediction) Intent() string {
	if p == nil || p.NLU == nil {
		return ""
	}
	if intent, ok := p.NLU["intent"].(map[string]interface{}); ok {
		if name, ok := intent["name"].(string); ok {
			return name
		}
	}
	return ""
}

func (p *Prediction) Confidence() float64 {
	if p == nil || p.NLU == nil {
		return 0
	}
	if intent, ok := p.NLU["intent"].(map[string]interface{}); ok {
		if c, ok := intent["confidence"].(float64); ok {
			return c
		}
	}
	return 0
}

// Agent is one loaded model ready to serve messages.
type Agent interface {
	HandleMessage(ctx context.Context, msg channels.UserMessage) (*Prediction, error)
	ModelPath() string
}

// TrainingEngine abstracts the model runtime: training produces an artifact
// on disk, loading turns the latest artifact into a live Agent.
type TrainingEngine interface {
	Train(ctx context.Context, bot uuid.UUID, dataDir string) (string, error)
	Load(ctx context.Context, modelPath string) (Agent, error)
	LatestModelPath(bot uuid.UUID) (string, error)
}
