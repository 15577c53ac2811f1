package events

import (
	"context"

	"github.com/google/uuid"

	"github.com/kairon-labs/kairon-backend/internal/agent"
	"github.com/kairon-labs/kairon-backend/internal/domain"
	"github.com/kairon-labs/kairon-backend/internal/pkg/apperr"
	"github.com/kairon-labs/kairon-backend/internal/platform/logger"
	"github.com/kairon-labs/kairon-backend/internal/services/codec"
	corpussvc "github.com/kairon-labs/kairon-backend/internal/services/corpus"
	"github.com/kairon-labs/kairon-backend/internal/tracker"
)

// Payload carries the free-form arguments of one queued execution.
type Payload map[string]interface{}

func (p Payload) String(key string) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return ""
}

func (p Payload) Bool(key string) bool {
	v, _ := p[key].(bool)
	return v
}

func (p Payload) Float(key string) float64 {
	v, _ := p[key].(float64)
	return v
}

// Event is one long-running job instance bound to a bot. Validate runs at
// queue time inside the scheduling gate; Execute runs on whichever executor
// picked the job up and returns a response for the executor log.
type Event interface {
	Class() domain.EventClass
	Validate(ctx context.Context) error
	Execute(ctx context.Context) (interface{}, error)
}

// Translator is the external text-translation provider used by the
// multilingual event.
type Translator interface {
	Translate(ctx context.Context, text, destLanguage string) (string, error)
}

// Fetcher retrieves remote page content for the web_search event.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Deps bundles everything an event implementation may touch.
type Deps struct {
	Corpus     *corpussvc.Service
	Codec      *codec.Codec
	Tracker    *tracker.Service
	Engine     agent.TrainingEngine
	Cache      agent.Cache
	Translator Translator
	Fetcher    Fetcher
	WorkDir    string
	Log        *logger.Logger
}

// Factory builds one event instance from a queue request.
type Factory func(deps *Deps, bot uuid.UUID, user string, payload Payload) (Event, error)

// Registry is the typed dispatch table over every known event class.
func Registry() map[domain.EventClass]Factory {
	return map[domain.EventClass]Factory{
		domain.EventModelTraining:   newModelTrainingEvent,
		domain.EventModelTesting:    newModelTestingEvent,
		domain.EventDataImporter:    newDataImporterEvent,
		domain.EventDeleteHistory:   newDeleteHistoryEvent,
		domain.EventMultilingual:    newMultilingualEvent,
		domain.EventContentImporter: newContentImporterEvent,
		domain.EventWebSearch:       newWebSearchEvent,
		domain.EventFaqImporter:     newFaqImporterEvent,
	}
}

func build(registry map[domain.EventClass]Factory, deps *Deps, class domain.EventClass, bot uuid.UUID, user string, payload Payload) (Event, error) {
	if !class.Valid() {
		return nil, apperr.Newf(apperr.KindValidation, "Invalid event class %s", class)
	}
	factory, ok := registry[class]
	if !ok {
		return nil, apperr.Newf(apperr.KindValidation, "Invalid event class %s", class)
	}
	return factory(deps, bot, user, payload)
}
