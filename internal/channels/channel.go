package channels

import (
	"context"
	"net/http"
	"net/url"
	"sync"

	"github.com/google/uuid"

	"github.com/kairon-labs/kairon-backend/internal/domain"
	"github.com/kairon-labs/kairon-backend/internal/pkg/apperr"
	"github.com/kairon-labs/kairon-backend/internal/platform/logger"
)

// InboundRequest is the provider-agnostic view of a webhook call. Handlers
// read the raw body once and pass it down so signature checks see the exact
// bytes the provider signed.
type InboundRequest struct {
	Ctx     context.Context
	Body    []byte
	Headers http.Header
	Query   url.Values
	Bot     uuid.UUID
	Account uuid.UUID
	Config  map[string]interface{}
}

// Context returns the request context, never nil.
func (r *InboundRequest) Context() context.Context {
	if r.Ctx != nil {
		return r.Ctx
	}
	return context.Background()
}

func (r *InboundRequest) ConfigString(key string) string {
	if r.Config == nil {
		return ""
	}
	if v, ok := r.Config[key].(string); ok {
		return v
	}
	return ""
}

// ValidationResult is what a webhook setup call answers with. Challenge is
// echoed verbatim when the provider does a URL-verification handshake.
type ValidationResult struct {
	Challenge string
}

// Channel is one provider adapter: Validate covers setup challenges and
// signature verification, HandleMessage normalizes the payload into zero or
// more canonical messages.
type Channel interface {
	Type() domain.ChannelType
	Validate(req *InboundRequest) (*ValidationResult, error)
	HandleMessage(req *InboundRequest) ([]UserMessage, error)
}

type factory func(log *logger.Logger) Channel

var (
	registryMu sync.RWMutex
	registry   = map[domain.ChannelType]factory{}
)

func register(t domain.ChannelType, f factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[t] = f
}

// ForType resolves the adapter for a connector type. Unknown types are a
// validation failure, not a panic; config rows may outlive code.
func ForType(t domain.ChannelType, log *logger.Logger) (Channel, error) {
	registryMu.RLock()
	f, ok := registry[t]
	registryMu.RUnlock()
	if !ok {
		return nil, apperr.Validation("Invalid channel type " + string(t))
	}
	return f(log), nil
}
