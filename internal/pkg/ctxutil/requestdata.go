package ctxutil

import (
	"context"

	"github.com/google/uuid"
)

type requestDataKey struct{}

// RequestData identifies the authenticated caller for the lifetime of one
// request. BotID is set when the route is bot-scoped; IsIntegration marks
// calls made with an integration token (channel webhooks, API keys).
type RequestData struct {
	UserID        uuid.UUID
	Account       uuid.UUID
	BotID         uuid.UUID
	Username      string
	IsIntegration bool
}

func WithRequestData(ctx context.Context, rd *RequestData) context.Context {
	return context.WithValue(ctx, requestDataKey{}, rd)
}

func GetRequestData(ctx context.Context) *RequestData {
	if ctx == nil {
		return nil
	}
	if rd, ok := ctx.Value(requestDataKey{}).(*RequestData); ok {
		return rd
	}
	return nil
}
