package channels

import (
	"context"
	"encoding/json"
	"strings"

	"google.golang.org/api/idtoken"

	"github.com/kairon-labs/kairon-backend/internal/domain"
	"github.com/kairon-labs/kairon-backend/internal/pkg/apperr"
	"github.com/kairon-labs/kairon-backend/internal/platform/logger"
)

const hangoutsIssuer = "chat@system.gserviceaccount.com"

func init() {
	register(domain.ChannelHangouts, func(log *logger.Logger) Channel {
		return &hangoutsChannel{log: log.With("channel", "hangouts")}
	})
}

type hangoutsChannel struct {
	log *logger.Logger
}

func (c *hangoutsChannel) Type() domain.ChannelType { return domain.ChannelHangouts }

type hangoutsEvent struct {
	Type    string `json:"type"`
	Message struct {
		Name string `json:"name"`
		Text string `json:"text"`
	} `json:"message"`
	User struct {
		Name string `json:"name"`
	} `json:"user"`
	Space struct {
		Name string `json:"name"`
	} `json:"space"`
}

// verifyGoogleIDToken checks the token signature against Google's published
// certs and the audience claim when one is given. Var so tests can stub the
// cert fetch.
var verifyGoogleIDToken = func(ctx context.Context, token, audience string) (map[string]interface{}, error) {
	payload, err := idtoken.Validate(ctx, token, audience)
	if err != nil {
		return nil, err
	}
	return payload.Claims, nil
}

// Validate verifies the bearer id-token cryptographically, then checks the
// issuer claim. The audience check rides on the verifier when project_id is
// configured.
func (c *hangoutsChannel) Validate(req *InboundRequest) (*ValidationResult, error) {
	auth := req.Headers.Get("Authorization")
	token := strings.TrimPrefix(auth, "Bearer ")
	if token == "" || token == auth {
		return nil, apperr.Unauthorized("Missing hangouts id token")
	}
	claims, err := verifyGoogleIDToken(req.Context(), token, req.ConfigString("project_id"))
	if err != nil {
		return nil, apperr.Unauthorized("Could not verify hangouts id token")
	}
	if claims["iss"] != hangoutsIssuer {
		return nil, apperr.Unauthorized("Invalid hangouts token issuer")
	}
	return &ValidationResult{}, nil
}

func (c *hangoutsChannel) HandleMessage(req *InboundRequest) ([]UserMessage, error) {
	var event hangoutsEvent
	if err := json.Unmarshal(req.Body, &event); err != nil {
		return nil, apperr.Validation("Malformed hangouts payload")
	}
	if event.Type != "MESSAGE" || event.Message.Text == "" {
		return nil, nil
	}
	msg := NewUserMessage(event.Message.Text, event.User.Name, domain.ChannelHangouts, req.Bot, req.Account)
	msg.MessageID = event.Message.Name
	msg.WithMeta("out_channel", event.Space.Name)
	return []UserMessage{msg}, nil
}
