package channels

import (
	"crypto/hmac"
	"encoding/json"
	"fmt"

	"github.com/kairon-labs/kairon-backend/internal/domain"
	"github.com/kairon-labs/kairon-backend/internal/pkg/apperr"
	"github.com/kairon-labs/kairon-backend/internal/platform/logger"
)

func init() {
	register(domain.ChannelWhatsapp, func(log *logger.Logger) Channel {
		return &whatsappChannel{log: log.With("channel", "whatsapp")}
	})
}

// whatsappChannel serves both BSPs: Meta Cloud verifies with the hub
// signature, 360Dialog with an API key header. The payload envelope and
// normalization are shared.
type whatsappChannel struct {
	log *logger.Logger
}

func (c *whatsappChannel) Type() domain.ChannelType { return domain.ChannelWhatsapp }

// DeliveryStatus is one provider status callback (sent/delivered/read/failed)
// destined for the channel log sink.
type DeliveryStatus struct {
	MessageID string
	Recipient string
	Status    string
	Error     string
}

// StatusExtractor is implemented by adapters whose webhooks interleave
// delivery receipts with user messages.
type StatusExtractor interface {
	ExtractStatuses(req *InboundRequest) []DeliveryStatus
}

type whatsappEnvelope struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Metadata struct {
					PhoneNumberID string `json:"phone_number_id"`
				} `json:"metadata"`
				Messages []whatsappMessage `json:"messages"`
				Statuses []struct {
					ID          string `json:"id"`
					RecipientID string `json:"recipient_id"`
					Status      string `json:"status"`
					Errors      []struct {
						Title string `json:"title"`
					} `json:"errors"`
				} `json:"statuses"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type whatsappMessage struct {
	ID   string `json:"id"`
	From string `json:"from"`
	Type string `json:"type"`
	Text struct {
		Body string `json:"body"`
	} `json:"text"`
	Button struct {
		Payload string `json:"payload"`
		Text    string `json:"text"`
	} `json:"button"`
	Interactive struct {
		Type     string `json:"type"`
		NFMReply *struct {
			ResponseJSON json.RawMessage `json:"response_json"`
			Name         string          `json:"name"`
		} `json:"nfm_reply"`
		ButtonReply *struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"button_reply"`
	} `json:"interactive"`
	Image    *whatsappMedia  `json:"image"`
	Audio    *whatsappMedia  `json:"audio"`
	Document *whatsappMedia  `json:"document"`
	Order    json.RawMessage `json:"order"`
}

type whatsappMedia struct {
	ID string `json:"id"`
}

func (c *whatsappChannel) Validate(req *InboundRequest) (*ValidationResult, error) {
	// Meta Cloud GET handshake
	if mode := req.Query.Get("hub.mode"); mode != "" {
		if req.Query.Get("hub.verify_token") != req.ConfigString("verify_token") {
			return nil, apperr.Unauthorized("Webhook verify token does not match")
		}
		return &ValidationResult{Challenge: req.Query.Get("hub.challenge")}, nil
	}

	if domain.WhatsappBSPType(req.ConfigString("bsp_type")) == domain.BSP360Dialog {
		key := req.Headers.Get("D360-Api-Key")
		if key == "" || !hmac.Equal([]byte(key), []byte(req.ConfigString("api_key"))) {
			return nil, apperr.Unauthorized("Could not verify 360dialog api key")
		}
		return &ValidationResult{}, nil
	}

	secret := req.ConfigString("app_secret")
	if sig := req.Headers.Get("X-Hub-Signature-256"); sig != "" {
		if !VerifyHubSignatureSHA256(secret, req.Body, sig) {
			return nil, apperr.Unauthorized("Could not verify webhook signature")
		}
		return &ValidationResult{}, nil
	}
	if secret == "" || !VerifyHubSignatureSHA1(secret, req.Body, req.Headers.Get("X-Hub-Signature")) {
		return nil, apperr.Unauthorized("Could not verify webhook signature")
	}
	return &ValidationResult{}, nil
}

func (c *whatsappChannel) HandleMessage(req *InboundRequest) ([]UserMessage, error) {
	var envelope whatsappEnvelope
	if err := json.Unmarshal(req.Body, &envelope); err != nil {
		return nil, apperr.Validation("Malformed whatsapp payload")
	}

	var out []UserMessage
	for _, entry := range envelope.Entry {
		for _, change := range entry.Changes {
			for _, m := range change.Value.Messages {
				text := normalizeWhatsappText(m)
				if text == "" || m.From == "" {
					continue
				}
				msg := NewUserMessage(text, m.From, domain.ChannelWhatsapp, req.Bot, req.Account)
				msg.MessageID = m.ID
				msg.WithMeta("out_channel", m.From)
				msg.WithMeta("phone_number_id", change.Value.Metadata.PhoneNumberID)
				out = append(out, msg)
			}
		}
	}
	return out, nil
}

func normalizeWhatsappText(m whatsappMessage) string {
	switch m.Type {
	case "text":
		return m.Text.Body
	case "button":
		// when the payload is absent or just repeats the visible title the
		// raw text is enough for intent matching
		if m.Button.Payload == "" || m.Button.Payload == m.Button.Text {
			return m.Button.Text
		}
		return fmt.Sprintf(`%s{"quick_reply": %q}`, PrefixQuickReplyMsg, m.Button.Payload)
	case "interactive":
		if m.Interactive.NFMReply != nil {
			return fmt.Sprintf(`%s{"flow_reply":%s}`, PrefixInteractive, m.Interactive.NFMReply.ResponseJSON)
		}
		if m.Interactive.ButtonReply != nil {
			return fmt.Sprintf(`%s{"quick_reply": %q}`, PrefixQuickReplyMsg, m.Interactive.ButtonReply.ID)
		}
	case "image":
		if m.Image != nil {
			return fmt.Sprintf(`%s{"image":%q}`, PrefixMultimedia, m.Image.ID)
		}
	case "audio":
		if m.Audio != nil {
			return fmt.Sprintf(`%s{"audio":%q}`, PrefixMultimedia, m.Audio.ID)
		}
	case "document":
		if m.Document != nil {
			return fmt.Sprintf(`%s{"document":%q}`, PrefixMultimedia, m.Document.ID)
		}
	case "order":
		if len(m.Order) > 0 {
			return fmt.Sprintf(`%s{"order":%s}`, PrefixOrder, m.Order)
		}
	}
	return ""
}

func (c *whatsappChannel) ExtractStatuses(req *InboundRequest) []DeliveryStatus {
	var envelope whatsappEnvelope
	if err := json.Unmarshal(req.Body, &envelope); err != nil {
		return nil
	}
	var out []DeliveryStatus
	for _, entry := range envelope.Entry {
		for _, change := range entry.Changes {
			for _, s := range change.Value.Statuses {
				status := DeliveryStatus{MessageID: s.ID, Recipient: s.RecipientID, Status: s.Status}
				if len(s.Errors) > 0 {
					status.Error = s.Errors[0].Title
				}
				out = append(out, status)
			}
		}
	}
	return out
}
