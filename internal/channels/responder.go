package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kairon-labs/kairon-backend/internal/domain"
	"github.com/kairon-labs/kairon-backend/internal/pkg/apperr"
	"github.com/kairon-labs/kairon-backend/internal/platform/logger"
)

// Responder is the outbound half of a provider adapter. Implementations clamp
// rich payloads to provider limits and return the provider message id for the
// channel log.
type Responder interface {
	SendTextMessage(ctx context.Context, recipient string, text string) (string, error)
	SendImageURL(ctx context.Context, recipient string, imageURL string) (string, error)
	SendTextWithButtons(ctx context.Context, recipient string, text string, buttons []domain.ResponseButton) (string, error)
	SendCustomJSON(ctx context.Context, recipient string, payload map[string]interface{}) (string, error)
}

// NewResponder picks the outbound client for a saved channel config.
func NewResponder(cfg *domain.ChannelConfig, log *logger.Logger) (Responder, error) {
	client := newRestClient(log)
	conf := map[string]interface{}(cfg.Config)
	str := func(key string) string {
		if v, ok := conf[key].(string); ok {
			return v
		}
		return ""
	}
	switch cfg.ConnectorType {
	case domain.ChannelTelegram:
		return &telegramResponder{client: client, token: str("access_token")}, nil
	case domain.ChannelSlack:
		return &slackResponder{client: client, token: str("bot_user_oauth_token")}, nil
	case domain.ChannelMessenger, domain.ChannelInstagram:
		return &messengerResponder{client: client, token: str("page_access_token")}, nil
	case domain.ChannelWhatsapp:
		return newWhatsappResponder(client, domain.WhatsappBSPType(str("bsp_type")), str("access_token"), str("api_key"), str("phone_number_id")), nil
	case domain.ChannelLine:
		return &lineResponder{client: client, token: str("channel_access_token")}, nil
	case domain.ChannelMSTeams, domain.ChannelHangouts, domain.ChannelBusinessMessages:
		return &webhookResponder{client: client, url: str("webhook_url"), token: str("access_token")}, nil
	default:
		return nil, apperr.Validation("Invalid channel type " + string(cfg.ConnectorType))
	}
}

type restClient struct {
	http *http.Client
	log  *logger.Logger
}

func newRestClient(log *logger.Logger) *restClient {
	return &restClient{
		http: &http.Client{Timeout: 15 * time.Second},
		log:  log.With("component", "channel_rest_client"),
	}
}

func (c *restClient) postJSON(ctx context.Context, url string, headers map[string]string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return apperr.Internal("encode provider payload", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return apperr.Internal("build provider request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return apperr.Provider(err.Error())
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode >= 300 {
		return apperr.Provider(fmt.Sprintf("provider returned %d: %s", resp.StatusCode, raw))
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return apperr.Internal("decode provider response", err)
		}
	}
	return nil
}

type telegramResponder struct {
	client *restClient
	token  string
}

func (r *telegramResponder) api(method string) string {
	return "https://api.telegram.org/bot" + r.token + "/" + method
}

func (r *telegramResponder) SendTextMessage(ctx context.Context, recipient, text string) (string, error) {
	return r.send(ctx, "sendMessage", map[string]interface{}{"chat_id": recipient, "text": text})
}

func (r *telegramResponder) SendImageURL(ctx context.Context, recipient, imageURL string) (string, error) {
	return r.send(ctx, "sendPhoto", map[string]interface{}{"chat_id": recipient, "photo": imageURL})
}

func (r *telegramResponder) SendTextWithButtons(ctx context.Context, recipient, text string, buttons []domain.ResponseButton) (string, error) {
	var keyboard [][]map[string]string
	for _, b := range buttons {
		keyboard = append(keyboard, []map[string]string{{"text": b.Title, "callback_data": b.Payload}})
	}
	return r.send(ctx, "sendMessage", map[string]interface{}{
		"chat_id":      recipient,
		"text":         text,
		"reply_markup": map[string]interface{}{"inline_keyboard": keyboard},
	})
}

func (r *telegramResponder) SendCustomJSON(ctx context.Context, recipient string, payload map[string]interface{}) (string, error) {
	payload["chat_id"] = recipient
	method, _ := payload["method"].(string)
	if method == "" {
		method = "sendMessage"
	}
	delete(payload, "method")
	return r.send(ctx, method, payload)
}

func (r *telegramResponder) send(ctx context.Context, method string, payload map[string]interface{}) (string, error) {
	var resp struct {
		OK     bool `json:"ok"`
		Result struct {
			MessageID int64 `json:"message_id"`
		} `json:"result"`
		Description string `json:"description"`
	}
	if err := r.client.postJSON(ctx, r.api(method), nil, payload, &resp); err != nil {
		return "", err
	}
	if !resp.OK {
		return "", apperr.Provider(resp.Description)
	}
	return fmt.Sprintf("%d", resp.Result.MessageID), nil
}

type slackResponder struct {
	client *restClient
	token  string
}

func (r *slackResponder) SendTextMessage(ctx context.Context, recipient, text string) (string, error) {
	return r.post(ctx, map[string]interface{}{"channel": recipient, "text": text})
}

func (r *slackResponder) SendImageURL(ctx context.Context, recipient, imageURL string) (string, error) {
	return r.post(ctx, map[string]interface{}{
		"channel": recipient,
		"blocks":  []map[string]interface{}{{"type": "image", "image_url": imageURL, "alt_text": imageURL}},
	})
}

func (r *slackResponder) SendTextWithButtons(ctx context.Context, recipient, text string, buttons []domain.ResponseButton) (string, error) {
	var elements []map[string]interface{}
	for _, b := range buttons {
		elements = append(elements, map[string]interface{}{
			"type":  "button",
			"text":  map[string]string{"type": "plain_text", "text": b.Title},
			"value": b.Payload,
		})
	}
	return r.post(ctx, map[string]interface{}{
		"channel": recipient,
		"blocks": []map[string]interface{}{
			{"type": "section", "text": map[string]string{"type": "plain_text", "text": text}},
			{"type": "actions", "elements": elements},
		},
	})
}

func (r *slackResponder) SendCustomJSON(ctx context.Context, recipient string, payload map[string]interface{}) (string, error) {
	payload["channel"] = recipient
	return r.post(ctx, payload)
}

func (r *slackResponder) post(ctx context.Context, payload map[string]interface{}) (string, error) {
	var resp struct {
		OK    bool   `json:"ok"`
		TS    string `json:"ts"`
		Error string `json:"error"`
	}
	headers := map[string]string{"Authorization": "Bearer " + r.token}
	if err := r.client.postJSON(ctx, "https://slack.com/api/chat.postMessage", headers, payload, &resp); err != nil {
		return "", err
	}
	if !resp.OK {
		return "", apperr.Provider(resp.Error)
	}
	return resp.TS, nil
}

// messengerMaxButtons is Meta's hard cap on button templates.
const messengerMaxButtons = 3

type messengerResponder struct {
	client *restClient
	token  string
}

func (r *messengerResponder) api() string {
	return "https://graph.facebook.com/v17.0/me/messages?access_token=" + r.token
}

func (r *messengerResponder) SendTextMessage(ctx context.Context, recipient, text string) (string, error) {
	return r.post(ctx, recipient, map[string]interface{}{"text": text})
}

func (r *messengerResponder) SendImageURL(ctx context.Context, recipient, imageURL string) (string, error) {
	return r.post(ctx, recipient, map[string]interface{}{
		"attachment": map[string]interface{}{"type": "image", "payload": map[string]interface{}{"url": imageURL}},
	})
}

func (r *messengerResponder) SendTextWithButtons(ctx context.Context, recipient, text string, buttons []domain.ResponseButton) (string, error) {
	if len(buttons) > messengerMaxButtons {
		buttons = buttons[:messengerMaxButtons]
	}
	var rendered []map[string]string
	for _, b := range buttons {
		rendered = append(rendered, map[string]string{"type": "postback", "title": b.Title, "payload": b.Payload})
	}
	return r.post(ctx, recipient, map[string]interface{}{
		"attachment": map[string]interface{}{
			"type": "template",
			"payload": map[string]interface{}{
				"template_type": "button",
				"text":          text,
				"buttons":       rendered,
			},
		},
	})
}

func (r *messengerResponder) SendCustomJSON(ctx context.Context, recipient string, payload map[string]interface{}) (string, error) {
	return r.post(ctx, recipient, payload)
}

func (r *messengerResponder) post(ctx context.Context, recipient string, message map[string]interface{}) (string, error) {
	var resp struct {
		MessageID string `json:"message_id"`
	}
	body := map[string]interface{}{
		"recipient": map[string]string{"id": recipient},
		"message":   message,
	}
	if err := r.client.postJSON(ctx, r.api(), nil, body, &resp); err != nil {
		return "", err
	}
	return resp.MessageID, nil
}

const whatsappMaxButtons = 3

type whatsappResponder struct {
	client  *restClient
	baseURL string
	headers map[string]string
}

func newWhatsappResponder(client *restClient, bsp domain.WhatsappBSPType, accessToken, apiKey, phoneNumberID string) *whatsappResponder {
	if bsp == domain.BSP360Dialog {
		return &whatsappResponder{
			client:  client,
			baseURL: "https://waba-v2.360dialog.io/messages",
			headers: map[string]string{"D360-Api-Key": apiKey},
		}
	}
	return &whatsappResponder{
		client:  client,
		baseURL: "https://graph.facebook.com/v17.0/" + phoneNumberID + "/messages",
		headers: map[string]string{"Authorization": "Bearer " + accessToken},
	}
}

func (r *whatsappResponder) SendTextMessage(ctx context.Context, recipient, text string) (string, error) {
	return r.post(ctx, map[string]interface{}{
		"messaging_product": "whatsapp",
		"to":                recipient,
		"type":              "text",
		"text":              map[string]string{"body": text},
	})
}

func (r *whatsappResponder) SendImageURL(ctx context.Context, recipient, imageURL string) (string, error) {
	return r.post(ctx, map[string]interface{}{
		"messaging_product": "whatsapp",
		"to":                recipient,
		"type":              "image",
		"image":             map[string]string{"link": imageURL},
	})
}

func (r *whatsappResponder) SendTextWithButtons(ctx context.Context, recipient, text string, buttons []domain.ResponseButton) (string, error) {
	if len(buttons) > whatsappMaxButtons {
		buttons = buttons[:whatsappMaxButtons]
	}
	var rendered []map[string]interface{}
	for _, b := range buttons {
		rendered = append(rendered, map[string]interface{}{
			"type":  "reply",
			"reply": map[string]string{"id": b.Payload, "title": b.Title},
		})
	}
	return r.post(ctx, map[string]interface{}{
		"messaging_product": "whatsapp",
		"to":                recipient,
		"type":              "interactive",
		"interactive": map[string]interface{}{
			"type":   "button",
			"body":   map[string]string{"text": text},
			"action": map[string]interface{}{"buttons": rendered},
		},
	})
}

func (r *whatsappResponder) SendCustomJSON(ctx context.Context, recipient string, payload map[string]interface{}) (string, error) {
	payload["messaging_product"] = "whatsapp"
	payload["to"] = recipient
	return r.post(ctx, payload)
}

func (r *whatsappResponder) post(ctx context.Context, payload map[string]interface{}) (string, error) {
	var resp struct {
		Messages []struct {
			ID string `json:"id"`
		} `json:"messages"`
	}
	if err := r.client.postJSON(ctx, r.baseURL, r.headers, payload, &resp); err != nil {
		return "", err
	}
	if len(resp.Messages) > 0 {
		return resp.Messages[0].ID, nil
	}
	return "", nil
}

type lineResponder struct {
	client *restClient
	token  string
}

func (r *lineResponder) SendTextMessage(ctx context.Context, recipient, text string) (string, error) {
	return r.push(ctx, recipient, []map[string]interface{}{{"type": "text", "text": text}})
}

func (r *lineResponder) SendImageURL(ctx context.Context, recipient, imageURL string) (string, error) {
	return r.push(ctx, recipient, []map[string]interface{}{{
		"type": "image", "originalContentUrl": imageURL, "previewImageUrl": imageURL,
	}})
}

func (r *lineResponder) SendTextWithButtons(ctx context.Context, recipient, text string, buttons []domain.ResponseButton) (string, error) {
	var actions []map[string]string
	for _, b := range buttons {
		actions = append(actions, map[string]string{"type": "message", "label": b.Title, "text": b.Payload})
	}
	return r.push(ctx, recipient, []map[string]interface{}{{
		"type":     "template",
		"altText":  text,
		"template": map[string]interface{}{"type": "buttons", "text": text, "actions": actions},
	}})
}

func (r *lineResponder) SendCustomJSON(ctx context.Context, recipient string, payload map[string]interface{}) (string, error) {
	return r.push(ctx, recipient, []map[string]interface{}{payload})
}

func (r *lineResponder) push(ctx context.Context, recipient string, messages []map[string]interface{}) (string, error) {
	headers := map[string]string{"Authorization": "Bearer " + r.token}
	body := map[string]interface{}{"to": recipient, "messages": messages}
	if err := r.client.postJSON(ctx, "https://api.line.me/v2/bot/message/push", headers, body, nil); err != nil {
		return "", err
	}
	return "", nil
}

// webhookResponder posts the rendered payload back to a provider-supplied
// callback URL; Teams, Hangouts and Business Messages all answer this way.
type webhookResponder struct {
	client *restClient
	url    string
	token  string
}

func (r *webhookResponder) SendTextMessage(ctx context.Context, recipient, text string) (string, error) {
	return r.post(ctx, map[string]interface{}{"recipient": recipient, "type": "message", "text": text})
}

func (r *webhookResponder) SendImageURL(ctx context.Context, recipient, imageURL string) (string, error) {
	return r.post(ctx, map[string]interface{}{"recipient": recipient, "type": "image", "url": imageURL})
}

func (r *webhookResponder) SendTextWithButtons(ctx context.Context, recipient, text string, buttons []domain.ResponseButton) (string, error) {
	var rendered []map[string]string
	for _, b := range buttons {
		rendered = append(rendered, map[string]string{"title": b.Title, "payload": b.Payload})
	}
	return r.post(ctx, map[string]interface{}{"recipient": recipient, "type": "message", "text": text, "buttons": rendered})
}

func (r *webhookResponder) SendCustomJSON(ctx context.Context, recipient string, payload map[string]interface{}) (string, error) {
	payload["recipient"] = recipient
	return r.post(ctx, payload)
}

func (r *webhookResponder) post(ctx context.Context, payload map[string]interface{}) (string, error) {
	headers := map[string]string{}
	if r.token != "" {
		headers["Authorization"] = "Bearer " + r.token
	}
	if err := r.client.postJSON(ctx, r.url, headers, payload, nil); err != nil {
		return "", err
	}
	return "", nil
}
