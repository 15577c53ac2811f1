package channels

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kairon-labs/kairon-backend/internal/domain"
	"github.com/kairon-labs/kairon-backend/internal/platform/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	require.NoError(t, err)
	return log
}

func signSHA1(secret string, body []byte) string {
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write(body)
	return "sha1=" + hex.EncodeToString(mac.Sum(nil))
}

func signSlack(secret, ts string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "v0:%s:%s", ts, body)
	return "v0=" + hex.EncodeToString(mac.Sum(nil))
}

func TestForTypeUnknown(t *testing.T) {
	_, err := ForType(domain.ChannelType("smoke_signals"), testLogger(t))
	assert.Error(t, err)
}

func TestForTypeCoversAllChannels(t *testing.T) {
	for _, ct := range domain.AllChannelTypes() {
		ch, err := ForType(ct, testLogger(t))
		require.NoError(t, err, ct)
		assert.Equal(t, ct, ch.Type())
	}
}

func TestSlackChallengeAndSignature(t *testing.T) {
	ch, err := ForType(domain.ChannelSlack, testLogger(t))
	require.NoError(t, err)

	res, err := ch.Validate(&InboundRequest{
		Body: []byte(`{"type":"url_verification","challenge":"abc123"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, "abc123", res.Challenge)

	body := []byte(`{"type":"event_callback","event":{"type":"message","text":"hi","user":"U1","ts":"1"}}`)
	headers := http.Header{}
	headers.Set("X-Slack-Request-Timestamp", "12345")
	headers.Set("X-Slack-Signature", signSlack("s3cret", "12345", body))

	_, err = ch.Validate(&InboundRequest{
		Body:    body,
		Headers: headers,
		Config:  map[string]interface{}{"slack_signing_secret": "s3cret"},
	})
	assert.NoError(t, err)

	headers.Set("X-Slack-Signature", "v0=deadbeef")
	_, err = ch.Validate(&InboundRequest{
		Body:    body,
		Headers: headers,
		Config:  map[string]interface{}{"slack_signing_secret": "s3cret"},
	})
	assert.Error(t, err)
}

func TestSlackHandleMessageDropsBotEcho(t *testing.T) {
	ch, err := ForType(domain.ChannelSlack, testLogger(t))
	require.NoError(t, err)

	req := &InboundRequest{
		Body: []byte(`{"event":{"type":"message","text":"hi","user":"U1","bot_id":"B9","ts":"1"}}`),
		Bot:  uuid.New(), Account: uuid.New(),
	}
	msgs, err := ch.HandleMessage(req)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestMessengerChallengeAndNormalization(t *testing.T) {
	ch, err := ForType(domain.ChannelMessenger, testLogger(t))
	require.NoError(t, err)

	query := url.Values{}
	query.Set("hub.mode", "subscribe")
	query.Set("hub.verify_token", "tok")
	query.Set("hub.challenge", "99")
	res, err := ch.Validate(&InboundRequest{Query: query, Config: map[string]interface{}{"verify_token": "tok"}})
	require.NoError(t, err)
	assert.Equal(t, "99", res.Challenge)

	query.Set("hub.verify_token", "wrong")
	_, err = ch.Validate(&InboundRequest{Query: query, Config: map[string]interface{}{"verify_token": "tok"}})
	assert.Error(t, err)

	body := []byte(`{"entry":[{"messaging":[{"sender":{"id":"u1"},"message":{"mid":"m1","quick_reply":{"payload":"buy"}}}]}]}`)
	headers := http.Header{}
	headers.Set("X-Hub-Signature", signSHA1("app-secret", body))
	_, err = ch.Validate(&InboundRequest{Body: body, Headers: headers, Config: map[string]interface{}{"app_secret": "app-secret"}})
	require.NoError(t, err)

	msgs, err := ch.HandleMessage(&InboundRequest{Body: body, Bot: uuid.New(), Account: uuid.New()})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, `/k_quick_reply{"quick_reply":"buy"}`, msgs[0].Text)
	assert.Equal(t, "u1", msgs[0].SenderID)
	assert.Equal(t, true, msgs[0].Metadata["is_integration_user"])
	assert.Equal(t, "default", msgs[0].Metadata["tabname"])
}

func TestInstagramAllowedUsersGate(t *testing.T) {
	ch, err := ForType(domain.ChannelInstagram, testLogger(t))
	require.NoError(t, err)

	body := []byte(`{"entry":[{"messaging":[{"sender":{"id":"stranger"},"message":{"mid":"m1","text":"hi"}}]}]}`)
	msgs, err := ch.HandleMessage(&InboundRequest{
		Body:   body,
		Bot:    uuid.New(),
		Config: map[string]interface{}{"allowed_users": []interface{}{"friend"}},
	})
	require.NoError(t, err)
	assert.Empty(t, msgs)

	body = []byte(`{"entry":[{"messaging":[{"sender":{"id":"friend"},"message":{"mid":"m1","text":"hi"}}]}]}`)
	msgs, err = ch.HandleMessage(&InboundRequest{
		Body:   body,
		Bot:    uuid.New(),
		Config: map[string]interface{}{"allowed_users": []interface{}{"friend"}},
	})
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestInstagramCommentHandling(t *testing.T) {
	ch, err := ForType(domain.ChannelInstagram, testLogger(t))
	require.NoError(t, err)

	// top-level comment becomes a message; a reply (parent_id set) does not
	body := []byte(`{"entry":[{"changes":[
		{"field":"comments","value":{"id":"c1","text":"nice bot","from":{"id":"u1","username":"jo"}}},
		{"field":"comments","value":{"id":"c2","parent_id":"c1","text":"echo","from":{"id":"u2","username":"bot"}}}
	]}]}`)
	msgs, err := ch.HandleMessage(&InboundRequest{Body: body, Bot: uuid.New(), Config: map[string]interface{}{"static_comment_reply": "thanks!"}})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "nice bot", msgs[0].Text)
	assert.Equal(t, "@jo thanks!", msgs[0].Metadata["static_comment_reply"])
}

func TestWhatsappNormalization(t *testing.T) {
	ch, err := ForType(domain.ChannelWhatsapp, testLogger(t))
	require.NoError(t, err)

	cases := []struct {
		name string
		body string
		want string
	}{
		{
			name: "plain text",
			body: `{"type":"text","from":"911","id":"w1","text":{"body":"hello"}}`,
			want: "hello",
		},
		{
			name: "button with distinct payload",
			body: `{"type":"button","from":"911","id":"w2","button":{"payload":"buy kairon for 1 billion","text":"buy now"}}`,
			want: `/k_quick_reply_msg{"quick_reply": "buy kairon for 1 billion"}`,
		},
		{
			name: "button payload duplicating title",
			body: `{"type":"button","from":"911","id":"w3","button":{"payload":"Buy","text":"Buy"}}`,
			want: "Buy",
		},
		{
			name: "button without payload",
			body: `{"type":"button","from":"911","id":"w8","button":{"payload":"","text":"buy now"}}`,
			want: "buy now",
		},
		{
			name: "interactive button reply",
			body: `{"type":"interactive","from":"911","id":"w9","interactive":{"type":"button_reply","button_reply":{"id":"opt_1","title":"Option 1"}}}`,
			want: `/k_quick_reply_msg{"quick_reply": "opt_1"}`,
		},
		{
			name: "flow reply",
			body: `{"type":"interactive","from":"911","id":"w4","interactive":{"type":"nfm_reply","nfm_reply":{"response_json":{"seat":"2A"},"name":"flow"}}}`,
			want: `/k_interactive_msg{"flow_reply":{"seat":"2A"}}`,
		},
		{
			name: "image",
			body: `{"type":"image","from":"911","id":"w5","image":{"id":"media-77"}}`,
			want: `/k_multimedia_msg{"image":"media-77"}`,
		},
		{
			name: "order",
			body: `{"type":"order","from":"911","id":"w6","order":{"catalog_id":"c9"}}`,
			want: `/k_order_msg{"order":{"catalog_id":"c9"}}`,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			envelope := fmt.Sprintf(`{"entry":[{"changes":[{"value":{"metadata":{"phone_number_id":"p1"},"messages":[%s]}}]}]}`, tc.body)
			msgs, err := ch.HandleMessage(&InboundRequest{Body: []byte(envelope), Bot: uuid.New(), Account: uuid.New()})
			require.NoError(t, err)
			require.Len(t, msgs, 1)
			assert.Equal(t, tc.want, msgs[0].Text)
			assert.Equal(t, "911", msgs[0].SenderID)
		})
	}
}

func TestWhatsappStatuses(t *testing.T) {
	ch, err := ForType(domain.ChannelWhatsapp, testLogger(t))
	require.NoError(t, err)

	extractor, ok := ch.(StatusExtractor)
	require.True(t, ok)

	body := []byte(`{"entry":[{"changes":[{"value":{"statuses":[
		{"id":"w1","recipient_id":"911","status":"delivered"},
		{"id":"w2","recipient_id":"911","status":"failed","errors":[{"title":"blocked"}]}
	]}}]}]}`)
	statuses := extractor.ExtractStatuses(&InboundRequest{Body: body})
	require.Len(t, statuses, 2)
	assert.Equal(t, "delivered", statuses[0].Status)
	assert.Equal(t, "blocked", statuses[1].Error)
}

func TestWhatsapp360DialogAPIKey(t *testing.T) {
	ch, err := ForType(domain.ChannelWhatsapp, testLogger(t))
	require.NoError(t, err)

	headers := http.Header{}
	headers.Set("D360-Api-Key", "key-1")
	cfg := map[string]interface{}{"bsp_type": "360dialog", "api_key": "key-1"}
	_, err = ch.Validate(&InboundRequest{Body: []byte(`{}`), Headers: headers, Config: cfg})
	assert.NoError(t, err)

	headers.Set("D360-Api-Key", "key-2")
	_, err = ch.Validate(&InboundRequest{Body: []byte(`{}`), Headers: headers, Config: cfg})
	assert.Error(t, err)
}

func TestHangoutsTokenVerification(t *testing.T) {
	ch, err := ForType(domain.ChannelHangouts, testLogger(t))
	require.NoError(t, err)

	headers := http.Header{}

	// an unverifiable token never reaches the claim checks, no matter how
	// convincing its issuer claim looks
	forged := makeUnsignedJWT(t, map[string]interface{}{"iss": "chat@system.gserviceaccount.com"})
	headers.Set("Authorization", "Bearer "+forged)
	_, err = ch.Validate(&InboundRequest{Headers: headers})
	assert.Error(t, err)

	restore := verifyGoogleIDToken
	defer func() { verifyGoogleIDToken = restore }()

	issuer := "chat@system.gserviceaccount.com"
	var gotAudience string
	verifyGoogleIDToken = func(ctx context.Context, token, audience string) (map[string]interface{}, error) {
		gotAudience = audience
		return map[string]interface{}{"iss": issuer}, nil
	}

	_, err = ch.Validate(&InboundRequest{Headers: headers, Config: map[string]interface{}{"project_id": "proj-1"}})
	assert.NoError(t, err)
	assert.Equal(t, "proj-1", gotAudience)

	issuer = "someone-else"
	_, err = ch.Validate(&InboundRequest{Headers: headers})
	assert.Error(t, err)
}

func makeUnsignedJWT(t *testing.T, claims map[string]interface{}) string {
	t.Helper()
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"RS256","typ":"JWT"}`))
	payload, err := json.Marshal(claims)
	require.NoError(t, err)
	return header + "." + base64.RawURLEncoding.EncodeToString(payload) + ".sig"
}

func TestTokenHashStable(t *testing.T) {
	a := TokenHash("integration-token")
	b := TokenHash("integration-token")
	c := TokenHash("other-token")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}
