package http_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kairon-labs/kairon-backend/internal/agent"
	accountrepo "github.com/kairon-labs/kairon-backend/internal/data/repos/account"
	channelsrepo "github.com/kairon-labs/kairon-backend/internal/data/repos/channels"
	corpusrepo "github.com/kairon-labs/kairon-backend/internal/data/repos/corpus"
	eventsrepo "github.com/kairon-labs/kairon-backend/internal/data/repos/events"
	trackerrepo "github.com/kairon-labs/kairon-backend/internal/data/repos/tracker"
	"github.com/kairon-labs/kairon-backend/internal/data/repos/testutil"
	"github.com/kairon-labs/kairon-backend/internal/events"
	kaironhttp "github.com/kairon-labs/kairon-backend/internal/http"
	httpH "github.com/kairon-labs/kairon-backend/internal/http/handlers"
	httpMW "github.com/kairon-labs/kairon-backend/internal/http/middleware"
	"github.com/kairon-labs/kairon-backend/internal/pkg/apperr"
	"github.com/kairon-labs/kairon-backend/internal/services"
	"github.com/kairon-labs/kairon-backend/internal/services/codec"
	corpussvc "github.com/kairon-labs/kairon-backend/internal/services/corpus"
	"github.com/kairon-labs/kairon-backend/internal/tracker"
)

type envelope struct {
	Success   bool            `json:"success"`
	ErrorCode string          `json:"error_code"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data"`
}

// newTestRouter wires the full API over the shared test database with the
// in-process model engine and the standalone event executor.
func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gdb := testutil.DB(t)
	log := testutil.Logger(t)

	users := accountrepo.NewUserRepo(gdb, log)
	bots := accountrepo.NewBotRepo(gdb, log)
	access := accountrepo.NewBotAccessRepo(gdb, log)
	examples := corpusrepo.NewTrainingExampleRepo(gdb, log)
	settings := corpusrepo.NewBotSettingsRepo(gdb, log)
	executorLogs := eventsrepo.NewExecutorLogRepo(gdb, log)
	channelConfigs := channelsrepo.NewChannelConfigRepo(gdb, log)
	channelLogs := channelsrepo.NewChannelLogRepo(gdb, log)
	metering := channelsrepo.NewMeteringRepo(gdb, log)
	liveAgent := channelsrepo.NewLiveAgentConfigRepo(gdb, log)

	corpus := corpussvc.NewService(gdb, corpussvc.Repos{
		Intents:   corpusrepo.NewIntentRepo(gdb, log),
		Examples:  examples,
		Synonyms:  corpusrepo.NewEntitySynonymRepo(gdb, log),
		Lookups:   corpusrepo.NewLookupTableRepo(gdb, log),
		Regexes:   corpusrepo.NewRegexFeatureRepo(gdb, log),
		Responses: corpusrepo.NewResponseRepo(gdb, log),
		Utters:    corpusrepo.NewUtteranceRepo(gdb, log),
		Slots:     corpusrepo.NewSlotRepo(gdb, log),
		Forms:     corpusrepo.NewFormRepo(gdb, log),
		Actions:   corpusrepo.NewActionRepo(gdb, log),
		HTTPActs:  corpusrepo.NewHTTPActionRepo(gdb, log),
		Stories:   corpusrepo.NewStoryRepo(gdb, log),
		Configs:   corpusrepo.NewBotConfigRepo(gdb, log),
		Endpoints: corpusrepo.NewEndpointsRepo(gdb, log),
		Sessions:  corpusrepo.NewSessionConfigRepo(gdb, log),
		Settings:  settings,
		Audit:     corpusrepo.NewAuditRepo(gdb, log),
		Bots:      bots,
	}, log)

	engine := agent.NewLocalEngine(t.TempDir(), log)
	cache, err := agent.NewLRUCache(engine, 8, log)
	require.NoError(t, err)

	trackerSvc := tracker.NewService(trackerrepo.NewTrackerRepo(gdb, log), examples, nil, log)
	auth := services.NewAuthService(users, access, "router-test-secret", 0, log)
	account := services.NewAccountService(services.AccountDeps{
		Accounts:    accountrepo.NewAccountRepo(gdb, log),
		Users:       users,
		Bots:        bots,
		Access:      access,
		Corpus:      corpus,
		Tracker:     trackerSvc,
		Logs:        executorLogs,
		ChannelCfgs: channelConfigs,
		ChannelLogs: channelLogs,
		Metering:    metering,
		LiveAgent:   liveAgent,
		Cache:       cache,
	}, log)
	channel := services.NewChannelService(channelConfigs, liveAgent, bots, auth, "http://localhost:8080", log)
	conversation := services.NewConversationService(bots, liveAgent, metering, cache, trackerSvc, nil, log)

	standalone := events.NewStandaloneExecutor()
	manager := events.NewManager(executorLogs, settings, &events.Deps{
		Corpus:  corpus,
		Codec:   codec.New(corpus, log),
		Tracker: trackerSvc,
		Engine:  engine,
		Cache:   cache,
		WorkDir: t.TempDir(),
		Log:     log,
	}, standalone, log)
	standalone.Bind(manager)

	return kaironhttp.NewRouter(kaironhttp.RouterConfig{
		AuthHandler:    httpH.NewAuthHandler(auth, account),
		AuthMiddleware: httpMW.NewAuthMiddleware(auth, log),
		AccountHandler: httpH.NewAccountHandler(account, bots),
		CorpusHandler:  httpH.NewCorpusHandler(corpus),
		ChatHandler:    httpH.NewChatHandler(conversation),
		ChannelHandler: httpH.NewChannelHandler(channel),
		WebhookHandler: httpH.NewWebhookHandler(channel, conversation, bots, channelLogs, log),
		EventHandler:   httpH.NewEventHandler(manager, auth),
		HistoryHandler: httpH.NewHistoryHandler(trackerSvc),
		HealthHandler:  httpH.NewHealthHandler(),
		Logger:         log,
	})
}

func doJSON(t *testing.T, r *gin.Engine, method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	var env envelope
	if rr.Body.Len() > 0 && rr.Header().Get("Content-Type") != "text/plain; charset=utf-8" {
		_ = json.Unmarshal(rr.Body.Bytes(), &env)
	}
	return rr, env
}

func TestHealthcheck(t *testing.T) {
	r := newTestRouter(t)
	rr, _ := doJSON(t, r, http.MethodGet, "/healthcheck", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"ok"`)
}

func TestChatRequiresToken(t *testing.T) {
	r := newTestRouter(t)
	rr, env := doJSON(t, r, http.MethodPost, "/api/bot/"+uuid.NewString()+"/chat", "", map[string]string{"data": "hi"})
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.False(t, env.Success)
	assert.Equal(t, "unauthorized", env.ErrorCode)
}

// TestChatbotLifecycle walks the whole platform through the API surface:
// register, create a bot, author a corpus, train, chat, and read analytics.
func TestChatbotLifecycle(t *testing.T) {
	r := newTestRouter(t)
	email := fmt.Sprintf("lifecycle-%s@kairon.ai", uuid.NewString()[:8])

	rr, env := doJSON(t, r, http.MethodPost, "/api/account/registration", "", map[string]string{
		"account":    "lifecycle-" + uuid.NewString()[:8],
		"email":      email,
		"first_name": "Life",
		"last_name":  "Cycle",
		"password":   "super-secret-1",
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.True(t, env.Success)

	rr, env = doJSON(t, r, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    email,
		"password": "super-secret-1",
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var login struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &login))
	token := login.AccessToken
	require.NotEmpty(t, token)

	rr, env = doJSON(t, r, http.MethodPost, "/api/account/bot", token, map[string]string{"name": "support-" + uuid.NewString()[:8]})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var created struct {
		Bot struct {
			ID uuid.UUID `json:"id"`
		} `json:"bot"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	botID := created.Bot.ID
	require.NotEqual(t, uuid.Nil, botID)
	base := "/api/bot/" + botID.String()

	rr, _ = doJSON(t, r, http.MethodPost, base+"/intents", token, map[string]string{"name": "greet"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	rr, _ = doJSON(t, r, http.MethodPost, base+"/intents/greet/examples", token, map[string]interface{}{
		"examples": []string{"hi", "hello there"},
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	rr, _ = doJSON(t, r, http.MethodPost, base+"/responses", token, map[string]interface{}{
		"name": "utter_greet",
		"text": map[string]string{"text": "Hello! How can I help?"},
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	rr, _ = doJSON(t, r, http.MethodPost, base+"/stories", token, map[string]interface{}{
		"name": "greet_path",
		"type": "STORY",
		"steps": []map[string]string{
			{"name": "greet", "type": "INTENT"},
			{"name": "utter_greet", "type": "BOT"},
		},
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	// Standalone executor runs the training inline with the queue call.
	rr, env = doJSON(t, r, http.MethodPost, "/api/events/queue/model_training", token, map[string]interface{}{
		"bot": botID,
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var queued struct {
		ExecutorLogID string `json:"executor_log_id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &queued))
	require.NotEmpty(t, queued.ExecutorLogID)

	rr, env = doJSON(t, r, http.MethodGet, "/api/events/"+queued.ExecutorLogID, token, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var history struct {
		Logs []struct {
			Status string `json:"status"`
		} `json:"logs"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &history))
	require.NotEmpty(t, history.Logs)
	statuses := make([]string, 0, len(history.Logs))
	for _, entry := range history.Logs {
		statuses = append(statuses, entry.Status)
	}
	assert.Contains(t, statuses, "Completed")

	rr, env = doJSON(t, r, http.MethodPost, base+"/chat", token, map[string]string{"data": "hi"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var chat struct {
		NLU      map[string]interface{}   `json:"nlu"`
		Response []map[string]interface{} `json:"response"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &chat))
	require.NotEmpty(t, chat.Response)
	assert.Equal(t, "Hello! How can I help?", chat.Response[0]["text"])
	intent, _ := chat.NLU["intent"].(map[string]interface{})
	assert.Equal(t, "greet", intent["name"])

	rr, env = doJSON(t, r, http.MethodGet, "/api/history/"+botID.String()+"/users", token, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.True(t, env.Success)
}

func TestChatUntrainedBot(t *testing.T) {
	r := newTestRouter(t)
	email := fmt.Sprintf("untrained-%s@kairon.ai", uuid.NewString()[:8])

	rr, _ := doJSON(t, r, http.MethodPost, "/api/account/registration", "", map[string]string{
		"account":    "untrained-" + uuid.NewString()[:8],
		"email":      email,
		"first_name": "No",
		"last_name":  "Model",
		"password":   "super-secret-1",
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	rr, env := doJSON(t, r, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    email,
		"password": "super-secret-1",
	})
	require.Equal(t, http.StatusOK, rr.Code)
	var login struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &login))

	rr, env = doJSON(t, r, http.MethodPost, "/api/account/bot", login.AccessToken, map[string]string{"name": "mute-" + uuid.NewString()[:8]})
	require.Equal(t, http.StatusOK, rr.Code)
	var created struct {
		Bot struct {
			ID uuid.UUID `json:"id"`
		} `json:"bot"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))

	rr, env = doJSON(t, r, http.MethodPost, "/api/bot/"+created.Bot.ID.String()+"/chat", login.AccessToken, map[string]string{"data": "hi"})
	assert.False(t, env.Success)
	assert.Equal(t, apperr.MsgBotNotTrained, env.Message)
}
