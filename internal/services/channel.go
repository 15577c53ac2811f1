package services

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/kairon-labs/kairon-backend/internal/channels"
	accountrepo "github.com/kairon-labs/kairon-backend/internal/data/repos/account"
	channelsrepo "github.com/kairon-labs/kairon-backend/internal/data/repos/channels"
	"github.com/kairon-labs/kairon-backend/internal/domain"
	"github.com/kairon-labs/kairon-backend/internal/pkg/apperr"
	"github.com/kairon-labs/kairon-backend/internal/pkg/dbctx"
	"github.com/kairon-labs/kairon-backend/internal/platform/logger"
)

const telegramAPIBase = "https://api.telegram.org"

// requiredChannelKeys lists the credentials each connector cannot work
// without. The adapters read more keys than these, but a config missing one
// of these can never validate a webhook call.
var requiredChannelKeys = map[domain.ChannelType][]string{
	domain.ChannelTelegram:         {"access_token"},
	domain.ChannelSlack:            {"bot_user_oauth_token", "slack_signing_secret"},
	domain.ChannelMessenger:        {"app_secret", "page_access_token", "verify_token"},
	domain.ChannelInstagram:        {"app_secret", "page_access_token", "verify_token"},
	domain.ChannelWhatsapp:         {"bsp_type", "verify_token"},
	domain.ChannelBusinessMessages: {"verification_token", "partner_key"},
	domain.ChannelHangouts:         {"project_id"},
	domain.ChannelLine:             {"channel_secret", "channel_access_token"},
	domain.ChannelMSTeams:          {"app_id", "app_secret"},
}

// ChannelService manages provider connections: credential validation, the
// tokenized webhook endpoint, and provider-side webhook registration where
// the provider supports it.
type ChannelService struct {
	configs   channelsrepo.ChannelConfigRepo
	liveAgent channelsrepo.LiveAgentConfigRepo
	bots      accountrepo.BotRepo
	auth      *AuthService
	publicURL string

	// telegramBase is swapped for a test server in package tests.
	telegramBase string

	http *http.Client
	log  *logger.Logger
}

func NewChannelService(
	configs channelsrepo.ChannelConfigRepo,
	liveAgent channelsrepo.LiveAgentConfigRepo,
	bots accountrepo.BotRepo,
	auth *AuthService,
	publicURL string,
	baseLog *logger.Logger,
) *ChannelService {
	return &ChannelService{
		configs:      configs,
		liveAgent:    liveAgent,
		bots:         bots,
		auth:         auth,
		publicURL:    strings.TrimRight(publicURL, "/"),
		telegramBase: telegramAPIBase,
		http:         &http.Client{Timeout: 15 * time.Second},
		log:          baseLog.With("service", "ChannelService"),
	}
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Save validates and stores a channel connection and answers with the
// webhook URL to paste into the provider console. For Telegram the webhook
// is registered with the provider first; a provider rejection aborts the
// save so a broken config never goes live.
func (s *ChannelService) Save(ctx context.Context, botID uuid.UUID, connector domain.ChannelType, config map[string]interface{}, user string) (string, error) {
	if !connector.Valid() {
		return "", apperr.Validation("Invalid channel type " + string(connector))
	}
	if _, err := channels.ForType(connector, s.log); err != nil {
		return "", err
	}
	for _, key := range requiredChannelKeys[connector] {
		if v, ok := config[key].(string); !ok || strings.TrimSpace(v) == "" {
			return "", apperr.Validation(fmt.Sprintf("Missing %s in channel config", key))
		}
	}
	dbc := dbctx.New(ctx)
	bot, err := s.bots.GetByID(dbc, botID)
	if err != nil {
		return "", apperr.FromDB(err, "Bot does not exist")
	}

	token, err := s.auth.IssueToken(user, bot.Account, bot.ID.String(), true, 0)
	if err != nil {
		return "", err
	}
	webhookURL := fmt.Sprintf("%s/api/webhook/%s/%s/%s", s.publicURL, connector, bot.ID, token)

	if connector == domain.ChannelTelegram {
		if err := s.registerTelegramWebhook(ctx, config["access_token"].(string), webhookURL); err != nil {
			return "", err
		}
	}

	if _, err := s.configs.Save(dbc, &domain.ChannelConfig{
		ID:            uuid.New(),
		Bot:           bot.ID,
		ConnectorType: connector,
		Config:        datatypes.JSONMap(config),
		TokenHash:     hashToken(token),
		User:          user,
		Status:        true,
		Timestamp:     time.Now().UTC(),
	}); err != nil {
		return "", err
	}
	s.log.Info("Channel configured", "bot", bot.ID.String(), "connector", string(connector))
	return webhookURL, nil
}

func (s *ChannelService) Get(ctx context.Context, bot uuid.UUID, connector domain.ChannelType) (*domain.ChannelConfig, error) {
	config, err := s.configs.Get(dbctx.New(ctx), bot, connector)
	return config, apperr.FromDB(err, "Channel config not found")
}

func (s *ChannelService) List(ctx context.Context, bot uuid.UUID) ([]*domain.ChannelConfig, error) {
	return s.configs.List(dbctx.New(ctx), bot)
}

func (s *ChannelService) Delete(ctx context.Context, bot uuid.UUID, connector domain.ChannelType, user string) error {
	if _, err := s.configs.Get(dbctx.New(ctx), bot, connector); err != nil {
		return apperr.FromDB(err, "Channel config not found")
	}
	return s.configs.SoftDelete(dbctx.New(ctx), bot, connector, user)
}

// ResolveByToken maps a webhook-path token to its channel config. The token
// is verified as a signed bot-scoped credential before the hash lookup, so a
// forged path fails closed even if a hash collides.
func (s *ChannelService) ResolveByToken(ctx context.Context, rawToken string) (*domain.ChannelConfig, error) {
	claims, err := s.auth.ValidateToken(rawToken)
	if err != nil {
		return nil, err
	}
	config, err := s.configs.GetByTokenHash(dbctx.New(ctx), hashToken(rawToken))
	if err != nil {
		return nil, apperr.Unauthorized("Invalid webhook token")
	}
	if claims.Bot != config.Bot.String() {
		return nil, apperr.Forbidden(apperr.MsgBotAccessDenied)
	}
	return config, nil
}

// SaveLiveAgentConfig stores the agent-desk connection used for handoff.
func (s *ChannelService) SaveLiveAgentConfig(ctx context.Context, bot uuid.UUID, cfg *domain.LiveAgentConfig, user string) (*domain.LiveAgentConfig, error) {
	if cfg.AgentType == "" {
		cfg.AgentType = "chatwoot"
	}
	if cfg.AgentType != "chatwoot" {
		return nil, apperr.Validation("Agent system not supported")
	}
	for _, key := range []string{"account_id", "inbox_identifier", "api_access_token"} {
		if v, ok := cfg.Config[key].(string); !ok || strings.TrimSpace(v) == "" {
			return nil, apperr.Validation(fmt.Sprintf("Missing %s in live agent config", key))
		}
	}
	if cfg.ID == uuid.Nil {
		cfg.ID = uuid.New()
	}
	cfg.Bot = bot
	cfg.User = user
	cfg.Status = true
	cfg.Timestamp = time.Now().UTC()
	return s.liveAgent.Save(dbctx.New(ctx), cfg)
}

func (s *ChannelService) GetLiveAgentConfig(ctx context.Context, bot uuid.UUID) (*domain.LiveAgentConfig, error) {
	cfg, err := s.liveAgent.Get(dbctx.New(ctx), bot)
	return cfg, apperr.FromDB(err, "Live agent config not found")
}

func (s *ChannelService) DeleteLiveAgentConfig(ctx context.Context, bot uuid.UUID, user string) error {
	if _, err := s.liveAgent.Get(dbctx.New(ctx), bot); err != nil {
		return apperr.FromDB(err, "Live agent config not found")
	}
	return s.liveAgent.SoftDelete(dbctx.New(ctx), bot, user)
}

func (s *ChannelService) registerTelegramWebhook(ctx context.Context, accessToken, webhookURL string) error {
	payload, err := json.Marshal(map[string]string{"url": webhookURL})
	if err != nil {
		return apperr.Internal("encode webhook registration", err)
	}
	endpoint := fmt.Sprintf("%s/bot%s/setWebhook", s.telegramBase, accessToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return apperr.Internal("build webhook registration request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.http.Do(req)
	if err != nil {
		return apperr.Provider(err.Error())
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	var result struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal(raw, &result); err != nil || !result.OK {
		return apperr.Provider("Failed to register telegram webhook: " + result.Description)
	}
	return nil
}
