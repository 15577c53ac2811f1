package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	accountrepo "github.com/kairon-labs/kairon-backend/internal/data/repos/account"
	"github.com/kairon-labs/kairon-backend/internal/domain"
	"github.com/kairon-labs/kairon-backend/internal/pkg/apperr"
	"github.com/kairon-labs/kairon-backend/internal/pkg/dbctx"
	"github.com/kairon-labs/kairon-backend/internal/platform/logger"
)

// Claims is the access-token payload. Integration tokens are bot-scoped and
// marked so integration-only rules can be enforced downstream.
type Claims struct {
	Account     uuid.UUID `json:"account"`
	Bot         string    `json:"bot,omitempty"`
	Integration bool      `json:"integration,omitempty"`
	jwt.RegisteredClaims
}

type AuthService struct {
	users  accountrepo.UserRepo
	access accountrepo.BotAccessRepo
	secret []byte
	ttl    time.Duration
	log    *logger.Logger
}

func NewAuthService(users accountrepo.UserRepo, access accountrepo.BotAccessRepo, secret string, ttl time.Duration, baseLog *logger.Logger) *AuthService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &AuthService{
		users:  users,
		access: access,
		secret: []byte(secret),
		ttl:    ttl,
		log:    baseLog.With("service", "AuthService"),
	}
}

// Login verifies credentials and issues an access token.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	user, err := s.users.GetByEmail(dbctx.New(ctx), email)
	if err != nil {
		return "", nil, apperr.Unauthorized("Incorrect username or password")
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return "", nil, apperr.Unauthorized("Incorrect username or password")
	}
	token, err := s.IssueToken(user.Email, user.Account, "", false, s.ttl)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// IssueToken signs an access token. A non-empty bot produces a bot-scoped
// integration token that never expires unless a ttl is given.
func (s *AuthService) IssueToken(subject string, account uuid.UUID, bot string, integration bool, ttl time.Duration) (string, error) {
	claims := &Claims{
		Account:     account,
		Bot:         bot,
		Integration: integration,
		RegisteredClaims: jwt.RegisteredClaims{
			// The unique id makes every issued token distinct, so rotating a
			// webhook token always invalidates the previous one.
			ID:       uuid.NewString(),
			Subject:  strings.ToLower(subject),
			IssuedAt: jwt.NewNumericDate(time.Now().UTC()),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().UTC().Add(ttl))
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", apperr.Internal("sign access token", err)
	}
	return signed, nil
}

// ValidateToken parses and verifies an access token. Expiry gets the
// well-known session message so clients re-authenticate instead of retrying.
func (s *AuthService) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, apperr.Unauthorized("Invalid token")
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperr.Unauthorized(apperr.MsgSessionExpired)
		}
		return nil, apperr.Unauthorized("Invalid token")
	}
	if !token.Valid {
		return nil, apperr.Unauthorized("Invalid token")
	}
	return claims, nil
}

// Authorize checks that the token's principal may act on the bot: either the
// token is scoped to this bot or the user holds an active access grant.
func (s *AuthService) Authorize(ctx context.Context, claims *Claims, bot uuid.UUID) error {
	if claims.Bot != "" {
		if claims.Bot == bot.String() {
			return nil
		}
		return apperr.Forbidden(apperr.MsgBotAccessDenied)
	}
	if _, err := s.access.Get(dbctx.New(ctx), bot, claims.Subject); err != nil {
		return apperr.Forbidden(apperr.MsgBotAccessDenied)
	}
	return nil
}

// HashPassword is the single place bcrypt cost is chosen.
func HashPassword(password string) (string, error) {
	if len(password) < 8 {
		return "", apperr.Validation("Password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", apperr.Internal("hash password", err)
	}
	return string(hash), nil
}
