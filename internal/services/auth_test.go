package services

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	accountrepo "github.com/kairon-labs/kairon-backend/internal/data/repos/account"
	"github.com/kairon-labs/kairon-backend/internal/data/repos/testutil"
	"github.com/kairon-labs/kairon-backend/internal/domain"
	"github.com/kairon-labs/kairon-backend/internal/pkg/apperr"
	"github.com/kairon-labs/kairon-backend/internal/pkg/dbctx"
)

type authFixture struct {
	svc    *AuthService
	access accountrepo.BotAccessRepo
	tx     *gorm.DB
	bot    uuid.UUID
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	tx := testutil.Tx(t, testutil.DB(t))
	bot := testutil.SeedBot(t, tx)
	log := testutil.Logger(t)
	users := accountrepo.NewUserRepo(tx, log)
	access := accountrepo.NewBotAccessRepo(tx, log)
	return &authFixture{
		svc:    NewAuthService(users, access, "test-signing-secret", time.Hour, log),
		access: access,
		tx:     tx,
		bot:    bot,
	}
}

func (f *authFixture) seedUser(t *testing.T, email, password string) *domain.User {
	t.Helper()
	hash, err := HashPassword(password)
	require.NoError(t, err)
	user := &domain.User{
		ID:        uuid.New(),
		Email:     email,
		Password:  hash,
		Account:   uuid.New(),
		Status:    true,
		Timestamp: time.Now().UTC(),
	}
	require.NoError(t, f.tx.Create(user).Error)
	return user
}

func TestLoginRoundTrip(t *testing.T) {
	f := newAuthFixture(t)
	seeded := f.seedUser(t, "alice@kairon.ai", "s3cret-pass")

	token, user, err := f.svc.Login(context.Background(), "alice@kairon.ai", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, seeded.ID, user.ID)

	claims, err := f.svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "alice@kairon.ai", claims.Subject)
	assert.Equal(t, seeded.Account, claims.Account)
	assert.False(t, claims.Integration)
}

func TestLoginWrongPassword(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t, "alice@kairon.ai", "s3cret-pass")

	_, _, err := f.svc.Login(context.Background(), "alice@kairon.ai", "wrong-pass")
	require.Error(t, err)
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))

	_, _, err = f.svc.Login(context.Background(), "nobody@kairon.ai", "s3cret-pass")
	require.Error(t, err)
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
}

func TestExpiredTokenAsksForReLogin(t *testing.T) {
	f := newAuthFixture(t)
	claims := &Claims{
		Account: uuid.New(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "alice@kairon.ai",
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-signing-secret"))
	require.NoError(t, err)

	_, err = f.svc.ValidateToken(token)
	require.Error(t, err)
	assert.Equal(t, apperr.MsgSessionExpired, err.Error())
}

func TestTamperedTokenRejected(t *testing.T) {
	f := newAuthFixture(t)
	token, err := f.svc.IssueToken("alice@kairon.ai", uuid.New(), "", false, time.Hour)
	require.NoError(t, err)

	_, err = f.svc.ValidateToken(token + "x")
	require.Error(t, err)
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
}

func TestAuthorizeWithAccessGrant(t *testing.T) {
	f := newAuthFixture(t)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: f.tx}
	_, err := f.access.Grant(dbc, &domain.BotAccess{
		ID:        uuid.New(),
		Bot:       f.bot,
		Username:  "alice@kairon.ai",
		Role:      domain.RoleTester,
		Status:    true,
		Timestamp: time.Now().UTC(),
	})
	require.NoError(t, err)

	granted := &Claims{}
	granted.Subject = "alice@kairon.ai"
	require.NoError(t, f.svc.Authorize(context.Background(), granted, f.bot))

	stranger := &Claims{}
	stranger.Subject = "mallory@kairon.ai"
	err = f.svc.Authorize(context.Background(), stranger, f.bot)
	require.Error(t, err)
	assert.Equal(t, apperr.MsgBotAccessDenied, err.Error())
}

func TestAuthorizeBotScopedToken(t *testing.T) {
	f := newAuthFixture(t)

	scoped := &Claims{Bot: f.bot.String(), Integration: true}
	require.NoError(t, f.svc.Authorize(context.Background(), scoped, f.bot))

	other := &Claims{Bot: uuid.NewString(), Integration: true}
	err := f.svc.Authorize(context.Background(), other, f.bot)
	require.Error(t, err)
	assert.Equal(t, apperr.MsgBotAccessDenied, err.Error())
}
