package auth

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	redislib "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/uninote/uninote-backend/internal/users"
	pkgauth "github.com/uninote/uninote-backend/pkg/auth"
	"github.com/uninote/uninote-backend/pkg/auth/session"
	"github.com/uninote/uninote-backend/pkg/config"
	"github.com/uninote/uninote-backend/pkg/db/dbtest"
	"github.com/uninote/uninote-backend/pkg/enums"
	pkgerrors "github.com/uninote/uninote-backend/pkg/errors"
	"github.com/uninote/uninote-backend/pkg/redis"
	"github.com/uninote/uninote-backend/pkg/security"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "uninote", ExpirationMinutes: 15, RefreshTokenTTLMinutes: 60}

func newTestService(t *testing.T) (Service, *users.Repository, *session.Manager) {
	t.Helper()
	conn := dbtest.Open(t)
	mr := miniredis.RunT(t)
	sessions, err := session.NewManager(redis.Wrap(redislib.NewClient(&redislib.Options{Addr: mr.Addr()})), testJWT)
	require.NoError(t, err)

	repo := users.NewRepository(conn)
	svc, err := NewService(ServiceParams{
		UserRepo:       repo,
		SessionManager: sessions,
		Hasher:         security.NewHasher(config.PasswordConfig{ArgonMemoryKB: 8192, ArgonTime: 1, ArgonParallelism: 1, ArgonSaltLen: 16, ArgonKeyLen: 32}),
		JWTConfig:      testJWT,
	})
	require.NoError(t, err)
	return svc, repo, sessions
}

func TestRegisterThenLogin(t *testing.T) {
	svc, _, sessions := newTestService(t)
	ctx := context.Background()

	uni := "  State University "
	reg, err := svc.Register(ctx, RegisterRequest{Email: "Grace@Example.edu", Password: "hopper1906", DisplayName: "Grace", University: &uni})
	require.NoError(t, err)
	require.Equal(t, "grace@example.edu", reg.User.Email)
	require.Equal(t, "State University", *reg.User.University)
	require.Equal(t, enums.SellerStatusNone, reg.User.SellerStatus)
	require.Equal(t, 900, reg.ExpiresIn)

	claims, err := pkgauth.ParseAccessToken(testJWT, reg.AccessToken)
	require.NoError(t, err)
	require.Equal(t, enums.UserRoleStudent, claims.Role)
	ok, err := sessions.HasSession(ctx, claims.ID)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = svc.Register(ctx, RegisterRequest{Email: "grace@example.edu", Password: "another-pass", DisplayName: "Dup"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	login, err := svc.Login(ctx, LoginRequest{Email: "GRACE@example.edu", Password: "hopper1906"})
	require.NoError(t, err)
	require.NotNil(t, login.User.LastLoginAt)

	_, err = svc.Login(ctx, LoginRequest{Email: "grace@example.edu", Password: "wrong-pass"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))

	_, err = svc.Login(ctx, LoginRequest{Email: "nobody@example.edu", Password: "whatever"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
}

func TestRefreshRotatesAndLogoutRevokes(t *testing.T) {
	svc, _, sessions := newTestService(t)
	ctx := context.Background()

	reg, err := svc.Register(ctx, RegisterRequest{Email: "alan@example.edu", Password: "enigma1912", DisplayName: "Alan"})
	require.NoError(t, err)

	_, err = svc.Refresh(ctx, RefreshRequest{AccessToken: reg.AccessToken, RefreshToken: "bogus"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))

	refreshed, err := svc.Refresh(ctx, RefreshRequest{AccessToken: reg.AccessToken, RefreshToken: reg.RefreshToken})
	require.NoError(t, err)
	require.NotEqual(t, reg.RefreshToken, refreshed.RefreshToken)

	_, err = svc.Refresh(ctx, RefreshRequest{AccessToken: reg.AccessToken, RefreshToken: reg.RefreshToken})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized), "old pair is single use")

	claims, err := pkgauth.ParseAccessToken(testJWT, refreshed.AccessToken)
	require.NoError(t, err)
	require.NoError(t, svc.Logout(ctx, claims.ID))
	ok, err := sessions.HasSession(ctx, claims.ID)
	require.NoError(t, err)
	require.False(t, ok)

	_, err = svc.Refresh(ctx, RefreshRequest{AccessToken: "not-a-jwt", RefreshToken: refreshed.RefreshToken})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
}

func TestMe(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	reg, err := svc.Register(ctx, RegisterRequest{Email: "me@example.edu", Password: "password1", DisplayName: "Me"})
	require.NoError(t, err)

	me, err := svc.Me(ctx, reg.User.ID)
	require.NoError(t, err)
	require.Equal(t, "me@example.edu", me.Email)

	stored, err := repo.FindByID(ctx, reg.User.ID)
	require.NoError(t, err)
	require.NotEqual(t, "password1", stored.PasswordHash)
}

func TestNewServiceRequiresDeps(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.Error(t, err)
}
