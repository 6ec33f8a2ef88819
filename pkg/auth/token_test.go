package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/uninote/uninote-backend/pkg/config"
	"github.com/uninote/uninote-backend/pkg/enums"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "uninote", ExpirationMinutes: 15}

func TestMintAndParseAccessToken(t *testing.T) {
	now := time.Now().UTC()
	userID := uuid.New()

	token, err := MintAccessToken(testJWT, now, AccessTokenPayload{UserID: userID, Role: enums.UserRoleAdmin, JTI: "session-1"})
	require.NoError(t, err)

	claims, err := ParseAccessToken(testJWT, token)
	require.NoError(t, err)
	require.Equal(t, userID, claims.UserID)
	require.True(t, claims.IsAdmin())
	require.Equal(t, "session-1", claims.ID)
	require.Equal(t, "uninote", claims.Issuer)
	require.WithinDuration(t, now.Add(15*time.Minute), claims.ExpiresAt.Time, time.Second)
}

func TestMintAccessTokenGeneratesJTI(t *testing.T) {
	token, err := MintAccessToken(testJWT, time.Now(), AccessTokenPayload{UserID: uuid.New(), Role: enums.UserRoleStudent})
	require.NoError(t, err)

	claims, err := ParseAccessToken(testJWT, token)
	require.NoError(t, err)
	_, err = uuid.Parse(claims.ID)
	require.NoError(t, err)
}

func TestMintAccessTokenValidation(t *testing.T) {
	_, err := MintAccessToken(config.JWTConfig{}, time.Now(), AccessTokenPayload{UserID: uuid.New(), Role: enums.UserRoleStudent})
	require.Error(t, err)

	_, err = MintAccessToken(testJWT, time.Now(), AccessTokenPayload{UserID: uuid.New(), Role: "owner"})
	require.Error(t, err)

	_, err = MintAccessToken(testJWT, time.Now(), AccessTokenPayload{Role: enums.UserRoleStudent})
	require.Error(t, err)
}

func TestParseAccessTokenRejectsExpired(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	token, err := MintAccessToken(testJWT, past, AccessTokenPayload{UserID: uuid.New(), Role: enums.UserRoleStudent, JTI: "old"})
	require.NoError(t, err)

	_, err = ParseAccessToken(testJWT, token)
	require.ErrorIs(t, err, jwt.ErrTokenExpired)

	claims, err := ParseAccessTokenAllowExpired(testJWT, token)
	require.NoError(t, err)
	require.Equal(t, "old", claims.ID)
}

func TestParseAccessTokenRejectsWrongSecretAndIssuer(t *testing.T) {
	token, err := MintAccessToken(testJWT, time.Now(), AccessTokenPayload{UserID: uuid.New(), Role: enums.UserRoleStudent})
	require.NoError(t, err)

	other := testJWT
	other.Secret = "different"
	_, err = ParseAccessToken(other, token)
	require.Error(t, err)

	other = testJWT
	other.Issuer = "someone-else"
	_, err = ParseAccessTokenAllowExpired(other, token)
	require.Error(t, err)
}
