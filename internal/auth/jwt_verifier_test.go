package auth

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"marginalia/internal/domain"
	"marginalia/internal/domain/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "super-secret-jwt-token-with-at-least-32-characters"

func sign(t *testing.T, method jwt.SigningMethod, key interface{}, claims models.ReaderClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func readerClaims(sub, role string, exp time.Time) models.ReaderClaims {
	return models.ReaderClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Role: role,
	}
}

func TestSecretVerifier(t *testing.T) {
	v, err := NewSecretVerifier(testSecret, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer v.Close()

	future := time.Now().Add(time.Hour)

	claims, err := v.VerifyToken(sign(t, jwt.SigningMethodHS256, []byte(testSecret), readerClaims("reader-1", "authenticated", future)))
	require.NoError(t, err)
	assert.Equal(t, "reader-1", claims.ReaderID())

	anon := readerClaims("reader-2", "authenticated", future)
	anon.IsAnonymous = true

	rejects := map[string]string{
		"garbage":         "not-a-token",
		"wrong secret":    sign(t, jwt.SigningMethodHS256, []byte("another-secret-another-secret-another"), readerClaims("reader-1", "authenticated", future)),
		"expired":         sign(t, jwt.SigningMethodHS256, []byte(testSecret), readerClaims("reader-1", "authenticated", time.Now().Add(-time.Hour))),
		"anon role":       sign(t, jwt.SigningMethodHS256, []byte(testSecret), readerClaims("reader-1", "anon", future)),
		"anonymous flag":  sign(t, jwt.SigningMethodHS256, []byte(testSecret), anon),
		"missing subject": sign(t, jwt.SigningMethodHS256, []byte(testSecret), readerClaims("", "authenticated", future)),
		"other algorithm": sign(t, jwt.SigningMethodHS512, []byte(testSecret), readerClaims("reader-1", "authenticated", future)),
	}
	for name, token := range rejects {
		t.Run(name, func(t *testing.T) {
			_, err := v.VerifyToken(token)
			assert.ErrorIs(t, err, domain.ErrUnauthorized)
		})
	}
}

func TestNewVerifier_RequiresConfiguration(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	_, err := NewSecretVerifier("", logger)
	assert.Error(t, err)

	_, err = NewJWTVerifier("", logger)
	assert.Error(t, err)
}
