package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"marginalia/internal/domain"
	"marginalia/internal/domain/models"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

// SupabaseJWTVerifier verifies tokens against keys fetched from a JWKS endpoint,
// or against a shared HS256 secret for projects that still use one.
type SupabaseJWTVerifier struct {
	keyfunc jwt.Keyfunc
	algs    []string
	logger  *slog.Logger
}

// NewJWTVerifier creates a verifier that fetches public keys from Supabase's JWKS endpoint.
// The keys are cached and refreshed by keyfunc.
func NewJWTVerifier(jwksURL string, logger *slog.Logger) (JWTVerifier, error) {
	if jwksURL == "" {
		return nil, errors.New("JWKS URL cannot be empty")
	}

	jwks, err := keyfunc.NewDefaultCtx(context.Background(), []string{jwksURL})
	if err != nil {
		return nil, fmt.Errorf("failed to create JWKS client: %w", err)
	}

	logger.Info("JWT verifier initialized", "jwks_url", jwksURL)

	return &SupabaseJWTVerifier{
		keyfunc: jwks.Keyfunc,
		algs:    []string{"RS256", "ES256"},
		logger:  logger,
	}, nil
}

// NewSecretVerifier creates a verifier for HS256 tokens signed with secret.
func NewSecretVerifier(secret string, logger *slog.Logger) (JWTVerifier, error) {
	if secret == "" {
		return nil, errors.New("JWT secret cannot be empty")
	}

	key := []byte(secret)
	logger.Info("JWT verifier initialized", "mode", "shared_secret")

	return &SupabaseJWTVerifier{
		keyfunc: func(*jwt.Token) (interface{}, error) { return key, nil },
		algs:    []string{"HS256"},
		logger:  logger,
	}, nil
}

// VerifyToken validates a token and extracts the reader claims.
func (v *SupabaseJWTVerifier) VerifyToken(tokenString string) (*models.ReaderClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.ReaderClaims{}, v.keyfunc,
		jwt.WithValidMethods(v.algs),
	)
	if err != nil {
		v.logger.Debug("token rejected", "error", err.Error())
		return nil, domain.ErrUnauthorized
	}

	// Prevent algorithm confusion attacks
	if !token.Valid || !slices.Contains(v.algs, token.Method.Alg()) {
		v.logger.Warn("token uses unexpected algorithm", "algorithm", token.Method.Alg(), "allowed", v.algs)
		return nil, domain.ErrUnauthorized
	}

	claims, ok := token.Claims.(*models.ReaderClaims)
	if !ok {
		v.logger.Error("failed to extract claims from token")
		return nil, domain.ErrUnauthorized
	}

	if claims.Subject == "" {
		v.logger.Debug("token missing subject claim")
		return nil, domain.ErrUnauthorized
	}

	// Anonymous and service tokens are rejected; only signed-in readers get a session
	if claims.Role != "authenticated" || claims.IsAnonymous {
		v.logger.Debug("token is not an authenticated reader",
			"role", claims.Role,
			"reader_id", claims.Subject,
		)
		return nil, domain.ErrUnauthorized
	}

	return claims, nil
}

// Close releases resources held by the JWT verifier.
// keyfunc v3 manages its own refresh goroutine, so this only logs.
func (v *SupabaseJWTVerifier) Close() error {
	v.logger.Info("JWT verifier closed")
	return nil
}
