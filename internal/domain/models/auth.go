package models

import "github.com/golang-jwt/jwt/v5"

// ReaderClaims is the JWT claims structure issued by Supabase Auth.
// See: https://supabase.com/docs/guides/auth/jwts
type ReaderClaims struct {
	jwt.RegisteredClaims        // Standard JWT claims (sub, iss, aud, exp, iat, etc.)
	Email                string `json:"email"`
	Role                 string `json:"role"` // "authenticated" or "anon"
	SessionID            string `json:"session_id"`
	IsAnonymous          bool   `json:"is_anonymous"`
}

// ReaderID returns the reader id from the subject claim.
// Annotations are owned by this id.
func (c *ReaderClaims) ReaderID() string {
	return c.Subject
}
