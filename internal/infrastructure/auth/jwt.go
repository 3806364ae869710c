package auth

import (
	"fmt"
	"time"

	"call-companion-core/internal/domain"

	"github.com/golang-jwt/jwt/v5"
)

// Verifier validates HMAC-signed identity tokens
type Verifier struct {
	secret []byte
}

// NewVerifier creates a verifier for tokens signed with secret
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify parses token and returns the identity it carries. The user id is read from
// "sub", falling back to "userId"; the business id from "businessId".
func (v *Verifier) Verify(token string) (domain.Identity, error) {
	if len(v.secret) == 0 {
		return domain.Identity{}, fmt.Errorf("%w: token secret not configured", domain.ErrAuthenticationFailure)
	}
	if token == "" {
		return domain.Identity{}, fmt.Errorf("%w: token is empty", domain.ErrAuthenticationFailure)
	}

	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %v", domain.ErrAuthenticationFailure, err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return domain.Identity{}, fmt.Errorf("%w: invalid token claims", domain.ErrAuthenticationFailure)
	}

	userID, _ := claims["sub"].(string)
	if userID == "" {
		userID, _ = claims["userId"].(string)
	}
	if userID == "" {
		return domain.Identity{}, fmt.Errorf("%w: token has no user id", domain.ErrAuthenticationFailure)
	}
	businessID, _ := claims["businessId"].(string)

	return domain.Identity{UserID: userID, BusinessID: businessID}, nil
}

// Issue signs a token for identity valid for ttl
func (v *Verifier) Issue(identity domain.Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": identity.UserID,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	if identity.BusinessID != "" {
		claims["businessId"] = identity.BusinessID
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
