package security

import (
	"fmt"
	"time"

	"placesync/internal/saved/domain/model"
	apperrors "placesync/internal/shared/errors"

	"github.com/golang-jwt/jwt/v5"
)

// SessionValidator turns the signed session token handed over by the auth
// system into the explicit Session value threaded through every store and
// serializer call. The engine never trusts ambient account state; a caller
// without a valid token gets ErrNotSignedIn semantics.
type SessionValidator struct {
	secretKey []byte
	issuer    string
}

// NewSessionValidator creates a validator for HS256-signed session tokens.
func NewSessionValidator(secretKey, issuer string) *SessionValidator {
	return &SessionValidator{
		secretKey: []byte(secretKey),
		issuer:    issuer,
	}
}

// Mint issues a signed session token for an account. Used by tests and by
// hosts that embed the engine behind their own auth.
func (v *SessionValidator) Mint(accountID string, ttl time.Duration) (string, error) {
	if accountID == "" {
		return "", apperrors.ErrNotSignedIn
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   accountID,
		Issuer:    v.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secretKey)
}

// Validate parses a session token into a Session. Invalid or expired tokens
// yield authentication errors; callers surface them as not-signed-in.
func (v *SessionValidator) Validate(tokenString string) (model.Session, error) {
	if tokenString == "" {
		return model.Session{}, apperrors.ErrNotSignedIn
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secretKey, nil
	}, jwt.WithIssuer(v.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return model.Session{}, apperrors.NewAuthenticationError("invalid session token").WithCause(err)
	}
	if !token.Valid || claims.Subject == "" {
		return model.Session{}, apperrors.ErrInvalidToken
	}

	return model.Session{AccountID: claims.Subject, Token: tokenString}, nil
}
