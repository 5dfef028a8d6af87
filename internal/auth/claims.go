package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// sessionClaims is the signed payload of a session token.
type sessionClaims struct {
	jwt.RegisteredClaims
	SessionID string `json:"sid"`
	UserID    string `json:"uid"`
}

// untrustedLookup carries identifiers read from a token whose signature has
// NOT been checked. It only selects which user and session rows to load
// before verification; it must never feed an authorisation decision.
type untrustedLookup struct {
	sessionID string
	userID    string
}

// peekUntrusted decodes the token payload without verifying it.
func peekUntrusted(raw string) (untrustedLookup, error) {
	var claims sessionClaims
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil {
		return untrustedLookup{}, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}
	if claims.SessionID == "" || claims.UserID == "" {
		return untrustedLookup{}, fmt.Errorf("%w: missing sid or uid", ErrTokenInvalid)
	}
	return untrustedLookup{sessionID: claims.SessionID, userID: claims.UserID}, nil
}

// signClaims produces an HS256 token for the given claims.
func signClaims(claims sessionClaims, key []byte) (string, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		return "", fmt.Errorf("signing session token: %w", err)
	}
	return signed, nil
}

// verifyClaims checks the signature (HS256 only) and expiry of raw and
// returns its claims. exp is mandatory.
func verifyClaims(raw string, key []byte, now func() time.Time) (*sessionClaims, error) {
	token, err := jwt.ParseWithClaims(raw, &sessionClaims{}, func(_ *jwt.Token) (any, error) {
		return key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*sessionClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.SessionID == "" || claims.UserID == "" {
		return nil, fmt.Errorf("%w: missing sid or uid", ErrTokenInvalid)
	}
	return claims, nil
}

// isExpiredErr reports whether err came from an expired token.
func isExpiredErr(err error) bool {
	return errors.Is(err, jwt.ErrTokenExpired)
}
