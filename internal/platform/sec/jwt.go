// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package sec provides cryptographic primitives and token management.
//
// # Architecture
//
// This package isolates security-sensitive code (Hashing, JWT Signing) from
// the domain logic. It acts as an Infrastructure service injected into the
// Application layer via small interfaces defined by the consumers.
package sec

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// # Token Kinds

// TokenKind discriminates access tokens from refresh tokens.
type TokenKind string

const (
	// KindAccess authorizes API requests.
	KindAccess TokenKind = "access"

	// KindRefresh is only ever exchanged for a new token pair.
	KindRefresh TokenKind = "refresh"
)

var (
	// ErrInvalidToken covers bad signatures, malformed payloads and kind mismatches.
	ErrInvalidToken = errors.New("sec: invalid token")

	// ErrTokenExpired is the expiry sub-case of [ErrInvalidToken].
	ErrTokenExpired = fmt.Errorf("%w: token expired", ErrInvalidToken)
)

// AccessClaims represents the payload embedded inside a signed token.
//
// # Why custom claims?
//
// Access tokens carry the username, role slugs and the mustChangePassword flag so
// the gate can build request identity WITHOUT a database round-trip. The values are
// a snapshot taken at issuance. Refresh tokens only carry Subject and Type.
type AccessClaims struct {
	jwt.RegisteredClaims

	Username           string    `json:"username,omitempty"`
	Roles              []string  `json:"roles,omitempty"`
	MustChangePassword bool      `json:"mustChangePassword,omitempty"`
	Type               TokenKind `json:"type"`
}

// AccountID returns the subject claim.
func (c *AccessClaims) AccountID() string {
	return c.Subject
}

// AccessExtras holds the access-only claims supplied at issuance.
type AccessExtras struct {
	Username           string
	Roles              []string
	MustChangePassword bool
}

// # Codec

// TokenCodecConfig configures a [TokenCodec].
type TokenCodecConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string

	// Now overrides the clock (tests). Defaults to time.Now.
	Now func() time.Time
}

// TokenCodec signs and verifies access and refresh tokens using HS256.
//
// Each kind is signed with its own secret, so a leaked refresh token cannot
// verify as an access token even before the kind check runs.
type TokenCodec struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	issuer        string
	now           func() time.Time
}

// NewTokenCodec creates a new TokenCodec.
func NewTokenCodec(cfg TokenCodecConfig) (*TokenCodec, error) {
	if len(cfg.AccessSecret) == 0 || len(cfg.RefreshSecret) == 0 {
		return nil, errors.New("sec: token secrets are required")
	}
	if string(cfg.AccessSecret) == string(cfg.RefreshSecret) {
		return nil, errors.New("sec: access and refresh secrets must differ")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("sec: token lifetimes must be positive")
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &TokenCodec{
		accessSecret:  cfg.AccessSecret,
		refreshSecret: cfg.RefreshSecret,
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		issuer:        cfg.Issuer,
		now:           now,
	}, nil
}

// AccessTTL reports the configured access-token lifetime.
func (codec *TokenCodec) AccessTTL() time.Duration { return codec.accessTTL }

// RefreshTTL reports the configured refresh-token lifetime.
func (codec *TokenCodec) RefreshTTL() time.Duration { return codec.refreshTTL }

// Issue signs a token of the given kind. Extras are ignored for refresh tokens.
func (codec *TokenCodec) Issue(kind TokenKind, subjectID string, extras AccessExtras, lifetime time.Duration) (string, error) {
	secret, err := codec.secretFor(kind)
	if err != nil {
		return "", err
	}
	if subjectID == "" {
		return "", errors.New("sec: subject is required")
	}

	currentTime := codec.now()
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subjectID,
			Issuer:    codec.issuer,
			IssuedAt:  jwt.NewNumericDate(currentTime),
			ExpiresAt: jwt.NewNumericDate(currentTime.Add(lifetime)),
		},
		Type: kind,
	}

	if kind == KindAccess {
		claims.Username = extras.Username
		claims.Roles = extras.Roles
		claims.MustChangePassword = extras.MustChangePassword
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sec: failed to sign token: %w", err)
	}

	return signedToken, nil
}

// IssueAccess signs an access token with the configured access lifetime.
func (codec *TokenCodec) IssueAccess(subjectID string, extras AccessExtras) (string, error) {
	return codec.Issue(KindAccess, subjectID, extras, codec.accessTTL)
}

// IssueRefresh signs a refresh token with the configured refresh lifetime.
func (codec *TokenCodec) IssueRefresh(subjectID string) (string, error) {
	return codec.Issue(KindRefresh, subjectID, AccessExtras{}, codec.refreshTTL)
}

// Verify checks signature, expiry and kind of a token string.
//
// Every failure wraps [ErrInvalidToken]; expiry additionally matches [ErrTokenExpired].
func (codec *TokenCodec) Verify(tokenString string, expectedKind TokenKind) (*AccessClaims, error) {
	secret, err := codec.secretFor(expectedKind)
	if err != nil {
		return nil, err
	}

	token, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(codec.now),
		jwt.WithExpirationRequired(),
	)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%w: unexpected claims", ErrInvalidToken)
	}

	if claims.Type != expectedKind {
		return nil, fmt.Errorf("%w: expected %s token, got %q", ErrInvalidToken, expectedKind, claims.Type)
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	return claims, nil
}

// VerifyAccess verifies an access token. It satisfies the middleware verifier contract.
func (codec *TokenCodec) VerifyAccess(tokenString string) (*AccessClaims, error) {
	return codec.Verify(tokenString, KindAccess)
}

// secretFor selects the signing key for a token kind.
func (codec *TokenCodec) secretFor(kind TokenKind) ([]byte, error) {
	switch kind {
	case KindAccess:
		return codec.accessSecret, nil
	case KindRefresh:
		return codec.refreshSecret, nil
	default:
		return nil, fmt.Errorf("sec: unknown token kind %q", kind)
	}
}
