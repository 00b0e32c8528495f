// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// Hasher is a one-way hash with verification and no recovery.
type Hasher interface {
	Hash(secret string) (string, error)
	Verify(secret, digest string) bool
}

// NewPasswordHasher returns the password hasher registered under name.
func NewPasswordHasher(name string) (Hasher, error) {
	switch name {
	case "", "bcrypt":
		return BcryptHasher{Cost: bcrypt.DefaultCost}, nil
	case "argon2id":
		return NewArgon2idHasher(DefaultArgon2idParams()), nil
	default:
		return nil, fmt.Errorf("sec: unsupported password hasher %q", name)
	}
}

// # Bcrypt

// BcryptHasher hashes passwords with bcrypt.
type BcryptHasher struct {
	Cost int
}

// Hash hashes a plain-text password using the bcrypt algorithm.
func (h BcryptHasher) Hash(plainTextPassword string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(plainTextPassword), cost)
	if err != nil {
		return "", fmt.Errorf("sec: failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

// Verify compares a plain-text password with its hashed version.
func (h BcryptHasher) Verify(plainTextPassword, existingHash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(existingHash), []byte(plainTextPassword))
	return err == nil
}

// # Argon2id

// Argon2idParams defines Argon2id hashing parameters.
type Argon2idParams struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultArgon2idParams returns the baseline parameters (64 MiB, t=3, p=2).
func DefaultArgon2idParams() Argon2idParams {
	return Argon2idParams{
		MemoryKiB:   64 * 1024,
		Iterations:  3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Argon2idHasher produces PHC strings:
// $argon2id$v=19$m=<mem>,t=<iter>,p=<par>$<salt_b64>$<hash_b64>
type Argon2idHasher struct {
	params Argon2idParams
}

// NewArgon2idHasher creates an Argon2idHasher.
func NewArgon2idHasher(params Argon2idParams) *Argon2idHasher {
	return &Argon2idHasher{params: params}
}

// Hash hashes a password using Argon2id.
func (h *Argon2idHasher) Hash(password string) (string, error) {
	salt := make([]byte, h.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("sec: salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, h.params.Iterations, h.params.MemoryKiB, h.params.Parallelism, h.params.KeyLength)

	b64 := base64.RawStdEncoding
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.MemoryKiB,
		h.params.Iterations,
		h.params.Parallelism,
		b64.EncodeToString(salt),
		b64.EncodeToString(key),
	), nil
}

// Verify checks password against a PHC Argon2id hash in constant time.
func (h *Argon2idHasher) Verify(password, encoded string) bool {
	params, salt, expected, err := decodeArgon2id(encoded)
	if err != nil {
		return false
	}

	// Refuse attacker-supplied parameters far above our own.
	if params.MemoryKiB > h.params.MemoryKiB*2 || params.Iterations > h.params.Iterations*2 || params.Parallelism > h.params.Parallelism*2 {
		return false
	}

	key := argon2.IDKey([]byte(password), salt, params.Iterations, params.MemoryKiB, params.Parallelism, uint32(len(expected))) // #nosec G115 -- bounded by decode
	return subtle.ConstantTimeCompare(key, expected) == 1
}

var errInvalidArgon2Hash = errors.New("sec: invalid argon2id hash")

func decodeArgon2id(encoded string) (Argon2idParams, []byte, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" || parts[2] != fmt.Sprintf("v=%d", argon2.Version) {
		return Argon2idParams{}, nil, nil, errInvalidArgon2Hash
	}

	var mem, iterations, parallelism uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &mem, &iterations, &parallelism); err != nil {
		return Argon2idParams{}, nil, nil, errInvalidArgon2Hash
	}
	if mem == 0 || iterations == 0 || parallelism == 0 || parallelism > 255 {
		return Argon2idParams{}, nil, nil, errInvalidArgon2Hash
	}

	b64 := base64.RawStdEncoding
	salt, err := b64.DecodeString(parts[4])
	if err != nil || len(salt) < 8 || len(salt) > 64 {
		return Argon2idParams{}, nil, nil, errInvalidArgon2Hash
	}
	key, err := b64.DecodeString(parts[5])
	if err != nil || len(key) < 16 || len(key) > 128 {
		return Argon2idParams{}, nil, nil, errInvalidArgon2Hash
	}

	return Argon2idParams{
		MemoryKiB:   mem,
		Iterations:  iterations,
		Parallelism: uint8(parallelism), // #nosec G115 -- checked above
	}, salt, key, nil
}

// # Refresh Token Digest

// TokenHasher digests refresh tokens with HMAC-SHA256 before persistence.
//
// Unlike password hashes the digest is deterministic, so it can be compared
// inside a conditional UPDATE at the storage layer.
type TokenHasher struct {
	key []byte
}

// NewTokenHasher creates a TokenHasher keyed with key.
func NewTokenHasher(key []byte) (*TokenHasher, error) {
	if len(key) == 0 {
		return nil, errors.New("sec: token hash key is required")
	}
	return &TokenHasher{key: key}, nil
}

// Hash returns the hex HMAC-SHA256 digest of token.
func (h *TokenHasher) Hash(token string) (string, error) {
	mac := hmac.New(sha256.New, h.key)
	_, _ = mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Verify reports whether digest was produced from token.
func (h *TokenHasher) Verify(token, digest string) bool {
	computed, _ := h.Hash(token)
	return hmac.Equal([]byte(computed), []byte(digest))
}
