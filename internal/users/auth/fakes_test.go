// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/taibuivan/gatekeep/internal/platform/apperr"
	"github.com/taibuivan/gatekeep/internal/platform/metrics"
	"github.com/taibuivan/gatekeep/internal/platform/sec"
	"github.com/taibuivan/gatekeep/internal/system/audit"
)

// # Clock

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (clock *fakeClock) Now() time.Time {
	clock.mu.Lock()
	defer clock.mu.Unlock()
	return clock.now
}

func (clock *fakeClock) Advance(d time.Duration) {
	clock.mu.Lock()
	defer clock.mu.Unlock()
	clock.now = clock.now.Add(d)
}

// # Account Store

// memoryAccounts is an in-memory AccountStore. SwapSession compares and writes
// under one lock, like the conditional UPDATE it stands in for.
type memoryAccounts struct {
	mu   sync.Mutex
	byID map[string]*Account

	// beforeSwap, when set, runs inside SwapSession before the comparison.
	beforeSwap func(stored *Account)

	// replaceErr, when set, is returned by ReplaceSession without writing.
	replaceErr error
}

func newMemoryAccounts() *memoryAccounts {
	return &memoryAccounts{byID: map[string]*Account{}}
}

func cloneAccount(account *Account, withSession bool) *Account {
	clone := *account
	clone.Roles = append([]Role(nil), account.Roles...)
	clone.Session = nil
	if withSession && account.Session != nil {
		session := *account.Session
		clone.Session = &session
	}
	return &clone
}

func (store *memoryAccounts) put(account *Account) {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.byID[account.ID] = cloneAccount(account, true)
}

func (store *memoryAccounts) session(id string) *ActiveSession {
	store.mu.Lock()
	defer store.mu.Unlock()
	account, ok := store.byID[id]
	if !ok || account.Session == nil {
		return nil
	}
	session := *account.Session
	return &session
}

func (store *memoryAccounts) mutate(id string, change func(account *Account)) {
	store.mu.Lock()
	defer store.mu.Unlock()
	change(store.byID[id])
}

func (store *memoryAccounts) get(id string) *Account {
	store.mu.Lock()
	defer store.mu.Unlock()
	return cloneAccount(store.byID[id], true)
}

func (store *memoryAccounts) FindByIdentifier(_ context.Context, identifier string) (*Account, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	for _, account := range store.byID {
		if account.Username == identifier || account.Email == identifier {
			return cloneAccount(account, false), nil
		}
	}
	return nil, apperr.NotFound("Account")
}

func (store *memoryAccounts) FindByID(_ context.Context, id string) (*Account, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	account, ok := store.byID[id]
	if !ok {
		return nil, apperr.NotFound("Account")
	}
	return cloneAccount(account, false), nil
}

func (store *memoryAccounts) FindByIDWithSession(_ context.Context, id string) (*Account, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	account, ok := store.byID[id]
	if !ok {
		return nil, apperr.NotFound("Account")
	}
	return cloneAccount(account, true), nil
}

func (store *memoryAccounts) ReplaceSession(_ context.Context, id string, next ActiveSession) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	if store.replaceErr != nil {
		return store.replaceErr
	}
	account, ok := store.byID[id]
	if !ok {
		return apperr.NotFound("Account")
	}
	account.Session = &next
	return nil
}

func (store *memoryAccounts) SwapSession(_ context.Context, id, expectedHash string, next ActiveSession) (bool, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	account, ok := store.byID[id]
	if !ok {
		return false, nil
	}
	if store.beforeSwap != nil {
		store.beforeSwap(account)
	}
	if account.Session == nil || account.Session.TokenHash != expectedHash {
		return false, nil
	}
	account.Session = &next
	return true, nil
}

func (store *memoryAccounts) ClearSession(_ context.Context, id string) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	if account, ok := store.byID[id]; ok {
		account.Session = nil
	}
	return nil
}

func (store *memoryAccounts) UpdatePassword(_ context.Context, id, passwordHash string) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	account, ok := store.byID[id]
	if !ok {
		return apperr.NotFound("Account")
	}
	account.PasswordHash = passwordHash
	account.MustChangePassword = false
	return nil
}

func (store *memoryAccounts) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	if account, ok := store.byID[id]; ok {
		account.LastLoginAt = &at
	}
	return nil
}

func (store *memoryAccounts) Create(_ context.Context, account *Account) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	for _, existing := range store.byID {
		if existing.Username == account.Username {
			return apperr.Conflict("username already exists")
		}
		if existing.Email == account.Email {
			return apperr.Conflict("email already exists")
		}
	}
	store.byID[account.ID] = cloneAccount(account, true)
	return nil
}

// # Role Store

type memoryRoles struct {
	roles []Role
}

func (store *memoryRoles) FindDefault(context.Context) ([]Role, error) {
	var found []Role
	for _, role := range store.roles {
		if role.IsDefault {
			found = append(found, role)
		}
	}
	return found, nil
}

func (store *memoryRoles) FindBySlugs(_ context.Context, slugs []string) ([]Role, error) {
	var found []Role
	for _, slug := range slugs {
		for _, role := range store.roles {
			if role.Slug == slug {
				found = append(found, role)
			}
		}
	}
	return found, nil
}

// # Failure Tracker

type memoryFailures struct {
	mu     sync.Mutex
	counts map[string]int64
}

func (tracker *memoryFailures) RecordFailure(_ context.Context, key string) (int64, error) {
	tracker.mu.Lock()
	defer tracker.mu.Unlock()
	tracker.counts[key]++
	return tracker.counts[key], nil
}

func (tracker *memoryFailures) Reset(_ context.Context, key string) error {
	tracker.mu.Lock()
	defer tracker.mu.Unlock()
	delete(tracker.counts, key)
	return nil
}

func (tracker *memoryFailures) count(key string) int64 {
	tracker.mu.Lock()
	defer tracker.mu.Unlock()
	return tracker.counts[key]
}

// # Audit

type recordingAudit struct {
	mu     sync.Mutex
	events []audit.Event
}

func (recorder *recordingAudit) Record(_ context.Context, event audit.Event) {
	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	recorder.events = append(recorder.events, event)
}

func (recorder *recordingAudit) snapshot() []audit.Event {
	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	return append([]audit.Event(nil), recorder.events...)
}

// # Fixture

const (
	testPassword = "Secret123"
	testGrace    = 10 * time.Second
	refreshTTL   = 7 * 24 * time.Hour
)

var (
	roleMember = Role{
		ID: "role-member", Slug: "member", Name: "Member",
		Permissions: []string{"posts.read", "comments.write"},
		Status:      RoleActive, IsDefault: true,
	}
	roleEditor = Role{
		ID: "role-editor", Slug: "editor", Name: "Editor",
		Permissions: []string{"posts.read", "posts.write"},
		Status:      RoleInactive,
	}
	roleAdmin = Role{
		ID: "role-admin", Slug: "admin", Name: "Admin",
		Permissions: []string{"accounts.create", "accounts.read"},
		Status:      RoleActive, IsSystem: true,
	}
	roleSuperAdmin = Role{
		ID: "role-super", Slug: "super-admin", Name: "Super Admin",
		Status: RoleActive, IsSystem: true,
	}
)

type fixture struct {
	service     *Service
	sessions    *SessionManager
	accounts    *memoryAccounts
	failures    *memoryFailures
	audit       *recordingAudit
	metrics     *metrics.Metrics
	clock       *fakeClock
	codec       *sec.TokenCodec
	tokenHasher *sec.TokenHasher
	passwords   sec.Hasher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}

	codec, err := sec.NewTokenCodec(sec.TokenCodecConfig{
		AccessSecret:  []byte(strings.Repeat("a", 32)),
		RefreshSecret: []byte(strings.Repeat("r", 32)),
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    refreshTTL,
		Issuer:        "gatekeep.test",
		Now:           clock.Now,
	})
	require.NoError(t, err)

	tokenHasher, err := sec.NewTokenHasher([]byte(strings.Repeat("k", 32)))
	require.NoError(t, err)

	fx := &fixture{
		accounts:    newMemoryAccounts(),
		failures:    &memoryFailures{counts: map[string]int64{}},
		audit:       &recordingAudit{},
		metrics:     metrics.New(),
		clock:       clock,
		codec:       codec,
		tokenHasher: tokenHasher,
		passwords:   sec.BcryptHasher{Cost: bcrypt.MinCost},
	}

	fx.sessions = NewSessionManager(fx.accounts, tokenHasher, SessionConfig{
		RefreshTTL:  refreshTTL,
		GracePeriod: testGrace,
		Now:         clock.Now,
	})

	fx.service, err = NewService(Deps{
		Accounts:  fx.accounts,
		Roles:     &memoryRoles{roles: []Role{roleMember, roleEditor, roleAdmin, roleSuperAdmin}},
		Sessions:  fx.sessions,
		Codec:     codec,
		Passwords: fx.passwords,
		Failures:  fx.failures,
		Audit:     fx.audit,
		Metrics:   fx.metrics,
	}, Config{FailureThreshold: 3, Now: clock.Now})
	require.NoError(t, err)

	return fx
}

// seed stores an account with testPassword and returns its id.
func (fx *fixture) seed(t *testing.T, username string, status AccountStatus, roles ...Role) string {
	t.Helper()

	hashed, err := fx.passwords.Hash(testPassword)
	require.NoError(t, err)

	account := &Account{
		ID:           "acc-" + username,
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: hashed,
		Status:       status,
		Roles:        roles,
		CreatedAt:    fx.clock.Now(),
		UpdatedAt:    fx.clock.Now(),
	}
	fx.accounts.put(account)
	return account.ID
}

func (fx *fixture) login(t *testing.T, username string) *LoginResult {
	t.Helper()

	result, err := fx.service.Login(context.Background(), LoginInput{
		Identifier: username,
		Password:   testPassword,
		IPAddress:  "203.0.113.7",
		UserAgent:  "test-agent",
	})
	require.NoError(t, err)
	return result
}

func (fx *fixture) refresh(token string) (*LoginResult, error) {
	return fx.service.Refresh(context.Background(), token, DeviceInfo{IPAddress: "203.0.113.7", UserAgent: "test-agent"})
}

func (fx *fixture) digest(t *testing.T, token string) string {
	t.Helper()
	digest, err := fx.tokenHasher.Hash(token)
	require.NoError(t, err)
	return digest
}
