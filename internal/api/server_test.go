// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/taibuivan/gatekeep/internal/platform/config"
	"github.com/taibuivan/gatekeep/internal/platform/constants"
	"github.com/taibuivan/gatekeep/internal/platform/metrics"
	"github.com/taibuivan/gatekeep/internal/platform/sec"
	"github.com/taibuivan/gatekeep/internal/system/audit"
	"github.com/taibuivan/gatekeep/internal/users/auth"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, deps HealthDependencies) (*Server, *metrics.Metrics) {
	t.Helper()

	codec, err := sec.NewTokenCodec(sec.TokenCodecConfig{
		AccessSecret:  []byte(strings.Repeat("a", 32)),
		RefreshSecret: []byte(strings.Repeat("r", 32)),
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
		Issuer:        constants.AuthIssuer,
	})
	require.NoError(t, err)

	tokenHasher, err := sec.NewTokenHasher([]byte(strings.Repeat("k", 32)))
	require.NoError(t, err)

	collector := metrics.New()
	// The stores are never reached by these requests.
	accounts := auth.NewAccountRepository(nil)
	sessions := auth.NewSessionManager(accounts, tokenHasher, auth.SessionConfig{RefreshTTL: time.Hour})
	service, err := auth.NewService(auth.Deps{
		Accounts:  accounts,
		Roles:     auth.NewRoleRepository(nil),
		Sessions:  sessions,
		Codec:     codec,
		Passwords: sec.BcryptHasher{Cost: bcrypt.MinCost},
		Audit:     audit.NopRecorder{},
		Metrics:   collector,
	}, auth.Config{})
	require.NoError(t, err)

	liveness, readiness := NewHealthHandlers(deps, discardLogger())
	cfg := &config.Config{ServerPort: "0", Environment: "production", AllowedOriginSuffix: "gatekeep.app"}

	server := NewServer(cfg, discardLogger(), collector, Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Auth:      auth.NewHandler(service, codec, true),
	})
	return server, collector
}

func serve(server *Server, method, path string, header http.Header) *httptest.ResponseRecorder {
	request := httptest.NewRequest(method, path, nil)
	for name, values := range header {
		request.Header[name] = values
	}
	recorder := httptest.NewRecorder()
	server.Handler().ServeHTTP(recorder, request)
	return recorder
}

func TestServer_Liveness(t *testing.T) {
	server, _ := newTestServer(t, HealthDependencies{})

	recorder := serve(server, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.JSONEq(t, `{"data":{"status":"ok"}}`, recorder.Body.String())
	assert.NotEmpty(t, recorder.Header().Get(constants.HeaderXRequestID))
}

func TestServer_ReadinessReportsDegradedDependency(t *testing.T) {
	server, _ := newTestServer(t, HealthDependencies{
		CheckDatabase: func() error { return nil },
		CheckCache:    func() error { return errors.New("connection refused") },
	})

	recorder := serve(server, http.MethodGet, "/ready", nil)

	assert.Equal(t, http.StatusServiceUnavailable, recorder.Code)
	assert.JSONEq(t, `{"data":{"status":"degraded","checks":[
		{"name":"postgres","ok":true},
		{"name":"redis","ok":false,"error":"connection refused"}
	]}}`, recorder.Body.String())
}

func TestServer_ReadinessAllHealthy(t *testing.T) {
	server, _ := newTestServer(t, HealthDependencies{
		CheckDatabase: func() error { return nil },
		CheckCache:    func() error { return nil },
	})

	recorder := serve(server, http.MethodGet, "/ready", nil)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), `"status":"ready"`)
}

func TestServer_AuthGateRejectsAnonymousContext(t *testing.T) {
	server, _ := newTestServer(t, HealthDependencies{})

	recorder := serve(server, http.MethodGet, constants.AuthRoutePrefix+"/me", nil)

	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestServer_CORSRestrictsOriginsOutsideDevelopment(t *testing.T) {
	server, _ := newTestServer(t, HealthDependencies{})

	allowed := serve(server, http.MethodOptions, "/health", http.Header{constants.HeaderOrigin: {"https://app.gatekeep.app"}})
	assert.Equal(t, http.StatusNoContent, allowed.Code)
	assert.Equal(t, "https://app.gatekeep.app", allowed.Header().Get("Access-Control-Allow-Origin"))

	denied := serve(server, http.MethodOptions, "/health", http.Header{constants.HeaderOrigin: {"https://evil.example"}})
	assert.Empty(t, denied.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_ExposesMetrics(t *testing.T) {
	server, collector := newTestServer(t, HealthDependencies{})
	collector.ObserveLogin("success")

	recorder := serve(server, http.MethodGet, "/metrics", nil)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), `auth_login_total{outcome="success"} 1`)
}
