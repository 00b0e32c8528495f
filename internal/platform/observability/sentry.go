// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package observability wires the external error reporter.
//
// Reporting is optional: with an empty DSN the SDK is never initialised and every
// capture call in the codebase degrades to a no-op.
package observability

import (
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/taibuivan/gatekeep/internal/platform/constants"
)

// flushTimeout bounds how long shutdown waits for buffered events.
const flushTimeout = 2 * time.Second

// InitSentry initialises the global Sentry client. An empty dsn disables reporting.
func InitSentry(dsn, environment string) error {
	if dsn == "" {
		return nil
	}

	return sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		Release:          constants.AppName + "@" + constants.AppVersion,
		AttachStacktrace: true,
	})
}

// FlushSentry delivers buffered events before the process exits.
func FlushSentry() {
	sentry.Flush(flushTimeout)
}

// CaptureSecurityEvent reports a credential-compromise signal with identifying tags.
func CaptureSecurityEvent(message string, tags map[string]string) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentry.LevelWarning)
		scope.SetTags(tags)
		sentry.CaptureMessage(message)
	})
}
