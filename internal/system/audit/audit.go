// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package audit records the authentication history of every account.

Writes are fire-and-forget: the [Dispatcher] hands events to a background goroutine
and a failed or dropped write never reaches the caller's flow.
*/
package audit

import (
	"context"
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// Action names the flow that produced an event.
type Action string

const (
	ActionLogin          Action = "auth.login"
	ActionLogout         Action = "auth.logout"
	ActionRefresh        Action = "auth.refresh"
	ActionChangePassword Action = "auth.change_password"
	ActionRegister       Action = "auth.register"
	ActionProvision      Action = "auth.provision"
)

// Outcome is the terminal result of the flow.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Event is a single audit record.
type Event struct {
	ID        string
	ActorID   string
	Action    Action
	Outcome   Outcome
	Reason    string
	Subject   string
	IPAddress string
	UserAgent string
	CreatedAt time.Time
}

// Sink persists events. Implementations may block; the [Dispatcher] isolates callers.
type Sink interface {
	Write(ctx context.Context, event Event) error
}

// Recorder is the capability services depend on.
type Recorder interface {
	Record(ctx context.Context, event Event)
}

// NopRecorder discards every event.
type NopRecorder struct{}

// Record implements [Recorder].
func (NopRecorder) Record(context.Context, Event) {}

// NewID returns a lexicographically sortable event id (26 chars).
func NewID(now time.Time) string {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	return ulid.MustNew(ulid.Timestamp(now), rand.Reader).String()
}
