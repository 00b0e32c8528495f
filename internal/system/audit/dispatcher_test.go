// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package audit_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/gatekeep/internal/system/audit"
)

type memorySink struct {
	mu      sync.Mutex
	events  []audit.Event
	err     error
	release chan struct{}
}

func (sink *memorySink) Write(_ context.Context, event audit.Event) error {
	if sink.release != nil {
		<-sink.release
	}
	sink.mu.Lock()
	defer sink.mu.Unlock()
	sink.events = append(sink.events, event)
	return sink.err
}

func (sink *memorySink) snapshot() []audit.Event {
	sink.mu.Lock()
	defer sink.mu.Unlock()
	return append([]audit.Event(nil), sink.events...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

/*
TestDispatcher_DrainsOnClose verifies accepted events reach the sink and receive ids.
*/
func TestDispatcher_DrainsOnClose(t *testing.T) {
	sink := &memorySink{}
	dispatcher := audit.NewDispatcher(sink, 16, discardLogger())

	for i := 0; i < 5; i++ {
		dispatcher.Record(context.Background(), audit.Event{Action: audit.ActionLogin, Outcome: audit.OutcomeSuccess})
	}
	dispatcher.Close()

	events := sink.snapshot()
	require.Len(t, events, 5)
	for _, event := range events {
		assert.Len(t, event.ID, 26)
		assert.False(t, event.CreatedAt.IsZero())
	}

	// Closed dispatchers ignore further events.
	dispatcher.Record(context.Background(), audit.Event{Action: audit.ActionLogout})
	assert.Len(t, sink.snapshot(), 5)
}

/*
TestDispatcher_DropsWhenFull verifies Record never blocks on a stalled sink.
*/
func TestDispatcher_DropsWhenFull(t *testing.T) {
	sink := &memorySink{release: make(chan struct{})}
	dispatcher := audit.NewDispatcher(sink, 1, discardLogger())

	// One event may be in flight in the writer, one in the buffer; the rest drop.
	for i := 0; i < 10; i++ {
		dispatcher.Record(context.Background(), audit.Event{Action: audit.ActionRefresh})
	}

	assert.GreaterOrEqual(t, dispatcher.Dropped(), uint64(8))

	close(sink.release)
	dispatcher.Close()
}

/*
TestDispatcher_SwallowsSinkErrors logs failures without surfacing them.
*/
func TestDispatcher_SwallowsSinkErrors(t *testing.T) {
	var buffer bytes.Buffer
	sink := &memorySink{err: errors.New("disk full")}
	dispatcher := audit.NewDispatcher(sink, 4, slog.New(slog.NewJSONHandler(&buffer, nil)))

	assert.NotPanics(t, func() {
		dispatcher.Record(context.Background(), audit.Event{Action: audit.ActionLogin, Outcome: audit.OutcomeFailure})
	})
	dispatcher.Close()

	assert.Contains(t, buffer.String(), "audit_write_failed")
	assert.Contains(t, buffer.String(), "disk full")
}

func TestNilDispatcher(t *testing.T) {
	var dispatcher *audit.Dispatcher
	assert.NotPanics(t, func() {
		dispatcher.Record(context.Background(), audit.Event{})
		dispatcher.Close()
	})
	assert.Zero(t, dispatcher.Dropped())
}
