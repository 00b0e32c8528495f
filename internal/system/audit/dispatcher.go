// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package audit

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// writeTimeout bounds a single sink write.
const writeTimeout = 5 * time.Second

// Dispatcher asynchronously forwards events to a [Sink].
//
// Record never blocks: when the buffer is full the event is dropped and counted.
// Sink errors are logged and swallowed.
type Dispatcher struct {
	sink      Sink
	logger    *slog.Logger
	events    chan Event
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

// NewDispatcher starts the background writer.
func NewDispatcher(sink Sink, bufferSize int, logger *slog.Logger) *Dispatcher {
	if bufferSize <= 0 {
		bufferSize = 1
	}

	dispatcher := &Dispatcher{
		sink:   sink,
		logger: logger,
		events: make(chan Event, bufferSize),
		done:   make(chan struct{}),
	}

	dispatcher.wg.Add(1)
	go dispatcher.run()

	return dispatcher
}

func (dispatcher *Dispatcher) run() {
	defer dispatcher.wg.Done()

	for {
		select {
		case event := <-dispatcher.events:
			dispatcher.write(event)
		case <-dispatcher.done:
			// Drain what was accepted before Close.
			for {
				select {
				case event := <-dispatcher.events:
					dispatcher.write(event)
				default:
					return
				}
			}
		}
	}
}

func (dispatcher *Dispatcher) write(event Event) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := dispatcher.sink.Write(ctx, event); err != nil {
		dispatcher.logger.Error("audit_write_failed",
			slog.String("action", string(event.Action)),
			slog.String("event_id", event.ID),
			slog.Any("error", err),
		)
	}
}

// Record enqueues event, filling ID and CreatedAt when empty.
func (dispatcher *Dispatcher) Record(_ context.Context, event Event) {
	if dispatcher == nil || dispatcher.closed.Load() {
		return
	}

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	if event.ID == "" {
		event.ID = NewID(event.CreatedAt)
	}

	select {
	case dispatcher.events <- event:
	case <-dispatcher.done:
	default:
		if dispatcher.dropped.Add(1) == 1 {
			dispatcher.logger.Warn("audit_buffer_full_dropping_events")
		}
	}
}

// Dropped reports how many events were discarded because the buffer was full.
func (dispatcher *Dispatcher) Dropped() uint64 {
	if dispatcher == nil {
		return 0
	}
	return dispatcher.dropped.Load()
}

// Close stops accepting events and waits for the buffer to drain.
func (dispatcher *Dispatcher) Close() {
	if dispatcher == nil {
		return
	}
	dispatcher.closeOnce.Do(func() {
		dispatcher.closed.Store(true)
		close(dispatcher.done)
		dispatcher.wg.Wait()
	})
}
