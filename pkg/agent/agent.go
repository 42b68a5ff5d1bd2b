// SPDX-FileCopyrightText: 2026 The clawtell-go Authors
//
// SPDX-License-Identifier: MIT

package agent

import (
	"errors"
	"sync"

	"github.com/hashicorp/go-multierror"
)

// ErrNoSink is returned by a MuxSink without registered children. A failed
// delivery keeps the message unacknowledged, so it is not lost while no
// consumer is attached.
var ErrNoSink = errors.New("no sink registered")

// Sink consumes messages a gateway has reconciled from its inbound paths.
// Deliver is invoked at most once per distinct message id within the
// gateway's deduplication window. A non-nil error signals the gateway to
// leave the message unacknowledged so it may be delivered again.
//
// Deliver may be called concurrently, both from the webhook path and the
// poll loop.
type Sink interface {
	Deliver(msg Message) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Message) error

func (f SinkFunc) Deliver(msg Message) error {
	return f(msg)
}

// MuxSink fans each delivered message out to all registered child Sinks.
type MuxSink struct {
	mutex sync.Mutex
	sinks []Sink
}

// NewMuxSink creates a MuxSink for the given children.
func NewMuxSink(sinks ...Sink) *MuxSink {
	return &MuxSink{sinks: sinks}
}

// Register adds another child Sink.
func (mux *MuxSink) Register(sink Sink) {
	mux.mutex.Lock()
	defer mux.mutex.Unlock()

	mux.sinks = append(mux.sinks, sink)
}

// Deliver forwards msg to every child. Failures are aggregated; a MuxSink
// without children fails with ErrNoSink.
func (mux *MuxSink) Deliver(msg Message) error {
	mux.mutex.Lock()
	sinks := make([]Sink, len(mux.sinks))
	copy(sinks, mux.sinks)
	mux.mutex.Unlock()

	if len(sinks) == 0 {
		return ErrNoSink
	}

	var result *multierror.Error
	for _, sink := range sinks {
		if err := sink.Deliver(msg); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
