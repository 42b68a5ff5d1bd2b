// SPDX-FileCopyrightText: 2026 The clawtell-go Authors
//
// SPDX-License-Identifier: MIT

package gateway

import "sync"

// DefaultWindowSize is the default capacity of a Window.
const DefaultWindowSize = 1000

// Window is the bounded memory of message ids already surfaced to the
// consumer. Once the capacity is exceeded the oldest id is evicted, so
// memory stays bounded under indefinite runtime. The trade-off is
// deliberate: a duplicate older than the eviction horizon is treated as
// new and may re-surface.
//
// A Window is safe for concurrent use; one instance is shared between the
// webhook receiver and the poll loop.
type Window struct {
	mutex sync.Mutex

	capacity int
	ids      map[string]struct{}
	order    []string
}

// NewWindow creates a Window holding up to capacity ids. A non-positive
// capacity falls back to DefaultWindowSize.
func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = DefaultWindowSize
	}

	return &Window{
		capacity: capacity,
		ids:      make(map[string]struct{}, capacity),
	}
}

// Seen reports whether id is still tracked.
func (w *Window) Seen(id string) bool {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	_, ok := w.ids[id]
	return ok
}

// Add records id as surfaced, evicting the oldest tracked id if the
// capacity is exceeded. Adding an already tracked id is a no-op.
func (w *Window) Add(id string) {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	w.add(id)
}

// TryReserve atomically records id and reports whether it was previously
// untracked. Exactly one of multiple concurrent reservations for the same
// id wins; the losers must treat the message as a duplicate. A winner
// whose handoff fails afterwards calls Release so the id may surface on a
// later delivery.
func (w *Window) TryReserve(id string) bool {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if _, ok := w.ids[id]; ok {
		return false
	}

	w.add(id)
	return true
}

// Release forgets a reserved id after a failed handoff.
func (w *Window) Release(id string) {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if _, ok := w.ids[id]; !ok {
		return
	}

	delete(w.ids, id)
	for i := len(w.order) - 1; i >= 0; i-- {
		if w.order[i] == id {
			w.order = append(w.order[:i], w.order[i+1:]...)
			return
		}
	}
}

func (w *Window) add(id string) {
	if _, ok := w.ids[id]; ok {
		return
	}

	w.ids[id] = struct{}{}
	w.order = append(w.order, id)

	if len(w.order) > w.capacity {
		oldest := w.order[0]
		w.order = w.order[1:]
		delete(w.ids, oldest)
	}
}

// Len returns the number of currently tracked ids.
func (w *Window) Len() int {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	return len(w.order)
}
