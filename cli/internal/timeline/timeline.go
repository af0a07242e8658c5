// Package timeline provides the per-session append-only event log. Events are
// display and diagnostics only; nothing reads them back for control flow.
// Entries are never mutated after insertion and are discarded with the session.
package timeline

import (
	"sync"
	"time"
)

// Kind names the event type. The set mirrors the session lifecycle.
type Kind string

const (
	KindSessionStart   Kind = "session-start"
	KindFirstToken     Kind = "first-token"
	KindProposalsReady Kind = "proposals-ready"
	KindAccept         Kind = "accept"
	KindAcceptContinue Kind = "accept-and-continue"
	KindReject         Kind = "reject"
	KindIntentReused   Kind = "intent-reused"
	KindUndo           Kind = "undo"
	KindError          Kind = "error"
)

// Event is one timeline entry. Detail is optional free-form context
// (file list, error cause) not needed on the primary line.
type Event struct {
	ID          int
	At          time.Time
	Kind        Kind
	Description string
	Detail      string
}

// Recorder is an append-only event log. The optional onAppend hook is called
// synchronously after each insertion, outside the lock.
type Recorder struct {
	mu       sync.Mutex
	events   []Event
	nextID   int
	onAppend func(Event)
	now      func() time.Time
}

// NewRecorder returns a Recorder. onAppend may be nil.
func NewRecorder(onAppend func(Event)) *Recorder {
	return &Recorder{nextID: 1, onAppend: onAppend, now: time.Now}
}

// Append inserts an event and returns it. IDs are assigned sequentially from 1.
func (r *Recorder) Append(kind Kind, description, detail string) Event {
	r.mu.Lock()
	ev := Event{
		ID:          r.nextID,
		At:          r.now(),
		Kind:        kind,
		Description: description,
		Detail:      detail,
	}
	r.nextID++
	r.events = append(r.events, ev)
	hook := r.onAppend
	r.mu.Unlock()
	if hook != nil {
		hook(ev)
	}
	return ev
}

// Events returns a copy of all entries in insertion order.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Len returns the number of entries.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}
