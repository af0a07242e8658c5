package session

import (
	"context"
	"errors"
	"sync"

	"redraft/cli/internal/fileio"
	"redraft/cli/internal/generate"
)

// Desk owns the single active session for one editing context. Starting a
// new session — including intent reuse — implicitly retires the previous one,
// which also guarantees a transaction's exclusive ownership of its files
// during apply.
type Desk struct {
	gen   generate.Generator
	store fileio.Store
	opts  Options

	mu      sync.Mutex
	current *Session
}

// NewDesk wires a desk over a generator and file store.
func NewDesk(gen generate.Generator, store fileio.Store, opts Options) *Desk {
	return &Desk{gen: gen, store: store, opts: opts}
}

// Start retires the current session (if any), creates a new one over the
// given paths, and begins generation.
func (d *Desk) Start(ctx context.Context, instruction string, paths []string, hooks Hooks) (*Session, error) {
	files, err := fileio.Load(d.store, paths)
	if err != nil {
		return nil, err
	}
	s := New(instruction, files, d.gen, d.store, hooks, d.opts)
	d.swap(s)
	s.Start(ctx)
	return s, nil
}

// Reuse replays the current session's intent against new files as a fresh,
// independent session, retiring the originating one.
func (d *Desk) Reuse(ctx context.Context, paths []string, hooks Hooks) (*Session, error) {
	d.mu.Lock()
	prev := d.current
	d.mu.Unlock()
	if prev == nil {
		return nil, errors.New("no session to reuse")
	}
	files, err := fileio.Load(d.store, paths)
	if err != nil {
		return nil, err
	}
	s := prev.ReuseIntent(files, hooks)
	d.swap(s)
	s.Start(ctx)
	return s, nil
}

// Current returns the active session, or nil.
func (d *Desk) Current() *Session {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current
}

func (d *Desk) swap(next *Session) {
	d.mu.Lock()
	prev := d.current
	d.current = next
	d.mu.Unlock()
	if prev != nil {
		prev.retire()
	}
}
