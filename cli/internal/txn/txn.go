// Package txn groups accepted proposals into one atomic, undoable
// transaction. Apply is all-or-nothing: if any write fails, every file
// already written is rolled back to its pre-apply content before the error is
// returned. Undo restores every touched file to its byte-identical pre-apply
// snapshot, removing files the apply created.
package txn

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"

	"redraft/cli/internal/fileio"
	"redraft/cli/internal/proposal"
)

// ErrReverted indicates the transaction was already undone.
var ErrReverted = errors.New("transaction already undone")

// preimage is one file's state before apply.
type preimage struct {
	content string
	existed bool
}

// Transaction is an applied, undoable group of proposals. Immutable once
// committed; Undo only flips the reverted flag.
type Transaction struct {
	id       string
	at       time.Time
	applied  []proposal.Proposal
	pre      map[string]preimage
	reverted bool
	mu       sync.Mutex
}

// ID returns the transaction identifier.
func (t *Transaction) ID() string { return t.id }

// At returns the commit timestamp.
func (t *Transaction) At() time.Time { return t.at }

// Applied returns a copy of the exact proposal set that was applied.
func (t *Transaction) Applied() []proposal.Proposal {
	out := make([]proposal.Proposal, len(t.applied))
	copy(out, t.applied)
	return out
}

// Reverted reports whether Undo has run.
func (t *Transaction) Reverted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reverted
}

// Manager applies and undoes transactions through a Store.
type Manager struct {
	store fileio.Store
}

// NewManager returns a Manager writing through store.
func NewManager(store fileio.Store) *Manager {
	return &Manager{store: store}
}

// Apply snapshots the pre-apply content of every touched file, then writes
// every replacement. On any write failure it restores the files already
// written and returns the error; no partial apply is ever left behind.
func (m *Manager) Apply(proposals []proposal.Proposal) (*Transaction, error) {
	if len(proposals) == 0 {
		return nil, errors.New("nothing to apply")
	}

	pre := make(map[string]preimage, len(proposals))
	for _, p := range proposals {
		content, err := m.store.Read(p.Path)
		switch {
		case err == nil:
			pre[p.Path] = preimage{content: content, existed: true}
		case isNotExist(err):
			pre[p.Path] = preimage{}
		default:
			return nil, fmt.Errorf("snapshot %s before apply: %w", p.Path, err)
		}
	}

	var written []string
	for _, p := range proposals {
		if err := m.store.Write(p.Path, p.Content); err != nil {
			m.restore(written, pre)
			return nil, fmt.Errorf("apply %s: %w (rolled back %d earlier writes)", p.Path, err, len(written))
		}
		written = append(written, p.Path)
	}

	t := &Transaction{
		id:      newID(),
		at:      time.Now(),
		applied: append([]proposal.Proposal(nil), proposals...),
		pre:     pre,
	}
	return t, nil
}

// Undo restores every file the transaction touched to its pre-apply state.
// A second Undo returns ErrReverted.
func (m *Manager) Undo(t *Transaction) error {
	if t == nil {
		return errors.New("no transaction to undo")
	}
	t.mu.Lock()
	if t.reverted {
		t.mu.Unlock()
		return ErrReverted
	}
	t.reverted = true
	t.mu.Unlock()

	paths := make([]string, 0, len(t.applied))
	for _, p := range t.applied {
		paths = append(paths, p.Path)
	}
	m.restore(paths, t.pre)
	return nil
}

// restore writes each path back to its preimage, removing files that did not
// exist before apply.
func (m *Manager) restore(paths []string, pre map[string]preimage) {
	for _, path := range paths {
		img := pre[path]
		if img.existed {
			_ = m.store.Write(path, img.content)
		} else {
			_ = m.store.Remove(path)
		}
	}
}

func isNotExist(err error) bool {
	return os.IsNotExist(err) || errors.Is(err, fs.ErrNotExist)
}

// newID returns a random 16-hex transaction id.
func newID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
