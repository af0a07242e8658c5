// Package session orchestrates one edit session: instruction in, streamed
// generation out, proposals parsed and validated on a throttled cadence, and
// an atomic apply/undo at the end. The Session is the sole source of truth;
// observers are notified synchronously after each internal transition and
// never observe a mid-transition view.
//
// Lifecycle: idle -> thinking (instruction visible immediately) -> streaming
// (first fragment) -> ready (completion gate passes) -> applied or rejected;
// applied -> continuing -> streaming on accept-and-continue. Any state can
// reach error, which is terminal.
package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"redraft/cli/internal/faults"
	"redraft/cli/internal/fileio"
	"redraft/cli/internal/generate"
	"redraft/cli/internal/intent"
	"redraft/cli/internal/prompt"
	"redraft/cli/internal/proposal"
	"redraft/cli/internal/safety"
	"redraft/cli/internal/stream"
	"redraft/cli/internal/timeline"
	"redraft/cli/internal/txn"
)

// State is the session lifecycle state. Transitions are monotonic except
// StateError, which is reachable from any state and terminal.
type State int

const (
	StateIdle State = iota
	StateThinking
	StateStreaming
	StateReady
	StateApplied
	StateContinuing
	StateRejected
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateThinking:
		return "thinking"
	case StateStreaming:
		return "streaming"
	case StateReady:
		return "ready"
	case StateApplied:
		return "applied"
	case StateContinuing:
		return "continuing"
	case StateRejected:
		return "rejected"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Hooks are the session's observer interface. Each hook is called
// synchronously after the transition it reports; any hook may be nil.
type Hooks struct {
	OnStateChange     func(State)
	OnProposalsChange func([]View)
	OnTimelineAppend  func(timeline.Event)
}

// Options configures a session.
type Options struct {
	// FlushInterval is the stream throttle cadence; 0 uses the default.
	FlushInterval time.Duration
	// StateDir, when set, may carry a custom system prompt file.
	StateDir string
}

// View is one proposal as exposed to the caller: the proposal plus its
// current safety verdict. Blocked proposals are annotated, never hidden.
type View struct {
	proposal.Proposal
	Blocked     bool
	BlockReason string
}

// Session is one instruction -> proposals -> apply/reject lifecycle. Create
// with New, drive with Start, observe through Hooks and the accessors.
type Session struct {
	gen     generate.Generator
	store   fileio.Store
	manager *txn.Manager
	opts    Options
	hooks   Hooks

	recorder *timeline.Recorder

	mu          sync.Mutex
	instruction string
	intention   intent.Intent
	files       []fileio.Snapshot
	contents    map[string]string
	state       State
	errMsg      string
	raw         strings.Builder
	sawFragment bool
	proposals   []proposal.Proposal
	verdicts    []safety.Verdict
	rejections  []proposal.Rejection
	noOp        bool
	tx          *txn.Transaction
	baseCtx     context.Context
	cancel      context.CancelFunc
	throttle    *stream.Throttle
}

// New builds a session over the given files. The intent is classified from
// the instruction once, at creation.
func New(instruction string, files []fileio.Snapshot, gen generate.Generator, store fileio.Store, hooks Hooks, opts Options) *Session {
	return newSession(instruction, intent.Classify(instruction), files, gen, store, hooks, opts)
}

func newSession(instruction string, in intent.Intent, files []fileio.Snapshot, gen generate.Generator, store fileio.Store, hooks Hooks, opts Options) *Session {
	contents := make(map[string]string, len(files))
	for _, f := range files {
		contents[f.Path] = f.Content
	}
	s := &Session{
		gen:         gen,
		store:       store,
		manager:     txn.NewManager(store),
		opts:        opts,
		hooks:       hooks,
		instruction: instruction,
		intention:   in,
		files:       append([]fileio.Snapshot(nil), files...),
		contents:    contents,
		state:       StateIdle,
	}
	s.recorder = timeline.NewRecorder(hooks.OnTimelineAppend)
	return s
}

// Start begins generation. The session shows the instruction immediately by
// entering thinking before the first network byte. Start is a no-op unless
// the session is idle.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return
	}
	s.baseCtx = ctx
	s.mu.Unlock()

	s.recorder.Append(timeline.KindSessionStart, "session started", s.instruction)
	s.transition(StateThinking)
	s.launch(ctx)
}

// launch starts one generation round: a fresh throttle and a producer
// goroutine feeding it. Used by Start and by accept-and-continue.
func (s *Session) launch(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.cancel = cancel
	s.sawFragment = false
	s.raw.Reset()
	th := stream.NewThrottle(s.opts.FlushInterval, s.onSnapshot)
	s.throttle = th
	files := append([]fileio.Snapshot(nil), s.files...)
	instruction := s.instruction
	s.mu.Unlock()

	go func() {
		defer cancel()
		system, err := prompt.System(s.opts.StateDir)
		if err != nil {
			th.Close()
			s.fail(fmt.Errorf("load system prompt: %w", err))
			return
		}
		user := prompt.User(instruction, files)
		streamErr := s.gen.Stream(ctx, system, user, s.onFragment)
		th.Close() // final flush is synchronous; the last snapshot lands before the gate runs
		s.finish(ctx, streamErr)
	}()
}

// onFragment receives raw generation fragments on the producer goroutine.
func (s *Session) onFragment(fragment string) {
	s.mu.Lock()
	first := !s.sawFragment
	s.sawFragment = true
	s.raw.WriteString(fragment)
	th := s.throttle
	s.mu.Unlock()

	if first {
		s.transition(StateStreaming)
		s.recorder.Append(timeline.KindFirstToken, "first token received", "")
	}
	th.Write(fragment)
}

// onSnapshot re-parses the full accumulated snapshot, carries selection over
// by path, revalidates, and publishes the new proposal set. A later snapshot
// always supersedes the previous one wholesale.
func (s *Session) onSnapshot(snapshot string) {
	s.mu.Lock()
	files := s.contents
	// SetSelected mutates elements of s.proposals in place, so Reconcile must
	// read a copy taken under the lock.
	prev := append([]proposal.Proposal(nil), s.proposals...)
	in := s.intention
	s.mu.Unlock()

	result := proposal.Parse(snapshot, files)
	next := proposal.Reconcile(prev, result.Proposals)
	_, verdicts := safety.CheckAll(next, in, files)

	s.mu.Lock()
	if terminal(s.state) {
		s.mu.Unlock()
		return
	}
	s.proposals = next
	s.verdicts = verdicts
	s.rejections = result.Rejections
	s.noOp = result.NoOp
	views := s.viewsLocked()
	hook := s.hooks.OnProposalsChange
	s.mu.Unlock()

	if hook != nil {
		hook(views)
	}
}

// finish runs the completion gate once the stream has ended and its final
// snapshot has been parsed.
func (s *Session) finish(ctx context.Context, streamErr error) {
	s.mu.Lock()
	if s.state == StateError {
		s.mu.Unlock()
		return
	}
	in := gateInput{
		canceled:  ctx.Err() != nil,
		streamErr: streamErr,
		text:      s.raw.String(),
		parsed:    len(s.proposals),
		eligible:  s.eligibleCountLocked(),
		noOp:      s.noOp,
	}
	paths := make([]string, 0, len(s.proposals))
	for _, p := range s.proposals {
		paths = append(paths, p.Path)
	}
	count := len(s.proposals)
	s.mu.Unlock()

	if err := decide(in); err != nil {
		s.fail(err)
		return
	}
	s.transition(StateReady)
	desc := fmt.Sprintf("%d proposals ready", count)
	if in.noOp && count == 0 {
		desc = "no changes required"
	}
	s.recorder.Append(timeline.KindProposalsReady, desc, strings.Join(paths, ", "))
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ErrorMessage returns the terminal error message, or "".
func (s *Session) ErrorMessage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errMsg
}

// StreamingText returns the raw text accumulated so far.
func (s *Session) StreamingText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.raw.String()
}

// Instruction returns the user's request, retained for display and reuse.
func (s *Session) Instruction() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.instruction
}

// Intent returns the classification derived at creation.
func (s *Session) Intent() intent.Intent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.intention
}

// Proposals returns the current proposal views, blocked ones annotated.
func (s *Session) Proposals() []View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewsLocked()
}

// Rejections returns blocks that named a file but were malformed.
func (s *Session) Rejections() []proposal.Rejection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]proposal.Rejection(nil), s.rejections...)
}

// Timeline returns a copy of the session's event log.
func (s *Session) Timeline() []timeline.Event {
	return s.recorder.Events()
}

// SetSelected toggles a proposal's selection flag by id.
func (s *Session) SetSelected(id string, selected bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.proposals {
		if s.proposals[i].ID == id {
			s.proposals[i].Selected = selected
			return nil
		}
	}
	return fmt.Errorf("no proposal with id %s", id)
}

// AcceptSelected applies the requested eligible subset as one atomic
// transaction. Passing no ids applies every eligible proposal whose selection
// flag is set. Valid only in ready.
func (s *Session) AcceptSelected(ids []string) (*txn.Transaction, error) {
	tx, _, err := s.accept(ids)
	if err != nil {
		return nil, err
	}
	s.transition(StateApplied)
	applied := tx.Applied()
	s.recorder.Append(timeline.KindAccept,
		fmt.Sprintf("applied %d proposals", len(applied)), pathList(applied))
	return tx, nil
}

// AcceptSelectedAndContinue applies the subset, then starts a new internal
// generation round over the just-applied content under the same outward
// identity. The applied transaction is returned; it is complete on its own
// and is never merged with the continuation's.
func (s *Session) AcceptSelectedAndContinue(ids []string, nextInstruction string) (*txn.Transaction, error) {
	tx, ctx, err := s.accept(ids)
	if err != nil {
		return nil, err
	}
	s.transition(StateApplied)
	applied := tx.Applied()
	s.recorder.Append(timeline.KindAcceptContinue,
		fmt.Sprintf("applied %d proposals, continuing", len(applied)), pathList(applied))

	s.mu.Lock()
	if strings.TrimSpace(nextInstruction) != "" {
		s.instruction = nextInstruction
		s.intention = intent.Classify(nextInstruction)
	}
	// Fresh basis: the just-applied content becomes the new snapshots.
	files := make([]fileio.Snapshot, 0, len(s.files))
	for _, f := range s.files {
		files = append(files, fileio.Snapshot{
			Path:     f.Path,
			Content:  s.contents[f.Path],
			Language: f.Language,
		})
	}
	s.files = files
	s.proposals = nil
	s.verdicts = nil
	s.rejections = nil
	s.noOp = false
	s.tx = nil // continuation never merges transactions
	hook := s.hooks.OnProposalsChange
	s.mu.Unlock()
	if hook != nil {
		hook(nil)
	}

	s.transition(StateContinuing)
	s.launch(ctx)
	return tx, nil
}

// accept validates state and subset, applies atomically, and records the
// transaction. The caller performs the state transition and timeline entry.
func (s *Session) accept(ids []string) (*txn.Transaction, context.Context, error) {
	s.mu.Lock()
	if s.state != StateReady {
		s.mu.Unlock()
		return nil, nil, fmt.Errorf("accept is only valid in ready, not %s", s.state)
	}
	chosen, err := s.chooseLocked(ids)
	if err != nil {
		s.mu.Unlock()
		return nil, nil, err
	}
	ctx := s.baseCtx
	s.mu.Unlock()

	tx, err := s.manager.Apply(chosen)
	if err != nil {
		// Nothing was written; the session stays ready.
		return nil, nil, err
	}

	s.mu.Lock()
	s.tx = tx
	for _, p := range chosen {
		s.contents[p.Path] = p.Content
	}
	s.mu.Unlock()
	return tx, ctx, nil
}

// chooseLocked resolves ids to eligible proposals. Nil ids means every
// selected eligible proposal. Requesting a blocked or unknown id is an error.
func (s *Session) chooseLocked(ids []string) ([]proposal.Proposal, error) {
	blocked := make(map[string]bool, len(s.verdicts))
	for _, v := range s.verdicts {
		if v.Blocked {
			blocked[v.ProposalID] = true
		}
	}
	if ids == nil {
		var chosen []proposal.Proposal
		for _, p := range s.proposals {
			if p.Selected && !blocked[p.ID] {
				chosen = append(chosen, p)
			}
		}
		if len(chosen) == 0 {
			return nil, errors.New("no selected eligible proposals")
		}
		return chosen, nil
	}
	byID := make(map[string]proposal.Proposal, len(s.proposals))
	for _, p := range s.proposals {
		byID[p.ID] = p
	}
	chosen := make([]proposal.Proposal, 0, len(ids))
	for _, id := range ids {
		p, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("no proposal with id %s", id)
		}
		if blocked[id] {
			return nil, fmt.Errorf("proposal %s for %s is blocked: %s", id, p.Path, safety.BlockedReason)
		}
		chosen = append(chosen, p)
	}
	return chosen, nil
}

// RejectAll discards every proposal without a transaction. Valid only in ready.
func (s *Session) RejectAll() error {
	s.mu.Lock()
	if s.state != StateReady {
		s.mu.Unlock()
		return fmt.Errorf("reject is only valid in ready, not %s", s.state)
	}
	s.proposals = nil
	s.verdicts = nil
	hook := s.hooks.OnProposalsChange
	s.mu.Unlock()
	if hook != nil {
		hook(nil)
	}
	s.transition(StateRejected)
	s.recorder.Append(timeline.KindReject, "all proposals rejected", "")
	return nil
}

// Undo restores every file the last transaction touched to its pre-apply
// content. Valid only while applied; a second undo errors.
func (s *Session) Undo() error {
	s.mu.Lock()
	if s.state != StateApplied {
		s.mu.Unlock()
		return fmt.Errorf("undo is only valid in applied, not %s", s.state)
	}
	tx := s.tx
	s.mu.Unlock()
	if tx == nil {
		return errors.New("no transaction to undo")
	}
	if err := s.manager.Undo(tx); err != nil {
		return err
	}

	s.mu.Lock()
	for _, f := range s.files {
		s.contents[f.Path] = f.Content
	}
	s.mu.Unlock()
	s.recorder.Append(timeline.KindUndo,
		fmt.Sprintf("reverted %d files", len(tx.Applied())), pathList(tx.Applied()))
	return nil
}

// Cancel aborts an in-flight generation. The producer observes the canceled
// context and the gate lands the session in a terminal error state, never
// stuck in streaming. Cancel after completion is a no-op.
func (s *Session) Cancel() {
	s.mu.Lock()
	cancel := s.cancel
	active := s.state == StateThinking || s.state == StateStreaming || s.state == StateContinuing
	s.mu.Unlock()
	if active && cancel != nil {
		cancel()
	}
}

// ReuseIntent constructs a brand-new, independent session that replays this
// session's intent against new files. The instruction is rebuilt
// deterministically from (intent, files); identical inputs produce an
// identical instruction. The new session shares no state with this one.
func (s *Session) ReuseIntent(newFiles []fileio.Snapshot, hooks Hooks) *Session {
	in := s.Intent()
	ns := newSession(ReuseInstruction(in, newFiles), in, newFiles, s.gen, s.store, hooks, s.opts)
	ns.recorder.Append(timeline.KindIntentReused,
		fmt.Sprintf("intent %s reused", in), ns.instruction)
	return ns
}

// ReuseInstruction deterministically rebuilds an instruction from an intent
// and a file set: the intent's phrase plus the sorted file paths.
func ReuseInstruction(in intent.Intent, files []fileio.Snapshot) string {
	paths := make([]string, 0, len(files))
	for _, f := range files {
		paths = append(paths, f.Path)
	}
	sort.Strings(paths)
	return fmt.Sprintf("Apply %s to: %s", in.Phrase(), strings.Join(paths, ", "))
}

// retire takes the session out of play because a newer session replaced it.
// In-flight work is canceled into the terminal error state; pending proposals
// are rejected. Completed sessions are left as they ended.
func (s *Session) retire() {
	s.mu.Lock()
	state := s.state
	cancel := s.cancel
	s.mu.Unlock()

	switch state {
	case StateThinking, StateStreaming, StateContinuing:
		if cancel != nil {
			cancel()
		}
		s.fail(faults.New(faults.KindCanceled, "Session retired by a newer session.", nil))
	case StateIdle:
		s.fail(faults.New(faults.KindCanceled, "Session retired before it started.", nil))
	case StateReady:
		_ = s.RejectAll()
	}
}

// transition moves to st and notifies, unless the session already failed.
func (s *Session) transition(st State) {
	s.mu.Lock()
	if s.state == StateError || s.state == st {
		s.mu.Unlock()
		return
	}
	s.state = st
	hook := s.hooks.OnStateChange
	s.mu.Unlock()
	if hook != nil {
		hook(st)
	}
}

// fail enters the terminal error state with the fault's user-facing message.
func (s *Session) fail(err error) {
	s.mu.Lock()
	if s.state == StateError {
		s.mu.Unlock()
		return
	}
	s.state = StateError
	s.errMsg = err.Error()
	hook := s.hooks.OnStateChange
	s.mu.Unlock()

	detail := ""
	if cause := errors.Unwrap(err); cause != nil {
		detail = cause.Error()
	}
	s.recorder.Append(timeline.KindError, err.Error(), detail)
	if hook != nil {
		hook(StateError)
	}
}

func (s *Session) viewsLocked() []View {
	blocked := make(map[string]string, len(s.verdicts))
	for _, v := range s.verdicts {
		if v.Blocked {
			blocked[v.ProposalID] = v.Reason
		}
	}
	views := make([]View, 0, len(s.proposals))
	for _, p := range s.proposals {
		reason, isBlocked := blocked[p.ID]
		views = append(views, View{Proposal: p, Blocked: isBlocked, BlockReason: reason})
	}
	return views
}

func (s *Session) eligibleCountLocked() int {
	n := 0
	for _, v := range s.verdicts {
		if !v.Blocked {
			n++
		}
	}
	return n
}

func terminal(st State) bool {
	return st == StateError || st == StateRejected || st == StateApplied
}

func pathList(proposals []proposal.Proposal) string {
	paths := make([]string, 0, len(proposals))
	for _, p := range proposals {
		paths = append(paths, p.Path)
	}
	return strings.Join(paths, ", ")
}
