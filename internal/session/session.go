// Package session implements the editor-side state for one open prompt:
// a text buffer with undo and redo, debounced autosave, and immediate tag
// saves. A Session holds no durable state; everything it saves goes
// through its Backend. Sessions are independent values and share nothing.
package session

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/quill/internal/prompt"
)

// DefaultAutosaveDelay is the quiet period before an edit is saved.
const DefaultAutosaveDelay = 900 * time.Millisecond

// State is the lifecycle state of a session.
type State int

const (
	StateClosed State = iota
	StateLoaded       // buffer equals the last saved content
	StateDirty        // buffer differs from the last saved content
	StateSaving       // a content save is in flight
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateLoaded:
		return "loaded"
	case StateDirty:
		return "dirty"
	case StateSaving:
		return "saving"
	default:
		return "unknown"
	}
}

// ErrNotOpen is returned by operations that need an open prompt.
var ErrNotOpen = stderrors.New("no prompt is open")

// Session edits one prompt at a time.
type Session struct {
	backend  Backend
	taxonomy *prompt.Taxonomy
	delay    time.Duration
	logger   *zap.Logger
	notices  chan Notice

	mu        sync.Mutex
	open      bool
	gen       uint64 // bumped on open and close; stale timers and saves check it
	id        string
	buffer    string
	lastSaved string
	tags      []string
	undo      []string
	redo      []string
	timer     *time.Timer
	saving    bool
	resave    bool          // autosave fired while a save was in flight
	inflight  chan struct{} // closed when the in-flight save finishes

	tagMu sync.Mutex // serializes tag saves
}

// Option configures a Session.
type Option func(*Session)

// WithAutosaveDelay sets the debounce delay.
func WithAutosaveDelay(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.delay = d
		}
	}
}

// WithTaxonomy sets the exclusive tag groups used by SelectTag.
func WithTaxonomy(t *prompt.Taxonomy) Option {
	return func(s *Session) {
		if t != nil {
			s.taxonomy = t
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithNoticeBuffer sets the capacity of the Notices channel.
func WithNoticeBuffer(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.notices = make(chan Notice, n)
		}
	}
}

// New returns a closed session driving backend.
func New(backend Backend, opts ...Option) *Session {
	s := &Session{
		backend:  backend,
		taxonomy: prompt.DefaultTaxonomy(),
		delay:    DefaultAutosaveDelay,
		logger:   zap.NewNop(),
		notices:  make(chan Notice, 32),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Notices delivers user-visible outcomes. Notices are dropped when the
// channel is full rather than blocking the session.
func (s *Session) Notices() <-chan Notice {
	return s.notices
}

// Taxonomy returns the tag groups the session enforces.
func (s *Session) Taxonomy() *prompt.Taxonomy {
	return s.taxonomy
}

// Open loads a prompt. A prompt already open is closed first, which saves
// any unsaved edits; if that save fails the old prompt stays open until it
// is saved or discarded.
func (s *Session) Open(ctx context.Context, id string) error {
	if err := s.Close(ctx); err != nil {
		return err
	}

	content, err := s.backend.ReadContent(ctx, id)
	if err != nil {
		return err
	}
	rec, err := s.backend.ReadMetadata(ctx, id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.open = true
	s.id = id
	s.buffer = content
	s.lastSaved = content
	s.tags = prompt.NormalizeTags(rec.Tags)
	s.undo = nil
	s.redo = nil
	s.resave = false
	s.emit(Notice{Kind: NoticeLoaded, ID: id})
	return nil
}

// Close saves pending edits and returns the session to Closed, dropping
// the undo and redo stacks. Closing a closed session is a no-op.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if err := s.Flush(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
	return nil
}

// Discard returns the session to Closed without saving, dropping unsaved
// edits. It waits for a save already in flight and ignores its outcome.
// Use it to leave a prompt whose saves keep failing.
func (s *Session) Discard(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return nil
	}
	s.stopTimerLocked()
	s.gen++
	for s.saving {
		done := s.inflight
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			s.mu.Lock()
			return ctx.Err()
		}
		s.mu.Lock()
	}
	if s.open {
		s.logger.Info("discarding unsaved edits", zap.String("id", s.id), zap.Bool("dirty", s.buffer != s.lastSaved))
	}
	s.resetLocked()
	return nil
}

func (s *Session) resetLocked() {
	s.stopTimerLocked()
	s.gen++
	s.open = false
	s.id = ""
	s.buffer = ""
	s.lastSaved = ""
	s.tags = nil
	s.undo = nil
	s.redo = nil
	s.resave = false
}

// State reports the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Session) stateLocked() State {
	switch {
	case !s.open:
		return StateClosed
	case s.saving:
		return StateSaving
	case s.buffer != s.lastSaved:
		return StateDirty
	default:
		return StateLoaded
	}
}

// ID returns the open prompt's identifier, or "".
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Buffer returns the current editor text.
func (s *Session) Buffer() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buffer
}

// LastSaved returns the content most recently confirmed by the backend.
func (s *Session) LastSaved() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSaved
}

// Tags returns a copy of the current tag set.
func (s *Session) Tags() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.tags...)
}

// CanUndo reports whether Undo would change the buffer.
func (s *Session) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.undo) > 0
}

// CanRedo reports whether Redo would change the buffer.
func (s *Session) CanRedo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.redo) > 0
}
