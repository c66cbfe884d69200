package session

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/quill/internal/prompt"
)

// scheduleLocked restarts the debounce timer. Requires s.mu.
func (s *Session) scheduleLocked() {
	s.stopTimerLocked()
	gen := s.gen
	s.timer = time.AfterFunc(s.delay, func() { s.autosave(gen) })
}

func (s *Session) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// autosave runs when the debounce timer fires. At most one content save
// is in flight; a timer that fires during a save is re-armed once the
// save completes.
func (s *Session) autosave(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || !s.open {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	if s.saving {
		s.resave = true
		s.mu.Unlock()
		return
	}
	if s.buffer == s.lastSaved {
		s.mu.Unlock()
		return
	}
	_ = s.saveLocked(context.Background())
	s.mu.Unlock()
}

// Flush saves the buffer now if it has unsaved edits, waiting for an
// in-flight save first. It returns the save error, if any.
func (s *Session) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		if !s.open {
			return nil
		}
		if !s.saving {
			break
		}
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
	s.stopTimerLocked()
	if s.buffer == s.lastSaved {
		return nil
	}
	return s.saveLocked(ctx)
}

// saveLocked saves the current buffer. It is called with s.mu held and
// no save in flight; the lock is released around the backend call and
// held again on return.
func (s *Session) saveLocked(ctx context.Context) error {
	gen := s.gen
	id := s.id
	content := s.buffer
	s.saving = true
	s.resave = false
	done := make(chan struct{})
	s.inflight = done

	s.mu.Unlock()
	ref, err := s.backend.UpdateContent(ctx, id, content)
	s.mu.Lock()

	s.saving = false
	close(done)

	if err != nil {
		s.logger.Warn("autosave failed", zap.String("id", id), zap.Error(err))
		s.emit(failureNotice(NoticeSaveFailed, id, err))
	} else {
		if gen == s.gen {
			s.lastSaved = content
		}
		s.emit(savedNotice(id, ref))
	}

	if gen == s.gen && s.open && s.resave {
		s.resave = false
		s.scheduleLocked()
	}
	return err
}

func savedNotice(id string, ref prompt.VersionRef) Notice {
	return Notice{Kind: NoticeSaved, ID: id, Snapshot: ref.SnapshotID}
}
