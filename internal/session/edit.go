package session

// Edit replaces the buffer. The previous buffer is pushed onto the undo
// stack unless it equals the top entry, the redo stack is cleared and the
// autosave timer restarts.
func (s *Session) Edit(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return ErrNotOpen
	}
	if text == s.buffer {
		return nil
	}

	if n := len(s.undo); n == 0 || s.undo[n-1] != s.buffer {
		s.undo = append(s.undo, s.buffer)
	}
	s.redo = nil
	s.buffer = text
	s.scheduleLocked()
	return nil
}

// RestoreSnapshot loads archived content into the buffer as an ordinary
// edit, so it can be undone and is saved by autosave.
func (s *Session) RestoreSnapshot(content string) error {
	return s.Edit(content)
}

// Undo restores the previous buffer. It reports false when there is
// nothing to undo.
func (s *Session) Undo() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return false, ErrNotOpen
	}
	n := len(s.undo)
	if n == 0 {
		return false, nil
	}
	s.redo = append(s.redo, s.buffer)
	s.buffer = s.undo[n-1]
	s.undo = s.undo[:n-1]
	s.scheduleLocked()
	return true, nil
}

// Redo reapplies the most recently undone buffer.
func (s *Session) Redo() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return false, ErrNotOpen
	}
	n := len(s.redo)
	if n == 0 {
		return false, nil
	}
	s.undo = append(s.undo, s.buffer)
	s.buffer = s.redo[n-1]
	s.redo = s.redo[:n-1]
	s.scheduleLocked()
	return true, nil
}
