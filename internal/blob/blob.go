// Package blob is the content store: one file per prompt identifier holding
// its current text. It knows nothing about versions or metadata.
package blob

import (
	stderrors "errors"
	"io"
	"os"
	"path/filepath"

	"github.com/hpungsan/quill/internal/errors"
	"github.com/hpungsan/quill/internal/fsutil"
	"github.com/hpungsan/quill/internal/prompt"
)

// Store maps identifiers to files inside dir.
type Store struct {
	dir string
}

// New creates the store directory if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, errors.NewIOFailure("create prompt directory", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the directory blobs are stored in.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) path(id string) (string, error) {
	if err := prompt.ValidateID(id); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, id), nil
}

// Read returns the current content for id.
func (s *Store) Read(id string) (string, error) {
	p, err := s.path(id)
	if err != nil {
		return "", err
	}

	f, err := fsutil.OpenNoFollowRead(p)
	if err != nil {
		if stderrors.Is(err, os.ErrNotExist) {
			return "", errors.NewNotFound(id)
		}
		return "", errors.NewIOFailure("read "+id, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return "", errors.NewIOFailure("read "+id, err)
	}
	return string(data), nil
}

// Exists reports whether a blob for id is present.
func (s *Store) Exists(id string) (bool, error) {
	p, err := s.path(id)
	if err != nil {
		return false, err
	}
	_, err = os.Lstat(p)
	switch {
	case err == nil:
		return true, nil
	case stderrors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, errors.NewIOFailure("stat "+id, err)
	}
}

// Write replaces the content for id. created is true when no blob existed
// before the call. The write goes to a temp file in the same directory that
// is synced and renamed over the target, so readers see old or new content
// and never a torn file.
func (s *Store) Write(id, content string) (created bool, err error) {
	p, err := s.path(id)
	if err != nil {
		return false, err
	}

	exists, err := s.Exists(id)
	if err != nil {
		return false, err
	}

	if err := fsutil.WriteFileAtomic(p, []byte(content)); err != nil {
		return false, errors.NewIOFailure("write "+id, err)
	}
	return !exists, nil
}

// Remove deletes the blob for id. A missing blob is NOT_FOUND.
func (s *Store) Remove(id string) error {
	p, err := s.path(id)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if stderrors.Is(err, os.ErrNotExist) {
			return errors.NewNotFound(id)
		}
		return errors.NewIOFailure("remove "+id, err)
	}
	return nil
}
