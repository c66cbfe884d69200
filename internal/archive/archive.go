// Package archive stores immutable snapshots of prompt content. A snapshot
// is written once, before the content it captures is overwritten, and is
// never modified or removed by the store.
package archive

import (
	"crypto/rand"
	stderrors "errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/quill/internal/errors"
	"github.com/hpungsan/quill/internal/prompt"
)

// legacyLayout is the timestamp format of snapshots written before ULID
// suffixes, e.g. prompt1_v20250625T112830.txt.
const legacyLayout = "20060102T150405"

// Archive writes snapshots into a single directory.
type Archive struct {
	dir string
	now func() time.Time

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// Option configures an Archive.
type Option func(*Archive)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(a *Archive) { a.now = now }
}

// New creates the archive directory if needed.
func New(dir string, opts ...Option) (*Archive, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, errors.NewIOFailure("create history directory", err)
	}
	a := &Archive{
		dir:     dir,
		now:     time.Now,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Dir returns the archive directory.
func (a *Archive) Dir() string {
	return a.dir
}

// SnapshotName builds <base>_v<suffix>.txt for a prompt identifier.
func SnapshotName(id, suffix string) string {
	return prompt.Base(id) + "_v" + suffix + prompt.Suffix
}

// nextID returns a ULID that is strictly greater than every ULID previously
// issued by this archive within the same millisecond.
func (a *Archive) nextID(t time.Time) (ulid.ULID, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return ulid.New(ulid.Timestamp(t), a.entropy)
}

// Archive stores content as a new snapshot of id. The file is created with
// O_EXCL, so an existing snapshot is never overwritten.
func (a *Archive) Archive(id, content string) (prompt.VersionRef, error) {
	if err := prompt.ValidateID(id); err != nil {
		return prompt.VersionRef{}, err
	}

	now := a.now().UTC()
	for attempt := 0; attempt < 3; attempt++ {
		u, err := a.nextID(now)
		if err != nil {
			return prompt.VersionRef{}, errors.NewInternal(err)
		}
		name := SnapshotName(id, u.String())
		err = writeExclusive(filepath.Join(a.dir, name), []byte(content))
		if err == nil {
			return prompt.VersionRef{SnapshotID: name, CreatedAt: now}, nil
		}
		if !stderrors.Is(err, os.ErrExist) {
			return prompt.VersionRef{}, errors.NewIOFailure("archive "+id, err)
		}
	}
	return prompt.VersionRef{}, errors.NewIOFailure("archive "+id, os.ErrExist)
}

func writeExclusive(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(path)
		}
	}()
	if _, err = f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err = f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Retrieve returns the content of a snapshot. It never mutates.
func (a *Archive) Retrieve(snapshotID string) (string, error) {
	if err := prompt.ValidateSnapshotID(snapshotID); err != nil {
		return "", err
	}
	path := filepath.Join(a.dir, snapshotID)

	fi, err := os.Lstat(path)
	if err != nil {
		if stderrors.Is(err, os.ErrNotExist) {
			return "", errors.NewSnapshotNotFound(snapshotID)
		}
		return "", errors.NewIOFailure("stat snapshot "+snapshotID, err)
	}
	if !fi.Mode().IsRegular() {
		return "", errors.NewIOFailure("read snapshot "+snapshotID, stderrors.New("not a regular file"))
	}

	f, err := os.Open(path)
	if err != nil {
		return "", errors.NewIOFailure("read snapshot "+snapshotID, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return "", errors.NewIOFailure("read snapshot "+snapshotID, err)
	}
	return string(data), nil
}

// List returns every snapshot on disk for id, newest first. Snapshots of
// deleted prompts are still listed.
func (a *Archive) List(id string) ([]prompt.VersionRef, error) {
	if err := prompt.ValidateID(id); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(a.dir)
	if err != nil {
		if stderrors.Is(err, os.ErrNotExist) {
			return []prompt.VersionRef{}, nil
		}
		return nil, errors.NewIOFailure("list history", err)
	}

	refs := make([]prompt.VersionRef, 0)
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		createdAt, ok := snapshotTime(e.Name(), id)
		if !ok {
			continue
		}
		refs = append(refs, prompt.VersionRef{SnapshotID: e.Name(), CreatedAt: createdAt})
	}

	sort.Slice(refs, func(i, j int) bool {
		if !refs[i].CreatedAt.Equal(refs[j].CreatedAt) {
			return refs[i].CreatedAt.After(refs[j].CreatedAt)
		}
		return refs[i].SnapshotID > refs[j].SnapshotID
	})
	return refs, nil
}

// BelongsTo reports whether snapshotID is a snapshot of id. The whole
// suffix after <base>_v must parse, so a.txt does not own a_vX.txt's
// snapshots.
func BelongsTo(snapshotID, id string) bool {
	_, ok := snapshotTime(snapshotID, id)
	return ok
}

func snapshotTime(name, id string) (time.Time, bool) {
	prefix := prompt.Base(id) + "_v"
	if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, prompt.Suffix) {
		return time.Time{}, false
	}
	return parseSuffix(strings.TrimSuffix(strings.TrimPrefix(name, prefix), prompt.Suffix))
}

// parseSuffix accepts a ULID or the legacy timestamp form.
func parseSuffix(s string) (time.Time, bool) {
	if len(s) == ulid.EncodedSize {
		if u, err := ulid.ParseStrict(s); err == nil {
			return ulid.Time(u.Time()).UTC(), true
		}
	}
	if t, err := time.Parse(legacyLayout, s); err == nil {
		return t.UTC(), true
	}
	return time.Time{}, false
}
