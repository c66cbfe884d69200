// Package index is the metadata index: a single JSON document mapping every
// prompt identifier to its record. It is the source of truth for existence
// and listing.
//
// Every mutation loads the full file, applies its change and writes the
// full result back, all under one mutex. Writes that would leave fewer
// entries than the configured floor are refused before the file is touched.
package index

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/hpungsan/quill/internal/errors"
	"github.com/hpungsan/quill/internal/fsutil"
	"github.com/hpungsan/quill/internal/prompt"
)

// FileName is the metadata file inside the prompts directory.
const FileName = "metadata.json"

// Index guards metadata.json.
type Index struct {
	path   string
	logger *zap.Logger

	mu    sync.Mutex
	floor int
}

// New returns an index backed by path. floor is the data-loss guard minimum;
// values below 1 are treated as 1.
func New(path string, floor int, logger *zap.Logger) *Index {
	if logger == nil {
		logger = zap.NewNop()
	}
	x := &Index{path: path, logger: logger}
	x.setFloor(floor)
	return x
}

// Path returns the metadata file path.
func (x *Index) Path() string {
	return x.path
}

// Floor returns the current guard minimum.
func (x *Index) Floor() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.floor
}

// SetFloor changes the guard minimum, e.g. after a config reload.
func (x *Index) SetFloor(floor int) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.setFloor(floor)
}

func (x *Index) setFloor(floor int) {
	if floor < 1 {
		floor = 1
	}
	x.floor = floor
}

// Get returns the record for id.
func (x *Index) Get(id string) (prompt.Record, error) {
	if err := prompt.ValidateID(id); err != nil {
		return prompt.Record{}, err
	}
	x.mu.Lock()
	defer x.mu.Unlock()

	entries, err := x.load()
	if err != nil {
		return prompt.Record{}, err
	}
	rec, ok := entries[id]
	if !ok {
		return prompt.Record{}, errors.NewNotFound(id)
	}
	return rec, nil
}

// List returns every record keyed by identifier.
func (x *Index) List() (map[string]prompt.Record, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.load()
}

// Put stores rec under id. It fails with TOO_FEW_ENTRIES, leaving the file
// untouched, when the result would hold fewer entries than the floor and
// the put does not add a new identifier.
func (x *Index) Put(id string, rec prompt.Record) error {
	if err := prompt.ValidateID(id); err != nil {
		return err
	}
	x.mu.Lock()
	defer x.mu.Unlock()

	entries, err := x.load()
	if err != nil {
		return err
	}
	_, existed := entries[id]
	entries[id] = rec
	return x.store(entries, !existed)
}

// UpdateFunc mutates a record in place. exists reports whether id was
// present; rec is the zero Record when it was not.
type UpdateFunc func(rec *prompt.Record, exists bool) error

// Update applies fn to the record for id inside the critical section and
// stores the result through the same guard as Put. If fn returns an error
// nothing is written.
func (x *Index) Update(id string, fn UpdateFunc) (prompt.Record, error) {
	if err := prompt.ValidateID(id); err != nil {
		return prompt.Record{}, err
	}
	x.mu.Lock()
	defer x.mu.Unlock()

	entries, err := x.load()
	if err != nil {
		return prompt.Record{}, err
	}
	rec, existed := entries[id]
	rec = rec.Clone()
	if err := fn(&rec, existed); err != nil {
		return prompt.Record{}, err
	}
	entries[id] = rec
	if err := x.store(entries, !existed); err != nil {
		return prompt.Record{}, err
	}
	return rec, nil
}

// Remove deletes id from the index. It is the explicit deletion path and is
// not subject to the floor.
func (x *Index) Remove(id string) error {
	if err := prompt.ValidateID(id); err != nil {
		return err
	}
	x.mu.Lock()
	defer x.mu.Unlock()

	entries, err := x.load()
	if err != nil {
		return err
	}
	if _, ok := entries[id]; !ok {
		return errors.NewNotFound(id)
	}
	delete(entries, id)
	return x.write(entries)
}

// load reads the whole index. Callers must hold mu.
func (x *Index) load() (map[string]prompt.Record, error) {
	data, err := os.ReadFile(x.path)
	if err != nil {
		if stderrors.Is(err, os.ErrNotExist) {
			return map[string]prompt.Record{}, nil
		}
		return nil, errors.NewIOFailure("read index", err)
	}
	return decode(data)
}

func decode(data []byte) (map[string]prompt.Record, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errors.NewIndexCorrupt("file is empty")
	}
	if trimmed[0] == '[' {
		return nil, errors.NewIndexCorrupt("legacy array format; run `quill migrate`")
	}
	if !json.Valid(trimmed) {
		return nil, errors.NewIndexCorrupt("not valid JSON")
	}

	reason, ok, err := validate(trimmed)
	if err != nil {
		return nil, errors.NewIndexCorrupt(err.Error())
	}
	if !ok {
		return nil, errors.NewIndexCorrupt(reason)
	}

	entries := make(map[string]prompt.Record)
	if err := json.Unmarshal(trimmed, &entries); err != nil {
		return nil, errors.NewIndexCorrupt(err.Error())
	}
	return entries, nil
}

// store applies the data-loss guard and writes. Callers must hold mu.
func (x *Index) store(entries map[string]prompt.Record, grew bool) error {
	if !grew && len(entries) < x.floor {
		x.logger.Warn("refusing to save index below floor",
			zap.Int("entries", len(entries)),
			zap.Int("floor", x.floor),
		)
		return errors.NewTooFewEntries(x.floor, len(entries))
	}
	return x.write(entries)
}

func (x *Index) write(entries map[string]prompt.Record) error {
	data, err := encode(entries)
	if err != nil {
		return errors.NewInternal(err)
	}
	if err := os.MkdirAll(filepath.Dir(x.path), 0700); err != nil {
		return errors.NewIOFailure("create index directory", err)
	}
	if err := fsutil.WriteFileAtomic(x.path, data); err != nil {
		return errors.NewIOFailure("write index", err)
	}
	return nil
}

// encode renders entries with two-space indentation. Nil slices are written
// as empty arrays.
func encode(entries map[string]prompt.Record) ([]byte, error) {
	out := make(map[string]prompt.Record, len(entries))
	for id, rec := range entries {
		if rec.Tags == nil {
			rec.Tags = []string{}
		}
		if rec.History == nil {
			rec.History = []prompt.VersionRef{}
		}
		out[id] = rec
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
