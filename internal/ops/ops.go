// Package ops is the prompt repository: the façade over the blob store,
// version archive, metadata index and update journal that enforces the
// store's invariants. Each operation lives in its own file with explicit
// Input and Output types.
package ops

import (
	"context"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/hpungsan/quill/internal/archive"
	"github.com/hpungsan/quill/internal/blob"
	"github.com/hpungsan/quill/internal/config"
	"github.com/hpungsan/quill/internal/errors"
	"github.com/hpungsan/quill/internal/index"
	"github.com/hpungsan/quill/internal/journal"
	"github.com/hpungsan/quill/internal/prompt"
)

// Directory names under the base directory.
const (
	PromptsDir = "prompts"
	HistoryDir = "history"
)

// Repository is safe for concurrent use. Operations on the same identifier
// are serialized; the index has its own critical section.
type Repository struct {
	baseDir  string
	blobs    *blob.Store
	archive  *archive.Archive
	index    *index.Index
	journal  *journal.Journal
	taxonomy *prompt.Taxonomy
	logger   *zap.Logger

	locks *keyedMutex
}

// Option configures Open.
type Option func(*openOptions)

type openOptions struct {
	archiveOpts []archive.Option
}

// WithArchiveOptions passes options through to the version archive.
func WithArchiveOptions(opts ...archive.Option) Option {
	return func(o *openOptions) { o.archiveOpts = append(o.archiveOpts, opts...) }
}

// Open wires the stores under baseDir and replays any journal entries left
// by an interrupted update.
func Open(baseDir string, cfg *config.Config, logger *zap.Logger, opts ...Option) (*Repository, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	var o openOptions
	for _, opt := range opts {
		opt(&o)
	}

	promptsDir := filepath.Join(baseDir, PromptsDir)
	blobs, err := blob.New(promptsDir)
	if err != nil {
		return nil, err
	}
	arch, err := archive.New(filepath.Join(promptsDir, HistoryDir), o.archiveOpts...)
	if err != nil {
		return nil, err
	}
	taxonomy, err := prompt.LoadTaxonomy(cfg.TagGroupsPath(baseDir))
	if err != nil {
		return nil, errors.NewInvalidRequest(err.Error())
	}

	db, err := journal.Init(baseDir)
	if err != nil {
		return nil, errors.NewIOFailure("open journal", err)
	}
	journal.ConfigurePool(db, cfg)

	r := &Repository{
		baseDir:  baseDir,
		blobs:    blobs,
		archive:  arch,
		index:    index.New(filepath.Join(promptsDir, index.FileName), cfg.MinIndexEntries, logger),
		journal:  journal.New(db),
		taxonomy: taxonomy,
		logger:   logger,
		locks:    newKeyedMutex(),
	}

	if _, err := r.Recover(context.Background()); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

// Close releases the journal database.
func (r *Repository) Close() error {
	return r.journal.Close()
}

// BaseDir returns the directory the repository was opened on.
func (r *Repository) BaseDir() string {
	return r.baseDir
}

// Taxonomy returns the configured exclusive tag groups.
func (r *Repository) Taxonomy() *prompt.Taxonomy {
	return r.taxonomy
}

// SetMinIndexEntries changes the data-loss guard floor.
func (r *Repository) SetMinIndexEntries(n int) {
	r.index.SetFloor(n)
}

// Index exposes the metadata index for maintenance commands.
func (r *Repository) Index() *index.Index {
	return r.index
}

// keyedMutex hands out one mutex per identifier and forgets it when no
// goroutine holds or waits on it.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

// Lock acquires the mutex for key and returns its unlock function.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// checkContext returns the context error, if any, as an operation error.
// Operations check once before starting; a started write runs to completion.
func checkContext(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return errors.NewCancelled(err)
	}
	return nil
}
