package index

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"os"

	"github.com/hpungsan/quill/internal/errors"
	"github.com/hpungsan/quill/internal/fsutil"
	"github.com/hpungsan/quill/internal/prompt"
)

// legacyEntry is one element of the old array-shaped metadata file.
type legacyEntry struct {
	Filename  string              `json:"filename"`
	Label     string              `json:"label"`
	Component string              `json:"component"`
	Tags      []string            `json:"tags"`
	History   []prompt.VersionRef `json:"history"`
}

// MigrateLegacy converts the array form [{filename, label, ...}] into the
// keyed form. Entries with an invalid filename are rejected rather than
// dropped so nothing is silently lost.
func MigrateLegacy(data []byte) (map[string]prompt.Record, error) {
	var items []legacyEntry
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, errors.NewIndexCorrupt("legacy metadata: " + err.Error())
	}

	out := make(map[string]prompt.Record, len(items))
	for _, item := range items {
		if err := prompt.ValidateID(item.Filename); err != nil {
			return nil, err
		}
		if _, dup := out[item.Filename]; dup {
			return nil, errors.NewIndexCorrupt("legacy metadata: duplicate filename " + item.Filename)
		}
		out[item.Filename] = prompt.Record{
			Label:     item.Label,
			Component: item.Component,
			Tags:      prompt.NormalizeTags(item.Tags),
			History:   item.History,
		}
	}
	return out, nil
}

// MigrateResult reports what Migrate did.
type MigrateResult struct {
	Migrated   bool   `json:"migrated"`
	Entries    int    `json:"entries"`
	BackupPath string `json:"backup_path,omitempty"`
}

// Migrate rewrites a legacy array-shaped metadata file in the keyed form.
// The original bytes are kept next to it with a .legacy suffix. A file that
// is already keyed is left alone.
func (x *Index) Migrate() (*MigrateResult, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	data, err := os.ReadFile(x.path)
	if err != nil {
		if stderrors.Is(err, os.ErrNotExist) {
			return &MigrateResult{}, nil
		}
		return nil, errors.NewIOFailure("read index", err)
	}

	if trimmed := bytes.TrimSpace(data); len(trimmed) == 0 || trimmed[0] != '[' {
		entries, err := decode(data)
		if err != nil {
			return nil, err
		}
		return &MigrateResult{Entries: len(entries)}, nil
	}

	entries, err := MigrateLegacy(data)
	if err != nil {
		return nil, err
	}

	backup := x.path + ".legacy"
	if err := fsutil.WriteFileAtomic(backup, data); err != nil {
		return nil, errors.NewIOFailure("write legacy backup", err)
	}
	if err := x.write(entries); err != nil {
		return nil, err
	}
	return &MigrateResult{Migrated: true, Entries: len(entries), BackupPath: backup}, nil
}
