package session

import (
	"context"

	"github.com/hpungsan/quill/internal/ops"
	"github.com/hpungsan/quill/internal/prompt"
)

// Backend is the store a session reads from and saves to. It is satisfied
// by RepositoryBackend for in-process use and by client.Client over HTTP.
type Backend interface {
	ReadContent(ctx context.Context, id string) (string, error)
	ReadMetadata(ctx context.Context, id string) (prompt.Record, error)
	UpdateContent(ctx context.Context, id, content string) (prompt.VersionRef, error)
	UpdateTags(ctx context.Context, id string, tags []string) ([]string, error)
}

// RepositoryBackend adapts an ops.Repository to Backend.
type RepositoryBackend struct {
	Repo *ops.Repository
}

var _ Backend = RepositoryBackend{}

func (b RepositoryBackend) ReadContent(ctx context.Context, id string) (string, error) {
	out, err := b.Repo.ReadContent(ctx, ops.ReadContentInput{ID: id})
	if err != nil {
		return "", err
	}
	return out.Content, nil
}

func (b RepositoryBackend) ReadMetadata(ctx context.Context, id string) (prompt.Record, error) {
	out, err := b.Repo.ReadMetadata(ctx, ops.ReadMetadataInput{ID: id})
	if err != nil {
		return prompt.Record{}, err
	}
	return out.Record, nil
}

func (b RepositoryBackend) UpdateContent(ctx context.Context, id, content string) (prompt.VersionRef, error) {
	out, err := b.Repo.UpdateContent(ctx, ops.UpdateContentInput{ID: id, Content: content})
	if err != nil {
		return prompt.VersionRef{}, err
	}
	return out.Snapshot, nil
}

func (b RepositoryBackend) UpdateTags(ctx context.Context, id string, tags []string) ([]string, error) {
	out, err := b.Repo.UpdateTags(ctx, ops.UpdateTagsInput{ID: id, Tags: tags})
	if err != nil {
		return nil, err
	}
	return out.Tags, nil
}
