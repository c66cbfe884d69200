package session

import (
	"context"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/hpungsan/quill/internal/errors"
	"github.com/hpungsan/quill/internal/prompt"
)

// SelectTag makes option the only selection of an exclusive group and
// saves the tag set immediately.
func (s *Session) SelectTag(ctx context.Context, group, option string) error {
	return s.saveTags(ctx, func(tags []string) ([]string, error) {
		next, err := s.taxonomy.Select(tags, group, option)
		if err != nil {
			return nil, errors.NewInvalidRequest(err.Error())
		}
		return next, nil
	})
}

// ClearGroup removes any selection of an exclusive group.
func (s *Session) ClearGroup(ctx context.Context, group string) error {
	return s.saveTags(ctx, func(tags []string) ([]string, error) {
		if _, ok := s.taxonomy.Group(group); !ok {
			return nil, errors.NewInvalidRequest("unknown tag group " + group)
		}
		return s.taxonomy.Clear(tags, group), nil
	})
}

// AddCustomTag adds a free-form tag.
func (s *Session) AddCustomTag(ctx context.Context, tag string) error {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return errors.NewInvalidRequest("tag is required")
	}
	return s.saveTags(ctx, func(tags []string) ([]string, error) {
		return prompt.NormalizeTags(append(slices.Clone(tags), tag)), nil
	})
}

// RemoveCustomTag removes a tag. Grouped selections are removed the same way.
func (s *Session) RemoveCustomTag(ctx context.Context, tag string) error {
	return s.saveTags(ctx, func(tags []string) ([]string, error) {
		out := make([]string, 0, len(tags))
		for _, t := range tags {
			if t != tag {
				out = append(out, t)
			}
		}
		return out, nil
	})
}

// SetTags replaces the whole tag set.
func (s *Session) SetTags(ctx context.Context, tags []string) error {
	return s.saveTags(ctx, func([]string) ([]string, error) {
		return prompt.NormalizeTags(tags), nil
	})
}

// saveTags applies change to the current tags and saves the result
// without debouncing. On failure the session keeps its previous tags.
func (s *Session) saveTags(ctx context.Context, change func([]string) ([]string, error)) error {
	s.tagMu.Lock()
	defer s.tagMu.Unlock()

	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return ErrNotOpen
	}
	gen := s.gen
	id := s.id
	current := slices.Clone(s.tags)
	s.mu.Unlock()

	next, err := change(current)
	if err != nil {
		return err
	}

	saved, err := s.backend.UpdateTags(ctx, id, next)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.logger.Warn("tag save failed", zap.String("id", id), zap.Error(err))
		s.emit(failureNotice(NoticeTagsFailed, id, err))
		return err
	}
	if gen == s.gen {
		s.tags = prompt.NormalizeTags(saved)
	}
	s.emit(Notice{Kind: NoticeTagsSaved, ID: id})
	return nil
}
