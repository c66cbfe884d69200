package session

import (
	"go.uber.org/zap"

	"github.com/hpungsan/quill/internal/errors"
)

// NoticeKind classifies a Notice.
type NoticeKind string

const (
	NoticeLoaded     NoticeKind = "loaded"
	NoticeSaved      NoticeKind = "saved"
	NoticeSaveFailed NoticeKind = "save_failed"
	NoticeTagsSaved  NoticeKind = "tags_saved"
	NoticeTagsFailed NoticeKind = "tags_failed"
)

// Notice reports the outcome of a save to whoever is driving the session.
type Notice struct {
	Kind     NoticeKind
	ID       string
	Snapshot string           // archived snapshot id, for NoticeSaved
	Code     errors.ErrorCode // failure code, for the *Failed kinds
	Message  string
}

func failureNotice(kind NoticeKind, id string, err error) Notice {
	n := Notice{Kind: kind, ID: id, Code: errors.ErrInternal, Message: err.Error()}
	if qe := errors.As(err); qe != nil {
		n.Code = qe.Code
		n.Message = qe.Message
	}
	return n
}

// emit sends without blocking. Callers may hold s.mu.
func (s *Session) emit(n Notice) {
	select {
	case s.notices <- n:
	default:
		s.logger.Debug("notice dropped", zap.String("kind", string(n.Kind)), zap.String("id", n.ID))
	}
}
