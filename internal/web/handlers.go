package web

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hpungsan/quill/internal/errors"
	"github.com/hpungsan/quill/internal/ops"
	"github.com/hpungsan/quill/internal/prompt"
)

// SaveRequest is the body of POST /api/prompts/{id}.
type SaveRequest struct {
	Content   *string  `json:"content"`
	Label     *string  `json:"label,omitempty"`
	Component *string  `json:"component,omitempty"`
	Tags      []string `json:"tags,omitempty"`
}

// TagsRequest is the body of POST /api/prompts/{id}/tags. Tags is required;
// an empty array clears them.
type TagsRequest struct {
	Tags *[]string `json:"tags"`
}

// RestoreRequest is the body of POST /api/prompts/{id}/restore.
type RestoreRequest struct {
	Snapshot string `json:"snapshot"`
}

// RenderRequest is the body of POST /api/prompts/{id}/render.
type RenderRequest struct {
	Vars   map[string]string `json:"vars"`
	Strict bool              `json:"strict,omitempty"`
}

// promptID reads and validates the {id} path parameter before any I/O.
func promptID(r *http.Request) (string, error) {
	id := chi.URLParam(r, "id")
	if err := prompt.ValidateID(id); err != nil {
		return "", err
	}
	return id, nil
}

// decodeBody decodes a JSON request body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case stderrors.As(err, &tooLarge):
			return errors.NewInvalidRequest("request body too large")
		case stderrors.Is(err, io.EOF):
			return errors.NewInvalidRequest("request body is required")
		default:
			return errors.NewInvalidRequest("invalid JSON body: " + err.Error())
		}
	}
	return nil
}

// handleList handles GET /api/prompts.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	input := ops.ListInput{Query: r.URL.Query().Get("q")}
	grouped, _ := strconv.ParseBool(r.URL.Query().Get("grouped"))

	if grouped {
		out, err := s.repo.ListGrouped(r.Context(), input)
		if err != nil {
			renderError(w, err)
			return
		}
		renderJSON(w, http.StatusOK, out)
		return
	}

	out, err := s.repo.List(r.Context(), input)
	if err != nil {
		renderError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, out)
}

// handleRead handles GET /api/prompts/{id}.
func (s *Server) handleRead(w http.ResponseWriter, r *http.Request) {
	id, err := promptID(r)
	if err != nil {
		renderError(w, err)
		return
	}
	out, err := s.repo.ReadContent(r.Context(), ops.ReadContentInput{ID: id})
	if err != nil {
		renderError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, out)
}

// handleMetadata handles GET /api/prompts/{id}/metadata.
func (s *Server) handleMetadata(w http.ResponseWriter, r *http.Request) {
	id, err := promptID(r)
	if err != nil {
		renderError(w, err)
		return
	}
	out, err := s.repo.ReadMetadata(r.Context(), ops.ReadMetadataInput{ID: id})
	if err != nil {
		renderError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, out)
}

// handleSave handles POST /api/prompts/{id}: create when new, versioned
// update otherwise.
func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	id, err := promptID(r)
	if err != nil {
		renderError(w, err)
		return
	}
	var req SaveRequest
	if err := decodeBody(w, r, &req); err != nil {
		renderError(w, err)
		return
	}
	if req.Content == nil {
		renderError(w, errors.NewInvalidRequest("content is required"))
		return
	}

	out, err := s.repo.Save(r.Context(), ops.SaveInput{
		ID:        id,
		Content:   *req.Content,
		Label:     req.Label,
		Component: req.Component,
		Tags:      req.Tags,
	})
	if err != nil {
		renderError(w, err)
		return
	}
	status := http.StatusOK
	if out.Created {
		status = http.StatusCreated
	}
	renderJSON(w, status, out)
}

// handleTags handles POST /api/prompts/{id}/tags.
func (s *Server) handleTags(w http.ResponseWriter, r *http.Request) {
	id, err := promptID(r)
	if err != nil {
		renderError(w, err)
		return
	}
	var req TagsRequest
	if err := decodeBody(w, r, &req); err != nil {
		renderError(w, err)
		return
	}
	if req.Tags == nil {
		renderError(w, errors.NewInvalidRequest("tags must be an array"))
		return
	}
	out, err := s.repo.UpdateTags(r.Context(), ops.UpdateTagsInput{ID: id, Tags: *req.Tags})
	if err != nil {
		renderError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, out)
}

// handleDelete handles DELETE /api/prompts/{id}.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := promptID(r)
	if err != nil {
		renderError(w, err)
		return
	}
	out, err := s.repo.Delete(r.Context(), ops.DeleteInput{ID: id})
	if err != nil {
		renderError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, out)
}

// handleHistory handles GET /api/prompts/{id}/history.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id, err := promptID(r)
	if err != nil {
		renderError(w, err)
		return
	}
	out, err := s.repo.History(r.Context(), ops.HistoryInput{ID: id})
	if err != nil {
		renderError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, out)
}

// handleRestore handles POST /api/prompts/{id}/restore.
func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	id, err := promptID(r)
	if err != nil {
		renderError(w, err)
		return
	}
	var req RestoreRequest
	if err := decodeBody(w, r, &req); err != nil {
		renderError(w, err)
		return
	}
	if req.Snapshot == "" {
		renderError(w, errors.NewInvalidRequest("snapshot is required"))
		return
	}
	out, err := s.repo.Restore(r.Context(), ops.RestoreInput{ID: id, SnapshotID: req.Snapshot})
	if err != nil {
		renderError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, out)
}

// handleDiff handles GET /api/prompts/{id}/diff?snapshot=.
func (s *Server) handleDiff(w http.ResponseWriter, r *http.Request) {
	id, err := promptID(r)
	if err != nil {
		renderError(w, err)
		return
	}
	snapshot := r.URL.Query().Get("snapshot")
	if snapshot == "" {
		renderError(w, errors.NewInvalidRequest("snapshot query parameter is required"))
		return
	}
	out, err := s.repo.Diff(r.Context(), ops.DiffInput{ID: id, SnapshotID: snapshot})
	if err != nil {
		renderError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, out)
}

// handlePreview handles GET /api/prompts/{id}/preview.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	id, err := promptID(r)
	if err != nil {
		renderError(w, err)
		return
	}
	meta, err := s.repo.ReadMetadata(r.Context(), ops.ReadMetadataInput{ID: id})
	if err != nil {
		renderError(w, err)
		return
	}
	content, err := s.repo.ReadContent(r.Context(), ops.ReadContentInput{ID: id})
	if err != nil {
		renderError(w, err)
		return
	}
	s.renderer.renderPreview(w, s.logger, id, meta.Record.Label, content.Content)
}

// handleRender handles POST /api/prompts/{id}/render.
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	id, err := promptID(r)
	if err != nil {
		renderError(w, err)
		return
	}
	var req RenderRequest
	if err := decodeBody(w, r, &req); err != nil {
		renderError(w, err)
		return
	}
	out, err := s.repo.Render(r.Context(), ops.RenderInput{ID: id, Vars: req.Vars, Strict: req.Strict})
	if err != nil {
		renderError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, out)
}

// handleSnapshot handles GET /api/history/{snapshot}.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	out, err := s.repo.Snapshot(r.Context(), ops.SnapshotInput{SnapshotID: chi.URLParam(r, "snapshot")})
	if err != nil {
		renderError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, out)
}

// handleTagGroups handles GET /api/tag-groups.
func (s *Server) handleTagGroups(w http.ResponseWriter, _ *http.Request) {
	renderJSON(w, http.StatusOK, s.repo.Taxonomy())
}
