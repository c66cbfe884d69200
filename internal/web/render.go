package web

import (
	"bytes"
	"encoding/json"
	"html/template"
	"net/http"

	"github.com/yuin/goldmark"
	"go.uber.org/zap"

	"github.com/hpungsan/quill/internal/errors"
)

// errorEnvelope is the body of every error response.
type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Status  int            `json:"status"`
	Details map[string]any `json:"details,omitempty"`
}

// renderJSON writes a JSON response.
func renderJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// renderError writes err as a JSON error envelope. Errors that are not
// QuillErrors become INTERNAL.
func renderError(w http.ResponseWriter, err error) {
	qe := errors.As(err)
	if qe == nil {
		qe = errors.NewInternal(err)
	}
	renderErrorJSON(w, qe.Status, string(qe.Code), qe.Message, qe.Details)
}

func renderErrorJSON(w http.ResponseWriter, status int, code, message string, details map[string]any) {
	renderJSON(w, status, errorEnvelope{Error: errorBody{
		Code:    code,
		Message: message,
		Status:  status,
		Details: details,
	}})
}

const previewTemplate = `<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
</head>
<body>
<header><h1>{{.Title}}</h1>{{with .Label}}<p>{{.}}</p>{{end}}</header>
<main>{{.Body}}</main>
<footer>quill {{.Version}}</footer>
</body>
</html>
`

// PreviewData is the template data for the preview page.
type PreviewData struct {
	Title   string
	Label   string
	Body    template.HTML
	Version string
}

// Renderer renders HTML pages.
type Renderer struct {
	preview *template.Template
	version string
}

// NewRenderer parses the page templates.
func NewRenderer(version string) *Renderer {
	return &Renderer{
		preview: template.Must(template.New("preview").Parse(previewTemplate)),
		version: version,
	}
}

// renderPreview writes the prompt content as an HTML page. The content
// is treated as Markdown; raw HTML in it is not passed through.
func (r *Renderer) renderPreview(w http.ResponseWriter, logger *zap.Logger, id, label, content string) {
	var buf bytes.Buffer
	data := PreviewData{
		Title:   id,
		Label:   label,
		Body:    renderMarkdown(content),
		Version: r.version,
	}
	if err := r.preview.Execute(&buf, data); err != nil {
		logger.Error("template execution error", zap.Error(err))
		renderError(w, errors.NewInternal(err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// renderMarkdown converts markdown text to HTML using goldmark.
func renderMarkdown(md string) template.HTML {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(md))
	}
	return template.HTML(buf.String())
}
