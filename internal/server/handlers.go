package server

import (
	"bytes"
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/yuin/goldmark"

	"git.home.luguber.info/inful/docserve/internal/logfields"
	"git.home.luguber.info/inful/docserve/internal/registry"
)

const indexTemplate = `<!DOCTYPE html>
<html>
<head>
<title>Documentation Server</title>
<style>
body { font-family: sans-serif; max-width: 800px; margin: 2em auto; }
h1 { text-align: center; }
ul { list-style: none; padding: 0; }
li { margin: 0.5em 0; padding: 0.5em; background: #f5f5f5; border-radius: 4px; }
a { text-decoration: none; color: #0366d6; font-weight: 500; }
.description { color: #444; font-size: 0.9em; margin: 0.3em 0 0 0; }
</style>
</head>
<body>
<h1>Documentation Server</h1>
<ul>
{{- range .}}
<li><a href="/{{.Slug}}/">{{.Name}}</a>{{if .Description}}<div class="description">{{.Description}}</div>{{end}}</li>
{{- end}}
</ul>
</body>
</html>
`

var indexTmpl = template.Must(template.New("index").Parse(indexTemplate))

type indexEntry struct {
	Slug        string
	Name        string
	Description template.HTML
}

// handleIndex lists every registered project as a link to its mount.
// Descriptions are operator-authored Markdown from the configuration file,
// rendered once per request with goldmark.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	// The catch-all pattern also receives every unregistered path.
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	entries := make([]indexEntry, 0, s.registry.Len())
	for _, p := range s.registry.Projects() {
		entries = append(entries, indexEntry{
			Slug:        p.Slug,
			Name:        p.Config.Path,
			Description: renderDescription(p),
		})
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTmpl.Execute(w, entries); err != nil {
		slog.Error("Failed to render index page", logfields.Error(err))
	}
}

func renderDescription(p *registry.Project) template.HTML {
	if p.Config.Description == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(p.Config.Description), &buf); err != nil {
		slog.Warn("Failed to render project description", logfields.Slug(p.Slug), logfields.Error(err))
		return template.HTML(template.HTMLEscapeString(p.Config.Description))
	}
	return template.HTML(buf.String())
}

// handleHealth is the liveness endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"projects": s.registry.Len(),
	})
}

// handleStatus reports the most recent pipeline run from the history store.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	last, err := s.store.LastRun(r.Context())
	if err != nil {
		slog.Error("Failed to load last pipeline run", logfields.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "history unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"last_run": last})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to encode JSON response", logfields.Error(err))
	}
}
