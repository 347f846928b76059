package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/raine/product-lens/internal/app"
	"github.com/raine/product-lens/internal/llm"
)

//go:embed templates/*.html
var templateFS embed.FS

// Refresh intervals (seconds) for views that poll the server.
const (
	analyzingRefresh = 2
	cameraRefresh    = 1
)

type views struct {
	index *template.Template
}

func parseViews() (*views, error) {
	index, err := template.ParseFS(templateFS, "templates/index.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return &views{index: index}, nil
}

// pageData is what the index template renders. Exactly one of the screens is
// shown, chosen by Phase.
type pageData struct {
	Phase    string
	Refresh  int
	ImageURL template.URL
	Pending  bool
	Failure  string
	Notice   string
	// Products is non-nil only when a result exists
	Products []llm.Product
	Camera   bool
}

func newPageData(s app.State) pageData {
	d := pageData{
		Phase:    s.Phase().String(),
		Pending:  s.Pending,
		Failure:  s.Failure,
		Notice:   s.Notice,
		Products: s.Products,
		Camera:   s.CameraActive,
	}
	if s.Image != nil {
		// The data URI is produced by imagesource, never taken from a request
		d.ImageURL = template.URL(s.Image.DataURI)
	}
	switch s.Phase() {
	case app.PhaseAnalyzing:
		d.Refresh = analyzingRefresh
	case app.PhaseAcquiring:
		d.Refresh = cameraRefresh
	}
	return d
}

func (v *views) renderIndex(w http.ResponseWriter, s app.State) {
	var buf bytes.Buffer
	if err := v.index.Execute(&buf, newPageData(s)); err != nil {
		log.Error().Err(err).Msg("failed to render index")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		log.Debug().Err(err).Msg("failed to write index response")
	}
}
