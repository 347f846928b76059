// Package web serves the browser views of the application state and a small
// JSON API for one-shot analysis.
package web

import (
	"context"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/raine/product-lens/internal/app"
	"github.com/raine/product-lens/internal/imagesource"
	"github.com/raine/product-lens/internal/llm"
)

// Controller is the application state machine driven by the views.
type Controller interface {
	Snapshot() app.State
	SubmitFile(ctx context.Context, r io.Reader, mimeType string) error
	OpenCamera(ctx context.Context) error
	Capture(ctx context.Context) error
	CloseCamera(ctx context.Context) error
	Reset(ctx context.Context) error
	PreviewFrame(ctx context.Context) ([]byte, error)
}

// Server holds the HTTP handlers.
type Server struct {
	controller Controller
	analyzer   llm.Analyzer
	files      *imagesource.FileLoader
	views      *views
}

// NewServer creates a Server. analyzer and files back the stateless
// /api/analyze endpoint.
func NewServer(controller Controller, analyzer llm.Analyzer, files *imagesource.FileLoader) (*Server, error) {
	v, err := parseViews()
	if err != nil {
		return nil, err
	}
	if files == nil {
		files = imagesource.NewFileLoader()
	}
	return &Server{
		controller: controller,
		analyzer:   analyzer,
		files:      files,
		views:      v,
	}, nil
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return Wrap(s.Router(), RequestID(), RequestLogger(), Recovery())
}

// Router returns the bare route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/upload", s.handleUpload).Methods(http.MethodPost)
	r.HandleFunc("/camera/open", s.handleOpenCamera).Methods(http.MethodPost)
	r.HandleFunc("/camera/capture", s.handleCapture).Methods(http.MethodPost)
	r.HandleFunc("/camera/close", s.handleCloseCamera).Methods(http.MethodPost)
	r.HandleFunc("/camera/frame", s.handleCameraFrame).Methods(http.MethodGet)
	r.HandleFunc("/reset", s.handleReset).Methods(http.MethodPost)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/analyze", s.handleAnalyze).Methods(http.MethodPost)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}
