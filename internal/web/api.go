package web

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/raine/product-lens/internal/imagesource"
	"github.com/raine/product-lens/internal/llm"
)

// AnalyzeRequest is the JSON body of POST /api/analyze.
type AnalyzeRequest struct {
	// Image is a base64 data URI, e.g. "data:image/jpeg;base64,..."
	Image string `json:"image"`
}

// AnalyzeResponse is returned on success. Products is always a list, empty
// when nothing was recognized.
type AnalyzeResponse struct {
	Products []llm.Product `json:"products"`
	Usage    llm.Usage     `json:"usage"`
}

// ErrorResponse is returned on failure.
type ErrorResponse struct {
	Error string `json:"error"`
}

// handleAnalyze analyzes a single image without touching the controller
// state. It accepts either a JSON body with a data URI or a multipart form
// with an "image" file.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	img, err := s.readAPIImage(r)
	if err != nil {
		log.Warn().Err(err).Msg("failed to read image for api analysis")
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := s.analyzer.Analyze(r.Context(), img.Data, img.MIMEType)
	if err != nil {
		var cfgErr *llm.ConfigurationError
		if errors.As(err, &cfgErr) {
			respondError(w, cfgErr.Error(), http.StatusInternalServerError)
			return
		}
		respondError(w, "could not analyze the image", http.StatusBadGateway)
		return
	}

	products := result.Products
	if products == nil {
		products = []llm.Product{}
	}
	respondJSON(w, AnalyzeResponse{Products: products, Usage: result.Usage}, http.StatusOK)
}

// readAPIImage returns the request's image. All failures are *ReadError.
func (s *Server) readAPIImage(r *http.Request) (*imagesource.CapturedImage, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if strings.HasPrefix(mediaType, "multipart/") {
		file, header, err := r.FormFile(uploadField)
		if err != nil {
			return nil, &imagesource.ReadError{Err: err}
		}
		defer file.Close()
		return s.files.Load(r.Context(), file, header.Header.Get("Content-Type"))
	}

	var req AnalyzeRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody(s.files)))
	if err := dec.Decode(&req); err != nil {
		return nil, &imagesource.ReadError{Err: err}
	}
	mimeType, data, err := imagesource.ParseDataURI(req.Image)
	if err != nil {
		return nil, &imagesource.ReadError{Err: err}
	}
	if len(data) == 0 {
		return nil, &imagesource.ReadError{Err: errors.New("image is empty")}
	}
	return imagesource.NewCapturedImage(data, mimeType), nil
}

// maxJSONBody allows for base64 expansion of the largest accepted file.
func maxJSONBody(files *imagesource.FileLoader) int64 {
	return files.MaxSize()/3*4 + 4096
}

func respondJSON(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Debug().Err(err).Msg("failed to write json response")
	}
}

func respondError(w http.ResponseWriter, message string, status int) {
	respondJSON(w, ErrorResponse{Error: message}, status)
}
