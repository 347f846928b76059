package web

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/raine/product-lens/internal/app"
)

// uploadField is the multipart field carrying the picked file.
const uploadField = "image"

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.views.renderIndex(w, s.controller.Snapshot())
}

// handleUpload streams the first part named "image" to the controller. A form
// without that part is treated like a canceled picker and changes nothing.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	mr, err := r.MultipartReader()
	if err != nil {
		log.Debug().Err(err).Msg("upload is not a multipart form")
		s.redirectHome(w, r)
		return
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			log.Debug().Msg("upload form had no image")
			break
		}
		if err != nil {
			// A broken body still counts as a failed read
			s.afterAction(w, r, s.controller.SubmitFile(r.Context(), &failingReader{err: err}, ""))
			return
		}
		if part.FormName() != uploadField {
			part.Close()
			continue
		}
		if part.FileName() == "" {
			part.Close()
			break
		}

		err = s.controller.SubmitFile(r.Context(), part, part.Header.Get("Content-Type"))
		part.Close()
		s.afterAction(w, r, err)
		return
	}

	s.redirectHome(w, r)
}

func (s *Server) handleOpenCamera(w http.ResponseWriter, r *http.Request) {
	s.afterAction(w, r, s.controller.OpenCamera(r.Context()))
}

func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	s.afterAction(w, r, s.controller.Capture(r.Context()))
}

func (s *Server) handleCloseCamera(w http.ResponseWriter, r *http.Request) {
	s.afterAction(w, r, s.controller.CloseCamera(r.Context()))
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.afterAction(w, r, s.controller.Reset(r.Context()))
}

func (s *Server) handleCameraFrame(w http.ResponseWriter, r *http.Request) {
	frame, err := s.controller.PreviewFrame(r.Context())
	if err != nil {
		if errors.Is(err, app.ErrInvalidTransition) {
			http.NotFound(w, r)
			return
		}
		log.Warn().Err(err).Msg("failed to read preview frame")
		http.Error(w, "camera unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(frame)
}

// afterAction finishes a form post. Rejected transitions are ignored, the
// page simply shows the current state again.
func (s *Server) afterAction(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case err == nil:
	case errors.Is(err, app.ErrBusy), errors.Is(err, app.ErrInvalidTransition):
		log.Debug().Err(err).Str("path", r.URL.Path).Msg("action rejected")
	case errors.Is(err, app.ErrStopped), errors.Is(err, context.Canceled):
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Msg("action failed")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	s.redirectHome(w, r)
}

// redirectHome implements Post/Redirect/Get.
func (s *Server) redirectHome(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

type failingReader struct {
	err error
}

func (f *failingReader) Read([]byte) (int, error) {
	return 0, f.err
}
