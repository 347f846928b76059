package app

import (
	"github.com/raine/product-lens/internal/imagesource"
	"github.com/raine/product-lens/internal/llm"
)

// Phase is the user-visible stage of the capture and analysis flow.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseAcquiring
	PhaseAnalyzing
	PhaseResults
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAcquiring:
		return "acquiring"
	case PhaseAnalyzing:
		return "analyzing"
	case PhaseResults:
		return "results"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// State is a snapshot of the controller's state. Views get copies; only the
// controller worker creates new ones.
type State struct {
	Image *imagesource.CapturedImage
	// Products is nil until an analysis succeeds. A successful analysis that
	// found nothing leaves an empty, non-nil slice.
	Products     []llm.Product
	Pending      bool
	Failure      string
	CameraActive bool
	// Notice is a one-off message for the user, e.g. after the camera could
	// not be opened. It is cleared by the next user action.
	Notice string
}

// Phase derives the current phase from the state fields.
func (s State) Phase() Phase {
	switch {
	case s.CameraActive:
		return PhaseAcquiring
	case s.Pending:
		return PhaseAnalyzing
	case s.Failure != "":
		return PhaseFailed
	case s.Products != nil:
		return PhaseResults
	default:
		return PhaseIdle
	}
}

// IsIdle reports whether the state is exactly the initial configuration,
// ignoring any pending notice.
func (s State) IsIdle() bool {
	return s.Image == nil && s.Products == nil && !s.Pending && s.Failure == "" && !s.CameraActive
}

func (s State) clone() State {
	if s.Products != nil {
		products := make([]llm.Product, len(s.Products))
		copy(products, s.Products)
		s.Products = products
	}
	return s
}
