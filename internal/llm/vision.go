package llm

import "context"

// Product is one item recognized in an image. Products are returned in the
// order the model listed them.
type Product struct {
	Name           string `json:"name"`
	Description    string `json:"description"`
	HasWarning     bool   `json:"hasWarning"`
	WarningDetails string `json:"warningDetails"`
}

// WarningConsistent reports whether HasWarning and WarningDetails agree:
// details are present exactly when a warning is flagged.
func (p Product) WarningConsistent() bool {
	return p.HasWarning == (p.WarningDetails != "")
}

// Usage contains token usage and cost information.
type Usage struct {
	InputTokens  int64   `json:"inputTokens"`
	OutputTokens int64   `json:"outputTokens"`
	TotalTokens  int64   `json:"totalTokens"`
	CostUSD      float64 `json:"costUsd"`
}

// AnalysisResult contains the recognized products and usage information.
// Products is never nil on success; an image without products yields an
// empty slice.
type AnalysisResult struct {
	Products []Product
	Usage    Usage
}

// Analyzer recognizes products in an image.
type Analyzer interface {
	// Analyze sends the image to the model once and returns the product list.
	// Errors are *ConfigurationError or *AnalysisError.
	Analyze(ctx context.Context, imageData []byte, mimeType string) (*AnalysisResult, error)
}
