package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	fieldName           = "name"
	fieldDescription    = "description"
	fieldHasWarning     = "hasWarning"
	fieldWarningDetails = "warningDetails"
)

var productFields = []string{fieldName, fieldDescription, fieldHasWarning, fieldWarningDetails}

// wireProduct mirrors the response schema with pointer fields so that absent
// and null values can be told apart from zero values.
type wireProduct struct {
	Name           *string `json:"name"`
	Description    *string `json:"description"`
	HasWarning     *bool   `json:"hasWarning"`
	WarningDetails *string `json:"warningDetails"`
}

func (w wireProduct) missingFields() []string {
	var missing []string
	if w.Name == nil {
		missing = append(missing, fieldName)
	}
	if w.Description == nil {
		missing = append(missing, fieldDescription)
	}
	if w.HasWarning == nil {
		missing = append(missing, fieldHasWarning)
	}
	if w.WarningDetails == nil {
		missing = append(missing, fieldWarningDetails)
	}
	return missing
}

// parseProducts decodes the model's JSON payload into products. Every element
// must carry all four fields with the declared types and a non-empty name;
// unknown fields and trailing data are rejected.
func parseProducts(text string) ([]Product, error) {
	text = strings.TrimSpace(text)
	// Structured output should not be fenced, but strip a markdown fence if present
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	dec := json.NewDecoder(strings.NewReader(text))
	dec.DisallowUnknownFields()

	var wire []wireProduct
	if err := dec.Decode(&wire); err != nil {
		return nil, fmt.Errorf("failed to parse response JSON: %w (response: %s)", err, text)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("unexpected data after product list (response: %s)", text)
	}
	if wire == nil {
		return nil, fmt.Errorf("expected a product list, got null")
	}

	products := make([]Product, 0, len(wire))
	for i, w := range wire {
		if missing := w.missingFields(); len(missing) > 0 {
			return nil, fmt.Errorf("product %d is missing required fields: %s", i, strings.Join(missing, ", "))
		}
		if strings.TrimSpace(*w.Name) == "" {
			return nil, fmt.Errorf("product %d has an empty name", i)
		}
		products = append(products, Product{
			Name:           *w.Name,
			Description:    *w.Description,
			HasWarning:     *w.HasWarning,
			WarningDetails: *w.WarningDetails,
		})
	}

	return products, nil
}
