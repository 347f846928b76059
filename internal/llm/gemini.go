package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lithammer/dedent"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.5-pro"

// Gemini pricing (per million tokens)
var geminiPricing = map[string]struct{ input, output float64 }{
	"gemini-2.5-pro":        {input: 1.25, output: 10.00},
	"gemini-2.5-flash":      {input: 0.30, output: 2.50},
	"gemini-2.5-flash-lite": {input: 0.10, output: 0.40},
}

var productPrompt = strings.TrimSpace(dedent.Dedent(`
	אתה מומחה בזיהוי מוצרים מתמונות. התבונן בתמונה שסופקה וזהה את כל המוצרים הנראים לעין.
	עבור כל מוצר, ספק את הפרטים הבאים:
	1. 'name': שם המוצר.
	2. 'description': תיאור קצר של המוצר.
	3. 'hasWarning': ערך בוליאני (true/false) המציין אם יש על המוצר אזהרה כלשהי (כגון אזהרת בריאות, סימן אדום, אזהרת אלרגיה, וכו').
	4. 'warningDetails': אם 'hasWarning' הוא true, ציין כאן את פרטי האזהרה. אם אין אזהרה, השאר את השדה הזה ריק ("").

	החזר את התוצאות במבנה JSON בלבד, כרשימה של אובייקטים.
`))

// productListSchema declares the response contract: an array of objects with
// exactly the four product fields, all required.
func productListSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeArray,
		Items: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				fieldName:           {Type: genai.TypeString},
				fieldDescription:    {Type: genai.TypeString},
				fieldHasWarning:     {Type: genai.TypeBoolean},
				fieldWarningDetails: {Type: genai.TypeString},
			},
			Required:         productFields,
			PropertyOrdering: productFields,
		},
	}
}

// contentGenerator is the subset of *genai.Models used here.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiAnalyzer uses Google's Gemini API to recognize products in images.
type GeminiAnalyzer struct {
	models contentGenerator
	apiKey string
	model  string
}

// NewGeminiAnalyzer creates a new Gemini-based analyzer. An empty apiKey does
// not fail here; every Analyze call then returns a ConfigurationError without
// touching the network.
func NewGeminiAnalyzer(ctx context.Context, apiKey, model string) (*GeminiAnalyzer, error) {
	if model == "" {
		model = DefaultGeminiModel
	}
	if apiKey == "" {
		log.Warn().Msg("gemini api key is not set, analysis requests will fail")
		return &GeminiAnalyzer{model: model}, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiAnalyzer{models: client.Models, apiKey: apiKey, model: model}, nil
}

// Model returns the model name used for requests.
func (g *GeminiAnalyzer) Model() string {
	return g.model
}

// Analyze implements the Analyzer interface using Gemini. It issues exactly
// one request and never retries.
func (g *GeminiAnalyzer) Analyze(ctx context.Context, imageData []byte, mimeType string) (*AnalysisResult, error) {
	if g.apiKey == "" || g.models == nil {
		return nil, errMissingCredential
	}

	result, err := g.analyze(ctx, imageData, mimeType)
	if err != nil {
		log.Error().Err(err).Str("model", g.model).Str("mimeType", mimeType).Msg("error analyzing image with gemini")
		return nil, &AnalysisError{Err: err}
	}
	return result, nil
}

func (g *GeminiAnalyzer) analyze(ctx context.Context, imageData []byte, mimeType string) (*AnalysisResult, error) {
	if len(imageData) == 0 {
		return nil, errors.New("empty image payload")
	}

	parts := []*genai.Part{
		genai.NewPartFromBytes(imageData, mimeType),
		genai.NewPartFromText(productPrompt),
	}
	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   productListSchema(),
	}

	result, err := g.models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}

	if result.PromptFeedback != nil && result.PromptFeedback.BlockReason != "" {
		return nil, fmt.Errorf("prompt blocked: %s", result.PromptFeedback.BlockReason)
	}
	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("no response from Gemini")
	}

	products, err := parseProducts(result.Text())
	if err != nil {
		return nil, err
	}

	for i, p := range products {
		if !p.WarningConsistent() {
			log.Warn().
				Int("index", i).
				Str("name", p.Name).
				Bool("hasWarning", p.HasWarning).
				Str("warningDetails", p.WarningDetails).
				Msg("product warning flag and details disagree")
		}
	}

	usage := Usage{}
	if result.UsageMetadata != nil {
		usage.InputTokens = int64(result.UsageMetadata.PromptTokenCount)
		usage.OutputTokens = int64(result.UsageMetadata.CandidatesTokenCount)
		usage.TotalTokens = int64(result.UsageMetadata.TotalTokenCount)
		usage.CostUSD = calculateGeminiCost(g.model, usage.InputTokens, usage.OutputTokens)
	}

	log.Info().
		Str("model", g.model).
		Int("imageBytes", len(imageData)).
		Int("productCount", len(products)).
		Int64("inputTokens", usage.InputTokens).
		Int64("outputTokens", usage.OutputTokens).
		Float64("costUSD", usage.CostUSD).
		Msg("product recognition llm call")

	return &AnalysisResult{Products: products, Usage: usage}, nil
}

// calculateGeminiCost estimates the request cost. Unknown models cost 0.
func calculateGeminiCost(model string, inputTokens, outputTokens int64) float64 {
	price, ok := geminiPricing[model]
	if !ok {
		return 0
	}
	inputCost := float64(inputTokens) / 1_000_000 * price.input
	outputCost := float64(outputTokens) / 1_000_000 * price.output
	return inputCost + outputCost
}
