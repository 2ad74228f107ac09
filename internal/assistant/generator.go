package assistant

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"google.golang.org/genai"
)

// Generator produces an answer from a fully composed prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string, params DecodingParams) (string, error)
}

// GenkitGenerator implements Generator on a Genkit instance.
type GenkitGenerator struct {
	g         *genkit.Genkit
	modelName string
}

// NewGenerator creates a generator bound to the provider-qualified model name.
func NewGenerator(g *genkit.Genkit, modelName string) (*GenkitGenerator, error) {
	if g == nil {
		return nil, fmt.Errorf("genkit instance is required")
	}
	if modelName == "" {
		return nil, fmt.Errorf("model name is required")
	}
	return &GenkitGenerator{g: g, modelName: modelName}, nil
}

// Generate runs one model call with the scenario's decoding parameters.
func (gg *GenkitGenerator) Generate(ctx context.Context, prompt string, params DecodingParams) (string, error) {
	resp, err := genkit.Generate(ctx, gg.g,
		ai.WithModelName(gg.modelName),
		ai.WithPrompt(prompt),
		ai.WithConfig(&genai.GenerateContentConfig{
			Temperature:     genai.Ptr(params.Temperature),
			TopP:            genai.Ptr(params.TopP),
			TopK:            genai.Ptr(params.TopK),
			MaxOutputTokens: params.MaxOutputTokens,
		}),
	)
	if err != nil {
		return "", fmt.Errorf("%w: generating answer: %v", ErrUpstreamUnavailable, err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("%w: model returned empty answer", ErrUpstreamUnavailable)
	}
	return text, nil
}
