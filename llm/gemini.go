// Package llm wraps the generative model behind the rag.Generator
// interface. The client is created once at startup; generation failures are
// returned to the caller, which degrades to the deterministic fallback.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"
)

type Gemini struct {
	log    *slog.Logger
	client *genai.Client
	model  string
}

// NewGemini builds a Gemini-backed generator. It fails when the client
// cannot be constructed, not when the model is unreachable; reachability
// problems surface per call.
func NewGemini(ctx context.Context, apiKey, model string, log *slog.Logger) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &Gemini{log: log, client: client, model: model}, nil
}

func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(
		ctx,
		g.model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: prompt}}}},
		nil,
	)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("model returned no text")
	}

	g.log.Debug("generated answer", "model", g.model, "prompt_chars", len(prompt), "answer_chars", len(text))
	return text, nil
}
