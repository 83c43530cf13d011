package platforms

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ollama/ollama/api"
)

// OllamaPlatform is a text-generation backend reached through the Ollama
// API. The host comes from OLLAMA_HOST.
type OllamaPlatform struct {
	client *api.Client
	model  string
}

func NewOllamaPlatform(model string) (*OllamaPlatform, error) {
	if model == "" {
		return nil, errors.New("ollama: model cannot be empty")
	}

	client, err := api.ClientFromEnvironment()
	if err != nil {
		return nil, fmt.Errorf("failed to create Ollama client: %w", err)
	}

	return &OllamaPlatform{
		client: client,
		model:  model,
	}, nil
}

func (o *OllamaPlatform) Client() *api.Client { return o.client }

func (o *OllamaPlatform) Model() string { return o.model }

func (o *OllamaPlatform) Generate(ctx context.Context, request *api.GenerateRequest, respFunc api.GenerateResponseFunc) error {
	request.Model = o.model
	return o.Client().Generate(ctx, request, respFunc)
}

// Summarize sends prompt without streaming and returns the generated text.
func (o *OllamaPlatform) Summarize(ctx context.Context, prompt string) (string, error) {
	req := &api.GenerateRequest{
		Prompt: prompt,
		Stream: new(bool),
	}

	var out strings.Builder
	err := o.Generate(ctx, req, func(resp api.GenerateResponse) error {
		out.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}

	return strings.TrimSpace(out.String()), nil
}
