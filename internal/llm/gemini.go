package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// Client wraps the Gemini API for single-shot content generation.
type Client struct {
	client *genai.Client
	model  string
}

// New dials the Gemini API with the given key. The model name is fixed for
// the lifetime of the client.
func New(ctx context.Context, apiKey, model string) (*Client, error) {
	clientConfig := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Client{client: client, model: model}, nil
}

// Generate returns the model's text response for prompt.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("model %s returned an empty response", c.model)
	}
	return text, nil
}
