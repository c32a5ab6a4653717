// Package completion provides the text-completion collaborator used to
// generate assistant replies. The production implementation calls the Gemini
// API; callers depend on the Client interface so the collaborator can be
// replaced in tests.
package completion

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of the bounded conversation history sent to the model.
type Message struct {
	Role    Role
	Content string
}

// Client generates a completion from a system directive and a bounded
// message history. Implementations must respect the context deadline.
type Client interface {
	Complete(ctx context.Context, systemPrompt string, history []Message) (string, error)
}

// Config holds the sampling controls for the Gemini client.
type Config struct {
	APIKey          string
	Model           string
	Temperature     float32
	MaxOutputTokens int32
}

// GeminiClient implements Client against the Gemini API.
type GeminiClient struct {
	client *genai.Client
	config Config
}

// NewGeminiClient creates a completion client for the configured model.
func NewGeminiClient(ctx context.Context, cfg Config) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key not configured")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.7
	}
	if cfg.MaxOutputTokens == 0 {
		cfg.MaxOutputTokens = 150
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &GeminiClient{client: client, config: cfg}, nil
}

// Complete sends the history to the model and returns the generated text.
// An empty model response is reported as an error so callers can fall back.
func (g *GeminiClient) Complete(ctx context.Context, systemPrompt string, history []Message) (string, error) {
	contents := make([]*genai.Content, 0, len(history))
	for _, msg := range history {
		role := genai.RoleUser
		if msg.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(msg.Content, genai.Role(role)))
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.config.Model, contents, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		Temperature:       genai.Ptr(g.config.Temperature),
		MaxOutputTokens:   g.config.MaxOutputTokens,
	})
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("empty completion response")
	}

	return text, nil
}
