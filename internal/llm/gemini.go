package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/genai"
)

// GeminiClient implements Client on the Gemini Go SDK.
type GeminiClient struct {
	apiKey string
	model  string

	once    sync.Once
	client  *genai.Client
	initErr error
}

// NewGeminiClient returns a client whose SDK connection is created on first use.
func NewGeminiClient(apiKey, model string) *GeminiClient {
	return &GeminiClient{apiKey: apiKey, model: model}
}

func (c *GeminiClient) ensureClient(ctx context.Context) error {
	c.once.Do(func() {
		c.client, c.initErr = genai.NewClient(ctx, &genai.ClientConfig{
			Backend: genai.BackendGeminiAPI,
			APIKey:  c.apiKey,
		})
		if c.initErr != nil {
			c.initErr = fmt.Errorf("failed to create Gemini client: %w", c.initErr)
		}
	})
	return c.initErr
}

func (c *GeminiClient) Complete(ctx context.Context, prompt string) (string, error) {
	return c.ChatComplete(ctx, []Message{{Role: "user", Content: prompt}})
}

func (c *GeminiClient) ChatComplete(ctx context.Context, messages []Message) (string, error) {
	if err := c.ensureClient(ctx); err != nil {
		return "", err
	}

	contents, system := geminiContents(messages)
	if len(contents) == 0 {
		return "", fmt.Errorf("no user/assistant messages provided")
	}

	temperature := float32(0)
	cfg := &genai.GenerateContentConfig{
		Temperature:       &temperature,
		SystemInstruction: system,
	}

	result, err := c.client.Models.GenerateContent(ctx, c.model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini: %w", err)
	}
	return strings.TrimSpace(result.Text()), nil
}

// geminiContents maps chat messages onto Gemini roles; the system message
// becomes the system instruction.
func geminiContents(messages []Message) ([]*genai.Content, *genai.Content) {
	var contents []*genai.Content
	var system *genai.Content
	for _, m := range messages {
		role := genai.RoleUser
		switch m.Role {
		case "system":
			system = genai.NewContentFromText(m.Content, genai.RoleUser)
			continue
		case "assistant":
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, genai.Role(role)))
	}
	return contents, system
}
