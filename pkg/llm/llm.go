package llm

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Roles accepted in a chat prompt
const (
	RoleSystem    = openai.ChatMessageRoleSystem
	RoleUser      = openai.ChatMessageRoleUser
	RoleAssistant = openai.ChatMessageRoleAssistant
)

// Message is one turn of a chat prompt
type Message struct {
	Role    string
	Content string
}

// Sampling holds the generation parameters sent with every request
type Sampling struct {
	Temperature float32
	MaxTokens   int
}

// Config holds the client settings
type Config struct {
	APIKey  string
	BaseURL string // OpenAI-compatible endpoint, e.g. https://openrouter.ai/api/v1
	Model   string
	Timeout time.Duration
}

// Client talks to an OpenAI-compatible chat completion API
type Client struct {
	api   *openai.Client
	model string
}

// NewClient creates a new chat completion client
func NewClient(cfg Config) *Client {
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	apiCfg.HTTPClient = &http.Client{Timeout: timeout}

	return &Client{
		api:   openai.NewClientWithConfig(apiCfg),
		model: cfg.Model,
	}
}

// Complete sends the messages and returns the first choice's text
func (c *Client) Complete(ctx context.Context, messages []Message, sampling Sampling) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("Complete: no messages provided")
	}

	chat := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		chat[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    chat,
		Temperature: sampling.Temperature,
		MaxTokens:   sampling.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("Complete: request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("Complete: no choices returned")
	}

	log.Printf("Complete successful. Model %s used %d tokens", resp.Model, resp.Usage.TotalTokens)
	return resp.Choices[0].Message.Content, nil
}
