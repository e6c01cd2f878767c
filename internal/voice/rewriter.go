package voice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// VLLMRewriterConfig points the rewriter at an OpenAI-compatible chat
// completions endpoint; a local vLLM instance in the usual deployment.
type VLLMRewriterConfig struct {
	BaseURL string
	Model   string
	APIKey  string
	Timeout time.Duration
}

// VLLMRewriter condenses text for speech via one chat completion per call.
type VLLMRewriter struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

func NewVLLMRewriter(cfg VLLMRewriterConfig) *VLLMRewriter {
	apiKey := cfg.APIKey
	if apiKey == "" {
		// vLLM ignores the key but the client requires one.
		apiKey = "unused"
	}
	clientCfg := openai.DefaultConfig(apiKey)
	if strings.TrimSpace(cfg.BaseURL) != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &VLLMRewriter{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   strings.TrimSpace(cfg.Model),
		timeout: timeout,
	}
}

func (r *VLLMRewriter) Rewrite(ctx context.Context, text, instruction string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: r.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: fmt.Sprintf("%s\n\nResponse to summarize:\n%s\n\nSpoken summary:", instruction, text),
			},
		},
		MaxTokens:   200,
		Temperature: 0.3,
	})
	if err != nil {
		return "", fmt.Errorf("rewrite completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("rewrite completion returned no choices")
	}

	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	if out == "" {
		return "", errors.New("rewrite completion returned empty text")
	}
	return out, nil
}
