package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/sashabaranov/go-openai"

	"github.com/garnizeh/prep/pkg/ollama"
)

// Chat roles understood by every provider.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	roleSystem    = "system"
)

type Message struct {
	Role    string
	Content string
}

// Request is a single generation. When Schema is set the provider is asked
// for a JSON object matching it.
type Request struct {
	System   string
	Messages []Message
	Schema   json.RawMessage
}

// Provider streams a completion, calling fn with every fragment, and returns
// the full text. An error from fn aborts the generation and is returned.
type Provider interface {
	Name() string
	Stream(ctx context.Context, req Request, fn func(chunk string) error) (string, error)
}

// OllamaProvider generates with a local model through the Ollama client.
type OllamaProvider struct {
	client *ollama.Client
	model  string
}

func NewOllamaProvider(client *ollama.Client, model string) *OllamaProvider {
	return &OllamaProvider{client: client, model: model}
}

func (p *OllamaProvider) Name() string { return "ollama" }

func (p *OllamaProvider) Stream(ctx context.Context, req Request, fn func(chunk string) error) (string, error) {
	msgs := make([]ollama.Message, 0, len(req.Messages)+1)
	if req.System != "" {
		msgs = append(msgs, ollama.Message{Role: roleSystem, Content: req.System})
	}
	for _, m := range req.Messages {
		msgs = append(msgs, ollama.Message{Role: m.Role, Content: m.Content})
	}

	return p.client.Chat(ctx, ollama.ChatRequest{
		Model:    p.model,
		Messages: msgs,
		Format:   req.Schema,
	}, fn)
}

// OpenAIProvider talks to any OpenAI compatible chat completions endpoint.
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

// NewOpenAIProvider builds a provider for baseURL (empty means the OpenAI
// default). httpClient may be nil.
func NewOpenAIProvider(baseURL, apiKey, model string, httpClient *http.Client) *OpenAIProvider {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	return &OpenAIProvider{client: openai.NewClientWithConfig(cfg), model: model}
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) Stream(ctx context.Context, req Request, fn func(chunk string) error) (string, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	for _, m := range req.Messages {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	creq := openai.ChatCompletionRequest{
		Model:    p.model,
		Messages: msgs,
		Stream:   true,
	}
	if len(req.Schema) > 0 {
		creq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "result",
				Schema: req.Schema,
			},
		}
	}

	stream, err := p.client.CreateChatCompletionStream(ctx, creq)
	if err != nil {
		return "", fmt.Errorf("openai stream: %w", err)
	}
	defer stream.Close()

	var out []byte
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return string(out), nil
		}
		if err != nil {
			return string(out), fmt.Errorf("openai recv: %w", err)
		}
		for _, ch := range resp.Choices {
			if ch.Delta.Content == "" {
				continue
			}
			out = append(out, ch.Delta.Content...)
			if fn != nil {
				if err := fn(ch.Delta.Content); err != nil {
					return string(out), err
				}
			}
		}
	}
}
