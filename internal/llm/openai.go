package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sweetbite/mealqa/internal/config"
)

// OpenAIClient talks to an OpenAI-compatible API for both embeddings and
// chat completions.
type OpenAIClient struct {
	apiKey         string
	baseURL        string
	chatModel      string
	embeddingModel string
	client         *http.Client
}

// NewOpenAIClient creates a client from the gateway configuration.
func NewOpenAIClient(cfg *config.LLMConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm api_key is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	return &OpenAIClient{
		apiKey:         cfg.APIKey,
		baseURL:        baseURL,
		chatModel:      cfg.ChatModel,
		embeddingModel: cfg.EmbeddingModel,
		client: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

type embeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
	Usage struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

// Embed generates an embedding for a single text
func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, &GatewayError{Op: "embed", Err: fmt.Errorf("no embedding returned")}
	}
	return embeddings[0], nil
}

// EmbedBatch generates embeddings for multiple texts
func (c *OpenAIClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	req := embeddingRequest{
		Input: texts,
		Model: c.embeddingModel,
	}

	body, err := c.post(ctx, "/embeddings", req)
	if err != nil {
		return nil, &GatewayError{Op: "embed", Err: err}
	}

	var apiResp embeddingResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, &GatewayError{Op: "embed", Err: fmt.Errorf("failed to parse response: %w", err)}
	}

	if len(apiResp.Data) != len(texts) {
		return nil, &GatewayError{Op: "embed", Err: fmt.Errorf("expected %d embeddings, got %d", len(texts), len(apiResp.Data))}
	}

	embeddings := make([][]float32, len(texts))
	for _, data := range apiResp.Data {
		if data.Index < 0 || data.Index >= len(texts) {
			return nil, &GatewayError{Op: "embed", Err: fmt.Errorf("invalid embedding index: %d", data.Index)}
		}
		embeddings[data.Index] = data.Embedding
	}

	return embeddings, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// Chat sends one generation request. History turns are placed between the
// system prompt and the current user query.
func (c *OpenAIClient) Chat(ctx context.Context, req ChatRequest) (string, error) {
	messages := make([]chatMessage, 0, len(req.History)+2)
	messages = append(messages, chatMessage{Role: "system", Content: req.System})
	for _, turn := range req.History {
		messages = append(messages, chatMessage{Role: turn.Role, Content: turn.Content})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.User})

	apiReq := chatRequest{
		Model:       c.chatModel,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}

	body, err := c.post(ctx, "/chat/completions", apiReq)
	if err != nil {
		return "", &GatewayError{Op: "chat", Err: err}
	}

	var apiResp chatResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return "", &GatewayError{Op: "chat", Err: fmt.Errorf("failed to parse response: %w", err)}
	}
	if len(apiResp.Choices) == 0 {
		return "", &GatewayError{Op: "chat", Err: fmt.Errorf("no choices in response")}
	}

	return apiResp.Choices[0].Message.Content, nil
}

func (c *OpenAIClient) post(ctx context.Context, path string, payload any) ([]byte, error) {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}

	return body, nil
}
