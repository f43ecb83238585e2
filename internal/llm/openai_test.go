package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sweetbite/mealqa/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *OpenAIClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewOpenAIClient(&config.LLMConfig{
		APIKey:         "test-key",
		BaseURL:        srv.URL,
		ChatModel:      "gpt-4o-mini",
		EmbeddingModel: "text-embedding-3-small",
	})
	if err != nil {
		t.Fatal(err)
	}
	return client
}

func TestEmbedBatch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}

		var req embeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}

		resp := map[string]any{"data": []map[string]any{
			{"embedding": []float32{0, 1}, "index": 1},
			{"embedding": []float32{1, 0}, "index": 0},
		}}
		json.NewEncoder(w).Encode(resp)
	})

	vecs, err := client.EmbedBatch(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("EmbedBatch() error = %v", err)
	}
	// Results come back in input order even when the API reorders them.
	if vecs[0][0] != 1 || vecs[1][1] != 1 {
		t.Errorf("embeddings not mapped back by index: %v", vecs)
	}
}

func TestChatSendsHistoryBetweenSystemAndQuery(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}

		want := []string{"system", "user", "assistant", "user"}
		if len(req.Messages) != len(want) {
			t.Fatalf("got %d messages, want %d", len(req.Messages), len(want))
		}
		for i, role := range want {
			if req.Messages[i].Role != role {
				t.Errorf("message[%d].Role = %q, want %q", i, req.Messages[i].Role, role)
			}
		}
		if req.MaxTokens != 1 {
			t.Errorf("MaxTokens = %d, want 1", req.MaxTokens)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "0"}},
			},
		})
	})

	got, err := client.Chat(context.Background(), ChatRequest{
		System: "classify",
		User:   "what about rice?",
		History: []Message{
			{Role: "user", Content: "I had pasta"},
			{Role: "assistant", Content: "try whole grain"},
		},
		MaxTokens: 1,
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if got != "0" {
		t.Errorf("Chat() = %q, want %q", got, "0")
	}
}

func TestGatewayErrorOnHTTPFailure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	})

	_, err := client.Embed(context.Background(), "text")
	var gwErr *GatewayError
	if !errors.As(err, &gwErr) {
		t.Fatalf("expected GatewayError, got %v", err)
	}
	if gwErr.Op != "embed" {
		t.Errorf("Op = %q, want %q", gwErr.Op, "embed")
	}
}

func TestEmbedBatchCountMismatch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"data": []map[string]any{}})
	})

	_, err := client.EmbedBatch(context.Background(), []string{"a", "b"})
	if err == nil {
		t.Fatal("expected error on embedding count mismatch")
	}
}
