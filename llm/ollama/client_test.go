package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"policyrag/llm"
)

func TestClient_Chat(t *testing.T) {
	var gotPath string
	var gotBody chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"message": map[string]string{"role": "assistant", "content": "Fifteen days."},
		})
	}))
	defer server.Close()

	client := NewClient("llama3.1", WithBaseURL(server.URL))
	answer, err := client.Chat(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "Vacation days?"}})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if answer != "Fifteen days." {
		t.Errorf("unexpected answer: %q", answer)
	}
	if gotPath != "/api/chat" {
		t.Errorf("expected /api/chat, got %q", gotPath)
	}
	if gotBody.Stream {
		t.Errorf("expected non-streaming request")
	}
	if gotBody.Options["temperature"] != defaultTemperature {
		t.Errorf("expected default temperature, got %v", gotBody.Options["temperature"])
	}
}

func TestClient_ErrorFieldSurfaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "model not found"})
	}))
	defer server.Close()

	client := NewClient("missing-model", WithBaseURL(server.URL))
	_, err := client.Chat(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "hi"}})
	if err == nil || !strings.Contains(err.Error(), "model not found") {
		t.Fatalf("expected model error, got %v", err)
	}
}

func TestClient_RequiresModel(t *testing.T) {
	client := NewClient("")
	_, err := client.Chat(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "hi"}})
	if err == nil || !strings.Contains(err.Error(), "model is required") {
		t.Fatalf("expected model error, got %v", err)
	}
}
