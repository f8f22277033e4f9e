package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestClient_EmbedDocuments(t *testing.T) {
	var gotAuth string
	var gotBody embedRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{
				{"embedding": []float32{0.1, 0.2}, "index": 0},
				{"embedding": []float32{0.3, 0.4}, "index": 1},
			},
		})
	}))
	defer server.Close()

	client := NewClient("test-key", "", WithBaseURL(server.URL))
	vectors, err := client.EmbedDocuments(context.Background(), []string{"vacation days", "sick leave"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(vectors) != 2 || len(vectors[0]) != 2 {
		t.Fatalf("unexpected vectors: %v", vectors)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("expected bearer auth, got %q", gotAuth)
	}
	if gotBody.Model != defaultModel {
		t.Errorf("expected default model, got %q", gotBody.Model)
	}
	if len(gotBody.Input) != 2 || gotBody.Input[0] != "vacation days" {
		t.Errorf("unexpected input: %v", gotBody.Input)
	}
}

func TestClient_EmbedQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{{"embedding": []float32{0.5}, "index": 0}},
		})
	}))
	defer server.Close()

	client := NewClient("test-key", "text-embedding-3-large", WithBaseURL(server.URL))
	vector, err := client.EmbedQuery(context.Background(), "how many vacation days")
	if err != nil {
		t.Fatalf("embed query: %v", err)
	}
	if len(vector) != 1 || vector[0] != 0.5 {
		t.Errorf("unexpected vector: %v", vector)
	}
}

func TestClient_APIErrorSurfaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]string{"message": "invalid api key", "type": "invalid_request_error"},
		})
	}))
	defer server.Close()

	client := NewClient("bad-key", "", WithBaseURL(server.URL))
	_, err := client.EmbedDocuments(context.Background(), []string{"text"})
	if err == nil || !strings.Contains(err.Error(), "invalid api key") {
		t.Fatalf("expected api error, got %v", err)
	}
}

func TestClient_EmptyInput(t *testing.T) {
	client := NewClient("test-key", "")
	vectors, err := client.EmbedDocuments(context.Background(), nil)
	if err != nil || vectors != nil {
		t.Fatalf("expected no-op, got %v (%v)", vectors, err)
	}
}
