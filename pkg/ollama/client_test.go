package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ollama/ollama/api"
)

func TestNewClient(t *testing.T) {
	if _, err := NewClient("http://localhost:11434/api/chat"); err != nil {
		t.Errorf("NewClient failed: %v", err)
	}
	if _, err := NewClient("not a url"); err == nil {
		t.Error("Expected error for URL without scheme and host")
	}
}

func TestModelOptions(t *testing.T) {
	if opts := modelOptions("openbmb/minicpm-v4.5"); opts["num_ctx"] != 4096 {
		t.Errorf("Expected tuned options for minicpm-v4, got %v", opts)
	}
	if opts := modelOptions("llava:13b"); len(opts) != 0 {
		t.Errorf("Expected no options for llava, got %v", opts)
	}
}

func TestQuery(t *testing.T) {
	var got api.ChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(api.ChatResponse{
			Model:   got.Model,
			Message: api.Message{Role: "assistant", Content: "a cat on a sofa"},
			Done:    true,
		})
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL + "/api/chat")
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	text, err := c.Query(context.Background(), "llava", "describe", "aGVsbG8=")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if text != "a cat on a sofa" {
		t.Errorf("Unexpected reply %q", text)
	}
	if len(got.Messages) != 1 || len(got.Messages[0].Images) != 1 {
		t.Fatalf("Expected one message with one image, got %+v", got.Messages)
	}
	if string(got.Messages[0].Images[0]) != "hello" {
		t.Errorf("Expected decoded image bytes, got %q", got.Messages[0].Images[0])
	}
}

func TestQueryRejectsBadBase64(t *testing.T) {
	c, _ := NewClient("http://127.0.0.1:1")
	if _, err := c.Query(context.Background(), "m", "p", "***"); err == nil {
		t.Error("Expected error for invalid base64")
	}
}
