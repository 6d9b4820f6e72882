package classifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

var categories = []string{"Travel", "Food", "Clothes", "Entertainment", "Health"}

func TestKeywordClassifier(t *testing.T) {
	c := NewKeywordClassifier(nil)
	ctx := context.Background()

	tests := []struct {
		description string
		want        string
	}{
		{"Lunch with Ana", "Food"},
		{"taxi to the airport", "Travel"},
		{"new shoes!", "Clothes"},
		{"health insurance", "Health"},
		{"birthday gift", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Suggest(ctx, tt.description, categories))
		})
	}
}

func TestKeywordClassifier_OnlyOfferedCategories(t *testing.T) {
	c := NewKeywordClassifier(nil)
	assert.Empty(t, c.Suggest(context.Background(), "coffee", []string{"Travel"}))
}

func newGPTServer(t *testing.T, content string, status int) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]string{"role": "assistant", "content": content},
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestGPT(url string) *GPTClassifier {
	return NewGPTClassifier(GPTConfig{
		APIKey:        "test",
		BaseURL:       url + "/v1",
		Model:         "gpt-3.5-turbo",
		MaxTokens:     20,
		MinConfidence: 0.5,
	}, NewKeywordClassifier(nil), zap.NewNop())
}

func TestGPTClassifier_Suggest(t *testing.T) {
	srv := newGPTServer(t, `{"category": "entertainment", "confidence": 0.9}`, http.StatusOK)

	got := newTestGPT(srv.URL).Suggest(context.Background(), "tickets for the show", categories)
	assert.Equal(t, "Entertainment", got)
}

func TestGPTClassifier_LowConfidenceFallsBack(t *testing.T) {
	srv := newGPTServer(t, `{"category": "Health", "confidence": 0.1}`, http.StatusOK)

	got := newTestGPT(srv.URL).Suggest(context.Background(), "coffee", categories)
	assert.Equal(t, "Food", got)
}

func TestGPTClassifier_UnknownCategoryFallsBack(t *testing.T) {
	srv := newGPTServer(t, `{"category": "Groceries", "confidence": 0.99}`, http.StatusOK)

	got := newTestGPT(srv.URL).Suggest(context.Background(), "gift", categories)
	assert.Empty(t, got)
}

func TestGPTClassifier_InvalidJSONFallsBack(t *testing.T) {
	srv := newGPTServer(t, `Food`, http.StatusOK)

	got := newTestGPT(srv.URL).Suggest(context.Background(), "pizza", categories)
	assert.Equal(t, "Food", got)
}

func TestGPTClassifier_APIErrorFallsBack(t *testing.T) {
	srv := newGPTServer(t, "", http.StatusInternalServerError)

	got := newTestGPT(srv.URL).Suggest(context.Background(), "train", categories)
	assert.Equal(t, "Travel", got)
}

func TestGPTClassifier_EmptyDescription(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for an empty description")
	}))
	defer srv.Close()

	assert.Empty(t, newTestGPT(srv.URL).Suggest(context.Background(), "  ", categories))
}
