package classifier

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civictrack/civictrack/internal/shared/logger"
)

var categoryLabels = []string{"pothole", "streetlight", "garbage", "other"}

func TestParsePrediction(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		label      string
		confidence float64
		wantErr    bool
	}{
		{
			name:       "plain json",
			text:       `{"label": "pothole", "scores": {"pothole": 0.9, "garbage": 0.1}}`,
			label:      "pothole",
			confidence: 0.9,
		},
		{
			name:       "wrapped in prose",
			text:       "Here you go:\n```json\n{\"label\": \"Garbage\", \"scores\": {\"garbage\": 0.7, \"other\": 0.3}}\n```",
			label:      "garbage",
			confidence: 0.7,
		},
		{
			name:       "scores above one are normalized",
			text:       `{"label": "pothole", "scores": {"pothole": 0.9, "other": 0.6}}`,
			label:      "pothole",
			confidence: 0.6,
		},
		{
			name:       "explicit confidence wins",
			text:       `{"label": "streetlight", "confidence": 0.66, "scores": {"streetlight": 0.4}}`,
			label:      "streetlight",
			confidence: 0.66,
		},
		{
			name:       "unknown label keeps zero confidence",
			text:       `{"label": "volcano", "scores": {"pothole": 0.2}}`,
			label:      "volcano",
			confidence: 0,
		},
		{name: "no json", text: "I think it is a pothole", wantErr: true},
		{name: "empty label", text: `{"label": ""}`, wantErr: true},
		{name: "broken json", text: `{"label": "pothole",}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePrediction(tt.text, categoryLabels)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.label, got.Label)
			assert.InDelta(t, tt.confidence, got.Confidence, 1e-9)
			assert.Len(t, got.Scores, len(categoryLabels))
		})
	}
}

func TestAnthropicClassifier_Classify(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "msg_01",
			"type": "message",
			"role": "assistant",
			"model": "test-model",
			"content": [{"type": "text", "text": "{\"label\": \"pothole\", \"scores\": {\"pothole\": 0.88, \"other\": 0.12}}"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 120, "output_tokens": 30}
		}`)
	}))
	defer srv.Close()

	c := NewAnthropicClassifier("test-key", "test-model", logger.NewNopLogger(),
		option.WithBaseURL(srv.URL), option.WithMaxRetries(0))

	pred, err := c.Classify(context.Background(), "Deep pothole near the school", categoryLabels)
	require.NoError(t, err)
	assert.Equal(t, "pothole", pred.Label)
	assert.InDelta(t, 0.88, pred.Confidence, 1e-9)

	assert.Equal(t, "test-model", gotBody["model"])
	messages, ok := gotBody["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 1)
	raw, _ := json.Marshal(messages[0])
	assert.True(t, strings.Contains(string(raw), "Deep pothole near the school"))
}

func TestAnthropicClassifier_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"type": "error", "error": {"type": "api_error", "message": "boom"}}`)
	}))
	defer srv.Close()

	c := NewAnthropicClassifier("test-key", "", logger.NewNopLogger(),
		option.WithBaseURL(srv.URL), option.WithMaxRetries(0))
	assert.Equal(t, DefaultModel, c.Model())

	_, err := c.Classify(context.Background(), "text", categoryLabels)
	assert.Error(t, err)
}

func TestHashEmbedder(t *testing.T) {
	e := NewHashEmbedder(0)
	ctx := context.Background()

	a, err := e.Embed(ctx, "Large pothole on MG Road near the metro station")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "large POTHOLE on mg road, near the metro station!")
	require.NoError(t, err)
	c, err := e.Embed(ctx, "Streetlight not working in the park since Monday")
	require.NoError(t, err)

	assert.Len(t, a, DefaultEmbeddingDimensions)
	assert.InDelta(t, 1.0, dot(a, a), 1e-9)
	assert.InDelta(t, 1.0, dot(a, b), 1e-9)
	assert.Less(t, dot(a, c), 0.5)

	empty, err := e.Embed(ctx, "  ...  ")
	require.NoError(t, err)
	assert.Zero(t, dot(empty, empty))
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}
