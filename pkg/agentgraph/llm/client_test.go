package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newStubProvider serves a canned OpenAI-style completion response.
func newStubProvider(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := New("test-key", WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	return srv, client
}

func completionBody(content, model string, prompt, completion int) string {
	return `{
		"model": "` + model + `",
		"choices": [{"message": {"content": "` + content + `"}}],
		"usage": {"prompt_tokens": ` + itoa(prompt) + `, "completion_tokens": ` + itoa(completion) + `, "total_tokens": ` + itoa(prompt+completion) + `}
	}`
}

func itoa(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func TestClient_Complete(t *testing.T) {
	var gotAuth, gotPath string
	var gotBody map[string]any

	_, client := newStubProvider(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write([]byte(completionBody("Hi there!", "openai/gpt-4o-mini", 100, 50)))
	})

	comp, err := client.Complete(context.Background(), CompletionRequest{
		Model: "openai/gpt-4o-mini",
		Messages: []Message{
			{Role: RoleSystem, Content: "Be brief."},
			{Role: RoleUser, Content: "Hello"},
		},
		Temperature: 0.5,
		MaxTokens:   64,
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "/chat/completions", gotPath)
	assert.Equal(t, "openai/gpt-4o-mini", gotBody["model"])
	assert.InDelta(t, 0.5, gotBody["temperature"], 1e-9)
	assert.InDelta(t, 64, gotBody["max_tokens"], 1e-9)

	assert.Equal(t, "Hi there!", comp.Content)
	assert.Equal(t, "openai/gpt-4o-mini", comp.Model)
	assert.Equal(t, 150, comp.Usage.TotalTokens)
	// 100 prompt * 0.15/M + 50 completion * 0.60/M
	assert.InDelta(t, 100*0.15/1e6+50*0.60/1e6, comp.Usage.Cost, 1e-12)
}

func TestClient_Complete_NoAPIKey(t *testing.T) {
	client := New("")
	_, err := client.Complete(context.Background(), CompletionRequest{Model: "m"})
	assert.Error(t, err)
}

func TestClient_Complete_APIError(t *testing.T) {
	_, client := newStubProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": "rate limited"}`))
	})

	_, err := client.Complete(context.Background(), CompletionRequest{Model: "m"})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "rate limited")
}

func TestClient_Complete_NoChoices(t *testing.T) {
	_, client := newStubProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"model": "m", "choices": [], "usage": {}}`))
	})

	_, err := client.Complete(context.Background(), CompletionRequest{Model: "m"})
	assert.ErrorContains(t, err, "no choices")
}

func TestClient_Complete_ModelFallback(t *testing.T) {
	// Some providers omit the model in the response; the requested model is
	// used for pricing then.
	_, client := newStubProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": [{"message": {"content": "ok"}}], "usage": {"prompt_tokens": 10, "completion_tokens": 10, "total_tokens": 20}}`))
	})

	comp, err := client.Complete(context.Background(), CompletionRequest{Model: "openai/gpt-4o"})
	require.NoError(t, err)
	assert.Equal(t, "openai/gpt-4o", comp.Model)
	assert.InDelta(t, 10*2.50/1e6+10*10.00/1e6, comp.Usage.Cost, 1e-12)
}

func TestClient_Race_FirstSuccessWins(t *testing.T) {
	_, client := newStubProvider(t, func(w http.ResponseWriter, r *http.Request) {
		var req CompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		switch req.Model {
		case "slow":
			time.Sleep(200 * time.Millisecond)
			w.Write([]byte(completionBody("slow answer", "slow", 1, 1)))
		default:
			w.Write([]byte(completionBody("fast answer", "fast", 1, 1)))
		}
	})

	comp, err := client.Race(context.Background(), []string{"slow", "fast"}, CompletionRequest{})
	require.NoError(t, err)
	assert.Equal(t, "fast answer", comp.Content)
}

func TestClient_Race_AllFail(t *testing.T) {
	_, client := newStubProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.Race(context.Background(), []string{"a", "b"}, CompletionRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all 2 models failed")

	var apiErr *APIError
	assert.ErrorAs(t, err, &apiErr)
}

func TestClient_Race_NoModels(t *testing.T) {
	client := New("key")
	_, err := client.Race(context.Background(), nil, CompletionRequest{})
	assert.Error(t, err)
}

func TestClient_Race_LosersCancelled(t *testing.T) {
	var started, cancelled atomic.Int32

	_, client := newStubProvider(t, func(w http.ResponseWriter, r *http.Request) {
		var req CompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		if req.Model == "winner" {
			w.Write([]byte(completionBody("won", "winner", 1, 1)))
			return
		}
		started.Add(1)
		select {
		case <-r.Context().Done():
			cancelled.Add(1)
		case <-time.After(5 * time.Second):
		}
	})

	comp, err := client.Race(context.Background(), []string{"loser", "winner"}, CompletionRequest{})
	require.NoError(t, err)
	assert.Equal(t, "won", comp.Content)

	// The losing branch's request context is cancelled once the winner
	// settles.
	assert.Eventually(t, func() bool {
		return started.Load() == 0 || cancelled.Load() == started.Load()
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPricing(t *testing.T) {
	t.Run("free tier costs zero", func(t *testing.T) {
		assert.True(t, IsFree("meta-llama/llama-3.1-8b-instruct:free"))
		assert.Zero(t, Cost("meta-llama/llama-3.1-8b-instruct:free", 1_000_000, 1_000_000))
	})

	t.Run("known model uses table rate", func(t *testing.T) {
		// 1M input + 1M output at the gpt-4o rate.
		assert.InDelta(t, 12.50, Cost("openai/gpt-4o", 1_000_000, 1_000_000), 1e-9)
	})

	t.Run("unknown model uses default rate", func(t *testing.T) {
		p := PriceFor("madeup/model-x")
		assert.Equal(t, DefaultPrice, p)
		assert.InDelta(t, 3.00, Cost("madeup/model-x", 1_000_000, 1_000_000), 1e-9)
	})

	t.Run("zero tokens cost nothing", func(t *testing.T) {
		assert.Zero(t, Cost("openai/gpt-4o", 0, 0))
	})
}
