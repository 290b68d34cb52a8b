package integrations

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/codeready-toolchain/assistants-engine/pkg/action"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTokenSource struct{ token string }

func (f fakeTokenSource) CurrentToken() string { return f.token }

func TestInvoke_ReturnsNormalizedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/invoke", r.URL.Path)
		assert.Equal(t, "org-1", r.Header.Get("X-Org-Id"))
		_ = json.NewEncoder(w).Encode(action.LLMResponse{Provider: "openai", Model: "gpt", Content: "hi", FinishReason: action.FinishStop})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "org-1", "svc-engine", fakeTokenSource{token: "tok"})
	resp, err := c.Invoke(context.Background(), action.LLMRequest{Provider: "openai", Model: "gpt", Operation: "chat", Timeout: 10 * time.Second})

	require.NoError(t, err)
	assert.Equal(t, "hi", resp.Content)
	assert.Equal(t, action.FinishStop, resp.FinishReason)
}

func TestInvoke_UnauthorizedRaisesTokenAuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "org-1", "svc-engine", fakeTokenSource{token: "tok"})
	_, err := c.Invoke(context.Background(), action.LLMRequest{Provider: "openai", Model: "gpt"})

	var te *action.TokenAuthError
	require.ErrorAs(t, err, &te)
}

func TestCreateEmbeddings_ReturnsVectors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embeddings", r.URL.Path)
		_ = json.NewEncoder(w).Encode(action.EmbeddingResponse{Provider: "openai", Embeddings: [][]float64{{0.1, 0.2}}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "org-1", "svc-engine", fakeTokenSource{token: "tok"})
	resp, err := c.CreateEmbeddings(context.Background(), action.EmbeddingRequest{Texts: []string{"hello"}})

	require.NoError(t, err)
	assert.Equal(t, [][]float64{{0.1, 0.2}}, resp.Embeddings)
}

func TestInvokeIntegration_PostsNamespaceAndParams(t *testing.T) {
	var gotBody integrationInvokeBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/integrations/invoke", r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"ok": true})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "org-1", "svc-engine", fakeTokenSource{token: "tok"})
	out, err := c.InvokeIntegration(context.Background(), "openai.chat.completions", map[string]interface{}{"model": "gpt"}, 5*time.Second)

	require.NoError(t, err)
	assert.Equal(t, true, out["ok"])
	assert.Equal(t, "openai.chat.completions", gotBody.Namespace)
}
