package chat

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cloo-solutions/ragchat/internal/api/handlers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const biology = "Cells are the basic unit of life.\n\nDNA carries genetic information.\nEnzymes speed up chemical reactions.\n"

// fakeOllama embeds by keyword and answers with the first context line it
// was given.
func fakeOllama(t *testing.T) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		switch r.URL.Path {
		case "/api/embeddings":
			var req struct {
				Prompt string `json:"prompt"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

			text := strings.ToLower(req.Prompt)
			vec := []float64{0.1, 0.1, 0.1}
			switch {
			case strings.Contains(text, "cell"):
				vec = []float64{1, 0, 0}
			case strings.Contains(text, "dna"), strings.Contains(text, "genetic"):
				vec = []float64{0, 1, 0}
			case strings.Contains(text, "enzyme"):
				vec = []float64{0, 0, 1}
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"embedding": vec})

		case "/api/chat":
			var req struct {
				Messages []struct {
					Role    string `json:"role"`
					Content string `json:"content"`
				} `json:"messages"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			require.Len(t, req.Messages, 2)

			user := req.Messages[1].Content
			contextBlock := strings.TrimPrefix(strings.SplitN(user, "\n\nQuestion:", 2)[0], "Context:\n")
			first := strings.SplitN(contextBlock, "\n", 2)[0]

			_ = json.NewEncoder(w).Encode(map[string]any{
				"model":   "gemma:2b",
				"message": map[string]string{"role": "assistant", "content": "From my material: " + first},
				"done":    true,
			})

		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func runRoot(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	root := NewRootCmd("test")
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)

	err := root.Execute()
	return out.String(), err
}

func setupEnv(t *testing.T) string {
	t.Helper()
	srv := fakeOllama(t)
	t.Setenv("RAGCHAT_PROVIDER", "ollama")
	t.Setenv("RAGCHAT_OLLAMA_HOST", srv.URL)
	return writeKnowledge(t, biology)
}

func TestE2E_Ask(t *testing.T) {
	path := setupEnv(t)

	out, err := runRoot(t, "", "ask", "What is a cell?", "--source", path, "--top-k", "1")

	require.NoError(t, err)
	assert.Equal(t, "From my material: Cells are the basic unit of life.\n", out)
}

func TestE2E_SearchJSON(t *testing.T) {
	path := setupEnv(t)

	out, err := runRoot(t, "", "search", "genetic", "-k", "2", "--source", path, "--output")

	require.NoError(t, err)
	var resp handlers.SearchResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "DNA carries genetic information.", resp.Results[0].Text)
	assert.Equal(t, 1, resp.Results[0].Index)
	assert.InDelta(t, 1.0, resp.Results[0].Score, 1e-6)
}

func TestE2E_InteractiveChatIsDefault(t *testing.T) {
	path := setupEnv(t)
	t.Setenv("RAGCHAT_EXIT_KEYWORD", "sair")

	out, err := runRoot(t, "Tell me about enzymes\nsair\n", "--source", path)

	require.NoError(t, err)
	assert.Contains(t, out, "Chatbot: Thinking...")
	assert.Contains(t, out, "Chatbot: From my material: Enzymes speed up chemical reactions.")
	assert.Contains(t, out, "Chatbot: Goodbye!")
}

func TestE2E_MissingSourceFails(t *testing.T) {
	setupEnv(t)

	_, err := runRoot(t, "", "ask", "What is a cell?", "--source", "does-not-exist.txt")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "SOURCE_UNAVAILABLE")
}

func TestE2E_EmbeddingServiceDown(t *testing.T) {
	path := writeKnowledge(t, biology)
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model not loaded"}`, http.StatusInternalServerError)
	}))
	t.Cleanup(down.Close)
	t.Setenv("RAGCHAT_OLLAMA_HOST", down.URL)

	_, err := runRoot(t, "", "search", "cells", "--source", path)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "EMBEDDING_UNAVAILABLE")
}

func TestE2E_ProviderFlagOverridesInvalidEnvironment(t *testing.T) {
	srv := fakeOllama(t)
	t.Setenv("RAGCHAT_OLLAMA_HOST", srv.URL)
	t.Setenv("RAGCHAT_PROVIDER", "openai")
	t.Setenv("RAGCHAT_OPENAI_API_KEY", "")
	t.Setenv("RAGCHAT_OPENAI_BASE_URL", "")
	path := writeKnowledge(t, biology)

	out, err := runRoot(t, "", "search", "dna", "--source", path, "--provider", "ollama", "-k", "1")

	require.NoError(t, err)
	assert.Contains(t, out, "DNA carries genetic information.")
}

func TestE2E_PushValidatesOnlyStorageSettings(t *testing.T) {
	t.Setenv("RAGCHAT_PROVIDER", "openai")
	t.Setenv("RAGCHAT_OPENAI_API_KEY", "")
	t.Setenv("RAGCHAT_OPENAI_BASE_URL", "")
	t.Setenv("RAGCHAT_S3_ACCESS_KEY_ID", "key")
	t.Setenv("RAGCHAT_S3_SECRET_ACCESS_KEY", "")
	path := writeKnowledge(t, biology)

	_, err := runRoot(t, "", "push", path, "s3://kb/biology.txt")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "S3_SECRET_ACCESS_KEY")
	assert.NotContains(t, err.Error(), "OPENAI_API_KEY")
}
