package genai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

const sampleDiff = `diff --git a/README.md b/README.md
index 3b18e51..a1f2c3d 100644
--- a/README.md
+++ b/README.md
@@ -1,2 +1,3 @@
 # notes
-old line
+new line
+another line
diff --git a/main.go b/main.go
new file mode 100644
index 0000000..e69de29
--- /dev/null
+++ b/main.go
@@ -0,0 +1,2 @@
+package main
+func main() {}
`

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func completionServer(t *testing.T, content string, status int) (*httptest.Server, *string) {
	t.Helper()
	var gotPrompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if len(req.Messages) > 0 {
			gotPrompt = req.Messages[0].Content
		}

		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"quota exceeded","type":"rate_limit"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "cmpl-1",
			"object": "chat.completion",
			"model":  req.Model,
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &gotPrompt
}

func newTestGenerator(baseURL string) *Generator {
	g := New(Config{APIKey: "test-key", BaseURL: baseURL}, quietLogger())
	g.limiter = rate.NewLimiter(rate.Inf, 1)
	return g
}

func TestCommitMessage(t *testing.T) {
	srv, gotPrompt := completionServer(t, "\"docs(readme): reword intro\"\n", http.StatusOK)
	g := newTestGenerator(srv.URL)

	msg, err := g.CommitMessage(context.Background(), sampleDiff)
	require.NoError(t, err)
	assert.Equal(t, "docs(readme): reword intro", msg)
	assert.Contains(t, *gotPrompt, "+new line")
	assert.Contains(t, *gotPrompt, "Angular")
}

func TestCommitMessageRejectedDiff(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"marker on later line", "I cannot summarize this diff.\nSYNTAX_ERROR"},
		{"marker past length limit", "The diff you provided contains binary data only: SYNTAX_ERROR"},
		{"marker alone", "SYNTAX_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := completionServer(t, tt.reply, http.StatusOK)
			g := newTestGenerator(srv.URL)

			msg, err := g.CommitMessage(context.Background(), sampleDiff)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrRejected))
			assert.Empty(t, msg)
		})
	}
}

func TestCommitMessageAPIError(t *testing.T) {
	srv, _ := completionServer(t, "", http.StatusTooManyRequests)
	g := newTestGenerator(srv.URL)

	_, err := g.CommitMessage(context.Background(), sampleDiff)
	require.Error(t, err)
}

func TestCommitMessageNoDiff(t *testing.T) {
	g := newTestGenerator("http://127.0.0.1:1")
	_, err := g.CommitMessage(context.Background(), "  \n")
	assert.True(t, errors.Is(err, ErrNoDiff))
}

func TestDisabledWithoutKey(t *testing.T) {
	g := New(Config{}, quietLogger())
	assert.False(t, g.Enabled())

	_, err := g.CommitMessage(context.Background(), sampleDiff)
	assert.True(t, errors.Is(err, ErrDisabled))

	g.Reconfigure(Config{APIKey: "k"})
	assert.True(t, g.Enabled())
}

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"quotes", `"feat: add login"`, "feat: add login"},
		{"single quotes", `'fix: typo'`, "fix: typo"},
		{"first line", "chore: bump deps\n\nThis updates everything.", "chore: bump deps"},
		{"fenced", "```\nrefactor: split parser\n```", "refactor: split parser"},
		{"truncated", strings.Repeat("x", 80), strings.Repeat("x", 50)},
		{"multibyte", strings.Repeat("é", 60), strings.Repeat("é", 50)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.in))
		})
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize(sampleDiff)
	assert.Equal(t, 2, s.Files)
	assert.Equal(t, 4, s.Added)
	assert.Equal(t, 1, s.Deleted)

	assert.Equal(t, Summary{}, Summarize("not a diff at all"))
}

func TestTrimDiff(t *testing.T) {
	assert.Equal(t, sampleDiff, TrimDiff(sampleDiff, len(sampleDiff)))

	trimmed := TrimDiff(sampleDiff, 200)
	assert.Contains(t, trimmed, "README.md")
	assert.Contains(t, trimmed, "1 more changed files omitted: main.go")
	assert.NotContains(t, trimmed, "func main")
}
