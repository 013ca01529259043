// Package genai writes commit messages from staged diffs with an
// OpenAI-compatible chat completion endpoint.
package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

const (
	// DefaultModel is used when the configuration names none
	DefaultModel = "gemini-2.0-flash"
	// DefaultBaseURL is the OpenAI-compatible endpoint of Google AI Studio
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"
	// ErrorMarker in a generated message means the model rejected its input
	ErrorMarker = "SYNTAX_ERROR"
	// MaxMessageLength bounds the length of a generated message in runes
	MaxMessageLength = 50
)

var (
	// ErrNoDiff is returned when there is nothing to describe
	ErrNoDiff = errors.New("no staged changes to describe")
	// ErrDisabled is returned when no API key is configured
	ErrDisabled = errors.New("commit message generation disabled")
	// ErrRejected is returned when the reply carries ErrorMarker anywhere
	ErrRejected = errors.New("model rejected the diff")
)

const prompt = `You are an expert at writing concise, descriptive git commit messages.
Analyze the following diff and write a commit message of no more than 50 characters
that summarizes the changes. Use the Angular commit convention (type(scope): description).
Omit the scope if it is not obvious. Example types: feat, fix, docs, style, refactor, perf, test, build, ci, chore, revert.
Reply with the commit message only.

Diff:
` + "```" + `
%s
` + "```" + `

Commit message:`

// Config selects the endpoint and credentials
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
}

// Generator produces commit messages. It is safe for concurrent use.
type Generator struct {
	mu      sync.RWMutex
	client  *openai.Client
	model   string
	limiter *rate.Limiter
	logger  *slog.Logger

	// Timeout bounds one completion call
	Timeout time.Duration
	// MaxDiffBytes bounds the diff text embedded in the prompt
	MaxDiffBytes int
}

// New creates a Generator; an empty API key yields a disabled generator
func New(cfg Config, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Generator{
		limiter:      rate.NewLimiter(rate.Every(4*time.Second), 1),
		logger:       logger,
		Timeout:      30 * time.Second,
		MaxDiffBytes: 12000,
	}
	if cfg.APIKey != "" {
		g.Reconfigure(cfg)
	}
	return g
}

// Reconfigure swaps credentials and model, e.g. after a config reload
func (g *Generator) Reconfigure(cfg Config) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if cfg.APIKey == "" {
		g.client = nil
		g.model = ""
		g.logger.Warn("no generation API key configured, commit messages fall back to a fixed text")
		return
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = cfg.BaseURL
	if clientCfg.BaseURL == "" {
		clientCfg.BaseURL = DefaultBaseURL
	}
	g.client = openai.NewClientWithConfig(clientCfg)
	g.model = cfg.Model
	if g.model == "" {
		g.model = DefaultModel
	}
	g.logger.Info("commit message generation configured", "model", g.model, "base_url", clientCfg.BaseURL)
}

// Enabled reports whether an API key is configured
func (g *Generator) Enabled() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.client != nil
}

// CommitMessage asks the model to describe diff
func (g *Generator) CommitMessage(ctx context.Context, diff string) (string, error) {
	if strings.TrimSpace(diff) == "" {
		return "", ErrNoDiff
	}

	g.mu.RLock()
	client, model := g.client, g.model
	g.mu.RUnlock()
	if client == nil {
		return "", ErrDisabled
	}

	ctx, cancel := context.WithTimeout(ctx, g.Timeout)
	defer cancel()
	if err := g.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf(prompt, TrimDiff(diff, g.MaxDiffBytes))},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return "", fmt.Errorf("completion call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("completion returned no choices")
	}

	raw := resp.Choices[0].Message.Content
	if strings.Contains(raw, ErrorMarker) {
		return "", fmt.Errorf("reply %q: %w", raw, ErrRejected)
	}
	msg := Clean(raw)
	g.logger.Debug("generated commit message", "message", msg, "finish_reason", resp.Choices[0].FinishReason)
	return msg, nil
}

// Clean keeps the first non-empty line, strips quotes and truncates to MaxMessageLength
func Clean(s string) string {
	s = strings.TrimSpace(s)
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" && !strings.HasPrefix(line, "```") {
			s = line
			break
		}
	}
	s = strings.NewReplacer(`"`, "", "'", "", "`", "").Replace(s)
	s = strings.TrimSpace(s)

	r := []rune(s)
	if len(r) > MaxMessageLength {
		r = r[:MaxMessageLength]
	}
	return strings.TrimSpace(string(r))
}
