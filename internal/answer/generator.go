// Package answer turns retrieved context and conversation history into
// an answer through an OpenAI-compatible chat-completions endpoint.
package answer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	qerr "github.com/docquery/docquery/internal/errors"
)

// DefaultHistoryWindow is the number of past exchanges kept in the
// prompt alongside the new question.
const DefaultHistoryWindow = 9

// DefaultTimeout bounds a single completion request.
const DefaultTimeout = 120 * time.Second

const systemPrompt = `You answer questions using only the provided context.
If the context does not contain the answer, say so plainly instead of guessing.
Quote figures and names exactly as they appear in the context.`

// Exchange is one past question/answer turn.
type Exchange struct {
	Question string
	Answer   string
}

// Config configures a Generator.
type Config struct {
	// BaseURL is the API root, e.g. "https://api.openai.com/v1".
	BaseURL string
	// Model is the chat model identifier.
	Model string
	// APIKey is sent as a bearer token when set.
	APIKey string
	// HistoryWindow is the number of past exchanges included. Zero
	// means DefaultHistoryWindow.
	HistoryWindow int
	// Temperature for generation.
	Temperature float64
	// Timeout bounds a request. Zero means DefaultTimeout.
	Timeout time.Duration
}

// Generator produces answers from retrieved context.
type Generator struct {
	cfg    Config
	client *http.Client
}

// NewGenerator creates a generator.
func NewGenerator(cfg Config) *Generator {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = DefaultHistoryWindow
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Generator{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Generate answers the question from the retrieved context, carrying
// the most recent history exchanges for conversational continuity.
func (g *Generator) Generate(ctx context.Context, question, retrieved string, history []Exchange) (string, error) {
	messages := []chatMessage{{Role: "system", Content: systemPrompt}}

	if len(history) > g.cfg.HistoryWindow {
		history = history[len(history)-g.cfg.HistoryWindow:]
	}
	for _, ex := range history {
		messages = append(messages,
			chatMessage{Role: "user", Content: ex.Question},
			chatMessage{Role: "assistant", Content: ex.Answer})
	}

	messages = append(messages, chatMessage{
		Role:    "user",
		Content: fmt.Sprintf("Context:\n%s\n\nQuestion: %s", retrieved, question),
	})

	body, err := json.Marshal(chatRequest{
		Model:       g.cfg.Model,
		Messages:    messages,
		Temperature: g.cfg.Temperature,
	})
	if err != nil {
		return "", qerr.New(qerr.ErrCodeAnswerFailed, "failed to encode completion request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		g.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", qerr.New(qerr.ErrCodeAnswerFailed, "failed to build completion request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return "", qerr.New(qerr.ErrCodeAnswerFailed, "completion request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", qerr.New(qerr.ErrCodeAnswerFailed, "failed to read completion response", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", qerr.New(qerr.ErrCodeAnswerFailed,
			fmt.Sprintf("invalid completion response (status %d)", resp.StatusCode), err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := fmt.Sprintf("completion request returned status %d", resp.StatusCode)
		if parsed.Error != nil && parsed.Error.Message != "" {
			msg = parsed.Error.Message
		}
		return "", qerr.New(qerr.ErrCodeAnswerFailed, msg, nil)
	}

	if len(parsed.Choices) == 0 {
		return "", qerr.New(qerr.ErrCodeAnswerFailed, "completion response has no choices", nil)
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}
