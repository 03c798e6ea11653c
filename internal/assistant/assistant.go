// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

// Package assistant is the in-app bartender chat: one chat-completion
// request per user message, no streaming, with the whole conversation sent
// each time.
package assistant

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/kampai/internal/breaker"
	"github.com/tomtom215/kampai/internal/logging"
	"github.com/tomtom215/kampai/internal/metrics"
)

const (
	DefaultBaseURL     = "https://api.openai.com"
	DefaultModel       = "gpt-4-turbo-preview"
	DefaultTemperature = 0.9
	DefaultMaxTokens   = 500
	// MaxHistory bounds how many prior messages are sent upstream.
	MaxHistory = 40
)

// Persona is the system prompt.
const Persona = `あなたは「酔いどれソロキャン女子」という謎めいた女性です。
- 35歳で独身、夜の街に詳しい
- 過去の暗い経験から人生の機微を知り尽くしている
- おつまみとお酒の深い知識を持つ
- カラオケは自らすすんで歌わないが嫌いではない
- 優しくも少し寂しげな口調で話す
- 一人の時間を大切にする
- 特にソロキャンプの時間が今のところ人生で至上の時間
- 週に2回ほど、とあるキャンプ場内にある隠れ家的なBARでアルバイトをしている
- 口調は「～でしょうね」「～かしら」「～だわ」など、女性らしい丁寧な口調
- 回答は簡潔に、要点を絞って伝える`

// Greeting opens every conversation.
const Greeting = "ふふ...今宵もまた、お酒が恋しい夜ね。どんな味わいに心惹かれているのかしら？"

// Fallback is the bot reply when the upstream call fails.
const Fallback = "あら...少し目が霞んでしまったわ。もう一度話しかけてくれるかしら？"

// Sender is who wrote a Message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// Message is one entry of a conversation. The server keeps no
// conversation state; clients send their history with every message.
type Message struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Sender    Sender    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrEmptyMessage is returned for blank input.
var ErrEmptyMessage = errors.New("message is empty")

// Config configures Client.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// Client talks to the chat-completions endpoint.
type Client struct {
	cfg  Config
	http *http.Client
	cb   *gobreaker.CircuitBreaker[string]
	now  func() time.Time
}

// NewClient applies defaults to cfg.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		cb:   breaker.New[string]("openai", breaker.Settings{}),
		now:  time.Now,
	}
}

// NewConversation returns a history holding only the greeting.
func (c *Client) NewConversation() []Message {
	return []Message{c.botMessage(Greeting)}
}

// Reply sends history plus input and returns the user's message and the
// bot's answer, to be appended in that order. When the upstream call fails
// the answer is Fallback and err reports the failure; the returned messages
// are still valid.
func (c *Client) Reply(ctx context.Context, history []Message, input string) (user, bot Message, err error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return Message{}, Message{}, ErrEmptyMessage
	}
	user = Message{ID: uuid.NewString(), Content: input, Sender: SenderUser, Timestamp: c.now()}

	start := time.Now()
	answer, err := c.cb.Execute(func() (string, error) {
		return c.complete(ctx, history, input)
	})
	metrics.RecordExternalCall("assistant", time.Since(start), err)
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("Assistant completion failed")
		return user, c.botMessage(Fallback), err
	}
	return user, c.botMessage(answer), nil
}

func (c *Client) botMessage(content string) Message {
	return Message{ID: uuid.NewString(), Content: content, Sender: SenderBot, Timestamp: c.now()}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type completionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) complete(ctx context.Context, history []Message, input string) (string, error) {
	if len(history) > MaxHistory {
		history = history[len(history)-MaxHistory:]
	}
	msgs := make([]chatMessage, 0, len(history)+2)
	msgs = append(msgs, chatMessage{Role: "system", Content: Persona})
	for _, m := range history {
		role := "assistant"
		if m.Sender == SenderUser {
			role = "user"
		}
		msgs = append(msgs, chatMessage{Role: role, Content: m.Content})
	}
	msgs = append(msgs, chatMessage{Role: "user", Content: input})

	body, err := json.Marshal(completionRequest{
		Model:       c.cfg.Model,
		Messages:    msgs,
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("encode completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read completion response: %w", err)
	}
	var out completionResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decode completion response (HTTP %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := http.StatusText(resp.StatusCode)
		if out.Error != nil {
			msg = out.Error.Message
		}
		return "", fmt.Errorf("completion: HTTP %d: %s", resp.StatusCode, msg)
	}
	if len(out.Choices) == 0 {
		return "", errors.New("completion returned no choices")
	}
	return out.Choices[0].Message.Content, nil
}
