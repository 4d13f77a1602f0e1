package expander

import (
	"context"
	"errors"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/shouni/go-http-kit/httpkit"
)

// ErrEmptyChoices は chat completions の応答に choices が無い場合のエラーです。
var ErrEmptyChoices = errors.New("chat completion returned no choices")

// ChatConfig は OpenAI 互換エンドポイントへの接続設定です。
type ChatConfig struct {
	BaseURL     string // 例: https://nilai-a779.nillion.network （/v1 は自動で付与）
	APIKey      string
	Model       string
	Temperature float32
	HTTPClient  httpkit.Doer // nil なら go-openai の既定クライアント
}

// ChatCompleter は OpenAI 互換の /v1/chat/completions を叩く Completer です。
type ChatCompleter struct {
	client      *openai.Client
	model       string
	temperature float32
}

// NewChatCompleter は ChatCompleter を生成します。
func NewChatCompleter(cfg ChatConfig) *ChatCompleter {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/") + "/v1"
	}
	if cfg.HTTPClient != nil {
		oc.HTTPClient = cfg.HTTPClient
	}

	return &ChatCompleter{
		client:      openai.NewClientWithConfig(oc),
		model:       cfg.Model,
		temperature: cfg.Temperature,
	}
}

// Complete はシステム指示とユーザーメッセージを送り、先頭の choice の本文を返します。
func (c *ChatCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: c.temperature,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyChoices
	}
	return resp.Choices[0].Message.Content, nil
}
