package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/shouni/go-http-kit/httpkit"
)

// ErrNoImageData は生成APIが画像を1枚も返さなかった場合のエラーです。
var ErrNoImageData = errors.New("no image data returned")

// ImageRequest は1枚分の画像生成リクエストです。
type ImageRequest struct {
	Prompt    string
	Model     string
	Width     int
	Height    int
	Steps     int
	LoraPath  string
	LoraScale float64
}

// ImageClient は1つのプロンプトから Base64 エンコードされた画像を1枚得る契約です。
type ImageClient interface {
	Generate(ctx context.Context, req ImageRequest) (string, error)
}

// TogetherClient は Together AI の /v1/images/generations を叩くクライアントです。
type TogetherClient struct {
	httpClient httpkit.Requester
	baseURL    string
	apiKey     string
}

// NewTogetherClient は TogetherClient を生成します。
// httpClient が nil ならリトライ無しの httpkit.Client を使います。
func NewTogetherClient(baseURL, apiKey string, httpClient httpkit.Requester) *TogetherClient {
	if httpClient == nil {
		httpClient = httpkit.New(httpkit.DefaultHTTPTimeout,
			httpkit.WithMaxRetries(0),
			httpkit.WithSkipNetworkValidation(true),
		)
	}
	return &TogetherClient{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
	}
}

type imageLora struct {
	Path  string  `json:"path"`
	Scale float64 `json:"scale"`
}

type generationBody struct {
	Prompt         string      `json:"prompt"`
	Model          string      `json:"model"`
	Width          int         `json:"width"`
	Height         int         `json:"height"`
	Steps          int         `json:"steps"`
	N              int         `json:"n"`
	ResponseFormat string      `json:"response_format"`
	ImageLoras     []imageLora `json:"image_loras,omitempty"`
}

type generationResponse struct {
	Data []struct {
		Index   int    `json:"index"`
		B64JSON string `json:"b64_json"`
	} `json:"data"`
}

// Generate は画像を1枚生成し、Base64 文字列を返します。
func (c *TogetherClient) Generate(ctx context.Context, req ImageRequest) (string, error) {
	body := generationBody{
		Prompt:         req.Prompt,
		Model:          req.Model,
		Width:          req.Width,
		Height:         req.Height,
		Steps:          req.Steps,
		N:              1,
		ResponseFormat: "b64_json",
	}
	if req.LoraPath != "" {
		body.ImageLoras = []imageLora{{Path: req.LoraPath, Scale: req.LoraScale}}
	}

	b, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/images/generations", bytes.NewReader(b))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	// ステータス確認とボディの読み込みは httpkit に任せるのだ
	respBody, err := c.httpClient.DoRequest(httpReq)
	if err != nil {
		return "", fmt.Errorf("image API error: %w", err)
	}

	var out generationResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if len(out.Data) == 0 || out.Data[0].B64JSON == "" {
		return "", ErrNoImageData
	}
	return out.Data[0].B64JSON, nil
}
