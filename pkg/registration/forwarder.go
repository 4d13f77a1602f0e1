package registration

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/patrickmn/go-cache"
	"github.com/shouni/go-http-kit/httpkit"

	"github.com/shouni/go-concept-image-kit/pkg/domain"
)

// DefaultURL は外部登録サービスのエンドポイントです。
const DefaultURL = "http://localhost:3000/register-image"

const (
	defaultReceiptExpiration = 1 * time.Hour
	receiptCleanupInterval   = 10 * time.Minute
)

// SessionSource は現在のセッションを提供します。imagegen.Generator が満たします。
type SessionSource interface {
	Session() domain.Session
}

// Forwarder は選ばれた画像を外部の登録サービスへ転送します。
type Forwarder struct {
	httpClient httpkit.Requester
	url        string
	sessions   SessionSource
	receipts   *cache.Cache
	validate   *validator.Validate
}

// NewForwarder は Forwarder を生成します。
// httpClient が nil なら、localhost へ届くリトライ無しの httpkit.Client を使います。
func NewForwarder(url string, sessions SessionSource, httpClient httpkit.Requester) *Forwarder {
	if url == "" {
		url = DefaultURL
	}
	if httpClient == nil {
		httpClient = httpkit.New(httpkit.DefaultHTTPTimeout,
			httpkit.WithMaxRetries(0),
			httpkit.WithSkipNetworkValidation(true),
		)
	}
	return &Forwarder{
		httpClient: httpClient,
		url:        url,
		sessions:   sessions,
		receipts:   cache.New(defaultReceiptExpiration, receiptCleanupInterval),
		validate:   validator.New(),
	}
}

// Register はセッション内の index 番目の画像を登録するのだ。
// 範囲外なら通信せずに ErrIndexOutOfRange を返すのだ。prompt が空ならセッションのプロンプトを使うのだ。
func (f *Forwarder) Register(ctx context.Context, index int, title, description, prompt string) (*domain.RegistrationReceipt, error) {
	session := f.sessions.Session()
	img, err := session.Image(index)
	if err != nil {
		slog.ErrorContext(ctx, "無効な画像インデックスなのだ", "index", index, "images", session.Len())
		return nil, err
	}
	if prompt == "" {
		prompt = img.Prompt
	}

	receipt, err := f.send(ctx, domain.RegistrationRequest{
		ImageBase64: img.Base64,
		Title:       title,
		Description: description,
		Prompt:      prompt,
	})
	if err != nil {
		return nil, err
	}

	f.receipts.SetDefault(receiptKey(session.ID, index), receipt)
	return receipt, nil
}

// RegisterFile は保存済みの画像ファイルを登録します。
func (f *Forwarder) RegisterFile(ctx context.Context, path, title, description, prompt string) (*domain.RegistrationReceipt, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("画像ファイルの読み込みに失敗しました %s: %w", path, err)
	}
	return f.send(ctx, domain.RegistrationRequest{
		ImageBase64: base64.StdEncoding.EncodeToString(data),
		Title:       title,
		Description: description,
		Prompt:      prompt,
	})
}

// Receipt はこのプロセス内で成功した登録結果を返します。
func (f *Forwarder) Receipt(sessionID string, index int) (*domain.RegistrationReceipt, bool) {
	v, ok := f.receipts.Get(receiptKey(sessionID, index))
	if !ok {
		return nil, false
	}
	r, ok := v.(*domain.RegistrationReceipt)
	return r, ok
}

func (f *Forwarder) send(ctx context.Context, req domain.RegistrationRequest) (*domain.RegistrationReceipt, error) {
	if err := f.validate.Struct(req); err != nil {
		slog.ErrorContext(ctx, "登録リクエストが不正なのだ", "error", err)
		return nil, fmt.Errorf("invalid registration request: %w", err)
	}

	body, err := f.httpClient.PostJSONAndFetchBytes(ctx, f.url, req)
	if err != nil {
		slog.ErrorContext(ctx, "登録サービスへの送信に失敗したのだ", "url", f.url, "error", err)
		return nil, fmt.Errorf("registration request failed: %w", err)
	}

	var receipt domain.RegistrationReceipt
	if err := json.Unmarshal(body, &receipt); err != nil {
		slog.ErrorContext(ctx, "登録レスポンスの解析に失敗したのだ", "error", err)
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	_ = json.Unmarshal(body, &receipt.Raw)

	slog.InfoContext(ctx, "登録に成功したのだ", "id", receipt.ID, "title", req.Title)
	return &receipt, nil
}

func receiptKey(sessionID string, index int) string {
	return fmt.Sprintf("%s/%d", sessionID, index)
}
