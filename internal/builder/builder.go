package builder

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/shouni/go-http-kit/httpkit"
	"github.com/shouni/go-remote-io/pkg/gcsfactory"
	"github.com/shouni/go-remote-io/pkg/remoteio"
	"github.com/shouni/go-utils/urlpath"

	"github.com/shouni/go-concept-image-kit/internal/config"
	"github.com/shouni/go-concept-image-kit/pkg/expander"
	"github.com/shouni/go-concept-image-kit/pkg/imagegen"
	"github.com/shouni/go-concept-image-kit/pkg/presenter"
	"github.com/shouni/go-concept-image-kit/pkg/prompts"
	"github.com/shouni/go-concept-image-kit/pkg/registration"
	"github.com/shouni/go-concept-image-kit/pkg/selection"
)

// BuildAppContext は Config からすべてのコンポーネントを組み立てます。
func BuildAppContext(ctx context.Context, cfg *config.Config) (*AppContext, error) {
	httpClient := BuildHTTPClient(cfg)
	appCtx := &AppContext{
		Config:     cfg,
		Options:    cfg.Options,
		httpClient: httpClient,
	}

	writer, closeWriter, err := BuildWriter(ctx, cfg)
	if err != nil {
		return nil, err
	}
	appCtx.Writer = writer
	if closeWriter != nil {
		appCtx.closers = append(appCtx.closers, closeWriter)
	}

	exp, err := BuildExpander(ctx, cfg, httpClient)
	if err != nil {
		_ = appCtx.Close()
		return nil, err
	}
	appCtx.Expander = exp

	appCtx.Generator = BuildGenerator(cfg, httpClient, writer)

	selectURL := fmt.Sprintf("http://localhost:%d/select-image", cfg.SelectionPort)
	appCtx.Presenter = BuildPresenter(cfg, selectURL)

	appCtx.Slot = selection.NewSlot()
	appCtx.Server = selection.NewServer(":"+strconv.Itoa(cfg.SelectionPort), appCtx.Slot)
	appCtx.Poller = selection.NewPoller(appCtx.Slot, cfg.SelectionPollInterval)

	appCtx.Forwarder = registration.NewForwarder(cfg.RegistrationURL, appCtx.Generator, httpClient)
	sup, err := BuildSupervisor(cfg)
	if err != nil {
		_ = appCtx.Close()
		return nil, err
	}
	appCtx.Supervisor = sup

	return appCtx, nil
}

// BuildHTTPClient は外部APIとの通信に使う共通クライアントを構築します。
// 生成系の呼び出しは冪等ではないのでリトライはせず、ローカルのサービスにも届くようにネットワーク検証は省くのだ。
// --http-timeout 0 は無制限として扱います。
func BuildHTTPClient(cfg *config.Config) *httpkit.Client {
	opts := []httpkit.ClientOption{
		httpkit.WithMaxRetries(0),
		httpkit.WithSkipNetworkValidation(true),
	}
	if cfg.Options.HTTPTimeout <= 0 {
		opts = append(opts, httpkit.WithHTTPClient(&http.Client{}))
	}
	return httpkit.New(cfg.Options.HTTPTimeout, opts...)
}

// BuildWriter は OUTPUT_DIR に応じた書き込み先を構築します。
// gs:// なら GCS クライアントを持つファクトリを作り、その Close を返すのだ。
func BuildWriter(ctx context.Context, cfg *config.Config) (remoteio.OutputWriter, func() error, error) {
	if !urlpath.IsGCSURI(cfg.OutputDir) {
		return remoteio.NewUniversalIOWriter(nil, nil), nil, nil
	}
	factory, err := gcsfactory.New(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("GCSクライアントの初期化に失敗しました: %w", err)
	}
	w, err := factory.OutputWriter()
	if err != nil {
		_ = factory.Close()
		return nil, nil, fmt.Errorf("GCSライターの取得に失敗しました: %w", err)
	}
	return w, factory.Close, nil
}

// BuildExpander は LLM_PROVIDER に応じたバックエンドで Expander を構築します。
func BuildExpander(ctx context.Context, cfg *config.Config, httpClient httpkit.Doer) (expander.Expander, error) {
	pb, err := prompts.NewExpansionTemplates()
	if err != nil {
		return nil, fmt.Errorf("プロンプトビルダーの初期化に失敗しました: %w", err)
	}

	var completer expander.Completer
	switch cfg.LLMProvider {
	case "gemini":
		gc, err := expander.NewGeminiCompleter(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.Temperature)
		if err != nil {
			return nil, fmt.Errorf("Geminiクライアントの初期化に失敗したのだ: %w", err)
		}
		completer = gc
	default:
		completer = expander.NewChatCompleter(expander.ChatConfig{
			BaseURL:     cfg.NilaiAPIURL,
			APIKey:      cfg.NilaiAPIKey,
			Model:       cfg.ChatModel,
			Temperature: cfg.Temperature,
			HTTPClient:  httpClient,
		})
	}
	slog.Debug("プロンプト展開のバックエンドを選んだのだ", "provider", cfg.LLMProvider)

	return expander.New(completer, pb, cfg.TriggerToken), nil
}

// BuildGenerator は Together API を使う画像ジェネレーターを構築します。
func BuildGenerator(cfg *config.Config, httpClient httpkit.Requester, writer remoteio.OutputWriter) *imagegen.Generator {
	client := imagegen.NewTogetherClient(cfg.TogetherAPIURL, cfg.TogetherAPIKey, httpClient)
	return imagegen.NewGenerator(client, writer, imagegen.Options{
		Params: imagegen.GenerateParams{
			Model:     cfg.ImageModel,
			Width:     cfg.ImageWidth,
			Height:    cfg.ImageHeight,
			Steps:     cfg.ImageSteps,
			LoraPath:  cfg.LoraPath,
			LoraScale: cfg.LoraScale,
		},
		Concurrency: cfg.ImageConcurrency,
		Interval:    cfg.ImageRateInterval,
		OutputDir:   cfg.OutputDir,
	})
}

// BuildPresenter は選択ページの Presenter を構築します。--no-open ならブラウザは開かず、パスを表示するだけなのだ。
func BuildPresenter(cfg *config.Config, selectURL string) *presenter.Presenter {
	var opener presenter.Opener
	if cfg.Options.NoOpen {
		opener = logOpener{}
	}
	return presenter.New(presenter.Options{
		SelectURL:   selectURL,
		RegisterURL: cfg.RegistrationURL,
	}, opener)
}

// BuildSupervisor は REGISTRATION_MODE に従って登録サービスの Supervisor を構築します。
func BuildSupervisor(cfg *config.Config) (*registration.Supervisor, error) {
	addr, err := registration.HostPort(cfg.RegistrationURL)
	if err != nil {
		return nil, fmt.Errorf("REGISTRATION_URL が不正です: %w", err)
	}
	return registration.NewSupervisor(registration.SupervisorConfig{
		Mode:    registration.Mode(cfg.RegistrationMode),
		Addr:    addr,
		Command: cfg.RegistrationCommand,
		Dir:     cfg.RegistrationDir,
	}), nil
}

type logOpener struct{}

func (logOpener) Open(path string) error {
	slog.Info("選択ページを書き出したのだ。ブラウザで開いてほしいのだ", "path", path)
	return nil
}
