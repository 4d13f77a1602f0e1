package builder

import (
	"github.com/shouni/go-http-kit/httpkit"
	"github.com/shouni/go-remote-io/pkg/remoteio"

	"github.com/shouni/go-concept-image-kit/internal/config"
	"github.com/shouni/go-concept-image-kit/pkg/expander"
	"github.com/shouni/go-concept-image-kit/pkg/imagegen"
	"github.com/shouni/go-concept-image-kit/pkg/presenter"
	"github.com/shouni/go-concept-image-kit/pkg/registration"
	"github.com/shouni/go-concept-image-kit/pkg/selection"
)

// AppContext は、アプリケーション実行に必要な共通コンテキストを保持する
// パイプラインはここから各コンポーネントを取り出して使います。
type AppContext struct {
	Config     *config.Config         // Configは、環境変数から読み込まれたグローバルな設定です（APIキー、接続先など）。
	Options    config.GenerateOptions // Optionsは、コマンドラインから渡された実行時の設定です。
	Writer     remoteio.OutputWriter  // Writerは、画像の保存先です（ローカル or GCS）。
	Expander   expander.Expander
	Generator  *imagegen.Generator
	Presenter  *presenter.Presenter
	Slot       *selection.Slot
	Server     *selection.Server
	Poller     *selection.Poller
	Forwarder  *registration.Forwarder
	Supervisor *registration.Supervisor

	httpClient *httpkit.Client // httpClient は外部APIとの通信に使う共通クライアント
	closers    []func() error
}

// Close は AppContext が保持するリソースを解放します。
func (a *AppContext) Close() error {
	var firstErr error
	for _, c := range a.closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.closers = nil
	return firstErr
}
