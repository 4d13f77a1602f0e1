package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"golang.org/x/sync/errgroup"

	"github.com/shouni/go-concept-image-kit/internal/builder"
	"github.com/shouni/go-concept-image-kit/internal/config"
	"github.com/shouni/go-concept-image-kit/pkg/domain"
	"github.com/shouni/go-concept-image-kit/pkg/presenter"
)

// Execute は、コンセプトから画像を生成して選択ページを開き、
// --once でなければ Ctrl+C まで選択を待ち受けるのだ。
func Execute(ctx context.Context, cfg *config.Config, concept string) error {
	if err := cfg.RequireImageAPIKey(); err != nil {
		return err
	}
	appCtx, err := setupAppContext(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeAppContext(appCtx)

	o := New(appCtx)
	if cfg.Options.Once {
		res := o.CreateImagesFromConcept(ctx, concept, cfg.Options.Count)
		if res.Empty() {
			return errors.New("画像を1枚も生成できなかったのだ")
		}
		return nil
	}
	return o.RunInteractive(ctx, concept, cfg.Options.Count)
}

// ExecutePrompts は、プロンプト展開だけを行って結果を返すのだ。
func ExecutePrompts(ctx context.Context, cfg *config.Config, concept string) (domain.ExpansionResult, error) {
	appCtx, err := setupAppContext(ctx, cfg)
	if err != nil {
		return domain.ExpansionResult{}, err
	}
	defer closeAppContext(appCtx)

	return New(appCtx).ExpandOnly(ctx, concept, cfg.Options.Count), nil
}

// ExecuteRegister は、保存済みの画像ファイルを登録サービスに転送するのだ。
func ExecuteRegister(ctx context.Context, cfg *config.Config, path, title, description, prompt string) (*domain.RegistrationReceipt, error) {
	appCtx, err := setupAppContext(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer closeAppContext(appCtx)

	receipt, err := appCtx.Forwarder.RegisterFile(ctx, path, title, description, prompt)
	if err != nil {
		return nil, fmt.Errorf("画像の登録に失敗したのだ: %w", err)
	}
	return receipt, nil
}

// Orchestrator は 展開 → 生成 → 提示 → 選択待ち の流れを束ねます。
type Orchestrator struct {
	app *builder.AppContext
}

// New は AppContext から Orchestrator を生成します。
func New(app *builder.AppContext) *Orchestrator {
	return &Orchestrator{app: app}
}

// ExpandOnly はコンセプトを n 件のプロンプトに展開するだけなのだ。
func (o *Orchestrator) ExpandOnly(ctx context.Context, concept string, n int) domain.ExpansionResult {
	return o.app.Expander.Expand(ctx, concept, n)
}

// CreateImagesFromConcept は展開・生成・提示を順に行うのだ。
// 途中の panic やエラーはここで受け止めてスタックごとログに残し、空の結果を返すのだ。
func (o *Orchestrator) CreateImagesFromConcept(ctx context.Context, concept string, n int) (res domain.GenerationResult) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "画像生成中に panic が発生したのだ", "panic", r, "stack", string(debug.Stack()))
			res = domain.GenerationResult{}
		}
	}()

	slog.InfoContext(ctx, "プロンプトを展開するのだ", "concept", concept)
	expanded := o.app.Expander.Expand(ctx, concept, n)
	if expanded.Degraded {
		slog.WarnContext(ctx, "フォールバックのプロンプトで続行するのだ", "error", expanded.Cause)
	}
	for i, p := range expanded.Prompts {
		slog.InfoContext(ctx, "プロンプト", "no", i+1, "prompt", p)
	}

	res = o.app.Generator.Generate(ctx, concept, expanded.Prompts)
	if res.Empty() {
		slog.WarnContext(ctx, "画像が1枚も生成されなかったのだ", "failed", res.Failed)
		return res
	}
	if res.Degraded() {
		slog.WarnContext(ctx, "一部の画像生成に失敗したのだ", "ok", len(res.Images), "failed", res.Failed)
	}

	if _, err := o.app.Presenter.Present(ctx, o.app.Generator.Session()); err != nil {
		slog.ErrorContext(ctx, "選択ページの表示に失敗したのだ", "error", err, "stack", string(debug.Stack()))
		return domain.GenerationResult{}
	}
	return res
}

// RunInteractive はコールバックサーバーと登録サービスの面倒を見ながら、
// 画像を生成して ctx が終わるまで選択を待ち受けるのだ。
// サーバーや登録サービスが動かなくても生成は止めず、ERROR ログを残すだけなのだ。
func (o *Orchestrator) RunInteractive(ctx context.Context, concept string, n int) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var g errgroup.Group
	g.Go(func() error {
		if err := o.app.Server.Run(ctx); err != nil {
			slog.ErrorContext(ctx, "選択用のコールバックサーバーが動いていないのだ。ページからの選択は届かないのだ", "error", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := o.app.Supervisor.Run(ctx); err != nil {
			slog.ErrorContext(ctx, "登録サービスが動いていないのだ。登録ボタンは失敗するのだ", "error", err)
		}
		return nil
	})

	res := o.CreateImagesFromConcept(ctx, concept, n)
	if res.Empty() {
		slog.WarnContext(ctx, "選択できる画像が無いので終了するのだ")
		cancel()
		return g.Wait()
	}

	slog.InfoContext(ctx, "ブラウザで画像を選んでほしいのだ。Ctrl+C で終了するのだ", "images", len(res.Images))
	g.Go(func() error { return o.app.Poller.Run(ctx, o.HandleSelection) })

	if err := g.Wait(); err != nil {
		return fmt.Errorf("対話セッションが異常終了したのだ: %w", err)
	}
	return nil
}

// HandleSelection は1件の選択イベントを処理するのだ。
// SAVE_SELECTED が有効なら画像を保存し、REGISTER_SELECTED が有効なら登録サービスへ転送するのだ。
func (o *Orchestrator) HandleSelection(ctx context.Context, ev domain.SelectionEvent) {
	slog.InfoContext(ctx, fmt.Sprintf("User selected image %d", ev.Index+1), "index", ev.Index)

	if o.app.Config.SaveSelected {
		name := fmt.Sprintf("selected_image_%d.png", ev.Index)
		if _, err := o.app.Generator.SaveImage(ctx, ev.Index, name); err != nil {
			slog.WarnContext(ctx, "選択された画像を保存できなかったのだ", "index", ev.Index, "error", err)
		}
	}

	if o.app.Config.RegisterSelected {
		o.registerSelection(ctx, ev.Index)
	}
}

// registerSelection は選ばれた画像を既定のタイトルと説明で登録するのだ。
// 同じ画像が再度選ばれたときは、手元の受領結果を使って二重登録しないのだ。
func (o *Orchestrator) registerSelection(ctx context.Context, index int) {
	session := o.app.Generator.Session()
	if r, ok := o.app.Forwarder.Receipt(session.ID, index); ok {
		slog.InfoContext(ctx, "この画像は登録済みなのだ", "index", index, "receipt_id", r.ID)
		return
	}

	r, err := o.app.Forwarder.Register(ctx, index,
		presenter.DefaultTitle(session.Concept), presenter.DefaultDescription(session.Concept), "")
	if err != nil {
		slog.ErrorContext(ctx, "選択された画像の登録に失敗したのだ", "index", index, "error", err)
		return
	}
	slog.InfoContext(ctx, "選択された画像を登録したのだ", "index", index, "receipt_id", r.ID)
}

func setupAppContext(ctx context.Context, cfg *config.Config) (*builder.AppContext, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	appCtx, err := builder.BuildAppContext(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("アプリケーションの初期化に失敗したのだ: %w", err)
	}
	return appCtx, nil
}

func closeAppContext(appCtx *builder.AppContext) {
	if err := appCtx.Close(); err != nil {
		slog.Warn("リソースの解放に失敗したのだ", "error", err)
	}
}
