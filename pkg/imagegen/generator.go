package imagegen

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/shouni/go-remote-io/pkg/remoteio"

	"github.com/shouni/go-concept-image-kit/pkg/domain"
)

// 生成パラメータの既定値
const (
	DefaultModel     = "black-forest-labs/FLUX.1-dev-lora"
	DefaultWidth     = 1024
	DefaultHeight    = 768
	DefaultSteps     = 28
	DefaultLoraPath  = "http://hills.ccsf.edu/~clai74/nelson_unet.safetensors"
	DefaultLoraScale = 1.0
)

// GenerateParams はプロンプト以外の生成パラメータです。
type GenerateParams struct {
	Model     string
	Width     int
	Height    int
	Steps     int
	LoraPath  string
	LoraScale float64
}

// DefaultParams は既定の生成パラメータを返します。
func DefaultParams() GenerateParams {
	return GenerateParams{
		Model:     DefaultModel,
		Width:     DefaultWidth,
		Height:    DefaultHeight,
		Steps:     DefaultSteps,
		LoraPath:  DefaultLoraPath,
		LoraScale: DefaultLoraScale,
	}
}

// Options は Generator の実行制御です。
type Options struct {
	Params      GenerateParams
	Concurrency int           // 同時リクエスト数。1 以下なら逐次実行
	Interval    time.Duration // リクエスト間隔。0 なら制限なし
	OutputDir   string        // SaveImage の保存先（ローカル or gs://...）
}

// Generator はプロンプトごとに1枚ずつ画像を生成し、直近の結果をセッションとして保持します。
type Generator struct {
	client ImageClient
	writer remoteio.OutputWriter
	opts   Options

	mu      sync.RWMutex
	session domain.Session
}

// NewGenerator は Generator を生成します。
func NewGenerator(client ImageClient, writer remoteio.OutputWriter, opts Options) *Generator {
	if opts.Params == (GenerateParams{}) {
		opts.Params = DefaultParams()
	}
	return &Generator{
		client: client,
		writer: writer,
		opts:   opts,
	}
}

// Generate は既定パラメータでプロンプト列から画像を生成するのだ。
func (g *Generator) Generate(ctx context.Context, concept string, prompts []string) domain.GenerationResult {
	return g.GenerateWith(ctx, concept, prompts, g.opts.Params)
}

// GenerateWith は指定パラメータで画像を生成するのだ。
// 失敗したプロンプトは結果から除外され、リトライも代替もしないのだ。
// 成功分は元のプロンプト順に詰めて返し、セッションを丸ごと置き換えるのだ。
func (g *Generator) GenerateWith(ctx context.Context, concept string, prompts []string, params GenerateParams) domain.GenerationResult {
	images := make([]string, len(prompts))
	succeeded := make([]bool, len(prompts))

	var eg errgroup.Group
	eg.SetLimit(max(1, g.opts.Concurrency))

	var limiter *rate.Limiter
	if g.opts.Interval > 0 {
		limiter = rate.NewLimiter(rate.Every(g.opts.Interval), 1)
	}

	for i, p := range prompts {
		eg.Go(func() error {
			if limiter != nil {
				if err := limiter.Wait(ctx); err != nil {
					slog.ErrorContext(ctx, "レートリミット待機中に中断されたのだ", "no", i+1, "error", err)
					return nil
				}
			}

			slog.InfoContext(ctx, "画像を生成中...", "no", i+1, "total", len(prompts))
			b64, err := g.client.Generate(ctx, ImageRequest{
				Prompt:    p,
				Model:     params.Model,
				Width:     params.Width,
				Height:    params.Height,
				Steps:     params.Steps,
				LoraPath:  params.LoraPath,
				LoraScale: params.LoraScale,
			})
			if err != nil {
				// 1件の失敗で他を止めないよう、エラーは返さずログだけ残すのだ
				slog.ErrorContext(ctx, "画像生成に失敗したのだ", "no", i+1, "error", err)
				return nil
			}

			images[i] = b64
			succeeded[i] = true
			slog.InfoContext(ctx, "画像生成に成功したのだ", "no", i+1)
			return nil
		})
	}
	_ = eg.Wait()

	result := domain.GenerationResult{}
	for i := range prompts {
		if !succeeded[i] {
			result.Failed++
			continue
		}
		result.Images = append(result.Images, images[i])
		result.Prompts = append(result.Prompts, prompts[i])
	}

	session := domain.Session{
		ID:        uuid.NewString(),
		Concept:   concept,
		Images:    result.Images,
		Prompts:   result.Prompts,
		CreatedAt: time.Now(),
	}
	result.SessionID = session.ID

	g.mu.Lock()
	g.session = session.Clone()
	g.mu.Unlock()

	if result.Degraded() {
		slog.WarnContext(ctx, "一部の画像生成が失敗したのだ", "succeeded", len(result.Images), "failed", result.Failed)
	}
	return result
}

// Session は現在のセッションのコピーを返します。
func (g *Generator) Session() domain.Session {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.session.Clone()
}
