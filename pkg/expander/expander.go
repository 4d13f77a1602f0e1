package expander

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shouni/go-concept-image-kit/pkg/domain"
	"github.com/shouni/go-concept-image-kit/pkg/prompts"
)

// DefaultCount は展開するプロンプト数の既定値です。
const DefaultCount = 3

// Completer は、システム指示とユーザーメッセージから応答テキストを得るLLMバックエンドの契約です。
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Expander は、短いコンセプトを複数の詳細な画像プロンプトに展開します。
type Expander interface {
	Expand(ctx context.Context, concept string, n int) domain.ExpansionResult
}

// PromptExpander は Completer を使った Expander の標準実装です。
// 失敗時はリトライせず、フォールバックのプロンプトで結果を埋めます。
type PromptExpander struct {
	completer Completer
	builder   prompts.MessageBuilder
	trigger   string
}

// New は PromptExpander を生成します。trigger が空なら prompts.DefaultTrigger を使います。
func New(completer Completer, builder prompts.MessageBuilder, trigger string) *PromptExpander {
	if trigger == "" {
		trigger = prompts.DefaultTrigger
	}
	return &PromptExpander{
		completer: completer,
		builder:   builder,
		trigger:   trigger,
	}
}

// Expand は、コンセプトを最大 n 件のプロンプトに展開するのだ。
// リモートの失敗はすべてここで吸収され、n 件のフォールバックと Degraded=true が返るのだ。
func (e *PromptExpander) Expand(ctx context.Context, concept string, n int) domain.ExpansionResult {
	if n < 1 {
		n = DefaultCount
	}

	text, err := e.request(ctx, concept, n)
	if err != nil {
		slog.ErrorContext(ctx, "プロンプト生成に失敗したのでフォールバックを使うのだ", "concept", concept, "error", err)
		return domain.ExpansionResult{
			Prompts:  prompts.Fallback(e.trigger, concept, n),
			Degraded: true,
			Cause:    err,
		}
	}

	ps := prompts.ParseLines(text, n)
	slog.InfoContext(ctx, "画像プロンプトを生成したのだ", "count", len(ps))
	for i, p := range ps {
		slog.InfoContext(ctx, "prompt", "no", i+1, "text", p)
	}

	// トリガーの付与はモデルへの指示に任せており、ここでは数えて警告するだけなのだ
	if missing := prompts.CountMissingTrigger(ps, e.trigger); missing > 0 {
		slog.WarnContext(ctx, "トリガートークンで始まらないプロンプトがあるのだ", "trigger", e.trigger, "missing", missing)
	}

	return domain.ExpansionResult{Prompts: ps}
}

func (e *PromptExpander) request(ctx context.Context, concept string, n int) (string, error) {
	m, err := e.builder.Messages(prompts.Request{Concept: concept, Count: n, Trigger: e.trigger})
	if err != nil {
		return "", err
	}

	text, err := e.completer.Complete(ctx, m.System, m.User)
	if err != nil {
		return "", fmt.Errorf("LLMへの問い合わせに失敗しました: %w", err)
	}
	return text, nil
}
