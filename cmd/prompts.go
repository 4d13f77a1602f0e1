package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/shouni/go-concept-image-kit/internal/pipeline"
)

// promptsCmd は、画像を生成せずにプロンプト展開の結果だけを表示するのだ。
var promptsCmd = &cobra.Command{
	Use:   "prompts [concept words...]",
	Short: "コンセプトを展開したプロンプトだけを表示するのだ。",
	Long: `LLM によるプロンプト展開だけを実行し、結果を1行ずつ標準出力に書くのだ。
画像生成のコストをかけずにシステム指示やトリガーの効き具合を確かめたいときに便利なのだ。`,
	Args: cobra.ArbitraryArgs,
	RunE: promptsCommand,
}

func promptsCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	concept := conceptFromArgs(args)

	res, err := pipeline.ExecutePrompts(ctx, loadConfig(), concept)
	if err != nil {
		return err
	}
	if res.Degraded {
		slog.Warn("LLM に届かなかったのでフォールバックを表示するのだ", "error", res.Cause)
	}

	out := cmd.OutOrStdout()
	for _, p := range res.Prompts {
		fmt.Fprintln(out, p)
	}
	return nil
}
