package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/shouni/go-concept-image-kit/internal/pipeline"
)

// generateCommand は、ルートコマンドの実行ロジック本体なのだ。
// 展開 → 生成 → 選択ページ → 選択待ち の一連の流れをパイプラインに任せるのだ。
func generateCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	concept := conceptFromArgs(args)

	cfg := loadConfig()

	slog.Info("画像生成パイプラインを起動するのだ！",
		"concept", concept,
		"count", cfg.Options.Count,
		"provider", cfg.LLMProvider,
		"image_model", cfg.ImageModel,
		"registration_mode", cfg.RegistrationMode,
		"output", cfg.OutputDir)

	if err := pipeline.Execute(ctx, cfg, concept); err != nil {
		return fmt.Errorf("パイプライン実行中にエラーが発生したのだ: %w", err)
	}

	slog.Info("終了するのだ。おつかれさまなのだ！")
	return nil
}
