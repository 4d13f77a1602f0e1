package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shouni/go-concept-image-kit/internal/pipeline"
	"github.com/shouni/go-concept-image-kit/pkg/presenter"
)

var registerOpts struct {
	Title       string
	Description string
	Prompt      string
	Concept     string
}

// registerCmd は、保存済みの画像ファイルを登録サービスへ送るのだ。
var registerCmd = &cobra.Command{
	Use:   "register <image-file>",
	Short: "保存済みの画像を登録サービスに送るのだ。",
	Long: `selected_image_0.png のような保存済みの画像を読み込み、REGISTRATION_URL に転送するのだ。
タイトルと説明を省略すると、--concept からブラウザのフォームと同じ初期値を作るのだ。`,
	Args: cobra.ExactArgs(1),
	RunE: registerCommand,
}

func init() {
	registerCmd.Flags().StringVarP(&registerOpts.Title, "title", "t", "", "登録するタイトルなのだ。")
	registerCmd.Flags().StringVarP(&registerOpts.Description, "description", "d", "", "登録する説明文なのだ。")
	registerCmd.Flags().StringVarP(&registerOpts.Prompt, "prompt", "p", "", "画像の生成に使ったプロンプトなのだ。")
	registerCmd.Flags().StringVarP(&registerOpts.Concept, "concept", "c", "", "タイトルと説明の初期値に使うコンセプトなのだ。")
}

func registerCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	path := args[0]

	concept := strings.TrimSpace(registerOpts.Concept)
	if concept == "" {
		concept = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	title := registerOpts.Title
	if title == "" {
		title = presenter.DefaultTitle(concept)
	}
	description := registerOpts.Description
	if description == "" {
		description = presenter.DefaultDescription(concept)
	}

	receipt, err := pipeline.ExecuteRegister(ctx, loadConfig(), path, title, description, registerOpts.Prompt)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Registered %s: %s\n", path, receipt.ID)
	return nil
}
