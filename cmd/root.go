package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	clibase "github.com/shouni/go-cli-base"
	"github.com/spf13/cobra"

	"github.com/shouni/go-concept-image-kit/internal/config"
)

const appName = "concept-image-go"

// opts は全コマンドで共有する CLI フラグの値なのだ。
var opts config.GenerateOptions

// rootCmd はコンセプトから画像を生成し、選択ページを開くのだ。
// 位置引数はスペースでつなげて1つのコンセプトとして扱うのだ。
var rootCmd = newRootCmd()

// newRootCmd は clibase のルートコマンドに、生成処理とサブコマンドを載せるのだ。
// --verbose と --config は clibase が用意してくれるのだ。
func newRootCmd() *cobra.Command {
	cmd := clibase.NewRootCmd(appName, addAppFlags, preRunAppE)
	cmd.Use = appName + " [concept words...]"
	cmd.Short = "コンセプトから画像を生成して、ブラウザで選んで登録するのだ。"
	cmd.Long = `短いコンセプトを LLM で詳細なプロンプトに展開し、LoRA 付きの画像生成で1枚ずつ描くのだ。
生成した画像はブラウザの選択ページに並べて、選択と外部サービスへの登録ができるのだよ。`
	cmd.Args = cobra.ArbitraryArgs
	cmd.Run = nil
	cmd.RunE = generateCommand
	cmd.PreRunE = requireImageAPIKey
	cmd.SilenceUsage = true

	cmd.AddCommand(promptsCmd, registerCmd)
	return cmd
}

// addAppFlags は、アプリケーション全般に適用されるグローバルフラグを定義するのだ。
func addAppFlags(rootCmd *cobra.Command) {
	// --- 生成設定 ---
	rootCmd.PersistentFlags().IntVarP(&opts.Count, "count", "n", config.DefaultPromptCount, "展開するプロンプト（画像）の数なのだ。")
	rootCmd.PersistentFlags().StringVar(&opts.Provider, "provider", "", "プロンプト展開に使う LLM（openai / gemini）なのだ。未指定なら LLM_PROVIDER なのだ。")
	rootCmd.PersistentFlags().IntVar(&opts.Concurrency, "concurrency", 0, "画像生成の同時リクエスト数なのだ。未指定なら IMAGE_CONCURRENCY なのだ。")

	// --- 出力と対話 ---
	rootCmd.PersistentFlags().StringVarP(&opts.OutputDir, "output-dir", "o", "", "画像の保存先（ローカル or gs://...）なのだ。未指定なら OUTPUT_DIR なのだ。")
	rootCmd.PersistentFlags().StringVar(&opts.RegistrationMode, "registration-mode", "", "登録サービスの扱い（external / owned / disabled）なのだ。")
	rootCmd.Flags().BoolVar(&opts.Once, "once", false, "選択ページを開いたら待ち受けずに終了するのだ。")
	rootCmd.Flags().BoolVar(&opts.NoOpen, "no-open", false, "ブラウザを開かず、ページのパスだけ表示するのだ。")
	rootCmd.Flags().BoolVar(&opts.RegisterSelected, "register-selected", false, "選んだ画像をそのまま登録サービスへ送るのだ。未指定なら REGISTER_SELECTED なのだ。")

	// --- 実行制御 ---
	rootCmd.PersistentFlags().DurationVar(&opts.HTTPTimeout, "http-timeout", config.DefaultHTTPTimeout, "外部APIリクエストのタイムアウトなのだ（0 で無制限）。")
}

// preRunAppE は、すべてのコマンドの実行前にロガーを設定するのだ。
func preRunAppE(cmd *cobra.Command, args []string) error {
	setupLogger(clibase.Flags.Verbose)
	if f := clibase.Flags.ConfigFile; f != "" {
		if _, err := os.Stat(f); err != nil {
			return fmt.Errorf("設定ファイルを開けないのだ: %w", err)
		}
	}
	return nil
}

// requireImageAPIKey は画像を生成するルートコマンドだけで、必須の API キーを確認するのだ。
// prompts と register は画像生成をしないのでキーが無くても動くのだ。
func requireImageAPIKey(cmd *cobra.Command, args []string) error {
	// .env に書かれている場合もあるので、ここで一度読み込んでから確認するのだ
	if err := config.LoadConfig(envFiles()...).RequireImageAPIKey(); err != nil {
		return fmt.Errorf("エラー: %w", err)
	}
	return nil
}

// envFiles は --config で指定された環境ファイルを返すのだ。未指定ならカレントの .env なのだ。
func envFiles() []string {
	if clibase.Flags.ConfigFile == "" {
		return nil
	}
	return []string{clibase.Flags.ConfigFile}
}

func setupLogger(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// loadConfig は環境変数を読み込み、フラグの値を反映した Config を返すのだ。
func loadConfig() *config.Config {
	cfg := config.LoadConfig(envFiles()...)
	cfg.ApplyOptions(opts)
	return cfg
}

// conceptFromArgs は位置引数をつなげてコンセプトにするのだ。空ならデフォルトなのだ。
func conceptFromArgs(args []string) string {
	concept := strings.TrimSpace(strings.Join(args, " "))
	if concept == "" {
		return config.DefaultConcept
	}
	return concept
}

// Execute は、アプリケーションのメインエントリポイントなのだ。
// main.go から呼び出されて、cobra のコマンドライン解析を開始するのだよ。
// SIGINT / SIGTERM でコンテキストがキャンセルされ、サーバーや子プロセスが片付くのだ。
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
