package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shouni/go-concept-image-kit/pkg/imagegen"
	"github.com/shouni/go-concept-image-kit/pkg/registration"
	"github.com/shouni/go-concept-image-kit/pkg/selection"
)

func TestLoadConfig(t *testing.T) {
	t.Run("環境変数が無ければデフォルト値になるのだ", func(t *testing.T) {
		t.Setenv("TOGETHER_API_KEY", "tg-key")

		cfg := LoadConfig()

		if cfg.NilaiAPIURL != DefaultNilaiAPIURL || cfg.TogetherAPIURL != DefaultTogetherAPIURL {
			t.Errorf("接続先のデフォルトが違うのだ: %s %s", cfg.NilaiAPIURL, cfg.TogetherAPIURL)
		}
		if cfg.SelectionPort != DefaultSelectionPort || cfg.SelectionPollInterval != time.Second {
			t.Errorf("選択まわりのデフォルトが違うのだ: %d %v", cfg.SelectionPort, cfg.SelectionPollInterval)
		}
		if cfg.RegistrationMode != "external" || cfg.RegistrationURL != DefaultRegistrationURL {
			t.Errorf("登録まわりのデフォルトが違うのだ: %s %s", cfg.RegistrationMode, cfg.RegistrationURL)
		}
		if cfg.ImageConcurrency != 1 || cfg.ImageWidth != 1024 || cfg.ImageHeight != 768 || cfg.ImageSteps != 28 {
			t.Errorf("画像生成のデフォルトが違うのだ: %+v", cfg)
		}
		if !cfg.SaveSelected {
			t.Error("SAVE_SELECTED はデフォルトで有効なのだ")
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("デフォルト設定は妥当なはずなのだ: %v", err)
		}
	})

	t.Run("環境変数で上書きできるのだ", func(t *testing.T) {
		t.Setenv("TOGETHER_API_KEY", "tg-key")
		t.Setenv("NILAI_API_URL", "http://llm.local/")
		t.Setenv("SELECTION_PORT", "6001")
		t.Setenv("IMAGE_CONCURRENCY", "4")
		t.Setenv("IMAGE_RATE_INTERVAL", "2")
		t.Setenv("SELECTION_POLL_INTERVAL", "250ms")
		t.Setenv("REGISTRATION_MODE", "OWNED")
		t.Setenv("SAVE_SELECTED", "false")

		cfg := LoadConfig()

		if cfg.NilaiAPIURL != "http://llm.local" {
			t.Errorf("末尾のスラッシュは落とすのだ: %s", cfg.NilaiAPIURL)
		}
		if cfg.SelectionPort != 6001 || cfg.ImageConcurrency != 4 {
			t.Errorf("数値が反映されていないのだ: %d %d", cfg.SelectionPort, cfg.ImageConcurrency)
		}
		if cfg.ImageRateInterval != 2*time.Second || cfg.SelectionPollInterval != 250*time.Millisecond {
			t.Errorf("時間が反映されていないのだ: %v %v", cfg.ImageRateInterval, cfg.SelectionPollInterval)
		}
		if cfg.RegistrationMode != "owned" || cfg.SaveSelected {
			t.Errorf("モードや真偽値が反映されていないのだ: %s %v", cfg.RegistrationMode, cfg.SaveSelected)
		}
	})

	t.Run("解釈できない数値はデフォルトに戻るのだ", func(t *testing.T) {
		t.Setenv("SELECTION_PORT", "abc")
		if cfg := LoadConfig(); cfg.SelectionPort != DefaultSelectionPort {
			t.Errorf("SelectionPort = %d", cfg.SelectionPort)
		}
	})
}

func TestConfig_Validate(t *testing.T) {
	t.Setenv("TOGETHER_API_KEY", "tg-key")

	tests := []struct {
		name   string
		mutate func(c *Config)
		field  string
	}{
		{"ポートは範囲内なのだ", func(c *Config) { c.SelectionPort = 70000 }, "SelectionPort"},
		{"幅は正の数なのだ", func(c *Config) { c.ImageWidth = 0 }, "ImageWidth"},
		{"知らない登録モードはダメなのだ", func(c *Config) { c.RegistrationMode = "both" }, "RegistrationMode"},
		{"gemini には GEMINI_API_KEY が要るのだ", func(c *Config) { c.LLMProvider = "gemini"; c.GeminiAPIKey = "" }, "GeminiAPIKey"},
		{"並列数は 1 以上なのだ", func(c *Config) { c.ImageConcurrency = 0 }, "ImageConcurrency"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := LoadConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.field) {
				t.Errorf("%s のエラーを期待したのだ: %v", tt.field, err)
			}
		})
	}
}

func TestConfig_ApplyOptions(t *testing.T) {
	t.Setenv("TOGETHER_API_KEY", "tg-key")
	cfg := LoadConfig()

	cfg.ApplyOptions(GenerateOptions{OutputDir: "gs://bucket/out", Provider: "Gemini", Concurrency: 3, Count: 5, RegisterSelected: true})

	if cfg.OutputDir != "gs://bucket/out" || cfg.LLMProvider != "gemini" || cfg.ImageConcurrency != 3 {
		t.Errorf("フラグが優先されていないのだ: %+v", cfg)
	}
	if !cfg.RegisterSelected {
		t.Error("--register-selected が反映されていないのだ")
	}
	if cfg.Options.Count != 5 {
		t.Errorf("Options が保存されていないのだ: %+v", cfg.Options)
	}

	cfg.ApplyOptions(GenerateOptions{})
	if cfg.OutputDir != "gs://bucket/out" {
		t.Error("空のフラグは上書きしないのだ")
	}
}

func TestConfig_RequireImageAPIKey(t *testing.T) {
	t.Run("キーが無くても Validate は通るのだ", func(t *testing.T) {
		t.Setenv("TOGETHER_API_KEY", "")
		cfg := LoadConfig()
		if err := cfg.Validate(); err != nil {
			t.Errorf("prompts や register ではキーは要らないのだ: %v", err)
		}
		if err := cfg.RequireImageAPIKey(); !errors.Is(err, ErrMissingTogetherAPIKey) {
			t.Errorf("画像生成の経路ではキーが必須なのだ: %v", err)
		}
	})

	t.Run("キーがあれば通るのだ", func(t *testing.T) {
		t.Setenv("TOGETHER_API_KEY", "tg-key")
		if err := LoadConfig().RequireImageAPIKey(); err != nil {
			t.Errorf("予期しないエラーなのだ: %v", err)
		}
	})
}

func TestLoadConfig_DefaultsFollowComponents(t *testing.T) {
	cfg := LoadConfig()

	if cfg.SelectionPort != selection.DefaultPort || cfg.SelectionPollInterval != selection.DefaultPollInterval {
		t.Errorf("選択まわりの既定値がコンポーネントと食い違っているのだ: %d %v", cfg.SelectionPort, cfg.SelectionPollInterval)
	}
	if cfg.ImageModel != imagegen.DefaultModel || cfg.ImageWidth != imagegen.DefaultWidth || cfg.LoraScale != imagegen.DefaultLoraScale {
		t.Errorf("画像生成の既定値がコンポーネントと食い違っているのだ: %+v", cfg)
	}
	if cfg.RegistrationDir != registration.DefaultDir || cfg.RegistrationCommand != registration.DefaultCommand {
		t.Errorf("登録サービスの既定値がコンポーネントと食い違っているのだ: %s %s", cfg.RegistrationDir, cfg.RegistrationCommand)
	}
}

func TestLoadConfig_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.env")
	if err := os.WriteFile(path, []byte("TRIGGER_TOKEN=custom token\nREGISTER_SELECTED=true\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	// godotenv は既存の環境変数を上書きしないので、テスト後に消えるよう空で予約しておくのだ
	t.Setenv("TRIGGER_TOKEN", "")
	t.Setenv("REGISTER_SELECTED", "")
	os.Unsetenv("TRIGGER_TOKEN")
	os.Unsetenv("REGISTER_SELECTED")

	cfg := LoadConfig(path)

	if cfg.TriggerToken != "custom token" || !cfg.RegisterSelected {
		t.Errorf("指定した環境ファイルが読まれていないのだ: %q %v", cfg.TriggerToken, cfg.RegisterSelected)
	}
}
