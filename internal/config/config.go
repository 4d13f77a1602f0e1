package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/shouni/go-utils/envutil"

	"github.com/shouni/go-concept-image-kit/pkg/expander"
	"github.com/shouni/go-concept-image-kit/pkg/imagegen"
	"github.com/shouni/go-concept-image-kit/pkg/prompts"
	"github.com/shouni/go-concept-image-kit/pkg/registration"
	"github.com/shouni/go-concept-image-kit/pkg/selection"
)

// デフォルト値の定義なのだ
// 各コンポーネントが持つ既定値はそのまま参照して、二重に定義しないのだ。
const (
	DefaultConcept     = "on beach with sunglasses"
	DefaultPromptCount = expander.DefaultCount
	DefaultHTTPTimeout = 2 * time.Minute

	DefaultLLMProvider  = "openai"
	DefaultNilaiAPIURL  = "https://nilai-a779.nillion.network"
	DefaultChatModel    = "meta-llama/Llama-3.1-8B-Instruct"
	DefaultGeminiModel  = "gemini-3-flash-preview"
	DefaultTemperature  = 0.7
	DefaultTriggerToken = prompts.DefaultTrigger

	DefaultTogetherAPIURL = "https://api.together.xyz"
	DefaultImageModel     = imagegen.DefaultModel
	DefaultImageWidth     = imagegen.DefaultWidth
	DefaultImageHeight    = imagegen.DefaultHeight
	DefaultImageSteps     = imagegen.DefaultSteps
	DefaultLoraPath       = imagegen.DefaultLoraPath
	DefaultLoraScale      = imagegen.DefaultLoraScale
	DefaultConcurrency    = 1

	DefaultSelectionPort         = selection.DefaultPort
	DefaultSelectionPollInterval = selection.DefaultPollInterval

	DefaultRegistrationURL     = registration.DefaultURL
	DefaultRegistrationMode    = string(registration.ModeExternal)
	DefaultRegistrationCommand = registration.DefaultCommand
	DefaultRegistrationDir     = registration.DefaultDir

	DefaultOutputDir = "."
)

// ErrMissingTogetherAPIKey は画像生成に必要な TOGETHER_API_KEY が無い場合のエラーです。
var ErrMissingTogetherAPIKey = errors.New("環境変数 TOGETHER_API_KEY が設定されていません。画像生成には必須なのだ")

// Config はアプリケーション全体の環境設定（APIキーや接続先）を保持する構造体なのだ。
type Config struct {
	// プロンプト展開
	LLMProvider  string `validate:"oneof=openai gemini"`
	NilaiAPIURL  string `validate:"required,url"`
	NilaiAPIKey  string
	ChatModel    string `validate:"required"`
	GeminiAPIKey string `validate:"required_if=LLMProvider gemini"`
	GeminiModel  string
	Temperature  float32 `validate:"gte=0,lte=2"`
	TriggerToken string  `validate:"required"`

	// 画像生成
	TogetherAPIURL    string `validate:"required,url"`
	TogetherAPIKey    string
	ImageModel        string `validate:"required"`
	ImageWidth        int    `validate:"gt=0"`
	ImageHeight       int    `validate:"gt=0"`
	ImageSteps        int    `validate:"gt=0"`
	LoraPath          string
	LoraScale         float64
	ImageConcurrency  int           `validate:"gte=1"`
	ImageRateInterval time.Duration `validate:"gte=0"`

	// 選択と登録
	SelectionPort         int           `validate:"min=1,max=65535"`
	SelectionPollInterval time.Duration `validate:"gt=0"`
	RegistrationURL       string        `validate:"required,url"`
	RegistrationMode      string        `validate:"oneof=external owned disabled"`
	RegistrationCommand   string
	RegistrationDir       string

	// 保存先（ローカル or gs://...）
	OutputDir        string `validate:"required"`
	SaveSelected     bool
	RegisterSelected bool // 選択された画像を登録サービスへ転送するか

	Options GenerateOptions
}

// LoadConfig は .env と環境変数から設定を読み込み、構造体を返すのだ！
// envFiles を省略するとカレントの .env を読み、それが無いのは普通のことなので無視するのだ。
// 明示されたファイルが読めないときは警告を出すのだ。
func LoadConfig(envFiles ...string) *Config {
	if err := godotenv.Load(envFiles...); err != nil {
		if len(envFiles) > 0 || !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("環境ファイルの読み込みに失敗したのだ", "files", envFiles, "error", err)
		}
	}

	cfg := &Config{
		LLMProvider:  strings.ToLower(envutil.GetEnv("LLM_PROVIDER", DefaultLLMProvider)),
		NilaiAPIURL:  strings.TrimRight(envutil.GetEnv("NILAI_API_URL", DefaultNilaiAPIURL), "/"),
		NilaiAPIKey:  envutil.GetEnv("NILAI_API_KEY", ""),
		ChatModel:    envutil.GetEnv("CHAT_MODEL", DefaultChatModel),
		GeminiAPIKey: envutil.GetEnv("GEMINI_API_KEY", ""),
		GeminiModel:  envutil.GetEnv("GEMINI_MODEL", DefaultGeminiModel),
		Temperature:  float32(getFloat("LLM_TEMPERATURE", DefaultTemperature)),
		TriggerToken: envutil.GetEnv("TRIGGER_TOKEN", DefaultTriggerToken),

		TogetherAPIURL:    strings.TrimRight(envutil.GetEnv("TOGETHER_API_URL", DefaultTogetherAPIURL), "/"),
		TogetherAPIKey:    envutil.GetEnv("TOGETHER_API_KEY", ""),
		ImageModel:        envutil.GetEnv("IMAGE_MODEL", DefaultImageModel),
		ImageWidth:        envutil.GetEnvAsInt("IMAGE_WIDTH", DefaultImageWidth),
		ImageHeight:       envutil.GetEnvAsInt("IMAGE_HEIGHT", DefaultImageHeight),
		ImageSteps:        envutil.GetEnvAsInt("IMAGE_STEPS", DefaultImageSteps),
		LoraPath:          envutil.GetEnv("LORA_PATH", DefaultLoraPath),
		LoraScale:         getFloat("LORA_SCALE", DefaultLoraScale),
		ImageConcurrency:  envutil.GetEnvAsInt("IMAGE_CONCURRENCY", DefaultConcurrency),
		ImageRateInterval: getDuration("IMAGE_RATE_INTERVAL", 0),

		SelectionPort:         envutil.GetEnvAsInt("SELECTION_PORT", DefaultSelectionPort),
		SelectionPollInterval: getDuration("SELECTION_POLL_INTERVAL", DefaultSelectionPollInterval),
		RegistrationURL:       envutil.GetEnv("REGISTRATION_URL", DefaultRegistrationURL),
		RegistrationMode:      strings.ToLower(envutil.GetEnv("REGISTRATION_MODE", DefaultRegistrationMode)),
		RegistrationCommand:   envutil.GetEnv("REGISTRATION_COMMAND", DefaultRegistrationCommand),
		RegistrationDir:       envutil.GetEnv("REGISTRATION_DIR", DefaultRegistrationDir),

		OutputDir:        envutil.GetEnv("OUTPUT_DIR", DefaultOutputDir),
		SaveSelected:     envutil.GetEnvAsBool("SAVE_SELECTED", true),
		RegisterSelected: envutil.GetEnvAsBool("REGISTER_SELECTED", false),
	}
	return cfg
}

// Validate は struct タグに従って設定値を検証します。
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s(%s)", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("設定値が不正です: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("設定値の検証に失敗しました: %w", err)
	}
	return nil
}

// RequireImageAPIKey は画像生成を行う経路でだけ呼ぶ、API キーの必須チェックなのだ。
func (c *Config) RequireImageAPIKey() error {
	if c.TogetherAPIKey == "" {
		return ErrMissingTogetherAPIKey
	}
	return nil
}

// ApplyOptions は CLI フラグで指定された値を環境変数より優先して反映するのだ。
func (c *Config) ApplyOptions(opts GenerateOptions) {
	c.Options = opts
	if opts.OutputDir != "" {
		c.OutputDir = opts.OutputDir
	}
	if opts.Provider != "" {
		c.LLMProvider = strings.ToLower(opts.Provider)
	}
	if opts.Concurrency > 0 {
		c.ImageConcurrency = opts.Concurrency
	}
	if opts.RegistrationMode != "" {
		c.RegistrationMode = strings.ToLower(opts.RegistrationMode)
	}
	if opts.RegisterSelected {
		c.RegisterSelected = true
	}
}

// GenerateOptions は CLI フラグから渡される実行時のパラメータなのだ。
type GenerateOptions struct {
	Count            int    // --count: 生成するプロンプト数
	OutputDir        string // --output-dir
	Provider         string // --provider
	Concurrency      int    // --concurrency
	RegistrationMode string // --registration-mode

	// 実行制御
	Once             bool          // --once: 選択を待たずに終了する
	NoOpen           bool          // --no-open: ブラウザを開かない
	RegisterSelected bool          // --register-selected: 選んだ画像をそのまま登録する
	HTTPTimeout      time.Duration // --http-timeout (0 で無制限)
}

func getFloat(key string, def float64) float64 {
	raw := envutil.GetEnv(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		slog.Warn("数値として解釈できないのでデフォルト値を使うのだ", "key", key, "value", raw, "default", def)
		return def
	}
	return v
}

// getDuration は "1s" のような表記に加えて、単位なしの数値を秒として受け付けます。
func getDuration(key string, def time.Duration) time.Duration {
	raw := envutil.GetEnv(key, "")
	if raw == "" {
		return def
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if secs, err := strconv.ParseFloat(raw, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	slog.Warn("時間として解釈できないのでデフォルト値を使うのだ", "key", key, "value", raw, "default", def)
	return def
}
