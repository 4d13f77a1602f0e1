package presenter

import (
	"context"
	_ "embed"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"os"

	"github.com/pkg/browser"

	"github.com/shouni/go-concept-image-kit/pkg/domain"
)

//go:embed page.html
var pageHTML string

var pageTemplate = template.Must(template.New("page").Parse(pageHTML))

// Opener は書き出したページをユーザーに見せる手段です。
type Opener interface {
	Open(path string) error
}

// BrowserOpener は OS の既定ブラウザでファイルを開きます。
type BrowserOpener struct{}

// Open は path を既定ブラウザで開きます。
func (BrowserOpener) Open(path string) error {
	return browser.OpenFile(path)
}

// Options は選択ページの生成設定です。
type Options struct {
	SelectURL   string // 「選択」ボタンの送信先（ローカルのコールバック）
	RegisterURL string // 「登録」フォームの送信先（外部の登録サービス）
	TempDir     string // 空なら os.TempDir()
}

// Presenter は生成画像を1枚の HTML ページにまとめ、ブラウザで開きます。
type Presenter struct {
	opts   Options
	opener Opener
}

// New は Presenter を生成します。opener が nil なら BrowserOpener を使います。
func New(opts Options, opener Opener) *Presenter {
	if opener == nil {
		opener = BrowserOpener{}
	}
	return &Presenter{opts: opts, opener: opener}
}

type optionView struct {
	Number int
	Index  int
	Src    template.URL
	Prompt string
}

type pageView struct {
	Concept     string
	Title       string
	Description string
	SelectURL   string
	RegisterURL string
	Options     []optionView
}

// Render はセッションの内容からページを w に書き出します。
func (p *Presenter) Render(w io.Writer, session domain.Session) error {
	view := pageView{
		Concept:     session.Concept,
		Title:       DefaultTitle(session.Concept),
		Description: DefaultDescription(session.Concept),
		SelectURL:   p.opts.SelectURL,
		RegisterURL: p.opts.RegisterURL,
	}
	for _, img := range session.GeneratedImages() {
		view.Options = append(view.Options, optionView{
			Number: img.Index + 1,
			Index:  img.Index,
			// Base64 文字列は URL として安全なのでそのまま data URI にするのだ
			Src:    template.URL("data:image/png;base64," + img.Base64),
			Prompt: img.Prompt,
		})
	}
	if err := pageTemplate.Execute(w, view); err != nil {
		return fmt.Errorf("選択ページの描画に失敗しました: %w", err)
	}
	return nil
}

// Present はページを一時ファイルに書き出して開き、そのパスを返すのだ。
// 画像が1枚も無いときは何も書かず、空文字を返すのだ。
func (p *Presenter) Present(ctx context.Context, session domain.Session) (string, error) {
	if session.Len() == 0 {
		slog.InfoContext(ctx, "表示する画像が無いのだ")
		return "", nil
	}

	f, err := os.CreateTemp(p.opts.TempDir, "concept-image-*.html")
	if err != nil {
		return "", fmt.Errorf("一時ファイルの作成に失敗しました: %w", err)
	}
	if err := p.Render(f, session); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("一時ファイルの書き込みに失敗しました: %w", err)
	}

	if err := p.opener.Open(f.Name()); err != nil {
		slog.WarnContext(ctx, "ブラウザで開けなかったのだ。手動で開いてほしいのだ", "path", f.Name(), "error", err)
	} else {
		slog.InfoContext(ctx, "選択ページを開いたのだ", "path", f.Name(), "images", session.Len())
	}
	return f.Name(), nil
}

// DefaultTitle は登録フォームのタイトル初期値です。
func DefaultTitle(concept string) string {
	return "AI Generated: " + concept
}

// DefaultDescription は登録フォームの説明文初期値です。
func DefaultDescription(concept string) string {
	return fmt.Sprintf("AI-generated image created from the concept: '%s'", concept)
}
