package presenter

import (
	"bytes"
	"context"
	"errors"
	"os"
	"regexp"
	"strings"
	"testing"

	"github.com/shouni/go-concept-image-kit/pkg/domain"
)

type fakeOpener struct {
	opened []string
	err    error
}

func (f *fakeOpener) Open(path string) error {
	f.opened = append(f.opened, path)
	return f.err
}

func testSession() domain.Session {
	return domain.Session{
		ID:      "s",
		Concept: "on beach",
		Images:  []string{"QUFB", "QkJC"},
		Prompts: []string{"n3lson man on beach at dawn", "n3lson man's surf <b>day</b>"},
	}
}

func TestPresenter_Present(t *testing.T) {
	t.Run("画像が無いときは何も書かず開かないのだ", func(t *testing.T) {
		dir := t.TempDir()
		op := &fakeOpener{}
		p := New(Options{TempDir: dir}, op)

		path, err := p.Present(context.Background(), domain.Session{Concept: "x"})
		if err != nil || path != "" {
			t.Fatalf("空の結果を期待したのだ: %q %v", path, err)
		}
		if len(op.opened) != 0 {
			t.Error("ブラウザを開いてはいけないのだ")
		}
		entries, _ := os.ReadDir(dir)
		if len(entries) != 0 {
			t.Errorf("ファイルが作られているのだ: %d", len(entries))
		}
	})

	t.Run("画像ごとのブロックとフォームを書き出して開くのだ", func(t *testing.T) {
		op := &fakeOpener{}
		p := New(Options{
			TempDir:     t.TempDir(),
			SelectURL:   "http://localhost:5001/select-image",
			RegisterURL: "http://localhost:3000/register-image",
		}, op)

		path, err := p.Present(context.Background(), testSession())
		if err != nil {
			t.Fatalf("予期しないエラーなのだ: %v", err)
		}
		if len(op.opened) != 1 || op.opened[0] != path {
			t.Errorf("書き出したページが開かれていないのだ: %v", op.opened)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("ページが読めないのだ: %v", err)
		}
		html := string(data)

		if got := strings.Count(html, `class="image-option"`); got != 2 {
			t.Errorf("画像ブロックは2つのはずなのだ: %d", got)
		}
		for _, want := range []string{
			`src="data:image/png;base64,QUFB"`,
			`src="data:image/png;base64,QkJC"`,
			"Prompt: n3lson man on beach at dawn",
			"&lt;b&gt;day&lt;/b&gt;",
			`value="AI Generated: on beach"`,
			"AI-generated image created from the concept: &#39;on beach&#39;",
			"localhost:3000",
			"localhost:5001",
		} {
			if !strings.Contains(html, want) {
				t.Errorf("ページに %q が含まれていないのだ", want)
			}
		}
		for _, re := range []string{`selectImage\(\s*0\s*\)`, `openRegisterModal\(\s*1\s*\)`} {
			if !regexp.MustCompile(re).MatchString(html) {
				t.Errorf("ページに %s が見つからないのだ", re)
			}
		}
	})

	t.Run("ブラウザが開けなくてもパスは返すのだ", func(t *testing.T) {
		op := &fakeOpener{err: errors.New("no browser")}
		path, err := New(Options{TempDir: t.TempDir()}, op).Present(context.Background(), testSession())
		if err != nil || path == "" {
			t.Errorf("パスを返すはずなのだ: %q %v", path, err)
		}
	})
}

func TestPresenter_Render(t *testing.T) {
	var buf bytes.Buffer
	if err := New(Options{}, &fakeOpener{}).Render(&buf, testSession()); err != nil {
		t.Fatalf("描画に失敗したのだ: %v", err)
	}
	if !strings.Contains(buf.String(), `id="option-2"`) {
		t.Error("option-2 が無いのだ")
	}
}
