package prompts

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestExpansionTemplates_Messages(t *testing.T) {
	tmpl, err := NewExpansionTemplates()
	if err != nil {
		t.Fatalf("初期化に失敗したのだ: %v", err)
	}

	t.Run("ユーザーメッセージに件数とコンセプトが埋め込まれるのだ", func(t *testing.T) {
		m, err := tmpl.Messages(Request{Concept: "  on beach ", Count: 3})
		if err != nil {
			t.Fatalf("Messages 失敗なのだ: %v", err)
		}
		want := "Generate 3 different detailed image prompts for the concept: 'on beach'"
		if m.User != want {
			t.Errorf("期待: %q, 実際: %q", want, m.User)
		}
	})

	t.Run("システム指示には既定のトリガーが入るのだ", func(t *testing.T) {
		m, err := tmpl.Messages(Request{Concept: "x", Count: 1})
		if err != nil {
			t.Fatalf("Messages 失敗なのだ: %v", err)
		}
		if !strings.Contains(m.System, "Prompt MUST start with 'n3lson man'") {
			t.Errorf("トリガー指示が見つからないのだ: %s", m.System)
		}
	})

	t.Run("独自トリガーも反映されるのだ", func(t *testing.T) {
		m, _ := tmpl.Messages(Request{Concept: "x", Count: 1, Trigger: "sks dog"})
		if !strings.Contains(m.System, "'sks dog on beach'") {
			t.Errorf("独自トリガーが入っていないのだ: %s", m.System)
		}
	})

	t.Run("件数が 0 ならエラーなのだ", func(t *testing.T) {
		if _, err := tmpl.Messages(Request{Concept: "x"}); !errors.Is(err, ErrInvalidCount) {
			t.Errorf("ErrInvalidCount を期待したのだ: %v", err)
		}
	})
}

func TestParseLines(t *testing.T) {
	text := "\n n3lson man on beach \n\n n3lson man surfing\nn3lson man at sunset\n"

	tests := []struct {
		name string
		n    int
		want []string
	}{
		{"上限より少ない", 5, []string{"n3lson man on beach", "n3lson man surfing", "n3lson man at sunset"}},
		{"上限で切り詰める", 2, []string{"n3lson man on beach", "n3lson man surfing"}},
		{"ゼロ件", 0, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseLines(text, tt.n)
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("期待: %v, 実際: %v", tt.want, got)
			}
		})
	}
}

func TestFallback(t *testing.T) {
	got := Fallback("", "on beach", 3)
	if len(got) != 3 {
		t.Fatalf("3件を期待したのだ: %d", len(got))
	}
	for _, p := range got {
		if p != "n3lson man on beach, realistic photo, high definition" {
			t.Errorf("フォールバックの形式が違うのだ: %q", p)
		}
		if !HasTrigger(p, DefaultTrigger) {
			t.Errorf("フォールバックにトリガーが無いのだ: %q", p)
		}
	}
}

func TestCountMissingTrigger(t *testing.T) {
	ps := []string{"N3lson Man on beach", "a man on beach", "n3lson man surfing"}
	if got := CountMissingTrigger(ps, ""); got != 1 {
		t.Errorf("1件を期待したのだ: %d", got)
	}
}
