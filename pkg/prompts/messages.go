package prompts

import (
	"embed"
	"errors"
	"fmt"
	"strings"
	"text/template"
)

// DefaultTrigger は微調整済み画像モデルが先頭に要求するキーワードです。
const DefaultTrigger = "n3lson man"

const (
	systemTemplate = "system.md"
	userTemplate   = "user.md"
)

//go:embed system.md user.md
var templateFiles embed.FS

// ErrInvalidCount は要求件数が 1 未満の場合のエラーです。
var ErrInvalidCount = errors.New("プロンプト数は 1 以上である必要があります")

// Request は1回の展開でテンプレートに渡す値です。
type Request struct {
	Concept string
	Count   int
	Trigger string
}

// Messages は LLM に送るシステム指示とユーザーメッセージの組です。
type Messages struct {
	System string
	User   string
}

// MessageBuilder はコンセプトから LLM へのメッセージを組み立てる契約です。
type MessageBuilder interface {
	Messages(req Request) (Messages, error)
}

// ExpansionTemplates は埋め込みの system.md / user.md から Messages を生成します。
type ExpansionTemplates struct {
	set *template.Template
}

// NewExpansionTemplates は埋め込みテンプレートを解析して ExpansionTemplates を返します。
func NewExpansionTemplates() (*ExpansionTemplates, error) {
	set, err := template.New("expansion").Option("missingkey=error").ParseFS(templateFiles, systemTemplate, userTemplate)
	if err != nil {
		return nil, fmt.Errorf("プロンプトテンプレートの解析に失敗しました: %w", err)
	}
	return &ExpansionTemplates{set: set}, nil
}

// Messages はリクエストを両方のテンプレートに流し込みます。Trigger が空なら DefaultTrigger を使います。
func (t *ExpansionTemplates) Messages(req Request) (Messages, error) {
	if req.Count < 1 {
		return Messages{}, ErrInvalidCount
	}
	if req.Trigger == "" {
		req.Trigger = DefaultTrigger
	}
	req.Concept = strings.TrimSpace(req.Concept)

	system, err := t.render(systemTemplate, req)
	if err != nil {
		return Messages{}, err
	}
	user, err := t.render(userTemplate, req)
	if err != nil {
		return Messages{}, err
	}
	return Messages{System: system, User: user}, nil
}

func (t *ExpansionTemplates) render(name string, req Request) (string, error) {
	var sb strings.Builder
	if err := t.set.ExecuteTemplate(&sb, name, req); err != nil {
		return "", fmt.Errorf("テンプレート %s の実行に失敗しました: %w", name, err)
	}
	return strings.TrimSpace(sb.String()), nil
}
