package prompts

import (
	"fmt"
	"strings"
)

// ParseLines は LLM の応答テキストを1行1プロンプトとして分割します。
// 空行は捨て、先頭から最大 n 件までを返します。
func ParseLines(text string, n int) []string {
	var out []string
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		if s := strings.TrimSpace(line); s != "" {
			out = append(out, s)
		}
	}
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Fallback はリモート呼び出しに失敗したときに使う n 件の定型プロンプトを返します。
func Fallback(trigger, concept string, n int) []string {
	if trigger == "" {
		trigger = DefaultTrigger
	}
	p := fmt.Sprintf("%s %s, realistic photo, high definition", trigger, strings.TrimSpace(concept))
	out := make([]string, n)
	for i := range out {
		out[i] = p
	}
	return out
}

// HasTrigger はプロンプトがトリガートークンで始まっているかを判定します。大文字小文字は区別しません。
func HasTrigger(prompt, trigger string) bool {
	if trigger == "" {
		trigger = DefaultTrigger
	}
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(prompt)), strings.ToLower(trigger))
}

// CountMissingTrigger はトリガートークンで始まらないプロンプトの数を返します。
func CountMissingTrigger(ps []string, trigger string) int {
	missing := 0
	for _, p := range ps {
		if !HasTrigger(p, trigger) {
			missing++
		}
	}
	return missing
}
