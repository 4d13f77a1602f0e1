package domain

// ExpansionResult はプロンプト展開の結果です。
// Degraded が true の場合、Prompts はリモート呼び出し失敗時のフォールバックです。
type ExpansionResult struct {
	Prompts  []string
	Degraded bool
	Cause    error
}

// GenerationResult は画像生成の結果です。失敗したプロンプトは含まれず、Failed に数だけ残ります。
type GenerationResult struct {
	SessionID string
	Images    []string
	Prompts   []string
	Failed    int
}

// Degraded は一部（または全部）の生成が失敗したかどうかを返します。
func (r GenerationResult) Degraded() bool {
	return r.Failed > 0
}

// Empty は1枚も画像が得られなかったかどうかを返します。
func (r GenerationResult) Empty() bool {
	return len(r.Images) == 0
}
