package selection

import (
	"sync/atomic"

	"github.com/shouni/go-concept-image-kit/pkg/domain"
)

// Slot はユーザーの選択を1件だけ保持する箱です。
// 後から届いた選択が前の値を上書きします（last-write-wins）。キューは持ちません。
type Slot struct {
	v atomic.Int64
}

// NewSlot は空（domain.NoSelection）の Slot を返します。
func NewSlot() *Slot {
	s := &Slot{}
	s.v.Store(domain.NoSelection)
	return s
}

// Set は選択インデックスを保存します。範囲チェックはしません。
func (s *Slot) Set(index int) {
	s.v.Store(int64(index))
}

// Peek は現在の値をそのまま返します。
func (s *Slot) Peek() int {
	return int(s.v.Load())
}

// Take は値を取り出して番兵値に戻します。負の値は選択とみなさず ok=false です。
func (s *Slot) Take() (index int, ok bool) {
	v := int(s.v.Swap(domain.NoSelection))
	if v < 0 {
		return domain.NoSelection, false
	}
	return v, true
}
