package domain

import "time"

// NoSelection は選択スロットが空であることを示す番兵値です。
const NoSelection = -1

// SelectionEvent はユーザーがページ上で画像を選んだことを表します。
type SelectionEvent struct {
	Index      int
	ObservedAt time.Time
}
