package selection

import (
	"context"
	"time"

	"github.com/shouni/go-concept-image-kit/pkg/domain"
)

// DefaultPollInterval はフォアグラウンドがスロットを確認する間隔です。
const DefaultPollInterval = time.Second

// Poller は一定間隔でスロットを確認し、選択があればハンドラーに渡します。
type Poller struct {
	slot     *Slot
	interval time.Duration
	now      func() time.Time
}

// NewPoller は Poller を生成します。interval が 0 以下なら DefaultPollInterval です。
func NewPoller(slot *Slot, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{slot: slot, interval: interval, now: time.Now}
}

// PollOnce はスロットを1回だけ確認します。選択があればスロットは番兵値に戻ります。
func (p *Poller) PollOnce() (domain.SelectionEvent, bool) {
	index, ok := p.slot.Take()
	if !ok {
		return domain.SelectionEvent{}, false
	}
	return domain.SelectionEvent{Index: index, ObservedAt: p.now()}, true
}

// Run は ctx が終わるまでポーリングを続けます。
func (p *Poller) Run(ctx context.Context, handle func(context.Context, domain.SelectionEvent)) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if ev, ok := p.PollOnce(); ok {
				handle(ctx, ev)
			}
		}
	}
}
