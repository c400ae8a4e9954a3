package delivery

import (
	"sync"
	"time"
)

// DailyQuota はメディアごとの1日あたりの配信記事数を数える。
// 日付（UTC）が変わるとカウンタは自動的にリセットされる。
// プロセス内カウンタのため、再起動でリセットされることは許容する。
type DailyQuota struct {
	mu     sync.Mutex
	day    string
	counts map[string]int
	now    func() time.Time
}

// NewDailyQuota はDailyQuotaの新しいインスタンスを生成する。
func NewDailyQuota() *DailyQuota {
	return &DailyQuota{
		counts: make(map[string]int),
		now:    time.Now,
	}
}

// Allow はmediumIDへの配信がlimit件以内に収まるかを判定し、
// 収まる場合はカウントを1増やして真を返す。limitが0以下の場合は常に真。
func (q *DailyQuota) Allow(mediumID string, limit int) bool {
	if limit <= 0 {
		return true
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	day := q.now().UTC().Format("2006-01-02")
	if day != q.day {
		q.day = day
		q.counts = make(map[string]int)
	}
	if q.counts[mediumID] >= limit {
		return false
	}
	q.counts[mediumID]++
	return true
}
