package application

import "time"

// Gate は送信間隔を制限する時刻ゲートです。ゼロ値は即座に開いています。
type Gate struct {
	next time.Time
}

// Allow は now にゲートが開いていれば true を返し、interval の間ゲートを閉じます。
func (g *Gate) Allow(now time.Time, interval time.Duration) bool {
	if now.Before(g.next) {
		return false
	}
	g.next = now.Add(interval)
	return true
}
