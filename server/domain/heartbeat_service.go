package domain

import (
	"context"
	"log/slog"
	"time"
)

// Pinger は死活確認の ping を送り pong を待つことができる接続です。
type Pinger interface {
	Ping(ctx context.Context) error
}

// HeartbeatService は定期的にpingを送信し、pongを受け取るたびにセッションの活動時刻を更新する死活監視サービスです。
type HeartbeatService struct {
	pingInterval time.Duration
	session      *Session
	pinger       Pinger
}

// NewHeartbeatService は新しいHeartbeatServiceを生成します。
func NewHeartbeatService(pingInterval time.Duration, session *Session, pinger Pinger) *HeartbeatService {
	return &HeartbeatService{
		pingInterval: pingInterval,
		session:      session,
		pinger:       pinger,
	}
}

// Run はpingInterval間隔でpingを送信します。
// ctxがキャンセルされると終了します。pingIntervalが0以下の場合は何もしません。
func (h *HeartbeatService) Run(ctx context.Context) {
	if h.pingInterval <= 0 {
		return
	}
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, h.pingInterval)
			err := h.pinger.Ping(pingCtx)
			cancel()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.WarnContext(ctx, "heartbeat: ping failed", "sessionID", h.session.ID(), "err", err)
				continue
			}
			h.session.TouchPong()
			slog.DebugContext(ctx, "heartbeat: pong received", "sessionID", h.session.ID())
		}
	}
}
