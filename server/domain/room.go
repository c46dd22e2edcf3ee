package domain

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"engulf/server/protocol"
)

type RoomID string

func (id RoomID) String() string { return string(id) }

// DefaultTickInterval はゲームループの発火間隔です。
const DefaultTickInterval = time.Second / 60

var ErrInvalidRoom = errors.New("room: pubsub and application are required")

// Room はゲームループを駆動し、受信イベントとtickを単一のゴルーチンで直列化します。
// レジストリやワールドへのアクセスはすべてこのゴルーチンから行われるため、ロックは不要です。
type Room struct {
	ID       RoomID
	sessions map[SessionID]struct{}

	pubsub      PubSub
	application Application // 外部からアプリケーションロジックを注入できる
	msgCh       <-chan Message

	tickInterval time.Duration
}

var _ Sender = (*Room)(nil)

func NewRoom(id RoomID, pubsub PubSub, application Application, tickInterval time.Duration) (*Room, error) {
	if pubsub == nil || application == nil {
		return nil, ErrInvalidRoom
	}
	if tickInterval <= 0 {
		tickInterval = DefaultTickInterval
	}
	// Run より前に接続してきたセッションの join を取りこぼさないよう、生成時に購読する
	return &Room{
		ID:           id,
		sessions:     make(map[SessionID]struct{}),
		pubsub:       pubsub,
		application:  application,
		msgCh:        pubsub.Subscribe(RoomTopic(id)),
		tickInterval: tickInterval,
	}, nil
}

func (r *Room) Run(ctx context.Context) error {
	defer r.pubsub.Unsubscribe(RoomTopic(r.ID), r.msgCh)

	ticker := time.NewTicker(r.tickInterval)
	defer ticker.Stop()

	slog.InfoContext(ctx, "room started", "roomID", r.ID, "tickInterval", r.tickInterval)
	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "room stopped", "roomID", r.ID)
			return nil
		case msg := <-r.msgCh:
			r.handleMessage(ctx, msg)
		case <-ticker.C:
			r.application.Tick(ctx, r)
		}
	}
}

func (r *Room) handleMessage(ctx context.Context, msg Message) {
	switch msg.Kind {
	case MessageJoin:
		r.sessions[msg.SessionID] = struct{}{}
		slog.DebugContext(ctx, "session joined room", "roomID", r.ID, "sessionID", msg.SessionID)
	case MessageLeave:
		delete(r.sessions, msg.SessionID)
		slog.DebugContext(ctx, "session left room", "roomID", r.ID, "sessionID", msg.SessionID)
	}
	// アプリケーションロジックが担当する
	if err := r.application.HandleMessage(ctx, r, msg); err != nil {
		slog.WarnContext(ctx, "room handle message failed", "sessionID", msg.SessionID, "kind", msg.Kind, "err", err)
	}
}

// NumSessions は参加中のセッション数を返します。room のゴルーチン以外から呼ばないこと。
func (r *Room) NumSessions() int {
	return len(r.sessions)
}

func (r *Room) Broadcast(ctx context.Context, out protocol.Outbound) {
	for sessionID := range r.sessions {
		r.SendTo(ctx, sessionID, out)
	}
}

func (r *Room) BroadcastExcept(ctx context.Context, except SessionID, out protocol.Outbound) {
	for sessionID := range r.sessions {
		if sessionID == except {
			continue
		}
		r.SendTo(ctx, sessionID, out)
	}
}

func (r *Room) SendTo(ctx context.Context, sessionID SessionID, out protocol.Outbound) {
	err := r.pubsub.TryPublish(SessionTopic(sessionID), Message{SessionID: sessionID, Kind: MessageData, Event: out})
	if err != nil {
		slog.WarnContext(ctx, "room send dropped", "sessionID", sessionID, "event", out.Event, "err", err)
	}
}
