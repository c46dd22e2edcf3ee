package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"engulf/server/protocol"
)

var (
	// ErrInitializationFailed はセッションエンドポイントの初期化に失敗した場合に返されるエラーです。
	ErrInitializationFailed = errors.New("failed to initialize session endpoint")
	// ErrWriteQueueFull は書き込みチャネルが満杯の場合に返されるエラーです。
	ErrWriteQueueFull = errors.New("write channel is full, apply backpressure")
	// ErrJoinFailed は room への参加通知に失敗した場合に返されるエラーです。
	ErrJoinFailed = errors.New("failed to join room")
)

const leaveTimeout = time.Second

// EndpointConfig はセッションエンドポイントの動作設定です。
type EndpointConfig struct {
	// IdleTimeout を超えて受信も pong もない場合に切断します。0以下で無効です。
	IdleTimeout time.Duration
	// PingInterval は死活確認の間隔です。0以下で無効です。
	PingInterval time.Duration
	// WriteQueueSize は送信待ちキューの長さです。
	WriteQueueSize int
}

// DefaultEndpointConfig はデフォルト設定を返します。
func DefaultEndpointConfig() EndpointConfig {
	return EndpointConfig{
		IdleTimeout:    30 * time.Second,
		PingInterval:   10 * time.Second,
		WriteQueueSize: 1024,
	}
}

// SessionEndpoint は1接続の読み書きと room への橋渡しを担当します。
// 受信フレームはデコードして room トピックへ、セッション宛トピックのメッセージは接続へ流します。
type SessionEndpoint struct {
	ctx    context.Context
	cancel context.CancelFunc

	session    *Session
	connection *Connection
	pubsub     PubSub
	roomID     RoomID
	cfg        EndpointConfig

	ctrlCh  chan endpointEvent     // 制御用チャネル
	writeCh chan protocol.Outbound // 書き込み用チャネル

	// lifecycle
	closed atomic.Bool
}

func NewSessionEndpoint(parent context.Context, session *Session, connection *Connection, pubsub PubSub, roomID RoomID, cfg EndpointConfig) (*SessionEndpoint, error) {
	if parent == nil || session == nil || connection == nil || pubsub == nil {
		return nil, ErrInitializationFailed
	}
	if roomID == "" {
		return nil, fmt.Errorf("%w: empty room id", ErrInitializationFailed)
	}
	if cfg.WriteQueueSize <= 0 {
		cfg.WriteQueueSize = DefaultEndpointConfig().WriteQueueSize
	}
	ctx, cancel := context.WithCancel(parent)
	se := &SessionEndpoint{
		ctx:        ctx,
		cancel:     cancel,
		session:    session,
		connection: connection,
		pubsub:     pubsub,
		roomID:     roomID,
		cfg:        cfg,
		ctrlCh:     make(chan endpointEvent, 16),
		writeCh:    make(chan protocol.Outbound, cfg.WriteQueueSize),
	}
	return se, nil
}

// Run は接続が閉じるまでブロックします。終了時に room へ leave を通知します。
func (se *SessionEndpoint) Run() error {
	// 自分宛のメッセージを購読
	sessionTopic := SessionTopic(se.session.ID())
	msgCh := se.pubsub.Subscribe(sessionTopic)
	defer se.pubsub.Unsubscribe(sessionTopic, msgCh)

	// セッションID通知はブロードキャストより先に送る
	if err := se.Send(protocol.Outbound{
		Event: protocol.EventSession,
		Data:  protocol.Session{ID: se.session.ID().String()},
	}); err != nil {
		se.close()
		return err
	}

	if err := se.publish(se.ctx, MessageJoin, nil); err != nil {
		se.close()
		return fmt.Errorf("%w: %v", ErrJoinFailed, err)
	}
	defer se.leave()
	// 親 ctx の終了で抜けた場合も接続を閉じる
	defer se.close()

	heartbeat := NewHeartbeatService(se.cfg.PingInterval, se.session, se.connection)

	eg, ctx := errgroup.WithContext(se.ctx)
	eg.Go(func() error {
		se.ownerLoop(ctx)
		return nil
	})
	eg.Go(func() error {
		se.readLoop(ctx)
		return nil
	})
	eg.Go(func() error {
		se.writeLoop(ctx)
		return nil
	})
	eg.Go(func() error {
		se.subscribeLoop(ctx, msgCh)
		return nil
	})
	eg.Go(func() error {
		heartbeat.Run(ctx)
		return nil
	})
	return eg.Wait()
}

func (se *SessionEndpoint) Send(out protocol.Outbound) error {
	select {
	case se.writeCh <- out:
		return nil
	default:
		return ErrWriteQueueFull
	}
}

// ownerLoop は論理セッションの状態を監視し、必要に応じて接続の管理を行います。
func (se *SessionEndpoint) ownerLoop(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-se.ctrlCh:
			se.handleControlEvent(ctx, ev)
		case <-ticker.C:
			_, reason := se.session.IsIdle(se.cfg.IdleTimeout)
			if reason.Has(IdleRead | IdlePong) {
				se.handleControlEvent(ctx, endpointEvent{
					kind: evClose,
					err:  fmt.Errorf("idle: %s", reason),
				})
			}
		}
	}
}

func (se *SessionEndpoint) readLoop(ctx context.Context) {
	roomTopic := RoomTopic(se.roomID)
	for {
		event, raw, err := se.connection.ReadEvent(ctx)
		if err != nil && raw == nil {
			se.sendCtrlEvent(ctx, endpointEvent{kind: evReadError, err: err})
			return
		}
		se.session.TouchRead()
		if err != nil {
			slog.WarnContext(ctx, "failed to decode frame", "sessionID", se.session.ID(), "err", err)
			continue
		}
		if err := se.pubsub.Publish(ctx, roomTopic, Message{
			SessionID: se.session.ID(),
			Kind:      MessageData,
			Event:     event,
		}); err != nil && ctx.Err() == nil {
			slog.WarnContext(ctx, "failed to publish to room", "sessionID", se.session.ID(), "roomID", se.roomID, "err", err)
		}
	}
}

func (se *SessionEndpoint) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case out := <-se.writeCh:
			if err := se.connection.WriteEvent(ctx, out); err != nil {
				if errors.Is(err, ErrEncodeFailed) {
					slog.WarnContext(ctx, "message dropped", "sessionID", se.session.ID(), "err", err)
					continue
				}
				se.sendCtrlEvent(ctx, endpointEvent{kind: evWriteError, err: err})
				return
			}
			se.session.TouchWrite()
		}
	}
}

// subscribeLoop はpubsubからのメッセージをwriteChに転送します。
func (se *SessionEndpoint) subscribeLoop(ctx context.Context, msgCh <-chan Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-msgCh:
			out, ok := msg.Event.(protocol.Outbound)
			if !ok {
				slog.WarnContext(ctx, "subscribeLoop: unexpected message", "sessionID", se.session.ID(), "type", fmt.Sprintf("%T", msg.Event))
				continue
			}
			if err := se.Send(out); err != nil {
				slog.WarnContext(ctx, "subscribeLoop: writeCh full, message dropped", "sessionID", se.session.ID(), "event", out.Event)
			}
		}
	}
}

// handleControlEvent は制御チャネルからのイベントを処理し論理セッションの状態を更新する唯一の関数です。
func (se *SessionEndpoint) handleControlEvent(ctx context.Context, ev endpointEvent) {
	switch ev.kind {
	case evClose, evReadError, evWriteError:
		if ev.err != nil {
			slog.DebugContext(ctx, "closing session", "sessionID", se.session.ID(), "reason", ev.kind, "err", ev.err)
		}
		se.close()
	default:
		slog.WarnContext(ctx, "unknown endpoint event kind", "kind", ev.kind)
	}
}

func (se *SessionEndpoint) sendCtrlEvent(ctx context.Context, ev endpointEvent) {
	select {
	case se.ctrlCh <- ev:
	case <-ctx.Done():
	}
}

func (se *SessionEndpoint) publish(ctx context.Context, kind MessageKind, event any) error {
	return se.pubsub.Publish(ctx, RoomTopic(se.roomID), Message{
		SessionID: se.session.ID(),
		Kind:      kind,
		Event:     event,
	})
}

// leave は room に切断を通知します。エンドポイントの ctx は既に終了しているため別の ctx を使います。
func (se *SessionEndpoint) leave() {
	ctx, cancel := context.WithTimeout(context.Background(), leaveTimeout)
	defer cancel()
	if err := se.publish(ctx, MessageLeave, nil); err != nil {
		slog.WarnContext(ctx, "failed to publish leave", "sessionID", se.session.ID(), "err", err)
	}
}

func (se *SessionEndpoint) close() {
	if !se.closed.CompareAndSwap(false, true) {
		return
	}
	se.cancel()
	se.session.Close()
	se.connection.Close()
}
