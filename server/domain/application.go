package domain

import (
	"context"

	"engulf/server/protocol"
)

//go:generate go tool mockgen -destination=./mocks/sender_mock.go -package=mocks . Sender

// Sender は room に参加しているセッションへの送信口です。
// いずれもブロックせず、満杯のセッションへのメッセージは捨てられます。
type Sender interface {
	Broadcast(ctx context.Context, out protocol.Outbound)
	BroadcastExcept(ctx context.Context, except SessionID, out protocol.Outbound)
	SendTo(ctx context.Context, sessionID SessionID, out protocol.Outbound)
}

// Application は room の中で動くゲームロジックです。
// HandleMessage と Tick は room の単一ゴルーチンからのみ呼ばれます。
type Application interface {
	// HandleMessage は join / data / leave のメッセージを処理します。
	HandleMessage(ctx context.Context, out Sender, msg Message) error
	Tick(ctx context.Context, out Sender)
}
