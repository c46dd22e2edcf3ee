package domain

import (
	"context"
	"errors"
	"fmt"

	"engulf/server/protocol"
)

// ErrEncodeFailed はメッセージの符号化に失敗した場合に返されるエラーです。接続自体は使えます。
var ErrEncodeFailed = errors.New("connection: encode failed")

// StatusNormalClosure は WebSocket の正常終了コードです。
const StatusNormalClosure int32 = 1000

// Connection は物理的な接続を表します。フレームの符号化はセッションのコーデックで行います。
type Connection struct {
	SessionID SessionID
	transport Transport
	codec     protocol.Codec
}

func NewConnection(sessionID SessionID, transport Transport, codec protocol.Codec) *Connection {
	if codec == nil {
		codec = protocol.JSONCodec{}
	}
	return &Connection{
		SessionID: sessionID,
		transport: transport,
		codec:     codec,
	}
}

// ReadEvent は1フレーム読み込み、デコード済みのイベントを返します。
// raw はトランスポートエラー時のみ nil です。
func (c *Connection) ReadEvent(ctx context.Context) (event any, raw []byte, err error) {
	raw, err = c.transport.Read(ctx)
	if err != nil {
		return nil, nil, err
	}
	event, err = c.codec.Decode(raw)
	return event, raw, err
}

func (c *Connection) WriteEvent(ctx context.Context, out protocol.Outbound) error {
	data, err := c.codec.Encode(out)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrEncodeFailed, out.Event, err)
	}
	return c.transport.Write(ctx, data)
}

func (c *Connection) Ping(ctx context.Context) error {
	return c.transport.Ping(ctx)
}

func (c *Connection) Close() {
	_ = c.transport.Close(StatusNormalClosure, "")
}
