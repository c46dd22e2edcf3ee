package adapterwebsocket

import (
	"context"

	"github.com/coder/websocket"

	"engulf/server/domain"
)

type wsTransport struct {
	conn        *websocket.Conn
	messageType websocket.MessageType
}

// NewTransportFrom は coder/websocket の接続を Transport に変換します。
// binary の場合はバイナリフレームで送信します。
func NewTransportFrom(conn *websocket.Conn, binary bool) domain.Transport {
	mt := websocket.MessageText
	if binary {
		mt = websocket.MessageBinary
	}
	return &wsTransport{conn: conn, messageType: mt}
}

func (t *wsTransport) Read(ctx context.Context) ([]byte, error) {
	_, data, err := t.conn.Read(ctx)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (t *wsTransport) Write(ctx context.Context, data []byte) error {
	return t.conn.Write(ctx, t.messageType, data)
}

// Ping は並行して Read が呼ばれている間のみ pong を受け取れます。
func (t *wsTransport) Ping(ctx context.Context) error {
	return t.conn.Ping(ctx)
}

func (t *wsTransport) Close(code int32, reason string) error {
	return t.conn.Close(websocket.StatusCode(code), reason)
}
