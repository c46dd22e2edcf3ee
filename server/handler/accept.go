package handler

import (
	"log/slog"
	"net/http"

	"github.com/coder/websocket"

	adapterwebsocket "engulf/server/adapter/websocket"
	"engulf/server/domain"
	"engulf/server/protocol"
)

type AcceptHandler struct {
	pubsub domain.PubSub
	roomID domain.RoomID
	cfg    domain.EndpointConfig
}

func NewAcceptHandler(pubsub domain.PubSub, roomID domain.RoomID, cfg domain.EndpointConfig) *AcceptHandler {
	return &AcceptHandler{pubsub: pubsub, roomID: roomID, cfg: cfg}
}

func (h *AcceptHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:       protocol.Subprotocols(),
		InsecureSkipVerify: true, // 開発用: Origin チェックをスキップ
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to accept", "err", err)
		return
	}

	codec := protocol.CodecFor(conn.Subprotocol())
	session := domain.NewSession()
	transport := adapterwebsocket.NewTransportFrom(conn, codec.Binary())
	connection := domain.NewConnection(session.ID(), transport, codec)
	endpoint, err := domain.NewSessionEndpoint(ctx, session, connection, h.pubsub, h.roomID, h.cfg)
	if err != nil {
		slog.ErrorContext(ctx, "failed to create session endpoint", "err", err)
		conn.Close(websocket.StatusInternalError, "initialization failed")
		return
	}
	slog.DebugContext(ctx, "accepted new connection", "sessionID", session.ID(), "codec", codec.Name())
	if err := endpoint.Run(); err != nil {
		slog.ErrorContext(ctx, "failed to run session endpoint", "sessionID", session.ID(), "err", err)
		return
	}
	slog.DebugContext(ctx, "connection closed", "sessionID", session.ID())
}
