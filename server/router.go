package server

import (
	"net/http"

	"engulf/server/domain"
	"engulf/server/handler"
)

func Route(pubsub domain.PubSub, roomID domain.RoomID, cfg domain.EndpointConfig) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("GET /ws", handler.NewAcceptHandler(pubsub, roomID, cfg))
	mux.Handle("GET /healthz", handler.NewHealthHandler())
	return mux
}
