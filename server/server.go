package server

import (
	"context"
	"net"
	"net/http"
)

type Server struct {
	HTTP *http.Server
}

// NewServer は ctx を全リクエストの親にした HTTP サーバーを作ります。
// ctx が終了すると WebSocket のセッションも閉じられます。
func NewServer(ctx context.Context, addr string, handler http.Handler) *Server {
	return &Server{
		HTTP: &http.Server{
			Addr:        addr,
			Handler:     handler,
			BaseContext: func(net.Listener) context.Context { return ctx },
		},
	}
}

func (s *Server) Serve() error                       { return s.HTTP.ListenAndServe() }
func (s *Server) Shutdown(ctx context.Context) error { return s.HTTP.Shutdown(ctx) }
func (s *Server) Close() error                       { return s.HTTP.Close() }
func (s *Server) Addr() string                       { return s.HTTP.Addr }
