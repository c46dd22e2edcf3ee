package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"engulf/server/protocol"
)

// 受信側が詰まっていてもセッション終了で受信ゴルーチンが抜ける
func TestReadEvents_ReturnsWhenSessionEndsWithFullQueue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()
		frame, _ := protocol.JSONCodec{}.Encode(protocol.Outbound{
			Event: protocol.EventMovePlayer,
			Data:  protocol.PlayerState{ID: "x"},
		})
		for i := 0; i < 8; i++ {
			if err := conn.Write(r.Context(), websocket.MessageText, frame); err != nil {
				return
			}
		}
		// クライアントが閉じるまで待つ
		_, _, _ = conn.Read(context.Background())
	}))
	defer srv.Close()

	dialCtx, dialCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer dialCancel()
	conn, _, err := websocket.Dial(dialCtx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()

	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan inbound, 1)
	readErr := make(chan error, 1)
	done := make(chan struct{})
	go func() {
		readEvents(ctx, conn, false, events, readErr, slog.Default())
		close(done)
	}()

	// キューが埋まるまで待ってから終了させる
	deadline := time.After(2 * time.Second)
	for len(events) < cap(events) {
		select {
		case <-deadline:
			t.Fatal("queue never filled")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("reader goroutine did not return after session end")
	}
}
