package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/coder/websocket"

	"engulf/server/protocol"
	"engulf/utils"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := utils.GetEnvDefault("ADDR", "localhost")
	port := utils.GetEnvDefault("PORT", "9090")
	botCount := utils.GetEnvInt("BOT_COUNT", 3)
	arena := float64(utils.GetEnvInt("BOT_ARENA", 1000))

	serverURL := fmt.Sprintf("ws://%s/ws", net.JoinHostPort(addr, port))
	slog.Info("starting bots", "count", botCount, "server", serverURL)

	var wg sync.WaitGroup
	for i := range botCount {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			runBot(ctx, serverURL, id, arena)
		}(i)
	}

	wg.Wait()
	slog.Info("all bots stopped")
}

func runBot(ctx context.Context, serverURL string, id int, arena float64) {
	logger := slog.With("botID", id)

	for {
		if ctx.Err() != nil {
			return
		}
		err := botSession(ctx, serverURL, logger, arena)
		if err != nil && ctx.Err() == nil {
			logger.Warn("bot session ended, reconnecting", "err", err)
			select {
			case <-ctx.Done():
			case <-time.After(2 * time.Second):
			}
		}
	}
}

type inbound struct {
	event string
	data  any
}

func botSession(parent context.Context, serverURL string, logger *slog.Logger, arena float64) error {
	// 受信ゴルーチンはセッション終了時に必ず抜ける
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, serverURL, &websocket.DialOptions{
		Subprotocols: []string{protocol.SubprotocolMsgpack},
	})
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.CloseNow()

	codec := protocol.CodecFor(conn.Subprotocol())
	messageType := websocket.MessageText
	if codec.Binary() {
		messageType = websocket.MessageBinary
	}
	send := func(event string, data any) error {
		frame, err := codec.Encode(protocol.Outbound{Event: event, Data: data})
		if err != nil {
			return err
		}
		return conn.Write(ctx, messageType, frame)
	}

	logger.Info("connected", "codec", codec.Name())
	b := newBrain(arena, rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())))

	join := func() error {
		p := b.spawnPoint()
		return send(protocol.EventNewPlayer, protocol.NewPlayerRequest{X: p.X, Y: p.Y, Angle: 0})
	}
	if err := join(); err != nil {
		return fmt.Errorf("join: %w", err)
	}

	// 受信ループ
	events := make(chan inbound, 256)
	readErr := make(chan error, 1)
	go readEvents(ctx, conn, codec.Binary(), events, readErr, logger)

	// 判断・送信ループ (60FPS相当)
	ticker := time.NewTicker(time.Second / 60)
	defer ticker.Stop()

	for {
		select {
		case <-parent.Done():
			conn.Close(websocket.StatusNormalClosure, "shutdown")
			return nil
		case err := <-readErr:
			return fmt.Errorf("read: %w", err)
		case ev := <-events:
			if b.observe(ev.event, ev.data) {
				logger.Info("absorbed, rejoining")
				if err := join(); err != nil {
					return fmt.Errorf("rejoin: %w", err)
				}
			}
		case <-ticker.C:
			target, contacts, ok := b.decide()
			if !ok {
				continue
			}
			for _, id := range contacts {
				if err := send(protocol.EventPlayerCollision, protocol.PlayerCollision{ID: id}); err != nil {
					return fmt.Errorf("write: %w", err)
				}
			}
			if err := send(protocol.EventPlayerInput, protocol.PlayerInput{
				PointerWorldX: target.X,
				PointerWorldY: target.Y,
			}); err != nil {
				return fmt.Errorf("write: %w", err)
			}
		}
	}
}

// readEvents は ctx が終了するか読み込みに失敗するまでイベントを events に流します。
func readEvents(ctx context.Context, conn *websocket.Conn, binary bool, events chan<- inbound, readErr chan<- error, logger *slog.Logger) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			select {
			case readErr <- err:
			default:
			}
			return
		}
		ev, err := decodeServerEvent(binary, data)
		if err != nil {
			logger.Debug("skip frame", "err", err)
			continue
		}
		select {
		case events <- ev:
		case <-ctx.Done():
			return
		}
	}
}
