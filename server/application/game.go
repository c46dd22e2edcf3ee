package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/spatial/r2"

	"engulf/server/domain"
	"engulf/server/physics"
	"engulf/server/protocol"
	"engulf/utils"
)

var (
	// ErrUnexpectedEvent は room から未知のイベントを受け取った場合に返されるエラーです。
	ErrUnexpectedEvent = errors.New("game: unexpected event")
	// ErrInvalidConfig は設定値が不正な場合に返されるエラーです。
	ErrInvalidConfig = errors.New("game: invalid config")
)

// Config はゲームの調整値です。
type Config struct {
	// BroadcastInterval はプレイヤーごとの move_player の最小送信間隔です。
	BroadcastInterval time.Duration
	// MaxDelta は記録する tick 間隔の上限(秒)です。
	MaxDelta float64
	// StepInterval は1 tick あたりに進めるシミュレーション時間(秒)です。
	StepInterval float64
	SizeMin      int
	SizeMax      int
	Speed        float64

	// Clock と Rand はテストで差し替えます。nil の場合は time.Now と既定の乱数を使います。
	Clock func() time.Time
	Rand  *rand.Rand
}

func DefaultConfig() Config {
	return Config{
		BroadcastInterval: 50 * time.Millisecond,
		MaxDelta:          physics.MaxStep,
		StepInterval:      physics.StepInterval,
		SizeMin:           MinSize,
		SizeMax:           MaxSize,
		Speed:             PlayerSpeed,
	}
}

func (c Config) Validate() error {
	switch {
	case c.BroadcastInterval < 0:
		return fmt.Errorf("%w: negative broadcast interval", ErrInvalidConfig)
	case c.MaxDelta <= 0 || c.StepInterval <= 0:
		return fmt.Errorf("%w: non-positive step", ErrInvalidConfig)
	case c.SizeMin <= 0 || c.SizeMax < c.SizeMin:
		return fmt.Errorf("%w: size range [%d, %d]", ErrInvalidConfig, c.SizeMin, c.SizeMax)
	case c.Speed <= 0:
		return fmt.Errorf("%w: non-positive speed", ErrInvalidConfig)
	}
	return nil
}

// Game は吸収ゲームのルールを実装した domain.Application です。
// Registry と World は room のゴルーチンからのみ触られます。
type Game struct {
	cfg      Config
	registry *Registry
	world    *physics.World[domain.SessionID]

	lastTick  time.Time
	lastDelta float64
}

var _ domain.Application = (*Game)(nil)

func NewGame(cfg Config) (*Game, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Game{
		cfg:      cfg,
		registry: NewRegistry(),
		world:    physics.NewWorld[domain.SessionID](),
	}, nil
}

// LastDelta は直前の tick で記録した経過時間(秒)です。
func (g *Game) LastDelta() float64 { return g.lastDelta }

func (g *Game) Registry() *Registry { return g.registry }

func (g *Game) HandleMessage(ctx context.Context, out domain.Sender, msg domain.Message) error {
	switch msg.Kind {
	case domain.MessageJoin:
		// 接続時点ではゲーム状態を変えない。配信先は room が管理する
		slog.DebugContext(ctx, "game: session connected", "sessionID", msg.SessionID)
		return nil
	case domain.MessageLeave:
		g.handleDisconnect(ctx, out, msg.SessionID)
		return nil
	}

	switch ev := msg.Event.(type) {
	case protocol.NewPlayerRequest:
		return g.handleNewPlayer(ctx, out, msg.SessionID, ev)
	case protocol.PlayerInput:
		g.handleInput(ctx, msg.SessionID, ev)
		return nil
	case protocol.PlayerCollision:
		g.handleCollision(ctx, out, msg.SessionID, ev)
		return nil
	default:
		return fmt.Errorf("%w: %T", ErrUnexpectedEvent, msg.Event)
	}
}

func (g *Game) handleNewPlayer(ctx context.Context, out domain.Sender, id domain.SessionID, req protocol.NewPlayerRequest) error {
	pos := r2.Vec{X: req.X, Y: req.Y}
	if !physics.InBounds(pos) || !utils.IsFinite(req.Angle) {
		slog.WarnContext(ctx, "game: out-of-range new_player dropped", "sessionID", id)
		return nil
	}
	if existing, ok := g.registry.Find(id); ok {
		if existing.Alive() {
			slog.ErrorContext(ctx, "game: duplicate player id", "sessionID", id, "err", ErrDuplicatePlayer)
			return nil
		}
		// 吸収された直後の再参加。purge 前でも先に片付ける
		g.despawn(id)
	}

	roster := make([]protocol.PlayerState, 0, g.registry.Len())
	g.registry.ForEach(func(p *Player) {
		if p.Alive() {
			roster = append(roster, p.State())
		}
	})

	p, err := g.spawn(id, pos, req.Angle)
	if err != nil {
		return fmt.Errorf("game: spawn %s: %w", id, err)
	}

	for _, state := range roster {
		out.SendTo(ctx, id, protocol.Outbound{Event: protocol.EventNewPlayer, Data: state})
	}
	out.Broadcast(ctx, protocol.Outbound{Event: protocol.EventNewPlayer, Data: p.State()})
	slog.InfoContext(ctx, "game: player joined", "sessionID", id, "size", p.Size, "players", g.registry.Len())
	return nil
}

func (g *Game) handleInput(ctx context.Context, id domain.SessionID, in protocol.PlayerInput) {
	p, ok := g.registry.Find(id)
	if !ok || !p.Alive() {
		slog.DebugContext(ctx, "game: input for missing player ignored", "sessionID", id)
		return
	}
	target := r2.Vec{X: in.PointerWorldX, Y: in.PointerWorldY}
	if !physics.InBounds(target) {
		slog.WarnContext(ctx, "game: out-of-range input dropped", "sessionID", id)
		return
	}
	p.controller.SetTarget(target)
}

func (g *Game) handleCollision(ctx context.Context, out domain.Sender, id domain.SessionID, c protocol.PlayerCollision) {
	otherID := domain.SessionID(c.ID)
	if otherID == id {
		slog.DebugContext(ctx, "game: self collision ignored", "sessionID", id)
		return
	}
	self, ok1 := g.registry.Find(id)
	other, ok2 := g.registry.Find(otherID)
	if !ok1 || !ok2 || !self.Alive() || !other.Alive() {
		slog.DebugContext(ctx, "game: stale collision ignored", "sessionID", id, "other", otherID)
		return
	}
	res, ok := Resolve(self, other)
	if !ok {
		return
	}
	out.Broadcast(ctx, protocol.Outbound{
		Event: protocol.EventRemovePlayer,
		Data:  protocol.RemovePlayer{ID: res.Loser.ID.String()},
	})
	slog.InfoContext(ctx, "game: player absorbed",
		"winner", res.Winner.ID,
		"loser", res.Loser.ID,
		"gained", res.Gained,
		"size", res.Winner.Size,
	)
}

func (g *Game) handleDisconnect(ctx context.Context, out domain.Sender, id domain.SessionID) {
	if g.despawn(id) {
		slog.InfoContext(ctx, "game: player left", "sessionID", id, "players", g.registry.Len())
	}
	// プレイヤーがいなくても通知する。クライアント側で冪等に扱われる
	out.BroadcastExcept(ctx, id, protocol.Outbound{
		Event: protocol.EventRemovePlayer,
		Data:  protocol.RemovePlayer{ID: id.String()},
	})
}

// Tick は1フレーム分ゲームを進めます。
func (g *Game) Tick(ctx context.Context, out domain.Sender) {
	now := g.cfg.Clock()

	// 0. 吸収されたプレイヤーを巡回の外で削除
	var dead []domain.SessionID
	g.registry.ForEach(func(p *Player) {
		if !p.Alive() {
			dead = append(dead, p.ID)
		}
	})
	for _, id := range dead {
		g.despawn(id)
	}

	// 1. 経過時間。ワールドは固定ステップで進める
	if !g.lastTick.IsZero() {
		g.lastDelta = min(max(now.Sub(g.lastTick).Seconds(), 0), g.cfg.MaxDelta)
	}
	g.lastTick = now

	// 2. 制御
	g.registry.ForEach(func(p *Player) {
		if p.Alive() {
			p.steer()
		}
	})

	// 3. 送信間隔を満たしたプレイヤーの位置を配信
	g.registry.ForEach(func(p *Player) {
		if p.Alive() && p.gate.Allow(now, g.cfg.BroadcastInterval) {
			out.Broadcast(ctx, protocol.Outbound{Event: protocol.EventMovePlayer, Data: p.State()})
		}
	})

	// 4. 積分
	g.world.Step(g.cfg.StepInterval)
}

func (g *Game) spawn(id domain.SessionID, pos physics.Vec, heading float64) (*Player, error) {
	body, err := g.world.AddBody(id, pos)
	if err != nil {
		return nil, err
	}
	p := newPlayer(id, body, heading, g.randomSize(), g.cfg.Speed)
	if err := g.registry.Add(p); err != nil {
		g.world.RemoveBody(id)
		return nil, err
	}
	return p, nil
}

// despawn はレジストリとワールドから同時に削除します。
func (g *Game) despawn(id domain.SessionID) bool {
	removed := g.registry.Remove(id)
	g.world.RemoveBody(id)
	return removed
}

func (g *Game) randomSize() float64 {
	n := g.cfg.SizeMax - g.cfg.SizeMin + 1
	if g.cfg.Rand != nil {
		return float64(g.cfg.SizeMin + g.cfg.Rand.IntN(n))
	}
	return float64(g.cfg.SizeMin + rand.IntN(n))
}
