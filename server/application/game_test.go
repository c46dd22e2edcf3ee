package application

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"go.uber.org/mock/gomock"
	"gonum.org/v1/gonum/spatial/r2"

	"engulf/server/domain"
	"engulf/server/domain/mocks"
	"engulf/server/physics"
	"engulf/server/protocol"
	"engulf/utils"
)

func TestNewGame_RejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"inverted size range", func(c *Config) { c.SizeMin, c.SizeMax = 100, 40 }},
		{"zero size", func(c *Config) { c.SizeMin = 0 }},
		{"zero speed", func(c *Config) { c.Speed = 0 }},
		{"zero step", func(c *Config) { c.StepInterval = 0 }},
		{"negative broadcast interval", func(c *Config) { c.BroadcastInterval = -time.Millisecond }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if _, err := NewGame(cfg); !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("err = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

// 2人目の参加者には既存プレイヤーの一覧が先に届き、その後全員へ通知される
func TestGame_JoinSendsRosterThenBroadcasts(t *testing.T) {
	ctrl := gomock.NewController(t)
	ctx := context.Background()
	g := newTestGame(t, newFakeClock())

	first := &recordingSender{}
	a := joinPlayer(t, g, first, "a", 10, 20)
	if got := first.events(protocol.EventNewPlayer); len(got) != 1 || got[0].kind != sentAll {
		t.Fatalf("first join sent %+v, want a single broadcast", first.sent)
	}
	if a.Size < MinSize || a.Size > MaxSize || a.Size != math.Trunc(a.Size) {
		t.Fatalf("size = %v, want integer in [%d, %d]", a.Size, MinSize, MaxSize)
	}

	out := mocks.NewMockSender(ctrl)
	gomock.InOrder(
		out.EXPECT().SendTo(gomock.Any(), domain.SessionID("b"), gomock.Any()).Do(
			func(_ context.Context, _ domain.SessionID, o protocol.Outbound) {
				state, ok := o.Data.(protocol.PlayerState)
				if o.Event != protocol.EventNewPlayer || !ok || state.ID != "a" || state.X != 10 || state.Y != 20 || state.Size != a.Size {
					t.Errorf("roster entry = %+v", o)
				}
			}),
		out.EXPECT().Broadcast(gomock.Any(), gomock.Any()).Do(
			func(_ context.Context, o protocol.Outbound) {
				state, ok := o.Data.(protocol.PlayerState)
				if o.Event != protocol.EventNewPlayer || !ok || state.ID != "b" || state.Angle != 45 {
					t.Errorf("announcement = %+v", o)
				}
			}),
	)
	if err := g.HandleMessage(ctx, out, dataMsg("b", protocol.NewPlayerRequest{X: 1, Y: 2, Angle: 45})); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if ids := g.Registry().IDs(); len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Fatalf("registry order = %v", ids)
	}
	assertCoLifecycle(t, g)
}

func TestGame_ConnectDoesNotChangeState(t *testing.T) {
	ctrl := gomock.NewController(t)
	out := mocks.NewMockSender(ctrl)
	g := newTestGame(t, newFakeClock())

	if err := g.HandleMessage(context.Background(), out, domain.Message{SessionID: "a", Kind: domain.MessageJoin}); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if g.Registry().Len() != 0 {
		t.Fatalf("connect created a player")
	}
}

func TestGame_InputSteersTowardTarget(t *testing.T) {
	clock := newFakeClock()
	g := newTestGame(t, clock)
	out := &recordingSender{}
	p := joinPlayer(t, g, out, "a", 0, 0)

	ctx := context.Background()
	if err := g.HandleMessage(ctx, out, dataMsg("a", protocol.PlayerInput{PointerX: 5, PointerY: 5, PointerWorldX: 100, PointerWorldY: 100})); err != nil {
		t.Fatalf("input: %v", err)
	}
	out.reset()

	g.Tick(ctx, out)
	clock.Advance(time.Second / 60)
	g.Tick(ctx, out)
	if pos := p.Position(); pos.X <= 0 || pos.Y <= 0 {
		t.Fatalf("player did not move toward target: %+v", pos)
	}
	if math.Abs(p.Heading-45) > 1e-9 {
		t.Fatalf("heading = %v, want 45", p.Heading)
	}
	if speed := r2.Norm(p.Velocity()); speed > PlayerSpeed+1e-9 {
		t.Fatalf("speed %v exceeds %v", speed, PlayerSpeed)
	}

	for i := 0; i < 600; i++ {
		clock.Advance(time.Second / 60)
		g.Tick(ctx, out)
	}
	if d := r2.Norm(r2.Sub(r2.Vec{X: 100, Y: 100}, p.Position())); d >= physics.ArrivalThreshold {
		t.Fatalf("player at %+v, %v from target", p.Position(), d)
	}
	if !physics.IsZero(p.Velocity()) {
		t.Fatalf("velocity after arrival = %+v, want zero", p.Velocity())
	}
	moves := out.events(protocol.EventMovePlayer)
	if len(moves) == 0 {
		t.Fatal("no move_player broadcast")
	}
	last := moves[len(moves)-1].out.Data.(protocol.PlayerState)
	if last.ID != "a" {
		t.Fatalf("move_player for %q", last.ID)
	}
}

func TestGame_InputIgnoredForMissingOrNonFinite(t *testing.T) {
	g := newTestGame(t, newFakeClock())
	out := &recordingSender{}
	ctx := context.Background()

	// 未参加
	if err := g.HandleMessage(ctx, out, dataMsg("ghost", protocol.PlayerInput{PointerWorldX: 1})); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}

	p := joinPlayer(t, g, out, "a", 0, 0)
	if err := g.HandleMessage(ctx, out, dataMsg("a", protocol.PlayerInput{PointerWorldX: math.NaN(), PointerWorldY: 1})); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if _, ok := p.Target(); ok {
		t.Fatal("non-finite target accepted")
	}
	if err := g.HandleMessage(ctx, out, dataMsg("a", protocol.PlayerInput{PointerWorldX: 1e308})); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if _, ok := p.Target(); ok {
		t.Fatal("out-of-range target accepted")
	}
}

// 範囲外の座標を送られても状態は有限のままで、全員へ配信できる
func TestGame_OutOfRangeInputKeepsStateEncodable(t *testing.T) {
	clock := newFakeClock()
	g := newTestGame(t, clock)
	out := &recordingSender{}
	ctx := context.Background()

	a := joinPlayer(t, g, out, "a", 0, 0)
	b := joinPlayer(t, g, out, "b", 50, 50)

	for _, in := range []protocol.PlayerInput{
		{PointerWorldX: 1e308},
		{PointerWorldX: -math.MaxFloat64, PointerWorldY: math.MaxFloat64},
		{PointerWorldX: physics.MaxCoordinate, PointerWorldY: -physics.MaxCoordinate},
	} {
		if err := g.HandleMessage(ctx, out, dataMsg("a", in)); err != nil {
			t.Fatalf("HandleMessage: %v", err)
		}
	}
	if target, ok := a.Target(); !ok || target.X != physics.MaxCoordinate {
		t.Fatalf("in-range target not applied: %+v, %v", target, ok)
	}

	out.reset()
	for i := 0; i < 10; i++ {
		clock.Advance(time.Second / 60)
		g.Tick(ctx, out)
	}
	for _, p := range []*Player{a, b} {
		if !utils.FiniteVec(p.Position()) || !utils.FiniteVec(p.Velocity()) {
			t.Fatalf("%s state = %+v / %+v", p.ID, p.Position(), p.Velocity())
		}
	}
	if a.Position().X <= 0 {
		t.Fatalf("player did not move toward in-range target: %+v", a.Position())
	}
	moves := out.events(protocol.EventMovePlayer)
	if len(moves) == 0 {
		t.Fatal("no move_player broadcast")
	}
	for _, m := range moves {
		for _, codec := range []protocol.Codec{protocol.JSONCodec{}, protocol.MsgpackCodec{}} {
			if _, err := codec.Encode(m.out); err != nil {
				t.Fatalf("%s encode of %+v: %v", codec.Name(), m.out, err)
			}
		}
	}

	// 範囲外の参加位置も拒否される
	if err := g.HandleMessage(ctx, out, dataMsg("c", protocol.NewPlayerRequest{X: 1e308})); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if _, ok := g.Registry().Find("c"); ok {
		t.Fatal("out-of-range spawn accepted")
	}
}

// 大きい方が小さい方を吸収し、敗者は次の tick で消える
func TestGame_CollisionAbsorbsSmaller(t *testing.T) {
	clock := newFakeClock()
	g := newTestGame(t, clock)
	out := &recordingSender{}
	ctx := context.Background()

	a := joinPlayer(t, g, out, "a", 0, 0)
	b := joinPlayer(t, g, out, "b", 10, 0)
	a.Size, b.Size = 80, 50
	out.reset()

	if err := g.HandleMessage(ctx, out, dataMsg("b", protocol.PlayerCollision{ID: "a"})); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if a.Size != 105 {
		t.Fatalf("winner size = %v, want 105", a.Size)
	}
	if b.Alive() {
		t.Fatal("loser still alive")
	}
	removes := out.events(protocol.EventRemovePlayer)
	if len(removes) != 1 || removes[0].kind != sentAll || removes[0].out.Data.(protocol.RemovePlayer).ID != "b" {
		t.Fatalf("remove_player = %+v", removes)
	}

	// 同じ tick 内の再申告は無視される
	if err := g.HandleMessage(ctx, out, dataMsg("a", protocol.PlayerCollision{ID: "b"})); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if a.Size != 105 || len(out.events(protocol.EventRemovePlayer)) != 1 {
		t.Fatal("dead player was resolved twice")
	}

	out.reset()
	g.Tick(ctx, out)
	if _, ok := g.Registry().Find("b"); ok {
		t.Fatal("dead player not purged")
	}
	assertCoLifecycle(t, g)
	for _, m := range out.events(protocol.EventMovePlayer) {
		if m.out.Data.(protocol.PlayerState).ID == "b" {
			t.Fatal("move_player sent for dead player")
		}
	}
}

func TestGame_CollisionNoEffect(t *testing.T) {
	g := newTestGame(t, newFakeClock())
	out := &recordingSender{}
	ctx := context.Background()

	a := joinPlayer(t, g, out, "a", 0, 0)
	b := joinPlayer(t, g, out, "b", 0, 0)
	a.Size, b.Size = 60, 60
	out.reset()

	for _, msg := range []domain.Message{
		dataMsg("a", protocol.PlayerCollision{ID: "b"}),     // 同サイズ
		dataMsg("a", protocol.PlayerCollision{ID: "a"}),     // 自分自身
		dataMsg("a", protocol.PlayerCollision{ID: "ghost"}), // 不明
		dataMsg("ghost", protocol.PlayerCollision{ID: "a"}),
	} {
		if err := g.HandleMessage(ctx, out, msg); err != nil {
			t.Fatalf("HandleMessage: %v", err)
		}
	}
	if len(out.sent) != 0 {
		t.Fatalf("unexpected sends: %+v", out.sent)
	}
	if a.Size != 60 || b.Size != 60 || !a.Alive() || !b.Alive() {
		t.Fatal("state changed")
	}
}

func TestGame_DisconnectNotifiesOthers(t *testing.T) {
	g := newTestGame(t, newFakeClock())
	out := &recordingSender{}
	ctx := context.Background()

	joinPlayer(t, g, out, "a", 0, 0)
	joinPlayer(t, g, out, "b", 0, 0)
	out.reset()

	if err := g.HandleMessage(ctx, out, domain.Message{SessionID: "a", Kind: domain.MessageLeave}); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if _, ok := g.Registry().Find("a"); ok {
		t.Fatal("player still registered")
	}
	assertCoLifecycle(t, g)
	if len(out.sent) != 1 {
		t.Fatalf("sent %+v", out.sent)
	}
	m := out.sent[0]
	if m.kind != sentExcept || m.id != "a" || m.out.Event != protocol.EventRemovePlayer || m.out.Data.(protocol.RemovePlayer).ID != "a" {
		t.Fatalf("sent %+v", m)
	}
}

func TestGame_RejoinAfterAbsorbed(t *testing.T) {
	g := newTestGame(t, newFakeClock())
	out := &recordingSender{}
	ctx := context.Background()

	a := joinPlayer(t, g, out, "a", 0, 0)
	b := joinPlayer(t, g, out, "b", 0, 0)
	a.Size, b.Size = 90, 45
	if err := g.HandleMessage(ctx, out, dataMsg("a", protocol.PlayerCollision{ID: "b"})); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}

	// purge 前の再参加
	again := joinPlayer(t, g, out, "b", 5, 5)
	if again == b || !again.Alive() {
		t.Fatal("rejoin did not create a fresh player")
	}
	if ids := g.Registry().IDs(); len(ids) != 2 || ids[1] != "b" {
		t.Fatalf("registry = %v", ids)
	}
	assertCoLifecycle(t, g)
}

func TestGame_DuplicateLiveJoinDropped(t *testing.T) {
	g := newTestGame(t, newFakeClock())
	out := &recordingSender{}

	p := joinPlayer(t, g, out, "a", 0, 0)
	out.reset()
	if err := g.HandleMessage(context.Background(), out, dataMsg("a", protocol.NewPlayerRequest{X: 9, Y: 9})); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if len(out.sent) != 0 {
		t.Fatalf("duplicate join sent %+v", out.sent)
	}
	if got, _ := g.Registry().Find("a"); got != p || p.Position().X != 0 {
		t.Fatal("duplicate join replaced the player")
	}
}

func TestGame_UnexpectedEvent(t *testing.T) {
	g := newTestGame(t, newFakeClock())
	err := g.HandleMessage(context.Background(), &recordingSender{}, dataMsg("a", "bogus"))
	if !errors.Is(err, ErrUnexpectedEvent) {
		t.Fatalf("err = %v, want ErrUnexpectedEvent", err)
	}
}

// move_player は同一プレイヤーについて 50ms 以上の間隔で送られる
func TestGame_BroadcastThrottle(t *testing.T) {
	clock := newFakeClock()
	g := newTestGame(t, clock)
	out := &recordingSender{}
	ctx := context.Background()
	joinPlayer(t, g, out, "a", 0, 0)
	joinPlayer(t, g, out, "b", 0, 0)
	out.reset()

	last := map[string]time.Time{}
	count := map[string]int{}
	for i := 0; i < 300; i++ {
		before := len(out.sent)
		g.Tick(ctx, out)
		for _, m := range out.sent[before:] {
			id := m.out.Data.(protocol.PlayerState).ID
			if prev, ok := last[id]; ok && clock.Now().Sub(prev) < 50*time.Millisecond {
				t.Fatalf("%s broadcast after %v", id, clock.Now().Sub(prev))
			}
			last[id] = clock.Now()
			count[id]++
		}
		clock.Advance(7 * time.Millisecond)
	}
	// 2100ms / 56ms 間隔
	for _, id := range []string{"a", "b"} {
		if count[id] < 30 {
			t.Fatalf("%s broadcast only %d times", id, count[id])
		}
	}
}

func TestGame_LastDeltaClamped(t *testing.T) {
	clock := newFakeClock()
	g := newTestGame(t, clock)
	ctx := context.Background()
	out := &recordingSender{}

	g.Tick(ctx, out)
	if g.LastDelta() != 0 {
		t.Fatalf("first delta = %v", g.LastDelta())
	}
	clock.Advance(20 * time.Millisecond)
	g.Tick(ctx, out)
	if math.Abs(g.LastDelta()-0.02) > 1e-9 {
		t.Fatalf("delta = %v, want 0.02", g.LastDelta())
	}
	clock.Advance(5 * time.Second)
	g.Tick(ctx, out)
	if g.LastDelta() != 0.1 {
		t.Fatalf("delta = %v, want 0.1", g.LastDelta())
	}
	clock.Advance(-time.Second)
	g.Tick(ctx, out)
	if g.LastDelta() != 0 {
		t.Fatalf("delta = %v, want 0", g.LastDelta())
	}
}
