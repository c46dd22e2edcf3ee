package application

import (
	"context"
	"math/rand/v2"
	"testing"
	"time"

	"engulf/server/domain"
	"engulf/server/protocol"
)

type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type sendKind int

const (
	sentTo sendKind = iota
	sentAll
	sentExcept
)

type sent struct {
	kind sendKind
	id   domain.SessionID // SendTo の宛先、BroadcastExcept の除外先
	out  protocol.Outbound
}

// recordingSender は送信を記録するだけの domain.Sender です。
type recordingSender struct {
	sent []sent
}

func (s *recordingSender) Broadcast(ctx context.Context, out protocol.Outbound) {
	s.sent = append(s.sent, sent{kind: sentAll, out: out})
}

func (s *recordingSender) BroadcastExcept(ctx context.Context, except domain.SessionID, out protocol.Outbound) {
	s.sent = append(s.sent, sent{kind: sentExcept, id: except, out: out})
}

func (s *recordingSender) SendTo(ctx context.Context, id domain.SessionID, out protocol.Outbound) {
	s.sent = append(s.sent, sent{kind: sentTo, id: id, out: out})
}

func (s *recordingSender) reset() { s.sent = nil }

func (s *recordingSender) events(event string) []sent {
	var out []sent
	for _, m := range s.sent {
		if m.out.Event == event {
			out = append(out, m)
		}
	}
	return out
}

func newTestGame(t *testing.T, clock *fakeClock) *Game {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Clock = clock.Now
	cfg.Rand = rand.New(rand.NewPCG(1, 2))
	g, err := NewGame(cfg)
	if err != nil {
		t.Fatalf("NewGame: %v", err)
	}
	return g
}

func dataMsg(id domain.SessionID, ev any) domain.Message {
	return domain.Message{SessionID: id, Kind: domain.MessageData, Event: ev}
}

func joinPlayer(t *testing.T, g *Game, out domain.Sender, id domain.SessionID, x, y float64) *Player {
	t.Helper()
	ctx := context.Background()
	if err := g.HandleMessage(ctx, out, domain.Message{SessionID: id, Kind: domain.MessageJoin}); err != nil {
		t.Fatalf("join %s: %v", id, err)
	}
	if err := g.HandleMessage(ctx, out, dataMsg(id, protocol.NewPlayerRequest{X: x, Y: y})); err != nil {
		t.Fatalf("new_player %s: %v", id, err)
	}
	p, ok := g.Registry().Find(id)
	if !ok {
		t.Fatalf("player %s not registered", id)
	}
	return p
}

// fataler は *testing.T と *rapid.T の共通部分です。
type fataler interface {
	Helper()
	Fatalf(format string, args ...any)
}

// assertCoLifecycle はレジストリとワールドが同じIDを持つことを確認します。
func assertCoLifecycle(t fataler, g *Game) {
	t.Helper()
	ids := g.registry.IDs()
	if len(ids) != g.world.Len() {
		t.Fatalf("registry has %d players, world has %d bodies", len(ids), g.world.Len())
	}
	for _, id := range ids {
		if _, ok := g.world.Body(id); !ok {
			t.Fatalf("player %s has no body", id)
		}
	}
}
