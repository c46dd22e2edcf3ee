package main

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/spatial/r2"

	"engulf/server/physics"
	"engulf/server/protocol"
)

const (
	chaseRadius = 400.0
	fleeRadius  = 200.0
	fleeReach   = 300.0
)

// brain はサーバーから届いた状態をもとに次の目標地点と接触申告を決めます。
type brain struct {
	self    string
	players map[string]protocol.PlayerState
	// 申告済みの相手。remove_player を受け取るまで再申告しない
	reported map[string]struct{}

	arena     float64
	wander    r2.Vec
	hasWander bool
	rng       *rand.Rand
}

func newBrain(arena float64, rng *rand.Rand) *brain {
	return &brain{
		players:  make(map[string]protocol.PlayerState),
		reported: make(map[string]struct{}),
		arena:    arena,
		rng:      rng,
	}
}

// observe はサーバーからのイベントを反映します。自分が取り除かれた場合は true を返します。
func (b *brain) observe(event string, data any) (removedSelf bool) {
	switch event {
	case protocol.EventSession:
		if s, ok := data.(protocol.Session); ok {
			b.self = s.ID
		}
	case protocol.EventNewPlayer, protocol.EventMovePlayer:
		if p, ok := data.(protocol.PlayerState); ok {
			b.players[p.ID] = p
		}
	case protocol.EventRemovePlayer:
		if r, ok := data.(protocol.RemovePlayer); ok {
			delete(b.players, r.ID)
			delete(b.reported, r.ID)
			if r.ID == b.self {
				b.hasWander = false
				return true
			}
		}
	}
	return false
}

func (b *brain) me() (protocol.PlayerState, bool) {
	if b.self == "" {
		return protocol.PlayerState{}, false
	}
	p, ok := b.players[b.self]
	return p, ok
}

// spawnPoint は参加位置を決めます。
func (b *brain) spawnPoint() r2.Vec {
	return b.randomPoint()
}

// decide は目標地点と新たに接触した相手を返します。自分がまだいなければ ok=false です。
func (b *brain) decide() (target r2.Vec, contacts []string, ok bool) {
	me, ok := b.me()
	if !ok {
		return r2.Vec{}, nil, false
	}
	pos := r2.Vec{X: me.X, Y: me.Y}

	var prey, threat *protocol.PlayerState
	preyDist, threatDist := chaseRadius, fleeRadius
	for id, p := range b.players {
		if id == b.self {
			continue
		}
		other := p
		d := r2.Norm(r2.Sub(r2.Vec{X: p.X, Y: p.Y}, pos))
		if d < (me.Size+p.Size)/2 {
			if _, done := b.reported[id]; !done {
				b.reported[id] = struct{}{}
				contacts = append(contacts, id)
			}
		}
		switch {
		case p.Size < me.Size && d < preyDist:
			prey, preyDist = &other, d
		case p.Size > me.Size && d < threatDist:
			threat, threatDist = &other, d
		}
	}

	switch {
	case threat != nil:
		away := r2.Sub(pos, r2.Vec{X: threat.X, Y: threat.Y})
		if n := r2.Norm(away); n > 0 {
			target = r2.Add(pos, r2.Scale(fleeReach/n, away))
		} else {
			target = b.randomPoint()
		}
	case prey != nil:
		target = r2.Vec{X: prey.X, Y: prey.Y}
	default:
		if !b.hasWander || r2.Norm(r2.Sub(b.wander, pos)) < physics.ArrivalThreshold {
			b.wander = b.randomPoint()
			b.hasWander = true
		}
		target = b.wander
	}
	return target, contacts, true
}

func (b *brain) randomPoint() r2.Vec {
	return r2.Vec{
		X: (b.rng.Float64()*2 - 1) * b.arena,
		Y: (b.rng.Float64()*2 - 1) * b.arena,
	}
}
