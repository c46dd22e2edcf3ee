package application

import (
	"errors"
	"slices"

	"engulf/server/domain"
)

var ErrDuplicatePlayer = errors.New("registry: player already exists")

// Registry はセッションIDからプレイヤーへの対応を挿入順に保持します。
// room のゴルーチンからのみ操作されるため同期は行いません。
type Registry struct {
	order   []domain.SessionID
	players map[domain.SessionID]*Player
}

func NewRegistry() *Registry {
	return &Registry{players: make(map[domain.SessionID]*Player)}
}

func (r *Registry) Add(p *Player) error {
	if _, ok := r.players[p.ID]; ok {
		return ErrDuplicatePlayer
	}
	r.players[p.ID] = p
	r.order = append(r.order, p.ID)
	return nil
}

func (r *Registry) Remove(id domain.SessionID) bool {
	if _, ok := r.players[id]; !ok {
		return false
	}
	delete(r.players, id)
	if i := slices.Index(r.order, id); i >= 0 {
		r.order = slices.Delete(r.order, i, i+1)
	}
	return true
}

func (r *Registry) Find(id domain.SessionID) (*Player, bool) {
	p, ok := r.players[id]
	return p, ok
}

// ForEach は挿入順にプレイヤーを巡回します。巡回中に Add/Remove しないこと。
func (r *Registry) ForEach(visit func(p *Player)) {
	for _, id := range r.order {
		visit(r.players[id])
	}
}

func (r *Registry) Len() int { return len(r.order) }

func (r *Registry) IDs() []domain.SessionID {
	return slices.Clone(r.order)
}
