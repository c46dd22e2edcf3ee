package application

import (
	"engulf/server/domain"
	"engulf/server/physics"
	"engulf/server/protocol"
)

const (
	// PlayerSpeed はプレイヤーの最大速度(units/s)です。
	PlayerSpeed = 500.0
	// MinSize, MaxSize は参加時に割り当てるサイズの範囲(両端を含む)です。
	MinSize = 40
	MaxSize = 100
)

// Player は1セッションが操作するプレイヤーです。位置はワールドのボディが持ちます。
type Player struct {
	ID      domain.SessionID
	Heading float64 // 度数法。最後に非ゼロだった速度の向き
	Size    float64
	Speed   float64

	alive      bool
	body       *physics.Body
	controller physics.Controller
	gate       Gate
}

func newPlayer(id domain.SessionID, body *physics.Body, heading, size, speed float64) *Player {
	return &Player{
		ID:      id,
		Heading: heading,
		Size:    size,
		Speed:   speed,
		alive:   true,
		body:    body,
	}
}

func (p *Player) Alive() bool { return p.alive }

func (p *Player) Position() physics.Vec { return p.body.Position }

func (p *Player) Velocity() physics.Vec { return p.body.Velocity }

// Target は最後に指令された目標地点を返します。
func (p *Player) Target() (physics.Vec, bool) { return p.controller.Target() }

// kill は吸収されたプレイヤーを停止させます。削除は次の tick で行われます。
func (p *Player) kill() {
	p.alive = false
	p.body.Velocity = physics.Vec{}
}

// steer は制御則で速度と向きを更新します。
func (p *Player) steer() {
	v, heading := p.controller.Update(p.body.Position, p.Heading, p.Speed)
	p.body.Velocity = v
	p.Heading = heading
}

func (p *Player) State() protocol.PlayerState {
	pos := p.body.Position
	return protocol.PlayerState{
		ID:    p.ID.String(),
		X:     pos.X,
		Y:     pos.Y,
		Angle: p.Heading,
		Size:  p.Size,
	}
}
