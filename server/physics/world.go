package physics

import (
	"errors"

	"engulf/utils"
)

const (
	// StepInterval はシミュレーションの固定ステップ(秒)です。送信レートとは独立しています。
	StepInterval = 1.0 / 70
	// MaxStep は1回のステップで進める最大時間(秒)です。
	MaxStep = 0.1
)

var (
	// ErrBodyExists は同じIDのボディが既に存在する場合に返されるエラーです。
	ErrBodyExists = errors.New("physics: body already exists")
)

// Body は質量を持たない運動学的なボディです。速度は制御器が毎tick指令します。
type Body struct {
	Position Vec
	Velocity Vec
}

// World はプレイヤーごとのボディを保持し、固定ステップで位置を積分します。
type World[K comparable] struct {
	bodies map[K]*Body
}

func NewWorld[K comparable]() *World[K] {
	return &World[K]{bodies: make(map[K]*Body)}
}

// AddBody は指定位置にボディを追加します。
func (w *World[K]) AddBody(id K, position Vec) (*Body, error) {
	if _, ok := w.bodies[id]; ok {
		return nil, ErrBodyExists
	}
	b := &Body{Position: position}
	w.bodies[id] = b
	return b, nil
}

// RemoveBody はボディを削除します。存在しなかった場合は false を返します。
func (w *World[K]) RemoveBody(id K) bool {
	if _, ok := w.bodies[id]; !ok {
		return false
	}
	delete(w.bodies, id)
	return true
}

func (w *World[K]) Body(id K) (*Body, bool) {
	b, ok := w.bodies[id]
	return b, ok
}

func (w *World[K]) Len() int {
	return len(w.bodies)
}

// IDs は保持しているボディのIDを返します。順序は不定です。
func (w *World[K]) IDs() []K {
	ids := make([]K, 0, len(w.bodies))
	for id := range w.bodies {
		ids = append(ids, id)
	}
	return ids
}

// Step は全ボディを dt 秒進めます。dt は [0, MaxStep] にクランプされます。
// 速度が有限でないボディは停止させ、位置は有限に保ちます。
func (w *World[K]) Step(dt float64) {
	dt = ClampStep(dt)
	if dt == 0 {
		return
	}
	for _, b := range w.bodies {
		if !utils.FiniteVec(b.Velocity) {
			b.Velocity = Vec{}
			continue
		}
		next := Vec{X: b.Position.X + b.Velocity.X*dt, Y: b.Position.Y + b.Velocity.Y*dt}
		if utils.FiniteVec(next) {
			b.Position = next
		}
	}
}

// ClampStep は経過時間を [0, MaxStep] に収めます。
func ClampStep(dt float64) float64 {
	if !utils.IsFinite(dt) || dt < 0 {
		return 0
	}
	if dt > MaxStep {
		return MaxStep
	}
	return dt
}
