package physics

import (
	"gonum.org/v1/gonum/spatial/r2"

	"engulf/utils"
)

// PID ゲインと到着判定距離。クライアント側の予測と同一の値を使うこと。
const (
	Kp = 15.0
	Ki = 0.005
	Kd = 0.8

	ArrivalThreshold = 2.5
)

// Controller は目標地点へ向かう速度指令を計算する PID 制御器です。
// 積分項と前回誤差は目標地点が変わってもリセットしません。
type Controller struct {
	target    Vec
	hasTarget bool

	integral  Vec
	lastError Vec
}

// SetTarget は目標地点を更新します。
func (c *Controller) SetTarget(p Vec) {
	c.target = p
	c.hasTarget = true
}

// Target は現在の目標地点を返します。未設定の場合 ok は false です。
func (c *Controller) Target() (p Vec, ok bool) {
	return c.target, c.hasTarget
}

// Update は現在位置から今回の速度指令と向き(度)を計算します。
// 目標未設定、または到着済みの場合は速度ゼロを返し heading をそのまま返します。
func (c *Controller) Update(current Vec, heading, speed float64) (Vec, float64) {
	if !c.hasTarget {
		return Vec{}, heading
	}

	e := r2.Sub(c.target, current)
	if r2.Norm(e) < ArrivalThreshold {
		return Vec{}, heading
	}

	if !utils.FiniteVec(e) {
		return Vec{}, heading
	}

	integral := r2.Add(c.integral, e)
	if utils.FiniteVec(integral) {
		c.integral = integral
	}
	derivative := r2.Sub(e, c.lastError)

	v := r2.Scale(Kp, e)
	v = r2.Add(v, r2.Scale(Ki, c.integral))
	v = r2.Add(v, r2.Scale(Kd, derivative))
	c.lastError = e

	if !utils.FiniteVec(v) {
		// 積が溢れた場合は誤差の向きに最大速度で進む
		v = ClampMagnitude(e, speed)
		if r2.Norm(v) < speed {
			v = r2.Scale(speed/r2.Norm(v), v)
		}
	}
	v = ClampMagnitude(v, speed)
	if IsZero(v) {
		return v, heading
	}
	return v, Heading(v)
}
