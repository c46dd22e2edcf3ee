package physics

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"engulf/utils"
)

// Vec はワールド座標系の2次元ベクトルです。
type Vec = r2.Vec

// Heading はベクトルの向きを度数法で返します。
func Heading(v Vec) float64 {
	return math.Atan2(v.Y, v.X) * 180 / math.Pi
}

// MaxCoordinate はワールド座標として受け付ける絶対値の上限です。
// これを超える座標では制御則の積が溢れます。
const MaxCoordinate = 1e9

// InBounds は両成分が有限かつ MaxCoordinate 以内かどうかを返します。
func InBounds(v Vec) bool {
	return utils.FiniteVec(v) && math.Abs(v.X) <= MaxCoordinate && math.Abs(v.Y) <= MaxCoordinate
}

// ClampMagnitude は向きを保ったままベクトルの大きさを max 以下に制限します。
// 成分が有限でもノルムが溢れる場合は縮めてから向きを求めます。
// 成分が有限でない場合はゼロベクトルを返します。
func ClampMagnitude(v Vec, max float64) Vec {
	if !utils.FiniteVec(v) {
		return Vec{}
	}
	n := r2.Norm(v)
	if n <= max || n == 0 {
		return v
	}
	if math.IsInf(n, 0) {
		u := r2.Scale(1/math.Max(math.Abs(v.X), math.Abs(v.Y)), v)
		return r2.Scale(max/r2.Norm(u), u)
	}
	return r2.Scale(max/n, v)
}

// IsZero はゼロベクトルかどうかを返します。
func IsZero(v Vec) bool {
	return v.X == 0 && v.Y == 0
}
