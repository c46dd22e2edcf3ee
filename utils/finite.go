package utils

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// FiniteVec は両成分が有限値かどうかを返します。
func FiniteVec(v r2.Vec) bool {
	return IsFinite(v.X) && IsFinite(v.Y)
}

func IsFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
