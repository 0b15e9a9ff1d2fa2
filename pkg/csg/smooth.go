package csg

import "math"

// SmoothMin is the polynomial smooth minimum of a and b with kernel radius k.
// It equals min(a, b) when |a-b| >= k and dips below it by at most k/4 at the
// seam. k == 0 is an exact hard minimum. k must not be negative.
func SmoothMin(a, b, k float64) float64 {
	if k == 0 {
		return math.Min(a, b)
	}
	h := math.Max(k-math.Abs(a-b), 0) / k
	return math.Min(a, b) - h*h*k*0.25
}

// SmoothMax mirrors SmoothMin: it never falls below max(a, b).
func SmoothMax(a, b, k float64) float64 {
	if k == 0 {
		return math.Max(a, b)
	}
	h := math.Max(k-math.Abs(a-b), 0) / k
	return math.Max(a, b) + h*h*k*0.25
}

// Lerp interpolates linearly from a (t=0) to b (t=1).
func Lerp(a, b, t float64) float64 {
	return a*(1-t) + b*t
}
