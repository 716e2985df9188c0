package kabsch

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// Resample returns n points spaced evenly by arc length along the polyline
// pts, keeping both end points. Degenerate inputs (one point, zero length)
// repeat the first point.
func Resample(pts []r3.Vec, n int) []r3.Vec {
	if n <= 0 || len(pts) == 0 {
		return nil
	}
	out := make([]r3.Vec, n)
	seg := make([]float64, len(pts))
	for i := 1; i < len(pts); i++ {
		seg[i] = seg[i-1] + r3.Norm(r3.Sub(pts[i], pts[i-1]))
	}
	total := seg[len(seg)-1]
	if n == 1 || total == 0 {
		for i := range out {
			out[i] = pts[0]
		}
		return out
	}

	j := 1
	for k := 0; k < n; k++ {
		target := total * float64(k) / float64(n-1)
		for j < len(pts)-1 && seg[j] < target {
			j++
		}
		span := seg[j] - seg[j-1]
		if span == 0 {
			out[k] = pts[j]
			continue
		}
		f := (target - seg[j-1]) / span
		f = min(max(f, 0), 1)
		out[k] = r3.Add(pts[j-1], r3.Scale(f, r3.Sub(pts[j], pts[j-1])))
	}
	out[n-1] = pts[len(pts)-1]
	return out
}
