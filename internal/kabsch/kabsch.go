// Package kabsch scores how well one point set matches another after the
// best rigid superposition.
package kabsch

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	ErrLengthMismatch = errors.New("point sets differ in length")
	ErrNoPoints       = errors.New("empty point set")
	ErrSVD            = errors.New("svd did not converge")
)

// Rotation returns the proper rotation R and the centroids of mobile and
// ref such that R(p - mc) + rc best matches ref in the least squares sense.
func Rotation(mobile, ref []r3.Vec) (*mat.Dense, r3.Vec, r3.Vec, error) {
	if len(mobile) != len(ref) {
		return nil, r3.Vec{}, r3.Vec{}, fmt.Errorf("%w: %d vs %d", ErrLengthMismatch, len(mobile), len(ref))
	}
	if len(mobile) == 0 {
		return nil, r3.Vec{}, r3.Vec{}, ErrNoPoints
	}
	mc, rc := centroid(mobile), centroid(ref)

	h := mat.NewDense(3, 3, nil)
	for i := range mobile {
		p, q := r3.Sub(mobile[i], mc), r3.Sub(ref[i], rc)
		pv, qv := [3]float64{p.X, p.Y, p.Z}, [3]float64{q.X, q.Y, q.Z}
		for a := 0; a < 3; a++ {
			for b := 0; b < 3; b++ {
				h.Set(a, b, h.At(a, b)+pv[a]*qv[b])
			}
		}
	}

	var svd mat.SVD
	if !svd.Factorize(h, mat.SVDFull) {
		return nil, mc, rc, ErrSVD
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	var vut mat.Dense
	vut.Mul(&v, u.T())
	d := 1.0
	if mat.Det(&vut) < 0 {
		d = -1
	}
	fix := mat.NewDiagDense(3, []float64{1, 1, d})

	var vd, rot mat.Dense
	vd.Mul(&v, fix)
	rot.Mul(&vd, u.T())
	return &rot, mc, rc, nil
}

// Superpose returns mobile moved onto ref by the optimal rigid motion.
func Superpose(mobile, ref []r3.Vec) ([]r3.Vec, error) {
	rot, mc, rc, err := Rotation(mobile, ref)
	if err != nil {
		return nil, err
	}
	out := make([]r3.Vec, len(mobile))
	for i, p := range mobile {
		out[i] = r3.Add(apply(rot, r3.Sub(p, mc)), rc)
	}
	return out, nil
}

// Score is the root mean square deviation between mobile and ref after
// optimal superposition. Lower is better.
func Score(mobile, ref []r3.Vec) (float64, error) {
	moved, err := Superpose(mobile, ref)
	if err != nil {
		return 0, err
	}
	sum := 0.0
	for i := range moved {
		sum += r3.Norm2(r3.Sub(moved[i], ref[i]))
	}
	return math.Sqrt(sum / float64(len(moved))), nil
}

// ScorePath scores two polylines that may have a different number of
// vertices by resampling both to the larger count before calling Score.
func ScorePath(mobile, ref []r3.Vec) (float64, error) {
	if len(mobile) == 0 || len(ref) == 0 {
		return 0, ErrNoPoints
	}
	n := max(len(mobile), len(ref))
	if len(mobile) != n {
		mobile = Resample(mobile, n)
	}
	if len(ref) != n {
		ref = Resample(ref, n)
	}
	return Score(mobile, ref)
}

func centroid(pts []r3.Vec) r3.Vec {
	var c r3.Vec
	for _, p := range pts {
		c = r3.Add(c, p)
	}
	return r3.Scale(1/float64(len(pts)), c)
}

func apply(m *mat.Dense, v r3.Vec) r3.Vec {
	return r3.Vec{
		X: m.At(0, 0)*v.X + m.At(0, 1)*v.Y + m.At(0, 2)*v.Z,
		Y: m.At(1, 0)*v.X + m.At(1, 1)*v.Y + m.At(1, 2)*v.Z,
		Z: m.At(2, 0)*v.X + m.At(2, 1)*v.Y + m.At(2, 2)*v.Z,
	}
}
