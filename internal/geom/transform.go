// Package geom holds the rigid-body math used to place modules in space.
package geom

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Tolerance is the comparison precision for placed coordinates. Structure
// files carry four decimals, so finer comparisons are meaningless.
const Tolerance = 1e-4

// Transform is a rotation followed by a translation.
type Transform struct {
	Rot  [3][3]float64
	Tran r3.Vec
}

// Identity returns the transform that leaves every point in place.
func Identity() Transform {
	return Transform{Rot: [3][3]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}}
}

// NewTransform builds a transform from a row-major rotation and a translation.
func NewTransform(rot [3][3]float64, tran r3.Vec) Transform {
	return Transform{Rot: rot, Tran: tran}
}

// Translation returns a pure translation.
func Translation(v r3.Vec) Transform {
	t := Identity()
	t.Tran = v
	return t
}

// RotationZ returns a rotation of angle radians about the z axis.
func RotationZ(angle float64) Transform {
	c, s := math.Cos(angle), math.Sin(angle)
	return Transform{Rot: [3][3]float64{{c, -s, 0}, {s, c, 0}, {0, 0, 1}}}
}

// RotationX returns a rotation of angle radians about the x axis.
func RotationX(angle float64) Transform {
	c, s := math.Cos(angle), math.Sin(angle)
	return Transform{Rot: [3][3]float64{{1, 0, 0}, {0, c, -s}, {0, s, c}}}
}

// Apply maps v through t.
func (t Transform) Apply(v r3.Vec) r3.Vec {
	return r3.Add(t.Rotate(v), t.Tran)
}

// Rotate applies only the rotational part of t.
func (t Transform) Rotate(v r3.Vec) r3.Vec {
	r := t.Rot
	return r3.Vec{
		X: r[0][0]*v.X + r[0][1]*v.Y + r[0][2]*v.Z,
		Y: r[1][0]*v.X + r[1][1]*v.Y + r[1][2]*v.Z,
		Z: r[2][0]*v.X + r[2][1]*v.Y + r[2][2]*v.Z,
	}
}

// Mul composes t with o so that t.Mul(o).Apply(v) == t.Apply(o.Apply(v)).
func (t Transform) Mul(o Transform) Transform {
	var out Transform
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out.Rot[i][j] = t.Rot[i][0]*o.Rot[0][j] + t.Rot[i][1]*o.Rot[1][j] + t.Rot[i][2]*o.Rot[2][j]
		}
	}
	out.Tran = t.Apply(o.Tran)
	return out
}

// Inverse returns the transform undoing t. The rotation is assumed orthonormal.
func (t Transform) Inverse() Transform {
	var out Transform
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out.Rot[i][j] = t.Rot[j][i]
		}
	}
	out.Tran = r3.Scale(-1, out.Rotate(t.Tran))
	return out
}

// Center is the image of the local origin, i.e. the placed module center.
func (t Transform) Center() r3.Vec {
	return t.Tran
}

// ApproxEqual reports whether every component of t and o differs by at most tol.
func (t Transform) ApproxEqual(o Transform, tol float64) bool {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if math.Abs(t.Rot[i][j]-o.Rot[i][j]) > tol {
				return false
			}
		}
	}
	return r3.Norm(r3.Sub(t.Tran, o.Tran)) <= tol
}

// Matrix returns t as a row-major homogeneous 4x4 matrix.
func (t Transform) Matrix() [4][4]float64 {
	var m [4][4]float64
	for i := 0; i < 3; i++ {
		copy(m[i][:3], t.Rot[i][:])
	}
	m[0][3], m[1][3], m[2][3] = t.Tran.X, t.Tran.Y, t.Tran.Z
	m[3][3] = 1
	return m
}

func (t Transform) String() string {
	return fmt.Sprintf("Transform{rot=%v tran=(%.4f, %.4f, %.4f)}", t.Rot, t.Tran.X, t.Tran.Y, t.Tran.Z)
}

// SqDist is the squared euclidean distance between a and b.
func SqDist(a, b r3.Vec) float64 {
	return r3.Norm2(r3.Sub(a, b))
}

// PathLength sums the segment lengths along points.
func PathLength(points []r3.Vec) float64 {
	total := 0.0
	for i := 1; i < len(points); i++ {
		total += r3.Norm(r3.Sub(points[i], points[i-1]))
	}
	return total
}

// TxSpec is the serialized form of a Transform used in data files.
// A missing rotation means identity, a missing translation means zero.
type TxSpec struct {
	Rot  [][]float64 `yaml:"rot,omitempty" json:"rot,omitempty" validate:"omitempty,len=3,dive,len=3"`
	Tran []float64   `yaml:"tran,omitempty" json:"tran,omitempty" validate:"omitempty,len=3"`
}

// Transform converts s, rejecting malformed shapes and rotations that are
// not proper (orthonormal with determinant 1).
func (s TxSpec) Transform() (Transform, error) {
	tx := Identity()
	if len(s.Rot) > 0 {
		if len(s.Rot) != 3 {
			return Transform{}, fmt.Errorf("rotation must have 3 rows, got %d", len(s.Rot))
		}
		for i, row := range s.Rot {
			if len(row) != 3 {
				return Transform{}, fmt.Errorf("rotation row %d must have 3 columns, got %d", i, len(row))
			}
			copy(tx.Rot[i][:], row)
		}
		check := Transform{Rot: tx.Rot}.Mul(Transform{Rot: tx.Rot}.Inverse())
		if !check.ApproxEqual(Identity(), Tolerance) {
			return Transform{}, fmt.Errorf("rotation is not orthonormal")
		}
		if det(tx.Rot) <= 0 {
			return Transform{}, fmt.Errorf("rotation is a reflection")
		}
	}
	if len(s.Tran) > 0 {
		if len(s.Tran) != 3 {
			return Transform{}, fmt.Errorf("translation must have 3 components, got %d", len(s.Tran))
		}
		tx.Tran = r3.Vec{X: s.Tran[0], Y: s.Tran[1], Z: s.Tran[2]}
	}
	return tx, nil
}

func det(m [3][3]float64) float64 {
	return m[0][0]*(m[1][1]*m[2][2]-m[1][2]*m[2][1]) -
		m[0][1]*(m[1][0]*m[2][2]-m[1][2]*m[2][0]) +
		m[0][2]*(m[1][0]*m[2][1]-m[1][1]*m[2][0])
}

// SpecOf is the inverse of TxSpec.Transform.
func SpecOf(t Transform) TxSpec {
	s := TxSpec{Tran: []float64{t.Tran.X, t.Tran.Y, t.Tran.Z}}
	for i := 0; i < 3; i++ {
		s.Rot = append(s.Rot, append([]float64(nil), t.Rot[i][:]...))
	}
	return s
}
