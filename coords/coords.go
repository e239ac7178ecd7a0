// Package coords provides the 2D affine transforms used to move between
// scanner pixel space and PDF user space.
package coords

import (
	"errors"
	"math"
)

// Matrix is a PDF-style transform [a b c d e f] (ISO 32000 8.3.3). Points
// transform as row vectors: x' = a·x + c·y + e, y' = b·x + d·y + f.
type Matrix [6]float64

type Point struct {
	X, Y float64
}

func Identity() Matrix { return Matrix{1, 0, 0, 1, 0, 0} }

func Translate(tx, ty float64) Matrix { return Matrix{1, 0, 0, 1, tx, ty} }

func Scale(sx, sy float64) Matrix { return Matrix{sx, 0, 0, sy, 0, 0} }

// Rotate returns a counterclockwise rotation by angle radians.
func Rotate(angle float64) Matrix {
	c, s := math.Cos(angle), math.Sin(angle)
	return Matrix{c, s, -s, c, 0, 0}
}

// QuarterTurns returns an exact counterclockwise rotation by n*90
// degrees. Page /Rotate values are always quarter turns, and exact
// matrices keep coordinates free of trigonometric noise.
func QuarterTurns(n int) Matrix {
	switch ((n % 4) + 4) % 4 {
	case 1:
		return Matrix{0, 1, -1, 0, 0, 0}
	case 2:
		return Matrix{-1, 0, 0, -1, 0, 0}
	case 3:
		return Matrix{0, -1, 1, 0, 0, 0}
	default:
		return Identity()
	}
}

// Around conjugates m by a translation so it acts about center instead of
// the origin.
func Around(center Point, m Matrix) Matrix {
	return Translate(-center.X, -center.Y).
		Multiply(m).
		Multiply(Translate(center.X, center.Y))
}

// Multiply returns the transform that applies m first, then o.
func (m Matrix) Multiply(o Matrix) Matrix {
	return Matrix{
		m[0]*o[0] + m[1]*o[2],
		m[0]*o[1] + m[1]*o[3],
		m[2]*o[0] + m[3]*o[2],
		m[2]*o[1] + m[3]*o[3],
		m[4]*o[0] + m[5]*o[2] + o[4],
		m[4]*o[1] + m[5]*o[3] + o[5],
	}
}

func (m Matrix) Transform(p Point) Point {
	return Point{
		X: m[0]*p.X + m[2]*p.Y + m[4],
		Y: m[1]*p.X + m[3]*p.Y + m[5],
	}
}

// Inverse returns the reverse transform. Degenerate matrices (zero scale)
// have none.
func (m Matrix) Inverse() (Matrix, error) {
	det := m[0]*m[3] - m[1]*m[2]
	if math.Abs(det) < 1e-10 {
		return Matrix{}, errors.New("coords: matrix is singular")
	}
	return Matrix{
		m[3] / det,
		-m[1] / det,
		-m[2] / det,
		m[0] / det,
		(m[2]*m[5] - m[3]*m[4]) / det,
		(m[1]*m[4] - m[0]*m[5]) / det,
	}, nil
}
