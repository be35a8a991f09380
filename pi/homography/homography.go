/*
DESCRIPTION
  Provides a 3x3 projective transform (homography) and an exact estimator
  for the transform defined by four point correspondences.

LICENSE
  Copyright (C) 2026 the Australian Ocean Lab (AusOcean)

  It is free software: you can redistribute it and/or modify them
  under the terms of the GNU General Public License as published by the
  Free Software Foundation, either version 3 of the License, or (at your
  option) any later version.

  It is distributed in the hope that it will be useful, but WITHOUT
  ANY WARRANTY; without even the implied warranty of MERCHANTABILITY or
  FITNESS FOR A PARTICULAR PURPOSE. See the GNU General Public License
  for more details.

  You should have received a copy of the GNU General Public License
  in gpl.txt.  If not, see http://www.gnu.org/licenses.
*/

// Package homography provides a 3x3 projective transform type and an
// estimator for the unique transform mapping four source points to four
// destination points.
package homography

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Estimation constants.
const (
	collinearEps = 1e-6 // Minimum triangle area between normalised points.
	maxCond      = 1e10 // Maximum condition number of the correspondence system.
	scaleEps     = 1e-12
)

// ErrDegenerate is returned when four correspondences do not define a
// usable transform, i.e. when points are duplicated or collinear.
var ErrDegenerate = errors.New("degenerate point configuration")

// Point is a 2D point in pixel coordinates.
type Point struct {
	X, Y float64
}

// Matrix is a 3x3 projective transform. Indices are [row][column].
type Matrix [3][3]float64

// Identity is the identity transform.
var Identity = Matrix{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}

// At returns the element at row, col.
func (m Matrix) At(row, col int) float64 {
	return m[row][col]
}

// Apply maps pt through m. The returned bool is false if pt maps to
// infinity.
func (m Matrix) Apply(pt Point) (Point, bool) {
	w := m[2][0]*pt.X + m[2][1]*pt.Y + m[2][2]
	if w == 0 {
		return Point{}, false
	}
	x := m[0][0]*pt.X + m[0][1]*pt.Y + m[0][2]
	y := m[1][0]*pt.X + m[1][1]*pt.Y + m[1][2]
	return Point{X: x / w, Y: y / w}, true
}

// Inverse returns the inverse transform, normalised so the bottom right
// element is 1 where possible.
func (m Matrix) Inverse() (Matrix, error) {
	var inv mat.Dense
	err := inv.Inverse(m.dense())
	if err != nil {
		return Matrix{}, fmt.Errorf("could not invert transform: %w", err)
	}
	return normalise(fromDense(&inv)), nil
}

// String returns the matrix elements in row major order.
func (m Matrix) String() string {
	var out string
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out += fmt.Sprintf(" %.10f", m[i][j])
			if i < 2 || j < 2 {
				out += ","
			}
		}
	}
	return out
}

func (m Matrix) dense() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		m[0][0], m[0][1], m[0][2],
		m[1][0], m[1][1], m[1][2],
		m[2][0], m[2][1], m[2][2],
	})
}

func fromDense(d mat.Matrix) Matrix {
	var m Matrix
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			m[i][j] = d.At(i, j)
		}
	}
	return m
}

func normalise(m Matrix) Matrix {
	s := m[2][2]
	if math.Abs(s) < scaleEps {
		return m
	}
	for i := range m {
		for j := range m[i] {
			m[i][j] /= s
		}
	}
	return m
}

// Estimate returns the transform mapping each src[i] to dst[i]. The result
// is scaled so that its bottom right element is 1. ErrDegenerate is returned
// if either point set contains duplicate or collinear points, or if the
// resulting linear system is too poorly conditioned to trust.
func Estimate(src, dst [4]Point) (Matrix, error) {
	ns, ts, err := normalisePoints(src)
	if err != nil {
		return Matrix{}, fmt.Errorf("source points: %w", err)
	}
	nd, td, err := normalisePoints(dst)
	if err != nil {
		return Matrix{}, fmt.Errorf("destination points: %w", err)
	}

	if err := checkCollinear(ns); err != nil {
		return Matrix{}, fmt.Errorf("source points: %w", err)
	}
	if err := checkCollinear(nd); err != nil {
		return Matrix{}, fmt.Errorf("destination points: %w", err)
	}

	hn, err := solve(ns, nd)
	if err != nil {
		return Matrix{}, err
	}

	// Undo normalisation, H = inv(Td) * Hn * Ts.
	tdInv, err := td.Inverse()
	if err != nil {
		return Matrix{}, fmt.Errorf("%w: %v", ErrDegenerate, err)
	}
	var h mat.Dense
	h.Product(tdInv.dense(), hn.dense(), ts.dense())

	m := fromDense(&h)
	if math.Abs(m[2][2]) < scaleEps {
		return Matrix{}, fmt.Errorf("%w: transform has vanishing scale", ErrDegenerate)
	}
	return normalise(m), nil
}

// solve builds and solves the 8x8 system A*h = b for the eight unknowns
// h00..h21 with h22 fixed at 1.
func solve(p, q [4]Point) (Matrix, error) {
	a := mat.NewDense(8, 8, nil)
	b := mat.NewVecDense(8, nil)
	for i := range p {
		X, Y := p[i].X, p[i].Y
		x, y := q[i].X, q[i].Y
		r := 2 * i

		// x = (h00 X + h01 Y + h02)/(h20 X + h21 Y + 1)
		a.SetRow(r, []float64{X, Y, 1, 0, 0, 0, -X * x, -Y * x})
		b.SetVec(r, x)

		// y = (h10 X + h11 Y + h12)/(h20 X + h21 Y + 1)
		a.SetRow(r+1, []float64{0, 0, 0, X, Y, 1, -X * y, -Y * y})
		b.SetVec(r+1, y)
	}

	qr := new(mat.QR)
	qr.Factorize(a)
	if c := qr.Cond(); math.IsInf(c, 0) || math.IsNaN(c) || c > maxCond {
		return Matrix{}, fmt.Errorf("%w: condition number %g", ErrDegenerate, c)
	}

	h := mat.NewVecDense(8, nil)
	err := qr.SolveVecTo(h, false, b)
	if err != nil {
		return Matrix{}, fmt.Errorf("%w: could not solve QR: %v", ErrDegenerate, err)
	}

	return Matrix{
		{h.AtVec(0), h.AtVec(1), h.AtVec(2)},
		{h.AtVec(3), h.AtVec(4), h.AtVec(5)},
		{h.AtVec(6), h.AtVec(7), 1},
	}, nil
}

// normalisePoints translates pts so their centroid is the origin and scales
// them so the mean distance from the origin is sqrt(2). The normalised points
// are returned along with the similarity transform that produced them.
func normalisePoints(pts [4]Point) ([4]Point, Matrix, error) {
	var cx, cy float64
	for _, p := range pts {
		cx += p.X
		cy += p.Y
	}
	cx /= float64(len(pts))
	cy /= float64(len(pts))

	var d float64
	for _, p := range pts {
		d += math.Hypot(p.X-cx, p.Y-cy)
	}
	d /= float64(len(pts))
	if d == 0 || math.IsNaN(d) || math.IsInf(d, 0) {
		return pts, Matrix{}, fmt.Errorf("%w: points coincide", ErrDegenerate)
	}

	s := math.Sqrt2 / d
	var out [4]Point
	for i, p := range pts {
		out[i] = Point{X: s * (p.X - cx), Y: s * (p.Y - cy)}
	}
	t := Matrix{
		{s, 0, -s * cx},
		{0, s, -s * cy},
		{0, 0, 1},
	}
	return out, t, nil
}

// checkCollinear returns ErrDegenerate if any three of the four points lie
// on a line. Duplicate points are a special case of this.
func checkCollinear(pts [4]Point) error {
	for i := 0; i < len(pts); i++ {
		a, b, c := pts[i], pts[(i+1)%4], pts[(i+2)%4]
		area := math.Abs((b.X-a.X)*(c.Y-a.Y)-(b.Y-a.Y)*(c.X-a.X)) / 2
		if area < collinearEps {
			return fmt.Errorf("%w: points %d, %d and %d are collinear", ErrDegenerate, i, (i+1)%4, (i+2)%4)
		}
	}
	return nil
}
