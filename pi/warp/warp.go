/*
DESCRIPTION
  Resamples images through a perspective transform.

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

// Package warp resamples images through a homography onto a canvas of fixed
// size.
package warp

import (
	"fmt"
	"image"
	"image/draw"
	"math"

	"github.com/ausocean/rectify/pi/homography"
)

// Warper resamples src through m onto a new image of the given size.
// Implementations must not modify src.
type Warper interface {
	Warp(src image.Image, m homography.Matrix, size image.Point) (*image.RGBA, error)
}

// Bilinear is a Warper using inverse mapping and bilinear interpolation.
// Samples falling outside src are opaque black.
type Bilinear struct{}

// Warp is shorthand for Bilinear{}.Warp.
func Warp(src image.Image, m homography.Matrix, size image.Point) (*image.RGBA, error) {
	return Bilinear{}.Warp(src, m, size)
}

// Warp implements Warper.Warp. For each output pixel the source position is
// found with the inverse of m and the four neighbouring source pixels are
// blended.
func (Bilinear) Warp(src image.Image, m homography.Matrix, size image.Point) (*image.RGBA, error) {
	if size.X <= 0 || size.Y <= 0 {
		return nil, fmt.Errorf("invalid canvas size: %v", size)
	}
	inv, err := m.Inverse()
	if err != nil {
		return nil, fmt.Errorf("could not invert transform: %w", err)
	}

	in := toRGBA(src)
	out := image.NewRGBA(image.Rect(0, 0, size.X, size.Y))
	for y := 0; y < size.Y; y++ {
		for x := 0; x < size.X; x++ {
			p, ok := inv.Apply(homography.Point{X: float64(x), Y: float64(y)})
			off := out.PixOffset(x, y)
			if !ok {
				out.Pix[off+3] = 0xff
				continue
			}
			sample(in, p.X, p.Y, out.Pix[off:off+4])
		}
	}
	return out, nil
}

// background is the value of samples outside the source image.
var background = [4]float64{0, 0, 0, 0xff}

// sample writes the bilinear interpolation of img at (sx, sy) to dst.
func sample(img *image.RGBA, sx, sy float64, dst []uint8) {
	b := img.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())
	if math.IsNaN(sx) || math.IsNaN(sy) || sx <= -1 || sy <= -1 || sx >= w || sy >= h {
		for i := range dst {
			dst[i] = uint8(background[i])
		}
		return
	}

	x0, y0 := math.Floor(sx), math.Floor(sy)
	fx, fy := sx-x0, sy-y0
	ix, iy := int(x0), int(y0)

	var acc [4]float64
	for _, n := range [4]struct {
		dx, dy int
		w      float64
	}{
		{0, 0, (1 - fx) * (1 - fy)},
		{1, 0, fx * (1 - fy)},
		{0, 1, (1 - fx) * fy},
		{1, 1, fx * fy},
	} {
		if n.w == 0 {
			continue
		}
		px, py := ix+n.dx, iy+n.dy
		if px < 0 || py < 0 || px >= b.Dx() || py >= b.Dy() {
			for i := range acc {
				acc[i] += n.w * background[i]
			}
			continue
		}
		off := img.PixOffset(b.Min.X+px, b.Min.Y+py)
		for i := range acc {
			acc[i] += n.w * float64(img.Pix[off+i])
		}
	}

	for i := range dst {
		dst[i] = uint8(math.Min(math.Max(math.Round(acc[i]), 0), 0xff))
	}
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return rgba
}
