/*
DESCRIPTION
  Testing for bilinear perspective warping.

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

package warp

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/ausocean/rectify/pi/homography"
)

var black = color.RGBA{0, 0, 0, 0xff}

func gradient(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{uint8(10 * x), uint8(10 * y), uint8(x + y), 0xff})
		}
	}
	return img
}

// TestIdentity checks that the identity transform onto a canvas of the same
// size reproduces the input exactly.
func TestIdentity(t *testing.T) {
	src := gradient(16, 9)
	out, err := Warp(src, homography.Identity, image.Pt(16, 9))
	if err != nil {
		t.Fatalf("did not expect error: %v", err)
	}
	if out.Bounds() != src.Bounds() {
		t.Fatalf("did not get expected bounds. Got: %v, Want: %v", out.Bounds(), src.Bounds())
	}
	if !bytes.Equal(out.Pix, src.Pix) {
		t.Errorf("identity warp changed the image")
	}
}

// TestCanvasSize checks the output always has the canvas size, with areas
// outside the source filled black.
func TestCanvasSize(t *testing.T) {
	src := gradient(4, 4)
	out, err := Warp(src, homography.Identity, image.Pt(10, 6))
	if err != nil {
		t.Fatalf("did not expect error: %v", err)
	}
	if got := out.Bounds().Size(); got != image.Pt(10, 6) {
		t.Fatalf("did not get expected size. Got: %v, Want: %v", got, image.Pt(10, 6))
	}

	tests := []struct {
		x, y int
		want color.RGBA
	}{
		{x: 0, y: 0, want: src.RGBAAt(0, 0)},
		{x: 3, y: 3, want: src.RGBAAt(3, 3)},
		{x: 5, y: 0, want: black},
		{x: 9, y: 5, want: black},
		{x: 0, y: 4, want: black},
	}
	for _, test := range tests {
		if got := out.RGBAAt(test.x, test.y); got != test.want {
			t.Errorf("did not get expected pixel at (%d, %d). Got: %v, Want: %v", test.x, test.y, got, test.want)
		}
	}
}

func TestTranslate(t *testing.T) {
	src := gradient(8, 8)

	// Moves content 2 right and 1 down.
	m := homography.Matrix{{1, 0, 2}, {0, 1, 1}, {0, 0, 1}}
	out, err := Warp(src, m, image.Pt(8, 8))
	if err != nil {
		t.Fatalf("did not expect error: %v", err)
	}
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			want := black
			if x >= 2 && y >= 1 {
				want = src.RGBAAt(x-2, y-1)
			}
			if got := out.RGBAAt(x, y); got != want {
				t.Errorf("did not get expected pixel at (%d, %d). Got: %v, Want: %v", x, y, got, want)
			}
		}
	}
}

// TestInterpolation checks a half pixel shift blends neighbouring pixels.
func TestInterpolation(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 2, 1))
	src.SetRGBA(0, 0, color.RGBA{100, 0, 200, 0xff})
	src.SetRGBA(1, 0, color.RGBA{200, 50, 0, 0xff})

	m := homography.Matrix{{1, 0, -0.5}, {0, 1, 0}, {0, 0, 1}}
	out, err := Warp(src, m, image.Pt(2, 1))
	if err != nil {
		t.Fatalf("did not expect error: %v", err)
	}

	if got, want := out.RGBAAt(0, 0), (color.RGBA{150, 25, 100, 0xff}); got != want {
		t.Errorf("did not get expected blend. Got: %v, Want: %v", got, want)
	}
	// Half of this sample lies outside the source.
	if got, want := out.RGBAAt(1, 0), (color.RGBA{100, 25, 0, 0xff}); got != want {
		t.Errorf("did not get expected border blend. Got: %v, Want: %v", got, want)
	}
}

// TestRectify warps a quadrilateral region onto a canvas and checks the
// region corners land on the canvas corners.
func TestRectify(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 64, 64))
	fill := func(x, y int, c color.RGBA) {
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				src.SetRGBA(x+dx, y+dy, c)
			}
		}
	}
	red := color.RGBA{0xff, 0, 0, 0xff}
	green := color.RGBA{0, 0xff, 0, 0xff}
	fill(10, 12, red)
	fill(50, 40, green)

	m, err := homography.Estimate(
		[4]homography.Point{{X: 50, Y: 8}, {X: 10, Y: 12}, {X: 6, Y: 52}, {X: 50, Y: 40}},
		[4]homography.Point{{X: 31, Y: 0}, {X: 0, Y: 0}, {X: 0, Y: 31}, {X: 31, Y: 31}},
	)
	if err != nil {
		t.Fatalf("could not estimate transform: %v", err)
	}
	out, err := Warp(src, m, image.Pt(32, 32))
	if err != nil {
		t.Fatalf("did not expect error: %v", err)
	}
	if got := out.RGBAAt(0, 0); got != red {
		t.Errorf("did not get expected top left pixel. Got: %v, Want: %v", got, red)
	}
	if got := out.RGBAAt(31, 31); got != green {
		t.Errorf("did not get expected bottom right pixel. Got: %v, Want: %v", got, green)
	}
}

func TestWarpErrors(t *testing.T) {
	src := gradient(4, 4)
	if _, err := Warp(src, homography.Identity, image.Pt(0, 4)); err == nil {
		t.Errorf("expected error for empty canvas")
	}
	if _, err := Warp(src, homography.Matrix{}, image.Pt(4, 4)); err == nil {
		t.Errorf("expected error for singular transform")
	}
}

// TestPure checks that warping does not modify the source image.
func TestPure(t *testing.T) {
	src := gradient(8, 8)
	orig := append([]uint8(nil), src.Pix...)
	_, err := Warp(src, homography.Matrix{{0.5, 0.1, 1}, {0, 0.7, 2}, {0.001, 0, 1}}, image.Pt(12, 12))
	if err != nil {
		t.Fatalf("did not expect error: %v", err)
	}
	if !bytes.Equal(src.Pix, orig) {
		t.Errorf("warp modified the source image")
	}
}
