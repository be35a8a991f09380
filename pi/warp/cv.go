//go:build withcv
// +build withcv

/*
DESCRIPTION
  Provides a Warper using OpenCV's warpPerspective through gocv.

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
	"errors"
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/ausocean/rectify/pi/homography"
)

// CV is a Warper using gocv.WarpPerspective with linear interpolation and a
// constant black border.
type CV struct{}

// Warp implements Warper.Warp.
func (CV) Warp(src image.Image, m homography.Matrix, size image.Point) (*image.RGBA, error) {
	if size.X <= 0 || size.Y <= 0 {
		return nil, fmt.Errorf("invalid canvas size: %v", size)
	}
	in, err := gocv.ImageToMatRGB(src)
	if err != nil {
		return nil, fmt.Errorf("could not convert image: %w", err)
	}
	defer in.Close()
	if in.Empty() {
		return nil, errors.New("image is empty, cannot transform")
	}

	tm := toMat(m)
	defer tm.Close()

	out := gocv.NewMat()
	defer out.Close()
	gocv.WarpPerspective(in, &out, tm, size)

	img, err := out.ToImage()
	if err != nil {
		return nil, fmt.Errorf("could not convert warped image: %w", err)
	}
	return toRGBA(img), nil
}

// toMat returns m as a 3x3 CV64F matrix.
func toMat(m homography.Matrix) gocv.Mat {
	tm := gocv.NewMatWithSize(3, 3, gocv.MatTypeCV64F)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			tm.SetDoubleAt(i, j, m[i][j])
		}
	}
	return tm
}
