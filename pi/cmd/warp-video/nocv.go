//go:build !withcv
// +build !withcv

/*
DESCRIPTION
  nocv.go is used in builds without OpenCV. Marker detection and the cv
  backend are unavailable.

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

package main

import (
	"errors"

	"github.com/ausocean/rectify/pi/marker"
)

var errNoCV = errors.New("built without OpenCV, rebuild with -tags withcv")

// newDetector always fails. To see the release version of this function,
// consult cv.go.
func newDetector(marker.Dictionary) (marker.Detector, func() error, error) {
	return nil, nil, errNoCV
}

func cvBackend() (backend, error) { return backend{}, errNoCV }
