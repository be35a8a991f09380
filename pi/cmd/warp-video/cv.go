//go:build withcv
// +build withcv

/*
DESCRIPTION
  cv.go provides the OpenCV marker detector and video backend.

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
	"github.com/ausocean/rectify/pi/marker"
	"github.com/ausocean/rectify/pi/video"
	"github.com/ausocean/rectify/pi/warp"
)

// newDetector returns an ArUco detector for dict and a function releasing
// it.
func newDetector(dict marker.Dictionary) (marker.Detector, func() error, error) {
	d, err := marker.NewArucoDetector(dict)
	if err != nil {
		return nil, nil, err
	}
	return d, d.Close, nil
}

func cvBackend() (backend, error) {
	return backend{
		open:   func(path string) (video.Source, error) { return video.OpenCV(path) },
		create: func(cfg video.SinkConfig) (video.Sink, error) { return video.CreateCV(cfg) },
		warper: warp.CV{},
	}, nil
}
