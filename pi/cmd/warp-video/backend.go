/*
DESCRIPTION
  backend.go provides the video backends available to warp-video.

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
	"fmt"

	"github.com/ausocean/rectify/pi/rectify"
	"github.com/ausocean/rectify/pi/video"
	"github.com/ausocean/rectify/pi/warp"
)

// backend groups how videos are read, written and warped.
type backend struct {
	open   rectify.OpenSourceFunc
	create rectify.OpenSinkFunc
	warper warp.Warper
}

// newBackend returns the named backend. The cv backend is only available
// in builds with the withcv tag.
func newBackend(name string) (backend, error) {
	switch name {
	case rectify.BackendFFmpeg:
		return backend{
			open:   func(path string) (video.Source, error) { return video.OpenFFmpeg(path) },
			create: func(cfg video.SinkConfig) (video.Sink, error) { return video.CreateFFmpeg(cfg) },
			warper: warp.Bilinear{},
		}, nil
	case rectify.BackendCV:
		return cvBackend()
	default:
		return backend{}, fmt.Errorf("unknown backend: %q", name)
	}
}
