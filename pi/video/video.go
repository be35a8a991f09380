/*
DESCRIPTION
  Defines the video frame type along with the frame source and sink
  interfaces used by the rectification pipelines.

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

// Package video provides sequential frame sources and sinks for video
// files. Sources decode a container into RGBA frames, sinks encode frames
// into a container in the order they are written.
package video

import (
	"errors"
	"fmt"
	"image"
	"os"
)

// DefaultCodec is the FourCC used for output video when none is given.
const DefaultCodec = "mp4v"

// ErrUnavailable is returned when a video source cannot be opened.
var ErrUnavailable = errors.New("video unavailable")

// Frame is a single decoded frame of a video. Index is the position of the
// frame within its video starting at 0. A Frame is not modified once it has
// been read from a Source.
type Frame struct {
	Index int
	Image *image.RGBA
}

// Source provides frames of a video in order.
type Source interface {
	// Read returns the next frame. io.EOF is returned once all frames have
	// been read.
	Read() (*Frame, error)

	// Rewind positions the source so the next Read returns the first frame.
	Rewind() error

	// Frames returns the number of frames in the video as reported by the
	// container. This may be an estimate.
	Frames() int

	// FPS returns the frame rate of the video.
	FPS() float64

	// Size returns the frame dimensions.
	Size() image.Point

	Close() error
}

// Sink accepts frames for encoding. Frames are encoded in call order.
type Sink interface {
	Write(f *Frame) error
	Close() error
}

// SinkConfig holds the parameters of an output video.
type SinkConfig struct {
	Path  string
	Size  image.Point
	FPS   float64
	Codec string // FourCC, e.g. "mp4v".
}

// Validate checks that c describes a video that can be written.
func (c SinkConfig) Validate() error {
	if c.Path == "" {
		return errors.New("empty output path")
	}
	if c.Size.X <= 0 || c.Size.Y <= 0 {
		return fmt.Errorf("invalid output size: %v", c.Size)
	}
	if c.FPS <= 0 {
		return fmt.Errorf("invalid frame rate: %v", c.FPS)
	}
	if len(c.Codec) != 4 {
		return fmt.Errorf("invalid codec FourCC: %q", c.Codec)
	}
	return nil
}

// checkInput returns ErrUnavailable if path does not name a regular file.
func checkInput(path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if fi.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrUnavailable, path)
	}
	return nil
}
