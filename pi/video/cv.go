//go:build withcv
// +build withcv

/*
DESCRIPTION
  Provides a Source and Sink backed by OpenCV's VideoCapture and
  VideoWriter through gocv.

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

package video

import (
	"fmt"
	"image"
	"image/draw"
	"io"

	"gocv.io/x/gocv"
)

// CVSource is a Source that decodes video with gocv.VideoCapture.
type CVSource struct {
	vc     *gocv.VideoCapture
	mat    gocv.Mat
	size   image.Point
	fps    float64
	frames int
	idx    int
}

// OpenCV returns a new CVSource for the video at path.
func OpenCV(path string) (*CVSource, error) {
	err := checkInput(path)
	if err != nil {
		return nil, err
	}
	vc, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("%w: could not open %s", ErrUnavailable, path)
	}

	return &CVSource{
		vc:     vc,
		mat:    gocv.NewMat(),
		size:   image.Pt(int(vc.Get(gocv.VideoCaptureFrameWidth)), int(vc.Get(gocv.VideoCaptureFrameHeight))),
		fps:    vc.Get(gocv.VideoCaptureFPS),
		frames: int(vc.Get(gocv.VideoCaptureFrameCount)),
	}, nil
}

// Read implements Source.Read.
func (s *CVSource) Read() (*Frame, error) {
	if !s.vc.Read(&s.mat) {
		return nil, io.EOF
	}
	if s.mat.Empty() {
		return nil, fmt.Errorf("frame %d is empty", s.idx)
	}
	img, err := s.mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("could not convert frame %d: %w", s.idx, err)
	}
	f := &Frame{Index: s.idx, Image: toRGBA(img)}
	s.idx++
	return f, nil
}

// Rewind implements Source.Rewind.
func (s *CVSource) Rewind() error {
	s.vc.Set(gocv.VideoCapturePosFrames, 0)
	if pos := s.vc.Get(gocv.VideoCapturePosFrames); pos != 0 {
		return fmt.Errorf("could not seek to first frame, at %v", pos)
	}
	s.idx = 0
	return nil
}

// Frames implements Source.Frames.
func (s *CVSource) Frames() int { return s.frames }

// FPS implements Source.FPS.
func (s *CVSource) FPS() float64 { return s.fps }

// Size implements Source.Size.
func (s *CVSource) Size() image.Point { return s.size }

// Close implements Source.Close.
func (s *CVSource) Close() error {
	s.mat.Close()
	return s.vc.Close()
}

// CVSink is a Sink that encodes video with gocv.VideoWriter.
type CVSink struct {
	vw  *gocv.VideoWriter
	cfg SinkConfig
}

// CreateCV returns a new CVSink writing to cfg.Path.
func CreateCV(cfg SinkConfig) (*CVSink, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}
	vw, err := gocv.VideoWriterFile(cfg.Path, cfg.Codec, cfg.FPS, cfg.Size.X, cfg.Size.Y, true)
	if err != nil {
		return nil, fmt.Errorf("could not create video writer: %w", err)
	}
	if !vw.IsOpened() {
		vw.Close()
		return nil, fmt.Errorf("could not open video writer for %s", cfg.Path)
	}
	return &CVSink{vw: vw, cfg: cfg}, nil
}

// Write implements Sink.Write.
func (s *CVSink) Write(f *Frame) error {
	mat, err := gocv.ImageToMatRGB(f.Image)
	if err != nil {
		return fmt.Errorf("could not convert frame %d: %w", f.Index, err)
	}
	defer mat.Close()
	err = s.vw.Write(mat)
	if err != nil {
		return fmt.Errorf("could not write frame %d: %w", f.Index, err)
	}
	return nil
}

// Close implements Sink.Close.
func (s *CVSink) Close() error {
	return s.vw.Close()
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
