/*
DESCRIPTION
  Provides an in-memory Source and Sink, useful for synthetic video and
  for holding output frames for inspection.

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
	"errors"
	"fmt"
	"image"
	"io"
)

// MemorySource is a Source over a slice of images.
type MemorySource struct {
	imgs   []*image.RGBA
	fps    float64
	idx    int
	Closed bool
}

// NewMemorySource returns a MemorySource over imgs. All images must have
// the same size.
func NewMemorySource(imgs []*image.RGBA, fps float64) (*MemorySource, error) {
	if len(imgs) == 0 {
		return nil, errors.New("no frames")
	}
	size := imgs[0].Bounds().Size()
	for i, img := range imgs {
		if img.Bounds().Size() != size {
			return nil, fmt.Errorf("frame %d has size %v, want %v", i, img.Bounds().Size(), size)
		}
	}
	return &MemorySource{imgs: imgs, fps: fps}, nil
}

// Read implements Source.Read.
func (s *MemorySource) Read() (*Frame, error) {
	if s.Closed {
		return nil, errors.New("source is closed")
	}
	if s.idx >= len(s.imgs) {
		return nil, io.EOF
	}
	f := &Frame{Index: s.idx, Image: s.imgs[s.idx]}
	s.idx++
	return f, nil
}

// Rewind implements Source.Rewind.
func (s *MemorySource) Rewind() error {
	s.idx = 0
	return nil
}

// Frames implements Source.Frames.
func (s *MemorySource) Frames() int { return len(s.imgs) }

// FPS implements Source.FPS.
func (s *MemorySource) FPS() float64 { return s.fps }

// Size implements Source.Size.
func (s *MemorySource) Size() image.Point { return s.imgs[0].Bounds().Size() }

// Close implements Source.Close.
func (s *MemorySource) Close() error {
	s.Closed = true
	return nil
}

// MemorySink is a Sink that keeps written frames in memory.
type MemorySink struct {
	Config SinkConfig
	Frames []*Frame
	Closed bool
}

// NewMemorySink returns a MemorySink for cfg.
func NewMemorySink(cfg SinkConfig) (*MemorySink, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}
	return &MemorySink{Config: cfg}, nil
}

// Write implements Sink.Write.
func (s *MemorySink) Write(f *Frame) error {
	if s.Closed {
		return errors.New("sink is closed")
	}
	if f.Image.Bounds().Size() != s.Config.Size {
		return fmt.Errorf("frame %d has size %v, want %v", f.Index, f.Image.Bounds().Size(), s.Config.Size)
	}
	s.Frames = append(s.Frames, f)
	return nil
}

// Close implements Sink.Close.
func (s *MemorySink) Close() error {
	s.Closed = true
	return nil
}
