/*
DESCRIPTION
  Moves frames from a video source through a processing step to a video
  sink, either sequentially or with a pool of workers.

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

package rectify

import (
	"context"
	"fmt"
	"io"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ausocean/rectify/pi/marker"
	"github.com/ausocean/rectify/pi/video"
)

// warped is a processed frame and the anchors it was warped with, if they
// were found in the frame itself.
type warped struct {
	frame   *video.Frame
	anchors *marker.AnchorSet
}

type processFunc func(*video.Frame) (warped, error)

// writtenFunc is called with each frame once it has been written.
type writtenFunc func(warped)

// pump processes the frames of src one at a time, stopping at the first
// error.
func pump(ctx context.Context, src video.Source, sink video.Sink, p Progress, fn processFunc, written writtenFunc) error {
	for n := 0; ; n++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		f, err := src.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return &FrameError{Frame: n, Err: fmt.Errorf("could not read frame: %w", err)}
		}
		w, err := fn(f)
		if err != nil {
			return err
		}
		err = sink.Write(w.frame)
		if err != nil {
			return &FrameError{Frame: f.Index, Err: fmt.Errorf("could not write frame: %w", err)}
		}
		written(w)
		p.Add(1)
	}
}

// job is a frame, or the error reading it, on its way to the writer.
type job struct {
	index int
	frame *video.Frame
	out   warped
	err   error
}

// pumpOrdered processes the frames of src with n workers. Frames are written
// in index order, and the run stops at the lowest indexed frame that fails,
// so the output and the calls to written match those of pump. At most 2n
// frames are in flight.
func pumpOrdered(ctx context.Context, src video.Source, sink video.Sink, p Progress, n int, fn processFunc, written writtenFunc) error {
	g, ctx := errgroup.WithContext(ctx)
	in := make(chan job, n)
	done := make(chan job, n)
	window := make(chan struct{}, 2*n)

	// Reader.
	g.Go(func() error {
		defer close(in)
		for i := 0; ; i++ {
			select {
			case window <- struct{}{}:
			case <-ctx.Done():
				return ctx.Err()
			}
			f, err := src.Read()
			if err == io.EOF {
				return nil
			}
			j := job{index: i, frame: f}
			if err != nil {
				j.err = &FrameError{Frame: i, Err: fmt.Errorf("could not read frame: %w", err)}
			}
			select {
			case in <- j:
			case <-ctx.Done():
				return ctx.Err()
			}
			if err != nil {
				return nil
			}
		}
	})

	// Workers.
	var wg sync.WaitGroup
	for w := 0; w < n; w++ {
		wg.Add(1)
		g.Go(func() error {
			defer wg.Done()
			for j := range in {
				if j.err == nil {
					j.out, j.err = fn(j.frame)
				}
				select {
				case done <- j:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			return nil
		})
	}
	go func() {
		wg.Wait()
		close(done)
	}()

	// Writer.
	g.Go(func() error {
		pending := make(map[int]job)
		next := 0
		for j := range done {
			pending[j.index] = j
			for {
				j, ok := pending[next]
				if !ok {
					break
				}
				delete(pending, next)
				if j.err != nil {
					return j.err
				}
				err := sink.Write(j.out.frame)
				if err != nil {
					return &FrameError{Frame: j.index, Err: fmt.Errorf("could not write frame: %w", err)}
				}
				written(j.out)
				p.Add(1)
				next++
				<-window
			}
		}
		return ctx.Err()
	})

	return g.Wait()
}
