/*
DESCRIPTION
  Provides Rectifier initialisation options.

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
	"errors"
	"fmt"

	"github.com/ausocean/rectify/pi/marker"
	"github.com/ausocean/rectify/pi/warp"
)

// Option is the function signature returned by option functions below for
// use in the Rectifier initialiser.
type Option func(*Rectifier) error

// Progress receives updates as frames are processed.
// *progressbar.ProgressBar satisfies this interface.
type Progress interface {
	Add(n int) error
	Finish() error
}

// ProgressFunc returns a Progress for a stage with the given description.
// total is the expected number of frames, or zero if unknown.
type ProgressFunc func(description string, total int) Progress

type discardProgress struct{}

func (discardProgress) Add(int) error { return nil }
func (discardProgress) Finish() error { return nil }

func noProgress(string, int) Progress { return discardProgress{} }

// WithLayout returns an Option that sets the canvas corner each anchor is
// mapped to, and optionally the marker IDs expected.
func WithLayout(l marker.Layout) Option {
	return func(r *Rectifier) error {
		err := l.Validate()
		if err != nil {
			return fmt.Errorf("invalid layout: %w", err)
		}
		r.layout = l
		return nil
	}
}

// WithWarper returns an Option that sets the frame warper.
func WithWarper(w warp.Warper) Option {
	return func(r *Rectifier) error {
		if w == nil {
			return errors.New("nil warper")
		}
		r.warper = w
		return nil
	}
}

// WithWorkers returns an Option that sets the number of frames processed
// concurrently. Output frame order is unaffected.
func WithWorkers(n int) Option {
	return func(r *Rectifier) error {
		if n < 1 {
			return fmt.Errorf("invalid worker count: %d", n)
		}
		r.workers = n
		return nil
	}
}

// WithProgress returns an Option that sets the progress reporter factory.
func WithProgress(p ProgressFunc) Option {
	return func(r *Rectifier) error {
		if p == nil {
			return errors.New("nil progress func")
		}
		r.progress = p
		return nil
	}
}

// WithResults returns an Option that records the anchors used for each
// frame into res.
func WithResults(res *Results) Option {
	return func(r *Rectifier) error {
		r.results = res
		return nil
	}
}

// WithPrescan returns an Option that makes deep calibration find anchors in
// every frame before writing any output.
func WithPrescan(on bool) Option {
	return func(r *Rectifier) error {
		r.prescan = on
		return nil
	}
}

// WithSource returns an Option that sets how input videos are opened.
func WithSource(open OpenSourceFunc) Option {
	return func(r *Rectifier) error {
		if open == nil {
			return errors.New("nil source opener")
		}
		r.openSource = open
		return nil
	}
}

// WithSink returns an Option that sets how output videos are created.
func WithSink(create OpenSinkFunc) Option {
	return func(r *Rectifier) error {
		if create == nil {
			return errors.New("nil sink opener")
		}
		r.openSink = create
		return nil
	}
}

// WithCodec returns an Option that sets the FourCC of output videos.
func WithCodec(fourcc string) Option {
	return func(r *Rectifier) error {
		if len(fourcc) != 4 {
			return fmt.Errorf("invalid fourcc: %q", fourcc)
		}
		r.codec = fourcc
		return nil
	}
}

// WithOutputDir returns an Option that sets the directory output videos are
// written to.
func WithOutputDir(dir string) Option {
	return func(r *Rectifier) error {
		if dir == "" {
			return errors.New("empty output directory")
		}
		r.outDir = dir
		return nil
	}
}
