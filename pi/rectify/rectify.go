/*
DESCRIPTION
  Provides the Rectifier, which tracks four fiducial markers through a video
  and warps every frame so the region they bound fills a fixed canvas.
  Two calibration strategies are available. Shallow calibration computes a
  single transform from the first frame showing all four markers and applies
  it to the whole video. Deep calibration computes a fresh transform for
  every frame.

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

// Package rectify removes perspective distortion from video using four
// fiducial markers placed at the corners of a known region.
package rectify

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ausocean/utils/logging"

	"github.com/ausocean/rectify/pi/homography"
	"github.com/ausocean/rectify/pi/marker"
	"github.com/ausocean/rectify/pi/video"
	"github.com/ausocean/rectify/pi/warp"
)

// Run failures. All are terminal for a run.
var (
	ErrSourceUnavailable       = errors.New("video source unavailable")
	ErrMarkersNotFound         = errors.New("anchor markers not found")
	ErrDegenerateConfiguration = errors.New("degenerate anchor configuration")
	ErrDetectionFailure        = errors.New("marker detection failure")
	ErrOutputIsInput           = errors.New("output path is the input path")
)

// FrameError is an error attributed to a single frame.
type FrameError struct {
	Frame int
	Err   error
}

func (e *FrameError) Error() string { return fmt.Sprintf("frame %d: %v", e.Frame, e.Err) }
func (e *FrameError) Unwrap() error { return e.Err }

// Mode selects a calibration strategy.
type Mode int

// Calibration modes.
const (
	ModeShallow Mode = iota // One transform for the whole video.
	ModeDeep                // A transform per frame.
)

// ParseMode parses "shallow" or "deep".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "shallow":
		return ModeShallow, nil
	case "deep":
		return ModeDeep, nil
	default:
		return 0, fmt.Errorf("unknown mode: %q", s)
	}
}

func (m Mode) String() string {
	switch m {
	case ModeShallow:
		return "shallow"
	case ModeDeep:
		return "deep"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Calibration is the outcome of searching a video for anchors. It is either
// Found or NotFound.
type Calibration interface {
	calibration()
}

// Found holds a transform calibrated from the anchors seen in Frame.
type Found struct {
	Transform homography.Matrix
	Frame     int
	Anchors   marker.AnchorSet
}

// NotFound indicates no frame held a usable anchor set. Scanned is the number
// of frames searched.
type NotFound struct {
	Scanned int
}

func (Found) calibration()    {}
func (NotFound) calibration() {}

// OpenSourceFunc opens the video at path.
type OpenSourceFunc func(path string) (video.Source, error)

// OpenSinkFunc creates an output video.
type OpenSinkFunc func(cfg video.SinkConfig) (video.Sink, error)

// Default output settings.
const (
	DefaultOutputDir = "warped"
	DefaultWorkers   = 1
)

// Rectifier warps videos onto a canvas using four tracked markers. A
// Rectifier holds no state between runs.
type Rectifier struct {
	log        logging.Logger
	locator    marker.Locator
	canvas     image.Point
	layout     marker.Layout
	warper     warp.Warper
	workers    int
	prescan    bool
	progress   ProgressFunc
	results    *Results
	openSource OpenSourceFunc
	openSink   OpenSinkFunc
	codec      string
	outDir     string
}

// New returns a Rectifier that finds markers with det and produces frames
// of size canvas.
func New(log logging.Logger, det marker.Detector, canvas image.Point, options ...Option) (*Rectifier, error) {
	if det == nil {
		return nil, errors.New("nil marker detector")
	}
	if canvas.X <= 0 || canvas.Y <= 0 {
		return nil, fmt.Errorf("invalid canvas size: %v", canvas)
	}

	r := &Rectifier{
		log:        log,
		locator:    marker.Locator{Detector: det},
		canvas:     canvas,
		layout:     marker.DefaultLayout,
		warper:     warp.Bilinear{},
		workers:    DefaultWorkers,
		progress:   noProgress,
		openSource: openFFmpeg,
		openSink:   createFFmpeg,
		codec:      video.DefaultCodec,
		outDir:     DefaultOutputDir,
	}

	for i, o := range options {
		if o == nil {
			return nil, errors.New("cannot apply nil option")
		}
		err := o(r)
		if err != nil {
			return nil, fmt.Errorf("could not apply option no. %d, %w", i, err)
		}
	}
	return r, nil
}

// samePath reports whether a and b name the same file.
func samePath(a, b string) (bool, error) {
	absA, err := filepath.Abs(a)
	if err != nil {
		return false, err
	}
	absB, err := filepath.Abs(b)
	if err != nil {
		return false, err
	}
	if absA == absB {
		return true, nil
	}
	fa, errA := os.Stat(absA)
	fb, errB := os.Stat(absB)
	return errA == nil && errB == nil && os.SameFile(fa, fb), nil
}

func openFFmpeg(path string) (video.Source, error) { return video.OpenFFmpeg(path) }

func createFFmpeg(cfg video.SinkConfig) (video.Sink, error) { return video.CreateFFmpeg(cfg) }

// Run rectifies the video at path using the given mode and writes the result
// to a file of the same name in the output directory. The output path is
// returned. The source is closed on every return path.
func (r *Rectifier) Run(ctx context.Context, mode Mode, path string) (out string, err error) {
	src, err := r.openSource(path)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	defer func() {
		cerr := src.Close()
		if cerr != nil {
			r.log.Warning("could not close video source", "error", cerr)
		}
	}()
	r.log.Info("opened video", "path", path, "frames", src.Frames(), "fps", src.FPS(), "size", src.Size().String())

	out = filepath.Join(r.outDir, filepath.Base(path))
	same, err := samePath(path, out)
	if err != nil {
		return "", err
	}
	if same {
		return "", fmt.Errorf("%w: output %s would overwrite the input", ErrOutputIsInput, out)
	}

	err = os.MkdirAll(r.outDir, 0o755)
	if err != nil {
		return "", fmt.Errorf("could not create output directory: %w", err)
	}

	switch mode {
	case ModeShallow:
		err = r.Shallow(ctx, src, out)
	case ModeDeep:
		err = r.Deep(ctx, src, out)
	default:
		err = fmt.Errorf("unknown mode: %v", mode)
	}
	if err != nil {
		return out, err
	}
	r.log.Info("rectification complete", "mode", mode.String(), "output", out)
	return out, nil
}

// Calibrate reads frames from src until one yields a usable anchor set, and
// returns the transform for it. NotFound is returned if src is exhausted
// first. A degenerate anchor set ends the search with an error.
func (r *Rectifier) Calibrate(ctx context.Context, src video.Source) (Calibration, error) {
	r.log.Info("searching frames for anchor points")
	p := r.progress("searching", src.Frames())
	defer p.Finish()

	for n := 0; ; n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f, err := src.Read()
		if err == io.EOF {
			return NotFound{Scanned: n}, nil
		}
		if err != nil {
			return nil, &FrameError{Frame: n, Err: fmt.Errorf("could not read frame: %w", err)}
		}
		p.Add(1)

		o, err := r.anchors(f)
		if err != nil {
			return nil, err
		}
		switch o := o.(type) {
		case marker.Rejected:
			r.log.Debug("anchor set rejected", "frame", f.Index, "markers", o.Count)
		case marker.AnchorSet:
			m, err := r.transform(f.Index, o)
			if err != nil {
				return nil, err
			}
			return Found{Transform: m, Frame: f.Index, Anchors: o}, nil
		}
	}
}

// Shallow calibrates from the first frame with a usable anchor set, then
// rewinds src and warps every frame with that single transform, writing the
// results to a new video at out. No output is created if calibration fails.
func (r *Rectifier) Shallow(ctx context.Context, src video.Source, out string) error {
	c, err := r.Calibrate(ctx, src)
	if err != nil {
		return err
	}

	var found Found
	switch c := c.(type) {
	case NotFound:
		r.log.Warning("anchor points not found", "frames", c.Scanned)
		return fmt.Errorf("%w: searched %d frames", ErrMarkersNotFound, c.Scanned)
	case Found:
		found = c
	}
	r.log.Info("anchor points found", "frame", found.Frame, "ids", fmt.Sprint(found.Anchors.IDs), "transform", found.Transform.String())
	if r.results != nil {
		r.results.Update(found.Frame, found.Anchors)
	}

	err = src.Rewind()
	if err != nil {
		return fmt.Errorf("could not rewind video: %w", err)
	}

	return r.write(ctx, src, out, func(f *video.Frame) (warped, error) {
		w, err := r.warpFrame(f, found.Transform)
		return warped{frame: w}, err
	})
}

// Deep warps every frame with a transform computed from that frame's own
// anchors. The run is aborted with ErrMarkersNotFound at the first frame
// without a usable anchor set. Unless prescan is enabled, frames before the
// failing frame will already have been written to the output.
func (r *Rectifier) Deep(ctx context.Context, src video.Source, out string) error {
	if r.prescan {
		return r.deepPrescan(ctx, src, out)
	}
	r.log.Info("warping frames with per frame anchor points")
	return r.write(ctx, src, out, func(f *video.Frame) (warped, error) {
		m, as, err := r.frameTransform(f)
		if err != nil {
			return warped{}, err
		}
		w, err := r.warpFrame(f, m)
		return warped{frame: w, anchors: &as}, err
	})
}

// deepPrescan finds the transform for every frame before any output is
// created, so that nothing is written if a frame lacks anchors.
func (r *Rectifier) deepPrescan(ctx context.Context, src video.Source, out string) error {
	r.log.Info("searching frames for anchor points")
	p := r.progress("searching", src.Frames())
	var (
		transforms []homography.Matrix
		anchors    []marker.AnchorSet
	)
	for {
		if err := ctx.Err(); err != nil {
			p.Finish()
			return err
		}
		f, err := src.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			p.Finish()
			return &FrameError{Frame: len(transforms), Err: fmt.Errorf("could not read frame: %w", err)}
		}
		m, as, err := r.frameTransform(f)
		if err != nil {
			p.Finish()
			return err
		}
		transforms = append(transforms, m)
		anchors = append(anchors, as)
		p.Add(1)
	}
	p.Finish()
	r.log.Info("anchor points found", "frames", len(transforms))

	err := src.Rewind()
	if err != nil {
		return fmt.Errorf("could not rewind video: %w", err)
	}

	return r.write(ctx, src, out, func(f *video.Frame) (warped, error) {
		if f.Index >= len(transforms) {
			return warped{}, &FrameError{Frame: f.Index, Err: errors.New("frame not seen during anchor search")}
		}
		w, err := r.warpFrame(f, transforms[f.Index])
		return warped{frame: w, anchors: &anchors[f.Index]}, err
	})
}

// frameTransform returns the transform for f's own anchors, and the anchors.
func (r *Rectifier) frameTransform(f *video.Frame) (homography.Matrix, marker.AnchorSet, error) {
	o, err := r.anchors(f)
	if err != nil {
		return homography.Matrix{}, marker.AnchorSet{}, err
	}
	switch o := o.(type) {
	case marker.AnchorSet:
		m, err := r.transform(f.Index, o)
		return m, o, err
	case marker.Rejected:
		r.log.Warning("anchor points not found", "frame", f.Index, "markers", o.Count)
		return homography.Matrix{}, marker.AnchorSet{}, &FrameError{Frame: f.Index, Err: fmt.Errorf("%w: %d markers visible", ErrMarkersNotFound, o.Count)}
	default:
		return homography.Matrix{}, marker.AnchorSet{}, fmt.Errorf("unexpected ordering %T", o)
	}
}

// anchors locates and orders the markers in f. Anchor sets with marker IDs
// the layout does not expect are rejected.
func (r *Rectifier) anchors(f *video.Frame) (marker.Ordering, error) {
	obs, err := r.locator.Locate(f.Image)
	if err != nil {
		return nil, &FrameError{Frame: f.Index, Err: fmt.Errorf("%w: %w", ErrDetectionFailure, err)}
	}
	o := marker.Order(obs)
	if as, ok := o.(marker.AnchorSet); ok && !r.layout.Accepts(as) {
		r.log.Debug("unexpected marker ids", "frame", f.Index, "ids", fmt.Sprint(as.IDs))
		return marker.Rejected{Count: len(obs)}, nil
	}
	return o, nil
}

// transform estimates the transform taking the anchors onto the canvas
// corners given by the layout.
func (r *Rectifier) transform(frame int, as marker.AnchorSet) (homography.Matrix, error) {
	m, err := homography.Estimate(as.Points, r.layout.Targets(r.canvas.X, r.canvas.Y))
	if err != nil {
		r.log.Warning("degenerate anchor points", "frame", frame, "error", err)
		return m, &FrameError{Frame: frame, Err: fmt.Errorf("%w: %w", ErrDegenerateConfiguration, err)}
	}
	return m, nil
}

func (r *Rectifier) warpFrame(f *video.Frame, m homography.Matrix) (*video.Frame, error) {
	img, err := r.warper.Warp(f.Image, m, r.canvas)
	if err != nil {
		return nil, &FrameError{Frame: f.Index, Err: fmt.Errorf("could not warp: %w", err)}
	}
	return &video.Frame{Index: f.Index, Image: img}, nil
}

// write creates the output video at out and fills it with every remaining
// frame of src processed by fn. The anchors of each frame are added to the
// results once the frame is written. The output is closed on every return
// path.
func (r *Rectifier) write(ctx context.Context, src video.Source, out string, fn processFunc) (err error) {
	sink, err := r.openSink(video.SinkConfig{Path: out, Size: r.canvas, FPS: src.FPS(), Codec: r.codec})
	if err != nil {
		return fmt.Errorf("could not create output video: %w", err)
	}
	defer func() {
		cerr := sink.Close()
		if cerr != nil && err == nil {
			err = fmt.Errorf("could not close output video: %w", cerr)
		}
	}()

	r.log.Info("warping", "output", out, "workers", r.workers)
	p := r.progress("warping", src.Frames())
	defer p.Finish()

	if r.workers <= 1 {
		return pump(ctx, src, sink, p, fn, r.record)
	}
	return pumpOrdered(ctx, src, sink, p, r.workers, fn, r.record)
}

func (r *Rectifier) record(w warped) {
	if r.results != nil && w.anchors != nil {
		r.results.Update(w.frame.Index, *w.anchors)
	}
}
