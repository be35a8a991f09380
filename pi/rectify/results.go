/*
DESCRIPTION
  Results struct used to record the anchor points used for each rectified
  frame.

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
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/ausocean/rectify/pi/homography"
	"github.com/ausocean/rectify/pi/marker"
)

// Results holds the anchors found for each rectified frame. It is safe for
// concurrent use.
type Results struct {
	mu      sync.Mutex
	frames  []int
	anchors []marker.AnchorSet
}

// NewResults returns a new Results.
func NewResults() *Results {
	return new(Results)
}

// Update records the anchors used for frame.
func (r *Results) Update(frame int, as marker.AnchorSet) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, frame)
	r.anchors = append(r.anchors, as)
}

// Len returns the number of recorded frames.
func (r *Results) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

// sorted returns the recorded frames and anchors in frame order.
func (r *Results) sorted() ([]int, []marker.AnchorSet) {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := make([]int, len(r.frames))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return r.frames[idx[a]] < r.frames[idx[b]] })

	frames := make([]int, len(idx))
	anchors := make([]marker.AnchorSet, len(idx))
	for i, j := range idx {
		frames[i] = r.frames[j]
		anchors[i] = r.anchors[j]
	}
	return frames, anchors
}

// Drift returns, for each recorded frame in frame order, the mean distance
// in pixels of its anchors from those of the first recorded frame.
func (r *Results) Drift() (frames, drift []float64) {
	fs, as := r.sorted()
	if len(fs) == 0 {
		return nil, nil
	}
	ref := as[0].Points
	frames = make([]float64, len(fs))
	drift = make([]float64, len(fs))
	for i := range fs {
		frames[i] = float64(fs[i])
		drift[i] = meanDistance(ref, as[i].Points)
	}
	return frames, drift
}

func meanDistance(a, b [4]homography.Point) float64 {
	var sum float64
	for i := range a {
		sum += math.Hypot(a[i].X-b[i].X, a[i].Y-b[i].Y)
	}
	return sum / float64(len(a))
}

// Summary returns the mean and standard deviation of the anchor drift.
func (r *Results) Summary() (mean, std float64) {
	_, drift := r.Drift()
	if len(drift) < 2 {
		return stat.Mean(drift, nil), 0
	}
	return stat.MeanStdDev(drift, nil)
}

// WriteCSV writes one row per recorded frame, in frame order, holding the
// frame index and the ID and position of each anchor.
func (r *Results) WriteCSV(w io.Writer) error {
	fs, as := r.sorted()
	cw := csv.NewWriter(w)
	header := []string{"frame"}
	for i := 0; i < 4; i++ {
		header = append(header, fmt.Sprintf("id%d", i), fmt.Sprintf("x%d", i), fmt.Sprintf("y%d", i))
	}
	err := cw.Write(header)
	if err != nil {
		return fmt.Errorf("could not write header: %w", err)
	}

	f := func(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }
	for i := range fs {
		row := []string{strconv.Itoa(fs[i])}
		for j := 0; j < 4; j++ {
			row = append(row, strconv.Itoa(as[i].IDs[j]), f(as[i].Points[j].X), f(as[i].Points[j].Y))
		}
		err = cw.Write(row)
		if err != nil {
			return fmt.Errorf("could not write frame %d: %w", fs[i], err)
		}
	}
	cw.Flush()
	return cw.Error()
}
