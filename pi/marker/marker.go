/*
DESCRIPTION
  Locates fiducial markers in a frame and orders their centroids into the
  four anchor points used for perspective rectification.

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

// Package marker locates fiducial markers in images and orders the marker
// centroids into anchor sets. Marker recognition itself is delegated to a
// Detector.
package marker

import (
	"errors"
	"fmt"
	"image"
	"sort"

	"github.com/ausocean/rectify/pi/homography"
)

// Dictionary names a predefined marker dictionary.
type Dictionary string

// DefaultDictionary is the dictionary used when none is configured.
const DefaultDictionary Dictionary = "DICT_7X7_1000"

// ErrDetection is returned when a detector fails to process a frame.
var ErrDetection = errors.New("marker detection failed")

// Detection is a single marker found by a Detector.
type Detection struct {
	ID      int
	Corners [4]homography.Point
}

// Detector finds fiducial markers in an image. Implementations hold their
// own dictionary configuration.
type Detector interface {
	Detect(img image.Image) ([]Detection, error)
}

// Observation is a marker identity and the centroid of its corners.
type Observation struct {
	ID       int
	Centroid homography.Point
}

// Locator turns detector output into marker observations.
type Locator struct {
	Detector Detector
}

// Locate returns an observation for each marker found in img. Detector
// failures are returned wrapped with ErrDetection and must not be taken to
// mean that no markers are present.
func (l Locator) Locate(img image.Image) ([]Observation, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: empty image", ErrDetection)
	}
	dets, err := l.Detector.Detect(img)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDetection, err)
	}

	obs := make([]Observation, len(dets))
	for i, d := range dets {
		obs[i] = Observation{ID: d.ID, Centroid: Centroid(d.Corners)}
	}
	return obs, nil
}

// Centroid returns the mean of the four corners.
func Centroid(c [4]homography.Point) homography.Point {
	var p homography.Point
	for _, v := range c {
		p.X += v.X
		p.Y += v.Y
	}
	p.X /= 4
	p.Y /= 4
	return p
}

// Ordering is the result of ordering a set of observations. It is either an
// AnchorSet or Rejected.
type Ordering interface {
	ordering()
}

// AnchorSet holds exactly four anchor points ordered by ascending marker ID.
type AnchorSet struct {
	IDs    [4]int
	Points [4]homography.Point
}

// Rejected indicates the observations could not form an anchor set. Count is
// the number of observations given.
type Rejected struct {
	Count int
}

func (AnchorSet) ordering() {}
func (Rejected) ordering()  {}

// Order sorts exactly four observations by ascending ID. Any other count, or
// four observations with a repeated ID, is Rejected.
func Order(obs []Observation) Ordering {
	if len(obs) != 4 {
		return Rejected{Count: len(obs)}
	}

	sorted := make([]Observation, 4)
	copy(sorted, obs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	var as AnchorSet
	for i, o := range sorted {
		if i > 0 && o.ID == sorted[i-1].ID {
			return Rejected{Count: len(obs)}
		}
		as.IDs[i] = o.ID
		as.Points[i] = o.Centroid
	}
	return as
}
