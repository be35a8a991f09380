/*
DESCRIPTION
  Describes the physical placement of markers, i.e. which corner of the
  output canvas each anchor in an AnchorSet is mapped to.

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

package marker

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ausocean/rectify/pi/homography"
)

// Corner is a corner of the output canvas.
type Corner int

// Canvas corners.
const (
	TopLeft Corner = iota
	TopRight
	BottomRight
	BottomLeft
)

var cornerNames = map[Corner]string{
	TopLeft:     "tl",
	TopRight:    "tr",
	BottomRight: "br",
	BottomLeft:  "bl",
}

func (c Corner) String() string {
	if n, ok := cornerNames[c]; ok {
		return n
	}
	return "Corner(" + strconv.Itoa(int(c)) + ")"
}

// Layout maps anchors to canvas corners. Corners[i] is the corner the marker
// with the i-th smallest ID is placed at. If IDs is not empty it lists the
// four marker IDs expected, and anchor sets with other IDs are not accepted.
type Layout struct {
	Corners [4]Corner
	IDs     []int
}

// DefaultLayout places the markers, in ascending ID order, at the top right,
// top left, bottom left and bottom right of the region.
var DefaultLayout = Layout{Corners: [4]Corner{TopRight, TopLeft, BottomLeft, BottomRight}}

// ParseLayout parses a comma separated list of corners such as
// "tr,tl,bl,br".
func ParseLayout(s string) (Layout, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return Layout{}, fmt.Errorf("layout needs 4 corners, got %d", len(parts))
	}
	var l Layout
	for i, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		found := false
		for c, n := range cornerNames {
			if n == p {
				l.Corners[i] = c
				found = true
				break
			}
		}
		if !found {
			return Layout{}, fmt.Errorf("unknown corner: %q", p)
		}
	}
	return l, l.Validate()
}

// ParseIDs parses a comma separated list of four marker IDs.
func ParseIDs(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("need 4 marker IDs, got %d", len(parts))
	}
	ids := make([]int, len(parts))
	for i, p := range parts {
		id, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("invalid marker ID %q: %w", p, err)
		}
		ids[i] = id
	}
	return ids, nil
}

// Validate checks that every corner is used exactly once and that any
// configured IDs are four distinct values.
func (l Layout) Validate() error {
	var seen [4]bool
	for _, c := range l.Corners {
		if c < TopLeft || c > BottomLeft {
			return fmt.Errorf("invalid corner: %v", c)
		}
		if seen[c] {
			return fmt.Errorf("corner %v used more than once", c)
		}
		seen[c] = true
	}

	if len(l.IDs) == 0 {
		return nil
	}
	if len(l.IDs) != 4 {
		return fmt.Errorf("layout needs 4 marker IDs, got %d", len(l.IDs))
	}
	for i := range l.IDs {
		for j := i + 1; j < len(l.IDs); j++ {
			if l.IDs[i] == l.IDs[j] {
				return fmt.Errorf("marker ID %d repeated", l.IDs[i])
			}
		}
	}
	return nil
}

// Accepts reports whether as has the marker IDs expected by the layout.
// Any anchor set is accepted if the layout has no IDs.
func (l Layout) Accepts(as AnchorSet) bool {
	if len(l.IDs) == 0 {
		return true
	}
	for _, id := range as.IDs {
		found := false
		for _, want := range l.IDs {
			if id == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Targets returns the destination point of each anchor for a canvas of
// width w and height h.
func (l Layout) Targets(w, h int) [4]homography.Point {
	fw, fh := float64(w), float64(h)
	pos := map[Corner]homography.Point{
		TopLeft:     {X: 0, Y: 0},
		TopRight:    {X: fw, Y: 0},
		BottomRight: {X: fw, Y: fh},
		BottomLeft:  {X: 0, Y: fh},
	}
	var t [4]homography.Point
	for i, c := range l.Corners {
		t[i] = pos[c]
	}
	return t
}

func (l Layout) String() string {
	var parts []string
	for _, c := range l.Corners {
		parts = append(parts, c.String())
	}
	s := strings.Join(parts, ",")
	if len(l.IDs) != 0 {
		s += fmt.Sprintf(" ids=%v", l.IDs)
	}
	return s
}
