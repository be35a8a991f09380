/*
DESCRIPTION
  Plotting functions for rectification results.

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

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// Plot saves a 15cm square PNG line plot of anchor drift against frame
// index to path.
func (r *Results) Plot(path string) error {
	frames, drift := r.Drift()
	if len(frames) == 0 {
		return errors.New("no results to plot")
	}
	xy := make(plotter.XYs, len(frames))
	for i, f := range frames {
		xy[i] = plotter.XY{X: f, Y: drift[i]}
	}

	p := plot.New()
	p.Title.Text = "Anchor drift"
	p.X.Label.Text = "Frame"
	p.Y.Label.Text = "Drift (px)"
	err := plotutil.AddLinePoints(p, "drift", xy)
	if err != nil {
		return fmt.Errorf("could not draw drift: %w", err)
	}
	err = p.Save(15*vg.Centimeter, 15*vg.Centimeter, path)
	if err != nil {
		return fmt.Errorf("could not save plot: %w", err)
	}
	return nil
}
