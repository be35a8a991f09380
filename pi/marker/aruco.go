//go:build withcv
// +build withcv

/*
DESCRIPTION
  Provides a Detector for ArUco markers using OpenCV through gocv.

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
	"errors"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"github.com/ausocean/rectify/pi/homography"
)

// dictionaries maps dictionary names to gocv predefined dictionaries.
var dictionaries = map[Dictionary]gocv.ArucoDictionaryCode{
	"DICT_4X4_50":   gocv.ArucoDict4x4_50,
	"DICT_4X4_100":  gocv.ArucoDict4x4_100,
	"DICT_4X4_250":  gocv.ArucoDict4x4_250,
	"DICT_4X4_1000": gocv.ArucoDict4x4_1000,
	"DICT_5X5_50":   gocv.ArucoDict5x5_50,
	"DICT_5X5_100":  gocv.ArucoDict5x5_100,
	"DICT_5X5_250":  gocv.ArucoDict5x5_250,
	"DICT_5X5_1000": gocv.ArucoDict5x5_1000,
	"DICT_6X6_50":   gocv.ArucoDict6x6_50,
	"DICT_6X6_100":  gocv.ArucoDict6x6_100,
	"DICT_6X6_250":  gocv.ArucoDict6x6_250,
	"DICT_6X6_1000": gocv.ArucoDict6x6_1000,
	"DICT_7X7_50":   gocv.ArucoDict7x7_50,
	"DICT_7X7_100":  gocv.ArucoDict7x7_100,
	"DICT_7X7_250":  gocv.ArucoDict7x7_250,
	"DICT_7X7_1000": gocv.ArucoDict7x7_1000,
}

// ArucoDetector is a Detector for ArUco markers. It is safe for concurrent
// use.
type ArucoDetector struct {
	mu  sync.Mutex
	det gocv.ArucoDetector
}

// NewArucoDetector returns an ArucoDetector for the named dictionary.
func NewArucoDetector(dict Dictionary) (*ArucoDetector, error) {
	code, ok := dictionaries[dict]
	if !ok {
		return nil, fmt.Errorf("unknown marker dictionary: %s", dict)
	}
	d := gocv.GetPredefinedDictionary(code)
	params := gocv.NewArucoDetectorParameters()
	return &ArucoDetector{det: gocv.NewArucoDetectorWithParams(d, params)}, nil
}

// Detect implements Detector.Detect.
func (a *ArucoDetector) Detect(img image.Image) ([]Detection, error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("could not convert image: %w", err)
	}
	defer mat.Close()
	if mat.Empty() {
		return nil, errors.New("image is empty, cannot detect markers")
	}

	a.mu.Lock()
	corners, ids, _ := a.det.DetectMarkers(mat)
	a.mu.Unlock()

	if len(corners) != len(ids) {
		return nil, fmt.Errorf("detector returned %d corner sets for %d ids", len(corners), len(ids))
	}

	dets := make([]Detection, len(ids))
	for i, c := range corners {
		if len(c) != 4 {
			return nil, fmt.Errorf("marker %d has %d corners", ids[i], len(c))
		}
		dets[i].ID = ids[i]
		for j, p := range c {
			dets[i].Corners[j] = homography.Point{X: float64(p.X), Y: float64(p.Y)}
		}
	}
	return dets, nil
}

// Close releases the underlying detector.
func (a *ArucoDetector) Close() error {
	return a.det.Close()
}
