/*
DESCRIPTION
  Provides the rectification configuration and reading and writing of
  configuration files.

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
	"image"
	"strconv"
	"strings"

	"github.com/ausocean/utils/filemap"
	"github.com/ausocean/utils/sliceutils"

	"github.com/ausocean/rectify/pi/marker"
	"github.com/ausocean/rectify/pi/video"
)

// Video backends.
const (
	BackendFFmpeg = "ffmpeg"
	BackendCV     = "cv"
)

// Default canvas size.
const (
	DefaultWidth  = 720
	DefaultHeight = 720
)

// configParams specifies accepted parameters and the order in which they are
// written to a config file. configNumbers specifies parameters which have
// numeric values.
var (
	configParams  = []string{"Input", "OutputDir", "Width", "Height", "Mode", "Layout", "MarkerIDs", "Dictionary", "Codec", "Workers", "Backend", "Prescan", "Results", "Plot"}
	configNumbers = []string{"Width", "Height", "Workers"}
)

// Config holds the settings for a rectification run.
type Config struct {
	Input      string            // Path of the input video.
	OutputDir  string            // Directory the output video is written to.
	Width      int               // Canvas width.
	Height     int               // Canvas height.
	Mode       Mode              // Calibration mode.
	Layout     marker.Layout     // Canvas corner for each anchor and expected IDs.
	Dictionary marker.Dictionary // Marker dictionary.
	Codec      string            // Output FourCC.
	Workers    int               // Frames processed concurrently.
	Backend    string            // Video backend, ffmpeg or cv.
	Prescan    bool              // Find all anchors before writing in deep mode.
	Results    string            // Optional CSV file of per frame anchors.
	Plot       string            // Optional PNG plot of anchor drift.
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		OutputDir:  DefaultOutputDir,
		Width:      DefaultWidth,
		Height:     DefaultHeight,
		Mode:       ModeShallow,
		Layout:     marker.DefaultLayout,
		Dictionary: marker.DefaultDictionary,
		Codec:      video.DefaultCodec,
		Workers:    DefaultWorkers,
		Backend:    BackendFFmpeg,
	}
}

// Canvas returns the canvas size.
func (c Config) Canvas() image.Point { return image.Pt(c.Width, c.Height) }

// ReadConfig returns the default config updated with the parameters in the
// file at path. The file holds one "name value" pair per line.
func ReadConfig(path string) (Config, error) {
	c := DefaultConfig()
	vars, err := filemap.ReadFrom(path, "\n", " ")
	if err != nil {
		return c, fmt.Errorf("could not read config file: %w", err)
	}
	err = c.Update(vars)
	if err != nil {
		return c, err
	}
	return c, c.Validate()
}

// WriteConfig writes c to the file at path in the form read by ReadConfig.
func WriteConfig(path string, c Config) error {
	return filemap.WriteTo(path, "\n", " ", c.vars(), configParams)
}

// Update sets the parameters named in vars. Unknown names are an error and
// empty values are ignored.
func (c *Config) Update(vars map[string]string) error {
	for name, val := range vars {
		if !sliceutils.ContainsString(configParams, name) {
			return fmt.Errorf("unknown config param: %s", name)
		}
		val = strings.TrimSpace(val)
		if val == "" {
			continue
		}

		var n int
		if sliceutils.ContainsString(configNumbers, name) {
			var err error
			n, err = strconv.Atoi(val)
			if err != nil {
				return fmt.Errorf("expected int for config param %s: %w", name, err)
			}
		}

		switch name {
		case "Input":
			c.Input = val
		case "OutputDir":
			c.OutputDir = val
		case "Width":
			c.Width = n
		case "Height":
			c.Height = n
		case "Workers":
			c.Workers = n
		case "Mode":
			m, err := ParseMode(val)
			if err != nil {
				return err
			}
			c.Mode = m
		case "Layout":
			l, err := marker.ParseLayout(val)
			if err != nil {
				return err
			}
			l.IDs = c.Layout.IDs
			c.Layout = l
		case "MarkerIDs":
			ids, err := marker.ParseIDs(val)
			if err != nil {
				return err
			}
			c.Layout.IDs = ids
		case "Dictionary":
			c.Dictionary = marker.Dictionary(val)
		case "Codec":
			c.Codec = val
		case "Backend":
			c.Backend = strings.ToLower(val)
		case "Prescan":
			b, err := strconv.ParseBool(val)
			if err != nil {
				return fmt.Errorf("expected bool for config param %s: %w", name, err)
			}
			c.Prescan = b
		case "Results":
			c.Results = val
		case "Plot":
			c.Plot = val
		}
	}
	return nil
}

// Validate checks that c describes a runnable configuration.
func (c Config) Validate() error {
	switch {
	case c.Width <= 0 || c.Height <= 0:
		return fmt.Errorf("invalid canvas size: %dx%d", c.Width, c.Height)
	case c.Workers < 1:
		return fmt.Errorf("invalid worker count: %d", c.Workers)
	case len(c.Codec) != 4:
		return fmt.Errorf("invalid codec: %q", c.Codec)
	case c.OutputDir == "":
		return errors.New("no output directory")
	case c.Backend != BackendFFmpeg && c.Backend != BackendCV:
		return fmt.Errorf("unknown backend: %q", c.Backend)
	}
	return c.Layout.Validate()
}

func (c Config) vars() map[string]string {
	corners := c.Layout
	corners.IDs = nil
	var ids []string
	for _, id := range c.Layout.IDs {
		ids = append(ids, strconv.Itoa(id))
	}
	return map[string]string{
		"Input":      c.Input,
		"OutputDir":  c.OutputDir,
		"Width":      strconv.Itoa(c.Width),
		"Height":     strconv.Itoa(c.Height),
		"Mode":       c.Mode.String(),
		"Layout":     corners.String(),
		"MarkerIDs":  strings.Join(ids, ","),
		"Dictionary": string(c.Dictionary),
		"Codec":      c.Codec,
		"Workers":    strconv.Itoa(c.Workers),
		"Backend":    c.Backend,
		"Prescan":    strconv.FormatBool(c.Prescan),
		"Results":    c.Results,
		"Plot":       c.Plot,
	}
}
