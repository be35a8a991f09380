/*
DESCRIPTION
  warp-video rectifies a video by tracking four fiducial markers at the
  corners of a region of interest and warping each frame so the region fills
  a fixed size canvas. The output video is written to the output directory
  under the input's file name.

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

// warp-video removes perspective distortion from a video using four ArUco
// markers.
//
// Usage:
//
//	warp-video [flags] video
//
// Flags override the values read from -ConfigFile.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/schollz/progressbar/v3"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ausocean/utils/logging"

	"github.com/ausocean/rectify/pi/rectify"
)

// Logging configuration consts.
const (
	defaultLogPath = "/var/log/rectify/warp-video.log"
	logMaxSize     = 500 // MB.
	logMaxBackup   = 10
	logMaxAge      = 28 // Days.
	logSuppress    = false
)

// Exit codes.
const (
	exitOK = iota
	exitFailure
	exitSourceUnavailable
	exitMarkersNotFound
	exitDegenerate
	exitDetectionFailure
	exitInterrupted
)

// params are the config file parameters that may also be given as flags.
var params = []struct {
	name  string
	usage string
}{
	{"OutputDir", "Directory for output videos"},
	{"Width", "Output canvas width in pixels"},
	{"Height", "Output canvas height in pixels"},
	{"Mode", "Calibration mode, shallow or deep"},
	{"Layout", "Canvas corner of each marker in ascending ID order, e.g. tr,tl,bl,br"},
	{"MarkerIDs", "Comma separated IDs of the four markers; any IDs if empty"},
	{"Dictionary", "ArUco dictionary name"},
	{"Codec", "FourCC of the output video"},
	{"Workers", "Number of frames warped concurrently"},
	{"Backend", "Video backend, ffmpeg or cv"},
	{"Prescan", "In deep mode, find all markers before writing output"},
	{"Results", "Optional CSV file of the anchors used for each frame"},
	{"Plot", "Optional PNG plot of anchor drift"},
}

func main() {
	configFile := flag.String("ConfigFile", "", "Specifies config file")
	writeConfig := flag.String("WriteConfig", "", "Writes the effective config to this file")
	logLevel := flag.Int("LogLevel", int(logging.Info), "Specifies log level")
	logPath := flag.String("LogPath", defaultLogPath, "Specifies log path")
	showProgress := flag.Bool("Progress", true, "Show progress bars")
	for _, p := range params {
		flag.String(p.name, "", p.usage)
	}
	flag.Parse()

	validLogLevel := true
	if *logLevel < int(logging.Debug) || *logLevel > int(logging.Fatal) {
		*logLevel = int(logging.Info)
		validLogLevel = false
	}

	fileLog := &lumberjack.Logger{
		Filename:   *logPath,
		MaxSize:    logMaxSize,
		MaxBackups: logMaxBackup,
		MaxAge:     logMaxAge,
	}
	log := logging.New(int8(*logLevel), io.MultiWriter(fileLog, os.Stderr), logSuppress)
	if !validLogLevel {
		log.Error("invalid log level was defaulted to Info")
	}

	cfg, err := loadConfig(*configFile, flag.CommandLine, flag.Args())
	if err != nil {
		log.Fatal("invalid configuration", "error", err)
	}
	log.Debug("loaded config", "config", fmt.Sprintf("%+v", cfg))

	if *writeConfig != "" {
		err = rectify.WriteConfig(*writeConfig, cfg)
		if err != nil {
			log.Error("could not write config", "error", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, log, cfg, *showProgress)
	stop()
	os.Exit(code)
}

// loadConfig reads the config file, if any, then applies the parameters
// set with flags and the input video given as the first argument.
func loadConfig(path string, fs *flag.FlagSet, args []string) (rectify.Config, error) {
	cfg := rectify.DefaultConfig()
	if path != "" {
		var err error
		cfg, err = rectify.ReadConfig(path)
		if err != nil {
			return cfg, err
		}
	}

	vars := make(map[string]string)
	fs.Visit(func(f *flag.Flag) {
		for _, p := range params {
			if p.name == f.Name {
				vars[f.Name] = f.Value.String()
			}
		}
	})
	if len(args) > 1 {
		return cfg, fmt.Errorf("expected one input video, got %d", len(args))
	}
	if len(args) == 1 {
		vars["Input"] = args[0]
	}
	err := cfg.Update(vars)
	if err != nil {
		return cfg, err
	}

	if cfg.Input == "" {
		return cfg, errors.New("no input video")
	}
	return cfg, cfg.Validate()
}

// run rectifies the configured input video and returns the exit code.
func run(ctx context.Context, log logging.Logger, cfg rectify.Config, showProgress bool) int {
	det, closeDet, err := newDetector(cfg.Dictionary)
	if err != nil {
		log.Error("could not create marker detector", "error", err)
		return exitFailure
	}
	defer closeDet()

	b, err := newBackend(cfg.Backend)
	if err != nil {
		log.Error("could not create video backend", "error", err)
		return exitFailure
	}

	res := rectify.NewResults()
	options := []rectify.Option{
		rectify.WithLayout(cfg.Layout),
		rectify.WithWorkers(cfg.Workers),
		rectify.WithPrescan(cfg.Prescan),
		rectify.WithCodec(cfg.Codec),
		rectify.WithOutputDir(cfg.OutputDir),
		rectify.WithSource(b.open),
		rectify.WithSink(b.create),
		rectify.WithWarper(b.warper),
		rectify.WithResults(res),
	}
	if showProgress {
		options = append(options, rectify.WithProgress(newProgressBar))
	}

	r, err := rectify.New(log, det, cfg.Canvas(), options...)
	if err != nil {
		log.Error("could not create rectifier", "error", err)
		return exitFailure
	}

	out, err := r.Run(ctx, cfg.Mode, cfg.Input)
	code := exitCode(err)
	switch code {
	case exitOK:
		log.Info("wrote rectified video", "path", out)
	case exitSourceUnavailable:
		log.Error("could not open input video", "path", cfg.Input, "error", err)
	case exitMarkersNotFound:
		log.Error("could not find all four markers", "mode", cfg.Mode.String(), "error", err)
	case exitDegenerate:
		log.Error("markers do not bound a usable region", "error", err)
	case exitDetectionFailure:
		log.Error("marker detection failed", "error", err)
	case exitInterrupted:
		log.Warning("interrupted", "error", err)
	default:
		log.Error("rectification failed", "error", err)
	}

	report(log, res, cfg)
	return code
}

// exitCode returns the process exit code for a Run error.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, rectify.ErrSourceUnavailable):
		return exitSourceUnavailable
	case errors.Is(err, rectify.ErrMarkersNotFound):
		return exitMarkersNotFound
	case errors.Is(err, rectify.ErrDegenerateConfiguration):
		return exitDegenerate
	case errors.Is(err, rectify.ErrDetectionFailure):
		return exitDetectionFailure
	case errors.Is(err, context.Canceled):
		return exitInterrupted
	default:
		return exitFailure
	}
}

// report logs a summary of the anchors used and writes the optional results
// file and plot.
func report(log logging.Logger, res *rectify.Results, cfg rectify.Config) {
	if res.Len() == 0 {
		return
	}
	mean, std := res.Summary()
	log.Info("anchor drift", "frames", res.Len(), "mean", mean, "std", std)

	if cfg.Results != "" {
		err := writeResults(cfg.Results, res)
		if err != nil {
			log.Error("could not write results", "error", err)
		}
	}
	if cfg.Plot != "" {
		err := res.Plot(cfg.Plot)
		if err != nil {
			log.Error("could not plot results", "error", err)
		}
	}
}

func writeResults(path string, res *rectify.Results) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	err = res.WriteCSV(f)
	if err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// newProgressBar is a rectify.ProgressFunc drawing to stderr.
func newProgressBar(description string, total int) rectify.Progress {
	if total <= 0 {
		total = -1
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
	)
}
