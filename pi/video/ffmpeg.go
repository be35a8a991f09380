/*
DESCRIPTION
  Provides a Source and Sink backed by ffmpeg processes. Frames are passed
  through stdin/stdout pipes as raw RGBA so no cgo is required.

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

package video

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

// Executables used by the ffmpeg backend.
var (
	FFmpegPath  = "ffmpeg"
	FFprobePath = "ffprobe"
)

// encoder describes how a FourCC is encoded by ffmpeg.
type encoder struct {
	name   string // ffmpeg encoder name.
	pixFmt string // Output pixel format.
}

// encoders maps FourCC codes to ffmpeg encoders.
var encoders = map[string]encoder{
	"mp4v": {"mpeg4", "yuv420p"},
	"MP4V": {"mpeg4", "yuv420p"},
	"XVID": {"mpeg4", "yuv420p"},
	"avc1": {"libx264", "yuv420p"},
	"H264": {"libx264", "yuv420p"},
	"X264": {"libx264", "yuv420p"},
	"MJPG": {"mjpeg", "yuvj420p"},
	"FFV1": {"ffv1", "bgr0"},
}

// probe holds the stream information reported by ffprobe.
type probe struct {
	Streams []struct {
		Width         int    `json:"width"`
		Height        int    `json:"height"`
		AvgFrameRate  string `json:"avg_frame_rate"`
		RFrameRate    string `json:"r_frame_rate"`
		NbFrames      string `json:"nb_frames"`
		NbReadPackets string `json:"nb_read_packets"`
	} `json:"streams"`
}

// stderrBuffer collects the stderr of an ffmpeg process. It may be read
// while the process is still writing to it.
type stderrBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *stderrBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *stderrBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.TrimSpace(b.buf.String())
}

// killed reports whether err is the result of the process being killed by a
// signal.
func killed(err error) bool {
	var ee *exec.ExitError
	return errors.As(err, &ee) && ee.ExitCode() == -1
}

// FFmpegSource is a Source that decodes a video file with ffmpeg.
type FFmpegSource struct {
	path   string
	size   image.Point
	fps    float64
	frames int

	cmd     *exec.Cmd
	out     io.ReadCloser
	stderr  *stderrBuffer
	idx     int
	exited  bool  // Decoder has been waited on.
	exitErr error // Decoder failure, if any, once exited.
}

// OpenFFmpeg returns a new FFmpegSource for the video at path. ErrUnavailable
// is returned if the file does not exist or cannot be probed.
func OpenFFmpeg(path string) (*FFmpegSource, error) {
	err := checkInput(path)
	if err != nil {
		return nil, err
	}

	s := &FFmpegSource{path: path}
	err = s.probe()
	if err != nil {
		return nil, fmt.Errorf("%w: could not probe %s: %v", ErrUnavailable, path, err)
	}

	err = s.start()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return s, nil
}

// probe reads the stream size, frame rate and frame count with ffprobe.
// The frame count falls back to counting packets when the container does not
// record it.
func (s *FFmpegSource) probe() error {
	p, err := runProbe(s.path, "stream=width,height,avg_frame_rate,r_frame_rate,nb_frames")
	if err != nil {
		return err
	}
	st := p.Streams[0]
	if st.Width <= 0 || st.Height <= 0 {
		return fmt.Errorf("invalid stream size %dx%d", st.Width, st.Height)
	}
	s.size = image.Pt(st.Width, st.Height)

	s.fps, err = parseRate(st.AvgFrameRate)
	if err != nil || s.fps <= 0 {
		s.fps, err = parseRate(st.RFrameRate)
		if err != nil {
			return fmt.Errorf("could not parse frame rate: %w", err)
		}
	}

	n, err := strconv.Atoi(st.NbFrames)
	if err == nil && n > 0 {
		s.frames = n
		return nil
	}

	p, err = runProbe(s.path, "stream=nb_read_packets", "-count_packets")
	if err != nil {
		return err
	}
	s.frames, err = strconv.Atoi(p.Streams[0].NbReadPackets)
	if err != nil {
		return fmt.Errorf("could not parse packet count: %w", err)
	}
	return nil
}

func runProbe(path, entries string, extra ...string) (*probe, error) {
	args := []string{"-v", "error", "-select_streams", "v:0"}
	args = append(args, extra...)
	args = append(args, "-show_entries", entries, "-of", "json", path)
	out, err := exec.Command(FFprobePath, args...).Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}
	var p probe
	err = json.Unmarshal(out, &p)
	if err != nil {
		return nil, fmt.Errorf("could not parse ffprobe output: %w", err)
	}
	if len(p.Streams) == 0 {
		return nil, errors.New("no video stream")
	}
	return &p, nil
}

// parseRate parses an ffprobe rational such as "30000/1001".
func parseRate(r string) (float64, error) {
	num, den, ok := strings.Cut(r, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, err
	}
	if !ok {
		return n, nil
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil {
		return 0, err
	}
	if d == 0 {
		return 0, fmt.Errorf("zero denominator in rate %q", r)
	}
	return n / d, nil
}

// start launches the decoder process. Frames are passed through unchanged
// so that frame i of the output is frame i of the file, even for variable
// frame rate input.
func (s *FFmpegSource) start() error {
	s.cmd = exec.Command(FFmpegPath,
		"-v", "error",
		"-i", s.path,
		"-fps_mode", "passthrough",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-",
	)
	s.stderr = &stderrBuffer{}
	s.cmd.Stderr = s.stderr
	s.exited, s.exitErr = false, nil

	var err error
	s.out, err = s.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("could not pipe stdout: %w", err)
	}
	err = s.cmd.Start()
	if err != nil {
		return fmt.Errorf("could not start ffmpeg: %w", err)
	}
	s.idx = 0
	return nil
}

// wait waits for the decoder to exit and records any failure.
func (s *FFmpegSource) wait() error {
	if !s.exited {
		s.exited = true
		err := s.cmd.Wait()
		if err != nil {
			s.exitErr = fmt.Errorf("decoder failed after %d frames: %w: %s", s.idx, err, s.stderr.String())
		}
	}
	return s.exitErr
}

// stop terminates the decoder process, if running. A decoder failure that
// was not caused by stopping it is returned.
func (s *FFmpegSource) stop() error {
	if s.cmd == nil || s.cmd.Process == nil {
		return nil
	}
	defer func() { s.cmd = nil }()
	if s.exited {
		return nil
	}
	s.exited = true
	s.cmd.Process.Kill()
	s.out.Close()
	err := s.cmd.Wait()
	if err != nil && !killed(err) {
		return fmt.Errorf("decoder failed: %w: %s", err, s.stderr.String())
	}
	return nil
}

// Read implements Source.Read. io.EOF is only returned if the decoder
// finished cleanly.
func (s *FFmpegSource) Read() (*Frame, error) {
	if s.cmd == nil {
		return nil, errors.New("source is closed")
	}
	if s.exited {
		if s.exitErr != nil {
			return nil, s.exitErr
		}
		return nil, io.EOF
	}

	img := image.NewRGBA(image.Rectangle{Max: s.size})
	_, err := io.ReadFull(s.out, img.Pix)
	switch {
	case err == io.EOF:
		err = s.wait()
		if err != nil {
			return nil, err
		}
		return nil, io.EOF
	case err == io.ErrUnexpectedEOF:
		werr := s.wait()
		if werr != nil {
			return nil, fmt.Errorf("could not read frame %d: %w", s.idx, werr)
		}
		return nil, fmt.Errorf("could not read frame %d: %w", s.idx, err)
	case err != nil:
		return nil, fmt.Errorf("could not read frame %d: %w: %s", s.idx, err, s.stderr.String())
	}
	f := &Frame{Index: s.idx, Image: img}
	s.idx++
	return f, nil
}

// Rewind implements Source.Rewind by restarting the decoder.
func (s *FFmpegSource) Rewind() error {
	err := s.stop()
	if err != nil {
		return err
	}
	return s.start()
}

// Frames implements Source.Frames.
func (s *FFmpegSource) Frames() int { return s.frames }

// FPS implements Source.FPS.
func (s *FFmpegSource) FPS() float64 { return s.fps }

// Size implements Source.Size.
func (s *FFmpegSource) Size() image.Point { return s.size }

// Close implements Source.Close.
func (s *FFmpegSource) Close() error { return s.stop() }

// FFmpegSink is a Sink that encodes frames with ffmpeg.
type FFmpegSink struct {
	cfg    SinkConfig
	cmd    *exec.Cmd
	in     io.WriteCloser
	stderr *stderrBuffer
	closed bool
}

// CreateFFmpeg starts an encoder writing to cfg.Path.
func CreateFFmpeg(cfg SinkConfig) (*FFmpegSink, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}
	enc, ok := encoders[cfg.Codec]
	if !ok {
		return nil, fmt.Errorf("unsupported codec: %s", cfg.Codec)
	}

	s := &FFmpegSink{cfg: cfg, stderr: &stderrBuffer{}}
	s.cmd = exec.Command(FFmpegPath,
		"-v", "error", "-y",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", cfg.Size.X, cfg.Size.Y),
		"-r", strconv.FormatFloat(cfg.FPS, 'f', -1, 64),
		"-i", "-",
		"-c:v", enc.name,
		"-pix_fmt", enc.pixFmt,
		cfg.Path,
	)
	s.cmd.Stderr = s.stderr

	s.in, err = s.cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("could not pipe stdin: %w", err)
	}
	err = s.cmd.Start()
	if err != nil {
		return nil, fmt.Errorf("could not start ffmpeg: %w", err)
	}
	return s, nil
}

// Write implements Sink.Write.
func (s *FFmpegSink) Write(f *Frame) error {
	if s.closed {
		return errors.New("sink is closed")
	}
	b := f.Image.Bounds()
	if b.Dx() != s.cfg.Size.X || b.Dy() != s.cfg.Size.Y {
		return fmt.Errorf("frame %d has size %v, want %v", f.Index, b.Size(), s.cfg.Size)
	}

	row := 4 * b.Dx()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		off := f.Image.PixOffset(b.Min.X, y)
		_, err := s.in.Write(f.Image.Pix[off : off+row])
		if err != nil {
			return fmt.Errorf("could not write frame %d: %w: %s", f.Index, err, s.stderr.String())
		}
	}
	return nil
}

// Close implements Sink.Close, flushing the encoder and waiting for it to
// finish.
func (s *FFmpegSink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.in.Close()
	err := s.cmd.Wait()
	if err != nil {
		return fmt.Errorf("ffmpeg failed: %w: %s", err, s.stderr.String())
	}
	return nil
}
