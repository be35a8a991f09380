/*
DESCRIPTION
  Testing for video sources and sinks. The ffmpeg tests are skipped when
  ffmpeg and ffprobe are not installed.

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
	"errors"
	"image"
	"image/color"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseRate(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{in: "25/1", want: 25},
		{in: "30000/1001", want: 30000.0 / 1001},
		{in: "24", want: 24},
		{in: "0/0", wantErr: true},
		{in: "abc", wantErr: true},
	}

	for i, test := range tests {
		got, err := parseRate(test.in)
		if (err != nil) != test.wantErr {
			t.Errorf("did not get expected error for test %d. Got: %v, Want error: %v", i, err, test.wantErr)
			continue
		}
		if got != test.want {
			t.Errorf("did not get expected rate for test %d. Got: %v, Want: %v", i, got, test.want)
		}
	}
}

func TestSinkConfigValidate(t *testing.T) {
	good := SinkConfig{Path: "out.mp4", Size: image.Pt(720, 720), FPS: 30, Codec: DefaultCodec}
	if err := good.Validate(); err != nil {
		t.Errorf("did not expect error for valid config: %v", err)
	}

	bad := []SinkConfig{
		{Size: image.Pt(720, 720), FPS: 30, Codec: DefaultCodec},
		{Path: "out.mp4", Size: image.Pt(0, 720), FPS: 30, Codec: DefaultCodec},
		{Path: "out.mp4", Size: image.Pt(720, 720), Codec: DefaultCodec},
		{Path: "out.mp4", Size: image.Pt(720, 720), FPS: 30, Codec: "mpeg4"},
	}
	for i, cfg := range bad {
		if err := cfg.Validate(); err == nil {
			t.Errorf("expected error for invalid config %d", i)
		}
	}
}

func TestOpenMissing(t *testing.T) {
	_, err := OpenFFmpeg(filepath.Join(t.TempDir(), "missing.mp4"))
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("did not get expected error. Got: %v, Want: %v", err, ErrUnavailable)
	}
	_, err = OpenFFmpeg(t.TempDir())
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("did not get expected error for directory. Got: %v, Want: %v", err, ErrUnavailable)
	}
}

func TestMemory(t *testing.T) {
	imgs := []*image.RGBA{
		image.NewRGBA(image.Rect(0, 0, 4, 3)),
		image.NewRGBA(image.Rect(0, 0, 4, 3)),
	}
	src, err := NewMemorySource(imgs, 25)
	if err != nil {
		t.Fatalf("could not create source: %v", err)
	}
	for pass := 0; pass < 2; pass++ {
		for i := range imgs {
			f, err := src.Read()
			if err != nil {
				t.Fatalf("could not read frame %d: %v", i, err)
			}
			if f.Index != i {
				t.Errorf("did not get expected index. Got: %d, Want: %d", f.Index, i)
			}
		}
		if _, err := src.Read(); err != io.EOF {
			t.Errorf("did not get expected EOF. Got: %v", err)
		}
		src.Rewind()
	}

	_, err = NewMemorySource([]*image.RGBA{imgs[0], image.NewRGBA(image.Rect(0, 0, 1, 1))}, 25)
	if err == nil {
		t.Errorf("expected error for mismatched frame sizes")
	}

	sink, err := NewMemorySink(SinkConfig{Path: "mem", Size: image.Pt(4, 3), FPS: 25, Codec: DefaultCodec})
	if err != nil {
		t.Fatalf("could not create sink: %v", err)
	}
	err = sink.Write(&Frame{Index: 0, Image: image.NewRGBA(image.Rect(0, 0, 2, 2))})
	if err == nil {
		t.Errorf("expected error writing frame of wrong size")
	}
}

// TestFFmpegRoundTrip encodes frames losslessly and checks they decode
// unchanged and in order, including after a rewind.
func TestFFmpegRoundTrip(t *testing.T) {
	if _, err := exec.LookPath(FFmpegPath); err != nil {
		t.Skipf("no ffmpeg in path: %v", err)
	}
	if _, err := exec.LookPath(FFprobePath); err != nil {
		t.Skipf("no ffprobe in path: %v", err)
	}

	const (
		w, h    = 32, 24
		nFrames = 5
		fps     = 10
	)
	path := filepath.Join(t.TempDir(), "roundtrip.mkv")

	sink, err := CreateFFmpeg(SinkConfig{Path: path, Size: image.Pt(w, h), FPS: fps, Codec: "FFV1"})
	if err != nil {
		t.Fatalf("could not create sink: %v", err)
	}
	for i := 0; i < nFrames; i++ {
		err = sink.Write(&Frame{Index: i, Image: patterned(w, h, uint8(i))})
		if err != nil {
			t.Fatalf("could not write frame %d: %v", i, err)
		}
	}
	err = sink.Close()
	if err != nil {
		t.Fatalf("could not close sink: %v", err)
	}

	src, err := OpenFFmpeg(path)
	if err != nil {
		t.Fatalf("could not open source: %v", err)
	}
	defer src.Close()

	if src.Size() != image.Pt(w, h) {
		t.Errorf("did not get expected size. Got: %v, Want: %v", src.Size(), image.Pt(w, h))
	}
	if src.FPS() != fps {
		t.Errorf("did not get expected fps. Got: %v, Want: %v", src.FPS(), fps)
	}
	if src.Frames() != nFrames {
		t.Errorf("did not get expected frame count. Got: %v, Want: %v", src.Frames(), nFrames)
	}

	for pass := 0; pass < 2; pass++ {
		for i := 0; i < nFrames; i++ {
			f, err := src.Read()
			if err != nil {
				t.Fatalf("could not read frame %d on pass %d: %v", i, pass, err)
			}
			want := patterned(w, h, uint8(i))
			for _, p := range []image.Point{{0, 0}, {w - 1, 0}, {5, 7}, {w - 1, h - 1}} {
				if f.Image.RGBAAt(p.X, p.Y) != want.RGBAAt(p.X, p.Y) {
					t.Errorf("did not get expected pixel at %v in frame %d. Got: %v, Want: %v", p, i, f.Image.RGBAAt(p.X, p.Y), want.RGBAAt(p.X, p.Y))
				}
			}
		}
		if _, err := src.Read(); err != io.EOF {
			t.Errorf("did not get expected EOF on pass %d. Got: %v", pass, err)
		}
		if err := src.Rewind(); err != nil {
			t.Fatalf("could not rewind: %v", err)
		}
	}
}

// stubDecoder replaces ffmpeg with a shell script for the duration of the
// test and returns a source reading 2x2 frames from it.
func stubDecoder(t *testing.T, script string) *FFmpegSource {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skipf("no shell in path: %v", err)
	}
	path := filepath.Join(t.TempDir(), "ffmpeg")
	err := os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755)
	if err != nil {
		t.Fatalf("could not write decoder script: %v", err)
	}
	prev := FFmpegPath
	FFmpegPath = path
	t.Cleanup(func() { FFmpegPath = prev })

	s := &FFmpegSource{path: "reef.mp4", size: image.Pt(2, 2)}
	err = s.start()
	if err != nil {
		t.Fatalf("could not start decoder: %v", err)
	}
	return s
}

// oneFrame writes a single 2x2 RGBA frame to stdout.
const oneFrame = "printf 'abcdefghijklmnop'"

func TestFFmpegDecoderExit(t *testing.T) {
	tests := []struct {
		name     string
		script   string
		wantEOF  bool
		wantText string
	}{
		{
			name:    "clean exit",
			script:  oneFrame + "\nexit 0",
			wantEOF: true,
		},
		{
			name:     "failed after one frame",
			script:   oneFrame + "\necho 'Invalid data found when processing input' >&2\nexit 1",
			wantText: "Invalid data found",
		},
		{
			name:     "partial frame",
			script:   oneFrame + "\nprintf 'abc'\necho 'corrupt packet' >&2\nexit 1",
			wantText: "corrupt packet",
		},
	}

	for _, test := range tests {
		s := stubDecoder(t, test.script)

		f, err := s.Read()
		if err != nil {
			t.Errorf("could not read first frame for test %q: %v", test.name, err)
			s.Close()
			continue
		}
		if f.Index != 0 || f.Image.Pix[0] != 'a' {
			t.Errorf("did not get expected first frame for test %q. Got: index %d, pixel %v", test.name, f.Index, f.Image.Pix[0])
		}

		_, err = s.Read()
		switch {
		case test.wantEOF && err != io.EOF:
			t.Errorf("did not get expected EOF for test %q. Got: %v", test.name, err)
		case !test.wantEOF && (err == nil || err == io.EOF):
			t.Errorf("expected decoder failure for test %q. Got: %v", test.name, err)
		case !test.wantEOF && !strings.Contains(err.Error(), test.wantText):
			t.Errorf("did not get expected decoder output in error for test %q. Got: %v, Want: %q", test.name, err, test.wantText)
		}

		// The failure is sticky until the source is rewound.
		_, again := s.Read()
		if (again == io.EOF) != test.wantEOF {
			t.Errorf("did not get expected repeated read error for test %q. Got: %v", test.name, again)
		}

		err = s.Close()
		if err != nil {
			t.Errorf("did not expect error closing source for test %q: %v", test.name, err)
		}
	}
}

// TestFFmpegStop checks that stopping a running decoder is not reported as
// a decoder failure.
func TestFFmpegStop(t *testing.T) {
	s := stubDecoder(t, oneFrame+"\nexec sleep 30")
	_, err := s.Read()
	if err != nil {
		t.Fatalf("could not read first frame: %v", err)
	}
	err = s.Close()
	if err != nil {
		t.Errorf("did not expect error closing running decoder: %v", err)
	}
	if _, err := s.Read(); err == nil {
		t.Errorf("expected error reading closed source")
	}
}

func TestFFmpegDecoderArgs(t *testing.T) {
	argsPath := filepath.Join(t.TempDir(), "args")
	s := stubDecoder(t, `printf '%s\n' "$@" > `+argsPath)
	_, err := s.Read()
	if err != io.EOF {
		t.Fatalf("did not get expected EOF. Got: %v", err)
	}
	s.Close()

	b, err := os.ReadFile(argsPath)
	if err != nil {
		t.Fatalf("could not read decoder arguments: %v", err)
	}
	args := strings.Join(strings.Fields(string(b)), " ")
	for _, want := range []string{"-i reef.mp4", "-fps_mode passthrough", "-f rawvideo", "-pix_fmt rgba"} {
		if !strings.Contains(args, want) {
			t.Errorf("did not get expected decoder arguments. Got: %q, Want to contain: %q", args, want)
		}
	}
}

func patterned(w, h int, seed uint8) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{uint8(x*8) + seed, uint8(y * 10), seed * 40, 255})
		}
	}
	return img
}
