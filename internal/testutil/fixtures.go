// Package testutil provides synthetic frames and other fixtures shared by tests.
package testutil

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"github.com/ayusman/camtrack/internal/vision"
)

// BGR colors used by the fixtures.
var (
	Gray  = [3]uint8{128, 128, 128}
	Blue  = [3]uint8{255, 0, 0}
	Red   = [3]uint8{0, 0, 255}
	Black = [3]uint8{0, 0, 0}
)

// ColoredFrame returns a width x height BGR frame filled with bg, with obj painted
// in fg.
func ColoredFrame(width, height int, bg, fg [3]uint8, obj image.Rectangle) *vision.Image {
	frame := vision.NewImage(width, height, 3)
	frame.Fill(frame.Bounds(), bg[:]...)
	frame.Fill(obj, fg[:]...)
	return frame
}

// MovingSequence returns n frames in which obj moves by step between consecutive
// frames.
func MovingSequence(width, height int, bg, fg [3]uint8, obj image.Rectangle, step image.Point, n int) []*vision.Image {
	frames := make([]*vision.Image, 0, n)
	for i := 0; i < n; i++ {
		frames = append(frames, ColoredFrame(width, height, bg, fg, obj.Add(step.Mul(i))))
	}
	return frames
}

// Center returns the center of r in floating point.
func Center(r image.Rectangle) (float64, float64) {
	return float64(r.Min.X+r.Max.X) / 2, float64(r.Min.Y+r.Max.Y) / 2
}

// WritePNGs writes frames into dir as frame_000.png, frame_001.png, ...
func WritePNGs(dir string, frames []*vision.Image) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	for i, f := range frames {
		path := filepath.Join(dir, fmt.Sprintf("frame_%03d.png", i))
		out, err := os.Create(path)
		if err != nil {
			return err
		}
		if err := png.Encode(out, f.ToRGBA()); err != nil {
			out.Close()
			return fmt.Errorf("encode %s: %w", path, err)
		}
		if err := out.Close(); err != nil {
			return err
		}
	}
	return nil
}
