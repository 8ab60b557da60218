// Package native implements vision.Ops in pure Go. Its results follow OpenCV's 8-bit
// semantics closely enough that the tracker behaves the same on either backend.
package native

import (
	"fmt"
	"image"
	"math"

	"github.com/ayusman/camtrack/internal/vision"
)

// Ops is the pure-Go vision backend.
type Ops struct{}

// New returns a pure-Go vision backend.
func New() *Ops {
	return &Ops{}
}

var _ vision.Ops = (*Ops)(nil)

func checkImage(src *vision.Image, channels int) error {
	if src.Empty() {
		return vision.ErrEmptyImage
	}
	if src.Channels != channels {
		return fmt.Errorf("%w: got %d, want %d", vision.ErrChannels, src.Channels, channels)
	}
	return nil
}

// BGRToHSV converts using OpenCV's 8-bit convention: H in [0,180], S and V in [0,255].
func (o *Ops) BGRToHSV(src *vision.Image) (*vision.Image, error) {
	if err := checkImage(src, 3); err != nil {
		return nil, err
	}

	out := vision.NewImage(src.Width, src.Height, 3)
	for i := 0; i < len(src.Pix); i += 3 {
		h, s, v := hsv(src.Pix[i], src.Pix[i+1], src.Pix[i+2])
		out.Pix[i] = h
		out.Pix[i+1] = s
		out.Pix[i+2] = v
	}
	return out, nil
}

func hsv(b, g, r uint8) (uint8, uint8, uint8) {
	bf, gf, rf := float64(b), float64(g), float64(r)
	v := math.Max(bf, math.Max(gf, rf))
	mn := math.Min(bf, math.Min(gf, rf))
	diff := v - mn

	var s float64
	if v > 0 {
		s = diff * 255 / v
	}

	var h float64
	if diff > 0 {
		switch v {
		case rf:
			h = 60 * (gf - bf) / diff
		case gf:
			h = 120 + 60*(bf-rf)/diff
		default:
			h = 240 + 60*(rf-gf)/diff
		}
		if h < 0 {
			h += 360
		}
	}

	return uint8(math.Round(h / 2)), uint8(math.Round(s)), uint8(v)
}

// InRange marks pixels whose every channel lies inside [lo, hi].
func (o *Ops) InRange(src *vision.Image, lo, hi vision.Scalar) (*vision.Image, error) {
	if src.Empty() {
		return nil, vision.ErrEmptyImage
	}
	if src.Channels > len(lo) {
		return nil, fmt.Errorf("%w: got %d", vision.ErrChannels, src.Channels)
	}

	out := vision.NewImage(src.Width, src.Height, 1)
	for p := range out.Pix {
		in := true
		for c := 0; c < src.Channels; c++ {
			v := float64(src.Pix[p*src.Channels+c])
			if v < lo[c] || v > hi[c] {
				in = false
				break
			}
		}
		if in {
			out.Pix[p] = 255
		}
	}
	return out, nil
}

// CalcHist accumulates a 3-D histogram over roi. A nil mask counts every pixel.
func (o *Ops) CalcHist(src, mask *vision.Image, roi image.Rectangle, bins [3]int, ranges [3]vision.Range) (*vision.Histogram, error) {
	if err := checkImage(src, 3); err != nil {
		return nil, err
	}
	if mask != nil && !mask.SameSize(src) {
		return nil, vision.ErrSizeMismatch
	}

	hist, err := vision.NewHistogram(bins, ranges)
	if err != nil {
		return nil, err
	}
	if hist.Empty() {
		return hist, nil
	}

	roi = roi.Intersect(src.Bounds())
	for y := roi.Min.Y; y < roi.Max.Y; y++ {
		for x := roi.Min.X; x < roi.Max.X; x++ {
			if mask != nil && mask.Pixel(x, y, 0) == 0 {
				continue
			}
			i, ok := hist.Bin(0, src.Pixel(x, y, 0))
			if !ok {
				continue
			}
			j, ok := hist.Bin(1, src.Pixel(x, y, 1))
			if !ok {
				continue
			}
			k, ok := hist.Bin(2, src.Pixel(x, y, 2))
			if !ok {
				continue
			}
			hist.Counts[hist.Index(i, j, k)]++
		}
	}
	return hist, nil
}

// BackProject looks up every pixel's bin count, saturating at 255.
func (o *Ops) BackProject(src *vision.Image, hist *vision.Histogram) (*vision.Image, error) {
	if err := checkImage(src, 3); err != nil {
		return nil, err
	}

	out := vision.NewImage(src.Width, src.Height, 1)
	if hist.Empty() {
		return out, nil
	}

	for p := range out.Pix {
		base := p * 3
		i, ok := hist.Bin(0, src.Pix[base])
		if !ok {
			continue
		}
		j, ok := hist.Bin(1, src.Pix[base+1])
		if !ok {
			continue
		}
		k, ok := hist.Bin(2, src.Pix[base+2])
		if !ok {
			continue
		}
		out.Pix[p] = saturate(hist.At(i, j, k))
	}
	return out, nil
}

func saturate(v float32) uint8 {
	r := math.Round(float64(v))
	switch {
	case r <= 0:
		return 0
	case r >= 255:
		return 255
	default:
		return uint8(r)
	}
}

// BitwiseAnd combines two single-channel images.
func (o *Ops) BitwiseAnd(a, b *vision.Image) (*vision.Image, error) {
	if err := checkImage(a, 1); err != nil {
		return nil, err
	}
	if err := checkImage(b, 1); err != nil {
		return nil, err
	}
	if !a.SameSize(b) {
		return nil, vision.ErrSizeMismatch
	}

	out := vision.NewImage(a.Width, a.Height, 1)
	for i := range out.Pix {
		out.Pix[i] = a.Pix[i] & b.Pix[i]
	}
	return out, nil
}

// Threshold applies a binary threshold.
func (o *Ops) Threshold(src *vision.Image, thresh, maxVal uint8) (*vision.Image, error) {
	if err := checkImage(src, 1); err != nil {
		return nil, err
	}

	out := vision.NewImage(src.Width, src.Height, 1)
	for i, v := range src.Pix {
		if v > thresh {
			out.Pix[i] = maxVal
		}
	}
	return out, nil
}
