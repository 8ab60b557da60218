// Package camshift tracks a colored object across frames with the continuously
// adaptive mean-shift (CAMShift) algorithm.
//
// A Tracker is seeded once with a selection rectangle, from which it builds an HSV
// color histogram. Every call to Run back-projects that histogram onto the current
// frame, cleans the resulting density map (threshold, median, erode, dilate) and lets
// the vision backend search for the new window. The raw search result is then
// stabilized: its size is floored and a center that leaves the frame is replaced by
// the previous one.
//
// A Tracker is not safe for concurrent use.
package camshift

import (
	"errors"
	"fmt"
	"image"

	"github.com/ayusman/camtrack/internal/vision"
)

// Errors returned by the tracker. Returned errors wrap one of these and can be
// tested with errors.Is.
var (
	// ErrInvalidArgument is returned when a value violates a documented constraint.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrPrecondition is returned when an operation runs before its predecessor.
	ErrPrecondition = errors.New("precondition violation")
)

// Track window limits and search termination.
const (
	// MinTrackWidth is the smallest oriented window width after sanitizing.
	MinTrackWidth = 20
	// MinTrackHeight is the smallest oriented window height after sanitizing.
	MinTrackHeight = 20
	// SearchMaxIter bounds the number of mean-shift iterations per step.
	SearchMaxIter = 10
	// SearchEpsilon is the mean-shift convergence distance in pixels.
	SearchEpsilon = 1
)

// Config holds construction-time settings of a Tracker.
type Config struct {
	// Ranges are the histogram ranges of the hue, saturation and value channels.
	Ranges [3]vision.Range
	// MaskLow and MaskHigh bound (inclusively) the HSV values of pixels that take part
	// in the histogram and the density map.
	MaskLow  vision.Scalar
	MaskHigh vision.Scalar
	// Bins are the initial hue, saturation and value bin counts.
	Bins [3]int
	// MedianBlur is the initial median kernel size.
	MedianBlur int
	// Threshold is the initial binarization threshold.
	Threshold int
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		Ranges: [3]vision.Range{
			{Min: 0, Max: 180},
			{Min: 0, Max: 256},
			{Min: 0, Max: 256},
		},
		MaskLow:    vision.Scalar{0, 0, 0},
		MaskHigh:   vision.Scalar{180, 256, 256},
		Bins:       [3]int{20, 10, 1},
		MedianBlur: 3,
		Threshold:  40,
	}
}

// Tracker follows a color distribution from frame to frame.
type Tracker struct {
	ops vision.Ops

	ranges     [3]vision.Range
	maskLow    vision.Scalar
	maskHigh   vision.Scalar
	bins       [3]int
	medianBlur int
	threshold  int
	erosion    vision.Kernel
	dilation   vision.Kernel

	frame    *vision.Image
	hist     *vision.Histogram
	backProj *vision.Image
	track    image.Rectangle
	rotated  vision.RotatedRect
}

// New creates a Tracker that delegates image processing to ops.
func New(ops vision.Ops, cfg Config) (*Tracker, error) {
	if ops == nil {
		return nil, fmt.Errorf("%w: vision ops are required", ErrInvalidArgument)
	}
	for i, r := range cfg.Ranges {
		if r.Max <= r.Min {
			return nil, fmt.Errorf("%w: channel %d range [%v, %v) is empty", ErrInvalidArgument, i, r.Min, r.Max)
		}
	}

	t := &Tracker{
		ops:      ops,
		ranges:   cfg.Ranges,
		maskLow:  cfg.MaskLow,
		maskHigh: cfg.MaskHigh,
		erosion:  vision.CrossKernel(),
		dilation: vision.DiamondKernel(),
	}

	initial := []struct {
		p Parameter
		v int
	}{
		{HueBins, cfg.Bins[0]},
		{SatBins, cfg.Bins[1]},
		{ValBins, cfg.Bins[2]},
		{MedianBlur, cfg.MedianBlur},
		{Threshold, cfg.Threshold},
	}
	for _, kv := range initial {
		if err := t.SetParameter(kv.p, kv.v); err != nil {
			return nil, err
		}
	}

	return t, nil
}

// SetFrame sets the image the next SetSelection or Run operates on. The tracker keeps
// a reference to frame until it is replaced; callers must not modify it meanwhile.
func (t *Tracker) SetFrame(frame *vision.Image) {
	t.frame = frame
}

// hsvAndMask converts the current frame and derives its validity mask.
func (t *Tracker) hsvAndMask() (*vision.Image, *vision.Image, error) {
	if t.frame.Empty() {
		return nil, nil, fmt.Errorf("%w: no frame available", ErrPrecondition)
	}

	hsv, err := t.ops.BGRToHSV(t.frame)
	if err != nil {
		return nil, nil, fmt.Errorf("convert to hsv: %w", err)
	}
	mask, err := t.ops.InRange(hsv, t.maskLow, t.maskHigh)
	if err != nil {
		return nil, nil, fmt.Errorf("mask frame: %w", err)
	}
	return hsv, mask, nil
}

// SetSelection builds the reference histogram from the pixels of the current frame
// inside selection and makes the part of selection within the frame the track
// window.
func (t *Tracker) SetSelection(selection image.Rectangle) error {
	if selection.Dx() <= 0 || selection.Dy() <= 0 {
		return fmt.Errorf("%w: selection %v must have positive width and height", ErrInvalidArgument, selection)
	}

	hsv, mask, err := t.hsvAndMask()
	if err != nil {
		return err
	}

	roi := selection.Intersect(hsv.Bounds())
	if roi.Empty() {
		return fmt.Errorf("%w: selection %v lies outside the frame %v", ErrInvalidArgument, selection, hsv.Bounds())
	}
	if _, err := vision.HistogramCells(t.bins); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	hist, err := t.ops.CalcHist(hsv, mask, roi, t.bins, t.ranges)
	if err != nil {
		return fmt.Errorf("compute histogram: %w", err)
	}

	t.hist = hist
	t.track = roi
	return nil
}

// Run performs one tracking step on the current frame.
//
// Steps:
// 1. Convert the frame to HSV and derive the validity mask
// 2. Back-project the reference histogram and AND it with the mask
// 3. Binarize at the threshold, median filter, erode, dilate
// 4. Search for the new oriented window starting at the track window
// 5. Floor the window size and fall back to the previous center when the new
// one leaves the frame
// 6. Set the track window to the bounding box clipped to the frame
func (t *Tracker) Run() error {
	hsv, mask, err := t.hsvAndMask()
	if err != nil {
		return err
	}
	if t.hist == nil {
		return fmt.Errorf("%w: no selection has been set", ErrPrecondition)
	}

	prob, err := t.densityMap(hsv, mask)
	if err != nil {
		return err
	}

	prev := t.rotated
	found, err := t.ops.CamShift(prob, t.track, vision.TermCriteria{
		MaxIter: SearchMaxIter,
		Epsilon: SearchEpsilon,
	})
	if err != nil {
		return fmt.Errorf("camshift search: %w", err)
	}

	rotated := sanitize(found, prev, prob.Bounds())

	t.backProj = prob
	t.rotated = rotated
	t.track = rotated.BoundingRect().Intersect(prob.Bounds())
	return nil
}

// densityMap produces the filtered back-projection of the reference histogram.
func (t *Tracker) densityMap(hsv, mask *vision.Image) (*vision.Image, error) {
	prob, err := t.ops.BackProject(hsv, t.hist)
	if err != nil {
		return nil, fmt.Errorf("back-project: %w", err)
	}
	if prob, err = t.ops.BitwiseAnd(prob, mask); err != nil {
		return nil, fmt.Errorf("apply mask: %w", err)
	}
	if prob, err = t.ops.Threshold(prob, uint8(t.threshold), 255); err != nil {
		return nil, fmt.Errorf("threshold: %w", err)
	}
	if prob, err = t.ops.MedianBlur(prob, t.medianBlur); err != nil {
		return nil, fmt.Errorf("median blur: %w", err)
	}
	if prob, err = t.ops.Erode(prob, t.erosion); err != nil {
		return nil, fmt.Errorf("erode: %w", err)
	}
	if prob, err = t.ops.Dilate(prob, t.dilation); err != nil {
		return nil, fmt.Errorf("dilate: %w", err)
	}
	return prob, nil
}

// sanitize floors the size of r and rejects center coordinates outside
// (0, width] x (0, height] in favor of those of prev.
func sanitize(r, prev vision.RotatedRect, bounds image.Rectangle) vision.RotatedRect {
	if r.Size.Width < MinTrackWidth {
		r.Size.Width = MinTrackWidth
	}
	// The height floor is MinTrackWidth as well. The two constants are equal; confirm
	// before letting them diverge.
	if r.Size.Height < MinTrackWidth {
		r.Size.Height = MinTrackWidth
	}
	if r.Center.X <= 0 || r.Center.X > float64(bounds.Dx()) {
		r.Center.X = prev.Center.X
	}
	if r.Center.Y <= 0 || r.Center.Y > float64(bounds.Dy()) {
		r.Center.Y = prev.Center.Y
	}
	return r
}

// BackProjection returns a copy of the filtered density map of the last step.
func (t *Tracker) BackProjection() (*vision.Image, error) {
	if t.backProj.Empty() {
		return nil, fmt.Errorf("%w: back-projection has not been computed", ErrPrecondition)
	}
	return t.backProj.Clone(), nil
}

// Track returns the axis-aligned track window.
func (t *Tracker) Track() (image.Rectangle, error) {
	if t.track.Dx() == 0 || t.track.Dy() == 0 {
		return image.Rectangle{}, fmt.Errorf("%w: track has not been set", ErrPrecondition)
	}
	return t.track, nil
}

// RotatedTrack returns the oriented track window of the last step.
func (t *Tracker) RotatedTrack() (vision.RotatedRect, error) {
	b := t.rotated.BoundingRect()
	if t.rotated.Size.Width <= 0 || t.rotated.Size.Height <= 0 || b.Dx() <= 0 || b.Dy() <= 0 {
		return vision.RotatedRect{}, fmt.Errorf("%w: rotated track has not been set", ErrPrecondition)
	}
	return t.rotated, nil
}

// Histogram returns a copy of the reference histogram, or nil before the first
// selection.
func (t *Tracker) Histogram() *vision.Histogram {
	return t.hist.Clone()
}
