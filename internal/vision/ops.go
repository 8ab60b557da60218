package vision

import (
	"errors"
	"image"
)

// Errors returned by Ops implementations.
var (
	ErrEmptyImage    = errors.New("image is empty")
	ErrChannels      = errors.New("unexpected channel count")
	ErrSizeMismatch  = errors.New("image sizes differ")
	ErrEmptyWindow   = errors.New("search window has non-positive size")
	ErrInvalidKernel = errors.New("invalid kernel size")
	ErrHistogramSize = errors.New("histogram too large")
)

// Ops defines the image-processing primitives the tracker delegates to.
// Every method returns newly allocated buffers and leaves its inputs untouched.
type Ops interface {
	// BGRToHSV converts a 3-channel BGR image into 8-bit HSV (hue in [0,180]).
	BGRToHSV(src *Image) (*Image, error)

	// InRange returns a single-channel mask that is 255 where every channel of src
	// lies within [lo, hi] and 0 elsewhere.
	InRange(src *Image, lo, hi Scalar) (*Image, error)

	// CalcHist counts the pixels of src inside roi whose mask value is non-zero.
	CalcHist(src, mask *Image, roi image.Rectangle, bins [3]int, ranges [3]Range) (*Histogram, error)

	// BackProject replaces every pixel of src with the (saturated) count of the
	// histogram bin its channel values fall into.
	BackProject(src *Image, hist *Histogram) (*Image, error)

	// BitwiseAnd combines two single-channel images of equal size.
	BitwiseAnd(a, b *Image) (*Image, error)

	// Threshold sets pixels greater than thresh to maxVal and all others to 0.
	Threshold(src *Image, thresh, maxVal uint8) (*Image, error)

	// MedianBlur applies a ksize x ksize median filter.
	MedianBlur(src *Image, ksize int) (*Image, error)

	// Erode applies one erosion pass with the given structuring element.
	Erode(src *Image, k Kernel) (*Image, error)

	// Dilate applies one dilation pass with the given structuring element.
	Dilate(src *Image, k Kernel) (*Image, error)

	// CamShift runs the continuously adaptive mean-shift search over prob starting at
	// window and returns the oriented result.
	CamShift(prob *Image, window image.Rectangle, crit TermCriteria) (RotatedRect, error)
}
