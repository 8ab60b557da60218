// Package cv implements vision.Ops on top of OpenCV using GoCV.
package cv

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/ayusman/camtrack/internal/vision"
)

// Ops is the OpenCV-backed vision backend.
type Ops struct{}

// New returns an OpenCV-backed vision backend.
func New() *Ops {
	return &Ops{}
}

var _ vision.Ops = (*Ops)(nil)

// MatFromImage wraps img in a Mat. The Mat shares memory with img.Pix, so img must
// outlive it. The caller is responsible for closing the returned Mat.
func MatFromImage(img *vision.Image) (gocv.Mat, error) {
	if img.Empty() {
		return gocv.NewMat(), vision.ErrEmptyImage
	}

	var mt gocv.MatType
	switch img.Channels {
	case 1:
		mt = gocv.MatTypeCV8UC1
	case 3:
		mt = gocv.MatTypeCV8UC3
	default:
		return gocv.NewMat(), fmt.Errorf("%w: %d", vision.ErrChannels, img.Channels)
	}
	return gocv.NewMatFromBytes(img.Height, img.Width, mt, img.Pix)
}

// ImageFromMat copies an 8-bit one- or three-channel Mat into an Image.
func ImageFromMat(m gocv.Mat) (*vision.Image, error) {
	if m.Empty() {
		return nil, vision.ErrEmptyImage
	}

	switch m.Type() {
	case gocv.MatTypeCV8UC1, gocv.MatTypeCV8UC3:
	default:
		return nil, fmt.Errorf("%w: unsupported mat type %v", vision.ErrChannels, m.Type())
	}

	src := m
	if !m.IsContinuous() {
		src = m.Clone()
		defer src.Close()
	}

	return &vision.Image{
		Width:    src.Cols(),
		Height:   src.Rows(),
		Channels: src.Channels(),
		Pix:      src.ToBytes(),
	}, nil
}

// EncodeJPEG encodes img as JPEG.
func EncodeJPEG(img *vision.Image) ([]byte, error) {
	mat, err := MatFromImage(img)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	buf, err := gocv.IMEncode(".jpg", mat)
	if err != nil {
		return nil, err
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}

// apply wraps src, runs fn into a fresh Mat and copies the result back out.
func apply(src *vision.Image, fn func(src gocv.Mat, dst *gocv.Mat)) (*vision.Image, error) {
	in, err := MatFromImage(src)
	if err != nil {
		return nil, err
	}
	defer in.Close()

	dst := gocv.NewMat()
	defer dst.Close()

	fn(in, &dst)
	return ImageFromMat(dst)
}

// BGRToHSV converts with cv::COLOR_BGR2HSV.
func (o *Ops) BGRToHSV(src *vision.Image) (*vision.Image, error) {
	if src.Channels != 3 {
		return nil, fmt.Errorf("%w: got %d, want 3", vision.ErrChannels, src.Channels)
	}
	return apply(src, func(in gocv.Mat, dst *gocv.Mat) {
		gocv.CvtColor(in, dst, gocv.ColorBGRToHSV)
	})
}

// InRange builds a mask with cv::inRange.
func (o *Ops) InRange(src *vision.Image, lo, hi vision.Scalar) (*vision.Image, error) {
	return apply(src, func(in gocv.Mat, dst *gocv.Mat) {
		gocv.InRangeWithScalar(in,
			gocv.NewScalar(lo[0], lo[1], lo[2], 0),
			gocv.NewScalar(hi[0], hi[1], hi[2], 0),
			dst)
	})
}

func flatRanges(ranges [3]vision.Range) []float64 {
	return []float64{
		ranges[0].Min, ranges[0].Max,
		ranges[1].Min, ranges[1].Max,
		ranges[2].Min, ranges[2].Max,
	}
}

// CalcHist computes the histogram of the roi with cv::calcHist.
func (o *Ops) CalcHist(src, mask *vision.Image, roi image.Rectangle, bins [3]int, ranges [3]vision.Range) (*vision.Histogram, error) {
	hist, err := vision.NewHistogram(bins, ranges)
	if err != nil {
		return nil, err
	}
	if hist.Empty() {
		return hist, nil
	}
	if src.Channels != 3 {
		return nil, fmt.Errorf("%w: got %d, want 3", vision.ErrChannels, src.Channels)
	}
	roi = roi.Intersect(src.Bounds())
	if roi.Empty() {
		return hist, nil
	}

	in, err := MatFromImage(src)
	if err != nil {
		return nil, err
	}
	defer in.Close()
	region := in.Region(roi)
	defer region.Close()

	var maskRegion gocv.Mat
	if mask != nil {
		if !mask.SameSize(src) {
			return nil, vision.ErrSizeMismatch
		}
		m, err := MatFromImage(mask)
		if err != nil {
			return nil, err
		}
		defer m.Close()
		maskRegion = m.Region(roi)
	} else {
		maskRegion = gocv.NewMat()
	}
	defer maskRegion.Close()

	out := gocv.NewMat()
	defer out.Close()
	gocv.CalcHist([]gocv.Mat{region}, []int{0, 1, 2}, maskRegion, &out,
		[]int{bins[0], bins[1], bins[2]}, flatRanges(ranges), false)

	for i := 0; i < bins[0]; i++ {
		for j := 0; j < bins[1]; j++ {
			for k := 0; k < bins[2]; k++ {
				hist.Counts[hist.Index(i, j, k)] = out.GetFloatAt3(i, j, k)
			}
		}
	}
	return hist, nil
}

// BackProject computes the density map with cv::calcBackProject.
func (o *Ops) BackProject(src *vision.Image, hist *vision.Histogram) (*vision.Image, error) {
	if src.Empty() {
		return nil, vision.ErrEmptyImage
	}
	if src.Channels != 3 {
		return nil, fmt.Errorf("%w: got %d, want 3", vision.ErrChannels, src.Channels)
	}
	if hist.Empty() {
		return vision.NewImage(src.Width, src.Height, 1), nil
	}

	hm := gocv.NewMatWithSizes([]int{hist.Bins[0], hist.Bins[1], hist.Bins[2]}, gocv.MatTypeCV32F)
	defer hm.Close()
	for i := 0; i < hist.Bins[0]; i++ {
		for j := 0; j < hist.Bins[1]; j++ {
			for k := 0; k < hist.Bins[2]; k++ {
				hm.SetFloatAt3(i, j, k, hist.At(i, j, k))
			}
		}
	}

	return apply(src, func(in gocv.Mat, dst *gocv.Mat) {
		gocv.CalcBackProject([]gocv.Mat{in}, []int{0, 1, 2}, hm, dst, flatRanges(hist.Ranges), true)
	})
}

// BitwiseAnd combines two masks with cv::bitwise_and.
func (o *Ops) BitwiseAnd(a, b *vision.Image) (*vision.Image, error) {
	if !a.SameSize(b) || a.Channels != b.Channels {
		return nil, vision.ErrSizeMismatch
	}
	other, err := MatFromImage(b)
	if err != nil {
		return nil, err
	}
	defer other.Close()

	return apply(a, func(in gocv.Mat, dst *gocv.Mat) {
		gocv.BitwiseAnd(in, other, dst)
	})
}

// Threshold applies cv::THRESH_BINARY.
func (o *Ops) Threshold(src *vision.Image, thresh, maxVal uint8) (*vision.Image, error) {
	return apply(src, func(in gocv.Mat, dst *gocv.Mat) {
		gocv.Threshold(in, dst, float32(thresh), float32(maxVal), gocv.ThresholdBinary)
	})
}

// MedianBlur applies cv::medianBlur.
func (o *Ops) MedianBlur(src *vision.Image, ksize int) (*vision.Image, error) {
	if ksize <= 1 || ksize%2 == 0 {
		return nil, fmt.Errorf("%w: median %d", vision.ErrInvalidKernel, ksize)
	}
	return apply(src, func(in gocv.Mat, dst *gocv.Mat) {
		gocv.MedianBlur(in, dst, ksize)
	})
}

func kernelMat(k vision.Kernel) (gocv.Mat, error) {
	if k.Width <= 0 || k.Height <= 0 || len(k.Data) != k.Width*k.Height {
		return gocv.NewMat(), fmt.Errorf("%w: %dx%d", vision.ErrInvalidKernel, k.Width, k.Height)
	}
	return gocv.NewMatFromBytes(k.Height, k.Width, gocv.MatTypeCV8UC1, k.Data)
}

// Erode applies cv::erode.
func (o *Ops) Erode(src *vision.Image, k vision.Kernel) (*vision.Image, error) {
	km, err := kernelMat(k)
	if err != nil {
		return nil, err
	}
	defer km.Close()

	return apply(src, func(in gocv.Mat, dst *gocv.Mat) {
		gocv.Erode(in, dst, km)
	})
}

// Dilate applies cv::dilate.
func (o *Ops) Dilate(src *vision.Image, k vision.Kernel) (*vision.Image, error) {
	km, err := kernelMat(k)
	if err != nil {
		return nil, err
	}
	defer km.Close()

	return apply(src, func(in gocv.Mat, dst *gocv.Mat) {
		gocv.Dilate(in, dst, km)
	})
}

// CamShift runs cv::CamShift. OpenCV reports the result in integer pixels.
func (o *Ops) CamShift(prob *vision.Image, window image.Rectangle, crit vision.TermCriteria) (vision.RotatedRect, error) {
	if window.Dx() <= 0 || window.Dy() <= 0 {
		return vision.RotatedRect{}, vision.ErrEmptyWindow
	}
	in, err := MatFromImage(prob)
	if err != nil {
		return vision.RotatedRect{}, err
	}
	defer in.Close()

	win := window
	criteria := gocv.NewTermCriteria(gocv.Count|gocv.EPS, crit.MaxIter, crit.Epsilon)
	rr := gocv.CamShift(in, &win, criteria)

	return vision.RotatedRect{
		Center: vision.Point2f{X: float64(rr.Center.X), Y: float64(rr.Center.Y)},
		Size:   vision.Size2f{Width: float64(rr.Width), Height: float64(rr.Height)},
		Angle:  rr.Angle,
	}, nil
}
