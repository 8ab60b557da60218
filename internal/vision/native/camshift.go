package native

import (
	"errors"
	"image"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/ayusman/camtrack/internal/vision"
)

// camShiftTolerance is how far the converged mean-shift window is grown on each side
// before the orientation is measured.
const camShiftTolerance = 10

// moments holds the raw and central image moments of a window, weighted by pixel
// intensity.
type moments struct {
	m00, m10, m01    float64
	mu20, mu11, mu02 float64
}

func windowMoments(src *vision.Image, r image.Rectangle) moments {
	var m moments
	for y := r.Min.Y; y < r.Max.Y; y++ {
		row := y * src.Width
		for x := r.Min.X; x < r.Max.X; x++ {
			v := float64(src.Pix[row+x])
			if v == 0 {
				continue
			}
			lx, ly := float64(x-r.Min.X), float64(y-r.Min.Y)
			m.m00 += v
			m.m10 += v * lx
			m.m01 += v * ly
		}
	}
	if m.m00 < math.SmallestNonzeroFloat64 {
		return m
	}

	cx, cy := m.m10/m.m00, m.m01/m.m00
	for y := r.Min.Y; y < r.Max.Y; y++ {
		row := y * src.Width
		for x := r.Min.X; x < r.Max.X; x++ {
			v := float64(src.Pix[row+x])
			if v == 0 {
				continue
			}
			dx, dy := float64(x-r.Min.X)-cx, float64(y-r.Min.Y)-cy
			m.mu20 += v * dx * dx
			m.mu11 += v * dx * dy
			m.mu02 += v * dy * dy
		}
	}
	return m
}

func round(v float64) int {
	return int(math.RoundToEven(v))
}

// meanShift moves window towards the density peak of prob and returns the final
// window.
func meanShift(prob *vision.Image, window image.Rectangle, crit vision.TermCriteria) image.Rectangle {
	size := prob.Bounds()
	eps := round(crit.Epsilon * crit.Epsilon)
	iters := crit.MaxIter
	if iters <= 0 {
		iters = 100
	}

	halfW, halfH := float64(window.Dx())*0.5, float64(window.Dy())*0.5
	cur := window
	for i := 0; i < iters; i++ {
		cur = cur.Intersect(size)
		if cur.Empty() {
			cur = image.Rect(size.Dx()/2, size.Dy()/2, size.Dx()/2, size.Dy()/2)
		}
		if cur.Dx() < 1 {
			cur.Max.X = cur.Min.X + 1
		}
		if cur.Dy() < 1 {
			cur.Max.Y = cur.Min.Y + 1
		}

		m := windowMoments(prob, cur)
		if math.Abs(m.m00) < math.SmallestNonzeroFloat64 {
			break
		}

		dx := round(m.m10/m.m00 - halfW)
		dy := round(m.m01/m.m00 - halfH)
		nx := clamp(cur.Min.X+dx, 0, size.Dx()-cur.Dx())
		ny := clamp(cur.Min.Y+dy, 0, size.Dy()-cur.Dy())
		dx, dy = nx-cur.Min.X, ny-cur.Min.Y
		cur = cur.Add(image.Pt(dx, dy))

		if dx*dx+dy*dy < eps {
			break
		}
	}
	return cur
}

// principalAxes returns the variances along the major and minor axes of the
// normalized second-moment matrix.
func principalAxes(a, b, c float64) (major, minor float64, err error) {
	cov := mat.NewSymDense(2, []float64{a, b, b, c})
	var eig mat.EigenSym
	if ok := eig.Factorize(cov, false); !ok {
		return 0, 0, errors.New("eigen decomposition failed")
	}
	vals := eig.Values(nil)
	return math.Max(vals[1], 0), math.Max(vals[0], 0), nil
}

// CamShift runs mean shift and then fits an oriented rectangle to the density inside
// the converged window.
func (o *Ops) CamShift(prob *vision.Image, window image.Rectangle, crit vision.TermCriteria) (vision.RotatedRect, error) {
	if err := checkImage(prob, 1); err != nil {
		return vision.RotatedRect{}, err
	}
	if window.Dx() <= 0 || window.Dy() <= 0 {
		return vision.RotatedRect{}, vision.ErrEmptyWindow
	}

	size := prob.Bounds()
	win := meanShift(prob, window, crit)

	win.Min.X = max(win.Min.X-camShiftTolerance, 0)
	win.Min.Y = max(win.Min.Y-camShiftTolerance, 0)
	win.Max.X = min(win.Max.X+camShiftTolerance, size.Max.X)
	win.Max.Y = min(win.Max.Y+camShiftTolerance, size.Max.Y)

	m := windowMoments(prob, win)
	if math.Abs(m.m00) < math.SmallestNonzeroFloat64 {
		return vision.RotatedRect{}, nil
	}

	inv := 1 / m.m00
	xc := round(m.m10*inv + float64(win.Min.X))
	yc := round(m.m01*inv + float64(win.Min.Y))

	a, b, c := m.mu20*inv, m.mu11*inv, m.mu02*inv
	major, minor, err := principalAxes(a, b, c)
	if err != nil {
		return vision.RotatedRect{}, err
	}

	square := math.Sqrt(4*b*b + (a-c)*(a-c))
	theta := math.Atan2(2*b, a-c+square)
	cs, sn := math.Cos(theta), math.Sin(theta)

	length := math.Sqrt(major) * 4
	width := math.Sqrt(minor) * 4

	ww := max(round(math.Abs(length*cs)), round(math.Abs(width*sn))) + 2
	ww = min(ww, (size.Dx()-xc)*2)
	wh := max(round(math.Abs(length*sn)), round(math.Abs(width*cs))) + 2
	wh = min(wh, (size.Dy()-yc)*2)

	x := max(0, xc-ww/2)
	y := max(0, yc-wh/2)
	ww = min(size.Dx()-x, ww)
	wh = min(size.Dy()-y, wh)

	angle := (math.Pi/2 + theta) * 180 / math.Pi
	for angle < 0 {
		angle += 360
	}
	for angle >= 360 {
		angle -= 360
	}
	if angle >= 180 {
		angle -= 180
	}

	return vision.RotatedRect{
		Center: vision.Point2f{X: float64(x) + float64(ww)*0.5, Y: float64(y) + float64(wh)*0.5},
		Size:   vision.Size2f{Width: width, Height: length},
		Angle:  angle,
	}, nil
}
