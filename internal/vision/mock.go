package vision

import (
	"image"
	"sync"
)

// MockOps is a test implementation of Ops.
// Image operations pass their input through unchanged (single-channel outputs are
// sized like the input), and CamShift returns pre-configured results.
type MockOps struct {
	mu       sync.Mutex
	results  []RotatedRect
	err      error
	calls    map[string]int
	windows  []image.Rectangle
	lastProb *Image
}

// NewMockOps creates a new MockOps instance.
func NewMockOps() *MockOps {
	return &MockOps{calls: make(map[string]int)}
}

// QueueCamShift appends results that successive CamShift calls return in order.
// Once the queue is drained the last result is repeated.
func (m *MockOps) QueueCamShift(results ...RotatedRect) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, results...)
}

// SetError sets the error that every operation returns.
func (m *MockOps) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times the named operation was invoked.
func (m *MockOps) Calls(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[name]
}

// Windows returns the search windows CamShift was called with.
func (m *MockOps) Windows() []image.Rectangle {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]image.Rectangle, len(m.windows))
	copy(out, m.windows)
	return out
}

// LastProb returns the density map most recently passed to CamShift.
func (m *MockOps) LastProb() *Image {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastProb
}

func (m *MockOps) record(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[name]++
	return m.err
}

func (m *MockOps) plane(src *Image) (*Image, error) {
	if src.Empty() {
		return nil, ErrEmptyImage
	}
	out := NewImage(src.Width, src.Height, 1)
	for i := range out.Pix {
		out.Pix[i] = src.Pix[i*src.Channels]
	}
	return out, nil
}

// BGRToHSV returns a copy of src.
func (m *MockOps) BGRToHSV(src *Image) (*Image, error) {
	if err := m.record("BGRToHSV"); err != nil {
		return nil, err
	}
	if src.Empty() {
		return nil, ErrEmptyImage
	}
	return src.Clone(), nil
}

// InRange returns an all-255 mask.
func (m *MockOps) InRange(src *Image, lo, hi Scalar) (*Image, error) {
	if err := m.record("InRange"); err != nil {
		return nil, err
	}
	if src.Empty() {
		return nil, ErrEmptyImage
	}
	out := NewImage(src.Width, src.Height, 1)
	for i := range out.Pix {
		out.Pix[i] = 255
	}
	return out, nil
}

// CalcHist returns a histogram whose first cell holds the roi area.
func (m *MockOps) CalcHist(src, mask *Image, roi image.Rectangle, bins [3]int, ranges [3]Range) (*Histogram, error) {
	if err := m.record("CalcHist"); err != nil {
		return nil, err
	}
	h, err := NewHistogram(bins, ranges)
	if err != nil {
		return nil, err
	}
	if !h.Empty() {
		h.Counts[0] = float32(roi.Dx() * roi.Dy())
	}
	return h, nil
}

// BackProject returns the first channel of src.
func (m *MockOps) BackProject(src *Image, hist *Histogram) (*Image, error) {
	if err := m.record("BackProject"); err != nil {
		return nil, err
	}
	return m.plane(src)
}

// BitwiseAnd returns a copy of a.
func (m *MockOps) BitwiseAnd(a, b *Image) (*Image, error) {
	if err := m.record("BitwiseAnd"); err != nil {
		return nil, err
	}
	if !a.SameSize(b) {
		return nil, ErrSizeMismatch
	}
	return a.Clone(), nil
}

// Threshold returns a copy of src.
func (m *MockOps) Threshold(src *Image, thresh, maxVal uint8) (*Image, error) {
	if err := m.record("Threshold"); err != nil {
		return nil, err
	}
	return src.Clone(), nil
}

// MedianBlur returns a copy of src.
func (m *MockOps) MedianBlur(src *Image, ksize int) (*Image, error) {
	if err := m.record("MedianBlur"); err != nil {
		return nil, err
	}
	return src.Clone(), nil
}

// Erode returns a copy of src.
func (m *MockOps) Erode(src *Image, k Kernel) (*Image, error) {
	if err := m.record("Erode"); err != nil {
		return nil, err
	}
	return src.Clone(), nil
}

// Dilate returns a copy of src.
func (m *MockOps) Dilate(src *Image, k Kernel) (*Image, error) {
	if err := m.record("Dilate"); err != nil {
		return nil, err
	}
	return src.Clone(), nil
}

// CamShift returns the next queued result, or a rectangle matching window when the
// queue is empty.
func (m *MockOps) CamShift(prob *Image, window image.Rectangle, crit TermCriteria) (RotatedRect, error) {
	if err := m.record("CamShift"); err != nil {
		return RotatedRect{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.windows = append(m.windows, window)
	m.lastProb = prob

	if len(m.results) == 0 {
		return RotatedRect{
			Center: Point2f{
				X: float64(window.Min.X) + float64(window.Dx())/2,
				Y: float64(window.Min.Y) + float64(window.Dy())/2,
			},
			Size: Size2f{Width: float64(window.Dx()), Height: float64(window.Dy())},
		}, nil
	}

	r := m.results[0]
	if len(m.results) > 1 {
		m.results = m.results[1:]
	}
	return r, nil
}
