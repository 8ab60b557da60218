package vision

import (
	"fmt"
	"image"
	"math"
)

// Range is a half-open interval [Min, Max) of channel values.
type Range struct {
	Min float64
	Max float64
}

// Scalar holds one value per channel.
type Scalar [3]float64

// Histogram is a dense three-dimensional table of pixel counts.
// Counts is indexed by ((i*Bins[1])+j)*Bins[2]+k.
type Histogram struct {
	Bins   [3]int
	Ranges [3]Range
	Counts []float32
}

// MaxHistogramCells bounds the number of cells a histogram may hold.
const MaxHistogramCells = 1 << 24

// HistogramCells returns the number of cells for bins. A zero bin count on any
// channel yields zero cells. Products above MaxHistogramCells are rejected.
func HistogramCells(bins [3]int) (int, error) {
	for _, b := range bins {
		if b <= 0 {
			return 0, nil
		}
	}
	n := 1
	for _, b := range bins {
		if n > MaxHistogramCells/b {
			return 0, fmt.Errorf("%w: bins %v exceed %d cells", ErrHistogramSize, bins, MaxHistogramCells)
		}
		n *= b
	}
	return n, nil
}

// NewHistogram allocates a zeroed histogram. A zero bin count on any channel
// produces an empty histogram.
func NewHistogram(bins [3]int, ranges [3]Range) (*Histogram, error) {
	n, err := HistogramCells(bins)
	if err != nil {
		return nil, err
	}
	return &Histogram{Bins: bins, Ranges: ranges, Counts: make([]float32, n)}, nil
}

// Empty reports whether the histogram has no cells.
func (h *Histogram) Empty() bool {
	return h == nil || len(h.Counts) == 0
}

// Index returns the flat offset of cell (i, j, k).
func (h *Histogram) Index(i, j, k int) int {
	return (i*h.Bins[1]+j)*h.Bins[2] + k
}

// At returns the count stored in cell (i, j, k).
func (h *Histogram) At(i, j, k int) float32 {
	return h.Counts[h.Index(i, j, k)]
}

// Bin maps a channel value to its bin on channel ch, reporting false when the
// value falls outside the channel range.
func (h *Histogram) Bin(ch int, v uint8) (int, bool) {
	r := h.Ranges[ch]
	n := h.Bins[ch]
	if n <= 0 || r.Max <= r.Min {
		return 0, false
	}
	scale := float64(n) / (r.Max - r.Min)
	idx := int(math.Floor(float64(v)*scale - r.Min*scale))
	if idx < 0 || idx >= n {
		return 0, false
	}
	return idx, true
}

// Total returns the sum of all counts.
func (h *Histogram) Total() float64 {
	var sum float64
	for _, c := range h.Counts {
		sum += float64(c)
	}
	return sum
}

// Clone returns a deep copy of the histogram.
func (h *Histogram) Clone() *Histogram {
	if h == nil {
		return nil
	}
	counts := make([]float32, len(h.Counts))
	copy(counts, h.Counts)
	return &Histogram{Bins: h.Bins, Ranges: h.Ranges, Counts: counts}
}

// Point2f is a point with sub-pixel coordinates.
type Point2f struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Size2f is a width/height pair with sub-pixel precision.
type Size2f struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// RotatedRect is a rectangle described by its center, size and a rotation angle in
// degrees.
type RotatedRect struct {
	Center Point2f `json:"center"`
	Size   Size2f  `json:"size"`
	Angle  float64 `json:"angle"`
}

// Points returns the four corners of the rectangle.
func (r RotatedRect) Points() [4]Point2f {
	rad := r.Angle * math.Pi / 180
	b := math.Cos(rad) * 0.5
	a := math.Sin(rad) * 0.5

	var pts [4]Point2f
	pts[0].X = r.Center.X - a*r.Size.Height - b*r.Size.Width
	pts[0].Y = r.Center.Y + b*r.Size.Height - a*r.Size.Width
	pts[1].X = r.Center.X + a*r.Size.Height - b*r.Size.Width
	pts[1].Y = r.Center.Y - b*r.Size.Height - a*r.Size.Width
	pts[2].X = 2*r.Center.X - pts[0].X
	pts[2].Y = 2*r.Center.Y - pts[0].Y
	pts[3].X = 2*r.Center.X - pts[1].X
	pts[3].Y = 2*r.Center.Y - pts[1].Y
	return pts
}

// BoundingRect returns the smallest integer rectangle containing every corner.
// The right and bottom edges are inclusive of the last covered pixel.
func (r RotatedRect) BoundingRect() image.Rectangle {
	pts := r.Points()
	minX, minY := pts[0].X, pts[0].Y
	maxX, maxY := pts[0].X, pts[0].Y
	for _, p := range pts[1:] {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	return image.Rect(
		int(math.Floor(minX)),
		int(math.Floor(minY)),
		int(math.Ceil(maxX))+1,
		int(math.Ceil(maxY))+1,
	)
}

// TermCriteria bounds an iterative search.
type TermCriteria struct {
	MaxIter int
	Epsilon float64
}

// Kernel is a binary structuring element; non-zero entries are part of the shape.
// The anchor is the kernel center.
type Kernel struct {
	Width  int
	Height int
	Data   []uint8
}

// On reports whether kernel cell (x, y) is set.
func (k Kernel) On(x, y int) bool {
	return k.Data[y*k.Width+x] != 0
}

// CrossKernel returns the 3x3 plus-shaped element used for erosion.
func CrossKernel() Kernel {
	return Kernel{Width: 3, Height: 3, Data: []uint8{
		0, 1, 0,
		1, 1, 1,
		0, 1, 0,
	}}
}

// DiamondKernel returns the 7x7 diamond-shaped element used for dilation.
func DiamondKernel() Kernel {
	return Kernel{Width: 7, Height: 7, Data: []uint8{
		0, 0, 0, 1, 0, 0, 0,
		0, 0, 1, 1, 1, 0, 0,
		0, 1, 1, 1, 1, 1, 0,
		1, 1, 1, 1, 1, 1, 1,
		0, 1, 1, 1, 1, 1, 0,
		0, 0, 1, 1, 1, 0, 0,
		0, 0, 0, 1, 0, 0, 0,
	}}
}
