// Package vision defines the image buffers and the primitive operations the tracker
// is built on. Implementations live in the native and cv subpackages.
package vision

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// Image is an 8-bit, row-major, channel-interleaved image buffer.
// Three-channel images are stored in BGR order.
type Image struct {
	Width    int
	Height   int
	Channels int
	Pix      []uint8
}

// NewImage allocates a zeroed image.
func NewImage(width, height, channels int) *Image {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return &Image{
		Width:    width,
		Height:   height,
		Channels: channels,
		Pix:      make([]uint8, width*height*channels),
	}
}

// Empty reports whether the image has no pixels.
func (m *Image) Empty() bool {
	return m == nil || m.Width == 0 || m.Height == 0 || len(m.Pix) == 0
}

// Bounds returns the rectangle (0,0)-(Width,Height).
func (m *Image) Bounds() image.Rectangle {
	if m == nil {
		return image.Rectangle{}
	}
	return image.Rect(0, 0, m.Width, m.Height)
}

// Offset returns the index of channel c of pixel (x, y) in Pix.
func (m *Image) Offset(x, y, c int) int {
	return (y*m.Width+x)*m.Channels + c
}

// Pixel returns channel c of pixel (x, y).
func (m *Image) Pixel(x, y, c int) uint8 {
	return m.Pix[m.Offset(x, y, c)]
}

// SetPixel sets channel c of pixel (x, y).
func (m *Image) SetPixel(x, y, c int, v uint8) {
	m.Pix[m.Offset(x, y, c)] = v
}

// Clone returns a deep copy of the image.
func (m *Image) Clone() *Image {
	if m == nil {
		return nil
	}
	pix := make([]uint8, len(m.Pix))
	copy(pix, m.Pix)
	return &Image{Width: m.Width, Height: m.Height, Channels: m.Channels, Pix: pix}
}

// SameSize reports whether two images have identical dimensions.
func (m *Image) SameSize(o *Image) bool {
	return m != nil && o != nil && m.Width == o.Width && m.Height == o.Height
}

// Fill sets every pixel inside r (clipped to the image) to the given channel values.
func (m *Image) Fill(r image.Rectangle, values ...uint8) {
	r = r.Intersect(m.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			for c := 0; c < m.Channels && c < len(values); c++ {
				m.SetPixel(x, y, c, values[c])
			}
		}
	}
}

// CountNonZero returns the number of pixels whose first channel is non-zero.
func (m *Image) CountNonZero() int {
	if m.Empty() {
		return 0
	}
	n := 0
	for i := 0; i < len(m.Pix); i += m.Channels {
		if m.Pix[i] != 0 {
			n++
		}
	}
	return n
}

// Gray converts a single-channel image into an *image.Gray.
func (m *Image) Gray() *image.Gray {
	g := image.NewGray(m.Bounds())
	if m.Empty() || m.Channels != 1 {
		return g
	}
	copy(g.Pix, m.Pix)
	return g
}

// FromImage converts an arbitrary image into a BGR Image. When width is positive and
// differs from the source width, the image is scaled preserving its aspect ratio.
func FromImage(src image.Image, width int) *Image {
	b := src.Bounds()
	dstW, dstH := b.Dx(), b.Dy()
	if width > 0 && width != dstW && dstW > 0 {
		dstH = dstH * width / dstW
		dstW = width
	}

	rgba := image.NewRGBA(image.Rect(0, 0, dstW, dstH))
	if dstW == b.Dx() && dstH == b.Dy() {
		draw.Draw(rgba, rgba.Bounds(), src, b.Min, draw.Src)
	} else {
		draw.ApproxBiLinear.Scale(rgba, rgba.Bounds(), src, b, draw.Src, nil)
	}

	out := NewImage(dstW, dstH, 3)
	for y := 0; y < dstH; y++ {
		for x := 0; x < dstW; x++ {
			c := rgba.RGBAAt(x, y)
			i := out.Offset(x, y, 0)
			out.Pix[i] = c.B
			out.Pix[i+1] = c.G
			out.Pix[i+2] = c.R
		}
	}
	return out
}

// ToRGBA converts a BGR or single-channel image into an *image.RGBA.
func (m *Image) ToRGBA() *image.RGBA {
	out := image.NewRGBA(m.Bounds())
	if m.Empty() {
		return out
	}
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			if m.Channels == 1 {
				v := m.Pixel(x, y, 0)
				out.SetRGBA(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
				continue
			}
			out.SetRGBA(x, y, color.RGBA{
				R: m.Pixel(x, y, 2),
				G: m.Pixel(x, y, 1),
				B: m.Pixel(x, y, 0),
				A: 255,
			})
		}
	}
	return out
}
