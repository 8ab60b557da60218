package native

import (
	"fmt"

	"github.com/ayusman/camtrack/internal/vision"
)

// MedianBlur filters with a ksize x ksize window, replicating border pixels.
func (o *Ops) MedianBlur(src *vision.Image, ksize int) (*vision.Image, error) {
	if err := checkImage(src, 1); err != nil {
		return nil, err
	}
	if ksize <= 1 || ksize%2 == 0 {
		return nil, fmt.Errorf("%w: median %d", vision.ErrInvalidKernel, ksize)
	}

	r := ksize / 2
	out := vision.NewImage(src.Width, src.Height, 1)
	var counts [256]int
	half := ksize * ksize / 2

	for y := 0; y < src.Height; y++ {
		for x := 0; x < src.Width; x++ {
			counts = [256]int{}
			for dy := -r; dy <= r; dy++ {
				yy := clamp(y+dy, 0, src.Height-1)
				for dx := -r; dx <= r; dx++ {
					xx := clamp(x+dx, 0, src.Width-1)
					counts[src.Pix[yy*src.Width+xx]]++
				}
			}
			seen := 0
			for v := 0; v < 256; v++ {
				seen += counts[v]
				if seen > half {
					out.Pix[y*src.Width+x] = uint8(v)
					break
				}
			}
		}
	}
	return out, nil
}

// Erode replaces each pixel with the minimum under the kernel. Pixels outside the
// image do not take part.
func (o *Ops) Erode(src *vision.Image, k vision.Kernel) (*vision.Image, error) {
	return morph(src, k, func(acc, v uint8) uint8 {
		if v < acc {
			return v
		}
		return acc
	}, 255)
}

// Dilate replaces each pixel with the maximum under the kernel. Pixels outside the
// image do not take part.
func (o *Ops) Dilate(src *vision.Image, k vision.Kernel) (*vision.Image, error) {
	return morph(src, k, func(acc, v uint8) uint8 {
		if v > acc {
			return v
		}
		return acc
	}, 0)
}

func morph(src *vision.Image, k vision.Kernel, pick func(acc, v uint8) uint8, init uint8) (*vision.Image, error) {
	if err := checkImage(src, 1); err != nil {
		return nil, err
	}
	if k.Width <= 0 || k.Height <= 0 || len(k.Data) != k.Width*k.Height {
		return nil, fmt.Errorf("%w: %dx%d", vision.ErrInvalidKernel, k.Width, k.Height)
	}

	ax, ay := k.Width/2, k.Height/2
	out := vision.NewImage(src.Width, src.Height, 1)
	for y := 0; y < src.Height; y++ {
		for x := 0; x < src.Width; x++ {
			acc := init
			for ky := 0; ky < k.Height; ky++ {
				yy := y + ky - ay
				if yy < 0 || yy >= src.Height {
					continue
				}
				for kx := 0; kx < k.Width; kx++ {
					xx := x + kx - ax
					if xx < 0 || xx >= src.Width || !k.On(kx, ky) {
						continue
					}
					acc = pick(acc, src.Pix[yy*src.Width+xx])
				}
			}
			out.Pix[y*src.Width+x] = acc
		}
	}
	return out, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
