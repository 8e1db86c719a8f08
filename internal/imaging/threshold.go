package imaging

import (
	"image"
	"math"
)

// OtsuLevel returns the global threshold that maximizes between-class
// variance of g's histogram.
func OtsuLevel(g *image.Gray) uint8 {
	var hist [256]float64
	w, h := g.Rect.Dx(), g.Rect.Dy()
	for y := 0; y < h; y++ {
		for _, v := range g.Pix[y*g.Stride : y*g.Stride+w] {
			hist[v]++
		}
	}
	total := float64(w * h)
	var sumAll float64
	for i, c := range hist {
		sumAll += float64(i) * c
	}

	var (
		best    uint8
		bestVar = -1.0
		wB, sB  float64
	)
	for t := 0; t < 256; t++ {
		wB += hist[t]
		if wB == 0 {
			continue
		}
		wF := total - wB
		if wF == 0 {
			break
		}
		sB += float64(t) * hist[t]
		mB := sB / wB
		mF := (sumAll - sB) / wF
		between := wB * wF * (mB - mF) * (mB - mF)
		if between > bestVar {
			bestVar = between
			best = uint8(t)
		}
	}
	return best
}

// Otsu binarizes g at its Otsu level: pixels above the level become 255.
func Otsu(g *image.Gray) *image.Gray {
	return threshold(g, OtsuLevel(g))
}

func threshold(g *image.Gray, t uint8) *image.Gray {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	out := newGrayLike(g)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if g.Pix[y*g.Stride+x] > t {
				out.Pix[y*out.Stride+x] = 255
			}
		}
	}
	return out
}

// AdaptiveThreshold binarizes each pixel against the Gaussian-weighted mean
// of its block x block neighbourhood minus c.
func AdaptiveThreshold(g *image.Gray, block int, c float64) *image.Gray {
	if block < 3 {
		block = 3
	}
	if block%2 == 0 {
		block++
	}
	kernel := gaussianKernel(block)
	r := block / 2
	w, h := g.Rect.Dx(), g.Rect.Dy()

	// separable blur: rows then columns
	tmp := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var acc float64
			for k := -r; k <= r; k++ {
				acc += kernel[k+r] * float64(at(g, x+k, y))
			}
			tmp[y*w+x] = acc
		}
	}
	out := newGrayLike(g)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var mean float64
			for k := -r; k <= r; k++ {
				yy := clampInt(y+k, 0, h-1)
				mean += kernel[k+r] * tmp[yy*w+x]
			}
			if float64(g.Pix[y*g.Stride+x]) > mean-c {
				out.Pix[y*out.Stride+x] = 255
			}
		}
	}
	return out
}

// gaussianKernel returns normalized 1-D weights with the sigma conventionally
// derived from the aperture size.
func gaussianKernel(size int) []float64 {
	sigma := 0.3*(float64(size-1)*0.5-1) + 0.8
	r := size / 2
	k := make([]float64, size)
	var sum float64
	for i := range k {
		d := float64(i - r)
		k[i] = math.Exp(-d * d / (2 * sigma * sigma))
		sum += k[i]
	}
	for i := range k {
		k[i] /= sum
	}
	return k
}

// Close is a morphological closing (dilate, then erode) with a 2x2 square.
// The erosion uses the reflected element so the pair does not shift the image.
func Close(g *image.Gray) *image.Gray {
	return morph(morph(g, -1, true), 1, false)
}

// morph applies a 2x2 max (dilate) or min (erode) over offsets {0, d} in both axes.
func morph(g *image.Gray, d int, dilate bool) *image.Gray {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	out := newGrayLike(g)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := at(g, x, y)
			for _, p := range [3][2]int{{d, 0}, {0, d}, {d, d}} {
				n := at(g, x+p[0], y+p[1])
				if (dilate && n > v) || (!dilate && n < v) {
					v = n
				}
			}
			out.Pix[y*out.Stride+x] = v
		}
	}
	return out
}
