package imaging

import (
	"image"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// minBandRows keeps row bands large enough that the template overlap stays small.
const minBandRows = 32

// DenoiseNLM applies non-local-means denoising. Every pixel becomes the
// weighted mean of the pixels in its search x search window, each weighted
// by how closely its template x template patch matches the pixel's own
// patch; h sets the decay.
//
// Patch distances are computed per search offset from a squared-difference
// plane with running column sums, so the cost is O(w*h*search^2)
// independent of the template size. Rows are split into bands that are
// denoised concurrently; every pixel still sums its offsets in the same
// order, so the output does not depend on the band count.
func DenoiseNLM(g *image.Gray, h float64, template, search int) *image.Gray {
	tr, sr := template/2, search/2
	w, ht := g.Rect.Dx(), g.Rect.Dy()
	if h <= 0 || tr < 1 || sr < 1 || w == 0 || ht == 0 {
		out := newGrayLike(g)
		copy(out.Pix, g.Pix)
		return out
	}

	// replicate-padded copy so every patch read is in range
	pad := tr + sr
	pw, ph := w+2*pad, ht+2*pad
	src := make([]int32, pw*ph)
	for y := 0; y < ph; y++ {
		for x := 0; x < pw; x++ {
			src[y*pw+x] = int32(at(g, x-pad, y-pad))
		}
	}

	// exp lookup indexed by mean squared patch difference
	weights := make([]float64, 255*255+1)
	inv := 1 / (h * h)
	for d := range weights {
		weights[d] = math.Exp(-float64(d) * inv)
	}

	nlm := nlmPlane{
		src:     src,
		pw:      pw,
		pad:     pad,
		w:       w,
		ht:      ht,
		tr:      tr,
		sr:      sr,
		area:    float64((2*tr + 1) * (2*tr + 1)),
		weights: weights,
		out:     newGrayLike(g),
	}

	bands := runtime.GOMAXPROCS(0)
	rows := max(minBandRows, (ht+bands-1)/bands)
	var eg errgroup.Group
	for y0 := 0; y0 < ht; y0 += rows {
		y1 := min(y0+rows, ht)
		eg.Go(func() error {
			nlm.band(y0, y1)
			return nil
		})
	}
	_ = eg.Wait()
	return nlm.out
}

type nlmPlane struct {
	src     []int32
	pw, pad int
	w, ht   int
	tr, sr  int
	area    float64
	weights []float64
	out     *image.Gray
}

// band denoises output rows [y0, y1).
func (p *nlmPlane) band(y0, y1 int) {
	w, tr, pw, pad := p.w, p.tr, p.pw, p.pad
	bh := y1 - y0
	sw := w + 2*tr
	sh := bh + 2*tr
	span := 2*tr + 1

	num := make([]float64, w*bh)
	den := make([]float64, w*bh)
	sq := make([]int32, sw*sh)
	colSum := make([]int64, sw)

	for dy := -p.sr; dy <= p.sr; dy++ {
		for dx := -p.sr; dx <= p.sr; dx++ {
			// sq[r*sw+c] is the squared difference at image row y0-tr+r, column c-tr
			for r := 0; r < sh; r++ {
				a := p.src[(y0-tr+r+pad)*pw+pad-tr:]
				b := p.src[(y0-tr+r+dy+pad)*pw+pad-tr+dx:]
				row := sq[r*sw : (r+1)*sw]
				for c := range row {
					d := a[c] - b[c]
					row[c] = d * d
				}
			}

			for c := range colSum {
				var s int64
				for r := 0; r < span; r++ {
					s += int64(sq[r*sw+c])
				}
				colSum[c] = s
			}

			for yy := 0; yy < bh; yy++ {
				if yy > 0 {
					add := sq[(yy+2*tr)*sw:]
					sub := sq[(yy-1)*sw:]
					for c := range colSum {
						colSum[c] += int64(add[c]) - int64(sub[c])
					}
				}
				var box int64
				for c := 0; c < span; c++ {
					box += colSum[c]
				}
				shifted := p.src[(y0+yy+dy+pad)*pw+pad+dx:]
				n := num[yy*w : (yy+1)*w]
				dd := den[yy*w : (yy+1)*w]
				for x := 0; x < w; x++ {
					if x > 0 {
						box += colSum[x+2*tr] - colSum[x-1]
					}
					d := int(float64(box)/p.area + 0.5)
					if d >= len(p.weights) {
						d = len(p.weights) - 1
					}
					wt := p.weights[d]
					n[x] += wt * float64(shifted[x])
					dd[x] += wt
				}
			}
		}
	}

	out := p.out
	for yy := 0; yy < bh; yy++ {
		row := out.Pix[(y0+yy)*out.Stride:]
		for x := 0; x < w; x++ {
			row[x] = clampByte(num[yy*w+x] / den[yy*w+x])
		}
	}
}
