package imaging

import (
	"image"
	"math"
)

// CLAHE applies contrast-limited adaptive histogram equalization over a
// tilesX x tilesY grid. Each tile's histogram is clipped at
// clip*tileArea/256, the excess is spread evenly, and pixels blend the four
// nearest tile maps bilinearly.
func CLAHE(g *image.Gray, clip float64, tilesX, tilesY int) *image.Gray {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	tilesX = clampInt(tilesX, 1, w)
	tilesY = clampInt(tilesY, 1, h)
	tileW := (w + tilesX - 1) / tilesX
	tileH := (h + tilesY - 1) / tilesY

	luts := make([][256]uint8, tilesX*tilesY)
	for ty := 0; ty < tilesY; ty++ {
		for tx := 0; tx < tilesX; tx++ {
			x0, y0 := tx*tileW, ty*tileH
			x1, y1 := min(x0+tileW, w), min(y0+tileH, h)
			luts[ty*tilesX+tx] = tileLUT(g, x0, y0, x1, y1, clip)
		}
	}

	out := newGrayLike(g)
	for y := 0; y < h; y++ {
		fy := (float64(y)+0.5)/float64(tileH) - 0.5
		ty0 := int(math.Floor(fy))
		wy := fy - float64(ty0)
		ty1 := clampInt(ty0+1, 0, tilesY-1)
		ty0 = clampInt(ty0, 0, tilesY-1)
		for x := 0; x < w; x++ {
			fx := (float64(x)+0.5)/float64(tileW) - 0.5
			tx0 := int(math.Floor(fx))
			wx := fx - float64(tx0)
			tx1 := clampInt(tx0+1, 0, tilesX-1)
			tx0 = clampInt(tx0, 0, tilesX-1)

			v := g.Pix[y*g.Stride+x]
			top := (1-wx)*float64(luts[ty0*tilesX+tx0][v]) + wx*float64(luts[ty0*tilesX+tx1][v])
			bot := (1-wx)*float64(luts[ty1*tilesX+tx0][v]) + wx*float64(luts[ty1*tilesX+tx1][v])
			out.Pix[y*out.Stride+x] = clampByte((1-wy)*top + wy*bot)
		}
	}
	return out
}

func tileLUT(g *image.Gray, x0, y0, x1, y1 int, clip float64) [256]uint8 {
	var hist [256]int
	for y := y0; y < y1; y++ {
		row := g.Pix[y*g.Stride : y*g.Stride+x1]
		for _, v := range row[x0:] {
			hist[v]++
		}
	}
	area := (x1 - x0) * (y1 - y0)

	if clip > 0 {
		limit := max(int(clip*float64(area)/256), 1)
		excess := 0
		for i := range hist {
			if hist[i] > limit {
				excess += hist[i] - limit
				hist[i] = limit
			}
		}
		batch, residual := excess/256, excess%256
		for i := range hist {
			hist[i] += batch
		}
		if residual > 0 {
			step := max(256/residual, 1)
			for i := 0; i < 256 && residual > 0; i += step {
				hist[i]++
				residual--
			}
		}
	}

	var lut [256]uint8
	scale := 255.0 / float64(area)
	sum := 0
	for i := range hist {
		sum += hist[i]
		lut[i] = clampByte(float64(sum) * scale)
	}
	return lut
}

// Bilateral smooths g while keeping edges. Neighbours within diameter/2
// are weighted by spatial distance (sigmaSpace) and by intensity difference
// (sigmaColor).
func Bilateral(g *image.Gray, diameter int, sigmaColor, sigmaSpace float64) *image.Gray {
	radius := diameter / 2
	if radius < 1 || sigmaColor <= 0 || sigmaSpace <= 0 {
		out := newGrayLike(g)
		copy(out.Pix, g.Pix)
		return out
	}

	var colorW [256]float64
	cc := -0.5 / (sigmaColor * sigmaColor)
	for i := range colorW {
		colorW[i] = math.Exp(float64(i*i) * cc)
	}

	type tap struct {
		dx, dy int
		w      float64
	}
	var taps []tap
	sc := -0.5 / (sigmaSpace * sigmaSpace)
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			r2 := float64(dx*dx + dy*dy)
			if r2 > float64(radius*radius) {
				continue
			}
			taps = append(taps, tap{dx, dy, math.Exp(r2 * sc)})
		}
	}

	w, h := g.Rect.Dx(), g.Rect.Dy()
	out := newGrayLike(g)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := int(g.Pix[y*g.Stride+x])
			var sum, norm float64
			for _, t := range taps {
				v := int(at(g, x+t.dx, y+t.dy))
				d := v - c
				if d < 0 {
					d = -d
				}
				wt := t.w * colorW[d]
				sum += wt * float64(v)
				norm += wt
			}
			out.Pix[y*out.Stride+x] = clampByte(sum / norm)
		}
	}
	return out
}

var sharpenKernel = [3][3]float64{
	{-1, -1, -1},
	{-1, 9, -1},
	{-1, -1, -1},
}

// Sharpen convolves g with a 3x3 high-boost kernel.
func Sharpen(g *image.Gray) *image.Gray {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	out := newGrayLike(g)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var acc float64
			for ky := -1; ky <= 1; ky++ {
				for kx := -1; kx <= 1; kx++ {
					acc += sharpenKernel[ky+1][kx+1] * float64(at(g, x+kx, y+ky))
				}
			}
			out.Pix[y*out.Stride+x] = clampByte(acc)
		}
	}
	return out
}
