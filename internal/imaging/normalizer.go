// Package imaging prepares document photos and scans for OCR.
package imaging

import (
	"image"
	"log/slog"
	"math"
	"time"

	"golang.org/x/image/draw"
)

// Normalizer turns an arbitrary raster into a binarized grayscale page.
// The zero value is not usable; call NewNormalizer.
type Normalizer struct {
	MaxDimension int     // larger side cap before upscaling, default 3000
	Upscale      float64 // default 1.5

	ClipLimit float64 // CLAHE, default 2.0
	Tiles     int     // CLAHE grid is Tiles x Tiles, default 8

	BilateralDiameter   int     // default 9
	BilateralSigmaColor float64 // default 75
	BilateralSigmaSpace float64 // default 75

	AdaptiveBlock int     // default 11
	AdaptiveC     float64 // default 2

	DenoiseH        float64 // default 10
	DenoiseTemplate int     // default 7
	DenoiseSearch   int     // default 21

	logger *slog.Logger
}

func NewNormalizer(logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{
		MaxDimension:        3000,
		Upscale:             1.5,
		ClipLimit:           2.0,
		Tiles:               8,
		BilateralDiameter:   9,
		BilateralSigmaColor: 75,
		BilateralSigmaSpace: 75,
		AdaptiveBlock:       11,
		AdaptiveC:           2,
		DenoiseH:            10,
		DenoiseTemplate:     7,
		DenoiseSearch:       21,
		logger:              logger,
	}
}

// Normalize runs the full preparation chain. It is deterministic: equal
// inputs give equal outputs.
func (n *Normalizer) Normalize(img image.Image, handwriting bool) *image.Gray {
	start := time.Now()
	b := img.Bounds()

	w, h := CappedSize(b.Dx(), b.Dy(), n.MaxDimension)
	if w != b.Dx() || h != b.Dy() {
		img = Resize(img, w, h, draw.BiLinear)
	}
	uw, uh := ScaledSize(w, h, n.Upscale)
	img = Resize(img, uw, uh, draw.CatmullRom)

	g := ToGray(img)
	g = CLAHE(g, n.ClipLimit, n.Tiles, n.Tiles)
	g = Bilateral(g, n.BilateralDiameter, n.BilateralSigmaColor, n.BilateralSigmaSpace)

	if handwriting {
		g = Sharpen(g)
		g = Otsu(g)
		g = Close(g)
	} else {
		g = AdaptiveThreshold(g, n.AdaptiveBlock, n.AdaptiveC)
		g = DenoiseNLM(g, n.DenoiseH, n.DenoiseTemplate, n.DenoiseSearch)
	}

	n.logger.Debug("imaging.normalize.ok",
		"src_w", b.Dx(), "src_h", b.Dy(),
		"dst_w", uw, "dst_h", uh,
		"handwriting", handwriting,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return g
}

// CappedSize shrinks (w, h) so that the larger side is at most max,
// preserving the aspect ratio. Sizes already within the cap are returned as is.
func CappedSize(w, h, max int) (int, int) {
	if max <= 0 || (w <= max && h <= max) {
		return w, h
	}
	if w >= h {
		return max, atLeastOne(int(math.Round(float64(h) * float64(max) / float64(w))))
	}
	return atLeastOne(int(math.Round(float64(w) * float64(max) / float64(h)))), max
}

// ScaledSize multiplies both sides by f and rounds.
func ScaledSize(w, h int, f float64) (int, int) {
	return atLeastOne(int(math.Round(float64(w) * f))), atLeastOne(int(math.Round(float64(h) * f)))
}

// Resize scales img to w x h with the given kernel. BiLinear widens its
// support when shrinking, so it averages every covered source pixel.
func Resize(img image.Image, w, h int, k draw.Interpolator) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	k.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// ToGray converts img to 8-bit luminance.
func ToGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Rect.Min == (image.Point{}) {
		return g
	}
	b := img.Bounds()
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(g, g.Bounds(), img, b.Min, draw.Src)
	return g
}

func atLeastOne(v int) int {
	if v < 1 {
		return 1
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampByte(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}

// at reads g with replicated borders.
func at(g *image.Gray, x, y int) uint8 {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	return g.Pix[clampInt(y, 0, h-1)*g.Stride+clampInt(x, 0, w-1)]
}

func newGrayLike(g *image.Gray) *image.Gray {
	return image.NewGray(image.Rect(0, 0, g.Rect.Dx(), g.Rect.Dy()))
}
