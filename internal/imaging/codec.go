package imaging

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var ErrUndecodable = errors.New("undecodable image")

// MaxPixels bounds the decoded raster size. Headers are checked before any
// pixel data is allocated, since a tiny compressed file can declare a huge
// canvas.
const MaxPixels = 1 << 28

func checkBounds(cfg image.Config) error {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return fmt.Errorf("%w: empty canvas %dx%d", ErrUndecodable, cfg.Width, cfg.Height)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return fmt.Errorf("%w: %dx%d exceeds the %d pixel limit", ErrUndecodable, cfg.Width, cfg.Height, MaxPixels)
	}
	return nil
}

// Decode decodes any registered raster format: png, jpeg, gif, bmp, tiff, webp.
func Decode(data []byte) (image.Image, string, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	if err := checkBounds(cfg); err != nil {
		return nil, "", err
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	return img, format, nil
}

// EncodePNG serializes g for hand-off to an OCR engine.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// maxTIFFFrames bounds IFD traversal on corrupt or cyclic files.
const maxTIFFFrames = 1000

// DecodeTIFFFrames decodes every frame (IFD) of a multi-page TIFF. The tiff
// decoder only reads the first IFD, so each frame is decoded from a copy of
// the file whose header points at that frame's IFD.
func DecodeTIFFFrames(data []byte) ([]image.Image, error) {
	offsets, order, err := tiffIFDOffsets(data)
	if err != nil {
		return nil, err
	}
	frames := make([]image.Image, 0, len(offsets))
	for i, off := range offsets {
		buf := data
		if i > 0 {
			buf = append([]byte(nil), data...)
			order.PutUint32(buf[4:8], off)
		}
		cfg, err := tiff.DecodeConfig(bytes.NewReader(buf))
		if err != nil {
			return nil, fmt.Errorf("%w: tiff frame %d: %v", ErrUndecodable, i+1, err)
		}
		if err := checkBounds(cfg); err != nil {
			return nil, fmt.Errorf("tiff frame %d: %w", i+1, err)
		}
		img, err := tiff.Decode(bytes.NewReader(buf))
		if err != nil {
			return nil, fmt.Errorf("%w: tiff frame %d: %v", ErrUndecodable, i+1, err)
		}
		frames = append(frames, img)
	}
	return frames, nil
}

func tiffIFDOffsets(data []byte) ([]uint32, binary.ByteOrder, error) {
	if len(data) < 8 {
		return nil, nil, fmt.Errorf("%w: short tiff header", ErrUndecodable)
	}
	var order binary.ByteOrder
	switch string(data[:4]) {
	case "II\x2A\x00":
		order = binary.LittleEndian
	case "MM\x00\x2A":
		order = binary.BigEndian
	default:
		return nil, nil, fmt.Errorf("%w: not a tiff", ErrUndecodable)
	}

	var offsets []uint32
	seen := map[uint32]bool{}
	off := order.Uint32(data[4:8])
	for off != 0 && len(offsets) < maxTIFFFrames {
		if seen[off] || int(off)+2 > len(data) {
			break
		}
		seen[off] = true
		offsets = append(offsets, off)

		n := int(order.Uint16(data[off : off+2]))
		next := int(off) + 2 + n*12
		if next+4 > len(data) {
			break
		}
		off = order.Uint32(data[next : next+4])
	}
	if len(offsets) == 0 {
		return nil, nil, fmt.Errorf("%w: tiff has no frames", ErrUndecodable)
	}
	return offsets, order, nil
}
