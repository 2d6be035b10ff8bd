package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/astrogo/fitsio"
	"github.com/disintegration/imaging"
)

// ErrUnsupportedFormat reports a file the loaders cannot decode.
var ErrUnsupportedFormat = errors.New("unsupported frame format")

// Load reads a frame, choosing the decoder by file extension.
//
// ".fits", ".fit" and ".fts" go through LoadFITS. PNG, JPEG and GIF go
// through LoadImage. Anything else returns ErrUnsupportedFormat.
func Load(path string) (*Frame, error) {
	switch formatOf(path) {
	case "fits":
		return LoadFITS(path)
	case "png", "jpeg", "gif":
		return LoadImage(path)
	}
	return nil, fmt.Errorf("%s: %w", filepath.Base(path), ErrUnsupportedFormat)
}

func formatOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".fits", ".fit", ".fts":
		return "fits"
	case ".png":
		return "png"
	case ".jpg", ".jpeg":
		return "jpeg"
	case ".gif":
		return "gif"
	}
	return "unknown"
}

// LoadFITS reads the primary HDU of a FITS file.
//
// Integer and floating point BITPIX values are supported. BSCALE and BZERO
// are applied so Pixels carry physical ADU. Every header card is copied
// into the frame metadata.
func LoadFITS(path string) (*Frame, error) {
	r, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open frame: %w", err)
	}
	defer r.Close()

	f, err := fitsio.Open(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse FITS: %w", err)
	}
	defer f.Close()

	hdu := f.HDU(0)
	img, ok := hdu.(fitsio.Image)
	if !ok {
		return nil, fmt.Errorf("%s: primary HDU is not an image: %w", filepath.Base(path), ErrUnsupportedFormat)
	}

	hdr := hdu.Header()
	axes := hdr.Axes()
	if len(axes) != 2 {
		return nil, fmt.Errorf("%s: primary HDU has %d axes, want 2: %w", filepath.Base(path), len(axes), ErrUnsupportedFormat)
	}
	width, height := axes[0], axes[1]

	meta := NewMetadata()
	for _, key := range hdr.Keys() {
		card := hdr.Get(key)
		if card == nil {
			continue
		}
		meta.Set(card.Name, card.Value, card.Comment)
	}

	scale, ok := meta.Float("BSCALE")
	if !ok {
		scale = 1
	}
	zero, _ := meta.Float("BZERO")

	pixels, err := decodeRaw(img.Raw(), hdr.Bitpix(), width*height)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	if scale != 1 || zero != 0 {
		for i, v := range pixels {
			pixels[i] = v*scale + zero
		}
	}

	return New(width, height, pixels, meta)
}

// decodeRaw converts big-endian FITS data units into float64 values.
func decodeRaw(raw []byte, bitpix, n int) ([]float64, error) {
	size := bitpix / 8
	if size < 0 {
		size = -size
	}
	if size == 0 || len(raw) < n*size {
		return nil, fmt.Errorf("BITPIX %d with %d bytes for %d pixels: %w", bitpix, len(raw), n, ErrUnsupportedFormat)
	}

	out := make([]float64, n)
	be := binary.BigEndian
	for i := range out {
		b := raw[i*size : (i+1)*size]
		switch bitpix {
		case 8:
			out[i] = float64(b[0])
		case 16:
			out[i] = float64(int16(be.Uint16(b)))
		case 32:
			out[i] = float64(int32(be.Uint32(b)))
		case 64:
			out[i] = float64(int64(be.Uint64(b)))
		case -32:
			out[i] = float64(math.Float32frombits(be.Uint32(b)))
		case -64:
			out[i] = math.Float64frombits(be.Uint64(b))
		default:
			return nil, fmt.Errorf("BITPIX %d: %w", bitpix, ErrUnsupportedFormat)
		}
	}
	return out, nil
}

// LoadImage reads a PNG, JPEG or GIF as a 16-bit grayscale frame.
//
// Ordinary images carry no header, so the frame is treated as an unbinned
// full-chip light frame.
func LoadImage(path string) (*Frame, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	return FromImage(img, NewMetadata())
}

// FromImage converts any image to a grayscale frame with 16-bit range.
func FromImage(img image.Image, meta *Metadata) (*Frame, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	pixels := make([]float64, 0, w*h)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			g := color.Gray16Model.Convert(img.At(x, y)).(color.Gray16)
			pixels = append(pixels, float64(g.Y))
		}
	}
	return New(w, h, pixels, meta)
}

// FrameInfo summarises a loaded frame.
type FrameInfo struct {
	Width         int         `json:"width"`
	Height        int         `json:"height"`
	Format        string      `json:"format"`
	Kind          string      `json:"kind"`
	Binning       BinningInfo `json:"binning"`
	Min           float64     `json:"min"`
	Max           float64     `json:"max"`
	FileSizeBytes int64       `json:"file_size_bytes"`
	Cards         []Card      `json:"cards,omitempty"`
}

// LoadFrameInfo loads a frame through the cache and describes it.
func LoadFrameInfo(cache *FrameCache, path string, withCards bool) (*FrameInfo, error) {
	f, err := cache.Load(path)
	if err != nil {
		return nil, err
	}
	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range f.Pixels {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	info := &FrameInfo{
		Width:         f.Width,
		Height:        f.Height,
		Format:        formatOf(path),
		Kind:          f.Kind().String(),
		Binning:       f.Binning(),
		Min:           lo,
		Max:           hi,
		FileSizeBytes: stat.Size(),
	}
	if withCards {
		info.Cards = f.Meta.Cards()
	}
	return info, nil
}
