package frame

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidRange reports an empty or out-of-bounds row/column span.
	ErrInvalidRange = errors.New("invalid range")

	// ErrUnsupportedKind reports a frame type the analysis cannot use (dark, bias).
	ErrUnsupportedKind = errors.New("unsupported frame kind")
)

// Metadata keys read from the frame header.
const (
	KeyImageType = "IMAGETYP"
	KeyXBinning  = "XBINNING"
	KeyYBinning  = "YBINNING"
	KeyXOrigin   = "XORGSUBF"
	KeyYOrigin   = "YORGSUBF"
)

// Kind classifies a frame by its header image type.
type Kind int

const (
	KindLight Kind = iota
	KindFlat
	KindDark
	KindBias
)

func (k Kind) String() string {
	switch k {
	case KindFlat:
		return "flat"
	case KindDark:
		return "dark"
	case KindBias:
		return "bias"
	default:
		return "light"
	}
}

// ParseKind maps an IMAGETYP value ("Light Frame", "Flat Field", "FLAT", ...)
// to a Kind. Unknown values are treated as light frames.
func ParseKind(s string) Kind {
	s = strings.ToLower(s)
	switch {
	case strings.Contains(s, "flat"):
		return KindFlat
	case strings.Contains(s, "dark"):
		return KindDark
	case strings.Contains(s, "bias"):
		return KindBias
	default:
		return KindLight
	}
}

// Frame is a 2-D intensity matrix with its metadata.
type Frame struct {
	Width  int
	Height int

	// Pixels holds Height rows of Width values, row-major.
	Pixels []float64

	// Meta is never nil for frames built with New.
	Meta *Metadata
}

// New wraps pixels in a Frame. A nil meta gets an empty card list.
func New(width, height int, pixels []float64, meta *Metadata) (*Frame, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("frame dimensions %dx%d: %w", width, height, ErrInvalidRange)
	}
	if len(pixels) != width*height {
		return nil, fmt.Errorf("frame has %d pixels, want %d (%dx%d)", len(pixels), width*height, width, height)
	}
	if meta == nil {
		meta = NewMetadata()
	}
	return &Frame{Width: width, Height: height, Pixels: pixels, Meta: meta}, nil
}

// At returns the stored intensity at row y, column x.
func (f *Frame) At(y, x int) float64 {
	return f.Pixels[y*f.Width+x]
}

// Row returns row y without copying. Callers must not modify it.
func (f *Frame) Row(y int) []float64 {
	return f.Pixels[y*f.Width : (y+1)*f.Width]
}

// CopyPixels returns a scratch copy of the pixel data.
func (f *Frame) CopyPixels() []float64 {
	out := make([]float64, len(f.Pixels))
	copy(out, f.Pixels)
	return out
}

// Kind returns the frame kind from the IMAGETYP card.
func (f *Frame) Kind() Kind {
	s, _ := f.Meta.String(KeyImageType)
	return ParseKind(s)
}

// Binning returns the binning factors and subframe origin from the header.
// Missing or non-positive binning factors default to 1.
func (f *Frame) Binning() BinningInfo {
	b := BinningInfo{
		YBin:    f.Meta.Int(KeyYBinning, 1),
		XBin:    f.Meta.Int(KeyXBinning, 1),
		YOrigin: f.Meta.Int(KeyYOrigin, 0),
		XOrigin: f.Meta.Int(KeyXOrigin, 0),
	}
	if b.YBin < 1 {
		b.YBin = 1
	}
	if b.XBin < 1 {
		b.XBin = 1
	}
	return b
}

// UnbinnedHeight is the frame height in unbinned pixels.
func (f *Frame) UnbinnedHeight() int {
	return f.Height * f.Binning().YBin
}

// UnbinnedWidth is the frame width in unbinned pixels.
func (f *Frame) UnbinnedWidth() int {
	return f.Width * f.Binning().XBin
}
