package frame

import (
	"fmt"
	"os"

	"github.com/astrogo/fitsio"
)

// structural cards are regenerated by the writer.
var structural = map[string]bool{
	"SIMPLE": true, "BITPIX": true, "NAXIS": true, "NAXIS1": true, "NAXIS2": true,
	"EXTEND": true, "BZERO": true, "BSCALE": true, "END": true,
}

// SaveFITS writes the frame as a 64-bit float primary image together with
// its metadata cards, including any cached ND-filter geometry.
func SaveFITS(path string, f *Frame) error {
	w, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer w.Close()

	ff, err := fitsio.Create(w)
	if err != nil {
		return fmt.Errorf("failed to start FITS stream: %w", err)
	}

	img := fitsio.NewImage(-64, []int{f.Width, f.Height})
	defer img.Close()

	var cards []fitsio.Card
	for _, c := range f.Meta.Cards() {
		if structural[c.Key] || len(c.Key) > 8 {
			continue
		}
		cards = append(cards, fitsio.Card{Name: c.Key, Value: c.Value, Comment: c.Comment})
	}
	if err := img.Header().Append(cards...); err != nil {
		return fmt.Errorf("failed to append header cards: %w", err)
	}

	data := f.CopyPixels()
	if err := img.Write(&data); err != nil {
		return fmt.Errorf("failed to encode pixels: %w", err)
	}
	if err := ff.Write(img); err != nil {
		return fmt.Errorf("failed to write image HDU: %w", err)
	}
	if err := ff.Close(); err != nil {
		return fmt.Errorf("failed to finish FITS stream: %w", err)
	}
	return w.Close()
}
