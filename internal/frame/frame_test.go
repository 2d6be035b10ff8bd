package frame

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rampFrame returns a frame whose pixel (y, x) holds y*100 + x.
func rampFrame(t *testing.T, width, height int) *Frame {
	t.Helper()
	pixels := make([]float64, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			pixels[y*width+x] = float64(y*100 + x)
		}
	}
	f, err := New(width, height, pixels, nil)
	require.NoError(t, err)
	return f
}

func TestNewRejectsBadShapes(t *testing.T) {
	_, err := New(0, 10, nil, nil)
	assert.True(t, errors.Is(err, ErrInvalidRange))

	_, err = New(4, 4, make([]float64, 15), nil)
	assert.Error(t, err)

	f, err := New(2, 2, make([]float64, 4), nil)
	require.NoError(t, err)
	assert.NotNil(t, f.Meta)
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in   string
		want Kind
	}{
		{"Light Frame", KindLight},
		{"FLAT", KindFlat},
		{"Flat Field", KindFlat},
		{"Dark Frame", KindDark},
		{"Bias Frame", KindBias},
		{"", KindLight},
		{"something else", KindLight},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseKind(tt.in))
		})
	}
}

func TestBinningFromMetadata(t *testing.T) {
	f := rampFrame(t, 8, 6)
	assert.Equal(t, Identity, f.Binning())

	f.Meta.Set(KeyXBinning, 2, "")
	f.Meta.Set(KeyYBinning, "2", "")
	f.Meta.Set(KeyYOrigin, 100, "")
	f.Meta.Set(KeyXOrigin, 50.0, "")

	b := f.Binning()
	assert.Equal(t, BinningInfo{YBin: 2, XBin: 2, YOrigin: 100, XOrigin: 50}, b)
	assert.Equal(t, 12, f.UnbinnedHeight())
	assert.Equal(t, 16, f.UnbinnedWidth())

	assert.InDelta(t, 110.0, b.UnbinnedY(5), 1e-12)
	assert.InDelta(t, 5.0, b.BinnedY(110), 1e-12)

	p := Point{Y: 3.5, X: 1.25}
	assert.Equal(t, p, b.Binned(b.Unbinned(p)))

	f.Meta.Set(KeyXBinning, 0, "")
	assert.Equal(t, 1, f.Binning().XBin)
}

func TestMetadata(t *testing.T) {
	m := NewMetadata()
	m.Set("imagetyp", "Light Frame ", "type")
	m.Set("EXPTIME", 1.5, "seconds")
	m.Set("GAIN", int64(3), "")
	m.Set("EXPTIME", 2.5, "seconds")

	s, ok := m.String(KeyImageType)
	assert.True(t, ok)
	assert.Equal(t, "Light Frame", s)

	v, ok := m.Float("exptime")
	assert.True(t, ok)
	assert.Equal(t, 2.5, v)
	assert.Equal(t, 3, m.Int("GAIN", 0))
	assert.Equal(t, 7, m.Int("MISSING", 7))
	assert.Equal(t, "seconds", m.Comment("EXPTIME"))

	_, ok = m.String("EXPTIME")
	assert.False(t, ok)

	cards := m.Cards()
	require.Len(t, cards, 3)
	assert.Equal(t, "IMAGETYP", cards[0].Key)
	assert.Equal(t, "EXPTIME", cards[1].Key)
}

func TestMetadataConcurrentSet(t *testing.T) {
	m := NewMetadata()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m.Set("KEY", i, "")
			m.Float("KEY")
		}(i)
	}
	wg.Wait()
	assert.Len(t, m.Cards(), 1)
}

func TestProfile(t *testing.T) {
	f := rampFrame(t, 5, 4)

	p, err := f.Profile(1, 3, 1, 4)
	require.NoError(t, err)
	// rows 1 and 2: (100+x) + (200+x)
	assert.Equal(t, []float64{302, 304, 306}, p)

	full, err := f.BandProfile(0, 1)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 2, 3, 4}, full)

	for _, r := range [][4]int{{0, 0, 0, 5}, {0, 5, 0, 5}, {-1, 2, 0, 5}, {0, 2, 3, 3}, {0, 2, 0, 6}} {
		_, err := f.Profile(r[0], r[1], r[2], r[3])
		assert.True(t, errors.Is(err, ErrInvalidRange), "range %v", r)
	}
}

func TestSample(t *testing.T) {
	f := rampFrame(t, 5, 4)
	f.Meta.Set(KeyXBinning, 2, "")
	f.Meta.Set(KeyYBinning, 2, "")

	s, err := f.Sample(3, 2)
	require.NoError(t, err)
	assert.Equal(t, 302.0, s.Value)
	assert.Equal(t, 6.0, s.UnbinnedY)
	assert.Equal(t, 4.0, s.UnbinnedX)

	u, err := f.SampleUnbinned(6.5, 4.9)
	require.NoError(t, err)
	assert.Equal(t, 302.0, u.Value)

	_, err = f.Sample(4, 0)
	assert.True(t, errors.Is(err, ErrInvalidRange))
}

func writePNG(t *testing.T, dir string, width, height int) string {
	t.Helper()
	img := image.NewGray16(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetGray16(x, y, color.Gray16{Y: uint16(y*1000 + x)})
		}
	}
	path := filepath.Join(dir, "frame.png")
	out, err := os.Create(path)
	require.NoError(t, err)
	defer out.Close()
	require.NoError(t, png.Encode(out, img))
	return path
}

func TestLoadImage(t *testing.T) {
	path := writePNG(t, t.TempDir(), 6, 3)

	f, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 6, f.Width)
	assert.Equal(t, 3, f.Height)
	assert.Equal(t, 2005.0, f.At(2, 5))
	assert.Equal(t, KindLight, f.Kind())
}

func TestLoadUnsupported(t *testing.T) {
	_, err := Load("frame.bmp")
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
}

func TestSaveLoadFITS(t *testing.T) {
	f := rampFrame(t, 7, 5)
	f.Meta.Set(KeyImageType, "FLAT", "")
	f.Meta.Set(KeyXBinning, 2, "binning")
	f.Meta.Set("NDPAR00", -0.05, "slope")

	path := filepath.Join(t.TempDir(), "frame.fits")
	require.NoError(t, SaveFITS(path, f))

	got, err := LoadFITS(path)
	require.NoError(t, err)
	assert.Equal(t, f.Width, got.Width)
	assert.Equal(t, f.Height, got.Height)
	assert.Equal(t, f.Pixels, got.Pixels)
	assert.Equal(t, KindFlat, got.Kind())
	assert.Equal(t, 2, got.Binning().XBin)

	slope, ok := got.Meta.Float("NDPAR00")
	assert.True(t, ok)
	assert.InDelta(t, -0.05, slope, 1e-12)
}

func TestDecodeRaw(t *testing.T) {
	raw := []byte{0xff, 0xfe, 0x00, 0x10}
	got, err := decodeRaw(raw, 16, 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{-2, 16}, got)

	_, err = decodeRaw(raw, 32, 2)
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))

	_, err = decodeRaw(raw, 12, 1)
	assert.Error(t, err)
}

func TestFrameCache(t *testing.T) {
	dir := t.TempDir()
	path := writePNG(t, dir, 4, 4)
	cache := NewFrameCache()

	a, err := cache.Load(path)
	require.NoError(t, err)
	b, err := cache.Load(path)
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, 1, cache.Len())

	info, err := LoadFrameInfo(cache, path, false)
	require.NoError(t, err)
	assert.Equal(t, "png", info.Format)
	assert.Equal(t, 0.0, info.Min)
	assert.Equal(t, 3003.0, info.Max)

	cache.Evict(path)
	assert.Equal(t, 0, cache.Len())

	cache.Put("mem", a)
	cache.Clear()
	assert.Equal(t, 0, cache.Len())
}

func TestFrameCacheConcurrentLoad(t *testing.T) {
	path := writePNG(t, t.TempDir(), 4, 4)
	cache := NewFrameCache()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cache.Load(path)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, cache.Len())
}
