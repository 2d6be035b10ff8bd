package frame

// Point is a (y, x) pixel position. Fractional values are allowed.
type Point struct {
	Y float64 `json:"y"`
	X float64 `json:"x"`
}

// BinningInfo converts between stored (binned, subframed) coordinates and
// unbinned full-chip coordinates.
type BinningInfo struct {
	YBin    int `json:"y_bin"`
	XBin    int `json:"x_bin"`
	YOrigin int `json:"y_origin"`
	XOrigin int `json:"x_origin"`
}

// Identity is the binning of a full unbinned frame.
var Identity = BinningInfo{YBin: 1, XBin: 1}

// UnbinnedY maps a stored row to an unbinned chip row.
func (b BinningInfo) UnbinnedY(y float64) float64 {
	return y*float64(b.YBin) + float64(b.YOrigin)
}

// UnbinnedX maps a stored column to an unbinned chip column.
func (b BinningInfo) UnbinnedX(x float64) float64 {
	return x*float64(b.XBin) + float64(b.XOrigin)
}

// BinnedY maps an unbinned chip row to a stored row.
func (b BinningInfo) BinnedY(y float64) float64 {
	return (y - float64(b.YOrigin)) / float64(b.YBin)
}

// BinnedX maps an unbinned chip column to a stored column.
func (b BinningInfo) BinnedX(x float64) float64 {
	return (x - float64(b.XOrigin)) / float64(b.XBin)
}

// Unbinned converts a stored point to chip coordinates.
func (b BinningInfo) Unbinned(p Point) Point {
	return Point{Y: b.UnbinnedY(p.Y), X: b.UnbinnedX(p.X)}
}

// Binned converts a chip point to stored coordinates.
func (b BinningInfo) Binned(p Point) Point {
	return Point{Y: b.BinnedY(p.Y), X: b.BinnedX(p.X)}
}
