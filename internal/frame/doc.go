// Package frame holds coronagraph CCD frames and the metadata that travels
// with them.
//
// A Frame is an immutable row-major intensity matrix plus a Metadata card
// list (FITS header style). Frames are loaded from FITS files with
// github.com/astrogo/fitsio or from ordinary PNG/JPEG/GIF images with
// github.com/disintegration/imaging, and can be cached by path with
// FrameCache.
//
// # Coordinate System
//
// Pixel coordinates are 0-based, (y, x) ordered to match the storage
// layout:
//   - Y: row index (0 = first stored row)
//   - X: column index (0 = first stored column)
//   - For ranges, the start is inclusive and the end is exclusive
//
// Coordinates "as stored" are binned and subframed. BinningInfo converts
// them to unbinned full-chip coordinates:
//
//	unbinned = binned*factor + origin
//
// # Thread Safety
//
// FrameCache and Metadata are safe for concurrent use. Pixel data is never
// modified after construction; callers that need a scratch copy use
// Frame.CopyPixels.
//
// # Error Handling
//
// Malformed row/column spans return errors wrapping ErrInvalidRange. Dark
// and bias frames are rejected by callers through ErrUnsupportedKind.
package frame
