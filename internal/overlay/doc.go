// Package overlay renders diagnostic images of coronagraph frames.
//
// Render draws a stretched view of a frame with the ND filter edges, the
// mask margins and the object and desired centers marked. PlotEdgeFit
// charts the per-band edge samples against the fitted edge lines.
//
// All annotation coordinates are unbinned chip pixels, the same frame the
// ndfilter and centroid packages report in. Render maps them onto the
// stored pixel grid, then through any crop and scale.
package overlay
