// Package measure turns ROI shapes into measurement rows.
//
// For every shape of an image it expands the shape's focal planes and time
// points, computes the shape geometry once in the run's physical unit, asks a
// catalog.StatsService for intensity statistics once per concrete plane
// (batched over all requested channels) and emits one Row per
// (shape, plane, channel).
//
// # Ordering
//
// Rows of one image are ordered by ROI id, then by the shape order inside the
// ROI, then plane (Z outer, T inner), then channel in request order.
// Downstream writers rely on this order.
//
// # Planes
//
// A shape bound to a Z or T index is measured on that index only. An unbound
// axis is either expanded over the whole image (AllPlanes) or left
// unresolved, in which case the row carries no statistics and a blank plane
// value for that axis. See AxisSelection.
//
// # Units
//
// NormalizeUnits picks one length unit for a whole run: the unit of the first
// image's X pixel size, or plain pixels when any image lacks a pixel size.
// Coordinates are always reported in pixels; only area and length are scaled.
//
// # Diagnostics
//
// Recoverable problems (out-of-range channels, unsupported shapes, malformed
// point lists) are recorded on a per-run Diagnostics collector and do not stop
// the export. A statistics failure is returned as *StatsError and aborts it.
package measure
