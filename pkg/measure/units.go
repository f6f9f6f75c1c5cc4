package measure

import (
	"github.com/kataras/roi-export/pkg/catalog"
)

// PixelsSymbol is the unit symbol used when no physical unit applies.
const PixelsSymbol = "pixels"

// Scale is the physical size of one pixel along X and Y in the run's unit.
// Missing components leave the matching direction unscaled.
type Scale struct {
	X, Y Optional[float64]
}

// Both reports whether X and Y sizes are known, the condition for scaling areas.
func (s Scale) Both() bool {
	return s.X.Valid && s.Y.Valid
}

func (s Scale) dx(d float64) float64 {
	if s.X.Valid {
		return d * s.X.Value
	}
	return d
}

func (s Scale) dy(d float64) float64 {
	if s.Y.Valid {
		return d * s.Y.Value
	}
	return d
}

// Units is the run-wide length unit and the per-image pixel scales in it.
type Units struct {
	Unit   catalog.Unit // empty in pixels mode
	Symbol string
	Scales map[int64]Scale
}

// Physical reports whether a physical unit was resolved for the run.
func (u Units) Physical() bool {
	return u.Unit != ""
}

// ScaleFor returns the scale of an image; the zero Scale in pixels mode.
func (u Units) ScaleFor(imageID int64) Scale {
	return u.Scales[imageID]
}

// NormalizeUnits picks one length unit for all images of a run.
//
// If any image lacks an X pixel size the whole run is reported in pixels and
// nothing is scaled. Otherwise the unit and symbol of the first image's X
// pixel size are used, and every image's X and Y pixel sizes are expressed in
// that unit. A size that cannot be converted is left unset for that image.
func NormalizeUnits(images []catalog.Image, diag *Diagnostics) Units {
	units := Units{Symbol: PixelsSymbol, Scales: make(map[int64]Scale, len(images))}
	if len(images) == 0 {
		return units
	}
	for _, img := range images {
		if img.PixelSizeX == nil {
			diag.Infof("Image ID %d has no pixel size, reporting lengths in %s", img.ID, PixelsSymbol)
			return units
		}
	}

	first := images[0].PixelSizeX
	units.Unit = first.Unit
	units.Symbol = first.DisplaySymbol()

	for _, img := range images {
		var scale Scale
		if x, err := img.PixelSizeX.In(units.Unit); err == nil {
			scale.X = Some(x.Value)
		} else {
			diag.Warnf("Image ID %d: pixel size X: %v", img.ID, err)
		}
		if img.PixelSizeY != nil {
			if y, err := img.PixelSizeY.In(units.Unit); err == nil {
				scale.Y = Some(y.Value)
			} else {
				diag.Warnf("Image ID %d: pixel size Y: %v", img.ID, err)
			}
		}
		units.Scales[img.ID] = scale
	}

	return units
}
