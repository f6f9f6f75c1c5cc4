package measure

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/kataras/roi-export/pkg/catalog"
)

// ErrUnsupportedShape is returned for shape variants without geometry.
var ErrUnsupportedShape = errors.New("no geometry for shape type")

// Geometry holds the geometric fields of one shape. Coordinates are raw
// pixel values; Area and Length are in the run's unit. Fields the shape
// variant does not define stay invalid.
type Geometry struct {
	X, Y           Optional[float64]
	Width, Height  Optional[float64]
	RadiusX        Optional[float64]
	RadiusY        Optional[float64]
	X1, Y1, X2, Y2 Optional[float64]
	Points         Optional[string]
	Area, Length   Optional[float64]
}

// ComputeGeometry measures a shape with the given pixel scale.
//
// It returns ErrUnsupportedShape for unknown variants and an error wrapping
// ErrMalformedPoints when a polygon or polyline point list cannot be parsed;
// in both cases the returned Geometry is empty.
func ComputeGeometry(s catalog.Shape, scale Scale) (Geometry, error) {
	var g Geometry

	switch s.Kind {
	case catalog.KindRectangle, catalog.KindMask:
		g.X, g.Y = Some(s.X), Some(s.Y)
		g.Width, g.Height = Some(s.Width), Some(s.Height)
		g.Area = Some(s.Width * s.Height)

	case catalog.KindEllipse:
		g.X, g.Y = Some(s.X), Some(s.Y)
		g.RadiusX, g.RadiusY = Some(s.RadiusX), Some(s.RadiusY)
		g.Area = Some(math.Pi * s.RadiusX * s.RadiusY)

	case catalog.KindPoint, catalog.KindLabel:
		g.X, g.Y = Some(s.X), Some(s.Y)

	case catalog.KindLine:
		g.X1, g.Y1 = Some(s.X1), Some(s.Y1)
		g.X2, g.Y2 = Some(s.X2), Some(s.Y2)
		g.Length = Some(segmentLength(Point{s.X1, s.Y1}, Point{s.X2, s.Y2}, scale))

	case catalog.KindPolyline:
		points, err := ParsePoints(s.Points)
		if err != nil {
			return Geometry{}, fmt.Errorf("polyline %d: %w", s.ID, err)
		}
		g.Points = Some(StripPointList(s.Points))
		g.Length = Some(PathLength(points, scale))

	case catalog.KindPolygon:
		points, err := ParsePoints(s.Points)
		if err != nil {
			return Geometry{}, fmt.Errorf("polygon %d: %w", s.ID, err)
		}
		g.Points = Some(StripPointList(s.Points))
		g.Area = Some(PolygonArea(points))

	default:
		return Geometry{}, fmt.Errorf("%w %q", ErrUnsupportedShape, s.TypeTag())
	}

	if g.Area.Valid && scale.Both() {
		g.Area.Value *= scale.X.Value * scale.Y.Value
	}

	return g, nil
}

// segmentLength is the length of a-b with dx and dy scaled independently.
func segmentLength(a, b Point, scale Scale) float64 {
	dx := scale.dx(a.X - b.X)
	dy := scale.dy(a.Y - b.Y)
	return math.Sqrt(dx*dx + dy*dy)
}

// PathLength is the summed length of consecutive segments of an open path.
func PathLength(points []Point, scale Scale) float64 {
	if len(points) < 2 {
		return 0
	}
	lengths := make([]float64, len(points)-1)
	for i := range lengths {
		lengths[i] = segmentLength(points[i], points[i+1], scale)
	}
	return floats.Sum(lengths)
}

// PolygonArea is the unscaled shoelace area of the closed ring through points.
// It does not depend on the winding direction.
func PolygonArea(points []Point) float64 {
	var total float64
	for i, p := range points {
		next := points[(i+1)%len(points)]
		total += p.X*next.Y - next.X*p.Y
	}
	return math.Abs(0.5 * total)
}
