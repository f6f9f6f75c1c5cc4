package measure

import (
	"errors"
	"math"
	"slices"
	"testing"

	"github.com/kataras/roi-export/pkg/catalog"
)

const epsilon = 1e-9

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) <= epsilon*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}

func TestPolygonAreaWinding(t *testing.T) {
	ring := []Point{{0, 0}, {4, 0}, {4, 3}, {0, 3}}
	reversed := slices.Clone(ring)
	slices.Reverse(reversed)

	if got := PolygonArea(ring); !almostEqual(got, 12) {
		t.Errorf("PolygonArea(ccw) = %v, want 12", got)
	}
	if got := PolygonArea(reversed); !almostEqual(got, 12) {
		t.Errorf("PolygonArea(cw) = %v, want 12", got)
	}
}

func TestLineLengthScalesAxesIndependently(t *testing.T) {
	scale := Scale{X: Some(2.0), Y: Some(3.0)}

	tests := []struct {
		name           string
		x1, y1, x2, y2 float64
		want           float64
	}{
		{"horizontal", 0, 0, 4, 0, 8},
		{"vertical", 0, 0, 0, 4, 12},
		{"diagonal", 0, 0, 3, 4, math.Hypot(6, 12)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := ComputeGeometry(catalog.Shape{Kind: catalog.KindLine, X1: tt.x1, Y1: tt.y1, X2: tt.x2, Y2: tt.y2}, scale)
			if err != nil {
				t.Fatalf("ComputeGeometry() error = %v", err)
			}
			if !g.Length.Valid || !almostEqual(g.Length.Value, tt.want) {
				t.Errorf("length = %+v, want %v", g.Length, tt.want)
			}
			if g.Area.Valid || g.RadiusX.Valid || g.X.Valid {
				t.Errorf("line exposes fields it does not define: %+v", g)
			}
		})
	}
}

func TestPolylineLengthRoundTrip(t *testing.T) {
	raw := "points[1.5,2 10,2.25 10,20 -3,4]"
	scale := Scale{X: Some(0.5), Y: Some(1.5)}

	g, err := ComputeGeometry(catalog.Shape{Kind: catalog.KindPolyline, Points: raw}, scale)
	if err != nil {
		t.Fatalf("ComputeGeometry() error = %v", err)
	}
	if g.Points.Value != "1.5,2 10,2.25 10,20 -3,4" {
		t.Errorf("points = %q", g.Points.Value)
	}

	points, err := ParsePoints(g.Points.Value)
	if err != nil {
		t.Fatalf("ParsePoints() error = %v", err)
	}
	var want float64
	for i := 1; i < len(points); i++ {
		dx := (points[i].X - points[i-1].X) * 0.5
		dy := (points[i].Y - points[i-1].Y) * 1.5
		want += math.Sqrt(dx*dx + dy*dy)
	}
	if !almostEqual(g.Length.Value, want) {
		t.Errorf("length = %v, want %v", g.Length.Value, want)
	}
}

func TestComputeGeometry(t *testing.T) {
	half := Scale{X: Some(0.5), Y: Some(0.5)}
	onlyX := Scale{X: Some(2.0)}

	tests := []struct {
		name     string
		shape    catalog.Shape
		scale    Scale
		wantArea Optional[float64]
		check    func(t *testing.T, g Geometry)
	}{
		{
			name:     "rectangle unscaled",
			shape:    catalog.Shape{Kind: catalog.KindRectangle, X: 1, Y: 2, Width: 10, Height: 5},
			wantArea: Some(50.0),
			check: func(t *testing.T, g Geometry) {
				if g.X.Value != 1 || g.Y.Value != 2 || g.Width.Value != 10 || g.Height.Value != 5 {
					t.Errorf("rectangle fields = %+v", g)
				}
			},
		},
		{
			name:     "rectangle scaled",
			shape:    catalog.Shape{Kind: catalog.KindRectangle, Width: 10, Height: 5},
			scale:    half,
			wantArea: Some(12.5),
		},
		{
			name:     "rectangle with one pixel size is not scaled",
			shape:    catalog.Shape{Kind: catalog.KindRectangle, Width: 10, Height: 5},
			scale:    onlyX,
			wantArea: Some(50.0),
		},
		{
			name:     "mask behaves like rectangle",
			shape:    catalog.Shape{Kind: catalog.KindMask, X: 3, Y: 4, Width: 2, Height: 2},
			scale:    half,
			wantArea: Some(1.0),
		},
		{
			name:     "ellipse",
			shape:    catalog.Shape{Kind: catalog.KindEllipse, X: 5, Y: 5, RadiusX: 2, RadiusY: 3},
			scale:    half,
			wantArea: Some(math.Pi * 6 * 0.25),
			check: func(t *testing.T, g Geometry) {
				if g.RadiusX.Value != 2 || g.RadiusY.Value != 3 || g.Width.Valid {
					t.Errorf("ellipse fields = %+v", g)
				}
			},
		},
		{
			name:     "polygon scaled",
			shape:    catalog.Shape{Kind: catalog.KindPolygon, Points: "0,0 4,0 4,3 0,3"},
			scale:    half,
			wantArea: Some(3.0),
		},
		{
			name:  "point has coordinates only",
			shape: catalog.Shape{Kind: catalog.KindPoint, X: 7, Y: 8},
			scale: half,
			check: func(t *testing.T, g Geometry) {
				if g.X.Value != 7 || g.Y.Value != 8 || g.Length.Valid || g.Width.Valid {
					t.Errorf("point fields = %+v", g)
				}
			},
		},
		{
			name:  "label has coordinates only",
			shape: catalog.Shape{Kind: catalog.KindLabel, X: 1, Y: 1},
			check: func(t *testing.T, g Geometry) {
				if !g.X.Valid || !g.Y.Valid || g.Points.Valid {
					t.Errorf("label fields = %+v", g)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := ComputeGeometry(tt.shape, tt.scale)
			if err != nil {
				t.Fatalf("ComputeGeometry() error = %v", err)
			}
			if g.Area.Valid != tt.wantArea.Valid || !almostEqual(g.Area.Value, tt.wantArea.Value) {
				t.Errorf("area = %+v, want %+v", g.Area, tt.wantArea)
			}
			if tt.check != nil {
				tt.check(t, g)
			}
		})
	}
}

func TestComputeGeometryErrors(t *testing.T) {
	tests := []struct {
		name  string
		shape catalog.Shape
		want  error
	}{
		{"unknown variant", catalog.Shape{Kind: catalog.KindUnknown, TypeName: "Spline"}, ErrUnsupportedShape},
		{"polygon with odd coordinates", catalog.Shape{Kind: catalog.KindPolygon, Points: "1,2 3"}, ErrMalformedPoints},
		{"polyline with garbage", catalog.Shape{Kind: catalog.KindPolyline, Points: "a,b c,d"}, ErrMalformedPoints},
		{"polygon without points", catalog.Shape{Kind: catalog.KindPolygon}, ErrMalformedPoints},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := ComputeGeometry(tt.shape, Scale{})
			if !errors.Is(err, tt.want) {
				t.Fatalf("ComputeGeometry() error = %v, want %v", err, tt.want)
			}
			if g != (Geometry{}) {
				t.Errorf("geometry = %+v, want empty", g)
			}
		})
	}
}

func TestParsePoints(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    []Point
		wantErr bool
	}{
		{"space separated pairs", "1,2 3,4", []Point{{1, 2}, {3, 4}}, false},
		{"wrapped", "points[1,2 3,4] points1[1,2 3,4]", []Point{{1, 2}, {3, 4}}, false},
		{"comma separated pairs", "1,2, 3,4,5,6", []Point{{1, 2}, {3, 4}, {5, 6}}, false},
		{"extra whitespace", "  1.5 , 2.5\n3,4 ", []Point{{1.5, 2.5}, {3, 4}}, false},
		{"empty", "", nil, true},
		{"odd", "1,2,3", nil, true},
		{"not numeric", "1,x", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePoints(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePoints(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrMalformedPoints) {
				t.Errorf("error %v does not wrap ErrMalformedPoints", err)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("ParsePoints(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}
