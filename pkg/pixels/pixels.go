package pixels

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/kataras/roi-export/pkg/catalog"
	"github.com/kataras/roi-export/pkg/measure"
)

var (
	// ErrPlaneMissing is returned when the raster of a requested plane does not exist.
	ErrPlaneMissing = errors.New("plane file not found")
	// ErrUnsupportedShape is returned for shapes that cover no pixels (labels, unknown variants).
	ErrUnsupportedShape = errors.New("shape has no pixel footprint")
)

// DefaultLayout names one grayscale raster per plane and channel, relative to
// the planes directory. Placeholders: {image}, {z}, {t}, {c}, all zero-based
// except {image}.
const DefaultLayout = "{image}/z{z}_t{t}_c{c}.tif"

const maxParallelLoads = 4

// Service computes shape statistics from plane rasters on disk. It is an
// offline replacement for the catalog's statistics endpoint.
//
// Decoded planes are cached by path. Service is safe for concurrent use.
type Service struct {
	Dir    string
	Layout string

	mu     sync.RWMutex
	planes map[string]image.Image
}

// New returns a Service reading planes below dir. An empty layout selects
// DefaultLayout.
func New(dir, layout string) *Service {
	if layout == "" {
		layout = DefaultLayout
	}
	return &Service{Dir: dir, Layout: layout, planes: make(map[string]image.Image)}
}

// PlanePath returns the raster path of one plane and channel.
func (s *Service) PlanePath(imageID int64, z, t, c int) string {
	r := strings.NewReplacer(
		"{image}", strconv.FormatInt(imageID, 10),
		"{z}", strconv.Itoa(z),
		"{t}", strconv.Itoa(t),
		"{c}", strconv.Itoa(c),
	)
	return filepath.Join(s.Dir, filepath.FromSlash(r.Replace(s.Layout)))
}

// Load returns the decoded plane, reading it from disk on first use.
func (s *Service) Load(path string) (image.Image, error) {
	s.mu.RLock()
	img, ok := s.planes[path]
	s.mu.RUnlock()
	if ok {
		return img, nil
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrPlaneMissing, path)
		}
		return nil, fmt.Errorf("stat plane %q: %w", path, err)
	}

	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("decode plane %q: %w", path, err)
	}

	s.mu.Lock()
	s.planes[path] = img
	s.mu.Unlock()

	return img, nil
}

// ShapeStats implements catalog.StatsService. The channel planes of the
// request are decoded concurrently; the returned arrays follow the request's
// channel order.
func (s *Service) ShapeStats(req catalog.StatsRequest) (*catalog.ShapeStats, error) {
	planes := make([]image.Image, len(req.Channels))
	errs := make([]error, len(req.Channels))

	var wg sync.WaitGroup
	sem := make(chan struct{}, maxParallelLoads)
	for i, c := range req.Channels {
		wg.Add(1)
		go func(i, c int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			planes[i], errs[i] = s.Load(s.PlanePath(req.ImageID, req.Z, req.T, c))
		}(i, c)
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	n := len(req.Channels)
	out := &catalog.ShapeStats{
		PointsCount: make([]int64, n),
		Min:         make([]float64, n),
		Max:         make([]float64, n),
		Sum:         make([]float64, n),
		Mean:        make([]float64, n),
		StdDev:      make([]float64, n),
	}

	var footprint []image.Point
	for i, plane := range planes {
		if i == 0 || plane.Bounds() != planes[0].Bounds() {
			var err error
			footprint, err = Footprint(req.Shape, plane.Bounds())
			if err != nil {
				return nil, err
			}
		}

		values := make([]float64, len(footprint))
		for j, p := range footprint {
			values[j] = intensity(plane, p.X, p.Y)
		}
		summary := Summarize(values)
		out.PointsCount[i] = summary.Count
		out.Min[i] = summary.Min
		out.Max[i] = summary.Max
		out.Sum[i] = summary.Sum
		out.Mean[i] = summary.Mean
		out.StdDev[i] = summary.StdDev
	}

	return out, nil
}

// Summary is the intensity summary of one pixel set.
type Summary struct {
	Count  int64
	Min    float64
	Max    float64
	Sum    float64
	Mean   float64
	StdDev float64
}

// Summarize computes the population statistics of values. An empty set
// yields the zero Summary.
func Summarize(values []float64) Summary {
	if len(values) == 0 {
		return Summary{}
	}
	mean, std := stat.PopMeanStdDev(values, nil)
	return Summary{
		Count:  int64(len(values)),
		Min:    floats.Min(values),
		Max:    floats.Max(values),
		Sum:    floats.Sum(values),
		Mean:   mean,
		StdDev: std,
	}
}

func intensity(img image.Image, x, y int) float64 {
	switch m := img.(type) {
	case *image.Gray:
		return float64(m.GrayAt(x, y).Y)
	case *image.Gray16:
		return float64(m.Gray16At(x, y).Y)
	default:
		return float64(color.Gray16Model.Convert(img.At(x, y)).(color.Gray16).Y)
	}
}

// Footprint returns the pixels of bounds covered by the shape, in row-major
// order. Pixel (x, y) is tested at its integer coordinate. Masks are treated
// as their bounding rectangle.
func Footprint(shape catalog.Shape, bounds image.Rectangle) ([]image.Point, error) {
	var pts []image.Point
	add := func(x, y int) {
		p := image.Pt(x, y)
		if p.In(bounds) {
			pts = append(pts, p)
		}
	}

	switch shape.Kind {
	case catalog.KindRectangle, catalog.KindMask:
		r := image.Rect(
			int(math.Ceil(shape.X)), int(math.Ceil(shape.Y)),
			int(math.Ceil(shape.X+shape.Width)), int(math.Ceil(shape.Y+shape.Height)),
		).Intersect(bounds)
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				pts = append(pts, image.Pt(x, y))
			}
		}

	case catalog.KindEllipse:
		if shape.RadiusX <= 0 || shape.RadiusY <= 0 {
			break
		}
		r := image.Rect(
			int(math.Floor(shape.X-shape.RadiusX)), int(math.Floor(shape.Y-shape.RadiusY)),
			int(math.Ceil(shape.X+shape.RadiusX))+1, int(math.Ceil(shape.Y+shape.RadiusY))+1,
		).Intersect(bounds)
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				dx := (float64(x) - shape.X) / shape.RadiusX
				dy := (float64(y) - shape.Y) / shape.RadiusY
				if dx*dx+dy*dy <= 1 {
					pts = append(pts, image.Pt(x, y))
				}
			}
		}

	case catalog.KindPoint:
		add(int(math.Round(shape.X)), int(math.Round(shape.Y)))

	case catalog.KindLine:
		pts = traceSegment(pts, measure.Point{X: shape.X1, Y: shape.Y1}, measure.Point{X: shape.X2, Y: shape.Y2}, bounds, true)

	case catalog.KindPolyline:
		vertices, err := measure.ParsePoints(shape.Points)
		if err != nil {
			return nil, err
		}
		for i := 1; i < len(vertices); i++ {
			pts = traceSegment(pts, vertices[i-1], vertices[i], bounds, i == 1)
		}
		if len(vertices) == 1 {
			add(int(math.Round(vertices[0].X)), int(math.Round(vertices[0].Y)))
		}

	case catalog.KindPolygon:
		vertices, err := measure.ParsePoints(shape.Points)
		if err != nil {
			return nil, err
		}
		r := polygonBounds(vertices).Intersect(bounds)
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				if insidePolygon(vertices, float64(x), float64(y)) {
					pts = append(pts, image.Pt(x, y))
				}
			}
		}

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedShape, shape.TypeTag())
	}

	return pts, nil
}

// traceSegment appends the pixels sampled along a-b at unit steps. The start
// pixel is only included when first is set, so joined segments do not count
// their shared vertex twice.
func traceSegment(pts []image.Point, a, b measure.Point, bounds image.Rectangle, first bool) []image.Point {
	steps := int(math.Ceil(math.Max(math.Abs(b.X-a.X), math.Abs(b.Y-a.Y))))
	start := 1
	if first {
		start = 0
	}
	if steps == 0 {
		if first {
			if p := image.Pt(int(math.Round(a.X)), int(math.Round(a.Y))); p.In(bounds) {
				pts = append(pts, p)
			}
		}
		return pts
	}
	for i := start; i <= steps; i++ {
		f := float64(i) / float64(steps)
		p := image.Pt(int(math.Round(a.X+f*(b.X-a.X))), int(math.Round(a.Y+f*(b.Y-a.Y))))
		if p.In(bounds) {
			pts = append(pts, p)
		}
	}
	return pts
}

func polygonBounds(vertices []measure.Point) image.Rectangle {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, v := range vertices {
		minX, maxX = math.Min(minX, v.X), math.Max(maxX, v.X)
		minY, maxY = math.Min(minY, v.Y), math.Max(maxY, v.Y)
	}
	return image.Rect(int(math.Floor(minX)), int(math.Floor(minY)), int(math.Ceil(maxX))+1, int(math.Ceil(maxY))+1)
}

// insidePolygon is the even-odd ray casting test.
func insidePolygon(vertices []measure.Point, x, y float64) bool {
	inside := false
	for i, j := 0, len(vertices)-1; i < len(vertices); j, i = i, i+1 {
		a, b := vertices[i], vertices[j]
		if (a.Y > y) != (b.Y > y) && x < (b.X-a.X)*(y-a.Y)/(b.Y-a.Y)+a.X {
			inside = !inside
		}
	}
	return inside
}
