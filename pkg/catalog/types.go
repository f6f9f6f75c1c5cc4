package catalog

import (
	"fmt"
	"strconv"
	"strings"
)

// ShapeKind identifies the geometric variant of a Shape.
type ShapeKind int

const (
	KindUnknown ShapeKind = iota
	KindRectangle
	KindEllipse
	KindLine
	KindPolygon
	KindPolyline
	KindMask
	KindLabel
	KindPoint
)

var kindNames = map[ShapeKind]string{
	KindRectangle: "rectangle",
	KindEllipse:   "ellipse",
	KindLine:      "line",
	KindPolygon:   "polygon",
	KindPolyline:  "polyline",
	KindMask:      "mask",
	KindLabel:     "label",
	KindPoint:     "point",
}

func (k ShapeKind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "unknown"
}

// ParseShapeKind maps a type tag to a ShapeKind. It accepts bare names in
// any case ("Rectangle", "polyline") as well as schema URIs of the form
// "http://www.openmicroscopy.org/Schemas/OME/2016-06#Rectangle".
func ParseShapeKind(s string) ShapeKind {
	if i := strings.LastIndex(s, "#"); i >= 0 {
		s = s[i+1:]
	}
	s = strings.ToLower(strings.TrimSpace(s))
	for k, n := range kindNames {
		if n == s {
			return k
		}
	}
	return KindUnknown
}

// UnmarshalText lets ShapeKind be decoded from JSON and YAML type tags.
func (k *ShapeKind) UnmarshalText(text []byte) error {
	*k = ParseShapeKind(string(text))
	return nil
}

// MarshalText writes the lowercase variant name.
func (k ShapeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Image is a multi-dimensional microscopy image as reported by the catalog.
// It is treated as immutable for the duration of an export.
type Image struct {
	ID         int64    `yaml:"id"`
	Name       string   `yaml:"name"`
	SizeC      int      `yaml:"sizeC"`
	SizeZ      int      `yaml:"sizeZ"`
	SizeT      int      `yaml:"sizeT"`
	PixelSizeX *Length  `yaml:"pixelSizeX,omitempty"`
	PixelSizeY *Length  `yaml:"pixelSizeY,omitempty"`
	Channels   []string `yaml:"channels,omitempty"`
}

// ChannelLabel returns the display name of the channel at the zero-based
// catalog index c. Unnamed channels are labelled with their index.
func (img Image) ChannelLabel(c int) string {
	if c >= 0 && c < len(img.Channels) && img.Channels[c] != "" {
		return img.Channels[c]
	}
	return strconv.Itoa(c)
}

// ROI is a region of interest: a container of shapes on one image.
// Shapes keep the catalog's native order.
type ROI struct {
	ID      int64   `yaml:"id"`
	ImageID int64   `yaml:"imageId,omitempty"`
	Shapes  []Shape `yaml:"shapes"`
}

// Shape is a tagged variant over the supported geometric primitives.
// Only the fields of its Kind are meaningful; TheZ and TheT are nil when the
// shape is not bound to a single plane.
type Shape struct {
	ID       int64     `yaml:"id"`
	Kind     ShapeKind `yaml:"type"`
	TypeName string    `yaml:"-"`
	Text     *string   `yaml:"text,omitempty"`
	TheZ     *int      `yaml:"theZ,omitempty"`
	TheT     *int      `yaml:"theT,omitempty"`

	X       float64 `yaml:"x,omitempty"`
	Y       float64 `yaml:"y,omitempty"`
	Width   float64 `yaml:"width,omitempty"`
	Height  float64 `yaml:"height,omitempty"`
	RadiusX float64 `yaml:"radiusX,omitempty"`
	RadiusY float64 `yaml:"radiusY,omitempty"`
	X1      float64 `yaml:"x1,omitempty"`
	Y1      float64 `yaml:"y1,omitempty"`
	X2      float64 `yaml:"x2,omitempty"`
	Y2      float64 `yaml:"y2,omitempty"`
	Points  string  `yaml:"points,omitempty"`
}

// TypeTag is the lowercase type written to the output "type" column.
// Unknown variants keep the catalog's own type name.
func (s Shape) TypeTag() string {
	if s.Kind != KindUnknown {
		return s.Kind.String()
	}
	name := s.TypeName
	if i := strings.LastIndex(name, "#"); i >= 0 {
		name = name[i+1:]
	}
	if name == "" {
		return "unknown"
	}
	return strings.ToLower(name)
}

// Label returns the shape text, or "" when unset.
func (s Shape) Label() string {
	if s.Text == nil {
		return ""
	}
	return *s.Text
}

// ShapeStats holds the intensity statistics for one shape on one plane.
// Every slice is indexed identically to the channel list of the request.
type ShapeStats struct {
	PointsCount []int64   `json:"pointsCount" yaml:"pointsCount"`
	Min         []float64 `json:"min" yaml:"min"`
	Max         []float64 `json:"max" yaml:"max"`
	Sum         []float64 `json:"sum" yaml:"sum"`
	Mean        []float64 `json:"mean" yaml:"mean"`
	StdDev      []float64 `json:"stdDev" yaml:"stdDev"`
}

// Check reports an error unless every array carries n entries.
func (s *ShapeStats) Check(n int) error {
	lens := map[string]int{
		"pointsCount": len(s.PointsCount),
		"min":         len(s.Min),
		"max":         len(s.Max),
		"sum":         len(s.Sum),
		"mean":        len(s.Mean),
		"stdDev":      len(s.StdDev),
	}
	for name, l := range lens {
		if l != n {
			return fmt.Errorf("statistics array %q has %d entries, expected %d", name, l, n)
		}
	}
	return nil
}

// StatsRequest asks for the statistics of one shape on a concrete plane,
// batched over an ordered set of zero-based channel indices.
type StatsRequest struct {
	ImageID  int64
	Shape    Shape
	Z, T     int
	Channels []int
}

// Catalog resolves image identifiers.
// Identifiers that do not resolve to an image are omitted from the result.
type Catalog interface {
	Images(ids []int64) ([]Image, error)
	DatasetImages(datasetIDs []int64) ([]Image, error)
}

// ROIDirectory lists the ROIs drawn on an image.
type ROIDirectory interface {
	ROIs(imageID int64) ([]ROI, error)
}

// StatsService computes intensity statistics for a shape.
type StatsService interface {
	ShapeStats(req StatsRequest) (*ShapeStats, error)
}

// Source bundles the three collaborators an export needs.
type Source interface {
	Catalog
	ROIDirectory
	StatsService
}
