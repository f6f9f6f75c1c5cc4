package measure

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// ErrMalformedPoints is returned when a polygon or polyline point list does
// not parse into numeric x,y pairs.
var ErrMalformedPoints = errors.New("malformed point list")

// Some producers wrap the list as "points[x,y x,y ...]".
var pointListRE = regexp.MustCompile(`points\[([^\]]+)\]`)

// Point is a pixel-space vertex.
type Point struct {
	X, Y float64
}

// StripPointList removes the "points[...]" wrapper when present and returns
// the bare list. Lists without the wrapper are returned unchanged.
func StripPointList(raw string) string {
	if m := pointListRE.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	return raw
}

// ParsePoints parses a point list of "x,y" pairs separated by whitespace
// and/or commas.
func ParsePoints(raw string) ([]Point, error) {
	fields := strings.FieldsFunc(StripPointList(raw), func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrMalformedPoints)
	}
	if len(fields)%2 != 0 {
		return nil, fmt.Errorf("%w: odd number of coordinates (%d)", ErrMalformedPoints, len(fields))
	}

	points := make([]Point, 0, len(fields)/2)
	for i := 0; i < len(fields); i += 2 {
		x, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a number", ErrMalformedPoints, fields[i])
		}
		y, err := strconv.ParseFloat(fields[i+1], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a number", ErrMalformedPoints, fields[i+1])
		}
		points = append(points, Point{X: x, Y: y})
	}
	return points, nil
}
