package formatter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/kataras/roi-export/pkg/measure"
)

// Columns is the fixed column order of the export table. "area" and
// "length" get a unit suffix in the header, see Header.
var Columns = []string{
	"image_id",
	"image_name",
	"roi_id",
	"shape_id",
	"type",
	"text",
	"z",
	"t",
	"channel",
	"area",
	"length",
	"points",
	"min",
	"max",
	"sum",
	"mean",
	"std_dev",
	"X",
	"Y",
	"Width",
	"Height",
	"RadiusX",
	"RadiusY",
	"X1",
	"Y1",
	"X2",
	"Y2",
	"Points",
}

// Header returns the column names with the unit symbol appended to the area
// and length columns. An empty symbol means pixels.
func Header(symbol string) []string {
	if symbol == "" {
		symbol = measure.PixelsSymbol
	}
	header := make([]string, len(Columns))
	for i, name := range Columns {
		switch name {
		case "area", "length":
			header[i] = fmt.Sprintf("%s (%s)", name, symbol)
		default:
			header[i] = name
		}
	}
	return header
}

// Cells renders one row in column order. Missing values are empty strings.
func Cells(r measure.Row) []string {
	g := r.Geometry
	s := r.Stats
	return []string{
		strconv.FormatInt(r.ImageID, 10),
		r.ImageName,
		strconv.FormatInt(r.ROIID, 10),
		strconv.FormatInt(r.ShapeID, 10),
		r.Type,
		r.Text,
		r.Plane.DisplayZ(),
		r.Plane.DisplayT(),
		r.Channel,
		float(g.Area),
		float(g.Length),
		integer(s.Points),
		float(s.Min),
		float(s.Max),
		float(s.Sum),
		float(s.Mean),
		float(s.StdDev),
		float(g.X),
		float(g.Y),
		float(g.Width),
		float(g.Height),
		float(g.RadiusX),
		float(g.RadiusY),
		float(g.X1),
		float(g.Y1),
		float(g.X2),
		float(g.Y2),
		g.Points.Value,
	}
}

// WriteCSV writes the header and every row. Cells containing the delimiter,
// quotes or line breaks are quoted.
func WriteCSV(w io.Writer, rows []measure.Row, symbol string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header(symbol)); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, r := range rows {
		if err := cw.Write(Cells(r)); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func float(v measure.Optional[float64]) string {
	if !v.Valid {
		return ""
	}
	return strconv.FormatFloat(v.Value, 'f', -1, 64)
}

func integer(v measure.Optional[int64]) string {
	if !v.Valid {
		return ""
	}
	return strconv.FormatInt(v.Value, 10)
}
