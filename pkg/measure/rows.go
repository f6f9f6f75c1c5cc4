package measure

import (
	"errors"
	"fmt"
	"sort"

	"github.com/kataras/roi-export/pkg/catalog"
)

// Stats is the per-channel slice of a statistics response. All fields are
// invalid on a no-stats plane.
type Stats struct {
	Points Optional[int64]
	Min    Optional[float64]
	Max    Optional[float64]
	Sum    Optional[float64]
	Mean   Optional[float64]
	StdDev Optional[float64]
}

// Row is one measurement: a shape on one plane for one channel.
type Row struct {
	ImageID   int64
	ImageName string
	ROIID     int64
	ShapeID   int64
	Type      string
	Text      string
	Plane     Plane

	Channel      string // display name
	ChannelIndex int    // zero-based catalog index

	Stats    Stats
	Geometry Geometry
}

// StatsError reports a failed statistics request. The run is aborted with it;
// Err is the service error, unchanged.
type StatsError struct {
	ImageID int64
	ShapeID int64
	Plane   Plane
	Err     error
}

func (e *StatsError) Error() string {
	return fmt.Sprintf("statistics for image %d shape %d (z=%s, t=%s): %v",
		e.ImageID, e.ShapeID, e.Plane.DisplayZ(), e.Plane.DisplayT(), e.Err)
}

func (e *StatsError) Unwrap() error { return e.Err }

// Assembler turns the ROIs of an image into ordered measurement rows.
type Assembler struct {
	Stats       catalog.StatsService
	Diagnostics *Diagnostics
	AllPlanes   bool
}

// Image returns the rows of all ROIs of img, ordered by ROI id, then by the
// native shape order, then plane, then channel. channels are the validated
// zero-based channel indices. The first statistics failure aborts the image.
func (a *Assembler) Image(img catalog.Image, rois []catalog.ROI, channels []int, scale Scale) ([]Row, error) {
	sorted := make([]catalog.ROI, len(rois))
	copy(sorted, rois)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	var rows []Row
	for _, roi := range sorted {
		for _, shape := range roi.Shapes {
			shapeRows, err := a.Shape(img, roi.ID, shape, channels, scale)
			if err != nil {
				return rows, err
			}
			rows = append(rows, shapeRows...)
		}
	}
	return rows, nil
}

// Shape returns the rows of a single shape. Geometry is computed once and
// the statistics service is called once per stats plane for all channels.
func (a *Assembler) Shape(img catalog.Image, roiID int64, s catalog.Shape, channels []int, scale Scale) ([]Row, error) {
	geom, err := ComputeGeometry(s, scale)
	if err != nil {
		switch {
		case errors.Is(err, ErrMalformedPoints):
			a.Diagnostics.Warnf("Image ID %d, Shape ID %d: skipping geometry: %v", img.ID, s.ID, err)
		case errors.Is(err, ErrUnsupportedShape):
			a.Diagnostics.Warnf("Image ID %d, Shape ID %d: %v", img.ID, s.ID, err)
		default:
			return nil, err
		}
	}

	planes := Planes(
		SelectAxis(s.TheZ, a.AllPlanes),
		SelectAxis(s.TheT, a.AllPlanes),
		img.SizeZ, img.SizeT,
	)

	rows := make([]Row, 0, len(planes)*len(channels))
	for _, plane := range planes {
		var resp *catalog.ShapeStats
		if plane.HasStats() && len(channels) > 0 {
			resp, err = a.fetch(img.ID, s, plane, channels)
			if err != nil {
				return nil, err
			}
		}

		for i, c := range channels {
			row := Row{
				ImageID:      img.ID,
				ImageName:    img.Name,
				ROIID:        roiID,
				ShapeID:      s.ID,
				Type:         s.TypeTag(),
				Text:         s.Label(),
				Plane:        plane,
				Channel:      img.ChannelLabel(c),
				ChannelIndex: c,
				Geometry:     geom,
			}
			if resp != nil {
				row.Stats = Stats{
					Points: Some(resp.PointsCount[i]),
					Min:    Some(resp.Min[i]),
					Max:    Some(resp.Max[i]),
					Sum:    Some(resp.Sum[i]),
					Mean:   Some(resp.Mean[i]),
					StdDev: Some(resp.StdDev[i]),
				}
			}
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func (a *Assembler) fetch(imageID int64, s catalog.Shape, plane Plane, channels []int) (*catalog.ShapeStats, error) {
	shapeID := s.ID
	if a.Stats == nil {
		return nil, &StatsError{ImageID: imageID, ShapeID: shapeID, Plane: plane, Err: errors.New("no statistics service")}
	}

	resp, err := a.Stats.ShapeStats(catalog.StatsRequest{
		ImageID:  imageID,
		Shape:    s,
		Z:        plane.Z.Value,
		T:        plane.T.Value,
		Channels: channels,
	})
	if err != nil {
		return nil, &StatsError{ImageID: imageID, ShapeID: shapeID, Plane: plane, Err: err}
	}
	if resp == nil {
		return nil, &StatsError{ImageID: imageID, ShapeID: shapeID, Plane: plane, Err: errors.New("empty response")}
	}
	if err := resp.Check(len(channels)); err != nil {
		return nil, &StatsError{ImageID: imageID, ShapeID: shapeID, Plane: plane, Err: err}
	}
	return resp, nil
}
