package measure

import (
	"errors"
	"slices"
	"testing"

	"github.com/kataras/roi-export/pkg/catalog"
)

// fakeStats answers every request with channel-derived values and records
// each call.
type fakeStats struct {
	calls []catalog.StatsRequest
	err   error
	short bool
}

func (f *fakeStats) ShapeStats(req catalog.StatsRequest) (*catalog.ShapeStats, error) {
	f.calls = append(f.calls, req)
	if f.err != nil {
		return nil, f.err
	}

	n := len(req.Channels)
	if f.short {
		n--
	}
	s := &catalog.ShapeStats{
		PointsCount: make([]int64, n),
		Min:         make([]float64, n),
		Max:         make([]float64, n),
		Sum:         make([]float64, n),
		Mean:        make([]float64, n),
		StdDev:      make([]float64, n),
	}
	for i := 0; i < n; i++ {
		c := float64(req.Channels[i])
		s.PointsCount[i] = int64(100 + req.Channels[i])
		s.Min[i] = c
		s.Max[i] = c + 10
		s.Sum[i] = c * 100
		s.Mean[i] = c + 5
		s.StdDev[i] = float64(req.Z*10 + req.T)
	}
	return s, nil
}

var testImage = catalog.Image{
	ID:       7,
	Name:     "cells",
	SizeC:    4,
	SizeZ:    3,
	SizeT:    2,
	Channels: []string{"DAPI", "GFP", "", "RFP"},
}

func TestAssemblerExpandsAllPlanes(t *testing.T) {
	stats := &fakeStats{}
	a := &Assembler{Stats: stats, AllPlanes: true}
	shape := catalog.Shape{ID: 1, Kind: catalog.KindRectangle, Width: 2, Height: 3}

	rows, err := a.Shape(testImage, 10, shape, []int{1, 3}, Scale{})
	if err != nil {
		t.Fatalf("Shape() error = %v", err)
	}
	if len(rows) != 12 {
		t.Fatalf("rows = %d, want 12", len(rows))
	}
	if len(stats.calls) != 6 {
		t.Errorf("stats calls = %d, want one per plane (6)", len(stats.calls))
	}
	for _, call := range stats.calls {
		if !slices.Equal(call.Channels, []int{1, 3}) {
			t.Errorf("request channels = %v, want [1 3]", call.Channels)
		}
	}
	for i, r := range rows {
		if !r.Stats.Points.Valid || !r.Stats.StdDev.Valid {
			t.Errorf("row %d has blank statistics", i)
		}
		if !r.Geometry.Area.Valid || r.Geometry.Area.Value != 6 {
			t.Errorf("row %d area = %+v", i, r.Geometry.Area)
		}
	}

	// Z outer, T inner, channel innermost.
	last := rows[11]
	if last.Plane.DisplayZ() != "3" || last.Plane.DisplayT() != "2" || last.Channel != "RFP" {
		t.Errorf("last row = z%s t%s %s", last.Plane.DisplayZ(), last.Plane.DisplayT(), last.Channel)
	}
	if rows[1].Plane.DisplayT() != "1" || rows[2].Plane.DisplayT() != "2" {
		t.Errorf("T does not vary inside Z")
	}
	if last.Stats.StdDev.Value != 21 || last.Stats.Points.Value != 103 {
		t.Errorf("last row stats = %+v", last.Stats)
	}
}

func TestAssemblerWithoutAllPlanes(t *testing.T) {
	stats := &fakeStats{}
	a := &Assembler{Stats: stats}
	shape := catalog.Shape{ID: 1, Kind: catalog.KindEllipse, RadiusX: 1, RadiusY: 1}

	rows, err := a.Shape(testImage, 10, shape, []int{0, 1}, Scale{})
	if err != nil {
		t.Fatalf("Shape() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if len(stats.calls) != 0 {
		t.Errorf("stats calls = %d, want 0", len(stats.calls))
	}
	for _, r := range rows {
		if r.Stats != (Stats{}) {
			t.Errorf("stats = %+v, want blank", r.Stats)
		}
		if r.Plane.DisplayZ() != "" || r.Plane.DisplayT() != "" {
			t.Errorf("plane = %q/%q, want blank", r.Plane.DisplayZ(), r.Plane.DisplayT())
		}
		if !r.Geometry.Area.Valid {
			t.Error("geometry missing on no-stats plane")
		}
	}
}

func TestAssemblerExplicitPlane(t *testing.T) {
	stats := &fakeStats{}
	a := &Assembler{Stats: stats, AllPlanes: true}
	z, tp := 2, 1
	shape := catalog.Shape{ID: 5, Kind: catalog.KindPoint, TheZ: &z, TheT: &tp}

	rows, err := a.Shape(testImage, 1, shape, []int{0}, Scale{})
	if err != nil {
		t.Fatalf("Shape() error = %v", err)
	}
	if len(rows) != 1 || len(stats.calls) != 1 {
		t.Fatalf("rows = %d, calls = %d, want 1 and 1", len(rows), len(stats.calls))
	}
	if c := stats.calls[0]; c.Z != 2 || c.T != 1 || c.Shape.ID != 5 || c.ImageID != 7 {
		t.Errorf("request = %+v", c)
	}
	if rows[0].Plane.DisplayZ() != "3" || rows[0].Plane.DisplayT() != "2" {
		t.Errorf("plane = %s/%s", rows[0].Plane.DisplayZ(), rows[0].Plane.DisplayT())
	}
}

func TestAssemblerChannelNamesUseCatalogIndex(t *testing.T) {
	a := &Assembler{Stats: &fakeStats{}}
	rows, err := a.Shape(testImage, 1, catalog.Shape{ID: 1, Kind: catalog.KindPoint}, []int{3, 2, 0}, Scale{})
	if err != nil {
		t.Fatal(err)
	}

	var got []string
	for _, r := range rows {
		got = append(got, r.Channel)
	}
	if want := []string{"RFP", "2", "DAPI"}; !slices.Equal(got, want) {
		t.Errorf("channels = %v, want %v", got, want)
	}
}

func TestAssemblerImageOrdersROIsByID(t *testing.T) {
	a := &Assembler{Stats: &fakeStats{}}
	rois := []catalog.ROI{
		{ID: 30, Shapes: []catalog.Shape{{ID: 300, Kind: catalog.KindPoint}}},
		{ID: 10, Shapes: []catalog.Shape{{ID: 102, Kind: catalog.KindPoint}, {ID: 101, Kind: catalog.KindPoint}}},
		{ID: 20, Shapes: []catalog.Shape{{ID: 200, Kind: catalog.KindPoint}}},
	}

	rows, err := a.Image(testImage, rois, []int{0}, Scale{})
	if err != nil {
		t.Fatal(err)
	}

	var got []int64
	for _, r := range rows {
		got = append(got, r.ShapeID)
	}
	if want := []int64{102, 101, 200, 300}; !slices.Equal(got, want) {
		t.Errorf("shape order = %v, want %v", got, want)
	}
	if rois[0].ID != 30 {
		t.Error("Image() reordered the caller's slice")
	}
}

func TestAssemblerStatsFailureAborts(t *testing.T) {
	boom := errors.New("service unavailable")
	stats := &fakeStats{err: boom}
	a := &Assembler{Stats: stats, AllPlanes: true}
	rois := []catalog.ROI{
		{ID: 1, Shapes: []catalog.Shape{{ID: 1, Kind: catalog.KindPoint}, {ID: 2, Kind: catalog.KindPoint}}},
	}

	_, err := a.Image(testImage, rois, []int{0}, Scale{})
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want %v", err, boom)
	}
	var se *StatsError
	if !errors.As(err, &se) || se.ShapeID != 1 || se.ImageID != 7 {
		t.Errorf("error = %#v, want *StatsError for shape 1", err)
	}
	if len(stats.calls) != 1 {
		t.Errorf("stats calls = %d, want 1", len(stats.calls))
	}
}

func TestAssemblerRejectsShortStats(t *testing.T) {
	a := &Assembler{Stats: &fakeStats{short: true}, AllPlanes: true}
	_, err := a.Shape(testImage, 1, catalog.Shape{ID: 1, Kind: catalog.KindPoint}, []int{0, 1}, Scale{})

	var se *StatsError
	if !errors.As(err, &se) {
		t.Fatalf("error = %v, want *StatsError", err)
	}
}

func TestAssemblerRecoverableGeometryErrors(t *testing.T) {
	diag := NewDiagnostics(nil)
	a := &Assembler{Stats: &fakeStats{}, Diagnostics: diag}
	rois := []catalog.ROI{{ID: 1, Shapes: []catalog.Shape{
		{ID: 1, Kind: catalog.KindPolygon, Points: "points[1,2 3]"},
		{ID: 2, Kind: catalog.KindUnknown, TypeName: "http://www.openmicroscopy.org/Schemas/OME/2016-06#Spline"},
		{ID: 3, Kind: catalog.KindPolygon, Points: "0,0 2,0 2,2"},
	}}}

	rows, err := a.Image(testImage, rois, []int{0}, Scale{})
	if err != nil {
		t.Fatalf("Image() error = %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	if rows[0].Geometry != (Geometry{}) || rows[1].Geometry != (Geometry{}) {
		t.Error("rows with bad geometry carry geometry fields")
	}
	if rows[1].Type != "spline" {
		t.Errorf("type = %q, want spline", rows[1].Type)
	}
	if !rows[2].Geometry.Area.Valid || rows[2].Geometry.Area.Value != 2 {
		t.Errorf("polygon area = %+v, want 2", rows[2].Geometry.Area)
	}
	if diag.Count(LevelWarn) != 2 {
		t.Errorf("warnings = %v", diag.Lines())
	}
}

func TestAssemblerNoChannels(t *testing.T) {
	stats := &fakeStats{}
	a := &Assembler{Stats: stats, AllPlanes: true}
	rows, err := a.Shape(testImage, 1, catalog.Shape{ID: 1, Kind: catalog.KindPoint}, nil, Scale{})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 0 || len(stats.calls) != 0 {
		t.Errorf("rows = %d, calls = %d, want none", len(rows), len(stats.calls))
	}
}
