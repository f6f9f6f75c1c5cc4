package catalog

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL+"/", "secret")
	c.retryDelay = time.Millisecond
	return c
}

const imageBody = `{"data": {
  "@id": 42,
  "Name": "cells.tif",
  "Pixels": {
    "SizeC": 2, "SizeZ": 3, "SizeT": 4,
    "PhysicalSizeX": {"Value": 0.25, "Unit": "MICROMETER", "Symbol": "µm"},
    "PhysicalSizeY": {"Value": 0.5, "Unit": "MICROMETER", "Symbol": "µm"},
    "Channels": [{"Name": "DAPI"}, {"Name": ""}]
  }
}}`

func TestClientImages(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization header = %q", got)
		}
		switch r.URL.Path {
		case "/api/v0/m/images/42/":
			fmt.Fprint(w, imageBody)
		default:
			http.NotFound(w, r)
		}
	})

	images, err := c.Images([]int64{42, 7})
	if err != nil {
		t.Fatalf("Images() error = %v", err)
	}
	if len(images) != 1 {
		t.Fatalf("Images() returned %d images, want 1", len(images))
	}

	img := images[0]
	if img.ID != 42 || img.Name != "cells.tif" {
		t.Errorf("image identity = (%d, %q)", img.ID, img.Name)
	}
	if img.SizeC != 2 || img.SizeZ != 3 || img.SizeT != 4 {
		t.Errorf("sizes = C%d Z%d T%d, want C2 Z3 T4", img.SizeC, img.SizeZ, img.SizeT)
	}
	if img.PixelSizeX == nil || img.PixelSizeX.Value != 0.25 || img.PixelSizeX.Unit != Micrometer {
		t.Errorf("PixelSizeX = %+v", img.PixelSizeX)
	}
	if got := img.ChannelLabel(0); got != "DAPI" {
		t.Errorf("ChannelLabel(0) = %q, want DAPI", got)
	}
	if got := img.ChannelLabel(1); got != "1" {
		t.Errorf("ChannelLabel(1) = %q, want index fallback", got)
	}
}

func TestClientROIsPaginates(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.URL.Path != "/api/v0/m/rois/" || r.URL.Query().Get("image") != "42" {
			http.NotFound(w, r)
			return
		}
		switch r.URL.Query().Get("offset") {
		case "0":
			fmt.Fprint(w, `{"data": [{"@id": 5, "shapes": [
				{"@id": 50, "@type": "http://www.openmicroscopy.org/Schemas/OME/2016-06#Rectangle", "X": 1, "Y": 2, "Width": 3, "Height": 4, "TheZ": 0},
				{"@id": 51, "@type": "http://www.openmicroscopy.org/Schemas/OME/2016-06#Polyline", "Points": "1,1 2,2", "Text": "axon"}
			]}], "meta": {"offset": 0, "limit": 1, "totalCount": 2}}`)
		case "1":
			fmt.Fprint(w, `{"data": [{"@id": 3, "shapes": [
				{"@id": 30, "@type": "#Spline"}
			]}], "meta": {"offset": 1, "limit": 1, "totalCount": 2}}`)
		default:
			t.Errorf("unexpected offset %q", r.URL.Query().Get("offset"))
		}
	})

	rois, err := c.ROIs(42)
	if err != nil {
		t.Fatalf("ROIs() error = %v", err)
	}
	if calls != 2 {
		t.Errorf("server saw %d calls, want 2", calls)
	}
	if len(rois) != 2 {
		t.Fatalf("ROIs() returned %d ROIs, want 2", len(rois))
	}

	rect := rois[0].Shapes[0]
	if rect.Kind != KindRectangle || rect.Width != 3 || rect.TheZ == nil || *rect.TheZ != 0 || rect.TheT != nil {
		t.Errorf("rectangle decoded as %+v", rect)
	}
	line := rois[0].Shapes[1]
	if line.Kind != KindPolyline || line.Points != "1,1 2,2" || line.Label() != "axon" {
		t.Errorf("polyline decoded as %+v", line)
	}
	if got := rois[1].Shapes[0].TypeTag(); got != "spline" {
		t.Errorf("unknown shape TypeTag() = %q, want spline", got)
	}
	if rois[1].ImageID != 42 {
		t.Errorf("ROI ImageID = %d, want 42", rois[1].ImageID)
	}
}

func TestClientShapeStatsIsNotRetried(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := c.ShapeStats(StatsRequest{Shape: Shape{ID: 9}, Z: 1, T: 2, Channels: []int{0, 2}})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusInternalServerError {
		t.Fatalf("ShapeStats() error = %v, want APIError 500", err)
	}
	if calls != 1 {
		t.Errorf("stats endpoint called %d times, want 1", calls)
	}
}

func TestClientShapeStats(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if r.URL.Path != "/api/v0/m/shapes/9/stats/" || q.Get("theZ") != "1" || q.Get("theT") != "2" || q.Get("channels") != "0,2" {
			t.Errorf("unexpected request %s", r.URL.String())
		}
		fmt.Fprint(w, `{"data": {"pointsCount": [10, 10], "min": [1, 2], "max": [5, 6],
			"sum": [30, 40], "mean": [3, 4], "stdDev": [0.5, 0.25]}}`)
	})

	stats, err := c.ShapeStats(StatsRequest{Shape: Shape{ID: 9}, Z: 1, T: 2, Channels: []int{0, 2}})
	if err != nil {
		t.Fatalf("ShapeStats() error = %v", err)
	}
	if err := stats.Check(2); err != nil {
		t.Fatalf("Check(2) = %v", err)
	}
	if stats.Mean[1] != 4 || stats.PointsCount[0] != 10 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestClientRetriesMetadata(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, imageBody)
	})

	images, err := c.Images([]int64{42})
	if err != nil {
		t.Fatalf("Images() error = %v", err)
	}
	if len(images) != 1 || calls != 3 {
		t.Errorf("got %d images after %d calls, want 1 after 3", len(images), calls)
	}
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "forbidden", http.StatusForbidden)
	})

	_, err := c.DatasetImages([]int64{1})
	if err == nil || !strings.Contains(err.Error(), "status 403") {
		t.Fatalf("DatasetImages() error = %v, want 403", err)
	}
	if calls != 1 {
		t.Errorf("server saw %d calls, want 1", calls)
	}
}

func TestParseShapeKind(t *testing.T) {
	tests := []struct {
		in   string
		want ShapeKind
	}{
		{"Rectangle", KindRectangle},
		{"ellipse", KindEllipse},
		{"  LINE ", KindLine},
		{"http://www.openmicroscopy.org/Schemas/OME/2016-06#Polygon", KindPolygon},
		{"polyline", KindPolyline},
		{"Mask", KindMask},
		{"Label", KindLabel},
		{"Point", KindPoint},
		{"Spline", KindUnknown},
		{"", KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseShapeKind(tt.in); got != tt.want {
				t.Errorf("ParseShapeKind(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
