package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FileCatalog is an offline Source backed by a YAML document describing
// images, datasets, ROIs and precomputed shape statistics. It is used for
// reproducible exports and tests without a catalog server.
//
//	images:
//	  - id: 1
//	    name: cells.tif
//	    sizeC: 2
//	    sizeZ: 3
//	    sizeT: 1
//	    pixelSizeX: {value: 0.5, unit: MICROMETER}
//	    pixelSizeY: {value: 0.5, unit: MICROMETER}
//	    channels: [DAPI, GFP]
//	    rois:
//	      - id: 10
//	        shapes:
//	          - {id: 100, type: rectangle, x: 2, y: 2, width: 10, height: 5, theZ: 0, theT: 0}
//	datasets:
//	  - {id: 7, images: [1]}
//	stats:
//	  - {shape: 100, z: 0, t: 0, channel: 0, pointsCount: 50, min: 1, max: 9, sum: 250, mean: 5, stdDev: 1.5}
type FileCatalog struct {
	images   []Image
	byID     map[int64]int
	rois     map[int64][]ROI
	datasets map[int64][]int64
	stats    map[statsKey]fixtureStat
}

type fixtureDoc struct {
	Images   []fixtureImage   `yaml:"images"`
	Datasets []fixtureDataset `yaml:"datasets"`
	Stats    []fixtureStat    `yaml:"stats"`
}

type fixtureImage struct {
	Image `yaml:",inline"`
	ROIs  []ROI `yaml:"rois"`
}

type fixtureDataset struct {
	ID     int64   `yaml:"id"`
	Images []int64 `yaml:"images"`
}

type fixtureStat struct {
	Shape       int64   `yaml:"shape"`
	Z           int     `yaml:"z"`
	T           int     `yaml:"t"`
	Channel     int     `yaml:"channel"`
	PointsCount int64   `yaml:"pointsCount"`
	Min         float64 `yaml:"min"`
	Max         float64 `yaml:"max"`
	Sum         float64 `yaml:"sum"`
	Mean        float64 `yaml:"mean"`
	StdDev      float64 `yaml:"stdDev"`
}

type statsKey struct {
	shape   int64
	z, t, c int
}

// UnmarshalYAML decodes a shape and keeps the raw type name so that
// unsupported variants still report their own type.
func (s *Shape) UnmarshalYAML(value *yaml.Node) error {
	type plain Shape
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	*s = Shape(p)

	for i := 0; i+1 < len(value.Content); i += 2 {
		if value.Content[i].Value == "type" {
			s.TypeName = value.Content[i+1].Value
		}
	}
	return nil
}

// LoadFileCatalog reads a YAML catalog document from path.
func LoadFileCatalog(path string) (*FileCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading catalog file: %w", err)
	}
	return ParseFileCatalog(data)
}

// ParseFileCatalog decodes a YAML catalog document.
func ParseFileCatalog(data []byte) (*FileCatalog, error) {
	var doc fixtureDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("error parsing catalog file: %w", err)
	}

	fc := &FileCatalog{
		byID:     make(map[int64]int, len(doc.Images)),
		rois:     make(map[int64][]ROI, len(doc.Images)),
		datasets: make(map[int64][]int64, len(doc.Datasets)),
		stats:    make(map[statsKey]fixtureStat, len(doc.Stats)),
	}

	for _, fi := range doc.Images {
		if _, dup := fc.byID[fi.ID]; dup {
			return nil, fmt.Errorf("duplicate image id %d", fi.ID)
		}
		fc.byID[fi.ID] = len(fc.images)
		fc.images = append(fc.images, fi.Image)

		rois := make([]ROI, len(fi.ROIs))
		for i, roi := range fi.ROIs {
			roi.ImageID = fi.ID
			rois[i] = roi
		}
		fc.rois[fi.ID] = rois
	}

	for _, ds := range doc.Datasets {
		fc.datasets[ds.ID] = ds.Images
	}

	for _, st := range doc.Stats {
		fc.stats[statsKey{st.Shape, st.Z, st.T, st.Channel}] = st
	}

	return fc, nil
}

// Images returns the known images among ids, in request order.
func (fc *FileCatalog) Images(ids []int64) ([]Image, error) {
	images := make([]Image, 0, len(ids))
	for _, id := range ids {
		if i, ok := fc.byID[id]; ok {
			images = append(images, fc.images[i])
		}
	}
	return images, nil
}

// DatasetImages returns the images of each known dataset.
func (fc *FileCatalog) DatasetImages(datasetIDs []int64) ([]Image, error) {
	var images []Image
	for _, id := range datasetIDs {
		members, ok := fc.datasets[id]
		if !ok {
			continue
		}
		found, _ := fc.Images(members)
		images = append(images, found...)
	}
	return images, nil
}

// ROIs returns the ROIs of an image in document order.
func (fc *FileCatalog) ROIs(imageID int64) ([]ROI, error) {
	if _, ok := fc.byID[imageID]; !ok {
		return nil, fmt.Errorf("%w: image %d", ErrNotFound, imageID)
	}
	return fc.rois[imageID], nil
}

// ShapeStats looks up precomputed statistics for every requested channel.
func (fc *FileCatalog) ShapeStats(req StatsRequest) (*ShapeStats, error) {
	n := len(req.Channels)
	out := &ShapeStats{
		PointsCount: make([]int64, n),
		Min:         make([]float64, n),
		Max:         make([]float64, n),
		Sum:         make([]float64, n),
		Mean:        make([]float64, n),
		StdDev:      make([]float64, n),
	}

	for i, c := range req.Channels {
		st, ok := fc.stats[statsKey{req.Shape.ID, req.Z, req.T, c}]
		if !ok {
			return nil, fmt.Errorf("%w: statistics for shape %d at z=%d t=%d c=%d",
				ErrNotFound, req.Shape.ID, req.Z, req.T, c)
		}
		out.PointsCount[i] = st.PointsCount
		out.Min[i] = st.Min
		out.Max[i] = st.Max
		out.Sum[i] = st.Sum
		out.Mean[i] = st.Mean
		out.StdDev[i] = st.StdDev
	}

	return out, nil
}
