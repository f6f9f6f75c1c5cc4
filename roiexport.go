package roiexport

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/kataras/roi-export/pkg/catalog"
	"github.com/kataras/roi-export/pkg/formatter"
	"github.com/kataras/roi-export/pkg/measure"
)

// Version is the release of the exporter, reported by the CLI.
const Version = "0.3.0"

// Data types accepted by Options.DataType.
const (
	DataTypeImage   = "Image"
	DataTypeDataset = "Dataset"
)

// DefaultFileName is the name of the exported table when none is given.
const DefaultFileName = "Batch_ROI_Export.csv"

// Options configures the export.
type Options struct {
	// Source provides images, ROIs and statistics. When nil a catalog
	// client is created from BaseURL and AccessToken.
	Source      catalog.Source
	BaseURL     string
	AccessToken string

	// Stats overrides the statistics of Source, e.g. a *pixels.Service.
	Stats catalog.StatsService

	DataType  string  // "Image" (default) or "Dataset"
	IDs       []int64 // image or dataset ids
	Channels  []int   // 1-based; empty = [1]
	AllPlanes bool
	FileName  string // name of the exported table, ".csv" is appended when missing
	Logger    Logger // nil = no logging
}

// Logger receives progress messages. A nil Logger means silent operation.
type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// Result contains the export output.
type Result struct {
	Rows        []measure.Row
	Images      []catalog.Image
	Units       measure.Units
	FileName    string
	Message     string // "Exported N shapes"
	Markdown    string // run report
	Diagnostics *measure.Diagnostics
}

// WriteCSV writes the exported table.
func (r *Result) WriteCSV(w io.Writer) error {
	return formatter.WriteCSV(w, r.Rows, r.Units.Symbol)
}

// Run executes the ROI export pipeline and returns the result.
//
// Rows follow the image order of the catalog, then ROI id, shape order,
// plane and channel. A statistics failure aborts the run and is returned
// as *measure.StatsError; every other per-shape problem is recorded in
// Result.Diagnostics.
func Run(opts Options) (*Result, error) {
	start := time.Now()

	// Apply defaults.
	if opts.DataType == "" {
		opts.DataType = DataTypeImage
	}
	if len(opts.Channels) == 0 {
		opts.Channels = []int{1}
	}
	opts.FileName = OutputFileName(opts.FileName)

	diag := measure.NewDiagnostics(opts.Logger)

	diag.Infof("Data_Type:%s", opts.DataType)
	diag.Infof("IDs:%v", opts.IDs)
	diag.Infof("Channels:%v", opts.Channels)
	diag.Infof("Export_All_Planes:%t", opts.AllPlanes)
	diag.Infof("File_Name:%s", opts.FileName)

	if opts.DataType != DataTypeImage && opts.DataType != DataTypeDataset {
		return nil, fmt.Errorf("invalid data type %q (must be %s or %s)", opts.DataType, DataTypeImage, DataTypeDataset)
	}
	if len(opts.IDs) == 0 {
		return nil, fmt.Errorf("no %s IDs given", strings.ToLower(opts.DataType))
	}

	src := opts.Source
	if src == nil {
		if opts.BaseURL == "" {
			return nil, fmt.Errorf("no catalog: set a base URL or a source")
		}
		diag.Infof("Connecting to catalog %s...", opts.BaseURL)
		src = catalog.NewClient(opts.BaseURL, opts.AccessToken)
	}
	stats := opts.Stats
	if stats == nil {
		stats = src
	}

	images, err := fetchImages(src, opts, diag)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Images:      images,
		FileName:    opts.FileName,
		Diagnostics: diag,
	}

	diag.Infof("Processing %d images...", len(images))

	result.Units = measure.NormalizeUnits(images, diag)
	assembler := &measure.Assembler{
		Stats:       stats,
		Diagnostics: diag,
		AllPlanes:   opts.AllPlanes,
	}

	for _, img := range images {
		diag.Infof("Image ID %d...", img.ID)

		rois, err := src.ROIs(img.ID)
		if err != nil {
			return nil, fmt.Errorf("fetch ROIs of image %d: %w", img.ID, err)
		}

		channels := measure.ResolveChannels(opts.Channels, img.SizeC, diag)
		rows, err := assembler.Image(img, rois, channels, result.Units.ScaleFor(img.ID))
		if err != nil {
			diag.Errorf("Image ID %d: %v", img.ID, err)
			return nil, err
		}
		result.Rows = append(result.Rows, rows...)
	}

	result.Message = fmt.Sprintf("Exported %d shapes", len(result.Rows))
	diag.Infof("%s in %s", result.Message, time.Since(start).Round(time.Millisecond))

	result.Markdown = formatter.ToMarkdown(formatter.Report{
		FileName:    result.FileName,
		Symbol:      result.Units.Symbol,
		Images:      result.Images,
		Rows:        result.Rows,
		Diagnostics: diag.Entries(),
	})

	return result, nil
}

func fetchImages(src catalog.Catalog, opts Options, diag *measure.Diagnostics) ([]catalog.Image, error) {
	if opts.DataType == DataTypeDataset {
		images, err := src.DatasetImages(opts.IDs)
		if err != nil {
			return nil, fmt.Errorf("fetch dataset images: %w", err)
		}
		return images, nil
	}

	images, err := src.Images(opts.IDs)
	if err != nil {
		return nil, fmt.Errorf("fetch images: %w", err)
	}
	for _, id := range opts.IDs {
		if !slices.ContainsFunc(images, func(img catalog.Image) bool { return img.ID == id }) {
			diag.Warnf("Image ID %d not found", id)
		}
	}
	return images, nil
}

// OutputFileName returns name with a ".csv" suffix, or DefaultFileName when
// name is empty.
func OutputFileName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return DefaultFileName
	}
	if !strings.HasSuffix(name, ".csv") {
		name += ".csv"
	}
	return name
}

// ParseIDs parses a comma-separated string of catalog ids.
func ParseIDs(idsStr string) ([]int64, error) {
	parts := strings.Split(idsStr, ",")
	ids := make([]int64, 0, len(parts))

	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}

		id, err := strconv.ParseInt(trimmed, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q: %w", trimmed, err)
		}
		if id <= 0 {
			return nil, fmt.Errorf("id must be positive, got %d", id)
		}

		ids = append(ids, id)
	}

	return ids, nil
}

// ParseChannels parses a comma-separated string of 1-based channel indices.
// Order and duplicates are kept; range checks happen per image during the
// export. An empty string selects the first channel.
func ParseChannels(channelsStr string) ([]int, error) {
	parts := strings.Split(channelsStr, ",")
	channels := make([]int, 0, len(parts))

	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}

		c, err := strconv.Atoi(trimmed)
		if err != nil {
			return nil, fmt.Errorf("invalid channel %q: %w", trimmed, err)
		}

		channels = append(channels, c)
	}

	if len(channels) == 0 {
		return []int{1}, nil
	}

	return channels, nil
}
