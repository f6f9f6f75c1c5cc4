// Package roiexport measures the regions of interest drawn on microscopy
// images and exports one table row per (shape, plane, channel), combining
// shape geometry (area, length, coordinates) with pixel intensity statistics.
//
// The CLI lives in cmd/roi-export; this root package exposes the same
// pipeline as a Go API.
//
// # Import
//
// The module path contains a hyphen but Go package names cannot, so the
// package is named roiexport:
//
//	import "github.com/kataras/roi-export" // package roiexport
//
// # Quick start
//
//	result, err := roiexport.Run(roiexport.Options{
//	    BaseURL:     "https://catalog.example.org",
//	    AccessToken: os.Getenv("ROI_EXPORT_TOKEN"),
//	    IDs:         []int64{101, 102},
//	    Channels:    []int{1, 2},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	f, _ := os.Create(result.FileName)
//	defer f.Close()
//	result.WriteCSV(f)
//
// # Sources
//
// Images, ROIs and statistics come from a [catalog.Source]: the HTTP
// [catalog.Client] by default, or a [catalog.FileCatalog] loaded from YAML.
// Set [Options.Stats] to compute statistics elsewhere, for example from
// plane rasters on disk with pixels.Service.
//
// # Logging
//
// Pass a [Logger] implementation in [Options.Logger] to receive progress
// messages. A nil Logger silences all output. Every message is also kept in
// [Result.Diagnostics], which is the run log.
//
// # Planes
//
// Shapes bound to a Z or T index are measured there only. Unbound shapes are
// either measured on every plane ([Options.AllPlanes]) or exported once
// without statistics.
package roiexport
