package formatter

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kataras/roi-export/pkg/catalog"
	"github.com/kataras/roi-export/pkg/measure"
)

// Report is the input of the run report.
type Report struct {
	FileName    string // name of the exported table
	Symbol      string // length unit of the run
	Images      []catalog.Image
	Rows        []measure.Row
	Diagnostics []measure.Entry
}

// ToMarkdown renders a human-readable summary of an export run: the images
// that were processed, the number of rows per shape type and every diagnostic
// recorded while measuring.
func ToMarkdown(r Report) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# ROI Export - %s\n\n", r.FileName))
	sb.WriteString(fmt.Sprintf("Exported %d shapes from %d images. Lengths and areas are in **%s**.\n\n",
		len(r.Rows), len(r.Images), symbolOrPixels(r.Symbol)))

	// Images
	if len(r.Images) > 0 {
		perImage := make(map[int64]int, len(r.Images))
		for _, row := range r.Rows {
			perImage[row.ImageID]++
		}

		sb.WriteString("## Images\n\n")
		sb.WriteString("| ID | Name | Channels | Z | T | Pixel size | Rows |\n")
		sb.WriteString("|---|---|---|---|---|---|---|\n")
		for _, img := range r.Images {
			sb.WriteString(fmt.Sprintf("| %d | %s | %d | %d | %d | %s | %d |\n",
				img.ID, escapeCell(img.Name), img.SizeC, img.SizeZ, img.SizeT, pixelSize(img), perImage[img.ID]))
		}
		sb.WriteString("\n")
	}

	// Shapes
	if len(r.Rows) > 0 {
		types := make(map[string]int)
		shapes := make(map[string]map[int64]struct{})
		for _, row := range r.Rows {
			types[row.Type]++
			if shapes[row.Type] == nil {
				shapes[row.Type] = make(map[int64]struct{})
			}
			shapes[row.Type][row.ShapeID] = struct{}{}
		}

		names := make([]string, 0, len(types))
		for name := range types {
			names = append(names, name)
		}
		sort.Strings(names)

		sb.WriteString("## Shapes\n\n")
		sb.WriteString("| Type | Shapes | Rows |\n")
		sb.WriteString("|---|---|---|\n")
		for _, name := range names {
			sb.WriteString(fmt.Sprintf("| %s | %d | %d |\n", name, len(shapes[name]), types[name]))
		}
		sb.WriteString("\n")
	}

	// Diagnostics
	if len(r.Diagnostics) > 0 {
		sb.WriteString("## Diagnostics\n\n")
		for _, e := range r.Diagnostics {
			sb.WriteString(fmt.Sprintf("- **%s** %s\n", e.Level, e.Message))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

func symbolOrPixels(symbol string) string {
	if symbol == "" {
		return measure.PixelsSymbol
	}
	return symbol
}

func pixelSize(img catalog.Image) string {
	if img.PixelSizeX == nil {
		return "-"
	}
	x := img.PixelSizeX
	if img.PixelSizeY == nil {
		return fmt.Sprintf("%g %s", x.Value, x.DisplaySymbol())
	}
	return fmt.Sprintf("%g x %g %s", x.Value, img.PixelSizeY.Value, x.DisplaySymbol())
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
