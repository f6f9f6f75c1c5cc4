package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	roiexport "github.com/kataras/roi-export"
	"github.com/kataras/roi-export/pkg/catalog"
	"github.com/kataras/roi-export/pkg/config"
	"github.com/kataras/roi-export/pkg/pixels"
	"github.com/kataras/roi-export/pkg/store"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

const version = roiexport.Version

const defaultConfigFile = "roi-export.yaml"

// flags holds the raw command line values. They only override the
// configuration when set explicitly.
type flags struct {
	configPath  string
	baseURL     string
	token       string
	fixture     string
	planesDir   string
	planeLayout string
	dataType    string
	ids         string
	channels    string
	allPlanes   bool
	output      string
	logFile     string
	report      string
	sqlite      string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		color.New(color.FgRed).Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var f flags

	rootCmd := &cobra.Command{
		Use:   "roi-export",
		Short: "Export ROI measurements of microscopy images",
		Long: "A tool to measure the regions of interest drawn on microscopy images and export " +
			"one CSV row per shape, plane and channel with geometry and intensity statistics",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, &f)
		},
	}

	rootCmd.Flags().StringVarP(&f.configPath, "config", "c", defaultConfigFile, "YAML configuration file (optional)")
	rootCmd.Flags().StringVarP(&f.baseURL, "url", "u", "", "Catalog API base URL")
	rootCmd.Flags().StringVarP(&f.token, "token", "t", "", "Catalog access token")
	rootCmd.Flags().StringVar(&f.fixture, "fixture", "", "Read images, ROIs and statistics from a YAML catalog file instead of the API")
	rootCmd.Flags().StringVar(&f.planesDir, "planes-dir", "", "Compute statistics locally from plane rasters in this directory")
	rootCmd.Flags().StringVar(&f.planeLayout, "plane-layout", pixels.DefaultLayout, "Plane raster path template below --planes-dir")
	rootCmd.Flags().StringVarP(&f.dataType, "data-type", "d", roiexport.DataTypeImage, "Type of the given IDs: Image or Dataset")
	rootCmd.Flags().StringVarP(&f.ids, "ids", "i", "", "Comma-separated image or dataset IDs")
	rootCmd.Flags().StringVar(&f.channels, "channels", "1", "Comma-separated 1-based channel indices")
	rootCmd.Flags().BoolVarP(&f.allPlanes, "all-planes", "a", false, "Measure shapes without Z/T on every plane")
	rootCmd.Flags().StringVarP(&f.output, "output", "o", config.DefaultFileName, "Output CSV file")
	rootCmd.Flags().StringVar(&f.logFile, "log-file", "", "Write the run log to this file")
	rootCmd.Flags().StringVar(&f.report, "report", "", "Write a markdown run report to this file")
	rootCmd.Flags().StringVar(&f.sqlite, "sqlite", "", "Also store the rows in this SQLite database")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "roi-export version %s\n", version)
		},
	}

	initCmd := &cobra.Command{
		Use:   "init-config [path]",
		Short: "Write a default configuration file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := defaultConfigFile
			if len(args) == 1 {
				path = args[0]
			}
			if err := config.CreateDefaultConfigFile(path); err != nil {
				return err
			}
			color.New(color.FgGreen).Printf("✓ Wrote %s\n", path)
			return nil
		},
	}

	historyCmd := &cobra.Command{
		Use:   "history <database>",
		Short: "List the exports stored in a SQLite database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := store.Open(args[0])
			if err != nil {
				return err
			}
			defer db.Close()

			exports, err := db.Exports()
			if err != nil {
				return err
			}
			for _, e := range exports {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\t%s\t%s\n",
					e.ID, e.CreatedAt.Format("2006-01-02 15:04:05"), e.FileName, e.Symbol, e.Message)
			}
			return nil
		},
	}

	rootCmd.AddCommand(versionCmd, initCmd, historyCmd)
	return rootCmd
}

func run(cmd *cobra.Command, f *flags) error {
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	cyan := color.New(color.FgCyan)

	cyan.Println("\n🔬 ROI Export")
	cyan.Println("=============")
	cyan.Println()

	cfg, err := loadConfig(cmd, f)
	if err != nil {
		return err
	}

	opts := roiexport.Options{
		BaseURL:     cfg.Catalog.BaseURL,
		AccessToken: cfg.Catalog.Token,
		DataType:    cfg.Export.DataType,
		IDs:         cfg.Export.IDs,
		Channels:    cfg.Export.Channels,
		AllPlanes:   cfg.Export.AllPlanes,
		FileName:    cfg.Export.FileName,
		Logger:      &cliLogger{},
	}

	if cfg.Catalog.Fixture != "" {
		fc, err := catalog.LoadFileCatalog(cfg.Catalog.Fixture)
		if err != nil {
			return err
		}
		opts.Source = fc
	}
	if cfg.Catalog.PlanesDir != "" {
		opts.Stats = pixels.New(cfg.Catalog.PlanesDir, cfg.Catalog.PlaneLayout)
	}

	result, err := roiexport.Run(opts)
	if err != nil {
		return err
	}

	// Display summary.
	cyan.Println("\n📊 Export Summary:")
	fmt.Printf("  • Images: %d\n", len(result.Images))
	fmt.Printf("  • Rows: %d\n", len(result.Rows))
	fmt.Printf("  • Unit: %s\n", result.Units.Symbol)
	fmt.Printf("  • Diagnostics: %d\n", len(result.Diagnostics.Entries()))

	// Write CSV.
	outputFile := result.FileName
	green.Printf("\n💾 Writing to %s... ", outputFile)
	if err := writeFile(outputFile, result.WriteCSV); err != nil {
		red.Printf("✗\n")
		return err
	}
	green.Println("✓")

	if cfg.Output.LogFile != "" {
		err := writeFile(cfg.Output.LogFile, func(w io.Writer) error {
			_, err := result.Diagnostics.WriteTo(w)
			return err
		})
		if err != nil {
			return fmt.Errorf("write log file: %w", err)
		}
	}

	if cfg.Output.Report != "" {
		if err := os.WriteFile(cfg.Output.Report, []byte(result.Markdown), 0644); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	}

	if cfg.Output.SQLite != "" {
		db, err := store.Open(cfg.Output.SQLite)
		if err != nil {
			return err
		}
		defer db.Close()

		id, err := db.SaveExport(store.Export{
			FileName: result.FileName,
			Symbol:   result.Units.Symbol,
			Message:  result.Message,
		}, result.Rows)
		if err != nil {
			return err
		}
		fmt.Printf("  • Stored as export #%d in %s\n", id, cfg.Output.SQLite)
	}

	green.Printf("\n✨ %s to %s\n\n", result.Message, outputFile)
	return nil
}

// loadConfig merges defaults, the config file, the environment and the
// flags that were set explicitly, in increasing priority.
func loadConfig(cmd *cobra.Command, f *flags) (*config.Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}

	cfg, err := config.LoadConfig(f.configPath)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()

	set := cmd.Flags().Changed
	if set("url") {
		cfg.Catalog.BaseURL = f.baseURL
	}
	if set("token") {
		cfg.Catalog.Token = f.token
	}
	if set("fixture") {
		cfg.Catalog.Fixture = f.fixture
	}
	if set("planes-dir") {
		cfg.Catalog.PlanesDir = f.planesDir
	}
	if set("plane-layout") {
		cfg.Catalog.PlaneLayout = f.planeLayout
	}
	if set("data-type") {
		cfg.Export.DataType = f.dataType
	}
	if set("ids") {
		ids, err := roiexport.ParseIDs(f.ids)
		if err != nil {
			return nil, err
		}
		cfg.Export.IDs = ids
	}
	if set("channels") {
		channels, err := roiexport.ParseChannels(f.channels)
		if err != nil {
			return nil, err
		}
		cfg.Export.Channels = channels
	}
	if set("all-planes") {
		cfg.Export.AllPlanes = f.allPlanes
	}
	if set("output") {
		cfg.Export.FileName = f.output
	}
	if set("log-file") {
		cfg.Output.LogFile = f.logFile
	}
	if set("report") {
		cfg.Output.Report = f.report
	}
	if set("sqlite") {
		cfg.Output.SQLite = f.sqlite
	}

	return cfg, nil
}

func writeFile(path string, write func(w io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %q: %w", dir, err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file %q: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write file %q: %w", path, err)
	}
	return f.Close()
}

// cliLogger implements roiexport.Logger with colored terminal output.
type cliLogger struct{}

func (l *cliLogger) Infof(format string, args ...any) {
	color.New(color.FgYellow).Printf(format+"\n", args...)
}

func (l *cliLogger) Warnf(format string, args ...any) {
	color.New(color.FgYellow).Printf("⚠ "+format+"\n", args...)
}

func (l *cliLogger) Errorf(format string, args ...any) {
	color.New(color.FgRed).Printf("✗ "+format+"\n", args...)
}
