package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/simonseo/instagram-hashtag-crawler/pkg/export"
	"github.com/simonseo/instagram-hashtag-crawler/pkg/logger"
)

var (
	// Export command flags
	exportJSONDir string
	exportCSVDir  string
	exportOutput  string
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export collected posts to CSV",
	Long: `Export every JSON result file in a directory into a single CSV file.

Posts taken within one day of the newest post in their source file are
left out, so only posts with settled like and comment counts are exported.`,
	Example: `  # Export the default collection directory
  igcrawl export

  # Custom locations
  igcrawl export --json-dir ./hashtags --csv-dir ./out --output-file posts.csv`,
	Args: cobra.NoArgs,
	Run:  runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVar(&exportJSONDir, "json-dir", "./hashtags", "directory with JSON result files")
	exportCmd.Flags().StringVar(&exportCSVDir, "csv-dir", "./csv", "directory for the CSV output")
	exportCmd.Flags().StringVar(&exportOutput, "output-file", "posts.csv", "name of the CSV file")
}

func runExport(cmd *cobra.Command, args []string) {
	logger.Initialize(&logger.Options{Level: logLevel, File: logFile})
	log := logger.GetLogger()

	exporter := export.NewCSVExporter(log)
	if err := exporter.Export(exportJSONDir, exportCSVDir, exportOutput); err != nil {
		log.WithError(err).Error("export failed")
		printError("Export failed", err.Error())
		os.Exit(1)
	}

	log.WithField("output", filepath.Join(exportCSVDir, exportOutput)).Info("export complete")
}
