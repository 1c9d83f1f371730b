package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/simonseo/instagram-hashtag-crawler/pkg/logger"
	"github.com/simonseo/instagram-hashtag-crawler/pkg/models"
)

// RecencyThreshold is the window, in seconds, from the most recent post of
// a collection within which posts are skipped during CSV export. Fresh
// posts are still accumulating engagement, so their counts would be
// misleading.
const RecencyThreshold = 60 * 60 * 24

// CSVExporter flattens crawled JSON collections into one CSV file.
type CSVExporter struct {
	logger logger.Logger
}

// NewCSVExporter creates an exporter.
func NewCSVExporter(log logger.Logger) *CSVExporter {
	if log == nil {
		log = logger.GetLogger()
	}
	return &CSVExporter{logger: log}
}

// Export reads every .json collection in jsonDir and writes the combined
// rows to csvDir/outputFile.
func (e *CSVExporter) Export(jsonDir, csvDir, outputFile string) error {
	entries, err := os.ReadDir(jsonDir)
	if err != nil {
		return fmt.Errorf("cannot read json directory: %w", err)
	}

	if err := os.MkdirAll(csvDir, 0755); err != nil {
		return fmt.Errorf("failed to create csv directory: %w", err)
	}

	outputPath := filepath.Join(csvDir, outputFile)
	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create csv file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		e.logger.DebugWithFields("exporting collection", map[string]interface{}{
			"file": name,
		})
		doc, err := ReadDocument(filepath.Join(jsonDir, name))
		if err != nil {
			return err
		}
		if err := writeRows(w, doc.Posts); err != nil {
			return err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}

	e.logger.InfoWithFields("csv export complete", map[string]interface{}{
		"path": outputPath,
	})
	return nil
}

// writeRows appends one collection's posts to the CSV writer. Posts within
// RecencyThreshold of the collection's most recent post are skipped.
func writeRows(w *csv.Writer, posts []models.EnrichedRecord) error {
	if len(posts) == 0 {
		return nil
	}

	maxDate := posts[0].Date
	for _, p := range posts[1:] {
		if p.Date > maxDate {
			maxDate = p.Date
		}
	}
	thresholdDate := maxDate - RecencyThreshold

	for _, p := range posts {
		if p.Date > thresholdDate {
			continue
		}

		row := []string{
			p.Shortcode,
			p.PicURL,
			strconv.Itoa(p.LikeCount),
			p.Username,
			p.UserID,
			p.FullName,
			p.ProfilePicURL,
			strconv.Itoa(p.MediaCount),
			strconv.Itoa(p.FollowerCount),
			strconv.Itoa(p.CommentCount),
			strconv.FormatInt(p.Date, 10),
			p.Caption,
			strings.Join(p.Tags, " "),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}
