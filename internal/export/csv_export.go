package export

import (
	"fmt"
	"os"

	"github.com/alvmarrod/site-weaver/internal/storage"
	"github.com/gocarina/gocsv"
	"github.com/sirupsen/logrus"
)

// BrokenLinkRow is one line of the broken links CSV
type BrokenLinkRow struct {
	Referrer string `csv:"Referrer"`
	URL      string `csv:"Broken URL"`
	Status   int    `csv:"Status"`
	Error    string `csv:"Error"`
}

// CSVExporter writes broken links as CSV
type CSVExporter struct{}

// NewCSVExporter creates a CSV exporter
func NewCSVExporter() Exporter {
	return &CSVExporter{}
}

// Export writes one row per finding, in the order they were recorded
func (e *CSVExporter) Export(sm *storage.Sitemap, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer file.Close()

	rows := e.transformData(sm)
	if err := gocsv.MarshalFile(&rows, file); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}

	logrus.Infof("Wrote %d broken links to %s", len(rows), path)
	return nil
}

func (e *CSVExporter) transformData(sm *storage.Sitemap) []BrokenLinkRow {
	rows := make([]BrokenLinkRow, 0, len(sm.Findings))
	for _, f := range sm.Findings {
		rows = append(rows, BrokenLinkRow{
			Referrer: f.Referrer,
			URL:      f.URL,
			Status:   f.Status,
			Error:    f.Error,
		})
	}
	return rows
}
