package export

import (
	"fmt"

	"github.com/alvmarrod/site-weaver/internal/storage"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

// Sheet names of the spreadsheet export
const (
	SheetNodes    = "Nodes"
	SheetFindings = "Findings"
	SheetEdges    = "Edges"
)

var (
	nodeHeader    = []interface{}{"URL", "Status", "Order", "Depth", "Title", "Referrer", "Error"}
	findingHeader = []interface{}{"Referrer", "Broken URL", "Status", "Error"}
	edgeHeader    = []interface{}{"Source", "Target"}
)

// ExcelExporter writes the sitemap as an .xlsx workbook
type ExcelExporter struct{}

// NewExcelExporter creates a spreadsheet exporter
func NewExcelExporter() Exporter {
	return &ExcelExporter{}
}

// Export writes a workbook with one sheet for nodes, findings and edges
func (e *ExcelExporter) Export(sm *storage.Sitemap, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetNodes); err != nil {
		return fmt.Errorf("failed to rename default sheet: %w", err)
	}
	for _, name := range []string{SheetFindings, SheetEdges} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", name, err)
		}
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	nodes := make([][]interface{}, 0, len(sm.Nodes))
	for _, n := range sm.Nodes {
		nodes = append(nodes, []interface{}{n.URL, n.Status, n.Order, n.Depth, n.Title, n.Referrer, n.Error})
	}
	findings := make([][]interface{}, 0, len(sm.Findings))
	for _, fd := range sm.Findings {
		findings = append(findings, []interface{}{fd.Referrer, fd.URL, fd.Status, fd.Error})
	}
	edges := make([][]interface{}, 0, len(sm.Edges))
	for _, ed := range sm.Edges {
		edges = append(edges, []interface{}{ed.Source, ed.Target})
	}

	sheets := []struct {
		name   string
		header []interface{}
		rows   [][]interface{}
	}{
		{SheetNodes, nodeHeader, nodes},
		{SheetFindings, findingHeader, findings},
		{SheetEdges, edgeHeader, edges},
	}
	for _, s := range sheets {
		if err := writeSheet(f, s.name, s.header, s.rows, headerStyle); err != nil {
			return err
		}
	}

	f.SetActiveSheet(0)
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}

	logrus.Infof("Wrote spreadsheet with %d nodes, %d findings and %d edges to %s",
		len(nodes), len(findings), len(edges), path)
	return nil
}

func writeSheet(f *excelize.File, sheet string, header []interface{}, rows [][]interface{}, headerStyle int) error {
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write %s header: %w", sheet, err)
	}

	lastCol, err := excelize.ColumnNumberToName(len(header))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", lastCol+"1", headerStyle); err != nil {
		return fmt.Errorf("failed to style %s header: %w", sheet, err)
	}
	if err := f.SetColWidth(sheet, "A", lastCol, 40); err != nil {
		return fmt.Errorf("failed to size %s columns: %w", sheet, err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+2, err)
		}
	}
	return nil
}
