package service

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/supplier-intake/intake-pipeline/internal/analysis"
	"github.com/xuri/excelize/v2"
)

const (
	templatesSheet = "Templates"
	proposalsSheet = "Proposals"

	XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var (
	templateHeaders = []string{"Template", "Name", "Version", "Window", "Submissions", "Approved", "Rejected", "Failed", "Success rate", "Health", "Low sample", "Needs attention"}
	proposalHeaders = []string{"Template", "Priority", "Type", "Field", "Description", "Reasoning", "Error count", "Error rate", "Sample errors"}
)

// ExportAnalysisXLSX renders an analysis overview as a workbook with one sheet for the templates and
// one for their proposals.
func ExportAnalysisXLSX(overview analysis.Overview) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(templatesSheet)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")
	if _, err := f.NewSheet(proposalsSheet); err != nil {
		return nil, err
	}

	attention := make(map[string]bool, len(overview.NeedsAttention))
	for _, id := range overview.NeedsAttention {
		attention[id] = true
	}

	templateRows := make([][]any, 0, len(overview.Results))
	proposalRows := [][]any{}
	for _, r := range overview.Results {
		templateRows = append(templateRows, []any{
			r.TemplateID, r.TemplateName, r.TemplateVersion, r.Window, r.Total, r.Approved, r.Rejected, r.Failed,
			r.SuccessRate, string(r.Health), r.LowSample, attention[r.TemplateID],
		})
		for _, p := range r.Proposals {
			proposalRows = append(proposalRows, []any{
				r.TemplateID, string(p.Priority), string(p.Type), p.Field, p.Description, p.Reasoning,
				p.SupportingData.ErrorCount, p.SupportingData.ErrorRate, strings.Join(p.SupportingData.SampleErrors, "\n"),
			})
		}
	}

	if err := writeSheet(f, templatesSheet, templateHeaders, templateRows); err != nil {
		return nil, err
	}
	if err := writeSheet(f, proposalsSheet, proposalHeaders, proposalRows); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeSheet(f *excelize.File, sheet string, headers []string, rows [][]any) error {
	for col, h := range headers {
		if err := f.SetCellValue(sheet, cellRef(col, 1), h); err != nil {
			return err
		}
	}
	for i, row := range rows {
		for col, v := range row {
			if err := f.SetCellValue(sheet, cellRef(col, i+2), v); err != nil {
				return err
			}
		}
	}
	return nil
}

func cellRef(col, row int) string {
	name, _ := excelize.ColumnNumberToName(col + 1)
	return fmt.Sprintf("%s%d", name, row)
}
