package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/minatolabs/kbchat/internal/core"
	"github.com/minatolabs/kbchat/internal/kb/segment"
	"github.com/minatolabs/kbchat/internal/models"
)

// Spreadsheet extracts every sheet of a workbook. Each sheet becomes one
// section ("sheet:<name>"); each data row becomes one record whose content is
// the row's non-empty cells joined in column order. The sheet's header row
// feeds the record's Extra map so the aggregate can expose observed columns.
func Spreadsheet(filename, tenantID string, data []byte) (*Result, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w: %v", filename, core.ErrExtraction, err)
	}
	defer f.Close()

	var (
		records  []models.Record
		sections []segment.Section
		text     strings.Builder
	)
	text.WriteString(fmt.Sprintf("=== File: %s ===\n\n", filename))

	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("read sheet %q of %s: %w: %v", sheet, filename, core.ErrExtraction, err)
		}
		sectionName := "sheet:" + sheet

		var headers []string
		var body strings.Builder
		for i, row := range rows {
			joined := joinCells(row)
			if joined == "" {
				continue
			}
			if i == 0 {
				headers = row
				body.WriteString(joined + "\n")
				continue
			}
			body.WriteString(joined + "\n")

			rec := models.Record{
				Section:  sectionName,
				Content:  joined,
				Kind:     models.KindSpreadsheet,
				File:     filename,
				TenantID: tenantID,
			}
			if len(headers) > 0 {
				rec.Extra = make(map[string]string, len(headers))
				for c, h := range headers {
					h = strings.TrimSpace(h)
					if h == "" || c >= len(row) {
						continue
					}
					rec.Extra[h] = strings.TrimSpace(row[c])
				}
			}
			records = append(records, rec)
		}

		sections = append(sections, segment.Section{Label: sectionName, Content: strings.TrimRight(body.String(), "\n")})
		text.WriteString(fmt.Sprintf("=== %s ===\n%s\n", sectionName, body.String()))
	}

	return &Result{
		Records:  dropEmpty(records),
		Sections: sections,
		Text:     text.String(),
	}, nil
}

func joinCells(row []string) string {
	parts := make([]string, 0, len(row))
	for _, cell := range row {
		cell = strings.TrimSpace(cell)
		if cell != "" {
			parts = append(parts, cell)
		}
	}
	return strings.Join(parts, " ")
}
