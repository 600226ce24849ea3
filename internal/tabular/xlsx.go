package tabular

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// XLSXEncoder writes a single-sheet workbook: header in row 1, data below.
type XLSXEncoder struct {
	cfg Config
}

func NewXLSXEncoder(cfg Config) XLSXEncoder {
	return XLSXEncoder{cfg: cfg}
}

func (XLSXEncoder) ContentType() string { return xlsxContentType }

func (XLSXEncoder) Extension() string { return "xlsx" }

func (e XLSXEncoder) Encode(ctx context.Context, t Table) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := sheetTitle(t.Title, e.cfg.SheetTitle)
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return nil, fmt.Errorf("name sheet: %w", err)
	}

	header := make([]any, len(t.Header))
	for i, h := range t.Header {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	for i, row := range t.Rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// sheetTitle clamps to Excel's 31 character sheet name limit.
func sheetTitle(title, def string) string {
	if title == "" {
		title = def
	}
	if title == "" {
		title = "Sheet1"
	}
	if r := []rune(title); len(r) > 31 {
		title = string(r[:31])
	}
	return title
}
