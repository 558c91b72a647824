package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/gridwright/gridwright/pkg/entity"
)

// xlsxSheetName is the sheet datasets are written to.
const xlsxSheetName = "Data"

// WriteCSV writes the dataset as CSV with a header record.
func WriteCSV(w io.Writer, ds *entity.Dataset) error {
	cw := csv.NewWriter(w)
	for _, record := range flattenRows(ds) {
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write CSV record: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush CSV: %w", err)
	}
	return nil
}

// WriteXLSX writes the dataset as a single-sheet XLSX workbook.
func WriteXLSX(w io.Writer, ds *entity.Dataset) error {
	wb := excelize.NewFile()
	defer wb.Close()

	if err := wb.SetSheetName(wb.GetSheetName(0), xlsxSheetName); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}

	for i, record := range flattenRows(ds) {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("address row %d: %w", i+1, err)
		}
		row := make([]any, len(record))
		for j, v := range record {
			row[j] = v
		}
		if err := wb.SetSheetRow(xlsxSheetName, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	if err := wb.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
