package los

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/joabeoliveira/ocupacao/internal/domain/snapshot"
)

const exportSheet = "Longa Permanência"

// ExportHeader is the first row of the long-stay spreadsheet.
var ExportHeader = []string{
	"Nome",
	"Prontuário",
	"Idade",
	"Sexo",
	"Clínica",
	"Data Internação",
	"Dias Internado",
}

var exportWidths = []float64{40, 16, 8, 8, 30, 16, 14}

// WriteXLSX renders stays, unmasked, as a single-sheet workbook.
func WriteXLSX(stays []Stay) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(exportSheet)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("delete default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	for col, header := range ExportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(exportSheet, cell, header); err != nil {
			return nil, fmt.Errorf("set header %s: %w", cell, err)
		}
		if err := f.SetCellStyle(exportSheet, cell, cell, headerStyle); err != nil {
			return nil, fmt.Errorf("set header style: %w", err)
		}
		colName, _ := excelize.ColumnNumberToName(col + 1)
		if err := f.SetColWidth(exportSheet, colName, colName, exportWidths[col]); err != nil {
			return nil, fmt.Errorf("set column width: %w", err)
		}
	}

	for i, st := range stays {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(exportSheet, cell, &[]interface{}{
			st.Name,
			st.MedicalRecord,
			ageCell(st.Age),
			st.Sex,
			st.Clinic,
			admissionCell(st),
			st.Days,
		}); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := f.SetPanes(exportSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, fmt.Errorf("freeze header: %w", err)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func ageCell(age *int) interface{} {
	if age == nil {
		return ""
	}
	return *age
}

func admissionCell(st Stay) string {
	if st.AdmissionDate == nil {
		return ""
	}
	return st.AdmissionDate.Format(snapshot.LabelLayout)
}
