package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/xuri/excelize/v2"
	"rvnl.in/fittrack/models"
)

// ExportMaterials downloads the material register as an Excel workbook,
// honouring the same ?manufacturerId= / ?requestStatus= filters as the
// JSON listing.
func ExportMaterials(w http.ResponseWriter, r *http.Request) {
	materials, err := store().ListMaterials(r.Context(),
		r.URL.Query().Get("manufacturerId"),
		models.RequestStatus(r.URL.Query().Get("requestStatus")))
	if err != nil {
		writeErr(w, err)
		return
	}

	f, err := buildMaterialsWorkbook(materials)
	if err != nil {
		http.Error(w, "failed to generate Excel file", http.StatusInternalServerError)
		return
	}

	buffer, err := f.WriteToBuffer()
	if err != nil {
		http.Error(w, "failed to write Excel file", http.StatusInternalServerError)
		return
	}

	filename := fmt.Sprintf("material_register_%s.xlsx", time.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", buffer.Len()))
	w.WriteHeader(http.StatusOK)
	w.Write(buffer.Bytes())
}

var materialExportHeaders = []string{
	"Material ID", "Fitting Type", "Drawing No", "Material Spec", "Batch No",
	"Manufacturer", "Mfg Date", "Installation", "TMS Track", "AI Verified",
	"Fault Type", "Fault Severity", "Fault Status", "Request Status",
}

func buildMaterialsWorkbook(materials []models.Material) (*excelize.File, error) {
	f := excelize.NewFile()
	sheetName := "Material Register"

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 16},
		Alignment: &excelize.Alignment{Horizontal: "left", Vertical: "center"},
	})
	f.SetCellValue(sheetName, "A1", "Track Fitting Material Register")
	f.SetCellStyle(sheetName, "A1", "A1", titleStyle)
	f.SetRowHeight(sheetName, 1, 30)
	f.SetCellValue(sheetName, "A2", fmt.Sprintf("Generated: %s", time.Now().Format("2006-01-02 15:04:05")))

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	for i, header := range materialExportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 4)
		f.SetCellValue(sheetName, cell, header)
		f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	for rowIdx, m := range materials {
		severity, status := "", ""
		if m.FaultSeverity != nil {
			severity = string(*m.FaultSeverity)
		}
		if m.FaultStatus != nil {
			status = string(*m.FaultStatus)
		}
		values := []interface{}{
			m.MaterialID, m.FittingType, m.DrawingNumber, m.MaterialSpec,
			m.BatchNumber, m.ManufacturerID, m.ManufacturingDate,
			string(m.InstallationStatus), m.TmsTrackID, m.AiVerified,
			m.FaultType, severity, status, string(m.RequestStatus),
		}
		for colIdx, v := range values {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+5)
			f.SetCellValue(sheetName, cell, v)
		}
	}

	return f, nil
}
