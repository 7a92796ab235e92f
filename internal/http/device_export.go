package httpapi

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/piacobelli14/PSYCHE-API/internal/domain"
)

// DeviceRegistryExportHeader is the column layout of the registry workbook.
var DeviceRegistryExportHeader = []string{
	"Device Type",
	"Device ID",
	"Assigned Patient ID",
	"Assigned Patient Name",
	"Last Assignment",
	"Battery (%)",
}

// GenerateDeviceRegistryExport renders the device registry as an .xlsx
// workbook; an empty registry yields just the header row.
func GenerateDeviceRegistryExport(devices []*domain.Device) ([]byte, error) {
	f := excelize.NewFile()

	sheetName := "Registered Devices"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to remove default sheet: %w", err)
	}

	for col, header := range DeviceRegistryExportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			return nil, err
		}
	}

	for row, d := range devices {
		values := []any{
			d.DeviceType,
			d.DeviceID,
			d.AssignedPatientID,
			d.AssignedPatientName,
			d.LastAssignment.UTC().Format(time.RFC3339),
			strconv.Itoa(d.Battery),
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return nil, err
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to serialize workbook: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
