// Package export renders a day's appointments as an Excel workbook.
package export

import (
	"fmt"
	"io"
	"time"

	"salonbook/internal/models"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Appointments"

var columns = []struct {
	title string
	width float64
}{
	{"Start", 10},
	{"End", 10},
	{"Customer", 25},
	{"Service", 25},
	{"Phone", 18},
	{"Summary", 40},
	{"Event ID", 30},
}

// DayWorkbook builds a single-sheet workbook: a title row, a header row and
// one row per appointment in the given order. Times are shown in loc.
func DayWorkbook(date string, appts []models.Appointment, loc *time.Location) (*excelize.File, error) {
	if loc == nil {
		loc = time.UTC
	}

	f := excelize.NewFile()
	index, err := f.NewSheet(sheetName)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	_ = f.SetCellValue(sheetName, "A1", fmt.Sprintf("Appointments %s (%s)", date, loc.String()))
	lastCol, _ := excelize.ColumnNumberToName(len(columns))
	_ = f.MergeCell(sheetName, "A1", lastCol+"1")

	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(sheetName, "A1", "A1", titleStyle)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	for i, c := range columns {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := col + "2"
		_ = f.SetCellValue(sheetName, cell, c.title)
		_ = f.SetCellStyle(sheetName, cell, cell, headerStyle)
		_ = f.SetColWidth(sheetName, col, col, c.width)
	}

	for i, a := range appts {
		row := i + 3
		values := []interface{}{
			a.StartTime.In(loc).Format("15:04"),
			a.EndTime.In(loc).Format("15:04"),
			a.Customer,
			a.Service,
			a.Phone,
			a.Summary,
			a.ID,
		}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("error writing row %d: %w", row, err)
		}
	}

	return f, nil
}

// WriteDay streams the workbook for date to w.
func WriteDay(w io.Writer, date string, appts []models.Appointment, loc *time.Location) error {
	f, err := DayWorkbook(date, appts, loc)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("error writing workbook: %w", err)
	}
	return nil
}

// FileName is the attachment name for a day export.
func FileName(date string) string {
	return fmt.Sprintf("appointments_%s.xlsx", date)
}
