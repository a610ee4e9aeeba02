package export

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"prokat/internal/models"

	"github.com/xuri/excelize/v2"
)

// Exporter renders a bookings calendar (items down, dates across) to XLSX.
type Exporter struct {
	path string
}

func NewExporter(path string) *Exporter {
	return &Exporter{path: path}
}

// WriteCalendar creates an XLSX file covering [startDate, endDate] and
// returns its path. Cells hold "customer (status)" for each booked day.
func (e *Exporter) WriteCalendar(items []models.Item, bookings []models.Booking, startDate, endDate time.Time) (string, error) {
	if err := os.MkdirAll(e.path, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %v", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Bookings"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return "", fmt.Errorf("error creating sheet: %v", err)
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	_ = f.SetCellValue(sheetName, "A1", fmt.Sprintf("Period: %s - %s",
		startDate.Format(models.DateLayout), endDate.Format(models.DateLayout)))

	dates := daysBetween(startDate, endDate)
	for i, date := range dates {
		cell, _ := excelize.CoordinatesToCellName(i+2, 2)
		_ = f.SetCellValue(sheetName, cell, date.Format("02.01"))
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	lastHeader, _ := excelize.CoordinatesToCellName(len(dates)+1, 2)
	_ = f.SetCellStyle(sheetName, "A2", lastHeader, headerStyle)

	row := 3
	for _, item := range items {
		if !item.IsActive {
			continue
		}

		cell, _ := excelize.CoordinatesToCellName(1, row)
		_ = f.SetCellValue(sheetName, cell, item.Name)

		for i, date := range dates {
			label := bookedLabel(bookings, item.ID, date)
			if label == "" {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(i+2, row)
			_ = f.SetCellValue(sheetName, cell, label)
		}
		row++
	}

	fileName := fmt.Sprintf("bookings_%s_%s.xlsx",
		startDate.Format("20060102"), endDate.Format("20060102"))
	fullPath := filepath.Join(e.path, fileName)

	if err := f.SaveAs(fullPath); err != nil {
		return "", fmt.Errorf("error saving export file: %v", err)
	}
	return fullPath, nil
}

func bookedLabel(bookings []models.Booking, itemID string, date time.Time) string {
	for i := range bookings {
		b := &bookings[i]
		if b.ItemID != itemID || !b.Active() {
			continue
		}
		start, end, err := b.Range()
		if err != nil {
			continue
		}
		if !date.Before(start) && !date.After(end) {
			return fmt.Sprintf("%s (%s)", b.CustomerName, b.Status)
		}
	}
	return ""
}

func daysBetween(start, end time.Time) []time.Time {
	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}
