// Package export writes activity snapshots to Excel workbooks.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/sitesentry/livesync/internal/activity"
)

const sheetName = "Activity"

var headers = []string{
	"name", "url", "status", "next_login", "last_login_attempt",
	"expiration_date", "recent_executions",
}

// WriteActivity writes one worksheet with a header row followed by one row
// per activity entry. Absent timestamps render as empty cells; the
// epoch-zero next-login sentinel counts as absent.
func WriteActivity(w io.Writer, rows []activity.Row) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return fmt.Errorf("header cell %d: %w", i, err)
		}
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return fmt.Errorf("write header %q: %w", h, err)
		}
	}

	for r, row := range rows {
		values := []any{
			row.Name,
			row.URL,
			string(row.Status),
			formatNextLogin(row.NextLogin),
			formatOptionalTime(row.LastLoginAttempt),
			formatOptionalTime(row.ExpirationDate),
			formatHistory(row),
		}
		for c, v := range values {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return fmt.Errorf("cell %d,%d: %w", c, r, err)
			}
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return fmt.Errorf("write row %d: %w", r+2, err)
			}
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func formatNextLogin(t time.Time) string {
	if t.Unix() == 0 || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// formatHistory summarizes the recent executions as "SUCCESS,FAILED,...",
// most recent first. Degraded rows report that the history was unavailable.
func formatHistory(row activity.Row) string {
	if row.Degraded {
		return "unavailable"
	}
	out := ""
	for i, exec := range row.LoginHistory {
		if i > 0 {
			out += ","
		}
		out += string(exec.ExecutionStatus)
	}
	return out
}
