package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/sitesentry/livesync/internal/activity"
	"github.com/sitesentry/livesync/internal/models"
)

func TestWriteActivity(t *testing.T) {
	next := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	attempt := time.Date(2026, 4, 30, 8, 0, 0, 0, time.UTC)

	rows := []activity.Row{
		{
			Name:             "My Bank",
			URL:              "https://bank.example",
			Status:           activity.StatusSuccess,
			NextLogin:        next,
			LastLoginAttempt: &attempt,
			LoginHistory: []models.ActionExecution{
				{ExecutionStatus: models.StatusSuccess},
				{ExecutionStatus: models.StatusFailed},
			},
		},
		{
			Name:      "Unscheduled",
			URL:       "https://idle.example",
			Status:    activity.StatusPaused,
			NextLogin: time.Unix(0, 0).UTC(),
		},
		{
			Name:      "Broken",
			URL:       "https://broken.example",
			Status:    activity.StatusFailed,
			NextLogin: time.Unix(0, 0).UTC(),
			Degraded:  true,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteActivity(&buf, rows))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	cell := func(ref string) string {
		v, err := f.GetCellValue("Activity", ref)
		require.NoError(t, err)
		return v
	}

	assert.Equal(t, "name", cell("A1"))
	assert.Equal(t, "status", cell("C1"))

	assert.Equal(t, "My Bank", cell("A2"))
	assert.Equal(t, "SUCCESS", cell("C2"))
	assert.Equal(t, "2026-05-01T08:00:00Z", cell("D2"))
	assert.Equal(t, "2026-04-30T08:00:00Z", cell("E2"))
	assert.Equal(t, "SUCCESS,FAILED", cell("G2"))

	assert.Equal(t, "", cell("D3"), "epoch-zero sentinel renders as an empty cell")
	assert.Equal(t, "", cell("E3"))

	assert.Equal(t, "unavailable", cell("G4"))
}

func TestWriteActivityEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteActivity(&buf, nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	sheetRows, err := f.GetRows("Activity")
	require.NoError(t, err)
	require.Len(t, sheetRows, 1, "only the header row")
	assert.Equal(t, headers, sheetRows[0])
}
