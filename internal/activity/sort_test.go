package activity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func rowNames(rows []Row) []string {
	names := make([]string, len(rows))
	for i, r := range rows {
		names[i] = r.Name
	}
	return names
}

func TestSortRowsByStatusPriority(t *testing.T) {
	rows := []Row{
		{Name: "ok", Status: StatusSuccess},
		{Name: "paused", Status: StatusPaused},
		{Name: "running", Status: StatusInProgress},
		{Name: "broken", Status: StatusFailed},
	}

	SortRows(rows, ColumnStatus, OrderAsc)
	assert.Equal(t, []string{"running", "broken", "paused", "ok"}, rowNames(rows),
		"ascending status orders by urgency")

	SortRows(rows, ColumnStatus, OrderDesc)
	assert.Equal(t, []string{"ok", "paused", "broken", "running"}, rowNames(rows))
}

func TestSortRowsTimestampsNullsLast(t *testing.T) {
	early := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	late := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	rows := []Row{
		{Name: "none"},
		{Name: "late", LastLoginAttempt: &late},
		{Name: "early", LastLoginAttempt: &early},
	}

	SortRows(rows, ColumnLastAttempt, OrderAsc)
	assert.Equal(t, []string{"early", "late", "none"}, rowNames(rows))

	SortRows(rows, ColumnLastAttempt, OrderDesc)
	assert.Equal(t, []string{"late", "early", "none"}, rowNames(rows),
		"absent timestamps stay last when the direction flips")
}

func TestSortRowsNextLoginSentinelSortsLast(t *testing.T) {
	scheduled := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	rows := []Row{
		{Name: "unscheduled", NextLogin: time.Unix(0, 0).UTC()},
		{Name: "scheduled", NextLogin: scheduled},
	}

	SortRows(rows, ColumnNextLogin, OrderAsc)
	assert.Equal(t, []string{"scheduled", "unscheduled"}, rowNames(rows))

	SortRows(rows, ColumnNextLogin, OrderDesc)
	assert.Equal(t, []string{"scheduled", "unscheduled"}, rowNames(rows))
}

func TestSortRowsByNameIsCaseInsensitive(t *testing.T) {
	rows := []Row{
		{Name: "beta"},
		{Name: "Alpha"},
		{Name: "gamma"},
	}

	SortRows(rows, ColumnName, OrderAsc)
	assert.Equal(t, []string{"Alpha", "beta", "gamma"}, rowNames(rows))
}

func TestSortRowsIsStable(t *testing.T) {
	rows := []Row{
		{ID: 1, Name: "a", Status: StatusFailed},
		{ID: 2, Name: "b", Status: StatusFailed},
		{ID: 3, Name: "c", Status: StatusFailed},
	}

	SortRows(rows, ColumnStatus, OrderAsc)
	assert.Equal(t, []string{"a", "b", "c"}, rowNames(rows),
		"equal rows keep their server order")
}
