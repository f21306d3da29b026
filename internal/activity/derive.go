// Package activity combines cached website records and execution history
// into the derived, sortable, paginated view model behind the dashboard's
// main table.
package activity

import (
	"time"

	"github.com/sitesentry/livesync/internal/models"
)

// Status is the derived state shown per row. It extends the execution
// statuses with PAUSED, which only exists at the website level.
type Status string

const (
	StatusInProgress Status = "IN_PROGRESS"
	StatusFailed     Status = "FAILED"
	StatusPaused     Status = "PAUSED"
	StatusSuccess    Status = "SUCCESS"
)

// statusPriority orders statuses most-attention-needing first.
var statusPriority = map[Status]int{
	StatusInProgress: 0,
	StatusFailed:     1,
	StatusPaused:     2,
	StatusSuccess:    3,
}

// Row is the derived activity view of one website. It is computed on demand
// from cached inputs and never cached itself.
type Row struct {
	ID               int64
	Status           Status
	Name             string
	URL              string
	SuccessURL       string
	NextLogin        time.Time
	LastLoginAttempt *time.Time
	ExpirationDate   *time.Time
	LoginHistory     []models.ActionExecution

	// Degraded marks a row whose history fetch failed; it renders with an
	// empty history instead of blocking the page.
	Degraded bool
}

// DeriveRow computes the activity row for a website from its most recent
// execution history (most recent first).
//
// Status: paused wins unconditionally; otherwise the latest execution's
// status, or FAILED when no history exists. NextLogin falls back to the
// epoch-zero sentinel ("no run scheduled") when the server has no schedule.
// ExpirationDate exists only when a prior SUCCESS execution ended and the
// website defines an expiration interval.
func DeriveRow(w models.Website, history []models.ActionExecution) Row {
	row := Row{
		ID:           w.ID,
		Name:         w.Name,
		URL:          w.URL,
		SuccessURL:   w.SuccessURL,
		NextLogin:    time.Unix(0, 0).UTC(),
		LoginHistory: history,
	}

	if w.NextSchedule != nil {
		row.NextLogin = *w.NextSchedule
	}

	status := StatusFailed
	if len(history) > 0 {
		latest := history[0]
		if latest.ExecutionStatus.Valid() {
			status = Status(latest.ExecutionStatus)
		}
		started := latest.ExecutionStarted
		row.LastLoginAttempt = &started
	}
	if w.Paused {
		status = StatusPaused
	}
	row.Status = status

	if w.ExpirationIntervalMinutes != nil {
		for _, exec := range history {
			if exec.ExecutionStatus != models.StatusSuccess || exec.ExecutionEnded == nil {
				continue
			}
			expiration := exec.ExecutionEnded.Add(time.Duration(*w.ExpirationIntervalMinutes) * time.Minute)
			row.ExpirationDate = &expiration
			break
		}
	}

	return row
}
