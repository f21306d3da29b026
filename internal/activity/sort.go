package activity

import (
	"sort"
	"strings"
	"time"
)

// Column identifies a sortable column of the activity table.
type Column string

const (
	ColumnStatus      Column = "status"
	ColumnName        Column = "name"
	ColumnNextLogin   Column = "nextLogin"
	ColumnLastAttempt Column = "lastLoginAttempt"
	ColumnExpiration  Column = "expirationDate"
)

// Order is the sort direction.
type Order string

const (
	OrderAsc  Order = "asc"
	OrderDesc Order = "desc"
)

// SortRows sorts rows in place. Status orders by urgency
// (IN_PROGRESS, FAILED, PAUSED, SUCCESS); timestamp columns order by epoch
// value. Absent timestamps sort last regardless of direction, so flipping
// the order never buries real data under empty cells. The sort is stable:
// equal rows keep their server order.
func SortRows(rows []Row, col Column, order Order) {
	desc := order == OrderDesc

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		switch col {
		case ColumnStatus:
			pa, pb := statusPriority[a.Status], statusPriority[b.Status]
			if desc {
				return pa > pb
			}
			return pa < pb

		case ColumnName:
			na, nb := strings.ToLower(a.Name), strings.ToLower(b.Name)
			if desc {
				return na > nb
			}
			return na < nb

		case ColumnNextLogin:
			return lessTime(timeOrNil(a.NextLogin), timeOrNil(b.NextLogin), desc)

		case ColumnLastAttempt:
			return lessTime(a.LastLoginAttempt, b.LastLoginAttempt, desc)

		case ColumnExpiration:
			return lessTime(a.ExpirationDate, b.ExpirationDate, desc)
		}
		return false
	})
}

// timeOrNil treats the epoch-zero sentinel as an absent timestamp.
func timeOrNil(t time.Time) *time.Time {
	if t.Unix() == 0 || t.IsZero() {
		return nil
	}
	return &t
}

// lessTime compares optional timestamps with nil sorted last in both
// directions.
func lessTime(a, b *time.Time, desc bool) bool {
	if a == nil {
		return false
	}
	if b == nil {
		return true
	}
	if desc {
		return a.After(*b)
	}
	return a.Before(*b)
}
