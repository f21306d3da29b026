// Package devserver is the embedded simulation backend used for development
// and end-to-end tests. It serves the same REST and websocket surface as the
// production dashboard server against in-memory state.
package devserver

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sitesentry/livesync/internal/models"
)

// ErrNotFound is returned for unknown record IDs.
var ErrNotFound = errors.New("devserver: not found")

// Store holds the simulated server state.
type Store struct {
	mu                 sync.Mutex
	websites           map[int64]*models.Website
	executions         map[int64][]models.ActionExecution
	notifications      map[int64]*models.Notification
	screenshots        map[string][]byte
	nextWebsiteID      int64
	nextExecutionID    int64
	nextNotificationID int64
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		websites:           make(map[int64]*models.Website),
		executions:         make(map[int64][]models.ActionExecution),
		notifications:      make(map[int64]*models.Notification),
		screenshots:        make(map[string][]byte),
		nextWebsiteID:      1,
		nextExecutionID:    1,
		nextNotificationID: 1,
	}
}

// ListWebsites returns one page of websites matching the search, ordered by
// ID. Search matches name or URL case-insensitively.
func (s *Store) ListWebsites(page, pageSize int, search string) *models.WebsitePage {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := make([]models.Website, 0, len(s.websites))
	needle := strings.ToLower(search)
	for _, w := range s.websites {
		if needle != "" &&
			!strings.Contains(strings.ToLower(w.Name), needle) &&
			!strings.Contains(strings.ToLower(w.URL), needle) {
			continue
		}
		matched = append(matched, *w)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	total := len(matched)
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	return &models.WebsitePage{Items: matched[start:end], Total: total}
}

// GetWebsite returns a copy of one website.
func (s *Store) GetWebsite(id int64) (*models.Website, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.websites[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *w
	return &copied, nil
}

// AddWebsite creates a website from a patch and schedules its first run.
func (s *Store) AddWebsite(patch models.WebsitePatch) *models.Website {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := &models.Website{ID: s.nextWebsiteID}
	s.nextWebsiteID++
	patch.ApplyTo(w)
	s.rescheduleLocked(w)
	s.websites[w.ID] = w

	copied := *w
	return &copied
}

// EditWebsite applies a partial update.
func (s *Store) EditWebsite(id int64, patch models.WebsitePatch) (*models.Website, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.websites[id]
	if !ok {
		return nil, ErrNotFound
	}
	patch.ApplyTo(w)
	if patch.ActionInterval != nil || patch.Paused != nil {
		s.rescheduleLocked(w)
	}
	copied := *w
	return &copied, nil
}

// DeleteWebsite removes a website and its history.
func (s *Store) DeleteWebsite(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.websites[id]; !ok {
		return ErrNotFound
	}
	delete(s.websites, id)
	delete(s.executions, id)
	return nil
}

// rescheduleLocked sets the next run from the interval start. Paused
// websites have no schedule.
func (s *Store) rescheduleLocked(w *models.Website) {
	if w.Paused || w.ActionInterval == nil {
		w.NextSchedule = nil
		return
	}
	next := time.Now().UTC().Add(time.Duration(w.ActionInterval.DateMinutesStart) * time.Minute)
	w.NextSchedule = &next
}

// ListExecutions returns one page of a website's history, most recent first.
func (s *Store) ListExecutions(websiteID int64, page, pageSize int) (*models.ExecutionPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.websites[websiteID]; !ok {
		return nil, ErrNotFound
	}

	history := s.executions[websiteID]
	ordered := make([]models.ActionExecution, len(history))
	copy(ordered, history)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].ExecutionStarted.After(ordered[j].ExecutionStarted)
	})

	total := len(ordered)
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	return &models.ExecutionPage{Items: ordered[start:end], Total: total}, nil
}

// StartExecution appends an IN_PROGRESS execution for the website.
func (s *Store) StartExecution(websiteID int64) (*models.ActionExecution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.websites[websiteID]; !ok {
		return nil, ErrNotFound
	}

	exec := models.ActionExecution{
		ID:               s.nextExecutionID,
		WebsiteID:        websiteID,
		ExecutionStarted: time.Now().UTC(),
		ExecutionStatus:  models.StatusInProgress,
	}
	s.nextExecutionID++
	s.executions[websiteID] = append(s.executions[websiteID], exec)

	copied := exec
	return &copied, nil
}

// FinishExecution resolves an execution with a terminal status and marks the
// end time. Screenshot and failure details are copied verbatim.
func (s *Store) FinishExecution(executionID int64, result models.ActionExecution) (*models.ActionExecution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for websiteID, history := range s.executions {
		for i := range history {
			if history[i].ID != executionID {
				continue
			}
			ended := time.Now().UTC()
			history[i].ExecutionEnded = &ended
			history[i].ExecutionStatus = result.ExecutionStatus
			history[i].FailedDetails = result.FailedDetails
			history[i].CustomFailedDetailsMessage = result.CustomFailedDetailsMessage
			history[i].ScreenshotID = result.ScreenshotID

			if w, ok := s.websites[websiteID]; ok {
				s.rescheduleLocked(w)
			}
			copied := history[i]
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

// AddManualExecution records a completed execution supplied by hand.
func (s *Store) AddManualExecution(websiteID int64, exec models.ActionExecution) (*models.ActionExecution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.websites[websiteID]; !ok {
		return nil, ErrNotFound
	}

	exec.ID = s.nextExecutionID
	exec.WebsiteID = websiteID
	s.nextExecutionID++
	if exec.ExecutionStarted.IsZero() {
		exec.ExecutionStarted = time.Now().UTC()
	}
	s.executions[websiteID] = append(s.executions[websiteID], exec)

	copied := exec
	return &copied, nil
}

// SaveScreenshot stores image bytes under a screenshot id.
func (s *Store) SaveScreenshot(id string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.screenshots[id] = data
}

// GetScreenshot returns the stored image bytes for a screenshot id.
func (s *Store) GetScreenshot(id string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.screenshots[id]
	if !ok {
		return nil, ErrNotFound
	}
	return data, nil
}

// ListNotifications returns all notifications ordered by ID.
func (s *Store) ListNotifications() []models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Notification, 0, len(s.notifications))
	for _, n := range s.notifications {
		out = append(out, *n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AddNotification stores a new notification.
func (s *Store) AddNotification(n models.Notification) *models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	n.ID = s.nextNotificationID
	s.nextNotificationID++
	s.notifications[n.ID] = &n

	copied := n
	return &copied
}

// EditNotification applies a partial update.
func (s *Store) EditNotification(patch models.NotificationPatch) (*models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[patch.ID]
	if !ok {
		return nil, ErrNotFound
	}
	patch.ApplyTo(n)
	copied := *n
	return &copied, nil
}

// DeleteNotification removes a notification.
func (s *Store) DeleteNotification(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.notifications[id]; !ok {
		return ErrNotFound
	}
	delete(s.notifications, id)
	return nil
}
