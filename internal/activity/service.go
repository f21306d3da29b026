package activity

import (
	"context"
	"sync"

	"github.com/sitesentry/livesync/internal/api"
	"github.com/sitesentry/livesync/internal/keys"
	"github.com/sitesentry/livesync/internal/logger"
	"github.com/sitesentry/livesync/internal/models"
	"github.com/sitesentry/livesync/internal/querycache"
)

// historyDepth is how many recent executions each row shows.
const historyDepth = 4

// PageRequest describes one page of the activity table.
type PageRequest struct {
	Page     int
	PageSize int
	Search   string
	SortBy   Column
	Order    Order
}

// PageResult is one derived page plus the server-side total for the pager.
type PageResult struct {
	Rows  []Row
	Total int
}

// Service derives activity pages from the cached website list and the
// cached per-website history.
type Service struct {
	cache *querycache.Cache
	api   api.Requester
	log   logger.Logger
}

// NewService creates an activity service bound to the session cache.
func NewService(cache *querycache.Cache, requester api.Requester, log logger.Logger) *Service {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Service{cache: cache, api: requester, log: log}
}

// Page returns one derived page of the activity table.
//
// The website list page is the anchor query: when it fails, the whole call
// fails. History fetches fan out per row; a failed history degrades that
// single row to an empty history instead of failing the page. Rows land in
// server order unless a sort column is requested.
func (s *Service) Page(ctx context.Context, req PageRequest) (*PageResult, error) {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 {
		req.PageSize = 10
	}

	listKey := keys.WebsitesPage(req.Page, req.PageSize, req.Search)
	value, err := s.cache.Read(ctx, listKey, func(ctx context.Context) (any, error) {
		return s.api.ListWebsites(ctx, req.Page, req.PageSize, req.Search)
	})
	if err != nil {
		return nil, err
	}
	page, ok := value.(*models.WebsitePage)
	if !ok || page == nil {
		return &PageResult{}, nil
	}

	rows := make([]Row, len(page.Items))
	var wg sync.WaitGroup
	for i, website := range page.Items {
		wg.Add(1)
		go func(i int, w models.Website) {
			defer wg.Done()
			history, err := s.history(ctx, w.ID)
			rows[i] = DeriveRow(w, history)
			if err != nil {
				rows[i].Degraded = true
				s.log.Warn("history fetch failed, degrading row",
					logger.Int64("website_id", w.ID),
					logger.Error(err),
				)
			}
		}(i, website)
	}
	wg.Wait()

	if req.SortBy != "" {
		SortRows(rows, req.SortBy, req.Order)
	}

	return &PageResult{Rows: rows, Total: page.Total}, nil
}

// history returns the cached recent executions for one website, most recent
// first.
func (s *Service) history(ctx context.Context, websiteID int64) ([]models.ActionExecution, error) {
	value, err := s.cache.Read(ctx, keys.ActionHistory(websiteID), func(ctx context.Context) (any, error) {
		return s.api.ListExecutions(ctx, websiteID, 1, historyDepth)
	})
	if err != nil {
		return nil, err
	}
	page, ok := value.(*models.ExecutionPage)
	if !ok || page == nil {
		return nil, nil
	}
	return page.Items, nil
}
