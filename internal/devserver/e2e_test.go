package devserver

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitesentry/livesync/internal/activity"
	"github.com/sitesentry/livesync/internal/api"
	"github.com/sitesentry/livesync/internal/bridge"
	"github.com/sitesentry/livesync/internal/keys"
	"github.com/sitesentry/livesync/internal/models"
	"github.com/sitesentry/livesync/internal/mutation"
	"github.com/sitesentry/livesync/internal/querycache"
)

// syncStack is the full client stack wired against an in-process server.
type syncStack struct {
	server   *Server
	client   *api.Client
	cache    *querycache.Cache
	engine   *mutation.Engine
	activity *activity.Service
	cancel   context.CancelFunc
}

func newSyncStack(t *testing.T) *syncStack {
	t.Helper()
	srv := NewServer(Config{JWTSecret: "test-secret", Username: "admin", Password: "secret"}, nil)
	httpSrv := httptest.NewServer(srv.Handler())
	t.Cleanup(httpSrv.Close)

	client, err := api.NewClient(api.ClientConfig{BaseURL: httpSrv.URL})
	require.NoError(t, err)
	require.NoError(t, client.Login(context.Background(), "admin", "secret"))

	cache := querycache.New(querycache.Options{})
	connected := make(chan bool, 4)
	b := bridge.New(bridge.Config{
		URL:          strings.Replace(httpSrv.URL, "http://", "ws://", 1) + "/ws",
		PollInterval: time.Hour,
		OnStateChange: func(up bool) {
			select {
			case connected <- up:
			default:
			}
		},
	}, cache, nil)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = b.Run(ctx) }()
	require.Eventually(t, func() bool {
		return srv.hub.ClientCount() == 1
	}, 5*time.Second, 10*time.Millisecond, "bridge never connected")

	return &syncStack{
		server:   srv,
		client:   client,
		cache:    cache,
		engine:   mutation.NewEngine(cache, nil, nil),
		activity: activity.NewService(cache, client, nil),
		cancel:   cancel,
	}
}

// Scenario: adding a website refreshes the list without manual cache calls.
func TestE2EAddWebsiteRefreshesActivityPage(t *testing.T) {
	s := newSyncStack(t)
	ctx := context.Background()

	page, err := s.activity.Page(ctx, activity.PageRequest{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Empty(t, page.Rows)

	_, err = s.engine.Do(ctx, mutation.Mutation{
		Name: "add_website",
		Run: func(ctx context.Context) (any, error) {
			return s.client.AddWebsite(ctx, models.WebsitePatch{
				Name: strPtr("My Bank"),
				URL:  strPtr("https://bank.example"),
			})
		},
		InvalidateKeys: func(any) []querycache.Key {
			return []querycache.Key{keys.Websites()}
		},
	})
	require.NoError(t, err)

	page, err = s.activity.Page(ctx, activity.PageRequest{Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, page.Rows, 1)
	assert.Equal(t, "My Bank", page.Rows[0].Name)
	assert.Equal(t, activity.StatusFailed, page.Rows[0].Status, "no history yet")
}

// Scenario: a triggered run pushes action_started and the next page read
// shows IN_PROGRESS with no polling involved.
func TestE2ETriggeredRunAppearsViaPush(t *testing.T) {
	s := newSyncStack(t)
	ctx := context.Background()

	created, err := s.client.AddWebsite(ctx, models.WebsitePatch{
		Name: strPtr("site"),
		URL:  strPtr("https://site.example"),
	})
	require.NoError(t, err)

	// Prime both layers of the projection.
	page, err := s.activity.Page(ctx, activity.PageRequest{Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, page.Rows, 1)
	assert.Equal(t, activity.StatusFailed, page.Rows[0].Status)

	require.NoError(t, s.client.TriggerExecution(ctx, created.ID))

	// The pushed action_started invalidates the history key; the next read
	// refetches it while the list page stays cached.
	require.Eventually(t, func() bool {
		page, err := s.activity.Page(ctx, activity.PageRequest{Page: 1, PageSize: 10})
		if err != nil || len(page.Rows) != 1 {
			return false
		}
		return page.Rows[0].Status == activity.StatusInProgress
	}, 5*time.Second, 20*time.Millisecond)

	execs, err := s.client.ListExecutions(ctx, created.ID, 1, 10)
	require.NoError(t, err)
	s.server.CompleteRun(execs.Items[0].ID, created.ID, models.StatusSuccess)

	require.Eventually(t, func() bool {
		page, err := s.activity.Page(ctx, activity.PageRequest{Page: 1, PageSize: 10})
		if err != nil || len(page.Rows) != 1 {
			return false
		}
		return page.Rows[0].Status == activity.StatusSuccess
	}, 5*time.Second, 20*time.Millisecond)
}

// Scenario: an optimistic pause toggle rolls back when the request fails.
func TestE2EOptimisticPauseRollsBackOnFailure(t *testing.T) {
	s := newSyncStack(t)
	ctx := context.Background()

	created, err := s.client.AddWebsite(ctx, models.WebsitePatch{
		Name: strPtr("site"),
		URL:  strPtr("https://site.example"),
	})
	require.NoError(t, err)

	detailKey := keys.WebsiteDetail(created.ID)
	_, err = s.cache.Read(ctx, detailKey, func(ctx context.Context) (any, error) {
		return s.client.GetWebsite(ctx, created.ID)
	})
	require.NoError(t, err)

	netErr := errors.New("connection reset")
	_, err = s.engine.Do(ctx, mutation.Mutation{
		Name: "toggle_pause",
		Optimistic: func(tx *mutation.Tx) {
			tx.Patch(detailKey, func(old any, ok bool) any {
				w := *(old.(*models.Website))
				w.Paused = true
				return &w
			})
		},
		Run: func(ctx context.Context) (any, error) {
			return nil, netErr
		},
	})
	require.ErrorIs(t, err, netErr)

	v, ok := s.cache.Peek(detailKey)
	require.True(t, ok)
	assert.False(t, v.(*models.Website).Paused, "the optimistic pause must be rolled back")
}
