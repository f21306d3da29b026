// Package session tracks the logged-in user and owns the cache teardown on
// logout.
package session

import (
	"context"

	"github.com/sitesentry/livesync/internal/api"
	"github.com/sitesentry/livesync/internal/keys"
	"github.com/sitesentry/livesync/internal/logger"
	"github.com/sitesentry/livesync/internal/models"
	"github.com/sitesentry/livesync/internal/querycache"
)

// Manager handles login, logout and the session user query.
type Manager struct {
	api   api.Requester
	cache *querycache.Cache
	log   logger.Logger
}

// NewManager creates a session manager bound to the session cache.
func NewManager(requester api.Requester, cache *querycache.Cache, log logger.Logger) *Manager {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Manager{api: requester, cache: cache, log: log}
}

// CurrentUser returns the session user through the cache, or nil when not
// logged in.
func (m *Manager) CurrentUser(ctx context.Context) (*models.UserData, error) {
	value, err := m.cache.Read(ctx, keys.User(), func(ctx context.Context) (any, error) {
		return m.api.GetSessionUser(ctx)
	})
	if err != nil {
		return nil, err
	}
	user, _ := value.(*models.UserData)
	return user, nil
}

// Login authenticates and refreshes the user query.
func (m *Manager) Login(ctx context.Context, username, password string) error {
	if err := m.api.Login(ctx, username, password); err != nil {
		return err
	}
	m.cache.Invalidate(keys.User())
	m.log.Info("logged in", logger.String("username", username))
	return nil
}

// Logout ends the server session and clears every session-dependent cache
// entry. The clear happens even when the server call fails: the local
// session is over either way.
func (m *Manager) Logout(ctx context.Context) error {
	err := m.api.Logout(ctx)
	m.cache.Clear()
	if err != nil {
		return err
	}
	m.log.Info("logged out")
	return nil
}
