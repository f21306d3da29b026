package bridge

import (
	"github.com/sitesentry/livesync/internal/events"
	"github.com/sitesentry/livesync/internal/keys"
	"github.com/sitesentry/livesync/internal/querycache"
)

// InvalidationKeys maps a pushed event to the cache-key prefixes it makes
// stale. The mapping is deterministic and total: unknown events invalidate
// nothing.
//
// website_updated touches the list root (covers every page) and, when an id
// is present, the detail key. action_started/completed touch the history
// and the detail key because they flip the "currently running" status.
func InvalidationKeys(env events.Envelope) []querycache.Key {
	id := env.Data.WebsiteID

	switch env.Event {
	case events.WebsiteAdded, events.WebsiteDeleted:
		return []querycache.Key{keys.Websites()}

	case events.WebsiteUpdated:
		ks := []querycache.Key{keys.Websites()}
		if id != 0 {
			ks = append(ks, keys.WebsiteDetail(id))
		}
		return ks

	case events.ActionHistoryUpdated:
		if id == 0 {
			return nil
		}
		return []querycache.Key{keys.ActionHistory(id)}

	case events.ActionStarted, events.ActionCompleted:
		if id == 0 {
			return nil
		}
		return []querycache.Key{
			keys.ActionHistory(id),
			keys.WebsiteDetail(id),
		}

	case events.NotificationAdded, events.NotificationUpdated, events.NotificationDeleted:
		return []querycache.Key{keys.Notifications()}

	case events.UserUpdated:
		return []querycache.Key{keys.User()}
	}

	return nil
}
