// Package keys defines the canonical cache keys shared by readers, the
// mutation engine and the event bridge. Every consumer must build keys here
// so invalidation prefixes line up.
package keys

import "github.com/sitesentry/livesync/internal/querycache"

// Websites is the prefix covering every website list page and detail key.
func Websites() querycache.Key {
	return querycache.NewKey("websites")
}

// WebsitesPage identifies one server-filtered page of the website list.
func WebsitesPage(page, pageSize int, search string) querycache.Key {
	return querycache.NewKey("websites", page, pageSize, search)
}

// WebsiteDetail identifies a single website record.
func WebsiteDetail(websiteID int64) querycache.Key {
	return querycache.NewKey("websites", "detail", websiteID)
}

// ActionHistory identifies the recent execution history of one website.
func ActionHistory(websiteID int64) querycache.Key {
	return querycache.NewKey("actionHistory", websiteID)
}

// Notifications identifies the notification list.
func Notifications() querycache.Key {
	return querycache.NewKey("notifications")
}

// User identifies the session user.
func User() querycache.Key {
	return querycache.NewKey("user")
}
