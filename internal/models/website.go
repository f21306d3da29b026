package models

import "time"

// ActionInterval configures how often automated logins run for a website.
// Offsets are minutes relative to the previous execution; the allowed time
// window restricts runs to a daily range (minutes since midnight).
type ActionInterval struct {
	DateMinutesStart        int  `json:"date_minutes_start"`
	DateMinutesEnd          *int `json:"date_minutes_end"`
	AllowedTimeMinutesStart *int `json:"allowed_time_minutes_start"`
	AllowedTimeMinutesEnd   *int `json:"allowed_time_minutes_end"`
}

// CustomAccess holds XPath overrides for websites where automatic login form
// detection does not work.
type CustomAccess struct {
	UsernameXPath     string `json:"username_xpath"`
	PasswordXPath     string `json:"password_xpath"`
	PinXPath          string `json:"pin_xpath"`
	SubmitButtonXPath string `json:"submit_button_xpath"`
}

// Website represents a registered website with its login configuration.
// The server owns the record; clients only ever hold a cached copy.
type Website struct {
	ID                        int64           `json:"id"`
	URL                       string          `json:"url"`
	SuccessURL                string          `json:"success_url"`
	Name                      string          `json:"name"`
	Username                  string          `json:"username"`
	Password                  string          `json:"password"`
	Pin                       *string         `json:"pin"`
	TakeScreenshot            bool            `json:"take_screenshot"`
	Paused                    bool            `json:"paused"`
	ExpirationIntervalMinutes *int            `json:"expiration_interval_minutes"`
	CustomAccess              *CustomAccess   `json:"custom_access"`
	CustomLoginScript         *string         `json:"custom_login_script,omitempty"`
	ActionInterval            *ActionInterval `json:"action_interval"`
	NextSchedule              *time.Time      `json:"next_schedule"`
}

// WebsitePatch is a partial update: only non-nil fields change.
type WebsitePatch struct {
	URL                       *string         `json:"url,omitempty"`
	SuccessURL                *string         `json:"success_url,omitempty"`
	Name                      *string         `json:"name,omitempty"`
	Username                  *string         `json:"username,omitempty"`
	Password                  *string         `json:"password,omitempty"`
	Pin                       *string         `json:"pin,omitempty"`
	TakeScreenshot            *bool           `json:"take_screenshot,omitempty"`
	Paused                    *bool           `json:"paused,omitempty"`
	ExpirationIntervalMinutes *int            `json:"expiration_interval_minutes,omitempty"`
	CustomAccess              *CustomAccess   `json:"custom_access,omitempty"`
	CustomLoginScript         *string         `json:"custom_login_script,omitempty"`
	ActionInterval            *ActionInterval `json:"action_interval,omitempty"`
}

// ApplyTo copies the provided fields of the patch onto the website.
func (p WebsitePatch) ApplyTo(w *Website) {
	if p.URL != nil {
		w.URL = *p.URL
	}
	if p.SuccessURL != nil {
		w.SuccessURL = *p.SuccessURL
	}
	if p.Name != nil {
		w.Name = *p.Name
	}
	if p.Username != nil {
		w.Username = *p.Username
	}
	if p.Password != nil {
		w.Password = *p.Password
	}
	if p.Pin != nil {
		w.Pin = p.Pin
	}
	if p.TakeScreenshot != nil {
		w.TakeScreenshot = *p.TakeScreenshot
	}
	if p.Paused != nil {
		w.Paused = *p.Paused
	}
	if p.ExpirationIntervalMinutes != nil {
		w.ExpirationIntervalMinutes = p.ExpirationIntervalMinutes
	}
	if p.CustomAccess != nil {
		w.CustomAccess = p.CustomAccess
	}
	if p.CustomLoginScript != nil {
		w.CustomLoginScript = p.CustomLoginScript
	}
	if p.ActionInterval != nil {
		w.ActionInterval = p.ActionInterval
	}
}

// WebsitePage is one page of a filtered website listing.
type WebsitePage struct {
	Items []Website `json:"items"`
	Total int       `json:"total"`
}

// UserData describes the logged-in user.
type UserData struct {
	Username string `json:"username"`
}
