// Package api is the thin request layer over the dashboard backend. It
// knows endpoints and payload shapes; caching, deduplication and
// invalidation live above it.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sitesentry/livesync/internal/logger"
	"github.com/sitesentry/livesync/internal/metadata"
	"github.com/sitesentry/livesync/internal/models"
)

const defaultTimeout = 30 * time.Second

// Requester is the request-function interface consumed by the sync layer.
// The concrete Client talks HTTP; tests substitute fakes.
type Requester interface {
	ListWebsites(ctx context.Context, page, pageSize int, search string) (*models.WebsitePage, error)
	GetWebsite(ctx context.Context, websiteID int64) (*models.Website, error)
	AddWebsite(ctx context.Context, patch models.WebsitePatch) (*models.Website, error)
	EditWebsite(ctx context.Context, websiteID int64, patch models.WebsitePatch) error
	DeleteWebsite(ctx context.Context, websiteID int64) error

	ListExecutions(ctx context.Context, websiteID int64, page, pageSize int) (*models.ExecutionPage, error)
	AddManualExecution(ctx context.Context, websiteID int64) error
	TriggerExecution(ctx context.Context, websiteID int64) error
	GetScreenshot(ctx context.Context, screenshotID string) ([]byte, error)

	CheckScript(ctx context.Context, source string) (string, error)
	SuggestMetadata(ctx context.Context, pageURL string) (*metadata.Suggestion, error)
	Health(ctx context.Context) error

	ListNotifications(ctx context.Context) ([]models.Notification, error)
	AddNotification(ctx context.Context, n models.Notification) error
	EditNotification(ctx context.Context, patch models.NotificationPatch) error
	DeleteNotification(ctx context.Context, notificationID int64) error
	TestNotification(ctx context.Context, n models.Notification) error

	Login(ctx context.Context, username, password string) error
	Logout(ctx context.Context) error
	GetSessionUser(ctx context.Context) (*models.UserData, error)
}

// Client implements Requester over HTTP with a cookie-based session.
type Client struct {
	baseURL string
	http    *http.Client
	log     logger.Logger
}

// ClientConfig configures the HTTP client.
type ClientConfig struct {
	BaseURL string
	Timeout time.Duration
	Logger  logger.Logger
}

// NewClient creates an API client. The cookie jar holds the session cookie
// issued by login.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("api: base URL is required")
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http: &http.Client{
			Timeout: timeout,
			Jar:     jar,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		log: log,
	}, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Error{StatusCode: resp.StatusCode, Message: readErrorMessage(resp.Body)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		body = bytes.NewReader(data)
	}
	return c.do(ctx, method, path, body, "application/json", out)
}

// readErrorMessage extracts the server's error text from a failure body.
func readErrorMessage(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || len(data) == 0 {
		return ""
	}
	var payload struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(data, &payload); err == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Detail != "" {
			return payload.Detail
		}
	}
	return strings.TrimSpace(string(data))
}

func (c *Client) ListWebsites(ctx context.Context, page, pageSize int, search string) (*models.WebsitePage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(pageSize))
	if search != "" {
		q.Set("search", search)
	}
	var result models.WebsitePage
	if err := c.do(ctx, http.MethodGet, "/api/websites?"+q.Encode(), nil, "", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) GetWebsite(ctx context.Context, websiteID int64) (*models.Website, error) {
	var result models.Website
	path := fmt.Sprintf("/api/websites/%d", websiteID)
	if err := c.do(ctx, http.MethodGet, path, nil, "", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) AddWebsite(ctx context.Context, patch models.WebsitePatch) (*models.Website, error) {
	var result models.Website
	if err := c.doJSON(ctx, http.MethodPost, "/api/websites", patch, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) EditWebsite(ctx context.Context, websiteID int64, patch models.WebsitePatch) error {
	return c.doJSON(ctx, http.MethodPut, fmt.Sprintf("/api/websites/%d", websiteID), patch, nil)
}

func (c *Client) DeleteWebsite(ctx context.Context, websiteID int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/websites/%d", websiteID), nil, "", nil)
}

func (c *Client) ListExecutions(ctx context.Context, websiteID int64, page, pageSize int) (*models.ExecutionPage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(pageSize))
	var result models.ExecutionPage
	path := fmt.Sprintf("/api/action_history/%d?%s", websiteID, q.Encode())
	if err := c.do(ctx, http.MethodGet, path, nil, "", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) AddManualExecution(ctx context.Context, websiteID int64) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/api/action_history/manual_add/%d", websiteID), nil, "", nil)
}

func (c *Client) TriggerExecution(ctx context.Context, websiteID int64) error {
	payload := map[string]int64{"id": websiteID}
	return c.doJSON(ctx, http.MethodPost, "/api/trigger_login", payload, nil)
}

// CheckScript validates a custom login script server-side. An empty string
// means the script passed.
func (c *Client) CheckScript(ctx context.Context, source string) (string, error) {
	payload := map[string]string{"script": source}
	var result struct {
		Error *string `json:"error"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/websites/check_custom_login_script", payload, &result); err != nil {
		return "", err
	}
	if result.Error == nil {
		return "", nil
	}
	return *result.Error, nil
}

// GetScreenshot downloads the image captured by a login run.
func (c *Client) GetScreenshot(ctx context.Context, screenshotID string) ([]byte, error) {
	path := "/api/screenshot/" + url.PathEscape(screenshotID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &Error{StatusCode: resp.StatusCode, Message: readErrorMessage(resp.Body)}
	}
	return io.ReadAll(resp.Body)
}

// SuggestMetadata asks the server to inspect a login page and returns
// prefill suggestions for the add-website form.
func (c *Client) SuggestMetadata(ctx context.Context, pageURL string) (*metadata.Suggestion, error) {
	q := url.Values{}
	q.Set("url", pageURL)
	var result metadata.Suggestion
	if err := c.do(ctx, http.MethodGet, "/api/websites/metadata?"+q.Encode(), nil, "", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Health reports whether the backend is reachable.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/health", nil, "", nil)
}

func (c *Client) ListNotifications(ctx context.Context) ([]models.Notification, error) {
	var result []models.Notification
	if err := c.do(ctx, http.MethodGet, "/api/notifications", nil, "", &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) AddNotification(ctx context.Context, n models.Notification) error {
	return c.doJSON(ctx, http.MethodPost, "/api/notifications", n, nil)
}

func (c *Client) EditNotification(ctx context.Context, patch models.NotificationPatch) error {
	return c.doJSON(ctx, http.MethodPut, fmt.Sprintf("/api/notifications/%d", patch.ID), patch, nil)
}

func (c *Client) DeleteNotification(ctx context.Context, notificationID int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/notifications/%d", notificationID), nil, "", nil)
}

func (c *Client) TestNotification(ctx context.Context, n models.Notification) error {
	return c.doJSON(ctx, http.MethodPost, "/api/notifications/test", n, nil)
}

// Login authenticates with form-encoded credentials; the session cookie
// lands in the client's jar.
func (c *Client) Login(ctx context.Context, username, password string) error {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)
	return c.do(ctx, http.MethodPost, "/user/login",
		strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", nil)
}

func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/user/logout", nil, "", nil)
}

// GetSessionUser returns the logged-in user, or nil when the session is not
// authenticated. A 401 is "not logged in", never an error.
func (c *Client) GetSessionUser(ctx context.Context) (*models.UserData, error) {
	var result models.UserData
	err := c.do(ctx, http.MethodGet, "/user/data", nil, "", &result)
	if err != nil {
		if IsAuthError(err) {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}
