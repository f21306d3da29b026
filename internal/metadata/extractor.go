// Package metadata prefills the add-website form by inspecting a login page.
package metadata

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/sitesentry/livesync/internal/logger"
	"github.com/sitesentry/livesync/internal/models"
)

const defaultHTTPTimeout = 30 * time.Second

// Suggestion holds prefill values extracted from a login page. Access is nil
// when the page's login form looks detectable without overrides.
type Suggestion struct {
	Name   string               `json:"name"`
	URL    string               `json:"url"`
	Access *models.CustomAccess `json:"custom_access,omitempty"`
}

// Extractor fetches login pages and derives form prefill suggestions.
type Extractor struct {
	log    logger.Logger
	client *http.Client
}

// NewExtractor creates a metadata extractor.
func NewExtractor(log logger.Logger) *Extractor {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Extractor{
		log:    log,
		client: &http.Client{Timeout: defaultHTTPTimeout},
	}
}

// Extract fetches the URL and suggests a website name plus, when the login
// form uses non-standard field names, XPath overrides for the form fields.
func (e *Extractor) Extract(ctx context.Context, pageURL string) (*Suggestion, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	// Some login pages block unidentified clients.
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; SiteSentry/1.0)")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse HTML: %w", err)
	}

	suggestion := &Suggestion{
		URL:    pageURL,
		Name:   extractName(doc, parsed),
		Access: extractAccess(doc),
	}

	e.log.Info("metadata extraction complete",
		logger.String("url", pageURL),
		logger.String("name", suggestion.Name),
		logger.Bool("custom_access", suggestion.Access != nil),
	)
	return suggestion, nil
}

// extractName picks a display name: OpenGraph site name, then OG title, then
// the title tag, then the host.
func extractName(doc *goquery.Document, parsed *url.URL) string {
	if name, ok := doc.Find("meta[property='og:site_name']").Attr("content"); ok && name != "" {
		return name
	}
	if title, ok := doc.Find("meta[property='og:title']").Attr("content"); ok && title != "" {
		return title
	}
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}
	return parsed.Host
}

// standard field names the automatic form detection already handles.
var standardNames = map[string]bool{
	"username": true,
	"user":     true,
	"email":    true,
	"login":    true,
	"password": true,
	"pass":     true,
}

// extractAccess inspects the first form holding a password input. When any
// login field carries a non-standard name attribute, it returns XPath
// overrides pointing at the concrete inputs; otherwise nil.
func extractAccess(doc *goquery.Document) *models.CustomAccess {
	form := doc.Find("form").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.Find("input[type='password']").Length() > 0
	}).First()
	if form.Length() == 0 {
		return nil
	}

	access := &models.CustomAccess{}
	nonStandard := false

	password := form.Find("input[type='password']").First()
	access.PasswordXPath = inputXPath(password)
	if name, ok := password.Attr("name"); !ok || !standardNames[strings.ToLower(name)] {
		nonStandard = true
	}

	username := form.Find("input[type='text'], input[type='email']").First()
	if username.Length() > 0 {
		access.UsernameXPath = inputXPath(username)
		if name, ok := username.Attr("name"); !ok || !standardNames[strings.ToLower(name)] {
			nonStandard = true
		}
	}

	if pin := form.Find("input[name*='pin'], input[id*='pin']").First(); pin.Length() > 0 {
		access.PinXPath = inputXPath(pin)
		nonStandard = true
	}

	if submit := form.Find("button[type='submit'], input[type='submit']").First(); submit.Length() > 0 {
		access.SubmitButtonXPath = inputXPath(submit)
	}

	if !nonStandard {
		return nil
	}
	return access
}

// inputXPath builds an XPath for an element, preferring id, then name, then
// the bare tag.
func inputXPath(s *goquery.Selection) string {
	if s.Length() == 0 {
		return ""
	}
	tag := goquery.NodeName(s)
	if id, ok := s.Attr("id"); ok && id != "" {
		return fmt.Sprintf("//%s[@id='%s']", tag, id)
	}
	if name, ok := s.Attr("name"); ok && name != "" {
		return fmt.Sprintf("//%s[@name='%s']", tag, name)
	}
	return "//" + tag
}
