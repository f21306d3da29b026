package devserver

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitesentry/livesync/internal/api"
	"github.com/sitesentry/livesync/internal/models"
)

func newTestServer(t *testing.T) (*Server, *api.Client) {
	t.Helper()
	srv := NewServer(Config{
		JWTSecret: "test-secret",
		Username:  "admin",
		Password:  "secret",
	}, nil)

	httpSrv := httptest.NewServer(srv.Handler())
	t.Cleanup(httpSrv.Close)

	client, err := api.NewClient(api.ClientConfig{BaseURL: httpSrv.URL})
	require.NoError(t, err)
	return srv, client
}

func login(t *testing.T, client *api.Client) {
	t.Helper()
	require.NoError(t, client.Login(context.Background(), "admin", "secret"))
}

func TestSessionFlow(t *testing.T) {
	_, client := newTestServer(t)
	ctx := context.Background()

	// Anonymous session user is nil, not an error.
	user, err := client.GetSessionUser(ctx)
	require.NoError(t, err)
	assert.Nil(t, user)

	// Protected endpoints reject anonymous callers.
	_, err = client.ListWebsites(ctx, 1, 10, "")
	assert.True(t, api.IsAuthError(err))

	// Wrong credentials are rejected.
	err = client.Login(ctx, "admin", "wrong")
	assert.True(t, api.IsAuthError(err))

	login(t, client)
	user, err = client.GetSessionUser(ctx)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "admin", user.Username)

	require.NoError(t, client.Logout(ctx))
	user, err = client.GetSessionUser(ctx)
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestWebsiteCRUD(t *testing.T) {
	_, client := newTestServer(t)
	ctx := context.Background()
	login(t, client)

	created, err := client.AddWebsite(ctx, models.WebsitePatch{
		Name: strPtr("My Bank"),
		URL:  strPtr("https://bank.example/login"),
	})
	require.NoError(t, err)
	require.NotZero(t, created.ID)

	// Missing URL is a validation error.
	_, err = client.AddWebsite(ctx, models.WebsitePatch{Name: strPtr("broken")})
	assert.True(t, api.IsValidationError(err))

	require.NoError(t, client.EditWebsite(ctx, created.ID, models.WebsitePatch{
		Name: strPtr("Renamed Bank"),
	}))
	got, err := client.GetWebsite(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed Bank", got.Name)
	assert.Equal(t, "https://bank.example/login", got.URL, "unpatched fields survive")

	page, err := client.ListWebsites(ctx, 1, 10, "renamed")
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)

	require.NoError(t, client.DeleteWebsite(ctx, created.ID))
	_, err = client.GetWebsite(ctx, created.ID)
	require.Error(t, err)
}

func TestTriggeredRunLifecycle(t *testing.T) {
	srv, client := newTestServer(t)
	ctx := context.Background()
	login(t, client)

	created, err := client.AddWebsite(ctx, models.WebsitePatch{
		Name:           strPtr("site"),
		URL:            strPtr("https://site.example"),
		TakeScreenshot: boolPtr(true),
	})
	require.NoError(t, err)

	require.NoError(t, client.TriggerExecution(ctx, created.ID))

	history, err := client.ListExecutions(ctx, created.ID, 1, 10)
	require.NoError(t, err)
	require.Len(t, history.Items, 1)
	assert.Equal(t, models.StatusInProgress, history.Items[0].ExecutionStatus)

	srv.CompleteRun(history.Items[0].ID, created.ID, models.StatusSuccess)

	history, err = client.ListExecutions(ctx, created.ID, 1, 10)
	require.NoError(t, err)
	require.Len(t, history.Items, 1)
	assert.Equal(t, models.StatusSuccess, history.Items[0].ExecutionStatus)
	assert.NotNil(t, history.Items[0].ExecutionEnded)
	require.NotNil(t, history.Items[0].ScreenshotID, "screenshot-enabled website gets a screenshot id")

	// The minted screenshot id is retrievable.
	data, err := client.GetScreenshot(ctx, *history.Items[0].ScreenshotID)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")), "screenshot must be a PNG")

	_, err = client.GetScreenshot(ctx, "no-such-screenshot")
	require.Error(t, err)
}

func TestManualExecutionWithoutBody(t *testing.T) {
	_, client := newTestServer(t)
	ctx := context.Background()
	login(t, client)

	created, err := client.AddWebsite(ctx, models.WebsitePatch{
		Name: strPtr("site"),
		URL:  strPtr("https://site.example"),
	})
	require.NoError(t, err)

	// The client sends no body; the server synthesizes a completed run.
	require.NoError(t, client.AddManualExecution(ctx, created.ID))

	history, err := client.ListExecutions(ctx, created.ID, 1, 10)
	require.NoError(t, err)
	require.Len(t, history.Items, 1)
	assert.Equal(t, models.StatusSuccess, history.Items[0].ExecutionStatus)
	assert.NotNil(t, history.Items[0].ExecutionEnded)
}

func TestHealthEndpoint(t *testing.T) {
	_, client := newTestServer(t)
	// Health needs no session.
	require.NoError(t, client.Health(context.Background()))
}

func TestWebsiteMetadataSuggestion(t *testing.T) {
	_, client := newTestServer(t)
	ctx := context.Background()
	login(t, client)

	page := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><meta property="og:site_name" content="Acme Bank"/></head>
<body><form action="/login">
<input type="text" id="acct" name="acct_number"/>
<input type="password" name="passcode"/>
<button type="submit">Sign in</button>
</form></body></html>`)
	}))
	t.Cleanup(page.Close)

	suggestion, err := client.SuggestMetadata(ctx, page.URL)
	require.NoError(t, err)
	assert.Equal(t, "Acme Bank", suggestion.Name)
	require.NotNil(t, suggestion.Access, "non-standard field names need overrides")
	assert.Equal(t, "//input[@id='acct']", suggestion.Access.UsernameXPath)
	assert.Equal(t, "//input[@name='passcode']", suggestion.Access.PasswordXPath)

	_, err = client.SuggestMetadata(ctx, "")
	assert.True(t, api.IsValidationError(err))
}

func TestCheckCustomLoginScript(t *testing.T) {
	_, client := newTestServer(t)
	ctx := context.Background()
	login(t, client)

	msg, err := client.CheckScript(ctx, "goto https://site.example\nfill_username\nfill_password\nsubmit")
	require.NoError(t, err)
	assert.Empty(t, msg)

	msg, err = client.CheckScript(ctx, "explode")
	require.NoError(t, err)
	assert.Contains(t, msg, "unknown command")

	msg, err = client.CheckScript(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "script is empty", msg)
}

func TestNotificationEndpoints(t *testing.T) {
	_, client := newTestServer(t)
	ctx := context.Background()
	login(t, client)

	require.NoError(t, client.AddNotification(ctx, models.Notification{
		Name:     "failures",
		Title:    "Login failed",
		Body:     "site is down",
		Triggers: []models.ActionStatus{models.StatusFailed},
	}))

	list, err := client.ListNotifications(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, client.EditNotification(ctx, models.NotificationPatch{
		ID:    list[0].ID,
		Title: strPtr("Login still failing"),
	}))

	require.NoError(t, client.TestNotification(ctx, list[0]))
	err = client.TestNotification(ctx, models.Notification{Name: "empty"})
	assert.True(t, api.IsValidationError(err))

	require.NoError(t, client.DeleteNotification(ctx, list[0].ID))
	list, err = client.ListNotifications(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}
