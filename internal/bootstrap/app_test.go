package bootstrap

import (
	"bytes"
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/sitesentry/livesync/internal/activity"
	"github.com/sitesentry/livesync/internal/config"
	"github.com/sitesentry/livesync/internal/devserver"
	"github.com/sitesentry/livesync/internal/logger"
	"github.com/sitesentry/livesync/internal/models"
)

func strPtr(s string) *string { return &s }

func TestExportActivityWritesWorkbook(t *testing.T) {
	srv := devserver.NewServer(devserver.Config{
		JWTSecret: "test-secret",
		Username:  "admin",
		Password:  "secret",
	}, nil)
	httpSrv := httptest.NewServer(srv.Handler())
	t.Cleanup(httpSrv.Close)

	cfg := &config.Config{}
	cfg.SetDefaults()
	cfg.API.BaseURL = httpSrv.URL
	cfg.API.Timeout = 5 * time.Second

	app, err := NewApp(cfg, logger.NewNopLogger())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, app.API.Login(ctx, "admin", "secret"))
	_, err = app.API.AddWebsite(ctx, models.WebsitePatch{
		Name: strPtr("My Bank"),
		URL:  strPtr("https://bank.example"),
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, app.ExportActivity(ctx, &buf, activity.PageRequest{Page: 1, PageSize: 10}))

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	name, err := f.GetCellValue("Activity", "A2")
	require.NoError(t, err)
	assert.Equal(t, "My Bank", name)
	url, err := f.GetCellValue("Activity", "B2")
	require.NoError(t, err)
	assert.Equal(t, "https://bank.example", url)
}

func TestExportActivityPropagatesPageErrors(t *testing.T) {
	cfg := &config.Config{}
	cfg.SetDefaults()
	// Nothing listens here; the page load must fail and so must the export.
	cfg.API.BaseURL = "http://127.0.0.1:1"
	cfg.API.Timeout = 200 * time.Millisecond

	app, err := NewApp(cfg, logger.NewNopLogger())
	require.NoError(t, err)

	var buf bytes.Buffer
	err = app.ExportActivity(context.Background(), &buf, activity.PageRequest{Page: 1, PageSize: 10})
	require.Error(t, err)
	assert.Zero(t, buf.Len(), "a failed export writes nothing")
}
