package metadata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serveHTML(t *testing.T, html string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(html))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestExtractNamePriority(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{
			name: "og site name wins",
			html: `<html><head>
				<meta property="og:site_name" content="Example Bank">
				<meta property="og:title" content="Sign in">
				<title>Login | Example</title>
			</head><body></body></html>`,
			want: "Example Bank",
		},
		{
			name: "og title beats title tag",
			html: `<html><head>
				<meta property="og:title" content="Sign in to Example">
				<title>Login</title>
			</head><body></body></html>`,
			want: "Sign in to Example",
		},
		{
			name: "title tag fallback",
			html: `<html><head><title> Members Area </title></head><body></body></html>`,
			want: "Members Area",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := serveHTML(t, tt.html)
			got, err := NewExtractor(nil).Extract(context.Background(), srv.URL)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Name)
		})
	}
}

func TestExtractNameFallsBackToHost(t *testing.T) {
	srv := serveHTML(t, `<html><head></head><body></body></html>`)
	got, err := NewExtractor(nil).Extract(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.NotEmpty(t, got.Name)
	assert.Contains(t, srv.URL, got.Name)
}

func TestExtractStandardLoginFormNeedsNoOverrides(t *testing.T) {
	srv := serveHTML(t, `<html><body>
		<form method="post">
			<input type="text" name="username">
			<input type="password" name="password">
			<button type="submit">Sign in</button>
		</form>
	</body></html>`)

	got, err := NewExtractor(nil).Extract(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Nil(t, got.Access, "detectable forms must not suggest overrides")
}

func TestExtractNonStandardFormSuggestsXPaths(t *testing.T) {
	srv := serveHTML(t, `<html><body>
		<form method="post">
			<input type="text" id="acct" name="customer_number">
			<input type="password" id="secret" name="kennwort">
			<input type="text" id="pin-entry" name="pin_code">
			<button type="submit" id="go">Login</button>
		</form>
	</body></html>`)

	got, err := NewExtractor(nil).Extract(context.Background(), srv.URL)
	require.NoError(t, err)
	require.NotNil(t, got.Access)
	assert.Equal(t, "//input[@id='acct']", got.Access.UsernameXPath)
	assert.Equal(t, "//input[@id='secret']", got.Access.PasswordXPath)
	assert.Equal(t, "//input[@id='pin-entry']", got.Access.PinXPath)
	assert.Equal(t, "//button[@id='go']", got.Access.SubmitButtonXPath)
}

func TestExtractPageWithoutLoginForm(t *testing.T) {
	srv := serveHTML(t, `<html><body><form><input type="search" name="q"></form></body></html>`)
	got, err := NewExtractor(nil).Extract(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Nil(t, got.Access)
}

func TestExtractRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	_, err := NewExtractor(nil).Extract(context.Background(), srv.URL)
	assert.Error(t, err)
}
