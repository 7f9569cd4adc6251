package controlclient

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDo_SuccessOnLowStatus(t *testing.T) {
	var gotAction, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		form, _ := url.ParseQuery(string(body))
		gotAction = form.Get("action")
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(srv.URL, "admin", "secret")
	err := c.Do(t.Context(), "web-app", "restart")
	require.NoError(t, err)
	assert.Equal(t, "restart", gotAction)
	assert.NotEmpty(t, gotAuth)
}

func TestDo_NoAuthHeaderWithoutUsername(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(srv.URL, "", "")
	require.NoError(t, c.Do(t.Context(), "web-app", "stop"))
	assert.Empty(t, gotAuth)
}

func TestDo_ScrapesErrorMessageOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("<html><h1>Error</h1><h2>service not found</h2><p>details</p></html>"))
	}))
	defer srv.Close()

	c := New(srv.URL, "", "")
	err := c.Do(t.Context(), "ghost", "start")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "service not found")
}

func TestDo_FallsBackToStatusLineWhenNoErrorMarkup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, "", "")
	err := c.Do(t.Context(), "web-app", "start")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestScrapeError_NoClosingTag(t *testing.T) {
	assert.Empty(t, scrapeError("no markers here"))
}
