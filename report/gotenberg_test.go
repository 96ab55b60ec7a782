package report

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderHTMLPostsMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, convertPath, r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		file, header, err := r.FormFile("files")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "index.html", header.Filename)
		body, _ := io.ReadAll(file)
		assert.Equal(t, "<p>hi</p>", string(body))
		assert.Equal(t, "500ms", r.FormValue("waitDelay"))
		assert.Equal(t, "true", r.FormValue("landscape"))
		assert.Equal(t, "8.27", r.FormValue("paperWidth"))
		assert.Equal(t, "0.4", r.FormValue("marginLeft"))
		_, _ = w.Write([]byte("%PDF"))
	}))
	defer srv.Close()

	pdf, err := NewClient(srv.URL+"/").RenderHTML(context.Background(), "<p>hi</p>")
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(pdf))
}

func TestRenderHTMLPortraitPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "false", r.FormValue("landscape"))
		assert.Empty(t, r.FormValue("paperWidth"))
		assert.Empty(t, r.FormValue("marginTop"))
		_, _ = w.Write([]byte("%PDF"))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, WithPage(Page{})).RenderHTML(context.Background(), "<p></p>")
	require.NoError(t, err)
}

func TestRenderHTMLFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "chromium crashed", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).RenderHTML(context.Background(), "<p></p>")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chromium crashed")
}

func TestUnconfiguredClient(t *testing.T) {
	client := NewClient("")
	assert.False(t, client.Configured())
	assert.ErrorIs(t, client.Ping(context.Background()), ErrNotConfigured)
	_, err := client.RenderHTML(context.Background(), "<p></p>")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func serveHealth(t *testing.T, client *Client) (*httptest.ResponseRecorder, Status) {
	t.Helper()
	router := chi.NewRouter()
	NewHandler(client, slog.New(slog.NewTextHandler(io.Discard, nil))).MountRoutes(router)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	var status Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	return rec, status
}

func TestHealthReachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, healthPath, r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	rec, status := serveHealth(t, NewClient(srv.URL))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, status.Configured)
	assert.True(t, status.Reachable)
}

func TestHealthNotConfigured(t *testing.T) {
	rec, status := serveHealth(t, NewClient(""))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, status.Configured)
	assert.False(t, status.Reachable)
}

func TestHealthUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	rec, status := serveHealth(t, NewClient(srv.URL))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.True(t, status.Configured)
	assert.Equal(t, "renderer unreachable", status.Error)
}
