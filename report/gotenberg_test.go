package report

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func TestRenderHTMLPostsMultipartForm(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/forms/chromium/convert/html", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		require.Equal(t, "true", r.FormValue("landscape"))
		file, _, err := r.FormFile("files")
		require.NoError(t, err)
		defer file.Close()
		html, err := io.ReadAll(file)
		require.NoError(t, err)
		require.Equal(t, "<h1>Report</h1>", string(html))
		_, _ = w.Write([]byte("%PDF"))
	}))
	defer srv.Close()

	client := NewClient(srv.URL+"/", WithLandscape())
	data, err := client.RenderHTML(context.Background(), "<h1>Report</h1>")
	require.NoError(t, err)
	require.Equal(t, "%PDF", string(data))
}

func TestRenderHTMLSurfacesGotenbergErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "chromium crashed", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).RenderHTML(context.Background(), "<p></p>")
	require.ErrorContains(t, err, "chromium crashed")

	_, err = NewClient("").RenderHTML(context.Background(), "<p></p>")
	require.Error(t, err)
}

func TestHealthRoute(t *testing.T) {
	healthy := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	router := chi.NewRouter()
	NewHandler(NewClient(srv.URL), slog.New(slog.NewTextHandler(io.Discard, nil))).MountRoutes(router)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	healthy = false
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
