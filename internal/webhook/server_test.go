package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backmassage/mediasweep/internal/category"
	"github.com/backmassage/mediasweep/internal/config"
	"github.com/backmassage/mediasweep/internal/logging"
	"github.com/backmassage/mediasweep/internal/queue"
)

type fakeQueue struct {
	got []queue.Request
	err error
}

func (f *fakeQueue) Enqueue(r queue.Request) error {
	if f.err != nil {
		return f.err
	}
	f.got = append(f.got, r)
	return nil
}

func (f *fakeQueue) Len() int { return len(f.got) }

func newTestServer(q *fakeQueue, mappings ...config.PathMapping) *Server {
	resolver := category.SegmentResolver{Index: 3, Folders: map[string]category.Category{
		"TV Shows":          category.TV,
		"Animated TV Shows": category.Animation,
		"Movies":            category.Movie,
	}}
	wh := config.WebhookConfig{PathMappings: mappings, SonarrFallback: "tv"}
	return NewServer(config.ServerConfig{Host: "127.0.0.1", Port: 0}, wh, q, resolver, logging.Discard(), "test")
}

func post(t *testing.T, s *Server, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestRadarr_DownloadIsQueuedAsMovie(t *testing.T) {
	q := &fakeQueue{}
	rec := post(t, newTestServer(q), "/radarr", `{
		"eventType": "Download",
		"movieFile": {"id": 7, "relativePath": "Film (2020).mkv", "path": "/data/media/Movies/Film (2020)/Film (2020).mkv"}
	}`)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, q.got, 1)
	assert.Equal(t, queue.Request{
		Path:     "/data/media/Movies/Film (2020)/Film (2020).mkv",
		Category: "movie",
		Source:   "radarr",
	}, q.got[0])
}

func TestRadarr_TestEvent(t *testing.T) {
	q := &fakeQueue{}
	rec := post(t, newTestServer(q), "/radarr", `{"eventType": "Test"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Empty(t, q.got)
}

func TestRadarr_OtherEventIgnored(t *testing.T) {
	q := &fakeQueue{}
	rec := post(t, newTestServer(q), "/radarr", `{"eventType": "Grab"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ignored"}`, rec.Body.String())
	assert.Empty(t, q.got)
}

func TestRadarr_DownloadWithoutFileIsRejected(t *testing.T) {
	q := &fakeQueue{}
	rec := post(t, newTestServer(q), "/radarr", `{"eventType": "Download"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Fields, "movieFile")
	assert.Empty(t, q.got)
}

func TestRadarr_InvalidJSON(t *testing.T) {
	rec := post(t, newTestServer(&fakeQueue{}), "/radarr", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSonarr_DownloadResolvesCategoryFromPath(t *testing.T) {
	q := &fakeQueue{}
	rec := post(t, newTestServer(q), "/sonarr", `{
		"eventType": "Download",
		"series": {"title": "Toons", "path": "/data/media/Animated TV Shows/Toons"},
		"episodeFile": {"id": 1, "relativePath": "Season 01\\Toons - S01E01.mkv"}
	}`)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, q.got, 1)
	assert.Equal(t, "/data/media/Animated TV Shows/Toons/Season 01/Toons - S01E01.mkv", q.got[0].Path)
	assert.Equal(t, "animation", q.got[0].Category)
	assert.Equal(t, "sonarr", q.got[0].Source)
}

func TestSonarr_UnresolvedPathUsesFallback(t *testing.T) {
	q := &fakeQueue{}
	rec := post(t, newTestServer(q), "/sonarr", `{
		"eventType": "Download",
		"series": {"path": "/srv/shows/Show"},
		"episodeFile": {"relativePath": "Show - S01E01.mkv"}
	}`)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, q.got, 1)
	assert.Equal(t, "tv", q.got[0].Category)
}

func TestSonarr_PathMappingApplied(t *testing.T) {
	q := &fakeQueue{}
	s := newTestServer(q, config.PathMapping{From: "/tv", To: "/data/media/TV Shows"})
	rec := post(t, s, "/sonarr", `{
		"eventType": "Download",
		"series": {"path": "/tv/Show"},
		"episodeFile": {"relativePath": "Show - S01E01.mkv"}
	}`)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, q.got, 1)
	assert.Equal(t, "/data/media/TV Shows/Show/Show - S01E01.mkv", q.got[0].Path)
	assert.Equal(t, "tv", q.got[0].Category)
}

func TestSonarr_MissingEpisodeFile(t *testing.T) {
	rec := post(t, newTestServer(&fakeQueue{}), "/sonarr", `{
		"eventType": "Download",
		"series": {"path": "/data/media/TV Shows/Show"}
	}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, map[string]string{"episodeFile": "is required"}, resp.Fields)
}

func TestEnqueueErrorsMapToStatus(t *testing.T) {
	body := `{"eventType":"Download","movieFile":{"path":"/data/media/Movies/a.mkv"}}`
	tests := []struct {
		err  error
		want int
	}{
		{queue.ErrDuplicate, http.StatusConflict},
		{queue.ErrFull, http.StatusServiceUnavailable},
		{queue.ErrClosed, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			rec := post(t, newTestServer(&fakeQueue{err: tt.err}), "/radarr", body)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestHealthz(t *testing.T) {
	q := &fakeQueue{got: []queue.Request{{Path: "/a"}}}
	rec := httptest.NewRecorder()
	newTestServer(q).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "test", resp.Version)
	assert.Equal(t, 1, resp.QueueDepth)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(&fakeQueue{})
	post(t, s, "/radarr", `{"eventType": "Test"}`)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "mediasweep_webhook_events_total")
	assert.Contains(t, rec.Body.String(), `path="/radarr"`)
}

func TestWrongMethod(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer(&fakeQueue{}).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/radarr", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestStartAfterShutdownReturns(t *testing.T) {
	s := NewServer(config.ServerConfig{Host: "127.0.0.1", Port: 0, ShutdownTimeout: time.Second},
		config.WebhookConfig{}, &fakeQueue{}, category.LibraryResolver{}, logging.Discard(), "test")
	require.NoError(t, s.Shutdown(context.Background()))
	assert.NoError(t, s.Start())
}
