package apiclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dandels/dmodman-core/internal/modid"
)

func newTestClient(url string) *Client {
	return NewClient(url, "test-key", "dmodman-core", "test", http.DefaultClient, nil)
}

func TestClient_FileList_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("apikey"))
		assert.Contains(t, r.Header.Get("User-Agent"), "dmodman-core")

		w.Header().Set("x-rl-hourly-remaining", "99")
		w.Header().Set("x-rl-daily-remaining", "2499")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{
			"files": [{"file_id": 1, "name": "a", "version": "1.0", "category_id": 1, "uploaded_timestamp": 100}],
			"file_updates": []
		}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)

	fl, err := c.FileList(context.Background(), "morrowind", 39350)
	require.NoError(t, err)
	require.Len(t, fl.Files, 1)
	assert.Equal(t, uint64(1), fl.Files[0].FileID)
	assert.Equal(t, int64(99), c.Quota.HourlyRemaining())
	assert.Equal(t, int64(2499), c.Quota.DailyRemaining())
}

func TestClient_FileList_SortsOutOfOrderResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{
			"files": [
				{"file_id": 3, "name": "c", "version": "3.0", "category_id": 1, "uploaded_timestamp": 300},
				{"file_id": 1, "name": "a", "version": "1.0", "category_id": 1, "uploaded_timestamp": 100},
				{"file_id": 2, "name": "b", "version": "2.0", "category_id": 1, "uploaded_timestamp": 200}
			],
			"file_updates": [
				{"old_file_id": 2, "new_file_id": 3, "old_file_name": "b", "new_file_name": "c", "uploaded_timestamp": 300},
				{"old_file_id": 1, "new_file_id": 2, "old_file_name": "a", "new_file_name": "b", "uploaded_timestamp": 200}
			]
		}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)

	fl, err := c.FileList(context.Background(), "morrowind", 39350)
	require.NoError(t, err)
	require.Len(t, fl.Files, 3)
	require.Len(t, fl.FileUpdates, 2)

	for i := 1; i < len(fl.Files); i++ {
		assert.LessOrEqual(t, fl.Files[i-1].UploadedTimestamp, fl.Files[i].UploadedTimestamp)
	}

	for i := 1; i < len(fl.FileUpdates); i++ {
		assert.LessOrEqual(t, fl.FileUpdates[i-1].UploadedTimestamp, fl.FileUpdates[i].UploadedTimestamp)
	}
}

func TestClient_SchemaMismatchSkipsRecord(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)

	_, err := c.ModInfo(context.Background(), "morrowind", 39350)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSchemaMismatch)
}

func TestClient_RateLimitedSurfacesImmediately(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Header().Set("x-rl-hourly-remaining", "0")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`rate limited`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)

	_, err := c.ModInfo(context.Background(), "morrowind", 39350)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrThrottled)
	assert.Equal(t, int32(1), calls.Load(), "429 must not be retried")
	assert.True(t, c.Quota.Exhausted())
}

func TestClient_TransientServerErrorRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)

			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"mod_id": 39350, "name": "Example", "summary": "", "version": "1.0"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)

	mi, err := c.ModInfo(context.Background(), "morrowind", 39350)
	require.NoError(t, err)
	assert.Equal(t, uint32(39350), mi.ModID)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_DownloadLinksBuildsExpectedPath(t *testing.T) {
	var gotPath string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path + "?" + r.URL.RawQuery
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`[{"name": "Nexus CDN", "short_name": "nexus", "URI": "https://cdn/foo.7z"}]`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)

	id := modid.FileIdentity{GameDomain: "skyrimspecialedition", ModID: 8850, FileID: 27772}

	links, err := c.DownloadLinks(context.Background(), id, "")
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "https://cdn/foo.7z", links[0].URI)
	assert.Equal(t, "/games/skyrimspecialedition/mods/8850/files/27772/download_link.json?", gotPath)
}

func TestClient_Md5SearchParsesNestedShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`[{
			"mod": {"mod_id": 39350, "name": "Example"},
			"file_details": {"file_id": 1, "mod_id": 39350, "md5": "abc123"}
		}]`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)

	results, err := c.Md5Search(context.Background(), "morrowind", "abc123")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "abc123", results[0].Md5)
	assert.Equal(t, uint64(1), results[0].FileID)
}
