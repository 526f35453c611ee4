package yadisk

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ydbackup/config"
)

const testRef = PublicRef("https://disk.yandex.ru/d/testkey")

type sleepRecorder struct {
	waits []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.waits = append(s.waits, d)
	return nil
}

func newTestClient(baseURL string) (*Client, *sleepRecorder) {
	cfg := &config.Config{
		ApiURL:       baseURL,
		UserAgent:    "ydbackup-test",
		Timeout:      5 * time.Second,
		MaxRetries:   3,
		RetryBackoff: time.Second,
		PageLimit:    2,
	}
	log := logrus.New()
	log.SetOutput(io.Discard)

	client := New(cfg, log)
	rec := &sleepRecorder{}
	client.sleep = rec.sleep
	return client, rec
}

func TestFetchMetadataRateLimitRetry(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 1 {
			w.Header().Set("Retry-After", "7")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"type": "file", "name": "a.txt", "size": 3}`)
	}))
	defer server.Close()

	client, rec := newTestClient(server.URL)

	res, err := client.FetchMetadata(context.Background(), testRef, "", 0, 20)
	require.NoError(t, err)
	require.NotNil(t, res.File)
	assert.Equal(t, "a.txt", res.File.Name)
	assert.Equal(t, int32(2), requests.Load())
	require.Len(t, rec.waits, 1)
	assert.GreaterOrEqual(t, rec.waits[0], 7*time.Second)
}

func TestFetchMetadataRateLimitExhausted(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Header().Set("Retry-After", "1")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client, _ := newTestClient(server.URL)

	_, err := client.FetchMetadata(context.Background(), testRef, "", 0, 20)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, int32(2), requests.Load())
}

func TestFetchMetadataRateLimitDefaultWait(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"type": "file", "name": "a.txt", "size": 3}`)
	}))
	defer server.Close()

	client, rec := newTestClient(server.URL)

	_, err := client.FetchMetadata(context.Background(), testRef, "", 0, 20)
	require.NoError(t, err)
	require.Len(t, rec.waits, 1)
	assert.Equal(t, defaultRetryAfter, rec.waits[0])
}

func TestFetchMetadataTransientRetry(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch requests.Add(1) {
		case 1:
			w.WriteHeader(http.StatusInternalServerError)
		case 2:
			w.WriteHeader(http.StatusBadGateway)
		default:
			fmt.Fprint(w, `{"type": "file", "name": "a.txt", "size": 3}`)
		}
	}))
	defer server.Close()

	client, rec := newTestClient(server.URL)

	res, err := client.FetchMetadata(context.Background(), testRef, "", 0, 20)
	require.NoError(t, err)
	require.NotNil(t, res.File)
	assert.Equal(t, int32(3), requests.Load())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, rec.waits)
}

func TestFetchMetadataNetworkExhausted(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client, rec := newTestClient(server.URL)

	_, err := client.FetchMetadata(context.Background(), testRef, "", 0, 20)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNetwork)
	assert.Equal(t, int32(4), requests.Load())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, rec.waits)
}

func TestFetchMetadataAPIErrorNotRetried(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message": "resource not found"}`)
	}))
	defer server.Close()

	client, rec := newTestClient(server.URL)

	_, err := client.FetchMetadata(context.Background(), testRef, "", 0, 20)
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "resource not found")
	assert.Equal(t, int32(1), requests.Load())
	assert.Empty(t, rec.waits)
}

func TestFetchMetadataQueryParams(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, testRef.String(), q.Get("public_key"))
		assert.Equal(t, "/sub", q.Get("path"))
		assert.Equal(t, "3", q.Get("offset"))
		assert.Equal(t, "20", q.Get("limit"))
		fmt.Fprint(w, `{"type": "dir", "name": "sub", "_embedded": {"items": [], "total": 0}}`)
	}))
	defer server.Close()

	client, _ := newTestClient(server.URL)

	_, err := client.FetchMetadata(context.Background(), testRef, "/sub", 3, 20)
	require.NoError(t, err)
}

func TestFetchMetadataOmitsEmptyPath(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.False(t, r.URL.Query().Has("path"))
		fmt.Fprint(w, `{"type": "dir", "name": "root", "_embedded": {"items": [], "total": 0}}`)
	}))
	defer server.Close()

	client, _ := newTestClient(server.URL)

	_, err := client.FetchMetadata(context.Background(), testRef, "", 0, 20)
	require.NoError(t, err)
}

func TestDownloadLink(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, testRef.String(), r.URL.Query().Get("public_key"))
		fmt.Fprint(w, `{"href": "https://downloader.example.net/zip/abc", "size": 12345}`)
	}))
	defer server.Close()

	client, _ := newTestClient(server.URL)

	href, size, err := client.DownloadLink(context.Background(), testRef)
	require.NoError(t, err)
	assert.Equal(t, "https://downloader.example.net/zip/abc", href)
	assert.Equal(t, int64(12345), size)
}

func TestDownloadLinkOmittedSize(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"href": "https://downloader.example.net/zip/abc"}`)
	}))
	defer server.Close()

	client, _ := newTestClient(server.URL)

	_, size, err := client.DownloadLink(context.Background(), testRef)
	require.NoError(t, err)
	assert.Equal(t, int64(-1), size)
}

func TestDownloadLinkMissingHref(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	}))
	defer server.Close()

	client, _ := newTestClient(server.URL)

	_, _, err := client.DownloadLink(context.Background(), testRef)
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Contains(t, apiErr.Message, "no download URL")
}

func TestStreamFull(t *testing.T) {
	const content = "0123456789"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Range"))
		fmt.Fprint(w, content)
	}))
	defer server.Close()

	client, _ := newTestClient(server.URL)

	body, start, err := client.Stream(context.Background(), server.URL+"/data", 0)
	require.NoError(t, err)
	defer body.Close()

	assert.Equal(t, int64(0), start)
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, content, string(data))
}

func TestStreamResume(t *testing.T) {
	const content = "0123456789"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "bytes=4-", r.Header.Get("Range"))
		w.WriteHeader(http.StatusPartialContent)
		fmt.Fprint(w, content[4:])
	}))
	defer server.Close()

	client, _ := newTestClient(server.URL)

	body, start, err := client.Stream(context.Background(), server.URL+"/data", 4)
	require.NoError(t, err)
	defer body.Close()

	assert.Equal(t, int64(4), start)
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, content[4:], string(data))
}

func TestStreamRangeIgnored(t *testing.T) {
	const content = "0123456789"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Respond with the whole body regardless of the Range header.
		fmt.Fprint(w, content)
	}))
	defer server.Close()

	client, _ := newTestClient(server.URL)

	body, start, err := client.Stream(context.Background(), server.URL+"/data", 4)
	require.NoError(t, err)
	defer body.Close()

	assert.Equal(t, int64(0), start)
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, content, string(data))
}

func TestStreamRangeNotSatisfiable(t *testing.T) {
	const content = "0123456789"
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if r.Header.Get("Range") != "" {
			w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
			return
		}
		fmt.Fprint(w, content)
	}))
	defer server.Close()

	client, _ := newTestClient(server.URL)

	body, start, err := client.Stream(context.Background(), server.URL+"/data", 42)
	require.NoError(t, err)
	defer body.Close()

	assert.Equal(t, int64(0), start)
	assert.Equal(t, int32(2), requests.Load())
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, content, string(data))
}

// Integration test against the live API
// Skipped by default; set YD_INTEGRATION_TEST=true and YD_TEST_PUBLIC_URL
// to a public share URL to run.

func TestFetchMetadataIntegration(t *testing.T) {
	if os.Getenv("YD_INTEGRATION_TEST") != "true" {
		t.Skip("Skipping integration test; set YD_INTEGRATION_TEST=true to run")
	}

	rawURL := os.Getenv("YD_TEST_PUBLIC_URL")
	if rawURL == "" {
		t.Skip("YD_TEST_PUBLIC_URL not set")
	}

	ref, err := ParsePublicURL(rawURL)
	if err != nil {
		t.Fatalf("ParsePublicURL() error = %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}

	client := New(cfg, logrus.New())

	res, err := client.FetchMetadata(context.Background(), ref, "", 0, 10)
	if err != nil {
		t.Fatalf("FetchMetadata() error = %v", err)
	}

	if res.File == nil && res.Dir == nil {
		t.Error("FetchMetadata() returned an empty resource")
	}
}
