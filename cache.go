package main

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// cachedResponse stores the response fields we care about in a simple JSON
// format.
type cachedResponse struct {
	Status     string              `json:"status"`
	StatusCode int                 `json:"status_code"`
	Proto      string              `json:"proto"`
	Header     map[string][]string `json:"header"`
	Body       []byte              `json:"body"`
	StoredAt   time.Time           `json:"stored_at"`
}

// CachingRoundTripper is an optional on-disk response cache in front of the
// Octopus REST API. The e-ink client refreshes far more often than yesterday's
// readings change, so serving from disk keeps us clear of the API rate limit.
// Only successful GET responses are cached; the Kraken GraphQL handshake is a
// POST and must always hit the network.
type CachingRoundTripper struct {
	// UnderlyingTransport is used on a cache miss. If nil,
	// http.DefaultTransport is used.
	UnderlyingTransport http.RoundTripper

	// CacheDir is the directory where response files are stored.
	CacheDir string

	// TTL bounds how long a cached response is served. Zero means entries
	// never expire.
	TTL time.Duration
}

func (c *CachingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	transport := c.UnderlyingTransport
	if transport == nil {
		transport = http.DefaultTransport
	}
	if req.Method != http.MethodGet {
		return transport.RoundTrip(req)
	}

	path := c.cacheFilePath(cacheKey(req.Method, req.URL.String()))
	if cr, ok := c.loadFresh(path); ok {
		return buildHTTPResponse(req, cr), nil
	}

	resp, err := transport.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	cr := cachedResponse{
		Status:     resp.Status,
		StatusCode: resp.StatusCode,
		Proto:      resp.Proto,
		Header:     resp.Header.Clone(),
		Body:       body,
		StoredAt:   time.Now(),
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if err := c.save(path, &cr); err != nil {
			return nil, err
		}
	}

	return buildHTTPResponse(req, cr), nil
}

// loadFresh returns the cached response at path if it exists and has not
// outlived the TTL.
func (c *CachingRoundTripper) loadFresh(path string) (cachedResponse, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return cachedResponse{}, false
	}
	var cr cachedResponse
	if err := json.Unmarshal(data, &cr); err != nil {
		return cachedResponse{}, false
	}
	if c.TTL > 0 && time.Since(cr.StoredAt) > c.TTL {
		return cachedResponse{}, false
	}
	return cr, true
}

func (c *CachingRoundTripper) save(path string, cr *cachedResponse) error {
	data, err := json.Marshal(cr)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// cacheKey builds a SHA-256 hash string from method and url. Headers are
// ignored so the basic-auth credential never ends up in a filename.
func cacheKey(method, url string) string {
	hash := sha256.New()
	hash.Write([]byte(method))
	hash.Write([]byte(url))
	return hex.EncodeToString(hash.Sum(nil))
}

func (c *CachingRoundTripper) cacheFilePath(key string) string {
	return filepath.Join(c.CacheDir, key+".json")
}

func buildHTTPResponse(req *http.Request, cr cachedResponse) *http.Response {
	return &http.Response{
		Status:        cr.Status,
		StatusCode:    cr.StatusCode,
		Proto:         cr.Proto,
		Header:        cr.Header,
		Body:          io.NopCloser(bytes.NewReader(cr.Body)),
		ContentLength: int64(len(cr.Body)),
		Request:       req,
	}
}
