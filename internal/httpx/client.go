package httpx

import (
	"math/rand"
	"net"
	"net/http"
	"time"
)

// DefaultTimeout bounds a single upstream request.
const DefaultTimeout = 15 * time.Second

var defaultClient *http.Client

// Default returns a shared HTTP client with sensible timeouts.
func Default() *http.Client {
	if defaultClient != nil {
		return defaultClient
	}
	defaultClient = New(DefaultTimeout)
	return defaultClient
}

// New returns a fresh client. Providers that get their transport swapped in
// tests should use this rather than the shared client.
func New(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

var userAgents = []string{
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_5) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:127.0) Gecko/20100101 Firefox/127.0",
	"Mozilla/5.0 (X11; Ubuntu; Linux x86_64; rv:126.0) Gecko/20100101 Firefox/126.0",
}

// RandomUserAgent picks one of a handful of current desktop browser agents.
func RandomUserAgent() string {
	return userAgents[rand.Intn(len(userAgents))]
}

// SpoofBrowserHeaders sets a browser-like header set on the request using the
// given user agent. The anonymous availability API rejects obvious bots.
func SpoofBrowserHeaders(r *http.Request, userAgent string) {
	if userAgent == "" {
		userAgent = userAgents[0]
	}
	r.Header.Set("User-Agent", userAgent)
	r.Header.Set("Accept", "application/json, text/plain, */*")
	r.Header.Set("Accept-Language", "en-US,en;q=0.9")
	r.Header.Set("Connection", "keep-alive")
}

// SetAPIKey attaches a RIDB API key. RIDB reads it from the "apikey" header.
func SetAPIKey(r *http.Request, key string) {
	r.Header.Set("apikey", key)
	r.Header.Set("Accept", "application/json")
}

// ClipBody returns a short string version of a response body for error messages.
// It limits to a reasonable size to avoid logging huge payloads.
func ClipBody(b []byte) string {
	const max = 2048
	if len(b) == 0 {
		return ""
	}
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
