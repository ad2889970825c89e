// Package ridb reads paginated listings from the Recreation Information
// Database (RIDB) API, hiding page boundaries from callers.
package ridb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/brensch/campwatch/internal/httpx"
	"github.com/brensch/campwatch/internal/metrics"
)

// DefaultBaseURL is the public RIDB v1 root.
const DefaultBaseURL = "https://ridb.recreation.gov/api/v1"

// PageSize is the number of records requested per page.
const PageSize = 50

var (
	// ErrAuth means no usable API key: either none was configured or RIDB
	// rejected it.
	ErrAuth = errors.New("ridb: missing or rejected api key")
	// ErrProtocolInconsistency means the upstream reported page counts that
	// contradict its own total.
	ErrProtocolInconsistency = errors.New("ridb: inconsistent pagination counts")
	// ErrMalformedRecord means a record lacked a field the caller keys on.
	ErrMalformedRecord = errors.New("ridb: malformed record")
)

type Client struct {
	client  *http.Client
	baseURL string
	apiKey  string
	logger  *slog.Logger
}

// New returns a client using the given API key. An empty key is accepted here
// so that construction never fails; every fetch then returns ErrAuth.
func New(apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = httpx.Default()
	}
	return &Client{
		client:  httpClient,
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		logger:  slog.Default(),
	}
}

// WithBaseURL points the client at a different RIDB root.
func (c *Client) WithBaseURL(base string) *Client {
	c.baseURL = base
	return c
}

// BaseURL returns the RIDB root used to build endpoint URLs.
func (c *Client) BaseURL() string { return c.baseURL }

type page struct {
	RecData  []json.RawMessage `json:"RECDATA"`
	Metadata struct {
		Results struct {
			CurrentCount int `json:"CURRENT_COUNT"`
			TotalCount   int `json:"TOTAL_COUNT"`
		} `json:"RESULTS"`
	} `json:"METADATA"`
}

// Records returns a lazy sequence over every record of a listing endpoint.
// Each iteration starts again from offset 0. The sequence ends after the
// first non-nil error it yields.
//
// Pages are requested with limit=PageSize and offset equal to the number of
// records consumed so far. The loop stops once the running CURRENT_COUNT sum
// equals TOTAL_COUNT; a sum above the total fails with
// ErrProtocolInconsistency before that page's records are yielded.
func (c *Client) Records(ctx context.Context, endpoint string, params url.Values) iter.Seq2[json.RawMessage, error] {
	return func(yield func(json.RawMessage, error) bool) {
		if c.apiKey == "" {
			yield(nil, ErrAuth)
			return
		}
		consumed := 0
		for pageNum := 1; ; pageNum++ {
			p, err := c.fetchPage(ctx, endpoint, params, consumed)
			if err != nil {
				yield(nil, err)
				return
			}
			current := p.Metadata.Results.CurrentCount
			total := p.Metadata.Results.TotalCount
			consumed += current
			if consumed > total {
				yield(nil, fmt.Errorf("%w: total records was supposed to be %d, but read %d", ErrProtocolInconsistency, total, consumed))
				return
			}
			if current == 0 && consumed < total {
				yield(nil, fmt.Errorf("%w: empty page at offset %d of %d", ErrProtocolInconsistency, consumed, total))
				return
			}
			c.logger.Debug("ridb page fetched",
				slog.String("endpoint", endpoint),
				slog.Int("page", pageNum),
				slog.Int("current_count", current),
				slog.Int("consumed", consumed),
				slog.Int("total_count", total))
			for _, rec := range p.RecData {
				if !yield(rec, nil) {
					return
				}
			}
			if consumed == total {
				return
			}
		}
	}
}

// FetchAll drains Records into a slice.
func (c *Client) FetchAll(ctx context.Context, endpoint string, params url.Values) ([]json.RawMessage, error) {
	var out []json.RawMessage
	for rec, err := range c.Records(ctx, endpoint, params) {
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (c *Client) fetchPage(ctx context.Context, endpoint string, params url.Values, offset int) (*page, error) {
	u, err := url.Parse(c.baseURL + endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid ridb url: %w", err)
	}
	q := u.Query()
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	q.Set("limit", strconv.Itoa(PageSize))
	q.Set("offset", strconv.Itoa(offset))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create ridb request: %w", err)
	}
	httpx.SetAPIKey(req, c.apiKey)

	started := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		metrics.ObserveRequest(metrics.EndpointRIDB, started, 0, err)
		return nil, fmt.Errorf("ridb GET failed: %w", err)
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	metrics.ObserveRequest(metrics.EndpointRIDB, started, resp.StatusCode, err)
	if err != nil {
		return nil, fmt.Errorf("ridb read body failed: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: status %d", ErrAuth, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("ridb status %d; body: %s", resp.StatusCode, httpx.ClipBody(body))
	}

	var p page
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("ridb JSON decode failed: %w; body: %s", err, httpx.ClipBody(body))
	}
	return &p, nil
}
