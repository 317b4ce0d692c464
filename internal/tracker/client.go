package tracker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// FetchErrorKind classifies fetch failures for the callers' retry policy.
type FetchErrorKind int

const (
	// FetchTransient covers network, decode and unexpected-status
	// failures. The monitor simply waits for its next tick.
	FetchTransient FetchErrorKind = iota
	// FetchUnauthorized means the request got a 401 that survived one
	// credential refresh. Needs operator attention.
	FetchUnauthorized
)

type FetchError struct {
	Kind FetchErrorKind
	Err  error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case FetchUnauthorized:
		return fmt.Sprintf("tracker fetch unauthorized: %v", e.Err)
	default:
		return fmt.Sprintf("tracker fetch failed: %v", e.Err)
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

// CredentialRefresher re-acquires session cookies after a 401. The real
// implementation shells out to an interactive login helper; tests inject
// fakes.
type CredentialRefresher interface {
	Refresh(ctx context.Context) error
}

// Fetcher is the snapshot source the monitor and reminder engine consume.
type Fetcher interface {
	Fetch(ctx context.Context) (*Snapshot, error)
}

// HTTPDoer matches *http.Client (allows mocking).
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client fetches board snapshots from the tracker API with cookie auth.
// On a 401 it refreshes credentials once and retries once; a second 401
// surfaces as FetchUnauthorized.
type Client struct {
	url       string
	http      HTTPDoer
	cookies   *CookieStore
	refresher CredentialRefresher
	log       *slog.Logger
}

func NewClient(url string, cookies *CookieStore, refresher CredentialRefresher, log *slog.Logger) *Client {
	return &Client{
		url:       url,
		http:      &http.Client{Timeout: 30 * time.Second},
		cookies:   cookies,
		refresher: refresher,
		log:       log.With("component", "tracker"),
	}
}

// SetHTTPClient overrides the HTTP client (for testing).
func (c *Client) SetHTTPClient(doer HTTPDoer) { c.http = doer }

func (c *Client) Fetch(ctx context.Context) (*Snapshot, error) {
	snap, status, err := c.fetchOnce(ctx)
	if err != nil {
		return nil, &FetchError{Kind: FetchTransient, Err: err}
	}
	if status == http.StatusUnauthorized {
		c.log.Warn("got 401, refreshing credentials")
		if err := c.refresher.Refresh(ctx); err != nil {
			return nil, &FetchError{Kind: FetchUnauthorized, Err: fmt.Errorf("refresh credentials: %w", err)}
		}
		c.cookies.Invalidate()

		snap, status, err = c.fetchOnce(ctx)
		if err != nil {
			return nil, &FetchError{Kind: FetchTransient, Err: err}
		}
		if status == http.StatusUnauthorized {
			return nil, &FetchError{Kind: FetchUnauthorized, Err: errors.New("still unauthorized after refresh")}
		}
	}
	if snap == nil {
		return nil, &FetchError{Kind: FetchTransient, Err: fmt.Errorf("unexpected status %d", status)}
	}
	return snap, nil
}

// fetchOnce performs a single request. Returns the decoded snapshot and
// status 200, or nil and the non-200 status, or an error for transport
// and decode failures.
func (c *Client) fetchOnce(ctx context.Context) (*Snapshot, int, error) {
	cookies, err := c.cookies.Cookies()
	if err != nil {
		// No usable cookies behaves like a 401 so the refresh path runs.
		c.log.Warn("no usable cookies", "err", err)
		return nil, http.StatusUnauthorized, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	for name, value := range cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request board api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("read board api response: %w", err)
	}
	snap, err := Decode(body)
	if err != nil {
		return nil, 0, err
	}
	return snap, http.StatusOK, nil
}
