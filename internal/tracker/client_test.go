package tracker

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeCookies(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cookies.json")
	data := `{"cookies": {"JSESSIONID": "abc", "atlassian.xsrf.token": "tok"}}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0600))
	return path
}

// fakeDoer replays a fixed sequence of responses/errors.
type fakeDoer struct {
	responses []*http.Response
	errs      []error
	calls     int
}

func (f *fakeDoer) Do(req *http.Request) (*http.Response, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	return f.responses[i], nil
}

func resp(status int, body string) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(bytes.NewBufferString(body))}
}

// fakeRefresher counts refreshes and optionally rewrites the cookie file.
type fakeRefresher struct {
	calls int
	err   error
	onRun func()
}

func (f *fakeRefresher) Refresh(ctx context.Context) error {
	f.calls++
	if f.onRun != nil {
		f.onRun()
	}
	return f.err
}

func newTestClient(t *testing.T, doer HTTPDoer, refresher CredentialRefresher) (*Client, *CookieStore) {
	t.Helper()
	store := NewCookieStore(writeCookies(t), discardLogger())
	c := NewClient("https://tracker.test/api", store, refresher, discardLogger())
	c.SetHTTPClient(doer)
	return c, store
}

func TestFetchOK(t *testing.T) {
	doer := &fakeDoer{responses: []*http.Response{resp(200, samplePayload)}}
	c, _ := newTestClient(t, doer, &fakeRefresher{})

	snap, err := c.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Columns, 2)
	require.Equal(t, 1, doer.calls)
}

func TestFetchSendsCookies(t *testing.T) {
	var got *http.Request
	doer := &fakeDoer{responses: []*http.Response{resp(200, samplePayload)}}
	c, _ := newTestClient(t, captureDoer{doer, &got}, &fakeRefresher{})

	_, err := c.Fetch(context.Background())
	require.NoError(t, err)

	cookie, err := got.Cookie("JSESSIONID")
	require.NoError(t, err)
	require.Equal(t, "abc", cookie.Value)
}

type captureDoer struct {
	inner HTTPDoer
	req   **http.Request
}

func (c captureDoer) Do(req *http.Request) (*http.Response, error) {
	*c.req = req
	return c.inner.Do(req)
}

func TestFetchRefreshesOnceOn401(t *testing.T) {
	doer := &fakeDoer{responses: []*http.Response{
		resp(401, ""),
		resp(200, samplePayload),
	}}
	refresher := &fakeRefresher{}
	c, _ := newTestClient(t, doer, refresher)

	snap, err := c.Fetch(context.Background())
	require.NoError(t, err)
	require.NotNil(t, snap)
	require.Equal(t, 1, refresher.calls)
	require.Equal(t, 2, doer.calls)
}

func TestFetchUnauthorizedAfterRetry(t *testing.T) {
	doer := &fakeDoer{responses: []*http.Response{
		resp(401, ""),
		resp(401, ""),
	}}
	refresher := &fakeRefresher{}
	c, _ := newTestClient(t, doer, refresher)

	_, err := c.Fetch(context.Background())
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, FetchUnauthorized, fe.Kind)
	require.Equal(t, 1, refresher.calls, "exactly one refresh, no unbounded retry")
	require.Equal(t, 2, doer.calls)
}

func TestFetchRefreshFailureIsUnauthorized(t *testing.T) {
	doer := &fakeDoer{responses: []*http.Response{resp(401, "")}}
	refresher := &fakeRefresher{err: errors.New("login helper crashed")}
	c, _ := newTestClient(t, doer, refresher)

	_, err := c.Fetch(context.Background())
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, FetchUnauthorized, fe.Kind)
}

func TestFetchNetworkErrorIsTransient(t *testing.T) {
	doer := &fakeDoer{errs: []error{errors.New("connection refused")}}
	c, _ := newTestClient(t, doer, &fakeRefresher{})

	_, err := c.Fetch(context.Background())
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, FetchTransient, fe.Kind)
}

func TestFetchBadBodyIsTransient(t *testing.T) {
	doer := &fakeDoer{responses: []*http.Response{resp(200, "<html>нет</html>")}}
	c, _ := newTestClient(t, doer, &fakeRefresher{})

	_, err := c.Fetch(context.Background())
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, FetchTransient, fe.Kind)
}

func TestFetchServerErrorIsTransient(t *testing.T) {
	doer := &fakeDoer{responses: []*http.Response{resp(500, "boom")}}
	c, _ := newTestClient(t, doer, &fakeRefresher{})

	_, err := c.Fetch(context.Background())
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, FetchTransient, fe.Kind)
}

func TestFetchMissingCookiesTriggersRefresh(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cookies.json")

	store := NewCookieStore(path, discardLogger())
	doer := &fakeDoer{responses: []*http.Response{resp(200, samplePayload)}}
	refresher := &fakeRefresher{onRun: func() {
		data := `{"cookies": {"JSESSIONID": "fresh"}}`
		if err := os.WriteFile(path, []byte(data), 0600); err != nil {
			panic(err)
		}
	}}
	c := NewClient("https://tracker.test/api", store, refresher, discardLogger())
	c.SetHTTPClient(doer)

	snap, err := c.Fetch(context.Background())
	require.NoError(t, err)
	require.NotNil(t, snap)
	require.Equal(t, 1, refresher.calls)

	// The fresh cookie file must actually be readable afterwards.
	cookies, err := store.Cookies()
	require.NoError(t, err)
	require.Equal(t, "fresh", cookies["JSESSIONID"])
}
