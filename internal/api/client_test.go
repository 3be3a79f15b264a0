package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

// noopSleep is a sleep function that returns immediately, for fast tests.
func noopSleep(_ context.Context, _ time.Duration) error {
	return nil
}

// newTestClient creates a Client pointing at the given httptest server
// with instant retry sleeps for fast tests.
func newTestClient(t *testing.T, url string) *Client {
	t.Helper()

	c := NewClient(url, http.DefaultClient, slog.Default())
	c.sleepFunc = noopSleep

	return c
}

func TestNewClient_TrimsTrailingSlash(t *testing.T) {
	c := NewClient("http://localhost:5000/api/", nil, nil)
	assert.Equal(t, "http://localhost:5000/api", c.BaseURL())
}

func TestFetchToken_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/token", r.URL.Path)
		assert.Equal(t, userAgent, r.Header.Get("User-Agent"))

		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "admin", user)
		assert.Equal(t, "secret", pass)

		_, _ = w.Write([]byte(`{"token":"abc","expires_in":60}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL+"/api")

	before := time.Now()
	tok, err := c.FetchToken(t.Context(), "admin", "secret")
	require.NoError(t, err)

	assert.Equal(t, "abc", tok.AccessToken)
	assert.Equal(t, "Bearer", tok.Type())
	assert.WithinDuration(t, before.Add(time.Minute), tok.Expiry, 5*time.Second)
}

func TestFetchToken_NoExpiry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"token":"abc"}`))
	}))
	defer srv.Close()

	tok, err := newTestClient(t, srv.URL).FetchToken(t.Context(), "admin", "secret")
	require.NoError(t, err)
	assert.True(t, tok.Expiry.IsZero())
	assert.True(t, tok.Valid())
}

func TestFetchToken_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad credentials", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).FetchToken(t.Context(), "admin", "wrong")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnauthorized)

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "bad credentials", apiErr.Message)
}

func TestFetchToken_EmptyToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"token":""}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).FetchToken(t.Context(), "admin", "secret")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no token")
}

func TestFetchToken_BadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).FetchToken(t.Context(), "admin", "secret")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoding token response")
}

func TestListFiles_SendsBearer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ls", r.URL.Path)
		assert.Equal(t, "Bearer abc", r.Header.Get("Authorization"))

		_, _ = w.Write([]byte(`{"files":["a.txt","b.png"]}`))
	}))
	defer srv.Close()

	files, err := newTestClient(t, srv.URL).ListFiles(t.Context(), &oauth2.Token{AccessToken: "abc"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.png"}, files)
}

func TestListFiles_NoTokenSendsNoHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		http.Error(w, "missing token", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).ListFiles(t.Context(), nil)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestListFiles_NullFiles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"files":null}`))
	}))
	defer srv.Close()

	files, err := newTestClient(t, srv.URL).ListFiles(t.Context(), &oauth2.Token{AccessToken: "abc"})
	require.NoError(t, err)
	assert.NotNil(t, files)
	assert.Empty(t, files)
}

func TestGet_RetriesRetryableStatus(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		_, _ = w.Write([]byte(`{"files":[]}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).ListFiles(t.Context(), &oauth2.Token{AccessToken: "abc"})
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGet_ExhaustsRetries(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).ListFiles(t.Context(), &oauth2.Token{AccessToken: "abc"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrServerError)
	assert.Equal(t, int32(maxRetries+1), calls.Load())
}

func TestGet_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).ListFiles(t.Context(), &oauth2.Token{AccessToken: "abc"})
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGet_HonorsRetryAfter(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "7")
			w.WriteHeader(http.StatusTooManyRequests)

			return
		}

		_, _ = w.Write([]byte(`{"files":[]}`))
	}))
	defer srv.Close()

	var (
		mu    sync.Mutex
		slept []time.Duration
	)

	c := newTestClient(t, srv.URL)
	c.sleepFunc = func(_ context.Context, d time.Duration) error {
		mu.Lock()
		slept = append(slept, d)
		mu.Unlock()

		return nil
	}

	_, err := c.ListFiles(t.Context(), &oauth2.Token{AccessToken: "abc"})
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{7 * time.Second}, slept)
}

func TestGet_SleepCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	c.sleepFunc = func(context.Context, time.Duration) error {
		return context.Canceled
	}

	_, err := c.ListFiles(t.Context(), &oauth2.Token{AccessToken: "abc"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGet_NetworkErrorRetriedThenFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	var sleeps atomic.Int32

	c := newTestClient(t, url)
	c.sleepFunc = func(context.Context, time.Duration) error {
		sleeps.Add(1)
		return nil
	}

	_, err := c.ListFiles(t.Context(), &oauth2.Token{AccessToken: "abc"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed after")
	assert.Equal(t, int32(maxRetries), sleeps.Load())

	var apiErr *Error
	assert.False(t, errors.As(err, &apiErr))
}

func TestGet_CanceledContextNotRetried(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := newTestClient(t, srv.URL).ListFiles(ctx, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCalcBackoff_Bounds(t *testing.T) {
	c := NewClient("http://localhost", nil, nil)

	for attempt := range 10 {
		d := c.calcBackoff(attempt)
		assert.Positive(t, d)
		assert.LessOrEqual(t, d, time.Duration(float64(maxBackoff)*(1+jitterFraction)))
	}
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		code int
		want error
	}{
		{http.StatusOK, nil},
		{http.StatusCreated, nil},
		{http.StatusBadRequest, ErrBadRequest},
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusForbidden, ErrForbidden},
		{http.StatusNotFound, ErrNotFound},
		{http.StatusRequestEntityTooLarge, ErrTooLarge},
		{http.StatusNotImplemented, ErrFilePartMissing},
		{http.StatusInternalServerError, ErrServerError},
		{http.StatusServiceUnavailable, ErrServerError},
		{http.StatusTeapot, ErrUnexpected},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, classifyStatus(tt.code))
		})
	}
}

func TestError_Message(t *testing.T) {
	err := &Error{StatusCode: http.StatusNotFound, Err: ErrNotFound}
	assert.Equal(t, "api: HTTP 404", err.Error())

	err.Message = "no such thing"
	assert.Equal(t, "api: HTTP 404: no such thing", err.Error())
	assert.ErrorIs(t, err, ErrNotFound)
}
