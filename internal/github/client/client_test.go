package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type stubTokens struct {
	token     string
	refreshed string
	refreshes int32
	err       error
}

func (s *stubTokens) Token(context.Context) (string, error) { return s.token, nil }

func (s *stubTokens) Refresh(context.Context) (string, error) {
	atomic.AddInt32(&s.refreshes, 1)
	if s.err != nil {
		return "", s.err
	}
	s.token = s.refreshed
	return s.refreshed, nil
}

func TestRefreshesOnceAfterUnauthorized(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.Header.Get("Authorization") != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"Bad credentials"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(Issue{Number: 7, Title: "Fix login", State: "open"})
	}))
	defer srv.Close()

	tokens := &stubTokens{token: "stale", refreshed: "fresh"}
	c := New(Options{BaseURL: srv.URL}, tokens)

	issue, err := c.GetIssue(context.Background(), "acme", "web", 7)
	require.NoError(t, err)
	assert.Equal(t, 7, issue.Number)
	assert.Equal(t, int32(1), tokens.refreshes)
	assert.Equal(t, int32(2), calls)
}

func TestDoesNotRetryTwice(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	tokens := &stubTokens{token: "stale", refreshed: "still-bad"}
	c := New(Options{BaseURL: srv.URL}, tokens)

	_, err := c.GetIssue(context.Background(), "acme", "web", 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnauthorized))
	assert.Equal(t, int32(1), tokens.refreshes)
	assert.Equal(t, int32(2), calls)

	failing := &stubTokens{token: "stale", err: errors.New("no refresh token")}
	c = New(Options{BaseURL: srv.URL}, failing)
	_, err = c.GetIssue(context.Background(), "acme", "web", 1)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestRateLimitWarning(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Remaining", "42")
		w.Header().Set("X-RateLimit-Reset", "1767225600")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	core, logs := observer.New(zapcore.WarnLevel)
	c := New(Options{BaseURL: srv.URL, Log: zap.New(core), WarnThreshold: func() int { return 100 }}, &stubTokens{token: "t"})

	issues, err := c.ListIssues(context.Background(), "acme", "web", ListIssuesOptions{State: "open", Page: 1, PerPage: 50})
	require.NoError(t, err)
	assert.Empty(t, issues)

	rl := c.LastRateLimit()
	require.NotNil(t, rl)
	assert.Equal(t, 42, rl.Remaining)
	assert.Equal(t, int64(1767225600), rl.Reset.Unix())
	assert.Equal(t, 1, logs.FilterMessage("github rate limit running low").Len())

	quiet := New(Options{BaseURL: srv.URL, Log: zap.New(core), WarnThreshold: func() int { return 10 }}, &stubTokens{token: "t"})
	_, err = quiet.ListIssues(context.Background(), "acme", "web", ListIssuesOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, logs.FilterMessage("github rate limit running low").Len())
}

func TestAPIErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"Not Found"}`))
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL}, &stubTokens{token: "t"})
	_, err := c.GetIssue(context.Background(), "acme", "web", 404)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "Not Found", apiErr.Message)
}

func TestIsPullRequest(t *testing.T) {
	var issue Issue
	require.NoError(t, json.Unmarshal([]byte(`{"number":3,"pull_request":{"url":"x"}}`), &issue))
	assert.True(t, issue.IsPullRequest())

	var plain Issue
	require.NoError(t, json.Unmarshal([]byte(`{"number":4,"pull_request":null}`), &plain))
	assert.False(t, plain.IsPullRequest())
}
