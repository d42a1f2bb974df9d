package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// GitHubMetrics tracks the remaining API budget reported by GitHub.
type GitHubMetrics struct {
	rateLimitRemaining prometheus.Gauge
	requests           *prometheus.CounterVec
	tokenRefreshes     *prometheus.CounterVec
}

var (
	githubMetricsOnce sync.Once
	githubMetrics     *GitHubMetrics
)

// GitHub returns the process-wide GitHub metrics.
func GitHub() *GitHubMetrics {
	githubMetricsOnce.Do(func() {
		githubMetrics = newGitHubMetrics(prometheus.DefaultRegisterer)
	})
	return githubMetrics
}

func newGitHubMetrics(registerer prometheus.Registerer) *GitHubMetrics {
	remaining := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "glichflow_github_rate_limit_remaining",
		Help: "Last X-RateLimit-Remaining value returned by the GitHub API.",
	})
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "glichflow_github_requests_total",
		Help: "GitHub API requests by status class.",
	}, []string{"status_class"})
	refreshes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "glichflow_github_token_refreshes_total",
		Help: "OAuth token refresh attempts after a 401 by outcome.",
	}, []string{"outcome"})
	registerer.MustRegister(remaining, requests, refreshes)
	return &GitHubMetrics{rateLimitRemaining: remaining, requests: requests, tokenRefreshes: refreshes}
}

func (m *GitHubMetrics) SetRateLimitRemaining(remaining int) {
	if m == nil {
		return
	}
	m.rateLimitRemaining.Set(float64(remaining))
}

func (m *GitHubMetrics) IncRequest(status int) {
	if m == nil {
		return
	}
	class := "error"
	switch {
	case status >= 500:
		class = "5xx"
	case status >= 400:
		class = "4xx"
	case status >= 200:
		class = "2xx"
	}
	m.requests.WithLabelValues(class).Inc()
}

func (m *GitHubMetrics) IncTokenRefresh(success bool) {
	if m == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.tokenRefreshes.WithLabelValues(outcome).Inc()
}
