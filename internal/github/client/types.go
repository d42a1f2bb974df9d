package client

import (
	"encoding/json"
	"time"
)

type User struct {
	Login string `json:"login"`
}

type Issue struct {
	Number      int             `json:"number"`
	Title       string          `json:"title"`
	Body        string          `json:"body"`
	State       string          `json:"state"`
	HTMLURL     string          `json:"html_url"`
	UpdatedAt   time.Time       `json:"updated_at"`
	PullRequest json.RawMessage `json:"pull_request,omitempty"`
}

// IsPullRequest reports whether the issues endpoint returned a pull request.
func (i Issue) IsPullRequest() bool {
	return len(i.PullRequest) > 0 && string(i.PullRequest) != "null"
}

type Comment struct {
	ID        int64     `json:"id"`
	Body      string    `json:"body"`
	User      User      `json:"user"`
	HTMLURL   string    `json:"html_url"`
	UpdatedAt time.Time `json:"updated_at"`
}

type IssueInput struct {
	Title string `json:"title,omitempty"`
	Body  string `json:"body"`
	State string `json:"state,omitempty"`
}

type ListIssuesOptions struct {
	State   string
	Page    int
	PerPage int
}

// RateLimit is the budget reported by the last response that carried the
// X-RateLimit headers.
type RateLimit struct {
	Remaining int
	Reset     time.Time
}
