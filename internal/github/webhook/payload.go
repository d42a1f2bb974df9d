package webhook

import "github.com/glitchidea/glichflow/internal/github/client"

const (
	EventPing         = "ping"
	EventIssues       = "issues"
	EventIssueComment = "issue_comment"
	EventPush         = "push"
)

type Repository struct {
	Name  string      `json:"name"`
	Owner client.User `json:"owner"`
}

type IssuesPayload struct {
	Action     string       `json:"action"`
	Issue      client.Issue `json:"issue"`
	Repository Repository   `json:"repository"`
}

type IssueCommentPayload struct {
	Action     string         `json:"action"`
	Issue      client.Issue   `json:"issue"`
	Comment    client.Comment `json:"comment"`
	Repository Repository     `json:"repository"`
}

type PushPayload struct {
	Ref        string     `json:"ref"`
	Repository Repository `json:"repository"`
}
