package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Credential is an OAuth token pair. A nil UserID marks the system-wide
// credential used when a repository has none of its own.
type Credential struct {
	ID           snowflake.ID  `gorm:"primaryKey"`
	UserID       *snowflake.ID `gorm:"column:user_id;uniqueIndex:ux_github_credentials_user"`
	AccessToken  string        `gorm:"column:access_token;type:text;not null"`
	RefreshToken string        `gorm:"column:refresh_token;type:text"`
	TokenType    string        `gorm:"column:token_type;type:text"`
	ExpiresAt    *time.Time    `gorm:"column:expires_at"`
	CreatedAt    time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt    time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Credential) TableName() string { return "github_credentials" }

type Repository struct {
	ID           snowflake.ID  `gorm:"primaryKey"`
	ProjectID    snowflake.ID  `gorm:"column:project_id;not null;index:ix_github_repositories_project"`
	Owner        string        `gorm:"type:text;not null;uniqueIndex:ux_github_repositories_owner_name,priority:1"`
	Name         string        `gorm:"type:text;not null;uniqueIndex:ux_github_repositories_owner_name,priority:2"`
	CredentialID *snowflake.ID `gorm:"column:credential_id"`
	AutoSync     bool          `gorm:"column:auto_sync;not null;default:false"`
	LastSyncedAt *time.Time    `gorm:"column:last_synced_at"`
	CreatedAt    time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt    time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Repository) TableName() string { return "github_repositories" }

func (r Repository) FullName() string { return r.Owner + "/" + r.Name }

// Issue links one remote issue to one local task.
type Issue struct {
	ID              snowflake.ID `gorm:"primaryKey"`
	RepositoryID    snowflake.ID `gorm:"column:repository_id;not null;uniqueIndex:ux_github_issues_repo_number,priority:1"`
	IssueNumber     int          `gorm:"column:issue_number;not null;uniqueIndex:ux_github_issues_repo_number,priority:2"`
	TaskID          snowflake.ID `gorm:"column:task_id;not null;uniqueIndex:ux_github_issues_task"`
	State           string       `gorm:"type:text;not null"`
	Title           string       `gorm:"type:text;not null"`
	HTMLURL         string       `gorm:"column:html_url;type:text"`
	RemoteUpdatedAt *time.Time   `gorm:"column:remote_updated_at"`
	LastSyncedAt    *time.Time   `gorm:"column:last_synced_at"`
	CreatedAt       time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt       time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Issue) TableName() string { return "github_issues" }

// IssueComment links a remote comment to a thread message. A negative
// CommentID marks a link claimed by an outbound mirror whose comment has not
// been created yet.
type IssueComment struct {
	ID              snowflake.ID `gorm:"primaryKey"`
	GitHubIssueID   snowflake.ID `gorm:"column:github_issue_id;not null;uniqueIndex:ux_github_issue_comments_issue_comment,priority:1"`
	CommentID       int64        `gorm:"column:comment_id;not null;uniqueIndex:ux_github_issue_comments_issue_comment,priority:2"`
	MessageID       snowflake.ID `gorm:"column:message_id;not null;uniqueIndex:ux_github_issue_comments_message"`
	AuthorLogin     string       `gorm:"column:author_login;type:text"`
	RemoteUpdatedAt *time.Time   `gorm:"column:remote_updated_at"`
	CreatedAt       time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt       time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (IssueComment) TableName() string { return "github_issue_comments" }

// PendingCommentID is the placeholder comment id for a message being mirrored.
func PendingCommentID(messageID snowflake.ID) int64 { return -int64(messageID) }

const (
	StateOpen   = "open"
	StateClosed = "closed"
	StateAll    = "all"
)

// Result reports the outcome of a sync operation. Remote failures are
// reported here instead of being returned as errors.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func Ok(message string) Result   { return Result{Success: true, Message: message} }
func Fail(message string) Result { return Result{Success: false, Message: message} }

type ImportFilter struct {
	State   string `json:"state"`
	Numbers []int  `json:"numbers"`
}

type ImportSummary struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

type CommentSummary struct {
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Failed    int `json:"failed"`
}
