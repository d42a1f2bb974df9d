package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glitchidea/glichflow/internal/events"
	"gorm.io/gorm"
)

type RepositoryStore interface {
	InsertCredential(ctx context.Context, db *gorm.DB, cred *Credential) error
	FindCredentialByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Credential, error)
	FindCredentialByUser(ctx context.Context, db *gorm.DB, userID *snowflake.ID) (*Credential, error)
	UpdateCredentialToken(ctx context.Context, db *gorm.DB, cred *Credential) error

	InsertRepository(ctx context.Context, db *gorm.DB, repo *Repository) error
	FindRepositoryByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Repository, error)
	FindRepositoryByName(ctx context.Context, db *gorm.DB, owner, name string) (*Repository, error)
	FindRepositoryByProject(ctx context.Context, db *gorm.DB, projectID snowflake.ID) (*Repository, error)
	ListRepositories(ctx context.Context, db *gorm.DB, autoSyncOnly bool) ([]Repository, error)
	TouchRepository(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error

	// InsertIssue skips the row when (repository_id, issue_number) already
	// exists and reports whether it was written.
	InsertIssue(ctx context.Context, db *gorm.DB, issue *Issue) (bool, error)
	UpdateIssue(ctx context.Context, db *gorm.DB, issue *Issue) error
	FindIssueByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Issue, error)
	FindIssueByNumber(ctx context.Context, db *gorm.DB, repositoryID snowflake.ID, number int) (*Issue, error)
	FindIssueByTask(ctx context.Context, db *gorm.DB, taskID snowflake.ID) (*Issue, error)
	ListIssuesSyncedBefore(ctx context.Context, db *gorm.DB, before time.Time, limit int) ([]Issue, error)
	ListIssuesByRepository(ctx context.Context, db *gorm.DB, repositoryID snowflake.ID) ([]Issue, error)

	// InsertComment skips the row when (github_issue_id, comment_id) already
	// exists and reports whether it was written.
	InsertComment(ctx context.Context, db *gorm.DB, comment *IssueComment) (bool, error)
	UpdateComment(ctx context.Context, db *gorm.DB, comment *IssueComment) error
	FindComment(ctx context.Context, db *gorm.DB, issueID snowflake.ID, commentID int64) (*IssueComment, error)
	FindCommentByMessage(ctx context.Context, db *gorm.DB, messageID snowflake.ID) (*IssueComment, error)
	// ListPendingComments returns the links claimed by outbound mirrors that
	// have not learned their remote comment id yet.
	ListPendingComments(ctx context.Context, db *gorm.DB, issueID snowflake.ID) ([]IssueComment, error)
	DeleteComment(ctx context.Context, db *gorm.DB, id snowflake.ID) error
}

type Service interface {
	SyncTaskWithIssue(ctx context.Context, taskID, credentialID string, createIfMissing bool) Result
	ImportIssues(ctx context.Context, repositoryID string, filter ImportFilter) (ImportSummary, Result)
	SyncIssueComments(ctx context.Context, issueID string) (CommentSummary, Result)
	ResyncRepository(ctx context.Context, repositoryID snowflake.ID) Result
	ResyncAutoSyncRepositories(ctx context.Context) (int, error)
	ResyncStaleIssues(ctx context.Context, limit int) (int, error)

	// MirrorMessage is the events.Bus handler for MessageCreated.
	MirrorMessage(ctx context.Context, env events.Envelope) error
	HandleWebhook(ctx context.Context, req WebhookRequest) (Result, error)

	RegisterRepository(ctx context.Context, req RepositoryRequest) (*RepositoryResponse, error)
	ListRepositories(ctx context.Context) ([]RepositoryResponse, error)

	AuthorizeURL(ctx context.Context) (*AuthorizeResponse, error)
	ExchangeCode(ctx context.Context, userID string, code string) (*CredentialResponse, error)
}

type WebhookRequest struct {
	Event      string
	DeliveryID string
	Signature  string
	Body       []byte
}

type RepositoryRequest struct {
	ProjectID    string `json:"project_id"`
	Owner        string `json:"owner"`
	Name         string `json:"name"`
	CredentialID string `json:"credential_id"`
	AutoSync     bool   `json:"auto_sync"`
}

type RepositoryResponse struct {
	ID           string     `json:"id"`
	ProjectID    string     `json:"project_id"`
	Owner        string     `json:"owner"`
	Name         string     `json:"name"`
	CredentialID *string    `json:"credential_id"`
	AutoSync     bool       `json:"auto_sync"`
	LastSyncedAt *time.Time `json:"last_synced_at"`
}

type AuthorizeResponse struct {
	URL   string `json:"url"`
	State string `json:"state"`
}

type CredentialResponse struct {
	ID        string     `json:"id"`
	UserID    *string    `json:"user_id"`
	TokenType string     `json:"token_type"`
	ExpiresAt *time.Time `json:"expires_at"`
}

var (
	ErrInvalidID         = errors.New("invalid_id")
	ErrInvalidRepository = errors.New("invalid_repository")
	ErrInvalidCode       = errors.New("invalid_code")
	ErrInvalidSignature  = errors.New("invalid_signature")
	ErrInvalidPayload    = errors.New("invalid_payload")
	ErrOAuthDisabled     = errors.New("oauth_disabled")
	ErrRepositoryExists  = errors.New("repository_exists")
	ErrNotFound          = errors.New("not_found")
)
