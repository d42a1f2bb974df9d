package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	githubdomain "github.com/glitchidea/glichflow/internal/github/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	credentialColumns = `id, user_id, access_token, refresh_token, token_type, expires_at, created_at, updated_at`
	repositoryColumns = `id, project_id, owner, name, credential_id, auto_sync, last_synced_at, created_at, updated_at`
	issueColumns      = `id, repository_id, issue_number, task_id, state, title, html_url, remote_updated_at, last_synced_at, created_at, updated_at`
	commentColumns    = `id, github_issue_id, comment_id, message_id, author_login, remote_updated_at, created_at, updated_at`
)

type repo struct{}

func Provide() githubdomain.RepositoryStore {
	return &repo{}
}

func (r *repo) InsertCredential(ctx context.Context, db *gorm.DB, cred *githubdomain.Credential) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO github_credentials (`+credentialColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		cred.ID,
		cred.UserID,
		cred.AccessToken,
		cred.RefreshToken,
		cred.TokenType,
		cred.ExpiresAt,
		cred.CreatedAt,
		cred.UpdatedAt,
	).Error
}

func (r *repo) FindCredentialByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*githubdomain.Credential, error) {
	var cred githubdomain.Credential
	err := db.WithContext(ctx).Raw(
		`SELECT `+credentialColumns+` FROM github_credentials WHERE id = ?`,
		id,
	).Scan(&cred).Error
	if err != nil {
		return nil, err
	}
	if cred.ID == 0 {
		return nil, nil
	}
	return &cred, nil
}

func (r *repo) FindCredentialByUser(ctx context.Context, db *gorm.DB, userID *snowflake.ID) (*githubdomain.Credential, error) {
	var cred githubdomain.Credential
	stmt := db.WithContext(ctx)
	var err error
	if userID == nil {
		err = stmt.Raw(
			`SELECT `+credentialColumns+` FROM github_credentials WHERE user_id IS NULL ORDER BY created_at ASC, id ASC LIMIT 1`,
		).Scan(&cred).Error
	} else {
		err = stmt.Raw(
			`SELECT `+credentialColumns+` FROM github_credentials WHERE user_id = ?`,
			*userID,
		).Scan(&cred).Error
	}
	if err != nil {
		return nil, err
	}
	if cred.ID == 0 {
		return nil, nil
	}
	return &cred, nil
}

func (r *repo) UpdateCredentialToken(ctx context.Context, db *gorm.DB, cred *githubdomain.Credential) error {
	return db.WithContext(ctx).Exec(
		`UPDATE github_credentials
		 SET access_token = ?, refresh_token = ?, token_type = ?, expires_at = ?, updated_at = ?
		 WHERE id = ?`,
		cred.AccessToken,
		cred.RefreshToken,
		cred.TokenType,
		cred.ExpiresAt,
		cred.UpdatedAt,
		cred.ID,
	).Error
}

func (r *repo) InsertRepository(ctx context.Context, db *gorm.DB, repository *githubdomain.Repository) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO github_repositories (`+repositoryColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		repository.ID,
		repository.ProjectID,
		repository.Owner,
		repository.Name,
		repository.CredentialID,
		repository.AutoSync,
		repository.LastSyncedAt,
		repository.CreatedAt,
		repository.UpdatedAt,
	).Error
}

func (r *repo) FindRepositoryByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*githubdomain.Repository, error) {
	return r.findRepository(ctx, db, `id = ?`, id)
}

func (r *repo) FindRepositoryByName(ctx context.Context, db *gorm.DB, owner, name string) (*githubdomain.Repository, error) {
	return r.findRepository(ctx, db, `LOWER(owner) = LOWER(?) AND LOWER(name) = LOWER(?)`, owner, name)
}

func (r *repo) FindRepositoryByProject(ctx context.Context, db *gorm.DB, projectID snowflake.ID) (*githubdomain.Repository, error) {
	return r.findRepository(ctx, db, `project_id = ? ORDER BY created_at ASC, id ASC LIMIT 1`, projectID)
}

func (r *repo) findRepository(ctx context.Context, db *gorm.DB, where string, args ...any) (*githubdomain.Repository, error) {
	var repository githubdomain.Repository
	err := db.WithContext(ctx).Raw(
		`SELECT `+repositoryColumns+` FROM github_repositories WHERE `+where,
		args...,
	).Scan(&repository).Error
	if err != nil {
		return nil, err
	}
	if repository.ID == 0 {
		return nil, nil
	}
	return &repository, nil
}

func (r *repo) ListRepositories(ctx context.Context, db *gorm.DB, autoSyncOnly bool) ([]githubdomain.Repository, error) {
	query := `SELECT ` + repositoryColumns + ` FROM github_repositories`
	if autoSyncOnly {
		query += ` WHERE auto_sync = TRUE`
	}
	query += ` ORDER BY owner ASC, name ASC`

	var repositories []githubdomain.Repository
	if err := db.WithContext(ctx).Raw(query).Scan(&repositories).Error; err != nil {
		return nil, err
	}
	return repositories, nil
}

func (r *repo) TouchRepository(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE github_repositories SET last_synced_at = ?, updated_at = ? WHERE id = ?`,
		at,
		at,
		id,
	).Error
}

func (r *repo) InsertIssue(ctx context.Context, db *gorm.DB, issue *githubdomain.Issue) (bool, error) {
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "repository_id"}, {Name: "issue_number"}},
			DoNothing: true,
		}).
		Create(issue)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) UpdateIssue(ctx context.Context, db *gorm.DB, issue *githubdomain.Issue) error {
	return db.WithContext(ctx).Exec(
		`UPDATE github_issues
		 SET state = ?, title = ?, html_url = ?, remote_updated_at = ?, last_synced_at = ?, updated_at = ?
		 WHERE id = ?`,
		issue.State,
		issue.Title,
		issue.HTMLURL,
		issue.RemoteUpdatedAt,
		issue.LastSyncedAt,
		issue.UpdatedAt,
		issue.ID,
	).Error
}

func (r *repo) FindIssueByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*githubdomain.Issue, error) {
	return r.findIssue(ctx, db, `id = ?`, id)
}

func (r *repo) FindIssueByNumber(ctx context.Context, db *gorm.DB, repositoryID snowflake.ID, number int) (*githubdomain.Issue, error) {
	return r.findIssue(ctx, db, `repository_id = ? AND issue_number = ?`, repositoryID, number)
}

func (r *repo) FindIssueByTask(ctx context.Context, db *gorm.DB, taskID snowflake.ID) (*githubdomain.Issue, error) {
	return r.findIssue(ctx, db, `task_id = ?`, taskID)
}

func (r *repo) findIssue(ctx context.Context, db *gorm.DB, where string, args ...any) (*githubdomain.Issue, error) {
	var issue githubdomain.Issue
	err := db.WithContext(ctx).Raw(
		`SELECT `+issueColumns+` FROM github_issues WHERE `+where,
		args...,
	).Scan(&issue).Error
	if err != nil {
		return nil, err
	}
	if issue.ID == 0 {
		return nil, nil
	}
	return &issue, nil
}

func (r *repo) ListIssuesSyncedBefore(ctx context.Context, db *gorm.DB, before time.Time, limit int) ([]githubdomain.Issue, error) {
	var issues []githubdomain.Issue
	err := db.WithContext(ctx).Raw(
		`SELECT `+issueColumns+` FROM github_issues
		 WHERE last_synced_at IS NULL OR last_synced_at < ?
		 ORDER BY last_synced_at ASC, id ASC
		 LIMIT ?`,
		before,
		limit,
	).Scan(&issues).Error
	if err != nil {
		return nil, err
	}
	return issues, nil
}

func (r *repo) ListIssuesByRepository(ctx context.Context, db *gorm.DB, repositoryID snowflake.ID) ([]githubdomain.Issue, error) {
	var issues []githubdomain.Issue
	err := db.WithContext(ctx).Raw(
		`SELECT `+issueColumns+` FROM github_issues WHERE repository_id = ? ORDER BY issue_number ASC`,
		repositoryID,
	).Scan(&issues).Error
	if err != nil {
		return nil, err
	}
	return issues, nil
}

func (r *repo) InsertComment(ctx context.Context, db *gorm.DB, comment *githubdomain.IssueComment) (bool, error) {
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "github_issue_id"}, {Name: "comment_id"}},
			DoNothing: true,
		}).
		Create(comment)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) UpdateComment(ctx context.Context, db *gorm.DB, comment *githubdomain.IssueComment) error {
	return db.WithContext(ctx).Exec(
		`UPDATE github_issue_comments SET comment_id = ?, author_login = ?, remote_updated_at = ?, updated_at = ? WHERE id = ?`,
		comment.CommentID,
		comment.AuthorLogin,
		comment.RemoteUpdatedAt,
		comment.UpdatedAt,
		comment.ID,
	).Error
}

func (r *repo) FindComment(ctx context.Context, db *gorm.DB, issueID snowflake.ID, commentID int64) (*githubdomain.IssueComment, error) {
	return r.findComment(ctx, db, `github_issue_id = ? AND comment_id = ?`, issueID, commentID)
}

func (r *repo) FindCommentByMessage(ctx context.Context, db *gorm.DB, messageID snowflake.ID) (*githubdomain.IssueComment, error) {
	return r.findComment(ctx, db, `message_id = ?`, messageID)
}

func (r *repo) ListPendingComments(ctx context.Context, db *gorm.DB, issueID snowflake.ID) ([]githubdomain.IssueComment, error) {
	var comments []githubdomain.IssueComment
	err := db.WithContext(ctx).Raw(
		`SELECT `+commentColumns+` FROM github_issue_comments WHERE github_issue_id = ? AND comment_id < 0 ORDER BY created_at ASC, id ASC`,
		issueID,
	).Scan(&comments).Error
	if err != nil {
		return nil, err
	}
	return comments, nil
}

func (r *repo) DeleteComment(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(`DELETE FROM github_issue_comments WHERE id = ?`, id).Error
}

func (r *repo) findComment(ctx context.Context, db *gorm.DB, where string, args ...any) (*githubdomain.IssueComment, error) {
	var comment githubdomain.IssueComment
	err := db.WithContext(ctx).Raw(
		`SELECT `+commentColumns+` FROM github_issue_comments WHERE `+where,
		args...,
	).Scan(&comment).Error
	if err != nil {
		return nil, err
	}
	if comment.ID == 0 {
		return nil, nil
	}
	return &comment, nil
}
