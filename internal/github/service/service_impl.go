package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/glitchidea/glichflow/internal/clock"
	commdomain "github.com/glitchidea/glichflow/internal/communication/domain"
	"github.com/glitchidea/glichflow/internal/config"
	"github.com/glitchidea/glichflow/internal/events"
	"github.com/glitchidea/glichflow/internal/github/client"
	githubdomain "github.com/glitchidea/glichflow/internal/github/domain"
	"github.com/glitchidea/glichflow/internal/github/oauth"
	"github.com/glitchidea/glichflow/internal/observability/metrics"
	obstracing "github.com/glitchidea/glichflow/internal/observability/tracing"
	taskdomain "github.com/glitchidea/glichflow/internal/task/domain"
	"github.com/glitchidea/glichflow/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"gorm.io/gorm"
)

var errNoCredential = errors.New("no GitHub credential available")

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Repo          githubdomain.RepositoryStore
	TaskRepo      taskdomain.Repository
	CommRepo      commdomain.Repository
	Events        events.Publisher
	Config        config.Config
	SyncConfig    *config.SyncConfigHolder
	Metrics       *metrics.Metrics       `optional:"true"`
	GitHubMetrics *metrics.GitHubMetrics `optional:"true"`
	Clock         clock.Clock            `optional:"true"`
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	repo          githubdomain.RepositoryStore
	taskRepo      taskdomain.Repository
	commRepo      commdomain.Repository
	events        events.Publisher
	cfg           config.GitHubConfig
	syncCfg       *config.SyncConfigHolder
	oauthCfg      *oauth2.Config
	httpClient    *http.Client
	metrics       *metrics.Metrics
	githubMetrics *metrics.GitHubMetrics
	clock         clock.Clock
}

func New(p Params) githubdomain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.NewSystem()
	}
	syncCfg := p.SyncConfig
	if syncCfg == nil {
		syncCfg = config.NewStaticSyncConfigHolder(config.DefaultSyncConfig())
	}
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("github.service"),
		genID:         p.GenID,
		repo:          p.Repo,
		taskRepo:      p.TaskRepo,
		commRepo:      p.CommRepo,
		events:        p.Events,
		cfg:           p.Config.GitHub,
		syncCfg:       syncCfg,
		oauthCfg:      oauth.NewConfig(p.Config.GitHub),
		httpClient:    obstracing.WrapHTTPClient(&http.Client{Timeout: p.Config.GitHub.Timeout}),
		metrics:       p.Metrics,
		githubMetrics: p.GitHubMetrics,
		clock:         clk,
	}
}

// clientFor resolves the credential of repository, preferring override, then
// the repository's own credential, then the system-wide one.
func (s *Service) clientFor(ctx context.Context, repository *githubdomain.Repository, override *snowflake.ID) (*client.Client, error) {
	var (
		cred *githubdomain.Credential
		err  error
	)
	switch {
	case override != nil:
		cred, err = s.repo.FindCredentialByID(ctx, s.db, *override)
	case repository != nil && repository.CredentialID != nil:
		cred, err = s.repo.FindCredentialByID(ctx, s.db, *repository.CredentialID)
	default:
		cred, err = s.repo.FindCredentialByUser(ctx, s.db, nil)
	}
	if err != nil {
		return nil, err
	}
	if cred == nil {
		return nil, errNoCredential
	}

	return client.New(client.Options{
		BaseURL: s.cfg.APIBaseURL,
		Timeout: s.cfg.Timeout,
		Log:     s.log,
		Metrics: s.githubMetrics,
		WarnThreshold: func() int {
			return s.syncCfg.Get().RateLimitWarnThreshold
		},
	}, &credentialTokens{svc: s, cred: cred}), nil
}

// credentialTokens serves one stored credential and persists refreshed tokens.
type credentialTokens struct {
	svc  *Service
	mu   sync.Mutex
	cred *githubdomain.Credential
}

// Token refreshes up front once ExpiresAt has passed; a credential without a
// refresh token is sent as is and left to the 401 path.
func (t *credentialTokens) Token(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	expired := t.cred.ExpiresAt != nil && !t.cred.ExpiresAt.After(t.svc.clock.Now())
	if expired && strings.TrimSpace(t.cred.RefreshToken) != "" {
		return t.refresh(ctx)
	}
	return t.cred.AccessToken, nil
}

func (t *credentialTokens) Refresh(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.refresh(ctx)
}

func (t *credentialTokens) refresh(ctx context.Context) (string, error) {
	if strings.TrimSpace(t.cred.RefreshToken) == "" {
		return "", errors.New("credential has no refresh token")
	}
	token, err := oauth.Refresh(oauth.WithHTTPClient(ctx, t.svc.httpClient), t.svc.oauthCfg, t.cred.RefreshToken)
	if err != nil {
		return "", err
	}

	applyToken(t.cred, token)
	t.cred.UpdatedAt = t.svc.clock.Now()
	if err := t.svc.repo.UpdateCredentialToken(ctx, t.svc.db, t.cred); err != nil {
		return "", fmt.Errorf("persist refreshed token: %w", err)
	}
	t.svc.log.Info("github token refreshed", zap.String("credential_id", t.cred.ID.String()))
	return t.cred.AccessToken, nil
}

func applyToken(cred *githubdomain.Credential, token *oauth2.Token) {
	cred.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		cred.RefreshToken = token.RefreshToken
	}
	cred.TokenType = token.TokenType
	if token.Expiry.IsZero() {
		cred.ExpiresAt = nil
	} else {
		expiry := token.Expiry.UTC()
		cred.ExpiresAt = &expiry
	}
}

func (s *Service) RegisterRepository(ctx context.Context, req githubdomain.RepositoryRequest) (*githubdomain.RepositoryResponse, error) {
	projectID, err := parseID(req.ProjectID)
	if err != nil {
		return nil, err
	}
	owner := strings.TrimSpace(req.Owner)
	name := strings.TrimSpace(req.Name)
	if owner == "" || name == "" || strings.ContainsAny(owner+name, "/ ") {
		return nil, githubdomain.ErrInvalidRepository
	}

	project, err := s.taskRepo.FindProjectByID(ctx, s.db, projectID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, githubdomain.ErrNotFound
	}

	var credentialID *snowflake.ID
	if strings.TrimSpace(req.CredentialID) != "" {
		id, err := parseID(req.CredentialID)
		if err != nil {
			return nil, err
		}
		cred, err := s.repo.FindCredentialByID(ctx, s.db, id)
		if err != nil {
			return nil, err
		}
		if cred == nil {
			return nil, githubdomain.ErrNotFound
		}
		credentialID = &id
	}

	now := s.clock.Now()
	repository := &githubdomain.Repository{
		ID:           s.genID.Generate(),
		ProjectID:    projectID,
		Owner:        owner,
		Name:         name,
		CredentialID: credentialID,
		AutoSync:     req.AutoSync,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.InsertRepository(ctx, s.db, repository); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, githubdomain.ErrRepositoryExists
		}
		return nil, err
	}
	return toRepositoryResponse(repository), nil
}

func (s *Service) ListRepositories(ctx context.Context) ([]githubdomain.RepositoryResponse, error) {
	repositories, err := s.repo.ListRepositories(ctx, s.db, false)
	if err != nil {
		return nil, err
	}
	out := make([]githubdomain.RepositoryResponse, 0, len(repositories))
	for i := range repositories {
		out = append(out, *toRepositoryResponse(&repositories[i]))
	}
	return out, nil
}

func (s *Service) publishStatusChange(ctx context.Context, change *events.TaskStatusChanged) {
	if change == nil {
		return
	}
	s.events.Publish(ctx, *change)
}

func (s *Service) record(ctx context.Context, operation string, res githubdomain.Result) githubdomain.Result {
	s.metrics.RecordGitHubSync(ctx, operation, res.Success)
	if !res.Success {
		s.log.Warn("github sync failed", zap.String("operation", operation), zap.String("message", res.Message))
	}
	return res
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, githubdomain.ErrInvalidID
	}
	return id, nil
}

func toRepositoryResponse(repository *githubdomain.Repository) *githubdomain.RepositoryResponse {
	resp := &githubdomain.RepositoryResponse{
		ID:           repository.ID.String(),
		ProjectID:    repository.ProjectID.String(),
		Owner:        repository.Owner,
		Name:         repository.Name,
		AutoSync:     repository.AutoSync,
		LastSyncedAt: repository.LastSyncedAt,
	}
	if repository.CredentialID != nil {
		id := repository.CredentialID.String()
		resp.CredentialID = &id
	}
	return resp
}
