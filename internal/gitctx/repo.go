package gitctx

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
)

// ErrVCS marks any failure of a version-control operation.
var ErrVCS = errors.New("vcs error")

// Credentials are sent as HTTP basic auth to http(s) remotes only.
type Credentials struct {
	Username string
	Password string
}

// Signature identifies the author and committer of automated commits.
type Signature struct {
	Name  string
	Email string
}

// Repository is a local checkout with an origin remote.
type Repository struct {
	path  string
	url   string
	repo  *git.Repository
	creds Credentials
}

// Clone checks out url into path. Cloning an empty remote yields an empty
// repository with origin configured, so the first push creates the branch.
func Clone(ctx context.Context, rawURL, path string, creds Credentials) (*Repository, error) {
	r := &Repository{path: path, url: rawURL, creds: creds}
	repo, err := git.PlainCloneContext(ctx, path, false, &git.CloneOptions{
		URL:  rawURL,
		Auth: r.auth(),
	})
	if errors.Is(err, transport.ErrEmptyRemoteRepository) {
		repo, err = initEmpty(path, rawURL)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: clone %s: %w", ErrVCS, Redact(rawURL), err)
	}
	r.repo = repo
	return r, nil
}

func initEmpty(path, rawURL string) (*git.Repository, error) {
	repo, err := git.PlainInit(path, false)
	if err != nil {
		return nil, err
	}
	_, err = repo.CreateRemote(&config.RemoteConfig{Name: git.DefaultRemoteName, URLs: []string{rawURL}})
	if err != nil {
		return nil, err
	}
	return repo, nil
}

// Open wraps an existing checkout.
func Open(path string, creds Credentials) (*Repository, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrVCS, path, err)
	}
	r := &Repository{path: path, repo: repo, creds: creds}
	if remote, err := repo.Remote(git.DefaultRemoteName); err == nil && len(remote.Config().URLs) > 0 {
		r.url = remote.Config().URLs[0]
	}
	return r, nil
}

// Path returns the worktree root.
func (r *Repository) Path() string { return r.path }

// StageAll stages every addition, modification and deletion in the worktree.
func (r *Repository) StageAll() error {
	wt, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("%w: worktree: %w", ErrVCS, err)
	}
	if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return fmt.Errorf("%w: stage: %w", ErrVCS, err)
	}
	return nil
}

// IsDirty reports whether the worktree or index differs from HEAD.
func (r *Repository) IsDirty() (bool, error) {
	wt, err := r.repo.Worktree()
	if err != nil {
		return false, fmt.Errorf("%w: worktree: %w", ErrVCS, err)
	}
	st, err := wt.Status()
	if err != nil {
		return false, fmt.Errorf("%w: status: %w", ErrVCS, err)
	}
	return !st.IsClean(), nil
}

// Changes summarizes what is pending in the worktree.
func (r *Repository) Changes() (*ChangeContext, error) {
	ctx, err := collect(r.repo)
	if err != nil {
		return nil, fmt.Errorf("%w: status: %w", ErrVCS, err)
	}
	return ctx, nil
}

// Commit records the index and returns the new commit hash.
func (r *Repository) Commit(message string, sig Signature) (string, error) {
	wt, err := r.repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("%w: worktree: %w", ErrVCS, err)
	}
	who := &object.Signature{Name: sig.Name, Email: sig.Email, When: time.Now()}
	hash, err := wt.Commit(message, &git.CommitOptions{Author: who, Committer: who})
	if err != nil {
		return "", fmt.Errorf("%w: commit: %w", ErrVCS, err)
	}
	return hash.String(), nil
}

// Push sends local branches to origin. An up-to-date remote is not an error.
func (r *Repository) Push(ctx context.Context) error {
	err := r.repo.PushContext(ctx, &git.PushOptions{
		RemoteName: git.DefaultRemoteName,
		Auth:       r.auth(),
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("%w: push %s: %w", ErrVCS, Redact(r.url), err)
	}
	return nil
}

// Head returns the current commit hash, or "" before the first commit.
func (r *Repository) Head() string {
	head, err := r.repo.Head()
	if err != nil {
		return ""
	}
	return head.Hash().String()
}

func (r *Repository) auth() transport.AuthMethod {
	if r.creds.Username == "" && r.creds.Password == "" {
		return nil
	}
	if !strings.HasPrefix(r.url, "http://") && !strings.HasPrefix(r.url, "https://") {
		return nil
	}
	return &githttp.BasicAuth{Username: r.creds.Username, Password: r.creds.Password}
}

// Redact hides any password embedded in a remote URL.
func Redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.User == nil {
		return rawURL
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}
