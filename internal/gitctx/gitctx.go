package gitctx

import (
	"path/filepath"
	"sort"

	git "github.com/go-git/go-git/v5"
)

// ChangeContext captures a minimal view of the pending change-set of a worktree.
type ChangeContext struct {
	ModifiedFiles []string `json:"modified_files"`
	TotalChanges  int      `json:"total_changes"`
	ChangeScope   string   `json:"change_scope"` // small | medium | large
	GitSHA        string   `json:"git_sha,omitempty"`
	Branch        string   `json:"branch,omitempty"`
}

// Collect summarizes staged and unstaged changes of the repository at target.
// Returns nil if target is not a repository.
func Collect(target string) (*ChangeContext, error) {
	repo, err := git.PlainOpenWithOptions(target, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, nil
	}
	return collect(repo)
}

func collect(repo *git.Repository) (*ChangeContext, error) {
	ctx := &ChangeContext{}
	// A freshly initialized repository has no HEAD yet.
	if head, err := repo.Head(); err == nil {
		ctx.Branch = head.Name().Short()
		ctx.GitSHA = head.Hash().String()
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, err
	}
	st, err := wt.Status()
	if err != nil {
		return nil, err
	}
	for path, s := range st {
		// Consider both staged and unstaged changes
		if s.Staging != git.Unmodified || s.Worktree != git.Unmodified {
			ctx.ModifiedFiles = append(ctx.ModifiedFiles, filepath.ToSlash(path))
		}
	}
	sort.Strings(ctx.ModifiedFiles)
	ctx.TotalChanges = len(ctx.ModifiedFiles)
	ctx.ChangeScope = classifyByFileCount(ctx.TotalChanges)
	return ctx, nil
}

func classifyByFileCount(n int) string {
	switch {
	case n <= 5:
		return "small"
	case n <= 20:
		return "medium"
	default:
		return "large"
	}
}
