package deploy

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fulmenhq/repodeploy/internal/gitctx"
	"github.com/fulmenhq/repodeploy/pkg/event"
	"github.com/fulmenhq/repodeploy/pkg/pattern"
)

// remote creates a bare repository whose single commit holds files.
func remote(t *testing.T, files map[string]string) string {
	t.Helper()
	base := t.TempDir()
	work := filepath.Join(base, "work")
	repo, err := git.PlainInit(work, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	for name, content := range files {
		full := filepath.Join(work, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
		_, err := wt.Add(name)
		require.NoError(t, err)
	}
	_, err = wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "t", Email: "t@example.com", When: time.Now()},
	})
	require.NoError(t, err)

	bare := filepath.Join(base, "remote.git")
	_, err = git.PlainClone(bare, true, &git.CloneOptions{URL: work})
	require.NoError(t, err)
	return bare
}

// headTree returns the tree of the remote's master branch.
func headTree(t *testing.T, bare string) (*object.Commit, *object.Tree) {
	t.Helper()
	repo, err := git.PlainOpen(bare)
	require.NoError(t, err)
	ref, err := repo.Reference(plumbing.NewBranchReferenceName("master"), true)
	require.NoError(t, err)
	commit, err := repo.CommitObject(ref.Hash())
	require.NoError(t, err)
	tree, err := commit.Tree()
	require.NoError(t, err)
	return commit, tree
}

func fileContent(t *testing.T, tree *object.Tree, name string) string {
	t.Helper()
	f, err := tree.File(name)
	require.NoError(t, err, name)
	content, err := f.Contents()
	require.NoError(t, err)
	return content
}

func newExecutor(t *testing.T, cfg Config) *Executor {
	t.Helper()
	if cfg.WorkDir == "" {
		cfg.WorkDir = t.TempDir()
	}
	if cfg.Author.Name == "" {
		cfg.Author = gitctx.Signature{Name: "repodeploy", Email: "repodeploy@localhost"}
	}
	e := NewExecutor(cfg, nil)
	clock := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	e.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return e
}

func sourceAndDestination(t *testing.T) (string, string) {
	src := remote(t, map[string]string{
		"c/e.txt":      "e",
		"c/j.txt":      "j",
		"docs/a.md":    "# A",
		"tree/x/y.txt": "y",
	})
	dst := remote(t, map[string]string{"README.md": "students"})
	return src, dst
}

func TestExecute_CopiesCommitsAndPushes(t *testing.T) {
	src, dst := sourceAndDestination(t)
	ev := &event.Event{
		ID:          "4",
		Name:        "hw4",
		Origin:      src,
		Destination: dst,
		Date:        time.Now(),
		Patterns: []pattern.Pair{
			pattern.Mirror("c/*.txt"),
			pattern.Map("docs/a.md", "handbook"),
			pattern.Map("tree", "copied"),
		},
	}
	e := newExecutor(t, Config{})

	res, err := e.Execute(context.Background(), ev)
	require.NoError(t, err)

	assert.Len(t, res.Operations, 4)
	assert.NotEmpty(t, res.Commit)
	assert.True(t, res.Pushed)
	assert.True(t, res.Removed)
	assert.NoDirExists(t, res.RunDir)
	assert.Equal(t, "run_4260301080001", filepath.Base(res.RunDir))
	require.NotNil(t, res.Changes)
	assert.Equal(t, []string{"c/e.txt", "c/j.txt", "copied/x/y.txt", "handbook/a.md"}, res.Changes.ModifiedFiles)

	commit, tree := headTree(t, dst)
	assert.Equal(t, res.Commit, commit.Hash.String())
	assert.Equal(t, "Automated commit for event 4", commit.Message)
	assert.Equal(t, "repodeploy", commit.Author.Name)
	assert.Equal(t, "e", fileContent(t, tree, "c/e.txt"))
	assert.Equal(t, "# A", fileContent(t, tree, "handbook/a.md"))
	assert.Equal(t, "y", fileContent(t, tree, "copied/x/y.txt"))
	assert.Equal(t, "students", fileContent(t, tree, "README.md"))
}

func TestExecute_SecondRunHasNothingToCommit(t *testing.T) {
	src, dst := sourceAndDestination(t)
	ev := &event.Event{ID: "1", Origin: src, Destination: dst, Date: time.Now(),
		Patterns: []pattern.Pair{pattern.Mirror("c/e.txt")}}
	e := newExecutor(t, Config{})

	first, err := e.Execute(context.Background(), ev)
	require.NoError(t, err)
	require.NotEmpty(t, first.Commit)

	second, err := e.Execute(context.Background(), ev)
	require.NoError(t, err)
	assert.Empty(t, second.Commit)
	assert.False(t, second.Pushed)

	commit, _ := headTree(t, dst)
	assert.Equal(t, first.Commit, commit.Hash.String())
}

func TestExecute_DryRunEventKeepsRunDirAndDoesNotPush(t *testing.T) {
	src, dst := sourceAndDestination(t)
	before, _ := headTree(t, dst)
	ev := &event.Event{ID: "2", Origin: src, Destination: dst, Date: time.Now(), DryRun: true,
		Patterns: []pattern.Pair{pattern.Mirror("c/*.txt")}}

	res, err := newExecutor(t, Config{}).Execute(context.Background(), ev)
	require.NoError(t, err)

	assert.NotEmpty(t, res.Commit)
	assert.False(t, res.Pushed)
	assert.False(t, res.Removed)
	assert.FileExists(t, filepath.Join(res.RunDir, DestinationRepoDir, "c", "j.txt"))
	assert.FileExists(t, filepath.Join(res.RunDir, SourceRepoDir, "docs", "a.md"))

	after, _ := headTree(t, dst)
	assert.Equal(t, before.Hash, after.Hash)
}

func TestExecute_NoPushNoRemoveFlags(t *testing.T) {
	src, dst := sourceAndDestination(t)
	ev := &event.Event{ID: "3", Origin: src, Destination: dst, Date: time.Now(),
		Patterns: []pattern.Pair{pattern.Mirror("docs")}}

	res, err := newExecutor(t, Config{NoPush: true, NoRemove: true}).Execute(context.Background(), ev)
	require.NoError(t, err)
	assert.False(t, res.Pushed)
	assert.DirExists(t, res.RunDir)
}

func TestExecute_PatternConflictStopsBeforeCopy(t *testing.T) {
	src := remote(t, map[string]string{"c/x.py": "x", "c/y.py": "y"})
	dst := remote(t, map[string]string{"h/a.py": "original"})
	before, _ := headTree(t, dst)
	ev := &event.Event{ID: "5", Origin: src, Destination: dst, Date: time.Now(),
		Patterns: []pattern.Pair{pattern.Map("c/*.py", "h/a.py")}}

	res, err := newExecutor(t, Config{}).Execute(context.Background(), ev)
	require.Error(t, err)
	assert.ErrorIs(t, err, pattern.ErrPatternConflict)
	assert.Empty(t, res.Operations)
	assert.DirExists(t, res.RunDir, "failed runs keep their directory")

	content, err := os.ReadFile(filepath.Join(res.RunDir, DestinationRepoDir, "h", "a.py"))
	require.NoError(t, err)
	assert.Equal(t, "original", string(content))

	after, _ := headTree(t, dst)
	assert.Equal(t, before.Hash, after.Hash)
}

func TestExecute_NoOp(t *testing.T) {
	src, dst := sourceAndDestination(t)
	ev := &event.Event{ID: "6", Origin: src, Destination: dst, Date: time.Now(),
		Patterns: []pattern.Pair{pattern.Mirror("c/*.txt")}}

	res, err := newExecutor(t, Config{NoOp: true}).Execute(context.Background(), ev)
	require.NoError(t, err)
	assert.Len(t, res.Operations, 2)
	assert.Empty(t, res.Commit)
	assert.False(t, res.Pushed)
}

func TestExecute_CommitMessageTemplate(t *testing.T) {
	src, dst := sourceAndDestination(t)
	ev := &event.Event{ID: "7", Name: "homework", Origin: src, Destination: dst, Date: time.Now(),
		Patterns: []pattern.Pair{pattern.Mirror("c/*.txt")}}

	_, err := newExecutor(t, Config{CommitMessage: "Release {{name}} ({{files}} files, event {{id}})"}).
		Execute(context.Background(), ev)
	require.NoError(t, err)

	commit, _ := headTree(t, dst)
	assert.Equal(t, "Release homework (2 files, event 7)", commit.Message)
}

func TestExecute_Locked(t *testing.T) {
	e := newExecutor(t, Config{})
	path := e.LockPath("9")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	held := flock.New(path)
	ok, err := held.TryLock()
	require.NoError(t, err)
	require.True(t, ok)
	defer func() { _ = held.Unlock() }()

	_, err = e.Execute(context.Background(), &event.Event{ID: "9", Date: time.Now()})
	assert.ErrorIs(t, err, ErrEventLocked)
}

func TestExecute_CloneFailure(t *testing.T) {
	ev := &event.Event{ID: "8", Origin: filepath.Join(t.TempDir(), "missing"), Destination: "x", Date: time.Now()}
	_, err := newExecutor(t, Config{}).Execute(context.Background(), ev)
	assert.ErrorIs(t, err, gitctx.ErrVCS)
}

func TestExecute_RequiresID(t *testing.T) {
	_, err := newExecutor(t, Config{}).Execute(context.Background(), &event.Event{})
	assert.ErrorIs(t, err, event.ErrInvalidEvent)
}

func TestCreateRunDir_SameSecond(t *testing.T) {
	e := newExecutor(t, Config{})
	ev := &event.Event{ID: "3"}
	at := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	first, err := e.createRunDir(ev, at)
	require.NoError(t, err)
	second, err := e.createRunDir(ev, at)
	require.NoError(t, err)

	assert.Equal(t, "run_3260301080000", filepath.Base(first))
	assert.Equal(t, "run_3260301080000_1", filepath.Base(second))
	assert.DirExists(t, second)
}
