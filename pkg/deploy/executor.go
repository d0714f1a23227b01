// Package deploy runs a deployment event end to end: clone both repositories,
// expand the event's patterns, copy, commit and push.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aymerick/raymond"
	"github.com/fulmenhq/repodeploy/internal/gitctx"
	"github.com/fulmenhq/repodeploy/pkg/copier"
	"github.com/fulmenhq/repodeploy/pkg/event"
	"github.com/fulmenhq/repodeploy/pkg/logger"
	"github.com/fulmenhq/repodeploy/pkg/pattern"
	"github.com/gofrs/flock"
)

// ErrEventLocked is returned when another process is already running the same event.
var ErrEventLocked = errors.New("event is already running")

const (
	SourceRepoDir      = "source_repo"
	DestinationRepoDir = "destination_repo"

	// DefaultCommitMessage is a Handlebars template. Available fields: id, name,
	// description, origin, destination, date and files (number of changed paths).
	DefaultCommitMessage = "Automated commit for event {{id}}"
)

// Config configures an Executor.
type Config struct {
	WorkDir       string
	NoPush        bool
	NoRemove      bool
	NoOp          bool // clone and expand, then stop before touching the destination
	CommitMessage string
	Author        gitctx.Signature
	Credentials   gitctx.Credentials
	Expand        pattern.Options
}

// Result describes one run.
type Result struct {
	EventID    string                `json:"event_id"`
	RunDir     string                `json:"run_dir"`
	Operations []pattern.Operation   `json:"operations"`
	Changes    *gitctx.ChangeContext `json:"changes,omitempty"`
	Commit     string                `json:"commit,omitempty"`
	Pushed     bool                  `json:"pushed"`
	Removed    bool                  `json:"removed"`
	Duration   time.Duration         `json:"duration"`
}

// Executor runs events one at a time; it holds no state between runs.
type Executor struct {
	config Config
	log    *logger.Logger
	now    func() time.Time
}

// NewExecutor creates an executor. log may be nil.
func NewExecutor(config Config, log *logger.Logger) *Executor {
	if config.CommitMessage == "" {
		config.CommitMessage = DefaultCommitMessage
	}
	return &Executor{config: config, log: log, now: time.Now}
}

// RunDir returns the per-run working directory for ev started at t.
func (e *Executor) RunDir(ev *event.Event, t time.Time) string {
	return filepath.Join(e.config.WorkDir, "run_"+ev.ID+t.Format("060102150405"))
}

// createRunDir creates RunDir(ev, t), adding a numeric suffix when a kept
// directory from a run in the same second is still there.
func (e *Executor) createRunDir(ev *event.Event, t time.Time) (string, error) {
	if err := os.MkdirAll(e.config.WorkDir, 0o750); err != nil {
		return "", fmt.Errorf("creating work directory: %w", err)
	}
	base := e.RunDir(ev, t)
	dir := base
	for i := 1; ; i++ {
		err := os.Mkdir(dir, 0o750)
		if err == nil {
			return dir, nil
		}
		if !os.IsExist(err) {
			return "", fmt.Errorf("creating run directory: %w", err)
		}
		dir = fmt.Sprintf("%s_%d", base, i)
	}
}

// LockPath returns the lock file guarding runs of the event id.
func (e *Executor) LockPath(id string) string {
	return filepath.Join(e.config.WorkDir, "locks", id+".lock")
}

// Execute runs ev. A dry-run event is never pushed and keeps its run directory.
// The run directory is removed only after a successful run.
func (e *Executor) Execute(ctx context.Context, ev *event.Event) (*Result, error) {
	if ev.ID == "" {
		return nil, fmt.Errorf("%w: event has no id", event.ErrInvalidEvent)
	}
	start := e.now()
	noPush := e.config.NoPush || ev.DryRun
	noRemove := e.config.NoRemove || ev.DryRun
	log := e.log.With(logger.String("event", ev.ID))

	unlock, err := e.lock(ev.ID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	res := &Result{EventID: ev.ID}
	if res.RunDir, err = e.createRunDir(ev, start); err != nil {
		return nil, err
	}
	log.Info("Starting deployment",
		logger.String("name", ev.Name),
		logger.String("run_dir", res.RunDir))

	if err := e.run(ctx, ev, res, noPush, log); err != nil {
		log.Error("Deployment failed; run directory kept",
			logger.String("run_dir", res.RunDir),
			logger.Err(err))
		return res, err
	}

	if !noRemove {
		if err := os.RemoveAll(res.RunDir); err != nil {
			return res, fmt.Errorf("removing run directory: %w", err)
		}
		res.Removed = true
	}
	res.Duration = e.now().Sub(start)
	log.Info("Deployment finished",
		logger.Int("operations", len(res.Operations)),
		logger.String("commit", res.Commit),
		logger.Bool("pushed", res.Pushed),
		logger.Bool("removed", res.Removed))
	return res, nil
}

func (e *Executor) run(ctx context.Context, ev *event.Event, res *Result, noPush bool, log *logger.Logger) error {
	src, err := gitctx.Clone(ctx, ev.Origin, filepath.Join(res.RunDir, SourceRepoDir), e.config.Credentials)
	if err != nil {
		return err
	}
	log.Debug("Cloned source", logger.String("url", gitctx.Redact(ev.Origin)))

	dst, err := gitctx.Clone(ctx, ev.Destination, filepath.Join(res.RunDir, DestinationRepoDir), e.config.Credentials)
	if err != nil {
		return err
	}
	log.Debug("Cloned destination", logger.String("url", gitctx.Redact(ev.Destination)))

	ops, err := pattern.NewExpander(e.config.Expand, log).Expand(src.Path(), dst.Path(), ev.Patterns)
	if err != nil {
		return err
	}
	res.Operations = ops

	if e.config.NoOp {
		log.Info("[no-op] Would copy files", logger.Int("operations", len(ops)))
		for _, op := range ops {
			log.Info("[no-op] copy",
				logger.String("source", op.Source),
				logger.String("destination", op.Destination))
		}
		return nil
	}

	log.Info(fmt.Sprintf("Copying %d paths", len(ops)))
	if err := copier.New(log).CopyAll(ops); err != nil {
		return err
	}

	if err := dst.StageAll(); err != nil {
		return err
	}
	dirty, err := dst.IsDirty()
	if err != nil {
		return err
	}
	if !dirty {
		log.Info("Destination unchanged; nothing to commit")
		return nil
	}

	if res.Changes, err = dst.Changes(); err != nil {
		return err
	}
	message, err := e.commitMessage(ev, res.Changes.TotalChanges)
	if err != nil {
		return err
	}
	if res.Commit, err = dst.Commit(message, e.config.Author); err != nil {
		return err
	}
	log.Info("Committed",
		logger.String("commit", res.Commit),
		logger.Int("files", res.Changes.TotalChanges),
		logger.String("scope", res.Changes.ChangeScope))

	if noPush {
		log.Info("Push skipped")
		return nil
	}
	if err := dst.Push(ctx); err != nil {
		return err
	}
	res.Pushed = true
	return nil
}

func (e *Executor) commitMessage(ev *event.Event, files int) (string, error) {
	out, err := raymond.Render(e.config.CommitMessage, map[string]interface{}{
		"id":          ev.ID,
		"name":        ev.Name,
		"description": ev.Description,
		"origin":      gitctx.Redact(ev.Origin),
		"destination": gitctx.Redact(ev.Destination),
		"date":        ev.Date.Format(time.RFC3339),
		"files":       files,
	})
	if err != nil {
		return "", fmt.Errorf("rendering commit message: %w", err)
	}
	return out, nil
}

// lock takes the per-event lock without waiting.
func (e *Executor) lock(id string) (func(), error) {
	path := e.LockPath(id)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("locking event %s: %w", id, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s (lock %s)", ErrEventLocked, id, path)
	}
	return func() { _ = fl.Unlock() }, nil
}
