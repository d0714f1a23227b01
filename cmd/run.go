package cmd

import (
	"fmt"

	"github.com/fulmenhq/repodeploy/internal/gitctx"
	"github.com/fulmenhq/repodeploy/pkg/deploy"
	"github.com/fulmenhq/repodeploy/pkg/event"
	"github.com/spf13/cobra"
)

func newRunCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <event-id>",
		Short: "Run a registered event now",
		Long: `Run clones the event's origin and destination repositories, copies the files
selected by its patterns, commits and pushes. This is what the scheduled at(1)
job invokes; it can also be called by hand.

A dry-run event behaves as if --no-push and --no-remove were given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runEvent(cmd, args[0])
		},
	}
	cmd.Flags().Bool("no-push", false, "Commit locally but do not push")
	cmd.Flags().Bool("no-remove", false, "Keep the run directory afterwards")
	return cmd
}

func (a *app) runEvent(cmd *cobra.Command, id string) error {
	entry, err := a.store.Get(id)
	if err != nil {
		return err
	}
	ev, err := event.Load(entry.ConfigPath)
	if err != nil {
		return err
	}
	ev.ID = id

	noPush, _ := cmd.Flags().GetBool("no-push")
	noRemove, _ := cmd.Flags().GetBool("no-remove")
	noOp, _ := cmd.Flags().GetBool("no-op")
	expand, err := a.config.ExpandOptions()
	if err != nil {
		return err
	}

	executor := deploy.NewExecutor(deploy.Config{
		WorkDir:       a.config.WorkDir,
		NoPush:        noPush,
		NoRemove:      noRemove,
		NoOp:          noOp,
		CommitMessage: a.config.Git.CommitMessage,
		Author:        gitctx.Signature{Name: a.config.Git.AuthorName, Email: a.config.Git.AuthorEmail},
		Credentials:   gitctx.Credentials{Username: a.config.Git.Username, Password: a.config.Git.Password},
		Expand:        expand,
	}, a.log)

	res, err := executor.Execute(cmd.Context(), ev)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Event %s: %d operations\n", id, len(res.Operations))
	switch {
	case noOp:
		fmt.Fprintln(out, "No-op: nothing copied")
	case res.Commit == "":
		fmt.Fprintln(out, "Destination unchanged")
	default:
		fmt.Fprintf(out, "Commit %s (pushed: %t)\n", res.Commit, res.Pushed)
	}
	if !res.Removed {
		fmt.Fprintf(out, "Run directory kept: %s\n", res.RunDir)
	}
	return nil
}
