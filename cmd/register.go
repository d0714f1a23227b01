package cmd

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/fulmenhq/repodeploy/pkg/event"
	"github.com/fulmenhq/repodeploy/pkg/logger"
	"github.com/fulmenhq/repodeploy/pkg/registry"
	"github.com/fulmenhq/repodeploy/pkg/scheduler"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func newRegisterCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register <config>",
		Short: "Register and schedule a deployment event",
		Long: `Register loads and validates an event file, schedules "repodeploy run <id>"
with at(1) for the event's date and records the event in the registry.

The id is taken from --id, then from the file, and otherwise is the lowest
unused integer. The assigned id is printed on stdout.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runRegister(cmd, args[0])
		},
	}
	cmd.Flags().String("id", "", "Event id (overrides the id in the file)")
	return cmd
}

func (a *app) runRegister(cmd *cobra.Command, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	ev, err := event.Load(abs)
	if err != nil {
		return err
	}

	id, _ := cmd.Flags().GetString("id")
	if id == "" {
		id = ev.ID
	}
	if id != "" {
		if err := event.CheckID(id); err != nil {
			return err
		}
	}
	if !ev.Date.After(a.now()) {
		return fmt.Errorf("%w: date %s is not in the future", event.ErrInvalidEvent, ev.Date.Format("2006-01-02 15:04"))
	}
	if !a.sched.Available() {
		return fmt.Errorf("%w: %s not found in PATH", scheduler.ErrScheduler, a.config.At.Binary)
	}

	id, err = a.store.Reserve(id, abs)
	if errors.Is(err, registry.ErrExists) {
		return fmt.Errorf("%w; deregister it first", err)
	}
	if err != nil {
		return err
	}

	jobID, err := a.schedule(cmd, id, ev)
	if err != nil {
		if _, rerr := a.store.Remove(id); rerr != nil {
			a.log.Warn("Could not release reserved event id", logger.String("event", id), logger.Err(rerr))
		}
		return err
	}

	a.log.Info("Registered event",
		logger.String("event", id),
		logger.String("name", ev.Name),
		logger.Int("job_id", jobID),
		logger.Time("date", ev.Date),
		logger.Bool("dry_run", ev.DryRun))
	fmt.Fprintln(cmd.OutOrStdout(), id)
	return nil
}

// schedule submits the run of id and records the job in the registry. A job
// that cannot be recorded is cancelled again.
func (a *app) schedule(cmd *cobra.Command, id string, ev *event.Event) (int, error) {
	command, err := a.runCommandLine(cmd, id, ev.DryRun)
	if err != nil {
		return 0, err
	}
	jobID, err := a.sched.Schedule(cmd.Context(), ev.Date, command)
	if err != nil {
		return 0, err
	}
	if err := a.store.SetJob(id, jobID); err != nil {
		if _, cerr := a.sched.Cancel(cmd.Context(), jobID); cerr != nil {
			a.log.Warn("Could not cancel job after registry failure", logger.Int("job_id", jobID), logger.Err(cerr))
		}
		return 0, err
	}
	return jobID, nil
}

// forwardedFlags name the path flags a scheduled run must see again.
var forwardedFlags = map[string]bool{"config": true, "work-dir": true, "db-path": true}

// runCommandLine is the shell line at(1) executes. Location flags given on
// this invocation are passed on so the job finds the same registry.
func (a *app) runCommandLine(cmd *cobra.Command, id string, dryRun bool) (string, error) {
	exe, err := a.executable()
	if err != nil {
		return "", fmt.Errorf("locating repodeploy binary: %w", err)
	}
	words := []string{exe}
	cmd.Flags().Visit(func(f *pflag.Flag) {
		if err != nil || !forwardedFlags[f.Name] {
			return
		}
		var value string
		if value, err = filepath.Abs(f.Value.String()); err == nil {
			words = append(words, "--"+f.Name, value)
		}
	})
	if err != nil {
		return "", err
	}
	words = append(words, "run", id)
	if dryRun {
		words = append(words, "--no-push", "--no-remove")
	}
	return scheduler.BuildCommand(words...), nil
}
