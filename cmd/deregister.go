package cmd

import (
	"fmt"

	"github.com/fulmenhq/repodeploy/pkg/logger"
	"github.com/spf13/cobra"
)

func newDeregisterCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "deregister <event-id>",
		Short: "Cancel and forget a registered event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runDeregister(cmd, args[0])
		},
	}
}

func (a *app) runDeregister(cmd *cobra.Command, id string) error {
	entry, err := a.store.Get(id)
	if err != nil {
		return err
	}

	if a.sched.Available() {
		cancelled, err := a.sched.Cancel(cmd.Context(), entry.JobID)
		if err != nil {
			return err
		}
		if !cancelled {
			a.log.Warn("Job was no longer queued", logger.String("event", id), logger.Int("job_id", entry.JobID))
		}
	} else {
		a.log.Warn("at not available; job left untouched", logger.Int("job_id", entry.JobID))
	}

	if _, err := a.store.Remove(id); err != nil {
		return err
	}
	a.log.Info("Deregistered event", logger.String("event", id), logger.String("config", entry.ConfigPath))
	fmt.Fprintf(cmd.OutOrStdout(), "Deregistered event %s\n", id)
	return nil
}
