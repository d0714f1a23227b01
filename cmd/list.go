package cmd

import (
	"fmt"
	"strconv"

	"github.com/fulmenhq/repodeploy/pkg/logger"
	"github.com/fulmenhq/repodeploy/pkg/registry"
	"github.com/fulmenhq/repodeploy/pkg/scheduler"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func newListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered events and their schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runList(cmd)
		},
	}
}

func (a *app) runList(cmd *cobra.Command) error {
	entries, err := a.store.Load()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(out, "No events registered")
		return nil
	}

	queued := map[int]scheduler.Job{}
	if a.sched.Available() {
		jobs, err := a.sched.List(cmd.Context())
		if err != nil {
			a.log.Warn("Could not read the at queue", logger.Err(err))
		}
		for _, job := range jobs {
			queued[job.ID] = job
		}
	}

	ids := make([]string, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	registry.SortIDs(ids)

	table := tablewriter.NewWriter(out)
	table.Header([]string{"ID", "Job", "Scheduled", "Config"})
	for _, id := range ids {
		entry := entries[id]
		when := "-"
		if job, ok := queued[entry.JobID]; ok {
			when = job.When
		}
		if err := table.Append([]string{id, strconv.Itoa(entry.JobID), when, entry.ConfigPath}); err != nil {
			return err
		}
	}
	return table.Render()
}
