package cmd

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/fulmenhq/repodeploy/pkg/event"
	"github.com/fulmenhq/repodeploy/pkg/pattern"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func newPlanCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan <config>",
		Short: "Show the copy operations of an event",
		Long: `Plan expands the event's patterns against two local checkouts and prints the
resulting copy operations without touching either tree.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runPlan(cmd, args[0])
		},
	}
	cmd.Flags().String("source", "", "Local checkout of the origin repository")
	cmd.Flags().String("destination", "", "Local checkout of the destination repository")
	_ = cmd.MarkFlagRequired("source")
	_ = cmd.MarkFlagRequired("destination")
	return cmd
}

func (a *app) runPlan(cmd *cobra.Command, path string) error {
	ev, err := event.Load(path)
	if err != nil {
		return err
	}
	src, _ := cmd.Flags().GetString("source")
	dst, _ := cmd.Flags().GetString("destination")
	if src, err = filepath.Abs(src); err != nil {
		return err
	}
	if dst, err = filepath.Abs(dst); err != nil {
		return err
	}

	opts, err := a.config.ExpandOptions()
	if err != nil {
		return err
	}
	ops, err := pattern.NewExpander(opts, a.log).Expand(src, dst, ev.Patterns)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(ops) == 0 {
		fmt.Fprintln(out, "No files matched")
		return nil
	}
	table := tablewriter.NewWriter(out)
	table.Header([]string{"#", "Source", "Destination"})
	for i, op := range ops {
		if err := table.Append([]string{strconv.Itoa(i + 1), relativeTo(src, op.Source), relativeTo(dst, op.Destination)}); err != nil {
			return err
		}
	}
	return table.Render()
}

func relativeTo(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}
