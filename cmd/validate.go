package cmd

import (
	"errors"
	"fmt"

	"github.com/fulmenhq/repodeploy/pkg/event"
	"github.com/spf13/cobra"
)

func newValidateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <config>...",
		Short: "Validate event files",
		Long: `Validate checks each event file against the event schema and the pattern rules.
JSON, YAML and TOML files are accepted.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runValidate(cmd, args)
		},
	}
}

func (a *app) runValidate(cmd *cobra.Command, paths []string) error {
	out := cmd.OutOrStdout()
	var errs []error
	for _, path := range paths {
		ev, err := event.Load(path)
		if err != nil {
			fmt.Fprintf(out, "%s: %v\n", path, err)
			errs = append(errs, err)
			continue
		}
		fmt.Fprintf(out, "%s: ok (%s, %d patterns, %s)\n",
			path, ev.Label(), len(ev.Patterns), ev.Date.Format("2006-01-02 15:04"))
	}
	return errors.Join(errs...)
}
