/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package cmd

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/fulmenhq/repodeploy/pkg/buildinfo"
	"github.com/spf13/cobra"
)

func newVersionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:         "version",
		Short:       "Show version information",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipSetup: "true"},
		RunE:        runVersion,
	}
	cmd.Flags().Bool("extended", false, "Show detailed build information")
	cmd.Flags().Bool("json", false, "Output version information in JSON format")
	return cmd
}

func runVersion(cmd *cobra.Command, _ []string) error {
	extended, _ := cmd.Flags().GetBool("extended")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	out := cmd.OutOrStdout()

	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]string{
			"version":       buildinfo.BinaryVersion,
			"moduleVersion": buildinfo.ModuleVersion(),
			"commit":        buildinfo.VCSRevision(),
			"buildDate":     buildinfo.BuildDate,
			"goVersion":     runtime.Version(),
			"platform":      runtime.GOOS + "/" + runtime.GOARCH,
		})
	}
	if extended {
		fmt.Fprintln(out, buildinfo.Summary())
		return nil
	}
	fmt.Fprintf(out, "repodeploy %s\n", buildinfo.BinaryVersion)
	return nil
}
