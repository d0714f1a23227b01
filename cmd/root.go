/*
Copyright © 2025 3 Leaps <info@3leaps.com>
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fulmenhq/repodeploy/internal/ops"
	"github.com/fulmenhq/repodeploy/pkg/buildinfo"
	"github.com/fulmenhq/repodeploy/pkg/config"
	"github.com/fulmenhq/repodeploy/pkg/exitcode"
	"github.com/fulmenhq/repodeploy/pkg/logger"
	"github.com/fulmenhq/repodeploy/pkg/registry"
	"github.com/fulmenhq/repodeploy/pkg/scheduler"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// skipSetup marks commands that run without configuration or logger.
const skipSetup = "repodeploy/skip-setup"

// app carries the per-invocation state shared by all subcommands. It is
// populated by the root PersistentPreRunE and released by close.
type app struct {
	v      *viper.Viper
	ops    *ops.Registry
	config *config.Config
	log    *logger.Logger
	store  *registry.Store
	sched  scheduler.Scheduler

	newScheduler func(*config.Config, *logger.Logger) scheduler.Scheduler
	executable   func() (string, error)
	now          func() time.Time
}

func newApp() *app {
	return &app{
		v:   config.New(),
		ops: ops.NewRegistry(),
		newScheduler: func(cfg *config.Config, log *logger.Logger) scheduler.Scheduler {
			return scheduler.NewAt(cfg.At.Binary, nil, log)
		},
		executable: os.Executable,
		now:        time.Now,
	}
}

// newRootCommand creates a fresh root command instance.
// This factory pattern allows tests to create isolated command trees without shared state.
func newRootCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repodeploy",
		Short: "Scheduled file deployments between git repositories",
		Long: `Repodeploy copies files selected by glob patterns from one git repository into
another at a scheduled time, then commits and pushes the result.

Examples:
   repodeploy validate hw3.yaml                 # Check an event file
   repodeploy plan hw3.yaml --source ../teachers --destination ../students
   repodeploy register hw3.yaml                 # Schedule the event with at(1)
   repodeploy list                              # Show registered events
   repodeploy run 3                             # Run event 3 now`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	// Add global flags
	cmd.PersistentFlags().String("log-level", "info", "Set log level (trace|debug|info|warn|error)")
	cmd.PersistentFlags().Bool("json", false, "Output logs in JSON format")
	cmd.PersistentFlags().Bool("no-color", false, "Disable colored output")
	cmd.PersistentFlags().Bool("no-op", false, "Clone and expand, but do not copy, commit or push")
	cmd.PersistentFlags().String("config", "", "Config file (default: repodeploy.yaml in ., $HOME or the config dir)")
	cmd.PersistentFlags().String("work-dir", "", "Directory holding per-run checkouts")
	cmd.PersistentFlags().String("db-path", "", "Event registry file")
	_ = a.v.BindPFlag("work_dir", cmd.PersistentFlags().Lookup("work-dir"))
	_ = a.v.BindPFlag("db_path", cmd.PersistentFlags().Lookup("db-path"))

	cmd.Version = buildinfo.BinaryVersion
	cmd.SetVersionTemplate("repodeploy {{.Version}}\n")

	// Grouped help by command group (Event → Workflow → Support)
	cmd.SetHelpFunc(func(c *cobra.Command, _ []string) {
		if c != c.Root() {
			if c.Long != "" {
				c.Println(c.Long)
			} else {
				c.Println(c.Short)
			}
			c.Println()
			c.Print(c.UsageString())
			return
		}
		c.Println(c.Long)
		for _, group := range ops.Groups {
			c.Println()
			c.Println(group.Title() + ":")
			for _, reg := range a.ops.GetCommandsByGroup(group) {
				c.Printf("  %-12s %s\n", reg.Name, reg.Description)
			}
		}
		c.Println()
		c.Println("Flags:")
		c.Print(c.LocalFlags().FlagUsages())
	})

	registerSubcommands(cmd, a)
	return cmd
}

// registerSubcommands adds all subcommands to the root command and the help registry.
func registerSubcommands(root *cobra.Command, a *app) {
	commands := []struct {
		cmd      *cobra.Command
		group    ops.CommandGroup
		category ops.CommandCategory
		desc     string
	}{
		{newRegisterCommand(a), ops.GroupEvent, ops.CategoryScheduling, "Register and schedule a deployment event"},
		{newDeregisterCommand(a), ops.GroupEvent, ops.CategoryScheduling, "Cancel and forget a registered event"},
		{newListCommand(a), ops.GroupEvent, ops.CategoryInventory, "List registered events and their schedule"},
		{newRunCommand(a), ops.GroupWorkflow, ops.CategoryExecution, "Run a registered event now"},
		{newPlanCommand(a), ops.GroupWorkflow, ops.CategoryValidation, "Show the copy operations of an event"},
		{newValidateCommand(a), ops.GroupWorkflow, ops.CategoryValidation, "Validate event files"},
		{newVersionCommand(), ops.GroupSupport, ops.CategoryInformation, "Show version information"},
	}
	for _, c := range commands {
		root.AddCommand(c.cmd)
		if err := a.ops.Register(c.cmd.Name(), c.group, c.category, c.cmd, c.desc); err != nil {
			panic(fmt.Sprintf("Failed to register %s command: %v", c.cmd.Name(), err))
		}
	}
}

// Execute builds the command tree, runs it and exits with the code matching
// the returned error.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	a := newApp()
	err := newRootCommand(a).ExecuteContext(ctx)
	stop()
	if err != nil {
		if a.log != nil {
			a.log.Error("Command execution failed", logger.Err(err))
		} else {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
	}
	_ = a.close()
	if err != nil {
		os.Exit(exitcode.FromError(err))
	}
}

// setup loads configuration and builds the logger, registry and scheduler.
func (a *app) setup(cmd *cobra.Command) error {
	if cmd.Annotations[skipSetup] == "true" {
		return nil
	}

	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(a.v, configFile)
	if err != nil {
		return err
	}

	log, err := initializeLogger(cmd, cfg)
	if err != nil {
		return err
	}
	if _, err := config.EnsureDir(filepath.Dir(cfg.DBPath)); err != nil {
		_ = log.Close()
		return err
	}

	a.config = cfg
	a.log = log
	a.store = registry.New(cfg.DBPath)
	a.sched = a.newScheduler(cfg, log)
	log.Debug("Configuration loaded",
		logger.String("config", a.v.ConfigFileUsed()),
		logger.String("work_dir", cfg.WorkDir),
		logger.String("db_path", cfg.DBPath))
	return nil
}

func (a *app) close() error {
	if a.log == nil {
		return nil
	}
	return a.log.Close()
}

// initializeLogger builds the logger from the global flags and the log section of cfg.
func initializeLogger(cmd *cobra.Command, cfg *config.Config) (*logger.Logger, error) {
	logLevelStr, _ := cmd.Flags().GetString("log-level")
	jsonLogs, _ := cmd.Flags().GetBool("json")
	noColor, _ := cmd.Flags().GetBool("no-color")
	noOp, _ := cmd.Flags().GetBool("no-op")

	lc := logger.Config{
		Level:     logger.ParseLevel(logLevelStr),
		UseColor:  !noColor,
		JSON:      jsonLogs,
		Component: cmd.Name(),
		NoOp:      noOp,
		Output:    cmd.ErrOrStderr(),
	}
	if cfg.Log.File {
		dir, err := config.EnsureDir(cfg.Log.Dir)
		if err != nil {
			return nil, err
		}
		lc.File = filepath.Join(dir, "repodeploy.log")
		lc.Backups = cfg.Log.Backups
	}
	return logger.New(lc)
}
