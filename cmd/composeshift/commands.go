package main

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/artpar/composeshift/internal/core/manifest"
	"github.com/artpar/composeshift/internal/core/rollout"
	"github.com/artpar/composeshift/internal/shell/journal"
	"github.com/artpar/composeshift/internal/shell/lifecycle"
	"github.com/spf13/cobra"
)

func newRootCmd(d deps) *cobra.Command {
	a := newApp(d)

	root := &cobra.Command{
		Use:   "composeshift",
		Short: "Translate compose files into OpenShift manifests and deploy them",
		Long: `composeshift turns the services of a compose file into Deployment and
Service manifests, writes them to disk, and can create or delete them on an
OpenShift cluster through the oc command-line tool.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(a.configPath, cmd.Flags())
			if err != nil {
				return err
			}
			a.setup(cfg)
			return nil
		},
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	root.SetVersionTemplate(fmt.Sprintf("composeshift %s (built %s)\n", Version, BuildTime))

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "path to config file")
	flags.String("prefix", "", "prefix for generated resource names")
	flags.String("project", "", "cluster project to deploy into")
	flags.String("output-dir", "", "directory for generated manifests (default \".\")")
	flags.String("templates-dir", "", "directory with pod.yml and service.yml overrides (default \"templates\")")
	flags.String("oc-binary", "", "cluster CLI to invoke (default \"oc\")")
	flags.String("server", "", "API server used when logging in")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("log-format", "", "log format: text or json")
	flags.String("journal", "", "SQLite file recording run history (empty disables)")

	root.AddCommand(
		newGenerateCmd(a),
		newUpCmd(a),
		newDownCmd(a),
		newHistoryCmd(a),
	)
	return root
}

// =============================================================================
// generate
// =============================================================================

func newGenerateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "generate [compose-file]",
		Short: "Write manifests without touching the cluster",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.cfg.Validate(rollout.ModeGenerate); err != nil {
				return err
			}
			_, spec, err := a.loadDescriptor(cmd.Context(), args)
			if err != nil {
				return err
			}
			_, files, err := a.generate(spec)
			if err != nil {
				return err
			}
			for _, f := range files {
				fmt.Fprintln(a.stdout, f.Deployment)
				if f.Service != "" {
					fmt.Fprintln(a.stdout, f.Service)
				}
			}
			return nil
		},
	}
}

// =============================================================================
// up
// =============================================================================

func newUpCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "up [compose-file]",
		Short: "Write manifests and create them on the cluster",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.cfg.Validate(rollout.ModeUp); err != nil {
				return err
			}
			path, spec, err := a.loadDescriptor(ctx, args)
			if err != nil {
				return err
			}
			results, files, err := a.generate(spec)
			if err != nil {
				return err
			}

			started := time.Now()
			report, err := a.orchestrator().Up(ctx, units(results, files))
			if err != nil {
				return err
			}
			if report.Routes != "" {
				fmt.Fprint(a.stdout, report.Routes)
			}
			return a.finish(ctx, report, path, started)
		},
	}
}

// =============================================================================
// down
// =============================================================================

func newDownCmd(a *app) *cobra.Command {
	var (
		all     bool
		service string
	)

	cmd := &cobra.Command{
		Use:   "down [compose-file]",
		Short: "Delete the resources of one or every service",
		Long: `Delete cluster resources by their group label. With --all every service of
the compose file is deleted; otherwise only --service, or a service chosen
interactively. Local manifest files are not needed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.cfg.Validate(downMode(all)); err != nil {
				return err
			}
			path, spec, err := a.loadDescriptor(ctx, args)
			if err != nil {
				return err
			}

			naming := manifest.NamingContext{Prefix: a.cfg.Prefix}
			started := time.Now()
			report, err := a.orchestrator().Down(ctx, deletionUnits(spec, naming), lifecycle.DownOptions{
				All:     all,
				Service: service,
			})
			if err != nil {
				return err
			}
			return a.finish(ctx, report, path, started)
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "delete every service")
	cmd.Flags().StringVar(&service, "service", "", "compose service to delete")
	cmd.MarkFlagsMutuallyExclusive("all", "service")
	return cmd
}

// =============================================================================
// history
// =============================================================================

func newHistoryCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.requireJournal()
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(a.stdout, "No runs recorded.")
				return nil
			}

			w := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "RUN ID\tMODE\tPROJECT\tPREFIX\tSTARTED\tUNITS\tFAILED\tSTATUS")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
					shortID(r.ID), r.Mode, r.Project, r.Prefix,
					r.StartedAt.Local().Format(time.DateTime),
					r.UnitCount, r.FailedCount, status(r.Succeeded))
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", journal.DefaultListLimit, "maximum number of runs to list")

	cmd.AddCommand(&cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run and the outcome of each service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.requireJournal()
			if err != nil {
				return err
			}
			defer store.Close()

			run, err := store.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printRun(a, run)
			return nil
		},
	})
	return cmd
}

func (a *app) requireJournal() (*journal.Store, error) {
	if a.cfg.Journal.Path == "" {
		return nil, ErrJournalDisabled
	}
	return a.openJournal()
}

func printRun(a *app, run *journal.Run) {
	out := a.stdout
	fmt.Fprintf(out, "Run:        %s\n", run.ID)
	fmt.Fprintf(out, "Mode:       %s\n", run.Mode)
	fmt.Fprintf(out, "Project:    %s\n", run.Project)
	fmt.Fprintf(out, "Prefix:     %s\n", run.Prefix)
	fmt.Fprintf(out, "Descriptor: %s\n", run.Descriptor)
	fmt.Fprintf(out, "Started:    %s\n", run.StartedAt.Local().Format(time.DateTime))
	fmt.Fprintf(out, "Duration:   %s\n", run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
	fmt.Fprintf(out, "Status:     %s\n", status(run.Succeeded))
	fmt.Fprintln(out)

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SERVICE\tNAME\tSTATE\tREACHED\tERROR")
	for _, u := range run.Units {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", u.Service, u.Name, u.State, u.Reached, u.Error)
	}
	w.Flush()

	if run.Routes != "" {
		fmt.Fprintln(out)
		fmt.Fprint(out, run.Routes)
		if !strings.HasSuffix(run.Routes, "\n") {
			fmt.Fprintln(out)
		}
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func status(succeeded bool) string {
	if succeeded {
		return "succeeded"
	}
	return "failed"
}
