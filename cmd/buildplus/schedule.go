package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/stellarlinkco/buildplus/internal/config"
	"github.com/stellarlinkco/buildplus/internal/localtools"
	"github.com/stellarlinkco/buildplus/internal/schedule"
)

func (a *app) scheduler() (*schedule.Service, error) {
	s := schedule.NewService(a.cfg.Resolve(config.DefaultScheduleStore), a.logger)
	if err := s.Load(); err != nil {
		return nil, fmt.Errorf("load schedule state: %w", err)
	}
	if err := s.Sync(a.cfg.Schedules); err != nil {
		return nil, err
	}
	s.OnJob = schedule.Actions{
		UpdateTools: func(ctx context.Context) (string, error) {
			report, err := localtools.UpdateLocalTools(ctx, a.rt)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%d updated, %d failed", len(report.Updated), len(report.Failed)), nil
		},
		RunTool: func(ctx context.Context, name string) (string, error) {
			lines, err := a.registry.Run(ctx, name)
			return fmt.Sprintf("%d lines", len(lines)), err
		},
	}.Handler()
	return s, nil
}

func newScheduleCmd(load loader) *cobra.Command {
	scheduleCmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run maintenance jobs on cron schedules",
	}
	scheduleCmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List scheduled jobs and their last run",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := load()
				if err != nil {
					return err
				}
				s, err := a.scheduler()
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "NAME\tCRON\tACTION\tENABLED\tLAST\tNEXT")
				now := time.Now()
				for _, job := range s.ListJobs() {
					last := "-"
					if !job.State.LastRunAt.IsZero() {
						last = job.State.LastRunAt.Format(time.RFC3339) + " " + job.State.LastStatus
					}
					next := "-"
					if t := s.NextRun(job.Name, now); !t.IsZero() {
						next = t.Format(time.RFC3339)
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%v\t%s\t%s\n", job.Name, job.Cron, job.Action, job.Enabled, last, next)
				}
				return tw.Flush()
			},
		},
		&cobra.Command{
			Use:   "run <name>",
			Short: "Run a scheduled job now",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := load()
				if err != nil {
					return err
				}
				s, err := a.scheduler()
				if err != nil {
					return err
				}
				job, err := s.RunNow(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(a.stdout, "%s: %s (runs: %d)\n", job.Name, job.State.LastStatus, job.State.Runs)
				return nil
			},
		},
		&cobra.Command{
			Use:   "serve",
			Short: "Run the scheduler until interrupted",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := load()
				if err != nil {
					return err
				}
				s, err := a.scheduler()
				if err != nil {
					return err
				}
				if err := s.Start(cmd.Context()); err != nil {
					return err
				}
				<-cmd.Context().Done()
				s.Stop()
				return nil
			},
		},
	)
	return scheduleCmd
}
