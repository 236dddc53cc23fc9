package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bryanwahyu/feedback-ai/internal/app"
	"github.com/bryanwahyu/feedback-ai/internal/config"
	domain "github.com/bryanwahyu/feedback-ai/internal/domain/submissions"
	"github.com/bryanwahyu/feedback-ai/internal/logger"
	"github.com/bryanwahyu/feedback-ai/internal/middleware"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "feedbackctl: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	configPath string
	verbose    bool
}

func newRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "feedbackctl",
		Short: "Admin CLI for the feedback service",
		Long: `feedbackctl reads the same configuration as the API server and works
directly against the configured store: list submissions, print analytics,
export a snapshot or finish annotations left in processing.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.verbose {
				logger.Init("debug", "text")
				logger.Log.SetOutput(cmd.ErrOrStderr())
			} else {
				logger.Discard()
			}
		},
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", config.Path(), "Config file")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log to stderr")
	cmd.AddCommand(
		newListCmd(opts),
		newStatsCmd(opts),
		newAnalyticsCmd(opts),
		newExportCmd(opts),
		newResumeCmd(opts),
	)
	return cmd
}

// withApp loads config, builds the application and closes it afterwards.
// Read-only commands open the json store without its lock so they can run
// next to a live server.
func withApp(cmd *cobra.Command, opts *options, readOnly bool, fn func(ctx context.Context, a *app.Application) error) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	cfg.Storage.ReadOnly = readOnly
	ctx := cmd.Context()
	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func newListCmd(opts *options) *cobra.Command {
	var (
		rating string
		date   string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List submissions newest-first",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := middleware.ParseRating(rating)
			if err != nil {
				return err
			}
			return withApp(cmd, opts, true, func(ctx context.Context, a *app.Application) error {
				list, err := a.Submissions.List(ctx, domain.Query{Rating: r, Date: date})
				if err != nil {
					return err
				}
				if limit > 0 && len(list) > limit {
					list = list[:limit]
				}
				return printJSON(cmd.OutOrStdout(), list)
			})
		},
	}
	cmd.Flags().StringVar(&rating, "rating", "", "Only this star rating (1-5)")
	cmd.Flags().StringVar(&date, "date", "", "Only this day (YYYY-MM-DD)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Max rows (0 = all)")
	return cmd
}

func newStatsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print total, average and distribution",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, true, func(ctx context.Context, a *app.Application) error {
				st, err := a.Analytics.Stats(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), st)
			})
		},
	}
}

func newAnalyticsCmd(opts *options) *cobra.Command {
	var (
		q      domain.Query
		rating string
		window string
	)
	cmd := &cobra.Command{
		Use:   "analytics",
		Short: "Print the analytics report",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := middleware.ParseRating(rating)
			if err != nil {
				return err
			}
			dr, err := middleware.ValidateDateRange(window)
			if err != nil {
				return err
			}
			q.Rating, q.DateRange = r, dr
			return withApp(cmd, opts, true, func(ctx context.Context, a *app.Application) error {
				report, err := a.Analytics.Analytics(ctx, q)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), report)
			})
		},
	}
	cmd.Flags().StringVar(&window, "range", "all", "all, week, month, year or custom")
	cmd.Flags().StringVar(&rating, "rating", "", "Only this star rating (1-5)")
	cmd.Flags().StringVar(&q.StartDate, "start", "", "Start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&q.EndDate, "end", "", "End date, inclusive (YYYY-MM-DD)")
	return cmd
}

func newExportCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Upload a JSON snapshot of all submissions to object storage",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, true, func(ctx context.Context, a *app.Application) error {
				location, err := a.Submissions.Export(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), location)
				return nil
			})
		},
	}
}

func newResumeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Annotate records still in processing and wait for them",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, false, func(ctx context.Context, a *app.Application) error {
				n, err := a.Pipeline.Resume(ctx)
				if err != nil {
					return err
				}
				if err := a.Pipeline.Drain(ctx); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "resumed %d submission(s)\n", n)
				return nil
			})
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
