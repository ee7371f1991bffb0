package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"windowtracker/launch"
	"windowtracker/status"
	"windowtracker/validate"
)

func newTrackCmd(a *app) *cobra.Command {
	var (
		interval string
		duration time.Duration
		finalize bool
	)
	cmd := &cobra.Command{
		Use:   "track",
		Short: "Track in the foreground until interrupted, then write the report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("finalize") {
				a.cfg.FinalizeOnStop = finalize
			}
			application, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer application.Close()
			if application.Tracker == nil {
				return application.ProbeErr
			}

			if interval != "" {
				ms, clamped, err := validate.ParseInterval(interval)
				if err != nil {
					return err
				}
				if clamped {
					fmt.Fprintf(a.stderr, "interval must be between %d and %d ms, using %d\n", validate.MinIntervalMs, validate.MaxIntervalMs, ms)
				}
				application.Tracker.SetPollingInterval(ms)
			}

			msgs, detach := application.Feed.SubscribeDrained()
			printed := make(chan struct{})
			go func() {
				defer close(printed)
				for msg := range msgs {
					if msg.Kind != status.KindState {
						fmt.Fprintln(a.stdout, msg.Text)
					}
				}
			}()

			ctx := cmd.Context()
			if duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, duration)
				defer cancel()
			}
			res, err := application.Tracker.Run(ctx)
			// the report line is published before Run returns
			detach()
			<-printed
			if err != nil {
				return err
			}
			a.logger.Info("session over", zap.String("session", res.SessionID), zap.Int("records", res.Records))
			return nil
		},
	}
	cmd.Flags().StringVar(&interval, "interval", "", "polling interval in ms (10-2000)")
	cmd.Flags().DurationVar(&duration, "for", 0, "stop after this long (default: until interrupted)")
	cmd.Flags().BoolVar(&finalize, "finalize", false, "log the time spent in the last window when stopping")
	return cmd
}

func newReportCmd(a *app) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Write the HTML report from the current log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := a.open(cmd.Context(), launch.WithoutProbe())
			if err != nil {
				return err
			}
			defer application.Close()

			if out == "" {
				out = a.cfg.ReportPath()
			}
			res, err := application.Reports.Build(cmd.Context(), out)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "%s%s (%s rows, %s)\n", status.ReportPrefix, res.Path,
				humanize.Comma(int64(res.Rows)), humanize.Bytes(uint64(res.Bytes)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default: report_file in the data directory)")
	return cmd
}

func newSampleCmd(a *app) *cobra.Command {
	var fill, flush bool
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Fill the log with three synthetic days",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := a.open(cmd.Context(), launch.WithoutProbe())
			if err != nil {
				return err
			}
			defer application.Close()

			st, err := application.Sampler.Populate(cmd.Context(), fill, flush)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "deleted %s, inserted %s lines (%s of activity)\n",
				humanize.Comma(st.Deleted), humanize.Comma(int64(st.Inserted)),
				time.Duration(st.Seconds*float64(time.Second)).Round(time.Second))
			return nil
		},
	}
	cmd.Flags().BoolVar(&fill, "fill", true, "insert the synthetic days")
	cmd.Flags().BoolVar(&flush, "flush", false, "delete every logged line first")
	return cmd
}

func newServeCmd(a *app) *cobra.Command {
	var (
		addr  string
		track bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the web viewer and control API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = a.cfg.ListenAddr
			}
			application, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer application.Close()

			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				return application.Server(ctx).Serve(ctx, addr)
			})
			if track {
				if application.Tracker == nil {
					return application.ProbeErr
				}
				g.Go(func() error {
					_, err := application.Tracker.Run(ctx)
					return err
				})
			}
			fmt.Fprintf(a.stdout, "viewer on http://%s\n", addr)
			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: listen_addr from the config)")
	cmd.Flags().BoolVar(&track, "track", false, "start tracking right away")
	return cmd
}
