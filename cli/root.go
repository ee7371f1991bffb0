// Package cli holds the windowtracker commands.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"windowtracker/config"
	"windowtracker/launch"
	"windowtracker/logging"
)

type app struct {
	configFile string
	quiet      bool

	cfg      *config.Config
	logger   *zap.Logger
	closeLog func()

	stdout io.Writer
	stderr io.Writer

	// passed to every launch.NewApp, before the command's own options
	appOpts []launch.AppOption
}

func NewRootCommand() *cobra.Command {
	return newRootCommand(os.Stdout, os.Stderr)
}

func newRootCommand(out, errOut io.Writer, appOpts ...launch.AppOption) *cobra.Command {
	a := &app{stdout: out, stderr: errOut, closeLog: func() {}, appOpts: appOpts}

	cmd := &cobra.Command{
		Use:           "windowtracker",
		Short:         "Log which window has the focus and how long it keeps it",
		Long:          "windowtracker polls the foreground window, logs every focus change with the time spent in the previous window to SQLite, and renders the log as an HTML report.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.closeLog()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runTray(cmd.Context())
		},
	}
	cmd.SetOut(out)
	cmd.SetErr(errOut)

	cmd.PersistentFlags().StringVar(&a.configFile, "config", "", "config file (default: ./config.yaml or ~/.windowtracker/config.yaml)")
	cmd.PersistentFlags().BoolVarP(&a.quiet, "quiet", "q", false, "do not log to stderr")

	cmd.AddCommand(
		newTrayCmd(a),
		newTrackCmd(a),
		newReportCmd(a),
		newSampleCmd(a),
		newServeCmd(a),
	)
	return cmd
}

// Execute runs the command line and returns the exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := NewRootCommand()
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

func (a *app) init() error {
	cfg, err := config.Load(a.configFile)
	if err != nil {
		return err
	}
	logger, closeLog, err := logging.New(logging.Options{
		Level:      cfg.LogLevel,
		File:       cfg.LogPath(),
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
		Quiet:      a.quiet,
	})
	if err != nil {
		return err
	}
	a.cfg, a.logger, a.closeLog = cfg, logger, closeLog
	return nil
}

func (a *app) open(ctx context.Context, opts ...launch.AppOption) (*launch.App, error) {
	all := append(append([]launch.AppOption{}, a.appOpts...), opts...)
	return launch.NewApp(ctx, a.cfg, a.logger, all...)
}

func newTrayCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tray",
		Short: "Run in the notification area (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runTray(cmd.Context())
		},
	}
}

func (a *app) runTray(ctx context.Context) error {
	application, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer application.Close()
	launch.StartProgramme(ctx, application)
	return nil
}
