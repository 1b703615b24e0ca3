// Package cli defines the transcript-server command line.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"transcript-server/internal/config"
	"transcript-server/internal/domain"
	"transcript-server/internal/logging"
)

const defaultConfigPath = "transcript-server.yaml"

type options struct {
	configPath string
	verbose    bool
}

// Execute runs the root command with signal-aware context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCommand().ExecuteContext(ctx)
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "transcript-server",
		Short: "Asynchronous audio transcription service",
		Long: `transcript-server accepts audio uploads, converts them with ffmpeg,
sends them to a speech recognition service and serves speaker-segmented
transcripts over HTTP.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", defaultConfigPath, "configuration file")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newServeCommand(opts),
		newDoctorCommand(opts),
		newNormalizeCommand(),
		newConfigCommand(),
	)
	return root
}

// load reads settings and builds the logger they describe.
func (o *options) load() (domain.Settings, *logrus.Logger, func(), error) {
	settings, err := config.NewFileStore(o.configPath).Load()
	if err != nil {
		return domain.Settings{}, nil, nil, fmt.Errorf("load settings: %w", err)
	}
	if o.verbose {
		settings.Log.Level = "debug"
	}
	log, cleanup, err := logging.New(settings.Log)
	if err != nil {
		return domain.Settings{}, nil, nil, fmt.Errorf("configure logging: %w", err)
	}
	return settings, log, cleanup, nil
}
