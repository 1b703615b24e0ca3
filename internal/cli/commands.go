package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"transcript-server/internal/bootstrap"
	"transcript-server/internal/config"
	"transcript-server/internal/diagnostics"
	"transcript-server/internal/domain"
	"transcript-server/internal/transcript"
)

func newServeCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server and transcription workers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, log, cleanup, err := opts.load()
			if err != nil {
				return err
			}
			defer cleanup()

			app, err := bootstrap.New(settings, log)
			if err != nil {
				return err
			}
			return app.Run(cmd.Context())
		},
	}
}

func newDoctorCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check external tools, directories and service settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, _, cleanup, err := opts.load()
			if err != nil {
				return err
			}
			defer cleanup()

			report := diagnostics.NewChecker().Run(settings)
			out := cmd.OutOrStdout()
			for _, item := range report.Items {
				fmt.Fprintf(out, "[%s] %-20s %s\n", item.Status, item.Name, item.Message)
				if item.Hint != "" {
					fmt.Fprintf(out, "       %-20s %s\n", "", item.Hint)
				}
			}
			if report.HasFailures {
				return fmt.Errorf("%d check(s) failed", len(report.Failed()))
			}
			return nil
		},
	}
}

func newNormalizeCommand() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "normalize <raw.json>",
		Short: "Normalize a stored recognition payload into a transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			words, err := transcript.NormalizeRaw(raw)
			if err != nil {
				return err
			}
			doc := domain.Transcript{Words: words}

			out := cmd.OutOrStdout()
			switch format {
			case "json":
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(doc)
			case "txt":
				_, err := fmt.Fprint(out, transcript.RenderText(doc))
				return err
			default:
				return fmt.Errorf("unsupported format %q", format)
			}
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "output format: json or txt")
	return cmd
}

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "init <path>",
		Short: "Write a configuration file with default settings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(args[0]); err == nil {
				return fmt.Errorf("%s already exists", args[0])
			}
			if err := config.NewFileStore(args[0]).Save(config.DefaultSettings()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", args[0])
			return nil
		},
	})
	return cmd
}
