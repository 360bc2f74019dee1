package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nailyard/migracheck/internal/config"
)

// ConfigOptions holds flags for the config subcommands.
type ConfigOptions struct {
	*RootOptions
	Artifacts string
	Database  string
	Output    string
}

// NewConfigCommand creates the config command with its render and validate
// subcommands.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ConfigOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Render or validate the generated settings document",
	}

	render := &cobra.Command{
		Use:   "render",
		Short: "Render the settings document for a database",
		Long: `Render the settings document the management tooling would receive.

Useful for inspecting the exact connection parameters and derived paths
before running a check, or for driving the tooling by hand.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigRender(opts, cmd)
		},
	}
	render.Flags().StringVar(&opts.Artifacts, "artifacts",
		envOr("MIGRACHECK_ARTIFACTS", "/tmp/migracheck"), "artifact root directory")
	render.Flags().StringVar(&opts.Database, "db",
		envOr("MIGRACHECK_DB", "openstack_citest"), "logical database name")
	render.Flags().StringVarP(&opts.Output, "output", "o", "", "write to file instead of stdout")

	validate := &cobra.Command{
		Use:           "validate <settings-file>",
		Short:         "Validate a settings document against the schema",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigValidate(opts, args[0], cmd)
		},
	}

	cmd.AddCommand(render)
	cmd.AddCommand(validate)
	return cmd
}

func runConfigRender(opts *ConfigOptions, cmd *cobra.Command) error {
	settings := config.Render(opts.Artifacts, opts.Database)

	if opts.Output != "" {
		if err := settings.WriteFile(opts.Output); err != nil {
			return WrapExitError(ExitCommandError, "failed to write settings", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Settings written to %s\n", opts.Output)
		return nil
	}

	data, err := settings.Marshal()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to render settings", err)
	}
	if opts.Format == "json" {
		formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
		return formatter.Success(settings)
	}
	fmt.Fprint(cmd.OutOrStdout(), string(data))
	return nil
}

func runConfigValidate(opts *ConfigOptions, path string, cmd *cobra.Command) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read settings file", err)
	}
	if err := config.Validate(data); err != nil {
		return WrapExitError(ExitFailure, fmt.Sprintf("settings file %s is invalid", path), err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Settings file %s is valid.\n", path)
	return nil
}
