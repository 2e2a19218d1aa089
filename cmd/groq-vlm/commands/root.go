// Package commands implements the groq-vlm command tree.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/spherical/groq-vlm/cmd/groq-vlm/ui"
	"github.com/spherical/groq-vlm/internal/config"
	"github.com/spherical/groq-vlm/internal/observability"
)

// app carries the state shared by every subcommand.
type app struct {
	cfgFile string
	verbose bool
	noColor bool

	cfg    *config.Config
	logger *observability.Logger
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "groq-vlm",
		Short: "Convert PDF documents to markdown with a vision-language model",
		Long: `groq-vlm renders each PDF page to an image and asks a remote
vision-language model (Groq by default) to transcribe it.

The prompt is a Jinja-style template rendered with a configurable context.
Set GROQ_API_KEY in the environment or in a .env file before converting.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			ui.InitUI(a.noColor, a.verbose)

			if err := config.LoadDotEnv(); err != nil {
				return err
			}

			cfg, err := config.Load(a.cfgFile)
			if err != nil {
				return err
			}
			a.cfg = cfg

			level := cfg.Observability.LogLevel
			if a.verbose {
				level = "debug"
			}
			a.logger = observability.NewLogger(observability.LogConfig{
				Level:       level,
				Format:      cfg.Observability.LogFormat,
				Output:      cmd.ErrOrStderr(),
				ServiceName: "groq-vlm",
			})

			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "", "config file path (default: built-in defaults and env vars)")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&a.noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(newConvertCmd(a))
	rootCmd.AddCommand(newRenderCmd(a))
	rootCmd.AddCommand(newOptionsCmd(a))

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
