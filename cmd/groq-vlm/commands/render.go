package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spherical/groq-vlm/internal/prompt"
)

func newRenderCmd(a *app) *cobra.Command {
	var (
		pf     promptFlags
		inline string
	)

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a prompt template and print it",
		Long: `Render evaluates a prompt template with the configured context and any
--set overrides. Use --inline to render template text given on the
command line instead of a file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := templateContext(a.cfg, pf.sets)
			if err != nil {
				return err
			}

			var out string
			if cmd.Flags().Changed("inline") {
				out, err = prompt.RenderString(inline, ctx)
			} else {
				path := a.cfg.Prompt.TemplatePath
				if pf.template != "" {
					path = pf.template
				}
				out, err = prompt.RenderFile(path, ctx)
			}
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
			return err
		},
	}

	cmd.Flags().StringVarP(&pf.template, "template", "t", "", "prompt template path (default: prompt.template_path)")
	cmd.Flags().StringVar(&inline, "inline", "", "template text to render instead of a file")
	cmd.Flags().StringArrayVar(&pf.sets, "set", nil, "template variable override as key=value (repeatable)")
	cmd.MarkFlagsMutuallyExclusive("template", "inline")

	return cmd
}
