package commands

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/spherical/groq-vlm/internal/config"
	"github.com/spherical/groq-vlm/internal/vlm"
)

type optionsView struct {
	Config *config.Config          `json:"config"`
	VLM    *vlm.RemoteModelConfig `json:"vlm"`
	Prompt string                  `json:"prompt"`
}

func newOptionsCmd(a *app) *cobra.Command {
	var (
		pf promptFlags
		mf modelFlags
	)

	cmd := &cobra.Command{
		Use:   "options",
		Short: "Print the resolved configuration and remote model options",
		Long: `Options builds the remote model options exactly as convert would and
prints them as JSON. The API key is masked.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			if err := applyModelFlags(cfg, mf); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			creds, err := loadCredentials(cfg)
			if err != nil {
				return err
			}

			promptSpec, err := buildPrompt(cfg, pf)
			if err != nil {
				return err
			}

			vlmCfg, err := buildVLMConfig(cfg, creds, promptSpec)
			if err != nil {
				return err
			}

			view := optionsView{Config: cfg, VLM: vlmCfg.Redacted(), Prompt: "<rendered per page>"}
			if text, ok := promptSpec.Literal(); ok {
				view.Prompt = text
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(view)
		},
	}

	cmd.Flags().StringVarP(&pf.template, "template", "t", "", "prompt template path (default: prompt.template_path)")
	cmd.Flags().StringArrayVar(&pf.sets, "set", nil, "template variable override as key=value (repeatable)")
	cmd.Flags().BoolVar(&pf.perPage, "per-page", false, "render the template per page")
	cmd.Flags().StringVarP(&mf.model, "model", "m", "", "model identifier")
	cmd.Flags().StringVarP(&mf.format, "format", "f", "", "response format: markdown, plaintext or json")

	return cmd
}
