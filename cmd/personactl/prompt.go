package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/suPer8Hu/personapal/internal/bootstrap"
	"github.com/suPer8Hu/personapal/internal/config"
	"github.com/suPer8Hu/personapal/internal/prompt"
)

func newPromptCmd(load func() config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prompt",
		Short: "Work with persona system prompts",
	}

	var (
		a        prompt.Attributes
		template bool
	)
	preview := &cobra.Command{
		Use:   "preview",
		Short: "Print the system prompt a new persona would get",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if template {
				fmt.Fprintln(cmd.OutOrStdout(), prompt.Fallback(a))
				return nil
			}
			cfg := load()
			s := bootstrap.Synthesizer(cfg, bootstrap.Provider(cmd.Context(), cfg))
			fmt.Fprintln(cmd.OutOrStdout(), s.Synthesize(cmd.Context(), a))
			return nil
		},
	}
	f := preview.Flags()
	f.StringVar(&a.Name, "name", "", "persona name")
	f.StringVar(&a.Title, "title", "", "persona title")
	f.StringVar(&a.Description, "description", "", "persona description")
	f.StringSliceVar(&a.Traits, "traits", []string{"friendly", "helpful"}, "comma separated traits")
	f.StringVar(&a.Tone, "tone", "conversational", "speaking tone")
	f.BoolVar(&template, "template", false, "skip the model and print the fixed template")
	_ = preview.MarkFlagRequired("name")

	cmd.AddCommand(preview)
	return cmd
}
