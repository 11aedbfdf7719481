// Command personactl is the operator CLI for persona data.
package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/suPer8Hu/personapal/internal/config"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "personactl",
		Short:         "Inspect and maintain PersonaPal personas",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newPersonasCmd(config.Load), newPromptCmd(config.Load))
	return root
}

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[personactl] .env not loaded: %v", err)
	}
	if err := newRootCmd().Execute(); err != nil {
		log.Printf("[personactl] %v", err)
		os.Exit(1)
	}
}
