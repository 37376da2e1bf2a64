// init.go implements the "scry init" command which creates the .scry
// directory and default configuration.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/scry-dev/scry/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize scry in the current directory",
	Long: `Create the .scry/ directory with a default config.yaml. Edit the
config to choose the LLM backend (gemini or ollama), model, and the
review policy applied to new sessions.`,
	RunE: runInit,
}

var (
	backendFlag string
	modelFlag   string
	forceFlag   bool
)

func init() {
	initCmd.Flags().StringVar(&backendFlag, "backend", "", "LLM backend: gemini or ollama (default: gemini)")
	initCmd.Flags().StringVar(&modelFlag, "model", "", "Model name for the chosen backend")
	initCmd.Flags().BoolVar(&forceFlag, "force", false, "Overwrite an existing config")
}

func runInit(cmd *cobra.Command, args []string) error {
	dir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting working directory: %w", err)
	}

	if _, err := config.ReadConfig(dir); err == nil && !forceFlag {
		return fmt.Errorf(".scry/config.yaml already exists (use --force to overwrite)")
	}

	cfg := config.DefaultConfig()
	if backendFlag != "" {
		cfg.LLM.Backend = backendFlag
	}
	if modelFlag != "" {
		cfg.LLM.Model = modelFlag
	}

	if err := config.WriteConfig(dir, cfg); err != nil {
		return err
	}

	fmt.Println("Initialized .scry/config.yaml")
	if cfg.LLM.Backend == "gemini" {
		fmt.Println("Set GEMINI_API_KEY in your environment (or a .env file) before running.")
	}
	fmt.Println("Start a session with: scry run \"your research question\"")
	return nil
}
