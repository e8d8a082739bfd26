package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harun/telsh/internal/config"
)

var (
	configureToken     string
	configureAllowlist []int64
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Write the telsh configuration file",
	Long: `Write the telsh configuration file with the given bot token and
user allowlist, keeping defaults for everything else. Existing settings
in the file are preserved unless overridden here.`,
	RunE: runConfigure,
}

func init() {
	configureCmd.Flags().StringVar(&configureToken, "token", "", "Telegram bot token")
	configureCmd.Flags().Int64SliceVar(&configureAllowlist, "allow", nil, "Telegram user IDs allowed to use the bot")
	rootCmd.AddCommand(configureCmd)
}

func runConfigure(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader(cfgFile)

	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if configureToken != "" {
		cfg.Telegram.BotToken = configureToken
	}
	if len(configureAllowlist) > 0 {
		cfg.Telegram.Allowlist = configureAllowlist
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := loader.Save(cfg); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	fmt.Printf("Configuration saved to: %s\n", loader.GetConfigPath())
	fmt.Println("You can now start telsh with: telsh start")
	return nil
}
