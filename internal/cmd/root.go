package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/testrun/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "testrun",
	Short: "Test-run workflows against a remote runtime",
	Long: `Testrun validates a workflow document and its inputs, submits it to a
remote workflow runtime, and follows the task's progress until it finishes.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config file (default is $HOME/.config/testrun/config.yaml)")
	rootCmd.PersistentFlags().String("runtime-url", "", "runtime base URL (overrides runtime.base_url)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("runtime.base_url", rootCmd.PersistentFlags().Lookup("runtime-url"))
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("TESTRUN")
	// Replace dots with underscores for nested keys in env vars
	// e.g., TESTRUN_RUNTIME_BASE_URL for runtime.base_url
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
