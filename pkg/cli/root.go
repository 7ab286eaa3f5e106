package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	Version = "0.1.0"
	rootCmd *cobra.Command
	cfgFile string
	logger  = zap.NewNop()
)

func init() {
	rootCmd = &cobra.Command{
		Use:   "nessusview",
		Short: "Per-issue views, diffs and exports of Nessus scan results",
		Long: "nessusview loads .nessus scan exports, groups findings reported by many hosts into one entry per plugin,\n" +
			"shows where host outputs differ, and exports the result as CSV, text, HTML or PDF.",
		SilenceUsage:      true,
		PersistentPreRunE: setupLogger,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (yaml)")
	rootCmd.PersistentFlags().StringP("output", "o", "./nessusview-out", "Output directory")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().Int("context", 3, "Context lines around each change in diffs")
	_ = viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("diff.context", rootCmd.PersistentFlags().Lookup("context"))

	// Environment variable support (NESSUSVIEW_OUTPUT, NESSUSVIEW_DIFF_CONTEXT, etc.)
	viper.SetEnvPrefix("NESSUSVIEW")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
	cobra.OnInitialize(initConfig)

	// Subcommands
	rootCmd.AddCommand(newTreeCmd())
	rootCmd.AddCommand(newShowCmd())
	rootCmd.AddCommand(newExportCmd())
	rootCmd.AddCommand(newVersionCmd())
}

func initConfig() {
	if cfgFile == "" {
		return
	}
	viper.SetConfigFile(cfgFile)
	if err := viper.ReadInConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "⚠️  config %s: %v\n", cfgFile, err)
	}
}

func setupLogger(_ *cobra.Command, _ []string) error {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	if viper.GetBool("debug") {
		cfg = zap.NewDevelopmentConfig()
	}
	l, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger = l
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "nessusview %s\n", Version)
		},
	}
}

func Execute() {
	defer func() { _ = logger.Sync() }()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
