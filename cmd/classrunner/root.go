package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "CLASSRUNNER"

var (
	cfgFile string
	verbose bool
)

// rootCmd is the application entry point.
var rootCmd = &cobra.Command{
	Use:   "classrunner",
	Short: "Run code units from profile-selected packages",
	Long: `classrunner resolves a profile for the requester, collects the packages
the profile declares (following includes), loads the requested unit from
those packages and runs it. Stable packages stay loaded between runs;
snapshot packages are re-read every time.`,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		setupLogging()
	},
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.classrunner/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newProfilesCmd())
	rootCmd.AddCommand(newVersionCmd())
}

// initConfig settles the config file path and environment overrides.
// CLASSRUNNER_CONFIG, CLASSRUNNER_IDENTITY and friends override defaults;
// explicit flags win over both.
func initConfig() {
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.Set("config", cfgFile)
	}
	if viper.GetString("config") == "" {
		viper.SetDefault("config", filepath.Join(stateDir(), "config.yaml"))
	}
	if viper.GetString("selection-file") == "" {
		viper.SetDefault("selection-file", filepath.Join(stateDir(), "selection.yaml"))
	}
	if !verbose {
		verbose = viper.GetBool("verbose")
	}

	slog.Debug("using config file", "file", viper.GetString("config"))
}

// stateDir is ~/.classrunner, or the working directory when there is no home.
func stateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		slog.Warn("failed to find home directory", "error", err)
		return ".classrunner"
	}
	return filepath.Join(home, ".classrunner")
}

func setupLogging() {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	// Using TextHandler for CLI friendliness
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
}
