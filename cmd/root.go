package cmd

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/logger"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "face-attendance",
	Short: "Mark event attendance from group photos by face recognition",
	Long: `Face Attendance reconciles event photos against the gallery of enrolled
volunteers. Faces are extracted by an external embedding service, matched
one-to-one against the event gallery and recorded as attendance.

It runs as an HTTP API (serve) or offline from the command line (match).`,
	SilenceUsage: true,
}

// Root returns the root command for the executor in main.
func Root() *cobra.Command {
	return rootCmd
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (trace, debug, info, warn, error); overrides LOG_LEVEL")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()

	cfg := config.Load()
	level := cfg.Log.Level
	if logLevel != "" {
		level = logLevel
	}
	logger.Init(logger.Options{Level: level, Format: cfg.Log.Format})
}
