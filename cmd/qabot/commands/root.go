package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/qabot/internal/app"
	"github.com/joseph-ayodele/qabot/internal/common"
)

var (
	configPath string
	logLevel   string
	logFormat  string

	// loaded by the root command before any subcommand runs
	cfg    *common.Config
	logger *slog.Logger
)

// newApp is swapped in tests to inject a stub oracle.
var newApp = func(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*app.App, error) {
	return app.New(ctx, cfg, logger, app.Options{})
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "qabot",
	Short: "QAbot - tone-of-voice compliance checker",
	Long: `QAbot checks a document against a client's tone-of-voice rules.

Rules live in a spreadsheet with one tab per client. Each tab has "Rule Name",
"Rule" and (optionally) "Market" columns; rows marked "All" apply to every market.
A language model judges the document against the rules in batches and QAbot
reports every violation, numbered across the whole rule set.

Configuration comes from a YAML file (--config or QABOT_CONFIG) with environment
overrides such as OPENAI_API_KEY, QABOT_RULES_WORKBOOK and QABOT_MODE.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = newLogger(cmd.ErrOrStderr(), logLevel, logFormat)
		slog.SetDefault(logger)

		path := configPath
		if path == "" {
			path = os.Getenv("QABOT_CONFIG")
		}
		c, err := common.LoadConfigFile(path)
		if err != nil {
			return err
		}
		cfg = c
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(rootCmd.ErrOrStderr(), "Error:", err)
	}
	return err
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format: text or json")

	rootCmd.AddCommand(checkCmd, batchCmd, clientsCmd, marketsCmd, runsCmd)
}

func newLogger(w io.Writer, level, format string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelWarn
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
