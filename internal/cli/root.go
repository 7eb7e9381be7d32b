package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
)

// Version information (set by build flags)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "oneshot",
	Short: "One-shot HTTPS GET client",
	Long: `oneshot - One-shot HTTPS GET client

Each URL is fetched over its own TLS connection. The whole response is
spooled to a temporary file before the status line and headers are parsed,
then the body is copied to standard output.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().CountP("verbose", "v", "Verbosity (-v info, -vv debug)")
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "oneshot %s (commit: %s, built: %s)\n", version, commit, date)
	},
}

// newLogger maps the -v count to a slog level on w
func newLogger(w io.Writer, verbose int) *slog.Logger {
	level := slog.LevelWarn
	switch {
	case verbose >= 2:
		level = slog.LevelDebug
	case verbose == 1:
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
