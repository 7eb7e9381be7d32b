package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/time/rate"

	"github.com/nczempin/httpc-oneshot/client"
	"github.com/nczempin/httpc-oneshot/ct"
	"github.com/nczempin/httpc-oneshot/spool"
	"github.com/nczempin/httpc-oneshot/transport"
)

// resolver is nil outside of tests
var resolver transport.Resolver

var getCmd = &cobra.Command{
	Use:   "get URL...",
	Short: "Fetch one or more https URLs and write their bodies to stdout",
	Long: `Get fetches each URL in turn, one connection per URL, and writes the
response body to standard output. A non-2xx status is reported but only
fails the command when --fail is given.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runGet,
}

func init() {
	rootCmd.AddCommand(getCmd)

	f := getCmd.Flags()
	f.Duration("timeout", 30*time.Second, "Per-request timeout (0 disables)")
	f.String("ca-file", "", "PEM bundle of trusted roots, replacing the system pool")
	f.String("ct-logs", "", "CT log list (v3 JSON); SCTs are checked when set")
	f.String("spool-dir", "", "Directory for spool files (default: system temp dir)")
	f.Float64("rate", 0, "Maximum requests per second across URLs (0 = unlimited)")
	f.Var(newWriteModeValue(), "write-mode", "Vectored write backend (writev, uring, concat)")
	f.Var(newSpoolModeValue(), "spool-mode", "Spool append backend (file, uring)")
	f.BoolP("include", "i", false, "Include the status line and headers in the output")
	f.Bool("fail", false, "Fail on a non-2xx status")
}

func runGet(cmd *cobra.Command, args []string) error {
	timeout, _ := cmd.Flags().GetDuration("timeout")
	caFile, _ := cmd.Flags().GetString("ca-file")
	ctLogs, _ := cmd.Flags().GetString("ct-logs")
	spoolDir, _ := cmd.Flags().GetString("spool-dir")
	rps, _ := cmd.Flags().GetFloat64("rate")
	include, _ := cmd.Flags().GetBool("include")
	failOnStatus, _ := cmd.Flags().GetBool("fail")
	verbose, _ := cmd.Flags().GetCount("verbose")

	log := newLogger(cmd.ErrOrStderr(), verbose)

	cfg := client.Config{
		Resolver:   resolver,
		RootCAFile: caFile,
		Timeout:    timeout,
		SpoolDir:   spoolDir,
		WriteMode:  cmd.Flags().Lookup("write-mode").Value.(*writeModeValue).mode,
		SpoolMode:  cmd.Flags().Lookup("spool-mode").Value.(*spoolModeValue).mode,
		Logger:     log,
	}
	if ctLogs != "" {
		logs, err := ct.LoadLogList(ctLogs)
		if err != nil {
			return fmt.Errorf("failed to load CT log list %q: %w", ctLogs, err)
		}
		cfg.CTLogs = logs
		log.Info("loaded CT log list", "logs", len(logs))
	}

	c, err := client.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	limiter := rate.NewLimiter(limit, 1)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	var errs []error
	for _, rawURL := range args {
		if err := limiter.Wait(ctx); err != nil {
			errs = append(errs, fmt.Errorf("rate limiter: %w", err))
			break
		}
		if err := fetch(ctx, c, log, cmd.OutOrStdout(), rawURL, include, failOnStatus); err != nil {
			log.Error("fetch failed", "url", rawURL, "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", rawURL, err))
		}
	}
	return errors.Join(errs...)
}

func fetch(ctx context.Context, c *client.Client, log *slog.Logger, w io.Writer, rawURL string, include, failOnStatus bool) error {
	resp, err := c.Get(ctx, rawURL)
	if err != nil {
		return err
	}
	defer resp.Close()

	if include {
		fmt.Fprintf(w, "%s %d %s\r\n", resp.Version(), resp.Status().Code(), resp.Reason())
		for _, h := range resp.Headers() {
			fmt.Fprintf(w, "%s: %s\r\n", h.Key, h.Value)
		}
		fmt.Fprint(w, "\r\n")
	}

	n, err := io.Copy(w, resp)
	if err != nil {
		return fmt.Errorf("failed to copy body: %w", err)
	}

	log.Info("fetched",
		"url", rawURL,
		"status", resp.Status().Code(),
		"body", humanize.Bytes(uint64(n)),
	)
	if failOnStatus && !resp.Status().IsSuccess() {
		return fmt.Errorf("server returned status %s", resp.Status())
	}
	return nil
}

// writeModeValue adapts transport.WriteMode to pflag.Value
type writeModeValue struct {
	mode transport.WriteMode
}

var _ pflag.Value = (*writeModeValue)(nil)

func newWriteModeValue() *writeModeValue {
	return &writeModeValue{mode: transport.WriteModeWritev}
}

func (v *writeModeValue) String() string { return v.mode.String() }
func (v *writeModeValue) Type() string   { return "mode" }

func (v *writeModeValue) Set(s string) error {
	m, err := transport.ParseWriteMode(s)
	if err != nil {
		return err
	}
	v.mode = m
	return nil
}

// spoolModeValue adapts spool.Mode to pflag.Value
type spoolModeValue struct {
	mode spool.Mode
}

var _ pflag.Value = (*spoolModeValue)(nil)

func newSpoolModeValue() *spoolModeValue {
	return &spoolModeValue{mode: spool.ModeFile}
}

func (v *spoolModeValue) String() string { return v.mode.String() }
func (v *spoolModeValue) Type() string   { return "mode" }

func (v *spoolModeValue) Set(s string) error {
	m, err := spool.ParseMode(s)
	if err != nil {
		return err
	}
	v.mode = m
	return nil
}
