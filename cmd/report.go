package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mailfold/mailfold/internal/logging"
	"github.com/mailfold/mailfold/internal/organizer"
)

func newReportCmd() *cobra.Command {
	var (
		account string
		format  string
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the report of the last organize run",
		Long: `Print the report persisted by the last organize or migrate run for an
account.

Formats:
  summary   one line of counters (default)
  json      the full report
  markdown  a human-readable rendering with the flagged messages`,
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := loadLatestReport(account)
			if err != nil {
				return err
			}
			switch format {
			case "summary":
				fmt.Println(report.Summary())
				return nil
			case "json":
				return report.WriteJSON(os.Stdout)
			case "markdown":
				return report.WriteMarkdown(os.Stdout)
			default:
				return fmt.Errorf("unknown format %q: use 'summary', 'json' or 'markdown'", format)
			}
		},
	}

	cmd.Flags().StringVar(&account, "account", "default", "Google account name to use (default: 'default')")
	cmd.Flags().StringVar(&format, "format", "summary", "Output format: summary, json or markdown")
	return cmd
}

// reportPath returns where the latest report for an account is kept.
func reportPath(account string) (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate cache directory: %w", err)
	}
	return filepath.Join(dir, "mailfold", "reports", account+".json"), nil
}

// saveLatestReport persists the run report so 'mailfold report' can
// print it later. Persistence failures are logged, never fatal; the
// run itself already succeeded or failed on its own terms.
func saveLatestReport(logger *slog.Logger, report *organizer.Report) {
	if report == nil {
		return
	}
	path, err := reportPath(report.Account)
	if err != nil {
		logger.Warn("could not persist run report", logging.Err(err))
		return
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		logger.Warn("could not persist run report", logging.Err(err))
		return
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		logger.Warn("could not persist run report", logging.Err(err))
		return
	}
	defer f.Close()
	if err := report.WriteJSON(f); err != nil {
		logger.Warn("could not persist run report", logging.Err(err))
	}
}

// loadLatestReport reads the persisted report for an account.
func loadLatestReport(account string) (*organizer.Report, error) {
	path, err := reportPath(account)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("no report found for account %s; run 'mailfold organize' first", account)
		}
		return nil, err
	}
	var report organizer.Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("report file %s is corrupt: %w", path, err)
	}
	return &report, nil
}

// exportReport writes the report to the explicitly requested files.
func exportReport(report *organizer.Report, jsonPath, mdPath string) error {
	if jsonPath != "" {
		if err := writeReportFile(jsonPath, report.WriteJSON); err != nil {
			return err
		}
	}
	if mdPath != "" {
		if err := writeReportFile(mdPath, report.WriteMarkdown); err != nil {
			return err
		}
	}
	return nil
}

func writeReportFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
