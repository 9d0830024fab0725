package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mailfold/mailfold/internal/gmail"
	"github.com/mailfold/mailfold/internal/organizer"
	"github.com/mailfold/mailfold/internal/taxonomy"
)

func newMigrateCmd() *cobra.Command {
	var (
		opts        runtimeOptions
		extraQuery  string
		maxMessages int
		timeout     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Move messages off legacy labels into the hierarchy",
		Long: `Find the mailbox labels the taxonomy's migration table maps into the
hierarchy and run the organize pipeline over just the messages that
still carry them. Each message gets its mapped hierarchy label and
loses the legacy one; a legacy label is never removed without its
replacement in place.

Run 'mailfold cleanup' afterwards to delete the emptied legacy labels.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(),
				os.Interrupt, syscall.SIGTERM)
			defer cancel()

			stack, err := buildMailboxStack(ctx, opts, nil)
			if err != nil {
				return err
			}

			labels, err := stack.service.ListLabels(ctx)
			if err != nil {
				return fmt.Errorf("failed to list labels: %w", err)
			}
			legacy := legacyLabelNames(stack.tax, labels)
			if len(legacy) == 0 {
				fmt.Println("No legacy labels found; nothing to migrate.")
				return nil
			}

			query := legacyQuery(legacy)
			if extraQuery != "" {
				query = "(" + query + ") " + extraQuery
			}

			org, err := stack.newOrganizer(organizer.Config{
				Query:       query,
				MaxMessages: maxMessages,
				MaxRunTime:  timeout,
			})
			if err != nil {
				return err
			}

			fmt.Printf("Migrating messages from %d legacy labels\n", len(legacy))
			report, runErr := org.Run(ctx)
			saveLatestReport(stack.logger, report)
			fmt.Println(report.Summary())
			return runErr
		},
	}

	opts.register(cmd)
	cmd.Flags().StringVar(&extraQuery, "query", "", "Additional Gmail search terms restricting which legacy messages are migrated")
	cmd.Flags().IntVar(&maxMessages, "max-messages", 0, "Stop after scanning this many messages (0 = no limit)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Abort the run after this long, e.g. 30m (0 = no deadline)")

	return cmd
}

// legacyLabelNames selects the remote labels the taxonomy maps into
// the hierarchy, using the same exclusions as cleanup: system labels
// and labels already inside the hierarchy are never candidates.
func legacyLabelNames(tax *taxonomy.Taxonomy, labels []gmail.Label) []string {
	var names []string
	for _, l := range labels {
		if l.IsSystem() || taxonomy.IsSystemLabel(l.Name) {
			continue
		}
		if tax.ContainsName(l.Name) {
			continue
		}
		if _, ok := tax.MapLegacy(l.Name); !ok {
			continue
		}
		names = append(names, l.Name)
	}
	sort.Strings(names)
	return names
}

// legacyQuery builds the Gmail search that restricts a run to messages
// still carrying any of the given labels.
func legacyQuery(names []string) string {
	terms := make([]string, len(names))
	for i, name := range names {
		terms[i] = "label:" + quoteQueryTerm(name)
	}
	return strings.Join(terms, " OR ")
}

// quoteQueryTerm quotes a search term when Gmail would otherwise split
// it at whitespace.
func quoteQueryTerm(s string) string {
	if strings.ContainsAny(s, " \t") {
		return `"` + s + `"`
	}
	return s
}
