package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mailfold/mailfold/internal/organizer"
)

func newCleanupCmd() *cobra.Command {
	var opts runtimeOptions

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete legacy labels that no longer hold messages",
		Long: `Scan the mailbox labels for legacy labels the taxonomy maps into the
hierarchy and delete the ones that hold no messages. Each candidate is
re-checked with a fresh message count right before deletion; labels
still in use are kept. System labels and hierarchy labels are never
touched.

Typically run after 'mailfold migrate' has emptied the legacy labels.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(),
				os.Interrupt, syscall.SIGTERM)
			defer cancel()

			stack, err := buildMailboxStack(ctx, opts, nil)
			if err != nil {
				return err
			}
			org, err := stack.newOrganizer(organizer.Config{})
			if err != nil {
				return err
			}

			result, err := org.CleanupEmptyLegacy(ctx)
			if err != nil {
				return fmt.Errorf("cleanup failed: %w", err)
			}

			mode := ""
			if opts.dryRun {
				mode = " (dry run)"
			}
			if len(result.Deleted) == 0 && len(result.Kept) == 0 {
				fmt.Printf("No empty legacy labels to clean up%s.\n", mode)
				return nil
			}
			if len(result.Deleted) > 0 {
				fmt.Printf("Deleted %d empty legacy labels%s:\n", len(result.Deleted), mode)
				for _, name := range result.Deleted {
					fmt.Printf("  %s\n", name)
				}
			}
			if len(result.Kept) > 0 {
				fmt.Printf("Kept %d legacy labels still holding messages:\n", len(result.Kept))
				for _, name := range result.Kept {
					fmt.Printf("  %s\n", name)
				}
			}
			return nil
		},
	}

	opts.register(cmd)
	return cmd
}
