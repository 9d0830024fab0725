package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mailfold/mailfold/internal/gmail"
	"github.com/mailfold/mailfold/internal/organizer"
	"github.com/mailfold/mailfold/internal/taxonomy"
)

func newLabelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "labels",
		Short: "Manage the hierarchy labels",
	}
	cmd.AddCommand(newLabelsEnsureCmd())
	cmd.AddCommand(newLabelsListCmd())
	return cmd
}

func newLabelsEnsureCmd() *cobra.Command {
	var opts runtimeOptions

	cmd := &cobra.Command{
		Use:   "ensure",
		Short: "Create every missing label in the hierarchy",
		Long: `Make sure every label in the taxonomy exists remotely, creating missing
labels parent before child. Existing labels are left untouched and
messages are never modified.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(),
				os.Interrupt, syscall.SIGTERM)
			defer cancel()

			stack, err := buildMailboxStack(ctx, opts, nil)
			if err != nil {
				return err
			}
			org, err := stack.newOrganizer(organizer.Config{LabelsOnly: true})
			if err != nil {
				return err
			}

			report, runErr := org.Run(ctx)
			if runErr != nil {
				return runErr
			}
			mode := ""
			if report.DryRun {
				mode = " (dry run)"
			}
			fmt.Printf("Label hierarchy ready%s: %d created, %d already existed\n",
				mode, report.LabelsCreated, report.LabelsExisted)
			return nil
		},
	}

	opts.register(cmd)
	return cmd
}

func newLabelsListCmd() *cobra.Command {
	var opts runtimeOptions

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List mailbox labels and how the taxonomy sees them",
		Long: `List every label in the mailbox together with its classification:
hierarchy (part of the taxonomy), legacy (mapped into the hierarchy by
the migration table), system (managed by Gmail), or unmanaged.`,
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
			sort.Slice(labels, func(i, j int) bool { return labels[i].Name < labels[j].Name })

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tKIND\tID")
			for _, l := range labels {
				fmt.Fprintf(w, "%s\t%s\t%s\n", l.Name, labelKind(stack.tax, l), l.ID)
			}
			return w.Flush()
		},
	}

	opts.register(cmd)
	return cmd
}

// labelKind reports the taxonomy's view of one remote label.
func labelKind(tax *taxonomy.Taxonomy, l gmail.Label) string {
	switch {
	case l.IsSystem():
		return "system"
	case tax.ContainsName(l.Name):
		return "hierarchy"
	default:
		if _, ok := tax.MapLegacy(l.Name); ok {
			return "legacy"
		}
		return "unmanaged"
	}
}
