package organizer

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/mailfold/mailfold/internal/gateway"
	"github.com/mailfold/mailfold/internal/taxonomy"
)

// Status is the terminal state of an organize run.
type Status string

const (
	// StatusCompleted means the run processed everything it set out to.
	StatusCompleted Status = "completed"
	// StatusAborted means an authentication or quota failure stopped the
	// run before it finished.
	StatusAborted Status = "aborted"
	// StatusTimeout means the run hit its configured deadline.
	StatusTimeout Status = "timeout"
	// StatusCancelled means the caller cancelled the run.
	StatusCancelled Status = "cancelled"
)

// Per-message outcome kinds. Values match the instrumentation outcome
// labels so metrics and reports stay comparable.
const (
	OutcomeLabeled  = "labeled"
	OutcomeMigrated = "migrated"
	OutcomeFlagged  = "flagged"
	OutcomeSkipped  = "skipped"
	OutcomeFailed   = "failed"
)

// MessageOutcome records what the run did to a single message. The
// sender is reduced to its domain so reports can be shared without
// exposing full addresses.
type MessageOutcome struct {
	MessageID    string   `json:"message_id"`
	ThreadID     string   `json:"thread_id,omitempty"`
	SenderDomain string   `json:"sender_domain,omitempty"`
	Subject      string   `json:"subject,omitempty"`
	Outcome      string   `json:"outcome"`
	Added        []string `json:"labels_added,omitempty"`
	Removed      []string `json:"labels_removed,omitempty"`
	Rules        []string `json:"rules,omitempty"`
	Error        string   `json:"error,omitempty"`
}

// Report is the durable record of a single organize run: what the
// hierarchy pass did, what happened to each scanned message, and how
// much remote traffic it cost. A report is always produced, even when
// the run aborts partway.
type Report struct {
	Account         string    `json:"account"`
	DryRun          bool      `json:"dry_run"`
	Status          Status    `json:"status"`
	Error           string    `json:"error,omitempty"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
	DurationSeconds float64   `json:"duration_seconds"`

	LabelsCreated int `json:"labels_created"`
	LabelsExisted int `json:"labels_existed"`
	LabelsDeleted int `json:"labels_deleted,omitempty"`

	MessagesScanned  int `json:"messages_scanned"`
	MessagesLabeled  int `json:"messages_labeled"`
	MessagesMigrated int `json:"messages_migrated"`
	MessagesFlagged  int `json:"messages_flagged"`
	MessagesSkipped  int `json:"messages_skipped"`
	MessagesFailed   int `json:"messages_failed"`

	APICalls   int64 `json:"api_calls"`
	APIRetries int64 `json:"api_retries"`

	// LabelCounts is the distribution of applied labels across the run,
	// keyed by label path.
	LabelCounts map[string]int `json:"label_counts,omitempty"`

	Messages []MessageOutcome `json:"messages,omitempty"`
}

// NewReport starts a report for a run against the given account.
func NewReport(account string, dryRun bool) *Report {
	return &Report{
		Account:     account,
		DryRun:      dryRun,
		StartedAt:   time.Now().UTC(),
		LabelCounts: make(map[string]int),
	}
}

// AddScanned bumps the scanned counter by the number of message
// references fetched from a listing page.
func (r *Report) AddScanned(n int) {
	r.MessagesScanned += n
}

// RecordOutcome files one message outcome into the counters and the
// per-message list. Labels added by a successful outcome feed the
// label distribution.
func (r *Report) RecordOutcome(o MessageOutcome) {
	switch o.Outcome {
	case OutcomeLabeled:
		r.MessagesLabeled++
	case OutcomeMigrated:
		r.MessagesMigrated++
	case OutcomeFlagged:
		r.MessagesFlagged++
	case OutcomeSkipped:
		r.MessagesSkipped++
	case OutcomeFailed:
		r.MessagesFailed++
	}
	if o.Outcome == OutcomeLabeled || o.Outcome == OutcomeMigrated || o.Outcome == OutcomeFlagged {
		for _, path := range o.Added {
			r.LabelCounts[path]++
		}
	}
	r.Messages = append(r.Messages, o)
}

// ByOutcome returns the recorded outcomes of one kind, in run order.
func (r *Report) ByOutcome(kind string) []MessageOutcome {
	var out []MessageOutcome
	for _, m := range r.Messages {
		if m.Outcome == kind {
			out = append(out, m)
		}
	}
	return out
}

// Finalize stamps the terminal status, the error if any, the wall
// clock, and the gateway traffic counters onto the report.
func (r *Report) Finalize(status Status, runErr error, stats gateway.Stats) {
	r.Status = status
	if runErr != nil {
		r.Error = runErr.Error()
	}
	r.FinishedAt = time.Now().UTC()
	r.DurationSeconds = r.FinishedAt.Sub(r.StartedAt).Seconds()
	r.APICalls = stats.Calls
	r.APIRetries = stats.Retries
}

// Summary returns a one-line account of the run for logs and CLI output.
func (r *Report) Summary() string {
	mode := ""
	if r.DryRun {
		mode = " (dry run)"
	}
	return fmt.Sprintf(
		"%s%s: %d scanned, %d labeled, %d migrated, %d flagged, %d skipped, %d failed; labels %d created %d existed; %d API calls (%d retries) in %.1fs",
		r.Status, mode,
		r.MessagesScanned, r.MessagesLabeled, r.MessagesMigrated,
		r.MessagesFlagged, r.MessagesSkipped, r.MessagesFailed,
		r.LabelsCreated, r.LabelsExisted,
		r.APICalls, r.APIRetries, r.DurationSeconds,
	)
}

// WriteJSON writes the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// WriteMarkdown writes a human-readable rendering of the report: the
// run header, the counters, the label distribution, and then the
// messages that need a human to look at them.
func (r *Report) WriteMarkdown(w io.Writer) error {
	var b strings.Builder

	fmt.Fprintf(&b, "# Organize report for %s\n\n", r.Account)
	if r.DryRun {
		b.WriteString("**Dry run.** No changes were made; everything below is what a real run would do.\n\n")
	}
	fmt.Fprintf(&b, "- Status: %s\n", r.Status)
	if r.Error != "" {
		fmt.Fprintf(&b, "- Error: %s\n", r.Error)
	}
	fmt.Fprintf(&b, "- Started: %s\n", r.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "- Duration: %.1fs\n", r.DurationSeconds)
	fmt.Fprintf(&b, "- API calls: %d (%d retries)\n", r.APICalls, r.APIRetries)
	fmt.Fprintf(&b, "- Labels: %d created, %d existed", r.LabelsCreated, r.LabelsExisted)
	if r.LabelsDeleted > 0 {
		fmt.Fprintf(&b, ", %d deleted", r.LabelsDeleted)
	}
	b.WriteString("\n\n## Messages\n\n")
	fmt.Fprintf(&b, "| Scanned | Labeled | Migrated | Flagged | Skipped | Failed |\n")
	fmt.Fprintf(&b, "|---|---|---|---|---|---|\n")
	fmt.Fprintf(&b, "| %d | %d | %d | %d | %d | %d |\n",
		r.MessagesScanned, r.MessagesLabeled, r.MessagesMigrated,
		r.MessagesFlagged, r.MessagesSkipped, r.MessagesFailed)

	if len(r.LabelCounts) > 0 {
		b.WriteString("\n## Label distribution\n\n")
		for _, lc := range r.sortedLabelCounts() {
			fmt.Fprintf(&b, "- `%s`: %d\n", lc.path, lc.count)
		}
	}

	if flagged := r.ByOutcome(OutcomeFlagged); len(flagged) > 0 {
		fmt.Fprintf(&b, "\n## Flagged for review (%s)\n\n", taxonomy.Fallback)
		b.WriteString("These messages matched no rule and need a taxonomy decision:\n\n")
		for _, m := range flagged {
			fmt.Fprintf(&b, "- %s %s %s\n", m.MessageID, m.SenderDomain, m.Subject)
		}
	}

	if failed := r.ByOutcome(OutcomeFailed); len(failed) > 0 {
		b.WriteString("\n## Failed\n\n")
		for _, m := range failed {
			fmt.Fprintf(&b, "- %s: %s\n", m.MessageID, m.Error)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

type labelCount struct {
	path  string
	count int
}

// sortedLabelCounts orders the distribution by count descending, then
// path, so renders are stable.
func (r *Report) sortedLabelCounts() []labelCount {
	out := make([]labelCount, 0, len(r.LabelCounts))
	for path, count := range r.LabelCounts {
		out = append(out, labelCount{path: path, count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].path < out[j].path
	})
	return out
}
