package organizer

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mailfold/mailfold/internal/gateway"
)

func sampleReport() *Report {
	r := NewReport("test", false)
	r.AddScanned(5)
	r.LabelsCreated = 2
	r.LabelsExisted = 3
	r.RecordOutcome(MessageOutcome{MessageID: "m1", SenderDomain: "acme.com", Subject: "receipt", Outcome: OutcomeLabeled, Added: []string{"FINANCIAL/Receipts"}})
	r.RecordOutcome(MessageOutcome{MessageID: "m2", Outcome: OutcomeMigrated, Added: []string{"FINANCIAL/Receipts"}, Removed: []string{"old-receipts"}})
	r.RecordOutcome(MessageOutcome{MessageID: "m3", SenderDomain: "foo.org", Subject: "hello", Outcome: OutcomeFlagged, Added: []string{"FLAGGED-REVIEW"}})
	r.RecordOutcome(MessageOutcome{MessageID: "m4", Outcome: OutcomeSkipped})
	r.RecordOutcome(MessageOutcome{MessageID: "m5", Outcome: OutcomeFailed, Error: "metadata fetch failed"})
	return r
}

func TestReportCounters(t *testing.T) {
	r := sampleReport()

	assert.Equal(t, 5, r.MessagesScanned)
	assert.Equal(t, 1, r.MessagesLabeled)
	assert.Equal(t, 1, r.MessagesMigrated)
	assert.Equal(t, 1, r.MessagesFlagged)
	assert.Equal(t, 1, r.MessagesSkipped)
	assert.Equal(t, 1, r.MessagesFailed)
	assert.Len(t, r.Messages, 5)

	// Both successful assignments of the same path accumulate.
	assert.Equal(t, 2, r.LabelCounts["FINANCIAL/Receipts"])
	assert.Equal(t, 1, r.LabelCounts["FLAGGED-REVIEW"])
}

func TestReportLabelCountsIgnoreFailures(t *testing.T) {
	r := NewReport("test", false)
	r.RecordOutcome(MessageOutcome{MessageID: "m1", Outcome: OutcomeFailed, Added: []string{"A"}, Error: "rejected"})
	r.RecordOutcome(MessageOutcome{MessageID: "m2", Outcome: OutcomeSkipped})

	assert.Empty(t, r.LabelCounts)
}

func TestReportByOutcome(t *testing.T) {
	r := sampleReport()

	flagged := r.ByOutcome(OutcomeFlagged)
	require.Len(t, flagged, 1)
	assert.Equal(t, "m3", flagged[0].MessageID)

	assert.Empty(t, r.ByOutcome("nonexistent"))
}

func TestReportFinalize(t *testing.T) {
	r := NewReport("test", false)
	r.Finalize(StatusAborted, errors.New("credentials expired"), gateway.Stats{Calls: 10, Retries: 2})

	assert.Equal(t, StatusAborted, r.Status)
	assert.Equal(t, "credentials expired", r.Error)
	assert.Equal(t, int64(10), r.APICalls)
	assert.Equal(t, int64(2), r.APIRetries)
	assert.False(t, r.FinishedAt.IsZero())
	assert.GreaterOrEqual(t, r.DurationSeconds, 0.0)
}

func TestReportSummary(t *testing.T) {
	r := sampleReport()
	r.Finalize(StatusCompleted, nil, gateway.Stats{Calls: 7, Retries: 1})

	s := r.Summary()
	assert.Contains(t, s, "completed")
	assert.Contains(t, s, "5 scanned")
	assert.Contains(t, s, "1 labeled")
	assert.Contains(t, s, "1 flagged")
	assert.Contains(t, s, "7 API calls")
	assert.NotContains(t, s, "dry run")
}

func TestReportSummaryMarksDryRun(t *testing.T) {
	r := NewReport("test", true)
	r.Finalize(StatusCompleted, nil, gateway.Stats{})

	assert.Contains(t, r.Summary(), "(dry run)")
}

func TestReportWriteJSON(t *testing.T) {
	r := sampleReport()
	r.Finalize(StatusCompleted, nil, gateway.Stats{Calls: 7})

	var buf bytes.Buffer
	require.NoError(t, r.WriteJSON(&buf))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))

	assert.Equal(t, "test", decoded["account"])
	assert.Equal(t, false, decoded["dry_run"])
	assert.Equal(t, "completed", decoded["status"])
	assert.Equal(t, float64(5), decoded["messages_scanned"])
	assert.Equal(t, float64(7), decoded["api_calls"])

	messages, ok := decoded["messages"].([]any)
	require.True(t, ok)
	assert.Len(t, messages, 5)
}

func TestReportWriteJSONOmitsEmptySections(t *testing.T) {
	r := NewReport("test", false)
	r.Finalize(StatusCompleted, nil, gateway.Stats{})

	var buf bytes.Buffer
	require.NoError(t, r.WriteJSON(&buf))

	assert.NotContains(t, buf.String(), "label_counts")
	assert.NotContains(t, buf.String(), `"messages"`)
	assert.NotContains(t, buf.String(), `"error"`)
}

func TestReportWriteMarkdown(t *testing.T) {
	r := sampleReport()
	r.Finalize(StatusCompleted, nil, gateway.Stats{Calls: 7, Retries: 1})

	var buf bytes.Buffer
	require.NoError(t, r.WriteMarkdown(&buf))
	out := buf.String()

	assert.Contains(t, out, "# Organize report for test")
	assert.Contains(t, out, "| 5 | 1 | 1 | 1 | 1 | 1 |")
	assert.Contains(t, out, "## Flagged for review")
	assert.Contains(t, out, "m3 foo.org hello")
	assert.Contains(t, out, "## Failed")
	assert.Contains(t, out, "m5: metadata fetch failed")
	assert.NotContains(t, out, "Dry run.")
}

func TestReportWriteMarkdownDryRunBanner(t *testing.T) {
	r := NewReport("test", true)
	r.Finalize(StatusCompleted, nil, gateway.Stats{})

	var buf bytes.Buffer
	require.NoError(t, r.WriteMarkdown(&buf))

	assert.Contains(t, buf.String(), "Dry run.")
}

func TestReportLabelDistributionOrder(t *testing.T) {
	r := NewReport("test", false)
	r.LabelCounts["ALPHA"] = 1
	r.LabelCounts["BETA"] = 3
	r.LabelCounts["GAMMA"] = 3

	counts := r.sortedLabelCounts()
	require.Len(t, counts, 3)
	assert.Equal(t, "BETA", counts[0].path)
	assert.Equal(t, "GAMMA", counts[1].path)
	assert.Equal(t, "ALPHA", counts[2].path)

	var buf bytes.Buffer
	require.NoError(t, r.WriteMarkdown(&buf))
	out := buf.String()
	assert.Less(t, strings.Index(out, "`BETA`"), strings.Index(out, "`GAMMA`"))
	assert.Less(t, strings.Index(out, "`GAMMA`"), strings.Index(out, "`ALPHA`"))
}
