package organizer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"github.com/mailfold/mailfold/internal/gateway"
	"github.com/mailfold/mailfold/internal/gmail"
	"github.com/mailfold/mailfold/internal/taxonomy"
)

type batchCall struct {
	ids    []string
	add    []string
	remove []string
}

// fakeService is an in-memory mailbox. Mutations through BatchModify
// are applied to the stored messages unless the service is in dry-run
// mode, so consecutive runs observe each other's effects.
type fakeService struct {
	mu sync.Mutex

	account string
	dryRun  bool

	labels     []gmail.Label
	nextLabel  int
	messages   map[string]gmail.Message
	pages      [][]gmail.MessageRef
	lastQuery  string
	listCalls  int
	batchCalls []batchCall
	deleted    []string

	getErr      map[string]error
	getLabelErr map[string]error
	createErr   map[string]error
	deleteErr   map[string]error
	listErrs    map[int]error
	batchErrs   []error

	afterBatch func()
}

func newFakeService() *fakeService {
	return &fakeService{
		account:     "test",
		messages:    make(map[string]gmail.Message),
		getErr:      make(map[string]error),
		getLabelErr: make(map[string]error),
		createErr:   make(map[string]error),
		deleteErr:   make(map[string]error),
		listErrs:    make(map[int]error),
	}
}

func (f *fakeService) addLabel(id, name, typ string, total int64) {
	f.labels = append(f.labels, gmail.Label{ID: id, Name: name, Type: typ, MessagesTotal: total})
}

func (f *fakeService) addMessage(msg gmail.Message) {
	f.messages[msg.ID] = msg
}

func (f *fakeService) addPage(ids ...string) {
	refs := make([]gmail.MessageRef, len(ids))
	for i, id := range ids {
		refs[i] = gmail.MessageRef{ID: id, ThreadID: "thread-" + id}
	}
	f.pages = append(f.pages, refs)
}

func (f *fakeService) labelID(name string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.labels {
		if l.Name == name {
			return l.ID
		}
	}
	return ""
}

func (f *fakeService) Account() string { return f.account }
func (f *fakeService) DryRun() bool    { return f.dryRun }

func (f *fakeService) ListLabels(ctx context.Context) ([]gmail.Label, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]gmail.Label, len(f.labels))
	copy(out, f.labels)
	return out, nil
}

func (f *fakeService) CreateLabel(ctx context.Context, name string) (gmail.Label, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.createErr[name]; err != nil {
		return gmail.Label{}, err
	}
	if f.dryRun {
		return gmail.Label{ID: gmail.DryRunLabelID(name), Name: name, Type: "user"}, nil
	}
	f.nextLabel++
	l := gmail.Label{ID: fmt.Sprintf("created-%d", f.nextLabel), Name: name, Type: "user"}
	f.labels = append(f.labels, l)
	return l, nil
}

func (f *fakeService) GetLabel(ctx context.Context, id string) (gmail.Label, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.getLabelErr[id]; err != nil {
		return gmail.Label{}, err
	}
	for _, l := range f.labels {
		if l.ID == id {
			return l, nil
		}
	}
	return gmail.Label{}, &googleapi.Error{Code: http.StatusNotFound, Message: "label not found"}
}

func (f *fakeService) DeleteLabel(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.deleteErr[id]; err != nil {
		return err
	}
	for i, l := range f.labels {
		if l.ID == id {
			f.labels = append(f.labels[:i], f.labels[i+1:]...)
			break
		}
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeService) ListMessages(ctx context.Context, query, pageToken string, pageSize int64) (*gmail.MessagePage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	call := f.listCalls
	f.listCalls++
	f.lastQuery = query
	if err := f.listErrs[call]; err != nil {
		return nil, err
	}

	idx := 0
	if pageToken != "" {
		fmt.Sscanf(pageToken, "page-%d", &idx)
	}
	if idx >= len(f.pages) {
		return &gmail.MessagePage{}, nil
	}
	page := &gmail.MessagePage{Refs: f.pages[idx]}
	if idx+1 < len(f.pages) {
		page.NextPageToken = fmt.Sprintf("page-%d", idx+1)
	}
	return page, nil
}

func (f *fakeService) GetMetadata(ctx context.Context, id string) (gmail.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.getErr[id]; err != nil {
		return gmail.Message{}, err
	}
	msg, ok := f.messages[id]
	if !ok {
		return gmail.Message{}, &googleapi.Error{Code: http.StatusNotFound, Message: "message not found"}
	}
	return msg, nil
}

func (f *fakeService) BatchModify(ctx context.Context, ids, addLabelIDs, removeLabelIDs []string) error {
	f.mu.Lock()
	f.batchCalls = append(f.batchCalls, batchCall{
		ids:    append([]string(nil), ids...),
		add:    append([]string(nil), addLabelIDs...),
		remove: append([]string(nil), removeLabelIDs...),
	})
	var err error
	if len(f.batchErrs) > 0 {
		err, f.batchErrs = f.batchErrs[0], f.batchErrs[1:]
	}
	if err == nil && !f.dryRun {
		for _, id := range ids {
			msg := f.messages[id]
			for _, add := range addLabelIDs {
				if !containsString(msg.LabelIDs, add) {
					msg.LabelIDs = append(msg.LabelIDs, add)
				}
			}
			msg.LabelIDs = withoutStrings(msg.LabelIDs, removeLabelIDs)
			f.messages[id] = msg
		}
	}
	after := f.afterBatch
	f.mu.Unlock()
	if after != nil {
		after()
	}
	return err
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

func withoutStrings(haystack, remove []string) []string {
	var out []string
	for _, s := range haystack {
		if !containsString(remove, s) {
			out = append(out, s)
		}
	}
	return out
}

func testTaxonomy(t *testing.T) *taxonomy.Taxonomy {
	t.Helper()
	tax, err := taxonomy.FromFile(&taxonomy.File{
		Labels: []string{"FINANCIAL/Receipts", "NEWSLETTERS"},
		Legacy: []taxonomy.LegacySpec{
			{Pattern: "^old-", Target: "FINANCIAL/Receipts"},
		},
		Rules: []taxonomy.RuleSpec{
			{Name: "receipts", Priority: 10, From: "billing@", Labels: []string{"FINANCIAL/Receipts"}},
			{Name: "newsletters", Priority: 20, HasUnsubscribe: true, Labels: []string{"NEWSLETTERS"}},
		},
	})
	require.NoError(t, err)
	return tax
}

func newTestOrganizer(t *testing.T, cfg Config, svc *fakeService) *Organizer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	o, err := New(cfg, svc, nil, testTaxonomy(t), logger, nil)
	require.NoError(t, err)
	return o
}

// seedMailbox sets up the standard fixture: FINANCIAL and its Receipts
// child already exist, NEWSLETTERS and the fallback do not.
func seedMailbox(svc *fakeService) {
	svc.addLabel("INBOX", "INBOX", "system", 0)
	svc.addLabel("lbl-fin", "FINANCIAL", "user", 0)
	svc.addLabel("lbl-receipts", "FINANCIAL/Receipts", "user", 0)
}

func TestRunOrganizesMailbox(t *testing.T) {
	svc := newFakeService()
	seedMailbox(svc)
	svc.addMessage(gmail.Message{ID: "m1", From: "Billing <billing@acme.com>", Subject: "Your receipt", LabelIDs: []string{"INBOX"}})
	svc.addMessage(gmail.Message{ID: "m2", From: "news@letters.io", HasUnsubscribe: true, LabelIDs: []string{"INBOX"}})
	svc.addMessage(gmail.Message{ID: "m3", From: "stranger@foo.org", Subject: "hello", LabelIDs: []string{"INBOX"}})
	svc.addMessage(gmail.Message{ID: "m4", From: "billing@acme.com", LabelIDs: []string{"INBOX", "lbl-receipts"}})
	svc.addPage("m1", "m2", "m3", "m4")

	o := newTestOrganizer(t, Config{Query: "in:inbox"}, svc)
	report, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, report.Status)
	assert.Equal(t, "test", report.Account)
	assert.Equal(t, "in:inbox", svc.lastQuery)

	// NEWSLETTERS and the fallback were created; FINANCIAL and
	// FINANCIAL/Receipts already existed.
	assert.Equal(t, 2, report.LabelsCreated)
	assert.Equal(t, 2, report.LabelsExisted)

	assert.Equal(t, 4, report.MessagesScanned)
	assert.Equal(t, 2, report.MessagesLabeled)
	assert.Equal(t, 1, report.MessagesFlagged)
	assert.Equal(t, 1, report.MessagesSkipped)
	assert.Equal(t, 0, report.MessagesFailed)

	// Each distinct mutation is one batch call.
	require.Len(t, svc.batchCalls, 3)

	// The mutations landed on the stored messages.
	assert.Contains(t, svc.messages["m1"].LabelIDs, "lbl-receipts")
	assert.Contains(t, svc.messages["m2"].LabelIDs, svc.labelID("NEWSLETTERS"))
	assert.Contains(t, svc.messages["m3"].LabelIDs, svc.labelID(taxonomy.Fallback))

	flagged := report.ByOutcome(OutcomeFlagged)
	require.Len(t, flagged, 1)
	assert.Equal(t, "m3", flagged[0].MessageID)
	assert.Equal(t, "foo.org", flagged[0].SenderDomain)
	assert.Equal(t, []string{taxonomy.Fallback}, flagged[0].Added)

	labeled := report.ByOutcome(OutcomeLabeled)
	require.Len(t, labeled, 2)
	assert.Equal(t, "acme.com", labeled[0].SenderDomain)
	assert.Equal(t, []string{"receipts"}, labeled[0].Rules)
	assert.Equal(t, []string{"newsletters"}, labeled[1].Rules)

	skipped := report.ByOutcome(OutcomeSkipped)
	require.Len(t, skipped, 1)
	assert.Equal(t, "m4", skipped[0].MessageID)
	assert.Empty(t, skipped[0].Added)

	assert.Equal(t, 1, report.LabelCounts["FINANCIAL/Receipts"])
	assert.Equal(t, 1, report.LabelCounts["NEWSLETTERS"])
	assert.Equal(t, 1, report.LabelCounts[taxonomy.Fallback])
}

func TestRunMigratesLegacyLabels(t *testing.T) {
	svc := newFakeService()
	seedMailbox(svc)
	svc.addLabel("lbl-old", "old-receipts", "user", 1)
	svc.addMessage(gmail.Message{ID: "m1", From: "billing@acme.com", LabelIDs: []string{"lbl-old"}})
	svc.addPage("m1")

	o := newTestOrganizer(t, Config{}, svc)
	report, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.MessagesMigrated)
	require.Len(t, svc.batchCalls, 1)
	assert.Equal(t, []string{"m1"}, svc.batchCalls[0].ids)
	assert.Equal(t, []string{"lbl-receipts"}, svc.batchCalls[0].add)
	assert.Equal(t, []string{"lbl-old"}, svc.batchCalls[0].remove)

	migrated := report.ByOutcome(OutcomeMigrated)
	require.Len(t, migrated, 1)
	assert.Equal(t, []string{"old-receipts"}, migrated[0].Removed)

	assert.NotContains(t, svc.messages["m1"].LabelIDs, "lbl-old")
	assert.Contains(t, svc.messages["m1"].LabelIDs, "lbl-receipts")
}

func TestRunSkipMigrationKeepsLegacyLabels(t *testing.T) {
	svc := newFakeService()
	seedMailbox(svc)
	svc.addLabel("lbl-old", "old-receipts", "user", 1)
	svc.addMessage(gmail.Message{ID: "m1", From: "billing@acme.com", LabelIDs: []string{"lbl-old"}})
	svc.addPage("m1")

	o := newTestOrganizer(t, Config{SkipMigration: true}, svc)
	report, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, report.MessagesMigrated)
	assert.Equal(t, 1, report.MessagesLabeled)
	require.Len(t, svc.batchCalls, 1)
	assert.Empty(t, svc.batchCalls[0].remove)
	assert.Contains(t, svc.messages["m1"].LabelIDs, "lbl-old")
}

func TestRunLabelsOnly(t *testing.T) {
	svc := newFakeService()
	seedMailbox(svc)
	svc.addPage("m1")

	o := newTestOrganizer(t, Config{LabelsOnly: true}, svc)
	report, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, report.Status)
	assert.Equal(t, 2, report.LabelsCreated)
	assert.Equal(t, 0, report.MessagesScanned)
	assert.Equal(t, 0, svc.listCalls)
	assert.Empty(t, svc.batchCalls)
}

func TestRunMaxMessagesTruncatesMidPage(t *testing.T) {
	svc := newFakeService()
	seedMailbox(svc)
	for i := 1; i <= 6; i++ {
		id := fmt.Sprintf("m%d", i)
		svc.addMessage(gmail.Message{ID: id, From: "stranger@foo.org", LabelIDs: []string{"INBOX"}})
	}
	svc.addPage("m1", "m2", "m3")
	svc.addPage("m4", "m5", "m6")

	o := newTestOrganizer(t, Config{MaxMessages: 4}, svc)
	report, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, report.Status)
	assert.Equal(t, 4, report.MessagesScanned)
	assert.Equal(t, 4, report.MessagesFlagged)
	assert.Equal(t, 2, svc.listCalls)
}

func TestRunBatchesIdenticalMutations(t *testing.T) {
	svc := newFakeService()
	seedMailbox(svc)
	for i := 1; i <= 3; i++ {
		id := fmt.Sprintf("m%d", i)
		svc.addMessage(gmail.Message{ID: id, From: "billing@acme.com", LabelIDs: []string{"INBOX"}})
	}
	svc.addPage("m1", "m2", "m3")

	o := newTestOrganizer(t, Config{}, svc)
	report, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, report.MessagesLabeled)
	// All three need the same mutation, so one call covers them.
	require.Len(t, svc.batchCalls, 1)
	assert.Equal(t, []string{"m1", "m2", "m3"}, svc.batchCalls[0].ids)
}

func TestRunSplitsOversizedGroups(t *testing.T) {
	svc := newFakeService()
	seedMailbox(svc)
	var ids []string
	for i := 1; i <= 5; i++ {
		id := fmt.Sprintf("m%d", i)
		ids = append(ids, id)
		svc.addMessage(gmail.Message{ID: id, From: "billing@acme.com", LabelIDs: []string{"INBOX"}})
	}
	svc.addPage(ids...)

	o := newTestOrganizer(t, Config{BatchSize: 2}, svc)
	report, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, report.MessagesLabeled)
	require.Len(t, svc.batchCalls, 3)
	assert.Len(t, svc.batchCalls[0].ids, 2)
	assert.Len(t, svc.batchCalls[1].ids, 2)
	assert.Len(t, svc.batchCalls[2].ids, 1)
}

func TestRunFetchFailureOnlyFailsThatMessage(t *testing.T) {
	svc := newFakeService()
	seedMailbox(svc)
	svc.addMessage(gmail.Message{ID: "m1", From: "billing@acme.com", LabelIDs: []string{"INBOX"}})
	svc.addMessage(gmail.Message{ID: "m3", From: "billing@acme.com", LabelIDs: []string{"INBOX"}})
	svc.getErr["m2"] = &googleapi.Error{Code: http.StatusNotFound, Message: "gone"}
	svc.addPage("m1", "m2", "m3")

	o := newTestOrganizer(t, Config{}, svc)
	report, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, report.Status)
	assert.Equal(t, 2, report.MessagesLabeled)
	assert.Equal(t, 1, report.MessagesFailed)

	failed := report.ByOutcome(OutcomeFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, "m2", failed[0].MessageID)
	assert.Contains(t, failed[0].Error, "gone")
}

func TestRunUnauthenticatedAborts(t *testing.T) {
	svc := newFakeService()
	seedMailbox(svc)
	svc.getErr["m1"] = &googleapi.Error{Code: http.StatusUnauthorized, Message: "expired"}
	svc.addMessage(gmail.Message{ID: "m2", From: "billing@acme.com", LabelIDs: []string{"INBOX"}})
	svc.addPage("m1", "m2")

	o := newTestOrganizer(t, Config{}, svc)
	report, err := o.Run(context.Background())
	require.Error(t, err)
	assert.True(t, gateway.IsUnauthenticated(err))

	assert.Equal(t, StatusAborted, report.Status)
	assert.NotEmpty(t, report.Error)
	assert.Empty(t, svc.batchCalls)
	assert.Same(t, report, o.Latest())
}

func TestRunQuotaExhaustedOnBatchAborts(t *testing.T) {
	svc := newFakeService()
	seedMailbox(svc)
	svc.addMessage(gmail.Message{ID: "m1", From: "billing@acme.com", LabelIDs: []string{"INBOX"}})
	svc.addPage("m1")
	svc.batchErrs = []error{&gateway.APIError{
		Op:       "messages.batchModify",
		Class:    gateway.ClassQuotaExhausted,
		Status:   http.StatusServiceUnavailable,
		Attempts: 5,
	}}

	o := newTestOrganizer(t, Config{}, svc)
	report, err := o.Run(context.Background())
	require.Error(t, err)
	assert.True(t, gateway.IsQuotaExhausted(err))

	assert.Equal(t, StatusAborted, report.Status)
	assert.Equal(t, 1, report.MessagesFailed)
}

func TestRunPermanentBatchFailureContinues(t *testing.T) {
	svc := newFakeService()
	seedMailbox(svc)
	svc.addMessage(gmail.Message{ID: "m1", From: "billing@acme.com", LabelIDs: []string{"INBOX"}})
	svc.addMessage(gmail.Message{ID: "m2", From: "news@letters.io", HasUnsubscribe: true, LabelIDs: []string{"INBOX"}})
	svc.addPage("m1", "m2")
	// First group is rejected, second goes through.
	svc.batchErrs = []error{&googleapi.Error{Code: http.StatusBadRequest, Message: "invalid label"}}

	o := newTestOrganizer(t, Config{}, svc)
	report, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, report.Status)
	assert.Equal(t, 1, report.MessagesFailed)
	assert.Equal(t, 1, report.MessagesLabeled)
	require.Len(t, svc.batchCalls, 2)
}

func TestRunCancelledAtBatchBoundary(t *testing.T) {
	svc := newFakeService()
	seedMailbox(svc)
	svc.addMessage(gmail.Message{ID: "m1", From: "billing@acme.com", LabelIDs: []string{"INBOX"}})
	svc.addMessage(gmail.Message{ID: "m2", From: "billing@acme.com", LabelIDs: []string{"INBOX"}})
	svc.addPage("m1", "m2")
	svc.addPage("m3", "m4")

	ctx, cancel := context.WithCancel(context.Background())
	svc.afterBatch = cancel

	o := newTestOrganizer(t, Config{}, svc)
	report, err := o.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	// The first page's batch completed and is recorded; the second page
	// was never listed.
	assert.Equal(t, StatusCancelled, report.Status)
	assert.Equal(t, 2, report.MessagesScanned)
	assert.Equal(t, 2, report.MessagesLabeled)
	assert.Equal(t, 1, svc.listCalls)
	require.Len(t, svc.batchCalls, 1)
}

func TestRunDeadlineReportsTimeout(t *testing.T) {
	svc := newFakeService()
	seedMailbox(svc)
	svc.addMessage(gmail.Message{ID: "m1", From: "billing@acme.com", LabelIDs: []string{"INBOX"}})
	svc.addPage("m1")
	svc.addPage("m2")
	svc.listErrs[1] = context.DeadlineExceeded

	o := newTestOrganizer(t, Config{}, svc)
	report, err := o.Run(context.Background())
	require.Error(t, err)

	assert.Equal(t, StatusTimeout, report.Status)
	// The first page's work survives in the report.
	assert.Equal(t, 1, report.MessagesLabeled)
}

func TestRunDryRunLeavesMailboxUntouched(t *testing.T) {
	svc := newFakeService()
	svc.dryRun = true
	seedMailbox(svc)
	svc.addMessage(gmail.Message{ID: "m1", From: "billing@acme.com", LabelIDs: []string{"INBOX"}})
	svc.addMessage(gmail.Message{ID: "m2", From: "stranger@foo.org", LabelIDs: []string{"INBOX"}})
	svc.addPage("m1", "m2")

	o := newTestOrganizer(t, Config{}, svc)
	report, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, report.DryRun)
	assert.Equal(t, StatusCompleted, report.Status)
	assert.Equal(t, 1, report.MessagesLabeled)
	assert.Equal(t, 1, report.MessagesFlagged)

	// Planning resolved against synthesized ids for labels that would
	// be created.
	require.Len(t, svc.batchCalls, 2)
	found := false
	for _, call := range svc.batchCalls {
		for _, id := range call.add {
			if gmail.IsDryRunLabelID(id) {
				found = true
			}
		}
	}
	assert.True(t, found, "expected a synthesized label id in the planned mutations")

	// Nothing actually changed.
	assert.Equal(t, []string{"INBOX"}, svc.messages["m1"].LabelIDs)
	assert.Equal(t, []string{"INBOX"}, svc.messages["m2"].LabelIDs)
}

func TestRunTwiceIsIdempotent(t *testing.T) {
	svc := newFakeService()
	seedMailbox(svc)
	svc.addMessage(gmail.Message{ID: "m1", From: "billing@acme.com", LabelIDs: []string{"INBOX"}})
	svc.addMessage(gmail.Message{ID: "m2", From: "news@letters.io", HasUnsubscribe: true, LabelIDs: []string{"INBOX"}})
	svc.addPage("m1", "m2")

	o := newTestOrganizer(t, Config{}, svc)
	first, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, first.MessagesLabeled)
	callsAfterFirst := len(svc.batchCalls)

	second, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, second.MessagesScanned)
	assert.Equal(t, 2, second.MessagesSkipped)
	assert.Equal(t, 0, second.MessagesLabeled)
	assert.Equal(t, 0, second.LabelsCreated)
	assert.Len(t, svc.batchCalls, callsAfterFirst)
	assert.Same(t, second, o.Latest())
}

func TestCleanupEmptyLegacy(t *testing.T) {
	svc := newFakeService()
	seedMailbox(svc)
	svc.addLabel("lbl-empty", "old-receipts", "user", 0)
	svc.addLabel("lbl-busy", "old-invoices", "user", 3)
	svc.addLabel("lbl-other", "Projects", "user", 0)

	o := newTestOrganizer(t, Config{}, svc)
	result, err := o.CleanupEmptyLegacy(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"old-receipts"}, result.Deleted)
	assert.Equal(t, []string{"old-invoices"}, result.Kept)
	assert.Equal(t, []string{"lbl-empty"}, svc.deleted)
	// Labels without a legacy mapping are not candidates.
	assert.NotContains(t, svc.deleted, "lbl-other")
}

func TestCleanupToleratesVanishedLabel(t *testing.T) {
	svc := newFakeService()
	seedMailbox(svc)
	svc.addLabel("lbl-gone", "old-receipts", "user", 0)
	svc.getLabelErr["lbl-gone"] = &googleapi.Error{Code: http.StatusNotFound, Message: "gone"}

	o := newTestOrganizer(t, Config{}, svc)
	result, err := o.CleanupEmptyLegacy(context.Background())
	require.NoError(t, err)

	assert.Empty(t, result.Deleted)
	assert.Empty(t, result.Kept)
	assert.Empty(t, svc.deleted)
}

func TestCleanupNeverTouchesHierarchyOrSystemLabels(t *testing.T) {
	svc := newFakeService()
	seedMailbox(svc)

	o := newTestOrganizer(t, Config{}, svc)
	result, err := o.CleanupEmptyLegacy(context.Background())
	require.NoError(t, err)

	assert.Empty(t, result.Deleted)
	assert.Empty(t, svc.deleted)
}

func TestNewRejectsMissingDependencies(t *testing.T) {
	tax := testTaxonomy(t)

	_, err := New(Config{}, nil, nil, tax, nil, nil)
	assert.Error(t, err)

	_, err = New(Config{}, newFakeService(), nil, nil, nil, nil)
	assert.Error(t, err)
}

func TestNewRejectsBadRulePattern(t *testing.T) {
	tax, err := taxonomy.FromFile(&taxonomy.File{
		Labels: []string{"MUSIC"},
		Rules: []taxonomy.RuleSpec{
			{Name: "broken", From: "[", Labels: []string{"MUSIC"}},
		},
	})
	require.NoError(t, err)

	_, err = New(Config{}, newFakeService(), nil, tax, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
}

func TestPhaseTransitions(t *testing.T) {
	svc := newFakeService()
	seedMailbox(svc)

	o := newTestOrganizer(t, Config{LabelsOnly: true}, svc)
	assert.Equal(t, PhaseIdle, o.Phase())

	_, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PhaseDone, o.Phase())
}

func TestPhaseString(t *testing.T) {
	tests := []struct {
		phase Phase
		want  string
	}{
		{PhaseIdle, "idle"},
		{PhaseListing, "listing"},
		{PhaseClassify, "classify"},
		{PhaseApply, "apply"},
		{PhaseFinalizing, "finalizing"},
		{PhaseDone, "done"},
		{Phase(99), "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.phase.String())
	}
}

func TestSenderDomain(t *testing.T) {
	tests := []struct {
		from string
		want string
	}{
		{"billing@acme.com", "acme.com"},
		{"Billing Dept <billing@acme.com>", "acme.com"},
		{`"Acme, Inc." <no-reply@mail.acme.com>`, "mail.acme.com"},
		{"not an address", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, senderDomain(tt.from), "from %q", tt.from)
	}
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, StatusCompleted, statusFor(nil))
	assert.Equal(t, StatusCancelled, statusFor(context.Canceled))
	assert.Equal(t, StatusTimeout, statusFor(context.DeadlineExceeded))
	assert.Equal(t, StatusTimeout, statusFor(&gateway.APIError{Class: gateway.ClassTimeout, Op: "messages.list"}))
	assert.Equal(t, StatusAborted, statusFor(&googleapi.Error{Code: http.StatusUnauthorized}))
}
