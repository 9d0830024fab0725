// Package organizer drives the mail organization pipeline for one
// account: ensure the label hierarchy, list messages page by page,
// classify each message against the taxonomy rules, plan the label
// mutations, and apply them in batches. Every run produces a Report
// regardless of how it ends.
package organizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mailfold/mailfold/internal/classify"
	"github.com/mailfold/mailfold/internal/gateway"
	"github.com/mailfold/mailfold/internal/gmail"
	"github.com/mailfold/mailfold/internal/hierarchy"
	"github.com/mailfold/mailfold/internal/instrumentation"
	"github.com/mailfold/mailfold/internal/logging"
	"github.com/mailfold/mailfold/internal/planner"
	"github.com/mailfold/mailfold/internal/taxonomy"
)

// Defaults applied by New when the corresponding Config field is zero.
const (
	DefaultPageSize        = 100
	DefaultBatchSize       = 100
	DefaultClassifyWorkers = 4
)

// subjectDisplayLimit caps subject length in report records.
const subjectDisplayLimit = 80

// Service is the mailbox surface an organize run drives. *gmail.Service
// implements it; tests substitute fakes.
type Service interface {
	Account() string
	DryRun() bool
	ListLabels(ctx context.Context) ([]gmail.Label, error)
	CreateLabel(ctx context.Context, name string) (gmail.Label, error)
	GetLabel(ctx context.Context, id string) (gmail.Label, error)
	DeleteLabel(ctx context.Context, id string) error
	ListMessages(ctx context.Context, query, pageToken string, pageSize int64) (*gmail.MessagePage, error)
	GetMetadata(ctx context.Context, id string) (gmail.Message, error)
	BatchModify(ctx context.Context, ids, addLabelIDs, removeLabelIDs []string) error
}

// Config controls a single organize run.
type Config struct {
	// Query narrows which messages are scanned, in Gmail search syntax.
	// Empty scans the whole mailbox.
	Query string
	// PageSize is how many message references one listing call returns,
	// clamped to the API maximum of 100.
	PageSize int64
	// BatchSize caps how many message ids one batch mutation carries.
	BatchSize int
	// MaxMessages stops the run after this many messages were scanned.
	// Zero means no limit.
	MaxMessages int
	// MaxRunTime bounds the whole run. Zero means no deadline.
	MaxRunTime time.Duration
	// ClassifyWorkers bounds concurrent metadata fetches during
	// classification.
	ClassifyWorkers int
	// LabelsOnly ensures the hierarchy and stops without touching
	// messages.
	LabelsOnly bool
	// SkipMigration classifies and labels but never removes legacy
	// labels.
	SkipMigration bool
}

// Phase is the coarse position of a run in its pipeline, exposed for
// health reporting.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseListing
	PhaseClassify
	PhaseApply
	PhaseFinalizing
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseListing:
		return "listing"
	case PhaseClassify:
		return "classify"
	case PhaseApply:
		return "apply"
	case PhaseFinalizing:
		return "finalizing"
	case PhaseDone:
		return "done"
	default:
		return "unknown"
	}
}

// Organizer runs the pipeline for one account. It owns the hierarchy
// registry, the compiled classifier, and the mutation planner; the
// remote side is reached only through the Service.
type Organizer struct {
	cfg        Config
	svc        Service
	gw         *gateway.Gateway
	tax        *taxonomy.Taxonomy
	classifier *classify.Classifier
	hierarchy  *hierarchy.Manager
	planner    *planner.Planner
	logger     *slog.Logger
	metrics    *instrumentation.Metrics
	audit      *instrumentation.AuditLogger

	phase atomic.Int32

	mu     sync.Mutex
	latest *Report
}

// New builds an Organizer. The gateway is only read for its traffic
// counters and may be nil in tests; logger and metrics may be nil.
func New(cfg Config, svc Service, gw *gateway.Gateway, tax *taxonomy.Taxonomy, logger *slog.Logger, metrics *instrumentation.Metrics) (*Organizer, error) {
	if svc == nil {
		return nil, errors.New("organizer: nil service")
	}
	if tax == nil {
		return nil, errors.New("organizer: nil taxonomy")
	}
	classifier, err := classify.FromTaxonomy(tax)
	if err != nil {
		return nil, fmt.Errorf("failed to compile classification rules: %w", err)
	}

	if cfg.PageSize <= 0 || cfg.PageSize > DefaultPageSize {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.BatchSize <= 0 || cfg.BatchSize > DefaultBatchSize {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.ClassifyWorkers <= 0 {
		cfg.ClassifyWorkers = DefaultClassifyWorkers
	}

	if logger == nil {
		logger = slog.Default()
	}
	logger = logging.WithAccount(logger, svc.Account())
	logger = logging.WithDryRun(logger, svc.DryRun())

	mgr := hierarchy.NewManager(svc, logger, metrics)
	return &Organizer{
		cfg:        cfg,
		svc:        svc,
		gw:         gw,
		tax:        tax,
		classifier: classifier,
		hierarchy:  mgr,
		planner:    planner.New(tax, mgr),
		logger:     logger,
		metrics:    metrics,
	}, nil
}

// SetAuditLogger installs the audit trail for label mutations. Applied,
// planned (dry-run) and failed mutations are then recorded per message.
func (o *Organizer) SetAuditLogger(audit *instrumentation.AuditLogger) {
	o.audit = audit
}

// Phase returns the pipeline position of the current or last run.
func (o *Organizer) Phase() Phase {
	return Phase(o.phase.Load())
}

func (o *Organizer) setPhase(p Phase) {
	o.phase.Store(int32(p))
}

// Latest returns the report of the most recent finished run, or nil if
// no run has finished yet.
func (o *Organizer) Latest() *Report {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.latest
}

func (o *Organizer) setLatest(r *Report) {
	o.mu.Lock()
	o.latest = r
	o.mu.Unlock()
}

// Taxonomy returns the taxonomy the organizer classifies against.
func (o *Organizer) Taxonomy() *taxonomy.Taxonomy {
	return o.tax
}

// Classifier returns the compiled rule set.
func (o *Organizer) Classifier() *classify.Classifier {
	return o.classifier
}

// Hierarchy exposes the label registry for callers that inspect it.
func (o *Organizer) Hierarchy() *hierarchy.Manager {
	return o.hierarchy
}

// Run executes the pipeline and always returns a finalized report,
// which is also retained as Latest. The error, when non-nil, is the
// cause that stopped the run early; the report's status names it.
func (o *Organizer) Run(ctx context.Context) (*Report, error) {
	report := NewReport(o.svc.Account(), o.svc.DryRun())
	start := time.Now()

	ctx, span := instrumentation.StartSpan(ctx, "organize.run")
	defer span.End()

	if o.metrics != nil {
		o.metrics.IncrementActiveRuns(ctx)
		defer o.metrics.DecrementActiveRuns(ctx)
	}

	runCtx := ctx
	if o.cfg.MaxRunTime > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, o.cfg.MaxRunTime)
		defer cancel()
	}

	o.logger.Info("organize run starting",
		slog.String("query", o.cfg.Query),
		slog.Bool("labels_only", o.cfg.LabelsOnly),
		slog.Bool("skip_migration", o.cfg.SkipMigration))

	runErr := o.run(runCtx, report)

	o.setPhase(PhaseFinalizing)
	var stats gateway.Stats
	if o.gw != nil {
		stats = o.gw.Stats()
	}
	status := statusFor(runErr)
	report.Finalize(status, runErr, stats)
	if o.metrics != nil {
		o.metrics.RecordOrganizeRun(ctx, string(status), time.Since(start))
		o.recordProcessed(ctx, report)
	}
	o.setLatest(report)
	o.setPhase(PhaseDone)

	if runErr != nil {
		instrumentation.SetSpanError(span, runErr)
		o.logger.Error("organize run stopped early",
			logging.Err(runErr),
			slog.String("summary", report.Summary()))
		return report, runErr
	}
	instrumentation.SetSpanSuccess(span)
	o.logger.Info("organize run finished", slog.String("summary", report.Summary()))
	return report, nil
}

func (o *Organizer) run(ctx context.Context, report *Report) error {
	o.hierarchy.Invalidate()

	o.setPhase(PhaseListing)
	nodes, err := o.hierarchy.EnsureHierarchy(ctx, o.tax.Paths())
	if err != nil {
		return err
	}
	report.LabelsCreated = o.hierarchy.CreatedCount()
	report.LabelsExisted = len(nodes) - report.LabelsCreated
	o.logger.Info("label hierarchy ready",
		slog.Int("labels", len(nodes)),
		slog.Int("created", report.LabelsCreated))

	if o.cfg.LabelsOnly {
		return nil
	}

	pageToken := ""
	page := 0
	for {
		// Cancellation is honored between batches, never inside one.
		if err := ctx.Err(); err != nil {
			return err
		}
		if o.cfg.MaxMessages > 0 && report.MessagesScanned >= o.cfg.MaxMessages {
			return nil
		}

		o.setPhase(PhaseListing)
		listing, err := o.svc.ListMessages(ctx, o.cfg.Query, pageToken, o.cfg.PageSize)
		if err != nil {
			return err
		}
		page++

		refs := listing.Refs
		if o.cfg.MaxMessages > 0 {
			if remaining := o.cfg.MaxMessages - report.MessagesScanned; len(refs) > remaining {
				refs = refs[:remaining]
			}
		}
		if len(refs) > 0 {
			report.AddScanned(len(refs))
			o.logger.Debug("page listed",
				slog.Int(logging.KeyPage, page),
				slog.Int("messages", len(refs)))

			o.setPhase(PhaseClassify)
			results, err := o.classifyPage(ctx, refs)
			if err != nil {
				return err
			}

			o.setPhase(PhaseApply)
			if err := o.applyPage(ctx, results, report); err != nil {
				return err
			}
		}

		pageToken = listing.NextPageToken
		if pageToken == "" {
			return nil
		}
	}
}

// pageResult carries one message through fetch, classify, and plan.
type pageResult struct {
	ref    gmail.MessageRef
	msg    gmail.Message
	rules  []string
	intent planner.MutationIntent
	err    error
}

// classifyPage fetches metadata for every reference on the page and
// derives each message's mutation intent. Fetches run concurrently,
// bounded by ClassifyWorkers. A failure that only affects one message
// lands in its result; a failure that dooms the run aborts the group.
func (o *Organizer) classifyPage(ctx context.Context, refs []gmail.MessageRef) ([]pageResult, error) {
	results := make([]pageResult, len(refs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.ClassifyWorkers)
	for i, ref := range refs {
		g.Go(func() error {
			results[i].ref = ref
			msg, err := o.svc.GetMetadata(gctx, ref.ID)
			if err != nil {
				if abortsRun(err) {
					return err
				}
				results[i].err = err
				return nil
			}
			results[i].msg = msg
			results[i].intent, results[i].rules = o.planMessage(msg)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// planMessage classifies one message and derives its mutation intent.
// The message's current labels are expressed as registry paths; label
// ids the registry cannot name are passed over and never touched.
func (o *Organizer) planMessage(msg gmail.Message) (planner.MutationIntent, []string) {
	current := make([]string, 0, len(msg.LabelIDs))
	for _, id := range msg.LabelIDs {
		if path, ok := o.hierarchy.PathOf(id); ok {
			current = append(current, path)
		}
	}
	cm := classify.Message{
		From:           msg.From,
		To:             msg.To,
		Subject:        msg.Subject,
		Snippet:        msg.Snippet,
		Labels:         current,
		HasUnsubscribe: msg.HasUnsubscribe,
	}
	targets := o.classifier.Classify(cm)
	rules := o.classifier.MatchingRules(cm)
	intent := o.planner.Plan(msg.ID, current, targets)
	if o.cfg.SkipMigration {
		intent.Remove = nil
	}
	return intent, rules
}

// mutationGroup collects messages that need the identical resolved
// mutation, so one batch call can cover all of them.
type mutationGroup struct {
	addIDs      []string
	removeIDs   []string
	addPaths    []string
	removePaths []string
	items       []*pageResult
}

// applyPage turns the page's intents into batched label mutations. The
// batch endpoint applies one add/remove set to many ids, so intents
// are grouped by identical resolved mutation and each group is flushed
// in chunks of at most BatchSize.
func (o *Organizer) applyPage(ctx context.Context, results []pageResult, report *Report) error {
	groups := make(map[string]*mutationGroup)
	var order []string

	for i := range results {
		r := &results[i]
		if r.err != nil {
			report.RecordOutcome(o.outcomeFor(r, OutcomeFailed, r.err))
			continue
		}
		if r.intent.IsEmpty() {
			report.RecordOutcome(o.outcomeFor(r, OutcomeSkipped, nil))
			continue
		}
		add, remove, err := o.resolveIntent(r)
		if err != nil {
			report.RecordOutcome(o.outcomeFor(r, OutcomeFailed, err))
			continue
		}
		key := strings.Join(add, ",") + "|" + strings.Join(remove, ",")
		grp, ok := groups[key]
		if !ok {
			grp = &mutationGroup{
				addIDs:      add,
				removeIDs:   remove,
				addPaths:    pathStrings(r.intent.Add),
				removePaths: pathStrings(r.intent.Remove),
			}
			groups[key] = grp
			order = append(order, key)
		}
		grp.items = append(grp.items, r)
	}

	for _, key := range order {
		if err := o.flushGroup(ctx, groups[key], report); err != nil {
			return err
		}
	}
	return nil
}

// resolveIntent maps the intent's paths to remote label ids through
// the registry. Ids come back sorted so identical mutations group
// together regardless of classification order.
func (o *Organizer) resolveIntent(r *pageResult) (add, remove []string, err error) {
	for _, path := range r.intent.Add {
		node, ok := o.hierarchy.Resolve(path)
		if !ok {
			return nil, nil, fmt.Errorf("label %s is not in the registry", path)
		}
		add = append(add, node.ID)
	}
	for _, path := range r.intent.Remove {
		node, ok := o.hierarchy.Resolve(path)
		if !ok {
			return nil, nil, fmt.Errorf("label %s is not in the registry", path)
		}
		remove = append(remove, node.ID)
	}
	sort.Strings(add)
	sort.Strings(remove)
	return add, remove, nil
}

// flushGroup dispatches one group's messages in BatchSize chunks and
// records the per-message outcomes.
func (o *Organizer) flushGroup(ctx context.Context, grp *mutationGroup, report *Report) error {
	for start := 0; start < len(grp.items); start += o.cfg.BatchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+o.cfg.BatchSize, len(grp.items))
		chunk := grp.items[start:end]
		ids := make([]string, len(chunk))
		for i, r := range chunk {
			ids[i] = r.ref.ID
		}

		err := o.svc.BatchModify(ctx, ids, grp.addIDs, grp.removeIDs)
		if err != nil {
			if isContextError(err) {
				// The batch was not applied; leave its messages
				// unrecorded rather than guessing an outcome.
				return err
			}
			for _, r := range chunk {
				report.RecordOutcome(o.outcomeFor(r, OutcomeFailed, err))
			}
			o.auditGroup(ctx, chunk, grp, err)
			o.logger.Warn("label mutation failed",
				slog.Int("messages", len(ids)),
				slog.Any("add", grp.addPaths),
				slog.Any("remove", grp.removePaths),
				logging.Err(err))
			if o.metrics != nil {
				o.metrics.RecordLabelMutations(ctx, instrumentation.StatusError, int64(len(ids)))
			}
			if abortsRun(err) {
				return err
			}
			continue
		}

		status := logging.StatusSuccess
		mstat := instrumentation.StatusSuccess
		if o.svc.DryRun() {
			status = logging.StatusDryRun
			mstat = instrumentation.StatusDryRun
		}
		for _, r := range chunk {
			report.RecordOutcome(o.outcomeFor(r, o.successKind(r), nil))
		}
		o.auditGroup(ctx, chunk, grp, nil)
		o.logger.Info("labels modified",
			slog.Int("messages", len(ids)),
			slog.Any("add", grp.addPaths),
			slog.Any("remove", grp.removePaths),
			logging.Status(status))
		if o.metrics != nil {
			o.metrics.RecordLabelMutations(ctx, mstat, int64(len(ids)))
		}
	}
	return nil
}

// auditGroup writes one audit record per message of a flushed chunk.
func (o *Organizer) auditGroup(ctx context.Context, chunk []*pageResult, grp *mutationGroup, err error) {
	if o.audit == nil {
		return
	}
	for _, r := range chunk {
		event := &instrumentation.MutationEvent{
			MessageID: r.ref.ID,
			Account:   o.svc.Account(),
			Added:     grp.addPaths,
			Removed:   grp.removePaths,
			DryRun:    o.svc.DryRun(),
			Success:   err == nil,
		}
		if err != nil {
			event.Error = err.Error()
		}
		o.audit.LogMutation(event.WithSpanContext(ctx))
	}
}

// successKind picks the outcome kind for an applied mutation. Fallback
// assignment is the signal a human needs to see, so it wins over plain
// labeling; removing a legacy label marks the message migrated.
func (o *Organizer) successKind(r *pageResult) string {
	fallback := o.tax.FallbackPath()
	for _, p := range r.intent.Add {
		if p.Equal(fallback) {
			return OutcomeFlagged
		}
	}
	if len(r.intent.Remove) > 0 {
		return OutcomeMigrated
	}
	return OutcomeLabeled
}

// outcomeFor builds the report record for one message.
func (o *Organizer) outcomeFor(r *pageResult, kind string, err error) MessageOutcome {
	out := MessageOutcome{
		MessageID:    r.ref.ID,
		ThreadID:     r.ref.ThreadID,
		SenderDomain: senderDomain(r.msg.From),
		Subject:      truncate(r.msg.Subject, subjectDisplayLimit),
		Outcome:      kind,
		Added:        pathStrings(r.intent.Add),
		Removed:      pathStrings(r.intent.Remove),
		Rules:        r.rules,
	}
	if err != nil {
		out.Error = err.Error()
	}
	return out
}

// CleanupResult lists what a cleanup pass did.
type CleanupResult struct {
	// Deleted names the legacy labels removed because they held no
	// messages. In a dry run these are the labels that would be removed.
	Deleted []string `json:"deleted,omitempty"`
	// Kept names legacy labels preserved because messages still carry
	// them.
	Kept []string `json:"kept,omitempty"`
}

// CleanupEmptyLegacy deletes legacy labels that map into the hierarchy
// and no longer hold any messages. Each candidate is re-checked with a
// fresh message count before deletion; a label that vanished since the
// listing counts as already gone. System labels and hierarchy members
// are never candidates.
func (o *Organizer) CleanupEmptyLegacy(ctx context.Context) (*CleanupResult, error) {
	labels, err := o.hierarchy.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	result := &CleanupResult{}
	for _, l := range labels {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if l.IsSystem() || taxonomy.IsSystemLabel(l.Name) {
			continue
		}
		if o.tax.ContainsName(l.Name) {
			continue
		}
		if _, ok := o.tax.MapLegacy(l.Name); !ok {
			continue
		}

		fresh, err := o.svc.GetLabel(ctx, l.ID)
		if err != nil {
			if gmail.IsNotFound(err) {
				continue
			}
			return result, err
		}
		if fresh.MessagesTotal != 0 {
			result.Kept = append(result.Kept, l.Name)
			o.logger.Debug("legacy label still holds messages",
				logging.Label(l.Name),
				slog.Int64("messages", fresh.MessagesTotal))
			continue
		}

		if err := o.svc.DeleteLabel(ctx, l.ID); err != nil {
			if gmail.IsNotFound(err) {
				result.Deleted = append(result.Deleted, l.Name)
				continue
			}
			return result, err
		}
		result.Deleted = append(result.Deleted, l.Name)
		o.logger.Info("empty legacy label deleted", logging.Label(l.Name))
	}
	return result, nil
}

// recordProcessed feeds the per-outcome counters into the metrics.
func (o *Organizer) recordProcessed(ctx context.Context, r *Report) {
	for outcome, n := range map[string]int{
		instrumentation.OutcomeLabeled:  r.MessagesLabeled,
		instrumentation.OutcomeMigrated: r.MessagesMigrated,
		instrumentation.OutcomeFlagged:  r.MessagesFlagged,
		instrumentation.OutcomeSkipped:  r.MessagesSkipped,
		instrumentation.OutcomeFailed:   r.MessagesFailed,
	} {
		if n > 0 {
			o.metrics.RecordMessagesProcessed(ctx, outcome, int64(n))
		}
	}
}

// statusFor maps the cause that stopped a run to its report status.
func statusFor(err error) Status {
	switch {
	case err == nil:
		return StatusCompleted
	case errors.Is(err, context.Canceled):
		return StatusCancelled
	case errors.Is(err, context.DeadlineExceeded) || gateway.IsTimeout(err):
		return StatusTimeout
	default:
		return StatusAborted
	}
}

// abortsRun reports whether an operation error dooms the whole run
// rather than just the message it happened on.
func abortsRun(err error) bool {
	return gateway.IsUnauthenticated(err) ||
		gateway.IsQuotaExhausted(err) ||
		gateway.IsTimeout(err) ||
		isContextError(err)
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// senderDomain reduces a From header to the address domain. Display
// names are stripped first so `Billing <x@y.com>` yields `y.com`.
func senderDomain(from string) string {
	if from == "" {
		return ""
	}
	if addr, err := mail.ParseAddress(from); err == nil {
		return logging.ExtractDomain(addr.Address)
	}
	return logging.ExtractDomain(from)
}

func pathStrings(paths []taxonomy.Path) []string {
	if len(paths) == 0 {
		return nil
	}
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = p.String()
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
