// Package hierarchy maintains the mapping between hierarchical label
// paths and their remote Gmail ids for the duration of a run. Remote
// state is read once; everything after that goes through the in-memory
// registry, which is the single source of truth for resolution.
package hierarchy

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mailfold/mailfold/internal/gmail"
	"github.com/mailfold/mailfold/internal/instrumentation"
	"github.com/mailfold/mailfold/internal/logging"
	"github.com/mailfold/mailfold/internal/taxonomy"
)

// LabelService is the slice of the remote surface the manager needs.
// *gmail.Service satisfies it.
type LabelService interface {
	ListLabels(ctx context.Context) ([]gmail.Label, error)
	CreateLabel(ctx context.Context, name string) (gmail.Label, error)
}

// Node is a resolved label: a taxonomy path bound to its remote id.
// The id is immutable once assigned for the lifetime of the run.
type Node struct {
	Path                  taxonomy.Path
	ID                    string
	LabelListVisibility   string
	MessageListVisibility string
	Created               bool // created by this run, as opposed to found existing
}

// Manager owns the path-to-id registry for one run. The registry is
// populated from a single remote listing on first use and extended as
// labels are created. Applying a label by unresolved path is a
// programming error, so every mutation path resolves through here.
type Manager struct {
	svc     LabelService
	logger  *slog.Logger
	metrics *instrumentation.Metrics

	mu       sync.Mutex
	listed   bool
	registry map[string]Node   // canonical path -> node
	pathByID map[string]string // remote id -> canonical path
	snapshot []gmail.Label     // full listing, system labels included
}

// NewManager creates a Manager on top of a label service.
func NewManager(svc LabelService, logger *slog.Logger, metrics *instrumentation.Metrics) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		svc:      svc,
		logger:   logger,
		metrics:  metrics,
		registry: make(map[string]Node),
		pathByID: make(map[string]string),
	}
}

// EnsureHierarchy makes sure every path in the taxonomy exists
// remotely, creating missing labels parent before child. It returns
// the registry view of all ensured paths keyed by canonical path.
func (m *Manager) EnsureHierarchy(ctx context.Context, paths []taxonomy.Path) (map[string]Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensureListedLocked(ctx); err != nil {
		return nil, err
	}

	result := make(map[string]Node, len(paths))
	for _, path := range paths {
		for _, prefix := range append(path.Ancestors(), path) {
			key := prefix.String()
			if _, ok := result[key]; ok {
				continue
			}
			node, err := m.ensureLocked(ctx, prefix)
			if err != nil {
				return nil, fmt.Errorf("failed to ensure label %s: %w", key, err)
			}
			result[key] = node
		}
	}
	return result, nil
}

// Resolve returns the node for a path if it is known to the registry.
// It never issues a remote call.
func (m *Manager) Resolve(path taxonomy.Path) (Node, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	node, ok := m.registry[path.String()]
	return node, ok
}

// Create ensures a single path (and its ancestors) outside the bulk
// pass, for labels discovered mid-run.
func (m *Manager) Create(ctx context.Context, path taxonomy.Path) (Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensureListedLocked(ctx); err != nil {
		return Node{}, err
	}

	for _, prefix := range path.Ancestors() {
		if _, err := m.ensureLocked(ctx, prefix); err != nil {
			return Node{}, fmt.Errorf("failed to ensure parent %s: %w", prefix, err)
		}
	}
	node, err := m.ensureLocked(ctx, path)
	if err != nil {
		return Node{}, fmt.Errorf("failed to ensure label %s: %w", path, err)
	}
	return node, nil
}

// PathOf maps a remote label id back to its canonical path. Used to
// express a message's current labels in path terms.
func (m *Manager) PathOf(id string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	path, ok := m.pathByID[id]
	return path, ok
}

// Snapshot returns the labels seen by the initial listing, system
// labels included. Cleanup walks this to find legacy candidates.
func (m *Manager) Snapshot(ctx context.Context) ([]gmail.Label, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ensureListedLocked(ctx); err != nil {
		return nil, err
	}
	out := make([]gmail.Label, len(m.snapshot))
	copy(out, m.snapshot)
	return out, nil
}

// Invalidate drops the cached listing and registry so the next use
// starts from a fresh remote view. Call between runs when the manager
// outlives a single pipeline pass.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listed = false
	m.registry = make(map[string]Node)
	m.pathByID = make(map[string]string)
	m.snapshot = nil
}

// CreatedCount returns how many labels this run has created so far.
func (m *Manager) CreatedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, node := range m.registry {
		if node.Created {
			n++
		}
	}
	return n
}

// ensureListedLocked performs the one full remote listing per run.
func (m *Manager) ensureListedLocked(ctx context.Context) error {
	if m.listed {
		return nil
	}
	if err := m.refreshLocked(ctx); err != nil {
		return err
	}
	m.listed = true
	return nil
}

// refreshLocked replaces the registry content with a fresh listing.
// Created flags survive for labels this run made.
func (m *Manager) refreshLocked(ctx context.Context) error {
	labels, err := m.svc.ListLabels(ctx)
	if err != nil {
		return fmt.Errorf("failed to list labels: %w", err)
	}

	created := make(map[string]bool, len(m.registry))
	for key, node := range m.registry {
		if node.Created {
			created[key] = true
		}
	}

	m.snapshot = labels
	m.registry = make(map[string]Node, len(labels))
	m.pathByID = make(map[string]string, len(labels))

	for _, l := range labels {
		path, err := taxonomy.ParsePath(l.Name)
		if err != nil {
			// Names with empty segments cannot be addressed as
			// taxonomy paths; leave them outside the registry.
			continue
		}
		key := path.String()
		m.registry[key] = Node{
			Path:                  path,
			ID:                    l.ID,
			LabelListVisibility:   l.LabelListVisibility,
			MessageListVisibility: l.MessageListVisibility,
			Created:               created[key],
		}
		m.pathByID[l.ID] = key
	}

	m.logger.Debug("label registry populated", "labels", len(m.registry))
	return nil
}

// ensureLocked resolves one path, creating the remote label if absent.
func (m *Manager) ensureLocked(ctx context.Context, path taxonomy.Path) (Node, error) {
	key := path.String()
	if node, ok := m.registry[key]; ok {
		m.recordEnsure(ctx, instrumentation.EnsureExisted)
		return node, nil
	}

	label, err := m.svc.CreateLabel(ctx, key)
	if err != nil {
		if !gmail.IsAlreadyExists(err) {
			return Node{}, err
		}
		// Someone created it concurrently. Refresh and resolve by name.
		m.logger.Debug("label already exists, re-resolving", logging.Label(key))
		if err := m.refreshLocked(ctx); err != nil {
			return Node{}, err
		}
		node, ok := m.registry[key]
		if !ok {
			return Node{}, fmt.Errorf("label %s reported as existing but absent from listing", key)
		}
		m.recordEnsure(ctx, instrumentation.EnsureExisted)
		return node, nil
	}

	node := Node{
		Path:                  path,
		ID:                    label.ID,
		LabelListVisibility:   label.LabelListVisibility,
		MessageListVisibility: label.MessageListVisibility,
		Created:               true,
	}
	m.registry[key] = node
	m.pathByID[label.ID] = key

	m.logger.Info("label created", logging.Label(key))
	m.recordEnsure(ctx, instrumentation.EnsureCreated)
	return node, nil
}

func (m *Manager) recordEnsure(ctx context.Context, result string) {
	if m.metrics != nil {
		m.metrics.RecordLabelEnsured(ctx, result)
	}
}
