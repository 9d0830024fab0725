// Package planner computes per-message label diffs. Given a message's
// current labels and its classification targets, it decides what to
// add and which legacy labels can safely be removed. Planning is pure
// bookkeeping; all remote effects stay with the orchestrator.
package planner

import (
	"github.com/mailfold/mailfold/internal/hierarchy"
	"github.com/mailfold/mailfold/internal/taxonomy"
)

// MutationIntent is the label diff for one message. An empty intent
// means the message is already organized and no remote call is issued
// for it; a second run over an organized mailbox therefore produces
// only empty intents.
type MutationIntent struct {
	MessageID string
	Add       []taxonomy.Path
	Remove    []taxonomy.Path
}

// IsEmpty reports whether the intent changes nothing.
func (mi MutationIntent) IsEmpty() bool {
	return len(mi.Add) == 0 && len(mi.Remove) == 0
}

// Resolver reports whether a path is bound to a remote id.
// *hierarchy.Manager satisfies it.
type Resolver interface {
	Resolve(path taxonomy.Path) (hierarchy.Node, bool)
}

// Planner derives mutation intents from classification results and the
// taxonomy's legacy migration table.
type Planner struct {
	tax      *taxonomy.Taxonomy
	resolver Resolver
}

// New creates a Planner.
func New(tax *taxonomy.Taxonomy, resolver Resolver) *Planner {
	return &Planner{tax: tax, resolver: resolver}
}

// Plan computes the diff for one message. current holds the message's
// existing label names in canonical form (system labels included);
// targets is the classifier output.
//
// Additions are the targets not already on the message. A current
// label is removed only when the legacy table maps it to a replacement
// that is either being added or already present, and that replacement
// resolves to a remote id. A legacy label is never stripped with
// nothing in place to replace it.
func (p *Planner) Plan(messageID string, current []string, targets []taxonomy.Path) MutationIntent {
	intent := MutationIntent{MessageID: messageID}

	currentSet := make(map[string]struct{}, len(current))
	for _, name := range current {
		currentSet[name] = struct{}{}
	}

	addSet := make(map[string]struct{}, len(targets))
	for _, target := range targets {
		key := target.String()
		if _, has := currentSet[key]; has {
			continue
		}
		if _, dup := addSet[key]; dup {
			continue
		}
		addSet[key] = struct{}{}
		intent.Add = append(intent.Add, target)
	}

	for _, name := range current {
		replacement, ok := p.tax.MapLegacy(name)
		if !ok {
			continue
		}

		key := replacement.String()
		_, beingAdded := addSet[key]
		_, alreadyPresent := currentSet[key]
		if !beingAdded && !alreadyPresent {
			continue
		}
		if _, resolved := p.resolver.Resolve(replacement); !resolved {
			continue
		}

		path, err := taxonomy.ParsePath(name)
		if err != nil {
			continue
		}
		intent.Remove = append(intent.Remove, path)
	}

	return intent
}
