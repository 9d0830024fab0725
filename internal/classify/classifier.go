// Package classify assigns hierarchical label paths to messages by
// evaluating an ordered rule set over message metadata. Classification
// is pure: it never touches remote state, so identical inputs always
// produce identical output.
package classify

import (
	"regexp"

	"github.com/mailfold/mailfold/internal/taxonomy"
)

// Message is the metadata view a classifier sees. It carries no remote
// identifiers; callers build it from whatever transport they use.
type Message struct {
	From           string
	To             string
	Subject        string
	Snippet        string
	Labels         []string
	HasUnsubscribe bool
}

func (m Message) anyLabelMatches(re *regexp.Regexp) bool {
	for _, label := range m.Labels {
		if re.MatchString(label) {
			return true
		}
	}
	return false
}

// Classifier evaluates a compiled rule set against messages.
type Classifier struct {
	rules    *RuleSet
	fallback taxonomy.Path
}

// New creates a Classifier. Messages matching no rule are assigned the
// fallback path, so every message always receives at least one label.
func New(rules *RuleSet, fallback taxonomy.Path) *Classifier {
	return &Classifier{rules: rules, fallback: fallback}
}

// FromTaxonomy builds a Classifier from a validated taxonomy.
func FromTaxonomy(tax *taxonomy.Taxonomy) (*Classifier, error) {
	rules, err := Compile(tax.Rules())
	if err != nil {
		return nil, err
	}
	return New(rules, tax.FallbackPath()), nil
}

// Classify returns the label paths for a message. Rules are evaluated
// in ascending priority order and every firing rule contributes its
// targets; duplicates keep their first position. If no rule fires the
// result is exactly the fallback path.
func (c *Classifier) Classify(m Message) []taxonomy.Path {
	var result []taxonomy.Path
	seen := make(map[string]struct{})

	for i := range c.rules.rules {
		rule := &c.rules.rules[i]
		if !rule.Matches(m) {
			continue
		}
		for _, target := range rule.Targets {
			key := target.String()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			result = append(result, target)
		}
	}

	if len(result) == 0 {
		return []taxonomy.Path{c.fallback}
	}
	return result
}

// MatchingRules returns the names of all rules that fire for the
// message, in evaluation order. Used for preview output and reports.
func (c *Classifier) MatchingRules(m Message) []string {
	var names []string
	for i := range c.rules.rules {
		if c.rules.rules[i].Matches(m) {
			names = append(names, c.rules.rules[i].Name)
		}
	}
	return names
}
