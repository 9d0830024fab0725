package classify

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/mailfold/mailfold/internal/taxonomy"
)

// Rule is one compiled classification rule. A rule fires only if every
// non-nil matcher matches; a firing rule contributes all of its target
// paths.
type Rule struct {
	Name     string
	Priority int

	// Matchers over message fields, compiled case-insensitive. A nil
	// matcher leaves the field unconstrained.
	From    *regexp.Regexp
	To      *regexp.Regexp
	Subject *regexp.Regexp
	Snippet *regexp.Regexp
	Label   *regexp.Regexp

	// HasUnsubscribe, when set, requires a List-Unsubscribe header.
	HasUnsubscribe bool

	Targets []taxonomy.Path
}

// Matches reports whether every matcher of the rule matches the
// message.
func (r *Rule) Matches(m Message) bool {
	if r.From != nil && !r.From.MatchString(m.From) {
		return false
	}
	if r.To != nil && !r.To.MatchString(m.To) {
		return false
	}
	if r.Subject != nil && !r.Subject.MatchString(m.Subject) {
		return false
	}
	if r.Snippet != nil && !r.Snippet.MatchString(m.Snippet) {
		return false
	}
	if r.Label != nil && !m.anyLabelMatches(r.Label) {
		return false
	}
	if r.HasUnsubscribe && !m.HasUnsubscribe {
		return false
	}
	return true
}

// RuleSet holds compiled rules ordered by ascending priority;
// definition order breaks ties so evaluation is stable across runs.
type RuleSet struct {
	rules []Rule
}

// Compile compiles raw rule specs into an ordered RuleSet. Patterns
// are matched case-insensitively. Returns an error for any pattern or
// target path that does not compile.
func Compile(specs []taxonomy.RuleSpec) (*RuleSet, error) {
	rules := make([]Rule, 0, len(specs))
	for _, spec := range specs {
		rule := Rule{
			Name:           spec.Name,
			Priority:       spec.Priority,
			HasUnsubscribe: spec.HasUnsubscribe,
		}

		var err error
		if rule.From, err = compilePattern(spec.From); err != nil {
			return nil, fmt.Errorf("rule %q: invalid from pattern: %w", spec.Name, err)
		}
		if rule.To, err = compilePattern(spec.To); err != nil {
			return nil, fmt.Errorf("rule %q: invalid to pattern: %w", spec.Name, err)
		}
		if rule.Subject, err = compilePattern(spec.Subject); err != nil {
			return nil, fmt.Errorf("rule %q: invalid subject pattern: %w", spec.Name, err)
		}
		if rule.Snippet, err = compilePattern(spec.Snippet); err != nil {
			return nil, fmt.Errorf("rule %q: invalid snippet pattern: %w", spec.Name, err)
		}
		if rule.Label, err = compilePattern(spec.Label); err != nil {
			return nil, fmt.Errorf("rule %q: invalid label pattern: %w", spec.Name, err)
		}

		for _, raw := range spec.Labels {
			target, err := taxonomy.ParsePath(raw)
			if err != nil {
				return nil, fmt.Errorf("rule %q: %w", spec.Name, err)
			}
			rule.Targets = append(rule.Targets, target)
		}

		rules = append(rules, rule)
	}

	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].Priority < rules[j].Priority
	})

	return &RuleSet{rules: rules}, nil
}

func compilePattern(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, nil
	}
	return regexp.Compile("(?i)" + pattern)
}

// Rules returns the rules in evaluation order.
func (rs *RuleSet) Rules() []Rule {
	return rs.rules
}

// Len returns the number of rules.
func (rs *RuleSet) Len() int {
	return len(rs.rules)
}
