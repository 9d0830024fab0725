package taxonomy

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// systemPrefixes are the reserved Gmail label names and name prefixes.
// They are never created, migrated or removed.
var systemPrefixes = []string{
	"CATEGORY_", "IMPORTANT", "CHAT", "SENT", "INBOX",
	"TRASH", "DRAFT", "SPAM", "STARRED", "UNREAD",
}

// IsSystemLabel reports whether the label name belongs to the mail
// service rather than the user.
func IsSystemLabel(name string) bool {
	upper := strings.ToUpper(name)
	for _, prefix := range systemPrefixes {
		if strings.HasPrefix(upper, prefix) {
			return true
		}
	}
	return false
}

// File is the on-disk YAML form of a taxonomy: the ordered label
// hierarchy, the legacy-label migration table and the classification
// rules. It is the versioned configuration input for a run.
type File struct {
	// Labels lists the hierarchical label paths to ensure remotely.
	// Parents may be omitted; they are inserted before their children
	// during normalization.
	Labels []string `yaml:"labels"`

	// Legacy maps old flat-scheme label names (regular expressions,
	// matched case-insensitively against the whole name) to their
	// replacement paths in the hierarchy.
	Legacy []LegacySpec `yaml:"legacy,omitempty"`

	// Rules are the classification rules, evaluated in ascending
	// priority order.
	Rules []RuleSpec `yaml:"rules,omitempty"`
}

// LegacySpec is one legacy-label migration entry.
type LegacySpec struct {
	Pattern string `yaml:"pattern"`
	Target  string `yaml:"target"`
}

// RuleSpec is the raw form of one classification rule. All pattern
// fields are regular expressions matched case-insensitively; a rule
// fires only if every non-empty matcher matches.
type RuleSpec struct {
	Name           string   `yaml:"name"`
	Priority       int      `yaml:"priority"`
	From           string   `yaml:"from,omitempty"`
	To             string   `yaml:"to,omitempty"`
	Subject        string   `yaml:"subject,omitempty"`
	Snippet        string   `yaml:"snippet,omitempty"`
	Label          string   `yaml:"label,omitempty"`
	HasUnsubscribe bool     `yaml:"hasUnsubscribe,omitempty"`
	Labels         []string `yaml:"labels"`
}

// LegacyRule is a compiled legacy-label migration entry.
type LegacyRule struct {
	Pattern *regexp.Regexp
	Target  Path
}

// Taxonomy is the validated, normalized label configuration for a run.
// Paths are ordered so that every parent precedes its children.
type Taxonomy struct {
	paths  []Path
	index  map[string]struct{}
	legacy []LegacyRule
	rules  []RuleSpec
}

// Load reads and validates a taxonomy file.
func Load(filename string) (*Taxonomy, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read taxonomy file: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse taxonomy file %s: %w", filename, err)
	}
	t, err := FromFile(&f)
	if err != nil {
		return nil, fmt.Errorf("invalid taxonomy file %s: %w", filename, err)
	}
	return t, nil
}

// FromFile validates and normalizes a taxonomy definition. Malformed
// entries (empty segment, duplicate path, unknown rule target, bad
// pattern) are rejected here so a run never encounters them. The
// fallback path is appended if the definition omits it.
func FromFile(f *File) (*Taxonomy, error) {
	t := &Taxonomy{
		index: make(map[string]struct{}),
	}

	seen := make(map[string]struct{}, len(f.Labels))
	for _, raw := range f.Labels {
		path, err := ParsePath(raw)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[path.String()]; dup {
			return nil, fmt.Errorf("duplicate label path %q", path.String())
		}
		seen[path.String()] = struct{}{}
		t.add(path)
	}

	if !t.Contains(MustPath(Fallback)) {
		t.add(MustPath(Fallback))
	}

	for _, spec := range f.Legacy {
		re, err := regexp.Compile("(?i)" + spec.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid legacy pattern %q: %w", spec.Pattern, err)
		}
		target, err := ParsePath(spec.Target)
		if err != nil {
			return nil, fmt.Errorf("invalid legacy target for pattern %q: %w", spec.Pattern, err)
		}
		if !t.Contains(target) {
			return nil, fmt.Errorf("legacy target %q is not in the taxonomy", target.String())
		}
		t.legacy = append(t.legacy, LegacyRule{Pattern: re, Target: target})
	}

	for _, rule := range f.Rules {
		if rule.Name == "" {
			return nil, fmt.Errorf("classification rule without a name")
		}
		if len(rule.Labels) == 0 {
			return nil, fmt.Errorf("classification rule %q has no target labels", rule.Name)
		}
		for _, raw := range rule.Labels {
			target, err := ParsePath(raw)
			if err != nil {
				return nil, fmt.Errorf("rule %q: %w", rule.Name, err)
			}
			if !t.Contains(target) {
				return nil, fmt.Errorf("rule %q targets %q which is not in the taxonomy", rule.Name, target.String())
			}
		}
		t.rules = append(t.rules, rule)
	}

	return t, nil
}

// add inserts a path, creating any missing ancestors first so the
// ordering stays topological.
func (t *Taxonomy) add(path Path) {
	for _, ancestor := range path.Ancestors() {
		if _, ok := t.index[ancestor.String()]; !ok {
			t.paths = append(t.paths, ancestor)
			t.index[ancestor.String()] = struct{}{}
		}
	}
	if _, ok := t.index[path.String()]; !ok {
		t.paths = append(t.paths, path)
		t.index[path.String()] = struct{}{}
	}
}

// Paths returns the normalized label paths, parents before children.
// The returned slice must not be modified.
func (t *Taxonomy) Paths() []Path {
	return t.paths
}

// Len returns the number of label paths.
func (t *Taxonomy) Len() int {
	return len(t.paths)
}

// Contains reports whether the path is part of the taxonomy.
func (t *Taxonomy) Contains(path Path) bool {
	_, ok := t.index[path.String()]
	return ok
}

// ContainsName reports whether the canonical name is part of the
// taxonomy.
func (t *Taxonomy) ContainsName(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Legacy returns the compiled legacy migration rules in definition
// order.
func (t *Taxonomy) Legacy() []LegacyRule {
	return t.legacy
}

// MapLegacy resolves an existing label name to its replacement path in
// the hierarchy. System labels, labels already in the taxonomy and
// children of taxonomy labels never map. Patterns are tried against
// the leaf segment first, then the full name; the first match wins.
func (t *Taxonomy) MapLegacy(name string) (Path, bool) {
	if IsSystemLabel(name) {
		return nil, false
	}
	if t.ContainsName(name) {
		return nil, false
	}
	for _, path := range t.paths {
		if strings.HasPrefix(name, path.String()+Separator) {
			return nil, false
		}
	}
	leaf := name
	if i := strings.LastIndex(name, Separator); i >= 0 {
		leaf = name[i+1:]
	}
	for _, rule := range t.legacy {
		if rule.Pattern.MatchString(leaf) || rule.Pattern.MatchString(name) {
			return rule.Target, true
		}
	}
	return nil, false
}

// Rules returns the raw classification rules in definition order.
func (t *Taxonomy) Rules() []RuleSpec {
	return t.rules
}

// FallbackPath returns the fallback label path; it is always part of
// the taxonomy.
func (t *Taxonomy) FallbackPath() Path {
	return MustPath(Fallback)
}
