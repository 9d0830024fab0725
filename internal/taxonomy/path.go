package taxonomy

import (
	"fmt"
	"strings"
)

// Separator joins path segments in the canonical string form.
const Separator = "/"

// Fallback is the label every message falls back to when no rule matches.
const Fallback = "FLAGGED-REVIEW"

// Path is a hierarchical label identifier: an ordered sequence of
// segments, rendered as "Parent/Child/Grandchild". The zero value is
// the empty path.
type Path []string

// ParsePath parses a slash-delimited label name into a Path.
// Segments are trimmed of surrounding whitespace; empty segments
// (leading, trailing or doubled separators) are rejected.
func ParsePath(s string) (Path, error) {
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("empty label path")
	}
	parts := strings.Split(s, Separator)
	path := make(Path, 0, len(parts))
	for _, part := range parts {
		seg := strings.TrimSpace(part)
		if seg == "" {
			return nil, fmt.Errorf("label path %q contains an empty segment", s)
		}
		path = append(path, seg)
	}
	return path, nil
}

// MustPath is like ParsePath but panics on error. Use for static
// configuration only.
func MustPath(s string) Path {
	p, err := ParsePath(s)
	if err != nil {
		panic(err)
	}
	return p
}

// String returns the canonical slash-joined form of the path.
func (p Path) String() string {
	return strings.Join(p, Separator)
}

// Depth returns the number of segments.
func (p Path) Depth() int {
	return len(p)
}

// IsZero reports whether the path is empty.
func (p Path) IsZero() bool {
	return len(p) == 0
}

// Leaf returns the last segment, or "" for the empty path.
func (p Path) Leaf() string {
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1]
}

// Parent returns the path one level up, or the empty path for a
// top-level label.
func (p Path) Parent() Path {
	if len(p) <= 1 {
		return nil
	}
	return p[:len(p)-1]
}

// Ancestors returns all proper ancestors of the path, shallowest
// first. A top-level path has none.
func (p Path) Ancestors() []Path {
	if len(p) <= 1 {
		return nil
	}
	ancestors := make([]Path, 0, len(p)-1)
	for i := 1; i < len(p); i++ {
		ancestors = append(ancestors, p[:i])
	}
	return ancestors
}

// Equal reports whether two paths have identical segments.
func (p Path) Equal(other Path) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

// HasPrefix reports whether prefix is p itself or one of its ancestors.
func (p Path) HasPrefix(prefix Path) bool {
	if len(prefix) > len(p) {
		return false
	}
	for i := range prefix {
		if p[i] != prefix[i] {
			return false
		}
	}
	return true
}
