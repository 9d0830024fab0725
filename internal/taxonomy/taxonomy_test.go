package taxonomy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePath(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Path
		wantErr bool
	}{
		{
			name:  "single segment",
			input: "MUSIC",
			want:  Path{"MUSIC"},
		},
		{
			name:  "nested path",
			input: "TIMELINE-EVIDENCE/Government/IRS",
			want:  Path{"TIMELINE-EVIDENCE", "Government", "IRS"},
		},
		{
			name:  "segments are trimmed",
			input: " A / B ",
			want:  Path{"A", "B"},
		},
		{
			name:    "empty string",
			input:   "",
			wantErr: true,
		},
		{
			name:    "empty segment",
			input:   "A//B",
			wantErr: true,
		},
		{
			name:    "trailing separator",
			input:   "A/B/",
			wantErr: true,
		},
		{
			name:    "leading separator",
			input:   "/A",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePath(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPathHelpers(t *testing.T) {
	p := MustPath("A/B/C")

	assert.Equal(t, "A/B/C", p.String())
	assert.Equal(t, 3, p.Depth())
	assert.Equal(t, "C", p.Leaf())
	assert.Equal(t, "A/B", p.Parent().String())
	assert.Nil(t, MustPath("A").Parent())

	ancestors := p.Ancestors()
	require.Len(t, ancestors, 2)
	assert.Equal(t, "A", ancestors[0].String())
	assert.Equal(t, "A/B", ancestors[1].String())
	assert.Empty(t, MustPath("A").Ancestors())

	assert.True(t, p.HasPrefix(MustPath("A")))
	assert.True(t, p.HasPrefix(MustPath("A/B")))
	assert.True(t, p.HasPrefix(p))
	assert.False(t, p.HasPrefix(MustPath("A/X")))
	assert.False(t, MustPath("A").HasPrefix(p))

	assert.True(t, MustPath("A/B").Equal(Path{"A", "B"}))
	assert.False(t, MustPath("A/B").Equal(Path{"A"}))
}

func TestFromFileInsertsParents(t *testing.T) {
	tax, err := FromFile(&File{Labels: []string{"A/B/C", "A/D"}})
	require.NoError(t, err)

	var names []string
	for _, p := range tax.Paths() {
		names = append(names, p.String())
	}
	// Parents appear before children, fallback gets appended.
	assert.Equal(t, []string{"A", "A/B", "A/B/C", "A/D", Fallback}, names)
}

func TestFromFileRejectsDuplicates(t *testing.T) {
	_, err := FromFile(&File{Labels: []string{"A/B", "A/B"}})
	assert.ErrorContains(t, err, "duplicate label path")
}

func TestFromFileRejectsEmptySegment(t *testing.T) {
	_, err := FromFile(&File{Labels: []string{"A//B"}})
	assert.ErrorContains(t, err, "empty segment")
}

func TestFromFileValidatesLegacy(t *testing.T) {
	tests := []struct {
		name    string
		legacy  LegacySpec
		wantErr string
	}{
		{
			name:    "bad pattern",
			legacy:  LegacySpec{Pattern: "(", Target: "A"},
			wantErr: "invalid legacy pattern",
		},
		{
			name:    "unknown target",
			legacy:  LegacySpec{Pattern: "^old$", Target: "NOPE"},
			wantErr: "not in the taxonomy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromFile(&File{
				Labels: []string{"A"},
				Legacy: []LegacySpec{tt.legacy},
			})
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestFromFileValidatesRules(t *testing.T) {
	tests := []struct {
		name    string
		rule    RuleSpec
		wantErr string
	}{
		{
			name:    "missing name",
			rule:    RuleSpec{Labels: []string{"A"}},
			wantErr: "without a name",
		},
		{
			name:    "no targets",
			rule:    RuleSpec{Name: "r"},
			wantErr: "no target labels",
		},
		{
			name:    "unknown target",
			rule:    RuleSpec{Name: "r", Labels: []string{"NOPE"}},
			wantErr: "not in the taxonomy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromFile(&File{
				Labels: []string{"A"},
				Rules:  []RuleSpec{tt.rule},
			})
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestFromFileAppendsFallback(t *testing.T) {
	tax, err := FromFile(&File{Labels: []string{"A"}})
	require.NoError(t, err)
	assert.True(t, tax.Contains(MustPath(Fallback)))
	assert.Equal(t, Fallback, tax.FallbackPath().String())
}

func TestIsSystemLabel(t *testing.T) {
	assert.True(t, IsSystemLabel("INBOX"))
	assert.True(t, IsSystemLabel("CATEGORY_SOCIAL"))
	assert.True(t, IsSystemLabel("starred"))
	assert.False(t, IsSystemLabel("MUSIC"))
	assert.False(t, IsSystemLabel("Old-Receipts"))
}

func TestMapLegacy(t *testing.T) {
	tax, err := FromFile(&File{
		Labels: []string{"ORDERS-RECEIPTS/Amazon", "MUSIC"},
		Legacy: []LegacySpec{
			{Pattern: `^amazon`, Target: "ORDERS-RECEIPTS/Amazon"},
			{Pattern: `^receipt`, Target: "ORDERS-RECEIPTS"},
		},
	})
	require.NoError(t, err)

	tests := []struct {
		name   string
		label  string
		want   string
		mapped bool
	}{
		{
			name:   "pattern match on full name",
			label:  "Amazon-Orders",
			want:   "ORDERS-RECEIPTS/Amazon",
			mapped: true,
		},
		{
			name:   "case insensitive",
			label:  "RECEIPTS",
			want:   "ORDERS-RECEIPTS",
			mapped: true,
		},
		{
			name:   "pattern match on leaf segment",
			label:  "Archive/amazon",
			want:   "ORDERS-RECEIPTS/Amazon",
			mapped: true,
		},
		{
			name:  "system label never maps",
			label: "CATEGORY_PROMOTIONS",
		},
		{
			name:  "taxonomy member never maps",
			label: "MUSIC",
		},
		{
			name:  "child of taxonomy label never maps",
			label: "MUSIC/Live-Sets",
		},
		{
			name:  "unmatched label",
			label: "Random-Stuff",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tax.MapLegacy(tt.label)
			assert.Equal(t, tt.mapped, ok)
			if tt.mapped {
				assert.Equal(t, tt.want, got.String())
			}
		})
	}
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "taxonomy.yaml")
	content := `labels:
  - "A"
  - "A/B"
legacy:
  - pattern: "^old$"
    target: "A/B"
rules:
  - name: "test"
    priority: 1
    from: "example\\.com"
    labels: ["A/B"]
`
	require.NoError(t, os.WriteFile(file, []byte(content), 0o600))

	tax, err := Load(file)
	require.NoError(t, err)
	assert.True(t, tax.Contains(MustPath("A/B")))
	require.Len(t, tax.Legacy(), 1)
	require.Len(t, tax.Rules(), 1)
	assert.Equal(t, "test", tax.Rules()[0].Name)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestDefaultTaxonomy(t *testing.T) {
	tax := Default()

	assert.True(t, tax.Contains(MustPath("TIMELINE-EVIDENCE/Government/IRS")))
	assert.True(t, tax.Contains(MustPath("MUSIC")))
	assert.True(t, tax.Contains(MustPath(Fallback)))
	assert.NotEmpty(t, tax.Legacy())
	assert.NotEmpty(t, tax.Rules())

	// Every legacy target resolves inside the hierarchy.
	for _, rule := range tax.Legacy() {
		assert.True(t, tax.Contains(rule.Target), "legacy target %s", rule.Target)
	}

	// The old flat scheme maps into the hierarchy.
	got, ok := tax.MapLegacy("Taxes-2023")
	require.True(t, ok)
	assert.Equal(t, "TIMELINE-EVIDENCE/Government/IRS", got.String())
}
