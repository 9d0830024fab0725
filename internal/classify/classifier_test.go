package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mailfold/mailfold/internal/taxonomy"
)

func mustCompile(t *testing.T, specs []taxonomy.RuleSpec) *RuleSet {
	t.Helper()
	rs, err := Compile(specs)
	require.NoError(t, err)
	return rs
}

func pathStrings(paths []taxonomy.Path) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		out = append(out, p.String())
	}
	return out
}

func TestCompileOrdersByPriority(t *testing.T) {
	rs := mustCompile(t, []taxonomy.RuleSpec{
		{Name: "third", Priority: 30, Labels: []string{"C"}},
		{Name: "first", Priority: 10, Labels: []string{"A"}},
		{Name: "second", Priority: 20, Labels: []string{"B"}},
	})

	var names []string
	for _, r := range rs.Rules() {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"first", "second", "third"}, names)
}

func TestCompileKeepsDefinitionOrderOnTies(t *testing.T) {
	rs := mustCompile(t, []taxonomy.RuleSpec{
		{Name: "a", Priority: 10, Labels: []string{"A"}},
		{Name: "b", Priority: 10, Labels: []string{"B"}},
		{Name: "c", Priority: 10, Labels: []string{"C"}},
	})

	var names []string
	for _, r := range rs.Rules() {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"a", "b", "c"}, names)
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name string
		spec taxonomy.RuleSpec
	}{
		{
			name: "bad from pattern",
			spec: taxonomy.RuleSpec{Name: "r", From: "(", Labels: []string{"A"}},
		},
		{
			name: "bad subject pattern",
			spec: taxonomy.RuleSpec{Name: "r", Subject: "[", Labels: []string{"A"}},
		},
		{
			name: "bad target path",
			spec: taxonomy.RuleSpec{Name: "r", From: "x", Labels: []string{"A//B"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile([]taxonomy.RuleSpec{tt.spec})
			assert.Error(t, err)
		})
	}
}

func TestClassifySenderRule(t *testing.T) {
	rs := mustCompile(t, []taxonomy.RuleSpec{
		{
			Name:     "IRS",
			Priority: 1,
			From:     `irs\.gov`,
			Labels:   []string{"TIMELINE-EVIDENCE/Government/IRS"},
		},
	})
	c := New(rs, taxonomy.MustPath(taxonomy.Fallback))

	got := c.Classify(Message{From: "noreply@irs.gov", Subject: "Your refund"})
	assert.Equal(t, []string{"TIMELINE-EVIDENCE/Government/IRS"}, pathStrings(got))
}

func TestClassifyFallbackWhenNoRuleFires(t *testing.T) {
	rs := mustCompile(t, []taxonomy.RuleSpec{
		{Name: "never", Priority: 1, From: `no-such-sender`, Labels: []string{"A"}},
	})
	c := New(rs, taxonomy.MustPath(taxonomy.Fallback))

	got := c.Classify(Message{From: "someone@example.com", Subject: "hello"})
	assert.Equal(t, []string{taxonomy.Fallback}, pathStrings(got))
}

func TestClassifyAllFiringRulesContribute(t *testing.T) {
	rs := mustCompile(t, []taxonomy.RuleSpec{
		{Name: "jobs", Priority: 20, From: `linkedin`, Subject: `job`, Labels: []string{"JOB-SEARCH/Alerts/LinkedIn"}},
		{Name: "social", Priority: 10, From: `linkedin`, Labels: []string{"SOCIAL-MEDIA/LinkedIn"}},
	})
	c := New(rs, taxonomy.MustPath(taxonomy.Fallback))

	got := c.Classify(Message{
		From:    "jobs-noreply@linkedin.com",
		Subject: "New job matches for you",
	})
	// Both rules fire; lower priority contributes first.
	assert.Equal(t, []string{"SOCIAL-MEDIA/LinkedIn", "JOB-SEARCH/Alerts/LinkedIn"}, pathStrings(got))
}

func TestClassifyDeduplicatesTargets(t *testing.T) {
	rs := mustCompile(t, []taxonomy.RuleSpec{
		{Name: "from", Priority: 1, From: `ssrn`, Labels: []string{"PROJECTS/SSRN-Academic"}},
		{Name: "subject", Priority: 2, Subject: `ssrn`, Labels: []string{"PROJECTS/SSRN-Academic"}},
	})
	c := New(rs, taxonomy.MustPath(taxonomy.Fallback))

	got := c.Classify(Message{From: "noreply@ssrn.com", Subject: "SSRN submission received"})
	assert.Equal(t, []string{"PROJECTS/SSRN-Academic"}, pathStrings(got))
}

func TestClassifyCaseInsensitive(t *testing.T) {
	rs := mustCompile(t, []taxonomy.RuleSpec{
		{Name: "irs", Priority: 1, Subject: `\birs\b`, Labels: []string{"TIMELINE-EVIDENCE/Government/IRS"}},
	})
	c := New(rs, taxonomy.MustPath(taxonomy.Fallback))

	got := c.Classify(Message{Subject: "Notice from the IRS"})
	assert.Equal(t, []string{"TIMELINE-EVIDENCE/Government/IRS"}, pathStrings(got))
}

func TestClassifyAllMatchersMustMatch(t *testing.T) {
	rs := mustCompile(t, []taxonomy.RuleSpec{
		{Name: "amazon", Priority: 1, From: `amazon`, Subject: `(order|shipment)`, Labels: []string{"ORDERS-RECEIPTS/Amazon"}},
	})
	c := New(rs, taxonomy.MustPath(taxonomy.Fallback))

	// Sender matches but subject does not.
	got := c.Classify(Message{From: "deals@amazon.com", Subject: "Daily deals"})
	assert.Equal(t, []string{taxonomy.Fallback}, pathStrings(got))

	got = c.Classify(Message{From: "auto-confirm@amazon.com", Subject: "Your order has shipped"})
	assert.Equal(t, []string{"ORDERS-RECEIPTS/Amazon"}, pathStrings(got))
}

func TestClassifyUnsubscribeMatcher(t *testing.T) {
	rs := mustCompile(t, []taxonomy.RuleSpec{
		{Name: "newsletters", Priority: 1, HasUnsubscribe: true, Labels: []string{"NEWSLETTERS"}},
	})
	c := New(rs, taxonomy.MustPath(taxonomy.Fallback))

	got := c.Classify(Message{From: "news@example.com", HasUnsubscribe: true})
	assert.Equal(t, []string{"NEWSLETTERS"}, pathStrings(got))

	got = c.Classify(Message{From: "news@example.com"})
	assert.Equal(t, []string{taxonomy.Fallback}, pathStrings(got))
}

func TestClassifyExistingLabelMatcher(t *testing.T) {
	rs := mustCompile(t, []taxonomy.RuleSpec{
		{Name: "old-receipts", Priority: 1, Label: `^receipts$`, Labels: []string{"ORDERS-RECEIPTS"}},
	})
	c := New(rs, taxonomy.MustPath(taxonomy.Fallback))

	got := c.Classify(Message{Labels: []string{"Receipts", "INBOX"}})
	assert.Equal(t, []string{"ORDERS-RECEIPTS"}, pathStrings(got))

	got = c.Classify(Message{Labels: []string{"INBOX"}})
	assert.Equal(t, []string{taxonomy.Fallback}, pathStrings(got))
}

func TestClassifyIsDeterministic(t *testing.T) {
	c, err := FromTaxonomy(taxonomy.Default())
	require.NoError(t, err)

	m := Message{
		From:           "jobs-noreply@linkedin.com",
		Subject:        "5 new job alerts",
		HasUnsubscribe: true,
	}

	first := pathStrings(c.Classify(m))
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, pathStrings(c.Classify(m)))
	}
}

func TestClassifyEveryMessageGetsALabel(t *testing.T) {
	c, err := FromTaxonomy(taxonomy.Default())
	require.NoError(t, err)

	messages := []Message{
		{},
		{From: "unknown@example.org"},
		{From: "github.com", Subject: "PR merged"},
		{Subject: "Court hearing rescheduled"},
		{From: "news@substack.com", HasUnsubscribe: true},
	}
	for _, m := range messages {
		assert.NotEmpty(t, c.Classify(m))
	}
}

func TestMatchingRules(t *testing.T) {
	rs := mustCompile(t, []taxonomy.RuleSpec{
		{Name: "social", Priority: 10, From: `linkedin`, Labels: []string{"SOCIAL-MEDIA/LinkedIn"}},
		{Name: "jobs", Priority: 20, From: `linkedin`, Subject: `job`, Labels: []string{"JOB-SEARCH/Alerts/LinkedIn"}},
	})
	c := New(rs, taxonomy.MustPath(taxonomy.Fallback))

	names := c.MatchingRules(Message{From: "x@linkedin.com", Subject: "job digest"})
	assert.Equal(t, []string{"social", "jobs"}, names)

	assert.Empty(t, c.MatchingRules(Message{From: "x@example.com"}))
}
