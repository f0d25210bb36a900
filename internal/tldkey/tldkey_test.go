package tldkey

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCandidates_Order(t *testing.T) {
	t.Parallel()

	got := Candidates("com")
	want := []string{"com", ".com", "COM", "dotcom", "centralniczacom"}
	assert.Equal(t, want, got, "lower-cased duplicate of the bare form must be dropped")
}

func TestCandidates_MultiLabel(t *testing.T) {
	t.Parallel()

	got := Candidates("co.za")
	assert.Equal(t, []string{"co.za", ".co.za", "CO.ZA", "dotco.za", "centralniczaco.za"}, got)
}

func TestResolve_EachSpelling(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		key  string
		tld  string
	}{
		{"bare", "com", "com"},
		{"dotted", ".net", "net"},
		{"upper", "ORG", "org"},
		{"dot word", "dotin", "in"},
		{"centralnic", "centralniczaco.za", "co.za"},
		{"multi label bare", "co.in", "co.in"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			table := map[string]int{tc.key: 7, "unrelated": 1}
			key, v, ok := Resolve(table, tc.tld)
			require.True(t, ok)
			assert.Equal(t, tc.key, key)
			assert.Equal(t, 7, v)
		})
	}
}

func TestResolve_PriorityWins(t *testing.T) {
	t.Parallel()

	table := map[string]string{
		"dotcom": "dot-word",
		".com":   "dotted",
		"com":    "bare",
	}
	key, v, ok := Resolve(table, "com")
	require.True(t, ok)
	assert.Equal(t, "com", key)
	assert.Equal(t, "bare", v)

	delete(table, "com")
	key, _, ok = Resolve(table, "com")
	require.True(t, ok)
	assert.Equal(t, ".com", key)
}

func TestResolve_NotFound(t *testing.T) {
	t.Parallel()

	table := map[string]int{"dotcom": 1, "comau": 2, "co": 3}

	for _, tld := range []string{"net", "co.uk", "om", ""} {
		_, _, ok := Resolve(table, tld)
		assert.False(t, ok, "tld %q must not match", tld)
	}

	_, _, ok := Resolve[int](nil, "com")
	assert.False(t, ok)
}

func TestCanonical(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "com", Canonical(" .COM "))
	assert.Equal(t, "co.in", Canonical("Co.In"))
	assert.Equal(t, "", Canonical("  "))
}
