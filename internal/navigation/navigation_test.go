package navigation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"schoolhub/internal/modules"
)

func names(entries []Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Name)
	}
	return out
}

func TestFilterKeepsExemptEntries(t *testing.T) {
	got := Filter(modules.Default(), DefaultEntries())

	assert.Equal(t, []string{"Dashboard", "Private Dashboard", "Settings"}, names(got))
}

func TestFilterDropsHiddenModules(t *testing.T) {
	vis := modules.Parse(`{"fees": true, "cbt": true}`)

	got := names(Filter(vis, DefaultEntries()))

	assert.Contains(t, got, "Fees")
	assert.Contains(t, got, "CBT")
	assert.Contains(t, got, "Question Bank")
	assert.Contains(t, got, "Settings")
	assert.NotContains(t, got, "Students")
	assert.NotContains(t, got, "Recruitment")
}

func TestFilterPreservesOrder(t *testing.T) {
	vis := modules.Parse(map[string]bool{"recruitment": true, "students": true})

	got := names(Filter(vis, DefaultEntries()))

	assert.Equal(t, []string{"Dashboard", "Private Dashboard", "Students", "Recruitment", "Settings"}, got)
}

func TestFilterKeepsUnmappedEntries(t *testing.T) {
	entries := []Entry{
		{Name: "Help Center", Href: "/help"},
		{Name: "Library", Href: "/library"},
	}

	got := names(Filter(modules.Default(), entries))

	assert.Equal(t, []string{"Help Center"}, got)
}

func TestFilterKeepsSubItemsWithParent(t *testing.T) {
	got := Filter(modules.Parse(`{"fees": true}`), DefaultEntries())

	var fees *Entry
	for i := range got {
		if got[i].Name == "Fees" {
			fees = &got[i]
		}
	}
	if assert.NotNil(t, fees) {
		assert.Len(t, fees.SubItems, 3)
	}
}

func TestEveryMappedEntryUsesKnownModule(t *testing.T) {
	for _, e := range DefaultEntries() {
		if k, ok := ModuleFor(e.Name); ok {
			assert.True(t, k.Valid(), e.Name)
		}
	}
}
