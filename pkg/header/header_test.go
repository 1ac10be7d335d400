package header

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTableMergesDuplicates(t *testing.T) {
	table := NewTable([]Entry{
		{"x-a", "1"},
		{"content-type", "text/plain"},
		{"x-a", "2"},
		{"set-cookie", "a=1"},
		{"x-a", "3"},
		{"set-cookie", "b=2"},
	})

	require.Equal(t, 3, table.Len())

	v, ok := table.Get("x-a")
	require.True(t, ok)
	require.Equal(t, "1, 2, 3", v)

	v, ok = table.Get("Set-Cookie")
	require.True(t, ok)
	require.Equal(t, "a=1, b=2", v)

	v, ok = table.Get("CONTENT-TYPE")
	require.True(t, ok)
	require.Equal(t, "text/plain", v)

	_, ok = table.Get("location")
	require.False(t, ok)
	require.False(t, table.Has("content-length"))
}

func TestTableUniqueNamesProperty(t *testing.T) {
	// For every mix of repeated names the table keeps one entry per name with
	// the per-occurrence values joined in encounter order.
	names := []string{"a", "b", "c", "d"}
	for seed := 1; seed <= 50; seed++ {
		var entries []Entry
		want := map[string][]string{}
		for i := 0; i < seed; i++ {
			name := names[(i*7+seed)%len(names)]
			value := fmt.Sprintf("v%d", i)
			entries = append(entries, Entry{Name: name, Value: value})
			want[name] = append(want[name], value)
		}

		table := NewTable(entries)
		require.Equal(t, len(want), table.Len(), "seed %d", seed)
		for name, values := range want {
			got, ok := table.Get(name)
			require.True(t, ok)
			require.Equal(t, strings.Join(values, ", "), got, "seed %d name %s", seed, name)
		}

		sorted := table.Entries()
		for i := 1; i < len(sorted); i++ {
			require.Less(t, sorted[i-1].Name, sorted[i].Name)
		}
	}
}

func TestNilTable(t *testing.T) {
	var table *Table
	_, ok := table.Get("x")
	require.False(t, ok)
	require.Equal(t, 0, table.Len())
	require.Empty(t, table.Map())
}
