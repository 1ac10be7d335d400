// Package header holds response header entries and the deduplicated,
// case-insensitive table built from them.
package header

import (
	"sort"
	"strings"
)

// Entry is one received header. Name is lowercase and trimmed.
type Entry struct {
	Name  string
	Value string
}

// Table maps normalized header names to values. Names are unique; values of
// repeated headers are joined with ", " in the order they were received.
type Table struct {
	entries []Entry
}

// NewTable sorts entries by name and merges adjacent duplicates. The slice is
// reordered in place and owned by the table afterwards.
func NewTable(entries []Entry) *Table {
	// stable: equal names keep their encounter order for the join below
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Name < entries[j].Name
	})

	for i := 0; i < len(entries)-1; {
		if entries[i].Name != entries[i+1].Name {
			i++
			continue
		}
		entries[i].Value = entries[i].Value + ", " + entries[i+1].Value
		entries = append(entries[:i+1], entries[i+2:]...)
		// i is checked again against its new neighbour
	}
	return &Table{entries: entries}
}

// Get returns the value of the named header. The lookup is case-insensitive.
func (t *Table) Get(name string) (string, bool) {
	if t == nil {
		return "", false
	}
	name = strings.ToLower(strings.TrimSpace(name))
	i := sort.Search(len(t.entries), func(i int) bool {
		return t.entries[i].Name >= name
	})
	if i < len(t.entries) && t.entries[i].Name == name {
		return t.entries[i].Value, true
	}
	return "", false
}

// Has reports whether the named header is present.
func (t *Table) Has(name string) bool {
	_, ok := t.Get(name)
	return ok
}

// Len returns the number of distinct header names.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

// Entries returns a copy of the table in name order.
func (t *Table) Entries() []Entry {
	if t == nil {
		return nil
	}
	return append([]Entry(nil), t.entries...)
}

// Map returns the table as a plain map.
func (t *Table) Map() map[string]string {
	m := make(map[string]string, t.Len())
	for _, e := range t.Entries() {
		m[e.Name] = e.Value
	}
	return m
}
