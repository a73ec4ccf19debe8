package routing

import (
	"fmt"
	"sort"

	"github.com/spaolacci/murmur3"
)

// table is guarded by the Manager mutex.
type table struct {
	name    string
	entries map[string]Entry
	dirty   bool
}

func newTable(name string) *table {
	return &table{name: name, entries: make(map[string]Entry)}
}

// putLocal stores a local entry, overwriting any previous one.
func (t *table) putLocal(self, name string, ttl int) {
	t.entries[name] = Entry{
		Name:     name,
		Owner:    self,
		NextHop:  self,
		Distance: 0,
		TTL:      ttl,
	}
	t.dirty = true
}

func (t *table) remove(name string) bool {
	if _, ok := t.entries[name]; !ok {
		return false
	}
	delete(t.entries, name)
	t.dirty = true
	return true
}

// combine merges entries received from source and reports whether the
// table changed. Entries owned by self are skipped, as are entries with
// TTL <= 1, so every stored copy keeps TTL >= 1. A received entry replaces
// a stored one only when it is strictly closer.
func (t *table) combine(self, source string, in []Entry) bool {
	changed := false
	for _, e := range in {
		if e.Name == "" || e.Owner == "" || e.Owner == self || e.TTL <= 1 || e.Distance < 0 {
			continue
		}
		cand := Entry{
			Name:     e.Name,
			Owner:    e.Owner,
			NextHop:  source,
			Distance: e.Distance + 1,
			TTL:      e.TTL - 1,
		}
		cur, ok := t.entries[e.Name]
		if ok && cand.Distance >= cur.Distance {
			continue
		}
		t.entries[e.Name] = cand
		changed = true
	}
	if changed {
		t.dirty = true
	}
	return changed
}

func (t *table) sortedNames() []string {
	names := make([]string, 0, len(t.entries))
	for name := range t.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// snapshot copies the entries that may still travel.
func (t *table) snapshot() *Snapshot {
	s := &Snapshot{Name: t.name, Entries: make([]Entry, 0, len(t.entries))}
	for _, name := range t.sortedNames() {
		if e := t.entries[name]; e.TTL >= 1 {
			s.Entries = append(s.Entries, e)
		}
	}
	return s
}

func (t *table) copyEntries() map[string]Entry {
	out := make(map[string]Entry, len(t.entries))
	for k, v := range t.entries {
		out[k] = v
	}
	return out
}

// digest hashes the owner of every entry. Nodes whose tables agree on
// where each entry lives produce the same digest.
func (t *table) digest() string {
	h := murmur3.New64()
	for _, name := range t.sortedNames() {
		fmt.Fprintf(h, "%s\x00%s\n", name, t.entries[name].Owner)
	}
	return fmt.Sprintf("%016x", h.Sum64())
}

func (t *table) summary() Summary {
	return Summary{
		Name:    t.name,
		Entries: len(t.entries),
		Dirty:   t.dirty,
		Digest:  t.digest(),
	}
}
