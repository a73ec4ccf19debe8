package routing

// Entry is one routing record.
type Entry struct {
	Name     string `msgpack:"name" json:"name"`
	Owner    string `msgpack:"owner" json:"owner"`
	NextHop  string `msgpack:"next_hop" json:"next_hop"`
	Distance int    `msgpack:"distance" json:"distance"`
	TTL      int    `msgpack:"ttl" json:"ttl"`
}

// IsLocal reports whether the entry is owned by node.
func (e Entry) IsLocal(node string) bool {
	return e.Owner == node && e.Distance == 0
}

// Snapshot is the wire form of a table: its name and the exportable
// entries sorted by name.
type Snapshot struct {
	Name    string  `msgpack:"name" json:"name"`
	Entries []Entry `msgpack:"entries" json:"entries"`
}

// Summary describes a table for listings.
type Summary struct {
	Name    string `json:"name"`
	Entries int    `json:"entries"`
	Dirty   bool   `json:"dirty"`
	Digest  string `json:"digest"`
}
