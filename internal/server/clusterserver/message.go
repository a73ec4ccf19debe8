package clusterserver

import "github.com/oklog/ulid/v2"

// Message is an application event routed between nodes. Body is opaque.
type Message struct {
	ID           string   `msgpack:"id" json:"id"`
	Origin       string   `msgpack:"origin" json:"origin"`
	Destinations []string `msgpack:"destinations" json:"destinations"`
	Kind         string   `msgpack:"kind" json:"kind"`
	TTL          int      `msgpack:"ttl" json:"ttl"`
	Body         []byte   `msgpack:"body" json:"body"`
}

// NewMessage creates a message with a fresh ULID.
func NewMessage(kind string, body []byte) *Message {
	return &Message{
		ID:   ulid.Make().String(),
		Kind: kind,
		Body: body,
	}
}

// withDestinations returns a shallow copy addressed to dest.
func (m *Message) withDestinations(dest []string) *Message {
	out := *m
	out.Destinations = dest
	return &out
}
