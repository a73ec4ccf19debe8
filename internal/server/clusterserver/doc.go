// Package clusterserver implements the cluster side of a node: mutually
// authenticated TLS links to trusted peers and the Manager that owns them.
//
// A link carries a stream of frames, each a uvarint length followed by a
// msgpack body. After the TLS handshake both sides exchange a hello frame
// naming themselves; only then is the link open. Open links carry routing
// table snapshots and application messages.
//
// Messages addressed to nodes without a direct link are forwarded through
// the next hop recorded in the "servers" routing table. A message sent to
// several names is written once per distinct link with the names that link
// serves as its destination list.
package clusterserver
