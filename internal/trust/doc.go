// Package trust holds the identity of a node and the certificates of the
// peers it trusts.
//
// A node identity is a private key plus a self-signed certificate whose
// common name is the node name. Peers are trusted by importing their
// certificate together with their address; the Store keeps them in Badger
// under the alias "<name>;<host>:<port>". TLS configurations built here pin
// the exact certificate bytes of the peer, no chain validation is done.
package trust
