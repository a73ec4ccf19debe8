// Package node assembles one EventLink cluster member: its identity, the
// trust store, the connection manager and the routing tables.
//
// A Node is the host facing surface. The admin HTTP API and the server
// binary only talk to it.
package node
