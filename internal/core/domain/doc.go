// Package domain defines the core domain values shared by EventLink packages.
//
// It holds the structured error taxonomy, the reserved routing table names
// and the peer alias format used by the trust store.
package domain
