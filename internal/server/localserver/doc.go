// Package localserver serves the admin API on a Unix domain socket.
//
// Access is controlled by file permissions: the socket is created 0600,
// so only the user running the node can connect. Requests skip the IP
// allow list and rate limit that guard the TCP admin listener.
package localserver
