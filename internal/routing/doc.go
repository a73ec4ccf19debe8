// Package routing maintains the routing tables of a node and floods them to
// directly connected peers.
//
// A table maps entry names (players, worlds, servers) to the node that owns
// them and the neighbour through which the owner is reached. Local entries
// have distance 0. Tables received from peers are merged entry by entry and
// the closest entry wins; a merge that changed anything marks the table
// dirty so the propagation loop pushes it on. Entry TTLs are decremented on
// every hop and bound how far an entry travels.
//
// Deleting an entry is a local operation only. Peers that merged the entry
// keep it until they restart.
package routing
