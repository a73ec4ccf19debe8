package domain

import (
	"net"
	"strconv"
	"strings"
)

// Reserved routing table names.
const (
	TableServers = "servers"
	TablePlayers = "players"
	TableWorlds  = "worlds"
)

// ReservedTables lists the tables maintained by the node itself.
var ReservedTables = []string{TableServers, TablePlayers, TableWorlds}

// IsReservedTable reports whether name is one of the reserved tables.
func IsReservedTable(name string) bool {
	for _, t := range ReservedTables {
		if t == name {
			return true
		}
	}
	return false
}

// AliasDelimiter separates the node name from its address in a peer alias.
const AliasDelimiter = ";"

// ValidateNodeName checks that name can be used as a node identity.
func ValidateNodeName(name string) error {
	if name == "" {
		return ErrInvalidArgument.WithDetails("node name is empty")
	}
	if strings.Contains(name, AliasDelimiter) {
		return ErrInvalidArgument.WithDetailsf("node name %q contains %q", name, AliasDelimiter)
	}
	if strings.TrimSpace(name) != name {
		return ErrInvalidArgument.WithDetailsf("node name %q has surrounding whitespace", name)
	}
	return nil
}

// FormatAlias builds the storage alias "<name>;<host>:<port>".
func FormatAlias(name, host string, port int) string {
	return name + AliasDelimiter + net.JoinHostPort(host, strconv.Itoa(port))
}

// ParseAlias splits an alias produced by FormatAlias.
func ParseAlias(alias string) (name, host string, port int, err error) {
	name, addr, ok := strings.Cut(alias, AliasDelimiter)
	if !ok || name == "" {
		return "", "", 0, ErrInvalidTrustEntry.WithDetailsf("alias %q has no name", alias)
	}
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", "", 0, ErrInvalidTrustEntry.WithDetailsf("alias %q", alias).WithCause(err)
	}
	port, err = strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return "", "", 0, ErrInvalidTrustEntry.WithDetailsf("alias %q has invalid port", alias)
	}
	return name, host, port, nil
}
