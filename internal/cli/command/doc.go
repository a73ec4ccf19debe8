// Package command defines the eventlink-cli command tree.
//
// Commands are built with urfave/cli/v2 and talk to a node's admin API
// through connection.HTTPClient. Results go to App.Writer in the format
// chosen by --output.
package command
