// Command eventlink-server runs one EventLink cluster node.
//
// It loads configuration from defaults, an optional YAML file and
// EVENTLINK_* environment variables, starts the cluster listener and
// serves the admin API.
//
// Usage:
//
//	eventlink-server --config /etc/eventlink/server.yaml
//	eventlink-server --name A --listen 0.0.0.0:25365 --admin 127.0.0.1:25366
package main
