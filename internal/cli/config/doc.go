// Package config loads and saves the eventlink-cli file at
// ~/.eventlink/cli.yaml.
//
// The file holds named profiles (an admin address each), the profile in
// use and the default output format. Flags and EVENTLINK_* environment
// variables override it.
package config
