// Package confloader loads layered configuration with koanf.
//
// Sources, later ones overriding earlier ones:
//
//  1. Defaults already present in the target struct
//  2. A YAML file
//  3. EVENTLINK_ environment variables
//  4. A map, for flags and tests
//
// Watcher reports changes of the config file so a running server can
// re-apply settings that are safe to change live.
package confloader
