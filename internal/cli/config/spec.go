package config

import (
	"fmt"
	"sort"
	"time"
)

// DefaultServer is the admin address of a node started with defaults.
const DefaultServer = "http://127.0.0.1:25366"

// CLIConfig is the configuration for eventlink-cli.
type CLIConfig struct {
	DefaultOutput  string             `yaml:"default_output"`
	Timeout        time.Duration      `yaml:"timeout,omitempty"`
	CurrentProfile string             `yaml:"current_profile,omitempty"`
	Profiles       map[string]Profile `yaml:"profiles"`
}

// Profile is one saved admin endpoint.
type Profile struct {
	Server string `yaml:"server"`
}

// Default returns the default CLI configuration.
func Default() *CLIConfig {
	return &CLIConfig{
		DefaultOutput: "table",
		Profiles:      make(map[string]Profile),
	}
}

// Server resolves the admin address for profile, falling back to the
// current profile and then to DefaultServer.
func (c *CLIConfig) Server(profile string) (string, error) {
	if profile == "" {
		profile = c.CurrentProfile
	}
	if profile == "" {
		return DefaultServer, nil
	}
	p, ok := c.Profiles[profile]
	if !ok {
		return "", fmt.Errorf("unknown profile %q", profile)
	}
	return p.Server, nil
}

// SetProfile adds or replaces a profile.
func (c *CLIConfig) SetProfile(name, server string) error {
	if name == "" || server == "" {
		return fmt.Errorf("profile name and server are required")
	}
	if c.Profiles == nil {
		c.Profiles = make(map[string]Profile)
	}
	c.Profiles[name] = Profile{Server: server}
	return nil
}

// Use makes name the current profile.
func (c *CLIConfig) Use(name string) error {
	if _, ok := c.Profiles[name]; !ok {
		return fmt.Errorf("unknown profile %q", name)
	}
	c.CurrentProfile = name
	return nil
}

// ProfileNames returns the profile names sorted.
func (c *CLIConfig) ProfileNames() []string {
	names := make([]string, 0, len(c.Profiles))
	for n := range c.Profiles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
