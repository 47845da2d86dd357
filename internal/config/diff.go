package config

import "github.com/opora-ua/opora/internal/tools"

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// DirectorySourceChanged is true when directory.source_file points at a
	// different path; the caller should re-import the directory.
	DirectorySourceChanged bool

	ToolServersChanged bool             // true if any MCP server was added, removed, or modified
	ToolServerChanges  []ToolServerDiff // per-server diffs
}

// ToolServerDiff describes what changed for a single MCP server between two configs.
type ToolServerDiff struct {
	Name     string
	Modified bool
	Added    bool
	Removed  bool
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	// Log level
	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	// Directory source
	if old.Directory.SourceFile != new.Directory.SourceFile {
		d.DirectorySourceChanged = true
	}

	// Build server lookup maps keyed by name.
	oldServers := make(map[string]int, len(old.Tools.Servers))
	for i := range old.Tools.Servers {
		oldServers[old.Tools.Servers[i].Name] = i
	}
	newServers := make(map[string]int, len(new.Tools.Servers))
	for i := range new.Tools.Servers {
		newServers[new.Tools.Servers[i].Name] = i
	}

	// Detect modified and removed servers.
	for name, oi := range oldServers {
		ni, exists := newServers[name]
		if !exists {
			d.ToolServerChanges = append(d.ToolServerChanges, ToolServerDiff{
				Name:    name,
				Removed: true,
			})
			d.ToolServersChanged = true
			continue
		}
		if !sameServer(old.Tools.Servers[oi], new.Tools.Servers[ni]) {
			d.ToolServerChanges = append(d.ToolServerChanges, ToolServerDiff{
				Name:     name,
				Modified: true,
			})
			d.ToolServersChanged = true
		}
	}

	// Detect added servers.
	for name := range newServers {
		if _, exists := oldServers[name]; !exists {
			d.ToolServerChanges = append(d.ToolServerChanges, ToolServerDiff{
				Name:  name,
				Added: true,
			})
			d.ToolServersChanged = true
		}
	}

	return d
}

// sameServer compares two MCP server configs with the same name.
func sameServer(a, b tools.ServerConfig) bool {
	if a.Transport != b.Transport || a.Command != b.Command || a.URL != b.URL {
		return false
	}
	if len(a.Env) != len(b.Env) {
		return false
	}
	for k, v := range a.Env {
		if b.Env[k] != v {
			return false
		}
	}
	return true
}
