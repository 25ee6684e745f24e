package plugin

import (
	"context"
	"fmt"
	"log/slog"
)

// Manager owns the loaded plugins
type Manager struct {
	host   *Host
	logger *slog.Logger

	plugins      []Plugin
	interceptors []Interceptor
	fallbacks    []FallbackHandler
}

// NewManager creates a manager bound to host
func NewManager(host *Host, logger *slog.Logger) *Manager {
	return &Manager{host: host, logger: logger}
}

// Load initializes the entries named in enabled, in entry order. An empty
// enabled list loads every entry. A plugin that fails to initialize is
// skipped; unknown names in enabled are reported.
func (m *Manager) Load(ctx context.Context, entries []Entry, enabled []string) error {
	want := make(map[string]bool, len(enabled))
	for _, name := range enabled {
		want[name] = true
	}

	known := make(map[string]bool, len(entries))
	for _, e := range entries {
		known[e.Name] = true
		if len(want) > 0 && !want[e.Name] {
			continue
		}

		p := e.Factory()
		if err := p.Initialize(ctx, m.host); err != nil {
			m.logger.Error("plugin failed to initialize", "plugin", e.Name, "error", err)
			continue
		}
		p.RegisterCommands(m.host.Registry)

		m.plugins = append(m.plugins, p)
		if ic, ok := p.(Interceptor); ok {
			m.interceptors = append(m.interceptors, ic)
		}
		if fb, ok := p.(FallbackHandler); ok {
			m.fallbacks = append(m.fallbacks, fb)
		}
		m.logger.Debug("plugin loaded", "plugin", p.Name())
	}

	m.logger.Info("plugins loaded",
		"count", len(m.plugins),
		"commands", m.host.Registry.Count(),
	)

	for name := range want {
		if !known[name] {
			return fmt.Errorf("unknown plugin %q", name)
		}
	}
	return nil
}

// Names lists loaded plugins in load order
func (m *Manager) Names() []string {
	names := make([]string, 0, len(m.plugins))
	for _, p := range m.plugins {
		names = append(names, p.Name())
	}
	return names
}

// Interceptors returns the loaded plugins that intercept raw messages
func (m *Manager) Interceptors() []Interceptor {
	return m.interceptors
}

// Fallbacks returns the loaded plugins that handle unprefixed messages
func (m *Manager) Fallbacks() []FallbackHandler {
	return m.fallbacks
}

// Cleanup releases plugins in reverse load order
func (m *Manager) Cleanup(ctx context.Context) {
	for i := len(m.plugins) - 1; i >= 0; i-- {
		p := m.plugins[i]
		if err := p.Cleanup(ctx); err != nil {
			m.logger.Warn("plugin cleanup failed", "plugin", p.Name(), "error", err)
		}
	}
}
