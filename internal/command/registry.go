package command

import (
	"context"
	"sort"
	"strings"
	"sync"

	"convox-bot/internal/chat"
	"convox-bot/internal/permissions"
)

// Handler runs a command. args excludes the command name.
type Handler func(ctx context.Context, ev *chat.Event, args []string) error

// Options are the registration parameters a plugin supplies
type Options struct {
	Description string
	Usage       string
	Example     string
	Category    string
	Cooldown    int
	AdminOnly   bool
	MinRole     permissions.Role
	Disabled    bool
	Aliases     []string
}

// Descriptor is a registered command
type Descriptor struct {
	Name        string
	Description string
	Usage       string
	Example     string
	Category    string
	Cooldown    int
	AdminOnly   bool
	MinRole     permissions.Role
	Enabled     bool
	Aliases     []string
	Handler     Handler
}

// RequiredRole folds the legacy AdminOnly flag into MinRole
func (d Descriptor) RequiredRole() permissions.Role {
	if d.AdminOnly && d.MinRole < permissions.RoleAdmin {
		return permissions.RoleAdmin
	}
	return d.MinRole
}

// Registry maps command names and aliases to descriptors
type Registry struct {
	prefix string

	mu       sync.RWMutex
	commands map[string]*Descriptor
	aliases  map[string]string
}

// NewRegistry creates an empty registry. prefix is used for default usage text.
func NewRegistry(prefix string) *Registry {
	return &Registry{
		prefix:   prefix,
		commands: make(map[string]*Descriptor),
		aliases:  make(map[string]string),
	}
}

// Prefix returns the command prefix
func (r *Registry) Prefix() string {
	return r.prefix
}

// Register stores a command. Registering an existing name replaces it.
func (r *Registry) Register(name string, handler Handler, opts Options) {
	name = strings.ToLower(name)
	d := &Descriptor{
		Name:        name,
		Description: opts.Description,
		Usage:       opts.Usage,
		Example:     opts.Example,
		Category:    opts.Category,
		Cooldown:    opts.Cooldown,
		AdminOnly:   opts.AdminOnly,
		MinRole:     opts.MinRole,
		Enabled:     !opts.Disabled,
		Handler:     handler,
	}
	if d.Description == "" {
		d.Description = "No description"
	}
	if d.Usage == "" {
		d.Usage = r.prefix + name
	}
	if d.Example == "" {
		d.Example = r.prefix + name
	}
	if d.Category == "" {
		d.Category = "general"
	}
	if d.Cooldown < 0 {
		d.Cooldown = 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.commands[name]; ok {
		for alias, target := range r.aliases {
			if target == name {
				delete(r.aliases, alias)
			}
		}
	}
	r.commands[name] = d
	for _, alias := range opts.Aliases {
		alias = strings.ToLower(alias)
		if alias == "" || alias == name {
			continue
		}
		r.aliases[alias] = name
		d.Aliases = append(d.Aliases, alias)
	}
}

// Lookup resolves a name directly, then through the alias table
func (r *Registry) Lookup(name string) (Descriptor, bool) {
	name = strings.ToLower(name)

	r.mu.RLock()
	defer r.mu.RUnlock()

	if d, ok := r.commands[name]; ok {
		return *d, true
	}
	if target, ok := r.aliases[name]; ok {
		if d, ok := r.commands[target]; ok {
			return *d, true
		}
	}
	return Descriptor{}, false
}

// SetEnabled toggles a command. Returns false for unknown names.
func (r *Registry) SetEnabled(name string, enabled bool) bool {
	d, ok := r.Lookup(name)
	if !ok {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands[d.Name].Enabled = enabled
	return true
}

// All returns every command sorted by name
func (r *Registry) All() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Descriptor, 0, len(r.commands))
	for _, d := range r.commands {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ByCategory returns the commands tagged category, sorted by name
func (r *Registry) ByCategory(category string) []Descriptor {
	var out []Descriptor
	for _, d := range r.All() {
		if d.Category == category {
			out = append(out, d)
		}
	}
	return out
}

// Count returns the number of registered commands
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.commands)
}

// AliasCount returns the number of registered aliases
func (r *Registry) AliasCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.aliases)
}
