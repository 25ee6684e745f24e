// Package plugins lists the plugins compiled into the binary.
package plugins

import (
	"convox-bot/internal/plugin"
	"convox-bot/internal/plugins/admin"
	"convox-bot/internal/plugins/info"
	"convox-bot/internal/plugins/ping"
)

// Builtin returns every bundled plugin in load order
func Builtin() []plugin.Entry {
	return []plugin.Entry{
		{Name: "admin", Factory: admin.New},
		{Name: "info", Factory: info.New},
		{Name: "ping", Factory: ping.New},
	}
}
