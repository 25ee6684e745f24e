package plugin_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"testing"

	"convox-bot/internal/chat"
	"convox-bot/internal/command"
	"convox-bot/internal/plugin"
)

type recorder struct {
	name        string
	initErr     error
	intercept   bool
	fallback    bool
	cleanedUp   *[]string
	commandName string
}

func (r *recorder) Name() string { return r.name }

func (r *recorder) Initialize(context.Context, *plugin.Host) error { return r.initErr }

func (r *recorder) RegisterCommands(reg *command.Registry) {
	if r.commandName != "" {
		reg.Register(r.commandName, func(context.Context, *chat.Event, []string) error { return nil }, command.Options{})
	}
}

func (r *recorder) Cleanup(context.Context) error {
	*r.cleanedUp = append(*r.cleanedUp, r.name)
	return nil
}

type interceptingRecorder struct{ *recorder }

func (interceptingRecorder) InterceptMessage(context.Context, *chat.Event) (bool, error) {
	return false, nil
}

type fallbackRecorder struct{ *recorder }

func (fallbackRecorder) HandleUnprefixed(context.Context, *chat.Event) error { return nil }

func entries(cleaned *[]string) []plugin.Entry {
	return []plugin.Entry{
		{Name: "alpha", Factory: func() plugin.Plugin {
			return interceptingRecorder{&recorder{name: "alpha", cleanedUp: cleaned, commandName: "a"}}
		}},
		{Name: "broken", Factory: func() plugin.Plugin {
			return &recorder{name: "broken", cleanedUp: cleaned, initErr: errors.New("boom"), commandName: "b"}
		}},
		{Name: "gamma", Factory: func() plugin.Plugin {
			return fallbackRecorder{&recorder{name: "gamma", cleanedUp: cleaned, commandName: "g"}}
		}},
	}
}

func newManager() (*plugin.Manager, *command.Registry) {
	registry := command.NewRegistry("!")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return plugin.NewManager(&plugin.Host{Registry: registry, Logger: logger}, logger), registry
}

func TestLoadAllSkipsFailedPlugins(t *testing.T) {
	var cleaned []string
	m, registry := newManager()

	if err := m.Load(context.Background(), entries(&cleaned), nil); err != nil {
		t.Fatal(err)
	}
	if got := m.Names(); !reflect.DeepEqual(got, []string{"alpha", "gamma"}) {
		t.Fatalf("Names = %v", got)
	}
	if _, ok := registry.Lookup("b"); ok {
		t.Fatal("a plugin that failed to initialize must not register commands")
	}
	if len(m.Interceptors()) != 1 || len(m.Fallbacks()) != 1 {
		t.Fatalf("interceptors = %d, fallbacks = %d", len(m.Interceptors()), len(m.Fallbacks()))
	}

	m.Cleanup(context.Background())
	if !reflect.DeepEqual(cleaned, []string{"gamma", "alpha"}) {
		t.Fatalf("cleanup order = %v", cleaned)
	}
}

func TestLoadEnabledSubset(t *testing.T) {
	var cleaned []string
	m, registry := newManager()

	if err := m.Load(context.Background(), entries(&cleaned), []string{"gamma"}); err != nil {
		t.Fatal(err)
	}
	if got := m.Names(); !reflect.DeepEqual(got, []string{"gamma"}) {
		t.Fatalf("Names = %v", got)
	}
	if registry.Count() != 1 {
		t.Fatalf("Count = %d", registry.Count())
	}
}

func TestLoadUnknownPlugin(t *testing.T) {
	var cleaned []string
	m, _ := newManager()
	if err := m.Load(context.Background(), entries(&cleaned), []string{"alpha", "delta"}); err == nil {
		t.Fatal("expected an error for an unknown plugin name")
	}
	if got := m.Names(); !reflect.DeepEqual(got, []string{"alpha"}) {
		t.Fatalf("known plugins should still load, got %v", got)
	}
}
