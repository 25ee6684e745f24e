package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"convox-bot/internal/permissions"
)

func sampleDocument() *permissions.Document {
	doc := permissions.NewDocument()
	doc.Moderators = []string{"3333333333", "1111111111"}
	doc.AllowedGroups = []string{"-1001234567890"}
	doc.PendingGroups["-1009999999999"] = permissions.PendingGroup{
		Name:        "Lobby",
		Owner:       "7777777777",
		FirstSeenAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	return doc
}

func TestWriteDocumentJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := writeDocument(&buf, sampleDocument(), false); err != nil {
		t.Fatal(err)
	}

	var got permissions.Document
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if len(got.Moderators) != 2 || got.Moderators[0] != "1111111111" {
		t.Fatalf("moderators = %v", got.Moderators)
	}
	if got.GroupMode != permissions.ModeWhitelist {
		t.Fatalf("mode = %q", got.GroupMode)
	}
}

func TestWriteDocumentYAML(t *testing.T) {
	var buf bytes.Buffer
	if err := writeDocument(&buf, sampleDocument(), true); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "groupMode: whitelist") {
		t.Fatalf("yaml = %s", buf.String())
	}

	var got permissions.Document
	if err := yaml.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.PendingGroups["-1009999999999"].Name != "Lobby" {
		t.Fatalf("pending = %+v", got.PendingGroups)
	}
}

func TestRootCommandTree(t *testing.T) {
	root := newRootCmd()
	for _, path := range [][]string{{"perms", "show"}, {"version"}} {
		cmd, _, err := root.Find(path)
		if err != nil || cmd.Name() != path[len(path)-1] {
			t.Fatalf("Find(%v) = %v, %v", path, cmd, err)
		}
	}
	if root.PersistentFlags().Lookup("config") == nil {
		t.Fatal("missing --config flag")
	}
}
