package app

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/shelf"
	"github.com/starford/shelf/internal/manifest"
)

func testApp(t *testing.T) (*App, *bytes.Buffer) {
	t.Helper()
	dir := t.TempDir()
	m := &manifest.Manifest{
		Collections: map[string]manifest.Collection{
			"posts": {Path: filepath.Join(dir, "posts"), Format: "markdown", BodyField: "content"},
			"data":  {Path: filepath.Join(dir, "data"), Format: "json"},
		},
	}
	var out bytes.Buffer
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return &App{Manifest: m, Log: logger, Out: &out}, &out
}

func TestAddListGetRemove(t *testing.T) {
	a, out := testApp(t)

	if err := a.Add("posts", "", `{"title": "Hello", "content": "body text"}`); err != nil {
		t.Fatalf("Add: %v", err)
	}
	path := strings.TrimSpace(out.String())
	if filepath.Base(path) != "hello.md" {
		t.Errorf("Add wrote %q, want hello.md", path)
	}

	out.Reset()
	if err := a.List("posts", "", 0, 0); err != nil {
		t.Fatalf("List: %v", err)
	}
	if !strings.Contains(out.String(), "hello.md\t") {
		t.Errorf("List output:\n%s", out.String())
	}

	out.Reset()
	if err := a.Get("posts", "hello.md"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !strings.Contains(out.String(), `"title": "Hello"`) {
		t.Errorf("Get output:\n%s", out.String())
	}

	if err := a.Remove("posts", "hello.md"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := a.Get("posts", "hello.md"); !errors.Is(err, shelf.ErrNotFound) {
		t.Errorf("Get after remove = %v, want ErrNotFound", err)
	}
}

func TestAddTolerantJSON(t *testing.T) {
	a, out := testApp(t)
	data := `{
		// a comment
		"title": "Loose",
	}`
	if err := a.Add("data", "", data); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if filepath.Base(strings.TrimSpace(out.String())) != "loose.json" {
		t.Errorf("Add wrote %q", out.String())
	}
}

func TestListOrderAndBounds(t *testing.T) {
	a, out := testApp(t)
	for _, rec := range []string{
		`{"name": "low", "rank": 1}`,
		`{"name": "mid", "rank": 5}`,
		`{"name": "top", "rank": 9}`,
	} {
		if err := a.Add("data", "", rec); err != nil {
			t.Fatal(err)
		}
	}

	out.Reset()
	if err := a.List("data", "-rank", 2, 0); err != nil {
		t.Fatalf("List: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("List printed %d lines:\n%s", len(lines), out.String())
	}
	if !strings.HasPrefix(lines[0], "top.json\t") || !strings.HasPrefix(lines[1], "mid.json\t") {
		t.Errorf("order wrong:\n%s", out.String())
	}

	out.Reset()
	if err := a.List("data", "rank", 0, 1); err != nil {
		t.Fatalf("List tail: %v", err)
	}
	lines = strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 1 || !strings.HasPrefix(lines[0], "top.json\t") {
		t.Errorf("tail output:\n%s", out.String())
	}
}

func TestUnknownCollection(t *testing.T) {
	a, _ := testApp(t)
	if err := a.List("nope", "", 0, 0); err == nil || !strings.Contains(err.Error(), "unknown collection") {
		t.Errorf("List(nope) = %v", err)
	}
}
