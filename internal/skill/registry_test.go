package skill

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gudastudio/maw/internal/errors"
)

// makeSkill creates a skill directory with an optional manifest and
// optional bridge scripts.
func makeSkill(t *testing.T, root, dirName, manifestBody string, scripts ...string) string {
	t.Helper()
	dir := filepath.Join(root, dirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if manifestBody != "" {
		if err := os.WriteFile(filepath.Join(dir, "SKILL.md"), []byte(manifestBody), 0o644); err != nil {
			t.Fatalf("write manifest: %v", err)
		}
	}
	if len(scripts) > 0 {
		scriptsDir := filepath.Join(dir, "scripts")
		if err := os.MkdirAll(scriptsDir, 0o755); err != nil {
			t.Fatalf("mkdir scripts: %v", err)
		}
		for _, name := range scripts {
			if err := os.WriteFile(filepath.Join(scriptsDir, name), []byte("# stub\n"), 0o644); err != nil {
				t.Fatalf("write script: %v", err)
			}
		}
	}
	return dir
}

const builtinManifest = `---
name: planner
description: Built-in planning skill.
version: 1.2.0
builtin: true
---

# planner
`

func TestDiscoverClassification(t *testing.T) {
	root := t.TempDir()

	makeSkill(t, root, "codex-analysis", "", "codex_bridge.py")
	makeSkill(t, root, "builtin-planner", builtinManifest)
	makeSkill(t, root, "notes", "")

	r := NewRegistry([]string{root}, nil)
	if err := r.Discover(); err != nil {
		t.Fatalf("Discover returned error: %v", err)
	}

	tests := []struct {
		name    string
		typ     string
		backend string
	}{
		{"codex-analysis", TypeBridge, "codex"},
		{"planner", TypeBuiltIn, ""},
		{"notes", TypeCustom, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := r.Get(tt.name)
			if err != nil {
				t.Fatalf("Get(%q) returned error: %v", tt.name, err)
			}
			if s.Type != tt.typ {
				t.Errorf("Type = %q, want %q", s.Type, tt.typ)
			}
			if s.Backend != tt.backend {
				t.Errorf("Backend = %q, want %q", s.Backend, tt.backend)
			}
		})
	}

	if _, err := r.Get("ghost"); !errors.Is(err, errors.ErrSkillNotFound) {
		t.Errorf("expected ErrSkillNotFound, got %v", err)
	}
}

func TestBackendInferencePriority(t *testing.T) {
	root := t.TempDir()

	// Directory name mentions both backends; codex wins by priority.
	makeSkill(t, root, "gemini-codex-hybrid", "", "agent_bridge.py")

	r := NewRegistry([]string{root}, nil)
	if err := r.Discover(); err != nil {
		t.Fatalf("Discover returned error: %v", err)
	}

	s, err := r.Get("gemini-codex-hybrid")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if s.Backend != "codex" {
		t.Errorf("Backend = %q, want codex (priority order)", s.Backend)
	}
}

func TestBridgeScriptsRequireGlobMatch(t *testing.T) {
	root := t.TempDir()

	// scripts/ exists but nothing matches *_bridge.py.
	makeSkill(t, root, "codex-helper", "", "helper.py")

	r := NewRegistry([]string{root}, nil)
	if err := r.Discover(); err != nil {
		t.Fatalf("Discover returned error: %v", err)
	}

	s, err := r.Get("codex-helper")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if s.Type != TypeCustom {
		t.Errorf("Type = %q, want custom when no bridge script matches", s.Type)
	}
}

func TestSearchPathPrecedence(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()

	makeSkill(t, first, "shared", "---\nname: shared\ndescription: from first\n---\n")
	makeSkill(t, second, "shared", "---\nname: shared\ndescription: from second\n---\n")

	r := NewRegistry([]string{first, second}, nil)
	if err := r.Discover(); err != nil {
		t.Fatalf("Discover returned error: %v", err)
	}

	s, err := r.Get("shared")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if s.Description != "from first" {
		t.Errorf("earlier search path should win, got description %q", s.Description)
	}
}

func TestForBackend(t *testing.T) {
	root := t.TempDir()

	makeSkill(t, root, "codex-b", "", "x_bridge.py")
	makeSkill(t, root, "codex-a", "", "x_bridge.py")
	makeSkill(t, root, "gemini-a", "", "x_bridge.py")
	makeSkill(t, root, "plain", "")

	r := NewRegistry([]string{root}, nil)
	if err := r.Discover(); err != nil {
		t.Fatalf("Discover returned error: %v", err)
	}

	got := r.ForBackend("codex")
	if len(got) != 2 || got[0].Name != "codex-a" || got[1].Name != "codex-b" {
		names := make([]string, len(got))
		for i, s := range got {
			names[i] = s.Name
		}
		t.Errorf("ForBackend(codex) = %v, want [codex-a codex-b]", names)
	}
}

func TestSetEnabled(t *testing.T) {
	root := t.TempDir()
	dir := makeSkill(t, root, "toggler", "")

	r := NewRegistry([]string{root}, nil)
	if err := r.Discover(); err != nil {
		t.Fatalf("Discover returned error: %v", err)
	}

	if err := r.SetEnabled("toggler", false); err != nil {
		t.Fatalf("SetEnabled returned error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, ".disabled")); err != nil {
		t.Error("disabling should write the marker file")
	}

	// Disabled state survives re-discovery.
	if err := r.Discover(); err != nil {
		t.Fatalf("Discover returned error: %v", err)
	}
	s, err := r.Get("toggler")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if s.Enabled {
		t.Error("skill should remain disabled after re-discovery")
	}

	if err := r.SetEnabled("toggler", true); err != nil {
		t.Fatalf("SetEnabled returned error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, ".disabled")); !os.IsNotExist(err) {
		t.Error("enabling should remove the marker file")
	}
}

func TestInstall(t *testing.T) {
	searchPath := t.TempDir()
	srcRoot := t.TempDir()
	src := makeSkill(t, srcRoot, "imported", builtinManifest, "codex_bridge.py")

	r := NewRegistry([]string{searchPath}, nil)
	if err := r.Discover(); err != nil {
		t.Fatalf("Discover returned error: %v", err)
	}

	if err := r.Install(src); err != nil {
		t.Fatalf("Install returned error: %v", err)
	}

	if _, err := os.Stat(filepath.Join(searchPath, "imported", "scripts", "codex_bridge.py")); err != nil {
		t.Error("install should copy the full tree")
	}
	if _, err := r.Get("planner"); err != nil {
		t.Errorf("installed skill should be discoverable: %v", err)
	}

	// Second install of the same directory collides.
	if err := r.Install(src); err == nil {
		t.Error("reinstalling over an existing skill should fail")
	}
}

func TestCreateFromTemplate(t *testing.T) {
	searchPath := t.TempDir()

	r := NewRegistry([]string{searchPath}, nil)
	if err := r.CreateFromTemplate("my-skill"); err != nil {
		t.Fatalf("CreateFromTemplate returned error: %v", err)
	}

	s, err := r.Get("my-skill")
	if err != nil {
		t.Fatalf("scaffolded skill not discoverable: %v", err)
	}
	if s.Type != TypeCustom {
		t.Errorf("Type = %q, want custom", s.Type)
	}
	if s.Version != "0.1.0" {
		t.Errorf("Version = %q, want 0.1.0", s.Version)
	}

	if err := r.CreateFromTemplate(" "); err == nil {
		t.Error("blank name should be rejected")
	}
}

func TestDiscoverMissingPath(t *testing.T) {
	r := NewRegistry([]string{filepath.Join(t.TempDir(), "absent")}, nil)
	if err := r.Discover(); err != nil {
		t.Errorf("missing search path should not fail discovery: %v", err)
	}
	if len(r.List()) != 0 {
		t.Error("catalog should be empty")
	}
}
