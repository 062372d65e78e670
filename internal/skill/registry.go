package skill

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/gobwas/glob"

	"github.com/gudastudio/maw/internal/errors"
	"github.com/gudastudio/maw/internal/logging"
)

// bridgeScriptGlob matches bridge scripts under a skill's scripts/ directory.
var bridgeScriptGlob = glob.MustCompile("*_bridge.py")

// backendKeywords is the priority-ordered list used to infer a bridge
// skill's backend from its directory name. First hit wins.
var backendKeywords = []string{"codex", "gemini", "claude"}

// Registry is the skill catalog. Discover rebuilds it from the search
// paths; lookups read a consistent snapshot.
type Registry struct {
	searchPaths []string
	logger      *logging.Logger

	mu     sync.RWMutex
	skills map[string]*Skill
	order  []string
}

// NewRegistry creates a registry over the given search paths. No scan
// happens until Discover is called.
func NewRegistry(searchPaths []string, logger *logging.Logger) *Registry {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Registry{
		searchPaths: searchPaths,
		logger:      logger,
		skills:      make(map[string]*Skill),
	}
}

// Discover rescans all search paths and atomically replaces the catalog.
// Earlier search paths take precedence when skill names collide.
// Unreadable paths are skipped with a log entry, not an error.
func (r *Registry) Discover() error {
	skills := make(map[string]*Skill)
	var order []string

	for _, root := range r.searchPaths {
		entries, err := os.ReadDir(root)
		if err != nil {
			if !os.IsNotExist(err) {
				r.logger.Warn("skipping unreadable skill path", "path", root, "error", err)
			}
			continue
		}

		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			dir := filepath.Join(root, entry.Name())

			s, err := classify(dir, entry.Name())
			if err != nil {
				r.logger.Warn("skipping malformed skill", "path", dir, "error", err)
				continue
			}

			if _, exists := skills[s.Name]; exists {
				continue
			}
			skills[s.Name] = s
			order = append(order, s.Name)
		}
	}

	r.mu.Lock()
	r.skills = skills
	r.order = order
	r.mu.Unlock()

	r.logger.Debug("skill discovery complete", "count", len(order))
	return nil
}

// classify builds a Skill from a directory, applying the classification
// rules in order: bridge scripts, then manifest builtin flag, then custom.
func classify(dir, dirName string) (*Skill, error) {
	m, err := readManifest(filepath.Join(dir, manifestFile))
	if err != nil {
		return nil, errors.NewSkillError("invalid manifest", err).WithPath(dir)
	}

	name := m.Name
	if name == "" {
		name = dirName
	}

	s := &Skill{
		Name:        name,
		Path:        dir,
		Description: m.Description,
		Version:     m.Version,
		Enabled:     true,
	}
	if _, err := os.Stat(filepath.Join(dir, disabledMarker)); err == nil {
		s.Enabled = false
	}

	if hasBridgeScripts(dir) {
		s.Type = TypeBridge
		s.Backend = inferBackend(dirName)
		return s, nil
	}

	if m.BuiltIn {
		s.Type = TypeBuiltIn
		return s, nil
	}

	s.Type = TypeCustom
	return s, nil
}

// hasBridgeScripts reports whether the skill ships bridge scripts.
func hasBridgeScripts(dir string) bool {
	entries, err := os.ReadDir(filepath.Join(dir, "scripts"))
	if err != nil {
		return false
	}
	for _, entry := range entries {
		if !entry.IsDir() && bridgeScriptGlob.Match(entry.Name()) {
			return true
		}
	}
	return false
}

// inferBackend picks the backend for a bridge skill from its directory
// name. Keyword priority is fixed so classification is deterministic.
func inferBackend(dirName string) string {
	lower := strings.ToLower(dirName)
	for _, kw := range backendKeywords {
		if strings.Contains(lower, kw) {
			return kw
		}
	}
	return ""
}

// Get returns a skill by name.
func (r *Registry) Get(name string) (*Skill, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.skills[name]
	if !ok {
		return nil, errors.NewSkillError("not in catalog", errors.ErrSkillNotFound).WithSkill(name)
	}
	copied := *s
	return &copied, nil
}

// List returns all skills in discovery order.
func (r *Registry) List() []*Skill {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Skill, 0, len(r.order))
	for _, name := range r.order {
		copied := *r.skills[name]
		out = append(out, &copied)
	}
	return out
}

// ForBackend returns enabled bridge skills for the given backend, sorted
// by name.
func (r *Registry) ForBackend(backend string) []*Skill {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Skill
	for _, s := range r.skills {
		if s.Type == TypeBridge && s.Backend == backend && s.Enabled {
			copied := *s
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Install copies a skill directory into the first writable search path and
// re-discovers the catalog.
func (r *Registry) Install(src string) error {
	info, err := os.Stat(src)
	if err != nil || !info.IsDir() {
		return errors.NewSkillError("source is not a directory", err).WithPath(src)
	}

	dest, err := r.writablePath()
	if err != nil {
		return err
	}

	target := filepath.Join(dest, filepath.Base(src))
	if _, err := os.Stat(target); err == nil {
		return errors.NewAlreadyExistsError("skill", filepath.Base(src))
	}

	if err := copyDir(src, target); err != nil {
		return errors.NewSkillError("install failed", err).WithPath(target)
	}

	r.logger.Info("installed skill", "name", filepath.Base(src), "path", target)
	return r.Discover()
}

// CreateFromTemplate scaffolds a new custom skill in the first writable
// search path and re-discovers the catalog.
func (r *Registry) CreateFromTemplate(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.NewValidationError("skill name must not be empty").WithField("name")
	}

	dest, err := r.writablePath()
	if err != nil {
		return err
	}

	dir := filepath.Join(dest, name)
	if _, err := os.Stat(dir); err == nil {
		return errors.NewAlreadyExistsError("skill", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.NewSkillError("scaffold failed", err).WithSkill(name)
	}

	content := fmt.Sprintf(`---
name: %s
description: Describe what this skill does.
version: 0.1.0
builtin: false
---

# %s

Document the skill here.
`, name, name)

	if err := os.WriteFile(filepath.Join(dir, manifestFile), []byte(content), 0o644); err != nil {
		return errors.NewSkillError("scaffold failed", err).WithSkill(name)
	}

	r.logger.Info("created skill from template", "name", name, "path", dir)
	return r.Discover()
}

// SetEnabled toggles a skill by writing or removing its disabled marker,
// then updates the catalog entry.
func (r *Registry) SetEnabled(name string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.skills[name]
	if !ok {
		return errors.NewSkillError("not in catalog", errors.ErrSkillNotFound).WithSkill(name)
	}

	marker := filepath.Join(s.Path, disabledMarker)
	if enabled {
		if err := os.Remove(marker); err != nil && !os.IsNotExist(err) {
			return errors.NewSkillError("failed to enable", err).WithSkill(name)
		}
	} else {
		if err := os.WriteFile(marker, nil, 0o644); err != nil {
			return errors.NewSkillError("failed to disable", err).WithSkill(name)
		}
	}

	s.Enabled = enabled
	return nil
}

// writablePath returns the first search path that exists (or can be
// created) and accepts writes.
func (r *Registry) writablePath() (string, error) {
	for _, root := range r.searchPaths {
		if err := os.MkdirAll(root, 0o755); err != nil {
			continue
		}
		probe := filepath.Join(root, ".write-probe")
		if err := os.WriteFile(probe, nil, 0o644); err != nil {
			continue
		}
		os.Remove(probe)
		return root, nil
	}
	return "", errors.NewSkillError("no search path accepts installs", errors.ErrNoWritableSkillPath)
}

// copyDir recursively copies a directory tree.
func copyDir(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}

		in, err := os.Open(path)
		if err != nil {
			return err
		}
		defer in.Close()

		info, err := d.Info()
		if err != nil {
			return err
		}
		out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
		if err != nil {
			return err
		}
		defer out.Close()

		_, err = io.Copy(out, in)
		return err
	})
}
