// Package skill discovers and manages agent skills. A skill is a directory
// containing a SKILL.md manifest and optionally bridge scripts under
// scripts/. Skills are scanned from configured search paths and classified
// by their contents.
package skill

import (
	"bufio"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Skill types.
const (
	TypeBridge  = "bridge"
	TypeBuiltIn = "built-in"
	TypeCustom  = "custom"
)

// Skill describes one discovered skill.
type Skill struct {
	// Name is the skill identifier, from the manifest or the directory name.
	Name string
	// Path is the skill's directory.
	Path string
	// Type is bridge, built-in, or custom.
	Type string
	// Backend is the inferred backend for bridge skills ("" otherwise).
	Backend string
	// Description comes from the manifest.
	Description string
	// Version comes from the manifest.
	Version string
	// Enabled is false when the skill has been disabled.
	Enabled bool
}

// manifest is the yaml front-matter of SKILL.md.
type manifest struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Version     string `yaml:"version"`
	BuiltIn     bool   `yaml:"builtin"`
}

// disabledMarker is the file whose presence disables a skill.
const disabledMarker = ".disabled"

// manifestFile is the skill descriptor file name.
const manifestFile = "SKILL.md"

// readManifest parses the yaml front-matter of a SKILL.md file. A missing
// file or missing front-matter yields a zero manifest, not an error.
func readManifest(path string) (manifest, error) {
	var m manifest

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return m, nil
		}
		return m, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() || strings.TrimSpace(scanner.Text()) != "---" {
		return m, nil
	}

	var front []string
	closed := false
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "---" {
			closed = true
			break
		}
		front = append(front, line)
	}
	if !closed {
		return m, nil
	}

	if err := yaml.Unmarshal([]byte(strings.Join(front, "\n")), &m); err != nil {
		return manifest{}, err
	}
	return m, nil
}
