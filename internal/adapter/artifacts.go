package adapter

import "strings"

// ExtractArtifacts scans content for fenced code blocks and returns one
// artifact per terminated block. The scanner tracks open/closed fence state
// line by line; a fence that is never closed contributes nothing.
func ExtractArtifacts(content string) []Artifact {
	var artifacts []Artifact

	var (
		inFence  bool
		language string
		lines    []string
	)

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "```") {
			if inFence {
				artifacts = append(artifacts, Artifact{
					Type:     "code",
					Language: language,
					Content:  strings.Join(lines, "\n"),
				})
				inFence = false
				lines = nil
				continue
			}

			inFence = true
			language = strings.TrimSpace(strings.TrimPrefix(trimmed, "```"))
			if language == "" {
				language = "text"
			}
			lines = nil
			continue
		}

		if inFence {
			lines = append(lines, line)
		}
	}

	return artifacts
}
