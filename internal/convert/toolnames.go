package convert

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/relayforge/claude-gateway/internal/schema"
)

var invalidToolNameChars = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// SanitizeToolNames builds the reversible renaming applied to tool names
// for providers with restrictive function-name rules. Returns the
// original -> sanitized map and its inverse. Tools with blank names are
// skipped; collisions after sanitization get a numeric suffix so the
// mapping stays bijective.
func SanitizeToolNames(tools []schema.Tool) (map[string]string, map[string]string) {
	names := make(map[string]string, len(tools))
	inverse := make(map[string]string, len(tools))
	for _, t := range tools {
		original := t.Name
		if strings.TrimSpace(original) == "" {
			continue
		}
		if _, seen := names[original]; seen {
			continue
		}
		s := sanitizeToolName(original)
		if s == "" {
			s = "tool"
		}
		if _, taken := inverse[s]; taken {
			base := s
			for n := 2; ; n++ {
				s = fmt.Sprintf("%s_%d", base, n)
				if _, taken := inverse[s]; !taken {
					break
				}
			}
		}
		names[original] = s
		inverse[s] = original
	}
	return names, inverse
}

func sanitizeToolName(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = invalidToolNameChars.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}
