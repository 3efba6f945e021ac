package notifs

import (
	"regexp"
	"strings"
)

// DefaultMaxMentions bounds notification fan-out per content unit.
const DefaultMaxMentions = 25

const maxHandleLength = 32

// handlePattern matches an @ marker at a word boundary followed by a
// bounded alphanumeric/underscore handle. A doubled marker (@@x) or an @
// embedded in a word (a@b) is not a mention.
// The capture runs one past maxHandleLength so an overlong run is rejected
// below instead of truncated into a valid-looking handle.
var handlePattern = regexp.MustCompile(`(^|[^A-Za-z0-9_@])@([A-Za-z0-9_]{1,33})`)

// ParseHandles extracts up to max unique handles from body, in order of
// first appearance. Deduplication is case-insensitive; the first spelling
// wins.
func ParseHandles(body string, max int) []string {
	if max <= 0 {
		max = DefaultMaxMentions
	}

	seen := make(map[string]bool)
	var out []string
	for _, m := range handlePattern.FindAllStringSubmatch(body, -1) {
		handle := m[2]
		if len(handle) > maxHandleLength {
			continue
		}
		k := strings.ToLower(handle)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, handle)
		if len(out) >= max {
			break
		}
	}
	return out
}
