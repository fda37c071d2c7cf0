// Package provider holds the plumbing shared by the vendor adapters:
// construction option parsing, model table helpers, the retrying HTTP
// client, and stream scanners for the SSE and NDJSON wire formats.
package provider

import "strings"

// ParseStopTokens splits a comma-separated stop token option. Elements are
// trimmed and empties dropped, so ",,DONE, ,END," parses to [DONE END].
// A nil result means no stop tokens were configured.
func ParseStopTokens(raw string) []string {
	if raw == "" {
		return nil
	}

	var tokens []string
	for _, part := range strings.Split(raw, ",") {
		token := strings.TrimSpace(part)
		if token == "" {
			continue
		}
		tokens = append(tokens, token)
	}
	return tokens
}
