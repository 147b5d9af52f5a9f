package redis

import "strings"

// Key joins parts under prefix with ':' separators, skipping empty parts.
func Key(prefix string, parts ...string) string {
	all := make([]string, 0, len(parts)+1)
	if prefix != "" {
		all = append(all, prefix)
	}
	for _, p := range parts {
		if p != "" {
			all = append(all, p)
		}
	}
	return strings.Join(all, ":")
}
