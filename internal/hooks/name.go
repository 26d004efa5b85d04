package hooks

import "strings"

// SplitName splits a display name on whitespace. The first token is the first
// name and, when there is more than one token, the last token is the last
// name. Middle tokens are dropped.
func SplitName(name string) (first string, last *string) {
	parts := strings.Fields(name)
	switch len(parts) {
	case 0:
		return "", nil
	case 1:
		return parts[0], nil
	default:
		l := parts[len(parts)-1]
		return parts[0], &l
	}
}
