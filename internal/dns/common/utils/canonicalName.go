package utils

import "strings"

// CanonicalDNSName returns a DNS name in the form used for table keys and
// comparisons: trimmed, lowercased (RFC 4343) and without trailing dots.
// The root name canonicalizes to "". An escaped final dot (`\.`) belongs to
// the last label and is kept.
func CanonicalDNSName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ToLower(name)
	return trimTrailingDots(name)
}

func trimTrailingDots(name string) string {
	for strings.HasSuffix(name, ".") {
		backslashes := 0
		for i := len(name) - 2; i >= 0 && name[i] == '\\'; i-- {
			backslashes++
		}
		if backslashes%2 == 1 {
			break
		}
		name = name[:len(name)-1]
	}
	return name
}

// PresentationDNSName returns name as a fully qualified presentation string
// ending in exactly one dot. Case is preserved. The root name is ".".
func PresentationDNSName(name string) string {
	return trimTrailingDots(strings.TrimSpace(name)) + "."
}
