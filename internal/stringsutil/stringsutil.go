package stringsutil

import "strings"

// SplitNonEmpty splits s by sep, trims each part and returns only non-empty parts.
func SplitNonEmpty(s, sep string) []string {
	parts := strings.Split(s, sep)
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			result = append(result, p)
		}
	}
	return result
}

// KeepLast returns the last n bytes of s, or s itself if it is short enough.
func KeepLast(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) > n {
		return s[len(s)-n:]
	}
	return s
}

// UniqueStrings returns a new slice with duplicates removed, preserving first-seen order.
func UniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	unique := make([]string, 0, len(values))
	for _, value := range values {
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		unique = append(unique, value)
	}
	return unique
}
