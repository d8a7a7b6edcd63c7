package utils

import (
	"strings"
)

// ContainsString checks if a string slice contains a specific string.
func ContainsString(slice []string, item string) bool {
	for _, a := range slice {
		if a == item {
			return true
		}
	}
	return false
}

// SplitList splits s on sep, trims every element and drops the empty ones.
func SplitList(s, sep string) []string {
	var out []string
	for _, item := range strings.Split(s, sep) {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

// UniqueStrings returns the elements of slice in first-occurrence order without repeats.
func UniqueStrings(slice []string) []string {
	seen := make(map[string]bool, len(slice))
	out := make([]string, 0, len(slice))
	for _, s := range slice {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// Duplicates returns every element that occurs more than once, in first-occurrence order.
func Duplicates(slice []string) []string {
	counts := make(map[string]int, len(slice))
	for _, s := range slice {
		counts[s]++
	}
	var dups []string
	for _, s := range UniqueStrings(slice) {
		if counts[s] > 1 {
			dups = append(dups, s)
		}
	}
	return dups
}

// ZeroPad left-pads s with zeros up to width, like Python's str.zfill.
func ZeroPad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	sign := ""
	if s != "" && (s[0] == '-' || s[0] == '+') {
		sign, s = s[:1], s[1:]
	}
	return sign + strings.Repeat("0", width-len(sign)-len(s)) + s
}

// IsSinglePathElement reports whether name can be used as a file name inside a
// directory: no separators of either kind and no "..".
func IsSinglePathElement(name string) bool {
	return !strings.ContainsAny(name, `/\`) && !strings.Contains(name, "..")
}
