package core

import (
	"strconv"
	"strings"
	"unicode"
)

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// ParseIDList parses a delimited list of IDs like "[1, 2,3]". Items that are not made of digits only are skipped.
func ParseIDList(s string) []int {
	s = strings.Trim(strings.TrimSpace(s), "[]")
	ids := make([]int, 0)
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" || strings.IndexFunc(item, func(r rune) bool { return !unicode.IsDigit(r) }) >= 0 {
			continue
		}
		if id, err := strconv.Atoi(item); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}
