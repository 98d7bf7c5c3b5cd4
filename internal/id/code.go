package id

import (
	"fmt"
	"strconv"
	"strings"
)

// SuffixWidth is the zero-pad width of generated child code suffixes.
// Suffixes above 99 keep their natural width.
const SuffixWidth = 2

// ChildCode joins a parent code and a numeric suffix: ("11", 2) -> "1102".
func ChildCode(prefix string, n int) string {
	return prefix + fmt.Sprintf("%0*d", SuffixWidth, n)
}

// LeadingInt parses the leading decimal digits of s, ignoring whatever
// follows. ok is false when s does not start with a digit.
// "07" -> 7, "12x" -> 12, "x1" -> not ok.
func LeadingInt(s string) (n int, ok bool) {
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	v, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return v, true
}

// IsCode reports whether s is a non-empty string of digits.
func IsCode(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// CompareCodes orders account codes numerically, so "9" < "10".
// Codes that are not pure digits fall back to string order after digits.
func CompareCodes(a, b string) int {
	ta := strings.TrimLeft(a, "0")
	tb := strings.TrimLeft(b, "0")
	if IsCode(a) && IsCode(b) {
		if len(ta) != len(tb) {
			if len(ta) < len(tb) {
				return -1
			}
			return 1
		}
		if c := strings.Compare(ta, tb); c != 0 {
			return c
		}
		// "01" vs "1": shorter raw form first, keeps the order total.
		return len(a) - len(b)
	}
	if IsCode(a) != IsCode(b) {
		if IsCode(a) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}
