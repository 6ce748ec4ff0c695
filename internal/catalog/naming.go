package catalog

import (
	"strings"
	"unicode"

	"github.com/fatih/camelcase"
)

// ToSnake converts a camelCase form id to a snake_case payload key.
// Digit runs stay attached to the preceding word: section1Id -> section1_id.
func ToSnake(id string) string {
	if id == "" {
		return ""
	}
	words := camelcase.Split(id)
	parts := make([]string, 0, len(words))
	for _, w := range words {
		if w == "_" || w == "" {
			continue
		}
		if isDigits(w) && len(parts) > 0 {
			parts[len(parts)-1] += w
			continue
		}
		parts = append(parts, strings.ToLower(w))
	}
	return strings.Join(parts, "_")
}

// ToCamel converts a snake_case payload key to a camelCase form id.
func ToCamel(key string) string {
	parts := strings.Split(key, "_")
	var b strings.Builder
	for i, p := range parts {
		if p == "" {
			continue
		}
		if i == 0 || b.Len() == 0 {
			b.WriteString(strings.ToLower(p))
			continue
		}
		r := []rune(strings.ToLower(p))
		r[0] = unicode.ToUpper(r[0])
		b.WriteString(string(r))
	}
	return b.String()
}

// SnakeKeys returns a copy of m with every key converted to snake_case.
func SnakeKeys(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[ToSnake(k)] = v
	}
	return out
}

// CamelKeys returns a copy of m with every key converted to camelCase.
func CamelKeys(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[ToCamel(k)] = v
	}
	return out
}

func isDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}
