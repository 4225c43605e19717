package wall

import (
	"fmt"
	"strings"
)

const (
	// MaxAuthorLen is the author limit in characters after trimming
	MaxAuthorLen = 60
	// MaxBodyLen is the body limit in characters after trimming
	MaxBodyLen = 800
)

// Normalize trims author and body, rejects empty values and truncates
// over-length input. Lengths are counted in runes.
func Normalize(author, body string) (string, string, error) {
	author = strings.TrimSpace(author)
	body = strings.TrimSpace(body)

	if author == "" {
		return "", "", fmt.Errorf("%w: author is required", ErrValidation)
	}
	if body == "" {
		return "", "", fmt.Errorf("%w: body is required", ErrValidation)
	}

	return truncate(author, MaxAuthorLen), truncate(body, MaxBodyLen), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
