package conversation

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	MaxContentLength = 10000
	MaxPageLimit     = 100
	DefaultPageLimit = 50
)

var unsafeMarkers = []string{"<script", "javascript:"}

func validateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("%w: message cannot be empty", ErrInvalidContent)
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return fmt.Errorf("%w: message too long (max %d characters)", ErrInvalidContent, MaxContentLength)
	}
	lower := strings.ToLower(content)
	for _, m := range unsafeMarkers {
		if strings.Contains(lower, m) {
			return fmt.Errorf("%w: message contains potentially unsafe content", ErrInvalidContent)
		}
	}
	return nil
}

func validatePage(limit, offset int) error {
	if limit <= 0 || limit > MaxPageLimit {
		return fmt.Errorf("%w: limit must be between 1 and %d", ErrInvalidPage, MaxPageLimit)
	}
	if offset < 0 {
		return fmt.Errorf("%w: offset must be non-negative", ErrInvalidPage)
	}
	return nil
}
