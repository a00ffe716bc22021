package domain

import (
	"strings"

	"github.com/gosimple/slug"
)

// NormalizeKey folds a free-form label ("Santé", "Self Care") onto the slug form used for keys.
func NormalizeKey(raw string) string {
	return slug.Make(strings.TrimSpace(raw))
}
