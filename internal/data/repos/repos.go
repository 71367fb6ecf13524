package repos

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// isUniqueViolation classifies storage-level uniqueness conflicts. These are
// expected outcomes under concurrent discovery, not failures; callers
// re-fetch and reuse the winning row. The string checks cover drivers that
// predate gorm's error translation.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key value") || // postgres
		strings.Contains(msg, "UNIQUE constraint failed") // sqlite
}
