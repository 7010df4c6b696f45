package validation

import (
	"fmt"
	"unicode/utf8"

	dErrors "agenda/pkg/domain-errors"
)

// MaxBodySize is the maximum allowed request body size (64 KB).
const MaxBodySize = 64 * 1024

// Field limits shared by handlers and domain constructors.
const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 2000
	MaxMessageLength     = 2000
	MaxInviteBatch       = 100
)

// CheckSliceCount validates that a slice does not exceed the maximum count.
func CheckSliceCount(fieldName string, count, max int) error {
	if count > max {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("too many %s: max %d allowed", fieldName, max))
	}
	return nil
}

// CheckStringLength validates a string's length in runes, not bytes.
func CheckStringLength(fieldName, value string, max int) error {
	if utf8.RuneCountInString(value) > max {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s exceeds max length of %d", fieldName, max))
	}
	return nil
}
