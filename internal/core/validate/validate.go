// Package validate provides shared validation functions for request fields.
package validate

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/hay-kot/criterio"
)

// MaxIDLength bounds client-supplied identifiers (document, block, user ids).
const MaxIDLength = 256

// NotBlank validates a value is non-empty after trimming whitespace.
func NotBlank(value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("is required")
	}
	return nil
}

// Identifier validates a client-supplied id: non-empty, bounded, and free of
// whitespace and control characters.
func Identifier(id string) error {
	if id == "" {
		return fmt.Errorf("is required")
	}
	if len(id) > MaxIDLength {
		return fmt.Errorf("must be at most %d bytes", MaxIDLength)
	}
	for _, r := range id {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return fmt.Errorf("must not contain whitespace or control characters")
		}
	}
	return nil
}

// Required returns a criterio validator for a non-blank field.
func Required(field, value string) error {
	return criterio.Run(field, value, NotBlank)
}

// IDField returns a criterio validator for an identifier field.
func IDField(field, id string) error {
	return criterio.Run(field, id, Identifier)
}
