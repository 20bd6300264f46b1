package export

import (
	"fmt"
	"strings"

	"cointist/internal/services"
)

// RejectionError reports a batch refused because items lack identifiers.
type RejectionError struct {
	InvalidIndexes []int `json:"invalidIndexes"`
	MissingCount   int   `json:"missingCount"`
}

func (e *RejectionError) Error() string {
	parts := make([]string, 0, len(e.InvalidIndexes))
	for _, idx := range e.InvalidIndexes {
		parts = append(parts, fmt.Sprint(idx))
	}
	return fmt.Sprintf("export rejected: %d item(s) without id at indexes [%s]", e.MissingCount, strings.Join(parts, ", "))
}

// Unwrap classifies rejections as validation failures.
func (e *RejectionError) Unwrap() error {
	return services.ErrValidation
}
