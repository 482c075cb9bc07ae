package scan

import (
	"github.com/google/uuid"
)

// NewRunID returns a new UUID-based scan run ID.
func NewRunID() string {
	return uuid.NewString()
}
