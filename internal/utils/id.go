package utils

import (
	"github.com/google/uuid"
)

// NewConnID returns an identifier for a live socket connection.
// Connection ids are process-local and never persisted.
func NewConnID() string {
	return "conn-" + uuid.NewString()
}
