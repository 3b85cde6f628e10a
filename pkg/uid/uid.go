// Package uid generates the identifiers used for envelope trace ids and
// HTTP request ids.
package uid

import "github.com/google/uuid"

// New generates a new unique identifier.
func New() string {
	return uuid.New().String()
}
