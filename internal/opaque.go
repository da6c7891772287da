// Package internal holds unexported helpers shared by the engine packages.
package internal

import "github.com/google/uuid"

// NewID returns a fresh opaque identifier. Account ids, project ids, session
// tokens, publish tokens, and email change codes all use this form; nothing
// in the engine assumes any structure beyond uniqueness.
func NewID() string {
	return uuid.NewString()
}
