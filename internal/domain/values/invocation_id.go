// Package values contains domain value objects that encapsulate
// primitive types with validation and such.
package values

import (
	"github.com/google/uuid"
)

// InvocationID uniquely identifies one unit execution request.
// It correlates log lines across resolution, collection, loading and invocation.
type InvocationID struct {
	value uuid.UUID
}

// NewInvocationID creates a new random invocation ID
func NewInvocationID() InvocationID {
	return InvocationID{value: uuid.New()}
}

// String returns the string representation
func (i InvocationID) String() string {
	return i.value.String()
}
