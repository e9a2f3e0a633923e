package uid

import "github.com/google/uuid"

// NewLockToken returns a random token identifying one lock holder.
func NewLockToken() string {
	return uuid.NewString()
}
