// Package ids mints the opaque identifiers the claim subsystem hands
// out: claim IDs, which double as capability tokens, and message IDs.
package ids

import "github.com/google/uuid"

// NewClaimID returns a fresh, unguessable claim identifier.
func NewClaimID() string {
	return uuid.NewString()
}

// NewMessageID returns a fresh message identifier.
func NewMessageID() string {
	return uuid.NewString()
}
